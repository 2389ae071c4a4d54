package measure

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/docfold/docfold/document"
)

const simpleScript = `
function measure(block, layout) {
	if (block.kind === "heading") {
		return {content: 60, marginTop: 20, marginBottom: 12};
	}
	var lines = Math.ceil(block.text.length / 75);
	if (lines < 1) lines = 1;
	return {content: lines * layout.fontSize * layout.lineHeight, marginTop: 16, marginBottom: 16};
}
`

func TestScriptResolver(t *testing.T) {
	r, err := NewScriptResolver(simpleScript)
	if err != nil {
		t.Fatalf("NewScriptResolver failed: %v", err)
	}

	head := textBlock(document.KindHeading, "Title")
	h, err := r.Resolve(context.Background(), head, DefaultContext(600))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if h.Content != 60 || h.MarginTop != 20 || h.MarginBottom != 12 {
		t.Errorf("heading height = %+v", h)
	}

	para := textBlock(document.KindParagraph, strings.Repeat("a", 150))
	hp, err := r.Resolve(context.Background(), para, DefaultContext(600))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if want := 2 * 16 * 1.4; !approx(hp.Content, want) {
		t.Errorf("paragraph Content = %v, want %v", hp.Content, want)
	}
}

func TestScriptResolver_Batch(t *testing.T) {
	r, err := NewScriptResolver(simpleScript)
	if err != nil {
		t.Fatalf("NewScriptResolver failed: %v", err)
	}
	blocks := []*document.BlockNode{
		textBlock(document.KindParagraph, "short"),
		document.NewBreakMarker(),
		textBlock(document.KindParagraph, "short"),
	}
	heights, err := r.ResolveBatch(context.Background(), blocks, DefaultContext(600))
	if err != nil {
		t.Fatalf("ResolveBatch failed: %v", err)
	}
	if len(heights) != 3 {
		t.Fatalf("heights = %d, want 3", len(heights))
	}
	if heights[1].Content != 0 {
		t.Error("break marker should measure zero without calling the script")
	}
	if heights[0] != heights[2] {
		t.Errorf("identical blocks should measure equally: %+v vs %+v", heights[0], heights[2])
	}
}

func TestScriptResolver_MissingFunction(t *testing.T) {
	if _, err := NewScriptResolver(`var x = 1;`); err == nil {
		t.Fatal("script without measure() should be rejected")
	}
}

func TestScriptResolver_BadReturn(t *testing.T) {
	r, err := NewScriptResolver(`function measure(b, l) { return 42; }`)
	if err != nil {
		t.Fatalf("NewScriptResolver failed: %v", err)
	}
	_, err = r.Resolve(context.Background(), textBlock(document.KindParagraph, "x"), DefaultContext(600))
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestScriptResolver_ThrowBecomesUnavailable(t *testing.T) {
	r, err := NewScriptResolver(`function measure(b, l) { throw new Error("boom"); }`)
	if err != nil {
		t.Fatalf("NewScriptResolver failed: %v", err)
	}
	_, err = r.Resolve(context.Background(), textBlock(document.KindParagraph, "x"), DefaultContext(600))
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestScriptResolver_Interrupt(t *testing.T) {
	r, err := NewScriptResolver(`function measure(b, l) { while (true) {} }`)
	if err != nil {
		t.Fatalf("NewScriptResolver failed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = r.Resolve(ctx, textBlock(document.KindParagraph, "x"), DefaultContext(600))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want context.DeadlineExceeded", err)
	}
}

func TestScriptResolver_FallsBackToHeuristics(t *testing.T) {
	r, err := NewScriptResolver(`function measure(b, l) { throw new Error("no backend"); }`)
	if err != nil {
		t.Fatalf("NewScriptResolver failed: %v", err)
	}
	f := WithFallback(r, NewHeuristicResolver())
	h, err := f.Resolve(context.Background(), textBlock(document.KindParagraph, "hello"), DefaultContext(600))
	if err != nil {
		t.Fatalf("fallback should rescue the run: %v", err)
	}
	if h.Content <= 0 {
		t.Errorf("Content = %v, want positive heuristic height", h.Content)
	}
}
