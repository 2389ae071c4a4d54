package paginate

import (
	"strings"
	"testing"
	"unicode"

	"github.com/docfold/docfold/document"
)

func TestSplitter_TrySplit(t *testing.T) {
	s := NewSplitter()
	text := strings.Repeat("pack my box with five dozen jugs ", 30)
	b := block(document.KindParagraph, text)

	split, ok := s.TrySplit(b, 300, h(600, 16, 16))
	if !ok {
		t.Fatal("expected a split")
	}

	runes := []rune(text)
	firstLen := len([]rune(split.First.Text))
	if firstLen < s.MinRunes || len([]rune(split.Second.Text)) < s.MinRunes {
		t.Error("fragments below minimum viable length")
	}
	// The cut must land on a word boundary: the removed rune is a space.
	if !unicode.IsSpace(runes[firstLen]) {
		t.Errorf("cut rune %q is not a space", runes[firstLen])
	}
	if got := split.First.Text + " " + split.Second.Text; got != text {
		t.Error("fragments do not reconstruct the original text")
	}

	// Prorated heights sum to the original content height.
	if sum := split.FirstHeight.Content + split.SecondHeight.Content; sum != 600 {
		t.Errorf("fragment heights sum to %v, want 600", sum)
	}
	// Ratio 0.5: the first fragment gets roughly half.
	if split.FirstHeight.Content < 250 || split.FirstHeight.Content > 310 {
		t.Errorf("first fragment height = %v, want near 300", split.FirstHeight.Content)
	}

	// Margin handling at the seam.
	if split.FirstHeight.MarginTop != 16 || split.FirstHeight.MarginBottom != 0 {
		t.Errorf("first margins = %v/%v, want 16/0", split.FirstHeight.MarginTop, split.FirstHeight.MarginBottom)
	}
	if split.SecondHeight.MarginTop != 0 || split.SecondHeight.MarginBottom != 16 {
		t.Errorf("second margins = %v/%v, want 0/16", split.SecondHeight.MarginTop, split.SecondHeight.MarginBottom)
	}

	if split.First.ID != b.ID || split.Second.ID != b.ID {
		t.Error("fragments should keep the source identity")
	}
	if split.First.Continued || !split.Second.Continued {
		t.Errorf("continued flags = %v/%v, want false/true", split.First.Continued, split.Second.Continued)
	}
	if b.Text != text {
		t.Error("source block must not be mutated")
	}
}

func TestSplitter_OnlyParagraphsSplit(t *testing.T) {
	s := NewSplitter()
	long := strings.Repeat("row content here ", 50)
	for _, kind := range []document.Kind{
		document.KindHeading, document.KindList, document.KindTable,
		document.KindImage, document.KindCode, document.KindQuote,
	} {
		b := block(kind, long)
		if _, ok := s.TrySplit(b, 300, h(600, 0, 0)); ok {
			t.Errorf("%s blocks must not split", kind)
		}
	}
}

func TestSplitter_ShortTextRejected(t *testing.T) {
	s := NewSplitter()
	b := block(document.KindParagraph, "brief words only here")
	if _, ok := s.TrySplit(b, 300, h(600, 0, 0)); ok {
		t.Error("short text should not split")
	}
}

func TestSplitter_SliverRejected(t *testing.T) {
	s := NewSplitter()
	b := block(document.KindParagraph, strings.Repeat("plenty of text to work with ", 30))
	// 50 of 600 px available is an 8% sliver, under the 15% floor.
	if _, ok := s.TrySplit(b, 50, h(600, 0, 0)); ok {
		t.Error("sliver space should not produce a split")
	}
}

func TestSplitter_MaxRatioClamp(t *testing.T) {
	s := NewSplitter()
	text := strings.Repeat("evenly spaced words here again ", 40)
	b := block(document.KindParagraph, text)

	// 95% available: without the clamp the second fragment would be a
	// stub. The cap keeps the first fragment at or below 90%.
	split, ok := s.TrySplit(b, 570, h(600, 0, 0))
	if !ok {
		t.Fatal("expected a split")
	}
	if ratio := split.FirstHeight.Content / 600; ratio > 0.9 {
		t.Errorf("first fragment ratio = %v, want <= 0.9", ratio)
	}
}

func TestSplitter_NoWordBoundary(t *testing.T) {
	s := NewSplitter()
	b := block(document.KindParagraph, strings.Repeat("x", 400))
	if _, ok := s.TrySplit(b, 300, h(600, 0, 0)); ok {
		t.Error("unbroken text has no safe cut and should not split")
	}
}

func TestSplitter_ZeroAvailable(t *testing.T) {
	s := NewSplitter()
	b := block(document.KindParagraph, strings.Repeat("words and more ", 40))
	if _, ok := s.TrySplit(b, 0, h(600, 0, 0)); ok {
		t.Error("no available space should not split")
	}
	if _, ok := s.TrySplit(b, -10, h(600, 0, 0)); ok {
		t.Error("negative space should not split")
	}
}

func TestSplitter_SecondFragmentCanSplitAgain(t *testing.T) {
	s := NewSplitter()
	text := strings.Repeat("cascade across several pages ", 60)
	b := block(document.KindParagraph, text)

	first, ok := s.TrySplit(b, 200, h(900, 16, 16))
	if !ok {
		t.Fatal("first split failed")
	}
	again, ok := s.TrySplit(first.Second, 200, first.SecondHeight)
	if !ok {
		t.Fatal("second split failed")
	}
	if !again.First.Continued || !again.Second.Continued {
		t.Error("re-splitting a continuation keeps both parts continued")
	}
	rejoined := first.First.Text + " " + again.First.Text + " " + again.Second.Text
	if rejoined != text {
		t.Error("three fragments should reconstruct the original text")
	}
}
