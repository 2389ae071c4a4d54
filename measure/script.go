package measure

import (
	"context"
	"fmt"
	"sync"

	"github.com/dop251/goja"

	"github.com/docfold/docfold/document"
)

// scriptFn is the measurement entry point a script must define:
//
//	function measure(block, layout) {
//	    return {content: ..., marginTop: ..., marginBottom: ...};
//	}
//
// block carries kind, text, level, items, rows, language; layout carries
// contentWidth, fontSize, lineHeight, dpi.
const scriptFn = "measure"

// ScriptResolver delegates measurement to a user-supplied JavaScript
// function, the hook hosts use to mirror their own renderer's sizing
// rules. Script failures surface as ErrUnavailable so callers degrade to
// heuristics instead of failing the run.
type ScriptResolver struct {
	mu sync.Mutex
	vm *goja.Runtime
	fn goja.Callable
}

// NewScriptResolver compiles the script and binds its measure function.
func NewScriptResolver(script string) (*ScriptResolver, error) {
	vm := goja.New()
	if _, err := vm.RunString(script); err != nil {
		return nil, fmt.Errorf("compile measurement script: %w", err)
	}
	fn, ok := goja.AssertFunction(vm.Get(scriptFn))
	if !ok {
		return nil, fmt.Errorf("measurement script does not define %s()", scriptFn)
	}
	return &ScriptResolver{vm: vm, fn: fn}, nil
}

// Resolve measures one block through the script.
func (r *ScriptResolver) Resolve(ctx context.Context, block *document.BlockNode, layout Context) (Height, error) {
	heights, err := r.ResolveBatch(ctx, []*document.BlockNode{block}, layout)
	if err != nil {
		return Height{}, err
	}
	return heights[0], nil
}

// ResolveBatch measures a whole run in one VM pass. The VM is interrupted
// if the context is cancelled mid-run.
func (r *ScriptResolver) ResolveBatch(ctx context.Context, blocks []*document.BlockNode, layout Context) ([]Height, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	layout = layout.withDefaults()

	r.mu.Lock()
	defer r.mu.Unlock()

	done := make(chan struct{})
	defer close(done)
	defer r.vm.ClearInterrupt()

	go func() {
		select {
		case <-ctx.Done():
			r.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	layoutVal := r.vm.ToValue(map[string]interface{}{
		"contentWidth": layout.ContentWidth,
		"fontSize":     layout.FontSize,
		"lineHeight":   layout.LineHeight,
		"dpi":          layout.DPI,
	})

	heights := make([]Height, len(blocks))
	for i, block := range blocks {
		if block.IsBreakMarker() {
			continue
		}
		blockVal := r.vm.ToValue(map[string]interface{}{
			"kind":     string(block.Kind),
			"text":     block.Text,
			"level":    block.Level,
			"items":    block.Items,
			"rows":     block.Rows,
			"language": block.Language,
		})
		val, err := r.fn(goja.Undefined(), blockVal, layoutVal)
		if err != nil {
			if interrupted, ok := err.(*goja.InterruptedError); ok {
				if cause := interrupted.Unwrap(); cause != nil {
					return nil, cause
				}
				return nil, context.Canceled
			}
			return nil, fmt.Errorf("%w: measure(): %v", ErrUnavailable, err)
		}
		h, err := exportHeight(val)
		if err != nil {
			return nil, err
		}
		heights[i] = h
	}
	return heights, nil
}

func exportHeight(val goja.Value) (Height, error) {
	m, ok := val.Export().(map[string]interface{})
	if !ok {
		return Height{}, fmt.Errorf("%w: measure() must return an object", ErrUnavailable)
	}
	h := Height{
		Content:      scriptNumber(m["content"]),
		MarginTop:    scriptNumber(m["marginTop"]),
		MarginBottom: scriptNumber(m["marginBottom"]),
	}
	if h.Content < 0 {
		return Height{}, fmt.Errorf("%w: measure() returned negative height", ErrUnavailable)
	}
	return h, nil
}

// scriptNumber converts the loose numeric types goja exports into px.
func scriptNumber(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}
