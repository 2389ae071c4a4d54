// Package measure resolves layout heights for document blocks. The packer
// never measures anything itself; it consumes the Height values produced
// here. Resolvers may be backed by real text shaping, by user scripts, or
// by static per-kind heuristics for headless operation.
package measure

import (
	"context"
	"errors"

	"github.com/docfold/docfold/document"
)

// ErrUnavailable signals that a measurement backend cannot serve the
// request. Callers recover by falling back to heuristic heights; it is
// never a fatal condition.
var ErrUnavailable = errors.New("measurement unavailable")

// Height is the resolved layout box of one block: content extent plus the
// block's own vertical margins. Margins take part in adjacent-margin
// collapse during packing, so they are reported separately.
type Height struct {
	Content      float64
	MarginTop    float64
	MarginBottom float64
}

// Context carries the layout parameters a resolver measures against.
type Context struct {
	ContentWidth float64 // px
	FontSize     float64 // px, base body size
	LineHeight   float64 // multiplier
	DPI          float64
}

// DefaultFontSize is the base body font size in CSS pixels.
const DefaultFontSize = 16.0

// DefaultLineHeight is the body line height multiplier.
const DefaultLineHeight = 1.4

// DefaultContext returns a layout context for the given content width.
func DefaultContext(contentWidth float64) Context {
	return Context{
		ContentWidth: contentWidth,
		FontSize:     DefaultFontSize,
		LineHeight:   DefaultLineHeight,
		DPI:          96,
	}
}

func (c Context) withDefaults() Context {
	if c.FontSize <= 0 {
		c.FontSize = DefaultFontSize
	}
	if c.LineHeight <= 0 {
		c.LineHeight = DefaultLineHeight
	}
	if c.ContentWidth <= 0 {
		c.ContentWidth = 600
	}
	return c
}

// Style holds the per-kind spacing a resolver applies: vertical margins,
// inner padding, and a font scale relative to the body size.
type Style struct {
	FontScale    float64
	Padding      float64
	MarginTop    float64
	MarginBottom float64
}

// Stylesheet maps block kinds to their spacing. The defaults mirror common
// editor CSS at a 16px body size.
type Stylesheet map[document.Kind]Style

// DefaultStylesheet returns the spacing table used when no custom styles
// are configured.
func DefaultStylesheet() Stylesheet {
	return Stylesheet{
		document.KindHeading:   {FontScale: 1, Padding: 0, MarginTop: 20, MarginBottom: 12},
		document.KindParagraph: {FontScale: 1, Padding: 0, MarginTop: 16, MarginBottom: 16},
		document.KindList:      {FontScale: 1, Padding: 4, MarginTop: 16, MarginBottom: 16},
		document.KindTable:     {FontScale: 1, Padding: 8, MarginTop: 16, MarginBottom: 16},
		document.KindImage:     {FontScale: 1, Padding: 0, MarginTop: 16, MarginBottom: 16},
		document.KindQuote:     {FontScale: 1, Padding: 8, MarginTop: 16, MarginBottom: 16},
		document.KindCode:      {FontScale: 0.875, Padding: 16, MarginTop: 16, MarginBottom: 16},
		document.KindRule:      {FontScale: 1, Padding: 0, MarginTop: 16, MarginBottom: 16},
		document.KindMath:      {FontScale: 1, Padding: 8, MarginTop: 16, MarginBottom: 16},
		document.KindBreak:     {},
	}
}

// styleFor returns the style for a kind, with a conservative fallback for
// kinds the sheet does not know.
func (s Stylesheet) styleFor(kind document.Kind) Style {
	if st, ok := s[kind]; ok {
		return st
	}
	return Style{FontScale: 1, MarginTop: 16, MarginBottom: 16}
}

// HeadingScale returns the font scale for a heading level, matching the
// browser defaults the editor inherits.
func HeadingScale(level int) float64 {
	switch level {
	case 1:
		return 2.0
	case 2:
		return 1.5
	case 3:
		return 1.25
	case 4:
		return 1.12
	case 5:
		return 1.0
	default:
		return 0.9
	}
}

// Resolver measures a single block against a layout context.
//
// Implementations never fail on well-formed blocks of known kinds; an
// unknown kind gets a conservative default rather than an error. Errors
// signal backend unavailability (ErrUnavailable) so callers can degrade
// to heuristics.
type Resolver interface {
	Resolve(ctx context.Context, block *document.BlockNode, layout Context) (Height, error)
}

// BatchResolver is an optional fast path: a whole run measured in one
// call. Backends with per-call overhead implement it.
type BatchResolver interface {
	ResolveBatch(ctx context.Context, blocks []*document.BlockNode, layout Context) ([]Height, error)
}

// ResolveAll measures every block of a run, using the batch fast path when
// the resolver offers one. The returned slice is index-aligned with blocks.
func ResolveAll(ctx context.Context, r Resolver, blocks []*document.BlockNode, layout Context) ([]Height, error) {
	if br, ok := r.(BatchResolver); ok {
		heights, err := br.ResolveBatch(ctx, blocks, layout)
		if err != nil {
			return nil, err
		}
		if len(heights) != len(blocks) {
			return nil, errors.New("batch measurement returned wrong count")
		}
		return heights, nil
	}
	heights := make([]Height, len(blocks))
	for i, b := range blocks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h, err := r.Resolve(ctx, b, layout)
		if err != nil {
			return nil, err
		}
		heights[i] = h
	}
	return heights, nil
}

// Fallback chains a primary resolver with a backup consulted when the
// primary fails. Cancellation is not recovered: a cancelled run stays
// cancelled rather than producing heights from the backup.
type Fallback struct {
	Primary Resolver
	Backup  Resolver
}

// WithFallback wraps primary so that any measurement failure is retried
// against backup.
func WithFallback(primary, backup Resolver) *Fallback {
	return &Fallback{Primary: primary, Backup: backup}
}

// Resolve measures with the primary resolver, then the backup.
func (f *Fallback) Resolve(ctx context.Context, block *document.BlockNode, layout Context) (Height, error) {
	h, err := f.Primary.Resolve(ctx, block, layout)
	if err == nil {
		return h, nil
	}
	if ctx.Err() != nil {
		return Height{}, ctx.Err()
	}
	return f.Backup.Resolve(ctx, block, layout)
}

// ResolveBatch measures the whole run with the primary resolver, then the
// backup.
func (f *Fallback) ResolveBatch(ctx context.Context, blocks []*document.BlockNode, layout Context) ([]Height, error) {
	heights, err := ResolveAll(ctx, f.Primary, blocks, layout)
	if err == nil {
		return heights, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return ResolveAll(ctx, f.Backup, blocks, layout)
}
