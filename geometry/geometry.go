// Package geometry fixes the page coordinate system for a pagination run:
// paper size and margins in millimetres, resolved to pixels at a display DPI.
package geometry

import (
	"fmt"
	"strings"
)

// PaperSize holds physical page dimensions in millimetres.
type PaperSize struct {
	Width  float64
	Height float64
	Name   string
}

// Standard paper sizes.
var (
	A4     = PaperSize{Width: 210, Height: 297, Name: "A4"}
	Letter = PaperSize{Width: 215.9, Height: 279.4, Name: "Letter"}
	Legal  = PaperSize{Width: 215.9, Height: 355.6, Name: "Legal"}
	A3     = PaperSize{Width: 297, Height: 420, Name: "A3"}
	A5     = PaperSize{Width: 148, Height: 210, Name: "A5"}
)

// PaperSizeByName resolves a paper size from its conventional name,
// ignoring case.
func PaperSizeByName(name string) (PaperSize, error) {
	for _, p := range []PaperSize{A4, Letter, Legal, A3, A5} {
		if strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}
	return PaperSize{}, fmt.Errorf("unknown paper size %q", name)
}

// Margins defines page margins in millimetres.
type Margins struct {
	Top, Bottom, Left, Right float64
}

// DefaultDPI is the CSS reference pixel density.
const DefaultDPI = 96.0

const mmPerInch = 25.4

// Geometry is the resolved pixel coordinate system for one pagination run.
// It is immutable: changing paper, margins, or DPI means a new run.
type Geometry struct {
	PageWidth  float64 // px
	PageHeight float64 // px
	Top        float64 // px
	Bottom     float64 // px
	Left       float64 // px
	Right      float64 // px
	DPI        float64
}

// Resolve converts a physical page description to pixels at the given DPI.
// A non-positive dpi falls back to DefaultDPI.
func Resolve(paper PaperSize, margins Margins, dpi float64) Geometry {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	px := func(mm float64) float64 { return mm / mmPerInch * dpi }
	return Geometry{
		PageWidth:  px(paper.Width),
		PageHeight: px(paper.Height),
		Top:        px(margins.Top),
		Bottom:     px(margins.Bottom),
		Left:       px(margins.Left),
		Right:      px(margins.Right),
		DPI:        dpi,
	}
}

// Default returns A4 geometry with one-inch margins at DefaultDPI.
func Default() Geometry {
	return Resolve(A4, Margins{Top: 25.4, Bottom: 25.4, Left: 25.4, Right: 25.4}, DefaultDPI)
}

// ContentHeight returns the vertical space available to blocks on one page.
func (g Geometry) ContentHeight() float64 {
	return g.PageHeight - g.Top - g.Bottom
}

// ContentWidth returns the horizontal space available to blocks.
func (g Geometry) ContentWidth() float64 {
	return g.PageWidth - g.Left - g.Right
}

// Valid reports whether the geometry leaves usable content space.
func (g Geometry) Valid() bool {
	return g.ContentHeight() > 0 && g.ContentWidth() > 0
}
