package geometry

import (
	"math"
	"testing"
)

func TestResolve(t *testing.T) {
	g := Resolve(A4, Margins{Top: 25.4, Bottom: 25.4, Left: 25.4, Right: 25.4}, 96)

	// 210mm at 96dpi.
	if got := g.PageWidth; math.Abs(got-793.7) > 0.1 {
		t.Errorf("PageWidth = %.2f, want ~793.70", got)
	}
	if got := g.PageHeight; math.Abs(got-1122.52) > 0.1 {
		t.Errorf("PageHeight = %.2f, want ~1122.52", got)
	}
	// One inch margins are exactly 96px.
	if g.Top != 96 || g.Bottom != 96 {
		t.Errorf("margins = %.2f/%.2f, want 96/96", g.Top, g.Bottom)
	}
	if got := g.ContentHeight(); math.Abs(got-930.52) > 0.1 {
		t.Errorf("ContentHeight = %.2f, want ~930.52", got)
	}
	if got := g.ContentWidth(); math.Abs(got-601.7) > 0.1 {
		t.Errorf("ContentWidth = %.2f, want ~601.70", got)
	}
	if !g.Valid() {
		t.Error("A4 with one inch margins should be valid")
	}
}

func TestResolve_DefaultDPI(t *testing.T) {
	g := Resolve(A4, Margins{}, 0)
	if g.DPI != DefaultDPI {
		t.Errorf("DPI = %.0f, want %v", g.DPI, DefaultDPI)
	}
}

func TestGeometry_Valid(t *testing.T) {
	g := Resolve(A5, Margins{Top: 120, Bottom: 120}, 96)
	if g.Valid() {
		t.Error("margins taller than the page should be invalid")
	}
}

func TestPaperSizeByName(t *testing.T) {
	p, err := PaperSizeByName("Letter")
	if err != nil {
		t.Fatalf("PaperSizeByName failed: %v", err)
	}
	if p.Width != 215.9 {
		t.Errorf("Letter width = %.1f", p.Width)
	}
	if p2, err := PaperSizeByName("a4"); err != nil || p2.Name != "A4" {
		t.Errorf("lowercase lookup = %v, %v", p2, err)
	}
	if _, err := PaperSizeByName("Tabloid"); err == nil {
		t.Error("unknown size should error")
	}
}
