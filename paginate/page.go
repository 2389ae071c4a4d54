package paginate

import "github.com/docfold/docfold/document"

// Page is one fixed-size page produced by a pack run: an ordered slice of
// blocks (or split fragments), plus the manual-break metadata the
// presentation layer needs. Pages are created fresh on every run and never
// mutated afterwards.
type Page struct {
	// Blocks in reading order. Fragments of a split block share the source
	// block's ID; continuation fragments carry Continued=true.
	Blocks []*document.BlockNode

	// HasManualBreakBefore is true when this page starts at a user-forced
	// break marker.
	HasManualBreakBefore bool

	// BreakIndex is the position of that marker in the document-order list
	// of break markers at pack time, or -1.
	BreakIndex int

	// ContentHeight is the consumed vertical space, collapsed margins
	// included.
	ContentHeight float64
}

// BlockCount returns the number of blocks placed on the page.
func (p *Page) BlockCount() int { return len(p.Blocks) }
