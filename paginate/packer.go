// Package paginate assigns an ordered block sequence to fixed-size pages.
// The packer is a single greedy left-to-right pass with CSS-style adjacent
// margin collapsing; manual break markers force page boundaries and
// oversized paragraphs are split across pages at word boundaries.
package paginate

import (
	"github.com/docfold/docfold/document"
	"github.com/docfold/docfold/geometry"
	"github.com/docfold/docfold/measure"
)

// Packer produces page assignments. It is stateless across runs; the same
// inputs always yield the same pages.
type Packer struct {
	splitter *Splitter
}

// Option configures a Packer.
type Option func(*Packer)

// WithSplitter replaces the overflow splitter. Passing nil disables
// splitting entirely; oversized paragraphs then behave like atomic blocks.
func WithSplitter(s *Splitter) Option {
	return func(p *Packer) { p.splitter = s }
}

// NewPacker returns a packer with the default overflow splitter.
func NewPacker(opts ...Option) *Packer {
	p := &Packer{splitter: NewSplitter()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Stats summarizes the degradations a pack run needed.
type Stats struct {
	// Splits counts successful overflow splits.
	Splits int
	// Oversized counts blocks taller than a full page that could not be
	// split and were forced onto pages of their own.
	Oversized int
}

type workItem struct {
	block  *document.BlockNode
	height measure.Height
}

// Pack assigns blocks to pages. heights is index-aligned with blocks;
// missing trailing heights measure as zero so a short slice degrades to
// stacking rather than failing. Break markers consume no space: each one
// closes the current page (if non-empty) and stamps the next page as
// manually broken.
//
// Blocks are never dropped or duplicated: every content block appears on
// exactly one page, either whole or as a contiguous run of fragments.
func (p *Packer) Pack(blocks []*document.BlockNode, heights []measure.Height, geo geometry.Geometry) ([]*Page, Stats) {
	available := geo.ContentHeight()
	if available < 0 {
		available = 0
	}

	queue := make([]workItem, len(blocks))
	for i, b := range blocks {
		var h measure.Height
		if i < len(heights) {
			h = heights[i]
		}
		queue[i] = workItem{block: b, height: h}
	}

	var (
		pages            []*Page
		current          []*document.BlockNode
		currentHeight    float64
		prevMarginBottom float64
		pendingBreak     bool
		pendingIndex     = -1
		breakCounter     int
		stats            Stats
	)

	// closePage publishes the accumulated page with the break flags that
	// were pending when it started. Callers adjust the pending flags for
	// the page that follows.
	closePage := func() {
		pages = append(pages, &Page{
			Blocks:               current,
			HasManualBreakBefore: pendingBreak,
			BreakIndex:           pendingIndex,
			ContentHeight:        currentHeight,
		})
		current = nil
		currentHeight = 0
		prevMarginBottom = 0
	}

	for i := 0; i < len(queue); i++ {
		block, h := queue[i].block, queue[i].height

		if block.IsBreakMarker() {
			if len(current) > 0 {
				closePage()
			}
			// Consecutive markers collapse; the latest index wins.
			pendingBreak = true
			pendingIndex = breakCounter
			breakCounter++
			continue
		}

		leading := h.MarginTop
		if len(current) > 0 {
			leading = max(prevMarginBottom, h.MarginTop)
		}

		if len(current) > 0 && currentHeight+leading+h.Content > available {
			// The block overflows the partially filled page. Try to fill
			// the remaining space with its head before giving the space
			// up.
			if p.splitter != nil {
				remaining := available - currentHeight - leading
				if split, ok := p.splitter.TrySplit(block, remaining, h); ok {
					stats.Splits++
					current = append(current, split.First)
					currentHeight += leading + split.FirstHeight.Content
					prevMarginBottom = split.FirstHeight.MarginBottom
					queue = insertItem(queue, i+1, workItem{split.Second, split.SecondHeight})
					continue
				}
			}
			closePage()
			pendingBreak = false
			pendingIndex = -1
			leading = h.MarginTop
		}

		if currentHeight+leading+h.Content > available {
			// Fresh page and the block still does not fit.
			if p.splitter != nil {
				if split, ok := p.splitter.TrySplit(block, available-leading, h); ok {
					stats.Splits++
					current = append(current, split.First)
					currentHeight += split.FirstHeight.MarginTop + split.FirstHeight.Content
					prevMarginBottom = split.FirstHeight.MarginBottom
					queue = insertItem(queue, i+1, workItem{split.Second, split.SecondHeight})
					continue
				}
			}
			// Unsplittable oversized block: force it onto its own page
			// rather than dropping it. The next block's overflow check
			// closes the page.
			stats.Oversized++
		}

		current = append(current, block)
		currentHeight += leading + h.Content
		prevMarginBottom = h.MarginBottom
	}

	if len(current) > 0 {
		closePage()
	}
	return pages, stats
}

func insertItem(queue []workItem, at int, it workItem) []workItem {
	queue = append(queue, workItem{})
	copy(queue[at+1:], queue[at:])
	queue[at] = it
	return queue
}
