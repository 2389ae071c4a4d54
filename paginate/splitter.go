package paginate

import (
	"math"
	"unicode"

	"github.com/docfold/docfold/document"
	"github.com/docfold/docfold/measure"
)

// Splitter cuts an oversized paragraph into two fragments at a word
// boundary so the text can span a page break. Only paragraphs split;
// every other kind moves or overflows whole.
type Splitter struct {
	// MinRatio is the fraction of the block's height that must be
	// available for a split to be worth it. Below it the remaining space
	// is a sliver and the whole block moves to the next page.
	MinRatio float64
	// MaxRatio caps the first fragment so the second is never near-empty.
	MaxRatio float64
	// MinRunes is the minimum viable fragment length.
	MinRunes int
}

// NewSplitter returns a splitter with the default thresholds.
func NewSplitter() *Splitter {
	return &Splitter{MinRatio: 0.15, MaxRatio: 0.9, MinRunes: 20}
}

// Split is a successful cut: two fragments and their prorated heights.
// The first fragment keeps the source block's top margin, the second its
// bottom margin; the facing margins at the cut are zero.
type Split struct {
	First        *document.BlockNode
	Second       *document.BlockNode
	FirstHeight  measure.Height
	SecondHeight measure.Height
}

// TrySplit attempts to cut block so its first part fits in available px.
// It reports false when the block is not a paragraph, the available space
// is a sliver, no word boundary lands near the target cut, or either part
// would be below the minimum viable length. Callers treat false as "move
// the whole block".
func (s *Splitter) TrySplit(block *document.BlockNode, available float64, h measure.Height) (Split, bool) {
	if block == nil || block.Kind != document.KindParagraph {
		return Split{}, false
	}
	if available <= 0 || h.Content <= 0 {
		return Split{}, false
	}
	runes := []rune(block.Text)
	if len(runes) < 2*s.minRunes() {
		return Split{}, false
	}

	ratio := available / h.Content
	if ratio < s.minRatio() {
		return Split{}, false
	}
	if ratio > s.maxRatio() {
		ratio = s.maxRatio()
	}

	cut := int(math.Floor(float64(len(runes)) * ratio))
	if cut >= len(runes) {
		cut = len(runes) - 1
	}
	// Back up to the nearest preceding space so the cut never lands
	// mid-word.
	for cut > 0 && !unicode.IsSpace(runes[cut]) {
		cut--
	}
	if cut <= 0 {
		return Split{}, false
	}

	firstText := string(runes[:cut])
	secondText := string(runes[cut+1:])
	if len([]rune(firstText)) < s.minRunes() || len([]rune(secondText)) < s.minRunes() {
		return Split{}, false
	}

	actual := float64(cut) / float64(len(runes))
	firstContent := h.Content * actual
	secondContent := h.Content - firstContent

	first := block.Clone()
	first.Text = firstText
	first.MarginTop = h.MarginTop
	first.MarginBottom = 0

	second := block.Clone()
	second.Text = secondText
	second.MarginTop = 0
	second.MarginBottom = h.MarginBottom
	second.Continued = true

	return Split{
		First:        first,
		Second:       second,
		FirstHeight:  measure.Height{Content: firstContent, MarginTop: h.MarginTop},
		SecondHeight: measure.Height{Content: secondContent, MarginBottom: h.MarginBottom},
	}, true
}

func (s *Splitter) minRatio() float64 {
	if s.MinRatio > 0 {
		return s.MinRatio
	}
	return 0.15
}

func (s *Splitter) maxRatio() float64 {
	if s.MaxRatio > 0 {
		return s.MaxRatio
	}
	return 0.9
}

func (s *Splitter) minRunes() int {
	if s.MinRunes > 0 {
		return s.MinRunes
	}
	return 20
}
