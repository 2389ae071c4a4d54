package measure

import (
	"context"
	"math"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/docfold/docfold/document"
)

// Heuristic height constants, in px at the default body size.
const (
	imageDefaultHeight = 240
	ruleHeight         = 2
	tableCellPadding   = 10
	unknownKindHeight  = 120
)

// HeuristicResolver estimates heights from a static per-kind table without
// any rendering backend. Paragraph-like kinds use a character-count line
// estimate; lists and tables use per-row constants. It never fails, which
// makes it the degraded-mode backstop for every other resolver.
type HeuristicResolver struct {
	Styles Stylesheet
}

// NewHeuristicResolver returns a resolver with the default stylesheet.
func NewHeuristicResolver() *HeuristicResolver {
	return &HeuristicResolver{Styles: DefaultStylesheet()}
}

// Resolve estimates the block's layout box.
func (r *HeuristicResolver) Resolve(_ context.Context, block *document.BlockNode, layout Context) (Height, error) {
	if block.IsBreakMarker() {
		return Height{}, nil
	}
	layout = layout.withDefaults()
	style := r.styles().styleFor(block.Kind)
	h := Height{MarginTop: style.MarginTop, MarginBottom: style.MarginBottom}

	switch block.Kind {
	case document.KindHeading:
		font := layout.FontSize * HeadingScale(block.Level)
		h.Content = float64(estimateLines(block.Text, layout.ContentWidth, font))*font*layout.LineHeight + style.Padding
	case document.KindParagraph, document.KindQuote, document.KindMath:
		font := layout.FontSize * scaleOr1(style.FontScale)
		h.Content = float64(estimateLines(block.Text, layout.ContentWidth, font))*font*layout.LineHeight + style.Padding
	case document.KindList:
		rowHeight := layout.FontSize * layout.LineHeight
		h.Content = float64(max(block.Items, 1))*rowHeight + style.Padding
	case document.KindTable:
		rowHeight := layout.FontSize*layout.LineHeight + tableCellPadding
		h.Content = float64(max(block.Rows, 1))*rowHeight + style.Padding
	case document.KindImage:
		h.Content = imageDefaultHeight
	case document.KindCode:
		font := layout.FontSize * scaleOr1(style.FontScale)
		lines := strings.Count(block.Text, "\n") + 1
		h.Content = float64(lines)*font*layout.LineHeight + style.Padding
	case document.KindRule:
		h.Content = ruleHeight
	default:
		// Unknown kinds get a tall default so they overflow early rather
		// than overlap a page edge.
		h.Content = unknownKindHeight
	}
	return h, nil
}

func (r *HeuristicResolver) styles() Stylesheet {
	if r.Styles != nil {
		return r.Styles
	}
	return DefaultStylesheet()
}

// estimateLines is the character-count wrap estimate: columns available at
// half an em per character, CJK and other wide runes counting double.
func estimateLines(text string, contentWidth, fontSize float64) int {
	cols := runewidth.StringWidth(strings.TrimSpace(text))
	if cols == 0 {
		return 1
	}
	charsPerLine := int(math.Floor(contentWidth / (fontSize * 0.5)))
	if charsPerLine < 1 {
		charsPerLine = 1
	}
	return int(math.Ceil(float64(cols) / float64(charsPerLine)))
}

func scaleOr1(scale float64) float64 {
	if scale <= 0 {
		return 1
	}
	return scale
}
