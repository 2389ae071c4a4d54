package measure

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/go-text/typesetting/di"
	gofont "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/math/fixed"

	"github.com/docfold/docfold/document"
)

// TypesetResolver measures text blocks by shaping them with a real font
// face and greedily filling lines at the configured content width. It is
// the live measurement mode for hosts that have font data available.
type TypesetResolver struct {
	mu     sync.Mutex
	face   *gofont.Face
	shaper shaping.HarfbuzzShaper
	styles Stylesheet
}

// NewTypesetResolver builds a resolver over raw TTF/OTF font data.
func NewTypesetResolver(fontData []byte, styles Stylesheet) (*TypesetResolver, error) {
	face, err := gofont.ParseTTF(bytes.NewReader(fontData))
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	if styles == nil {
		styles = DefaultStylesheet()
	}
	return &TypesetResolver{face: face, styles: styles}, nil
}

// Resolve shapes the block's text and reports its layout box.
func (r *TypesetResolver) Resolve(ctx context.Context, block *document.BlockNode, layout Context) (Height, error) {
	if err := ctx.Err(); err != nil {
		return Height{}, err
	}
	if block.IsBreakMarker() {
		return Height{}, nil
	}
	layout = layout.withDefaults()
	style := r.styles.styleFor(block.Kind)
	h := Height{MarginTop: style.MarginTop, MarginBottom: style.MarginBottom}

	switch block.Kind {
	case document.KindHeading:
		font := layout.FontSize * HeadingScale(block.Level)
		h.Content = float64(r.wrappedLines(block.Text, font, layout.ContentWidth))*font*layout.LineHeight + style.Padding
	case document.KindParagraph, document.KindQuote, document.KindMath, document.KindList:
		font := layout.FontSize * scaleOr1(style.FontScale)
		h.Content = float64(r.wrappedLines(block.Text, font, layout.ContentWidth))*font*layout.LineHeight + style.Padding
	case document.KindTable:
		font := layout.FontSize * scaleOr1(style.FontScale)
		lines := r.wrappedLines(block.Text, font, layout.ContentWidth)
		rows := max(block.Rows, 1)
		h.Content = float64(lines)*font*layout.LineHeight + float64(rows)*tableCellPadding + style.Padding
	case document.KindImage:
		h.Content = imageDefaultHeight
	case document.KindCode:
		// Code does not wrap; the editor scrolls it horizontally.
		font := layout.FontSize * scaleOr1(style.FontScale)
		lines := strings.Count(block.Text, "\n") + 1
		h.Content = float64(lines)*font*layout.LineHeight + style.Padding
	case document.KindRule:
		h.Content = ruleHeight
	default:
		h.Content = unknownKindHeight
	}
	return h, nil
}

// wrappedLines counts the lines the text occupies when greedily filled at
// the given width. Hard newlines always start a new line.
func (r *TypesetResolver) wrappedLines(text string, fontSize, contentWidth float64) int {
	text = strings.TrimRight(text, "\n")
	if strings.TrimSpace(text) == "" {
		return 1
	}
	lines := 0
	for _, seg := range strings.Split(text, "\n") {
		lines += r.fillSegment([]rune(seg), fontSize, contentWidth)
	}
	if lines < 1 {
		lines = 1
	}
	return lines
}

// fillSegment shapes one hard line and walks the glyph advances, breaking
// at the last space before each overflow the way a greedy word-wrapper
// would.
func (r *TypesetResolver) fillSegment(runes []rune, fontSize, contentWidth float64) int {
	if len(runes) == 0 {
		return 1
	}
	script := detectScript(runes)
	input := shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: scriptDirection(script),
		Face:      r.face,
		Size:      fixed.Int26_6(fontSize * 64),
		Script:    script,
		Language:  language.DefaultLanguage(),
	}

	r.mu.Lock()
	output := r.shaper.Shape(input)
	r.mu.Unlock()

	lines := 1
	lineWidth := 0.0
	widthAtBreak := 0.0
	breakable := false
	for _, g := range output.Glyphs {
		adv := float64(g.XAdvance) / 64.0
		if lineWidth > 0 && lineWidth+adv > contentWidth {
			lines++
			if breakable && widthAtBreak < lineWidth {
				// Carry the partial word onto the new line.
				lineWidth -= widthAtBreak
			} else {
				lineWidth = 0
			}
			breakable = false
			widthAtBreak = 0
		}
		lineWidth += adv
		cluster := int(g.ClusterIndex)
		if cluster >= 0 && cluster < len(runes) && unicode.IsSpace(runes[cluster]) {
			widthAtBreak = lineWidth
			breakable = true
		}
	}
	return lines
}

func scriptDirection(script language.Script) di.Direction {
	switch script {
	case language.Arabic, language.Hebrew, language.Syriac, language.Thaana, language.Nko:
		return di.DirectionRTL
	default:
		return di.DirectionLTR
	}
}

// detectScript picks the dominant script of the text so shaping uses the
// right rules. Mixed-script blocks resolve to whichever script has the
// most runes.
func detectScript(runes []rune) language.Script {
	counts := make(map[language.Script]int)
	maxCount := 0
	best := language.Latin
	for _, r := range runes {
		s := scriptFromRune(r)
		if s == language.Unknown {
			continue
		}
		counts[s]++
		if counts[s] > maxCount {
			maxCount = counts[s]
			best = s
		}
	}
	return best
}

func scriptFromRune(r rune) language.Script {
	switch {
	case unicode.Is(unicode.Latin, r):
		return language.Latin
	case unicode.Is(unicode.Han, r):
		return language.Han
	case unicode.Is(unicode.Hiragana, r):
		return language.Hiragana
	case unicode.Is(unicode.Katakana, r):
		return language.Katakana
	case unicode.Is(unicode.Hangul, r):
		return language.Hangul
	case unicode.Is(unicode.Arabic, r):
		return language.Arabic
	case unicode.Is(unicode.Hebrew, r):
		return language.Hebrew
	case unicode.Is(unicode.Cyrillic, r):
		return language.Cyrillic
	case unicode.Is(unicode.Greek, r):
		return language.Greek
	case unicode.Is(unicode.Thai, r):
		return language.Thai
	case unicode.Is(unicode.Devanagari, r):
		return language.Devanagari
	}
	return language.Unknown
}
