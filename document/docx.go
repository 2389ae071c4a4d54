package document

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fumiama/go-docx"
)

// FromDocx parses a .docx stream into a block tree. go-docx needs a
// ReadSeeker plus size, so the stream is spooled to a temp file first.
// Paragraph styles drive the block kinds: Heading1..6 become headings,
// consecutive ListParagraph entries merge into one list block, Quote
// styles become quotes, everything else is a paragraph.
func FromDocx(r io.Reader) (*Tree, error) {
	tmp, err := os.CreateTemp("", "docfold-docx-*.docx")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("seek temp file: %w", err)
	}

	doc, err := docx.Parse(tmp, size)
	tmp.Close()
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	tree := NewTree()
	var list *BlockNode

	flushList := func() {
		if list != nil {
			tree.Blocks = append(tree.Blocks, list)
			list = nil
		}
	}

	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		text := docxParagraphText(para)
		if text == "" {
			continue
		}
		style := docxStyle(para)

		if strings.EqualFold(style, "ListParagraph") {
			if list == nil {
				list = NewBlock(KindList)
			}
			list.Items++
			if list.Text != "" {
				list.Text += "\n"
			}
			list.Text += text
			list.Source = list.Text
			continue
		}
		flushList()

		switch {
		case strings.EqualFold(style, "Title") && tree.Title == "":
			tree.Title = text
			continue
		case strings.EqualFold(style, "Quote") || strings.EqualFold(style, "IntenseQuote"):
			block := NewBlock(KindQuote)
			block.Text = text
			block.Source = text
			tree.Blocks = append(tree.Blocks, block)
			continue
		}

		if level := docxHeadingLevel(style); level > 0 {
			block := NewBlock(KindHeading)
			block.Level = level
			block.Text = text
			block.Source = text
			tree.Blocks = append(tree.Blocks, block)
			continue
		}

		block := NewBlock(KindParagraph)
		block.Text = text
		block.Source = text
		tree.Blocks = append(tree.Blocks, block)
	}
	flushList()

	return tree, nil
}

func docxStyle(para *docx.Paragraph) string {
	if para.Properties == nil || para.Properties.Style == nil {
		return ""
	}
	return para.Properties.Style.Val
}

func docxHeadingLevel(style string) int {
	for level := 1; level <= 6; level++ {
		if strings.EqualFold(style, fmt.Sprintf("Heading%d", level)) ||
			strings.EqualFold(style, fmt.Sprintf("heading %d", level)) {
			return level
		}
	}
	return 0
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
