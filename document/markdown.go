package document

import (
	"fmt"
	"strings"

	mathjax "github.com/litao91/goldmark-mathjax"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	meta "github.com/yuin/goldmark-meta"
)

// FromMarkdown parses a markdown document into a block tree using goldmark.
// Front matter supplies the title; GFM tables and $$ math blocks are
// recognized. Inline markup is flattened into plain text for measurement.
func FromMarkdown(source []byte) (*Tree, error) {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM, mathjax.MathJax, meta.Meta),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)
	pctx := parser.NewContext()
	doc := md.Parser().Parse(text.NewReader(source), parser.WithContext(pctx))

	tree := NewTree()
	if data := meta.Get(pctx); data != nil {
		if title, ok := data["title"].(string); ok {
			tree.Title = title
		}
	}

	if err := walkMarkdown(tree, doc, source); err != nil {
		return nil, fmt.Errorf("build tree from markdown: %w", err)
	}
	return tree, nil
}

func walkMarkdown(tree *Tree, node ast.Node, source []byte) error {
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		var block *BlockNode
		switch n := child.(type) {
		case *ast.Heading:
			block = NewBlock(KindHeading)
			block.Level = n.Level
			block.Text = string(n.Text(source))
		case *ast.Paragraph:
			block = markdownParagraph(n, source)
		case *ast.TextBlock:
			block = NewBlock(KindParagraph)
			block.Text = flattenInline(n, source)
		case *ast.List:
			block = NewBlock(KindList)
			block.Items, block.Text = markdownListItems(n, source)
		case *east.Table:
			block = NewBlock(KindTable)
			block.Rows, block.Text = markdownTable(n, source)
		case *ast.FencedCodeBlock:
			block = NewBlock(KindCode)
			block.Language = string(n.Language(source))
			block.Text = linesValue(n, source)
		case *ast.CodeBlock:
			block = NewBlock(KindCode)
			block.Text = linesValue(n, source)
		case *ast.Blockquote:
			block = NewBlock(KindQuote)
			block.Text = flattenChildren(n, source)
		case *ast.ThematicBreak:
			block = NewBlock(KindRule)
		case *mathjax.MathBlock:
			block = NewBlock(KindMath)
			block.Text = linesValue(n, source)
		case *ast.HTMLBlock:
			block = NewBlock(KindParagraph)
			block.Text = linesValue(n, source)
		default:
			// Unknown block kinds degrade to paragraphs so nothing is
			// silently dropped from the page flow.
			block = NewBlock(KindParagraph)
			block.Text = string(child.Text(source))
		}
		if block == nil {
			continue
		}
		block.Source = nodeMarkup(child, source)
		if block.Kind != KindRule && strings.TrimSpace(block.Text) == "" && block.Kind != KindImage {
			continue
		}
		tree.Blocks = append(tree.Blocks, block)
	}
	return nil
}

// markdownParagraph flattens a paragraph's inline children. A paragraph
// whose only child is an image becomes an image block.
func markdownParagraph(n *ast.Paragraph, source []byte) *BlockNode {
	if n.ChildCount() == 1 {
		if img, ok := n.FirstChild().(*ast.Image); ok {
			block := NewBlock(KindImage)
			block.Text = string(img.Text(source))
			return block
		}
	}
	block := NewBlock(KindParagraph)
	block.Text = flattenInline(n, source)
	return block
}

// flattenInline concatenates inline text segments the way the rendered
// paragraph would read, with soft breaks as spaces.
func flattenInline(n ast.Node, source []byte) string {
	var sb strings.Builder
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		if t, ok := child.(*ast.Text); ok {
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
			continue
		}
		sb.WriteString(string(child.Text(source)))
	}
	return sb.String()
}

func flattenChildren(n ast.Node, source []byte) string {
	var parts []string
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		s := flattenInline(child, source)
		if s == "" {
			s = string(child.Text(source))
		}
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

func markdownListItems(n *ast.List, source []byte) (int, string) {
	var parts []string
	count := 0
	for item := n.FirstChild(); item != nil; item = item.NextSibling() {
		count++
		parts = append(parts, flattenChildren(item, source))
	}
	return count, strings.Join(parts, "\n")
}

func markdownTable(n *east.Table, source []byte) (int, string) {
	var parts []string
	rows := 0
	for row := n.FirstChild(); row != nil; row = row.NextSibling() {
		rows++
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, flattenInline(cell, source))
		}
		parts = append(parts, strings.Join(cells, " | "))
	}
	return rows, strings.Join(parts, "\n")
}

// linesValue joins the raw source lines a leaf block spans.
func linesValue(n ast.Node, source []byte) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(source))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// nodeMarkup recovers the raw markup span covered by a block, including
// container blocks that carry no line segments of their own.
func nodeMarkup(n ast.Node, source []byte) string {
	start, stop := -1, -1
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if node.Type() == ast.TypeBlock {
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				if start < 0 || seg.Start < start {
					start = seg.Start
				}
				if seg.Stop > stop {
					stop = seg.Stop
				}
			}
		}
		if t, ok := node.(*ast.Text); ok {
			if start < 0 || t.Segment.Start < start {
				start = t.Segment.Start
			}
			if t.Segment.Stop > stop {
				stop = t.Segment.Stop
			}
		}
		return ast.WalkContinue, nil
	})
	if start < 0 || stop <= start || stop > len(source) {
		return ""
	}
	return strings.TrimRight(string(source[start:stop]), "\n")
}
