package document

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// FromHTML parses an HTML fragment or page into a block tree. Only the
// block-level structure survives; inline markup is flattened to text.
func FromHTML(source []byte) (*Tree, error) {
	doc, err := html.Parse(bytes.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("build tree from html: %w", err)
	}
	tree := NewTree()
	walkHTML(tree, doc)
	return tree, nil
}

func walkHTML(tree *Tree, n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Title:
			if tree.Title == "" {
				tree.Title = extractText(n)
			}
			return
		case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
			appendHTMLBlock(tree, htmlHeading(n), n)
			return
		case atom.P:
			appendHTMLBlock(tree, htmlParagraph(n), n)
			return
		case atom.Ul, atom.Ol:
			appendHTMLBlock(tree, htmlList(n), n)
			return
		case atom.Table:
			appendHTMLBlock(tree, htmlTable(n), n)
			return
		case atom.Blockquote:
			block := NewBlock(KindQuote)
			block.Text = extractText(n)
			appendHTMLBlock(tree, block, n)
			return
		case atom.Pre:
			block := NewBlock(KindCode)
			block.Text = strings.TrimRight(rawText(n), "\n")
			block.Language = codeLanguage(n)
			appendHTMLBlock(tree, block, n)
			return
		case atom.Hr:
			appendHTMLBlock(tree, NewBlock(KindRule), n)
			return
		case atom.Img:
			block := NewBlock(KindImage)
			block.Text = attrValue(n, "alt")
			appendHTMLBlock(tree, block, n)
			return
		case atom.Script, atom.Style:
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkHTML(tree, c)
	}
}

func appendHTMLBlock(tree *Tree, block *BlockNode, n *html.Node) {
	if block == nil {
		return
	}
	block.Source = renderHTMLNode(n)
	if block.Kind != KindRule && block.Kind != KindImage && strings.TrimSpace(block.Text) == "" {
		return
	}
	tree.Blocks = append(tree.Blocks, block)
}

func htmlHeading(n *html.Node) *BlockNode {
	block := NewBlock(KindHeading)
	block.Text = extractText(n)
	switch n.DataAtom {
	case atom.H1:
		block.Level = 1
	case atom.H2:
		block.Level = 2
	case atom.H3:
		block.Level = 3
	case atom.H4:
		block.Level = 4
	case atom.H5:
		block.Level = 5
	default:
		block.Level = 6
	}
	return block
}

func htmlParagraph(n *html.Node) *BlockNode {
	// A paragraph wrapping a single image is an image block.
	if img := soleImageChild(n); img != nil {
		block := NewBlock(KindImage)
		block.Text = attrValue(img, "alt")
		return block
	}
	block := NewBlock(KindParagraph)
	block.Text = extractText(n)
	return block
}

func htmlList(n *html.Node) *BlockNode {
	block := NewBlock(KindList)
	var parts []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Li {
			block.Items++
			parts = append(parts, extractText(c))
		}
	}
	block.Text = strings.Join(parts, "\n")
	return block
}

func htmlTable(n *html.Node) *BlockNode {
	block := NewBlock(KindTable)
	var parts []string
	var walkRows func(*html.Node)
	walkRows = func(node *html.Node) {
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.DataAtom == atom.Tr {
				block.Rows++
				parts = append(parts, rowText(c))
				continue
			}
			walkRows(c)
		}
	}
	walkRows(n)
	block.Text = strings.Join(parts, "\n")
	return block
}

func rowText(tr *html.Node) string {
	var cells []string
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.DataAtom == atom.Td || c.DataAtom == atom.Th) {
			cells = append(cells, extractText(c))
		}
	}
	return strings.Join(cells, " | ")
}

func soleImageChild(n *html.Node) *html.Node {
	var img *html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch {
		case c.Type == html.ElementNode && c.DataAtom == atom.Img:
			if img != nil {
				return nil
			}
			img = c
		case c.Type == html.TextNode && strings.TrimSpace(c.Data) == "":
		default:
			return nil
		}
	}
	return img
}

// codeLanguage reads the conventional class="language-xx" marker from a
// pre block or its inner code element.
func codeLanguage(n *html.Node) string {
	for _, class := range strings.Fields(attrValue(n, "class")) {
		if lang, ok := strings.CutPrefix(class, "language-"); ok {
			return lang
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Code {
			return codeLanguage(c)
		}
	}
	return ""
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func extractText(n *html.Node) string {
	var sb strings.Builder
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// rawText is extractText without whitespace normalization, for code blocks
// where line structure matters.
func rawText(n *html.Node) string {
	var sb strings.Builder
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)
	return sb.String()
}

func renderHTMLNode(n *html.Node) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return ""
	}
	return buf.String()
}
