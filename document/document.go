// Package document defines the block tree the pagination engine operates on:
// an ordered sequence of top-level blocks with stable identities, opaque
// serialized content, and zero-height page-break markers.
package document

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Kind identifies the block variant.
type Kind string

const (
	KindHeading   Kind = "heading"
	KindParagraph Kind = "paragraph"
	KindList      Kind = "list"
	KindTable     Kind = "table"
	KindImage     Kind = "image"
	KindQuote     Kind = "quote"
	KindCode      Kind = "code"
	KindRule      Kind = "rule"
	KindMath      Kind = "math"

	// KindBreak is the manual page-break marker. It carries no content and
	// consumes no page space; its position in the tree is the source of
	// truth for user-forced page boundaries.
	KindBreak Kind = "page-break"
)

// BlockNode is one top-level content unit. The tree owns the node; pages
// reference nodes (or split fragments of them) and never copy the tree.
type BlockNode struct {
	ID   string `json:"id"`
	Kind Kind   `json:"kind"`

	// Source is the opaque serialized content, enough to losslessly
	// reconstruct the block in its original markup.
	Source string `json:"source,omitempty"`

	// Text is the plain text used for measurement and overflow splitting.
	Text string `json:"text,omitempty"`

	Level    int    `json:"level,omitempty"`    // heading level 1..6
	Items    int    `json:"items,omitempty"`    // list item count
	Rows     int    `json:"rows,omitempty"`     // table row count
	Language string `json:"language,omitempty"` // code block language

	// Resolved vertical margins in pixels, filled in during measurement.
	MarginTop    float64 `json:"margin_top,omitempty"`
	MarginBottom float64 `json:"margin_bottom,omitempty"`

	// Continued marks a split fragment that continues the same block from
	// the previous page. It is set only on packer output, never on tree
	// nodes.
	Continued bool `json:"continued,omitempty"`
}

// NewBlock returns a block of the given kind with a fresh identity.
func NewBlock(kind Kind) *BlockNode {
	return &BlockNode{ID: uuid.NewString(), Kind: kind}
}

// NewBreakMarker returns a manual page-break marker node.
func NewBreakMarker() *BlockNode {
	return NewBlock(KindBreak)
}

// IsBreakMarker reports whether the node is a manual page-break marker.
func (b *BlockNode) IsBreakMarker() bool { return b.Kind == KindBreak }

// Clone returns a deep copy of the node.
func (b *BlockNode) Clone() *BlockNode {
	if b == nil {
		return nil
	}
	c := *b
	return &c
}

// Tree is the ordered document tree. Order is reading order and is
// significant; pagination treats the tree as an immutable snapshot.
type Tree struct {
	Title  string       `json:"title,omitempty"`
	Blocks []*BlockNode `json:"blocks"`
}

// NewTree builds a tree over the given blocks.
func NewTree(blocks ...*BlockNode) *Tree {
	return &Tree{Blocks: blocks}
}

// Len returns the number of blocks, break markers included.
func (t *Tree) Len() int { return len(t.Blocks) }

// Clone returns a deep copy of the tree.
func (t *Tree) Clone() *Tree {
	if t == nil {
		return nil
	}
	c := &Tree{Title: t.Title, Blocks: make([]*BlockNode, len(t.Blocks))}
	for i, b := range t.Blocks {
		c.Blocks[i] = b.Clone()
	}
	return c
}

// ContentBlocks returns the content-bearing blocks, break markers excluded.
func (t *Tree) ContentBlocks() []*BlockNode {
	out := make([]*BlockNode, 0, len(t.Blocks))
	for _, b := range t.Blocks {
		if !b.IsBreakMarker() {
			out = append(out, b)
		}
	}
	return out
}

// BreakMarkers returns the break markers in document order.
func (t *Tree) BreakMarkers() []*BlockNode {
	var out []*BlockNode
	for _, b := range t.Blocks {
		if b.IsBreakMarker() {
			out = append(out, b)
		}
	}
	return out
}

// IndexOf returns the position of the block with the given ID, or -1.
func (t *Tree) IndexOf(id string) int {
	for i, b := range t.Blocks {
		if b.ID == id {
			return i
		}
	}
	return -1
}

// InsertAt returns a new tree with the block inserted at position i.
// The receiver is not modified.
func (t *Tree) InsertAt(i int, block *BlockNode) *Tree {
	if i < 0 {
		i = 0
	}
	if i > len(t.Blocks) {
		i = len(t.Blocks)
	}
	c := t.Clone()
	c.Blocks = append(c.Blocks[:i], append([]*BlockNode{block}, c.Blocks[i:]...)...)
	return c
}

// RemoveAt returns a new tree with the block at position i removed.
// The receiver is not modified.
func (t *Tree) RemoveAt(i int) *Tree {
	c := t.Clone()
	if i < 0 || i >= len(c.Blocks) {
		return c
	}
	c.Blocks = append(c.Blocks[:i], c.Blocks[i+1:]...)
	return c
}

// Equal reports content equality: same block sequence by kind and content
// hash, break markers included. Identities and resolved margins are ignored,
// so an undo-restored tree compares equal to the original.
func (t *Tree) Equal(other *Tree) bool {
	if t == nil || other == nil {
		return t == other
	}
	if len(t.Blocks) != len(other.Blocks) {
		return false
	}
	for i := range t.Blocks {
		if !t.Blocks[i].SameContent(other.Blocks[i]) {
			return false
		}
	}
	return true
}

// Marshal serializes the tree to JSON. The serialized form is what the
// break editor snapshots for undo and what the HTTP facade accepts.
func Marshal(t *Tree) ([]byte, error) {
	return json.Marshal(t)
}

// Unmarshal restores a tree from its serialized form, assigning fresh
// identities to any blocks that arrive without one.
func Unmarshal(data []byte) (*Tree, error) {
	var t Tree
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode document tree: %w", err)
	}
	for _, b := range t.Blocks {
		if b == nil {
			return nil, fmt.Errorf("decode document tree: null block")
		}
		if b.ID == "" {
			b.ID = uuid.NewString()
		}
		if b.Kind == "" {
			b.Kind = KindParagraph
		}
	}
	return &t, nil
}
