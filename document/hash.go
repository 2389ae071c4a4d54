package document

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/text/unicode/norm"
)

// ContentHash returns a stable digest of the node's kind and content.
// Text is NFC-normalized first so visually identical strings hash equally
// regardless of their Unicode composition. Identity, margins, and fragment
// flags do not contribute.
func (b *BlockNode) ContentHash() string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(b.Kind))
	h.Write([]byte{0})
	h.Write([]byte(norm.NFC.String(b.Source)))
	h.Write([]byte{0})
	h.Write([]byte(norm.NFC.String(b.Text)))
	return hex.EncodeToString(h.Sum(nil))
}

// SameContent reports whether two nodes carry the same kind and content.
// This is the fallback the break editor uses when an insertion reference
// does not match any tree node by identity.
func (b *BlockNode) SameContent(other *BlockNode) bool {
	if b == nil || other == nil {
		return b == other
	}
	if b.Kind != other.Kind {
		return false
	}
	return b.ContentHash() == other.ContentHash()
}
