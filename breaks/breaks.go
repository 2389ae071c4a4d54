// Package breaks edits manual page-break markers in a document tree. All
// transformations are pure: they return new trees and leave their inputs
// untouched, so a pagination run holding the old tree never observes a
// concurrent edit.
package breaks

import (
	"errors"
	"fmt"

	"github.com/docfold/docfold/document"
)

// ErrTargetNotFound reports that the referenced block no longer exists in
// the tree, usually because the caller held a stale reference. The edit
// had no effect.
var ErrTargetNotFound = errors.New("break target not found")

// ErrNothingToUndo reports that no snapshot is available.
var ErrNothingToUndo = errors.New("nothing to undo")

// InsertBefore returns a new tree with a break marker inserted immediately
// before the block matching target. Matching prefers stable identity; when
// the ID is absent or stale it falls back to the first block with the same
// kind and content, because UI callers may hold a rendered copy rather
// than the canonical node.
func InsertBefore(tree *document.Tree, target *document.BlockNode) (*document.Tree, error) {
	idx, err := locate(tree, target)
	if err != nil {
		return nil, err
	}
	return tree.InsertAt(idx, document.NewBreakMarker()), nil
}

// RemoveAt returns a new tree with the nth break marker (0-based, document
// order) removed. An out-of-range index is a no-op copy.
func RemoveAt(tree *document.Tree, breakIndex int) *document.Tree {
	if breakIndex < 0 {
		return tree.Clone()
	}
	n := 0
	for i, b := range tree.Blocks {
		if !b.IsBreakMarker() {
			continue
		}
		if n == breakIndex {
			return tree.RemoveAt(i)
		}
		n++
	}
	return tree.Clone()
}

func locate(tree *document.Tree, target *document.BlockNode) (int, error) {
	if tree == nil || target == nil {
		return 0, ErrTargetNotFound
	}
	if target.ID != "" {
		if idx := tree.IndexOf(target.ID); idx >= 0 {
			return idx, nil
		}
	}
	// First structurally equal block wins; duplicated content therefore
	// resolves to the earliest occurrence.
	for i, b := range tree.Blocks {
		if b.SameContent(target) {
			return i, nil
		}
	}
	return 0, ErrTargetNotFound
}

// Editor applies break edits while retaining a single undo snapshot of the
// tree as it was before the latest successful edit. A new edit replaces
// the snapshot; there is no history stack. It is not safe for concurrent
// use; callers serialize access the way the pagination session does.
type Editor struct {
	snapshot []byte
}

// NewEditor returns an editor with no snapshot.
func NewEditor() *Editor { return &Editor{} }

// InsertBefore inserts a marker before the matched block and snapshots the
// prior tree. A failed match leaves the snapshot untouched.
func (e *Editor) InsertBefore(tree *document.Tree, target *document.BlockNode) (*document.Tree, error) {
	next, err := InsertBefore(tree, target)
	if err != nil {
		return nil, err
	}
	if err := e.remember(tree); err != nil {
		return nil, err
	}
	return next, nil
}

// RemoveAt removes the nth marker and snapshots the prior tree. It reports
// whether anything was removed; an out-of-range index changes nothing and
// keeps the existing snapshot.
func (e *Editor) RemoveAt(tree *document.Tree, breakIndex int) (*document.Tree, bool) {
	if breakIndex < 0 || breakIndex >= len(tree.BreakMarkers()) {
		return tree.Clone(), false
	}
	if err := e.remember(tree); err != nil {
		return tree.Clone(), false
	}
	return RemoveAt(tree, breakIndex), true
}

// Undo restores the tree from before the last successful edit, consuming
// the snapshot. A second undo without an intervening edit fails with
// ErrNothingToUndo.
func (e *Editor) Undo() (*document.Tree, error) {
	if e.snapshot == nil {
		return nil, ErrNothingToUndo
	}
	tree, err := document.Unmarshal(e.snapshot)
	if err != nil {
		return nil, fmt.Errorf("restore snapshot: %w", err)
	}
	e.snapshot = nil
	return tree, nil
}

// CanUndo reports whether a snapshot is available.
func (e *Editor) CanUndo() bool { return e.snapshot != nil }

// Clear discards the snapshot.
func (e *Editor) Clear() { e.snapshot = nil }

func (e *Editor) remember(tree *document.Tree) error {
	data, err := document.Marshal(tree)
	if err != nil {
		return fmt.Errorf("snapshot tree: %w", err)
	}
	e.snapshot = data
	return nil
}
