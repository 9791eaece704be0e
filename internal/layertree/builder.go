package layertree

// ============================================================================
// Fluent tree construction
// ============================================================================

import (
	"errors"
	"fmt"

	"github.com/darthgelum/Walrus/pkg/layer"
)

// ErrNoCurrentNode is returned by Build when a Child, Back, or ToRoot call
// was made before any Root established a cursor position.
var ErrNoCurrentNode = errors.New("layertree: builder has no current node")

// Builder assembles a tree through a movable cursor. Root places a new root
// and moves the cursor onto it; Child places a node under the cursor and
// descends; Back ascends one level; ToRoot ascends to the cursor's root; To
// jumps to a previously named node. Errors accumulate and surface from
// Build, so call chains stay unconditional.
type Builder struct {
	tree    *Tree
	current *Node
	err     error
}

// NewBuilder creates a builder that populates tree.
func NewBuilder(tree *Tree) *Builder {
	return &Builder{tree: tree}
}

// Root adds a root node and moves the cursor onto it.
func (b *Builder) Root(l layer.Layer, name string) *Builder {
	if b.err != nil {
		return b
	}
	b.current = b.tree.AddRoot(l, name)
	return b
}

// Child adds a node under the cursor and moves the cursor onto it. Calling
// Child before any Root is recorded as an error.
func (b *Builder) Child(l layer.Layer, name string) *Builder {
	if b.err != nil {
		return b
	}
	if b.current == nil {
		b.err = fmt.Errorf("adding child %q: %w", name, ErrNoCurrentNode)
		return b
	}
	b.current = b.tree.AddChild(b.current, l, name)
	return b
}

// Back moves the cursor to the current node's parent. Backing past a root
// is recorded as an error.
func (b *Builder) Back() *Builder {
	if b.err != nil {
		return b
	}
	if b.current == nil || b.current.parent == nil {
		b.err = fmt.Errorf("moving back: %w", ErrNoCurrentNode)
		return b
	}
	b.current = b.current.parent
	return b
}

// ToRoot moves the cursor to the topmost ancestor of the current node.
func (b *Builder) ToRoot() *Builder {
	if b.err != nil {
		return b
	}
	if b.current == nil {
		b.err = fmt.Errorf("moving to root: %w", ErrNoCurrentNode)
		return b
	}
	for b.current.parent != nil {
		b.current = b.current.parent
	}
	return b
}

// To jumps the cursor to the first node named name anywhere in the tree.
// An unknown name is recorded as an error.
func (b *Builder) To(name string) *Builder {
	if b.err != nil {
		return b
	}
	n := b.tree.FindByName(name)
	if n == nil {
		b.err = fmt.Errorf("layertree: builder jump to unknown node %q", name)
		return b
	}
	b.current = n
	return b
}

// Build returns the populated tree, or the first error recorded along the
// chain. The builder resets either way and can start a fresh chain on the
// same tree.
func (b *Builder) Build() (*Tree, error) {
	err := b.err
	b.current = nil
	b.err = nil
	if err != nil {
		return nil, err
	}
	return b.tree, nil
}
