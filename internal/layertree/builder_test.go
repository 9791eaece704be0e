package layertree

// ============================================================================
// Builder Test File
// Purpose: Verify fluent construction, cursor navigation, accumulated
// errors and builder reuse
// ============================================================================

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darthgelum/Walrus/pkg/layer"
)

func noop() layer.Layer { return layer.Func(func(float64) {}) }

// TestBuilderLinearChain tests Root followed by nested Child calls
func TestBuilderLinearChain(t *testing.T) {
	tree := newTree(t, 2)

	built, err := NewBuilder(tree).
		Root(noop(), "root").
		Child(noop(), "child").
		Child(noop(), "grand").
		Build()
	require.NoError(t, err)
	require.Same(t, tree, built)

	assert.Equal(t, 3, tree.Len())
	assert.Equal(t, 3, tree.MaxDepth())
	assert.Same(t, tree.FindByName("child"), tree.FindByName("grand").Parent())
}

// TestBuilderBack tests sibling placement via Back
func TestBuilderBack(t *testing.T) {
	tree := newTree(t, 2)

	_, err := NewBuilder(tree).
		Root(noop(), "root").
		Child(noop(), "a").
		Back().
		Child(noop(), "b").
		Build()
	require.NoError(t, err)

	root := tree.FindByName("root")
	assert.Equal(t, 2, root.ChildCount())
	assert.Same(t, root, tree.FindByName("a").Parent())
	assert.Same(t, root, tree.FindByName("b").Parent())
}

// TestBuilderToRoot tests ascending to the top of the current branch
func TestBuilderToRoot(t *testing.T) {
	tree := newTree(t, 2)

	_, err := NewBuilder(tree).
		Root(noop(), "root").
		Child(noop(), "a").
		Child(noop(), "deep").
		ToRoot().
		Child(noop(), "b").
		Build()
	require.NoError(t, err)

	assert.Same(t, tree.FindByName("root"), tree.FindByName("b").Parent())
}

// TestBuilderTo tests jumping to a named node
func TestBuilderTo(t *testing.T) {
	tree := newTree(t, 2)

	_, err := NewBuilder(tree).
		Root(noop(), "root").
		Child(noop(), "a").
		Back().
		Child(noop(), "b").
		To("a").
		Child(noop(), "under-a").
		Build()
	require.NoError(t, err)

	assert.Same(t, tree.FindByName("a"), tree.FindByName("under-a").Parent())
}

// TestBuilderToUnknown tests the error for a jump to a missing name
func TestBuilderToUnknown(t *testing.T) {
	tree := newTree(t, 2)

	_, err := NewBuilder(tree).
		Root(noop(), "root").
		To("ghost").
		Child(noop(), "never-added").
		Build()
	assert.Error(t, err)
	assert.Nil(t, tree.FindByName("never-added"))
}

// TestBuilderChildBeforeRoot tests the missing-cursor error
func TestBuilderChildBeforeRoot(t *testing.T) {
	tree := newTree(t, 2)

	_, err := NewBuilder(tree).
		Child(noop(), "floating").
		Build()
	assert.ErrorIs(t, err, ErrNoCurrentNode)
}

// TestBuilderBackPastRoot tests the over-ascend error
func TestBuilderBackPastRoot(t *testing.T) {
	tree := newTree(t, 2)

	_, err := NewBuilder(tree).
		Root(noop(), "root").
		Back().
		Build()
	assert.ErrorIs(t, err, ErrNoCurrentNode)
}

// TestBuilderReuse tests that Build resets the builder for a fresh chain
func TestBuilderReuse(t *testing.T) {
	tree := newTree(t, 2)
	b := NewBuilder(tree)

	_, err := b.Root(noop(), "first").Build()
	require.NoError(t, err)

	// A reused builder starts with no cursor again.
	_, err = b.Child(noop(), "dangling").Build()
	assert.ErrorIs(t, err, ErrNoCurrentNode)

	// And errors do not stick across Build calls.
	_, err = b.Root(noop(), "second").Child(noop(), "child").Build()
	require.NoError(t, err)
	assert.NotNil(t, tree.FindByName("second"))
	assert.NotNil(t, tree.FindByName("child"))
}

// TestBuilderMultipleRoots tests several Root calls in one chain
func TestBuilderMultipleRoots(t *testing.T) {
	tree := newTree(t, 2)

	_, err := NewBuilder(tree).
		Root(noop(), "r1").
		Child(noop(), "c1").
		Root(noop(), "r2").
		Child(noop(), "c2").
		Build()
	require.NoError(t, err)

	assert.Equal(t, 2, len(tree.Roots()))
	assert.Same(t, tree.FindByName("r2"), tree.FindByName("c2").Parent())
}
