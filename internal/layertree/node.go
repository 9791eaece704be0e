package layertree

// ============================================================================
// Tree nodes
// ============================================================================

import "github.com/darthgelum/Walrus/pkg/layer"

// Node is one element of the layer tree. A node owns its children
// exclusively; the parent pointer is a non-owning back-reference used for
// upward navigation only. Nodes are created through Tree.AddRoot and
// Tree.AddChild so the name index stays consistent.
type Node struct {
	layer    layer.Layer
	name     string
	parent   *Node
	children []*Node
}

// Layer returns the node's lifecycle unit.
func (n *Node) Layer() layer.Layer {
	return n.layer
}

// Name returns the node's name; empty names are legal and unindexed.
func (n *Node) Name() string {
	return n.name
}

// Parent returns the parent node, or nil for a root.
func (n *Node) Parent() *Node {
	return n.parent
}

// Children returns a copy of the child list in insertion order.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// HasChildren reports whether the node has at least one child.
func (n *Node) HasChildren() bool {
	return len(n.children) > 0
}

// ChildCount returns the number of direct children.
func (n *Node) ChildCount() int {
	return len(n.children)
}

// FindChild returns the first direct child with the given name, or nil.
func (n *Node) FindChild(name string) *Node {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

// subtreeSize counts the node and all descendants.
func (n *Node) subtreeSize() int {
	size := 1
	for _, c := range n.children {
		size += c.subtreeSize()
	}
	return size
}

// subtreeDepth returns the depth of the subtree rooted at n (a leaf is 1).
func (n *Node) subtreeDepth() int {
	max := 0
	for _, c := range n.children {
		if d := c.subtreeDepth(); d > max {
			max = d
		}
	}
	return max + 1
}
