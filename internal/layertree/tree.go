// ============================================================================
// Walrus LayerTree - Hierarchical parallel layer updates
// ============================================================================
//
// Package: internal/layertree
// File: tree.go
// Purpose: Forest of tick-able layer nodes. Siblings at the same depth tick
// in parallel on the shared worker pool; a parent's subtree is complete
// only when every child subtree has completed.
//
// Traversal contract:
//   Tick on a node runs the node's own OnUpdate first, then submits one
//   pool task per child as a single batch and waits on the batch barrier.
//   Each child task applies the same sequence recursively. Root nodes are
//   ticked the same way: one batch for all roots, and Tick returns only
//   when every root subtree has finished. Siblings never block each other;
//   the barrier waits run on the pool's helping WaitGroup, so deep trees
//   cannot starve a small pool.
//
// Name index:
//   Non-empty node names are indexed tree-wide for O(1) FindByName. Names
//   need not be unique; FindByName returns the first registration, FindAll
//   returns every match. The index holds non-owning references and is
//   pruned on removal, so lookups on removed names simply miss.
//
// Concurrency:
//   Structural mutations are mutex-guarded against each other and against
//   the snapshots Tick takes. Mutating the tree from inside OnUpdate is not
//   supported during a tick.
//
// ============================================================================

package layertree

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/darthgelum/Walrus/internal/metrics"
	"github.com/darthgelum/Walrus/internal/scheduler"
	"github.com/darthgelum/Walrus/pkg/layer"
)

var log = slog.Default()

// taskOrigin tags pool submissions for panic reports.
const taskOrigin = "layertree"

// Tree manages a forest of layer nodes.
type Tree struct {
	pool      *scheduler.Pool
	collector *metrics.Collector

	mu    sync.RWMutex
	roots []*Node
	index map[string][]*Node
}

// New creates an empty tree backed by pool. collector may be nil.
func New(pool *scheduler.Pool, collector *metrics.Collector) *Tree {
	return &Tree{
		pool:      pool,
		collector: collector,
		index:     make(map[string][]*Node),
	}
}

// ============================================================================
// Structure
// ============================================================================

// AddRoot appends a new root node hosting l. name may be empty.
func (t *Tree) AddRoot(l layer.Layer, name string) *Node {
	n := &Node{layer: l, name: name}
	t.mu.Lock()
	t.roots = append(t.roots, n)
	t.indexLocked(n)
	t.mu.Unlock()
	return n
}

// AddChild appends a new child of parent hosting l. A nil parent returns
// nil and adds nothing.
func (t *Tree) AddChild(parent *Node, l layer.Layer, name string) *Node {
	if parent == nil {
		return nil
	}
	n := &Node{layer: l, name: name, parent: parent}
	t.mu.Lock()
	parent.children = append(parent.children, n)
	t.indexLocked(n)
	t.mu.Unlock()
	return n
}

// RemoveRoot removes the first root with the given name and its whole
// subtree. Removing an unknown name is a no-op.
func (t *Tree) RemoveRoot(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, r := range t.roots {
		if r.name == name {
			t.roots = append(t.roots[:i], t.roots[i+1:]...)
			t.unindexSubtreeLocked(r)
			return true
		}
	}
	return false
}

// RemoveChild removes the first child of parent with the given name and its
// whole subtree. Unknown parents or names are a no-op.
func (t *Tree) RemoveChild(parent *Node, name string) bool {
	if parent == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, c := range parent.children {
		if c.name == name {
			parent.children = append(parent.children[:i], parent.children[i+1:]...)
			c.parent = nil
			t.unindexSubtreeLocked(c)
			return true
		}
	}
	return false
}

// FindByName returns the first node registered under name, or nil. Empty
// names are never indexed.
func (t *Tree) FindByName(name string) *Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if nodes := t.index[name]; len(nodes) > 0 {
		return nodes[0]
	}
	return nil
}

// FindAll returns every node registered under name, in registration order.
func (t *Tree) FindAll(name string) []*Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	nodes := t.index[name]
	out := make([]*Node, len(nodes))
	copy(out, nodes)
	return out
}

// Roots returns a copy of the root list.
func (t *Tree) Roots() []*Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Node, len(t.roots))
	copy(out, t.roots)
	return out
}

// IsEmpty reports whether the tree has no roots.
func (t *Tree) IsEmpty() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.roots) == 0
}

// Len returns the total number of nodes in the forest.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	total := 0
	for _, r := range t.roots {
		total += r.subtreeSize()
	}
	return total
}

// MaxDepth returns the depth of the deepest subtree (an empty forest is 0).
func (t *Tree) MaxDepth() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	max := 0
	for _, r := range t.roots {
		if d := r.subtreeDepth(); d > max {
			max = d
		}
	}
	return max
}

// Clear removes every root and empties the name index.
func (t *Tree) Clear() {
	t.mu.Lock()
	t.roots = nil
	t.index = make(map[string][]*Node)
	t.mu.Unlock()
}

// String renders the forest as an indented listing, one node per line.
func (t *Tree) String() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var sb strings.Builder
	for _, r := range t.roots {
		writeNode(&sb, r, 0)
	}
	return sb.String()
}

func writeNode(sb *strings.Builder, n *Node, depth int) {
	name := n.name
	if name == "" {
		name = "(unnamed)"
	}
	fmt.Fprintf(sb, "%s- %s\n", strings.Repeat("  ", depth), name)
	for _, c := range n.children {
		writeNode(sb, c, depth+1)
	}
}

func (t *Tree) indexLocked(n *Node) {
	if n.name == "" {
		return
	}
	t.index[n.name] = append(t.index[n.name], n)
}

func (t *Tree) unindexSubtreeLocked(n *Node) {
	if n.name != "" {
		nodes := t.index[n.name]
		for i, cand := range nodes {
			if cand == n {
				nodes = append(nodes[:i], nodes[i+1:]...)
				break
			}
		}
		if len(nodes) == 0 {
			delete(t.index, n.name)
		} else {
			t.index[n.name] = nodes
		}
	}
	for _, c := range n.children {
		t.unindexSubtreeLocked(c)
	}
}

// ============================================================================
// Ticking
// ============================================================================

// Tick runs one frame over the whole forest: every root subtree is
// submitted as one batch and ticked in parallel, and Tick returns only
// once every node's OnUpdate for this frame has completed. Ticking an
// empty tree is a safe no-op.
func (t *Tree) Tick(timestep float64) {
	t.mu.RLock()
	roots := make([]*Node, len(t.roots))
	copy(roots, t.roots)
	t.mu.RUnlock()

	if len(roots) == 0 {
		return
	}

	start := time.Now()
	if err := t.tickBatch(roots, timestep); err != nil {
		log.Error("tick submission failed", "error", err)
		return
	}
	if t.collector != nil {
		t.collector.RecordTick(time.Since(start).Seconds())
	}
}

// tickBatch fans nodes out as one pool batch and waits for every subtree.
func (t *Tree) tickBatch(nodes []*Node, timestep float64) error {
	tasks := make([]scheduler.Task, len(nodes))
	for i, n := range nodes {
		n := n
		tasks[i] = scheduler.Task{
			Origin: taskOrigin,
			Run:    func() { t.tickNode(n, timestep) },
		}
	}
	wg, err := t.pool.SubmitMany(tasks)
	if err != nil {
		return err
	}
	wg.Wait()
	return nil
}

// tickNode performs the (a)-then-(b) sequence for one node: the node's own
// update runs first, then all children fan out as a batch and the node
// barriers on them. The node's frame is complete only when the whole
// subtree is done.
func (t *Tree) tickNode(n *Node, timestep float64) {
	t.updateNode(n, timestep)

	t.mu.RLock()
	children := make([]*Node, len(n.children))
	copy(children, n.children)
	t.mu.RUnlock()

	if len(children) == 0 {
		return
	}
	if err := t.tickBatch(children, timestep); err != nil {
		log.Error("child tick submission failed", "node", n.name, "error", err)
	}
}

// updateNode invokes one OnUpdate with panic isolation, so a failing layer
// cannot prevent its children from ticking.
func (t *Tree) updateNode(n *Node, timestep float64) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("layer OnUpdate panicked", "node", n.name, "panic", r)
		}
	}()
	n.layer.OnUpdate(timestep)
}

// ============================================================================
// Lifecycle hooks
// ============================================================================

// OnAttachAll invokes OnAttach on every node's layer exactly once. The walk
// is sequential and order-insensitive.
func (t *Tree) OnAttachAll() {
	for _, r := range t.Roots() {
		t.walk(r, func(l layer.Layer) { l.OnAttach() })
	}
}

// OnDetachAll invokes OnDetach on every node's layer exactly once.
func (t *Tree) OnDetachAll() {
	for _, r := range t.Roots() {
		t.walk(r, func(l layer.Layer) { l.OnDetach() })
	}
}

func (t *Tree) walk(n *Node, visit func(layer.Layer)) {
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("layer lifecycle hook panicked", "node", n.name, "panic", r)
			}
		}()
		visit(n.layer)
	}()
	for _, c := range n.Children() {
		t.walk(c, visit)
	}
}
