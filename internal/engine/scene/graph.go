// Package scene tracks what the viewer shows: mode-owned renderables that a
// mode switch replaces and persistent nodes such as annotations.
package scene

import (
	"sort"
	"sync"
)

// Kind identifies what a node renders.
type Kind string

const (
	KindVolume     Kind = "volume"     // Scalar volume renderable
	KindSegment    Kind = "segment"    // Segmentation label renderable
	KindSurface    Kind = "surface"    // SDF iso-surface of the clipped segment
	KindAnnotation Kind = "annotation" // Placed snapshot quad
)

// Owner decides a node's lifetime.
type Owner int

const (
	// OwnerMode nodes belong to the active viewer mode and are dropped by ClearMode.
	OwnerMode Owner = iota
	// OwnerPersistent nodes live until the graph is torn down.
	OwnerPersistent
)

// Node is one entry in the scene graph.
type Node struct {
	ID    uint64
	Name  string
	Kind  Kind
	Owner Owner
	Value any // Payload for the renderer, e.g. an annotation
}

// Graph is the set of nodes the presentation pass draws. Safe for concurrent use.
type Graph struct {
	mu     sync.RWMutex
	nextID uint64
	nodes  []Node
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{}
}

// Add appends a node and returns its id.
func (g *Graph) Add(n Node) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	n.ID = g.nextID
	g.nodes = append(g.nodes, n)
	return n.ID
}

// Put replaces the mode-owned node of n.Kind, or adds it if absent. Mode
// geometry is one node per kind, so repeated updates never accumulate.
func (g *Graph) Put(n Node) uint64 {
	n.Owner = OwnerMode
	g.mu.Lock()
	for i, cur := range g.nodes {
		if cur.Owner == OwnerMode && cur.Kind == n.Kind {
			n.ID = cur.ID
			g.nodes[i] = n
			g.mu.Unlock()
			return n.ID
		}
	}
	g.mu.Unlock()
	return g.Add(n)
}

// RemoveKind drops the mode-owned node of kind k, if any.
func (g *Graph) RemoveKind(k Kind) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.filter(func(n Node) bool { return n.Owner != OwnerMode || n.Kind != k })
}

// ClearMode removes every mode-owned node. Persistent nodes are kept.
func (g *Graph) ClearMode() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.filter(func(n Node) bool { return n.Owner == OwnerPersistent })
}

func (g *Graph) filter(keep func(Node) bool) {
	out := g.nodes[:0]
	for _, n := range g.nodes {
		if keep(n) {
			out = append(out, n)
		}
	}
	clear(g.nodes[len(out):])
	g.nodes = out
}

// Nodes returns a copy of all nodes in insertion order.
func (g *Graph) Nodes() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]Node(nil), g.nodes...)
}

// ModeKinds returns the sorted kinds of the mode-owned nodes.
func (g *Graph) ModeKinds() []Kind {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var kinds []Kind
	for _, n := range g.nodes {
		if n.Owner == OwnerMode {
			kinds = append(kinds, n.Kind)
		}
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Persistent returns the persistent nodes of kind k.
func (g *Graph) Persistent(k Kind) []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []Node
	for _, n := range g.nodes {
		if n.Owner == OwnerPersistent && n.Kind == k {
			out = append(out, n)
		}
	}
	return out
}
