// Package scene is the retained scene graph the globe is drawn from.
//
// The graph holds plain node records addressed by NodeID. Parents carry a
// translation and a uniform scale that children inherit, which is all the
// globe needs: a halo sits inside its marker and scales with it, orbit lines
// hang off a group. Viewers never see the hierarchy; Snapshot flattens the
// visible nodes into world space.
//
// Graph is safe for concurrent use. Walk holds the read lock while it calls
// back, so the callback must not call into the same Graph.
package scene

import (
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// NodeID addresses a node in a Graph. Zero is the implicit root.
type NodeID uint64

// Root is the parent of top-level nodes.
const Root NodeID = 0

// Kind is a node's geometry.
type Kind int

const (
	KindGroup Kind = iota
	KindSphere
	KindLine
)

func (k Kind) String() string {
	switch k {
	case KindSphere:
		return "sphere"
	case KindLine:
		return "line"
	default:
		return "group"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "group":
		*k = KindGroup
	case "sphere":
		*k = KindSphere
	case "line":
		*k = KindLine
	default:
		return fmt.Errorf("unknown node kind %q", b)
	}
	return nil
}

// Layer separates geometry that never changes after startup from geometry
// that is rewritten every frame.
type Layer int

const (
	LayerDynamic Layer = iota
	LayerStatic
)

// Node is one renderable. Position and Vertices are relative to the parent.
type Node struct {
	ID          NodeID
	Parent      NodeID
	Kind        Kind
	Layer       Layer
	Name        string
	Position    mgl64.Vec3
	Scale       float64
	Radius      float64
	Vertices    []mgl64.Vec3
	Color       Color
	Opacity     float64
	Visible     bool
	RenderOrder int

	// Owner is the catalog number of the satellite that owns this node, or 0.
	// It is a lookup key, not a reference: the owner may already be gone.
	Owner int
}

// Transform is a node's accumulated world translation and scale.
type Transform struct {
	Position mgl64.Vec3
	Scale    float64
}

// Apply maps a point in the node's local frame to world space.
func (t Transform) Apply(p mgl64.Vec3) mgl64.Vec3 {
	return t.Position.Add(p.Mul(t.Scale))
}

var identity = Transform{Scale: 1}

// Graph is an in-memory scene graph.
type Graph struct {
	mu       sync.RWMutex
	nodes    map[NodeID]*Node
	children map[NodeID][]NodeID
	next     NodeID
	released int64
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:    make(map[NodeID]*Node),
		children: make(map[NodeID][]NodeID),
	}
}

// Add inserts n under parent and returns its ID. A zero Scale is stored as 1.
// Add returns 0 if parent does not exist.
func (g *Graph) Add(parent NodeID, n Node) NodeID {
	g.mu.Lock()
	defer g.mu.Unlock()

	if parent != Root {
		if _, ok := g.nodes[parent]; !ok {
			return 0
		}
	}

	g.next++
	n.ID = g.next
	n.Parent = parent
	if n.Scale == 0 {
		n.Scale = 1
	}
	if len(n.Vertices) > 0 {
		n.Vertices = append([]mgl64.Vec3(nil), n.Vertices...)
	}
	g.nodes[n.ID] = &n
	g.children[parent] = append(g.children[parent], n.ID)
	return n.ID
}

// Remove detaches id and its whole subtree and releases every node in it.
// It returns the number of nodes released, 0 if id was not in the graph.
func (g *Graph) Remove(id NodeID) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes[id]
	if !ok {
		return 0
	}

	siblings := g.children[n.Parent]
	for i, c := range siblings {
		if c == id {
			g.children[n.Parent] = append(siblings[:i:i], siblings[i+1:]...)
			break
		}
	}
	if len(g.children[n.Parent]) == 0 {
		delete(g.children, n.Parent)
	}

	count := g.releaseLocked(id)
	g.released += int64(count)
	return count
}

func (g *Graph) releaseLocked(id NodeID) int {
	count := 1
	for _, c := range g.children[id] {
		count += g.releaseLocked(c)
	}
	delete(g.children, id)
	delete(g.nodes, id)
	return count
}

// Update applies fn to the stored node. ID and Parent changes are ignored.
func (g *Graph) Update(id NodeID, fn func(n *Node)) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes[id]
	if !ok {
		return false
	}
	nid, parent := n.ID, n.Parent
	fn(n)
	n.ID, n.Parent = nid, parent
	return true
}

// Get returns a copy of the node.
func (g *Graph) Get(id NodeID) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Contains reports whether id is in the graph.
func (g *Graph) Contains(id NodeID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// Children returns the direct children of id in insertion order.
func (g *Graph) Children(id NodeID) []NodeID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]NodeID(nil), g.children[id]...)
}

// Len returns the number of live nodes.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Released returns the total number of nodes released by Remove.
func (g *Graph) Released() int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.released
}

// Walk visits nodes depth-first from the root in insertion order, passing each
// node's world transform. Returning false skips the node's subtree. fn must
// treat n as read-only.
func (g *Graph) Walk(fn func(n *Node, world Transform) bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	g.walkLocked(Root, identity, fn)
}

func (g *Graph) walkLocked(parent NodeID, parentWorld Transform, fn func(*Node, Transform) bool) {
	for _, id := range g.children[parent] {
		n := g.nodes[id]
		world := Transform{
			Position: parentWorld.Apply(n.Position),
			Scale:    parentWorld.Scale * n.Scale,
		}
		if fn(n, world) {
			g.walkLocked(id, world, fn)
		}
	}
}

// Ancestry returns id followed by its ancestors up to the root.
func (g *Graph) Ancestry(id NodeID) []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []Node
	for id != Root {
		n, ok := g.nodes[id]
		if !ok {
			break
		}
		out = append(out, *n)
		id = n.Parent
	}
	return out
}
