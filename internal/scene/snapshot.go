package scene

// NodeView is a visible node flattened into world space.
type NodeView struct {
	ID          NodeID       `json:"id"`
	Kind        Kind         `json:"kind"`
	Name        string       `json:"name,omitempty"`
	Position    [3]float64   `json:"p"`
	Radius      float64      `json:"r,omitempty"`
	Vertices    [][3]float64 `json:"verts,omitempty"`
	Color       Color        `json:"c"`
	Opacity     float64      `json:"o"`
	RenderOrder int          `json:"order"`
	Owner       int          `json:"owner,omitempty"`
}

// Snapshot returns every visible, renderable node in layer. A hidden node hides
// its subtree. Groups carry no geometry and are omitted.
func (g *Graph) Snapshot(layer Layer) []NodeView {
	var out []NodeView
	g.Walk(func(n *Node, world Transform) bool {
		if !n.Visible {
			return false
		}
		if n.Layer != layer || n.Kind == KindGroup {
			return true
		}
		v := NodeView{
			ID:          n.ID,
			Kind:        n.Kind,
			Name:        n.Name,
			Position:    world.Position,
			Color:       n.Color,
			Opacity:     n.Opacity,
			RenderOrder: n.RenderOrder,
			Owner:       n.Owner,
		}
		switch n.Kind {
		case KindSphere:
			v.Radius = n.Radius * world.Scale
		case KindLine:
			v.Vertices = make([][3]float64, len(n.Vertices))
			for i, p := range n.Vertices {
				v.Vertices[i] = world.Apply(p)
			}
		}
		out = append(out, v)
		return true
	})
	return out
}
