// Package tessellate walks a design graph, builds one kernel solid per root
// and meshes it. One mesh is produced per part.
package tessellate

import (
	"fmt"

	"github.com/chazu/implicit3d/pkg/graph"
	"github.com/chazu/implicit3d/pkg/kernel"
	"golang.org/x/sync/errgroup"
)

// Part is the solid built for one root of the design graph.
type Part struct {
	Name  string
	Root  graph.NodeID
	Solid kernel.Solid
}

// builder converts graph nodes to kernel solids. Shared subgraphs are
// built once; the kernel copies operands, so reuse is safe.
type builder struct {
	g     *graph.DesignGraph
	k     kernel.Kernel
	built map[graph.NodeID]kernel.Solid
}

// Build walks every root of g and produces one solid per root, with the
// graph's rounding defaults applied. The builder is read-only and never
// mutates the graph. Empty groups produce no part.
func Build(g *graph.DesignGraph, k kernel.Kernel) ([]Part, error) {
	if g == nil {
		return nil, nil
	}

	b := &builder{g: g, k: k, built: make(map[graph.NodeID]kernel.Solid)}
	var parts []Part
	for _, rootID := range g.Roots {
		root := g.Get(rootID)
		if root == nil {
			continue
		}
		if root.Kind == graph.NodeGroup && len(root.Children) == 0 {
			continue
		}
		s, err := b.build(root)
		if err != nil {
			return nil, fmt.Errorf("tessellate: error walking root %s: %w", rootID.Short(), err)
		}
		k.SetParameters(s, g.Defaults.RMultiplier, g.Defaults.FadeRange)
		parts = append(parts, Part{Name: partName(g, root), Root: rootID, Solid: s})
	}
	return parts, nil
}

// Tessellate builds every part of g and meshes them concurrently. Meshes
// are returned in root order.
func Tessellate(g *graph.DesignGraph, k kernel.Kernel) ([]*kernel.Mesh, error) {
	parts, err := Build(g, k)
	if err != nil {
		return nil, err
	}

	meshes := make([]*kernel.Mesh, len(parts))
	var eg errgroup.Group
	for i, p := range parts {
		eg.Go(func() error {
			m, err := k.ToMesh(p.Solid)
			if err != nil {
				return fmt.Errorf("tessellate: ToMesh failed for part %q: %w", p.Name, err)
			}
			m.PartName = p.Name
			meshes[i] = m
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return meshes, nil
}

// partName prefers the root's name, then the name of the first named node
// down a chain of single-child wrappers, then the root's short ID.
func partName(g *graph.DesignGraph, n *graph.Node) string {
	for cur := n; cur != nil; {
		if cur.Name != "" {
			return cur.Name
		}
		if len(cur.Children) != 1 {
			break
		}
		cur = g.Get(cur.Children[0])
	}
	return n.ID.Short()
}

// build recursively converts a node and its children into a solid.
func (b *builder) build(n *graph.Node) (kernel.Solid, error) {
	if s, ok := b.built[n.ID]; ok {
		return s, nil
	}

	var (
		s   kernel.Solid
		err error
	)
	switch n.Kind {
	case graph.NodePrimitive:
		s, err = b.primitive(n)
	case graph.NodeTransform:
		s, err = b.transform(n)
	case graph.NodeBoolean:
		s, err = b.boolean(n)
	case graph.NodeGroup:
		s, err = b.group(n)
	default:
		err = fmt.Errorf("unknown node kind: %v", n.Kind)
	}
	if err != nil {
		return nil, err
	}
	b.built[n.ID] = s
	return s, nil
}

func (b *builder) children(n *graph.Node) ([]kernel.Solid, error) {
	nodes := b.g.Children(n)
	if len(nodes) != len(n.Children) {
		return nil, fmt.Errorf("node %s has dangling children", n.ID.Short())
	}
	solids := make([]kernel.Solid, len(nodes))
	for i, c := range nodes {
		s, err := b.build(c)
		if err != nil {
			return nil, err
		}
		solids[i] = s
	}
	return solids, nil
}

// primitive creates geometry for a primitive node.
func (b *builder) primitive(n *graph.Node) (kernel.Solid, error) {
	pd, ok := n.Data.(graph.PrimitiveData)
	if !ok {
		return nil, fmt.Errorf("primitive node %s has unsupported data type %T", n.ID.Short(), n.Data)
	}
	switch pd.Shape {
	case graph.ShapeSphere:
		return b.k.Sphere(pd.Radius)
	case graph.ShapeBox:
		return b.k.Box(pd.Size.X, pd.Size.Y, pd.Size.Z, pd.Round)
	case graph.ShapeCylinder:
		return b.k.Cylinder(pd.Height, pd.Radius, pd.Round)
	}
	return nil, fmt.Errorf("primitive node %s has unknown shape %v", n.ID.Short(), pd.Shape)
}

// transform applies rotation, then scale, then translation to the child.
func (b *builder) transform(n *graph.Node) (kernel.Solid, error) {
	td, ok := n.Data.(graph.TransformData)
	if !ok {
		return nil, fmt.Errorf("transform node %s has unexpected data type %T", n.ID.Short(), n.Data)
	}
	children, err := b.children(n)
	if err != nil {
		return nil, err
	}
	if len(children) != 1 {
		return nil, fmt.Errorf("transform node %s has %d children, want 1", n.ID.Short(), len(children))
	}
	s := children[0]

	if r := td.Rotation; r != nil && (r.X != 0 || r.Y != 0 || r.Z != 0) {
		s = b.k.Rotate(s, r.X, r.Y, r.Z)
	}
	if td.Scale != 0 && td.Scale != 1 {
		if s, err = b.k.Scale(s, td.Scale); err != nil {
			return nil, fmt.Errorf("transform node %s: %w", n.ID.Short(), err)
		}
	}
	if t := td.Translation; t != nil && (t.X != 0 || t.Y != 0 || t.Z != 0) {
		s = b.k.Translate(s, t.X, t.Y, t.Z)
	}
	return s, nil
}

// boolean combines the children with the node's rounded operation.
func (b *builder) boolean(n *graph.Node) (kernel.Solid, error) {
	bd, ok := n.Data.(graph.BooleanData)
	if !ok {
		return nil, fmt.Errorf("boolean node %s has unexpected data type %T", n.ID.Short(), n.Data)
	}
	children, err := b.children(n)
	if err != nil {
		return nil, err
	}

	var s kernel.Solid
	switch bd.Op {
	case graph.OpUnion:
		s, err = b.k.Union(bd.Radius, children...)
	case graph.OpIntersection:
		s, err = b.k.Intersection(bd.Radius, children...)
	case graph.OpDifference:
		s, err = b.k.Difference(bd.Radius, children...)
	case graph.OpNegate:
		if len(children) != 1 {
			return nil, fmt.Errorf("negate node %s has %d children, want 1", n.ID.Short(), len(children))
		}
		s = b.k.Negate(children[0])
	default:
		err = fmt.Errorf("unknown boolean op %v", bd.Op)
	}
	if err != nil {
		return nil, fmt.Errorf("%s node %s: %w", bd.Op, n.ID.Short(), err)
	}
	return s, nil
}

// group unions its children sharply.
func (b *builder) group(n *graph.Node) (kernel.Solid, error) {
	children, err := b.children(n)
	if err != nil {
		return nil, err
	}
	s, err := b.k.Union(0, children...)
	if err != nil {
		return nil, fmt.Errorf("group %q: %w", n.Name, err)
	}
	return s, nil
}
