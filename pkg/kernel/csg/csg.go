// Package csg implements the kernel.Kernel interface on top of the implicit
// CSG tree in pkg/implicit. Primitives come from github.com/deadsy/sdfx,
// booleans are rounded implicit composites, and meshing runs the sdfx
// marching cubes renderer over the implicit field.
package csg

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"github.com/chazu/implicit3d/pkg/implicit"
	"github.com/chazu/implicit3d/pkg/kernel"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"golang.org/x/sync/errgroup"
)

// Compile-time interface checks.
var _ kernel.Kernel = (*Kernel)(nil)
var _ kernel.Solid = (*solid)(nil)

// DefaultMeshCells controls marching cubes tessellation resolution along
// the longest side of a solid's bounding box.
const DefaultMeshCells = 64

// probeChunk is the number of points one ProbeAll worker evaluates at once.
const probeChunk = 256

// solid wraps an implicit tree to implement kernel.Solid.
type solid struct {
	tree *implicit.Tree
}

// BoundingBox returns the axis-aligned bounding box.
func (s *solid) BoundingBox() (min, max [3]float64) {
	bb := s.tree.BBox()
	min = [3]float64{bb.Min.X, bb.Min.Y, bb.Min.Z}
	max = [3]float64{bb.Max.X, bb.Max.Y, bb.Max.Z}
	return min, max
}

// Kernel implements kernel.Kernel using implicit CSG trees.
type Kernel struct {
	meshCells int
	params    implicit.PrimitiveParameters
}

// Option configures a Kernel.
type Option func(*Kernel)

// WithMeshCells sets the marching cubes resolution.
func WithMeshCells(n int) Option {
	return func(k *Kernel) {
		if n > 0 {
			k.meshCells = n
		}
	}
}

// WithParameters sets the parameters broadcast into every composite the
// kernel builds.
func WithParameters(p implicit.PrimitiveParameters) Option {
	return func(k *Kernel) {
		k.params = p
	}
}

// New returns a new Kernel.
func New(opts ...Option) *Kernel {
	k := &Kernel{
		meshCells: DefaultMeshCells,
		params:    implicit.DefaultParameters(),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Object returns a copy of the implicit tree behind s.
func Object(s kernel.Solid) implicit.Object {
	return unwrap(s)
}

// unwrap extracts a private copy of the implicit tree from a kernel.Solid.
// Composites own their children, so every use of a solid gets its own copy.
func unwrap(s kernel.Solid) implicit.Object {
	return s.(*solid).tree.Snapshot()
}

// wrap creates a kernel.Solid from an implicit object.
func wrap(o implicit.Object) kernel.Solid {
	return &solid{tree: implicit.NewTree(o)}
}

func (k *Kernel) wrapComposite(o implicit.Object) kernel.Solid {
	s := wrap(o)
	s.(*solid).tree.SetParameters(k.params)
	return s
}

func unwrapAll(solids []kernel.Solid) []implicit.Object {
	objs := make([]implicit.Object, len(solids))
	for i, s := range solids {
		objs[i] = unwrap(s)
	}
	return objs
}

// ---------------------------------------------------------------------------
// Primitives
// ---------------------------------------------------------------------------

// Sphere creates a sphere centered on the origin.
func (k *Kernel) Sphere(radius float64) (kernel.Solid, error) {
	s, err := sdf.Sphere3D(radius)
	if err != nil {
		return nil, fmt.Errorf("csg: sphere: %w", err)
	}
	return wrap(implicit.FromSDF3(s)), nil
}

// Box creates a box with the given dimensions centered on the origin,
// with edges rounded by round.
func (k *Kernel) Box(x, y, z, round float64) (kernel.Solid, error) {
	s, err := sdf.Box3D(v3.Vec{X: x, Y: y, Z: z}, round)
	if err != nil {
		return nil, fmt.Errorf("csg: box: %w", err)
	}
	return wrap(implicit.FromSDF3(s)), nil
}

// Cylinder creates a cylinder along Z centered on the origin.
func (k *Kernel) Cylinder(height, radius, round float64) (kernel.Solid, error) {
	s, err := sdf.Cylinder3D(height, radius, round)
	if err != nil {
		return nil, fmt.Errorf("csg: cylinder: %w", err)
	}
	return wrap(implicit.FromSDF3(s)), nil
}

// ---------------------------------------------------------------------------
// Booleans
// ---------------------------------------------------------------------------

// Union returns the union of solids rounded with radius r.
func (k *Kernel) Union(r float64, solids ...kernel.Solid) (kernel.Solid, error) {
	o := implicit.NewUnion(unwrapAll(solids), r)
	if o == nil {
		return nil, fmt.Errorf("csg: union: %w", kernel.ErrEmpty)
	}
	return k.wrapComposite(o), nil
}

// Difference returns the first solid minus all others, rounded with r.
func (k *Kernel) Difference(r float64, solids ...kernel.Solid) (kernel.Solid, error) {
	o := implicit.NewDifference(unwrapAll(solids), r)
	if o == nil {
		return nil, fmt.Errorf("csg: difference: %w", kernel.ErrEmpty)
	}
	return k.wrapComposite(o), nil
}

// Intersection returns the intersection of solids rounded with radius r.
func (k *Kernel) Intersection(r float64, solids ...kernel.Solid) (kernel.Solid, error) {
	o := implicit.NewIntersection(unwrapAll(solids), r)
	if o == nil {
		return nil, fmt.Errorf("csg: intersection: %w", kernel.ErrEmpty)
	}
	return k.wrapComposite(o), nil
}

// Negate returns the complement of s. The result is unbounded.
func (k *Kernel) Negate(s kernel.Solid) kernel.Solid {
	return wrap(implicit.NewNegation(unwrap(s)))
}

// ---------------------------------------------------------------------------
// Transforms
// ---------------------------------------------------------------------------

// Translate moves a solid by (x, y, z).
func (k *Kernel) Translate(s kernel.Solid, x, y, z float64) kernel.Solid {
	return wrap(implicit.NewTranslation(unwrap(s), v3.Vec{X: x, Y: y, Z: z}))
}

// Rotate rotates a solid by Euler angles (degrees) around X, Y, Z axes.
func (k *Kernel) Rotate(s kernel.Solid, x, y, z float64) kernel.Solid {
	xRad := x * math.Pi / 180.0
	yRad := y * math.Pi / 180.0
	zRad := z * math.Pi / 180.0

	m := sdf.RotateZ(zRad).Mul(sdf.RotateY(yRad)).Mul(sdf.RotateX(xRad))
	t, err := implicit.NewTransformer(unwrap(s), m, 1)
	if err != nil {
		// Unreachable: rotations always have unit scale.
		panic(fmt.Sprintf("csg: rotate: %v", err))
	}
	return wrap(t)
}

// Scale scales a solid uniformly by f, which must be positive.
func (k *Kernel) Scale(s kernel.Solid, f float64) (kernel.Solid, error) {
	t, err := implicit.NewScale(unwrap(s), f)
	if err != nil {
		return nil, fmt.Errorf("csg: %w", err)
	}
	return wrap(t), nil
}

// SetParameters broadcasts new rounding parameters through s.
func (k *Kernel) SetParameters(s kernel.Solid, rMultiplier, fadeRange float64) {
	s.(*solid).tree.SetParameters(implicit.PrimitiveParameters{
		RMultiplier: rMultiplier,
		FadeRange:   fadeRange,
	})
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// Probe returns the exact field value and normal of s at p.
func (k *Kernel) Probe(s kernel.Solid, p [3]float64) kernel.Sample {
	return probe(s.(*solid).tree, p)
}

func probe(t *implicit.Tree, p [3]float64) kernel.Sample {
	v := v3.Vec{X: p[0], Y: p[1], Z: p[2]}
	n := t.Normal(v)
	return kernel.Sample{
		Point:  p,
		Value:  t.ApproxValue(v, implicit.AlwaysPrecise),
		Normal: [3]float64{n.X, n.Y, n.Z},
	}
}

// ProbeAll probes every point, spreading the work over GOMAXPROCS
// goroutines. Results are in input order.
func (k *Kernel) ProbeAll(ctx context.Context, s kernel.Solid, points [][3]float64) ([]kernel.Sample, error) {
	t := s.(*solid).tree
	out := make([]kernel.Sample, len(points))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for start := 0; start < len(points); start += probeChunk {
		end := min(start+probeChunk, len(points))
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				out[i] = probe(t, points[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("csg: probe: %w", err)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Meshing
// ---------------------------------------------------------------------------

// ToMesh converts a solid to a triangle mesh using marching cubes. Vertex
// normals come from the implicit tree, so rounded seams shade smoothly.
func (k *Kernel) ToMesh(s kernel.Solid) (*kernel.Mesh, error) {
	obj := unwrap(s)
	bb := obj.BBox()
	if bb.IsInfinite() {
		return nil, fmt.Errorf("csg: to mesh: %w", kernel.ErrUnbounded)
	}
	if bb.IsEmpty() {
		return &kernel.Mesh{}, nil
	}

	dim := bb.Dim()
	cell := math.Max(dim.X, math.Max(dim.Y, dim.Z)) / float64(k.meshCells)

	renderer := render.NewMarchingCubesUniform(k.meshCells)
	triangles := render.ToTriangles(implicit.AsSDF3(obj, cell), renderer)

	numTri := len(triangles)
	numVerts := numTri * 3

	vertices := make([]float32, 0, numVerts*3)
	normals := make([]float32, 0, numVerts*3)
	indices := make([]uint32, 0, numVerts)

	for i, tri := range triangles {
		face := tri.Normal()
		for j := 0; j < 3; j++ {
			v := tri[j]
			n := obj.Normal(v)
			if n == (v3.Vec{}) {
				n = face
			}
			vertices = append(vertices, float32(v.X), float32(v.Y), float32(v.Z))
			normals = append(normals, float32(n.X), float32(n.Y), float32(n.Z))
			indices = append(indices, uint32(i*3+j))
		}
	}

	return &kernel.Mesh{
		Vertices: vertices,
		Normals:  normals,
		Indices:  indices,
	}, nil
}
