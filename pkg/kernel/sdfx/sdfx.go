// Package sdfx implements the kernel.Kernel interface directly on
// github.com/deadsy/sdfx, using sdfx's own boolean nodes and polynomial
// blends. It serves as a reference backend: sharp results agree with the
// csg kernel, rounded seams differ in shape.
package sdfx

import (
	"fmt"
	"math"

	"github.com/chazu/implicit3d/pkg/kernel"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time interface check.
var _ kernel.Kernel = (*SdfxKernel)(nil)

// DefaultMeshCells controls marching cubes tessellation resolution.
const DefaultMeshCells = 64

// normalStep is the central difference step used for normals.
const normalStep = 1e-5

// sdfxSolid wraps an sdf.SDF3 to implement kernel.Solid.
type sdfxSolid struct {
	s sdf.SDF3
}

// BoundingBox returns the axis-aligned bounding box.
func (s *sdfxSolid) BoundingBox() (min, max [3]float64) {
	bb := s.s.BoundingBox()
	min = [3]float64{bb.Min.X, bb.Min.Y, bb.Min.Z}
	max = [3]float64{bb.Max.X, bb.Max.Y, bb.Max.Z}
	return min, max
}

// SdfxKernel implements kernel.Kernel using sdfx.
type SdfxKernel struct {
	meshCells int
}

// New returns a new SdfxKernel meshing at the given resolution. A
// non-positive cells selects DefaultMeshCells.
func New(cells int) *SdfxKernel {
	if cells <= 0 {
		cells = DefaultMeshCells
	}
	return &SdfxKernel{meshCells: cells}
}

// unwrap extracts the underlying sdf.SDF3 from a kernel.Solid.
func unwrap(s kernel.Solid) sdf.SDF3 {
	return s.(*sdfxSolid).s
}

// wrap creates a kernel.Solid from an sdf.SDF3.
func wrap(s sdf.SDF3) kernel.Solid {
	return &sdfxSolid{s: s}
}

func unwrapAll(solids []kernel.Solid) []sdf.SDF3 {
	out := make([]sdf.SDF3, len(solids))
	for i, s := range solids {
		out[i] = unwrap(s)
	}
	return out
}

// Sphere creates a sphere centered on the origin.
func (k *SdfxKernel) Sphere(radius float64) (kernel.Solid, error) {
	s, err := sdf.Sphere3D(radius)
	if err != nil {
		return nil, fmt.Errorf("sdfx: sphere: %w", err)
	}
	return wrap(s), nil
}

// Box creates a box centered on the origin.
func (k *SdfxKernel) Box(x, y, z, round float64) (kernel.Solid, error) {
	s, err := sdf.Box3D(v3.Vec{X: x, Y: y, Z: z}, round)
	if err != nil {
		return nil, fmt.Errorf("sdfx: box: %w", err)
	}
	return wrap(s), nil
}

// Cylinder creates a cylinder along Z centered on the origin.
func (k *SdfxKernel) Cylinder(height, radius, round float64) (kernel.Solid, error) {
	s, err := sdf.Cylinder3D(height, radius, round)
	if err != nil {
		return nil, fmt.Errorf("sdfx: cylinder: %w", err)
	}
	return wrap(s), nil
}

// Union returns the union of solids, blended with sdf.RoundMin when r > 0.
func (k *SdfxKernel) Union(r float64, solids ...kernel.Solid) (kernel.Solid, error) {
	if len(solids) == 0 {
		return nil, fmt.Errorf("sdfx: union: %w", kernel.ErrEmpty)
	}
	if len(solids) == 1 {
		return solids[0], nil
	}
	u := sdf.Union3D(unwrapAll(solids)...)
	if us, ok := u.(*sdf.UnionSDF3); ok && r > 0 {
		us.SetMin(sdf.RoundMin(r))
	}
	return wrap(u), nil
}

// Difference returns the first solid minus all others.
func (k *SdfxKernel) Difference(r float64, solids ...kernel.Solid) (kernel.Solid, error) {
	if len(solids) == 0 {
		return nil, fmt.Errorf("sdfx: difference: %w", kernel.ErrEmpty)
	}
	if len(solids) == 1 {
		return solids[0], nil
	}
	cut := sdf.Union3D(unwrapAll(solids[1:])...)
	d := sdf.Difference3D(unwrap(solids[0]), cut)
	if ds, ok := d.(*sdf.DifferenceSDF3); ok && r > 0 {
		ds.SetMax(sdf.PolyMax(r))
	}
	return wrap(d), nil
}

// Intersection returns the intersection of solids.
func (k *SdfxKernel) Intersection(r float64, solids ...kernel.Solid) (kernel.Solid, error) {
	if len(solids) == 0 {
		return nil, fmt.Errorf("sdfx: intersection: %w", kernel.ErrEmpty)
	}
	acc := unwrap(solids[0])
	for _, s := range solids[1:] {
		i := sdf.Intersect3D(acc, unwrap(s))
		if is, ok := i.(*sdf.IntersectionSDF3); ok && r > 0 {
			is.SetMax(sdf.PolyMax(r))
		}
		acc = i
	}
	return wrap(acc), nil
}

// complement flips the sign of a field. sdfx has no complement node.
type complement struct {
	s sdf.SDF3
}

func (c *complement) Evaluate(p v3.Vec) float64 {
	return -c.s.Evaluate(p)
}

func (c *complement) BoundingBox() sdf.Box3 {
	inf := math.Inf(1)
	return sdf.Box3{
		Min: v3.Vec{X: -inf, Y: -inf, Z: -inf},
		Max: v3.Vec{X: inf, Y: inf, Z: inf},
	}
}

// Negate returns the complement of s. The result is unbounded.
func (k *SdfxKernel) Negate(s kernel.Solid) kernel.Solid {
	if c, ok := unwrap(s).(*complement); ok {
		return wrap(c.s)
	}
	return wrap(&complement{s: unwrap(s)})
}

// Translate moves a solid by (x, y, z).
func (k *SdfxKernel) Translate(s kernel.Solid, x, y, z float64) kernel.Solid {
	m := sdf.Translate3d(v3.Vec{X: x, Y: y, Z: z})
	return wrap(sdf.Transform3D(unwrap(s), m))
}

// Rotate rotates a solid by Euler angles (degrees) around X, Y, Z axes.
func (k *SdfxKernel) Rotate(s kernel.Solid, x, y, z float64) kernel.Solid {
	xRad := x * math.Pi / 180.0
	yRad := y * math.Pi / 180.0
	zRad := z * math.Pi / 180.0

	m := sdf.RotateZ(zRad).Mul(sdf.RotateY(yRad)).Mul(sdf.RotateX(xRad))
	return wrap(sdf.Transform3D(unwrap(s), m))
}

// Scale scales a solid uniformly by f.
func (k *SdfxKernel) Scale(s kernel.Solid, f float64) (kernel.Solid, error) {
	if !(f > 0) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("sdfx: scale %g must be positive and finite", f)
	}
	return wrap(sdf.ScaleUniform3D(unwrap(s), f)), nil
}

// SetParameters is a no-op: sdfx blends take no fade parameters.
func (k *SdfxKernel) SetParameters(kernel.Solid, float64, float64) {}

// Probe evaluates s at p. The normal is a central difference of the field.
func (k *SdfxKernel) Probe(s kernel.Solid, p [3]float64) kernel.Sample {
	f := unwrap(s)
	v := v3.Vec{X: p[0], Y: p[1], Z: p[2]}
	dx := v3.Vec{X: normalStep}
	dy := v3.Vec{Y: normalStep}
	dz := v3.Vec{Z: normalStep}
	n := v3.Vec{
		X: f.Evaluate(v.Add(dx)) - f.Evaluate(v.Sub(dx)),
		Y: f.Evaluate(v.Add(dy)) - f.Evaluate(v.Sub(dy)),
		Z: f.Evaluate(v.Add(dz)) - f.Evaluate(v.Sub(dz)),
	}
	if l := n.Length(); l > 0 {
		n = n.DivScalar(l)
	}
	return kernel.Sample{
		Point:  p,
		Value:  f.Evaluate(v),
		Normal: [3]float64{n.X, n.Y, n.Z},
	}
}

// finite reports whether every corner coordinate of bb is a finite number.
// Transforming an infinite box yields NaN corners, which count as unbounded.
func finite(bb sdf.Box3) bool {
	for _, c := range []float64{bb.Min.X, bb.Min.Y, bb.Min.Z, bb.Max.X, bb.Max.Y, bb.Max.Z} {
		if math.IsInf(c, 0) || math.IsNaN(c) {
			return false
		}
	}
	return true
}

// ToMesh converts a solid to a triangle mesh using marching cubes.
func (k *SdfxKernel) ToMesh(s kernel.Solid) (*kernel.Mesh, error) {
	sdf3 := unwrap(s)
	if !finite(sdf3.BoundingBox()) {
		return nil, fmt.Errorf("sdfx: to mesh: %w", kernel.ErrUnbounded)
	}

	renderer := render.NewMarchingCubesUniform(k.meshCells)
	triangles := render.ToTriangles(sdf3, renderer)

	numTri := len(triangles)
	numVerts := numTri * 3

	vertices := make([]float32, 0, numVerts*3)
	normals := make([]float32, 0, numVerts*3)
	indices := make([]uint32, 0, numVerts)

	for i, tri := range triangles {
		// Flat shading: every vertex takes the face normal.
		n := tri.Normal()
		nx := float32(n.X)
		ny := float32(n.Y)
		nz := float32(n.Z)

		for j := 0; j < 3; j++ {
			v := tri[j]
			vertices = append(vertices, float32(v.X), float32(v.Y), float32(v.Z))
			normals = append(normals, nx, ny, nz)
			indices = append(indices, uint32(i*3+j))
		}
	}

	return &kernel.Mesh{
		Vertices: vertices,
		Normals:  normals,
		Indices:  indices,
	}, nil
}
