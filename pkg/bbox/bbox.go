// Package bbox provides axis-aligned 3D bounding boxes. Boxes can be
// joined and intersected, dilated, transformed and queried for point
// containment and for a conservative distance bound, which is what the
// implicit kernel uses to prune evaluation of distant subtrees.
package bbox

import (
	"fmt"
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// BoundingBox is an axis-aligned box defined by two diagonally opposing
// corners. A well-formed box has Min <= Max on every axis; intersections of
// disjoint boxes may violate that and are still safe to query.
type BoundingBox struct {
	Min v3.Vec `json:"min"`
	Max v3.Vec `json:"max"`
}

// Infinity returns the box covering all of space. It is the identity for
// Intersection.
func Infinity() BoundingBox {
	inf := math.Inf(1)
	return BoundingBox{
		Min: v3.Vec{X: -inf, Y: -inf, Z: -inf},
		Max: v3.Vec{X: inf, Y: inf, Z: inf},
	}
}

// NegInfinity returns the empty box. It is the identity for Union.
func NegInfinity() BoundingBox {
	inf := math.Inf(1)
	return BoundingBox{
		Min: v3.Vec{X: inf, Y: inf, Z: inf},
		Max: v3.Vec{X: -inf, Y: -inf, Z: -inf},
	}
}

// New returns the box spanned by the corners a and b, in any order.
func New(a, b v3.Vec) BoundingBox {
	return BoundingBox{
		Min: vmin(a, b),
		Max: vmax(a, b),
	}
}

// FromBox3 converts an sdfx box.
func FromBox3(b sdf.Box3) BoundingBox {
	return New(b.Min, b.Max)
}

// Box3 converts the box to its sdfx equivalent.
func (b BoundingBox) Box3() sdf.Box3 {
	return sdf.Box3{Min: b.Min, Max: b.Max}
}

func vmin(a, b v3.Vec) v3.Vec {
	return v3.Vec{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y), Z: math.Min(a.Z, b.Z)}
}

func vmax(a, b v3.Vec) v3.Vec {
	return v3.Vec{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y), Z: math.Max(a.Z, b.Z)}
}

// Union returns the smallest box containing both b and o.
func (b BoundingBox) Union(o BoundingBox) BoundingBox {
	return BoundingBox{
		Min: vmin(b.Min, o.Min),
		Max: vmax(b.Max, o.Max),
	}
}

// Intersection returns the overlap of b and o. If they do not overlap the
// result has Min > Max on at least one axis.
func (b BoundingBox) Intersection(o BoundingBox) BoundingBox {
	return BoundingBox{
		Min: vmax(b.Min, o.Min),
		Max: vmin(b.Max, o.Max),
	}
}

// IsEmpty reports whether Min exceeds Max on any axis.
func (b BoundingBox) IsEmpty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

// IsInfinite reports whether any coordinate of the box is infinite.
func (b BoundingBox) IsInfinite() bool {
	for _, f := range [6]float64{b.Min.X, b.Min.Y, b.Min.Z, b.Max.X, b.Max.Y, b.Max.Z} {
		if math.IsInf(f, 0) {
			return true
		}
	}
	return false
}

// Transform applies m to all eight corners and returns the axis-aligned
// box enclosing them. The result is conservative, not tight, under
// rotation. Empty boxes stay empty and unbounded boxes become Infinity,
// since multiplying infinite corners through a matrix yields NaN.
func (b BoundingBox) Transform(m sdf.M44) BoundingBox {
	if b.IsEmpty() {
		return NegInfinity()
	}
	if b.IsInfinite() {
		return Infinity()
	}
	lo, hi := b.Min, b.Max
	corners := [8]v3.Vec{
		{X: lo.X, Y: lo.Y, Z: lo.Z},
		{X: lo.X, Y: lo.Y, Z: hi.Z},
		{X: lo.X, Y: hi.Y, Z: lo.Z},
		{X: lo.X, Y: hi.Y, Z: hi.Z},
		{X: hi.X, Y: lo.Y, Z: lo.Z},
		{X: hi.X, Y: lo.Y, Z: hi.Z},
		{X: hi.X, Y: hi.Y, Z: lo.Z},
		{X: hi.X, Y: hi.Y, Z: hi.Z},
	}
	out := NegInfinity()
	for _, c := range corners {
		out.Insert(m.MulPosition(c))
	}
	return out
}

// Dilate grows the box by d on every face (shrinks it for negative d) and
// returns b for chaining.
func (b *BoundingBox) Dilate(d float64) *BoundingBox {
	b.Min = v3.Vec{X: b.Min.X - d, Y: b.Min.Y - d, Z: b.Min.Z - d}
	b.Max = v3.Vec{X: b.Max.X + d, Y: b.Max.Y + d, Z: b.Max.Z + d}
	return b
}

// Insert expands the box to contain p and returns b for chaining.
func (b *BoundingBox) Insert(p v3.Vec) *BoundingBox {
	b.Min = vmin(b.Min, p)
	b.Max = vmax(b.Max, p)
	return b
}

// Dim returns the extents of the box.
func (b BoundingBox) Dim() v3.Vec {
	return b.Max.Sub(b.Min)
}

// Distance returns a conservative signed distance from p to the box. For
// each axis it takes max(p - Max, Min - p) and returns the largest of the
// three. Outside the box this never exceeds the Euclidean distance; inside
// it is negative and no deeper than the nearest face.
//
// Infinity yields -Inf and NegInfinity yields +Inf for every finite p.
func (b BoundingBox) Distance(p v3.Vec) float64 {
	x := math.Max(p.X-b.Max.X, b.Min.X-p.X)
	y := math.Max(p.Y-b.Max.Y, b.Min.Y-p.Y)
	z := math.Max(p.Z-b.Max.Z, b.Min.Z-p.Z)
	return math.Max(x, math.Max(y, z))
}

// Contains reports whether p lies inside the box, boundary included.
func (b BoundingBox) Contains(p v3.Vec) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Equals reports whether both corners match within the absolute tolerance
// tol. Equal infinities compare equal.
func (b BoundingBox) Equals(o BoundingBox, tol float64) bool {
	return vecEq(b.Min, o.Min, func(x, y float64) bool { return absEq(x, y, tol) }) &&
		vecEq(b.Max, o.Max, func(x, y float64) bool { return absEq(x, y, tol) })
}

// RelativeEquals reports whether both corners match either within the
// absolute tolerance eps or within maxRel relative to the larger magnitude.
func (b BoundingBox) RelativeEquals(o BoundingBox, eps, maxRel float64) bool {
	eq := func(x, y float64) bool { return relEq(x, y, eps, maxRel) }
	return vecEq(b.Min, o.Min, eq) && vecEq(b.Max, o.Max, eq)
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("[(%g, %g, %g) (%g, %g, %g)]", b.Min.X, b.Min.Y, b.Min.Z, b.Max.X, b.Max.Y, b.Max.Z)
}

func vecEq(a, b v3.Vec, eq func(x, y float64) bool) bool {
	return eq(a.X, b.X) && eq(a.Y, b.Y) && eq(a.Z, b.Z)
}

func absEq(x, y, tol float64) bool {
	if x == y {
		return true
	}
	return math.Abs(x-y) <= tol
}

func relEq(x, y, eps, maxRel float64) bool {
	if absEq(x, y, eps) {
		return true
	}
	if math.IsInf(x, 0) || math.IsInf(y, 0) {
		return false
	}
	largest := math.Max(math.Abs(x), math.Abs(y))
	return math.Abs(x-y) <= largest*maxRel
}
