// Package implicit implements a CSG kernel over implicit surfaces. Solids
// are scalar fields that are negative inside, zero on the surface and
// positive outside. Composites combine their children with rounded
// minimum (union) and maximum (intersection) blends, and prune evaluation
// of distant subtrees with conservative bounding boxes.
//
// A built tree is immutable except for SetParameters, and may be evaluated
// concurrently as long as no SetParameters call runs at the same time. Tree
// enforces that discipline for callers that need it.
package implicit

import (
	"math"

	"github.com/chazu/implicit3d/pkg/bbox"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

const (
	// DefaultRMultiplier scales a composite's rounding radius into the range
	// over which smoothing and normal fading happen.
	DefaultRMultiplier = 1.0
	// DefaultFadeRange is the fraction of the exact range over which normals
	// fade from the blended normal to the nearest child's normal.
	DefaultFadeRange = 0.1

	// AlwaysPrecise is the slack that forces an exact evaluation.
	AlwaysPrecise = 0.0
	// NormalEpsilon is the finite difference step used by NormalFromObject.
	NormalEpsilon = 1e-6
)

// Object is a solid: a leaf primitive or a composite.
type Object interface {
	// ApproxValue returns the field value at p. When the point is farther
	// than slack from the object's bounding box the returned value may be
	// that conservative box distance instead of the exact field value.
	ApproxValue(p v3.Vec, slack float64) float64
	// BBox returns the cached, conservative bounding box. Callers must not
	// modify it.
	BBox() *bbox.BoundingBox
	// Normal returns the outward unit normal at or near p.
	Normal(p v3.Vec) v3.Vec
	// SetParameters broadcasts p to the object and all of its children.
	SetParameters(p PrimitiveParameters)
	// Clone returns an independent copy of the object tree.
	Clone() Object
}

// PrimitiveParameters retunes rounding behavior of a built tree.
type PrimitiveParameters struct {
	RMultiplier float64 `toml:"r_multiplier" json:"r_multiplier"`
	FadeRange   float64 `toml:"fade_range" json:"fade_range"`
}

// DefaultParameters returns the parameters composites are built with.
func DefaultParameters() PrimitiveParameters {
	return PrimitiveParameters{
		RMultiplier: DefaultRMultiplier,
		FadeRange:   DefaultFadeRange,
	}
}

// NormalFromObject estimates the normal of o at p from forward differences
// of its exact field value.
func NormalFromObject(o Object, p v3.Vec) v3.Vec {
	a := o.ApproxValue(p, AlwaysPrecise)
	dx := o.ApproxValue(v3.Vec{X: p.X + NormalEpsilon, Y: p.Y, Z: p.Z}, AlwaysPrecise) - a
	dy := o.ApproxValue(v3.Vec{X: p.X, Y: p.Y + NormalEpsilon, Z: p.Z}, AlwaysPrecise) - a
	dz := o.ApproxValue(v3.Vec{X: p.X, Y: p.Y, Z: p.Z + NormalEpsilon}, AlwaysPrecise) - a
	return normalize(v3.Vec{X: dx, Y: dy, Z: dz})
}

// normalize returns v scaled to unit length, or the zero vector when v has
// no usable direction.
func normalize(v v3.Vec) v3.Vec {
	l := v.Length()
	if l == 0 || math.IsNaN(l) || math.IsInf(l, 0) {
		return v3.Vec{}
	}
	return v.DivScalar(l)
}

func cloneAll(objs []Object) []Object {
	out := make([]Object, len(objs))
	for i, o := range objs {
		out[i] = o.Clone()
	}
	return out
}
