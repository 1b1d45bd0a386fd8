package implicit

import (
	"fmt"
	"math"

	"github.com/chazu/implicit3d/pkg/bbox"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time interface check.
var _ Object = (*Transformer)(nil)

// Transformer places its child with a rigid motion and uniform scale.
// General affine maps would not preserve the distance-like field, so the
// constructors only build those.
type Transformer struct {
	obj   Object
	m     sdf.M44 // object to world
	inv   sdf.M44 // world to object
	scale float64
	bbox  bbox.BoundingBox
}

// NewTransformer wraps o with the world transform m, whose linear part must
// be a rotation scaled uniformly by scale.
func NewTransformer(o Object, m sdf.M44, scale float64) (*Transformer, error) {
	if !(scale > 0) || math.IsInf(scale, 0) {
		return nil, fmt.Errorf("transformer: scale must be positive and finite, got %g", scale)
	}
	return &Transformer{
		obj:   o,
		m:     m,
		inv:   m.Inverse(),
		scale: scale,
		bbox:  o.BBox().Transform(m),
	}, nil
}

// NewTranslation moves o by v.
func NewTranslation(o Object, v v3.Vec) *Transformer {
	t, _ := NewTransformer(o, sdf.Translate3d(v), 1)
	return t
}

// NewRotation rotates o by angle radians about axis.
func NewRotation(o Object, axis v3.Vec, angle float64) *Transformer {
	t, _ := NewTransformer(o, sdf.Rotate3d(axis, angle), 1)
	return t
}

// NewScale scales o uniformly by s.
func NewScale(o Object, s float64) (*Transformer, error) {
	return NewTransformer(o, sdf.Scale3d(v3.Vec{X: s, Y: s, Z: s}), s)
}

// Child returns the transformed object.
func (t *Transformer) Child() Object { return t.obj }

// ApproxValue implements Object.
func (t *Transformer) ApproxValue(p v3.Vec, slack float64) float64 {
	approx := t.bbox.Distance(p)
	if approx > slack {
		return approx
	}
	return t.obj.ApproxValue(t.inv.MulPosition(p), slack/t.scale) * t.scale
}

// Normal implements Object.
func (t *Transformer) Normal(p v3.Vec) v3.Vec {
	n := t.obj.Normal(t.inv.MulPosition(p))
	origin := t.m.MulPosition(v3.Vec{})
	return normalize(t.m.MulPosition(n).Sub(origin))
}

// BBox implements Object.
func (t *Transformer) BBox() *bbox.BoundingBox { return &t.bbox }

// SetParameters implements Object.
func (t *Transformer) SetParameters(p PrimitiveParameters) {
	t.obj.SetParameters(p)
}

// Clone implements Object.
func (t *Transformer) Clone() Object {
	c := *t
	c.obj = t.obj.Clone()
	return &c
}
