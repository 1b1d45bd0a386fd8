package implicit

import (
	"math"

	"github.com/chazu/implicit3d/pkg/bbox"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time interface check.
var _ Object = (*Intersection)(nil)

// Intersection is the intersection of its children, rounded with radius r.
type Intersection struct {
	objs       []Object
	r          float64
	exactRange float64
	fadeRange  float64
	bbox       bbox.BoundingBox
}

// NewIntersection returns the intersection of objs, rounded if r > 0. It
// returns nil for no objects and the object itself for a single one.
func NewIntersection(objs []Object, r float64) Object {
	switch len(objs) {
	case 0:
		return nil
	case 1:
		return objs[0]
	}
	box := bbox.Infinity()
	for _, o := range objs {
		box = box.Intersection(*o.BBox())
	}
	return &Intersection{
		objs:       objs,
		r:          r,
		exactRange: r * DefaultRMultiplier,
		fadeRange:  DefaultFadeRange,
		bbox:       box,
	}
}

// NewDifference returns objs[0] minus all other objects, implemented as
// the intersection of objs[0] with the negation of clones of the rest. It
// returns nil for no objects and the object itself for a single one.
func NewDifference(objs []Object, r float64) Object {
	switch len(objs) {
	case 0:
		return nil
	case 1:
		return objs[0]
	}
	operands := make([]Object, 0, len(objs))
	operands = append(operands, objs[0])
	operands = append(operands, NegateAll(objs[1:])...)
	return NewIntersection(operands, r)
}

// Children returns the intersection's operands.
func (s *Intersection) Children() []Object { return s.objs }

// Radius returns the rounding radius.
func (s *Intersection) Radius() float64 { return s.r }

// ApproxValue implements Object.
func (s *Intersection) ApproxValue(p v3.Vec, slack float64) float64 {
	approx := s.bbox.Distance(p)
	if approx > slack {
		return approx
	}
	values := make([]float64, len(s.objs))
	for i, o := range s.objs {
		values[i] = o.ApproxValue(p, slack+s.r)
	}
	return rvmax(values, s.r, s.exactRange)
}

// BBox implements Object.
func (s *Intersection) BBox() *bbox.BoundingBox { return &s.bbox }

// SetParameters implements Object.
func (s *Intersection) SetParameters(p PrimitiveParameters) {
	s.exactRange = s.r * p.RMultiplier
	s.fadeRange = p.FadeRange
	for _, o := range s.objs {
		o.SetParameters(p)
	}
}

// Normal implements Object, selecting by the two largest child values.
func (s *Intersection) Normal(p v3.Vec) v3.Vec {
	i0, v0 := 0, math.Inf(-1)
	v1 := math.Inf(-1)
	for i, o := range s.objs {
		t := o.ApproxValue(p, AlwaysPrecise)
		if t > v0 {
			i0, v0, v1 = i, t, v0
		} else if t > v1 {
			v1 = t
		}
	}
	return fadeNormal(s, s.objs[i0], p, math.Abs(v0-v1), s.exactRange, s.fadeRange)
}

// Clone implements Object.
func (s *Intersection) Clone() Object {
	c := *s
	c.objs = cloneAll(s.objs)
	return &c
}
