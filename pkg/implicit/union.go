package implicit

import (
	"math"

	"github.com/chazu/implicit3d/pkg/bbox"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time interface check.
var _ Object = (*Union)(nil)

// Union is the union of its children, rounded with radius r.
type Union struct {
	objs       []Object
	r          float64
	exactRange float64 // smooth transitions happen over this range
	fadeRange  float64 // fraction of exactRange over which normals fade
	bbox       bbox.BoundingBox
}

// NewUnion returns the union of objs, rounded if r > 0. It returns nil for
// no objects and the object itself for a single one.
func NewUnion(objs []Object, r float64) Object {
	switch len(objs) {
	case 0:
		return nil
	case 1:
		return objs[0]
	}
	box := bbox.NegInfinity()
	for _, o := range objs {
		box = box.Union(*o.BBox())
	}
	// The rounded surface bulges slightly beyond the sharp union.
	box.Dilate(r * 0.2)
	return &Union{
		objs:       objs,
		r:          r,
		exactRange: r * DefaultRMultiplier,
		fadeRange:  DefaultFadeRange,
		bbox:       box,
	}
}

// Children returns the union's operands.
func (u *Union) Children() []Object { return u.objs }

// Radius returns the rounding radius.
func (u *Union) Radius() float64 { return u.r }

// ApproxValue implements Object.
func (u *Union) ApproxValue(p v3.Vec, slack float64) float64 {
	approx := u.bbox.Distance(p)
	if approx > slack {
		return approx
	}
	values := make([]float64, len(u.objs))
	for i, o := range u.objs {
		values[i] = o.ApproxValue(p, slack+u.r)
	}
	return rvmin(values, u.r, u.exactRange)
}

// BBox implements Object.
func (u *Union) BBox() *bbox.BoundingBox { return &u.bbox }

// SetParameters implements Object.
func (u *Union) SetParameters(p PrimitiveParameters) {
	u.exactRange = u.r * p.RMultiplier
	u.fadeRange = p.FadeRange
	for _, o := range u.objs {
		o.SetParameters(p)
	}
}

// Normal implements Object. Away from blends the nearest child's normal is
// used directly; inside a blend the normal of the whole union is estimated
// numerically, with a linear fade between the two regimes.
func (u *Union) Normal(p v3.Vec) v3.Vec {
	i0, v0 := 0, math.Inf(1)
	v1 := math.Inf(1)
	for i, o := range u.objs {
		t := o.ApproxValue(p, AlwaysPrecise)
		if t < v0 {
			i0, v0, v1 = i, t, v0
		} else if t < v1 {
			v1 = t
		}
	}
	return fadeNormal(u, u.objs[i0], p, math.Abs(v0-v1), u.exactRange, u.fadeRange)
}

// Clone implements Object.
func (u *Union) Clone() Object {
	c := *u
	c.objs = cloneAll(u.objs)
	return &c
}

// fadeNormal picks the normal of a two-way blend from the distance diff
// between the two nearest child values. Below exactRange*(1-fadeRange) the
// blended surface dominates and its numeric normal is used; past exactRange
// the nearest child's own normal is used; in between the two are faded.
func fadeNormal(whole, nearest Object, p v3.Vec, diff, exactRange, fadeRange float64) v3.Vec {
	switch {
	case diff < exactRange*(1-fadeRange):
		return NormalFromObject(whole, p)
	case diff < exactRange:
		fader := (diff/exactRange - 1 + fadeRange) / fadeRange
		n := nearest.Normal(p).MulScalar(fader).
			Add(NormalFromObject(whole, p).MulScalar(1 - fader))
		return normalize(n)
	default:
		return nearest.Normal(p)
	}
}
