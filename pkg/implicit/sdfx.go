package implicit

import (
	"github.com/chazu/implicit3d/pkg/bbox"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time interface checks.
var _ Object = (*sdfLeaf)(nil)
var _ sdf.SDF3 = (*objectSDF)(nil)

// sdfLeaf adapts an sdfx SDF3 into a leaf Object.
type sdfLeaf struct {
	s    sdf.SDF3
	bbox bbox.BoundingBox
}

// FromSDF3 wraps an sdfx solid as a leaf Object. The sdfx value is shared
// between clones since sdfx solids are immutable.
func FromSDF3(s sdf.SDF3) Object {
	return &sdfLeaf{
		s:    s,
		bbox: bbox.FromBox3(s.BoundingBox()),
	}
}

func (l *sdfLeaf) ApproxValue(p v3.Vec, slack float64) float64 {
	approx := l.bbox.Distance(p)
	if approx > slack {
		return approx
	}
	return l.s.Evaluate(p)
}

func (l *sdfLeaf) Normal(p v3.Vec) v3.Vec {
	a := l.s.Evaluate(p)
	return normalize(v3.Vec{
		X: l.s.Evaluate(v3.Vec{X: p.X + NormalEpsilon, Y: p.Y, Z: p.Z}) - a,
		Y: l.s.Evaluate(v3.Vec{X: p.X, Y: p.Y + NormalEpsilon, Z: p.Z}) - a,
		Z: l.s.Evaluate(v3.Vec{X: p.X, Y: p.Y, Z: p.Z + NormalEpsilon}) - a,
	})
}

func (l *sdfLeaf) BBox() *bbox.BoundingBox { return &l.bbox }

func (l *sdfLeaf) SetParameters(PrimitiveParameters) {}

func (l *sdfLeaf) Clone() Object {
	c := *l
	return &c
}

// objectSDF exposes an Object to the sdfx renderers.
type objectSDF struct {
	o     Object
	slack float64
}

// AsSDF3 returns an sdfx view of o. Evaluation uses slack, so renderers can
// pass about one cell size to keep pruning effective far from the surface.
func AsSDF3(o Object, slack float64) sdf.SDF3 {
	return &objectSDF{o: o, slack: slack}
}

func (s *objectSDF) Evaluate(p v3.Vec) float64 {
	return s.o.ApproxValue(p, s.slack)
}

func (s *objectSDF) BoundingBox() sdf.Box3 {
	return s.o.BBox().Box3()
}
