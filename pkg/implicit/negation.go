package implicit

import (
	"github.com/chazu/implicit3d/pkg/bbox"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time interface check.
var _ Object = (*Negation)(nil)

// Negation is the complement of its child. Its bounding box is always
// infinite.
type Negation struct {
	obj  Object
	bbox bbox.BoundingBox
}

// NewNegation wraps o.
func NewNegation(o Object) *Negation {
	return &Negation{
		obj:  o,
		bbox: bbox.Infinity(),
	}
}

// NegateAll returns the negation of a clone of every object in objs.
func NegateAll(objs []Object) []Object {
	out := make([]Object, len(objs))
	for i, o := range objs {
		out[i] = NewNegation(o.Clone())
	}
	return out
}

// Child returns the negated object.
func (n *Negation) Child() Object { return n.obj }

// ApproxValue implements Object.
func (n *Negation) ApproxValue(p v3.Vec, slack float64) float64 {
	return -n.obj.ApproxValue(p, slack)
}

// Normal implements Object.
func (n *Negation) Normal(p v3.Vec) v3.Vec {
	return n.obj.Normal(p).Neg()
}

// BBox implements Object.
func (n *Negation) BBox() *bbox.BoundingBox { return &n.bbox }

// SetParameters implements Object.
func (n *Negation) SetParameters(p PrimitiveParameters) {
	n.obj.SetParameters(p)
}

// Clone implements Object.
func (n *Negation) Clone() Object {
	return NewNegation(n.obj.Clone())
}
