package graph

import "fmt"

// Vec3 is a point, offset or set of Euler angles.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Scale returns v * f.
func (v Vec3) Scale(f float64) Vec3 {
	return Vec3{v.X * f, v.Y * f, v.Z * f}
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%g, %g, %g)", v.X, v.Y, v.Z)
}

// ---------------------------------------------------------------------------
// Primitives
// ---------------------------------------------------------------------------

// Shape distinguishes between primitive solids.
type Shape int

const (
	ShapeSphere   Shape = iota // Radius
	ShapeBox                   // Size, Round
	ShapeCylinder              // Height, Radius, Round; axis along Z
)

func (s Shape) String() string {
	switch s {
	case ShapeSphere:
		return "sphere"
	case ShapeBox:
		return "box"
	case ShapeCylinder:
		return "cylinder"
	default:
		return "unknown"
	}
}

// PrimitiveData describes a leaf solid centered on the origin. Only the
// fields its Shape uses are meaningful.
type PrimitiveData struct {
	Shape  Shape   `json:"shape"`
	Size   Vec3    `json:"size,omitempty"`
	Radius float64 `json:"radius,omitempty"`
	Height float64 `json:"height,omitempty"`
	Round  float64 `json:"round,omitempty"`
}

func (PrimitiveData) nodeData() {}

// ---------------------------------------------------------------------------
// Transform
// ---------------------------------------------------------------------------

// TransformData moves its single child. Rotation is applied first, then
// Scale, then Translation.
type TransformData struct {
	Translation *Vec3   `json:"translation,omitempty"`
	Rotation    *Vec3   `json:"rotation,omitempty"` // Euler angles in degrees
	Scale       float64 `json:"scale,omitempty"`    // uniform; 0 means unscaled
}

func (TransformData) nodeData() {}

// ---------------------------------------------------------------------------
// Boolean
// ---------------------------------------------------------------------------

// BoolOp enumerates boolean operations.
type BoolOp int

const (
	OpUnion BoolOp = iota
	OpIntersection
	OpDifference // first child minus the rest
	OpNegate     // complement of the single child
)

func (op BoolOp) String() string {
	switch op {
	case OpUnion:
		return "union"
	case OpIntersection:
		return "intersection"
	case OpDifference:
		return "difference"
	case OpNegate:
		return "negate"
	default:
		return "unknown"
	}
}

// BooleanData combines the node's children. Radius rounds the seams; zero
// keeps them sharp. Negation ignores it.
type BooleanData struct {
	Op     BoolOp  `json:"op"`
	Radius float64 `json:"radius,omitempty"`
}

func (BooleanData) nodeData() {}

// ---------------------------------------------------------------------------
// Group
// ---------------------------------------------------------------------------

// GroupData represents a named scene part. Its children are unioned sharply.
type GroupData struct {
	Description string `json:"description,omitempty"`
}

func (GroupData) nodeData() {}
