// Package kernel defines the abstract geometry kernel interface.
// Implementations provide solid modeling, rounded boolean operations and
// meshing behind this interface, so the rest of the system never touches
// the field representation directly.
package kernel

import "errors"

// ErrEmpty is returned by boolean operations given no operands.
var ErrEmpty = errors.New("kernel: boolean operation needs at least one solid")

// ErrUnbounded is returned when an operation needs a finite solid, such as
// meshing the complement of a bounded shape.
var ErrUnbounded = errors.New("kernel: solid is unbounded")

// Solid is an opaque handle to a geometry kernel solid.
// Implementations wrap their internal representation.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
}

// Sample is the field value and surface normal at a point.
type Sample struct {
	Point  [3]float64 `json:"point"`
	Value  float64    `json:"value"`
	Normal [3]float64 `json:"normal"`
}

// Kernel is the abstract geometry kernel interface.
type Kernel interface {
	// Primitives, centered on the origin.
	Sphere(radius float64) (Solid, error)
	Box(x, y, z, round float64) (Solid, error)
	Cylinder(height, radius, round float64) (Solid, error)

	// Boolean operations, rounded with radius r (0 is sharp). Difference
	// subtracts every other solid from the first.
	Union(r float64, solids ...Solid) (Solid, error)
	Difference(r float64, solids ...Solid) (Solid, error)
	Intersection(r float64, solids ...Solid) (Solid, error)
	Negate(s Solid) Solid

	// Transforms
	Translate(s Solid, x, y, z float64) Solid
	Rotate(s Solid, x, y, z float64) Solid // Euler angles in degrees
	Scale(s Solid, f float64) (Solid, error)

	// SetParameters retunes rounding of s and everything below it.
	SetParameters(s Solid, rMultiplier, fadeRange float64)

	// Queries
	Probe(s Solid, p [3]float64) Sample

	// Mesh output
	ToMesh(s Solid) (*Mesh, error)
}
