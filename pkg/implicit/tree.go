package implicit

import (
	"sync"

	"github.com/chazu/implicit3d/pkg/bbox"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Tree guards a root Object so that parameter broadcasts never race with
// evaluation. Evaluations share a read lock; SetParameters takes the write
// lock and bumps the generation counter.
type Tree struct {
	mu         sync.RWMutex
	root       Object
	params     PrimitiveParameters
	generation uint64
}

// NewTree wraps root, which must not be nil.
func NewTree(root Object) *Tree {
	return &Tree{
		root:   root,
		params: DefaultParameters(),
	}
}

// ApproxValue evaluates the root under the read lock.
func (t *Tree) ApproxValue(p v3.Vec, slack float64) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root.ApproxValue(p, slack)
}

// Normal evaluates the root normal under the read lock.
func (t *Tree) Normal(p v3.Vec) v3.Vec {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root.Normal(p)
}

// BBox returns a copy of the root bounding box.
func (t *Tree) BBox() bbox.BoundingBox {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return *t.root.BBox()
}

// SetParameters broadcasts p through the tree exclusively.
func (t *Tree) SetParameters(p PrimitiveParameters) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.root.SetParameters(p)
	t.params = p
	t.generation++
}

// Parameters returns the last broadcast parameters.
func (t *Tree) Parameters() PrimitiveParameters {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.params
}

// Generation counts completed SetParameters calls.
func (t *Tree) Generation() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.generation
}

// Snapshot returns a clone of the root taken under the read lock.
func (t *Tree) Snapshot() Object {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root.Clone()
}
