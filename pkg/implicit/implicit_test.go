package implicit

import (
	"math"
	"sync"
	"testing"

	"github.com/chazu/implicit3d/pkg/bbox"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tol = 1e-9

// ---------------------------------------------------------------------------
// Test leaves
// ---------------------------------------------------------------------------

// mockObject has a constant value and normal everywhere.
type mockObject struct {
	value  float64
	normal v3.Vec
	bbox   bbox.BoundingBox
	params *PrimitiveParameters
}

func newMock(value float64, normal v3.Vec) *mockObject {
	return &mockObject{value: value, normal: normal, bbox: bbox.Infinity()}
}

func (m *mockObject) ApproxValue(v3.Vec, float64) float64 { return m.value }
func (m *mockObject) Normal(v3.Vec) v3.Vec                { return m.normal }
func (m *mockObject) BBox() *bbox.BoundingBox             { return &m.bbox }
func (m *mockObject) SetParameters(p PrimitiveParameters) { m.params = &p }
func (m *mockObject) Clone() Object {
	c := *m
	return &c
}

// halfSpace is the solid dot(p, n) <= d for a unit normal n.
type halfSpace struct {
	n    v3.Vec
	d    float64
	bbox bbox.BoundingBox
}

func newHalfSpace(n v3.Vec, d float64) *halfSpace {
	return &halfSpace{n: n, d: d, bbox: bbox.Infinity()}
}

func (h *halfSpace) ApproxValue(p v3.Vec, _ float64) float64 { return p.Dot(h.n) - h.d }
func (h *halfSpace) Normal(v3.Vec) v3.Vec                    { return h.n }
func (h *halfSpace) BBox() *bbox.BoundingBox                 { return &h.bbox }
func (h *halfSpace) SetParameters(PrimitiveParameters)       {}
func (h *halfSpace) Clone() Object {
	c := *h
	return &c
}

func vec(x, y, z float64) v3.Vec { return v3.Vec{X: x, Y: y, Z: z} }

func sphere(t *testing.T, r float64) Object {
	t.Helper()
	s, err := sdf.Sphere3D(r)
	require.NoError(t, err)
	return FromSDF3(s)
}

func cube(t *testing.T, size float64) Object {
	t.Helper()
	s, err := sdf.Box3D(vec(size, size, size), 0)
	require.NoError(t, err)
	return FromSDF3(s)
}

func assertVecNear(t *testing.T, want, got v3.Vec, delta float64) {
	t.Helper()
	assert.InDeltaf(t, want.X, got.X, delta, "x: want %v, got %v", want, got)
	assert.InDeltaf(t, want.Y, got.Y, delta, "y: want %v, got %v", want, got)
	assert.InDeltaf(t, want.Z, got.Z, delta, "z: want %v, got %v", want, got)
}

// ---------------------------------------------------------------------------
// Composites over constant leaves
// ---------------------------------------------------------------------------

func TestUnion(t *testing.T) {
	m1 := newMock(1, vec(1, 0, 0))
	m2 := newMock(2, vec(0, 1, 0))
	u := NewUnion([]Object{m1, m2}, 0)
	require.NotNil(t, u)
	assert.Equal(t, 1.0, u.ApproxValue(vec(0, 0, 0), 0))
	assert.Equal(t, vec(1, 0, 0), u.Normal(vec(0, 0, 0)))
}

func TestIntersection(t *testing.T) {
	m1 := newMock(1, vec(1, 0, 0))
	m2 := newMock(2, vec(0, 1, 0))
	s := NewIntersection([]Object{m1, m2}, 0)
	require.NotNil(t, s)
	assert.Equal(t, 2.0, s.ApproxValue(vec(0, 0, 0), 0))
	assert.Equal(t, vec(0, 1, 0), s.Normal(vec(0, 0, 0)))
}

func TestNegation(t *testing.T) {
	m := newMock(1, vec(1, 0, 0))
	n := NegateAll([]Object{m})[0]
	assert.Equal(t, -1.0, n.ApproxValue(vec(0, 0, 0), 0))
	assert.Equal(t, vec(-1, 0, 0), n.Normal(vec(0, 0, 0)))
	assert.Equal(t, bbox.Infinity(), *n.BBox())
}

func TestDoubleNegation(t *testing.T) {
	s := sphere(t, 1)
	nn := NewNegation(NewNegation(s))
	for _, p := range []v3.Vec{vec(0, 0, 0), vec(0.5, 0.2, 0), vec(3, -2, 1)} {
		assert.Equal(t, s.ApproxValue(p, 0), nn.ApproxValue(p, 0))
	}
}

func TestDegenerateConstructors(t *testing.T) {
	m := newMock(1, vec(1, 0, 0))
	ctors := map[string]func([]Object, float64) Object{
		"union":        NewUnion,
		"intersection": NewIntersection,
		"difference":   NewDifference,
	}
	for name, ctor := range ctors {
		t.Run(name, func(t *testing.T) {
			assert.Nil(t, ctor(nil, 1))
			assert.Same(t, m, ctor([]Object{m}, 1))
		})
	}
}

// ---------------------------------------------------------------------------
// Blend functions
// ---------------------------------------------------------------------------

func TestRvminLiteralFarFromTies(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"ascending", []float64{0, 2, 4}, 0},
		{"descending", []float64{4, 2, 0}, 0},
		{"mixed", []float64{3, -1, 5, 1.5}, -1},
		{"single", []float64{7}, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rvmin(tt.values, 1, 1))
		})
	}
}

func TestRvmaxLiteralFarFromTies(t *testing.T) {
	assert.Equal(t, 4.0, rvmax([]float64{0, 2, 4}, 1, 1))
	assert.Equal(t, 4.0, rvmax([]float64{4, 2, 0}, 1, 1))
	assert.Equal(t, 5.0, rvmax([]float64{3, -1, 5, 1.5}, 1, 1))
}

func TestRvminSmoothsTies(t *testing.T) {
	r := 1.0
	got := rvmin([]float64{0, 0}, r, r)
	assert.InDelta(t, -r/4*math.Log(2), got, tol)
	assert.Less(t, got, 0.0)

	// A third value beyond r of the minimum does not take part.
	assert.InDelta(t, got, rvmin([]float64{0, 0, 1.5}, r, r), tol)
}

func TestRvmaxSmoothsTies(t *testing.T) {
	r := 2.0
	got := rvmax([]float64{1, 1}, r, r)
	assert.InDelta(t, 1+r/4*math.Log(2), got, tol)
}

func TestRvminMatchesUnshiftedFormula(t *testing.T) {
	v := []float64{0.3, 0.1, 0.6, 2}
	r := 1.0
	r4 := r / 4
	sum := 0.0
	for _, x := range v {
		if x < 0.1+r {
			sum += math.Exp(-x / r4)
		}
	}
	assert.InDelta(t, -r4*math.Log(sum), rvmin(v, r, r), tol)
}

func TestRvminLargeMagnitudes(t *testing.T) {
	got := rvmin([]float64{-1e4, -1e4}, 1, 1)
	assert.False(t, math.IsInf(got, 0))
	assert.InDelta(t, -1e4-0.25*math.Log(2), got, 1e-6)
}

func TestRvminZeroRadius(t *testing.T) {
	assert.Equal(t, 1.0, rvmin([]float64{1, 1}, 0, 0))
	assert.Equal(t, 1.0, rvmax([]float64{1, 1}, 0, 0))
}

// ---------------------------------------------------------------------------
// Rounded composites over half spaces
// ---------------------------------------------------------------------------

func TestRoundedUnionValue(t *testing.T) {
	a := newHalfSpace(vec(1, 0, 0), 0)
	b := newHalfSpace(vec(0, 1, 0), 0)
	u := NewUnion([]Object{a, b}, 1)

	// On the diagonal both children tie and the blend pulls the value down.
	assert.InDelta(t, 1-0.25*math.Log(2), u.ApproxValue(vec(1, 1, 0), 0), tol)
	// Far from the seam the field stays exact.
	assert.Equal(t, 1.0, u.ApproxValue(vec(1, 5, 0), 0))
}

func TestUnionNormalRegimes(t *testing.T) {
	a := newHalfSpace(vec(1, 0, 0), 0)
	b := newHalfSpace(vec(0, 1, 0), 0)
	u := NewUnion([]Object{a, b}, 1)

	t.Run("blend", func(t *testing.T) {
		s := 1 / math.Sqrt2
		assertVecNear(t, vec(s, s, 0), u.Normal(vec(1, 1, 0)), 1e-4)
	})
	t.Run("fade", func(t *testing.T) {
		// diff = 0.95 lies between exactRange*(1-fadeRange) and exactRange.
		n := u.Normal(vec(1, 1.95, 0))
		assert.InDelta(t, 1, n.Length(), 1e-9)
		assert.Greater(t, n.X, n.Y)
		assert.Greater(t, n.Y, 0.0)
	})
	t.Run("nearest child", func(t *testing.T) {
		assert.Equal(t, vec(1, 0, 0), u.Normal(vec(1, 3, 0)))
	})
}

func TestIntersectionNormalRegimes(t *testing.T) {
	a := newHalfSpace(vec(1, 0, 0), 0)
	b := newHalfSpace(vec(0, 1, 0), 0)
	s := NewIntersection([]Object{a, b}, 1)

	assert.Equal(t, vec(0, 1, 0), s.Normal(vec(-3, 1, 0)))
	n := s.Normal(vec(-0.2, -0.2, 0))
	r := 1 / math.Sqrt2
	assertVecNear(t, vec(r, r, 0), n, 1e-4)
}

func TestSetParametersDisablesBlending(t *testing.T) {
	a := newHalfSpace(vec(1, 0, 0), 0)
	b := newHalfSpace(vec(0, 1, 0), 0)
	u := NewUnion([]Object{a, b}, 1)
	u.SetParameters(PrimitiveParameters{RMultiplier: 0, FadeRange: 0.1})
	assert.Equal(t, 1.0, u.ApproxValue(vec(1, 1, 0), 0))
	assert.Equal(t, vec(1, 0, 0), u.Normal(vec(1, 1, 0)))
}

func TestSetParametersPropagates(t *testing.T) {
	m1 := newMock(1, vec(1, 0, 0))
	m2 := newMock(2, vec(0, 1, 0))
	m3 := newMock(3, vec(0, 0, 1))
	inner := NewIntersection([]Object{m2, m3}, 0.5)
	root := NewUnion([]Object{m1, NewNegation(inner)}, 1)

	p := PrimitiveParameters{RMultiplier: 2, FadeRange: 0.3}
	root.SetParameters(p)
	for _, m := range []*mockObject{m1, m2, m3} {
		require.NotNil(t, m.params)
		assert.Equal(t, p, *m.params)
	}
	assert.Equal(t, 1.0, inner.(*Intersection).exactRange)
	assert.Equal(t, 0.3, inner.(*Intersection).fadeRange)
}

// ---------------------------------------------------------------------------
// Bounding boxes and pruning
// ---------------------------------------------------------------------------

func TestUnionBBoxDilated(t *testing.T) {
	a := NewTranslation(cube(t, 2), vec(-2, 0, 0))
	b := NewTranslation(cube(t, 2), vec(2, 0, 0))
	u := NewUnion([]Object{a, b}, 1)
	want := bbox.New(vec(-3.2, -1.2, -1.2), vec(3.2, 1.2, 1.2))
	assert.True(t, want.Equals(*u.BBox(), tol), "got %v", *u.BBox())
}

func TestIntersectionBBox(t *testing.T) {
	a := cube(t, 2)
	b := NewTranslation(cube(t, 2), vec(1, 0, 0))
	s := NewIntersection([]Object{a, b}, 1)
	want := bbox.New(vec(0, -1, -1), vec(1, 1, 1))
	assert.True(t, want.Equals(*s.BBox(), tol), "got %v", *s.BBox())
}

func TestUnionPrunesFarPoints(t *testing.T) {
	u := NewUnion([]Object{cube(t, 2), sphere(t, 0.5)}, 0.5)
	p := vec(10, 0, 0)
	// bbox max.x is 1 + 0.2*0.5.
	assert.InDelta(t, 8.9, u.ApproxValue(p, 0), tol)
	// With a wide slack the exact value comes back.
	assert.InDelta(t, 9.0, u.ApproxValue(p, 100), tol)
}

func TestApproxValueIsConservative(t *testing.T) {
	u := NewUnion([]Object{cube(t, 2), NewTranslation(sphere(t, 1), vec(3, 0, 0))}, 0)
	for _, p := range []v3.Vec{vec(10, 0, 0), vec(0, 7, 2), vec(-5, -5, -5)} {
		exact := u.ApproxValue(p, math.Inf(1))
		approx := u.ApproxValue(p, 0)
		assert.LessOrEqual(t, approx, exact+tol)
		assert.Greater(t, approx, 0.0)
	}
}

// ---------------------------------------------------------------------------
// Difference
// ---------------------------------------------------------------------------

func TestDifference(t *testing.T) {
	box := cube(t, 2)
	hole := sphere(t, 0.5)
	d := NewDifference([]Object{box, hole}, 0)
	require.NotNil(t, d)

	assert.InDelta(t, 0.5, d.ApproxValue(vec(0, 0, 0), 0), tol)
	assert.InDelta(t, -0.1, d.ApproxValue(vec(0.9, 0, 0), 0), tol)
	assert.Greater(t, d.ApproxValue(vec(3, 0, 0), 0), 0.0)

	// Inside the hole near its wall the normal points toward the center.
	n := d.Normal(vec(0.45, 0, 0))
	assertVecNear(t, vec(-1, 0, 0), n, 1e-4)
}

func TestDifferenceClonesSubtrahends(t *testing.T) {
	hole := newMock(1, vec(1, 0, 0))
	d := NewDifference([]Object{newMock(-1, vec(0, 0, 1)), hole}, 0).(*Intersection)
	neg, ok := d.Children()[1].(*Negation)
	require.True(t, ok)
	assert.NotSame(t, hole, neg.Child())
	assert.Equal(t, hole.value, neg.Child().(*mockObject).value)
}

func TestCloneIsDeep(t *testing.T) {
	m := newMock(1, vec(1, 0, 0))
	u := NewUnion([]Object{m, newMock(2, vec(0, 1, 0))}, 1).(*Union)
	c := u.Clone().(*Union)
	assert.NotSame(t, u.Children()[0], c.Children()[0])
	c.SetParameters(PrimitiveParameters{RMultiplier: 3, FadeRange: 0.2})
	assert.Nil(t, m.params)
	assert.Equal(t, 1.0, u.exactRange)
}

// ---------------------------------------------------------------------------
// Transformer
// ---------------------------------------------------------------------------

func TestTranslation(t *testing.T) {
	s := NewTranslation(sphere(t, 1), vec(1, 2, 3))
	assert.InDelta(t, -1, s.ApproxValue(vec(1, 2, 3), 0), tol)
	assertVecNear(t, vec(0, 0, 1), s.Normal(vec(1, 2, 4)), 1e-4)
	want := bbox.New(vec(0, 1, 2), vec(2, 3, 4))
	assert.True(t, want.Equals(*s.BBox(), tol))
}

func TestRotation(t *testing.T) {
	s, err := sdf.Box3D(vec(4, 1, 1), 0)
	require.NoError(t, err)
	r := NewRotation(FromSDF3(s), vec(0, 0, 1), math.Pi/2)
	assert.Less(t, r.ApproxValue(vec(0, 1.9, 0), 0), 0.0)
	assert.Greater(t, r.ApproxValue(vec(1.9, 0, 0), 0), 0.0)
	assertVecNear(t, vec(0, 1, 0), r.Normal(vec(0, 2.1, 0)), 1e-4)
}

func TestScale(t *testing.T) {
	s, err := NewScale(sphere(t, 1), 2)
	require.NoError(t, err)
	assert.InDelta(t, 1, s.ApproxValue(vec(3, 0, 0), 0), tol)
	assert.InDelta(t, -2, s.ApproxValue(vec(0, 0, 0), 0), tol)

	for _, f := range []float64{0, -1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err = NewScale(sphere(t, 1), f)
		assert.Error(t, err, "scale %g", f)
	}
}

// ---------------------------------------------------------------------------
// Adapters and Tree
// ---------------------------------------------------------------------------

func TestAsSDF3(t *testing.T) {
	u := NewUnion([]Object{cube(t, 2), sphere(t, 1.2)}, 0.3)
	s := AsSDF3(u, 0)
	p := vec(0.7, 0.1, -0.4)
	assert.Equal(t, u.ApproxValue(p, 0), s.Evaluate(p))
	assert.Equal(t, u.BBox().Box3(), s.BoundingBox())
}

func TestTreeSetParameters(t *testing.T) {
	a := newHalfSpace(vec(1, 0, 0), 0)
	b := newHalfSpace(vec(0, 1, 0), 0)
	tree := NewTree(NewUnion([]Object{a, b}, 1))
	assert.Equal(t, DefaultParameters(), tree.Parameters())
	assert.Zero(t, tree.Generation())

	p := vec(1, 1, 0)
	blended := tree.ApproxValue(p, 0)
	assert.Less(t, blended, 1.0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tree.ApproxValue(p, 0)
				tree.Normal(p)
			}
		}()
	}
	tree.SetParameters(PrimitiveParameters{RMultiplier: 0, FadeRange: 0.1})
	wg.Wait()

	assert.Equal(t, uint64(1), tree.Generation())
	assert.Equal(t, 1.0, tree.ApproxValue(p, 0))
	assert.Equal(t, 1.0, tree.Snapshot().ApproxValue(p, 0))
}
