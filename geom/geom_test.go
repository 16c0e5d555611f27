package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotApplyRoundTrip(t *testing.T) {
	q := RotFromAngle(0.7)
	v := Vec2{3.0, -2.0}

	back := q.ApplyT(q.Apply(v))
	assert.InDelta(t, v[0], back[0], 1e-12)
	assert.InDelta(t, v[1], back[1], 1e-12)
	assert.InDelta(t, 0.7, q.Angle(), 1e-12)
}

func TestTransformApply(t *testing.T) {
	xf := TransformFrom(Vec2{1.0, 2.0}, math.Pi/2)

	p := xf.Apply(Vec2{1.0, 0.0})
	assert.InDelta(t, 1.0, p[0], 1e-12)
	assert.InDelta(t, 3.0, p[1], 1e-12)

	back := xf.ApplyT(p)
	assert.InDelta(t, 1.0, back[0], 1e-12)
	assert.InDelta(t, 0.0, back[1], 1e-12)
}

func TestNormalizedDegenerate(t *testing.T) {
	assert.Equal(t, Vec2{}, Normalized(Vec2{}))

	u := Normalized(Vec2{3.0, 4.0})
	assert.InDelta(t, 0.6, u[0], 1e-12)
	assert.InDelta(t, 0.8, u[1], 1e-12)
}

func TestCrossIdentities(t *testing.T) {
	a := Vec2{2.0, 1.0}
	// s x (s x a) identity used by the solvers:
	// cross(w, cross(w, a)) = -w^2 * a
	w := 3.0
	v := CrossSV(w, CrossSV(w, a))
	assert.InDelta(t, -w*w*a[0], v[0], 1e-12)
	assert.InDelta(t, -w*w*a[1], v[1], 1e-12)
}

func TestSweepAdvanceAndTransform(t *testing.T) {
	var s Sweep
	s.C0 = Vec2{0.0, 0.0}
	s.C = Vec2{10.0, 0.0}
	s.A0 = 0.0
	s.A = 1.0

	mid := s.Transform(0.5)
	assert.InDelta(t, 5.0, mid.P[0], 1e-12)

	s.Advance(0.5)
	assert.InDelta(t, 0.5, s.Alpha0, 1e-12)
	assert.InDelta(t, 5.0, s.C0[0], 1e-12)
	assert.InDelta(t, 0.5, s.A0, 1e-12)
	// End state is untouched.
	assert.InDelta(t, 10.0, s.C[0], 1e-12)
}

func TestAABBCombineAndContains(t *testing.T) {
	a := AABB{Lower: Vec2{0, 0}, Upper: Vec2{1, 1}}
	b := AABB{Lower: Vec2{2, 2}, Upper: Vec2{3, 3}}

	c := Union(a, b)
	assert.True(t, c.Contains(a))
	assert.True(t, c.Contains(b))
	assert.False(t, Overlap(a, b))
	assert.True(t, Overlap(c, a))
}

func TestAABBRayCast(t *testing.T) {
	box := AABB{Lower: Vec2{-1, -1}, Upper: Vec2{1, 1}}

	out, hit := box.RayCast(RayCastInput{P1: Vec2{-3, 0}, P2: Vec2{3, 0}, MaxFraction: 1.0})
	require.True(t, hit)
	assert.InDelta(t, 1.0/3.0, out.Fraction, 1e-12)
	assert.InDelta(t, -1.0, out.Normal[0], 1e-12)

	_, hit = box.RayCast(RayCastInput{P1: Vec2{-3, 5}, P2: Vec2{3, 5}, MaxFraction: 1.0})
	assert.False(t, hit)
}
