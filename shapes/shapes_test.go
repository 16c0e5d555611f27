package shapes_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veloxphys/velox2d/geom"
	"github.com/veloxphys/velox2d/shapes"
)

func TestCircleMass(t *testing.T) {
	c := shapes.NewCircle(0.5)
	c.P = geom.Vec2{1.0, 2.0}

	md := c.ComputeMass(2.0)
	area := math.Pi * 0.25
	assert.InDelta(t, 2.0*area, md.Mass, 1e-12)
	assert.Equal(t, c.P, md.Center)
	// I = m * (r^2/2 + |p|^2)
	assert.InDelta(t, md.Mass*(0.125+5.0), md.I, 1e-12)
}

func TestBoxMass(t *testing.T) {
	b := shapes.NewBox(1.0, 2.0)

	md := b.ComputeMass(3.0)
	assert.InDelta(t, 3.0*2.0*4.0, md.Mass, 1e-9)
	assert.InDelta(t, 0.0, md.Center[0], 1e-9)
	assert.InDelta(t, 0.0, md.Center[1], 1e-9)
	// Rectangle about its center: m*(w^2+h^2)/12.
	assert.InDelta(t, md.Mass*(4.0+16.0)/12.0, md.I, 1e-9)
}

func TestOffsetBoxMass(t *testing.T) {
	center := geom.Vec2{3.0, -1.0}
	b := shapes.NewOffsetBox(0.5, 0.5, center, 0.0)

	md := b.ComputeMass(1.0)
	assert.InDelta(t, 1.0, md.Mass, 1e-9)
	assert.InDelta(t, center[0], md.Center[0], 1e-9)
	assert.InDelta(t, center[1], md.Center[1], 1e-9)
	// Parallel axis: I about the body origin grows with the offset.
	centered := shapes.NewBox(0.5, 0.5).ComputeMass(1.0)
	assert.InDelta(t, centered.I+md.Mass*center.Dot(center), md.I, 1e-9)
}

func TestPolygonHull(t *testing.T) {
	// A point inside the square must not survive the hull.
	p, err := shapes.NewPolygon([]geom.Vec2{
		{-1, -1}, {1, -1}, {1, 1}, {-1, 1}, {0, 0},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, p.Count)
	assert.True(t, p.Validate())
}

func TestPolygonDegenerate(t *testing.T) {
	_, err := shapes.NewPolygon([]geom.Vec2{{0, 0}, {1, 0}})
	assert.ErrorIs(t, err, shapes.ErrDegenerate)

	// Collinear points collapse below three hull vertices.
	_, err = shapes.NewPolygon([]geom.Vec2{{0, 0}, {1, 0}, {2, 0}})
	assert.ErrorIs(t, err, shapes.ErrDegenerate)
}

func TestCircleTestPoint(t *testing.T) {
	c := shapes.NewCircle(1.0)
	xf := geom.TransformFrom(geom.Vec2{2.0, 0.0}, 0.0)

	assert.True(t, c.TestPoint(xf, geom.Vec2{2.5, 0.0}))
	assert.False(t, c.TestPoint(xf, geom.Vec2{4.0, 0.0}))
}

func TestPolygonTestPoint(t *testing.T) {
	b := shapes.NewBox(1.0, 1.0)
	xf := geom.TransformFrom(geom.Vec2{}, 0.25*math.Pi)

	// Under a 45 degree rotation the corners move out to sqrt(2).
	assert.True(t, b.TestPoint(xf, geom.Vec2{0.0, 1.2}))
	assert.False(t, b.TestPoint(xf, geom.Vec2{1.2, 1.2}))
}

func TestCircleRayCast(t *testing.T) {
	c := shapes.NewCircle(1.0)
	xf := geom.TransformFrom(geom.Vec2{3.0, 0.0}, 0.0)

	out, hit := c.RayCast(geom.RayCastInput{
		P1: geom.Vec2{0.0, 0.0}, P2: geom.Vec2{4.0, 0.0}, MaxFraction: 1.0,
	}, xf, 0)
	require.True(t, hit)
	assert.InDelta(t, 0.5, out.Fraction, 1e-9)
	assert.InDelta(t, -1.0, out.Normal[0], 1e-9)

	_, hit = c.RayCast(geom.RayCastInput{
		P1: geom.Vec2{0.0, 2.0}, P2: geom.Vec2{4.0, 2.0}, MaxFraction: 1.0,
	}, xf, 0)
	assert.False(t, hit)
}

func TestEdgeRayCast(t *testing.T) {
	e := shapes.NewEdge(geom.Vec2{-1.0, 1.0}, geom.Vec2{1.0, 1.0})
	xf := geom.TransformFrom(geom.Vec2{}, 0.0)

	out, hit := e.RayCast(geom.RayCastInput{
		P1: geom.Vec2{0.0, 0.0}, P2: geom.Vec2{0.0, 2.0}, MaxFraction: 1.0,
	}, xf, 0)
	require.True(t, hit)
	assert.InDelta(t, 0.5, out.Fraction, 1e-9)

	// Ray parallel to the edge misses.
	_, hit = e.RayCast(geom.RayCastInput{
		P1: geom.Vec2{-2.0, 0.0}, P2: geom.Vec2{2.0, 0.0}, MaxFraction: 1.0,
	}, xf, 0)
	assert.False(t, hit)
}

func TestPolygonRayCast(t *testing.T) {
	b := shapes.NewBox(1.0, 1.0)
	xf := geom.TransformFrom(geom.Vec2{5.0, 0.0}, 0.0)

	out, hit := b.RayCast(geom.RayCastInput{
		P1: geom.Vec2{0.0, 0.0}, P2: geom.Vec2{8.0, 0.0}, MaxFraction: 1.0,
	}, xf, 0)
	require.True(t, hit)
	assert.InDelta(t, 0.5, out.Fraction, 1e-9)
	assert.InDelta(t, -1.0, out.Normal[0], 1e-9)
}

func TestChainChildren(t *testing.T) {
	verts := []geom.Vec2{{0, 0}, {1, 0}, {2, 1}, {3, 1}}

	chain, err := shapes.NewChain(verts)
	require.NoError(t, err)
	assert.Equal(t, 3, chain.ChildCount())

	loop, err := shapes.NewLoop(verts)
	require.NoError(t, err)
	assert.Equal(t, 4, loop.ChildCount())

	var e shapes.Edge
	chain.ChildEdge(&e, 1)
	assert.Equal(t, verts[1], e.V1)
	assert.Equal(t, verts[2], e.V2)
}

func TestChainTooShort(t *testing.T) {
	_, err := shapes.NewChain([]geom.Vec2{{0, 0}})
	assert.Error(t, err)

	_, err = shapes.NewLoop([]geom.Vec2{{0, 0}, {1, 0}})
	assert.Error(t, err)
}

func TestChainAABBPerChild(t *testing.T) {
	chain, err := shapes.NewChain([]geom.Vec2{{0, 0}, {2, 0}, {2, 2}})
	require.NoError(t, err)

	xf := geom.TransformFrom(geom.Vec2{}, 0.0)
	bb := chain.ComputeAABB(xf, 1)
	assert.InDelta(t, 2.0, bb.Lower[0], 1e-9)
	assert.InDelta(t, 0.0, bb.Lower[1], 1e-9)
	assert.InDelta(t, 2.0, bb.Upper[1], 1e-9)
}
