package shapes

import (
	"math"

	"github.com/veloxphys/velox2d/geom"
)

// Circle is a circle shape with a local center offset.
type Circle struct {
	P geom.Vec2
	R float64
}

// NewCircle returns a circle of the given radius centered on the origin.
func NewCircle(radius float64) *Circle {
	return &Circle{R: radius}
}

func (c *Circle) Kind() Kind        { return KindCircle }
func (c *Circle) Radius() float64   { return c.R }
func (c *Circle) ChildCount() int   { return 1 }

func (c *Circle) TestPoint(xf geom.Transform, p geom.Vec2) bool {
	center := xf.Apply(c.P)
	d := p.Sub(center)
	return d.Dot(d) <= c.R*c.R
}

// RayCast solves |s + a*r| = radius for the entry point
// (Collision Detection in Interactive 3D Environments, §3.1.2).
func (c *Circle) RayCast(input geom.RayCastInput, xf geom.Transform, child int) (geom.RayCastOutput, bool) {
	position := xf.Apply(c.P)
	s := input.P1.Sub(position)
	b := s.Dot(s) - c.R*c.R

	r := input.P2.Sub(input.P1)
	cc := s.Dot(r)
	rr := r.Dot(r)
	sigma := cc*cc - rr*b

	if sigma < 0.0 || rr < geom.Epsilon {
		return geom.RayCastOutput{}, false
	}

	a := -(cc + math.Sqrt(sigma))
	if 0.0 <= a && a <= input.MaxFraction*rr {
		a /= rr
		return geom.RayCastOutput{
			Fraction: a,
			Normal:   geom.Normalized(s.Add(r.Mul(a))),
		}, true
	}

	return geom.RayCastOutput{}, false
}

func (c *Circle) ComputeAABB(xf geom.Transform, child int) geom.AABB {
	p := xf.Apply(c.P)
	return geom.AABB{
		Lower: geom.Vec2{p[0] - c.R, p[1] - c.R},
		Upper: geom.Vec2{p[0] + c.R, p[1] + c.R},
	}
}

func (c *Circle) ComputeMass(density float64) MassData {
	mass := density * math.Pi * c.R * c.R
	return MassData{
		Mass:   mass,
		Center: c.P,
		I:      mass * (0.5*c.R*c.R + c.P.Dot(c.P)),
	}
}
