// Package shapes defines the convex collision shapes a fixture can carry:
// circles, convex polygons, line segments, and segment chains. Shapes are
// pure geometry; they know nothing about bodies or the contact graph.
package shapes

import (
	"errors"

	"github.com/veloxphys/velox2d/geom"
)

// ErrDegenerate is returned when shape input geometry is unusable: too few
// vertices, welded duplicates reducing a polygon below a triangle, or chain
// vertices closer than the linear slop.
var ErrDegenerate = errors.New("shapes: degenerate geometry")

// Kind discriminates the closed set of shape types. The narrow-phase
// dispatch table is indexed by pairs of kinds.
type Kind uint8

const (
	KindCircle Kind = iota
	KindEdge
	KindPolygon
	KindChain
	KindCount
)

func (k Kind) String() string {
	switch k {
	case KindCircle:
		return "circle"
	case KindEdge:
		return "edge"
	case KindPolygon:
		return "polygon"
	case KindChain:
		return "chain"
	}
	return "unknown"
}

// MassData holds the mass properties computed for a shape.
type MassData struct {
	// Mass of the shape in kilograms.
	Mass float64
	// Center is the centroid relative to the shape origin.
	Center geom.Vec2
	// I is the rotational inertia about the local origin.
	I float64
}

// Shape is the interface all collision shapes implement. A shape may hold
// several child primitives (a chain holds one edge per segment); children
// are addressed by index throughout the broad and narrow phase.
type Shape interface {
	Kind() Kind

	// Radius is the shape's skin thickness. Circles use their full radius;
	// polygons and edges use the polygon skin.
	Radius() float64

	// ChildCount is the number of child primitives.
	ChildCount() int

	// TestPoint reports containment of a world point. Only meaningful for
	// solid shapes; edges and chains always report false.
	TestPoint(xf geom.Transform, p geom.Vec2) bool

	// RayCast intersects a ray with one child.
	RayCast(input geom.RayCastInput, xf geom.Transform, child int) (geom.RayCastOutput, bool)

	// ComputeAABB returns the bounding box of one child under xf.
	ComputeAABB(xf geom.Transform, child int) geom.AABB

	// ComputeMass computes mass properties from the given density in kg/m².
	ComputeMass(density float64) MassData
}
