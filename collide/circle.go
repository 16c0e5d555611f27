package collide

import (
	"math"

	"github.com/veloxphys/velox2d/geom"
	"github.com/veloxphys/velox2d/shapes"
)

// CollideCircles fills m for two circle shapes.
func CollideCircles(m *Manifold, circleA *shapes.Circle, xfA geom.Transform, circleB *shapes.Circle, xfB geom.Transform) {
	m.PointCount = 0

	pA := xfA.Apply(circleA.P)
	pB := xfB.Apply(circleB.P)

	d := pB.Sub(pA)
	radius := circleA.R + circleB.R
	if d.Dot(d) > radius*radius {
		return
	}

	m.Kind = ManifoldCircles
	m.LocalPoint = circleA.P
	m.LocalNormal = geom.Vec2{}
	m.PointCount = 1
	m.Points[0] = ManifoldPoint{LocalPoint: circleB.P}
}

// CollidePolygonAndCircle fills m for a polygon against a circle.
func CollidePolygonAndCircle(m *Manifold, polyA *shapes.Polygon, xfA geom.Transform, circleB *shapes.Circle, xfB geom.Transform) {
	m.PointCount = 0

	// Circle center in the polygon's frame.
	c := xfB.Apply(circleB.P)
	cLocal := xfA.ApplyT(c)

	// Min separating edge.
	normalIndex := 0
	separation := math.Inf(-1)
	radius := geom.PolygonRadius + circleB.R

	for i := 0; i < polyA.Count; i++ {
		s := polyA.Normals[i].Dot(cLocal.Sub(polyA.Verts[i]))
		if s > radius {
			return
		}
		if s > separation {
			separation = s
			normalIndex = i
		}
	}

	// Vertices subtending the incident face.
	v1 := polyA.Verts[normalIndex]
	vertIndex2 := 0
	if normalIndex+1 < polyA.Count {
		vertIndex2 = normalIndex + 1
	}
	v2 := polyA.Verts[vertIndex2]

	// Center inside the polygon.
	if separation < geom.Epsilon {
		m.PointCount = 1
		m.Kind = ManifoldFaceA
		m.LocalNormal = polyA.Normals[normalIndex]
		m.LocalPoint = v1.Add(v2).Mul(0.5)
		m.Points[0] = ManifoldPoint{LocalPoint: circleB.P}
		return
	}

	// Barycentric coordinates along the face.
	u1 := cLocal.Sub(v1).Dot(v2.Sub(v1))
	u2 := cLocal.Sub(v2).Dot(v1.Sub(v2))
	switch {
	case u1 <= 0.0:
		if d := cLocal.Sub(v1); d.Dot(d) > radius*radius {
			return
		}
		m.PointCount = 1
		m.Kind = ManifoldFaceA
		m.LocalNormal = geom.Normalized(cLocal.Sub(v1))
		m.LocalPoint = v1
		m.Points[0] = ManifoldPoint{LocalPoint: circleB.P}

	case u2 <= 0.0:
		if d := cLocal.Sub(v2); d.Dot(d) > radius*radius {
			return
		}
		m.PointCount = 1
		m.Kind = ManifoldFaceA
		m.LocalNormal = geom.Normalized(cLocal.Sub(v2))
		m.LocalPoint = v2
		m.Points[0] = ManifoldPoint{LocalPoint: circleB.P}

	default:
		faceCenter := v1.Add(v2).Mul(0.5)
		if cLocal.Sub(faceCenter).Dot(polyA.Normals[normalIndex]) > radius {
			return
		}
		m.PointCount = 1
		m.Kind = ManifoldFaceA
		m.LocalNormal = polyA.Normals[normalIndex]
		m.LocalPoint = faceCenter
		m.Points[0] = ManifoldPoint{LocalPoint: circleB.P}
	}
}
