package collide

import (
	"math"

	"github.com/veloxphys/velox2d/geom"
	"github.com/veloxphys/velox2d/shapes"
)

// CollideEdgeAndCircle fills m for an edge against a circle, accounting
// for edge connectivity: contacts that belong to an adjacent segment's
// face region are suppressed.
func CollideEdgeAndCircle(m *Manifold, edgeA *shapes.Edge, xfA geom.Transform, circleB *shapes.Circle, xfB geom.Transform) {
	m.PointCount = 0

	// Circle center in the edge's frame.
	q := xfA.ApplyT(xfB.Apply(circleB.P))

	a := edgeA.V1
	b := edgeA.V2
	e := b.Sub(a)

	// Barycentric coordinates.
	u := e.Dot(b.Sub(q))
	v := e.Dot(q.Sub(a))

	radius := geom.PolygonRadius + circleB.R

	feature := Feature{IndexB: 0, TypeB: FeatureVertex}

	// Region A
	if v <= 0.0 {
		d := q.Sub(a)
		if d.Dot(d) > radius*radius {
			return
		}

		// The preceding segment owns region AB on its side.
		if edgeA.HasV0 {
			e1 := a.Sub(edgeA.V0)
			if e1.Dot(a.Sub(q)) > 0.0 {
				return
			}
		}

		feature.IndexA = 0
		feature.TypeA = FeatureVertex
		m.PointCount = 1
		m.Kind = ManifoldCircles
		m.LocalNormal = geom.Vec2{}
		m.LocalPoint = a
		m.Points[0] = ManifoldPoint{LocalPoint: circleB.P, Feature: feature}
		return
	}

	// Region B
	if u <= 0.0 {
		d := q.Sub(b)
		if d.Dot(d) > radius*radius {
			return
		}

		// The next segment owns region AB on its side.
		if edgeA.HasV3 {
			e2 := edgeA.V3.Sub(b)
			if e2.Dot(q.Sub(b)) > 0.0 {
				return
			}
		}

		feature.IndexA = 1
		feature.TypeA = FeatureVertex
		m.PointCount = 1
		m.Kind = ManifoldCircles
		m.LocalNormal = geom.Vec2{}
		m.LocalPoint = b
		m.Points[0] = ManifoldPoint{LocalPoint: circleB.P, Feature: feature}
		return
	}

	// Region AB
	den := e.Dot(e)
	p := a.Mul(u).Add(b.Mul(v)).Mul(1.0 / den)
	d := q.Sub(p)
	if d.Dot(d) > radius*radius {
		return
	}

	n := geom.Vec2{-e[1], e[0]}
	if n.Dot(q.Sub(a)) < 0.0 {
		n = n.Mul(-1)
	}
	n = geom.Normalized(n)

	feature.IndexA = 0
	feature.TypeA = FeatureFace
	m.PointCount = 1
	m.Kind = ManifoldFaceA
	m.LocalNormal = n
	m.LocalPoint = a
	m.Points[0] = ManifoldPoint{LocalPoint: circleB.P, Feature: feature}
}

type epAxisKind uint8

const (
	epAxisUnknown epAxisKind = iota
	epAxisEdgeA
	epAxisEdgeB
)

type epAxis struct {
	kind       epAxisKind
	index      int
	separation float64
}

// tempPolygon holds polygon B expressed in edge A's frame.
type tempPolygon struct {
	verts   [geom.MaxPolygonVertices]geom.Vec2
	normals [geom.MaxPolygonVertices]geom.Vec2
	count   int
}

type referenceFace struct {
	i1, i2      int
	v1, v2      geom.Vec2
	normal      geom.Vec2
	sideNormal1 geom.Vec2
	sideOffset1 float64
	sideNormal2 geom.Vec2
	sideOffset2 float64
}

// epCollider collides an edge and a polygon, taking edge adjacency into
// account. The normal range is restricted by the neighboring segments so
// internal vertices of a chain do not produce phantom normals.
type epCollider struct {
	polygonB tempPolygon

	xf                        geom.Transform
	centroidB                 geom.Vec2
	v0, v1, v2, v3            geom.Vec2
	normal0, normal1, normal2 geom.Vec2
	normal                    geom.Vec2
	lowerLimit, upperLimit    geom.Vec2
	radius                    float64
	front                     bool
}

// CollideEdgeAndPolygon fills m for an edge against a polygon:
// classify the neighboring segments, pick front or back, restrict the
// normal range to the adjacent edges, test the separating axes within the
// range, then clip against the reference face.
func CollideEdgeAndPolygon(m *Manifold, edgeA *shapes.Edge, xfA geom.Transform, polygonB *shapes.Polygon, xfB geom.Transform) {
	var c epCollider
	c.collide(m, edgeA, xfA, polygonB, xfB)
}

func (c *epCollider) collide(m *Manifold, edgeA *shapes.Edge, xfA geom.Transform, polygonB *shapes.Polygon, xfB geom.Transform) {
	c.xf = geom.MulTTransforms(xfA, xfB)
	c.centroidB = c.xf.Apply(polygonB.Centroid)

	c.v0, c.v1, c.v2, c.v3 = edgeA.V0, edgeA.V1, edgeA.V2, edgeA.V3
	hasVertex0 := edgeA.HasV0
	hasVertex3 := edgeA.HasV3

	edge1 := geom.Normalized(c.v2.Sub(c.v1))
	c.normal1 = geom.Vec2{edge1[1], -edge1[0]}
	offset1 := c.normal1.Dot(c.centroidB.Sub(c.v1))
	offset0, offset2 := 0.0, 0.0
	convex1, convex2 := false, false

	if hasVertex0 {
		edge0 := geom.Normalized(c.v1.Sub(c.v0))
		c.normal0 = geom.Vec2{edge0[1], -edge0[0]}
		convex1 = geom.Cross(edge0, edge1) >= 0.0
		offset0 = c.normal0.Dot(c.centroidB.Sub(c.v0))
	}

	if hasVertex3 {
		edge2 := geom.Normalized(c.v3.Sub(c.v2))
		c.normal2 = geom.Vec2{edge2[1], -edge2[0]}
		convex2 = geom.Cross(edge1, edge2) > 0.0
		offset2 = c.normal2.Dot(c.centroidB.Sub(c.v2))
	}

	// Front/back determination and normal limits, per adjacency case.
	switch {
	case hasVertex0 && hasVertex3:
		switch {
		case convex1 && convex2:
			c.front = offset0 >= 0.0 || offset1 >= 0.0 || offset2 >= 0.0
			if c.front {
				c.normal = c.normal1
				c.lowerLimit = c.normal0
				c.upperLimit = c.normal2
			} else {
				c.normal = c.normal1.Mul(-1)
				c.lowerLimit = c.normal1.Mul(-1)
				c.upperLimit = c.normal1.Mul(-1)
			}
		case convex1:
			c.front = offset0 >= 0.0 || (offset1 >= 0.0 && offset2 >= 0.0)
			if c.front {
				c.normal = c.normal1
				c.lowerLimit = c.normal0
				c.upperLimit = c.normal1
			} else {
				c.normal = c.normal1.Mul(-1)
				c.lowerLimit = c.normal2.Mul(-1)
				c.upperLimit = c.normal1.Mul(-1)
			}
		case convex2:
			c.front = offset2 >= 0.0 || (offset0 >= 0.0 && offset1 >= 0.0)
			if c.front {
				c.normal = c.normal1
				c.lowerLimit = c.normal1
				c.upperLimit = c.normal2
			} else {
				c.normal = c.normal1.Mul(-1)
				c.lowerLimit = c.normal1.Mul(-1)
				c.upperLimit = c.normal0.Mul(-1)
			}
		default:
			c.front = offset0 >= 0.0 && offset1 >= 0.0 && offset2 >= 0.0
			if c.front {
				c.normal = c.normal1
				c.lowerLimit = c.normal1
				c.upperLimit = c.normal1
			} else {
				c.normal = c.normal1.Mul(-1)
				c.lowerLimit = c.normal2.Mul(-1)
				c.upperLimit = c.normal0.Mul(-1)
			}
		}

	case hasVertex0:
		if convex1 {
			c.front = offset0 >= 0.0 || offset1 >= 0.0
			if c.front {
				c.normal = c.normal1
				c.lowerLimit = c.normal0
				c.upperLimit = c.normal1.Mul(-1)
			} else {
				c.normal = c.normal1.Mul(-1)
				c.lowerLimit = c.normal1
				c.upperLimit = c.normal1.Mul(-1)
			}
		} else {
			c.front = offset0 >= 0.0 && offset1 >= 0.0
			if c.front {
				c.normal = c.normal1
				c.lowerLimit = c.normal1
				c.upperLimit = c.normal1.Mul(-1)
			} else {
				c.normal = c.normal1.Mul(-1)
				c.lowerLimit = c.normal1
				c.upperLimit = c.normal0.Mul(-1)
			}
		}

	case hasVertex3:
		if convex2 {
			c.front = offset1 >= 0.0 || offset2 >= 0.0
			if c.front {
				c.normal = c.normal1
				c.lowerLimit = c.normal1.Mul(-1)
				c.upperLimit = c.normal2
			} else {
				c.normal = c.normal1.Mul(-1)
				c.lowerLimit = c.normal1.Mul(-1)
				c.upperLimit = c.normal1
			}
		} else {
			c.front = offset1 >= 0.0 && offset2 >= 0.0
			if c.front {
				c.normal = c.normal1
				c.lowerLimit = c.normal1.Mul(-1)
				c.upperLimit = c.normal1
			} else {
				c.normal = c.normal1.Mul(-1)
				c.lowerLimit = c.normal2.Mul(-1)
				c.upperLimit = c.normal1
			}
		}

	default:
		c.front = offset1 >= 0.0
		if c.front {
			c.normal = c.normal1
			c.lowerLimit = c.normal1.Mul(-1)
			c.upperLimit = c.normal1.Mul(-1)
		} else {
			c.normal = c.normal1.Mul(-1)
			c.lowerLimit = c.normal1
			c.upperLimit = c.normal1
		}
	}

	// Polygon B in frame A.
	c.polygonB.count = polygonB.Count
	for i := 0; i < polygonB.Count; i++ {
		c.polygonB.verts[i] = c.xf.Apply(polygonB.Verts[i])
		c.polygonB.normals[i] = c.xf.Q.Apply(polygonB.Normals[i])
	}

	c.radius = 2.0 * geom.PolygonRadius

	m.PointCount = 0

	edgeAxis := c.computeEdgeSeparation()
	if edgeAxis.kind == epAxisUnknown {
		return
	}
	if edgeAxis.separation > c.radius {
		return
	}

	polygonAxis := c.computePolygonSeparation()
	if polygonAxis.kind != epAxisUnknown && polygonAxis.separation > c.radius {
		return
	}

	// Hysteresis for jitter reduction.
	const relativeTol = 0.98
	const absoluteTol = 0.001

	var primaryAxis epAxis
	if polygonAxis.kind == epAxisUnknown {
		primaryAxis = edgeAxis
	} else if polygonAxis.separation > relativeTol*edgeAxis.separation+absoluteTol {
		primaryAxis = polygonAxis
	} else {
		primaryAxis = edgeAxis
	}

	var ie [2]clipVertex
	var rf referenceFace
	if primaryAxis.kind == epAxisEdgeA {
		m.Kind = ManifoldFaceA

		// Polygon normal most anti-parallel to the edge normal.
		bestIndex := 0
		bestValue := c.normal.Dot(c.polygonB.normals[0])
		for i := 1; i < c.polygonB.count; i++ {
			if value := c.normal.Dot(c.polygonB.normals[i]); value < bestValue {
				bestValue = value
				bestIndex = i
			}
		}

		i1 := bestIndex
		i2 := 0
		if i1+1 < c.polygonB.count {
			i2 = i1 + 1
		}

		ie[0] = clipVertex{
			v: c.polygonB.verts[i1],
			feature: Feature{
				IndexA: 0, IndexB: uint8(i1),
				TypeA: FeatureFace, TypeB: FeatureVertex,
			},
		}
		ie[1] = clipVertex{
			v: c.polygonB.verts[i2],
			feature: Feature{
				IndexA: 0, IndexB: uint8(i2),
				TypeA: FeatureFace, TypeB: FeatureVertex,
			},
		}

		if c.front {
			rf.i1, rf.i2 = 0, 1
			rf.v1, rf.v2 = c.v1, c.v2
			rf.normal = c.normal1
		} else {
			rf.i1, rf.i2 = 1, 0
			rf.v1, rf.v2 = c.v2, c.v1
			rf.normal = c.normal1.Mul(-1)
		}
	} else {
		m.Kind = ManifoldFaceB

		ie[0] = clipVertex{
			v: c.v1,
			feature: Feature{
				IndexA: 0, IndexB: uint8(primaryAxis.index),
				TypeA: FeatureVertex, TypeB: FeatureFace,
			},
		}
		ie[1] = clipVertex{
			v: c.v2,
			feature: Feature{
				IndexA: 0, IndexB: uint8(primaryAxis.index),
				TypeA: FeatureVertex, TypeB: FeatureFace,
			},
		}

		rf.i1 = primaryAxis.index
		rf.i2 = 0
		if rf.i1+1 < c.polygonB.count {
			rf.i2 = rf.i1 + 1
		}
		rf.v1 = c.polygonB.verts[rf.i1]
		rf.v2 = c.polygonB.verts[rf.i2]
		rf.normal = c.polygonB.normals[rf.i1]
	}

	rf.sideNormal1 = geom.Vec2{rf.normal[1], -rf.normal[0]}
	rf.sideNormal2 = rf.sideNormal1.Mul(-1)
	rf.sideOffset1 = rf.sideNormal1.Dot(rf.v1)
	rf.sideOffset2 = rf.sideNormal2.Dot(rf.v2)

	var clipPoints1, clipPoints2 [2]clipVertex

	if clipSegmentToLine(&clipPoints1, &ie, rf.sideNormal1, rf.sideOffset1, rf.i1) < MaxManifoldPoints {
		return
	}
	if clipSegmentToLine(&clipPoints2, &clipPoints1, rf.sideNormal2, rf.sideOffset2, rf.i2) < MaxManifoldPoints {
		return
	}

	if primaryAxis.kind == epAxisEdgeA {
		m.LocalNormal = rf.normal
		m.LocalPoint = rf.v1
	} else {
		m.LocalNormal = polygonB.Normals[rf.i1]
		m.LocalPoint = polygonB.Verts[rf.i1]
	}

	pointCount := 0
	for i := 0; i < MaxManifoldPoints; i++ {
		separation := rf.normal.Dot(clipPoints2[i].v.Sub(rf.v1))
		if separation <= c.radius {
			cp := &m.Points[pointCount]
			if primaryAxis.kind == epAxisEdgeA {
				cp.LocalPoint = c.xf.ApplyT(clipPoints2[i].v)
				cp.Feature = clipPoints2[i].feature
			} else {
				cp.LocalPoint = clipPoints2[i].v
				cp.Feature = Feature{
					TypeA:  clipPoints2[i].feature.TypeB,
					TypeB:  clipPoints2[i].feature.TypeA,
					IndexA: clipPoints2[i].feature.IndexB,
					IndexB: clipPoints2[i].feature.IndexA,
				}
			}
			pointCount++
		}
	}

	m.PointCount = pointCount
}

func (c *epCollider) computeEdgeSeparation() epAxis {
	axis := epAxis{kind: epAxisEdgeA, separation: math.Inf(1)}
	if !c.front {
		axis.index = 1
	}

	for i := 0; i < c.polygonB.count; i++ {
		s := c.normal.Dot(c.polygonB.verts[i].Sub(c.v1))
		if s < axis.separation {
			axis.separation = s
		}
	}
	return axis
}

func (c *epCollider) computePolygonSeparation() epAxis {
	axis := epAxis{kind: epAxisUnknown, index: -1, separation: math.Inf(-1)}

	perp := geom.Vec2{-c.normal[1], c.normal[0]}

	for i := 0; i < c.polygonB.count; i++ {
		n := c.polygonB.normals[i].Mul(-1)

		s1 := n.Dot(c.polygonB.verts[i].Sub(c.v1))
		s2 := n.Dot(c.polygonB.verts[i].Sub(c.v2))
		s := math.Min(s1, s2)

		if s > c.radius {
			// Separating axis found.
			return epAxis{kind: epAxisEdgeB, index: i, separation: s}
		}

		// Reject normals outside the adjacency limits.
		if n.Dot(perp) >= 0.0 {
			if n.Sub(c.upperLimit).Dot(c.normal) < -geom.AngularSlop {
				continue
			}
		} else {
			if n.Sub(c.lowerLimit).Dot(c.normal) < -geom.AngularSlop {
				continue
			}
		}

		if s > axis.separation {
			axis = epAxis{kind: epAxisEdgeB, index: i, separation: s}
		}
	}

	return axis
}
