package collide

import (
	"math"

	"github.com/veloxphys/velox2d/geom"
	"github.com/veloxphys/velox2d/shapes"
)

// findMaxSeparation finds the max separation between poly1 and poly2 using
// edge normals from poly1. Returns the separation and the best edge index.
func findMaxSeparation(poly1 *shapes.Polygon, xf1 geom.Transform, poly2 *shapes.Polygon, xf2 geom.Transform) (float64, int) {
	xf := geom.MulTTransforms(xf2, xf1)

	bestIndex := 0
	maxSeparation := math.Inf(-1)
	for i := 0; i < poly1.Count; i++ {
		// poly1 normal and vertex in poly2's frame.
		n := xf.Q.Apply(poly1.Normals[i])
		v1 := xf.Apply(poly1.Verts[i])

		// Deepest point of poly2 along normal i.
		si := math.Inf(1)
		for j := 0; j < poly2.Count; j++ {
			sij := n.Dot(poly2.Verts[j].Sub(v1))
			if sij < si {
				si = sij
			}
		}

		if si > maxSeparation {
			maxSeparation = si
			bestIndex = i
		}
	}

	return maxSeparation, bestIndex
}

// findIncidentEdge returns the edge of poly2 most anti-parallel to the
// reference edge on poly1.
func findIncidentEdge(c *[2]clipVertex, poly1 *shapes.Polygon, xf1 geom.Transform, edge1 int, poly2 *shapes.Polygon, xf2 geom.Transform) {
	// Reference normal in poly2's frame.
	normal1 := xf2.Q.ApplyT(xf1.Q.Apply(poly1.Normals[edge1]))

	index := 0
	minDot := math.Inf(1)
	for i := 0; i < poly2.Count; i++ {
		if dot := normal1.Dot(poly2.Normals[i]); dot < minDot {
			minDot = dot
			index = i
		}
	}

	i1 := index
	i2 := 0
	if i1+1 < poly2.Count {
		i2 = i1 + 1
	}

	c[0] = clipVertex{
		v: xf2.Apply(poly2.Verts[i1]),
		feature: Feature{
			IndexA: uint8(edge1), IndexB: uint8(i1),
			TypeA: FeatureFace, TypeB: FeatureVertex,
		},
	}
	c[1] = clipVertex{
		v: xf2.Apply(poly2.Verts[i2]),
		feature: Feature{
			IndexA: uint8(edge1), IndexB: uint8(i2),
			TypeA: FeatureFace, TypeB: FeatureVertex,
		},
	}
}

// CollidePolygons fills m for two convex polygons:
// find the edge normal of max separation on each, pick the reference edge,
// find the incident edge, then clip. The normal points from A to B.
func CollidePolygons(m *Manifold, polyA *shapes.Polygon, xfA geom.Transform, polyB *shapes.Polygon, xfB geom.Transform) {
	m.PointCount = 0
	totalRadius := 2.0 * geom.PolygonRadius

	separationA, edgeA := findMaxSeparation(polyA, xfA, polyB, xfB)
	if separationA > totalRadius {
		return
	}

	separationB, edgeB := findMaxSeparation(polyB, xfB, polyA, xfA)
	if separationB > totalRadius {
		return
	}

	var poly1, poly2 *shapes.Polygon // reference, incident
	var xf1, xf2 geom.Transform
	var edge1 int
	flip := false

	const tol = 0.1 * geom.LinearSlop
	if separationB > separationA+tol {
		poly1, poly2 = polyB, polyA
		xf1, xf2 = xfB, xfA
		edge1 = edgeB
		m.Kind = ManifoldFaceB
		flip = true
	} else {
		poly1, poly2 = polyA, polyB
		xf1, xf2 = xfA, xfB
		edge1 = edgeA
		m.Kind = ManifoldFaceA
	}

	var incidentEdge [2]clipVertex
	findIncidentEdge(&incidentEdge, poly1, xf1, edge1, poly2, xf2)

	iv1 := edge1
	iv2 := 0
	if edge1+1 < poly1.Count {
		iv2 = edge1 + 1
	}

	v11 := poly1.Verts[iv1]
	v12 := poly1.Verts[iv2]

	localTangent := geom.Normalized(v12.Sub(v11))
	localNormal := geom.CrossVS(localTangent, 1.0)
	planePoint := v11.Add(v12).Mul(0.5)

	tangent := xf1.Q.Apply(localTangent)
	normal := geom.CrossVS(tangent, 1.0)

	v11 = xf1.Apply(v11)
	v12 = xf1.Apply(v12)

	frontOffset := normal.Dot(v11)

	// Side offsets, extended by the polygon skin.
	sideOffset1 := -tangent.Dot(v11) + totalRadius
	sideOffset2 := tangent.Dot(v12) + totalRadius

	var clipPoints1, clipPoints2 [2]clipVertex

	if clipSegmentToLine(&clipPoints1, &incidentEdge, tangent.Mul(-1), sideOffset1, iv1) < 2 {
		return
	}
	if clipSegmentToLine(&clipPoints2, &clipPoints1, tangent, sideOffset2, iv2) < 2 {
		return
	}

	m.LocalNormal = localNormal
	m.LocalPoint = planePoint

	pointCount := 0
	for i := 0; i < MaxManifoldPoints; i++ {
		separation := normal.Dot(clipPoints2[i].v) - frontOffset
		if separation <= totalRadius {
			cp := &m.Points[pointCount]
			cp.LocalPoint = xf2.ApplyT(clipPoints2[i].v)
			cp.Feature = clipPoints2[i].feature
			if flip {
				cp.Feature = Feature{
					IndexA: cp.Feature.IndexB,
					IndexB: cp.Feature.IndexA,
					TypeA:  cp.Feature.TypeB,
					TypeB:  cp.Feature.TypeA,
				}
			}
			pointCount++
		}
	}

	m.PointCount = pointCount
}
