// Package collide implements the narrow phase: GJK closest-point queries,
// contact manifolds for every shape-kind pair, conservative-advancement time
// of impact, and the dynamic AABB tree broad phase.
package collide

import (
	"github.com/veloxphys/velox2d/geom"
	"github.com/veloxphys/velox2d/shapes"
)

// maxGJKIterations bounds the support-point loop. GJK on polygons converges
// in a handful of steps; the cap only matters for degenerate input.
const maxGJKIterations = 20

// Proxy is a read-only vertex view of one convex shape (or one child of a
// composite shape) for GJK.
type Proxy struct {
	buffer [2]geom.Vec2
	Verts  []geom.Vec2
	Radius float64
}

// MakeProxy builds a proxy for the given shape child. Chains expose one
// two-vertex segment per child.
func MakeProxy(shape shapes.Shape, child int) Proxy {
	var p Proxy
	switch s := shape.(type) {
	case *shapes.Circle:
		p.buffer[0] = s.P
		p.Verts = p.buffer[:1]
		p.Radius = s.R

	case *shapes.Polygon:
		p.Verts = s.Verts[:s.Count]
		p.Radius = geom.PolygonRadius

	case *shapes.Edge:
		p.buffer[0] = s.V1
		p.buffer[1] = s.V2
		p.Verts = p.buffer[:2]
		p.Radius = geom.PolygonRadius

	case *shapes.Chain:
		p.buffer[0] = s.Verts[child]
		if child+1 < len(s.Verts) {
			p.buffer[1] = s.Verts[child+1]
		} else {
			p.buffer[1] = s.Verts[0]
		}
		p.Verts = p.buffer[:2]
		p.Radius = geom.PolygonRadius
	}
	return p
}

// Support returns the index of the vertex maximizing the dot product
// with d.
func (p *Proxy) Support(d geom.Vec2) int {
	best := 0
	bestValue := p.Verts[0].Dot(d)
	for i := 1; i < len(p.Verts); i++ {
		if value := p.Verts[i].Dot(d); value > bestValue {
			best = i
			bestValue = value
		}
	}
	return best
}

// SimplexCache warm-starts Distance across frames. A zero value is a valid
// empty cache.
type SimplexCache struct {
	// Metric is the edge length (2 points) or signed area (3 points) of
	// the cached simplex, used to detect a stale cache.
	Metric float64
	Count  int
	IndexA [3]int
	IndexB [3]int
}

// DistanceInput describes a closest-point query between two proxies.
type DistanceInput struct {
	ProxyA, ProxyB Proxy
	TransformA     geom.Transform
	TransformB     geom.Transform
	// UseRadii shrinks the result by the proxies' skin radii.
	UseRadii bool
}

// DistanceOutput reports the witness points and separation.
type DistanceOutput struct {
	PointA, PointB geom.Vec2
	Distance       float64
	Iterations     int
}

type simplexVertex struct {
	wA, wB geom.Vec2 // support points on A and B in world space
	w      geom.Vec2 // wB - wA
	a      float64   // barycentric coordinate
	indexA int
	indexB int
}

type simplex struct {
	vs    [3]simplexVertex
	count int
}

func (s *simplex) readCache(cache *SimplexCache, proxyA *Proxy, xfA geom.Transform, proxyB *Proxy, xfB geom.Transform) {
	s.count = cache.Count
	for i := 0; i < s.count; i++ {
		v := &s.vs[i]
		v.indexA = cache.IndexA[i]
		v.indexB = cache.IndexB[i]
		v.wA = xfA.Apply(proxyA.Verts[v.indexA])
		v.wB = xfB.Apply(proxyB.Verts[v.indexB])
		v.w = v.wB.Sub(v.wA)
		v.a = 0.0
	}

	// If the shape configuration moved the metric by more than a factor of
	// two, or it degenerated, the cached simplex can't be trusted.
	if s.count > 1 {
		metric1 := cache.Metric
		metric2 := s.metric()
		if metric2 < 0.5*metric1 || 2.0*metric1 < metric2 || metric2 < geom.Epsilon {
			s.count = 0
		}
	}

	if s.count == 0 {
		v := &s.vs[0]
		v.indexA = 0
		v.indexB = 0
		v.wA = xfA.Apply(proxyA.Verts[0])
		v.wB = xfB.Apply(proxyB.Verts[0])
		v.w = v.wB.Sub(v.wA)
		v.a = 1.0
		s.count = 1
	}
}

func (s *simplex) writeCache(cache *SimplexCache) {
	cache.Metric = s.metric()
	cache.Count = s.count
	for i := 0; i < s.count; i++ {
		cache.IndexA[i] = s.vs[i].indexA
		cache.IndexB[i] = s.vs[i].indexB
	}
}

func (s *simplex) searchDirection() geom.Vec2 {
	switch s.count {
	case 1:
		return s.vs[0].w.Mul(-1)
	case 2:
		e12 := s.vs[1].w.Sub(s.vs[0].w)
		if geom.Cross(e12, s.vs[0].w.Mul(-1)) > 0.0 {
			// Origin is left of e12.
			return geom.CrossSV(1.0, e12)
		}
		return geom.CrossVS(e12, 1.0)
	}
	return geom.Vec2{}
}

func (s *simplex) witnessPoints() (pA, pB geom.Vec2) {
	switch s.count {
	case 1:
		return s.vs[0].wA, s.vs[0].wB
	case 2:
		pA = s.vs[0].wA.Mul(s.vs[0].a).Add(s.vs[1].wA.Mul(s.vs[1].a))
		pB = s.vs[0].wB.Mul(s.vs[0].a).Add(s.vs[1].wB.Mul(s.vs[1].a))
		return pA, pB
	case 3:
		pA = s.vs[0].wA.Mul(s.vs[0].a).
			Add(s.vs[1].wA.Mul(s.vs[1].a)).
			Add(s.vs[2].wA.Mul(s.vs[2].a))
		return pA, pA
	}
	return
}

func (s *simplex) metric() float64 {
	switch s.count {
	case 1:
		return 0.0
	case 2:
		return s.vs[1].w.Sub(s.vs[0].w).Len()
	case 3:
		return geom.Cross(s.vs[1].w.Sub(s.vs[0].w), s.vs[2].w.Sub(s.vs[0].w))
	}
	return 0.0
}

// solve2 reduces a segment to the sub-simplex closest to the origin,
// using barycentric coordinates.
func (s *simplex) solve2() {
	w1 := s.vs[0].w
	w2 := s.vs[1].w
	e12 := w2.Sub(w1)

	// w1 region
	d12_2 := -w1.Dot(e12)
	if d12_2 <= 0.0 {
		s.vs[0].a = 1.0
		s.count = 1
		return
	}

	// w2 region
	d12_1 := w2.Dot(e12)
	if d12_1 <= 0.0 {
		s.vs[1].a = 1.0
		s.count = 1
		s.vs[0] = s.vs[1]
		return
	}

	// edge region
	invD12 := 1.0 / (d12_1 + d12_2)
	s.vs[0].a = d12_1 * invD12
	s.vs[1].a = d12_2 * invD12
	s.count = 2
}

// solve3 reduces a triangle to the Voronoi region containing the origin.
func (s *simplex) solve3() {
	w1 := s.vs[0].w
	w2 := s.vs[1].w
	w3 := s.vs[2].w

	e12 := w2.Sub(w1)
	d12_1 := w2.Dot(e12)
	d12_2 := -w1.Dot(e12)

	e13 := w3.Sub(w1)
	d13_1 := w3.Dot(e13)
	d13_2 := -w1.Dot(e13)

	e23 := w3.Sub(w2)
	d23_1 := w3.Dot(e23)
	d23_2 := -w2.Dot(e23)

	n123 := geom.Cross(e12, e13)
	d123_1 := n123 * geom.Cross(w2, w3)
	d123_2 := n123 * geom.Cross(w3, w1)
	d123_3 := n123 * geom.Cross(w1, w2)

	// w1 region
	if d12_2 <= 0.0 && d13_2 <= 0.0 {
		s.vs[0].a = 1.0
		s.count = 1
		return
	}

	// e12
	if d12_1 > 0.0 && d12_2 > 0.0 && d123_3 <= 0.0 {
		invD12 := 1.0 / (d12_1 + d12_2)
		s.vs[0].a = d12_1 * invD12
		s.vs[1].a = d12_2 * invD12
		s.count = 2
		return
	}

	// e13
	if d13_1 > 0.0 && d13_2 > 0.0 && d123_2 <= 0.0 {
		invD13 := 1.0 / (d13_1 + d13_2)
		s.vs[0].a = d13_1 * invD13
		s.vs[2].a = d13_2 * invD13
		s.count = 2
		s.vs[1] = s.vs[2]
		return
	}

	// w2 region
	if d12_1 <= 0.0 && d23_2 <= 0.0 {
		s.vs[1].a = 1.0
		s.count = 1
		s.vs[0] = s.vs[1]
		return
	}

	// w3 region
	if d13_1 <= 0.0 && d23_1 <= 0.0 {
		s.vs[2].a = 1.0
		s.count = 1
		s.vs[0] = s.vs[2]
		return
	}

	// e23
	if d23_1 > 0.0 && d23_2 > 0.0 && d123_1 <= 0.0 {
		invD23 := 1.0 / (d23_1 + d23_2)
		s.vs[1].a = d23_1 * invD23
		s.vs[2].a = d23_2 * invD23
		s.count = 2
		s.vs[0] = s.vs[2]
		return
	}

	// interior
	invD123 := 1.0 / (d123_1 + d123_2 + d123_3)
	s.vs[0].a = d123_1 * invD123
	s.vs[1].a = d123_2 * invD123
	s.vs[2].a = d123_3 * invD123
	s.count = 3
}

// Distance computes the closest points between two convex proxies using GJK
// over Voronoi regions (Ericson). The cache carries the previous frame's
// support indices; pass a zero cache on first use.
func Distance(input *DistanceInput, cache *SimplexCache) DistanceOutput {
	proxyA := &input.ProxyA
	proxyB := &input.ProxyB
	xfA := input.TransformA
	xfB := input.TransformB

	var sx simplex
	sx.readCache(cache, proxyA, xfA, proxyB, xfB)

	// Support indices of the previous simplex, for the duplicate check.
	var saveA, saveB [3]int
	iter := 0

	for iter < maxGJKIterations {
		saveCount := sx.count
		for i := 0; i < saveCount; i++ {
			saveA[i] = sx.vs[i].indexA
			saveB[i] = sx.vs[i].indexB
		}

		switch sx.count {
		case 2:
			sx.solve2()
		case 3:
			sx.solve3()
		}

		// A 3-point simplex means the origin is enclosed: overlap.
		if sx.count == 3 {
			break
		}

		d := sx.searchDirection()
		if d.Dot(d) < geom.Epsilon*geom.Epsilon {
			// The origin sits on a segment or triangle boundary. We can't
			// declare overlap from here; the witness points below are as
			// good as the simplex gets.
			break
		}

		vertex := &sx.vs[sx.count]
		vertex.indexA = proxyA.Support(xfA.Q.ApplyT(d.Mul(-1)))
		vertex.wA = xfA.Apply(proxyA.Verts[vertex.indexA])
		vertex.indexB = proxyB.Support(xfB.Q.ApplyT(d))
		vertex.wB = xfB.Apply(proxyB.Verts[vertex.indexB])
		vertex.w = vertex.wB.Sub(vertex.wA)

		iter++

		// Duplicate support pair: the simplex can no longer grow toward
		// the origin. This is the primary termination criterion; without
		// it the loop cycles on degenerate input.
		duplicate := false
		for i := 0; i < saveCount; i++ {
			if vertex.indexA == saveA[i] && vertex.indexB == saveB[i] {
				duplicate = true
				break
			}
		}
		if duplicate {
			break
		}

		sx.count++
	}

	var output DistanceOutput
	output.PointA, output.PointB = sx.witnessPoints()
	output.Distance = output.PointB.Sub(output.PointA).Len()
	output.Iterations = iter

	sx.writeCache(cache)

	if input.UseRadii {
		rA := proxyA.Radius
		rB := proxyB.Radius

		if output.Distance > rA+rB && output.Distance > geom.Epsilon {
			// Not overlapping; push the witness points to the surfaces.
			output.Distance -= rA + rB
			normal := geom.Normalized(output.PointB.Sub(output.PointA))
			output.PointA = output.PointA.Add(normal.Mul(rA))
			output.PointB = output.PointB.Sub(normal.Mul(rB))
		} else {
			// Overlapping once radii are considered.
			p := output.PointA.Add(output.PointB).Mul(0.5)
			output.PointA = p
			output.PointB = p
			output.Distance = 0.0
		}
	}
	return output
}

// TestOverlap reports whether two shape children overlap under the given
// transforms, using a radii-aware distance query.
func TestOverlap(shapeA shapes.Shape, childA int, shapeB shapes.Shape, childB int, xfA, xfB geom.Transform) bool {
	input := DistanceInput{
		ProxyA:     MakeProxy(shapeA, childA),
		ProxyB:     MakeProxy(shapeB, childB),
		TransformA: xfA,
		TransformB: xfB,
		UseRadii:   true,
	}

	var cache SimplexCache
	output := Distance(&input, &cache)
	return output.Distance < 10.0*geom.Epsilon
}
