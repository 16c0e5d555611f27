package shapes

import "github.com/veloxphys/velox2d/geom"

// Edge is a line segment. Edges can carry optional adjacent "ghost"
// vertices, used by the narrow phase to produce smooth contact normals
// across connected segments.
type Edge struct {
	V1, V2 geom.Vec2

	V0, V3       geom.Vec2
	HasV0, HasV3 bool
}

// NewEdge returns a plain two-vertex segment with no adjacency info.
func NewEdge(v1, v2 geom.Vec2) *Edge {
	return &Edge{V1: v1, V2: v2}
}

func (e *Edge) Kind() Kind      { return KindEdge }
func (e *Edge) Radius() float64 { return geom.PolygonRadius }
func (e *Edge) ChildCount() int { return 1 }

// Edges have no interior.
func (e *Edge) TestPoint(xf geom.Transform, p geom.Vec2) bool {
	return false
}

// RayCast intersects the ray with the segment:
// p1 + t*d = v1 + s*(v2-v1).
func (e *Edge) RayCast(input geom.RayCastInput, xf geom.Transform, child int) (geom.RayCastOutput, bool) {
	p1 := xf.Q.ApplyT(input.P1.Sub(xf.P))
	p2 := xf.Q.ApplyT(input.P2.Sub(xf.P))
	d := p2.Sub(p1)

	v1, v2 := e.V1, e.V2
	seg := v2.Sub(v1)
	normal := geom.Normalized(geom.Vec2{seg[1], -seg[0]})

	numerator := normal.Dot(v1.Sub(p1))
	denominator := normal.Dot(d)
	if denominator == 0.0 {
		return geom.RayCastOutput{}, false
	}

	t := numerator / denominator
	if t < 0.0 || input.MaxFraction < t {
		return geom.RayCastOutput{}, false
	}

	q := p1.Add(d.Mul(t))

	rr := seg.Dot(seg)
	if rr == 0.0 {
		return geom.RayCastOutput{}, false
	}
	s := q.Sub(v1).Dot(seg) / rr
	if s < 0.0 || 1.0 < s {
		return geom.RayCastOutput{}, false
	}

	out := geom.RayCastOutput{Fraction: t, Normal: xf.Q.Apply(normal)}
	if numerator > 0.0 {
		out.Normal = out.Normal.Mul(-1)
	}
	return out, true
}

func (e *Edge) ComputeAABB(xf geom.Transform, child int) geom.AABB {
	v1 := xf.Apply(e.V1)
	v2 := xf.Apply(e.V2)
	return geom.AABB{
		Lower: geom.MinVec(v1, v2),
		Upper: geom.MaxVec(v1, v2),
	}.Extend(geom.PolygonRadius)
}

// Edges are massless; attach them to static bodies.
func (e *Edge) ComputeMass(density float64) MassData {
	return MassData{Center: e.V1.Add(e.V2).Mul(0.5)}
}
