package shapes

import (
	"fmt"

	"github.com/veloxphys/velox2d/geom"
)

// Polygon is a solid convex polygon. The interior is to the left of each
// edge, and vertex count is capped at geom.MaxPolygonVertices.
type Polygon struct {
	Centroid geom.Vec2
	Verts    [geom.MaxPolygonVertices]geom.Vec2
	Normals  [geom.MaxPolygonVertices]geom.Vec2
	Count    int
}

// NewBox returns an axis-aligned box with the given half-extents.
func NewBox(hx, hy float64) *Polygon {
	p := &Polygon{}
	p.SetAsBox(hx, hy)
	return p
}

// NewOffsetBox returns a box positioned and rotated in shape-local space.
func NewOffsetBox(hx, hy float64, center geom.Vec2, angle float64) *Polygon {
	p := NewBox(hx, hy)
	p.Centroid = center

	xf := geom.TransformFrom(center, angle)
	for i := 0; i < p.Count; i++ {
		p.Verts[i] = xf.Apply(p.Verts[i])
		p.Normals[i] = xf.Q.Apply(p.Normals[i])
	}
	return p
}

// NewPolygon builds a convex polygon from the given points. Close points
// are welded, the convex hull is taken, and ErrDegenerate is returned if
// fewer than three vertices survive.
func NewPolygon(vertices []geom.Vec2) (*Polygon, error) {
	p := &Polygon{}
	if err := p.Set(vertices); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Polygon) Kind() Kind      { return KindPolygon }
func (p *Polygon) Radius() float64 { return geom.PolygonRadius }
func (p *Polygon) ChildCount() int { return 1 }

// Vertex returns the i-th hull vertex.
func (p *Polygon) Vertex(i int) geom.Vec2 {
	return p.Verts[i]
}

// SetAsBox replaces the polygon with an axis-aligned box.
func (p *Polygon) SetAsBox(hx, hy float64) {
	p.Count = 4
	p.Verts[0] = geom.Vec2{-hx, -hy}
	p.Verts[1] = geom.Vec2{hx, -hy}
	p.Verts[2] = geom.Vec2{hx, hy}
	p.Verts[3] = geom.Vec2{-hx, hy}
	p.Normals[0] = geom.Vec2{0, -1}
	p.Normals[1] = geom.Vec2{1, 0}
	p.Normals[2] = geom.Vec2{0, 1}
	p.Normals[3] = geom.Vec2{-1, 0}
	p.Centroid = geom.Vec2{}
}

// Set builds the convex hull of the given points by gift wrapping.
func (p *Polygon) Set(vertices []geom.Vec2) error {
	if len(vertices) < 3 {
		return fmt.Errorf("%w: polygon needs at least 3 vertices, got %d", ErrDegenerate, len(vertices))
	}

	n := len(vertices)
	if n > geom.MaxPolygonVertices {
		n = geom.MaxPolygonVertices
	}

	// Weld vertices closer than half the linear slop.
	var ps [geom.MaxPolygonVertices]geom.Vec2
	temp := 0
	const weldDist2 = (0.5 * geom.LinearSlop) * (0.5 * geom.LinearSlop)
	for i := 0; i < n; i++ {
		v := vertices[i]
		unique := true
		for j := 0; j < temp; j++ {
			if v.Sub(ps[j]).Dot(v.Sub(ps[j])) < weldDist2 {
				unique = false
				break
			}
		}
		if unique {
			ps[temp] = v
			temp++
		}
	}
	n = temp
	if n < 3 {
		return fmt.Errorf("%w: polygon collapsed to %d unique vertices after welding", ErrDegenerate, n)
	}

	// Gift wrapping, seeded at the right-most (lowest on ties) point.
	i0 := 0
	x0 := ps[0][0]
	for i := 1; i < n; i++ {
		x := ps[i][0]
		if x > x0 || (x == x0 && ps[i][1] < ps[i0][1]) {
			i0 = i
			x0 = x
		}
	}

	var hull [geom.MaxPolygonVertices]int
	m := 0
	ih := i0
	for {
		hull[m] = ih

		ie := 0
		for j := 1; j < n; j++ {
			if ie == ih {
				ie = j
				continue
			}

			r := ps[ie].Sub(ps[hull[m]])
			v := ps[j].Sub(ps[hull[m]])
			c := geom.Cross(r, v)
			if c < 0.0 {
				ie = j
			}
			// Collinear: keep the farthest.
			if c == 0.0 && v.Dot(v) > r.Dot(r) {
				ie = j
			}
		}

		m++
		ih = ie
		if ie == i0 {
			break
		}
	}

	if m < 3 {
		return fmt.Errorf("%w: convex hull has only %d vertices", ErrDegenerate, m)
	}

	p.Count = m
	for i := 0; i < m; i++ {
		p.Verts[i] = ps[hull[i]]
	}

	for i := 0; i < m; i++ {
		i2 := 0
		if i+1 < m {
			i2 = i + 1
		}
		edge := p.Verts[i2].Sub(p.Verts[i])
		if edge.Dot(edge) <= geom.Epsilon*geom.Epsilon {
			return fmt.Errorf("%w: zero-length polygon edge", ErrDegenerate)
		}
		p.Normals[i] = geom.Normalized(geom.CrossVS(edge, 1.0))
	}

	p.Centroid = centroid(p.Verts[:m])
	return nil
}

func centroid(vs []geom.Vec2) geom.Vec2 {
	var c geom.Vec2
	area := 0.0

	// Reference point for forming triangles; any point works up to
	// rounding, the vertex mean keeps it inside the polygon.
	var ref geom.Vec2
	for _, v := range vs {
		ref = ref.Add(v)
	}
	ref = ref.Mul(1.0 / float64(len(vs)))

	const inv3 = 1.0 / 3.0
	for i := range vs {
		p1 := ref
		p2 := vs[i]
		p3 := vs[0]
		if i+1 < len(vs) {
			p3 = vs[i+1]
		}

		e1 := p2.Sub(p1)
		e2 := p3.Sub(p1)
		triangleArea := 0.5 * geom.Cross(e1, e2)
		area += triangleArea

		c = c.Add(p1.Add(p2).Add(p3).Mul(triangleArea * inv3))
	}

	return c.Mul(1.0 / area)
}

func (p *Polygon) TestPoint(xf geom.Transform, pt geom.Vec2) bool {
	local := xf.Q.ApplyT(pt.Sub(xf.P))
	for i := 0; i < p.Count; i++ {
		if p.Normals[i].Dot(local.Sub(p.Verts[i])) > 0.0 {
			return false
		}
	}
	return true
}

func (p *Polygon) RayCast(input geom.RayCastInput, xf geom.Transform, child int) (geom.RayCastOutput, bool) {
	// Work in the polygon's frame.
	p1 := xf.Q.ApplyT(input.P1.Sub(xf.P))
	p2 := xf.Q.ApplyT(input.P2.Sub(xf.P))
	d := p2.Sub(p1)

	lower, upper := 0.0, input.MaxFraction
	index := -1

	for i := 0; i < p.Count; i++ {
		// dot(normal, p1 - v) + a * dot(normal, d) = 0
		numerator := p.Normals[i].Dot(p.Verts[i].Sub(p1))
		denominator := p.Normals[i].Dot(d)

		if denominator == 0.0 {
			if numerator < 0.0 {
				return geom.RayCastOutput{}, false
			}
		} else {
			// Division-free predicate; the inequality flips when the
			// denominator is negative.
			if denominator < 0.0 && numerator < lower*denominator {
				lower = numerator / denominator
				index = i
			} else if denominator > 0.0 && numerator < upper*denominator {
				upper = numerator / denominator
			}
		}

		if upper < lower {
			return geom.RayCastOutput{}, false
		}
	}

	if index >= 0 {
		return geom.RayCastOutput{
			Fraction: lower,
			Normal:   xf.Q.Apply(p.Normals[index]),
		}, true
	}

	return geom.RayCastOutput{}, false
}

func (p *Polygon) ComputeAABB(xf geom.Transform, child int) geom.AABB {
	lower := xf.Apply(p.Verts[0])
	upper := lower
	for i := 1; i < p.Count; i++ {
		v := xf.Apply(p.Verts[i])
		lower = geom.MinVec(lower, v)
		upper = geom.MaxVec(upper, v)
	}
	return geom.AABB{Lower: lower, Upper: upper}.Extend(geom.PolygonRadius)
}

func (p *Polygon) ComputeMass(density float64) MassData {
	// Integrate over the triangle fan around the vertex mean; the triangle
	// centroid simplification keeps this closed-form.
	var center geom.Vec2
	area := 0.0
	inertia := 0.0

	var s geom.Vec2
	for i := 0; i < p.Count; i++ {
		s = s.Add(p.Verts[i])
	}
	s = s.Mul(1.0 / float64(p.Count))

	const inv3 = 1.0 / 3.0
	for i := 0; i < p.Count; i++ {
		e1 := p.Verts[i].Sub(s)
		var e2 geom.Vec2
		if i+1 < p.Count {
			e2 = p.Verts[i+1].Sub(s)
		} else {
			e2 = p.Verts[0].Sub(s)
		}

		d := geom.Cross(e1, e2)
		triangleArea := 0.5 * d
		area += triangleArea

		center = center.Add(e1.Add(e2).Mul(triangleArea * inv3))

		intX2 := e1[0]*e1[0] + e2[0]*e1[0] + e2[0]*e2[0]
		intY2 := e1[1]*e1[1] + e2[1]*e1[1] + e2[1]*e2[1]
		inertia += (0.25 * inv3 * d) * (intX2 + intY2)
	}

	var md MassData
	md.Mass = density * area
	center = center.Mul(1.0 / area)
	md.Center = center.Add(s)
	// Shift inertia to the center of mass, then to the body origin.
	md.I = density*inertia + md.Mass*(md.Center.Dot(md.Center)-center.Dot(center))
	return md
}

// Validate reports whether the polygon is convex with CCW winding.
func (p *Polygon) Validate() bool {
	for i := 0; i < p.Count; i++ {
		i2 := 0
		if i < p.Count-1 {
			i2 = i + 1
		}
		pt := p.Verts[i]
		e := p.Verts[i2].Sub(pt)

		for j := 0; j < p.Count; j++ {
			if j == i || j == i2 {
				continue
			}
			if geom.Cross(e, p.Verts[j].Sub(pt)) < 0.0 {
				return false
			}
		}
	}
	return true
}
