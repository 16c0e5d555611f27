package geom

import "math"

// AABB is an axis-aligned bounding box.
type AABB struct {
	Lower Vec2
	Upper Vec2
}

// Center returns the midpoint of the box.
func (bb AABB) Center() Vec2 {
	return bb.Lower.Add(bb.Upper).Mul(0.5)
}

// Extents returns the half-widths of the box.
func (bb AABB) Extents() Vec2 {
	return bb.Upper.Sub(bb.Lower).Mul(0.5)
}

// Perimeter returns the total edge length. The dynamic tree uses this as
// its surface-area heuristic.
func (bb AABB) Perimeter() float64 {
	return 2.0 * ((bb.Upper[0] - bb.Lower[0]) + (bb.Upper[1] - bb.Lower[1]))
}

// Union returns the smallest box enclosing both a and b.
func Union(a, b AABB) AABB {
	return AABB{
		Lower: MinVec(a.Lower, b.Lower),
		Upper: MaxVec(a.Upper, b.Upper),
	}
}

// Extend returns bb grown by r on every side.
func (bb AABB) Extend(r float64) AABB {
	d := Vec2{r, r}
	return AABB{Lower: bb.Lower.Sub(d), Upper: bb.Upper.Add(d)}
}

// Contains reports whether bb fully contains other.
func (bb AABB) Contains(other AABB) bool {
	return bb.Lower[0] <= other.Lower[0] &&
		bb.Lower[1] <= other.Lower[1] &&
		other.Upper[0] <= bb.Upper[0] &&
		other.Upper[1] <= bb.Upper[1]
}

// IsValid reports whether the bounds are finite and ordered.
func (bb AABB) IsValid() bool {
	d := bb.Upper.Sub(bb.Lower)
	return d[0] >= 0.0 && d[1] >= 0.0 && ValidVec(bb.Lower) && ValidVec(bb.Upper)
}

// Overlap reports whether a and b intersect.
func Overlap(a, b AABB) bool {
	if b.Lower[0] > a.Upper[0] || b.Lower[1] > a.Upper[1] {
		return false
	}
	if a.Lower[0] > b.Upper[0] || a.Lower[1] > b.Upper[1] {
		return false
	}
	return true
}

// RayCastInput describes a ray from P1 toward P2, clipped at
// MaxFraction of that segment.
type RayCastInput struct {
	P1, P2      Vec2
	MaxFraction float64
}

// RayCastOutput reports a hit at P1 + Fraction*(P2-P1).
type RayCastOutput struct {
	Normal   Vec2
	Fraction float64
}

// RayCast intersects a ray with the box using the slab method
// (Real-Time Collision Detection, p179).
func (bb AABB) RayCast(input RayCastInput) (RayCastOutput, bool) {
	tmin := math.Inf(-1)
	tmax := math.Inf(1)

	p := input.P1
	d := input.P2.Sub(input.P1)
	absD := AbsVec(d)

	var normal Vec2
	for i := 0; i < 2; i++ {
		if absD[i] < Epsilon {
			// Parallel.
			if p[i] < bb.Lower[i] || bb.Upper[i] < p[i] {
				return RayCastOutput{}, false
			}
			continue
		}

		invD := 1.0 / d[i]
		t1 := (bb.Lower[i] - p[i]) * invD
		t2 := (bb.Upper[i] - p[i]) * invD

		s := -1.0
		if t1 > t2 {
			t1, t2 = t2, t1
			s = 1.0
		}

		if t1 > tmin {
			normal = Vec2{}
			normal[i] = s
			tmin = t1
		}

		tmax = math.Min(tmax, t2)
		if tmin > tmax {
			return RayCastOutput{}, false
		}
	}

	// Reject rays starting inside the box or hitting beyond max fraction.
	if tmin < 0.0 || input.MaxFraction < tmin {
		return RayCastOutput{}, false
	}

	return RayCastOutput{Normal: normal, Fraction: tmin}, true
}
