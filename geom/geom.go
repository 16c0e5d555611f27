// Package geom provides the 2D math primitives the simulator is built on:
// rotations stored as sine/cosine pairs, rigid transforms, motion sweeps and
// the handful of cross-product and linear-solve helpers that mgl64 does not
// ship for the 2D case.
package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Vec2 is the vector type used throughout the engine.
type Vec2 = mgl64.Vec2

// Tolerances in meters-kilograms-seconds units. Shape construction and the
// narrow phase use these directly; the solvers take them as step
// configuration defaults and read the configured values.
const (
	// Epsilon is the double-precision machine epsilon.
	Epsilon = 2.220446049250313e-16

	// LinearSlop is the tolerated penetration. Chosen to be numerically
	// significant but visually insignificant.
	LinearSlop = 0.005

	// AngularSlop is the angular analogue of LinearSlop.
	AngularSlop = 2.0 / 180.0 * math.Pi

	// PolygonRadius is the skin thickness around polygon and edge shapes.
	// Continuous collision needs this buffer; do not shrink it.
	PolygonRadius = 2.0 * LinearSlop

	// MaxPolygonVertices bounds convex polygon size.
	MaxPolygonVertices = 8
)

// Valid reports whether x is a usable coordinate (not NaN or infinite).
func Valid(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// ValidVec reports whether both components of v are usable coordinates.
func ValidVec(v Vec2) bool {
	return Valid(v[0]) && Valid(v[1])
}

// Cross returns the 2D cross product a x b, a scalar.
func Cross(a, b Vec2) float64 {
	return a[0]*b[1] - a[1]*b[0]
}

// CrossSV returns the cross product of a scalar (z-axis) and a vector.
func CrossSV(s float64, v Vec2) Vec2 {
	return Vec2{-s * v[1], s * v[0]}
}

// CrossVS returns the cross product of a vector and a scalar (z-axis).
func CrossVS(v Vec2, s float64) Vec2 {
	return Vec2{s * v[1], -s * v[0]}
}

// Skew returns the vector w such that Dot(w, b) == Cross(v, b).
func Skew(v Vec2) Vec2 {
	return Vec2{-v[1], v[0]}
}

// Normalized returns v scaled to unit length, or the zero vector when v is
// shorter than Epsilon.
func Normalized(v Vec2) Vec2 {
	length := v.Len()
	if length < Epsilon {
		return Vec2{}
	}
	return v.Mul(1.0 / length)
}

// MinVec and MaxVec are component-wise.
func MinVec(a, b Vec2) Vec2 {
	return Vec2{math.Min(a[0], b[0]), math.Min(a[1], b[1])}
}

func MaxVec(a, b Vec2) Vec2 {
	return Vec2{math.Max(a[0], b[0]), math.Max(a[1], b[1])}
}

// ClampVec clamps a component-wise into [low, high].
func ClampVec(a, low, high Vec2) Vec2 {
	return MaxVec(low, MinVec(a, high))
}

// Clamp clamps a into [low, high].
func Clamp(a, low, high float64) float64 {
	return math.Max(low, math.Min(a, high))
}

// AbsVec is component-wise absolute value.
func AbsVec(a Vec2) Vec2 {
	return Vec2{math.Abs(a[0]), math.Abs(a[1])}
}

// Rot is a rotation stored as its sine and cosine.
type Rot struct {
	S, C float64
}

// RotIdentity returns the identity rotation.
func RotIdentity() Rot {
	return Rot{S: 0, C: 1}
}

// RotFromAngle builds a rotation from an angle in radians.
func RotFromAngle(angle float64) Rot {
	return Rot{S: math.Sin(angle), C: math.Cos(angle)}
}

// Angle returns the rotation angle in radians.
func (q Rot) Angle() float64 {
	return math.Atan2(q.S, q.C)
}

// XAxis returns the rotated x-axis.
func (q Rot) XAxis() Vec2 {
	return Vec2{q.C, q.S}
}

// YAxis returns the rotated y-axis.
func (q Rot) YAxis() Vec2 {
	return Vec2{-q.S, q.C}
}

// Apply rotates v by q.
func (q Rot) Apply(v Vec2) Vec2 {
	return Vec2{q.C*v[0] - q.S*v[1], q.S*v[0] + q.C*v[1]}
}

// ApplyT rotates v by the inverse of q.
func (q Rot) ApplyT(v Vec2) Vec2 {
	return Vec2{q.C*v[0] + q.S*v[1], -q.S*v[0] + q.C*v[1]}
}

// MulRot composes two rotations: q then r applied as q*r.
func MulRot(q, r Rot) Rot {
	return Rot{
		S: q.S*r.C + q.C*r.S,
		C: q.C*r.C - q.S*r.S,
	}
}

// MulTRot composes the inverse of q with r.
func MulTRot(q, r Rot) Rot {
	return Rot{
		S: q.C*r.S - q.S*r.C,
		C: q.C*r.C + q.S*r.S,
	}
}

// Transform is a rigid frame: a translation and a rotation.
type Transform struct {
	P Vec2
	Q Rot
}

// TransformIdentity returns the identity transform.
func TransformIdentity() Transform {
	return Transform{Q: RotIdentity()}
}

// TransformFrom builds a transform from a position and an angle in radians.
func TransformFrom(position Vec2, angle float64) Transform {
	return Transform{P: position, Q: RotFromAngle(angle)}
}

// Apply maps a local point to world space.
func (t Transform) Apply(v Vec2) Vec2 {
	return Vec2{
		t.Q.C*v[0] - t.Q.S*v[1] + t.P[0],
		t.Q.S*v[0] + t.Q.C*v[1] + t.P[1],
	}
}

// ApplyT maps a world point to local space.
func (t Transform) ApplyT(v Vec2) Vec2 {
	px := v[0] - t.P[0]
	py := v[1] - t.P[1]
	return Vec2{t.Q.C*px + t.Q.S*py, -t.Q.S*px + t.Q.C*py}
}

// MulTransforms composes A with B: the result maps B-local points through B
// then A.
func MulTransforms(a, b Transform) Transform {
	return Transform{
		P: a.Q.Apply(b.P).Add(a.P),
		Q: MulRot(a.Q, b.Q),
	}
}

// MulTTransforms composes the inverse of A with B.
func MulTTransforms(a, b Transform) Transform {
	return Transform{
		P: a.Q.ApplyT(b.P.Sub(a.P)),
		Q: MulTRot(a.Q, b.Q),
	}
}

// Sweep describes the motion of a body over a step for TOI computation.
// Shapes are defined relative to the body origin, which may not coincide
// with the center of mass, so the center of mass is what gets interpolated.
type Sweep struct {
	// LocalCenter is the center of mass in body-local coordinates.
	LocalCenter Vec2
	// C0, C are the world center positions at Alpha0 and at step end.
	C0, C Vec2
	// A0, A are the world angles at Alpha0 and at step end.
	A0, A float64
	// Alpha0 is the fraction of the step already consumed, in [0,1).
	Alpha0 float64
}

// Transform returns the interpolated body origin transform at the given
// normalized time beta in [0,1].
func (s Sweep) Transform(beta float64) Transform {
	var xf Transform
	xf.P = s.C0.Mul(1.0 - beta).Add(s.C.Mul(beta))
	xf.Q = RotFromAngle((1.0-beta)*s.A0 + beta*s.A)
	xf.P = xf.P.Sub(xf.Q.Apply(s.LocalCenter))
	return xf
}

// Advance moves the start of the sweep forward to the absolute time alpha,
// with alpha0 <= alpha < 1.
func (s *Sweep) Advance(alpha float64) {
	beta := (alpha - s.Alpha0) / (1.0 - s.Alpha0)
	s.C0 = s.C0.Add(s.C.Sub(s.C0).Mul(beta))
	s.A0 += beta * (s.A - s.A0)
	s.Alpha0 = alpha
}

// Normalize brings the sweep angles into [-2pi, 2pi] by removing full turns
// shared by both endpoints.
func (s *Sweep) Normalize() {
	twoPi := 2.0 * math.Pi
	d := twoPi * math.Floor(s.A0/twoPi)
	s.A0 -= d
	s.A -= d
}
