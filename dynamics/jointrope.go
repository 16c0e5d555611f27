package dynamics

import (
	"fmt"
	"io"
	"math"

	"github.com/veloxphys/velox2d/geom"
)

// RopeJointDef describes a joint enforcing a maximum distance between two
// anchor points. By default the connected bodies do not collide.
type RopeJointDef struct {
	JointDef

	LocalAnchorA geom.Vec2
	LocalAnchorB geom.Vec2

	// MaxLength must be larger than the linear slop or the joint has
	// no effect.
	MaxLength float64
}

// DefaultRopeJointDef returns a def with anchors at (-1,0) and (1,0).
func DefaultRopeJointDef() RopeJointDef {
	return RopeJointDef{
		LocalAnchorA: geom.Vec2{-1.0, 0.0},
		LocalAnchorB: geom.Vec2{1.0, 0.0},
	}
}

func (def *RopeJointDef) create(bodyA, bodyB *Body) (Joint, error) {
	if def.MaxLength < 0.0 || !geom.Valid(def.MaxLength) {
		return nil, fmt.Errorf("%w: rope joint max length must be finite and non-negative", ErrInvalid)
	}
	return &RopeJoint{
		jointBase:    makeJointBase(RopeJointKind, &def.JointDef, bodyA, bodyB),
		localAnchorA: def.LocalAnchorA,
		localAnchorB: def.LocalAnchorB,
		maxLength:    def.MaxLength,
		state:        inactiveLimit,
	}, nil
}

// RopeJoint enforces a maximum distance between two points on two bodies.
// It has no other effect. Changing the maximum length during simulation
// produces non-physical behavior; use a DistanceJoint for a dynamically
// controlled length.
//
// Limit:
// C = |pB - pA| - L
// u = (pB - pA) / |pB - pA|
// Cdot = dot(u, vB + cross(wB, rB) - vA - cross(wA, rA))
// J = [-u -cross(rA, u) u cross(rB, u)]
type RopeJoint struct {
	jointBase

	localAnchorA geom.Vec2
	localAnchorB geom.Vec2
	maxLength    float64
	length       float64
	impulse      float64

	// solver temp
	indexA       int
	indexB       int
	u            geom.Vec2
	rA, rB       geom.Vec2
	localCenterA geom.Vec2
	localCenterB geom.Vec2
	invMassA     float64
	invMassB     float64
	invIA, invIB float64
	mass         float64
	state        limitState
}

func (j *RopeJoint) LocalAnchorA() geom.Vec2 { return j.localAnchorA }
func (j *RopeJoint) LocalAnchorB() geom.Vec2 { return j.localAnchorB }

func (j *RopeJoint) MaxLength() float64          { return j.maxLength }
func (j *RopeJoint) SetMaxLength(length float64) { j.maxLength = length }

// CurrentLength reports the anchor separation as of the last solver init.
func (j *RopeJoint) CurrentLength() float64 { return j.length }

func (j *RopeJoint) AnchorA() geom.Vec2 { return j.bodyA.WorldPoint(j.localAnchorA) }
func (j *RopeJoint) AnchorB() geom.Vec2 { return j.bodyB.WorldPoint(j.localAnchorB) }

func (j *RopeJoint) ReactionForce(invDt float64) geom.Vec2 {
	return j.u.Mul(invDt * j.impulse)
}

func (j *RopeJoint) ReactionTorque(invDt float64) float64 { return 0.0 }

func (j *RopeJoint) initVelocityConstraints(data *solverData) {
	j.indexA = j.bodyA.islandIndex
	j.indexB = j.bodyB.islandIndex
	j.localCenterA = j.bodyA.sweep.LocalCenter
	j.localCenterB = j.bodyB.sweep.LocalCenter
	j.invMassA = j.bodyA.invMass
	j.invMassB = j.bodyB.invMass
	j.invIA = j.bodyA.invI
	j.invIB = j.bodyB.invI

	cA := data.positions[j.indexA].c
	aA := data.positions[j.indexA].a
	vA := data.velocities[j.indexA].v
	wA := data.velocities[j.indexA].w

	cB := data.positions[j.indexB].c
	aB := data.positions[j.indexB].a
	vB := data.velocities[j.indexB].v
	wB := data.velocities[j.indexB].w

	qA := geom.RotFromAngle(aA)
	qB := geom.RotFromAngle(aB)

	j.rA = qA.Apply(j.localAnchorA.Sub(j.localCenterA))
	j.rB = qB.Apply(j.localAnchorB.Sub(j.localCenterB))
	j.u = cB.Add(j.rB).Sub(cA).Sub(j.rA)

	j.length = j.u.Len()

	c := j.length - j.maxLength
	if c > 0.0 {
		j.state = atUpperLimit
	} else {
		j.state = inactiveLimit
	}

	if j.length > data.conf.LinearSlop {
		j.u = j.u.Mul(1.0 / j.length)
	} else {
		j.u = geom.Vec2{}
		j.mass = 0.0
		j.impulse = 0.0
		return
	}

	crA := geom.Cross(j.rA, j.u)
	crB := geom.Cross(j.rB, j.u)
	invMass := j.invMassA + j.invIA*crA*crA + j.invMassB + j.invIB*crB*crB

	if invMass != 0.0 {
		j.mass = 1.0 / invMass
	} else {
		j.mass = 0.0
	}

	if data.step.warmStarting {
		// Scale the impulse to support a variable time step.
		j.impulse *= data.step.dtRatio

		p := j.u.Mul(j.impulse)
		vA = vA.Sub(p.Mul(j.invMassA))
		wA -= j.invIA * geom.Cross(j.rA, p)
		vB = vB.Add(p.Mul(j.invMassB))
		wB += j.invIB * geom.Cross(j.rB, p)
	} else {
		j.impulse = 0.0
	}

	data.velocities[j.indexA].v = vA
	data.velocities[j.indexA].w = wA
	data.velocities[j.indexB].v = vB
	data.velocities[j.indexB].w = wB
}

func (j *RopeJoint) solveVelocityConstraints(data *solverData) {
	vA := data.velocities[j.indexA].v
	wA := data.velocities[j.indexA].w
	vB := data.velocities[j.indexB].v
	wB := data.velocities[j.indexB].w

	// Cdot = dot(u, v + cross(w, r))
	vpA := vA.Add(geom.CrossSV(wA, j.rA))
	vpB := vB.Add(geom.CrossSV(wB, j.rB))
	c := j.length - j.maxLength
	cdot := j.u.Dot(vpB.Sub(vpA))

	// Predictive constraint.
	if c < 0.0 {
		cdot += data.step.invDt * c
	}

	impulse := -j.mass * cdot
	oldImpulse := j.impulse
	j.impulse = math.Min(0.0, j.impulse+impulse)
	impulse = j.impulse - oldImpulse

	p := j.u.Mul(impulse)
	vA = vA.Sub(p.Mul(j.invMassA))
	wA -= j.invIA * geom.Cross(j.rA, p)
	vB = vB.Add(p.Mul(j.invMassB))
	wB += j.invIB * geom.Cross(j.rB, p)

	data.velocities[j.indexA].v = vA
	data.velocities[j.indexA].w = wA
	data.velocities[j.indexB].v = vB
	data.velocities[j.indexB].w = wB
}

func (j *RopeJoint) solvePositionConstraints(data *solverData) bool {
	cA := data.positions[j.indexA].c
	aA := data.positions[j.indexA].a
	cB := data.positions[j.indexB].c
	aB := data.positions[j.indexB].a

	qA := geom.RotFromAngle(aA)
	qB := geom.RotFromAngle(aB)

	rA := qA.Apply(j.localAnchorA.Sub(j.localCenterA))
	rB := qB.Apply(j.localAnchorB.Sub(j.localCenterB))
	u := cB.Add(rB).Sub(cA).Sub(rA)

	length := u.Len()
	u = geom.Normalized(u)
	c := geom.Clamp(length-j.maxLength, 0.0, data.conf.MaxLinearCorrection)

	impulse := -j.mass * c
	p := u.Mul(impulse)

	cA = cA.Sub(p.Mul(j.invMassA))
	aA -= j.invIA * geom.Cross(rA, p)
	cB = cB.Add(p.Mul(j.invMassB))
	aB += j.invIB * geom.Cross(rB, p)

	data.positions[j.indexA].c = cA
	data.positions[j.indexA].a = aA
	data.positions[j.indexB].c = cB
	data.positions[j.indexB].a = aB

	return length-j.maxLength < data.conf.LinearSlop
}

func (j *RopeJoint) dump(w io.Writer) {
	fmt.Fprintf(w, "joint rope bodyA=%d bodyB=%d collide=%t anchorA=(%.17g,%.17g) anchorB=(%.17g,%.17g) maxLength=%.17g\n",
		j.bodyA.islandIndex, j.bodyB.islandIndex, j.collideConnected,
		j.localAnchorA[0], j.localAnchorA[1], j.localAnchorB[0], j.localAnchorB[1],
		j.maxLength)
}
