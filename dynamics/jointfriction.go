package dynamics

import (
	"fmt"
	"io"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/veloxphys/velox2d/geom"
)

// FrictionJointDef describes top-down friction between two bodies.
type FrictionJointDef struct {
	JointDef

	LocalAnchorA geom.Vec2
	LocalAnchorB geom.Vec2

	// MaxForce is the maximum friction force in newtons.
	MaxForce float64

	// MaxTorque is the maximum friction torque in newton-meters.
	MaxTorque float64
}

// DefaultFrictionJointDef returns a zero-force def.
func DefaultFrictionJointDef() FrictionJointDef {
	return FrictionJointDef{}
}

// Initialize sets the bodies and local anchors from a world anchor point.
func (def *FrictionJointDef) Initialize(bodyA, bodyB *Body, anchor geom.Vec2) {
	def.BodyA = bodyA.id
	def.BodyB = bodyB.id
	def.LocalAnchorA = bodyA.LocalPoint(anchor)
	def.LocalAnchorB = bodyB.LocalPoint(anchor)
}

func (def *FrictionJointDef) create(bodyA, bodyB *Body) (Joint, error) {
	if !(geom.Valid(def.MaxForce) && def.MaxForce >= 0.0) {
		return nil, fmt.Errorf("%w: friction joint max force must be non-negative", ErrInvalid)
	}
	if !(geom.Valid(def.MaxTorque) && def.MaxTorque >= 0.0) {
		return nil, fmt.Errorf("%w: friction joint max torque must be non-negative", ErrInvalid)
	}
	return &FrictionJoint{
		jointBase:    makeJointBase(FrictionJointKind, &def.JointDef, bodyA, bodyB),
		localAnchorA: def.LocalAnchorA,
		localAnchorB: def.LocalAnchorB,
		maxForce:     def.MaxForce,
		maxTorque:    def.MaxTorque,
	}, nil
}

// FrictionJoint provides 2D translational and angular friction, useful for
// top-down games.
//
// Point-to-point: Cdot = v2 + cross(w2, r2) - v1 - cross(w1, r1)
// Angle: Cdot = w2 - w1, K = invI1 + invI2
type FrictionJoint struct {
	jointBase

	localAnchorA geom.Vec2
	localAnchorB geom.Vec2

	linearImpulse  geom.Vec2
	angularImpulse float64
	maxForce       float64
	maxTorque      float64

	// solver temp
	indexA       int
	indexB       int
	rA, rB       geom.Vec2
	localCenterA geom.Vec2
	localCenterB geom.Vec2
	invMassA     float64
	invMassB     float64
	invIA, invIB float64
	linearMass   mgl64.Mat2
	angularMass  float64
}

func (j *FrictionJoint) LocalAnchorA() geom.Vec2 { return j.localAnchorA }
func (j *FrictionJoint) LocalAnchorB() geom.Vec2 { return j.localAnchorB }

func (j *FrictionJoint) MaxForce() float64 { return j.maxForce }

func (j *FrictionJoint) SetMaxForce(force float64) error {
	if !(geom.Valid(force) && force >= 0.0) {
		return fmt.Errorf("%w: friction joint max force must be non-negative", ErrInvalid)
	}
	j.maxForce = force
	return nil
}

func (j *FrictionJoint) MaxTorque() float64 { return j.maxTorque }

func (j *FrictionJoint) SetMaxTorque(torque float64) error {
	if !(geom.Valid(torque) && torque >= 0.0) {
		return fmt.Errorf("%w: friction joint max torque must be non-negative", ErrInvalid)
	}
	j.maxTorque = torque
	return nil
}

func (j *FrictionJoint) AnchorA() geom.Vec2 { return j.bodyA.WorldPoint(j.localAnchorA) }
func (j *FrictionJoint) AnchorB() geom.Vec2 { return j.bodyB.WorldPoint(j.localAnchorB) }

func (j *FrictionJoint) ReactionForce(invDt float64) geom.Vec2 {
	return j.linearImpulse.Mul(invDt)
}

func (j *FrictionJoint) ReactionTorque(invDt float64) float64 {
	return invDt * j.angularImpulse
}

func (j *FrictionJoint) initVelocityConstraints(data *solverData) {
	j.indexA = j.bodyA.islandIndex
	j.indexB = j.bodyB.islandIndex
	j.localCenterA = j.bodyA.sweep.LocalCenter
	j.localCenterB = j.bodyB.sweep.LocalCenter
	j.invMassA = j.bodyA.invMass
	j.invMassB = j.bodyB.invMass
	j.invIA = j.bodyA.invI
	j.invIB = j.bodyB.invI

	aA := data.positions[j.indexA].a
	vA := data.velocities[j.indexA].v
	wA := data.velocities[j.indexA].w

	aB := data.positions[j.indexB].a
	vB := data.velocities[j.indexB].v
	wB := data.velocities[j.indexB].w

	qA := geom.RotFromAngle(aA)
	qB := geom.RotFromAngle(aB)

	j.rA = qA.Apply(j.localAnchorA.Sub(j.localCenterA))
	j.rB = qB.Apply(j.localAnchorB.Sub(j.localCenterB))

	mA, mB := j.invMassA, j.invMassB
	iA, iB := j.invIA, j.invIB

	k11 := mA + mB + iA*j.rA[1]*j.rA[1] + iB*j.rB[1]*j.rB[1]
	k12 := -iA*j.rA[0]*j.rA[1] - iB*j.rB[0]*j.rB[1]
	k22 := mA + mB + iA*j.rA[0]*j.rA[0] + iB*j.rB[0]*j.rB[0]

	j.linearMass = geom.Inverse22(geom.Mat2FromCols(geom.Vec2{k11, k12}, geom.Vec2{k12, k22}))

	j.angularMass = iA + iB
	if j.angularMass > 0.0 {
		j.angularMass = 1.0 / j.angularMass
	}

	if data.step.warmStarting {
		// Scale impulses to support a variable time step.
		j.linearImpulse = j.linearImpulse.Mul(data.step.dtRatio)
		j.angularImpulse *= data.step.dtRatio

		p := j.linearImpulse
		vA = vA.Sub(p.Mul(mA))
		wA -= iA * (geom.Cross(j.rA, p) + j.angularImpulse)
		vB = vB.Add(p.Mul(mB))
		wB += iB * (geom.Cross(j.rB, p) + j.angularImpulse)
	} else {
		j.linearImpulse = geom.Vec2{}
		j.angularImpulse = 0.0
	}

	data.velocities[j.indexA].v = vA
	data.velocities[j.indexA].w = wA
	data.velocities[j.indexB].v = vB
	data.velocities[j.indexB].w = wB
}

func (j *FrictionJoint) solveVelocityConstraints(data *solverData) {
	vA := data.velocities[j.indexA].v
	wA := data.velocities[j.indexA].w
	vB := data.velocities[j.indexB].v
	wB := data.velocities[j.indexB].w

	mA, mB := j.invMassA, j.invMassB
	iA, iB := j.invIA, j.invIB

	h := data.step.dt

	// Angular friction.
	{
		cdot := wB - wA
		impulse := -j.angularMass * cdot

		oldImpulse := j.angularImpulse
		maxImpulse := h * j.maxTorque
		j.angularImpulse = geom.Clamp(j.angularImpulse+impulse, -maxImpulse, maxImpulse)
		impulse = j.angularImpulse - oldImpulse

		wA -= iA * impulse
		wB += iB * impulse
	}

	// Linear friction.
	{
		cdot := vB.Add(geom.CrossSV(wB, j.rB)).Sub(vA).Sub(geom.CrossSV(wA, j.rA))

		impulse := j.linearMass.Mul2x1(cdot).Mul(-1.0)
		oldImpulse := j.linearImpulse
		j.linearImpulse = j.linearImpulse.Add(impulse)

		maxImpulse := h * j.maxForce
		if j.linearImpulse.LenSqr() > maxImpulse*maxImpulse {
			j.linearImpulse = geom.Normalized(j.linearImpulse).Mul(maxImpulse)
		}

		impulse = j.linearImpulse.Sub(oldImpulse)

		vA = vA.Sub(impulse.Mul(mA))
		wA -= iA * geom.Cross(j.rA, impulse)

		vB = vB.Add(impulse.Mul(mB))
		wB += iB * geom.Cross(j.rB, impulse)
	}

	data.velocities[j.indexA].v = vA
	data.velocities[j.indexA].w = wA
	data.velocities[j.indexB].v = vB
	data.velocities[j.indexB].w = wB
}

func (j *FrictionJoint) solvePositionConstraints(data *solverData) bool {
	return true
}

func (j *FrictionJoint) dump(w io.Writer) {
	fmt.Fprintf(w, "joint friction bodyA=%d bodyB=%d collide=%t anchorA=(%.17g,%.17g) anchorB=(%.17g,%.17g) maxForce=%.17g maxTorque=%.17g\n",
		j.bodyA.islandIndex, j.bodyB.islandIndex, j.collideConnected,
		j.localAnchorA[0], j.localAnchorA[1], j.localAnchorB[0], j.localAnchorB[1],
		j.maxForce, j.maxTorque)
}
