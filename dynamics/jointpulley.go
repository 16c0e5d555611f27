package dynamics

import (
	"fmt"
	"io"
	"math"

	"github.com/veloxphys/velox2d/geom"
)

// PulleyJointDef describes a pulley: two ground anchors, two body anchors,
// and a ratio for block-and-tackle setups.
type PulleyJointDef struct {
	JointDef

	// Ground anchors in world coordinates. These points never move.
	GroundAnchorA geom.Vec2
	GroundAnchorB geom.Vec2

	LocalAnchorA geom.Vec2
	LocalAnchorB geom.Vec2

	// Reference lengths for the rope segments.
	LengthA float64
	LengthB float64

	// Ratio scales the force transmitted between the two sides.
	Ratio float64
}

// DefaultPulleyJointDef returns a unit-ratio def with collide-connected
// enabled, since the bodies hang on opposite sides.
func DefaultPulleyJointDef() PulleyJointDef {
	return PulleyJointDef{
		JointDef:      JointDef{CollideConnected: true},
		GroundAnchorA: geom.Vec2{-1.0, 1.0},
		GroundAnchorB: geom.Vec2{1.0, 1.0},
		LocalAnchorA:  geom.Vec2{-1.0, 0.0},
		LocalAnchorB:  geom.Vec2{1.0, 0.0},
		Ratio:         1.0,
	}
}

// Initialize sets the bodies, anchors, lengths and ratio from world
// coordinates.
func (def *PulleyJointDef) Initialize(bodyA, bodyB *Body, groundA, groundB, anchorA, anchorB geom.Vec2, ratio float64) {
	def.BodyA = bodyA.id
	def.BodyB = bodyB.id
	def.GroundAnchorA = groundA
	def.GroundAnchorB = groundB
	def.LocalAnchorA = bodyA.LocalPoint(anchorA)
	def.LocalAnchorB = bodyB.LocalPoint(anchorB)
	def.LengthA = anchorA.Sub(groundA).Len()
	def.LengthB = anchorB.Sub(groundB).Len()
	def.Ratio = ratio
}

func (def *PulleyJointDef) create(bodyA, bodyB *Body) (Joint, error) {
	if def.Ratio <= geom.Epsilon {
		return nil, fmt.Errorf("%w: pulley joint ratio must be positive", ErrInvalid)
	}
	return &PulleyJoint{
		jointBase:     makeJointBase(PulleyJointKind, &def.JointDef, bodyA, bodyB),
		groundAnchorA: def.GroundAnchorA,
		groundAnchorB: def.GroundAnchorB,
		localAnchorA:  def.LocalAnchorA,
		localAnchorB:  def.LocalAnchorB,
		lengthA:       def.LengthA,
		lengthB:       def.LengthB,
		ratio:         def.Ratio,
		constant:      def.LengthA + def.Ratio*def.LengthB,
	}, nil
}

// PulleyJoint connects two bodies to two fixed ground points with an
// idealized rope satisfying length1 + ratio * length2 <= constant. The
// transmitted force is scaled by the ratio.
//
// Pulleys can get squirrelly on their own; they behave better combined
// with prismatic joints, and the anchor points should be covered with
// static shapes so neither side collapses to zero length.
//
// length1 = norm(p1 - s1), length2 = norm(p2 - s2)
// C = C0 - (length1 + ratio * length2)
// Cdot = -dot(u1, v1 + cross(w1, r1)) - ratio * dot(u2, v2 + cross(w2, r2))
// K = invMass1 + invI1 * cross(r1, u1)^2 + ratio^2 * (invMass2 + invI2 * cross(r2, u2)^2)
type PulleyJoint struct {
	jointBase

	groundAnchorA geom.Vec2
	groundAnchorB geom.Vec2
	lengthA       float64
	lengthB       float64

	localAnchorA geom.Vec2
	localAnchorB geom.Vec2
	constant     float64
	ratio        float64
	impulse      float64

	// solver temp
	indexA       int
	indexB       int
	uA, uB       geom.Vec2
	rA, rB       geom.Vec2
	localCenterA geom.Vec2
	localCenterB geom.Vec2
	invMassA     float64
	invMassB     float64
	invIA, invIB float64
	mass         float64
}

func (j *PulleyJoint) GroundAnchorA() geom.Vec2 { return j.groundAnchorA }
func (j *PulleyJoint) GroundAnchorB() geom.Vec2 { return j.groundAnchorB }

func (j *PulleyJoint) LengthA() float64 { return j.lengthA }
func (j *PulleyJoint) LengthB() float64 { return j.lengthB }

func (j *PulleyJoint) Ratio() float64 { return j.ratio }

// CurrentLengthA returns the live segment length on the bodyA side.
func (j *PulleyJoint) CurrentLengthA() float64 {
	return j.bodyA.WorldPoint(j.localAnchorA).Sub(j.groundAnchorA).Len()
}

// CurrentLengthB returns the live segment length on the bodyB side.
func (j *PulleyJoint) CurrentLengthB() float64 {
	return j.bodyB.WorldPoint(j.localAnchorB).Sub(j.groundAnchorB).Len()
}

func (j *PulleyJoint) AnchorA() geom.Vec2 { return j.bodyA.WorldPoint(j.localAnchorA) }
func (j *PulleyJoint) AnchorB() geom.Vec2 { return j.bodyB.WorldPoint(j.localAnchorB) }

func (j *PulleyJoint) ReactionForce(invDt float64) geom.Vec2 {
	return j.uB.Mul(invDt * j.impulse)
}

func (j *PulleyJoint) ReactionTorque(invDt float64) float64 { return 0.0 }

func (j *PulleyJoint) ShiftOrigin(newOrigin geom.Vec2) {
	j.groundAnchorA = j.groundAnchorA.Sub(newOrigin)
	j.groundAnchorB = j.groundAnchorB.Sub(newOrigin)
}

func (j *PulleyJoint) initVelocityConstraints(data *solverData) {
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

	// Pulley axes.
	j.uA = cA.Add(j.rA).Sub(j.groundAnchorA)
	j.uB = cB.Add(j.rB).Sub(j.groundAnchorB)

	lengthA := j.uA.Len()
	lengthB := j.uB.Len()

	if lengthA > 10.0*data.conf.LinearSlop {
		j.uA = j.uA.Mul(1.0 / lengthA)
	} else {
		j.uA = geom.Vec2{}
	}

	if lengthB > 10.0*data.conf.LinearSlop {
		j.uB = j.uB.Mul(1.0 / lengthB)
	} else {
		j.uB = geom.Vec2{}
	}

	ruA := geom.Cross(j.rA, j.uA)
	ruB := geom.Cross(j.rB, j.uB)

	mA := j.invMassA + j.invIA*ruA*ruA
	mB := j.invMassB + j.invIB*ruB*ruB

	j.mass = mA + j.ratio*j.ratio*mB
	if j.mass > 0.0 {
		j.mass = 1.0 / j.mass
	}

	if data.step.warmStarting {
		// Scale impulses to support variable time steps.
		j.impulse *= data.step.dtRatio

		pA := j.uA.Mul(-j.impulse)
		pB := j.uB.Mul(-j.ratio * j.impulse)

		vA = vA.Add(pA.Mul(j.invMassA))
		wA += j.invIA * geom.Cross(j.rA, pA)
		vB = vB.Add(pB.Mul(j.invMassB))
		wB += j.invIB * geom.Cross(j.rB, pB)
	} else {
		j.impulse = 0.0
	}

	data.velocities[j.indexA].v = vA
	data.velocities[j.indexA].w = wA
	data.velocities[j.indexB].v = vB
	data.velocities[j.indexB].w = wB
}

func (j *PulleyJoint) solveVelocityConstraints(data *solverData) {
	vA := data.velocities[j.indexA].v
	wA := data.velocities[j.indexA].w
	vB := data.velocities[j.indexB].v
	wB := data.velocities[j.indexB].w

	vpA := vA.Add(geom.CrossSV(wA, j.rA))
	vpB := vB.Add(geom.CrossSV(wB, j.rB))

	cdot := -j.uA.Dot(vpA) - j.ratio*j.uB.Dot(vpB)
	impulse := -j.mass * cdot
	j.impulse += impulse

	pA := j.uA.Mul(-impulse)
	pB := j.uB.Mul(-j.ratio * impulse)
	vA = vA.Add(pA.Mul(j.invMassA))
	wA += j.invIA * geom.Cross(j.rA, pA)
	vB = vB.Add(pB.Mul(j.invMassB))
	wB += j.invIB * geom.Cross(j.rB, pB)

	data.velocities[j.indexA].v = vA
	data.velocities[j.indexA].w = wA
	data.velocities[j.indexB].v = vB
	data.velocities[j.indexB].w = wB
}

func (j *PulleyJoint) solvePositionConstraints(data *solverData) bool {
	cA := data.positions[j.indexA].c
	aA := data.positions[j.indexA].a
	cB := data.positions[j.indexB].c
	aB := data.positions[j.indexB].a

	qA := geom.RotFromAngle(aA)
	qB := geom.RotFromAngle(aB)

	rA := qA.Apply(j.localAnchorA.Sub(j.localCenterA))
	rB := qB.Apply(j.localAnchorB.Sub(j.localCenterB))

	uA := cA.Add(rA).Sub(j.groundAnchorA)
	uB := cB.Add(rB).Sub(j.groundAnchorB)

	lengthA := uA.Len()
	lengthB := uB.Len()

	if lengthA > 10.0*data.conf.LinearSlop {
		uA = uA.Mul(1.0 / lengthA)
	} else {
		uA = geom.Vec2{}
	}

	if lengthB > 10.0*data.conf.LinearSlop {
		uB = uB.Mul(1.0 / lengthB)
	} else {
		uB = geom.Vec2{}
	}

	ruA := geom.Cross(rA, uA)
	ruB := geom.Cross(rB, uB)

	mA := j.invMassA + j.invIA*ruA*ruA
	mB := j.invMassB + j.invIB*ruB*ruB

	mass := mA + j.ratio*j.ratio*mB
	if mass > 0.0 {
		mass = 1.0 / mass
	}

	c := j.constant - lengthA - j.ratio*lengthB
	linearError := math.Abs(c)

	impulse := -mass * c

	pA := uA.Mul(-impulse)
	pB := uB.Mul(-j.ratio * impulse)

	cA = cA.Add(pA.Mul(j.invMassA))
	aA += j.invIA * geom.Cross(rA, pA)
	cB = cB.Add(pB.Mul(j.invMassB))
	aB += j.invIB * geom.Cross(rB, pB)

	data.positions[j.indexA].c = cA
	data.positions[j.indexA].a = aA
	data.positions[j.indexB].c = cB
	data.positions[j.indexB].a = aB

	return linearError < data.conf.LinearSlop
}

func (j *PulleyJoint) dump(w io.Writer) {
	fmt.Fprintf(w, "joint pulley bodyA=%d bodyB=%d collide=%t groundA=(%.17g,%.17g) groundB=(%.17g,%.17g) anchorA=(%.17g,%.17g) anchorB=(%.17g,%.17g) lengthA=%.17g lengthB=%.17g ratio=%.17g\n",
		j.bodyA.islandIndex, j.bodyB.islandIndex, j.collideConnected,
		j.groundAnchorA[0], j.groundAnchorA[1], j.groundAnchorB[0], j.groundAnchorB[1],
		j.localAnchorA[0], j.localAnchorA[1], j.localAnchorB[0], j.localAnchorB[1],
		j.lengthA, j.lengthB, j.ratio)
}
