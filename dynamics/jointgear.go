package dynamics

import (
	"fmt"
	"io"

	"github.com/veloxphys/velox2d/geom"
)

// GearJointDef binds two existing revolute or prismatic joints (any
// combination). BodyA must be Joint1's second body and BodyB must be
// Joint2's second body.
type GearJointDef struct {
	JointDef

	Joint1 Joint
	Joint2 Joint

	// Ratio binds the joint coordinates:
	// coordinate1 + ratio * coordinate2 = constant
	Ratio float64
}

// DefaultGearJointDef returns a unit-ratio def; Joint1 and Joint2 must be
// set before creation.
func DefaultGearJointDef() GearJointDef {
	return GearJointDef{Ratio: 1.0}
}

func (def *GearJointDef) create(bodyA, bodyB *Body) (Joint, error) {
	if def.Joint1 == nil || def.Joint2 == nil {
		return nil, fmt.Errorf("%w: gear joint requires two existing joints", ErrInvalid)
	}
	k1 := def.Joint1.Kind()
	k2 := def.Joint2.Kind()
	if k1 != RevoluteJointKind && k1 != PrismaticJointKind {
		return nil, fmt.Errorf("%w: gear joint1 must be revolute or prismatic, got %s", ErrInvalid, k1)
	}
	if k2 != RevoluteJointKind && k2 != PrismaticJointKind {
		return nil, fmt.Errorf("%w: gear joint2 must be revolute or prismatic, got %s", ErrInvalid, k2)
	}
	if def.Joint1.base().bodyB != bodyA || def.Joint2.base().bodyB != bodyB {
		return nil, fmt.Errorf("%w: gear joint bodies must be the driven bodies of joint1 and joint2", ErrInvalid)
	}
	if !geom.Valid(def.Ratio) || def.Ratio == 0.0 {
		return nil, fmt.Errorf("%w: gear joint ratio must be finite and nonzero", ErrInvalid)
	}

	j := &GearJoint{
		jointBase: makeJointBase(GearJointKind, &def.JointDef, bodyA, bodyB),
		joint1:    def.Joint1,
		joint2:    def.Joint2,
		typeA:     k1,
		typeB:     k2,
		ratio:     def.Ratio,
	}

	// Body A is connected to body C, body B to body D.
	j.bodyC = def.Joint1.base().bodyA
	j.bodyD = def.Joint2.base().bodyA

	var coordinateA, coordinateB float64

	xfA := bodyA.xf
	xfC := j.bodyC.xf
	if k1 == RevoluteJointKind {
		revolute := def.Joint1.(*RevoluteJoint)
		j.localAnchorC = revolute.localAnchorA
		j.localAnchorA = revolute.localAnchorB
		j.referenceAngleA = revolute.referenceAngle
		coordinateA = bodyA.sweep.A - j.bodyC.sweep.A - j.referenceAngleA
	} else {
		prismatic := def.Joint1.(*PrismaticJoint)
		j.localAnchorC = prismatic.localAnchorA
		j.localAnchorA = prismatic.localAnchorB
		j.referenceAngleA = prismatic.referenceAngle
		j.localAxisC = prismatic.localXAxisA

		pC := j.localAnchorC
		pA := xfC.Q.ApplyT(xfA.Q.Apply(j.localAnchorA).Add(xfA.P.Sub(xfC.P)))
		coordinateA = pA.Sub(pC).Dot(j.localAxisC)
	}

	xfB := bodyB.xf
	xfD := j.bodyD.xf
	if k2 == RevoluteJointKind {
		revolute := def.Joint2.(*RevoluteJoint)
		j.localAnchorD = revolute.localAnchorA
		j.localAnchorB = revolute.localAnchorB
		j.referenceAngleB = revolute.referenceAngle
		coordinateB = bodyB.sweep.A - j.bodyD.sweep.A - j.referenceAngleB
	} else {
		prismatic := def.Joint2.(*PrismaticJoint)
		j.localAnchorD = prismatic.localAnchorA
		j.localAnchorB = prismatic.localAnchorB
		j.referenceAngleB = prismatic.referenceAngle
		j.localAxisD = prismatic.localXAxisA

		pD := j.localAnchorD
		pB := xfD.Q.ApplyT(xfB.Q.Apply(j.localAnchorB).Add(xfB.P.Sub(xfD.P)))
		coordinateB = pB.Sub(pD).Dot(j.localAxisD)
	}

	j.constant = coordinateA + j.ratio*coordinateB
	return j, nil
}

// GearJoint connects two joints with a gear ratio:
// coordinate1 + ratio * coordinate2 = constant.
// The ratio can be negative. Mixing a revolute with a prismatic gives the
// ratio units of length or inverse length.
//
// Destroy the gear joint before destroying joint1 or joint2.
//
// Revolute: coordinate = rotation, J = [0 0 1], K = invI
// Prismatic: coordinate = dot(p - pg, ug), J = [ug cross(r, ug)],
// K = invMass + invI * cross(r, ug)^2
type GearJoint struct {
	jointBase

	joint1 Joint
	joint2 Joint

	typeA JointKind
	typeB JointKind

	// Body A is connected to body C, body B to body D.
	bodyC *Body
	bodyD *Body

	localAnchorA geom.Vec2
	localAnchorB geom.Vec2
	localAnchorC geom.Vec2
	localAnchorD geom.Vec2

	localAxisC geom.Vec2
	localAxisD geom.Vec2

	referenceAngleA float64
	referenceAngleB float64

	constant float64
	ratio    float64

	impulse float64

	// solver temp
	indexA, indexB, indexC, indexD int
	lcA, lcB, lcC, lcD             geom.Vec2
	mA, mB, mC, mD                 float64
	iA, iB, iC, iD                 float64
	jvAC, jvBD                     geom.Vec2
	jwA, jwB, jwC, jwD             float64
	mass                           float64
}

func (j *GearJoint) Joint1() Joint { return j.joint1 }
func (j *GearJoint) Joint2() Joint { return j.joint2 }

func (j *GearJoint) Ratio() float64 { return j.ratio }

func (j *GearJoint) SetRatio(ratio float64) error {
	if !geom.Valid(ratio) || ratio == 0.0 {
		return fmt.Errorf("%w: gear joint ratio must be finite and nonzero", ErrInvalid)
	}
	j.ratio = ratio
	return nil
}

func (j *GearJoint) AnchorA() geom.Vec2 { return j.bodyA.WorldPoint(j.localAnchorA) }
func (j *GearJoint) AnchorB() geom.Vec2 { return j.bodyB.WorldPoint(j.localAnchorB) }

func (j *GearJoint) ReactionForce(invDt float64) geom.Vec2 {
	return j.jvAC.Mul(invDt * j.impulse)
}

func (j *GearJoint) ReactionTorque(invDt float64) float64 {
	return invDt * j.impulse * j.jwA
}

func (j *GearJoint) initVelocityConstraints(data *solverData) {
	j.indexA = j.bodyA.islandIndex
	j.indexB = j.bodyB.islandIndex
	j.indexC = j.bodyC.islandIndex
	j.indexD = j.bodyD.islandIndex
	j.lcA = j.bodyA.sweep.LocalCenter
	j.lcB = j.bodyB.sweep.LocalCenter
	j.lcC = j.bodyC.sweep.LocalCenter
	j.lcD = j.bodyD.sweep.LocalCenter
	j.mA = j.bodyA.invMass
	j.mB = j.bodyB.invMass
	j.mC = j.bodyC.invMass
	j.mD = j.bodyD.invMass
	j.iA = j.bodyA.invI
	j.iB = j.bodyB.invI
	j.iC = j.bodyC.invI
	j.iD = j.bodyD.invI

	aA := data.positions[j.indexA].a
	vA := data.velocities[j.indexA].v
	wA := data.velocities[j.indexA].w

	aB := data.positions[j.indexB].a
	vB := data.velocities[j.indexB].v
	wB := data.velocities[j.indexB].w

	aC := data.positions[j.indexC].a
	vC := data.velocities[j.indexC].v
	wC := data.velocities[j.indexC].w

	aD := data.positions[j.indexD].a
	vD := data.velocities[j.indexD].v
	wD := data.velocities[j.indexD].w

	qA := geom.RotFromAngle(aA)
	qB := geom.RotFromAngle(aB)
	qC := geom.RotFromAngle(aC)
	qD := geom.RotFromAngle(aD)

	j.mass = 0.0

	if j.typeA == RevoluteJointKind {
		j.jvAC = geom.Vec2{}
		j.jwA = 1.0
		j.jwC = 1.0
		j.mass += j.iA + j.iC
	} else {
		u := qC.Apply(j.localAxisC)
		rC := qC.Apply(j.localAnchorC.Sub(j.lcC))
		rA := qA.Apply(j.localAnchorA.Sub(j.lcA))
		j.jvAC = u
		j.jwC = geom.Cross(rC, u)
		j.jwA = geom.Cross(rA, u)
		j.mass += j.mC + j.mA + j.iC*j.jwC*j.jwC + j.iA*j.jwA*j.jwA
	}

	if j.typeB == RevoluteJointKind {
		j.jvBD = geom.Vec2{}
		j.jwB = j.ratio
		j.jwD = j.ratio
		j.mass += j.ratio * j.ratio * (j.iB + j.iD)
	} else {
		u := qD.Apply(j.localAxisD)
		rD := qD.Apply(j.localAnchorD.Sub(j.lcD))
		rB := qB.Apply(j.localAnchorB.Sub(j.lcB))
		j.jvBD = u.Mul(j.ratio)
		j.jwD = j.ratio * geom.Cross(rD, u)
		j.jwB = j.ratio * geom.Cross(rB, u)
		j.mass += j.ratio*j.ratio*(j.mD+j.mB) + j.iD*j.jwD*j.jwD + j.iB*j.jwB*j.jwB
	}

	if j.mass > 0.0 {
		j.mass = 1.0 / j.mass
	} else {
		j.mass = 0.0
	}

	if data.step.warmStarting {
		vA = vA.Add(j.jvAC.Mul(j.mA * j.impulse))
		wA += j.iA * j.impulse * j.jwA
		vB = vB.Add(j.jvBD.Mul(j.mB * j.impulse))
		wB += j.iB * j.impulse * j.jwB
		vC = vC.Sub(j.jvAC.Mul(j.mC * j.impulse))
		wC -= j.iC * j.impulse * j.jwC
		vD = vD.Sub(j.jvBD.Mul(j.mD * j.impulse))
		wD -= j.iD * j.impulse * j.jwD
	} else {
		j.impulse = 0.0
	}

	data.velocities[j.indexA].v = vA
	data.velocities[j.indexA].w = wA
	data.velocities[j.indexB].v = vB
	data.velocities[j.indexB].w = wB
	data.velocities[j.indexC].v = vC
	data.velocities[j.indexC].w = wC
	data.velocities[j.indexD].v = vD
	data.velocities[j.indexD].w = wD
}

func (j *GearJoint) solveVelocityConstraints(data *solverData) {
	vA := data.velocities[j.indexA].v
	wA := data.velocities[j.indexA].w
	vB := data.velocities[j.indexB].v
	wB := data.velocities[j.indexB].w
	vC := data.velocities[j.indexC].v
	wC := data.velocities[j.indexC].w
	vD := data.velocities[j.indexD].v
	wD := data.velocities[j.indexD].w

	cdot := j.jvAC.Dot(vA.Sub(vC)) + j.jvBD.Dot(vB.Sub(vD))
	cdot += (j.jwA*wA - j.jwC*wC) + (j.jwB*wB - j.jwD*wD)

	impulse := -j.mass * cdot
	j.impulse += impulse

	vA = vA.Add(j.jvAC.Mul(j.mA * impulse))
	wA += j.iA * impulse * j.jwA
	vB = vB.Add(j.jvBD.Mul(j.mB * impulse))
	wB += j.iB * impulse * j.jwB
	vC = vC.Sub(j.jvAC.Mul(j.mC * impulse))
	wC -= j.iC * impulse * j.jwC
	vD = vD.Sub(j.jvBD.Mul(j.mD * impulse))
	wD -= j.iD * impulse * j.jwD

	data.velocities[j.indexA].v = vA
	data.velocities[j.indexA].w = wA
	data.velocities[j.indexB].v = vB
	data.velocities[j.indexB].w = wB
	data.velocities[j.indexC].v = vC
	data.velocities[j.indexC].w = wC
	data.velocities[j.indexD].v = vD
	data.velocities[j.indexD].w = wD
}

func (j *GearJoint) solvePositionConstraints(data *solverData) bool {
	cA := data.positions[j.indexA].c
	aA := data.positions[j.indexA].a
	cB := data.positions[j.indexB].c
	aB := data.positions[j.indexB].a
	cC := data.positions[j.indexC].c
	aC := data.positions[j.indexC].a
	cD := data.positions[j.indexD].c
	aD := data.positions[j.indexD].a

	qA := geom.RotFromAngle(aA)
	qB := geom.RotFromAngle(aB)
	qC := geom.RotFromAngle(aC)
	qD := geom.RotFromAngle(aD)

	linearError := 0.0

	var coordinateA, coordinateB float64
	var jvAC, jvBD geom.Vec2
	var jwA, jwB, jwC, jwD float64
	mass := 0.0

	if j.typeA == RevoluteJointKind {
		jwA = 1.0
		jwC = 1.0
		mass += j.iA + j.iC

		coordinateA = aA - aC - j.referenceAngleA
	} else {
		u := qC.Apply(j.localAxisC)
		rC := qC.Apply(j.localAnchorC.Sub(j.lcC))
		rA := qA.Apply(j.localAnchorA.Sub(j.lcA))
		jvAC = u
		jwC = geom.Cross(rC, u)
		jwA = geom.Cross(rA, u)
		mass += j.mC + j.mA + j.iC*jwC*jwC + j.iA*jwA*jwA

		pC := j.localAnchorC.Sub(j.lcC)
		pA := qC.ApplyT(rA.Add(cA.Sub(cC)))
		coordinateA = pA.Sub(pC).Dot(j.localAxisC)
	}

	if j.typeB == RevoluteJointKind {
		jwB = j.ratio
		jwD = j.ratio
		mass += j.ratio * j.ratio * (j.iB + j.iD)

		coordinateB = aB - aD - j.referenceAngleB
	} else {
		u := qD.Apply(j.localAxisD)
		rD := qD.Apply(j.localAnchorD.Sub(j.lcD))
		rB := qB.Apply(j.localAnchorB.Sub(j.lcB))
		jvBD = u.Mul(j.ratio)
		jwD = j.ratio * geom.Cross(rD, u)
		jwB = j.ratio * geom.Cross(rB, u)
		mass += j.ratio*j.ratio*(j.mD+j.mB) + j.iD*jwD*jwD + j.iB*jwB*jwB

		pD := j.localAnchorD.Sub(j.lcD)
		pB := qD.ApplyT(rB.Add(cB.Sub(cD)))
		coordinateB = pB.Sub(pD).Dot(j.localAxisD)
	}

	c := (coordinateA + j.ratio*coordinateB) - j.constant

	impulse := 0.0
	if mass > 0.0 {
		impulse = -c / mass
	}

	cA = cA.Add(jvAC.Mul(j.mA * impulse))
	aA += j.iA * impulse * jwA
	cB = cB.Add(jvBD.Mul(j.mB * impulse))
	aB += j.iB * impulse * jwB
	cC = cC.Sub(jvAC.Mul(j.mC * impulse))
	aC -= j.iC * impulse * jwC
	cD = cD.Sub(jvBD.Mul(j.mD * impulse))
	aD -= j.iD * impulse * jwD

	data.positions[j.indexA].c = cA
	data.positions[j.indexA].a = aA
	data.positions[j.indexB].c = cB
	data.positions[j.indexB].a = aB
	data.positions[j.indexC].c = cC
	data.positions[j.indexC].a = aC
	data.positions[j.indexD].c = cD
	data.positions[j.indexD].a = aD

	return linearError < data.conf.LinearSlop
}

func (j *GearJoint) dump(w io.Writer) {
	fmt.Fprintf(w, "joint gear bodyA=%d bodyB=%d collide=%t joint1=%d joint2=%d ratio=%.17g\n",
		j.bodyA.islandIndex, j.bodyB.islandIndex, j.collideConnected,
		j.joint1.ID().idx, j.joint2.ID().idx, j.ratio)
}
