package dynamics

import (
	"fmt"
	"io"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/veloxphys/velox2d/geom"
)

// WeldJointDef describes a joint gluing two bodies together at an anchor
// point. The anchor position matters for computing the reaction torque. A
// nonzero frequency softens the rotational constraint.
type WeldJointDef struct {
	JointDef

	LocalAnchorA geom.Vec2
	LocalAnchorB geom.Vec2

	// ReferenceAngle is bodyB angle minus bodyA angle in the reference
	// state, in radians.
	ReferenceAngle float64

	// FrequencyHz is the rotational mass-spring-damper frequency;
	// 0 disables softness.
	FrequencyHz float64

	// DampingRatio: 0 = no damping, 1 = critical damping.
	DampingRatio float64
}

// DefaultWeldJointDef returns a rigid def.
func DefaultWeldJointDef() WeldJointDef {
	return WeldJointDef{}
}

// Initialize sets the bodies, local anchors and reference angle from a
// world anchor point.
func (def *WeldJointDef) Initialize(bodyA, bodyB *Body, anchor geom.Vec2) {
	def.BodyA = bodyA.id
	def.BodyB = bodyB.id
	def.LocalAnchorA = bodyA.LocalPoint(anchor)
	def.LocalAnchorB = bodyB.LocalPoint(anchor)
	def.ReferenceAngle = bodyB.Angle() - bodyA.Angle()
}

func (def *WeldJointDef) create(bodyA, bodyB *Body) (Joint, error) {
	return &WeldJoint{
		jointBase:      makeJointBase(WeldJointKind, &def.JointDef, bodyA, bodyB),
		localAnchorA:   def.LocalAnchorA,
		localAnchorB:   def.LocalAnchorB,
		referenceAngle: def.ReferenceAngle,
		frequencyHz:    def.FrequencyHz,
		dampingRatio:   def.DampingRatio,
	}, nil
}

// WeldJoint glues two bodies together. It may distort somewhat because the
// island constraint solver is approximate.
//
// Point-to-point constraint:
// C = p2 - p1
// Cdot = v2 + cross(w2, r2) - v1 - cross(w1, r1)
//
// Angle constraint:
// C = angle2 - angle1 - referenceAngle
// Cdot = w2 - w1
// K = invI1 + invI2
type WeldJoint struct {
	jointBase

	frequencyHz  float64
	dampingRatio float64
	bias         float64

	localAnchorA   geom.Vec2
	localAnchorB   geom.Vec2
	referenceAngle float64
	gamma          float64
	impulse        mgl64.Vec3

	// solver temp
	indexA       int
	indexB       int
	rA, rB       geom.Vec2
	localCenterA geom.Vec2
	localCenterB geom.Vec2
	invMassA     float64
	invMassB     float64
	invIA, invIB float64
	mass         mgl64.Mat3
}

func (j *WeldJoint) LocalAnchorA() geom.Vec2 { return j.localAnchorA }
func (j *WeldJoint) LocalAnchorB() geom.Vec2 { return j.localAnchorB }

func (j *WeldJoint) ReferenceAngle() float64 { return j.referenceAngle }

func (j *WeldJoint) SetFrequency(hz float64) { j.frequencyHz = hz }
func (j *WeldJoint) Frequency() float64      { return j.frequencyHz }

func (j *WeldJoint) SetDampingRatio(ratio float64) { j.dampingRatio = ratio }
func (j *WeldJoint) DampingRatio() float64         { return j.dampingRatio }

func (j *WeldJoint) AnchorA() geom.Vec2 { return j.bodyA.WorldPoint(j.localAnchorA) }
func (j *WeldJoint) AnchorB() geom.Vec2 { return j.bodyB.WorldPoint(j.localAnchorB) }

func (j *WeldJoint) ReactionForce(invDt float64) geom.Vec2 {
	return geom.Vec2{j.impulse[0], j.impulse[1]}.Mul(invDt)
}

func (j *WeldJoint) ReactionTorque(invDt float64) float64 {
	return invDt * j.impulse[2]
}

func (j *WeldJoint) initVelocityConstraints(data *solverData) {
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

	// J = [-I -r1_skew I r2_skew]
	//     [ 0       -1 0       1]
	// r_skew = [-ry; rx]

	mA, mB := j.invMassA, j.invMassB
	iA, iB := j.invIA, j.invIB

	ex := mgl64.Vec3{
		mA + mB + j.rA[1]*j.rA[1]*iA + j.rB[1]*j.rB[1]*iB,
		-j.rA[1]*j.rA[0]*iA - j.rB[1]*j.rB[0]*iB,
		-j.rA[1]*iA - j.rB[1]*iB,
	}
	ey := mgl64.Vec3{
		ex[1],
		mA + mB + j.rA[0]*j.rA[0]*iA + j.rB[0]*j.rB[0]*iB,
		j.rA[0]*iA + j.rB[0]*iB,
	}
	ez := mgl64.Vec3{ex[2], ey[2], iA + iB}
	k := geom.Mat3FromCols(ex, ey, ez)

	if j.frequencyHz > 0.0 {
		j.mass = geom.Inverse22Of33(k)

		invM := iA + iB
		m := 0.0
		if invM > 0.0 {
			m = 1.0 / invM
		}

		c := aB - aA - j.referenceAngle

		omega := 2.0 * math.Pi * j.frequencyHz

		// Damping coefficient and spring stiffness.
		d := 2.0 * m * j.dampingRatio * omega
		kSpring := m * omega * omega

		h := data.step.dt
		j.gamma = h * (d + h*kSpring)
		if j.gamma != 0.0 {
			j.gamma = 1.0 / j.gamma
		}
		j.bias = c * h * kSpring * j.gamma

		invM += j.gamma
		if invM != 0.0 {
			j.mass.Set(2, 2, 1.0/invM)
		} else {
			j.mass.Set(2, 2, 0.0)
		}
	} else if ez[2] == 0.0 {
		j.mass = geom.Inverse22Of33(k)
		j.gamma = 0.0
		j.bias = 0.0
	} else {
		j.mass = geom.SymInverse33(k)
		j.gamma = 0.0
		j.bias = 0.0
	}

	if data.step.warmStarting {
		// Scale impulses to support a variable time step.
		j.impulse = j.impulse.Mul(data.step.dtRatio)

		p := geom.Vec2{j.impulse[0], j.impulse[1]}

		vA = vA.Sub(p.Mul(mA))
		wA -= iA * (geom.Cross(j.rA, p) + j.impulse[2])

		vB = vB.Add(p.Mul(mB))
		wB += iB * (geom.Cross(j.rB, p) + j.impulse[2])
	} else {
		j.impulse = mgl64.Vec3{}
	}

	data.velocities[j.indexA].v = vA
	data.velocities[j.indexA].w = wA
	data.velocities[j.indexB].v = vB
	data.velocities[j.indexB].w = wB
}

func (j *WeldJoint) solveVelocityConstraints(data *solverData) {
	vA := data.velocities[j.indexA].v
	wA := data.velocities[j.indexA].w
	vB := data.velocities[j.indexB].v
	wB := data.velocities[j.indexB].w

	mA, mB := j.invMassA, j.invMassB
	iA, iB := j.invIA, j.invIB

	if j.frequencyHz > 0.0 {
		cdot2 := wB - wA

		impulse2 := -j.mass.At(2, 2) * (cdot2 + j.bias + j.gamma*j.impulse[2])
		j.impulse[2] += impulse2

		wA -= iA * impulse2
		wB += iB * impulse2

		cdot1 := vB.Add(geom.CrossSV(wB, j.rB)).Sub(vA).Sub(geom.CrossSV(wA, j.rA))

		impulse1 := geom.Vec2{
			j.mass.At(0, 0)*cdot1[0] + j.mass.At(0, 1)*cdot1[1],
			j.mass.At(1, 0)*cdot1[0] + j.mass.At(1, 1)*cdot1[1],
		}.Mul(-1.0)
		j.impulse[0] += impulse1[0]
		j.impulse[1] += impulse1[1]

		vA = vA.Sub(impulse1.Mul(mA))
		wA -= iA * geom.Cross(j.rA, impulse1)

		vB = vB.Add(impulse1.Mul(mB))
		wB += iB * geom.Cross(j.rB, impulse1)
	} else {
		cdot1 := vB.Add(geom.CrossSV(wB, j.rB)).Sub(vA).Sub(geom.CrossSV(wA, j.rA))
		cdot2 := wB - wA
		cdot := mgl64.Vec3{cdot1[0], cdot1[1], cdot2}

		impulse := j.mass.Mul3x1(cdot).Mul(-1.0)
		j.impulse = j.impulse.Add(impulse)

		p := geom.Vec2{impulse[0], impulse[1]}

		vA = vA.Sub(p.Mul(mA))
		wA -= iA * (geom.Cross(j.rA, p) + impulse[2])

		vB = vB.Add(p.Mul(mB))
		wB += iB * (geom.Cross(j.rB, p) + impulse[2])
	}

	data.velocities[j.indexA].v = vA
	data.velocities[j.indexA].w = wA
	data.velocities[j.indexB].v = vB
	data.velocities[j.indexB].w = wB
}

func (j *WeldJoint) solvePositionConstraints(data *solverData) bool {
	cA := data.positions[j.indexA].c
	aA := data.positions[j.indexA].a
	cB := data.positions[j.indexB].c
	aB := data.positions[j.indexB].a

	qA := geom.RotFromAngle(aA)
	qB := geom.RotFromAngle(aB)

	mA, mB := j.invMassA, j.invMassB
	iA, iB := j.invIA, j.invIB

	rA := qA.Apply(j.localAnchorA.Sub(j.localCenterA))
	rB := qB.Apply(j.localAnchorB.Sub(j.localCenterB))

	var positionError, angularError float64

	ex := mgl64.Vec3{
		mA + mB + rA[1]*rA[1]*iA + rB[1]*rB[1]*iB,
		-rA[1]*rA[0]*iA - rB[1]*rB[0]*iB,
		-rA[1]*iA - rB[1]*iB,
	}
	ey := mgl64.Vec3{
		ex[1],
		mA + mB + rA[0]*rA[0]*iA + rB[0]*rB[0]*iB,
		rA[0]*iA + rB[0]*iB,
	}
	ez := mgl64.Vec3{ex[2], ey[2], iA + iB}
	k := geom.Mat3FromCols(ex, ey, ez)

	if j.frequencyHz > 0.0 {
		c1 := cB.Add(rB).Sub(cA).Sub(rA)

		positionError = c1.Len()
		angularError = 0.0

		p := geom.Solve22Of33(k, c1).Mul(-1.0)

		cA = cA.Sub(p.Mul(mA))
		aA -= iA * geom.Cross(rA, p)

		cB = cB.Add(p.Mul(mB))
		aB += iB * geom.Cross(rB, p)
	} else {
		c1 := cB.Add(rB).Sub(cA).Sub(rA)
		c2 := aB - aA - j.referenceAngle

		positionError = c1.Len()
		angularError = math.Abs(c2)

		var impulse mgl64.Vec3
		if ez[2] > 0.0 {
			impulse = geom.Solve33(k, mgl64.Vec3{c1[0], c1[1], c2}).Mul(-1.0)
		} else {
			impulse2 := geom.Solve22Of33(k, c1).Mul(-1.0)
			impulse = mgl64.Vec3{impulse2[0], impulse2[1], 0.0}
		}

		p := geom.Vec2{impulse[0], impulse[1]}

		cA = cA.Sub(p.Mul(mA))
		aA -= iA * (geom.Cross(rA, p) + impulse[2])

		cB = cB.Add(p.Mul(mB))
		aB += iB * (geom.Cross(rB, p) + impulse[2])
	}

	data.positions[j.indexA].c = cA
	data.positions[j.indexA].a = aA
	data.positions[j.indexB].c = cB
	data.positions[j.indexB].a = aB

	return positionError <= data.conf.LinearSlop && angularError <= data.conf.AngularSlop
}

func (j *WeldJoint) dump(w io.Writer) {
	fmt.Fprintf(w, "joint weld bodyA=%d bodyB=%d collide=%t anchorA=(%.17g,%.17g) anchorB=(%.17g,%.17g) refAngle=%.17g freq=%.17g damping=%.17g\n",
		j.bodyA.islandIndex, j.bodyB.islandIndex, j.collideConnected,
		j.localAnchorA[0], j.localAnchorA[1], j.localAnchorB[0], j.localAnchorB[1],
		j.referenceAngle, j.frequencyHz, j.dampingRatio)
}
