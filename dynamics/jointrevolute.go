package dynamics

import (
	"fmt"
	"io"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/veloxphys/velox2d/geom"
)

// RevoluteJointDef describes a pin joint. The anchor point is where the
// bodies are joined; local anchors let a saved configuration violate the
// constraint slightly. The reference angle records the relative body angle
// used as the zero for joint limits.
//
// Anchors are measured from the body origin rather than the center of mass
// because the center of mass moves when fixtures are added or removed.
type RevoluteJointDef struct {
	JointDef

	LocalAnchorA geom.Vec2
	LocalAnchorB geom.Vec2

	// ReferenceAngle is bodyB angle minus bodyA angle in the reference
	// state, in radians.
	ReferenceAngle float64

	EnableLimit bool
	LowerAngle  float64
	UpperAngle  float64

	EnableMotor    bool
	MotorSpeed     float64
	MaxMotorTorque float64
}

// DefaultRevoluteJointDef returns a def with limits and motor disabled.
func DefaultRevoluteJointDef() RevoluteJointDef {
	return RevoluteJointDef{}
}

// Initialize sets the bodies, local anchors and reference angle from a
// world anchor point.
func (def *RevoluteJointDef) Initialize(bodyA, bodyB *Body, anchor geom.Vec2) {
	def.BodyA = bodyA.id
	def.BodyB = bodyB.id
	def.LocalAnchorA = bodyA.LocalPoint(anchor)
	def.LocalAnchorB = bodyB.LocalPoint(anchor)
	def.ReferenceAngle = bodyB.Angle() - bodyA.Angle()
}

func (def *RevoluteJointDef) create(bodyA, bodyB *Body) (Joint, error) {
	if def.LowerAngle > def.UpperAngle {
		return nil, fmt.Errorf("%w: revolute joint lower limit above upper limit", ErrInvalid)
	}
	return &RevoluteJoint{
		jointBase:      makeJointBase(RevoluteJointKind, &def.JointDef, bodyA, bodyB),
		localAnchorA:   def.LocalAnchorA,
		localAnchorB:   def.LocalAnchorB,
		referenceAngle: def.ReferenceAngle,
		lowerAngle:     def.LowerAngle,
		upperAngle:     def.UpperAngle,
		maxMotorTorque: def.MaxMotorTorque,
		motorSpeed:     def.MotorSpeed,
		enableLimit:    def.EnableLimit,
		enableMotor:    def.EnableMotor,
		limitState:     inactiveLimit,
	}, nil
}

// RevoluteJoint constrains two bodies to share a common point while they
// rotate freely about it. The relative rotation is the joint angle; a limit
// bounds it and a motor drives it with bounded torque.
//
// Point-to-point constraint:
// C = p2 - p1
// Cdot = v2 + cross(w2, r2) - v1 - cross(w1, r1)
// J = [-I -r1_skew I r2_skew]
//
// Motor constraint:
// Cdot = w2 - w1
// J = [0 0 -1 0 0 1]
// K = invI1 + invI2
type RevoluteJoint struct {
	jointBase

	localAnchorA geom.Vec2
	localAnchorB geom.Vec2
	impulse      mgl64.Vec3
	motorImpulse float64

	enableMotor    bool
	maxMotorTorque float64
	motorSpeed     float64

	enableLimit    bool
	referenceAngle float64
	lowerAngle     float64
	upperAngle     float64

	// solver temp
	indexA       int
	indexB       int
	rA, rB       geom.Vec2
	localCenterA geom.Vec2
	localCenterB geom.Vec2
	invMassA     float64
	invMassB     float64
	invIA, invIB float64
	mass         mgl64.Mat3 // effective mass for the point-to-point constraint
	motorMass    float64    // effective mass for motor/limit angular constraint
	limitState   limitState
}

func (j *RevoluteJoint) LocalAnchorA() geom.Vec2 { return j.localAnchorA }
func (j *RevoluteJoint) LocalAnchorB() geom.Vec2 { return j.localAnchorB }

func (j *RevoluteJoint) ReferenceAngle() float64 { return j.referenceAngle }

// JointAngle returns the current relative angle in radians.
func (j *RevoluteJoint) JointAngle() float64 {
	return j.bodyB.sweep.A - j.bodyA.sweep.A - j.referenceAngle
}

// JointSpeed returns the relative angular velocity in radians per second.
func (j *RevoluteJoint) JointSpeed() float64 {
	return j.bodyB.angularVelocity - j.bodyA.angularVelocity
}

func (j *RevoluteJoint) IsMotorEnabled() bool { return j.enableMotor }

func (j *RevoluteJoint) EnableMotor(flag bool) {
	if flag != j.enableMotor {
		j.bodyA.SetAwake(true)
		j.bodyB.SetAwake(true)
		j.enableMotor = flag
	}
}

// MotorTorque returns the current motor torque given the inverse time step.
func (j *RevoluteJoint) MotorTorque(invDt float64) float64 {
	return invDt * j.motorImpulse
}

func (j *RevoluteJoint) MotorSpeed() float64 { return j.motorSpeed }

func (j *RevoluteJoint) SetMotorSpeed(speed float64) {
	if speed != j.motorSpeed {
		j.bodyA.SetAwake(true)
		j.bodyB.SetAwake(true)
		j.motorSpeed = speed
	}
}

func (j *RevoluteJoint) MaxMotorTorque() float64 { return j.maxMotorTorque }

func (j *RevoluteJoint) SetMaxMotorTorque(torque float64) {
	if torque != j.maxMotorTorque {
		j.bodyA.SetAwake(true)
		j.bodyB.SetAwake(true)
		j.maxMotorTorque = torque
	}
}

func (j *RevoluteJoint) IsLimitEnabled() bool { return j.enableLimit }

func (j *RevoluteJoint) EnableLimit(flag bool) {
	if flag != j.enableLimit {
		j.bodyA.SetAwake(true)
		j.bodyB.SetAwake(true)
		j.enableLimit = flag
		j.impulse[2] = 0.0
	}
}

func (j *RevoluteJoint) LowerLimit() float64 { return j.lowerAngle }
func (j *RevoluteJoint) UpperLimit() float64 { return j.upperAngle }

func (j *RevoluteJoint) SetLimits(lower, upper float64) error {
	if lower > upper {
		return fmt.Errorf("%w: revolute joint lower limit above upper limit", ErrInvalid)
	}
	if lower != j.lowerAngle || upper != j.upperAngle {
		j.bodyA.SetAwake(true)
		j.bodyB.SetAwake(true)
		j.impulse[2] = 0.0
		j.lowerAngle = lower
		j.upperAngle = upper
	}
	return nil
}

func (j *RevoluteJoint) AnchorA() geom.Vec2 { return j.bodyA.WorldPoint(j.localAnchorA) }
func (j *RevoluteJoint) AnchorB() geom.Vec2 { return j.bodyB.WorldPoint(j.localAnchorB) }

func (j *RevoluteJoint) ReactionForce(invDt float64) geom.Vec2 {
	return geom.Vec2{j.impulse[0], j.impulse[1]}.Mul(invDt)
}

func (j *RevoluteJoint) ReactionTorque(invDt float64) float64 {
	return invDt * j.impulse[2]
}

func (j *RevoluteJoint) initVelocityConstraints(data *solverData) {
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

	fixedRotation := iA+iB == 0.0

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
	j.mass = geom.Mat3FromCols(ex, ey, ez)

	j.motorMass = iA + iB
	if j.motorMass > 0.0 {
		j.motorMass = 1.0 / j.motorMass
	}

	if !j.enableMotor || fixedRotation {
		j.motorImpulse = 0.0
	}

	if j.enableLimit && !fixedRotation {
		jointAngle := aB - aA - j.referenceAngle
		switch {
		case math.Abs(j.upperAngle-j.lowerAngle) < 2.0*data.conf.AngularSlop:
			j.limitState = equalLimits
		case jointAngle <= j.lowerAngle:
			if j.limitState != atLowerLimit {
				j.impulse[2] = 0.0
			}
			j.limitState = atLowerLimit
		case jointAngle >= j.upperAngle:
			if j.limitState != atUpperLimit {
				j.impulse[2] = 0.0
			}
			j.limitState = atUpperLimit
		default:
			j.limitState = inactiveLimit
			j.impulse[2] = 0.0
		}
	} else {
		j.limitState = inactiveLimit
	}

	if data.step.warmStarting {
		// Scale impulses to support a variable time step.
		j.impulse = j.impulse.Mul(data.step.dtRatio)
		j.motorImpulse *= data.step.dtRatio

		p := geom.Vec2{j.impulse[0], j.impulse[1]}

		vA = vA.Sub(p.Mul(mA))
		wA -= iA * (geom.Cross(j.rA, p) + j.motorImpulse + j.impulse[2])

		vB = vB.Add(p.Mul(mB))
		wB += iB * (geom.Cross(j.rB, p) + j.motorImpulse + j.impulse[2])
	} else {
		j.impulse = mgl64.Vec3{}
		j.motorImpulse = 0.0
	}

	data.velocities[j.indexA].v = vA
	data.velocities[j.indexA].w = wA
	data.velocities[j.indexB].v = vB
	data.velocities[j.indexB].w = wB
}

func (j *RevoluteJoint) solveVelocityConstraints(data *solverData) {
	vA := data.velocities[j.indexA].v
	wA := data.velocities[j.indexA].w
	vB := data.velocities[j.indexB].v
	wB := data.velocities[j.indexB].w

	mA, mB := j.invMassA, j.invMassB
	iA, iB := j.invIA, j.invIB

	fixedRotation := iA+iB == 0.0

	// Motor constraint.
	if j.enableMotor && j.limitState != equalLimits && !fixedRotation {
		cdot := wB - wA - j.motorSpeed
		impulse := -j.motorMass * cdot
		oldImpulse := j.motorImpulse
		maxImpulse := data.step.dt * j.maxMotorTorque
		j.motorImpulse = geom.Clamp(j.motorImpulse+impulse, -maxImpulse, maxImpulse)
		impulse = j.motorImpulse - oldImpulse

		wA -= iA * impulse
		wB += iB * impulse
	}

	// Limit constraint.
	if j.enableLimit && j.limitState != inactiveLimit && !fixedRotation {
		cdot1 := vB.Add(geom.CrossSV(wB, j.rB)).Sub(vA).Sub(geom.CrossSV(wA, j.rA))
		cdot2 := wB - wA
		cdot := mgl64.Vec3{cdot1[0], cdot1[1], cdot2}

		impulse := geom.Solve33(j.mass, cdot).Mul(-1.0)

		switch j.limitState {
		case equalLimits:
			j.impulse = j.impulse.Add(impulse)
		case atLowerLimit:
			newImpulse := j.impulse[2] + impulse[2]
			if newImpulse < 0.0 {
				ez := geom.Vec2{j.mass.At(0, 2), j.mass.At(1, 2)}
				rhs := cdot1.Mul(-1.0).Add(ez.Mul(j.impulse[2]))
				reduced := geom.Solve22Of33(j.mass, rhs)
				impulse[0] = reduced[0]
				impulse[1] = reduced[1]
				impulse[2] = -j.impulse[2]
				j.impulse[0] += reduced[0]
				j.impulse[1] += reduced[1]
				j.impulse[2] = 0.0
			} else {
				j.impulse = j.impulse.Add(impulse)
			}
		case atUpperLimit:
			newImpulse := j.impulse[2] + impulse[2]
			if newImpulse > 0.0 {
				ez := geom.Vec2{j.mass.At(0, 2), j.mass.At(1, 2)}
				rhs := cdot1.Mul(-1.0).Add(ez.Mul(j.impulse[2]))
				reduced := geom.Solve22Of33(j.mass, rhs)
				impulse[0] = reduced[0]
				impulse[1] = reduced[1]
				impulse[2] = -j.impulse[2]
				j.impulse[0] += reduced[0]
				j.impulse[1] += reduced[1]
				j.impulse[2] = 0.0
			} else {
				j.impulse = j.impulse.Add(impulse)
			}
		}

		p := geom.Vec2{impulse[0], impulse[1]}

		vA = vA.Sub(p.Mul(mA))
		wA -= iA * (geom.Cross(j.rA, p) + impulse[2])

		vB = vB.Add(p.Mul(mB))
		wB += iB * (geom.Cross(j.rB, p) + impulse[2])
	} else {
		// Point-to-point constraint.
		cdot := vB.Add(geom.CrossSV(wB, j.rB)).Sub(vA).Sub(geom.CrossSV(wA, j.rA))
		impulse := geom.Solve22Of33(j.mass, cdot.Mul(-1.0))

		j.impulse[0] += impulse[0]
		j.impulse[1] += impulse[1]

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

func (j *RevoluteJoint) solvePositionConstraints(data *solverData) bool {
	cA := data.positions[j.indexA].c
	aA := data.positions[j.indexA].a
	cB := data.positions[j.indexB].c
	aB := data.positions[j.indexB].a

	angularError := 0.0
	positionError := 0.0

	fixedRotation := j.invIA+j.invIB == 0.0

	// Angular limit constraint.
	if j.enableLimit && j.limitState != inactiveLimit && !fixedRotation {
		angle := aB - aA - j.referenceAngle
		limitImpulse := 0.0
		maxCorr := data.conf.MaxAngularCorrection

		switch j.limitState {
		case equalLimits:
			c := geom.Clamp(angle-j.lowerAngle, -maxCorr, maxCorr)
			limitImpulse = -j.motorMass * c
			angularError = math.Abs(c)
		case atLowerLimit:
			c := angle - j.lowerAngle
			angularError = -c
			c = geom.Clamp(c+data.conf.AngularSlop, -maxCorr, 0.0)
			limitImpulse = -j.motorMass * c
		case atUpperLimit:
			c := angle - j.upperAngle
			angularError = c
			c = geom.Clamp(c-data.conf.AngularSlop, 0.0, maxCorr)
			limitImpulse = -j.motorMass * c
		}

		aA -= j.invIA * limitImpulse
		aB += j.invIB * limitImpulse
	}

	// Point-to-point constraint.
	{
		qA := geom.RotFromAngle(aA)
		qB := geom.RotFromAngle(aB)
		rA := qA.Apply(j.localAnchorA.Sub(j.localCenterA))
		rB := qB.Apply(j.localAnchorB.Sub(j.localCenterB))

		c := cB.Add(rB).Sub(cA).Sub(rA)
		positionError = c.Len()

		mA, mB := j.invMassA, j.invMassB
		iA, iB := j.invIA, j.invIB

		k := geom.Mat2FromCols(
			geom.Vec2{mA + mB + iA*rA[1]*rA[1] + iB*rB[1]*rB[1], -iA*rA[0]*rA[1] - iB*rB[0]*rB[1]},
			geom.Vec2{-iA*rA[0]*rA[1] - iB*rB[0]*rB[1], mA + mB + iA*rA[0]*rA[0] + iB*rB[0]*rB[0]},
		)

		impulse := geom.Solve22(k, c).Mul(-1.0)

		cA = cA.Sub(impulse.Mul(mA))
		aA -= iA * geom.Cross(rA, impulse)

		cB = cB.Add(impulse.Mul(mB))
		aB += iB * geom.Cross(rB, impulse)
	}

	data.positions[j.indexA].c = cA
	data.positions[j.indexA].a = aA
	data.positions[j.indexB].c = cB
	data.positions[j.indexB].a = aB

	return positionError <= data.conf.LinearSlop && angularError <= data.conf.AngularSlop
}

func (j *RevoluteJoint) dump(w io.Writer) {
	fmt.Fprintf(w, "joint revolute bodyA=%d bodyB=%d collide=%t anchorA=(%.17g,%.17g) anchorB=(%.17g,%.17g) refAngle=%.17g limit=%t lower=%.17g upper=%.17g motor=%t speed=%.17g maxTorque=%.17g\n",
		j.bodyA.islandIndex, j.bodyB.islandIndex, j.collideConnected,
		j.localAnchorA[0], j.localAnchorA[1], j.localAnchorB[0], j.localAnchorB[1],
		j.referenceAngle, j.enableLimit, j.lowerAngle, j.upperAngle,
		j.enableMotor, j.motorSpeed, j.maxMotorTorque)
}
