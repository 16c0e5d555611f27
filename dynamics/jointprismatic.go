package dynamics

import (
	"fmt"
	"io"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/veloxphys/velox2d/geom"
)

// PrismaticJointDef describes a slider joint along an axis fixed in bodyA.
// Local anchors and a local axis let the initial configuration violate the
// constraint slightly. Joint translation is zero when the local anchors
// coincide in world space.
type PrismaticJointDef struct {
	JointDef

	LocalAnchorA geom.Vec2
	LocalAnchorB geom.Vec2

	// LocalAxisA is the translation unit axis in bodyA coordinates.
	LocalAxisA geom.Vec2

	// ReferenceAngle is the constrained angle between the bodies:
	// bodyB angle minus bodyA angle.
	ReferenceAngle float64

	EnableLimit      bool
	LowerTranslation float64
	UpperTranslation float64

	EnableMotor   bool
	MaxMotorForce float64
	MotorSpeed    float64
}

// DefaultPrismaticJointDef returns a def sliding along the x axis of bodyA.
func DefaultPrismaticJointDef() PrismaticJointDef {
	return PrismaticJointDef{LocalAxisA: geom.Vec2{1.0, 0.0}}
}

// Initialize sets the bodies, anchors and axis from world coordinates.
func (def *PrismaticJointDef) Initialize(bodyA, bodyB *Body, anchor, axis geom.Vec2) {
	def.BodyA = bodyA.id
	def.BodyB = bodyB.id
	def.LocalAnchorA = bodyA.LocalPoint(anchor)
	def.LocalAnchorB = bodyB.LocalPoint(anchor)
	def.LocalAxisA = bodyA.LocalVector(axis)
	def.ReferenceAngle = bodyB.Angle() - bodyA.Angle()
}

func (def *PrismaticJointDef) create(bodyA, bodyB *Body) (Joint, error) {
	if def.LowerTranslation > def.UpperTranslation {
		return nil, fmt.Errorf("%w: prismatic joint lower limit above upper limit", ErrInvalid)
	}
	if def.LocalAxisA.Len() == 0.0 {
		return nil, fmt.Errorf("%w: prismatic joint axis must be nonzero", ErrInvalid)
	}
	xAxis := geom.Normalized(def.LocalAxisA)
	return &PrismaticJoint{
		jointBase:        makeJointBase(PrismaticJointKind, &def.JointDef, bodyA, bodyB),
		localAnchorA:     def.LocalAnchorA,
		localAnchorB:     def.LocalAnchorB,
		localXAxisA:      xAxis,
		localYAxisA:      geom.CrossSV(1.0, xAxis),
		referenceAngle:   def.ReferenceAngle,
		lowerTranslation: def.LowerTranslation,
		upperTranslation: def.UpperTranslation,
		maxMotorForce:    def.MaxMotorForce,
		motorSpeed:       def.MotorSpeed,
		enableLimit:      def.EnableLimit,
		enableMotor:      def.EnableMotor,
		limitState:       inactiveLimit,
	}, nil
}

// PrismaticJoint provides one degree of freedom: translation along an axis
// fixed in bodyA. Relative rotation is prevented. A limit restricts the
// range of motion and a motor drives it or models joint friction.
//
// Linear constraint (point-to-line):
// d = p2 - p1 = x2 + r2 - x1 - r1
// C = dot(perp, d)
// Cdot = -dot(perp, v1) - dot(cross(d + r1, perp), w1) + dot(perp, v2) + dot(cross(r2, perp), w2)
//
// Angular constraint:
// C = a2 - a1 + a_initial
// Cdot = w2 - w1
//
// The block solver folds the limit row in with the two constraint rows so
// the limit stays stiff even with poor mass distribution.
type PrismaticJoint struct {
	jointBase

	localAnchorA     geom.Vec2
	localAnchorB     geom.Vec2
	localXAxisA      geom.Vec2
	localYAxisA      geom.Vec2
	referenceAngle   float64
	impulse          mgl64.Vec3
	motorImpulse     float64
	lowerTranslation float64
	upperTranslation float64
	maxMotorForce    float64
	motorSpeed       float64
	enableLimit      bool
	enableMotor      bool
	limitState       limitState

	// solver temp
	indexA       int
	indexB       int
	localCenterA geom.Vec2
	localCenterB geom.Vec2
	invMassA     float64
	invMassB     float64
	invIA, invIB float64
	axis, perp   geom.Vec2
	s1, s2       float64
	a1, a2       float64
	k            mgl64.Mat3
	motorMass    float64
}

func (j *PrismaticJoint) LocalAnchorA() geom.Vec2 { return j.localAnchorA }
func (j *PrismaticJoint) LocalAnchorB() geom.Vec2 { return j.localAnchorB }
func (j *PrismaticJoint) LocalAxisA() geom.Vec2   { return j.localXAxisA }

func (j *PrismaticJoint) ReferenceAngle() float64 { return j.referenceAngle }

// JointTranslation returns the current translation in meters.
func (j *PrismaticJoint) JointTranslation() float64 {
	pA := j.bodyA.WorldPoint(j.localAnchorA)
	pB := j.bodyB.WorldPoint(j.localAnchorB)
	axis := j.bodyA.WorldVector(j.localXAxisA)
	return pB.Sub(pA).Dot(axis)
}

// JointSpeed returns the translation speed in meters per second.
func (j *PrismaticJoint) JointSpeed() float64 {
	bA := j.bodyA
	bB := j.bodyB

	rA := bA.xf.Q.Apply(j.localAnchorA.Sub(bA.sweep.LocalCenter))
	rB := bB.xf.Q.Apply(j.localAnchorB.Sub(bB.sweep.LocalCenter))
	p1 := bA.sweep.C.Add(rA)
	p2 := bB.sweep.C.Add(rB)
	d := p2.Sub(p1)
	axis := bA.xf.Q.Apply(j.localXAxisA)

	vA := bA.linearVelocity
	vB := bB.linearVelocity
	wA := bA.angularVelocity
	wB := bB.angularVelocity

	return d.Dot(geom.CrossSV(wA, axis)) +
		axis.Dot(vB.Add(geom.CrossSV(wB, rB)).Sub(vA).Sub(geom.CrossSV(wA, rA)))
}

func (j *PrismaticJoint) IsLimitEnabled() bool { return j.enableLimit }

func (j *PrismaticJoint) EnableLimit(flag bool) {
	if flag != j.enableLimit {
		j.bodyA.SetAwake(true)
		j.bodyB.SetAwake(true)
		j.enableLimit = flag
		j.impulse[2] = 0.0
	}
}

func (j *PrismaticJoint) LowerLimit() float64 { return j.lowerTranslation }
func (j *PrismaticJoint) UpperLimit() float64 { return j.upperTranslation }

func (j *PrismaticJoint) SetLimits(lower, upper float64) error {
	if lower > upper {
		return fmt.Errorf("%w: prismatic joint lower limit above upper limit", ErrInvalid)
	}
	if lower != j.lowerTranslation || upper != j.upperTranslation {
		j.bodyA.SetAwake(true)
		j.bodyB.SetAwake(true)
		j.lowerTranslation = lower
		j.upperTranslation = upper
		j.impulse[2] = 0.0
	}
	return nil
}

func (j *PrismaticJoint) IsMotorEnabled() bool { return j.enableMotor }

func (j *PrismaticJoint) EnableMotor(flag bool) {
	if flag != j.enableMotor {
		j.bodyA.SetAwake(true)
		j.bodyB.SetAwake(true)
		j.enableMotor = flag
	}
}

func (j *PrismaticJoint) MotorSpeed() float64 { return j.motorSpeed }

func (j *PrismaticJoint) SetMotorSpeed(speed float64) {
	if speed != j.motorSpeed {
		j.bodyA.SetAwake(true)
		j.bodyB.SetAwake(true)
		j.motorSpeed = speed
	}
}

func (j *PrismaticJoint) MaxMotorForce() float64 { return j.maxMotorForce }

func (j *PrismaticJoint) SetMaxMotorForce(force float64) {
	if force != j.maxMotorForce {
		j.bodyA.SetAwake(true)
		j.bodyB.SetAwake(true)
		j.maxMotorForce = force
	}
}

// MotorForce returns the current motor force given the inverse time step.
func (j *PrismaticJoint) MotorForce(invDt float64) float64 {
	return invDt * j.motorImpulse
}

func (j *PrismaticJoint) AnchorA() geom.Vec2 { return j.bodyA.WorldPoint(j.localAnchorA) }
func (j *PrismaticJoint) AnchorB() geom.Vec2 { return j.bodyB.WorldPoint(j.localAnchorB) }

func (j *PrismaticJoint) ReactionForce(invDt float64) geom.Vec2 {
	return j.perp.Mul(j.impulse[0]).Add(j.axis.Mul(j.motorImpulse + j.impulse[2])).Mul(invDt)
}

func (j *PrismaticJoint) ReactionTorque(invDt float64) float64 {
	return invDt * j.impulse[1]
}

func (j *PrismaticJoint) initVelocityConstraints(data *solverData) {
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

	rA := qA.Apply(j.localAnchorA.Sub(j.localCenterA))
	rB := qB.Apply(j.localAnchorB.Sub(j.localCenterB))
	d := cB.Sub(cA).Add(rB).Sub(rA)

	mA, mB := j.invMassA, j.invMassB
	iA, iB := j.invIA, j.invIB

	// Motor Jacobian and effective mass.
	j.axis = qA.Apply(j.localXAxisA)
	j.a1 = geom.Cross(d.Add(rA), j.axis)
	j.a2 = geom.Cross(rB, j.axis)

	j.motorMass = mA + mB + iA*j.a1*j.a1 + iB*j.a2*j.a2
	if j.motorMass > 0.0 {
		j.motorMass = 1.0 / j.motorMass
	}

	// Prismatic constraint.
	j.perp = qA.Apply(j.localYAxisA)
	j.s1 = geom.Cross(d.Add(rA), j.perp)
	j.s2 = geom.Cross(rB, j.perp)

	k11 := mA + mB + iA*j.s1*j.s1 + iB*j.s2*j.s2
	k12 := iA*j.s1 + iB*j.s2
	k13 := iA*j.s1*j.a1 + iB*j.s2*j.a2
	k22 := iA + iB
	if k22 == 0.0 {
		// Both bodies have fixed rotation.
		k22 = 1.0
	}
	k23 := iA*j.a1 + iB*j.a2
	k33 := mA + mB + iA*j.a1*j.a1 + iB*j.a2*j.a2

	j.k = geom.Mat3FromCols(
		mgl64.Vec3{k11, k12, k13},
		mgl64.Vec3{k12, k22, k23},
		mgl64.Vec3{k13, k23, k33},
	)

	if j.enableLimit {
		translation := j.axis.Dot(d)
		switch {
		case math.Abs(j.upperTranslation-j.lowerTranslation) < 2.0*data.conf.LinearSlop:
			j.limitState = equalLimits
		case translation <= j.lowerTranslation:
			if j.limitState != atLowerLimit {
				j.limitState = atLowerLimit
				j.impulse[2] = 0.0
			}
		case translation >= j.upperTranslation:
			if j.limitState != atUpperLimit {
				j.limitState = atUpperLimit
				j.impulse[2] = 0.0
			}
		default:
			j.limitState = inactiveLimit
			j.impulse[2] = 0.0
		}
	} else {
		j.limitState = inactiveLimit
		j.impulse[2] = 0.0
	}

	if !j.enableMotor {
		j.motorImpulse = 0.0
	}

	if data.step.warmStarting {
		// Account for variable time step.
		j.impulse = j.impulse.Mul(data.step.dtRatio)
		j.motorImpulse *= data.step.dtRatio

		p := j.perp.Mul(j.impulse[0]).Add(j.axis.Mul(j.motorImpulse + j.impulse[2]))
		lA := j.impulse[0]*j.s1 + j.impulse[1] + (j.motorImpulse+j.impulse[2])*j.a1
		lB := j.impulse[0]*j.s2 + j.impulse[1] + (j.motorImpulse+j.impulse[2])*j.a2

		vA = vA.Sub(p.Mul(mA))
		wA -= iA * lA

		vB = vB.Add(p.Mul(mB))
		wB += iB * lB
	} else {
		j.impulse = mgl64.Vec3{}
		j.motorImpulse = 0.0
	}

	data.velocities[j.indexA].v = vA
	data.velocities[j.indexA].w = wA
	data.velocities[j.indexB].v = vB
	data.velocities[j.indexB].w = wB
}

func (j *PrismaticJoint) solveVelocityConstraints(data *solverData) {
	vA := data.velocities[j.indexA].v
	wA := data.velocities[j.indexA].w
	vB := data.velocities[j.indexB].v
	wB := data.velocities[j.indexB].w

	mA, mB := j.invMassA, j.invMassB
	iA, iB := j.invIA, j.invIB

	// Linear motor constraint.
	if j.enableMotor && j.limitState != equalLimits {
		cdot := j.axis.Dot(vB.Sub(vA)) + j.a2*wB - j.a1*wA
		impulse := j.motorMass * (j.motorSpeed - cdot)
		oldImpulse := j.motorImpulse
		maxImpulse := data.step.dt * j.maxMotorForce
		j.motorImpulse = geom.Clamp(j.motorImpulse+impulse, -maxImpulse, maxImpulse)
		impulse = j.motorImpulse - oldImpulse

		p := j.axis.Mul(impulse)
		lA := impulse * j.a1
		lB := impulse * j.a2

		vA = vA.Sub(p.Mul(mA))
		wA -= iA * lA

		vB = vB.Add(p.Mul(mB))
		wB += iB * lB
	}

	cdot1 := geom.Vec2{
		j.perp.Dot(vB.Sub(vA)) + j.s2*wB - j.s1*wA,
		wB - wA,
	}

	if j.enableLimit && j.limitState != inactiveLimit {
		// Solve prismatic and limit constraint in block form.
		cdot2 := j.axis.Dot(vB.Sub(vA)) + j.a2*wB - j.a1*wA
		cdot := mgl64.Vec3{cdot1[0], cdot1[1], cdot2}

		f1 := j.impulse
		df := geom.Solve33(j.k, cdot.Mul(-1.0))
		j.impulse = j.impulse.Add(df)

		if j.limitState == atLowerLimit {
			j.impulse[2] = math.Max(j.impulse[2], 0.0)
		} else if j.limitState == atUpperLimit {
			j.impulse[2] = math.Min(j.impulse[2], 0.0)
		}

		// f2(1:2) = invK(1:2,1:2) * (-Cdot(1:2) - K(1:2,3) * (f2(3) - f1(3))) + f1(1:2)
		ez := geom.Vec2{j.k.At(0, 2), j.k.At(1, 2)}
		b := cdot1.Mul(-1.0).Sub(ez.Mul(j.impulse[2] - f1[2]))
		f2r := geom.Solve22Of33(j.k, b).Add(geom.Vec2{f1[0], f1[1]})
		j.impulse[0] = f2r[0]
		j.impulse[1] = f2r[1]

		df = j.impulse.Sub(f1)

		p := j.perp.Mul(df[0]).Add(j.axis.Mul(df[2]))
		lA := df[0]*j.s1 + df[1] + df[2]*j.a1
		lB := df[0]*j.s2 + df[1] + df[2]*j.a2

		vA = vA.Sub(p.Mul(mA))
		wA -= iA * lA

		vB = vB.Add(p.Mul(mB))
		wB += iB * lB
	} else {
		// Limit inactive; just solve the prismatic constraint in block form.
		df := geom.Solve22Of33(j.k, cdot1.Mul(-1.0))
		j.impulse[0] += df[0]
		j.impulse[1] += df[1]

		p := j.perp.Mul(df[0])
		lA := df[0]*j.s1 + df[1]
		lB := df[0]*j.s2 + df[1]

		vA = vA.Sub(p.Mul(mA))
		wA -= iA * lA

		vB = vB.Add(p.Mul(mB))
		wB += iB * lB
	}

	data.velocities[j.indexA].v = vA
	data.velocities[j.indexA].w = wA
	data.velocities[j.indexB].v = vB
	data.velocities[j.indexB].w = wB
}

// The position solver only copes with integration error; its pseudo
// impulses have no physical meaning. The limit state comes from fresh
// geometry rather than the velocity solver, since the joint can push past
// the limit while the velocity solver thinks it is inactive.
func (j *PrismaticJoint) solvePositionConstraints(data *solverData) bool {
	cA := data.positions[j.indexA].c
	aA := data.positions[j.indexA].a
	cB := data.positions[j.indexB].c
	aB := data.positions[j.indexB].a

	qA := geom.RotFromAngle(aA)
	qB := geom.RotFromAngle(aB)

	mA, mB := j.invMassA, j.invMassB
	iA, iB := j.invIA, j.invIB

	// Fresh Jacobians.
	rA := qA.Apply(j.localAnchorA.Sub(j.localCenterA))
	rB := qB.Apply(j.localAnchorB.Sub(j.localCenterB))
	d := cB.Add(rB).Sub(cA).Sub(rA)

	axis := qA.Apply(j.localXAxisA)
	a1 := geom.Cross(d.Add(rA), axis)
	a2 := geom.Cross(rB, axis)
	perp := qA.Apply(j.localYAxisA)

	s1 := geom.Cross(d.Add(rA), perp)
	s2 := geom.Cross(rB, perp)

	c1 := geom.Vec2{perp.Dot(d), aB - aA - j.referenceAngle}

	linearError := math.Abs(c1[0])
	angularError := math.Abs(c1[1])

	maxCorr := data.conf.MaxLinearCorrection

	active := false
	c2 := 0.0
	if j.enableLimit {
		translation := axis.Dot(d)
		switch {
		case math.Abs(j.upperTranslation-j.lowerTranslation) < 2.0*data.conf.LinearSlop:
			c2 = geom.Clamp(translation, -maxCorr, maxCorr)
			linearError = math.Max(linearError, math.Abs(translation))
			active = true
		case translation <= j.lowerTranslation:
			c2 = geom.Clamp(translation-j.lowerTranslation+data.conf.LinearSlop, -maxCorr, 0.0)
			linearError = math.Max(linearError, j.lowerTranslation-translation)
			active = true
		case translation >= j.upperTranslation:
			c2 = geom.Clamp(translation-j.upperTranslation-data.conf.LinearSlop, 0.0, maxCorr)
			linearError = math.Max(linearError, translation-j.upperTranslation)
			active = true
		}
	}

	var impulse mgl64.Vec3
	if active {
		k11 := mA + mB + iA*s1*s1 + iB*s2*s2
		k12 := iA*s1 + iB*s2
		k13 := iA*s1*a1 + iB*s2*a2
		k22 := iA + iB
		if k22 == 0.0 {
			k22 = 1.0
		}
		k23 := iA*a1 + iB*a2
		k33 := mA + mB + iA*a1*a1 + iB*a2*a2

		k := geom.Mat3FromCols(
			mgl64.Vec3{k11, k12, k13},
			mgl64.Vec3{k12, k22, k23},
			mgl64.Vec3{k13, k23, k33},
		)

		impulse = geom.Solve33(k, mgl64.Vec3{c1[0], c1[1], c2}.Mul(-1.0))
	} else {
		k11 := mA + mB + iA*s1*s1 + iB*s2*s2
		k12 := iA*s1 + iB*s2
		k22 := iA + iB
		if k22 == 0.0 {
			k22 = 1.0
		}

		k := geom.Mat2FromCols(geom.Vec2{k11, k12}, geom.Vec2{k12, k22})
		impulse1 := geom.Solve22(k, c1.Mul(-1.0))
		impulse[0] = impulse1[0]
		impulse[1] = impulse1[1]
	}

	p := perp.Mul(impulse[0]).Add(axis.Mul(impulse[2]))
	lA := impulse[0]*s1 + impulse[1] + impulse[2]*a1
	lB := impulse[0]*s2 + impulse[1] + impulse[2]*a2

	cA = cA.Sub(p.Mul(mA))
	aA -= iA * lA
	cB = cB.Add(p.Mul(mB))
	aB += iB * lB

	data.positions[j.indexA].c = cA
	data.positions[j.indexA].a = aA
	data.positions[j.indexB].c = cB
	data.positions[j.indexB].a = aB

	return linearError <= data.conf.LinearSlop && angularError <= data.conf.AngularSlop
}

func (j *PrismaticJoint) dump(w io.Writer) {
	fmt.Fprintf(w, "joint prismatic bodyA=%d bodyB=%d collide=%t anchorA=(%.17g,%.17g) anchorB=(%.17g,%.17g) axis=(%.17g,%.17g) refAngle=%.17g limit=%t lower=%.17g upper=%.17g motor=%t speed=%.17g maxForce=%.17g\n",
		j.bodyA.islandIndex, j.bodyB.islandIndex, j.collideConnected,
		j.localAnchorA[0], j.localAnchorA[1], j.localAnchorB[0], j.localAnchorB[1],
		j.localXAxisA[0], j.localXAxisA[1], j.referenceAngle,
		j.enableLimit, j.lowerTranslation, j.upperTranslation,
		j.enableMotor, j.motorSpeed, j.maxMotorForce)
}
