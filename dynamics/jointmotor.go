package dynamics

import (
	"fmt"
	"io"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/veloxphys/velox2d/geom"
)

// MotorJointDef describes a joint that drives the relative transform of
// bodyB toward a target offset from bodyA.
type MotorJointDef struct {
	JointDef

	// LinearOffset is the position of bodyB minus the position of bodyA,
	// in bodyA's frame.
	LinearOffset geom.Vec2

	// AngularOffset is the bodyB angle minus the bodyA angle in radians.
	AngularOffset float64

	// MaxForce is the maximum motor force in N.
	MaxForce float64

	// MaxTorque is the maximum motor torque in N-m.
	MaxTorque float64

	// CorrectionFactor is the position correction factor in [0,1].
	CorrectionFactor float64
}

// DefaultMotorJointDef returns a def with unit force and torque limits.
func DefaultMotorJointDef() MotorJointDef {
	return MotorJointDef{
		MaxForce:         1.0,
		MaxTorque:        1.0,
		CorrectionFactor: 0.3,
	}
}

// Initialize captures the current relative transform as the target offset.
func (def *MotorJointDef) Initialize(bodyA, bodyB *Body) {
	def.BodyA = bodyA.id
	def.BodyB = bodyB.id
	def.LinearOffset = bodyA.LocalPoint(bodyB.Position())
	def.AngularOffset = bodyB.Angle() - bodyA.Angle()
}

func (def *MotorJointDef) create(bodyA, bodyB *Body) (Joint, error) {
	if !geom.Valid(def.MaxForce) || def.MaxForce < 0.0 {
		return nil, fmt.Errorf("%w: motor joint max force must be finite and non-negative", ErrInvalid)
	}
	if !geom.Valid(def.MaxTorque) || def.MaxTorque < 0.0 {
		return nil, fmt.Errorf("%w: motor joint max torque must be finite and non-negative", ErrInvalid)
	}
	if !geom.Valid(def.CorrectionFactor) || def.CorrectionFactor < 0.0 || def.CorrectionFactor > 1.0 {
		return nil, fmt.Errorf("%w: motor joint correction factor must be in [0,1]", ErrInvalid)
	}
	return &MotorJoint{
		jointBase:        makeJointBase(MotorJointKind, &def.JointDef, bodyA, bodyB),
		linearOffset:     def.LinearOffset,
		angularOffset:    def.AngularOffset,
		maxForce:         def.MaxForce,
		maxTorque:        def.MaxTorque,
		correctionFactor: def.CorrectionFactor,
	}, nil
}

// MotorJoint controls the relative motion between two bodies. A typical
// use is steering a dynamic body relative to the ground.
type MotorJoint struct {
	jointBase

	linearOffset     geom.Vec2
	angularOffset    float64
	linearImpulse    geom.Vec2
	angularImpulse   float64
	maxForce         float64
	maxTorque        float64
	correctionFactor float64

	// solver temp
	indexA       int
	indexB       int
	rA, rB       geom.Vec2
	localCenterA geom.Vec2
	localCenterB geom.Vec2
	linearError  geom.Vec2
	angularError float64
	invMassA     float64
	invMassB     float64
	invIA, invIB float64
	linearMass   mgl64.Mat2
	angularMass  float64
}

func (j *MotorJoint) LinearOffset() geom.Vec2 { return j.linearOffset }

func (j *MotorJoint) SetLinearOffset(offset geom.Vec2) {
	if offset != j.linearOffset {
		j.bodyA.SetAwake(true)
		j.bodyB.SetAwake(true)
		j.linearOffset = offset
	}
}

func (j *MotorJoint) AngularOffset() float64 { return j.angularOffset }

func (j *MotorJoint) SetAngularOffset(offset float64) {
	if offset != j.angularOffset {
		j.bodyA.SetAwake(true)
		j.bodyB.SetAwake(true)
		j.angularOffset = offset
	}
}

func (j *MotorJoint) MaxForce() float64 { return j.maxForce }

func (j *MotorJoint) SetMaxForce(force float64) error {
	if !geom.Valid(force) || force < 0.0 {
		return fmt.Errorf("%w: max force must be finite and non-negative", ErrInvalid)
	}
	j.maxForce = force
	return nil
}

func (j *MotorJoint) MaxTorque() float64 { return j.maxTorque }

func (j *MotorJoint) SetMaxTorque(torque float64) error {
	if !geom.Valid(torque) || torque < 0.0 {
		return fmt.Errorf("%w: max torque must be finite and non-negative", ErrInvalid)
	}
	j.maxTorque = torque
	return nil
}

func (j *MotorJoint) CorrectionFactor() float64 { return j.correctionFactor }

func (j *MotorJoint) SetCorrectionFactor(factor float64) error {
	if !geom.Valid(factor) || factor < 0.0 || factor > 1.0 {
		return fmt.Errorf("%w: correction factor must be in [0,1]", ErrInvalid)
	}
	j.correctionFactor = factor
	return nil
}

func (j *MotorJoint) AnchorA() geom.Vec2 { return j.bodyA.Position() }
func (j *MotorJoint) AnchorB() geom.Vec2 { return j.bodyB.Position() }

func (j *MotorJoint) ReactionForce(invDt float64) geom.Vec2 {
	return j.linearImpulse.Mul(invDt)
}

func (j *MotorJoint) ReactionTorque(invDt float64) float64 {
	return invDt * j.angularImpulse
}

func (j *MotorJoint) initVelocityConstraints(data *solverData) {
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

	// Compute the effective mass matrix.
	j.rA = qA.Apply(j.localCenterA.Mul(-1.0))
	j.rB = qB.Apply(j.localCenterB.Mul(-1.0))

	mA, mB := j.invMassA, j.invMassB
	iA, iB := j.invIA, j.invIB

	// J = [-I -r1_skew I r2_skew]
	//     [ 0       -1 0       1]
	// r_skew = [-ry; rx]
	k := geom.Mat2FromCols(
		geom.Vec2{mA + mB + iA*j.rA[1]*j.rA[1] + iB*j.rB[1]*j.rB[1], -iA*j.rA[0]*j.rA[1] - iB*j.rB[0]*j.rB[1]},
		geom.Vec2{-iA*j.rA[0]*j.rA[1] - iB*j.rB[0]*j.rB[1], mA + mB + iA*j.rA[0]*j.rA[0] + iB*j.rB[0]*j.rB[0]},
	)
	j.linearMass = geom.Inverse22(k)

	j.angularMass = iA + iB
	if j.angularMass > 0.0 {
		j.angularMass = 1.0 / j.angularMass
	}

	j.linearError = cB.Add(j.rB).Sub(cA).Sub(j.rA).Sub(qA.Apply(j.linearOffset))
	j.angularError = aB - aA - j.angularOffset

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

func (j *MotorJoint) solveVelocityConstraints(data *solverData) {
	vA := data.velocities[j.indexA].v
	wA := data.velocities[j.indexA].w
	vB := data.velocities[j.indexB].v
	wB := data.velocities[j.indexB].w

	mA, mB := j.invMassA, j.invMassB
	iA, iB := j.invIA, j.invIB

	h := data.step.dt
	invH := data.step.invDt

	// Solve angular friction.
	{
		cdot := wB - wA + invH*j.correctionFactor*j.angularError
		impulse := -j.angularMass * cdot

		oldImpulse := j.angularImpulse
		maxImpulse := h * j.maxTorque
		j.angularImpulse = geom.Clamp(j.angularImpulse+impulse, -maxImpulse, maxImpulse)
		impulse = j.angularImpulse - oldImpulse

		wA -= iA * impulse
		wB += iB * impulse
	}

	// Solve linear friction.
	{
		cdot := vB.Add(geom.CrossSV(wB, j.rB)).Sub(vA).Sub(geom.CrossSV(wA, j.rA)).
			Add(j.linearError.Mul(invH * j.correctionFactor))

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

func (j *MotorJoint) solvePositionConstraints(data *solverData) bool {
	return true
}

func (j *MotorJoint) dump(w io.Writer) {
	fmt.Fprintf(w, "joint motor bodyA=%d bodyB=%d collide=%t linearOffset=(%.17g,%.17g) angularOffset=%.17g maxForce=%.17g maxTorque=%.17g correction=%.17g\n",
		j.bodyA.islandIndex, j.bodyB.islandIndex, j.collideConnected,
		j.linearOffset[0], j.linearOffset[1], j.angularOffset,
		j.maxForce, j.maxTorque, j.correctionFactor)
}
