package dynamics

import (
	"fmt"
	"io"
	"math"

	"github.com/veloxphys/velox2d/geom"
)

// WheelJointDef describes a wheel joint: an anchor and an axis fixed in
// bodyA. Local anchors and a local axis let the initial configuration
// violate the constraint slightly.
type WheelJointDef struct {
	JointDef

	LocalAnchorA geom.Vec2
	LocalAnchorB geom.Vec2

	// LocalAxisA is the suspension travel axis in bodyA coordinates.
	LocalAxisA geom.Vec2

	EnableMotor    bool
	MaxMotorTorque float64
	MotorSpeed     float64

	// FrequencyHz is the suspension frequency; zero disables suspension.
	FrequencyHz float64

	// DampingRatio: one indicates critical damping.
	DampingRatio float64
}

// DefaultWheelJointDef returns a def with 2 Hz suspension and 0.7 damping.
func DefaultWheelJointDef() WheelJointDef {
	return WheelJointDef{
		LocalAxisA:   geom.Vec2{1.0, 0.0},
		FrequencyHz:  2.0,
		DampingRatio: 0.7,
	}
}

// Initialize sets the bodies, anchors and axis from world coordinates.
func (def *WheelJointDef) Initialize(bodyA, bodyB *Body, anchor, axis geom.Vec2) {
	def.BodyA = bodyA.id
	def.BodyB = bodyB.id
	def.LocalAnchorA = bodyA.LocalPoint(anchor)
	def.LocalAnchorB = bodyB.LocalPoint(anchor)
	def.LocalAxisA = bodyA.LocalVector(axis)
}

func (def *WheelJointDef) create(bodyA, bodyB *Body) (Joint, error) {
	if def.LocalAxisA.Len() == 0.0 {
		return nil, fmt.Errorf("%w: wheel joint axis must be nonzero", ErrInvalid)
	}
	xAxis := geom.Normalized(def.LocalAxisA)
	return &WheelJoint{
		jointBase:      makeJointBase(WheelJointKind, &def.JointDef, bodyA, bodyB),
		localAnchorA:   def.LocalAnchorA,
		localAnchorB:   def.LocalAnchorB,
		localXAxisA:    xAxis,
		localYAxisA:    geom.CrossSV(1.0, xAxis),
		maxMotorTorque: def.MaxMotorTorque,
		motorSpeed:     def.MotorSpeed,
		enableMotor:    def.EnableMotor,
		frequencyHz:    def.FrequencyHz,
		dampingRatio:   def.DampingRatio,
	}, nil
}

// WheelJoint provides two degrees of freedom: translation along an axis
// fixed in bodyA and rotation in the plane. It is a point-to-line
// constraint with a rotational motor and a linear spring/damper, designed
// for vehicle suspensions.
//
// Point-to-line constraint:
// d = pB - pA
// C = dot(ay, d)
// Cdot = -dot(ay, vA) - dot(cross(d + rA, ay), wA) + dot(ay, vB) + dot(cross(rB, ay), wB)
//
// Spring constraint uses ax in place of ay; the motor constrains wB - wA.
type WheelJoint struct {
	jointBase

	frequencyHz  float64
	dampingRatio float64

	localAnchorA geom.Vec2
	localAnchorB geom.Vec2
	localXAxisA  geom.Vec2
	localYAxisA  geom.Vec2

	impulse       float64
	motorImpulse  float64
	springImpulse float64

	maxMotorTorque float64
	motorSpeed     float64
	enableMotor    bool

	// solver temp
	indexA       int
	indexB       int
	localCenterA geom.Vec2
	localCenterB geom.Vec2
	invMassA     float64
	invMassB     float64
	invIA, invIB float64

	ax, ay   geom.Vec2
	sAx, sBx float64
	sAy, sBy float64

	mass       float64
	motorMass  float64
	springMass float64

	bias  float64
	gamma float64
}

func (j *WheelJoint) LocalAnchorA() geom.Vec2 { return j.localAnchorA }
func (j *WheelJoint) LocalAnchorB() geom.Vec2 { return j.localAnchorB }
func (j *WheelJoint) LocalAxisA() geom.Vec2   { return j.localXAxisA }

// JointTranslation returns the current translation along the axis.
func (j *WheelJoint) JointTranslation() float64 {
	pA := j.bodyA.WorldPoint(j.localAnchorA)
	pB := j.bodyB.WorldPoint(j.localAnchorB)
	axis := j.bodyA.WorldVector(j.localXAxisA)
	return pB.Sub(pA).Dot(axis)
}

// JointLinearSpeed returns the translation speed along the axis.
func (j *WheelJoint) JointLinearSpeed() float64 {
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

// JointAngle returns the relative rotation of the wheel.
func (j *WheelJoint) JointAngle() float64 {
	return j.bodyB.sweep.A - j.bodyA.sweep.A
}

// JointAngularSpeed returns the relative angular velocity.
func (j *WheelJoint) JointAngularSpeed() float64 {
	return j.bodyB.angularVelocity - j.bodyA.angularVelocity
}

func (j *WheelJoint) IsMotorEnabled() bool { return j.enableMotor }

func (j *WheelJoint) EnableMotor(flag bool) {
	if flag != j.enableMotor {
		j.bodyA.SetAwake(true)
		j.bodyB.SetAwake(true)
		j.enableMotor = flag
	}
}

func (j *WheelJoint) MotorSpeed() float64 { return j.motorSpeed }

func (j *WheelJoint) SetMotorSpeed(speed float64) {
	if speed != j.motorSpeed {
		j.bodyA.SetAwake(true)
		j.bodyB.SetAwake(true)
		j.motorSpeed = speed
	}
}

func (j *WheelJoint) MaxMotorTorque() float64 { return j.maxMotorTorque }

func (j *WheelJoint) SetMaxMotorTorque(torque float64) {
	if torque != j.maxMotorTorque {
		j.bodyA.SetAwake(true)
		j.bodyB.SetAwake(true)
		j.maxMotorTorque = torque
	}
}

// MotorTorque returns the current motor torque given the inverse time step.
func (j *WheelJoint) MotorTorque(invDt float64) float64 {
	return invDt * j.motorImpulse
}

func (j *WheelJoint) SpringFrequency() float64      { return j.frequencyHz }
func (j *WheelJoint) SetSpringFrequency(hz float64) { j.frequencyHz = hz }

func (j *WheelJoint) SpringDampingRatio() float64         { return j.dampingRatio }
func (j *WheelJoint) SetSpringDampingRatio(ratio float64) { j.dampingRatio = ratio }

func (j *WheelJoint) AnchorA() geom.Vec2 { return j.bodyA.WorldPoint(j.localAnchorA) }
func (j *WheelJoint) AnchorB() geom.Vec2 { return j.bodyB.WorldPoint(j.localAnchorB) }

func (j *WheelJoint) ReactionForce(invDt float64) geom.Vec2 {
	return j.ay.Mul(j.impulse).Add(j.ax.Mul(j.springImpulse)).Mul(invDt)
}

func (j *WheelJoint) ReactionTorque(invDt float64) float64 {
	return invDt * j.motorImpulse
}

func (j *WheelJoint) initVelocityConstraints(data *solverData) {
	j.indexA = j.bodyA.islandIndex
	j.indexB = j.bodyB.islandIndex
	j.localCenterA = j.bodyA.sweep.LocalCenter
	j.localCenterB = j.bodyB.sweep.LocalCenter
	j.invMassA = j.bodyA.invMass
	j.invMassB = j.bodyB.invMass
	j.invIA = j.bodyA.invI
	j.invIB = j.bodyB.invI

	mA, mB := j.invMassA, j.invMassB
	iA, iB := j.invIA, j.invIB

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
	d := cB.Add(rB).Sub(cA).Sub(rA)

	// Point-to-line constraint.
	j.ay = qA.Apply(j.localYAxisA)
	j.sAy = geom.Cross(d.Add(rA), j.ay)
	j.sBy = geom.Cross(rB, j.ay)

	j.mass = mA + mB + iA*j.sAy*j.sAy + iB*j.sBy*j.sBy
	if j.mass > 0.0 {
		j.mass = 1.0 / j.mass
	}

	// Spring constraint.
	j.springMass = 0.0
	j.bias = 0.0
	j.gamma = 0.0
	if j.frequencyHz > 0.0 {
		j.ax = qA.Apply(j.localXAxisA)
		j.sAx = geom.Cross(d.Add(rA), j.ax)
		j.sBx = geom.Cross(rB, j.ax)

		invMass := mA + mB + iA*j.sAx*j.sAx + iB*j.sBx*j.sBx
		if invMass > 0.0 {
			j.springMass = 1.0 / invMass

			c := d.Dot(j.ax)

			omega := 2.0 * math.Pi * j.frequencyHz
			damp := 2.0 * j.springMass * j.dampingRatio * omega
			k := j.springMass * omega * omega

			h := data.step.dt
			j.gamma = h * (damp + h*k)
			if j.gamma > 0.0 {
				j.gamma = 1.0 / j.gamma
			}

			j.bias = c * h * k * j.gamma

			j.springMass = invMass + j.gamma
			if j.springMass > 0.0 {
				j.springMass = 1.0 / j.springMass
			}
		}
	} else {
		j.springImpulse = 0.0
	}

	// Rotational motor.
	if j.enableMotor {
		j.motorMass = iA + iB
		if j.motorMass > 0.0 {
			j.motorMass = 1.0 / j.motorMass
		}
	} else {
		j.motorMass = 0.0
		j.motorImpulse = 0.0
	}

	if data.step.warmStarting {
		// Account for variable time step.
		j.impulse *= data.step.dtRatio
		j.springImpulse *= data.step.dtRatio
		j.motorImpulse *= data.step.dtRatio

		p := j.ay.Mul(j.impulse).Add(j.ax.Mul(j.springImpulse))
		lA := j.impulse*j.sAy + j.springImpulse*j.sAx + j.motorImpulse
		lB := j.impulse*j.sBy + j.springImpulse*j.sBx + j.motorImpulse

		vA = vA.Sub(p.Mul(mA))
		wA -= iA * lA

		vB = vB.Add(p.Mul(mB))
		wB += iB * lB
	} else {
		j.impulse = 0.0
		j.springImpulse = 0.0
		j.motorImpulse = 0.0
	}

	data.velocities[j.indexA].v = vA
	data.velocities[j.indexA].w = wA
	data.velocities[j.indexB].v = vB
	data.velocities[j.indexB].w = wB
}

func (j *WheelJoint) solveVelocityConstraints(data *solverData) {
	mA, mB := j.invMassA, j.invMassB
	iA, iB := j.invIA, j.invIB

	vA := data.velocities[j.indexA].v
	wA := data.velocities[j.indexA].w
	vB := data.velocities[j.indexB].v
	wB := data.velocities[j.indexB].w

	// Spring constraint.
	{
		cdot := j.ax.Dot(vB.Sub(vA)) + j.sBx*wB - j.sAx*wA
		impulse := -j.springMass * (cdot + j.bias + j.gamma*j.springImpulse)
		j.springImpulse += impulse

		p := j.ax.Mul(impulse)
		lA := impulse * j.sAx
		lB := impulse * j.sBx

		vA = vA.Sub(p.Mul(mA))
		wA -= iA * lA

		vB = vB.Add(p.Mul(mB))
		wB += iB * lB
	}

	// Rotational motor constraint.
	{
		cdot := wB - wA - j.motorSpeed
		impulse := -j.motorMass * cdot

		oldImpulse := j.motorImpulse
		maxImpulse := data.step.dt * j.maxMotorTorque
		j.motorImpulse = geom.Clamp(j.motorImpulse+impulse, -maxImpulse, maxImpulse)
		impulse = j.motorImpulse - oldImpulse

		wA -= iA * impulse
		wB += iB * impulse
	}

	// Point-to-line constraint.
	{
		cdot := j.ay.Dot(vB.Sub(vA)) + j.sBy*wB - j.sAy*wA
		impulse := -j.mass * cdot
		j.impulse += impulse

		p := j.ay.Mul(impulse)
		lA := impulse * j.sAy
		lB := impulse * j.sBy

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

func (j *WheelJoint) solvePositionConstraints(data *solverData) bool {
	cA := data.positions[j.indexA].c
	aA := data.positions[j.indexA].a
	cB := data.positions[j.indexB].c
	aB := data.positions[j.indexB].a

	qA := geom.RotFromAngle(aA)
	qB := geom.RotFromAngle(aB)

	rA := qA.Apply(j.localAnchorA.Sub(j.localCenterA))
	rB := qB.Apply(j.localAnchorB.Sub(j.localCenterB))
	d := cB.Sub(cA).Add(rB).Sub(rA)

	ay := qA.Apply(j.localYAxisA)

	sAy := geom.Cross(d.Add(rA), ay)
	sBy := geom.Cross(rB, ay)

	c := d.Dot(ay)

	k := j.invMassA + j.invMassB + j.invIA*j.sAy*j.sAy + j.invIB*j.sBy*j.sBy

	impulse := 0.0
	if k != 0.0 {
		impulse = -c / k
	}

	p := ay.Mul(impulse)
	lA := impulse * sAy
	lB := impulse * sBy

	cA = cA.Sub(p.Mul(j.invMassA))
	aA -= j.invIA * lA
	cB = cB.Add(p.Mul(j.invMassB))
	aB += j.invIB * lB

	data.positions[j.indexA].c = cA
	data.positions[j.indexA].a = aA
	data.positions[j.indexB].c = cB
	data.positions[j.indexB].a = aB

	return math.Abs(c) <= data.conf.LinearSlop
}

func (j *WheelJoint) dump(w io.Writer) {
	fmt.Fprintf(w, "joint wheel bodyA=%d bodyB=%d collide=%t anchorA=(%.17g,%.17g) anchorB=(%.17g,%.17g) axis=(%.17g,%.17g) motor=%t speed=%.17g maxTorque=%.17g freq=%.17g damping=%.17g\n",
		j.bodyA.islandIndex, j.bodyB.islandIndex, j.collideConnected,
		j.localAnchorA[0], j.localAnchorA[1], j.localAnchorB[0], j.localAnchorB[1],
		j.localXAxisA[0], j.localXAxisA[1],
		j.enableMotor, j.motorSpeed, j.maxMotorTorque, j.frequencyHz, j.dampingRatio)
}
