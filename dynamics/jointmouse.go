package dynamics

import (
	"fmt"
	"io"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/veloxphys/velox2d/geom"
)

// MouseJointDef describes a soft constraint dragging a point on bodyB
// toward a world target point. The target is assumed to coincide with the
// body anchor initially. MaxForce is usually a multiple of the body weight.
type MouseJointDef struct {
	JointDef

	Target       geom.Vec2
	MaxForce     float64
	FrequencyHz  float64
	DampingRatio float64
}

// DefaultMouseJointDef returns a def with a 5 Hz response and 0.7 damping.
func DefaultMouseJointDef() MouseJointDef {
	return MouseJointDef{FrequencyHz: 5.0, DampingRatio: 0.7}
}

func (def *MouseJointDef) create(bodyA, bodyB *Body) (Joint, error) {
	if !geom.ValidVec(def.Target) {
		return nil, fmt.Errorf("%w: mouse joint target is not finite", ErrInvalid)
	}
	if !(geom.Valid(def.MaxForce) && def.MaxForce >= 0.0) {
		return nil, fmt.Errorf("%w: mouse joint max force must be non-negative", ErrInvalid)
	}
	if !(geom.Valid(def.FrequencyHz) && def.FrequencyHz >= 0.0) {
		return nil, fmt.Errorf("%w: mouse joint frequency must be non-negative", ErrInvalid)
	}
	if !(geom.Valid(def.DampingRatio) && def.DampingRatio >= 0.0) {
		return nil, fmt.Errorf("%w: mouse joint damping ratio must be non-negative", ErrInvalid)
	}
	return &MouseJoint{
		jointBase:    makeJointBase(MouseJointKind, &def.JointDef, bodyA, bodyB),
		targetA:      def.Target,
		localAnchorB: bodyB.Transform().ApplyT(def.Target),
		maxForce:     def.MaxForce,
		frequencyHz:  def.FrequencyHz,
		dampingRatio: def.DampingRatio,
	}, nil
}

// MouseJoint makes a point on a body track a specified world point. The
// constraint is soft with a bounded force, so it stretches instead of
// applying huge impulses.
//
// p = attached point, m = target point
// C = p - m
// Cdot = v + cross(w, r)
// J = [I r_skew]
type MouseJoint struct {
	jointBase

	localAnchorB geom.Vec2
	targetA      geom.Vec2
	frequencyHz  float64
	dampingRatio float64
	beta         float64

	impulse  geom.Vec2
	maxForce float64
	gamma    float64

	// solver temp
	indexB       int
	rB           geom.Vec2
	localCenterB geom.Vec2
	invMassB     float64
	invIB        float64
	mass         mgl64.Mat2
	c            geom.Vec2
}

// SetTarget moves the world target point, waking the body.
func (j *MouseJoint) SetTarget(target geom.Vec2) {
	if target != j.targetA {
		j.bodyB.SetAwake(true)
		j.targetA = target
	}
}

func (j *MouseJoint) Target() geom.Vec2 { return j.targetA }

func (j *MouseJoint) SetMaxForce(force float64) { j.maxForce = force }
func (j *MouseJoint) MaxForce() float64         { return j.maxForce }

func (j *MouseJoint) SetFrequency(hz float64) { j.frequencyHz = hz }
func (j *MouseJoint) Frequency() float64      { return j.frequencyHz }

func (j *MouseJoint) SetDampingRatio(ratio float64) { j.dampingRatio = ratio }
func (j *MouseJoint) DampingRatio() float64         { return j.dampingRatio }

func (j *MouseJoint) AnchorA() geom.Vec2 { return j.targetA }
func (j *MouseJoint) AnchorB() geom.Vec2 { return j.bodyB.WorldPoint(j.localAnchorB) }

func (j *MouseJoint) ReactionForce(invDt float64) geom.Vec2 {
	return j.impulse.Mul(invDt)
}

func (j *MouseJoint) ReactionTorque(invDt float64) float64 { return 0.0 }

func (j *MouseJoint) ShiftOrigin(newOrigin geom.Vec2) {
	j.targetA = j.targetA.Sub(newOrigin)
}

func (j *MouseJoint) initVelocityConstraints(data *solverData) {
	j.indexB = j.bodyB.islandIndex
	j.localCenterB = j.bodyB.sweep.LocalCenter
	j.invMassB = j.bodyB.invMass
	j.invIB = j.bodyB.invI

	cB := data.positions[j.indexB].c
	aB := data.positions[j.indexB].a
	vB := data.velocities[j.indexB].v
	wB := data.velocities[j.indexB].w

	qB := geom.RotFromAngle(aB)

	mass := j.bodyB.Mass()

	omega := 2.0 * math.Pi * j.frequencyHz

	// Damping coefficient and spring stiffness.
	d := 2.0 * mass * j.dampingRatio * omega
	k := mass * omega * omega

	// gamma has units of inverse mass, beta of inverse time.
	h := data.step.dt
	j.gamma = h * (d + h*k)
	if j.gamma != 0.0 {
		j.gamma = 1.0 / j.gamma
	}
	j.beta = h * k * j.gamma

	// Effective mass matrix.
	j.rB = qB.Apply(j.localAnchorB.Sub(j.localCenterB))

	k11 := j.invMassB + j.invIB*j.rB[1]*j.rB[1] + j.gamma
	k12 := -j.invIB * j.rB[0] * j.rB[1]
	k22 := j.invMassB + j.invIB*j.rB[0]*j.rB[0] + j.gamma

	j.mass = geom.Inverse22(geom.Mat2FromCols(geom.Vec2{k11, k12}, geom.Vec2{k12, k22}))

	j.c = cB.Add(j.rB).Sub(j.targetA).Mul(j.beta)

	// Cheat with some damping.
	wB *= 0.98

	if data.step.warmStarting {
		j.impulse = j.impulse.Mul(data.step.dtRatio)
		vB = vB.Add(j.impulse.Mul(j.invMassB))
		wB += j.invIB * geom.Cross(j.rB, j.impulse)
	} else {
		j.impulse = geom.Vec2{}
	}

	data.velocities[j.indexB].v = vB
	data.velocities[j.indexB].w = wB
}

func (j *MouseJoint) solveVelocityConstraints(data *solverData) {
	vB := data.velocities[j.indexB].v
	wB := data.velocities[j.indexB].w

	// Cdot = v + cross(w, r)
	cdot := vB.Add(geom.CrossSV(wB, j.rB))
	impulse := j.mass.Mul2x1(cdot.Add(j.c).Add(j.impulse.Mul(j.gamma)).Mul(-1.0))

	oldImpulse := j.impulse
	j.impulse = j.impulse.Add(impulse)
	maxImpulse := data.step.dt * j.maxForce
	if j.impulse.LenSqr() > maxImpulse*maxImpulse {
		j.impulse = j.impulse.Mul(maxImpulse / j.impulse.Len())
	}
	impulse = j.impulse.Sub(oldImpulse)

	vB = vB.Add(impulse.Mul(j.invMassB))
	wB += j.invIB * geom.Cross(j.rB, impulse)

	data.velocities[j.indexB].v = vB
	data.velocities[j.indexB].w = wB
}

func (j *MouseJoint) solvePositionConstraints(data *solverData) bool {
	return true
}

func (j *MouseJoint) dump(w io.Writer) {
	fmt.Fprintf(w, "joint mouse bodyA=%d bodyB=%d target=(%.17g,%.17g) maxForce=%.17g freq=%.17g damping=%.17g\n",
		j.bodyA.islandIndex, j.bodyB.islandIndex,
		j.targetA[0], j.targetA[1], j.maxForce, j.frequencyHz, j.dampingRatio)
}
