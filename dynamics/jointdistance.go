package dynamics

import (
	"fmt"
	"io"
	"math"

	"github.com/veloxphys/velox2d/geom"
)

// DistanceJointDef describes a joint holding two anchor points at a fixed
// distance, like a massless rigid rod. Local anchors let the initial
// configuration violate the constraint slightly. A nonzero frequency turns
// the rod into a soft spring.
type DistanceJointDef struct {
	JointDef

	LocalAnchorA geom.Vec2
	LocalAnchorB geom.Vec2

	// Length is the natural distance between the anchors. Keep it well
	// above zero.
	Length float64

	// FrequencyHz is the mass-spring-damper frequency; 0 disables
	// softness.
	FrequencyHz float64

	// DampingRatio: 0 = no damping, 1 = critical damping.
	DampingRatio float64
}

// DefaultDistanceJointDef returns a rigid unit-length def.
func DefaultDistanceJointDef() DistanceJointDef {
	return DistanceJointDef{Length: 1.0}
}

// Initialize sets the bodies, local anchors and length from world anchors.
func (def *DistanceJointDef) Initialize(bodyA, bodyB *Body, anchorA, anchorB geom.Vec2) {
	def.BodyA = bodyA.id
	def.BodyB = bodyB.id
	def.LocalAnchorA = bodyA.LocalPoint(anchorA)
	def.LocalAnchorB = bodyB.LocalPoint(anchorB)
	def.Length = anchorB.Sub(anchorA).Len()
}

func (def *DistanceJointDef) create(bodyA, bodyB *Body) (Joint, error) {
	if def.Length <= 0.0 {
		return nil, fmt.Errorf("%w: distance joint length must be positive", ErrInvalid)
	}
	return &DistanceJoint{
		jointBase:    makeJointBase(DistanceJointKind, &def.JointDef, bodyA, bodyB),
		localAnchorA: def.LocalAnchorA,
		localAnchorB: def.LocalAnchorB,
		length:       def.Length,
		frequencyHz:  def.FrequencyHz,
		dampingRatio: def.DampingRatio,
	}, nil
}

// DistanceJoint constrains two points on two bodies to a fixed distance.
//
// C = |p2 - p1| - L
// u = (p2 - p1) / |p2 - p1|
// Cdot = dot(u, v2 + cross(w2, r2) - v1 - cross(w1, r1))
// J = [-u -cross(r1, u) u cross(r2, u)]
type DistanceJoint struct {
	jointBase

	frequencyHz  float64
	dampingRatio float64
	bias         float64

	localAnchorA geom.Vec2
	localAnchorB geom.Vec2
	gamma        float64
	impulse      float64
	length       float64

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
}

func (j *DistanceJoint) LocalAnchorA() geom.Vec2 { return j.localAnchorA }
func (j *DistanceJoint) LocalAnchorB() geom.Vec2 { return j.localAnchorB }

func (j *DistanceJoint) Length() float64          { return j.length }
func (j *DistanceJoint) SetLength(length float64) { j.length = length }

func (j *DistanceJoint) Frequency() float64      { return j.frequencyHz }
func (j *DistanceJoint) SetFrequency(hz float64) { j.frequencyHz = hz }

func (j *DistanceJoint) DampingRatio() float64         { return j.dampingRatio }
func (j *DistanceJoint) SetDampingRatio(ratio float64) { j.dampingRatio = ratio }

func (j *DistanceJoint) AnchorA() geom.Vec2 { return j.bodyA.WorldPoint(j.localAnchorA) }
func (j *DistanceJoint) AnchorB() geom.Vec2 { return j.bodyB.WorldPoint(j.localAnchorB) }

func (j *DistanceJoint) ReactionForce(invDt float64) geom.Vec2 {
	return j.u.Mul(invDt * j.impulse)
}

func (j *DistanceJoint) ReactionTorque(invDt float64) float64 { return 0.0 }

func (j *DistanceJoint) initVelocityConstraints(data *solverData) {
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

	// Handle the singular zero-length configuration.
	length := j.u.Len()
	if length > data.conf.LinearSlop {
		j.u = j.u.Mul(1.0 / length)
	} else {
		j.u = geom.Vec2{}
	}

	crAu := geom.Cross(j.rA, j.u)
	crBu := geom.Cross(j.rB, j.u)
	invMass := j.invMassA + j.invIA*crAu*crAu + j.invMassB + j.invIB*crBu*crBu

	if invMass != 0.0 {
		j.mass = 1.0 / invMass
	} else {
		j.mass = 0.0
	}

	if j.frequencyHz > 0.0 {
		c := length - j.length

		omega := 2.0 * math.Pi * j.frequencyHz

		// Damping coefficient and spring stiffness.
		d := 2.0 * j.mass * j.dampingRatio * omega
		k := j.mass * omega * omega

		h := data.step.dt
		j.gamma = h * (d + h*k)
		if j.gamma != 0.0 {
			j.gamma = 1.0 / j.gamma
		}
		j.bias = c * h * k * j.gamma

		invMass += j.gamma
		if invMass != 0.0 {
			j.mass = 1.0 / invMass
		} else {
			j.mass = 0.0
		}
	} else {
		j.gamma = 0.0
		j.bias = 0.0
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

func (j *DistanceJoint) solveVelocityConstraints(data *solverData) {
	vA := data.velocities[j.indexA].v
	wA := data.velocities[j.indexA].w
	vB := data.velocities[j.indexB].v
	wB := data.velocities[j.indexB].w

	vpA := vA.Add(geom.CrossSV(wA, j.rA))
	vpB := vB.Add(geom.CrossSV(wB, j.rB))
	cdot := j.u.Dot(vpB.Sub(vpA))

	impulse := -j.mass * (cdot + j.bias + j.gamma*j.impulse)
	j.impulse += impulse

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

func (j *DistanceJoint) solvePositionConstraints(data *solverData) bool {
	if j.frequencyHz > 0.0 {
		// Soft constraints get no position correction.
		return true
	}

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
	c := geom.Clamp(length-j.length, -data.conf.MaxLinearCorrection, data.conf.MaxLinearCorrection)

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

	return math.Abs(c) < data.conf.LinearSlop
}

func (j *DistanceJoint) dump(w io.Writer) {
	fmt.Fprintf(w, "joint distance bodyA=%d bodyB=%d collide=%t anchorA=(%.17g,%.17g) anchorB=(%.17g,%.17g) length=%.17g freq=%.17g damping=%.17g\n",
		j.bodyA.islandIndex, j.bodyB.islandIndex, j.collideConnected,
		j.localAnchorA[0], j.localAnchorA[1], j.localAnchorB[0], j.localAnchorB[1],
		j.length, j.frequencyHz, j.dampingRatio)
}
