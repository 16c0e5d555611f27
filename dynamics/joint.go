package dynamics

import (
	"fmt"
	"io"

	"github.com/veloxphys/velox2d/geom"
)

// JointKind identifies a concrete joint type. The set is closed: every kind
// shares the same three-phase solver protocol and the step loop dispatches
// over this enum only.
type JointKind uint8

const (
	RevoluteJointKind JointKind = iota
	PrismaticJointKind
	DistanceJointKind
	PulleyJointKind
	MouseJointKind
	GearJointKind
	WheelJointKind
	WeldJointKind
	FrictionJointKind
	RopeJointKind
	MotorJointKind
)

func (k JointKind) String() string {
	switch k {
	case RevoluteJointKind:
		return "revolute"
	case PrismaticJointKind:
		return "prismatic"
	case DistanceJointKind:
		return "distance"
	case PulleyJointKind:
		return "pulley"
	case MouseJointKind:
		return "mouse"
	case GearJointKind:
		return "gear"
	case WheelJointKind:
		return "wheel"
	case WeldJointKind:
		return "weld"
	case FrictionJointKind:
		return "friction"
	case RopeJointKind:
		return "rope"
	case MotorJointKind:
		return "motor"
	default:
		return "unknown"
	}
}

// limitState tracks which side of a joint limit is active, for impulse
// clamping.
type limitState uint8

const (
	inactiveLimit limitState = iota
	atLowerLimit
	atUpperLimit
	equalLimits
)

// JointDef carries the fields common to all joint definitions.
type JointDef struct {
	// BodyA and BodyB are the attached bodies; they must differ.
	BodyA BodyID
	BodyB BodyID

	// CollideConnected lets the attached bodies still collide with each
	// other.
	CollideConnected bool

	UserData any
}

// JointDefiner is implemented by every concrete joint definition. The
// create method keeps the set closed to this package.
type JointDefiner interface {
	common() *JointDef
	create(bodyA, bodyB *Body) (Joint, error)
}

func (d *JointDef) common() *JointDef { return d }

// Joint constrains two bodies. All joints share the solver protocol:
// velocity-constraint initialization, velocity iterations, then position
// iterations that report convergence.
type Joint interface {
	Kind() JointKind
	ID() JointID
	BodyA() *Body
	BodyB() *Body

	// AnchorA and AnchorB return the anchor points in world coordinates.
	AnchorA() geom.Vec2
	AnchorB() geom.Vec2

	// ReactionForce returns the constraint force on body B at the anchor,
	// given the inverse time step.
	ReactionForce(invDt float64) geom.Vec2
	// ReactionTorque returns the constraint torque on body B.
	ReactionTorque(invDt float64) float64

	CollideConnected() bool
	UserData() any
	SetUserData(data any)

	// IsEnabled reports whether both bodies are enabled.
	IsEnabled() bool

	// ShiftOrigin adjusts any world-coordinate state after a world origin
	// shift.
	ShiftOrigin(newOrigin geom.Vec2)

	base() *jointBase
	initVelocityConstraints(data *solverData)
	solveVelocityConstraints(data *solverData)
	solvePositionConstraints(data *solverData) bool
	dump(w io.Writer)
}

// jointBase is embedded by every concrete joint.
type jointBase struct {
	kind JointKind
	id   JointID

	bodyA *Body
	bodyB *Body

	onIsland         bool
	collideConnected bool

	userData any
}

func makeJointBase(kind JointKind, def *JointDef, bodyA, bodyB *Body) jointBase {
	return jointBase{
		kind:             kind,
		bodyA:            bodyA,
		bodyB:            bodyB,
		collideConnected: def.CollideConnected,
		userData:         def.UserData,
	}
}

func (j *jointBase) base() *jointBase { return j }

func (j *jointBase) Kind() JointKind { return j.kind }

func (j *jointBase) ID() JointID { return j.id }

func (j *jointBase) BodyA() *Body { return j.bodyA }

func (j *jointBase) BodyB() *Body { return j.bodyB }

func (j *jointBase) CollideConnected() bool { return j.collideConnected }

func (j *jointBase) UserData() any { return j.userData }

func (j *jointBase) SetUserData(data any) { j.userData = data }

func (j *jointBase) IsEnabled() bool {
	return j.bodyA.enabled && j.bodyB.enabled
}

// ShiftOrigin is a no-op for joints whose state is body-relative; joints
// with world-space anchors override it.
func (j *jointBase) ShiftOrigin(geom.Vec2) {}

func validateJointDef(def *JointDef, bodyA, bodyB *Body) error {
	if bodyA == nil || bodyB == nil {
		return fmt.Errorf("%w: joint body handle is stale", ErrStaleHandle)
	}
	if bodyA == bodyB {
		return fmt.Errorf("%w: joint must connect two distinct bodies", ErrInvalid)
	}
	return nil
}
