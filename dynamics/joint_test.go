package dynamics_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veloxphys/velox2d/dynamics"
	"github.com/veloxphys/velox2d/geom"
	"github.com/veloxphys/velox2d/shapes"
)

func anchorBody(t *testing.T, world *dynamics.World, pos geom.Vec2) *dynamics.Body {
	t.Helper()
	def := dynamics.DefaultBodyDef()
	def.Position = pos
	body, err := world.CreateBody(def)
	require.NoError(t, err)
	return body
}

func dynamicBall(t *testing.T, world *dynamics.World, pos geom.Vec2) *dynamics.Body {
	t.Helper()
	def := dynamics.DefaultBodyDef()
	def.Kind = dynamics.DynamicBody
	def.Position = pos
	body, err := world.CreateBody(def)
	require.NoError(t, err)
	_, err = body.CreateShapeFixture(shapes.NewCircle(0.25), 1.0)
	require.NoError(t, err)
	return body
}

func stepN(t *testing.T, world *dynamics.World, conf dynamics.StepConf, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := world.Step(conf)
		require.NoError(t, err)
	}
}

func TestDistanceJointHoldsLength(t *testing.T) {
	world := dynamics.NewWorld(dynamics.DefaultWorldDef())

	anchor := anchorBody(t, world, geom.Vec2{0.0, 0.0})
	ball := dynamicBall(t, world, geom.Vec2{2.0, 0.0})

	def := dynamics.DefaultDistanceJointDef()
	def.Initialize(anchor, ball, anchor.Position(), ball.Position())
	joint, err := world.CreateJoint(&def)
	require.NoError(t, err)
	assert.Equal(t, dynamics.DistanceJointKind, joint.Kind())

	conf := dynamics.DefaultStepConf()
	conf.AllowSleep = false
	stepN(t, world, conf, 180)

	// The pendulum swings but the rod length is preserved.
	length := joint.AnchorB().Sub(joint.AnchorA()).Len()
	assert.InDelta(t, 2.0, length, 0.05)
	assert.Less(t, ball.Position()[1], 0.0, "pendulum should have swung down")
}

func TestDistanceJointInvalidLength(t *testing.T) {
	world := dynamics.NewWorld(dynamics.DefaultWorldDef())

	a := anchorBody(t, world, geom.Vec2{0.0, 0.0})
	b := dynamicBall(t, world, geom.Vec2{1.0, 0.0})

	def := dynamics.DefaultDistanceJointDef()
	def.BodyA = a.ID()
	def.BodyB = b.ID()
	def.Length = 0.0
	_, err := world.CreateJoint(&def)
	assert.ErrorIs(t, err, dynamics.ErrInvalid)
}

func TestJointRequiresDistinctBodies(t *testing.T) {
	world := dynamics.NewWorld(dynamics.DefaultWorldDef())
	body := dynamicBall(t, world, geom.Vec2{})

	def := dynamics.DefaultDistanceJointDef()
	def.BodyA = body.ID()
	def.BodyB = body.ID()
	_, err := world.CreateJoint(&def)
	assert.ErrorIs(t, err, dynamics.ErrInvalid)
}

func TestJointStaleBodyHandle(t *testing.T) {
	world := dynamics.NewWorld(dynamics.DefaultWorldDef())

	a := anchorBody(t, world, geom.Vec2{})
	b := dynamicBall(t, world, geom.Vec2{1.0, 0.0})
	require.NoError(t, world.DestroyBody(b.ID()))

	def := dynamics.DefaultDistanceJointDef()
	def.BodyA = a.ID()
	def.BodyB = b.ID()
	_, err := world.CreateJoint(&def)
	assert.ErrorIs(t, err, dynamics.ErrStaleHandle)
}

func TestRevoluteMotorDrivesToLimit(t *testing.T) {
	def := dynamics.DefaultWorldDef()
	def.Gravity = geom.Vec2{}
	world := dynamics.NewWorld(def)

	ground := anchorBody(t, world, geom.Vec2{})

	armDef := dynamics.DefaultBodyDef()
	armDef.Kind = dynamics.DynamicBody
	armDef.Position = geom.Vec2{2.0, 0.0}
	arm, err := world.CreateBody(armDef)
	require.NoError(t, err)
	_, err = arm.CreateShapeFixture(shapes.NewBox(2.0, 0.1), 1.0)
	require.NoError(t, err)

	jd := dynamics.DefaultRevoluteJointDef()
	jd.Initialize(ground, arm, geom.Vec2{0.0, 0.0})
	jd.EnableMotor = true
	jd.MotorSpeed = 2.0
	jd.MaxMotorTorque = 1000.0
	jd.EnableLimit = true
	jd.LowerAngle = -0.25 * math.Pi
	jd.UpperAngle = 0.25 * math.Pi
	joint, err := world.CreateJoint(&jd)
	require.NoError(t, err)
	rev := joint.(*dynamics.RevoluteJoint)

	conf := dynamics.DefaultStepConf()
	conf.AllowSleep = false
	stepN(t, world, conf, 180)

	assert.InDelta(t, 0.25*math.Pi, rev.JointAngle(), 0.02,
		"the motor should park the arm at the upper limit")
	assert.LessOrEqual(t, rev.JointAngle(), 0.25*math.Pi+geom.AngularSlop)
}

func TestRevoluteInvalidLimits(t *testing.T) {
	world := dynamics.NewWorld(dynamics.DefaultWorldDef())

	a := anchorBody(t, world, geom.Vec2{})
	b := dynamicBall(t, world, geom.Vec2{1.0, 0.0})

	jd := dynamics.DefaultRevoluteJointDef()
	jd.Initialize(a, b, geom.Vec2{})
	jd.LowerAngle = 1.0
	jd.UpperAngle = -1.0
	_, err := world.CreateJoint(&jd)
	assert.ErrorIs(t, err, dynamics.ErrInvalid)
}

func TestMouseJointTracksTarget(t *testing.T) {
	def := dynamics.DefaultWorldDef()
	def.Gravity = geom.Vec2{}
	world := dynamics.NewWorld(def)

	ground := anchorBody(t, world, geom.Vec2{})

	boxDef := dynamics.DefaultBodyDef()
	boxDef.Kind = dynamics.DynamicBody
	box, err := world.CreateBody(boxDef)
	require.NoError(t, err)
	_, err = box.CreateShapeFixture(shapes.NewBox(0.5, 0.5), 1.0)
	require.NoError(t, err)

	jd := dynamics.DefaultMouseJointDef()
	jd.BodyA = ground.ID()
	jd.BodyB = box.ID()
	jd.Target = box.Position()
	jd.MaxForce = 1000.0 * box.Mass()
	joint, err := world.CreateJoint(&jd)
	require.NoError(t, err)
	mouse := joint.(*dynamics.MouseJoint)

	mouse.SetTarget(geom.Vec2{5.0, 2.0})

	conf := dynamics.DefaultStepConf()
	conf.AllowSleep = false
	stepN(t, world, conf, 300)

	assert.InDelta(t, 5.0, box.Position()[0], 0.1)
	assert.InDelta(t, 2.0, box.Position()[1], 0.1)
}

func TestRopeJointCapsDistance(t *testing.T) {
	world := dynamics.NewWorld(dynamics.DefaultWorldDef())

	anchor := anchorBody(t, world, geom.Vec2{})
	ball := dynamicBall(t, world, geom.Vec2{1.0, 0.0})

	jd := dynamics.DefaultRopeJointDef()
	jd.BodyA = anchor.ID()
	jd.BodyB = ball.ID()
	jd.LocalAnchorA = geom.Vec2{}
	jd.LocalAnchorB = geom.Vec2{}
	jd.MaxLength = 2.0
	joint, err := world.CreateJoint(&jd)
	require.NoError(t, err)
	rope := joint.(*dynamics.RopeJoint)

	conf := dynamics.DefaultStepConf()
	conf.AllowSleep = false
	stepN(t, world, conf, 240)

	assert.LessOrEqual(t, rope.CurrentLength(), 2.0+0.05,
		"rope must not stretch past its maximum length")
}

func TestWeldJointHoldsPose(t *testing.T) {
	world := dynamics.NewWorld(dynamics.DefaultWorldDef())

	base := anchorBody(t, world, geom.Vec2{})
	plank, err := func() (*dynamics.Body, error) {
		def := dynamics.DefaultBodyDef()
		def.Kind = dynamics.DynamicBody
		def.Position = geom.Vec2{1.0, 0.0}
		return world.CreateBody(def)
	}()
	require.NoError(t, err)
	_, err = plank.CreateShapeFixture(shapes.NewBox(1.0, 0.1), 1.0)
	require.NoError(t, err)

	jd := dynamics.DefaultWeldJointDef()
	jd.Initialize(base, plank, geom.Vec2{0.0, 0.0})
	_, err = world.CreateJoint(&jd)
	require.NoError(t, err)

	conf := dynamics.DefaultStepConf()
	stepN(t, world, conf, 180)

	// A rigid weld to a static base keeps the plank where it started.
	assert.InDelta(t, 1.0, plank.Position()[0], 0.05)
	assert.InDelta(t, 0.0, plank.Position()[1], 0.05)
	assert.InDelta(t, 0.0, plank.Angle(), 0.05)
}

func TestFrictionJointDampsMotion(t *testing.T) {
	def := dynamics.DefaultWorldDef()
	def.Gravity = geom.Vec2{}
	world := dynamics.NewWorld(def)

	ground := anchorBody(t, world, geom.Vec2{})

	pukDef := dynamics.DefaultBodyDef()
	pukDef.Kind = dynamics.DynamicBody
	pukDef.LinearVelocity = geom.Vec2{5.0, 0.0}
	puck, err := world.CreateBody(pukDef)
	require.NoError(t, err)
	_, err = puck.CreateShapeFixture(shapes.NewCircle(0.5), 1.0)
	require.NoError(t, err)

	jd := dynamics.DefaultFrictionJointDef()
	jd.Initialize(ground, puck, puck.Position())
	jd.MaxForce = 10.0
	jd.MaxTorque = 10.0
	_, err = world.CreateJoint(&jd)
	require.NoError(t, err)

	conf := dynamics.DefaultStepConf()
	conf.AllowSleep = false
	stepN(t, world, conf, 60)

	assert.Less(t, puck.LinearVelocity().Len(), 1.0,
		"friction joint should bleed off linear velocity")
}

func TestMotorJointFollowsOffset(t *testing.T) {
	def := dynamics.DefaultWorldDef()
	def.Gravity = geom.Vec2{}
	world := dynamics.NewWorld(def)

	ground := anchorBody(t, world, geom.Vec2{})

	bd := dynamics.DefaultBodyDef()
	bd.Kind = dynamics.DynamicBody
	body, err := world.CreateBody(bd)
	require.NoError(t, err)
	_, err = body.CreateShapeFixture(shapes.NewBox(0.5, 0.5), 1.0)
	require.NoError(t, err)

	jd := dynamics.DefaultMotorJointDef()
	jd.Initialize(ground, body)
	jd.LinearOffset = geom.Vec2{3.0, 0.0}
	jd.MaxForce = 1000.0
	jd.MaxTorque = 1000.0
	_, err = world.CreateJoint(&jd)
	require.NoError(t, err)

	conf := dynamics.DefaultStepConf()
	conf.AllowSleep = false
	stepN(t, world, conf, 300)

	assert.InDelta(t, 3.0, body.Position()[0], 0.1)
}

func TestGearJointValidation(t *testing.T) {
	world := dynamics.NewWorld(dynamics.DefaultWorldDef())

	a := anchorBody(t, world, geom.Vec2{})
	b := dynamicBall(t, world, geom.Vec2{1.0, 0.0})
	c := dynamicBall(t, world, geom.Vec2{2.0, 0.0})

	gd := dynamics.DefaultGearJointDef()
	gd.BodyA = b.ID()
	gd.BodyB = c.ID()
	_, err := world.CreateJoint(&gd)
	assert.ErrorIs(t, err, dynamics.ErrInvalid)

	// A distance joint cannot participate in a gear.
	dd := dynamics.DefaultDistanceJointDef()
	dd.Initialize(a, b, a.Position(), b.Position())
	dist, err := world.CreateJoint(&dd)
	require.NoError(t, err)

	gd.Joint1 = dist
	gd.Joint2 = dist
	_, err = world.CreateJoint(&gd)
	assert.ErrorIs(t, err, dynamics.ErrInvalid)
}

func TestGearJointCouplesRevolutes(t *testing.T) {
	def := dynamics.DefaultWorldDef()
	def.Gravity = geom.Vec2{}
	world := dynamics.NewWorld(def)

	ground := anchorBody(t, world, geom.Vec2{})

	makeWheel := func(pos geom.Vec2) (*dynamics.Body, *dynamics.RevoluteJoint) {
		bd := dynamics.DefaultBodyDef()
		bd.Kind = dynamics.DynamicBody
		bd.Position = pos
		wheel, err := world.CreateBody(bd)
		require.NoError(t, err)
		_, err = wheel.CreateShapeFixture(shapes.NewCircle(0.5), 1.0)
		require.NoError(t, err)

		jd := dynamics.DefaultRevoluteJointDef()
		jd.Initialize(ground, wheel, pos)
		joint, err := world.CreateJoint(&jd)
		require.NoError(t, err)
		return wheel, joint.(*dynamics.RevoluteJoint)
	}

	wheelA, revA := makeWheel(geom.Vec2{-1.0, 0.0})
	_, revB := makeWheel(geom.Vec2{1.0, 0.0})

	gd := dynamics.DefaultGearJointDef()
	gd.BodyA = revA.BodyB().ID()
	gd.BodyB = revB.BodyB().ID()
	gd.Joint1 = revA
	gd.Joint2 = revB
	gd.Ratio = 2.0
	_, err := world.CreateJoint(&gd)
	require.NoError(t, err)

	wheelA.SetAngularVelocity(1.0)

	conf := dynamics.DefaultStepConf()
	conf.AllowSleep = false
	stepN(t, world, conf, 60)

	// coordinate1 + ratio * coordinate2 stays constant.
	assert.InDelta(t, 0.0, revA.JointAngle()+2.0*revB.JointAngle(), 0.05)
}

func TestPrismaticLimitClampsTravel(t *testing.T) {
	world := dynamics.NewWorld(dynamics.DefaultWorldDef())

	ground := anchorBody(t, world, geom.Vec2{})

	bd := dynamics.DefaultBodyDef()
	bd.Kind = dynamics.DynamicBody
	bd.Position = geom.Vec2{0.0, 0.0}
	slider, err := world.CreateBody(bd)
	require.NoError(t, err)
	_, err = slider.CreateShapeFixture(shapes.NewBox(0.5, 0.5), 1.0)
	require.NoError(t, err)

	jd := dynamics.DefaultPrismaticJointDef()
	jd.Initialize(ground, slider, geom.Vec2{}, geom.Vec2{0.0, 1.0})
	jd.EnableLimit = true
	jd.LowerTranslation = -2.0
	jd.UpperTranslation = 0.5
	joint, err := world.CreateJoint(&jd)
	require.NoError(t, err)
	prism := joint.(*dynamics.PrismaticJoint)

	conf := dynamics.DefaultStepConf()
	conf.AllowSleep = false
	stepN(t, world, conf, 240)

	// Gravity drags the slider down its axis until the lower limit stops
	// it; the body never drifts sideways.
	assert.InDelta(t, -2.0, prism.JointTranslation(), 0.05)
	assert.InDelta(t, 0.0, slider.Position()[0], 1e-6)
}

func TestWheelJointSpringSettles(t *testing.T) {
	world := dynamics.NewWorld(dynamics.DefaultWorldDef())

	ground := anchorBody(t, world, geom.Vec2{})
	_, err := ground.CreateShapeFixture(shapes.NewEdge(geom.Vec2{-10.0, -2.0}, geom.Vec2{10.0, -2.0}), 0.0)
	require.NoError(t, err)

	bd := dynamics.DefaultBodyDef()
	bd.Kind = dynamics.DynamicBody
	bd.Position = geom.Vec2{0.0, -1.0}
	wheel, err := world.CreateBody(bd)
	require.NoError(t, err)
	_, err = wheel.CreateShapeFixture(shapes.NewCircle(0.5), 1.0)
	require.NoError(t, err)

	jd := dynamics.DefaultWheelJointDef()
	jd.Initialize(ground, wheel, wheel.Position(), geom.Vec2{0.0, 1.0})
	jd.FrequencyHz = 4.0
	jd.DampingRatio = 0.7
	_, err = world.CreateJoint(&jd)
	require.NoError(t, err)

	conf := dynamics.DefaultStepConf()
	stepN(t, world, conf, 300)

	// The suspension sags by g/(2*pi*f)^2 and the damping kills the
	// oscillation well within five seconds.
	assert.InDelta(t, -1.0, wheel.Position()[1], 0.05)
	assert.InDelta(t, 0.0, wheel.Position()[0], 1e-6)
}

func TestPulleyJointConservesTotalLength(t *testing.T) {
	world := dynamics.NewWorld(dynamics.DefaultWorldDef())

	ballA := dynamicBall(t, world, geom.Vec2{-2.0, 0.0})
	ballB := dynamicBall(t, world, geom.Vec2{2.0, 0.0})

	groundA := geom.Vec2{-2.0, 4.0}
	groundB := geom.Vec2{2.0, 4.0}

	jd := dynamics.DefaultPulleyJointDef()
	jd.Initialize(ballA, ballB, groundA, groundB, ballA.Position(), ballB.Position(), 1.0)
	joint, err := world.CreateJoint(&jd)
	require.NoError(t, err)
	pulley := joint.(*dynamics.PulleyJoint)

	// Make one side heavier so the pulley actually moves.
	_, err = ballA.CreateShapeFixture(shapes.NewCircle(0.4), 5.0)
	require.NoError(t, err)

	total := pulley.LengthA() + pulley.LengthB()

	// Few enough steps that the light side does not reach its ground
	// anchor.
	conf := dynamics.DefaultStepConf()
	conf.AllowSleep = false
	stepN(t, world, conf, 40)

	assert.Less(t, ballA.Position()[1], -0.5, "heavy side should descend")
	assert.Greater(t, ballB.Position()[1], 0.5, "light side should rise")
	assert.InDelta(t, total, pulley.CurrentLengthA()+pulley.CurrentLengthB(), 0.1)
}

func TestDestroyJointWakesBodies(t *testing.T) {
	world := dynamics.NewWorld(dynamics.DefaultWorldDef())

	a := anchorBody(t, world, geom.Vec2{})
	b := dynamicBall(t, world, geom.Vec2{1.0, 0.0})

	def := dynamics.DefaultDistanceJointDef()
	def.Initialize(a, b, a.Position(), b.Position())
	joint, err := world.CreateJoint(&def)
	require.NoError(t, err)

	b.SetAwake(false)
	require.NoError(t, world.DestroyJoint(joint.ID()))
	assert.True(t, b.IsAwake())
	assert.Empty(t, b.Joints())

	assert.ErrorIs(t, world.DestroyJoint(joint.ID()), dynamics.ErrStaleHandle)
}
