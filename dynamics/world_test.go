package dynamics_test

import (
	"bytes"
	"math"
	"testing"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veloxphys/velox2d/collide"
	"github.com/veloxphys/velox2d/dynamics"
	"github.com/veloxphys/velox2d/geom"
	"github.com/veloxphys/velox2d/shapes"
)

// buildStack creates a ground box with a small pile of dynamic boxes and a
// circle, enough geometry to exercise contacts, stacking and sleep.
func buildStack(t *testing.T) *dynamics.World {
	t.Helper()

	world := dynamics.NewWorld(dynamics.DefaultWorldDef())

	groundDef := dynamics.DefaultBodyDef()
	groundDef.Position = geom.Vec2{0.0, -1.0}
	ground, err := world.CreateBody(groundDef)
	require.NoError(t, err)
	_, err = ground.CreateShapeFixture(shapes.NewBox(20.0, 1.0), 0.0)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		def := dynamics.DefaultBodyDef()
		def.Kind = dynamics.DynamicBody
		def.Position = geom.Vec2{0.0, 0.51 + 1.02*float64(i)}
		body, err := world.CreateBody(def)
		require.NoError(t, err)

		fd := dynamics.DefaultFixtureDef()
		fd.Shape = shapes.NewBox(0.5, 0.5)
		fd.Density = 1.0
		fd.Friction = 0.3
		_, err = body.CreateFixture(fd)
		require.NoError(t, err)
	}

	circleDef := dynamics.DefaultBodyDef()
	circleDef.Kind = dynamics.DynamicBody
	circleDef.Position = geom.Vec2{3.0, 4.0}
	circleBody, err := world.CreateBody(circleDef)
	require.NoError(t, err)
	_, err = circleBody.CreateShapeFixture(shapes.NewCircle(0.5), 1.0)
	require.NoError(t, err)

	return world
}

func TestReplayDeterminism(t *testing.T) {
	run := func() string {
		world := buildStack(t)
		conf := dynamics.DefaultStepConf()
		for i := 0; i < 120; i++ {
			_, err := world.Step(conf)
			require.NoError(t, err)
		}
		var buf bytes.Buffer
		world.Dump(&buf)
		return buf.String()
	}

	first := run()
	second := run()

	if first != second {
		diff := difflib.UnifiedDiff{
			A:        difflib.SplitLines(first),
			B:        difflib.SplitLines(second),
			FromFile: "First run",
			ToFile:   "Second run",
			Context:  0,
		}
		text, _ := difflib.GetUnifiedDiffString(diff)
		t.Fatalf("replay diverged:\n%s", text)
	}
}

func TestFallingBoxRestsAndSleeps(t *testing.T) {
	world := dynamics.NewWorld(dynamics.DefaultWorldDef())

	groundDef := dynamics.DefaultBodyDef()
	ground, err := world.CreateBody(groundDef)
	require.NoError(t, err)
	_, err = ground.CreateShapeFixture(shapes.NewEdge(geom.Vec2{-20.0, 0.0}, geom.Vec2{20.0, 0.0}), 0.0)
	require.NoError(t, err)

	boxDef := dynamics.DefaultBodyDef()
	boxDef.Kind = dynamics.DynamicBody
	boxDef.Position = geom.Vec2{0.0, 2.0}
	box, err := world.CreateBody(boxDef)
	require.NoError(t, err)
	_, err = box.CreateShapeFixture(shapes.NewBox(0.5, 0.5), 1.0)
	require.NoError(t, err)

	conf := dynamics.DefaultStepConf()
	for i := 0; i < 300; i++ {
		_, err := world.Step(conf)
		require.NoError(t, err)
	}

	assert.False(t, box.IsAwake(), "resting body should be asleep")
	assert.InDelta(t, 0.5, box.Position()[1], 0.02)
	assert.InDelta(t, 0.0, box.LinearVelocity().Len(), 1e-9)
}

func TestIslandIsolation(t *testing.T) {
	def := dynamics.DefaultWorldDef()
	def.Gravity = geom.Vec2{}
	world := dynamics.NewWorld(def)

	for _, x := range []float64{-50.0, 50.0} {
		bd := dynamics.DefaultBodyDef()
		bd.Kind = dynamics.DynamicBody
		bd.Position = geom.Vec2{x, 0.0}
		body, err := world.CreateBody(bd)
		require.NoError(t, err)
		_, err = body.CreateShapeFixture(shapes.NewBox(0.5, 0.5), 1.0)
		require.NoError(t, err)
	}

	stats, err := world.Step(dynamics.DefaultStepConf())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Reg.Islands)
	assert.Equal(t, 2, stats.Reg.Bodies)
	assert.Equal(t, 0, stats.Reg.Contacts)
}

func TestOverlappingBoxesSeparate(t *testing.T) {
	def := dynamics.DefaultWorldDef()
	def.Gravity = geom.Vec2{}
	world := dynamics.NewWorld(def)

	// Two equal boxes spawned half-overlapped; the position solver must
	// push them apart to within slop.
	var bodies []*dynamics.Body
	for _, x := range []float64{0.0, 0.5} {
		bd := dynamics.DefaultBodyDef()
		bd.Kind = dynamics.DynamicBody
		bd.Position = geom.Vec2{x, 0.0}
		body, err := world.CreateBody(bd)
		require.NoError(t, err)
		_, err = body.CreateShapeFixture(shapes.NewBox(0.5, 0.5), 1.0)
		require.NoError(t, err)
		bodies = append(bodies, body)
	}

	conf := dynamics.DefaultStepConf()
	conf.AllowSleep = false
	for i := 0; i < 120; i++ {
		_, err := world.Step(conf)
		require.NoError(t, err)
	}

	gap := math.Abs(bodies[1].Position()[0]-bodies[0].Position()[0]) - 1.0
	assert.GreaterOrEqual(t, gap, -2.0*geom.LinearSlop)
}

func TestMassInvariants(t *testing.T) {
	world := dynamics.NewWorld(dynamics.DefaultWorldDef())

	static, err := world.CreateBody(dynamics.DefaultBodyDef())
	require.NoError(t, err)
	_, err = static.CreateShapeFixture(shapes.NewBox(1.0, 1.0), 5.0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, static.Mass())

	kd := dynamics.DefaultBodyDef()
	kd.Kind = dynamics.KinematicBody
	kinematic, err := world.CreateBody(kd)
	require.NoError(t, err)
	_, err = kinematic.CreateShapeFixture(shapes.NewBox(1.0, 1.0), 5.0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, kinematic.Mass())
	assert.Equal(t, 0.0, kinematic.Inertia())

	bd := dynamics.DefaultBodyDef()
	bd.Kind = dynamics.DynamicBody
	dynamic, err := world.CreateBody(bd)
	require.NoError(t, err)
	_, err = dynamic.CreateShapeFixture(shapes.NewBox(1.0, 1.0), 0.0)
	require.NoError(t, err)

	// A dynamic body with no massive fixtures defaults to unit mass.
	dynamic.ResetMassData()
	assert.Equal(t, 1.0, dynamic.Mass())

	_, err = dynamic.CreateShapeFixture(shapes.NewBox(1.0, 1.0), 2.0)
	require.NoError(t, err)
	assert.InDelta(t, 8.0, dynamic.Mass(), 1e-9)
}

func TestBodyCapacity(t *testing.T) {
	def := dynamics.DefaultWorldDef()
	def.MaxBodies = 1
	world := dynamics.NewWorld(def)

	_, err := world.CreateBody(dynamics.DefaultBodyDef())
	require.NoError(t, err)

	_, err = world.CreateBody(dynamics.DefaultBodyDef())
	assert.ErrorIs(t, err, dynamics.ErrCapacity)
}

func TestStaleHandles(t *testing.T) {
	world := dynamics.NewWorld(dynamics.DefaultWorldDef())

	body, err := world.CreateBody(dynamics.DefaultBodyDef())
	require.NoError(t, err)
	id := body.ID()

	got, ok := world.Body(id)
	require.True(t, ok)
	assert.Same(t, body, got)

	require.NoError(t, world.DestroyBody(id))

	_, ok = world.Body(id)
	assert.False(t, ok)
	assert.ErrorIs(t, world.DestroyBody(id), dynamics.ErrStaleHandle)
}

func TestInvalidStepDt(t *testing.T) {
	world := dynamics.NewWorld(dynamics.DefaultWorldDef())

	conf := dynamics.DefaultStepConf()
	conf.Dt = math.NaN()
	_, err := world.Step(conf)
	assert.ErrorIs(t, err, dynamics.ErrInvalid)

	conf.Dt = -1.0
	_, err = world.Step(conf)
	assert.ErrorIs(t, err, dynamics.ErrInvalid)
}

// stepListener adapts funcs to ContactListener; nil funcs are no-ops.
type stepListener struct {
	begin     func(*dynamics.Contact)
	end       func(*dynamics.Contact)
	postSolve func(*dynamics.Contact, *dynamics.ContactImpulse)
}

func (l *stepListener) BeginContact(c *dynamics.Contact) {
	if l.begin != nil {
		l.begin(c)
	}
}

func (l *stepListener) EndContact(c *dynamics.Contact) {
	if l.end != nil {
		l.end(c)
	}
}

func (l *stepListener) PreSolve(c *dynamics.Contact, old *collide.Manifold) {}

func (l *stepListener) PostSolve(c *dynamics.Contact, impulse *dynamics.ContactImpulse) {
	if l.postSolve != nil {
		l.postSolve(c, impulse)
	}
}

func TestLockedWorldAndDefer(t *testing.T) {
	world := dynamics.NewWorld(dynamics.DefaultWorldDef())

	groundDef := dynamics.DefaultBodyDef()
	ground, err := world.CreateBody(groundDef)
	require.NoError(t, err)
	_, err = ground.CreateShapeFixture(shapes.NewBox(10.0, 0.5), 0.0)
	require.NoError(t, err)

	boxDef := dynamics.DefaultBodyDef()
	boxDef.Kind = dynamics.DynamicBody
	boxDef.Position = geom.Vec2{0.0, 1.0}
	box, err := world.CreateBody(boxDef)
	require.NoError(t, err)
	_, err = box.CreateShapeFixture(shapes.NewBox(0.5, 0.5), 1.0)
	require.NoError(t, err)

	var lockedErr error
	deferRan := false
	world.SetContactListener(&stepListener{
		begin: func(c *dynamics.Contact) {
			_, lockedErr = world.CreateBody(dynamics.DefaultBodyDef())
			world.Defer(func(w *dynamics.World) {
				_, err := w.CreateBody(dynamics.DefaultBodyDef())
				deferRan = err == nil
			})
		},
	})

	conf := dynamics.DefaultStepConf()
	for i := 0; i < 120 && lockedErr == nil; i++ {
		_, err := world.Step(conf)
		require.NoError(t, err)
	}

	assert.ErrorIs(t, lockedErr, dynamics.ErrLocked)
	assert.True(t, deferRan, "deferred mutation should run after the step")
	assert.Equal(t, 3, world.BodyCount())
}

func TestSensorFiresButDoesNotCollide(t *testing.T) {
	world := dynamics.NewWorld(dynamics.DefaultWorldDef())

	sensorDef := dynamics.DefaultBodyDef()
	sensorBody, err := world.CreateBody(sensorDef)
	require.NoError(t, err)

	fd := dynamics.DefaultFixtureDef()
	fd.Shape = shapes.NewBox(5.0, 0.5)
	fd.Sensor = true
	_, err = sensorBody.CreateFixture(fd)
	require.NoError(t, err)

	ballDef := dynamics.DefaultBodyDef()
	ballDef.Kind = dynamics.DynamicBody
	ballDef.Position = geom.Vec2{0.0, 3.0}
	ball, err := world.CreateBody(ballDef)
	require.NoError(t, err)
	_, err = ball.CreateShapeFixture(shapes.NewCircle(0.25), 1.0)
	require.NoError(t, err)

	began := false
	solved := false
	world.SetContactListener(&stepListener{
		begin:     func(c *dynamics.Contact) { began = true },
		postSolve: func(c *dynamics.Contact, impulse *dynamics.ContactImpulse) { solved = true },
	})

	conf := dynamics.DefaultStepConf()
	for i := 0; i < 180; i++ {
		_, err := world.Step(conf)
		require.NoError(t, err)
	}

	assert.True(t, began, "sensor overlap should report BeginContact")
	assert.False(t, solved, "sensor contacts must not be solved")
	assert.Less(t, ball.Position()[1], -1.0, "body should fall through the sensor")
}

func TestRestitutionBelowThreshold(t *testing.T) {
	world := dynamics.NewWorld(dynamics.DefaultWorldDef())

	ground, err := world.CreateBody(dynamics.DefaultBodyDef())
	require.NoError(t, err)
	gf := dynamics.DefaultFixtureDef()
	gf.Shape = shapes.NewBox(10.0, 0.5)
	gf.Restitution = 1.0
	_, err = ground.CreateFixture(gf)
	require.NoError(t, err)

	// Dropped from just above rest: impact speed stays below the
	// restitution velocity threshold, so the ball must not bounce.
	ballDef := dynamics.DefaultBodyDef()
	ballDef.Kind = dynamics.DynamicBody
	ballDef.Position = geom.Vec2{0.0, 0.76}
	ball, err := world.CreateBody(ballDef)
	require.NoError(t, err)
	bf := dynamics.DefaultFixtureDef()
	bf.Shape = shapes.NewCircle(0.25)
	bf.Density = 1.0
	bf.Restitution = 1.0
	_, err = ball.CreateFixture(bf)
	require.NoError(t, err)

	conf := dynamics.DefaultStepConf()
	maxY := 0.0
	for i := 0; i < 120; i++ {
		_, err := world.Step(conf)
		require.NoError(t, err)
		if i > 30 {
			maxY = math.Max(maxY, ball.Position()[1])
		}
	}

	assert.Less(t, maxY, 0.80, "sub-threshold impact must not rebound")
}

func TestRestingContactWarmStart(t *testing.T) {
	world := dynamics.NewWorld(dynamics.DefaultWorldDef())

	ground, err := world.CreateBody(dynamics.DefaultBodyDef())
	require.NoError(t, err)
	_, err = ground.CreateShapeFixture(shapes.NewBox(10.0, 0.5), 0.0)
	require.NoError(t, err)

	boxDef := dynamics.DefaultBodyDef()
	boxDef.Kind = dynamics.DynamicBody
	boxDef.Position = geom.Vec2{0.0, 1.01}
	box, err := world.CreateBody(boxDef)
	require.NoError(t, err)
	_, err = box.CreateShapeFixture(shapes.NewBox(0.5, 0.5), 1.0)
	require.NoError(t, err)

	conf := dynamics.DefaultStepConf()
	conf.AllowSleep = false
	for i := 0; i < 60; i++ {
		_, err := world.Step(conf)
		require.NoError(t, err)
	}

	found := false
	world.EachContact(func(c *dynamics.Contact) bool {
		if !c.IsTouching() {
			return true
		}
		m := c.Manifold()
		require.Greater(t, m.PointCount, 0)
		for i := 0; i < m.PointCount; i++ {
			assert.Greater(t, m.Points[i].NormalImpulse, 0.0,
				"resting contact should accumulate normal impulse")
		}
		found = true
		return true
	})
	assert.True(t, found, "expected a touching contact")
}

func TestBulletDoesNotTunnel(t *testing.T) {
	world := dynamics.NewWorld(dynamics.DefaultWorldDef())

	wallDef := dynamics.DefaultBodyDef()
	wall, err := world.CreateBody(wallDef)
	require.NoError(t, err)
	_, err = wall.CreateShapeFixture(shapes.NewBox(0.1, 10.0), 0.0)
	require.NoError(t, err)

	bulletDef := dynamics.DefaultBodyDef()
	bulletDef.Kind = dynamics.DynamicBody
	bulletDef.Position = geom.Vec2{-10.0, 0.0}
	bulletDef.LinearVelocity = geom.Vec2{200.0, 0.0}
	bulletDef.Bullet = true
	bulletDef.GravityScale = 0.0
	bullet, err := world.CreateBody(bulletDef)
	require.NoError(t, err)
	_, err = bullet.CreateShapeFixture(shapes.NewCircle(0.1), 1.0)
	require.NoError(t, err)

	conf := dynamics.DefaultStepConf()
	for i := 0; i < 30; i++ {
		_, err := world.Step(conf)
		require.NoError(t, err)
	}

	assert.Less(t, bullet.Position()[0], 0.0, "bullet must stop at the wall")
}

func TestQueryAABBAndRayCast(t *testing.T) {
	world := dynamics.NewWorld(dynamics.DefaultWorldDef())

	for i := 0; i < 4; i++ {
		bd := dynamics.DefaultBodyDef()
		bd.Position = geom.Vec2{float64(i) * 5.0, 0.0}
		body, err := world.CreateBody(bd)
		require.NoError(t, err)
		_, err = body.CreateShapeFixture(shapes.NewBox(1.0, 1.0), 0.0)
		require.NoError(t, err)
	}

	count := 0
	world.QueryAABB(geom.AABB{
		Lower: geom.Vec2{-2.0, -2.0}, Upper: geom.Vec2{7.0, 2.0},
	}, func(f *dynamics.Fixture) bool {
		count++
		return true
	})
	assert.Equal(t, 2, count)

	var nearest *dynamics.Fixture
	fraction := 1.0
	world.RayCast(func(f *dynamics.Fixture, point, normal geom.Vec2, f64 float64) float64 {
		nearest = f
		fraction = f64
		return f64
	}, geom.Vec2{-10.0, 0.0}, geom.Vec2{20.0, 0.0})

	require.NotNil(t, nearest)
	assert.InDelta(t, 0.0, nearest.Body().Position()[0], 1e-9)
	// First hit is the near face of the box at the origin, x = -1.
	assert.InDelta(t, 0.3, fraction, 1e-9)
}

func TestDestroyBodyCascades(t *testing.T) {
	world := dynamics.NewWorld(dynamics.DefaultWorldDef())

	a, err := world.CreateBody(dynamics.DefaultBodyDef())
	require.NoError(t, err)
	_, err = a.CreateShapeFixture(shapes.NewBox(1.0, 1.0), 0.0)
	require.NoError(t, err)

	bd := dynamics.DefaultBodyDef()
	bd.Kind = dynamics.DynamicBody
	bd.Position = geom.Vec2{0.0, 3.0}
	b, err := world.CreateBody(bd)
	require.NoError(t, err)
	_, err = b.CreateShapeFixture(shapes.NewBox(0.5, 0.5), 1.0)
	require.NoError(t, err)

	def := dynamics.DefaultDistanceJointDef()
	def.Initialize(a, b, a.Position(), b.Position())
	joint, err := world.CreateJoint(&def)
	require.NoError(t, err)

	require.NoError(t, world.DestroyBody(b.ID()))

	assert.Equal(t, 1, world.BodyCount())
	assert.Equal(t, 0, world.JointCount())
	_, ok := world.Joint(joint.ID())
	assert.False(t, ok)
	assert.Equal(t, 1, world.ProxyCount())
}

func TestConfiguredSlopIsConsumed(t *testing.T) {
	conf := dynamics.DefaultStepConf()
	assert.Equal(t, geom.LinearSlop, conf.LinearSlop)
	assert.Equal(t, geom.AngularSlop, conf.AngularSlop)
	assert.Equal(t, 50, conf.MaxTOIRootIterations)

	// A tenfold slop lets overlapping boxes come to rest far deeper than
	// the default tolerance would ever allow.
	def := dynamics.DefaultWorldDef()
	def.Gravity = geom.Vec2{}
	world := dynamics.NewWorld(def)

	var bodies []*dynamics.Body
	for _, x := range []float64{0.0, 0.5} {
		bd := dynamics.DefaultBodyDef()
		bd.Kind = dynamics.DynamicBody
		bd.Position = geom.Vec2{x, 0.0}
		body, err := world.CreateBody(bd)
		require.NoError(t, err)
		_, err = body.CreateShapeFixture(shapes.NewBox(0.5, 0.5), 1.0)
		require.NoError(t, err)
		bodies = append(bodies, body)
	}

	conf.AllowSleep = false
	conf.LinearSlop = 10.0 * geom.LinearSlop
	for i := 0; i < 120; i++ {
		_, err := world.Step(conf)
		require.NoError(t, err)
	}

	gap := math.Abs(bodies[1].Position()[0]-bodies[0].Position()[0]) - 1.0
	assert.Less(t, gap, -2.0*geom.LinearSlop)
	assert.GreaterOrEqual(t, gap, -2.0*conf.LinearSlop)
}

func TestSubStepCapExhaustionIsReported(t *testing.T) {
	run := func(maxSubSteps int) int {
		world := dynamics.NewWorld(dynamics.DefaultWorldDef())

		wall, err := world.CreateBody(dynamics.DefaultBodyDef())
		require.NoError(t, err)
		_, err = wall.CreateShapeFixture(shapes.NewBox(0.1, 10.0), 0.0)
		require.NoError(t, err)

		bulletDef := dynamics.DefaultBodyDef()
		bulletDef.Kind = dynamics.DynamicBody
		bulletDef.Position = geom.Vec2{-10.0, 0.0}
		bulletDef.LinearVelocity = geom.Vec2{200.0, 0.0}
		bulletDef.Bullet = true
		bulletDef.GravityScale = 0.0
		bullet, err := world.CreateBody(bulletDef)
		require.NoError(t, err)
		_, err = bullet.CreateShapeFixture(shapes.NewCircle(0.1), 1.0)
		require.NoError(t, err)

		conf := dynamics.DefaultStepConf()
		conf.MaxSubSteps = maxSubSteps
		exhausted := 0
		for i := 0; i < 30; i++ {
			stats, err := world.Step(conf)
			require.NoError(t, err)
			exhausted += stats.TOI.CapExceeded
		}
		return exhausted
	}

	// A zero sub-step budget drops the impact pair and reports it.
	assert.Greater(t, run(0), 0)

	// The default budget resolves the impact without exhaustion.
	assert.Equal(t, 0, run(dynamics.DefaultStepConf().MaxSubSteps))
}

func TestContactCapacityRejectsPairs(t *testing.T) {
	def := dynamics.DefaultWorldDef()
	def.Gravity = geom.Vec2{}
	def.MaxContacts = 1
	world := dynamics.NewWorld(def)

	// Three overlapping boxes in a row offer more pairs than the cap.
	for _, x := range []float64{0.0, 0.6, 1.2} {
		bd := dynamics.DefaultBodyDef()
		bd.Kind = dynamics.DynamicBody
		bd.Position = geom.Vec2{x, 0.0}
		body, err := world.CreateBody(bd)
		require.NoError(t, err)
		_, err = body.CreateShapeFixture(shapes.NewBox(0.5, 0.5), 1.0)
		require.NoError(t, err)
	}

	stats, err := world.Step(dynamics.DefaultStepConf())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Pre.Added)
	assert.GreaterOrEqual(t, stats.Pre.Rejected, 1)
	assert.Equal(t, 1, world.ContactCount())
}
