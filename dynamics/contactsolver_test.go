package dynamics

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veloxphys/velox2d/geom"
	"github.com/veloxphys/velox2d/shapes"
)

// restingContact settles a box on the ground and returns the touching
// contact, whose manifold carries accumulated impulses.
func restingContact(t *testing.T) (*World, *Contact) {
	t.Helper()

	world := NewWorld(DefaultWorldDef())

	groundDef := DefaultBodyDef()
	groundDef.Position = geom.Vec2{0.0, -0.5}
	ground, err := world.CreateBody(groundDef)
	require.NoError(t, err)
	_, err = ground.CreateShapeFixture(shapes.NewBox(10.0, 0.5), 0.0)
	require.NoError(t, err)

	boxDef := DefaultBodyDef()
	boxDef.Kind = DynamicBody
	boxDef.Position = geom.Vec2{0.0, 0.5}
	box, err := world.CreateBody(boxDef)
	require.NoError(t, err)
	_, err = box.CreateShapeFixture(shapes.NewBox(0.5, 0.5), 1.0)
	require.NoError(t, err)

	conf := DefaultStepConf()
	conf.AllowSleep = false
	for i := 0; i < 60; i++ {
		_, err := world.Step(conf)
		require.NoError(t, err)
	}

	var contact *Contact
	world.contactManager.each(func(c *Contact) bool {
		if c.touching {
			contact = c
		}
		return true
	})
	require.NotNil(t, contact)
	require.Greater(t, contact.manifold.Points[0].NormalImpulse, 0.0)
	return world, contact
}

// Re-stepping with a different dt carries the stored impulses into the new
// solver scaled by dt * invDt0.
func TestWarmStartImpulseScaling(t *testing.T) {
	_, contact := restingContact(t)

	bodyA := contact.fixtureA.body
	bodyB := contact.fixtureB.body
	bodyA.islandIndex = 0
	bodyB.islandIndex = 1

	conf := DefaultStepConf()
	def := contactSolverDef{
		step: timeStep{
			dt:           conf.Dt,
			invDt:        1.0 / conf.Dt,
			dtRatio:      0.5,
			velIters:     conf.VelocityIterations,
			posIters:     conf.PositionIterations,
			warmStarting: true,
		},
		conf:     &conf,
		contacts: []*Contact{contact},
		positions: []position{
			{c: bodyA.sweep.C, a: bodyA.sweep.A},
			{c: bodyB.sweep.C, a: bodyB.sweep.A},
		},
		velocities: []velocity{
			{v: bodyA.linearVelocity, w: bodyA.angularVelocity},
			{v: bodyB.linearVelocity, w: bodyB.angularVelocity},
		},
	}

	solver := newContactSolver(&def)
	vc := &solver.velConstr[0]
	require.Equal(t, contact.manifold.PointCount, vc.pointCount)
	for j := 0; j < vc.pointCount; j++ {
		cp := &contact.manifold.Points[j]
		require.Equal(t, 0.5*cp.NormalImpulse, vc.points[j].normalImpulse)
		require.Equal(t, 0.5*cp.TangentImpulse, vc.points[j].tangentImpulse)
	}

	// With warm starting off the carried impulses are discarded.
	def.step.warmStarting = false
	cold := newContactSolver(&def)
	for j := 0; j < cold.velConstr[0].pointCount; j++ {
		require.Zero(t, cold.velConstr[0].points[j].normalImpulse)
		require.Zero(t, cold.velConstr[0].points[j].tangentImpulse)
	}
}
