package dynamics

import (
	"github.com/veloxphys/velox2d/collide"
)

// A Contact manages the narrow-phase state of one overlapping fixture pair
// (one pair per chain child). A contact exists for every overlapping
// broad-phase AABB that passes filtering, so a live contact may carry zero
// manifold points.
type Contact struct {
	id ContactID

	// seq orders contacts by creation; it breaks ties between equal
	// minimum times of impact so sub-step order is reproducible.
	seq uint64

	onIsland   bool
	touching   bool
	enabled    bool
	needFilter bool
	bulletHit  bool
	hasTOI     bool

	fixtureA *Fixture
	fixtureB *Fixture
	indexA   int
	indexB   int

	manifold collide.Manifold

	toiCount int
	toi      float64

	friction     float64
	restitution  float64
	tangentSpeed float64
}

func newContact(fixtureA *Fixture, indexA int, fixtureB *Fixture, indexB int) *Contact {
	// Order the pair canonically for the dispatch table.
	flip, ok := collide.Registered(fixtureA.shape.Kind(), fixtureB.shape.Kind())
	if !ok {
		return nil
	}
	if flip {
		fixtureA, fixtureB = fixtureB, fixtureA
		indexA, indexB = indexB, indexA
	}

	return &Contact{
		enabled:     true,
		fixtureA:    fixtureA,
		fixtureB:    fixtureB,
		indexA:      indexA,
		indexB:      indexB,
		friction:    mixFriction(fixtureA.friction, fixtureB.friction),
		restitution: mixRestitution(fixtureA.restitution, fixtureB.restitution),
	}
}

// ID returns the contact's handle.
func (c *Contact) ID() ContactID { return c.id }

// Manifold returns the contact manifold in local coordinates. Modify it
// only from PreSolve.
func (c *Contact) Manifold() *collide.Manifold { return &c.manifold }

// WorldManifold computes the manifold in world coordinates.
func (c *Contact) WorldManifold() collide.WorldManifold {
	bodyA := c.fixtureA.body
	bodyB := c.fixtureB.body
	var wm collide.WorldManifold
	wm.Initialize(&c.manifold, bodyA.xf, c.fixtureA.shape.Radius(), bodyB.xf, c.fixtureB.shape.Radius())
	return wm
}

// IsTouching reports whether the shapes are touching.
func (c *Contact) IsTouching() bool { return c.touching }

// SetEnabled disables or re-enables the contact for the current step only;
// the flag is reset when the contact is next updated. Intended for PreSolve.
func (c *Contact) SetEnabled(flag bool) { c.enabled = flag }

func (c *Contact) IsEnabled() bool { return c.enabled }

func (c *Contact) FixtureA() *Fixture { return c.fixtureA }
func (c *Contact) FixtureB() *Fixture { return c.fixtureB }

// ChildIndexA returns the chain child of fixture A, 0 for one-child shapes.
func (c *Contact) ChildIndexA() int { return c.indexA }
func (c *Contact) ChildIndexB() int { return c.indexB }

// Friction returns the mixed friction coefficient.
func (c *Contact) Friction() float64 { return c.friction }

// SetFriction overrides the mixed friction until ResetFriction.
func (c *Contact) SetFriction(friction float64) { c.friction = friction }

// ResetFriction restores the geometric-mean mix of the fixtures' friction.
func (c *Contact) ResetFriction() {
	c.friction = mixFriction(c.fixtureA.friction, c.fixtureB.friction)
}

func (c *Contact) Restitution() float64 { return c.restitution }

func (c *Contact) SetRestitution(restitution float64) { c.restitution = restitution }

// ResetRestitution restores the max mix of the fixtures' restitution.
func (c *Contact) ResetRestitution() {
	c.restitution = mixRestitution(c.fixtureA.restitution, c.fixtureB.restitution)
}

// TangentSpeed is the desired surface speed along the tangent, in m/s, for
// conveyor-type contacts.
func (c *Contact) TangentSpeed() float64 { return c.tangentSpeed }

func (c *Contact) SetTangentSpeed(speed float64) { c.tangentSpeed = speed }

// flagForFiltering marks the contact for a filter re-check next step.
func (c *Contact) flagForFiltering() { c.needFilter = true }

// update refreshes the manifold and touching state, warm-starting impulses
// from matching feature pairs. Fixture AABBs are not assumed to overlap.
func (c *Contact) update(listener ContactListener) {
	oldManifold := c.manifold

	// Re-enable; PreSolve may disable again.
	c.enabled = true

	wasTouching := c.touching
	touching := false

	sensor := c.fixtureA.sensor || c.fixtureB.sensor

	bodyA := c.fixtureA.body
	bodyB := c.fixtureB.body
	xfA := bodyA.xf
	xfB := bodyB.xf

	if sensor {
		touching = collide.TestOverlap(c.fixtureA.shape, c.indexA, c.fixtureB.shape, c.indexB, xfA, xfB)

		// Sensors don't generate manifolds.
		c.manifold.PointCount = 0
	} else {
		collide.CollideShapes(&c.manifold, c.fixtureA.shape, c.indexA, xfA, c.fixtureB.shape, xfB)
		touching = c.manifold.PointCount > 0

		// Match old feature pairs to the new manifold and carry the
		// stored impulses over to warm start the solver.
		for i := 0; i < c.manifold.PointCount; i++ {
			mp2 := &c.manifold.Points[i]
			mp2.NormalImpulse = 0.0
			mp2.TangentImpulse = 0.0

			for j := 0; j < oldManifold.PointCount; j++ {
				mp1 := &oldManifold.Points[j]
				if mp1.Feature == mp2.Feature {
					mp2.NormalImpulse = mp1.NormalImpulse
					mp2.TangentImpulse = mp1.TangentImpulse
					break
				}
			}
		}

		if touching != wasTouching {
			bodyA.SetAwake(true)
			bodyB.SetAwake(true)
		}
	}

	c.touching = touching

	if listener != nil {
		if !wasTouching && touching {
			listener.BeginContact(c)
		}
		if wasTouching && !touching {
			listener.EndContact(c)
		}
		if !sensor && touching {
			listener.PreSolve(c, &oldManifold)
		}
	}
}
