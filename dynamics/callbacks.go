package dynamics

import (
	"math"

	"github.com/veloxphys/velox2d/collide"
	"github.com/veloxphys/velox2d/geom"
)

// DestructionListener is notified when fixtures or joints are destroyed
// implicitly, as part of a body's destruction cascade.
type DestructionListener interface {
	SayGoodbyeFixture(fixture *Fixture)
	SayGoodbyeJoint(joint Joint)
}

// ContactFilter decides whether two fixtures may produce a contact. It is
// consulted when pairs form and again when a fixture is re-filtered.
type ContactFilter interface {
	ShouldCollide(fixtureA, fixtureB *Fixture) bool
}

// defaultFilter implements the category/mask/group policy: a shared nonzero
// group index decides outright, otherwise both masks must accept.
type defaultFilter struct{}

func (defaultFilter) ShouldCollide(fixtureA, fixtureB *Fixture) bool {
	fa := fixtureA.FilterData()
	fb := fixtureB.FilterData()

	if fa.Group == fb.Group && fa.Group != 0 {
		return fa.Group > 0
	}
	return fa.Mask&fb.Category != 0 && fa.Category&fb.Mask != 0
}

// ContactImpulse reports solver impulses, one entry per manifold point.
// Impulses are reported instead of forces because sub-step forces can grow
// without bound for rigid collisions.
type ContactImpulse struct {
	NormalImpulses  [collide.MaxManifoldPoints]float64
	TangentImpulses [collide.MaxManifoldPoints]float64
	Count           int
}

// ContactListener observes the contact lifecycle. BeginContact/EndContact
// fire on touch transitions (sensors included); PreSolve runs before the
// solver for non-sensor touching contacts and may disable the contact;
// PostSolve reports impulses for solved contacts.
//
// Listeners must not create or destroy bodies, fixtures or joints directly;
// the world is locked during callbacks and such calls return ErrLocked.
// Use World.Defer to queue mutations for the end of the step.
type ContactListener interface {
	BeginContact(contact *Contact)
	EndContact(contact *Contact)
	PreSolve(contact *Contact, oldManifold *collide.Manifold)
	PostSolve(contact *Contact, impulse *ContactImpulse)
}

// QueryCallback is invoked per fixture whose AABB overlaps a world query;
// return false to stop.
type QueryCallback func(fixture *Fixture) bool

// RayCastCallback is invoked per fixture hit by a world ray cast.
// The return value steers the traversal: -1 ignores the hit, 0 terminates,
// a fraction clips the ray (1 leaves it unclipped).
type RayCastCallback func(fixture *Fixture, point, normal geom.Vec2, fraction float64) float64

// mixFriction lets either fixture drive friction toward zero, so anything
// slides on ice.
func mixFriction(friction1, friction2 float64) float64 {
	return math.Sqrt(friction1 * friction2)
}

// mixRestitution lets anything bounce off an elastic surface.
func mixRestitution(restitution1, restitution2 float64) float64 {
	return math.Max(restitution1, restitution2)
}
