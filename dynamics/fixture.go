package dynamics

import (
	"fmt"
	"io"

	"github.com/veloxphys/velox2d/collide"
	"github.com/veloxphys/velox2d/geom"
	"github.com/veloxphys/velox2d/shapes"
)

// Filter holds contact filtering data. Nonzero equal group indices always
// win over the category/mask test: a positive group always collides, a
// negative one never does.
type Filter struct {
	// Category is the bit(s) this fixture belongs to.
	Category uint16
	// Mask states the categories this fixture accepts for collision.
	Mask uint16
	// Group overrides the mask test for fixtures sharing the same nonzero
	// group index.
	Group int16
}

// DefaultFilter collides with everything.
func DefaultFilter() Filter {
	return Filter{Category: 0x0001, Mask: 0xFFFF}
}

// FixtureDef describes a fixture to attach to a body. Defs may be reused;
// the shape is referenced, not copied, and must not be mutated afterwards.
type FixtureDef struct {
	Shape       shapes.Shape
	Friction    float64
	Restitution float64
	Density     float64
	Sensor      bool
	Filter      Filter
	UserData    any
}

// DefaultFixtureDef returns a def with conventional material values; the
// shape must still be set.
func DefaultFixtureDef() FixtureDef {
	return FixtureDef{
		Friction: 0.2,
		Filter:   DefaultFilter(),
	}
}

// fixtureProxy ties one shape child to a broad-phase proxy.
type fixtureProxy struct {
	aabb       geom.AABB
	fixture    *Fixture
	childIndex int
	proxyID    int
}

// A Fixture attaches a shape to a body, carrying the non-geometric material
// and filtering state. Fixtures are created through Body.CreateFixture and
// live exactly as long as their body does.
type Fixture struct {
	body *Body

	shape shapes.Shape

	density     float64
	friction    float64
	restitution float64

	filter Filter
	sensor bool

	proxies []fixtureProxy

	userData any
}

// Shape returns the attached shape. Mutating it does not update the
// broad-phase; treat it as read-only.
func (f *Fixture) Shape() shapes.Shape { return f.shape }

// Body returns the owning body.
func (f *Fixture) Body() *Body { return f.body }

// IsSensor reports whether the fixture only senses overlap.
func (f *Fixture) IsSensor() bool { return f.sensor }

// SetSensor toggles sensing; the body is woken so contacts refresh.
func (f *Fixture) SetSensor(sensor bool) {
	if sensor != f.sensor {
		f.body.SetAwake(true)
		f.sensor = sensor
	}
}

func (f *Fixture) FilterData() Filter { return f.filter }

// SetFilterData replaces the filter and re-flags associated contacts so the
// new filter is applied on the next step.
func (f *Fixture) SetFilterData(filter Filter) {
	f.filter = filter
	f.Refilter()
}

// Refilter marks every contact involving this fixture for re-filtering and
// touches its proxies so new pairs can form.
func (f *Fixture) Refilter() {
	body := f.body
	if body == nil {
		return
	}

	for _, cid := range body.contacts {
		c := body.world.contactManager.contact(cid)
		if c == nil {
			continue
		}
		if c.fixtureA == f || c.fixtureB == f {
			c.flagForFiltering()
		}
	}

	bp := body.world.contactManager.broadPhase
	for i := range f.proxies {
		bp.TouchProxy(f.proxies[i].proxyID)
	}
}

func (f *Fixture) Density() float64 { return f.density }

// SetDensity stores a new density; call Body.ResetMassData to apply it.
func (f *Fixture) SetDensity(density float64) {
	f.density = density
}

func (f *Fixture) Friction() float64 { return f.friction }

// SetFriction affects only new contact solves, not existing ones.
func (f *Fixture) SetFriction(friction float64) { f.friction = friction }

func (f *Fixture) Restitution() float64 { return f.restitution }

func (f *Fixture) SetRestitution(restitution float64) { f.restitution = restitution }

func (f *Fixture) UserData() any        { return f.userData }
func (f *Fixture) SetUserData(data any) { f.userData = data }

// TestPoint checks containment of a world point.
func (f *Fixture) TestPoint(p geom.Vec2) bool {
	return f.shape.TestPoint(f.body.xf, p)
}

// RayCast casts against one child of the shape in world space.
func (f *Fixture) RayCast(input geom.RayCastInput, childIndex int) (geom.RayCastOutput, bool) {
	return f.shape.RayCast(input, f.body.xf, childIndex)
}

// MassData computes the mass data from the shape and density.
func (f *Fixture) MassData() shapes.MassData {
	return f.shape.ComputeMass(f.density)
}

// AABB returns the broad-phase (fat) box of one child.
func (f *Fixture) AABB(childIndex int) geom.AABB {
	return f.proxies[childIndex].aabb
}

func (f *Fixture) createProxies(bp *collide.BroadPhase, xf geom.Transform) {
	childCount := f.shape.ChildCount()
	f.proxies = make([]fixtureProxy, childCount)
	for i := 0; i < childCount; i++ {
		p := &f.proxies[i]
		p.aabb = f.shape.ComputeAABB(xf, i)
		p.proxyID = bp.CreateProxy(p.aabb, p)
		p.fixture = f
		p.childIndex = i
	}
}

func (f *Fixture) destroyProxies(bp *collide.BroadPhase) {
	for i := range f.proxies {
		bp.DestroyProxy(f.proxies[i].proxyID)
		f.proxies[i].proxyID = collide.NullNode
	}
	f.proxies = nil
}

// synchronize moves the proxies to cover the swept shape between two body
// transforms. The union may miss some rotation effect.
func (f *Fixture) synchronize(bp *collide.BroadPhase, xf1, xf2 geom.Transform) {
	displacement := xf2.P.Sub(xf1.P)
	for i := range f.proxies {
		p := &f.proxies[i]
		aabb1 := f.shape.ComputeAABB(xf1, p.childIndex)
		aabb2 := f.shape.ComputeAABB(xf2, p.childIndex)
		p.aabb = geom.Union(aabb1, aabb2)
		bp.MoveProxy(p.proxyID, p.aabb, displacement)
	}
}

func (f *Fixture) dump(w io.Writer, bodyIndex int) {
	fmt.Fprintf(w, "  fixture friction=%.17g restitution=%.17g density=%.17g sensor=%t filter=%04x/%04x/%d\n",
		f.friction, f.restitution, f.density, f.sensor,
		f.filter.Category, f.filter.Mask, f.filter.Group)

	switch s := f.shape.(type) {
	case *shapes.Circle:
		fmt.Fprintf(w, "    circle p=(%.17g,%.17g) r=%.17g body=%d\n", s.P[0], s.P[1], s.R, bodyIndex)
	case *shapes.Edge:
		fmt.Fprintf(w, "    edge v1=(%.17g,%.17g) v2=(%.17g,%.17g) body=%d\n", s.V1[0], s.V1[1], s.V2[0], s.V2[1], bodyIndex)
	case *shapes.Polygon:
		fmt.Fprintf(w, "    polygon count=%d body=%d\n", s.Count, bodyIndex)
		for i := 0; i < s.Count; i++ {
			fmt.Fprintf(w, "      v[%d]=(%.17g,%.17g)\n", i, s.Verts[i][0], s.Verts[i][1])
		}
	case *shapes.Chain:
		fmt.Fprintf(w, "    chain count=%d body=%d\n", len(s.Verts), bodyIndex)
		for i, v := range s.Verts {
			fmt.Fprintf(w, "      v[%d]=(%.17g,%.17g)\n", i, v[0], v[1])
		}
	}
}
