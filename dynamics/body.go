package dynamics

import (
	"fmt"
	"io"

	"github.com/veloxphys/velox2d/geom"
	"github.com/veloxphys/velox2d/shapes"
)

// BodyKind classifies how a body participates in the simulation.
type BodyKind uint8

const (
	// StaticBody has zero mass and velocity and may only be moved manually.
	StaticBody BodyKind = iota
	// KinematicBody has zero mass and a user-set velocity, moved by the
	// solver.
	KinematicBody
	// DynamicBody has positive mass and velocity driven by forces.
	DynamicBody
)

func (k BodyKind) String() string {
	switch k {
	case StaticBody:
		return "static"
	case KinematicBody:
		return "kinematic"
	case DynamicBody:
		return "dynamic"
	default:
		return "unknown"
	}
}

// BodyDef holds the data needed to construct a body. Defs may be reused.
type BodyDef struct {
	Kind BodyKind

	// Position and Angle place the body origin in world space.
	Position geom.Vec2
	Angle    float64

	LinearVelocity  geom.Vec2
	AngularVelocity float64

	// LinearDamping and AngularDamping reduce velocity over time, in
	// 1/time units. Values above 1 become time-step sensitive.
	LinearDamping  float64
	AngularDamping float64

	AllowSleep    bool
	Awake         bool
	FixedRotation bool

	// Bullet marks a fast dynamic body that must not tunnel through other
	// dynamic bodies. All bodies are already kept from tunneling through
	// static and kinematic ones.
	Bullet bool

	Enabled      bool
	GravityScale float64

	UserData any
}

// DefaultBodyDef returns a static body at the origin with conventional
// defaults.
func DefaultBodyDef() BodyDef {
	return BodyDef{
		AllowSleep:   true,
		Awake:        true,
		Enabled:      true,
		GravityScale: 1.0,
	}
}

func (def *BodyDef) validate() error {
	if !geom.ValidVec(def.Position) || !geom.ValidVec(def.LinearVelocity) {
		return fmt.Errorf("%w: non-finite position or velocity", ErrInvalid)
	}
	if !geom.Valid(def.Angle) || !geom.Valid(def.AngularVelocity) {
		return fmt.Errorf("%w: non-finite angle or angular velocity", ErrInvalid)
	}
	if !geom.Valid(def.LinearDamping) || def.LinearDamping < 0.0 ||
		!geom.Valid(def.AngularDamping) || def.AngularDamping < 0.0 {
		return fmt.Errorf("%w: damping must be finite and non-negative", ErrInvalid)
	}
	return nil
}

// A Body is a rigid body. Bodies are created through World.CreateBody and
// referenced by generation-checked handles; the pointer stays valid until
// the body is destroyed.
type Body struct {
	world *World
	id    BodyID

	kind BodyKind

	// flags
	onIsland      bool
	awake         bool
	autoSleep     bool
	bullet        bool
	fixedRotation bool
	enabled       bool
	onTOIIsland   bool

	islandIndex int

	xf    geom.Transform // body origin transform
	sweep geom.Sweep     // swept motion for continuous collision

	linearVelocity  geom.Vec2
	angularVelocity float64

	force  geom.Vec2
	torque float64

	fixtures []*Fixture
	joints   []JointID
	contacts []ContactID

	mass, invMass float64

	// rotational inertia about the center of mass
	inertia, invI float64

	linearDamping  float64
	angularDamping float64
	gravityScale   float64

	sleepTime float64

	userData any
}

func newBody(def *BodyDef, world *World, id BodyID) *Body {
	b := &Body{
		world:           world,
		id:              id,
		kind:            def.Kind,
		awake:           def.Awake,
		autoSleep:       def.AllowSleep,
		bullet:          def.Bullet,
		fixedRotation:   def.FixedRotation,
		enabled:         def.Enabled,
		xf:              geom.TransformFrom(def.Position, def.Angle),
		linearVelocity:  def.LinearVelocity,
		angularVelocity: def.AngularVelocity,
		linearDamping:   def.LinearDamping,
		angularDamping:  def.AngularDamping,
		gravityScale:    def.GravityScale,
		userData:        def.UserData,
	}

	b.sweep.C0 = def.Position
	b.sweep.C = def.Position
	b.sweep.A0 = def.Angle
	b.sweep.A = def.Angle

	if b.kind == DynamicBody {
		b.mass = 1.0
		b.invMass = 1.0
	}
	return b
}

// ID returns the body's handle.
func (b *Body) ID() BodyID { return b.id }

// Kind returns the body kind.
func (b *Body) Kind() BodyKind { return b.kind }

// SetKind changes the body kind, resetting mass data and dropping existing
// contacts so they re-form under the new kind.
func (b *Body) SetKind(kind BodyKind) error {
	if b.world.IsLocked() {
		return ErrLocked
	}
	if b.kind == kind {
		return nil
	}

	b.kind = kind
	b.ResetMassData()

	if b.kind == StaticBody {
		b.linearVelocity = geom.Vec2{}
		b.angularVelocity = 0.0
		b.sweep.A0 = b.sweep.A
		b.sweep.C0 = b.sweep.C
		b.synchronizeFixtures()
	}

	b.SetAwake(true)
	b.force = geom.Vec2{}
	b.torque = 0.0

	// Drop attached contacts; they are recreated next step if still valid.
	for len(b.contacts) > 0 {
		b.world.contactManager.destroyContact(b.contacts[len(b.contacts)-1])
	}

	bp := b.world.contactManager.broadPhase
	for _, f := range b.fixtures {
		for i := range f.proxies {
			bp.TouchProxy(f.proxies[i].proxyID)
		}
	}
	return nil
}

// Transform returns the body origin transform.
func (b *Body) Transform() geom.Transform { return b.xf }

// Position returns the body origin position.
func (b *Body) Position() geom.Vec2 { return b.xf.P }

// Angle returns the current world angle in radians.
func (b *Body) Angle() float64 { return b.sweep.A }

// WorldCenter returns the world position of the center of mass.
func (b *Body) WorldCenter() geom.Vec2 { return b.sweep.C }

// LocalCenter returns the center of mass in body coordinates.
func (b *Body) LocalCenter() geom.Vec2 { return b.sweep.LocalCenter }

// SetTransform moves the body immediately. Intended for setup; teleporting
// mid-simulation bypasses the contact graph until the next step.
func (b *Body) SetTransform(position geom.Vec2, angle float64) error {
	if b.world.IsLocked() {
		return ErrLocked
	}

	b.xf = geom.TransformFrom(position, angle)

	b.sweep.C = b.xf.Apply(b.sweep.LocalCenter)
	b.sweep.A = angle
	b.sweep.C0 = b.sweep.C
	b.sweep.A0 = angle

	bp := b.world.contactManager.broadPhase
	for _, f := range b.fixtures {
		f.synchronize(bp, b.xf, b.xf)
	}
	return nil
}

func (b *Body) SetLinearVelocity(v geom.Vec2) {
	if b.kind == StaticBody {
		return
	}
	if v.Dot(v) > 0.0 {
		b.SetAwake(true)
	}
	b.linearVelocity = v
}

func (b *Body) LinearVelocity() geom.Vec2 { return b.linearVelocity }

func (b *Body) SetAngularVelocity(w float64) {
	if b.kind == StaticBody {
		return
	}
	if w*w > 0.0 {
		b.SetAwake(true)
	}
	b.angularVelocity = w
}

func (b *Body) AngularVelocity() float64 { return b.angularVelocity }

// Mass returns the body mass in kg.
func (b *Body) Mass() float64 { return b.mass }

// Inertia returns the rotational inertia about the body origin.
func (b *Body) Inertia() float64 {
	return b.inertia + b.mass*b.sweep.LocalCenter.Dot(b.sweep.LocalCenter)
}

// MassData returns mass, origin-relative inertia and local center.
func (b *Body) MassData() shapes.MassData {
	return shapes.MassData{
		Mass:   b.mass,
		I:      b.inertia + b.mass*b.sweep.LocalCenter.Dot(b.sweep.LocalCenter),
		Center: b.sweep.LocalCenter,
	}
}

// WorldPoint maps a body-local point to world space.
func (b *Body) WorldPoint(localPoint geom.Vec2) geom.Vec2 { return b.xf.Apply(localPoint) }

// WorldVector rotates a body-local vector to world space.
func (b *Body) WorldVector(localVector geom.Vec2) geom.Vec2 { return b.xf.Q.Apply(localVector) }

// LocalPoint maps a world point into body coordinates.
func (b *Body) LocalPoint(worldPoint geom.Vec2) geom.Vec2 { return b.xf.ApplyT(worldPoint) }

// LocalVector rotates a world vector into body coordinates.
func (b *Body) LocalVector(worldVector geom.Vec2) geom.Vec2 { return b.xf.Q.ApplyT(worldVector) }

// LinearVelocityFromWorldPoint returns the velocity of a world point rigidly
// attached to the body.
func (b *Body) LinearVelocityFromWorldPoint(worldPoint geom.Vec2) geom.Vec2 {
	return b.linearVelocity.Add(geom.CrossSV(b.angularVelocity, worldPoint.Sub(b.sweep.C)))
}

// LinearVelocityFromLocalPoint is LinearVelocityFromWorldPoint for a local
// point.
func (b *Body) LinearVelocityFromLocalPoint(localPoint geom.Vec2) geom.Vec2 {
	return b.LinearVelocityFromWorldPoint(b.WorldPoint(localPoint))
}

func (b *Body) LinearDamping() float64       { return b.linearDamping }
func (b *Body) SetLinearDamping(d float64)   { b.linearDamping = d }
func (b *Body) AngularDamping() float64      { return b.angularDamping }
func (b *Body) SetAngularDamping(d float64)  { b.angularDamping = d }
func (b *Body) GravityScale() float64        { return b.gravityScale }
func (b *Body) SetGravityScale(s float64)    { b.gravityScale = s }
func (b *Body) SetBullet(flag bool)          { b.bullet = flag }
func (b *Body) IsBullet() bool               { return b.bullet }
func (b *Body) UserData() any                { return b.userData }
func (b *Body) SetUserData(data any)         { b.userData = data }

// SetAwake wakes or sleeps the body. Sleeping zeroes velocity and
// accumulated force.
func (b *Body) SetAwake(flag bool) {
	b.sleepTime = 0.0
	if flag {
		b.awake = true
		return
	}
	b.awake = false
	b.linearVelocity = geom.Vec2{}
	b.angularVelocity = 0.0
	b.force = geom.Vec2{}
	b.torque = 0.0
}

func (b *Body) IsAwake() bool { return b.awake }

func (b *Body) IsEnabled() bool { return b.enabled }

func (b *Body) IsFixedRotation() bool { return b.fixedRotation }

// SetFixedRotation locks or unlocks rotation, zeroing angular velocity.
func (b *Body) SetFixedRotation(flag bool) {
	if b.fixedRotation == flag {
		return
	}
	b.fixedRotation = flag
	b.angularVelocity = 0.0
	b.ResetMassData()
}

// SetSleepingAllowed controls automatic sleeping; disallowing wakes the
// body.
func (b *Body) SetSleepingAllowed(flag bool) {
	b.autoSleep = flag
	if !flag {
		b.SetAwake(true)
	}
}

func (b *Body) IsSleepingAllowed() bool { return b.autoSleep }

// SetEnabled puts the body in or out of the simulation. Disabling destroys
// proxies and attached contacts; joints are kept but skipped by the solver.
func (b *Body) SetEnabled(flag bool) error {
	if b.world.IsLocked() {
		return ErrLocked
	}
	if flag == b.enabled {
		return nil
	}

	bp := b.world.contactManager.broadPhase
	if flag {
		b.enabled = true
		for _, f := range b.fixtures {
			f.createProxies(bp, b.xf)
		}
		// Contacts are created the next time step.
		return nil
	}

	b.enabled = false
	for _, f := range b.fixtures {
		f.destroyProxies(bp)
	}
	for len(b.contacts) > 0 {
		b.world.contactManager.destroyContact(b.contacts[len(b.contacts)-1])
	}
	return nil
}

// Fixtures returns the body's fixtures in creation order. The slice is
// owned by the body; do not mutate it.
func (b *Body) Fixtures() []*Fixture { return b.fixtures }

// Joints returns handles of joints attached to the body.
func (b *Body) Joints() []JointID { return b.joints }

// CreateFixture attaches a shape with material properties. The world must
// not be locked.
func (b *Body) CreateFixture(def FixtureDef) (*Fixture, error) {
	if b.world.IsLocked() {
		return nil, ErrLocked
	}
	if def.Shape == nil {
		return nil, fmt.Errorf("%w: fixture def has no shape", ErrInvalid)
	}
	if !geom.Valid(def.Density) || def.Density < 0.0 {
		return nil, fmt.Errorf("%w: density must be finite and non-negative", ErrInvalid)
	}

	f := &Fixture{
		body:        b,
		shape:       def.Shape,
		density:     def.Density,
		friction:    def.Friction,
		restitution: def.Restitution,
		filter:      def.Filter,
		sensor:      def.Sensor,
		userData:    def.UserData,
	}

	if b.enabled {
		f.createProxies(b.world.contactManager.broadPhase, b.xf)
	}

	b.fixtures = append(b.fixtures, f)

	if f.density > 0.0 {
		b.ResetMassData()
	}

	// New contacts are created at the start of the next step.
	b.world.newContacts = true

	return f, nil
}

// CreateShapeFixture is CreateFixture with only a shape and density; other
// material properties take their defaults.
func (b *Body) CreateShapeFixture(shape shapes.Shape, density float64) (*Fixture, error) {
	def := DefaultFixtureDef()
	def.Shape = shape
	def.Density = density
	return b.CreateFixture(def)
}

// DestroyFixture removes a fixture, destroying its proxies and any contacts
// it participates in, and resets mass data.
func (b *Body) DestroyFixture(fixture *Fixture) error {
	if b.world.IsLocked() {
		return ErrLocked
	}
	if fixture == nil || fixture.body != b {
		return fmt.Errorf("%w: fixture is not attached to this body", ErrInvalid)
	}

	found := false
	for i, f := range b.fixtures {
		if f == fixture {
			b.fixtures = append(b.fixtures[:i], b.fixtures[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: fixture is not attached to this body", ErrInvalid)
	}

	// Destroy contacts touching this fixture.
	for i := 0; i < len(b.contacts); {
		cid := b.contacts[i]
		c := b.world.contactManager.contact(cid)
		if c != nil && (c.fixtureA == fixture || c.fixtureB == fixture) {
			b.world.contactManager.destroyContact(cid)
			// destroyContact splices b.contacts; re-check index i.
			continue
		}
		i++
	}

	if b.enabled {
		fixture.destroyProxies(b.world.contactManager.broadPhase)
	}
	fixture.body = nil

	b.ResetMassData()
	return nil
}

// ApplyForce accumulates a force at a world point, waking the body if asked.
func (b *Body) ApplyForce(force, point geom.Vec2, wake bool) {
	if b.kind != DynamicBody {
		return
	}
	if wake && !b.awake {
		b.SetAwake(true)
	}
	if b.awake {
		b.force = b.force.Add(force)
		b.torque += geom.Cross(point.Sub(b.sweep.C), force)
	}
}

// ApplyForceToCenter accumulates a force at the center of mass.
func (b *Body) ApplyForceToCenter(force geom.Vec2, wake bool) {
	if b.kind != DynamicBody {
		return
	}
	if wake && !b.awake {
		b.SetAwake(true)
	}
	if b.awake {
		b.force = b.force.Add(force)
	}
}

// ApplyTorque accumulates a torque.
func (b *Body) ApplyTorque(torque float64, wake bool) {
	if b.kind != DynamicBody {
		return
	}
	if wake && !b.awake {
		b.SetAwake(true)
	}
	if b.awake {
		b.torque += torque
	}
}

// ApplyLinearImpulse changes velocity immediately at a world point.
func (b *Body) ApplyLinearImpulse(impulse, point geom.Vec2, wake bool) {
	if b.kind != DynamicBody {
		return
	}
	if wake && !b.awake {
		b.SetAwake(true)
	}
	if b.awake {
		b.linearVelocity = b.linearVelocity.Add(impulse.Mul(b.invMass))
		b.angularVelocity += b.invI * geom.Cross(point.Sub(b.sweep.C), impulse)
	}
}

// ApplyLinearImpulseToCenter changes velocity immediately at the center of
// mass.
func (b *Body) ApplyLinearImpulseToCenter(impulse geom.Vec2, wake bool) {
	if b.kind != DynamicBody {
		return
	}
	if wake && !b.awake {
		b.SetAwake(true)
	}
	if b.awake {
		b.linearVelocity = b.linearVelocity.Add(impulse.Mul(b.invMass))
	}
}

// ApplyAngularImpulse changes angular velocity immediately.
func (b *Body) ApplyAngularImpulse(impulse float64, wake bool) {
	if b.kind != DynamicBody {
		return
	}
	if wake && !b.awake {
		b.SetAwake(true)
	}
	if b.awake {
		b.angularVelocity += b.invI * impulse
	}
}

// ResetMassData recomputes mass, center and inertia from the fixtures.
// Static and kinematic bodies get zero mass; a dynamic body with no density
// is forced to mass one so the solver stays well conditioned.
func (b *Body) ResetMassData() {
	b.mass = 0.0
	b.invMass = 0.0
	b.inertia = 0.0
	b.invI = 0.0
	b.sweep.LocalCenter = geom.Vec2{}

	if b.kind == StaticBody || b.kind == KinematicBody {
		b.sweep.C0 = b.xf.P
		b.sweep.C = b.xf.P
		b.sweep.A0 = b.sweep.A
		return
	}

	localCenter := geom.Vec2{}
	for _, f := range b.fixtures {
		if f.density == 0.0 {
			continue
		}
		md := f.MassData()
		b.mass += md.Mass
		localCenter = localCenter.Add(md.Center.Mul(md.Mass))
		b.inertia += md.I
	}

	if b.mass > 0.0 {
		b.invMass = 1.0 / b.mass
		localCenter = localCenter.Mul(b.invMass)
	} else {
		b.mass = 1.0
		b.invMass = 1.0
	}

	if b.inertia > 0.0 && !b.fixedRotation {
		// Center the inertia about the center of mass.
		b.inertia -= b.mass * localCenter.Dot(localCenter)
		b.invI = 1.0 / b.inertia
	} else {
		b.inertia = 0.0
		b.invI = 0.0
	}

	oldCenter := b.sweep.C
	b.sweep.LocalCenter = localCenter
	b.sweep.C0 = b.xf.Apply(localCenter)
	b.sweep.C = b.sweep.C0

	// The center of mass moved; update its velocity.
	b.linearVelocity = b.linearVelocity.Add(
		geom.CrossSV(b.angularVelocity, b.sweep.C.Sub(oldCenter)))
}

// SetMassData overrides the computed mass properties until the next
// ResetMassData.
func (b *Body) SetMassData(md shapes.MassData) error {
	if b.world.IsLocked() {
		return ErrLocked
	}
	if b.kind != DynamicBody {
		return nil
	}

	b.invMass = 0.0
	b.inertia = 0.0
	b.invI = 0.0

	b.mass = md.Mass
	if b.mass <= 0.0 {
		b.mass = 1.0
	}
	b.invMass = 1.0 / b.mass

	if md.I > 0.0 && !b.fixedRotation {
		b.inertia = md.I - b.mass*md.Center.Dot(md.Center)
		b.invI = 1.0 / b.inertia
	}

	oldCenter := b.sweep.C
	b.sweep.LocalCenter = md.Center
	b.sweep.C0 = b.xf.Apply(md.Center)
	b.sweep.C = b.sweep.C0

	b.linearVelocity = b.linearVelocity.Add(
		geom.CrossSV(b.angularVelocity, b.sweep.C.Sub(oldCenter)))
	return nil
}

// shouldCollide applies the body-level gating: at least one body dynamic,
// and no connecting joint with collideConnected off.
func (b *Body) shouldCollide(other *Body) bool {
	if b.kind != DynamicBody && other.kind != DynamicBody {
		return false
	}
	for _, jid := range b.joints {
		j := b.world.joint(jid)
		if j == nil {
			continue
		}
		base := j.base()
		if base.bodyA == other || base.bodyB == other {
			if !base.collideConnected {
				return false
			}
		}
	}
	return true
}

// synchronizeTransform rebuilds the origin transform from the sweep's
// current end state.
func (b *Body) synchronizeTransform() {
	b.xf.Q = geom.RotFromAngle(b.sweep.A)
	b.xf.P = b.sweep.C.Sub(b.xf.Q.Apply(b.sweep.LocalCenter))
}

// advance moves the sweep start to alpha and snaps the body there. Does not
// sync the broad-phase.
func (b *Body) advance(alpha float64) {
	b.sweep.Advance(alpha)
	b.sweep.C = b.sweep.C0
	b.sweep.A = b.sweep.A0
	b.synchronizeTransform()
}

func (b *Body) synchronizeFixtures() {
	bp := b.world.contactManager.broadPhase

	if b.awake {
		xf1 := geom.Transform{Q: geom.RotFromAngle(b.sweep.A0)}
		xf1.P = b.sweep.C0.Sub(xf1.Q.Apply(b.sweep.LocalCenter))
		for _, f := range b.fixtures {
			f.synchronize(bp, xf1, b.xf)
		}
		return
	}
	for _, f := range b.fixtures {
		f.synchronize(bp, b.xf, b.xf)
	}
}

func (b *Body) removeContact(id ContactID) {
	for i, cid := range b.contacts {
		if cid == id {
			b.contacts = append(b.contacts[:i], b.contacts[i+1:]...)
			return
		}
	}
}

func (b *Body) removeJoint(id JointID) {
	for i, jid := range b.joints {
		if jid == id {
			b.joints = append(b.joints[:i], b.joints[i+1:]...)
			return
		}
	}
}

func (b *Body) dump(w io.Writer, index int) {
	fmt.Fprintf(w, "body[%d] kind=%s pos=(%.17g,%.17g) angle=%.17g\n",
		index, b.kind, b.xf.P[0], b.xf.P[1], b.sweep.A)
	fmt.Fprintf(w, "  vel=(%.17g,%.17g) w=%.17g damping=(%.17g,%.17g) gravityScale=%.17g\n",
		b.linearVelocity[0], b.linearVelocity[1], b.angularVelocity,
		b.linearDamping, b.angularDamping, b.gravityScale)
	fmt.Fprintf(w, "  allowSleep=%t awake=%t fixedRotation=%t bullet=%t enabled=%t\n",
		b.autoSleep, b.awake, b.fixedRotation, b.bullet, b.enabled)
	for _, f := range b.fixtures {
		f.dump(w, index)
	}
}
