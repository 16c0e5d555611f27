package dynamics

import (
	"fmt"
	"io"
	"math"

	"github.com/veloxphys/velox2d/collide"
	"github.com/veloxphys/velox2d/geom"
)

// WorldDef configures a new world. The capacity limits are optional; zero
// means unbounded.
type WorldDef struct {
	Gravity geom.Vec2

	// MaxBodies and MaxJoints, when positive, cap the live object counts;
	// creation beyond a cap fails with ErrCapacity.
	MaxBodies int
	MaxJoints int

	// MaxContacts, when positive, caps the live contact count. Overlapping
	// pairs arriving at the cap are rejected rather than created; the
	// per-step rejection count is reported in PreStats.Rejected.
	MaxContacts int

	// AutoClearForces zeroes accumulated forces after each step.
	AutoClearForces bool
}

// DefaultWorldDef returns earth-like gravity and no capacity limits.
func DefaultWorldDef() WorldDef {
	return WorldDef{
		Gravity:         geom.Vec2{0.0, -10.0},
		AutoClearForces: true,
	}
}

// World owns all bodies, joints and contacts of one simulation and drives
// their time evolution. A world is single-threaded: it is locked for the
// duration of Step, and structural mutation while locked fails with
// ErrLocked. Listener callbacks fire from inside Step; use Defer to queue
// mutations from them.
type World struct {
	gravity geom.Vec2

	maxBodies       int
	maxJoints       int
	autoClearForces bool

	contactManager *contactManager

	bodies slab[*Body]
	joints slab[Joint]

	locked bool

	// newContacts is set when fixtures were added outside of a step; the
	// next Step starts with a broad-phase pair refresh.
	newContacts bool

	// invDt0 is the previous step's inverse dt, for warm-start scaling.
	invDt0 float64

	destructionListener DestructionListener

	// scratch reused across steps
	island    island
	toiIsland island
	stack     []*Body
	deferred  []func(*World)
}

// NewWorld creates an empty world.
func NewWorld(def WorldDef) *World {
	return &World{
		gravity:         def.Gravity,
		maxBodies:       def.MaxBodies,
		maxJoints:       def.MaxJoints,
		autoClearForces: def.AutoClearForces,
		contactManager:  newContactManager(def.MaxContacts),
		bodies:          newSlab[*Body](),
		joints:          newSlab[Joint](),
	}
}

// IsLocked reports whether the world is in the middle of a step.
func (w *World) IsLocked() bool { return w.locked }

func (w *World) Gravity() geom.Vec2 { return w.gravity }

func (w *World) SetGravity(gravity geom.Vec2) { w.gravity = gravity }

func (w *World) AutoClearForces() bool { return w.autoClearForces }

func (w *World) SetAutoClearForces(flag bool) { w.autoClearForces = flag }

// SetDestructionListener installs the hook notified when a body's
// destruction cascade implicitly destroys fixtures or joints.
func (w *World) SetDestructionListener(listener DestructionListener) {
	w.destructionListener = listener
}

// SetContactFilter installs the pair filter; nil restores the default
// category/mask/group policy.
func (w *World) SetContactFilter(filter ContactFilter) {
	if filter == nil {
		filter = defaultFilter{}
	}
	w.contactManager.filter = filter
}

// SetContactListener installs the contact lifecycle observer.
func (w *World) SetContactListener(listener ContactListener) {
	w.contactManager.listener = listener
}

func (w *World) BodyCount() int    { return w.bodies.len() }
func (w *World) JointCount() int   { return w.joints.len() }
func (w *World) ContactCount() int { return w.contactManager.count() }

func (w *World) ProxyCount() int { return w.contactManager.broadPhase.ProxyCount() }
func (w *World) TreeHeight() int { return w.contactManager.broadPhase.TreeHeight() }

// TreeBalance returns the worst child-height difference in the broad-phase
// tree.
func (w *World) TreeBalance() int { return w.contactManager.broadPhase.TreeBalance() }

// CreateBody constructs a body from a def and returns it. The returned
// pointer stays valid until DestroyBody.
func (w *World) CreateBody(def BodyDef) (*Body, error) {
	if w.locked {
		return nil, ErrLocked
	}
	if err := def.validate(); err != nil {
		return nil, err
	}
	if w.maxBodies > 0 && w.bodies.len() >= w.maxBodies {
		return nil, fmt.Errorf("%w: world body limit %d", ErrCapacity, w.maxBodies)
	}

	idx, gen, slot := w.bodies.alloc()
	b := newBody(&def, w, BodyID{idx: idx, gen: gen})
	*slot = b
	return b, nil
}

// Body resolves a handle; ok is false once the body has been destroyed.
func (w *World) Body(id BodyID) (*Body, bool) {
	p, ok := w.bodies.get(id.idx, id.gen)
	if !ok {
		return nil, false
	}
	return *p, true
}

// DestroyBody removes a body and cascades: attached joints and contacts are
// destroyed first, then fixtures and their broad-phase proxies. The
// destruction listener is told about each implicitly destroyed fixture and
// joint.
func (w *World) DestroyBody(id BodyID) error {
	if w.locked {
		return ErrLocked
	}
	b, ok := w.Body(id)
	if !ok {
		return ErrStaleHandle
	}

	// Attached joints.
	for len(b.joints) > 0 {
		jid := b.joints[len(b.joints)-1]
		if j := w.joint(jid); j != nil && w.destructionListener != nil {
			w.destructionListener.SayGoodbyeJoint(j)
		}
		if err := w.DestroyJoint(jid); err != nil {
			// Stale adjacency entry; drop it.
			b.joints = b.joints[:len(b.joints)-1]
		}
	}

	// Attached contacts.
	for len(b.contacts) > 0 {
		w.contactManager.destroyContact(b.contacts[len(b.contacts)-1])
	}

	// Fixtures and proxies.
	for _, f := range b.fixtures {
		if w.destructionListener != nil {
			w.destructionListener.SayGoodbyeFixture(f)
		}
		if b.enabled {
			f.destroyProxies(w.contactManager.broadPhase)
		}
		f.body = nil
	}
	b.fixtures = nil
	b.world = nil

	w.bodies.release(id.idx)
	return nil
}

// CreateJoint constructs a joint from a concrete def. Creating a joint does
// not wake the bodies; a non-collide-connected joint flags any existing
// contact between them for re-filtering.
func (w *World) CreateJoint(def JointDefiner) (Joint, error) {
	if w.locked {
		return nil, ErrLocked
	}

	common := def.common()
	bodyA, _ := w.Body(common.BodyA)
	bodyB, _ := w.Body(common.BodyB)
	if err := validateJointDef(common, bodyA, bodyB); err != nil {
		return nil, err
	}
	if w.maxJoints > 0 && w.joints.len() >= w.maxJoints {
		return nil, fmt.Errorf("%w: world joint limit %d", ErrCapacity, w.maxJoints)
	}

	j, err := def.create(bodyA, bodyB)
	if err != nil {
		return nil, err
	}

	idx, gen, slot := w.joints.alloc()
	*slot = j
	j.base().id = JointID{idx: idx, gen: gen}

	bodyA.joints = append(bodyA.joints, j.ID())
	bodyB.joints = append(bodyB.joints, j.ID())

	// If the joint prevents collision, flag any contacts between the two
	// bodies for filtering at the next step.
	if !common.CollideConnected {
		w.flagContactsBetween(bodyA, bodyB)
	}

	return j, nil
}

// Joint resolves a handle; ok is false once the joint has been destroyed.
func (w *World) Joint(id JointID) (Joint, bool) {
	p, ok := w.joints.get(id.idx, id.gen)
	if !ok {
		return nil, false
	}
	return *p, true
}

func (w *World) joint(id JointID) Joint {
	j, _ := w.Joint(id)
	return j
}

// DestroyJoint removes a joint, waking both bodies. Contacts between the
// bodies are flagged for re-filtering since the collide-connected override
// is gone.
func (w *World) DestroyJoint(id JointID) error {
	if w.locked {
		return ErrLocked
	}
	j, ok := w.Joint(id)
	if !ok {
		return ErrStaleHandle
	}

	base := j.base()
	bodyA := base.bodyA
	bodyB := base.bodyB
	collideConnected := base.collideConnected

	bodyA.SetAwake(true)
	bodyB.SetAwake(true)

	bodyA.removeJoint(id)
	bodyB.removeJoint(id)

	w.joints.release(id.idx)

	if !collideConnected {
		w.flagContactsBetween(bodyA, bodyB)
	}
	return nil
}

func (w *World) flagContactsBetween(bodyA, bodyB *Body) {
	for _, cid := range bodyB.contacts {
		c := w.contactManager.contact(cid)
		if c == nil {
			continue
		}
		if c.fixtureA.body == bodyA || c.fixtureB.body == bodyA {
			c.flagForFiltering()
		}
	}
}

// EachBody visits live bodies in stable index order; return false to stop.
func (w *World) EachBody(fn func(b *Body) bool) {
	w.bodies.each(func(_ int32, bp **Body) bool {
		return fn(*bp)
	})
}

// EachJoint visits live joints in stable index order.
func (w *World) EachJoint(fn func(j Joint) bool) {
	w.joints.each(func(_ int32, jp *Joint) bool {
		return fn(*jp)
	})
}

// EachContact visits live contacts in stable index order. Contacts are
// owned by the world; pointers must not be held across steps.
func (w *World) EachContact(fn func(c *Contact) bool) {
	w.contactManager.each(fn)
}

// Defer queues fn to run as soon as the current step unlocks the world.
// Outside of a step it runs immediately. This is the sanctioned way for
// listener callbacks to mutate the world.
func (w *World) Defer(fn func(w *World)) {
	if !w.locked {
		fn(w)
		return
	}
	w.deferred = append(w.deferred, fn)
}

// ClearForces zeroes every body's accumulated force and torque. Called
// automatically after each step unless AutoClearForces is off.
func (w *World) ClearForces() {
	w.bodies.each(func(_ int32, bp **Body) bool {
		b := *bp
		b.force = geom.Vec2{}
		b.torque = 0.0
		return true
	})
}

// Step advances the simulation by conf.Dt seconds: narrow-phase refresh,
// island solves, then continuous collision. Returns ErrLocked on re-entry.
func (w *World) Step(conf StepConf) (StepStats, error) {
	var stats StepStats

	if w.locked {
		return stats, ErrLocked
	}
	if !geom.Valid(conf.Dt) || conf.Dt < 0.0 {
		return stats, fmt.Errorf("%w: step dt must be finite and non-negative", ErrInvalid)
	}

	w.contactManager.rejected = 0

	// If fixtures were added, find the new contacts before solving.
	if w.newContacts {
		stats.Pre.Added += w.contactManager.findNewContacts()
		w.newContacts = false
	}

	w.locked = true

	// Disabling sleep wakes everything, matching the policy that a
	// non-sleeping world has no dormant islands.
	if !conf.AllowSleep {
		w.bodies.each(func(_ int32, bp **Body) bool {
			(*bp).SetAwake(true)
			return true
		})
	}

	step := timeStep{
		dt:           conf.Dt,
		dtRatio:      w.invDt0 * conf.Dt,
		velIters:     conf.VelocityIterations,
		posIters:     conf.PositionIterations,
		warmStarting: conf.WarmStarting,
	}
	if conf.Dt > 0.0 {
		step.invDt = 1.0 / conf.Dt
	}

	// Update contacts; this is where some contacts are destroyed.
	stats.Pre.Ignored, stats.Pre.Destroyed, stats.Pre.Updated = w.contactManager.collide()

	// Integrate velocities, solve constraints, integrate positions.
	if step.dt > 0.0 {
		w.solve(&stats.Reg, step, &conf)
	}

	// Handle TOI events.
	if conf.Continuous && step.dt > 0.0 {
		w.solveTOI(&stats.TOI, step, &conf)
	}

	if step.dt > 0.0 {
		w.invDt0 = step.invDt
	}

	if w.autoClearForces {
		w.ClearForces()
	}

	w.locked = false

	// Run mutations queued by listener callbacks.
	for len(w.deferred) > 0 {
		fn := w.deferred[0]
		w.deferred = w.deferred[:copy(w.deferred, w.deferred[1:])]
		fn(w)
	}

	stats.Pre.Proxies = w.contactManager.broadPhase.ProxyCount()
	stats.Pre.Rejected = w.contactManager.rejected
	return stats, nil
}

// solve partitions awake bodies into islands by depth-first search over the
// constraint graph and solves each island independently.
func (w *World) solve(stats *RegStats, step timeStep, conf *StepConf) {
	// Size scratch for the worst case.
	w.island.reset(w.bodies.len(), w.contactManager.count(), w.joints.len(), w.contactManager.listener)

	// Clear island flags.
	w.bodies.each(func(_ int32, bp **Body) bool {
		(*bp).onIsland = false
		return true
	})
	w.contactManager.each(func(c *Contact) bool {
		c.onIsland = false
		return true
	})
	w.joints.each(func(_ int32, jp *Joint) bool {
		(*jp).base().onIsland = false
		return true
	})

	if cap(w.stack) < w.bodies.len() {
		w.stack = make([]*Body, 0, w.bodies.len())
	}

	// Build and solve all awake islands, seeded in stable index order.
	w.bodies.each(func(_ int32, seedp **Body) bool {
		seed := *seedp
		if seed.onIsland || !seed.awake || !seed.enabled {
			return true
		}
		// Seeds are dynamic or kinematic.
		if seed.kind == StaticBody {
			return true
		}

		w.island.clear()
		stack := w.stack[:0]
		stack = append(stack, seed)
		seed.onIsland = true

		for len(stack) > 0 {
			b := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			w.island.addBody(b)

			// Make sure the body is awake (without resetting the sleep
			// timer).
			b.awake = true

			// Islands are not propagated across static bodies; it keeps
			// them small.
			if b.kind == StaticBody {
				continue
			}

			for _, cid := range b.contacts {
				contact := w.contactManager.contact(cid)
				if contact == nil || contact.onIsland {
					continue
				}
				if !contact.enabled || !contact.touching {
					continue
				}
				// Sensors produce no constraints.
				if contact.fixtureA.sensor || contact.fixtureB.sensor {
					continue
				}

				w.island.addContact(contact)
				contact.onIsland = true

				other := contact.fixtureA.body
				if other == b {
					other = contact.fixtureB.body
				}
				if other.onIsland {
					continue
				}
				stack = append(stack, other)
				other.onIsland = true
			}

			for _, jid := range b.joints {
				j := w.joint(jid)
				if j == nil {
					continue
				}
				base := j.base()
				if base.onIsland {
					continue
				}

				other := base.bodyA
				if other == b {
					other = base.bodyB
				}
				// Joints to disabled bodies are not simulated.
				if !other.enabled {
					continue
				}

				w.island.addJoint(j)
				base.onIsland = true

				if other.onIsland {
					continue
				}
				stack = append(stack, other)
				other.onIsland = true
			}
		}

		stats.Islands++
		stats.Bodies += len(w.island.bodies)
		stats.Contacts += len(w.island.contacts)
		stats.Joints += len(w.island.joints)

		w.island.solve(stats, step, conf, w.gravity)

		// Allow static bodies to participate in other islands.
		for _, b := range w.island.bodies {
			if b.kind == StaticBody {
				b.onIsland = false
			}
		}
		return true
	})

	// Synchronize broad-phase proxies of everything that moved and look
	// for new contacts.
	w.bodies.each(func(_ int32, bp **Body) bool {
		b := *bp
		if !b.onIsland || b.kind == StaticBody {
			return true
		}
		b.synchronizeFixtures()
		return true
	})
	stats.Added += w.contactManager.findNewContacts()
}

// solveTOI finds the earliest time of impact among tracked contacts,
// advances the two bodies there, solves a restricted island at elevated
// position resolution, and repeats until no impact remains inside the step
// or the sub-step cap is hit. Ties on equal impact times break by ascending
// contact sequence number so replays are exact.
func (w *World) solveTOI(stats *TOIStats, step timeStep, conf *StepConf) {
	w.toiIsland.reset(2*conf.MaxTOIContacts, conf.MaxTOIContacts, 0, w.contactManager.listener)

	w.bodies.each(func(_ int32, bp **Body) bool {
		b := *bp
		b.onTOIIsland = false
		b.sweep.Alpha0 = 0.0
		return true
	})
	w.contactManager.each(func(c *Contact) bool {
		c.onIsland = false
		c.hasTOI = false
		c.toiCount = 0
		c.toi = 1.0
		return true
	})

	for {
		// Find the earliest TOI.
		var minContact *Contact
		minAlpha := 1.0

		w.contactManager.each(func(c *Contact) bool {
			if !c.enabled {
				return true
			}
			// Prevent excessive sub-stepping.
			if c.toiCount > conf.MaxSubSteps {
				return true
			}

			alpha := 1.0
			if c.hasTOI {
				alpha = c.toi
			} else {
				fixtureA := c.fixtureA
				fixtureB := c.fixtureB
				if fixtureA.sensor || fixtureB.sensor {
					return true
				}

				bodyA := fixtureA.body
				bodyB := fixtureB.body

				activeA := bodyA.awake && bodyA.kind != StaticBody
				activeB := bodyB.awake && bodyB.kind != StaticBody
				if !activeA && !activeB {
					return true
				}

				collideA := bodyA.bullet || bodyA.kind != DynamicBody
				collideB := bodyB.bullet || bodyB.kind != DynamicBody
				// Two non-bullet dynamic bodies tunnel through each
				// other at their own risk.
				if !collideA && !collideB {
					return true
				}

				// Put the sweeps onto the same time interval.
				alpha0 := bodyA.sweep.Alpha0
				if bodyA.sweep.Alpha0 < bodyB.sweep.Alpha0 {
					alpha0 = bodyB.sweep.Alpha0
					bodyA.sweep.Advance(alpha0)
				} else if bodyB.sweep.Alpha0 < bodyA.sweep.Alpha0 {
					alpha0 = bodyA.sweep.Alpha0
					bodyB.sweep.Advance(alpha0)
				}

				input := collide.TOIInput{
					ProxyA:            collide.MakeProxy(fixtureA.shape, c.indexA),
					ProxyB:            collide.MakeProxy(fixtureB.shape, c.indexB),
					SweepA:            bodyA.sweep,
					SweepB:            bodyB.sweep,
					TMax:              1.0,
					Slop:              conf.LinearSlop,
					MaxRootIterations: conf.MaxTOIRootIterations,
				}
				output := collide.TimeOfImpact(&input)
				stats.Contacts++
				stats.RootIterations += output.RootIterations

				// Beta is the fraction of the remaining interval.
				if output.State == collide.TOITouching {
					alpha = math.Min(alpha0+(1.0-alpha0)*output.T, 1.0)
				} else {
					alpha = 1.0
				}

				c.toi = alpha
				c.hasTOI = true
			}

			if alpha < minAlpha || (alpha == minAlpha && minContact != nil && c.seq < minContact.seq) {
				minContact = c
				minAlpha = alpha
			}
			return true
		})

		if minContact == nil || 1.0-10.0*geom.Epsilon < minAlpha {
			// No more TOI events this step.
			return
		}

		// Advance the two bodies to the impact time.
		bodyA := minContact.fixtureA.body
		bodyB := minContact.fixtureB.body

		backupA := bodyA.sweep
		backupB := bodyB.sweep

		bodyA.advance(minAlpha)
		bodyB.advance(minAlpha)
		stats.Advances += 2

		// The TOI contact likely has new points.
		minContact.update(w.contactManager.listener)
		minContact.hasTOI = false
		minContact.toiCount++
		if minContact.toiCount > conf.MaxSubSteps {
			// Out of sub-step budget; the scan above drops the pair from
			// further continuous handling this step.
			stats.CapExceeded++
		}

		if !minContact.enabled || !minContact.touching {
			// Grazing or disabled; restore and look again.
			minContact.enabled = false
			bodyA.sweep = backupA
			bodyB.sweep = backupB
			bodyA.synchronizeTransform()
			bodyB.synchronizeTransform()
			continue
		}

		bodyA.SetAwake(true)
		bodyB.SetAwake(true)
		if bodyA.bullet || bodyB.bullet {
			minContact.bulletHit = true
		}

		// Build the restricted island around the impact pair.
		w.toiIsland.clear()
		w.toiIsland.addBody(bodyA)
		w.toiIsland.addBody(bodyB)
		w.toiIsland.addContact(minContact)

		bodyA.onTOIIsland = true
		bodyB.onTOIIsland = true
		minContact.onIsland = true

		for _, body := range [2]*Body{bodyA, bodyB} {
			if body.kind != DynamicBody {
				continue
			}
			for _, cid := range body.contacts {
				if len(w.toiIsland.bodies) == 2*conf.MaxTOIContacts {
					break
				}
				if len(w.toiIsland.contacts) == conf.MaxTOIContacts {
					break
				}

				contact := w.contactManager.contact(cid)
				if contact == nil || contact.onIsland {
					continue
				}

				// Only static, kinematic, or bullet bodies join a TOI
				// island.
				other := contact.fixtureA.body
				if other == body {
					other = contact.fixtureB.body
				}
				if other.kind == DynamicBody && !body.bullet && !other.bullet {
					continue
				}
				if contact.fixtureA.sensor || contact.fixtureB.sensor {
					continue
				}

				// Tentatively advance the other body to the TOI.
				backup := other.sweep
				if !other.onTOIIsland {
					other.advance(minAlpha)
					stats.Advances++
				}

				contact.update(w.contactManager.listener)

				if !contact.enabled || !contact.touching {
					other.sweep = backup
					other.synchronizeTransform()
					continue
				}

				contact.onIsland = true
				w.toiIsland.addContact(contact)

				if other.onTOIIsland {
					continue
				}
				other.onTOIIsland = true
				if other.kind != StaticBody {
					other.SetAwake(true)
				}
				w.toiIsland.addBody(other)
			}
		}

		stats.Islands++

		subStep := timeStep{
			dt:           (1.0 - minAlpha) * step.dt,
			dtRatio:      1.0,
			velIters:     conf.TOIVelocityIterations,
			posIters:     conf.TOIPositionIterations,
			warmStarting: false,
		}
		if subStep.dt > 0.0 {
			subStep.invDt = 1.0 / subStep.dt
		}
		w.toiIsland.solveTOI(subStep, conf, bodyA.islandIndex, bodyB.islandIndex)

		// Reset flags and refresh the broad-phase so new contacts form
		// and invalid ones are destroyed.
		for _, body := range w.toiIsland.bodies {
			body.onTOIIsland = false
			if body.kind != DynamicBody {
				continue
			}
			body.synchronizeFixtures()

			// Moving the body invalidated every cached TOI on it.
			for _, cid := range body.contacts {
				if c := w.contactManager.contact(cid); c != nil {
					c.hasTOI = false
					c.onIsland = false
				}
			}
		}
		stats.Added += w.contactManager.findNewContacts()
	}
}

// QueryAABB reports every fixture whose fat broad-phase AABB overlaps the
// query box. Return false from the callback to stop early.
func (w *World) QueryAABB(aabb geom.AABB, cb QueryCallback) {
	w.contactManager.broadPhase.Query(aabb, func(proxyID int) bool {
		proxy := w.contactManager.broadPhase.UserData(proxyID).(*fixtureProxy)
		return cb(proxy.fixture)
	})
}

// RayCast reports fixtures hit by the segment p1→p2 in broad-phase order.
// The callback's return value clips the remaining ray: 0 stops, the hit
// fraction continues for the closest hit, 1 reports everything.
func (w *World) RayCast(cb RayCastCallback, p1, p2 geom.Vec2) {
	input := geom.RayCastInput{P1: p1, P2: p2, MaxFraction: 1.0}
	w.contactManager.broadPhase.RayCast(input, func(sub geom.RayCastInput, proxyID int) float64 {
		proxy := w.contactManager.broadPhase.UserData(proxyID).(*fixtureProxy)
		fixture := proxy.fixture

		output, hit := fixture.RayCast(sub, proxy.childIndex)
		if !hit {
			return sub.MaxFraction
		}
		point := sub.P1.Mul(1.0 - output.Fraction).Add(sub.P2.Mul(output.Fraction))
		return cb(fixture, point, output.Normal, output.Fraction)
	})
}

// ShiftOrigin translates the world origin by -newOrigin: every body,
// joint and broad-phase node shifts so that world coordinates stay small
// near the area of interest.
func (w *World) ShiftOrigin(newOrigin geom.Vec2) error {
	if w.locked {
		return ErrLocked
	}

	w.bodies.each(func(_ int32, bp **Body) bool {
		b := *bp
		b.xf.P = b.xf.P.Sub(newOrigin)
		b.sweep.C0 = b.sweep.C0.Sub(newOrigin)
		b.sweep.C = b.sweep.C.Sub(newOrigin)
		return true
	})
	w.joints.each(func(_ int32, jp *Joint) bool {
		(*jp).ShiftOrigin(newOrigin)
		return true
	})
	w.contactManager.broadPhase.ShiftOrigin(newOrigin)
	return nil
}

// Dump writes a deterministic text snapshot of the world: gravity, bodies
// with their fixtures, then joints (gear joints last, since they reference
// other joints). Replay tests diff this output.
func (w *World) Dump(out io.Writer) {
	if w.locked {
		return
	}

	fmt.Fprintf(out, "gravity=(%.17g,%.17g)\n", w.gravity[0], w.gravity[1])

	i := 0
	w.bodies.each(func(_ int32, bp **Body) bool {
		b := *bp
		b.islandIndex = i
		b.dump(out, i)
		i++
		return true
	})

	w.joints.each(func(_ int32, jp *Joint) bool {
		if (*jp).Kind() != GearJointKind {
			(*jp).dump(out)
		}
		return true
	})
	w.joints.each(func(_ int32, jp *Joint) bool {
		if (*jp).Kind() == GearJointKind {
			(*jp).dump(out)
		}
		return true
	})
}
