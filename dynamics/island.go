package dynamics

import (
	"math"

	"github.com/veloxphys/velox2d/geom"
)

// island is a connected set of awake bodies solved as one unit. Bodies,
// contacts and joints are gathered by the world's depth-first traversal;
// positions and velocities live in compact scratch arrays indexed by the
// per-island body index so the inner solver loops stay cache friendly.
type island struct {
	listener ContactListener

	bodies   []*Body
	contacts []*Contact
	joints   []Joint

	positions  []position
	velocities []velocity
}

// reset sizes the island for a solve and drops any prior members.
func (is *island) reset(bodyCap, contactCap, jointCap int, listener ContactListener) {
	is.listener = listener

	if cap(is.bodies) < bodyCap {
		is.bodies = make([]*Body, 0, bodyCap)
		is.positions = make([]position, 0, bodyCap)
		is.velocities = make([]velocity, 0, bodyCap)
	}
	if cap(is.contacts) < contactCap {
		is.contacts = make([]*Contact, 0, contactCap)
	}
	if cap(is.joints) < jointCap {
		is.joints = make([]Joint, 0, jointCap)
	}
	is.clear()
}

func (is *island) clear() {
	is.bodies = is.bodies[:0]
	is.contacts = is.contacts[:0]
	is.joints = is.joints[:0]
	is.positions = is.positions[:0]
	is.velocities = is.velocities[:0]
}

func (is *island) addBody(b *Body) {
	b.islandIndex = len(is.bodies)
	is.bodies = append(is.bodies, b)
	is.positions = append(is.positions, position{})
	is.velocities = append(is.velocities, velocity{})
}

func (is *island) addContact(c *Contact) {
	is.contacts = append(is.contacts, c)
}

func (is *island) addJoint(j Joint) {
	is.joints = append(is.joints, j)
}

// solve integrates velocities, runs the sequential-impulse solver, then
// integrates positions and applies nonlinear Gauss-Seidel correction. It
// reports the outcome into stats and puts the island to sleep when every
// body has been below the sleep tolerances for long enough.
func (is *island) solve(stats *RegStats, step timeStep, conf *StepConf, gravity geom.Vec2) {
	h := step.dt

	// Integrate velocities and apply damping. Initialize the body state.
	for i, b := range is.bodies {
		c := b.sweep.C
		a := b.sweep.A
		v := b.linearVelocity
		w := b.angularVelocity

		// Store positions for continuous collision.
		b.sweep.C0 = b.sweep.C
		b.sweep.A0 = b.sweep.A

		if b.kind == DynamicBody {
			v = v.Add(gravity.Mul(b.gravityScale).Add(b.force.Mul(b.invMass)).Mul(h))
			w += h * b.invI * b.torque

			// Damping via the Pade approximation of exp(-c*dt):
			// v2 = v1 / (1 + c * dt)
			v = v.Mul(1.0 / (1.0 + h*b.linearDamping))
			w *= 1.0 / (1.0 + h*b.angularDamping)
		}

		is.positions[i] = position{c: c, a: a}
		is.velocities[i] = velocity{v: v, w: w}
	}

	data := &solverData{
		step:       step,
		conf:       conf,
		positions:  is.positions,
		velocities: is.velocities,
	}

	solver := newContactSolver(&contactSolverDef{
		step:       step,
		conf:       conf,
		contacts:   is.contacts,
		positions:  is.positions,
		velocities: is.velocities,
	})
	solver.initializeVelocityConstraints()

	if step.warmStarting {
		solver.warmStart()
	}

	for _, j := range is.joints {
		j.initVelocityConstraints(data)
	}

	// Solve velocity constraints.
	for i := 0; i < step.velIters; i++ {
		for _, j := range is.joints {
			j.solveVelocityConstraints(data)
		}
		solver.solveVelocityConstraints()
	}

	// Store impulses for warm starting.
	solver.storeImpulses()

	// Integrate positions.
	for i := range is.bodies {
		c := is.positions[i].c
		a := is.positions[i].a
		v := is.velocities[i].v
		w := is.velocities[i].w

		// Clamp large velocities.
		translation := v.Mul(h)
		if translation.LenSqr() > conf.MaxTranslation*conf.MaxTranslation {
			v = v.Mul(conf.MaxTranslation / translation.Len())
		}
		rotation := h * w
		if rotation*rotation > conf.MaxRotation*conf.MaxRotation {
			w *= conf.MaxRotation / math.Abs(rotation)
		}

		c = c.Add(v.Mul(h))
		a += h * w

		is.positions[i] = position{c: c, a: a}
		is.velocities[i] = velocity{v: v, w: w}
	}

	// Solve position constraints.
	positionSolved := false
	for i := 0; i < step.posIters; i++ {
		contactsOkay, minSep := solver.solvePositionConstraints(-1, -1)
		stats.MinSeparation = math.Min(stats.MinSeparation, minSep)

		jointsOkay := true
		for _, j := range is.joints {
			jointOkay := j.solvePositionConstraints(data)
			jointsOkay = jointsOkay && jointOkay
		}

		if contactsOkay && jointsOkay {
			// Exit early if the position errors are small.
			positionSolved = true
			break
		}
	}

	// Copy state buffers back to the bodies.
	for i, b := range is.bodies {
		b.sweep.C = is.positions[i].c
		b.sweep.A = is.positions[i].a
		b.linearVelocity = is.velocities[i].v
		b.angularVelocity = is.velocities[i].w
		b.synchronizeTransform()
	}

	is.report(solver.velConstr)

	if conf.AllowSleep {
		minSleepTime := math.MaxFloat64

		linTolSqr := conf.LinearSleepTolerance * conf.LinearSleepTolerance
		angTolSqr := conf.AngularSleepTolerance * conf.AngularSleepTolerance

		for _, b := range is.bodies {
			if b.kind == StaticBody {
				continue
			}

			if !b.autoSleep ||
				b.angularVelocity*b.angularVelocity > angTolSqr ||
				b.linearVelocity.LenSqr() > linTolSqr {
				b.sleepTime = 0.0
				minSleepTime = 0.0
			} else {
				b.sleepTime += h
				minSleepTime = math.Min(minSleepTime, b.sleepTime)
			}
		}

		if minSleepTime >= conf.TimeToSleep && positionSolved {
			for _, b := range is.bodies {
				b.SetAwake(false)
			}
			stats.Slept += len(is.bodies)
		}
	}
}

// solveTOI resolves a time-of-impact sub-step. Only the two bodies named by
// toiIndexA/toiIndexB receive position corrections; the rest of the island
// acts as an immovable backstop.
func (is *island) solveTOI(step timeStep, conf *StepConf, toiIndexA, toiIndexB int) {
	// Initialize the body state.
	for i, b := range is.bodies {
		is.positions[i] = position{c: b.sweep.C, a: b.sweep.A}
		is.velocities[i] = velocity{v: b.linearVelocity, w: b.angularVelocity}
	}

	solver := newContactSolver(&contactSolverDef{
		step:       step,
		conf:       conf,
		contacts:   is.contacts,
		positions:  is.positions,
		velocities: is.velocities,
	})

	// Solve position constraints.
	for i := 0; i < step.posIters; i++ {
		contactsOkay, _ := solver.solvePositionConstraints(toiIndexA, toiIndexB)
		if contactsOkay {
			break
		}
	}

	// Leap of faith to the new safe state.
	is.bodies[toiIndexA].sweep.C0 = is.positions[toiIndexA].c
	is.bodies[toiIndexA].sweep.A0 = is.positions[toiIndexA].a
	is.bodies[toiIndexB].sweep.C0 = is.positions[toiIndexB].c
	is.bodies[toiIndexB].sweep.A0 = is.positions[toiIndexB].a

	// No warm starting is needed; the discrete solver already applied
	// the warm-start impulses.
	solver.initializeVelocityConstraints()

	// Solve velocity constraints.
	for i := 0; i < step.velIters; i++ {
		solver.solveVelocityConstraints()
	}

	// TOI contact forces are not stored for warm starting; they can be
	// quite large.

	h := step.dt

	// Integrate positions.
	for i, b := range is.bodies {
		c := is.positions[i].c
		a := is.positions[i].a
		v := is.velocities[i].v
		w := is.velocities[i].w

		translation := v.Mul(h)
		if translation.LenSqr() > conf.MaxTranslation*conf.MaxTranslation {
			v = v.Mul(conf.MaxTranslation / translation.Len())
		}
		rotation := h * w
		if rotation*rotation > conf.MaxRotation*conf.MaxRotation {
			w *= conf.MaxRotation / math.Abs(rotation)
		}

		c = c.Add(v.Mul(h))
		a += h * w

		is.positions[i] = position{c: c, a: a}
		is.velocities[i] = velocity{v: v, w: w}

		b.sweep.C = c
		b.sweep.A = a
		b.linearVelocity = v
		b.angularVelocity = w
		b.synchronizeTransform()
	}

	is.report(solver.velConstr)
}

func (is *island) report(constraints []contactVelocityConstraint) {
	if is.listener == nil {
		return
	}

	for i, c := range is.contacts {
		vc := &constraints[i]

		var impulse ContactImpulse
		impulse.Count = vc.pointCount
		for j := 0; j < vc.pointCount; j++ {
			impulse.NormalImpulses[j] = vc.points[j].normalImpulse
			impulse.TangentImpulses[j] = vc.points[j].tangentImpulse
		}

		is.listener.PostSolve(c, &impulse)
	}
}
