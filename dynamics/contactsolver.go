package dynamics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/veloxphys/velox2d/collide"
	"github.com/veloxphys/velox2d/geom"
)

// The block solver sometimes meets a poorly conditioned effective mass
// matrix; blockSolve can be switched off when debugging it.
const blockSolve = true

type velocityConstraintPoint struct {
	rA             geom.Vec2
	rB             geom.Vec2
	normalImpulse  float64
	tangentImpulse float64
	normalMass     float64
	tangentMass    float64
	velocityBias   float64
}

type contactVelocityConstraint struct {
	points       [collide.MaxManifoldPoints]velocityConstraintPoint
	normal       geom.Vec2
	normalMass   mgl64.Mat2
	k            mgl64.Mat2
	indexA       int
	indexB       int
	invMassA     float64
	invMassB     float64
	invIA, invIB float64
	friction     float64
	restitution  float64
	tangentSpeed float64
	pointCount   int
	contactIndex int
}

type contactPositionConstraint struct {
	localPoints  [collide.MaxManifoldPoints]geom.Vec2
	localNormal  geom.Vec2
	localPoint   geom.Vec2
	indexA       int
	indexB       int
	invMassA     float64
	invMassB     float64
	localCenterA geom.Vec2
	localCenterB geom.Vec2
	invIA, invIB float64
	kind         collide.ManifoldKind
	radiusA      float64
	radiusB      float64
	pointCount   int
}

type contactSolverDef struct {
	step       timeStep
	conf       *StepConf
	contacts   []*Contact
	positions  []position
	velocities []velocity
}

// contactSolver turns touching contacts into velocity and position
// constraints and solves them with sequential impulses.
type contactSolver struct {
	step       timeStep
	conf       *StepConf
	positions  []position
	velocities []velocity
	posConstr  []contactPositionConstraint
	velConstr  []contactVelocityConstraint
	contacts   []*Contact
}

func newContactSolver(def *contactSolverDef) *contactSolver {
	s := &contactSolver{
		step:       def.step,
		conf:       def.conf,
		positions:  def.positions,
		velocities: def.velocities,
		contacts:   def.contacts,
		posConstr:  make([]contactPositionConstraint, len(def.contacts)),
		velConstr:  make([]contactVelocityConstraint, len(def.contacts)),
	}

	// Position-independent portion of the constraints.
	for i, contact := range s.contacts {
		fixtureA := contact.fixtureA
		fixtureB := contact.fixtureB
		bodyA := fixtureA.body
		bodyB := fixtureB.body
		manifold := &contact.manifold

		vc := &s.velConstr[i]
		vc.friction = contact.friction
		vc.restitution = contact.restitution
		vc.tangentSpeed = contact.tangentSpeed
		vc.indexA = bodyA.islandIndex
		vc.indexB = bodyB.islandIndex
		vc.invMassA = bodyA.invMass
		vc.invMassB = bodyB.invMass
		vc.invIA = bodyA.invI
		vc.invIB = bodyB.invI
		vc.contactIndex = i
		vc.pointCount = manifold.PointCount

		pc := &s.posConstr[i]
		pc.indexA = bodyA.islandIndex
		pc.indexB = bodyB.islandIndex
		pc.invMassA = bodyA.invMass
		pc.invMassB = bodyB.invMass
		pc.localCenterA = bodyA.sweep.LocalCenter
		pc.localCenterB = bodyB.sweep.LocalCenter
		pc.invIA = bodyA.invI
		pc.invIB = bodyB.invI
		pc.localNormal = manifold.LocalNormal
		pc.localPoint = manifold.LocalPoint
		pc.pointCount = manifold.PointCount
		pc.radiusA = fixtureA.shape.Radius()
		pc.radiusB = fixtureB.shape.Radius()
		pc.kind = manifold.Kind

		for j := 0; j < manifold.PointCount; j++ {
			cp := &manifold.Points[j]
			vcp := &vc.points[j]

			if s.step.warmStarting {
				vcp.normalImpulse = s.step.dtRatio * cp.NormalImpulse
				vcp.tangentImpulse = s.step.dtRatio * cp.TangentImpulse
			}

			pc.localPoints[j] = cp.LocalPoint
		}
	}

	return s
}

// initializeVelocityConstraints fills in the position-dependent portions.
func (s *contactSolver) initializeVelocityConstraints() {
	for i := range s.velConstr {
		vc := &s.velConstr[i]
		pc := &s.posConstr[i]

		manifold := &s.contacts[vc.contactIndex].manifold

		mA := vc.invMassA
		mB := vc.invMassB
		iA := vc.invIA
		iB := vc.invIB

		cA := s.positions[vc.indexA].c
		aA := s.positions[vc.indexA].a
		vA := s.velocities[vc.indexA].v
		wA := s.velocities[vc.indexA].w

		cB := s.positions[vc.indexB].c
		aB := s.positions[vc.indexB].a
		vB := s.velocities[vc.indexB].v
		wB := s.velocities[vc.indexB].w

		xfA := geom.Transform{Q: geom.RotFromAngle(aA)}
		xfB := geom.Transform{Q: geom.RotFromAngle(aB)}
		xfA.P = cA.Sub(xfA.Q.Apply(pc.localCenterA))
		xfB.P = cB.Sub(xfB.Q.Apply(pc.localCenterB))

		var wm collide.WorldManifold
		wm.Initialize(manifold, xfA, pc.radiusA, xfB, pc.radiusB)

		vc.normal = wm.Normal
		tangent := geom.CrossVS(vc.normal, 1.0)

		for j := 0; j < vc.pointCount; j++ {
			vcp := &vc.points[j]

			vcp.rA = wm.Points[j].Sub(cA)
			vcp.rB = wm.Points[j].Sub(cB)

			rnA := geom.Cross(vcp.rA, vc.normal)
			rnB := geom.Cross(vcp.rB, vc.normal)
			kNormal := mA + mB + iA*rnA*rnA + iB*rnB*rnB
			if kNormal > 0.0 {
				vcp.normalMass = 1.0 / kNormal
			}

			rtA := geom.Cross(vcp.rA, tangent)
			rtB := geom.Cross(vcp.rB, tangent)
			kTangent := mA + mB + iA*rtA*rtA + iB*rtB*rtB
			if kTangent > 0.0 {
				vcp.tangentMass = 1.0 / kTangent
			}

			// Velocity bias for restitution, gated by the threshold.
			vcp.velocityBias = 0.0
			vRel := vc.normal.Dot(
				vB.Add(geom.CrossSV(wB, vcp.rB)).Sub(vA).Sub(geom.CrossSV(wA, vcp.rA)))
			if vRel < -s.conf.VelocityThreshold {
				vcp.velocityBias = -vc.restitution * vRel
			}
		}

		// With two points, prepare the block solver.
		if vc.pointCount == 2 && blockSolve {
			vcp1 := &vc.points[0]
			vcp2 := &vc.points[1]

			rn1A := geom.Cross(vcp1.rA, vc.normal)
			rn1B := geom.Cross(vcp1.rB, vc.normal)
			rn2A := geom.Cross(vcp2.rA, vc.normal)
			rn2B := geom.Cross(vcp2.rB, vc.normal)

			k11 := mA + mB + iA*rn1A*rn1A + iB*rn1B*rn1B
			k22 := mA + mB + iA*rn2A*rn2A + iB*rn2B*rn2B
			k12 := mA + mB + iA*rn1A*rn2A + iB*rn1B*rn2B

			// The matrix must have a reasonable condition number.
			const maxConditionNumber = 1000.0
			if k11*k11 < maxConditionNumber*(k11*k22-k12*k12) {
				vc.k = geom.Mat2FromCols(geom.Vec2{k11, k12}, geom.Vec2{k12, k22})
				vc.normalMass = geom.Inverse22(vc.k)
			} else {
				// Redundant constraints; use one point.
				vc.pointCount = 1
			}
		}
	}
}

// warmStart applies the impulses carried over from the previous step.
func (s *contactSolver) warmStart() {
	for i := range s.velConstr {
		vc := &s.velConstr[i]

		mA := vc.invMassA
		iA := vc.invIA
		mB := vc.invMassB
		iB := vc.invIB

		vA := s.velocities[vc.indexA].v
		wA := s.velocities[vc.indexA].w
		vB := s.velocities[vc.indexB].v
		wB := s.velocities[vc.indexB].w

		normal := vc.normal
		tangent := geom.CrossVS(normal, 1.0)

		for j := 0; j < vc.pointCount; j++ {
			vcp := &vc.points[j]
			p := normal.Mul(vcp.normalImpulse).Add(tangent.Mul(vcp.tangentImpulse))
			wA -= iA * geom.Cross(vcp.rA, p)
			vA = vA.Sub(p.Mul(mA))
			wB += iB * geom.Cross(vcp.rB, p)
			vB = vB.Add(p.Mul(mB))
		}

		s.velocities[vc.indexA].v = vA
		s.velocities[vc.indexA].w = wA
		s.velocities[vc.indexB].v = vB
		s.velocities[vc.indexB].w = wB
	}
}

func (s *contactSolver) solveVelocityConstraints() {
	for i := range s.velConstr {
		vc := &s.velConstr[i]

		mA := vc.invMassA
		iA := vc.invIA
		mB := vc.invMassB
		iB := vc.invIB

		vA := s.velocities[vc.indexA].v
		wA := s.velocities[vc.indexA].w
		vB := s.velocities[vc.indexB].v
		wB := s.velocities[vc.indexB].w

		normal := vc.normal
		tangent := geom.CrossVS(normal, 1.0)
		friction := vc.friction

		// Tangent first: non-penetration matters more than friction.
		for j := 0; j < vc.pointCount; j++ {
			vcp := &vc.points[j]

			dv := vB.Add(geom.CrossSV(wB, vcp.rB)).Sub(vA).Sub(geom.CrossSV(wA, vcp.rA))

			vt := dv.Dot(tangent) - vc.tangentSpeed
			lambda := vcp.tangentMass * (-vt)

			// Clamp the accumulated impulse to the friction cone.
			maxFriction := friction * vcp.normalImpulse
			newImpulse := geom.Clamp(vcp.tangentImpulse+lambda, -maxFriction, maxFriction)
			lambda = newImpulse - vcp.tangentImpulse
			vcp.tangentImpulse = newImpulse

			p := tangent.Mul(lambda)
			vA = vA.Sub(p.Mul(mA))
			wA -= iA * geom.Cross(vcp.rA, p)
			vB = vB.Add(p.Mul(mB))
			wB += iB * geom.Cross(vcp.rB, p)
		}

		if vc.pointCount == 1 || !blockSolve {
			for j := 0; j < vc.pointCount; j++ {
				vcp := &vc.points[j]

				dv := vB.Add(geom.CrossSV(wB, vcp.rB)).Sub(vA).Sub(geom.CrossSV(wA, vcp.rA))

				vn := dv.Dot(normal)
				lambda := -vcp.normalMass * (vn - vcp.velocityBias)

				newImpulse := math.Max(vcp.normalImpulse+lambda, 0.0)
				lambda = newImpulse - vcp.normalImpulse
				vcp.normalImpulse = newImpulse

				p := normal.Mul(lambda)
				vA = vA.Sub(p.Mul(mA))
				wA -= iA * geom.Cross(vcp.rA, p)
				vB = vB.Add(p.Mul(mB))
				wB += iB * geom.Cross(vcp.rB, p)
			}
		} else {
			// Block solver for the two-point mini LCP:
			//
			//   vn = A x + b', vn >= 0, x >= 0, vn_i x_i = 0
			//
			// solved by total enumeration of the four complementarity
			// cases. The impulse variable substitution x = a + d keeps the
			// accumulated impulse clamped rather than the increment.
			cp1 := &vc.points[0]
			cp2 := &vc.points[1]

			a := geom.Vec2{cp1.normalImpulse, cp2.normalImpulse}

			dv1 := vB.Add(geom.CrossSV(wB, cp1.rB)).Sub(vA).Sub(geom.CrossSV(wA, cp1.rA))
			dv2 := vB.Add(geom.CrossSV(wB, cp2.rB)).Sub(vA).Sub(geom.CrossSV(wA, cp2.rA))

			vn1 := dv1.Dot(normal)
			vn2 := dv2.Dot(normal)

			b := geom.Vec2{vn1 - cp1.velocityBias, vn2 - cp2.velocityBias}
			b = b.Sub(vc.k.Mul2x1(a))

			applyBlock := func(x geom.Vec2) {
				d := x.Sub(a)
				p1 := normal.Mul(d[0])
				p2 := normal.Mul(d[1])
				vA = vA.Sub(p1.Add(p2).Mul(mA))
				wA -= iA * (geom.Cross(cp1.rA, p1) + geom.Cross(cp2.rA, p2))
				vB = vB.Add(p1.Add(p2).Mul(mB))
				wB += iB * (geom.Cross(cp1.rB, p1) + geom.Cross(cp2.rB, p2))
				cp1.normalImpulse = x[0]
				cp2.normalImpulse = x[1]
			}

			for {
				// Case 1: both points active, vn = 0. x = -inv(A) b'
				x := vc.normalMass.Mul2x1(b).Mul(-1.0)
				if x[0] >= 0.0 && x[1] >= 0.0 {
					applyBlock(x)
					break
				}

				// Case 2: point 1 active, x2 = 0.
				x = geom.Vec2{-cp1.normalMass * b[0], 0.0}
				vn2 = vc.k.At(1, 0)*x[0] + b[1]
				if x[0] >= 0.0 && vn2 >= 0.0 {
					applyBlock(x)
					break
				}

				// Case 3: point 2 active, x1 = 0.
				x = geom.Vec2{0.0, -cp2.normalMass * b[1]}
				vn1 = vc.k.At(0, 1)*x[1] + b[0]
				if x[1] >= 0.0 && vn1 >= 0.0 {
					applyBlock(x)
					break
				}

				// Case 4: both separated.
				if b[0] >= 0.0 && b[1] >= 0.0 {
					applyBlock(geom.Vec2{})
					break
				}

				// No solution; give up. Hit occasionally, harmless.
				break
			}
		}

		s.velocities[vc.indexA].v = vA
		s.velocities[vc.indexA].w = wA
		s.velocities[vc.indexB].v = vB
		s.velocities[vc.indexB].w = wB
	}
}

// storeImpulses writes the accumulated impulses back into the manifolds so
// the next step can warm start.
func (s *contactSolver) storeImpulses() {
	for i := range s.velConstr {
		vc := &s.velConstr[i]
		manifold := &s.contacts[vc.contactIndex].manifold
		for j := 0; j < vc.pointCount; j++ {
			manifold.Points[j].NormalImpulse = vc.points[j].normalImpulse
			manifold.Points[j].TangentImpulse = vc.points[j].tangentImpulse
		}
	}
}

type positionSolverManifold struct {
	normal     geom.Vec2
	point      geom.Vec2
	separation float64
}

func (psm *positionSolverManifold) initialize(pc *contactPositionConstraint, xfA, xfB geom.Transform, index int) {
	switch pc.kind {
	case collide.ManifoldCircles:
		pointA := xfA.Apply(pc.localPoint)
		pointB := xfB.Apply(pc.localPoints[0])
		psm.normal = geom.Normalized(pointB.Sub(pointA))
		psm.point = pointA.Add(pointB).Mul(0.5)
		psm.separation = pointB.Sub(pointA).Dot(psm.normal) - pc.radiusA - pc.radiusB

	case collide.ManifoldFaceA:
		psm.normal = xfA.Q.Apply(pc.localNormal)
		planePoint := xfA.Apply(pc.localPoint)
		clipPoint := xfB.Apply(pc.localPoints[index])
		psm.separation = clipPoint.Sub(planePoint).Dot(psm.normal) - pc.radiusA - pc.radiusB
		psm.point = clipPoint

	case collide.ManifoldFaceB:
		psm.normal = xfB.Q.Apply(pc.localNormal)
		planePoint := xfB.Apply(pc.localPoint)
		clipPoint := xfA.Apply(pc.localPoints[index])
		psm.separation = clipPoint.Sub(planePoint).Dot(psm.normal) - pc.radiusA - pc.radiusB
		psm.point = clipPoint

		// The normal must point from A to B.
		psm.normal = psm.normal.Mul(-1.0)
	}
}

// solvePositionConstraints pushes overlapping bodies apart sequentially.
// toiIndexA/toiIndexB, when >= 0, restrict mass to the two TOI bodies so
// only they move during sub-step resolution. Returns (solved, minSeparation).
func (s *contactSolver) solvePositionConstraints(toiIndexA, toiIndexB int) (bool, float64) {
	toiMode := toiIndexA >= 0 || toiIndexB >= 0

	baumgarte := s.conf.Baumgarte
	tolerance := -3.0 * s.conf.LinearSlop
	if toiMode {
		baumgarte = s.conf.TOIBaumgarte
		tolerance = -1.5 * s.conf.LinearSlop
	}

	minSeparation := 0.0

	for i := range s.posConstr {
		pc := &s.posConstr[i]

		mA := pc.invMassA
		iA := pc.invIA
		mB := pc.invMassB
		iB := pc.invIB
		if toiMode {
			mA, iA = 0.0, 0.0
			if pc.indexA == toiIndexA || pc.indexA == toiIndexB {
				mA = pc.invMassA
				iA = pc.invIA
			}
			mB, iB = 0.0, 0.0
			if pc.indexB == toiIndexA || pc.indexB == toiIndexB {
				mB = pc.invMassB
				iB = pc.invIB
			}
		}

		cA := s.positions[pc.indexA].c
		aA := s.positions[pc.indexA].a
		cB := s.positions[pc.indexB].c
		aB := s.positions[pc.indexB].a

		for j := 0; j < pc.pointCount; j++ {
			xfA := geom.Transform{Q: geom.RotFromAngle(aA)}
			xfB := geom.Transform{Q: geom.RotFromAngle(aB)}
			xfA.P = cA.Sub(xfA.Q.Apply(pc.localCenterA))
			xfB.P = cB.Sub(xfB.Q.Apply(pc.localCenterB))

			var psm positionSolverManifold
			psm.initialize(pc, xfA, xfB, j)

			rA := psm.point.Sub(cA)
			rB := psm.point.Sub(cB)

			minSeparation = math.Min(minSeparation, psm.separation)

			// Prevent large corrections and allow slop.
			c := geom.Clamp(baumgarte*(psm.separation+s.conf.LinearSlop), -s.conf.MaxLinearCorrection, 0.0)

			rnA := geom.Cross(rA, psm.normal)
			rnB := geom.Cross(rB, psm.normal)
			k := mA + mB + iA*rnA*rnA + iB*rnB*rnB

			impulse := 0.0
			if k > 0.0 {
				impulse = -c / k
			}

			p := psm.normal.Mul(impulse)
			cA = cA.Sub(p.Mul(mA))
			aA -= iA * geom.Cross(rA, p)
			cB = cB.Add(p.Mul(mB))
			aB += iB * geom.Cross(rB, p)
		}

		s.positions[pc.indexA].c = cA
		s.positions[pc.indexA].a = aA
		s.positions[pc.indexB].c = cB
		s.positions[pc.indexB].a = aB
	}

	// The separation is never pushed above -linearSlop, so the success
	// bound is looser than the slop itself.
	return minSeparation >= tolerance, minSeparation
}
