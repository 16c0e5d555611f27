package collide

import (
	"math"

	"github.com/veloxphys/velox2d/geom"
)

const (
	maxTOIIterations = 20

	// Default root-search cap when TOIInput.MaxRootIterations is unset.
	maxTOIRootIterations = 50
)

// TOIInput bundles the two swept proxies for TimeOfImpact. TMax bounds the
// sweep interval [0, TMax]; Slop is the distance tolerance used to build the
// target separation band. MaxRootIterations bounds each 1D root search; zero
// selects the built-in cap.
type TOIInput struct {
	ProxyA            Proxy
	ProxyB            Proxy
	SweepA            geom.Sweep
	SweepB            geom.Sweep
	TMax              float64
	Slop              float64
	MaxRootIterations int
}

// TOIState classifies the result of a TimeOfImpact query.
type TOIState uint8

const (
	TOIUnknown TOIState = iota
	TOIFailed
	TOIOverlapped
	TOITouching
	TOISeparated
)

func (s TOIState) String() string {
	switch s {
	case TOIFailed:
		return "failed"
	case TOIOverlapped:
		return "overlapped"
	case TOITouching:
		return "touching"
	case TOISeparated:
		return "separated"
	default:
		return "unknown"
	}
}

// TOIOutput reports the impact state and time, plus iteration counts for
// step statistics.
type TOIOutput struct {
	State          TOIState
	T              float64
	Iterations     int
	RootIterations int
}

type sepFuncKind uint8

const (
	sepPoints sepFuncKind = iota
	sepFaceA
	sepFaceB
)

// separationFunc tracks a separating axis between two swept proxies, seeded
// from a distance-query simplex.
type separationFunc struct {
	proxyA     *Proxy
	proxyB     *Proxy
	sweepA     geom.Sweep
	sweepB     geom.Sweep
	kind       sepFuncKind
	localPoint geom.Vec2
	axis       geom.Vec2
}

func (f *separationFunc) initialize(cache *SimplexCache, proxyA *Proxy, sweepA geom.Sweep, proxyB *Proxy, sweepB geom.Sweep, t1 float64) float64 {
	f.proxyA = proxyA
	f.proxyB = proxyB
	f.sweepA = sweepA
	f.sweepB = sweepB

	xfA := f.sweepA.Transform(t1)
	xfB := f.sweepB.Transform(t1)

	switch {
	case cache.Count == 1:
		f.kind = sepPoints
		pointA := xfA.Apply(proxyA.Verts[cache.IndexA[0]])
		pointB := xfB.Apply(proxyB.Verts[cache.IndexB[0]])
		f.axis = pointB.Sub(pointA)
		s := f.axis.Len()
		f.axis = geom.Normalized(f.axis)
		return s

	case cache.IndexA[0] == cache.IndexA[1]:
		// Two points on B and one on A.
		f.kind = sepFaceB
		localPointB1 := proxyB.Verts[cache.IndexB[0]]
		localPointB2 := proxyB.Verts[cache.IndexB[1]]

		f.axis = geom.Normalized(geom.CrossVS(localPointB2.Sub(localPointB1), 1.0))
		normal := xfB.Q.Apply(f.axis)

		f.localPoint = localPointB1.Add(localPointB2).Mul(0.5)
		pointB := xfB.Apply(f.localPoint)
		pointA := xfA.Apply(proxyA.Verts[cache.IndexA[0]])

		s := pointA.Sub(pointB).Dot(normal)
		if s < 0.0 {
			f.axis = f.axis.Mul(-1.0)
			s = -s
		}
		return s

	default:
		// Two points on A and one or two points on B.
		f.kind = sepFaceA
		localPointA1 := proxyA.Verts[cache.IndexA[0]]
		localPointA2 := proxyA.Verts[cache.IndexA[1]]

		f.axis = geom.Normalized(geom.CrossVS(localPointA2.Sub(localPointA1), 1.0))
		normal := xfA.Q.Apply(f.axis)

		f.localPoint = localPointA1.Add(localPointA2).Mul(0.5)
		pointA := xfA.Apply(f.localPoint)
		pointB := xfB.Apply(proxyB.Verts[cache.IndexB[0]])

		s := pointB.Sub(pointA).Dot(normal)
		if s < 0.0 {
			f.axis = f.axis.Mul(-1.0)
			s = -s
		}
		return s
	}
}

// findMinSeparation returns the deepest separation at time t along with the
// witness vertex indices used to track it.
func (f *separationFunc) findMinSeparation(t float64) (separation float64, indexA, indexB int) {
	xfA := f.sweepA.Transform(t)
	xfB := f.sweepB.Transform(t)

	switch f.kind {
	case sepPoints:
		axisA := xfA.Q.ApplyT(f.axis)
		axisB := xfB.Q.ApplyT(f.axis.Mul(-1.0))

		indexA = f.proxyA.Support(axisA)
		indexB = f.proxyB.Support(axisB)

		pointA := xfA.Apply(f.proxyA.Verts[indexA])
		pointB := xfB.Apply(f.proxyB.Verts[indexB])
		return pointB.Sub(pointA).Dot(f.axis), indexA, indexB

	case sepFaceA:
		normal := xfA.Q.Apply(f.axis)
		pointA := xfA.Apply(f.localPoint)

		indexA = -1
		indexB = f.proxyB.Support(xfB.Q.ApplyT(normal.Mul(-1.0)))

		pointB := xfB.Apply(f.proxyB.Verts[indexB])
		return pointB.Sub(pointA).Dot(normal), indexA, indexB

	default: // sepFaceB
		normal := xfB.Q.Apply(f.axis)
		pointB := xfB.Apply(f.localPoint)

		indexB = -1
		indexA = f.proxyA.Support(xfA.Q.ApplyT(normal.Mul(-1.0)))

		pointA := xfA.Apply(f.proxyA.Verts[indexA])
		return pointA.Sub(pointB).Dot(normal), indexA, indexB
	}
}

// evaluate returns the separation of the stored witness points at time t.
func (f *separationFunc) evaluate(indexA, indexB int, t float64) float64 {
	xfA := f.sweepA.Transform(t)
	xfB := f.sweepB.Transform(t)

	switch f.kind {
	case sepPoints:
		pointA := xfA.Apply(f.proxyA.Verts[indexA])
		pointB := xfB.Apply(f.proxyB.Verts[indexB])
		return pointB.Sub(pointA).Dot(f.axis)

	case sepFaceA:
		normal := xfA.Q.Apply(f.axis)
		pointA := xfA.Apply(f.localPoint)
		pointB := xfB.Apply(f.proxyB.Verts[indexB])
		return pointB.Sub(pointA).Dot(normal)

	default: // sepFaceB
		normal := xfB.Q.Apply(f.axis)
		pointB := xfB.Apply(f.localPoint)
		pointA := xfA.Apply(f.proxyA.Verts[indexA])
		return pointA.Sub(pointB).Dot(normal)
	}
}

// TimeOfImpact computes an upper bound on the time before the two swept
// proxies penetrate, as a fraction in [0, input.TMax]. Conservative
// advancement over a swept separating axis: it may miss intermediate
// non-tunneling collisions, so re-run it if the interval changes.
func TimeOfImpact(input *TOIInput) TOIOutput {
	output := TOIOutput{State: TOIUnknown, T: input.TMax}

	proxyA := &input.ProxyA
	proxyB := &input.ProxyB

	sweepA := input.SweepA
	sweepB := input.SweepB

	// Large rotations can make the root finder fail; keep angles bounded.
	sweepA.Normalize()
	sweepB.Normalize()

	tMax := input.TMax
	slop := input.Slop

	maxRootIters := input.MaxRootIterations
	if maxRootIters <= 0 {
		maxRootIters = maxTOIRootIterations
	}

	totalRadius := proxyA.Radius + proxyB.Radius
	target := math.Max(slop, totalRadius-3.0*slop)
	tolerance := 0.25 * slop

	t1 := 0.0

	var cache SimplexCache
	distanceInput := DistanceInput{
		ProxyA:   *proxyA,
		ProxyB:   *proxyB,
		UseRadii: false,
	}

	// The outer loop progressively attempts new separating axes and
	// terminates when an axis repeats (no progress is made).
	for {
		xfA := sweepA.Transform(t1)
		xfB := sweepB.Transform(t1)

		distanceInput.TransformA = xfA
		distanceInput.TransformB = xfB
		distanceOutput := Distance(&distanceInput, &cache)

		// Overlapping shapes get no continuous treatment.
		if distanceOutput.Distance <= 0.0 {
			output.State = TOIOverlapped
			output.T = 0.0
			break
		}

		if distanceOutput.Distance < target+tolerance {
			output.State = TOITouching
			output.T = t1
			break
		}

		var fcn separationFunc
		fcn.initialize(&cache, proxyA, sweepA, proxyB, sweepB, t1)

		// Resolve the deepest point successively; bounded by the vertex
		// count of the larger proxy.
		done := false
		t2 := tMax
		pushBackIter := 0
		for {
			s2, indexA, indexB := fcn.findMinSeparation(t2)

			// Final configuration already separated?
			if s2 > target+tolerance {
				output.State = TOISeparated
				output.T = tMax
				done = true
				break
			}

			// Separation within tolerance: advance the sweeps.
			if s2 > target-tolerance {
				t1 = t2
				break
			}

			s1 := fcn.evaluate(indexA, indexB, t1)

			// Initial overlap can happen if the root finder ran out of
			// iterations on a previous axis.
			if s1 < target-tolerance {
				output.State = TOIFailed
				output.T = t1
				done = true
				break
			}

			if s1 <= target+tolerance {
				// t1 holds the time of impact (possibly 0).
				output.State = TOITouching
				output.T = t1
				done = true
				break
			}

			// 1D root of f(t) - target = 0, alternating secant steps with
			// bisection so progress is guaranteed.
			rootIters := 0
			a1, a2 := t1, t2
			for {
				var t float64
				if rootIters&1 != 0 {
					t = a1 + (target-s1)*(a2-a1)/(s2-s1)
				} else {
					t = 0.5 * (a1 + a2)
				}

				rootIters++
				output.RootIterations++

				s := fcn.evaluate(indexA, indexB, t)

				if math.Abs(s-target) < tolerance {
					// t2 holds a tentative value for t1.
					t2 = t
					break
				}

				// Keep the root bracketed.
				if s > target {
					a1 = t
					s1 = s
				} else {
					a2 = t
					s2 = s
				}

				if rootIters == maxRootIters {
					break
				}
			}

			pushBackIter++
			if pushBackIter == geom.MaxPolygonVertices {
				break
			}
		}

		output.Iterations++

		if done {
			break
		}

		if output.Iterations == maxTOIIterations {
			// Root finder got stuck.
			output.State = TOIFailed
			output.T = t1
			break
		}
	}

	return output
}
