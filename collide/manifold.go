package collide

import "github.com/veloxphys/velox2d/geom"

// MaxManifoldPoints is the most contact points two convex shapes can share.
const MaxManifoldPoints = 2

// Feature types forming a contact point.
const (
	FeatureVertex uint8 = 0
	FeatureFace   uint8 = 1
)

// Feature identifies which vertices or faces on the two shapes intersect to
// form a contact point. Matching features across frames is what lets the
// solver warm-start individual points.
type Feature struct {
	IndexA uint8
	IndexB uint8
	TypeA  uint8
	TypeB  uint8
}

// Key packs the feature into a comparable value.
func (f Feature) Key() uint32 {
	return uint32(f.IndexA) |
		uint32(f.IndexB)<<8 |
		uint32(f.TypeA)<<16 |
		uint32(f.TypeB)<<24
}

// FeatureFromKey unpacks a feature key.
func FeatureFromKey(key uint32) Feature {
	return Feature{
		IndexA: uint8(key & 0xFF),
		IndexB: uint8(key >> 8 & 0xFF),
		TypeA:  uint8(key >> 16 & 0xFF),
		TypeB:  uint8(key >> 24 & 0xFF),
	}
}

// ManifoldKind selects how a manifold's local data is interpreted.
type ManifoldKind uint8

const (
	// ManifoldCircles: LocalPoint is circle A's center, each point's
	// LocalPoint is circle B's center.
	ManifoldCircles ManifoldKind = iota
	// ManifoldFaceA: LocalNormal and LocalPoint are a face on shape A,
	// points hold clip points of shape B.
	ManifoldFaceA
	// ManifoldFaceB: mirror of ManifoldFaceA.
	ManifoldFaceB
)

// ManifoldPoint is one contact point. The accumulated impulses are the
// solver's warm-start state and survive across steps via feature matching.
type ManifoldPoint struct {
	LocalPoint     geom.Vec2
	NormalImpulse  float64
	TangentImpulse float64
	Feature        Feature
}

// Manifold describes how two convex shapes touch, in shape-local
// coordinates so position correction can account for movement between the
// narrow phase and the solver. Stored across steps; kept small.
type Manifold struct {
	Points      [MaxManifoldPoints]ManifoldPoint
	LocalNormal geom.Vec2
	LocalPoint  geom.Vec2
	Kind        ManifoldKind
	PointCount  int
}

// WorldManifold is a manifold evaluated at concrete body transforms.
type WorldManifold struct {
	// Normal points from A to B.
	Normal geom.Vec2
	Points [MaxManifoldPoints]geom.Vec2
	// Separations are negative when overlapping, in meters.
	Separations [MaxManifoldPoints]float64
}

// Initialize evaluates the manifold at the given transforms and radii.
func (wm *WorldManifold) Initialize(m *Manifold, xfA geom.Transform, radiusA float64, xfB geom.Transform, radiusB float64) {
	if m.PointCount == 0 {
		return
	}

	switch m.Kind {
	case ManifoldCircles:
		wm.Normal = geom.Vec2{1, 0}
		pointA := xfA.Apply(m.LocalPoint)
		pointB := xfB.Apply(m.Points[0].LocalPoint)
		if d := pointB.Sub(pointA); d.Dot(d) > geom.Epsilon*geom.Epsilon {
			wm.Normal = geom.Normalized(d)
		}

		cA := pointA.Add(wm.Normal.Mul(radiusA))
		cB := pointB.Sub(wm.Normal.Mul(radiusB))
		wm.Points[0] = cA.Add(cB).Mul(0.5)
		wm.Separations[0] = cB.Sub(cA).Dot(wm.Normal)

	case ManifoldFaceA:
		wm.Normal = xfA.Q.Apply(m.LocalNormal)
		planePoint := xfA.Apply(m.LocalPoint)

		for i := 0; i < m.PointCount; i++ {
			clipPoint := xfB.Apply(m.Points[i].LocalPoint)
			cA := clipPoint.Add(wm.Normal.Mul(radiusA - clipPoint.Sub(planePoint).Dot(wm.Normal)))
			cB := clipPoint.Sub(wm.Normal.Mul(radiusB))
			wm.Points[i] = cA.Add(cB).Mul(0.5)
			wm.Separations[i] = cB.Sub(cA).Dot(wm.Normal)
		}

	case ManifoldFaceB:
		wm.Normal = xfB.Q.Apply(m.LocalNormal)
		planePoint := xfB.Apply(m.LocalPoint)

		for i := 0; i < m.PointCount; i++ {
			clipPoint := xfA.Apply(m.Points[i].LocalPoint)
			cB := clipPoint.Add(wm.Normal.Mul(radiusB - clipPoint.Sub(planePoint).Dot(wm.Normal)))
			cA := clipPoint.Sub(wm.Normal.Mul(radiusA))
			wm.Points[i] = cA.Add(cB).Mul(0.5)
			wm.Separations[i] = cA.Sub(cB).Dot(wm.Normal)
		}

		// Keep the normal pointing from A to B.
		wm.Normal = wm.Normal.Mul(-1)
	}
}

// PointState classifies a manifold point across an update.
type PointState uint8

const (
	PointNull PointState = iota
	PointAdded
	PointPersisted
	PointRemoved
)

// PointStates diffs two manifolds by feature id: state1 describes the old
// points (persist/remove), state2 the new points (persist/add).
func PointStates(m1, m2 *Manifold) (state1, state2 [MaxManifoldPoints]PointState) {
	for i := 0; i < m1.PointCount; i++ {
		id := m1.Points[i].Feature
		state1[i] = PointRemoved
		for j := 0; j < m2.PointCount; j++ {
			if m2.Points[j].Feature.Key() == id.Key() {
				state1[i] = PointPersisted
				break
			}
		}
	}

	for i := 0; i < m2.PointCount; i++ {
		id := m2.Points[i].Feature
		state2[i] = PointAdded
		for j := 0; j < m1.PointCount; j++ {
			if m1.Points[j].Feature.Key() == id.Key() {
				state2[i] = PointPersisted
				break
			}
		}
	}
	return
}

// clipVertex is a vertex plus the feature it came from, for clipping.
type clipVertex struct {
	v       geom.Vec2
	feature Feature
}

// clipSegmentToLine is one Sutherland-Hodgman clip step. Returns the number
// of output points (at most 2).
func clipSegmentToLine(vOut *[2]clipVertex, vIn *[2]clipVertex, normal geom.Vec2, offset float64, vertexIndexA int) int {
	numOut := 0

	distance0 := normal.Dot(vIn[0].v) - offset
	distance1 := normal.Dot(vIn[1].v) - offset

	if distance0 <= 0.0 {
		vOut[numOut] = vIn[0]
		numOut++
	}
	if distance1 <= 0.0 {
		vOut[numOut] = vIn[1]
		numOut++
	}

	if distance0*distance1 < 0.0 {
		// The segment straddles the plane.
		interp := distance0 / (distance0 - distance1)
		vOut[numOut].v = vIn[0].v.Add(vIn[1].v.Sub(vIn[0].v).Mul(interp))

		// Vertex A is hitting edge B.
		vOut[numOut].feature = Feature{
			IndexA: uint8(vertexIndexA),
			IndexB: vIn[0].feature.IndexB,
			TypeA:  FeatureVertex,
			TypeB:  FeatureFace,
		}
		numOut++
	}

	return numOut
}
