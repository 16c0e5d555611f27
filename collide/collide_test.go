package collide_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veloxphys/velox2d/collide"
	"github.com/veloxphys/velox2d/geom"
	"github.com/veloxphys/velox2d/shapes"
)

func TestDistanceSeparatedBoxes(t *testing.T) {
	// Two unit-half-extent boxes, face to face, 2 units of clearance.
	input := collide.DistanceInput{
		ProxyA:     collide.MakeProxy(shapes.NewBox(1.0, 1.0), 0),
		ProxyB:     collide.MakeProxy(shapes.NewBox(1.0, 1.0), 0),
		TransformA: geom.TransformFrom(geom.Vec2{-2.0, 0.0}, 0.0),
		TransformB: geom.TransformFrom(geom.Vec2{2.0, 0.0}, 0.0),
	}

	var cache collide.SimplexCache
	out := collide.Distance(&input, &cache)

	assert.InDelta(t, 2.0, out.Distance, 1e-9)
	assert.InDelta(t, -1.0, out.PointA[0], 1e-9)
	assert.InDelta(t, 1.0, out.PointB[0], 1e-9)
	assert.Less(t, out.Iterations, 20)

	// Warm querying with the populated cache converges immediately.
	out = collide.Distance(&input, &cache)
	assert.InDelta(t, 2.0, out.Distance, 1e-9)
}

func TestDistanceWithRadii(t *testing.T) {
	input := collide.DistanceInput{
		ProxyA:     collide.MakeProxy(shapes.NewCircle(0.5), 0),
		ProxyB:     collide.MakeProxy(shapes.NewCircle(0.5), 0),
		TransformA: geom.TransformFrom(geom.Vec2{0.0, 0.0}, 0.0),
		TransformB: geom.TransformFrom(geom.Vec2{3.0, 0.0}, 0.0),
		UseRadii:   true,
	}

	var cache collide.SimplexCache
	out := collide.Distance(&input, &cache)
	assert.InDelta(t, 2.0, out.Distance, 1e-9)
}

func TestTestOverlap(t *testing.T) {
	a := shapes.NewBox(1.0, 1.0)
	b := shapes.NewBox(1.0, 1.0)

	xfA := geom.TransformFrom(geom.Vec2{}, 0.0)
	assert.True(t, collide.TestOverlap(a, 0, b, 0, xfA, geom.TransformFrom(geom.Vec2{1.5, 0.0}, 0.0)))
	assert.False(t, collide.TestOverlap(a, 0, b, 0, xfA, geom.TransformFrom(geom.Vec2{3.0, 0.0}, 0.0)))
}

func TestCollideCircles(t *testing.T) {
	a := shapes.NewCircle(1.0)
	b := shapes.NewCircle(1.0)

	var m collide.Manifold
	collide.CollideShapes(&m, a, 0, geom.TransformFrom(geom.Vec2{}, 0.0),
		b, geom.TransformFrom(geom.Vec2{1.5, 0.0}, 0.0))

	require.Equal(t, 1, m.PointCount)
	assert.Equal(t, collide.ManifoldCircles, m.Kind)

	var wm collide.WorldManifold
	wm.Initialize(&m, geom.TransformFrom(geom.Vec2{}, 0.0), 1.0,
		geom.TransformFrom(geom.Vec2{1.5, 0.0}, 0.0), 1.0)
	assert.InDelta(t, 1.0, wm.Normal[0], 1e-9)
	assert.InDelta(t, -0.5, wm.Separations[0], 1e-9)
}

func TestCollideBoxesFaceManifold(t *testing.T) {
	a := shapes.NewBox(1.0, 1.0)
	b := shapes.NewBox(1.0, 1.0)

	var m collide.Manifold
	collide.CollideShapes(&m, a, 0, geom.TransformFrom(geom.Vec2{}, 0.0),
		b, geom.TransformFrom(geom.Vec2{1.9, 0.0}, 0.0))

	assert.Equal(t, 2, m.PointCount)
}

func TestCollidePolygonCircle(t *testing.T) {
	box := shapes.NewBox(1.0, 1.0)
	circle := shapes.NewCircle(0.5)

	var m collide.Manifold
	collide.CollideShapes(&m, box, 0, geom.TransformFrom(geom.Vec2{}, 0.0),
		circle, geom.TransformFrom(geom.Vec2{1.4, 0.0}, 0.0))
	assert.Equal(t, 1, m.PointCount)
}

func TestCollideSeparatedProducesEmptyManifold(t *testing.T) {
	a := shapes.NewBox(1.0, 1.0)
	b := shapes.NewBox(1.0, 1.0)

	m := collide.Manifold{PointCount: 2}
	collide.CollideShapes(&m, a, 0, geom.TransformFrom(geom.Vec2{}, 0.0),
		b, geom.TransformFrom(geom.Vec2{5.0, 0.0}, 0.0))
	assert.Equal(t, 0, m.PointCount)
}

func TestRegistered(t *testing.T) {
	tests := []struct {
		name     string
		a, b     shapes.Kind
		ok, flip bool
	}{
		{"circle-circle", shapes.KindCircle, shapes.KindCircle, true, false},
		{"circle-polygon flips", shapes.KindCircle, shapes.KindPolygon, true, true},
		{"polygon-circle canonical", shapes.KindPolygon, shapes.KindCircle, true, false},
		{"edge-polygon canonical", shapes.KindEdge, shapes.KindPolygon, true, false},
		{"polygon-edge flips", shapes.KindPolygon, shapes.KindEdge, true, true},
		{"chain-circle canonical", shapes.KindChain, shapes.KindCircle, true, false},
		{"edge-edge unsupported", shapes.KindEdge, shapes.KindEdge, false, false},
		{"chain-chain unsupported", shapes.KindChain, shapes.KindChain, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flip, ok := collide.Registered(tt.a, tt.b)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.flip, flip)
		})
	}
}

func TestTimeOfImpactHeadOn(t *testing.T) {
	// Two 2x2 boxes closing symmetrically; faces meet at t = 0.8.
	proxy := collide.MakeProxy(shapes.NewBox(1.0, 1.0), 0)

	input := collide.TOIInput{
		ProxyA: proxy,
		ProxyB: proxy,
		SweepA: geom.Sweep{C0: geom.Vec2{-5.0, 0.0}, C: geom.Vec2{0.0, 0.0}},
		SweepB: geom.Sweep{C0: geom.Vec2{5.0, 0.0}, C: geom.Vec2{0.0, 0.0}},
		TMax:   1.0,
		Slop:   geom.LinearSlop,
	}

	out := collide.TimeOfImpact(&input)
	require.Equal(t, collide.TOITouching, out.State)
	assert.Greater(t, out.T, 0.7)
	assert.Less(t, out.T, 0.9)
}

func TestTimeOfImpactMiss(t *testing.T) {
	proxy := collide.MakeProxy(shapes.NewBox(1.0, 1.0), 0)

	input := collide.TOIInput{
		ProxyA: proxy,
		ProxyB: proxy,
		SweepA: geom.Sweep{C0: geom.Vec2{-5.0, 0.0}, C: geom.Vec2{-4.0, 0.0}},
		SweepB: geom.Sweep{C0: geom.Vec2{5.0, 0.0}, C: geom.Vec2{4.0, 0.0}},
		TMax:   1.0,
		Slop:   geom.LinearSlop,
	}

	out := collide.TimeOfImpact(&input)
	assert.Equal(t, collide.TOISeparated, out.State)
	assert.Equal(t, 1.0, out.T)
}

func TestTimeOfImpactInitialOverlap(t *testing.T) {
	proxy := collide.MakeProxy(shapes.NewBox(1.0, 1.0), 0)

	input := collide.TOIInput{
		ProxyA: proxy,
		ProxyB: proxy,
		SweepA: geom.Sweep{C0: geom.Vec2{0.0, 0.0}, C: geom.Vec2{1.0, 0.0}},
		SweepB: geom.Sweep{C0: geom.Vec2{0.5, 0.0}, C: geom.Vec2{0.5, 0.0}},
		TMax:   1.0,
		Slop:   geom.LinearSlop,
	}

	out := collide.TimeOfImpact(&input)
	assert.Equal(t, collide.TOIOverlapped, out.State)
	assert.Equal(t, 0.0, out.T)
}

func TestDynamicTreeInsertRemove(t *testing.T) {
	tree := collide.NewDynamicTree()
	rng := rand.New(rand.NewSource(1))

	ids := make([]int, 0, 128)
	for i := 0; i < 128; i++ {
		x := rng.Float64() * 100.0
		y := rng.Float64() * 100.0
		bb := geom.AABB{Lower: geom.Vec2{x, y}, Upper: geom.Vec2{x + 1.0, y + 1.0}}
		ids = append(ids, tree.CreateProxy(bb, i))
	}

	// A balanced tree over n leaves stays well under linear height.
	assert.Less(t, tree.Height(), 20)
	assert.LessOrEqual(t, tree.MaxBalance(), tree.Height())

	found := 0
	tree.Query(geom.AABB{Lower: geom.Vec2{0, 0}, Upper: geom.Vec2{100, 100}}, func(proxyID int) bool {
		found++
		return true
	})
	assert.Equal(t, 128, found)

	for _, id := range ids {
		tree.DestroyProxy(id)
	}
	assert.Equal(t, 0, tree.Height())
}

func TestDynamicTreeUserDataAndMove(t *testing.T) {
	tree := collide.NewDynamicTree()
	bb := geom.AABB{Lower: geom.Vec2{0, 0}, Upper: geom.Vec2{1, 1}}
	id := tree.CreateProxy(bb, "crate")

	assert.Equal(t, "crate", tree.UserData(id))
	assert.True(t, tree.FatAABB(id).Contains(bb))

	// Move inside the fat AABB is a no-op.
	small := geom.AABB{Lower: geom.Vec2{0.01, 0.01}, Upper: geom.Vec2{0.99, 0.99}}
	assert.False(t, tree.MoveProxy(id, small, geom.Vec2{}))

	far := geom.AABB{Lower: geom.Vec2{50, 50}, Upper: geom.Vec2{51, 51}}
	assert.True(t, tree.MoveProxy(id, far, geom.Vec2{1, 0}))
	assert.True(t, tree.FatAABB(id).Contains(far))
}

func TestDynamicTreeRayCast(t *testing.T) {
	tree := collide.NewDynamicTree()
	for i := 0; i < 5; i++ {
		x := float64(i) * 3.0
		tree.CreateProxy(geom.AABB{
			Lower: geom.Vec2{x, -0.5}, Upper: geom.Vec2{x + 1.0, 0.5},
		}, i)
	}

	visited := map[int]bool{}
	tree.RayCast(geom.RayCastInput{
		P1: geom.Vec2{-1.0, 0.0}, P2: geom.Vec2{20.0, 0.0}, MaxFraction: 1.0,
	}, func(sub geom.RayCastInput, proxyID int) float64 {
		visited[tree.UserData(proxyID).(int)] = true
		return sub.MaxFraction
	})
	assert.Len(t, visited, 5)
}

func TestBroadPhasePairs(t *testing.T) {
	bp := collide.NewBroadPhase()

	a := bp.CreateProxy(geom.AABB{Lower: geom.Vec2{0, 0}, Upper: geom.Vec2{1, 1}}, "a")
	b := bp.CreateProxy(geom.AABB{Lower: geom.Vec2{0.5, 0.5}, Upper: geom.Vec2{1.5, 1.5}}, "b")
	bp.CreateProxy(geom.AABB{Lower: geom.Vec2{10, 10}, Upper: geom.Vec2{11, 11}}, "c")

	assert.Equal(t, 3, bp.ProxyCount())
	assert.True(t, bp.TestOverlap(a, b))

	type pair struct{ a, b string }
	var pairs []pair
	bp.UpdatePairs(func(userDataA, userDataB any) {
		pairs = append(pairs, pair{userDataA.(string), userDataB.(string)})
	})
	require.Len(t, pairs, 1)
	got := pairs[0]
	assert.True(t, (got.a == "a" && got.b == "b") || (got.a == "b" && got.b == "a"))

	// A second pass with no moves reports nothing new.
	pairs = pairs[:0]
	bp.UpdatePairs(func(userDataA, userDataB any) {
		pairs = append(pairs, pair{userDataA.(string), userDataB.(string)})
	})
	assert.Empty(t, pairs)
}

func TestBroadPhaseTouchProxy(t *testing.T) {
	bp := collide.NewBroadPhase()
	a := bp.CreateProxy(geom.AABB{Lower: geom.Vec2{0, 0}, Upper: geom.Vec2{1, 1}}, "a")
	bp.CreateProxy(geom.AABB{Lower: geom.Vec2{0.5, 0}, Upper: geom.Vec2{1.5, 1}}, "b")

	bp.UpdatePairs(func(userDataA, userDataB any) {})

	calls := 0
	bp.TouchProxy(a)
	bp.UpdatePairs(func(userDataA, userDataB any) { calls++ })
	assert.Equal(t, 1, calls)
}
