package collide

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veloxphys/velox2d/geom"
	"github.com/veloxphys/velox2d/shapes"
)

// The conservative-advancement axis must report a strictly shrinking
// separation as two head-on boxes close, or the root finder has nothing to
// bracket.
func TestSeparationShrinksDuringApproach(t *testing.T) {
	// Two 2x2 boxes closing symmetrically; faces meet at t = 0.8.
	proxy := MakeProxy(shapes.NewBox(1.0, 1.0), 0)
	sweepA := geom.Sweep{C0: geom.Vec2{-5.0, 0.0}, C: geom.Vec2{0.0, 0.0}}
	sweepB := geom.Sweep{C0: geom.Vec2{5.0, 0.0}, C: geom.Vec2{0.0, 0.0}}

	var cache SimplexCache
	input := DistanceInput{
		ProxyA:     proxy,
		ProxyB:     proxy,
		TransformA: sweepA.Transform(0.0),
		TransformB: sweepB.Transform(0.0),
	}
	Distance(&input, &cache)

	var fcn separationFunc
	s0 := fcn.initialize(&cache, &proxy, sweepA, &proxy, sweepB, 0.0)

	// Face gap is 8 at t = 0.
	assert.InDelta(t, 8.0, s0, 1e-9)

	prev := s0
	for _, tm := range []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9} {
		s, indexA, indexB := fcn.findMinSeparation(tm)
		require.Less(t, s, prev, "separation must shrink at t=%v", tm)

		// The tracked witness points agree with the minimum.
		assert.InDelta(t, s, fcn.evaluate(indexA, indexB, tm), 1e-9)
		prev = s
	}
}
