package collide

import (
	"github.com/veloxphys/velox2d/geom"
	"github.com/veloxphys/velox2d/shapes"
)

// The shape-kind set is closed, so pair dispatch is a fixed table instead
// of per-pair contact types. Each entry records whether the pair has a
// narrow-phase function and whether the caller must swap A and B to reach
// the canonical order that function expects.

type pairEntry struct {
	ok   bool
	flip bool
}

var pairTable = [shapes.KindCount][shapes.KindCount]pairEntry{
	shapes.KindCircle: {
		shapes.KindCircle:  {ok: true},
		shapes.KindEdge:    {ok: true, flip: true},
		shapes.KindPolygon: {ok: true, flip: true},
		shapes.KindChain:   {ok: true, flip: true},
	},
	shapes.KindEdge: {
		shapes.KindCircle:  {ok: true},
		shapes.KindPolygon: {ok: true},
	},
	shapes.KindPolygon: {
		shapes.KindCircle:  {ok: true},
		shapes.KindEdge:    {ok: true, flip: true},
		shapes.KindPolygon: {ok: true},
		shapes.KindChain:   {ok: true, flip: true},
	},
	shapes.KindChain: {
		shapes.KindCircle:  {ok: true},
		shapes.KindPolygon: {ok: true},
	},
}

// Registered reports whether a narrow-phase function exists for the kind
// pair, and whether the shapes must be swapped into canonical order first.
func Registered(a, b shapes.Kind) (flip, ok bool) {
	e := pairTable[a][b]
	return e.flip, e.ok
}

// CollideShapes computes the manifold for a canonically ordered shape pair
// (Registered reported flip == false for kindA, kindB). Chains participate
// through their per-child edge.
func CollideShapes(m *Manifold, shapeA shapes.Shape, childA int, xfA geom.Transform, shapeB shapes.Shape, xfB geom.Transform) {
	switch a := shapeA.(type) {
	case *shapes.Circle:
		if b, isCircle := shapeB.(*shapes.Circle); isCircle {
			CollideCircles(m, a, xfA, b, xfB)
			return
		}

	case *shapes.Polygon:
		switch b := shapeB.(type) {
		case *shapes.Circle:
			CollidePolygonAndCircle(m, a, xfA, b, xfB)
			return
		case *shapes.Polygon:
			CollidePolygons(m, a, xfA, b, xfB)
			return
		}

	case *shapes.Edge:
		switch b := shapeB.(type) {
		case *shapes.Circle:
			CollideEdgeAndCircle(m, a, xfA, b, xfB)
			return
		case *shapes.Polygon:
			CollideEdgeAndPolygon(m, a, xfA, b, xfB)
			return
		}

	case *shapes.Chain:
		var edge shapes.Edge
		a.ChildEdge(&edge, childA)
		switch b := shapeB.(type) {
		case *shapes.Circle:
			CollideEdgeAndCircle(m, &edge, xfA, b, xfB)
			return
		case *shapes.Polygon:
			CollideEdgeAndPolygon(m, &edge, xfA, b, xfB)
			return
		}
	}

	m.PointCount = 0
}
