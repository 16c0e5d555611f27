package shapes

import (
	"fmt"

	"github.com/veloxphys/velox2d/geom"
)

// Chain is a free-form sequence of line segments with two-sided collision.
// Adjacency between segments produces smooth contact normals. Chains do not
// collide properly if they self-intersect.
type Chain struct {
	Verts []geom.Vec2

	PrevVertex, NextVertex geom.Vec2
	HasPrev, HasNext       bool
}

// NewChain builds an open chain from the given vertices.
func NewChain(vertices []geom.Vec2) (*Chain, error) {
	if len(vertices) < 2 {
		return nil, fmt.Errorf("%w: chain needs at least 2 vertices, got %d", ErrDegenerate, len(vertices))
	}
	if err := checkSpacing(vertices); err != nil {
		return nil, err
	}

	c := &Chain{Verts: append([]geom.Vec2(nil), vertices...)}
	return c, nil
}

// NewLoop builds a closed chain; the last segment connects back to the
// first vertex.
func NewLoop(vertices []geom.Vec2) (*Chain, error) {
	if len(vertices) < 3 {
		return nil, fmt.Errorf("%w: loop needs at least 3 vertices, got %d", ErrDegenerate, len(vertices))
	}
	if err := checkSpacing(vertices); err != nil {
		return nil, err
	}

	verts := make([]geom.Vec2, len(vertices)+1)
	copy(verts, vertices)
	verts[len(vertices)] = vertices[0]

	return &Chain{
		Verts:      verts,
		PrevVertex: verts[len(verts)-2],
		NextVertex: verts[1],
		HasPrev:    true,
		HasNext:    true,
	}, nil
}

func checkSpacing(vertices []geom.Vec2) error {
	for i := 1; i < len(vertices); i++ {
		d := vertices[i].Sub(vertices[i-1])
		if d.Dot(d) <= geom.LinearSlop*geom.LinearSlop {
			return fmt.Errorf("%w: chain vertices %d and %d are too close together", ErrDegenerate, i-1, i)
		}
	}
	return nil
}

func (c *Chain) Kind() Kind      { return KindChain }
func (c *Chain) Radius() float64 { return geom.PolygonRadius }

// ChildCount is the segment count: one less than the vertex count.
func (c *Chain) ChildCount() int {
	return len(c.Verts) - 1
}

// ChildEdge fills e with segment index plus the ghost vertices that give
// the narrow phase adjacency information.
func (c *Chain) ChildEdge(e *Edge, index int) {
	e.V1 = c.Verts[index]
	e.V2 = c.Verts[index+1]

	if index > 0 {
		e.V0 = c.Verts[index-1]
		e.HasV0 = true
	} else {
		e.V0 = c.PrevVertex
		e.HasV0 = c.HasPrev
	}

	if index < len(c.Verts)-2 {
		e.V3 = c.Verts[index+2]
		e.HasV3 = true
	} else {
		e.V3 = c.NextVertex
		e.HasV3 = c.HasNext
	}
}

// Chains have no interior.
func (c *Chain) TestPoint(xf geom.Transform, p geom.Vec2) bool {
	return false
}

func (c *Chain) RayCast(input geom.RayCastInput, xf geom.Transform, child int) (geom.RayCastOutput, bool) {
	i2 := child + 1
	if i2 == len(c.Verts) {
		i2 = 0
	}

	edge := Edge{V1: c.Verts[child], V2: c.Verts[i2]}
	return edge.RayCast(input, xf, 0)
}

func (c *Chain) ComputeAABB(xf geom.Transform, child int) geom.AABB {
	i2 := child + 1
	if i2 == len(c.Verts) {
		i2 = 0
	}

	v1 := xf.Apply(c.Verts[child])
	v2 := xf.Apply(c.Verts[i2])
	return geom.AABB{
		Lower: geom.MinVec(v1, v2),
		Upper: geom.MaxVec(v1, v2),
	}
}

// Chains are massless; attach them to static bodies.
func (c *Chain) ComputeMass(density float64) MassData {
	return MassData{}
}
