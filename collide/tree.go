package collide

import (
	"math"

	"github.com/veloxphys/velox2d/geom"
)

const (
	// NullNode marks an absent tree link.
	NullNode = -1

	// aabbExtension fattens proxy AABBs so small movements don't trigger
	// tree updates. Meters.
	aabbExtension = 0.1

	// aabbMultiplier scales the displacement used to predict where a
	// moving proxy's AABB should extend.
	aabbMultiplier = 2.0
)

type treeNode struct {
	// Enlarged (fat) AABB.
	aabb geom.AABB

	userData any

	// parent doubles as the free-list next link.
	parent int

	child1 int
	child2 int

	// height is 0 for leaves, -1 for free nodes.
	height int
}

func (n *treeNode) isLeaf() bool {
	return n.child1 == NullNode
}

// DynamicTree is a balanced binary AABB tree for broad-phase queries,
// inspired by Presson's btDbvt. Leaves are proxies with a fattened AABB, so
// client objects can move a little without any tree adjustment. Nodes are
// pooled and addressed by index so the pool can be relocated on growth.
type DynamicTree struct {
	root int

	nodes     []treeNode
	nodeCount int
	freeList  int

	// scratch traversal stack, reused across queries
	stack []int
}

// NewDynamicTree returns an empty tree.
func NewDynamicTree() *DynamicTree {
	t := &DynamicTree{
		root:     NullNode,
		nodes:    make([]treeNode, 16),
		freeList: 0,
	}
	for i := range t.nodes {
		t.nodes[i].parent = i + 1
		t.nodes[i].height = -1
	}
	t.nodes[len(t.nodes)-1].parent = NullNode
	return t
}

func (t *DynamicTree) allocateNode() int {
	if t.freeList == NullNode {
		// Double the pool; rebuild the free list over the new half.
		count := len(t.nodes)
		t.nodes = append(t.nodes, make([]treeNode, count)...)
		for i := count; i < len(t.nodes)-1; i++ {
			t.nodes[i].parent = i + 1
			t.nodes[i].height = -1
		}
		t.nodes[len(t.nodes)-1].parent = NullNode
		t.nodes[len(t.nodes)-1].height = -1
		t.freeList = count
	}

	id := t.freeList
	t.freeList = t.nodes[id].parent
	t.nodes[id] = treeNode{
		parent: NullNode,
		child1: NullNode,
		child2: NullNode,
	}
	t.nodeCount++
	return id
}

func (t *DynamicTree) freeNode(id int) {
	t.nodes[id].parent = t.freeList
	t.nodes[id].height = -1
	t.nodes[id].userData = nil
	t.freeList = id
	t.nodeCount--
}

// CreateProxy inserts a leaf for the given AABB, fattened by the tree
// margin, and returns its proxy id.
func (t *DynamicTree) CreateProxy(aabb geom.AABB, userData any) int {
	id := t.allocateNode()
	t.nodes[id].aabb = aabb.Extend(aabbExtension)
	t.nodes[id].userData = userData
	t.insertLeaf(id)
	return id
}

// DestroyProxy removes a leaf.
func (t *DynamicTree) DestroyProxy(proxyID int) {
	t.removeLeaf(proxyID)
	t.freeNode(proxyID)
}

// MoveProxy updates a proxy with a new AABB and the displacement since the
// last update. Returns true if the proxy was actually reinserted.
func (t *DynamicTree) MoveProxy(proxyID int, aabb geom.AABB, displacement geom.Vec2) bool {
	if t.nodes[proxyID].aabb.Contains(aabb) {
		return false
	}

	t.removeLeaf(proxyID)

	b := aabb.Extend(aabbExtension)

	// Predict motion: extend the box in the direction of travel.
	d := displacement.Mul(aabbMultiplier)
	if d[0] < 0.0 {
		b.Lower[0] += d[0]
	} else {
		b.Upper[0] += d[0]
	}
	if d[1] < 0.0 {
		b.Lower[1] += d[1]
	} else {
		b.Upper[1] += d[1]
	}

	t.nodes[proxyID].aabb = b
	t.insertLeaf(proxyID)
	return true
}

// UserData returns the value stored with a proxy.
func (t *DynamicTree) UserData(proxyID int) any {
	return t.nodes[proxyID].userData
}

// FatAABB returns the enlarged AABB of a proxy.
func (t *DynamicTree) FatAABB(proxyID int) geom.AABB {
	return t.nodes[proxyID].aabb
}

// Query invokes cb for every leaf overlapping aabb; return false from cb to
// stop early.
func (t *DynamicTree) Query(aabb geom.AABB, cb func(proxyID int) bool) {
	t.stack = append(t.stack[:0], t.root)

	for len(t.stack) > 0 {
		id := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]
		if id == NullNode {
			continue
		}

		node := &t.nodes[id]
		if !geom.Overlap(node.aabb, aabb) {
			continue
		}

		if node.isLeaf() {
			if !cb(id) {
				return
			}
		} else {
			t.stack = append(t.stack, node.child1, node.child2)
		}
	}
}

// RayCast traverses the tree along a ray. The callback returns the new max
// fraction to clip the ray (0 terminates, input.MaxFraction leaves it
// unchanged).
func (t *DynamicTree) RayCast(input geom.RayCastInput, cb func(sub geom.RayCastInput, proxyID int) float64) {
	p1 := input.P1
	p2 := input.P2
	r := geom.Normalized(p2.Sub(p1))

	// v is perpendicular to the segment; separating axis per Gino p80:
	// |dot(v, p1 - c)| > dot(|v|, h)
	v := geom.CrossSV(1.0, r)
	absV := geom.AbsVec(v)

	maxFraction := input.MaxFraction

	segmentBox := func() geom.AABB {
		end := p1.Add(p2.Sub(p1).Mul(maxFraction))
		return geom.AABB{Lower: geom.MinVec(p1, end), Upper: geom.MaxVec(p1, end)}
	}
	segmentAABB := segmentBox()

	t.stack = append(t.stack[:0], t.root)

	for len(t.stack) > 0 {
		id := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]
		if id == NullNode {
			continue
		}

		node := &t.nodes[id]
		if !geom.Overlap(node.aabb, segmentAABB) {
			continue
		}

		c := node.aabb.Center()
		h := node.aabb.Extents()
		if math.Abs(v.Dot(p1.Sub(c)))-absV.Dot(h) > 0.0 {
			continue
		}

		if node.isLeaf() {
			sub := geom.RayCastInput{P1: input.P1, P2: input.P2, MaxFraction: maxFraction}
			value := cb(sub, id)
			if value == 0.0 {
				// Client terminated the cast.
				return
			}
			if value > 0.0 {
				maxFraction = value
				segmentAABB = segmentBox()
			}
		} else {
			t.stack = append(t.stack, node.child1, node.child2)
		}
	}
}

func (t *DynamicTree) insertLeaf(leaf int) {
	if t.root == NullNode {
		t.root = leaf
		t.nodes[leaf].parent = NullNode
		return
	}

	// Find the best sibling via the surface-area heuristic.
	leafAABB := t.nodes[leaf].aabb
	index := t.root
	for !t.nodes[index].isLeaf() {
		child1 := t.nodes[index].child1
		child2 := t.nodes[index].child2

		area := t.nodes[index].aabb.Perimeter()
		combinedArea := geom.Union(t.nodes[index].aabb, leafAABB).Perimeter()

		// Cost of creating a new parent for this node and the leaf.
		cost := 2.0 * combinedArea

		// Minimum cost of pushing the leaf further down.
		inheritanceCost := 2.0 * (combinedArea - area)

		descendCost := func(child int) float64 {
			merged := geom.Union(leafAABB, t.nodes[child].aabb)
			if t.nodes[child].isLeaf() {
				return merged.Perimeter() + inheritanceCost
			}
			return merged.Perimeter() - t.nodes[child].aabb.Perimeter() + inheritanceCost
		}
		cost1 := descendCost(child1)
		cost2 := descendCost(child2)

		if cost < cost1 && cost < cost2 {
			break
		}

		if cost1 < cost2 {
			index = child1
		} else {
			index = child2
		}
	}

	sibling := index

	// Splice in a new parent.
	oldParent := t.nodes[sibling].parent
	newParent := t.allocateNode()
	t.nodes[newParent].parent = oldParent
	t.nodes[newParent].aabb = geom.Union(leafAABB, t.nodes[sibling].aabb)
	t.nodes[newParent].height = t.nodes[sibling].height + 1

	if oldParent != NullNode {
		if t.nodes[oldParent].child1 == sibling {
			t.nodes[oldParent].child1 = newParent
		} else {
			t.nodes[oldParent].child2 = newParent
		}
	} else {
		t.root = newParent
	}
	t.nodes[newParent].child1 = sibling
	t.nodes[newParent].child2 = leaf
	t.nodes[sibling].parent = newParent
	t.nodes[leaf].parent = newParent

	// Walk up fixing heights and AABBs.
	for index = t.nodes[leaf].parent; index != NullNode; index = t.nodes[index].parent {
		index = t.balance(index)

		child1 := t.nodes[index].child1
		child2 := t.nodes[index].child2

		t.nodes[index].height = 1 + max(t.nodes[child1].height, t.nodes[child2].height)
		t.nodes[index].aabb = geom.Union(t.nodes[child1].aabb, t.nodes[child2].aabb)
	}
}

func (t *DynamicTree) removeLeaf(leaf int) {
	if leaf == t.root {
		t.root = NullNode
		return
	}

	parent := t.nodes[leaf].parent
	grandParent := t.nodes[parent].parent
	var sibling int
	if t.nodes[parent].child1 == leaf {
		sibling = t.nodes[parent].child2
	} else {
		sibling = t.nodes[parent].child1
	}

	if grandParent == NullNode {
		t.root = sibling
		t.nodes[sibling].parent = NullNode
		t.freeNode(parent)
		return
	}

	// Destroy the parent and connect the sibling to the grandparent.
	if t.nodes[grandParent].child1 == parent {
		t.nodes[grandParent].child1 = sibling
	} else {
		t.nodes[grandParent].child2 = sibling
	}
	t.nodes[sibling].parent = grandParent
	t.freeNode(parent)

	for index := grandParent; index != NullNode; index = t.nodes[index].parent {
		index = t.balance(index)

		child1 := t.nodes[index].child1
		child2 := t.nodes[index].child2

		t.nodes[index].aabb = geom.Union(t.nodes[child1].aabb, t.nodes[child2].aabb)
		t.nodes[index].height = 1 + max(t.nodes[child1].height, t.nodes[child2].height)
	}
}

// balance performs a left or right rotation if node iA is imbalanced and
// returns the index of the subtree's new root.
func (t *DynamicTree) balance(iA int) int {
	a := &t.nodes[iA]
	if a.isLeaf() || a.height < 2 {
		return iA
	}

	iB := a.child1
	iC := a.child2
	b := &t.nodes[iB]
	c := &t.nodes[iC]

	balance := c.height - b.height

	// Rotate C up.
	if balance > 1 {
		iF := c.child1
		iG := c.child2
		f := &t.nodes[iF]
		g := &t.nodes[iG]

		// Swap A and C.
		c.child1 = iA
		c.parent = a.parent
		a.parent = iC

		if c.parent != NullNode {
			if t.nodes[c.parent].child1 == iA {
				t.nodes[c.parent].child1 = iC
			} else {
				t.nodes[c.parent].child2 = iC
			}
		} else {
			t.root = iC
		}

		if f.height > g.height {
			c.child2 = iF
			a.child2 = iG
			g.parent = iA
			a.aabb = geom.Union(b.aabb, g.aabb)
			c.aabb = geom.Union(a.aabb, f.aabb)
			a.height = 1 + max(b.height, g.height)
			c.height = 1 + max(a.height, f.height)
		} else {
			c.child2 = iG
			a.child2 = iF
			f.parent = iA
			a.aabb = geom.Union(b.aabb, f.aabb)
			c.aabb = geom.Union(a.aabb, g.aabb)
			a.height = 1 + max(b.height, f.height)
			c.height = 1 + max(a.height, g.height)
		}

		return iC
	}

	// Rotate B up.
	if balance < -1 {
		iD := b.child1
		iE := b.child2
		d := &t.nodes[iD]
		e := &t.nodes[iE]

		// Swap A and B.
		b.child1 = iA
		b.parent = a.parent
		a.parent = iB

		if b.parent != NullNode {
			if t.nodes[b.parent].child1 == iA {
				t.nodes[b.parent].child1 = iB
			} else {
				t.nodes[b.parent].child2 = iB
			}
		} else {
			t.root = iB
		}

		if d.height > e.height {
			b.child2 = iD
			a.child1 = iE
			e.parent = iA
			a.aabb = geom.Union(c.aabb, e.aabb)
			b.aabb = geom.Union(a.aabb, d.aabb)
			a.height = 1 + max(c.height, e.height)
			b.height = 1 + max(a.height, d.height)
		} else {
			b.child2 = iE
			a.child1 = iD
			d.parent = iA
			a.aabb = geom.Union(c.aabb, d.aabb)
			b.aabb = geom.Union(a.aabb, e.aabb)
			a.height = 1 + max(c.height, d.height)
			b.height = 1 + max(a.height, e.height)
		}

		return iB
	}

	return iA
}

// Height returns the tree height, 0 when empty.
func (t *DynamicTree) Height() int {
	if t.root == NullNode {
		return 0
	}
	return t.nodes[t.root].height
}

// MaxBalance returns the largest child-height difference in the tree.
func (t *DynamicTree) MaxBalance() int {
	maxBalance := 0
	for i := range t.nodes {
		node := &t.nodes[i]
		if node.height <= 1 {
			continue
		}
		balance := t.nodes[node.child2].height - t.nodes[node.child1].height
		if balance < 0 {
			balance = -balance
		}
		maxBalance = max(maxBalance, balance)
	}
	return maxBalance
}

// ShiftOrigin translates every stored AABB by -newOrigin, for worlds that
// move their origin to keep coordinates small.
func (t *DynamicTree) ShiftOrigin(newOrigin geom.Vec2) {
	for i := range t.nodes {
		t.nodes[i].aabb.Lower = t.nodes[i].aabb.Lower.Sub(newOrigin)
		t.nodes[i].aabb.Upper = t.nodes[i].aabb.Upper.Sub(newOrigin)
	}
}
