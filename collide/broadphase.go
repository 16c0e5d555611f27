package collide

import (
	"sort"

	"github.com/veloxphys/velox2d/geom"
)

type proxyPair struct {
	a, b int
}

// BroadPhase wraps a DynamicTree with a move buffer: proxies that were
// created, touched, or moved since the last UpdatePairs are queried against
// the tree to discover new overlapping pairs.
type BroadPhase struct {
	tree *DynamicTree

	proxyCount int

	moveBuffer []int
	pairBuffer []proxyPair

	queryProxy int
}

// NewBroadPhase returns an empty broad phase.
func NewBroadPhase() *BroadPhase {
	return &BroadPhase{
		tree:       NewDynamicTree(),
		moveBuffer: make([]int, 0, 16),
		pairBuffer: make([]proxyPair, 0, 16),
	}
}

// CreateProxy inserts a proxy and buffers it for the next UpdatePairs.
func (bp *BroadPhase) CreateProxy(aabb geom.AABB, userData any) int {
	proxyID := bp.tree.CreateProxy(aabb, userData)
	bp.proxyCount++
	bp.bufferMove(proxyID)
	return proxyID
}

// DestroyProxy removes a proxy.
func (bp *BroadPhase) DestroyProxy(proxyID int) {
	bp.unBufferMove(proxyID)
	bp.proxyCount--
	bp.tree.DestroyProxy(proxyID)
}

// MoveProxy updates the proxy's AABB; if the fat AABB no longer contains it,
// the proxy is reinserted and buffered for pairing.
func (bp *BroadPhase) MoveProxy(proxyID int, aabb geom.AABB, displacement geom.Vec2) {
	if bp.tree.MoveProxy(proxyID, aabb, displacement) {
		bp.bufferMove(proxyID)
	}
}

// TouchProxy forces the proxy to be considered in the next UpdatePairs.
func (bp *BroadPhase) TouchProxy(proxyID int) {
	bp.bufferMove(proxyID)
}

// UserData returns the value stored with a proxy.
func (bp *BroadPhase) UserData(proxyID int) any {
	return bp.tree.UserData(proxyID)
}

// FatAABB returns the enlarged AABB of a proxy.
func (bp *BroadPhase) FatAABB(proxyID int) geom.AABB {
	return bp.tree.FatAABB(proxyID)
}

// TestOverlap reports whether the fat AABBs of two proxies overlap.
func (bp *BroadPhase) TestOverlap(proxyIDA, proxyIDB int) bool {
	return geom.Overlap(bp.tree.FatAABB(proxyIDA), bp.tree.FatAABB(proxyIDB))
}

// ProxyCount returns the number of live proxies.
func (bp *BroadPhase) ProxyCount() int {
	return bp.proxyCount
}

// TreeHeight returns the height of the underlying tree.
func (bp *BroadPhase) TreeHeight() int {
	return bp.tree.Height()
}

// TreeBalance returns the largest child-height difference of the tree.
func (bp *BroadPhase) TreeBalance() int {
	return bp.tree.MaxBalance()
}

// UpdatePairs queries moved proxies against the tree and emits each new
// overlapping pair once, through cb.
func (bp *BroadPhase) UpdatePairs(cb func(userDataA, userDataB any)) {
	bp.pairBuffer = bp.pairBuffer[:0]

	// Query with the fat AABB so we don't miss a pair that may touch a
	// little later.
	for _, proxyID := range bp.moveBuffer {
		if proxyID == NullNode {
			continue
		}
		bp.queryProxy = proxyID
		bp.tree.Query(bp.tree.FatAABB(proxyID), bp.collectPair)
	}
	bp.moveBuffer = bp.moveBuffer[:0]

	// Sort to expose duplicates (both members of a pair may have moved).
	sort.Slice(bp.pairBuffer, func(i, j int) bool {
		if bp.pairBuffer[i].a != bp.pairBuffer[j].a {
			return bp.pairBuffer[i].a < bp.pairBuffer[j].a
		}
		return bp.pairBuffer[i].b < bp.pairBuffer[j].b
	})

	for i := 0; i < len(bp.pairBuffer); {
		primary := bp.pairBuffer[i]
		cb(bp.tree.UserData(primary.a), bp.tree.UserData(primary.b))
		i++
		for i < len(bp.pairBuffer) && bp.pairBuffer[i] == primary {
			i++
		}
	}
}

func (bp *BroadPhase) bufferMove(proxyID int) {
	bp.moveBuffer = append(bp.moveBuffer, proxyID)
}

func (bp *BroadPhase) unBufferMove(proxyID int) {
	for i := range bp.moveBuffer {
		if bp.moveBuffer[i] == proxyID {
			bp.moveBuffer[i] = NullNode
		}
	}
}

func (bp *BroadPhase) collectPair(proxyID int) bool {
	// A proxy cannot pair with itself.
	if proxyID == bp.queryProxy {
		return true
	}
	bp.pairBuffer = append(bp.pairBuffer, proxyPair{
		a: min(proxyID, bp.queryProxy),
		b: max(proxyID, bp.queryProxy),
	})
	return true
}

// Query invokes cb for every proxy overlapping aabb.
func (bp *BroadPhase) Query(aabb geom.AABB, cb func(proxyID int) bool) {
	bp.tree.Query(aabb, cb)
}

// RayCast forwards to the tree's ray traversal.
func (bp *BroadPhase) RayCast(input geom.RayCastInput, cb func(sub geom.RayCastInput, proxyID int) float64) {
	bp.tree.RayCast(input, cb)
}

// ShiftOrigin translates all proxies by -newOrigin.
func (bp *BroadPhase) ShiftOrigin(newOrigin geom.Vec2) {
	bp.tree.ShiftOrigin(newOrigin)
}
