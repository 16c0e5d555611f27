package dynamics

import (
	"github.com/veloxphys/velox2d/collide"
)

// contactManager owns the broad-phase and the contact graph: it admits new
// pairs, destroys stale ones, and drives the narrow-phase refresh.
type contactManager struct {
	broadPhase *collide.BroadPhase
	contacts   slab[*Contact]

	filter   ContactFilter
	listener ContactListener

	// nextSeq numbers contacts in creation order.
	nextSeq uint64

	// maxContacts, when positive, caps the live contact count; pairs
	// arriving at the cap are rejected, not created.
	maxContacts int

	// added counts pairs admitted during the current findNewContacts pass;
	// rejected counts pairs refused at the cap since the last Step began.
	added    int
	rejected int
}

func newContactManager(maxContacts int) *contactManager {
	return &contactManager{
		broadPhase:  collide.NewBroadPhase(),
		contacts:    newSlab[*Contact](),
		filter:      defaultFilter{},
		maxContacts: maxContacts,
	}
}

func (cm *contactManager) contact(id ContactID) *Contact {
	p, ok := cm.contacts.get(id.idx, id.gen)
	if !ok {
		return nil
	}
	return *p
}

// findNewContacts asks the broad-phase for fresh overlapping pairs and
// returns how many became contacts.
func (cm *contactManager) findNewContacts() int {
	cm.added = 0
	cm.broadPhase.UpdatePairs(cm.addPair)
	return cm.added
}

// addPair admits one broad-phase pair, applying all gating: same-body,
// duplicate, joint collide-connected, and user filtering.
func (cm *contactManager) addPair(userDataA, userDataB any) {
	proxyA := userDataA.(*fixtureProxy)
	proxyB := userDataB.(*fixtureProxy)

	fixtureA := proxyA.fixture
	fixtureB := proxyB.fixture
	indexA := proxyA.childIndex
	indexB := proxyB.childIndex

	bodyA := fixtureA.body
	bodyB := fixtureB.body

	if bodyA == bodyB {
		return
	}

	// Does this pair already have a contact? Scan the smaller body's
	// adjacency.
	for _, cid := range bodyB.contacts {
		c := cm.contact(cid)
		if c == nil {
			continue
		}
		other := c.fixtureA.body
		if other == bodyB {
			other = c.fixtureB.body
		}
		if other != bodyA {
			continue
		}
		if c.fixtureA == fixtureA && c.fixtureB == fixtureB && c.indexA == indexA && c.indexB == indexB {
			return
		}
		if c.fixtureA == fixtureB && c.fixtureB == fixtureA && c.indexA == indexB && c.indexB == indexA {
			return
		}
	}

	// Joint override and body-kind gating.
	if !bodyB.shouldCollide(bodyA) {
		return
	}
	if cm.filter != nil && !cm.filter.ShouldCollide(fixtureA, fixtureB) {
		return
	}

	if cm.maxContacts > 0 && cm.contacts.len() >= cm.maxContacts {
		cm.rejected++
		return
	}

	c := newContact(fixtureA, indexA, fixtureB, indexB)
	if c == nil {
		// No narrow-phase function for this kind pair.
		return
	}

	idx, gen, slot := cm.contacts.alloc()
	*slot = c
	c.id = ContactID{idx: idx, gen: gen}
	c.seq = cm.nextSeq
	cm.nextSeq++

	// Creation may have swapped the fixtures into canonical order.
	bodyA = c.fixtureA.body
	bodyB = c.fixtureB.body
	bodyA.contacts = append(bodyA.contacts, c.id)
	bodyB.contacts = append(bodyB.contacts, c.id)

	if !c.fixtureA.sensor && !c.fixtureB.sensor {
		bodyA.SetAwake(true)
		bodyB.SetAwake(true)
	}

	cm.added++
}

// destroyContact removes a contact from the graph, firing EndContact if it
// was touching and waking both bodies if it carried manifold points.
func (cm *contactManager) destroyContact(id ContactID) {
	c := cm.contact(id)
	if c == nil {
		return
	}

	fixtureA := c.fixtureA
	fixtureB := c.fixtureB

	if cm.listener != nil && c.touching {
		cm.listener.EndContact(c)
	}

	if c.manifold.PointCount > 0 && !fixtureA.sensor && !fixtureB.sensor {
		fixtureA.body.SetAwake(true)
		fixtureB.body.SetAwake(true)
	}

	fixtureA.body.removeContact(id)
	fixtureB.body.removeContact(id)

	cm.contacts.release(id.idx)
}

// collide refreshes every live contact: re-filters flagged ones, drops
// pairs that stopped overlapping in the broad-phase, and updates manifolds
// for the rest. Contacts whose bodies are both inactive are skipped.
func (cm *contactManager) collide() (ignored, destroyed, updated int) {
	var toDestroy []ContactID

	cm.contacts.each(func(_ int32, cp **Contact) bool {
		c := *cp
		fixtureA := c.fixtureA
		fixtureB := c.fixtureB
		bodyA := fixtureA.body
		bodyB := fixtureB.body

		if c.needFilter {
			if !bodyB.shouldCollide(bodyA) ||
				(cm.filter != nil && !cm.filter.ShouldCollide(fixtureA, fixtureB)) {
				toDestroy = append(toDestroy, c.id)
				destroyed++
				return true
			}
			c.needFilter = false
		}

		activeA := bodyA.awake && bodyA.kind != StaticBody
		activeB := bodyB.awake && bodyB.kind != StaticBody

		// At least one body must be awake and non-static.
		if !activeA && !activeB {
			ignored++
			return true
		}

		proxyIDA := fixtureA.proxies[c.indexA].proxyID
		proxyIDB := fixtureB.proxies[c.indexB].proxyID
		if !cm.broadPhase.TestOverlap(proxyIDA, proxyIDB) {
			// Ceased to overlap in the broad-phase.
			toDestroy = append(toDestroy, c.id)
			destroyed++
			return true
		}

		c.update(cm.listener)
		updated++
		return true
	})

	for _, id := range toDestroy {
		cm.destroyContact(id)
	}
	return ignored, destroyed, updated
}

// each visits live contacts in slab order.
func (cm *contactManager) each(fn func(c *Contact) bool) {
	cm.contacts.each(func(_ int32, cp **Contact) bool {
		return fn(*cp)
	})
}

func (cm *contactManager) count() int { return cm.contacts.len() }
