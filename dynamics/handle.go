package dynamics

// Bodies, fixtures, joints and contacts are addressed by generation-checked
// handles into slab stores rather than by raw pointers. A handle outlives the
// object it named: resolving it after destruction fails cleanly instead of
// reaching freed state, and the zero handle is always invalid.

// BodyID names a body in a world.
type BodyID struct {
	idx int32
	gen uint32
}

// IsNil reports whether the handle is the zero handle.
func (id BodyID) IsNil() bool { return id.gen == 0 }

// JointID names a joint in a world.
type JointID struct {
	idx int32
	gen uint32
}

func (id JointID) IsNil() bool { return id.gen == 0 }

// ContactID names a contact; contacts are owned by the contact manager and
// their handles are only ever observed through callbacks and queries.
type ContactID struct {
	idx int32
	gen uint32
}

func (id ContactID) IsNil() bool { return id.gen == 0 }

const nilIndex = -1

type slot[T any] struct {
	val  T
	gen  uint32 // bumped on release; 0 only before first use
	live bool
	next int32 // free-list link
}

// slab is a free-listed pool whose slots keep a generation counter so stale
// handles resolve to nothing.
type slab[T any] struct {
	slots []slot[T]
	free  int32
	count int
}

func newSlab[T any]() slab[T] {
	return slab[T]{free: nilIndex}
}

// alloc returns a fresh slot index, its generation, and a pointer to the
// zeroed value.
func (s *slab[T]) alloc() (int32, uint32, *T) {
	var idx int32
	if s.free != nilIndex {
		idx = s.free
		s.free = s.slots[idx].next
	} else {
		s.slots = append(s.slots, slot[T]{})
		idx = int32(len(s.slots) - 1)
	}
	sl := &s.slots[idx]
	var zero T
	sl.val = zero
	sl.gen++
	sl.live = true
	sl.next = nilIndex
	s.count++
	return idx, sl.gen, &sl.val
}

// get resolves an index/generation pair; ok is false for stale or never
// issued handles.
func (s *slab[T]) get(idx int32, gen uint32) (*T, bool) {
	if gen == 0 || idx < 0 || int(idx) >= len(s.slots) {
		return nil, false
	}
	sl := &s.slots[idx]
	if !sl.live || sl.gen != gen {
		return nil, false
	}
	return &sl.val, true
}

// at returns the value of a live slot without a generation check; callers
// hold indices obtained this step.
func (s *slab[T]) at(idx int32) *T {
	return &s.slots[idx].val
}

func (s *slab[T]) liveAt(idx int32) bool {
	return idx >= 0 && int(idx) < len(s.slots) && s.slots[idx].live
}

func (s *slab[T]) generation(idx int32) uint32 {
	return s.slots[idx].gen
}

// release frees a slot; its generation is bumped so outstanding handles go
// stale immediately.
func (s *slab[T]) release(idx int32) {
	sl := &s.slots[idx]
	sl.live = false
	sl.gen++
	sl.next = s.free
	var zero T
	sl.val = zero
	s.free = idx
	s.count--
}

// each visits live slots in ascending index order. Index order is stable
// across replays, which is what step determinism leans on.
func (s *slab[T]) each(fn func(idx int32, v *T) bool) {
	for i := range s.slots {
		if s.slots[i].live {
			if !fn(int32(i), &s.slots[i].val) {
				return
			}
		}
	}
}

func (s *slab[T]) len() int { return s.count }
