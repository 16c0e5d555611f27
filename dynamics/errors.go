package dynamics

import "errors"

var (
	// ErrLocked is returned when a structural mutation is attempted while
	// the world is mid-step.
	ErrLocked = errors.New("world is locked")

	// ErrStaleHandle is returned when a handle no longer names a live
	// object.
	ErrStaleHandle = errors.New("stale handle")

	// ErrCapacity is returned when a hard capacity limit rejects an
	// operation.
	ErrCapacity = errors.New("capacity exceeded")

	// ErrInvalid is returned (wrapped) for definitions that fail
	// validation.
	ErrInvalid = errors.New("invalid definition")
)
