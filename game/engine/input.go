package engine

import (
	"strings"
	"sync"
)

// InputBuffer is a single-slot mailbox for directional requests.
//
// Writers overwrite the slot at any time; the tick drains it once. Requests
// are checked against the direction applied on the previous tick, never
// against an earlier request that was overwritten.
type InputBuffer struct {
	mu      sync.Mutex
	pending Direction
	applied Direction
}

// NewInputBuffer creates a buffer whose last applied direction is applied
func NewInputBuffer(applied Direction) *InputBuffer {
	return &InputBuffer{applied: applied}
}

// Push stores d as the pending direction. It returns false when d is not a
// direction or reverses the last applied direction.
func (b *InputBuffer) Push(d Direction) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !d.Valid() || IsOpposite(b.applied, d) {
		return false
	}
	b.pending = d
	return true
}

// Take returns the direction to use for the next tick: the latest pending
// request, or the last applied direction when nothing is pending.
func (b *InputBuffer) Take() Direction {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pending != "" {
		return b.pending
	}
	return b.applied
}

// Commit records the direction applied by a tick and empties the slot
func (b *InputBuffer) Commit(applied Direction) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.applied = applied
	b.pending = ""
}

// Pending returns the buffered request, or "" when the slot is empty
func (b *InputBuffer) Pending() Direction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending
}

// Applied returns the last applied direction
func (b *InputBuffer) Applied() Direction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.applied
}

// Reset empties the slot and sets the applied direction
func (b *InputBuffer) Reset(applied Direction) {
	b.Commit(applied)
}

var keyDirections = map[string]Direction{
	"arrowup":    Up,
	"w":          Up,
	"up":         Up,
	"arrowdown":  Down,
	"s":          Down,
	"down":       Down,
	"arrowleft":  Left,
	"a":          Left,
	"left":       Left,
	"arrowright": Right,
	"d":          Right,
	"right":      Right,
}

// KeyToDirection maps arrow keys and WASD (case-insensitive) to a direction
func KeyToDirection(key string) (Direction, bool) {
	d, ok := keyDirections[strings.ToLower(key)]
	return d, ok
}
