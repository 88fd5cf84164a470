// Package ordering holds the pure sequence operations behind list and card
// reordering. Positions are always the index of an id in its sequence, so
// every helper works on ordered id slices and never mutates its input.
package ordering

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInSequence is returned when the moved id is not part of the
	// sequence it is supposed to leave.
	ErrNotInSequence = errors.New("id not in sequence")
	// ErrDuplicateID is returned when a submitted order names an id twice.
	ErrDuplicateID = errors.New("duplicate id in order")
	// ErrMismatch is returned when a submitted order is not exactly a
	// permutation of the stored ids.
	ErrMismatch = errors.New("order does not match stored ids")
)

// Clamp bounds idx to [0, n-1]; n == 0 yields 0.
func Clamp(idx, n int) int {
	if idx < 0 || n == 0 {
		return 0
	}
	if idx > n-1 {
		return n - 1
	}
	return idx
}

// IndexOf returns the index of id in ids or -1.
func IndexOf(ids []uint64, id uint64) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

// Remove returns a copy of ids without id. ok is false when id was absent.
func Remove(ids []uint64, id uint64) (out []uint64, ok bool) {
	out = make([]uint64, 0, len(ids))
	for _, v := range ids {
		if v == id {
			ok = true
			continue
		}
		out = append(out, v)
	}
	return out, ok
}

// Insert returns a copy of ids with id placed at idx. idx is clamped to
// [0, len(ids)] so an out of range index appends or prepends.
func Insert(ids []uint64, id uint64, idx int) []uint64 {
	if idx < 0 {
		idx = 0
	}
	if idx > len(ids) {
		idx = len(ids)
	}
	out := make([]uint64, 0, len(ids)+1)
	out = append(out, ids[:idx]...)
	out = append(out, id)
	return append(out, ids[idx:]...)
}

// Move removes id from ids and re-inserts it at target, which is clamped to
// the bounds of the resulting sequence. The result is the new full order;
// callers renumber positions from it.
func Move(ids []uint64, id uint64, target int) ([]uint64, error) {
	rest, ok := Remove(ids, id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotInSequence, id)
	}
	return Insert(rest, id, Clamp(target, len(ids))), nil
}

// CheckPermutation verifies that proposed holds exactly the ids of current,
// each once, in any order.
func CheckPermutation(current, proposed []uint64) error {
	seen := make(map[uint64]struct{}, len(proposed))
	for _, id := range proposed {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: %d", ErrDuplicateID, id)
		}
		seen[id] = struct{}{}
	}
	if len(proposed) != len(current) {
		return fmt.Errorf("%w: got %d ids, want %d", ErrMismatch, len(proposed), len(current))
	}
	for _, id := range current {
		if _, ok := seen[id]; !ok {
			return fmt.Errorf("%w: missing %d", ErrMismatch, id)
		}
	}
	return nil
}

// Positions maps every id to its index.
func Positions(ids []uint64) map[uint64]int {
	out := make(map[uint64]int, len(ids))
	for i, id := range ids {
		out[id] = i
	}
	return out
}

// Equal reports whether a and b hold the same ids in the same order.
func Equal(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Plan is a validated reorder: the final order of the source list and, for
// a cross-list move, of the destination list.
type Plan struct {
	CardID      uint64
	CrossList   bool
	Source      []uint64
	Destination []uint64
}

// PlanReorder validates a client-submitted reorder against the stored
// state. sourceCurrent and destCurrent are the stored card orders of the
// two lists (identical slices when the move stays within one list).
//
// Within one list, sourceOrder must be a permutation of the list's cards and
// destOrder must be empty or equal to sourceOrder. Across lists, the card
// must currently sit in the source list, sourceOrder must be the source
// cards without it and destOrder the destination cards with it.
func PlanReorder(cardID uint64, sourceCurrent, destCurrent, sourceOrder, destOrder []uint64, crossList bool) (Plan, error) {
	if IndexOf(sourceCurrent, cardID) < 0 {
		return Plan{}, fmt.Errorf("%w: card %d is not in the source list", ErrNotInSequence, cardID)
	}
	if !crossList {
		if err := CheckPermutation(sourceCurrent, sourceOrder); err != nil {
			return Plan{}, fmt.Errorf("source order: %w", err)
		}
		if len(destOrder) > 0 && !Equal(sourceOrder, destOrder) {
			return Plan{}, fmt.Errorf("%w: destination order differs from source order within one list", ErrMismatch)
		}
		return Plan{CardID: cardID, Source: append([]uint64(nil), sourceOrder...)}, nil
	}

	wantSource, _ := Remove(sourceCurrent, cardID)
	if err := CheckPermutation(wantSource, sourceOrder); err != nil {
		return Plan{}, fmt.Errorf("source order: %w", err)
	}
	wantDest := append(append([]uint64(nil), destCurrent...), cardID)
	if err := CheckPermutation(wantDest, destOrder); err != nil {
		return Plan{}, fmt.Errorf("destination order: %w", err)
	}
	return Plan{
		CardID:      cardID,
		CrossList:   true,
		Source:      append([]uint64(nil), sourceOrder...),
		Destination: append([]uint64(nil), destOrder...),
	}, nil
}
