package store

import (
	"bytes"
	"container/heap"
	"sort"

	"github.com/google/uuid"
)

// Timer is one live scheduled timer.
type Timer struct {
	ID        uuid.UUID
	ExpiresAt int64 // absolute epoch milliseconds
	Payload   string
}

// Due reports whether the timer has expired at the given wall-clock time.
func (t Timer) Due(nowMS int64) bool { return nowMS >= t.ExpiresAt }

// RemainingMS returns the milliseconds left until expiry, clamped at zero.
func (t Timer) RemainingMS(nowMS int64) int64 {
	if t.ExpiresAt > nowMS {
		return t.ExpiresAt - nowMS
	}
	return 0
}

type entry struct {
	timer     Timer
	tombstone bool
}

// Store holds live timers ordered earliest-expiry-first with an id index for
// O(1) existence lookup. Removal is lazy: MarkRemoved only tombstones the
// entry; the heap slot is reclaimed when the entry surfaces at the front or
// during a snapshot.
//
// Store is not internally synchronized. The owning service guards it with
// the same mutex that serializes oplog appends.
type Store struct {
	heap timerHeap
	byID map[uuid.UUID]*entry
}

func New() *Store {
	return &Store{byID: make(map[uuid.UUID]*entry)}
}

// Insert adds a live timer in O(log n) and reports whether it is now the
// earliest live timer. Inserting an id that is already live supersedes the
// previous entry (only the latest state per id matters).
func (s *Store) Insert(t Timer) (becameEarliest bool) {
	if prev, ok := s.byID[t.ID]; ok {
		prev.tombstone = true
	}
	s.pruneFront()
	e := &entry{timer: t}
	s.byID[t.ID] = e
	heap.Push(&s.heap, e)
	return s.heap[0] == e
}

// MarkRemoved tombstones a live timer in O(1) amortized.
// Returns false if the id is not currently live.
func (s *Store) MarkRemoved(id uuid.UUID) bool {
	e, ok := s.byID[id]
	if !ok {
		return false
	}
	e.tombstone = true
	delete(s.byID, id)
	return true
}

// Has reports whether the id is currently live.
func (s *Store) Has(id uuid.UUID) bool {
	_, ok := s.byID[id]
	return ok
}

// PeekEarliest returns the earliest live timer without removing it,
// discarding any tombstoned entries found at the front.
func (s *Store) PeekEarliest() (Timer, bool) {
	s.pruneFront()
	if len(s.heap) == 0 {
		return Timer{}, false
	}
	return s.heap[0].timer, true
}

// PopEarliest removes and returns the earliest live timer.
func (s *Store) PopEarliest() (Timer, bool) {
	s.pruneFront()
	if len(s.heap) == 0 {
		return Timer{}, false
	}
	e := heap.Pop(&s.heap).(*entry)
	delete(s.byID, e.timer.ID)
	return e.timer, true
}

// Len returns the number of live (non-tombstoned) timers.
func (s *Store) Len() int { return len(s.byID) }

// SnapshotAll materializes a point-in-time list of all live timers ordered
// by (expires_at, id). O(n log n); intended for administrative listing, not
// the hot path. Snapshotting also compacts tombstoned heap slots.
func (s *Store) SnapshotAll() []Timer {
	out := make([]Timer, 0, len(s.byID))
	live := s.heap[:0]
	for _, e := range s.heap {
		if e.tombstone {
			continue
		}
		live = append(live, e)
		out = append(out, e.timer)
	}
	if len(live) != len(s.heap) {
		s.heap = live
		heap.Init(&s.heap)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// pruneFront permanently discards tombstoned entries sitting at the heap
// front so the minimum live timer is always s.heap[0].
func (s *Store) pruneFront() {
	for len(s.heap) > 0 && s.heap[0].tombstone {
		heap.Pop(&s.heap)
	}
}

// less orders timers by expiry, tie-broken by id bytes so two timers sharing
// a timestamp still have a deterministic order.
func less(a, b Timer) bool {
	if a.ExpiresAt != b.ExpiresAt {
		return a.ExpiresAt < b.ExpiresAt
	}
	return bytes.Compare(a.ID[:], b.ID[:]) < 0
}

// timerHeap is a min-heap of entries satisfying heap.Interface.
type timerHeap []*entry

func (h timerHeap) Len() int           { return len(h) }
func (h timerHeap) Less(i, j int) bool { return less(h[i].timer, h[j].timer) }
func (h timerHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *timerHeap) Push(x any)        { *h = append(*h, x.(*entry)) }
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil // allow GC
	*h = old[:n-1]
	return e
}
