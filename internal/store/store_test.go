package store

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func tm(expiresAt int64, payload string) Timer {
	return Timer{ID: uuid.New(), ExpiresAt: expiresAt, Payload: payload}
}

func TestInsertOrdersByExpiry(t *testing.T) {
	s := New()

	late := tm(3000, "late")
	early := tm(1000, "early")
	mid := tm(2000, "mid")

	require.True(t, s.Insert(late), "first insert is always earliest")
	require.True(t, s.Insert(early))
	require.False(t, s.Insert(mid))

	got, ok := s.PeekEarliest()
	require.True(t, ok)
	require.Equal(t, early.ID, got.ID)
	require.Equal(t, 3, s.Len())
}

func TestTieBreakByID(t *testing.T) {
	s := New()

	a := Timer{ID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), ExpiresAt: 1000}
	b := Timer{ID: uuid.MustParse("00000000-0000-0000-0000-000000000002"), ExpiresAt: 1000}

	s.Insert(b)
	s.Insert(a)

	got, ok := s.PeekEarliest()
	require.True(t, ok)
	require.Equal(t, a.ID, got.ID, "equal deadlines order by id bytes")

	all := s.SnapshotAll()
	require.Equal(t, []uuid.UUID{a.ID, b.ID}, []uuid.UUID{all[0].ID, all[1].ID})
}

func TestMarkRemovedIsLazy(t *testing.T) {
	s := New()

	victim := tm(1000, "victim")
	keeper := tm(2000, "keeper")
	s.Insert(victim)
	s.Insert(keeper)

	require.True(t, s.MarkRemoved(victim.ID))
	require.False(t, s.MarkRemoved(victim.ID), "second removal is a no-op")
	require.False(t, s.Has(victim.ID))
	require.Equal(t, 1, s.Len())

	// The tombstoned entry is discarded when it surfaces at the front.
	got, ok := s.PeekEarliest()
	require.True(t, ok)
	require.Equal(t, keeper.ID, got.ID)
}

func TestMarkRemovedUnknownID(t *testing.T) {
	s := New()
	require.False(t, s.MarkRemoved(uuid.New()))
}

func TestPopEarliestDrains(t *testing.T) {
	s := New()
	first := tm(100, "1")
	second := tm(200, "2")
	third := tm(300, "3")
	s.Insert(third)
	s.Insert(first)
	s.Insert(second)
	s.MarkRemoved(second.ID)

	got1, ok := s.PopEarliest()
	require.True(t, ok)
	require.Equal(t, first.ID, got1.ID)

	got2, ok := s.PopEarliest()
	require.True(t, ok)
	require.Equal(t, third.ID, got2.ID, "tombstoned entry skipped")

	_, ok = s.PopEarliest()
	require.False(t, ok)
	require.Zero(t, s.Len())
}

func TestInsertSupersedesLiveID(t *testing.T) {
	s := New()
	id := uuid.New()
	s.Insert(Timer{ID: id, ExpiresAt: 1000, Payload: "old"})
	s.Insert(Timer{ID: id, ExpiresAt: 5000, Payload: "new"})

	require.Equal(t, 1, s.Len())
	got, ok := s.PeekEarliest()
	require.True(t, ok)
	require.Equal(t, "new", got.Payload)
	require.Equal(t, int64(5000), got.ExpiresAt)
}

func TestSnapshotAllOrdersAndCompacts(t *testing.T) {
	s := New()
	timers := []Timer{tm(500, "a"), tm(100, "b"), tm(900, "c"), tm(300, "d")}
	for _, x := range timers {
		s.Insert(x)
	}
	s.MarkRemoved(timers[2].ID)

	all := s.SnapshotAll()
	require.Len(t, all, 3)
	require.Equal(t, []string{"b", "d", "a"}, []string{all[0].Payload, all[1].Payload, all[2].Payload})

	// Compaction must not disturb ordering afterwards.
	got, ok := s.PeekEarliest()
	require.True(t, ok)
	require.Equal(t, "b", got.Payload)
}

func TestRemainingMS(t *testing.T) {
	x := Timer{ExpiresAt: 1000}
	require.Equal(t, int64(400), x.RemainingMS(600))
	require.Zero(t, x.RemainingMS(1000))
	require.Zero(t, x.RemainingMS(2000))
	require.False(t, x.Due(600))
	require.True(t, x.Due(1000))
}
