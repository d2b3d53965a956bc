package timers

import "time"

// Snapshot returns a point-in-time list of all live timers ordered by
// (expiry, id). Administrative listing only; it materializes the whole set.
func (s *Service) Snapshot() []TimerInfo {
	s.mu.Lock()
	all := s.store.SnapshotAll()
	s.mu.Unlock()

	items := make([]TimerInfo, 0, len(all))
	for _, t := range all {
		items = append(items, TimerInfo{
			ID:        t.ID,
			ExpiresAt: time.UnixMilli(t.ExpiresAt),
			Payload:   t.Payload,
		})
	}
	return items
}
