package timers

import (
	"time"

	"github.com/google/uuid"

	"timervault/internal/oplog"
	"timervault/internal/store"
	logx "timervault/pkg/logx"
)

// recover replays the whole operation log against the empty store. It runs
// inside Open, before the facade is handed out and before the worker exists,
// so replay needs no locking. A create inserts; a remove tombstones, or is a
// no-op when the id was never created (a crash can leave a remove
// unmatched). Records with an unparseable id are skipped with a warning,
// same as corrupt lines.
func (s *Service) recover() error {
	start := time.Now()

	badIDs := 0
	replayed, skipped, err := s.oplog.Replay(func(r oplog.Record) error {
		id, perr := uuid.Parse(r.ID)
		if perr != nil {
			badIDs++
			s.log.Warn("skipping oplog record with bad id",
				logx.String("id", r.ID), logx.Err(perr))
			return nil
		}
		switch r.Op {
		case oplog.OpCreate:
			s.store.Insert(store.Timer{ID: id, ExpiresAt: r.ExpiresAtMS, Payload: r.Data})
		case oplog.OpRemove:
			s.store.MarkRemoved(id)
		}
		return nil
	})
	if err != nil {
		return err
	}
	replayed -= badIDs
	skipped += badIDs

	live := s.store.Len()
	pastDue := 0
	now := time.Now().UnixMilli()
	for _, t := range s.store.SnapshotAll() {
		if t.Due(now) {
			pastDue++
		}
	}

	s.met.AddReplayed(replayed, skipped)
	s.met.SetLive(live)
	s.log.Info("recovery completed",
		logx.Int("records", replayed),
		logx.Int("skipped", skipped),
		logx.Int("live", live),
		logx.Int("past_due", pastDue),
		logx.Duration("took", time.Since(start)))
	return nil
}
