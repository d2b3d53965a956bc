package timers

import (
	"context"
	"time"

	"timervault/internal/oplog"
	"timervault/internal/store"
	logx "timervault/pkg/logx"
)

// worker is the single expiration goroutine. It waits until the earliest
// live deadline, interruptibly: any create/remove that changes the earliest
// deadline signals s.wake so the wait is re-evaluated instead of sleeping
// past a newer, sooner timer.
func (s *Service) worker(ctx context.Context, stopCh <-chan struct{}) {
	defer s.wg.Done()

	for {
		s.mu.Lock()
		next, ok := s.store.PeekEarliest()
		s.mu.Unlock()

		if !ok {
			// Idle: block until a mutation or shutdown.
			select {
			case <-ctx.Done():
				return
			case <-stopCh:
				return
			case <-s.wake:
			}
			continue
		}

		if left := next.RemainingMS(time.Now().UnixMilli()); left > 0 {
			t := time.NewTimer(time.Duration(left) * time.Millisecond)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-stopCh:
				t.Stop()
				return
			case <-s.wake:
				// Earliest deadline changed; re-evaluate.
				t.Stop()
			case <-t.C:
			}
			continue
		}

		s.fireNext()
	}
}

// fireNext pops the earliest timer if it is (still) due, logs the implicit
// removal, and invokes the callback outside the lock. Re-peeking under the
// lock closes the race where the waited-on timer was removed between the
// wait elapsing and the pop.
func (s *Service) fireNext() {
	s.mu.Lock()
	now := time.Now().UnixMilli()
	t, ok := s.store.PeekEarliest()
	if !ok || !t.Due(now) {
		s.mu.Unlock()
		return
	}
	s.store.PopEarliest()

	// A fired timer is logged as an implicit removal so replaying the log
	// never re-fires it and replay cost stays bounded by live history. If
	// the append fails the timer is fired anyway: the deadline has passed
	// and at-least-once delivery wins over log hygiene.
	if err := s.oplog.Append(oplog.Record{Op: oplog.OpRemove, ID: t.ID.String()}); err != nil {
		s.log.Error("logging fired-timer removal failed",
			logx.String("id", t.ID.String()), logx.Err(err))
	}
	live := s.store.Len()
	s.mu.Unlock()

	s.met.IncFired(float64(now-t.ExpiresAt) / 1000)
	s.met.SetLive(live)
	s.log.Info("timer fired",
		logx.String("id", t.ID.String()),
		logx.Int64("lag_ms", now-t.ExpiresAt),
		logx.Int("live", live))

	s.invoke(t)
}

// invoke runs the callback with panic isolation: a failing callback is
// logged (rate-limited) and the worker keeps going.
func (s *Service) invoke(t store.Timer) {
	defer func() {
		if r := recover(); r != nil {
			s.met.IncCallbackFailure()
			if s.cbWarn.Allow() {
				s.log.Error("expiration callback panicked",
					logx.String("id", t.ID.String()), logx.Any("panic", r))
			}
		}
	}()
	s.cb.Fire(t.ID, t.Payload)
}
