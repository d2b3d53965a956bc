package timers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/time/rate"

	"timervault/internal/metrics"
	"timervault/internal/oplog"
	"timervault/internal/store"
	logx "timervault/pkg/logx"
)

// Service is the thread-safe entry point for scheduling timers. It owns the
// operation log and the in-memory store; mu serializes access to both so a
// log append and the matching store mutation form one atomic critical
// section.
type Service struct {
	log logx.Logger
	cb  Callback
	met *metrics.Registry

	mu    sync.Mutex
	oplog *oplog.Log
	store *store.Store

	// wake interrupts the worker's wait whenever a mutation changes the
	// earliest deadline. Buffered so signaling never blocks an API call.
	wake   chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup

	// cbWarn rate-limits callback failure logging so a misbehaving callback
	// firing across a burst of timers cannot flood the log.
	cbWarn *rate.Limiter
}

// Open opens the operation log, replays it to rebuild the pre-crash timer
// set, and returns a facade ready to accept calls. The expiration worker is
// not running until Start.
func Open(cfg Config, log logx.Logger, cb Callback) (*Service, error) {
	if strings.TrimSpace(cfg.LogPath) == "" {
		return nil, errors.New("timers: log path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if cb == nil {
		cb = nopCallback{}
	}
	fs := cfg.FS
	if fs == nil {
		fs = afero.NewOsFs()
	}

	olog, err := oplog.Open(fs, cfg.LogPath, log)
	if err != nil {
		return nil, err
	}

	s := &Service{
		log:    log,
		cb:     cb,
		met:    cfg.Metrics,
		oplog:  olog,
		store:  store.New(),
		wake:   make(chan struct{}, 1),
		cbWarn: rate.NewLimiter(rate.Every(time.Second), 5),
	}

	if err := s.recover(); err != nil {
		_ = olog.Close()
		return nil, err
	}
	return s, nil
}

// Start launches the expiration worker. Calling Start on a running service
// is a no-op. Recovered timers whose deadline already passed fire on the
// worker's first pass.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return
	}
	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.worker(ctx, s.stopCh)
	s.log.Info("expiration worker started", logx.Int("live", s.store.Len()))
}

// Stop halts the expiration worker and waits for it to exit. Pending timers
// stay in the operation log; a later Open recovers them.
func (s *Service) Stop() {
	s.mu.Lock()
	stopCh := s.stopCh
	s.stopCh = nil
	s.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	s.wg.Wait()
	s.log.Info("expiration worker stopped")
}

// Close stops the worker and closes the operation log.
func (s *Service) Close() error {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.oplog.Close()
}

// Create schedules a payload for delivery after d. It returns the new
// timer's id once the create record is durably logged; on a log failure the
// in-memory state is unchanged and the error is returned.
func (s *Service) Create(d time.Duration, payload string) (uuid.UUID, error) {
	if d < 0 {
		d = 0
	}
	return s.CreateAt(time.Now().UnixMilli()+d.Milliseconds(), payload)
}

// CreateAt schedules a payload for delivery at an absolute epoch-millisecond
// deadline. Deadlines in the past are accepted and fire immediately.
func (s *Service) CreateAt(expiresAtMS int64, payload string) (uuid.UUID, error) {
	id := uuid.New()
	rec := oplog.Record{
		Op:          oplog.OpCreate,
		ID:          id.String(),
		ExpiresAtMS: expiresAtMS,
		Data:        payload,
	}

	s.mu.Lock()
	if err := s.oplog.Append(rec); err != nil {
		s.mu.Unlock()
		return uuid.Nil, fmt.Errorf("create timer: %w", err)
	}
	becameEarliest := s.store.Insert(store.Timer{ID: id, ExpiresAt: expiresAtMS, Payload: payload})
	live := s.store.Len()
	s.mu.Unlock()

	s.met.IncCreated()
	s.met.SetLive(live)
	s.log.Debug("timer created",
		logx.String("id", id.String()),
		logx.Int64("expires_at_ms", expiresAtMS),
		logx.Int("live", live))

	if becameEarliest {
		s.signal()
	}
	return id, nil
}

// Remove cancels a pending timer. It returns (false, nil) when the id is not
// currently live; nothing is logged in that case. A removed timer never
// fires.
func (s *Service) Remove(id uuid.UUID) (bool, error) {
	s.mu.Lock()
	if !s.store.Has(id) {
		s.mu.Unlock()
		return false, nil
	}
	rec := oplog.Record{Op: oplog.OpRemove, ID: id.String()}
	if err := s.oplog.Append(rec); err != nil {
		s.mu.Unlock()
		return false, fmt.Errorf("remove timer: %w", err)
	}
	s.store.MarkRemoved(id)
	live := s.store.Len()
	s.mu.Unlock()

	s.met.IncRemoved()
	s.met.SetLive(live)
	s.log.Debug("timer removed", logx.String("id", id.String()), logx.Int("live", live))

	// The removed timer may be the one the worker is waiting on.
	s.signal()
	return true, nil
}

// CountLive returns the number of pending timers.
func (s *Service) CountLive() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Len()
}

// signal wakes the worker without blocking; a pending wake is enough.
func (s *Service) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
