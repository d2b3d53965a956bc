package timers

import (
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"timervault/internal/metrics"
)

// Config controls the timer engine.
type Config struct {
	// LogPath is the operation log file. Required.
	LogPath string

	// FS is the filesystem the operation log lives on.
	// Nil means the OS filesystem; tests pass afero.NewMemMapFs().
	FS afero.Fs

	// Metrics is the optional Prometheus registry. Nil disables metrics.
	Metrics *metrics.Registry
}

// TimerInfo is one row of the administrative snapshot.
type TimerInfo struct {
	ID        uuid.UUID
	ExpiresAt time.Time
	Payload   string
}

// Callback is invoked exactly once per fired timer, on the worker goroutine.
// Implementations should hand work off quickly rather than block.
type Callback interface {
	Fire(id uuid.UUID, payload string)
}

// CallbackFunc adapts a plain function to the Callback interface.
type CallbackFunc func(id uuid.UUID, payload string)

func (f CallbackFunc) Fire(id uuid.UUID, payload string) { f(id, payload) }

// nopCallback is the default when no callback is registered.
type nopCallback struct{}

func (nopCallback) Fire(uuid.UUID, string) {}
