// Package timers implements the durable timer engine: the thread-safe facade
// application code calls, the recovery replay that runs before anything else,
// and the single background worker that fires expired timers.
//
// # Durability
//
// Every create/remove mutation is appended to the operation log and flushed
// before the in-memory store is touched (log-before-apply). One mutex covers
// both the log write and the store mutation, so the log and the live state
// can never disagree. On startup, Open replays the whole log against an
// empty store and only then returns a usable facade.
//
// # Firing
//
// Exactly one worker goroutine waits for the earliest deadline. Any mutation
// that changes the earliest deadline wakes it through a buffered channel so
// it never sleeps out a stale timeout. A fired timer is popped, its implicit
// removal is appended to the log, and the registered callback is invoked
// synchronously on the worker goroutine. Callbacks are expected to be quick
// hand-offs; a slow callback delays subsequent firings.
//
// # Lifecycle
//
// Open → Start(ctx) → Stop/Close. Timers recovered with a deadline already
// in the past are fired immediately on the worker's first pass, preserving
// at-least-once delivery across restarts.
package timers
