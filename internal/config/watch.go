package config

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "timervault/pkg/logx"
)

// debounceDelay absorbs editor write storms and partial writes before the
// file is re-parsed.
const debounceDelay = 250 * time.Millisecond

// Watch re-reads the config file whenever it changes and hands every valid
// new snapshot to onChange. Invalid or unreadable content is logged and
// dropped; the previous config stays in effect. Watch blocks until ctx is
// done or the underlying watcher breaks.
//
// The parent directory is watched (not the file itself) so atomic
// rename-into-place saves keep working.
func Watch(ctx context.Context, path string, log logx.Logger, onChange func(*Config)) error {
	dir := filepath.Dir(path)
	file := filepath.Base(path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}
	log.Debug("config watcher started", logx.String("dir", dir), logx.String("file", file))

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	reload := func() {
		cfg, err := Load(path)
		if err != nil {
			log.Warn("config reload rejected", logx.String("path", path), logx.Err(err))
			return
		}
		log.Info("config reloaded", logx.String("path", path))
		onChange(cfg)
	}
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounceDelay, reload)
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			// Compare by basename: robust across absolute/relative paths.
			if !strings.EqualFold(filepath.Base(ev.Name), file) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				debounce()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watcher error", logx.Err(err))
		}
	}
}
