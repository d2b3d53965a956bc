package oplog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	logx "timervault/pkg/logx"
)

// Op tags a Record variant.
type Op string

const (
	OpCreate Op = "create"
	OpRemove Op = "remove"
)

// Record is one immutable operation log entry, one JSON object per line:
//
//	{"op":"create","id":"<uuid>","expires_at_ms":1735689600000,"data":"payload"}
//	{"op":"remove","id":"<uuid>"}
//
// ExpiresAtMS and Data are only meaningful for OpCreate.
type Record struct {
	Op          Op     `json:"op"`
	ID          string `json:"id"`
	ExpiresAtMS int64  `json:"expires_at_ms,omitempty"`
	Data        string `json:"data,omitempty"`
}

// Log is an append-only operation log backed by a single local file.
//
// Log is not internally synchronized: the owning service serializes Append
// with its own mutex so that a log write and the matching in-memory mutation
// form one critical section.
type Log struct {
	log  logx.Logger
	fs   afero.Fs
	path string
	file afero.File
}

// Open opens (creating if needed) the operation log at path.
// Pass afero.NewOsFs() in production; tests use an in-memory fs.
func Open(fs afero.Fs, path string, log logx.Logger) (*Log, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("oplog path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create oplog dir: %w", err)
		}
	}

	f, err := fs.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open oplog: %w", err)
	}

	return &Log{log: log, fs: fs, path: path, file: f}, nil
}

func (l *Log) Path() string { return l.path }

func (l *Log) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// ErrRecordTooLarge rejects a record whose encoded line would exceed
// maxLineBytes. Such a record is refused before any byte hits the file:
// accepting it would persist a line Replay cannot deliver.
var ErrRecordTooLarge = errors.New("oplog record exceeds max line size")

// Append durably persists one record. The write is flushed to stable storage
// before Append returns; a crash immediately after a successful Append never
// loses the record. On error nothing may be assumed about the trailing bytes
// of the file, which is why Replay tolerates a torn last line.
func (l *Log) Append(r Record) error {
	if l.file == nil {
		return errors.New("oplog closed")
	}
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode oplog record: %w", err)
	}
	if len(b) >= maxLineBytes {
		return fmt.Errorf("%w (%d bytes)", ErrRecordTooLarge, len(b))
	}
	b = append(b, '\n')
	if _, err := l.file.Write(b); err != nil {
		return fmt.Errorf("append oplog: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync oplog: %w", err)
	}
	return nil
}

// Replay streams every record in file order into fn, stopping early if fn
// returns an error. Malformed lines (a partial write torn by a crash, garbage
// from external corruption, a line longer than Append ever accepts) are
// skipped with a warning; records before and after a bad line are still
// delivered, so corruption degrades recovery but never refuses startup.
// Returns the number of records replayed and lines skipped.
func (l *Log) Replay(fn func(Record) error) (replayed, skipped int, err error) {
	f, err := l.fs.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("open oplog for replay: %w", err)
	}
	defer f.Close()

	// The buffer is sized so every line Append accepts fits in one ReadSlice;
	// ErrBufferFull therefore only ever signals external corruption.
	br := bufio.NewReaderSize(f, maxLineBytes)
	line := 0
	for {
		chunk, rerr := br.ReadSlice('\n')
		if errors.Is(rerr, bufio.ErrBufferFull) {
			line++
			skipped++
			l.log.Warn("skipping oversized oplog line", logx.Int("line", line))
			for errors.Is(rerr, bufio.ErrBufferFull) {
				_, rerr = br.ReadSlice('\n')
			}
			if errors.Is(rerr, io.EOF) {
				break
			}
			if rerr != nil {
				return replayed, skipped, fmt.Errorf("read oplog: %w", rerr)
			}
			continue
		}
		if rerr != nil && !errors.Is(rerr, io.EOF) {
			return replayed, skipped, fmt.Errorf("read oplog: %w", rerr)
		}

		if raw := strings.TrimSpace(string(chunk)); raw != "" {
			line++
			var r Record
			switch {
			case json.Unmarshal([]byte(raw), &r) != nil:
				skipped++
				l.log.Warn("skipping malformed oplog line", logx.Int("line", line))
			case !r.valid():
				skipped++
				l.log.Warn("skipping invalid oplog record",
					logx.Int("line", line), logx.String("op", string(r.Op)))
			default:
				if ferr := fn(r); ferr != nil {
					return replayed, skipped, ferr
				}
				replayed++
			}
		}

		if errors.Is(rerr, io.EOF) {
			break
		}
	}
	return replayed, skipped, nil
}

// maxLineBytes bounds a single oplog line. Append refuses larger records up
// front, so every durably-logged record is guaranteed to replay; at replay
// time a longer line can only be external corruption.
const maxLineBytes = 1 << 20

func (r Record) valid() bool {
	if r.ID == "" {
		return false
	}
	switch r.Op {
	case OpCreate, OpRemove:
		return true
	default:
		return false
	}
}
