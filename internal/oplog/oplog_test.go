package oplog

import (
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	logx "timervault/pkg/logx"
)

func openTestLog(t *testing.T, fs afero.Fs) *Log {
	t.Helper()
	l, err := Open(fs, "/data/test.oplog", logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func collect(t *testing.T, l *Log) (recs []Record, skipped int) {
	t.Helper()
	_, skipped, err := l.Replay(func(r Record) error {
		recs = append(recs, r)
		return nil
	})
	require.NoError(t, err)
	return recs, skipped
}

func TestAppendReplayRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	l := openTestLog(t, fs)

	a, b := uuid.New(), uuid.New()
	want := []Record{
		{Op: OpCreate, ID: a.String(), ExpiresAtMS: 1000, Data: "first"},
		{Op: OpCreate, ID: b.String(), ExpiresAtMS: 2000, Data: "second"},
		{Op: OpRemove, ID: a.String()},
	}
	for _, r := range want {
		require.NoError(t, l.Append(r))
	}

	got, skipped := collect(t, l)
	require.Zero(t, skipped)
	require.Equal(t, want, got)
}

func TestReplayMissingFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	l := &Log{log: logx.Nop(), fs: fs, path: "/nope.oplog"}

	replayed, skipped, err := l.Replay(func(Record) error {
		t.Fatal("no records expected")
		return nil
	})
	require.NoError(t, err)
	require.Zero(t, replayed)
	require.Zero(t, skipped)
}

func TestReplaySkipsTruncatedTail(t *testing.T) {
	fs := afero.NewMemMapFs()
	l := openTestLog(t, fs)

	id := uuid.New()
	require.NoError(t, l.Append(Record{Op: OpCreate, ID: id.String(), ExpiresAtMS: 5000, Data: "x"}))
	require.NoError(t, l.Append(Record{Op: OpCreate, ID: uuid.New().String(), ExpiresAtMS: 6000, Data: "y"}))

	// Tear the last line mid-record, as a crash during a flush would.
	b, err := afero.ReadFile(fs, l.Path())
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, l.Path(), b[:len(b)-20], 0o600))

	got, skipped := collect(t, l)
	require.Equal(t, 1, skipped)
	require.Len(t, got, 1)
	require.Equal(t, id.String(), got[0].ID)
}

func TestReplaySkipsGarbageBetweenRecords(t *testing.T) {
	fs := afero.NewMemMapFs()
	l := openTestLog(t, fs)

	first, second := uuid.New(), uuid.New()
	require.NoError(t, l.Append(Record{Op: OpCreate, ID: first.String(), ExpiresAtMS: 1, Data: "a"}))

	f, err := fs.OpenFile(l.Path(), os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n")
	require.NoError(t, err)
	_, err = f.WriteString(`{"op":"explode","id":"zzz"}` + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, l.Append(Record{Op: OpCreate, ID: second.String(), ExpiresAtMS: 2, Data: "b"}))

	got, skipped := collect(t, l)
	require.Equal(t, 2, skipped)
	require.Len(t, got, 2)
	require.Equal(t, first.String(), got[0].ID)
	require.Equal(t, second.String(), got[1].ID)
}

func TestAppendRejectsOversizedRecord(t *testing.T) {
	fs := afero.NewMemMapFs()
	l := openTestLog(t, fs)

	id := uuid.New()
	require.NoError(t, l.Append(Record{Op: OpCreate, ID: id.String(), ExpiresAtMS: 1, Data: "ok"}))

	huge := Record{Op: OpCreate, ID: uuid.New().String(), ExpiresAtMS: 2, Data: strings.Repeat("x", 2<<20)}
	err := l.Append(huge)
	require.ErrorIs(t, err, ErrRecordTooLarge)

	// Nothing of the rejected record reached the file; everything that was
	// accepted still replays.
	got, skipped := collect(t, l)
	require.Zero(t, skipped)
	require.Len(t, got, 1)
	require.Equal(t, id.String(), got[0].ID)
}

func TestReplaySkipsOversizedLine(t *testing.T) {
	fs := afero.NewMemMapFs()
	l := openTestLog(t, fs)

	first, second := uuid.New(), uuid.New()
	require.NoError(t, l.Append(Record{Op: OpCreate, ID: first.String(), ExpiresAtMS: 1, Data: "a"}))

	// A line far beyond anything Append produces, e.g. a corrupted or
	// hand-edited file. Recovery must step over it, not refuse to start.
	f, err := fs.OpenFile(l.Path(), os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString(strings.Repeat("x", 3<<20) + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, l.Append(Record{Op: OpCreate, ID: second.String(), ExpiresAtMS: 2, Data: "b"}))

	got, skipped := collect(t, l)
	require.Equal(t, 1, skipped)
	require.Len(t, got, 2)
	require.Equal(t, first.String(), got[0].ID)
	require.Equal(t, second.String(), got[1].ID)
}

func TestAppendAfterCloseFails(t *testing.T) {
	fs := afero.NewMemMapFs()
	l := openTestLog(t, fs)
	require.NoError(t, l.Close())
	require.Error(t, l.Append(Record{Op: OpRemove, ID: uuid.New().String()}))
}

func TestRemoveRecordOmitsCreateFields(t *testing.T) {
	fs := afero.NewMemMapFs()
	l := openTestLog(t, fs)

	require.NoError(t, l.Append(Record{Op: OpRemove, ID: uuid.New().String()}))

	b, err := afero.ReadFile(fs, l.Path())
	require.NoError(t, err)
	require.NotContains(t, string(b), "expires_at_ms")
	require.NotContains(t, string(b), "data")
}
