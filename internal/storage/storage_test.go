package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	e, ok := ParseLine("[2024-05-01 12:30:00] hello there")
	require.True(t, ok)
	assert.Equal(t, "hello there", e.Text)
	assert.Equal(t, 2024, e.Time.Year())
	assert.Equal(t, 30, e.Time.Minute())

	// Only the first "] " separates the stamp.
	e, ok = ParseLine("[2024-05-01 12:30:00] look] at this")
	require.True(t, ok)
	assert.Equal(t, "look] at this", e.Text)

	// Unparseable stamp keeps the text.
	e, ok = ParseLine("[yesterday] still text")
	require.True(t, ok)
	assert.True(t, e.Time.IsZero())
	assert.Equal(t, "still text", e.Text)

	for _, bad := range []string{"", "no brackets", "[2024-05-01 12:30:00]", "[2024-05-01 12:30:00]   ", "text [x] y"} {
		_, ok := ParseLine(bad)
		assert.False(t, ok, bad)
	}
}

func TestFormatLine(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.Local)
	assert.Equal(t, "[2025-01-02 03:04:05] hi", FormatLine(Entry{Time: ts, Text: "hi"}))
}

func TestFileLogAppendAndEntries(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "learned.log")
	log := NewFileLog(path)

	entries, err := log.Entries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, log.Append(ctx, "first message"))
	require.NoError(t, log.Append(ctx, "second message"))

	entries, err = log.Entries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"first message", "second message"}, Texts(entries))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Regexp(t, `^\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\] first message\n`, string(raw))
}

func TestReadFileSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "learned.log")
	content := "[2024-01-01 00:00:00] good one\ngarbage\n\n[2024-01-01 00:00:01] good two\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	entries, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"good one", "good two"}, Texts(entries))
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.log"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWriteFileReplacesContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o600))

	ts := time.Date(2024, 2, 3, 4, 5, 6, 0, time.Local)
	want := []Entry{{Time: ts, Text: "one two"}, {Time: ts, Text: "three four"}}
	require.NoError(t, WriteFile(path, want))

	got, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, Texts(want), Texts(got))
	assert.True(t, ts.Equal(got[1].Time))
}

func TestMemoryLog(t *testing.T) {
	ctx := context.Background()
	log := NewMemoryLog()
	require.NoError(t, log.Append(ctx, "a"))

	log.FailAppends(os.ErrPermission)
	assert.ErrorIs(t, log.Append(ctx, "b"), os.ErrPermission)
	log.FailAppends(nil)
	require.NoError(t, log.Append(ctx, "c"))

	entries, err := log.Entries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, Texts(entries))
}

func TestSQLiteLogKeepsKindsApart(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	learned, err := NewSQLiteLog(ctx, db, KindLearned)
	require.NoError(t, err)
	spoken, err := NewSQLiteLog(ctx, db, KindSpoken)
	require.NoError(t, err)

	require.NoError(t, learned.Append(ctx, "learned one"))
	require.NoError(t, spoken.Append(ctx, "spoken one"))
	require.NoError(t, learned.Append(ctx, "learned two"))

	entries, err := learned.Entries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"learned one", "learned two"}, Texts(entries))
	assert.False(t, entries[0].Time.IsZero())

	entries, err = spoken.Entries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"spoken one"}, Texts(entries))
}

func TestOpenFileBackend(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "learned.log")

	o, err := Open(ctx, OpenConfig{Backend: BackendFile, Files: map[string]string{KindLearned: path}})
	require.NoError(t, err)
	defer o.Close()

	l, err := o.Log(ctx, KindLearned)
	require.NoError(t, err)
	require.NoError(t, l.Append(ctx, "persisted"))

	again, err := o.Log(ctx, KindLearned)
	require.NoError(t, err)
	assert.Same(t, l, again)

	entries, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"persisted"}, Texts(entries))

	_, err = o.Log(ctx, KindPosts)
	assert.Error(t, err)
}

func TestOpenSQLiteBackendSharesDatabase(t *testing.T) {
	ctx := context.Background()
	o, err := Open(ctx, OpenConfig{Backend: BackendSQLite, SQLitePath: ":memory:"})
	require.NoError(t, err)
	defer o.Close()

	learned, err := o.Log(ctx, KindLearned)
	require.NoError(t, err)
	posts, err := o.Log(ctx, KindPosts)
	require.NoError(t, err)

	require.NoError(t, learned.Append(ctx, "learned"))
	require.NoError(t, posts.Append(ctx, "posted"))

	entries, err := posts.Entries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"posted"}, Texts(entries))
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), OpenConfig{Backend: "redis"})
	assert.Error(t, err)
}
