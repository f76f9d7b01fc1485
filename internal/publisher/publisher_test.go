package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xaenox/markov-bot/internal/corpus"
	"github.com/xaenox/markov-bot/internal/filter"
	"github.com/xaenox/markov-bot/internal/generator"
	"github.com/xaenox/markov-bot/internal/markov"
	"github.com/xaenox/markov-bot/internal/models"
	"github.com/xaenox/markov-bot/internal/selector"
	"github.com/xaenox/markov-bot/internal/storage"
)

type fakeSession struct {
	mu       sync.Mutex
	logins   int
	loginErr error
	postErr  error
	posted   []string
}

func (s *fakeSession) Login(context.Context, string, string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logins++
	return s.loginErr
}

func (s *fakeSession) Post(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.postErr != nil {
		return s.postErr
	}
	s.posted = append(s.posted, text)
	return nil
}

type staticSource []string

func (s staticSource) Generator(_ context.Context, accept func(string) bool) (selector.Generator, error) {
	return NewStaticPool(s, accept), nil
}

type declineFirst struct {
	declined []string
	limit    int
}

func (d *declineFirst) Approve(_ context.Context, text string) (bool, error) {
	if len(d.declined) < d.limit {
		d.declined = append(d.declined, text)
		return false, nil
	}
	return true, nil
}

type failingApprover struct{}

func (failingApprover) Approve(context.Context, string) (bool, error) {
	return false, errors.New("terminal closed")
}

type fixture struct {
	poster  *Poster
	session *fakeSession
	history *History
	posts   *storage.MemoryLog
}

func newFixture(t *testing.T, source CandidateSource, approver selector.Approver, posted ...string) *fixture {
	f := &fixture{
		session: &fakeSession{},
		history: NewHistory(posted...),
		posts:   storage.NewMemoryLog(),
	}
	f.poster = New(Config{Handle: "vik.bsky.social", Password: "secret"}, Deps{
		Session:  f.session,
		Source:   source,
		Approver: approver,
		Filters: &filter.Sets{
			Hard: filter.NewWordSet("slur1"),
			Soft: filter.NewWordSet("crude"),
			Spam: filter.NewWordSet("buy followers"),
		},
		History: f.history,
		Posts:   f.posts,
		Logger:  zaptest.NewLogger(t),
	})
	return f
}

func TestCyclePostsOnlyNewSafeText(t *testing.T) {
	source := staticSource{"already posted", "BUY FOLLOWERS today", "something crude", "fresh line"}
	f := newFixture(t, source, nil, "already posted")
	ctx := context.Background()

	assert.Equal(t, models.OutcomeSent, f.poster.Cycle(ctx))
	assert.Equal(t, []string{"fresh line"}, f.session.posted)
	assert.True(t, f.history.Contains("fresh line"))

	entries, err := f.posts.Entries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh line"}, storage.Texts(entries))

	// Nothing new is left.
	assert.Equal(t, models.OutcomeSkippedNoCandidate, f.poster.Cycle(ctx))
	assert.Len(t, f.session.posted, 1)
	assert.Equal(t, 2, f.session.logins)
}

func TestCycleLoginFailureIsRetried(t *testing.T) {
	f := newFixture(t, staticSource{"hello there"}, nil)
	f.session.loginErr = errors.New("invalid password")
	ctx := context.Background()

	assert.Equal(t, models.OutcomeSkippedNoSession, f.poster.Cycle(ctx))
	assert.Empty(t, f.session.posted)
	assert.True(t, f.poster.CanPost())

	f.session.loginErr = nil
	assert.Equal(t, models.OutcomeSent, f.poster.Cycle(ctx))
	assert.Equal(t, []string{"hello there"}, f.session.posted)
}

func TestCyclePostFailureDisablesPosting(t *testing.T) {
	f := newFixture(t, staticSource{"hello there"}, nil)
	f.session.postErr = errors.New("rate limited")
	ctx := context.Background()

	assert.Equal(t, models.OutcomeFailed, f.poster.Cycle(ctx))
	assert.False(t, f.poster.CanPost())
	assert.False(t, f.history.Contains("hello there"))

	f.session.postErr = nil
	assert.Equal(t, models.OutcomeSkippedDisabled, f.poster.Cycle(ctx))
	assert.Equal(t, 1, f.session.logins)
	assert.Empty(t, f.session.posted)
}

func TestCycleDeclinedCandidateIsNotPosted(t *testing.T) {
	approver := &declineFirst{limit: 1}
	f := newFixture(t, staticSource{"first option", "second option"}, approver)

	assert.Equal(t, models.OutcomeSent, f.poster.Cycle(context.Background()))
	require.Len(t, approver.declined, 1)
	require.Len(t, f.session.posted, 1)
	assert.NotEqual(t, approver.declined[0], f.session.posted[0])
	assert.False(t, f.history.Contains(approver.declined[0]))
}

func TestCycleAllDeclinedYieldsSilence(t *testing.T) {
	approver := &declineFirst{limit: 100}
	f := newFixture(t, staticSource{"first option", "second option"}, approver)

	assert.Equal(t, models.OutcomeSkippedNoCandidate, f.poster.Cycle(context.Background()))
	assert.Len(t, approver.declined, 2)
	assert.Empty(t, f.session.posted)
}

func TestCycleApproverErrorSkips(t *testing.T) {
	f := newFixture(t, staticSource{"hello there"}, failingApprover{})

	assert.Equal(t, models.OutcomeSkippedNoCandidate, f.poster.Cycle(context.Background()))
	assert.Empty(t, f.session.posted)
	assert.True(t, f.poster.CanPost())
}

func TestRunStopsWhenContextEnds(t *testing.T) {
	f := newFixture(t, staticSource{"hello there"}, nil)
	f.poster.cfg.Interval.Min, f.poster.cfg.Interval.Max = 2*time.Hour, 8*time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	var delays []time.Duration
	f.poster.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		cancel()
		return ctx.Err()
	}

	require.NoError(t, f.poster.Run(ctx))
	assert.Equal(t, []string{"hello there"}, f.session.posted)
	require.Len(t, delays, 1)
	assert.GreaterOrEqual(t, delays[0], 2*time.Hour)
	assert.LessOrEqual(t, delays[0], 8*time.Hour)
}

func TestStaticPool(t *testing.T) {
	pool := NewStaticPool([]string{"a", "bb", "ccc"}, func(s string) bool { return s != "bb" })
	require.True(t, pool.Ready())
	assert.Equal(t, 2, pool.Len())

	var got []string
	for pool.Ready() {
		s, ok := pool.Sample(10)
		require.True(t, ok)
		got = append(got, s)
	}
	assert.ElementsMatch(t, []string{"a", "ccc"}, got)

	_, ok := pool.Sample(10)
	assert.False(t, ok)
}

func TestStaticPoolSkipsLongPosts(t *testing.T) {
	pool := NewStaticPool([]string{"way too long"}, nil)
	_, ok := pool.Sample(3)
	assert.False(t, ok)
}

func TestLoadStaticPosts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "static_posts.txt")
	require.NoError(t, os.WriteFile(path, []byte("first\n\n  second  \n"), 0o644))

	posts, err := LoadStaticPosts(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, posts)

	_, err = LoadStaticPosts(filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, ErrNoStaticPosts)
}

func TestSourcePrefersStaticFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "static_posts.txt")
	require.NoError(t, os.WriteFile(path, []byte("curated post\n"), 0o644))

	src := &Source{StaticPath: path, Logger: zaptest.NewLogger(t)}
	gen, err := src.Generator(context.Background(), nil)
	require.NoError(t, err)

	text, ok := gen.Sample(MaxPostLength)
	require.True(t, ok)
	assert.Equal(t, "curated post", text)
}

func TestSourceFallsBackToModel(t *testing.T) {
	logger := zaptest.NewLogger(t)
	learned := storage.NewMemoryLog(
		storage.Entry{Text: "the cat sat on the mat"},
		storage.Entry{Text: "the dog sat on the rug"},
	)
	opts := markov.DefaultOptions()
	opts.SkipOverlapTest = true

	src := &Source{
		StaticPath: filepath.Join(t.TempDir(), "missing.txt"),
		Corpus:     corpus.New(learned, 100, logger),
		Model:      generator.New(opts),
		Logger:     logger,
	}
	gen, err := src.Generator(context.Background(), nil)
	require.NoError(t, err)
	require.True(t, gen.Ready())

	text, ok := gen.Sample(MaxPostLength)
	require.True(t, ok)
	assert.Contains(t, text, "sat on the")
}

func TestSourceWithoutAnything(t *testing.T) {
	src := &Source{StaticPath: filepath.Join(t.TempDir(), "missing.txt"), Logger: zaptest.NewLogger(t)}
	_, err := src.Generator(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoStaticPosts)
}

func TestLoadHistory(t *testing.T) {
	log := storage.NewMemoryLog(storage.Entry{Text: "old post"}, storage.Entry{Text: "old post"}, storage.Entry{Text: "another"})
	h, err := LoadHistory(context.Background(), log)
	require.NoError(t, err)
	assert.Equal(t, 2, h.Len())
	assert.True(t, h.Contains("old post"))
	// Exact comparison only.
	assert.False(t, h.Contains("Old post"))
}

func TestBlueskyLoginAndPost(t *testing.T) {
	var (
		mu      sync.Mutex
		records []map[string]any
	)
	mux := http.NewServeMux()
	mux.HandleFunc("/xrpc/com.atproto.server.createSession", func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Identifier string `json:"identifier"`
			Password   string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Password != "hunter2" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"AuthenticationRequired","message":"Invalid identifier or password"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"accessJwt":  "access-token",
			"refreshJwt": "refresh-token",
			"handle":     in.Identifier,
			"did":        "did:plc:vik",
		})
	})
	mux.HandleFunc("/xrpc/com.atproto.repo.createRecord", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var in map[string]any
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		records = append(records, in)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"uri":"at://did:plc:vik/app.bsky.feed.post/3k","cid":"bafyreib"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()
	b := NewBluesky(srv.URL, srv.Client())

	assert.ErrorIs(t, b.Post(ctx, "too early"), ErrNoSession)
	assert.Error(t, b.Login(ctx, "vik.bsky.social", "wrong"))
	assert.ErrorIs(t, b.Post(ctx, "still no session"), ErrNoSession)

	require.NoError(t, b.Login(ctx, "vik.bsky.social", "hunter2"))
	require.NoError(t, b.Post(ctx, "hello bluesky"))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, records, 1)
	assert.Equal(t, "app.bsky.feed.post", records[0]["collection"])
	assert.Equal(t, "did:plc:vik", records[0]["repo"])
	record, ok := records[0]["record"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "hello bluesky", record["text"])
}
