package publisher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	appbsky "github.com/bluesky-social/indigo/api/bsky"
	lexutil "github.com/bluesky-social/indigo/lex/util"
	"github.com/bluesky-social/indigo/util"
	"github.com/bluesky-social/indigo/xrpc"
)

const (
	DefaultHost    = "https://bsky.social"
	postCollection = "app.bsky.feed.post"
)

// ErrNoSession is returned by Post before a successful Login.
var ErrNoSession = errors.New("not logged in")

// Bluesky posts to an atproto PDS over XRPC.
type Bluesky struct {
	mu     sync.Mutex
	client *xrpc.Client
}

// NewBluesky returns a session against host. A nil httpClient uses indigo's
// retrying client.
func NewBluesky(host string, httpClient *http.Client) *Bluesky {
	if host == "" {
		host = DefaultHost
	}
	if httpClient == nil {
		httpClient = util.RobustHTTPClient()
	}
	return &Bluesky{client: &xrpc.Client{Client: httpClient, Host: host}}
}

// Login creates a fresh session, replacing any previous one.
func (b *Bluesky) Login(ctx context.Context, handle, password string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.client.Auth = nil
	ses, err := comatproto.ServerCreateSession(ctx, b.client, &comatproto.ServerCreateSession_Input{
		Identifier: handle,
		Password:   password,
	})
	if err != nil {
		return fmt.Errorf("failed to create session for %s: %w", handle, err)
	}

	b.client.Auth = &xrpc.AuthInfo{
		AccessJwt:  ses.AccessJwt,
		RefreshJwt: ses.RefreshJwt,
		Handle:     ses.Handle,
		Did:        ses.Did,
	}
	return nil
}

// Post creates an app.bsky.feed.post record in the logged-in repo.
func (b *Bluesky) Post(ctx context.Context, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client.Auth == nil {
		return ErrNoSession
	}

	_, err := comatproto.RepoCreateRecord(ctx, b.client, &comatproto.RepoCreateRecord_Input{
		Collection: postCollection,
		Repo:       b.client.Auth.Did,
		Record: &lexutil.LexiconTypeDecoder{Val: &appbsky.FeedPost{
			Text:      text,
			CreatedAt: time.Now().UTC().Format(util.ISO8601),
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	return nil
}
