// Package chat adapts chat platforms to the session the bot drives: a stream
// of inbound messages, a set of joined channels and a send call.
package chat

import (
	"context"
	"sort"
	"sync"

	"github.com/xaenox/markov-bot/internal/models"
)

// Handler receives inbound messages one at a time.
type Handler func(ctx context.Context, msg models.ChatMessage)

type Session interface {
	// Run delivers messages to handle sequentially until ctx is done.
	Run(ctx context.Context, handle Handler) error
	// Send posts text to channel.
	Send(ctx context.Context, channel, text string) error
	// Channels lists the channels currently joined. Joining may lag the
	// connection, so the list can be empty for a while.
	Channels() []string
}

// channelSet tracks channels seen on a session.
type channelSet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

func (c *channelSet) add(channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seen == nil {
		c.seen = make(map[string]struct{})
	}
	c.seen[channel] = struct{}{}
}

func (c *channelSet) list() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.seen))
	for ch := range c.seen {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}
