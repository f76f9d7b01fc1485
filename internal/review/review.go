// Package review decides whether a generated post may go out.
package review

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Approver matches selector.Approver.
type Approver interface {
	Approve(ctx context.Context, text string) (bool, error)
}

// Auto approves everything. It is used when curation is off.
type Auto struct{}

func (Auto) Approve(context.Context, string) (bool, error) { return true, nil }

// Chain approves a text only if every approver does, asking them in order
// and stopping at the first refusal.
type Chain []Approver

func (c Chain) Approve(ctx context.Context, text string) (bool, error) {
	for _, a := range c {
		ok, err := a.Approve(ctx, text)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// Console asks an operator on a terminal. One goroutine reads the input
// for the lifetime of the Console, so a cancelled prompt leaves its answer
// to the next one.
type Console struct {
	in    *bufio.Reader
	out   io.Writer
	once  sync.Once
	lines chan answer
}

func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: bufio.NewReader(in), out: out, lines: make(chan answer, 1)}
}

type answer struct {
	line string
	err  error
}

// read feeds lines until the input fails, then reports the failure and
// closes the channel.
func (c *Console) read() {
	defer close(c.lines)
	for {
		line, err := c.in.ReadString('\n')
		c.lines <- answer{line: line, err: err}
		if err != nil {
			return
		}
	}
}

// Approve prints the candidate and waits for y/yes. Anything else declines.
// A closed input is an error.
func (c *Console) Approve(ctx context.Context, text string) (bool, error) {
	if _, err := fmt.Fprintf(c.out, "\nCandidate post:\n  %s\nPost this? [y/N]: ", text); err != nil {
		return false, fmt.Errorf("failed to write prompt: %w", err)
	}
	c.once.Do(func() { go c.read() })

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case a, ok := <-c.lines:
		if !ok {
			return false, fmt.Errorf("failed to read answer: %w", io.EOF)
		}
		if a.err != nil && a.line == "" {
			return false, fmt.Errorf("failed to read answer: %w", a.err)
		}
		switch strings.ToLower(strings.TrimSpace(a.line)) {
		case "y", "yes":
			return true, nil
		default:
			return false, nil
		}
	}
}
