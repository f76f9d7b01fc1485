package review

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestConsoleApprove(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(strings.NewReader("y\nno\n YES \n\n"), &out)
	ctx := context.Background()

	for _, want := range []bool{true, false, true, false} {
		got, err := c.Approve(ctx, "candidate")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Contains(t, out.String(), "Post this? [y/N]")

	_, err := c.Approve(ctx, "candidate")
	assert.Error(t, err, "closed input")
}

func TestConsoleAcceptsAnswerWithoutNewline(t *testing.T) {
	c := NewConsole(strings.NewReader("y"), &bytes.Buffer{})
	got, err := c.Approve(context.Background(), "candidate")
	require.NoError(t, err)
	assert.True(t, got)
}

func TestConsoleCancelKeepsAnswerForNextPrompt(t *testing.T) {
	pr, pw := io.Pipe()
	c := NewConsole(pr, &bytes.Buffer{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Approve(ctx, "first")
	require.ErrorIs(t, err, context.Canceled)

	go func() { _, _ = io.WriteString(pw, "yes\n") }()
	got, err := c.Approve(context.Background(), "second")
	require.NoError(t, err)
	assert.True(t, got)

	require.NoError(t, pw.Close())
	_, err = c.Approve(context.Background(), "third")
	require.ErrorIs(t, err, io.EOF)
	_, err = c.Approve(context.Background(), "fourth")
	require.ErrorIs(t, err, io.EOF)
}

type fakeModeration struct {
	flagged bool
	err     error
	inputs  []any
}

func (f *fakeModeration) Moderations(_ context.Context, req openai.ModerationRequest) (openai.ModerationResponse, error) {
	f.inputs = append(f.inputs, req.Input)
	if f.err != nil {
		return openai.ModerationResponse{}, f.err
	}
	return openai.ModerationResponse{
		Model:   req.Model,
		Results: []openai.Result{{Flagged: f.flagged}},
	}, nil
}

func TestModeration(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	clean := &fakeModeration{}
	ok, err := NewModerationWithClient(clean, "omni-moderation-latest", logger).Approve(ctx, "nice stream")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []any{"nice stream"}, clean.inputs)

	flagged := &fakeModeration{flagged: true}
	ok, err = NewModerationWithClient(flagged, "m", logger).Approve(ctx, "bad")
	require.NoError(t, err)
	assert.False(t, ok)

	broken := &fakeModeration{err: errors.New("503")}
	ok, err = NewModerationWithClient(broken, "m", logger).Approve(ctx, "anything")
	require.NoError(t, err)
	assert.False(t, ok)
}

type fixed struct {
	ok    bool
	calls *int
}

func (f fixed) Approve(context.Context, string) (bool, error) {
	*f.calls++
	return f.ok, nil
}

func TestChainStopsAtFirstRefusal(t *testing.T) {
	var first, second, third int
	chain := Chain{fixed{true, &first}, fixed{false, &second}, fixed{true, &third}}

	ok, err := chain.Approve(context.Background(), "x")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []int{1, 1, 0}, []int{first, second, third})

	ok, err = Chain{Auto{}}.Approve(context.Background(), "x")
	require.NoError(t, err)
	assert.True(t, ok)
}
