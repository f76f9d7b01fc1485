package review

import (
	"context"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ModerationClient is the part of the OpenAI client used here.
type ModerationClient interface {
	Moderations(ctx context.Context, request openai.ModerationRequest) (openai.ModerationResponse, error)
}

// Moderation declines texts the OpenAI moderation endpoint flags. When the
// endpoint fails the text is declined and the error logged; the caller moves
// on to its next candidate.
type Moderation struct {
	client ModerationClient
	model  string
	logger *zap.Logger
}

func NewModeration(apiKey, model string, logger *zap.Logger) *Moderation {
	return NewModerationWithClient(openai.NewClient(apiKey), model, logger)
}

func NewModerationWithClient(client ModerationClient, model string, logger *zap.Logger) *Moderation {
	return &Moderation{client: client, model: model, logger: logger}
}

func (m *Moderation) Approve(ctx context.Context, text string) (bool, error) {
	resp, err := m.client.Moderations(ctx, openai.ModerationRequest{
		Input: text,
		Model: m.model,
	})
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		m.logger.Error("Failed to get moderation response", zap.Error(err))
		return false, nil
	}

	for _, result := range resp.Results {
		if result.Flagged {
			m.logger.Info("Candidate flagged by moderation", zap.String("model", resp.Model))
			return false, nil
		}
	}
	return true, nil
}
