package chat

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/xaenox/markov-bot/internal/models"
)

// Telegram is a bot account session. With a configured chat ID only that
// chat is read and joined; otherwise every chat the bot hears from counts as
// joined.
type Telegram struct {
	api      *tgbotapi.BotAPI
	chatID   int64
	channels channelSet
	logger   *zap.Logger
}

func NewTelegram(token string, chatID int64, logger *zap.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &Telegram{
		api:    api,
		chatID: chatID,
		logger: logger,
	}, nil
}

func (t *Telegram) Run(ctx context.Context, handle Handler) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := t.api.GetUpdatesChan(u)
	defer t.api.StopReceivingUpdates()

	t.logger.Info("Connected to Telegram", zap.String("username", t.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			if msg, ok := t.toChatMessage(update.Message); ok {
				handle(ctx, msg)
			}
		}
	}
}

func (t *Telegram) toChatMessage(message *tgbotapi.Message) (models.ChatMessage, bool) {
	if t.chatID != 0 && message.Chat.ID != t.chatID {
		return models.ChatMessage{}, false
	}

	channel := strconv.FormatInt(message.Chat.ID, 10)
	if t.chatID == 0 {
		t.channels.add(channel)
	}

	content := message.Text
	if message.Caption != "" {
		content = message.Caption
	}

	msg := models.ChatMessage{
		Text:    content,
		Channel: channel,
	}
	if message.From != nil {
		msg.Author = message.From.UserName
		msg.IsEcho = message.From.ID == t.api.Self.ID
	}
	return msg, true
}

func (t *Telegram) Send(ctx context.Context, channel, text string) error {
	chatID, err := strconv.ParseInt(channel, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", channel, err)
	}

	if _, err := t.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func (t *Telegram) Channels() []string {
	if t.chatID != 0 {
		return []string{strconv.FormatInt(t.chatID, 10)}
	}
	return t.channels.list()
}
