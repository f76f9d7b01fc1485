package chat

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/xaenox/markov-bot/internal/models"
)

// Discord listens on one configured channel, or on every channel it can read
// when none is configured.
type Discord struct {
	session   *discordgo.Session
	channelID string
	botID     atomic.Value // string
	ready     atomic.Bool
	channels  channelSet
	logger    *zap.Logger
}

func NewDiscord(token, channelID string, logger *zap.Logger) (*Discord, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	// We only need message content
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent
	// Handlers run one at a time so ingestion stays ordered.
	session.SyncEvents = true

	return &Discord{
		session:   session,
		channelID: channelID,
		logger:    logger,
	}, nil
}

func (d *Discord) Run(ctx context.Context, handle Handler) error {
	removeReady := d.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		d.botID.Store(r.User.ID)
		d.ready.Store(true)
		d.logger.Info("Connected to Discord", zap.String("username", r.User.Username))
	})
	defer removeReady()

	removeMessage := d.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if msg, ok := d.toChatMessage(m); ok {
			handle(ctx, msg)
		}
	})
	defer removeMessage()

	if err := d.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	defer d.session.Close()

	<-ctx.Done()
	d.ready.Store(false)
	return nil
}

func (d *Discord) toChatMessage(m *discordgo.MessageCreate) (models.ChatMessage, bool) {
	// Only process messages from configured channel (if set)
	if d.channelID != "" && m.ChannelID != d.channelID {
		return models.ChatMessage{}, false
	}
	if d.channelID == "" {
		d.channels.add(m.ChannelID)
	}

	msg := models.ChatMessage{
		Text:    m.Content,
		Channel: m.ChannelID,
	}
	if m.Author != nil {
		msg.Author = m.Author.Username
		botID, _ := d.botID.Load().(string)
		msg.IsEcho = m.Author.ID == botID
	}
	return msg, true
}

func (d *Discord) Send(ctx context.Context, channel, text string) error {
	if _, err := d.session.ChannelMessageSend(channel, text, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to send Discord message: %w", err)
	}
	return nil
}

func (d *Discord) Channels() []string {
	if !d.ready.Load() {
		return nil
	}
	if d.channelID != "" {
		return []string{d.channelID}
	}
	return d.channels.list()
}
