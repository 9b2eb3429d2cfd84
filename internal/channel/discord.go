package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"
)

type DiscordConfig struct {
	Token      string
	Dispatcher *Dispatcher
	Logger     *slog.Logger
}

// Discord relays guild and direct messages to a Dispatcher.
type Discord struct {
	token      string
	dispatcher *Dispatcher
	logger     *slog.Logger
}

func NewDiscord(cfg DiscordConfig) *Discord {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Discord{token: cfg.Token, dispatcher: cfg.Dispatcher, logger: cfg.Logger}
}

// Run connects to Discord and blocks until ctx is cancelled.
func (d *Discord) Run(ctx context.Context) error {
	session, err := discordgo.New("Bot " + d.token)
	if err != nil {
		return fmt.Errorf("discord session failed: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent

	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.Bot || (s.State.User != nil && m.Author.ID == s.State.User.ID) {
			return
		}
		d.handle(ctx, s, m)
	})

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord connect failed: %w", err)
	}
	if session.State.User != nil {
		d.logger.Info("discord bot connected", "user", session.State.User.Username)
	}

	<-ctx.Done()
	d.logger.Info("discord bot disconnecting")
	return session.Close()
}

func (d *Discord) handle(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate) {
	msg := Message{UserID: m.Author.ID, ChannelID: m.ChannelID, Content: m.Content}
	for _, a := range m.Attachments {
		msg.Attachments = append(msg.Attachments, Attachment{Filename: a.Filename, URL: a.URL, Size: a.Size})
	}

	if strings.HasPrefix(strings.TrimSpace(m.Content), d.dispatcher.cfg.Prefix) {
		if err := s.ChannelTyping(m.ChannelID); err != nil {
			d.logger.Debug("discord typing failed", "channel", m.ChannelID, "error", err)
		}
	}
	for _, reply := range d.dispatcher.Handle(ctx, msg) {
		if _, err := s.ChannelMessageSend(m.ChannelID, reply); err != nil {
			d.logger.Error("discord send failed", "channel", m.ChannelID, "error", err)
		}
	}
}
