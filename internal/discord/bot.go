// Package discord provides the Discord front-end for AiD. It owns the
// discordgo.Session lifecycle, listens for message events on the configured
// channels, and relays user messages to the conversation engine.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

// respondTimeout bounds one full conversation turn, model call included.
const respondTimeout = 2 * time.Minute

// Responder produces a reply for one incoming user message. Implemented by
// the conversation engine.
type Responder interface {
	Respond(ctx context.Context, userText string) (string, error)
}

// Config holds Discord bot configuration.
type Config struct {
	// Token is the Discord bot token (without the "Bot " prefix).
	Token string

	// Channels restricts the bot to the listed channel IDs. Empty means
	// every channel the bot can read.
	Channels []string

	// MentionOnly makes the bot reply only when mentioned in guild
	// channels. Direct messages always get a reply.
	MentionOnly bool
}

// Bot owns the Discord gateway connection and dispatches message events to
// the [Responder].
type Bot struct {
	session     *discordgo.Session
	responder   Responder
	channels    map[string]struct{}
	mentionOnly bool
	log         *slog.Logger

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates a Bot and registers the message handler. The gateway
// connection is not opened until [Bot.Run].
func New(cfg Config, responder Responder, log *slog.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	channels := make(map[string]struct{}, len(cfg.Channels))
	for _, id := range cfg.Channels {
		channels[id] = struct{}{}
	}

	b := &Bot{
		session:     session,
		responder:   responder,
		channels:    channels,
		mentionOnly: cfg.MentionOnly,
		log:         log,
	}
	session.AddHandler(b.onMessage)

	return b, nil
}

// Run opens the gateway connection and blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("discord: open session: %w", err)
	}
	b.log.Info("discord session open", "user", b.session.State.User.Username)

	<-ctx.Done()
	return ctx.Err()
}

// Close waits for in-flight replies and disconnects from Discord.
func (b *Bot) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		b.wg.Wait()
		if err := b.session.Close(); err != nil {
			closeErr = fmt.Errorf("discord: close session: %w", err)
		}
		b.log.Info("discord bot closed")
	})
	return closeErr
}

// onMessage filters incoming messages and hands accepted ones to a reply
// goroutine. It must return quickly; discordgo dispatches events serially
// per handler.
func (b *Bot) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if !b.channelAllowed(m.ChannelID) {
		return
	}

	botID := ""
	if s.State != nil && s.State.User != nil {
		botID = s.State.User.ID
	}

	// MentionOnly applies to guild channels; DMs always get a reply.
	if b.mentionOnly && m.GuildID != "" && !mentions(m.Message, botID) {
		return
	}

	text := strings.TrimSpace(stripMention(m.Content, botID))
	if text == "" {
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.reply(s, m.ChannelID, m.Author.Username, text)
	}()
}

// reply runs one conversation turn and posts the result.
func (b *Bot) reply(s *discordgo.Session, channelID, author, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), respondTimeout)
	defer cancel()

	if err := s.ChannelTyping(channelID); err != nil {
		b.log.Debug("typing indicator failed", "channel", channelID, "err", err)
	}

	answer, err := b.responder.Respond(ctx, text)
	if err != nil {
		b.log.Warn("turn failed", "channel", channelID, "author", author, "err", err)
		answer = "Sorry, I lost my train of thought. Could you say that again?"
	}

	for _, chunk := range splitMessage(answer, maxMessageLen) {
		if _, err := s.ChannelMessageSend(channelID, chunk); err != nil {
			b.log.Warn("failed to send reply", "channel", channelID, "err", err)
			return
		}
	}
}

func (b *Bot) channelAllowed(id string) bool {
	if len(b.channels) == 0 {
		return true
	}
	_, ok := b.channels[id]
	return ok
}

// mentions reports whether msg mentions the given user ID.
func mentions(msg *discordgo.Message, botID string) bool {
	if botID == "" {
		return false
	}
	for _, u := range msg.Mentions {
		if u.ID == botID {
			return true
		}
	}
	return false
}
