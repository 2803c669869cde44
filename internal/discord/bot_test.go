package discord

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/bwmarrin/discordgo"
)

type nopResponder struct{}

func (nopResponder) Respond(_ context.Context, _ string) (string, error) {
	return "ok", nil
}

func newTestBot(t *testing.T, cfg Config) *Bot {
	t.Helper()
	cfg.Token = "test-token"
	b, err := New(cfg, nopResponder{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

func TestChannelAllowed_EmptyListAllowsAll(t *testing.T) {
	b := newTestBot(t, Config{})
	if !b.channelAllowed("any-channel") {
		t.Error("empty channel list should allow every channel")
	}
}

func TestChannelAllowed_RestrictsToList(t *testing.T) {
	b := newTestBot(t, Config{Channels: []string{"c1", "c2"}})
	if !b.channelAllowed("c1") {
		t.Error("listed channel rejected")
	}
	if b.channelAllowed("c3") {
		t.Error("unlisted channel allowed")
	}
}

func TestMentions(t *testing.T) {
	msg := &discordgo.Message{
		Mentions: []*discordgo.User{{ID: "42"}, {ID: "99"}},
	}
	if !mentions(msg, "42") {
		t.Error("mentioned bot not detected")
	}
	if mentions(msg, "7") {
		t.Error("unmentioned user detected")
	}
	if mentions(msg, "") {
		t.Error("empty bot ID should never match")
	}
}
