package notifier

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/gdg-garage/club-booking-api/internal/config"
)

type fakeSession struct {
	channel string
	content string
	err     error
}

func (f *fakeSession) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.channel = channelID
	f.content = content
	return &discordgo.Message{}, f.err
}

func TestDiscordGatewaySend(t *testing.T) {
	fs := &fakeSession{}
	g := &DiscordGateway{session: fs, channelID: "chan-1"}

	if err := g.Send(context.Background(), "alice@example.com", "Event approved", "See you there"); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if fs.channel != "chan-1" {
		t.Errorf("expected channel chan-1, got %s", fs.channel)
	}
	if !strings.Contains(fs.content, "Event approved") || !strings.Contains(fs.content, "alice@example.com") {
		t.Errorf("unexpected message content: %s", fs.content)
	}

	fs.err = errors.New("discord down")
	if err := g.Send(context.Background(), "alice@example.com", "s", "b"); err == nil {
		t.Error("expected error from failing session")
	}
}

func TestNewDiscordGatewayRequiresConfig(t *testing.T) {
	if _, err := NewDiscordGateway(&config.Config{}); err == nil {
		t.Error("expected error without bot token")
	}
	if _, err := NewDiscordGateway(&config.Config{DiscordBotToken: "x"}); err == nil {
		t.Error("expected error without channel id")
	}
}
