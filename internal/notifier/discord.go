package notifier

import (
	"context"
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"
	"github.com/gdg-garage/club-booking-api/internal/config"
)

// channelSender is the part of *discordgo.Session the gateway uses.
type channelSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type DiscordGateway struct {
	session   channelSender
	channelID string
}

func NewDiscordGateway(cfg *config.Config) (*DiscordGateway, error) {
	if cfg.DiscordBotToken == "" {
		return nil, fmt.Errorf("discord bot token is empty")
	}
	if cfg.DiscordNotificationsChannelID == "" {
		return nil, fmt.Errorf("discord channel ID is empty")
	}

	session, err := discordgo.New("Bot " + cfg.DiscordBotToken)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}

	return &DiscordGateway{
		session:   session,
		channelID: cfg.DiscordNotificationsChannelID,
	}, nil
}

func (g *DiscordGateway) Send(ctx context.Context, to, subject, body string) error {
	if g.session == nil {
		return fmt.Errorf("discord session is nil")
	}

	message := fmt.Sprintf("📣 **%s**\n**To:** %s\n%s", subject, to, body)

	_, err := g.session.ChannelMessageSend(g.channelID, message, discordgo.WithContext(ctx))
	if err != nil {
		log.Printf("Failed to send discord message: %v", err)
		return err
	}
	return nil
}
