package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Notifier delivers notifications to a pre-configured destination.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// DeliveryError is returned when the channel cannot be resolved or cannot
// carry messages, or when the send itself fails.
type DeliveryError struct {
	ChannelID string
	Reason    string
	Err       error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("notify: channel %s: %s: %v", e.ChannelID, e.Reason, e.Err)
	}
	return fmt.Sprintf("notify: channel %s: %s", e.ChannelID, e.Reason)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// channelAPI is the slice of the Discord session the notifier uses. The
// discordgo.Session satisfies it.
type channelAPI interface {
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord delivers notifications to a single fixed channel over a long-lived
// bot session. The session is opened once at startup and shared read-only by
// every notification chain.
type Discord struct {
	session   *discordgo.Session
	api       channelAPI
	channelID string
}

func NewDiscord(token, channelID string) (*Discord, error) {
	if token == "" {
		return nil, errors.New("discord token is required")
	}
	if channelID == "" {
		return nil, errors.New("discord channel id is required")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	session.Identify.Intents = discordgo.IntentsGuilds
	return &Discord{session: session, api: session, channelID: channelID}, nil
}

// Connect opens the gateway session.
func (d *Discord) Connect() error {
	return d.session.Open()
}

// Close tears down the gateway session.
func (d *Discord) Close() error {
	return d.session.Close()
}

// Notify resolves the configured channel, checks it can carry messages, and
// sends the notification as an embed with an optional link button.
func (d *Discord) Notify(ctx context.Context, n Notification) error {
	channel, err := d.api.Channel(d.channelID)
	if err != nil {
		return &DeliveryError{ChannelID: d.channelID, Reason: "resolve failed", Err: err}
	}
	if !sendable(channel.Type) {
		return &DeliveryError{
			ChannelID: d.channelID,
			Reason:    fmt.Sprintf("channel type %d cannot receive messages", channel.Type),
		}
	}

	send := &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       n.Title,
			Description: n.Body,
			Color:       0xE5484D,
		}},
	}
	if n.LinkURL != "" {
		send.Components = []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Style: discordgo.LinkButton,
						Label: n.LinkLabel,
						URL:   n.LinkURL,
					},
				},
			},
		}
	}

	if _, err := d.api.ChannelMessageSendComplex(d.channelID, send); err != nil {
		return &DeliveryError{ChannelID: d.channelID, Reason: "send failed", Err: err}
	}
	return nil
}

func sendable(t discordgo.ChannelType) bool {
	switch t {
	case discordgo.ChannelTypeGuildText,
		discordgo.ChannelTypeGuildNews,
		discordgo.ChannelTypeGuildNewsThread,
		discordgo.ChannelTypeGuildPublicThread,
		discordgo.ChannelTypeGuildPrivateThread,
		discordgo.ChannelTypeDM:
		return true
	default:
		return false
	}
}
