// Package platform is the narrow slice of the Discord API the trackers need.
package platform

import (
	"context"
	"errors"

	"github.com/bwmarrin/discordgo"
)

var (
	// ErrNotFound is returned when an invite, channel or user no longer exists.
	ErrNotFound = errors.New("platform: not found")
)

// Invite is a guild invite with its cumulative use-count.
type Invite struct {
	Code      string
	GuildID   string
	ChannelID string
	InviterID string
	Uses      int
	MaxAge    int
	MaxUses   int
}

// URL returns the public join link for the invite.
func (i Invite) URL() string {
	return "https://discord.gg/" + i.Code
}

// Message is an outbound chat message.
type Message struct {
	Content    string
	Embeds     []*discordgo.MessageEmbed
	Components []discordgo.MessageComponent
}

// Result reports whether a best-effort delivery reached the recipient.
type Result struct {
	Delivered bool
	Err       error
}

func Delivered() Result {
	return Result{Delivered: true}
}

func Failed(err error) Result {
	return Result{Err: err}
}

// Client is implemented by Discord and by test fakes.
type Client interface {
	ListInvites(ctx context.Context, guildID string) ([]Invite, error)
	FetchInvite(ctx context.Context, code string) (*Invite, error)
	CreatePermanentInvite(ctx context.Context, channelID string) (*Invite, error)
	DefaultInviteChannel(ctx context.Context, guildID string) (string, error)
	SendDirectMessage(ctx context.Context, userID string, msg Message) Result
	SendChannelMessage(ctx context.Context, channelID string, msg Message) error
}
