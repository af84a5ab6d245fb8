package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Discord JSON error codes that mean the referenced entity is gone.
const (
	codeUnknownChannel = 10003
	codeUnknownGuild   = 10004
	codeUnknownInvite  = 10006
	codeUnknownMember  = 10007
	codeUnknownUser    = 10013
)

const DefaultTimeout = 10 * time.Second

// Discord implements Client over a discordgo session. Every call is bounded
// by the configured timeout.
type Discord struct {
	session *discordgo.Session
	timeout time.Duration
	logger  *zap.Logger
}

func NewDiscord(s *discordgo.Session, timeout time.Duration, logger *zap.Logger) *Discord {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discord{session: s, timeout: timeout, logger: logger}
}

func (d *Discord) ListInvites(ctx context.Context, guildID string) ([]Invite, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	raw, err := d.session.GuildInvites(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("list invites for guild %s: %w", guildID, classify(err))
	}
	invites := make([]Invite, 0, len(raw))
	for _, inv := range raw {
		invites = append(invites, convertInvite(inv))
	}
	return invites, nil
}

func (d *Discord) FetchInvite(ctx context.Context, code string) (*Invite, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	raw, err := d.session.Invite(code, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch invite %s: %w", code, classify(err))
	}
	inv := convertInvite(raw)
	return &inv, nil
}

func (d *Discord) CreatePermanentInvite(ctx context.Context, channelID string) (*Invite, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	raw, err := d.session.ChannelInviteCreate(channelID, discordgo.Invite{
		MaxAge:  0,
		MaxUses: 0,
		Unique:  true,
	}, discordgo.WithContext(ctx), discordgo.WithAuditLogReason("Approved non-expiring invite"))
	if err != nil {
		return nil, fmt.Errorf("create invite in channel %s: %w", channelID, classify(err))
	}
	inv := convertInvite(raw)
	if inv.ChannelID == "" {
		inv.ChannelID = channelID
	}
	return &inv, nil
}

// DefaultInviteChannel picks the top-most text channel of the guild.
func (d *Discord) DefaultInviteChannel(ctx context.Context, guildID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	channels, err := d.session.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("list channels for guild %s: %w", guildID, classify(err))
	}
	var text []*discordgo.Channel
	for _, ch := range channels {
		if ch.Type == discordgo.ChannelTypeGuildText {
			text = append(text, ch)
		}
	}
	if len(text) == 0 {
		return "", fmt.Errorf("guild %s has no text channel: %w", guildID, ErrNotFound)
	}
	sort.SliceStable(text, func(i, j int) bool { return text[i].Position < text[j].Position })
	return text[0].ID, nil
}

func (d *Discord) SendDirectMessage(ctx context.Context, userID string, msg Message) Result {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	ch, err := d.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		d.logger.Debug("dm channel unavailable", zap.String("user_id", userID), zap.Error(err))
		return Failed(classify(err))
	}
	if _, err := d.session.ChannelMessageSendComplex(ch.ID, toMessageSend(msg), discordgo.WithContext(ctx)); err != nil {
		d.logger.Debug("dm delivery failed", zap.String("user_id", userID), zap.Error(err))
		return Failed(classify(err))
	}
	return Delivered()
}

func (d *Discord) SendChannelMessage(ctx context.Context, channelID string, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if _, err := d.session.ChannelMessageSendComplex(channelID, toMessageSend(msg), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send to channel %s: %w", channelID, classify(err))
	}
	return nil
}

// Member returns a guild member, or ErrNotFound once they have left.
func (d *Discord) Member(ctx context.Context, guildID, userID string) (*discordgo.Member, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	m, err := d.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("get member %s: %w", userID, classify(err))
	}
	return m, nil
}

func toMessageSend(msg Message) *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Content:    msg.Content,
		Embeds:     msg.Embeds,
		Components: msg.Components,
	}
}

func convertInvite(raw *discordgo.Invite) Invite {
	inv := Invite{
		Code:    raw.Code,
		Uses:    raw.Uses,
		MaxAge:  raw.MaxAge,
		MaxUses: raw.MaxUses,
	}
	if raw.Guild != nil {
		inv.GuildID = raw.Guild.ID
	}
	if raw.Channel != nil {
		inv.ChannelID = raw.Channel.ID
	}
	if raw.Inviter != nil {
		inv.InviterID = raw.Inviter.ID
	}
	return inv
}

// classify maps Discord "unknown entity" responses onto ErrNotFound and
// passes every other error through untouched.
func classify(err error) error {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return err
	}
	code := gjson.GetBytes(restErr.ResponseBody, "code").Int()
	switch code {
	case codeUnknownChannel, codeUnknownGuild, codeUnknownInvite, codeUnknownMember, codeUnknownUser:
		return fmt.Errorf("%w: %s", ErrNotFound, gjson.GetBytes(restErr.ResponseBody, "message").String())
	}
	if restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
