package utils

import (
	"fmt"
	"strings"
	"time"

	"discord-invite-tracker/internal/models"

	"github.com/bwmarrin/discordgo"
)

// Footer is the branding line appended to every embed the bot sends.
type Footer struct {
	Text    string
	IconURL string
}

func (f Footer) embed(prefix string) *discordgo.MessageEmbedFooter {
	text := f.Text
	if prefix != "" {
		text = prefix + " | " + f.Text
	}
	return &discordgo.MessageEmbedFooter{Text: text, IconURL: f.IconURL}
}

func thumbnail(url string) *discordgo.MessageEmbedThumbnail {
	if url == "" {
		return nil
	}
	return &discordgo.MessageEmbedThumbnail{URL: url}
}

// JoinLogEmbed announces an attributed join in the log channel.
func JoinLogEmbed(memberID, avatarURL, code, inviterID string, at time.Time, footer Footer) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "New Member Joined",
		Description: fmt.Sprintf("<@%s> joined using invite `%s` from <@%s>", memberID, code, inviterID),
		Color:       ColorGreen,
		Timestamp:   at.UTC().Format(time.RFC3339),
		Thumbnail:   thumbnail(avatarURL),
		Footer:      footer.embed(""),
	}
}

// InvitedPage is one page of a member's attributed joins, already split by
// current membership.
type InvitedPage struct {
	OwnerName string
	AvatarURL string
	Page      int // zero-based
	Pages     int
	Total     int
	InServer  []string
	Left      []string
}

func memberField(name string, ids []string) *discordgo.MessageEmbedField {
	if len(ids) == 0 {
		return &discordgo.MessageEmbedField{Name: name, Value: "No members on this page."}
	}
	mentions := make([]string, len(ids))
	for i, id := range ids {
		mentions[i] = "<@" + id + ">"
	}
	return &discordgo.MessageEmbedField{
		Name:  fmt.Sprintf("%s (%d)", name, len(ids)),
		Value: strings.Join(mentions, "\n"),
	}
}

func InvitedEmbed(p InvitedPage, footer Footer) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:     fmt.Sprintf("%s's Invited Members (Page %d/%d)", p.OwnerName, p.Page+1, p.Pages),
		Color:     ColorBlue,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Thumbnail: thumbnail(p.AvatarURL),
		Fields: []*discordgo.MessageEmbedField{
			memberField("In server", p.InServer),
			memberField("Left", p.Left),
		},
		Footer: footer.embed(fmt.Sprintf("Total invited: %d", p.Total)),
	}
}

// LeaderboardRow is a ranked inviter; Name is empty when the inviter has left.
type LeaderboardRow struct {
	InviterID string
	Name      string
	Joins     int
}

func LeaderboardEmbed(rows []LeaderboardRow, footer Footer) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:  "Top Inviters",
		Color:  ColorGold,
		Footer: footer.embed(""),
	}
	for i, r := range rows {
		name := r.Name
		if name == "" {
			name = fmt.Sprintf("<@%s> (Left)", r.InviterID)
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("%d. %s", i+1, name),
			Value: fmt.Sprintf("Invited: %d", r.Joins),
		})
	}
	return embed
}

func InviteListEmbed(invites []models.RegisteredInvite) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       EmojiList + " Registered Invite List",
		Description: "Below are all tracked invites with their associated users.",
		Color:       ColorBlurple,
	}
	for i, inv := range invites {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("%d. Invite Code: `%s`", i+1, inv.InviteCode),
			Value: fmt.Sprintf("%s User: <@%s> (`%s`)", EmojiUser, inv.InviterID, inv.InviterID),
		})
	}
	return embed
}

func Stars(n int) string {
	if n < 0 {
		n = 0
	}
	return strings.Repeat(EmojiStar, n)
}

// VouchEmbed thanks the rater and echoes the recorded vouch.
func VouchEmbed(v *models.Vouch, avatarURL string, footer Footer) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "Thanks for vouching!",
		Description: fmt.Sprintf("**%s**\n\n**Vouch:**\n%s", Stars(v.Stars), v.Message),
		Color:       ColorPurple,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Thumbnail:   thumbnail(avatarURL),
		Footer:      footer.embed(""),
	}
	if v.ProofURL != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: v.ProofURL}
	}
	return embed
}

// VouchesText renders a page of stored vouches as plain message content.
func VouchesText(vouches []models.Vouch, page, pages int) string {
	blocks := make([]string, len(vouches))
	for i, v := range vouches {
		var sb strings.Builder
		fmt.Fprintf(&sb, "**Vouch #%d** by %s for %s\nStars: %s\nMessage: %s\nDate: %s",
			v.ID, v.VouchedByName, v.UserName, Stars(v.Stars), v.Message, v.Timestamp)
		if v.ProofURL != "" {
			sb.WriteString("\nProof: " + v.ProofURL)
		}
		blocks[i] = sb.String()
	}
	return fmt.Sprintf("**Vouches (Page %d/%d):**\n\n%s", page+1, pages, strings.Join(blocks, "\n\n"))
}
