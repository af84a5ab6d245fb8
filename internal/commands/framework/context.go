package framework

import (
	"github.com/bwmarrin/discordgo"
)

// Context is what a command or component handler needs from the interaction
// it is answering.
type Context interface {
	GetGuildID() string
	GetChannelID() string
	GetAuthor() *discordgo.User
	Reply(content string) error
	ReplyEphemeral(content string) error
	ReplyEmbed(embed *discordgo.MessageEmbed) error
	ReplyComponent(embed *discordgo.MessageEmbed, components []discordgo.MessageComponent) error
	ReplyContent(content string, components []discordgo.MessageComponent) error
	Defer() error
	Followup(content string) error
	FollowupEphemeral(content string) error
	// DeferUpdate acknowledges a component; the message is then changed
	// through Edit.
	DeferUpdate() error
	Edit(content string, embeds []*discordgo.MessageEmbed, components []discordgo.MessageComponent) error
	// Update replaces the message a component is attached to. A nil
	// components slice clears the buttons.
	Update(content string, embeds []*discordgo.MessageEmbed, components []discordgo.MessageComponent) error
}

// SlashContext implements Context for application commands and message
// components.
type SlashContext struct {
	Session     *discordgo.Session
	Interaction *discordgo.InteractionCreate
}

func NewSlashContext(s *discordgo.Session, i *discordgo.InteractionCreate) *SlashContext {
	return &SlashContext{Session: s, Interaction: i}
}

func (c *SlashContext) GetGuildID() string {
	return c.Interaction.GuildID
}

func (c *SlashContext) GetChannelID() string {
	return c.Interaction.ChannelID
}

// GetAuthor returns the invoking user. Interactions from DMs carry User
// instead of Member.
func (c *SlashContext) GetAuthor() *discordgo.User {
	if c.Interaction.Member != nil {
		return c.Interaction.Member.User
	}
	return c.Interaction.User
}

func (c *SlashContext) respond(data *discordgo.InteractionResponseData) error {
	return c.Session.InteractionRespond(c.Interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
}

func (c *SlashContext) Reply(content string) error {
	return c.respond(&discordgo.InteractionResponseData{Content: content})
}

func (c *SlashContext) ReplyEphemeral(content string) error {
	return c.respond(&discordgo.InteractionResponseData{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	})
}

func (c *SlashContext) ReplyEmbed(embed *discordgo.MessageEmbed) error {
	return c.respond(&discordgo.InteractionResponseData{
		Embeds: []*discordgo.MessageEmbed{embed},
	})
}

func (c *SlashContext) ReplyComponent(embed *discordgo.MessageEmbed, components []discordgo.MessageComponent) error {
	return c.respond(&discordgo.InteractionResponseData{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: components,
	})
}

func (c *SlashContext) ReplyContent(content string, components []discordgo.MessageComponent) error {
	return c.respond(&discordgo.InteractionResponseData{
		Content:    content,
		Components: components,
	})
}

// Defer acknowledges the interaction; the answer follows through Followup.
func (c *SlashContext) Defer() error {
	return c.Session.InteractionRespond(c.Interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
}

func (c *SlashContext) Followup(content string) error {
	_, err := c.Session.FollowupMessageCreate(c.Interaction.Interaction, true, &discordgo.WebhookParams{
		Content: content,
	})
	return err
}

func (c *SlashContext) FollowupEphemeral(content string) error {
	_, err := c.Session.FollowupMessageCreate(c.Interaction.Interaction, true, &discordgo.WebhookParams{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	})
	return err
}

func (c *SlashContext) DeferUpdate() error {
	return c.Session.InteractionRespond(c.Interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
}

func (c *SlashContext) Edit(content string, embeds []*discordgo.MessageEmbed, components []discordgo.MessageComponent) error {
	if components == nil {
		components = []discordgo.MessageComponent{}
	}
	if embeds == nil {
		embeds = []*discordgo.MessageEmbed{}
	}
	_, err := c.Session.InteractionResponseEdit(c.Interaction.Interaction, &discordgo.WebhookEdit{
		Content:    &content,
		Embeds:     &embeds,
		Components: &components,
	})
	return err
}

func (c *SlashContext) Update(content string, embeds []*discordgo.MessageEmbed, components []discordgo.MessageComponent) error {
	if components == nil {
		components = []discordgo.MessageComponent{}
	}
	if embeds == nil {
		embeds = []*discordgo.MessageEmbed{}
	}
	return c.Session.InteractionRespond(c.Interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    content,
			Embeds:     embeds,
			Components: components,
		},
	})
}
