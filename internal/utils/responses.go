package utils

import (
	"github.com/bwmarrin/discordgo"
)

// ErrorEmbed is the red card used for failed commands.
func ErrorEmbed(message string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       EmojiCross + " Error",
		Description: message,
		Color:       ColorRed,
	}
}
