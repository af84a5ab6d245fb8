package commands

import (
	"github.com/bwmarrin/discordgo"
)

// Helper for float pointers
func floatPtr(v float64) *float64 {
	return &v
}

var Register = &discordgo.ApplicationCommand{
	Name:        "register",
	Description: "Register your invite link (owner approval required)",
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "invite_link",
			Description: "Your invite link",
			Required:    true,
		},
	},
}

var RequestInvite = &discordgo.ApplicationCommand{
	Name:        "request_invite",
	Description: "Request a non-expiring invite link",
}

var SetLogChannel = &discordgo.ApplicationCommand{
	Name:        "set_log_channel",
	Description: "Set log channel for join logs",
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:         discordgo.ApplicationCommandOptionChannel,
			Name:         "channel",
			Description:  "Text channel to send join logs, leave empty to stop logging",
			Required:     false,
			ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
		},
	},
}

var Invites = &discordgo.ApplicationCommand{
	Name:        "invites",
	Description: "View your invited members",
}

var LeaderboardCommand = &discordgo.ApplicationCommand{
	Name:        "leaderboard",
	Description: "Top inviters",
}

var ResetInvites = &discordgo.ApplicationCommand{
	Name:        "reset_invites",
	Description: "Reset a user's invite data",
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        "user",
			Description: "User to reset invites for",
			Required:    true,
		},
	},
}

var Unregister = &discordgo.ApplicationCommand{
	Name:        "unregister",
	Description: "Unregister a user's invite link",
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        "user",
			Description: "User to unregister invite for",
			Required:    true,
		},
	},
}

var InviteList = &discordgo.ApplicationCommand{
	Name:        "invite_list",
	Description: "View and manage registered invites.",
}

var Vouch = &discordgo.ApplicationCommand{
	Name:        "vouch",
	Description: "Leave a vouch for this server or user",
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionInteger,
			Name:        "stars",
			Description: "Rate from 1 to 5 stars",
			Required:    true,
			MinValue:    floatPtr(1),
			MaxValue:    5,
		},
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "message",
			Description: "Your vouch message",
			Required:    true,
			MaxLength:   2000,
		},
		{
			Type:        discordgo.ApplicationCommandOptionAttachment,
			Name:        "proof",
			Description: "Optional image proof (png/jpg)",
		},
	},
}

var PendingRequests = &discordgo.ApplicationCommand{
	Name:        "pending_requests",
	Description: "Owner-only: List pending non-expiring invite requests",
}

var RestoreVouches = &discordgo.ApplicationCommand{
	Name:        "restore_vouches",
	Description: "Owner-only: List all saved vouches",
}

var Commands = []*discordgo.ApplicationCommand{
	Register,
	RequestInvite,
	SetLogChannel,
	Invites,
	LeaderboardCommand,
	ResetInvites,
	Unregister,
	InviteList,
	PendingRequests,
	// Vouch Commands
	Vouch,
	RestoreVouches,
}
