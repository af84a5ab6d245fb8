package approval

import (
	"fmt"

	"discord-invite-tracker/internal/platform"

	"github.com/bwmarrin/discordgo"
)

// Component custom IDs. The part after the colon is the prompt ID for
// registrations and the requester ID for new-invite requests.
const (
	RegisterApprovePrefix  = "reg_approve:"
	RegisterDenyPrefix     = "reg_deny:"
	NewInviteApprovePrefix = "newinv_approve:"
	NewInviteDenyPrefix    = "newinv_deny:"
)

func decisionButtons(approveID, denyID string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Approve",
					Style:    discordgo.SuccessButton,
					CustomID: approveID,
				},
				discordgo.Button{
					Label:    "Deny",
					Style:    discordgo.DangerButton,
					CustomID: denyID,
				},
			},
		},
	}
}

func registrationPrompt(ownerID string, p *Prompt) platform.Message {
	return platform.Message{
		Content: fmt.Sprintf("<@%s>\nUser **%s** requested to register invite `%s`.\nApprove or Deny:",
			ownerID, p.RequesterName, p.Code),
		Components: decisionButtons(RegisterApprovePrefix+p.ID, RegisterDenyPrefix+p.ID),
	}
}

func newInvitePrompt(requesterID string) platform.Message {
	return platform.Message{
		Content:    fmt.Sprintf("<@%s> requested a non-expiring invite.", requesterID),
		Components: decisionButtons(NewInviteApprovePrefix+requesterID, NewInviteDenyPrefix+requesterID),
	}
}

func registrationApproved(code string) platform.Message {
	return platform.Message{Content: fmt.Sprintf("✅ Your invite `%s` has been approved and is now tracked.", code)}
}

func registrationDenied(code string) platform.Message {
	return platform.Message{Content: fmt.Sprintf("❌ Your invite `%s` registration was denied by the owner.", code)}
}

func newInviteApproved(url string) platform.Message {
	return platform.Message{Content: "✅ Your non-expiring invite has been approved: " + url}
}

func newInviteDenied() platform.Message {
	return platform.Message{Content: "❌ Your invite request has been denied."}
}
