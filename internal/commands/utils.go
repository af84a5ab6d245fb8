package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// Component custom IDs. Paginators encode the viewer and the target page so
// no paging state is held between clicks.
const (
	invitesPagePrefix = "invites_page:"
	vouchesPagePrefix = "vouches_page:"
	inviteRemoveID    = "invite_remove"

	invitesPerPage = 10
	vouchesPerPage = 5

	// Discord caps select menus and embeds at 25 entries.
	maxListEntries = 25
)

func pageID(prefix, userID string, page int) string {
	return fmt.Sprintf("%s%s:%d", prefix, userID, page)
}

// parsePageID splits "<prefix><userID>:<page>".
func parsePageID(prefix, customID string) (string, int, error) {
	rest, ok := strings.CutPrefix(customID, prefix)
	if !ok {
		return "", 0, fmt.Errorf("custom id %q lacks prefix %q", customID, prefix)
	}
	userID, pageStr, ok := strings.Cut(rest, ":")
	if !ok || userID == "" {
		return "", 0, fmt.Errorf("malformed page id %q", customID)
	}
	page, err := strconv.Atoi(pageStr)
	if err != nil || page < 0 {
		return "", 0, fmt.Errorf("malformed page in %q", customID)
	}
	return userID, page, nil
}

func pageCount(total, perPage int) int {
	if total <= 0 {
		return 1
	}
	return (total + perPage - 1) / perPage
}

func clampPage(page, pages int) int {
	if page >= pages {
		page = pages - 1
	}
	if page < 0 {
		page = 0
	}
	return page
}

func pageButtons(prefix, userID string, page, pages int) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Previous",
					Style:    discordgo.SecondaryButton,
					CustomID: pageID(prefix, userID, page-1),
					Disabled: page <= 0,
				},
				discordgo.Button{
					Label:    "Next",
					Style:    discordgo.SecondaryButton,
					CustomID: pageID(prefix, userID, page+1),
					Disabled: page >= pages-1,
				},
			},
		},
	}
}

func removeValue(inviterID, code string) string {
	return inviterID + ":" + code
}

func parseRemoveValue(value string) (inviterID, code string, err error) {
	inviterID, code, ok := strings.Cut(value, ":")
	if !ok || inviterID == "" || code == "" {
		return "", "", fmt.Errorf("malformed invite selection %q", value)
	}
	return inviterID, code, nil
}

func displayName(m *discordgo.Member) string {
	switch {
	case m == nil || m.User == nil:
		return ""
	case m.Nick != "":
		return m.Nick
	case m.User.GlobalName != "":
		return m.User.GlobalName
	default:
		return m.User.Username
	}
}

// options indexes the top-level options of a slash command by name.
type options map[string]*discordgo.ApplicationCommandInteractionDataOption

func optionMap(opts []*discordgo.ApplicationCommandInteractionDataOption) options {
	m := make(options, len(opts))
	for _, o := range opts {
		m[o.Name] = o
	}
	return m
}

func (o options) str(name string) string {
	if opt, ok := o[name]; ok {
		return opt.StringValue()
	}
	return ""
}

func (o options) integer(name string) int64 {
	if opt, ok := o[name]; ok {
		return opt.IntValue()
	}
	return 0
}

// snowflake returns the ID carried by a user, channel or attachment option.
func (o options) snowflake(name string) string {
	if opt, ok := o[name]; ok {
		if id, ok := opt.Value.(string); ok {
			return id
		}
	}
	return ""
}
