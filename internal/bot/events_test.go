package bot

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"discord-invite-tracker/internal/approval"
	"discord-invite-tracker/internal/database"
	"discord-invite-tracker/internal/models"
	"discord-invite-tracker/internal/platform"
	"discord-invite-tracker/internal/platform/platformtest"
	"discord-invite-tracker/internal/tracker"
	"discord-invite-tracker/internal/utils"

	"github.com/bwmarrin/discordgo"
)

type countingInvalidator struct{ n int }

func (c *countingInvalidator) Invalidate(ctx context.Context) { c.n++ }

type fixture struct {
	bot  *Bot
	db   *database.Database
	fake *platformtest.Fake
	lb   *countingInvalidator
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "bot.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s, err := discordgo.New("Bot test")
	if err != nil {
		t.Fatal(err)
	}
	fake := platformtest.New()
	engine := tracker.NewEngine(fake, db, nil, nil)
	wf := approval.New(approval.Config{GuildID: "g1", OwnerID: "owner"}, fake, db, engine, nil, nil)
	lb := &countingInvalidator{}

	b := New(s, Config{GuildID: "g1", Footer: utils.Footer{Text: "Invite Tracker Bot"}}, Deps{
		Client:      fake,
		Engine:      engine,
		Workflow:    wf,
		Leaderboard: lb,
	})
	return &fixture{bot: b, db: db, fake: fake, lb: lb}
}

func member(guildID, id string) *discordgo.Member {
	return &discordgo.Member{GuildID: guildID, User: &discordgo.User{ID: id}}
}

func TestMemberJoinedPostsJoinLog(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.fake.SetInvites("g1", platform.Invite{Code: "abc", InviterID: "creator"})
	f.db.ReplaceRegisteredInvite(ctx, "u1", "abc")
	f.db.SetSetting(ctx, models.SettingLogChannel, "logs")
	f.bot.warm([]string{"g1"})

	f.fake.Use("g1", "abc")
	f.bot.memberJoined(ctx, member("g1", "m1"))

	if n, _ := f.db.CountJoins(ctx, "u1"); n != 1 {
		t.Fatalf("joins = %d", n)
	}
	if f.lb.n != 1 {
		t.Fatalf("leaderboard invalidations = %d", f.lb.n)
	}
	if len(f.fake.ChannelPosts) != 1 || f.fake.ChannelPosts[0].To != "logs" {
		t.Fatalf("posts = %+v", f.fake.ChannelPosts)
	}
	embed := f.fake.ChannelPosts[0].Msg.Embeds[0]
	if embed.Title != "New Member Joined" || !strings.Contains(embed.Description, "`abc` from <@creator>") {
		t.Fatalf("embed = %+v", embed)
	}
}

func TestMemberJoinedWithoutLogChannel(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.fake.SetInvites("g1", platform.Invite{Code: "abc"})
	f.db.ReplaceRegisteredInvite(ctx, "u1", "abc")
	f.bot.warm([]string{"g1"})

	f.fake.Use("g1", "abc")
	f.bot.memberJoined(ctx, member("g1", "m1"))

	if n, _ := f.db.CountJoins(ctx, "u1"); n != 1 {
		t.Fatalf("joins = %d", n)
	}
	if len(f.fake.ChannelPosts) != 0 {
		t.Fatalf("posted without a log channel: %+v", f.fake.ChannelPosts)
	}
}

func TestMemberJoinedIgnoresBots(t *testing.T) {
	f := setup(t)
	f.fake.SetInvites("g1", platform.Invite{Code: "abc"})
	f.bot.warm([]string{"g1"})
	calls := f.fake.ListCalls

	m := member("g1", "robot")
	m.User.Bot = true
	f.bot.memberJoined(context.Background(), m)
	if f.fake.ListCalls != calls {
		t.Fatal("bot join triggered a fetch")
	}
}

func TestGuildLifecycle(t *testing.T) {
	f := setup(t)
	f.fake.SetInvites("g1", platform.Invite{Code: "a", Uses: 1})
	f.fake.SetInvites("g2", platform.Invite{Code: "b", Uses: 2})

	f.bot.warm([]string{"g1", "g2"})
	if f.bot.engine.Snapshot("g1") == nil || f.bot.engine.Snapshot("g2")["b"] != 2 {
		t.Fatal("warm-up did not load both guilds")
	}

	calls := f.fake.ListCalls
	f.bot.GuildCreate(nil, &discordgo.GuildCreate{Guild: &discordgo.Guild{ID: "g1"}})
	if f.fake.ListCalls != calls {
		t.Fatal("guild create refetched a warmed guild")
	}

	f.bot.GuildDelete(nil, &discordgo.GuildDelete{Guild: &discordgo.Guild{ID: "g1", Unavailable: true}})
	if f.bot.engine.Snapshot("g1") == nil {
		t.Fatal("outage dropped the snapshot")
	}
	f.bot.GuildDelete(nil, &discordgo.GuildDelete{Guild: &discordgo.Guild{ID: "g1"}})
	if f.bot.engine.Snapshot("g1") != nil {
		t.Fatal("snapshot kept after leaving the guild")
	}

	f.fake.SetInvites("g2", platform.Invite{Code: "b", Uses: 2}, platform.Invite{Code: "c"})
	f.bot.InviteCreate(nil, &discordgo.InviteCreate{GuildID: "g2", Invite: &discordgo.Invite{Code: "c"}})
	if _, ok := f.bot.engine.Snapshot("g2")["c"]; !ok {
		t.Fatal("invite create did not refresh")
	}
}
