package approval

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"discord-invite-tracker/internal/database"
	"discord-invite-tracker/internal/models"
	"discord-invite-tracker/internal/platform"
	"discord-invite-tracker/internal/platform/platformtest"
	"discord-invite-tracker/internal/tracker"
)

const (
	guildID = "g1"
	ownerID = "owner"
)

type fixture struct {
	w      *Workflow
	fake   *platformtest.Fake
	db     *database.Database
	engine *tracker.Engine
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "approval.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	fake := platformtest.New()
	fake.SetDefaultChannel(guildID, "general")
	engine := tracker.NewEngine(fake, db, nil, nil)
	w := New(Config{GuildID: guildID, OwnerID: ownerID}, fake, db, engine, nil, nil)
	return &fixture{w: w, fake: fake, db: db, engine: engine}
}

func TestParseInviteLink(t *testing.T) {
	cases := map[string]string{
		"https://discord.gg/abc123":            "abc123",
		"discord.gg/abc123":                    "abc123",
		"https://discord.com/invite/Xy-9":      "Xy-9",
		"http://www.discord.gg/abc":            "abc",
		"https://discordapp.com/invite/legacy": "legacy",
	}
	for link, want := range cases {
		got, err := ParseInviteLink(link)
		if err != nil || got != want {
			t.Errorf("ParseInviteLink(%q) = %q, %v; want %q", link, got, err, want)
		}
	}

	for _, bad := range []string{"", "abc123", "https://example.com/abc", "https://notdiscord.gg/abc"} {
		if _, err := ParseInviteLink(bad); !errors.Is(err, ErrInvalidLink) {
			t.Errorf("ParseInviteLink(%q) err = %v, want ErrInvalidLink", bad, err)
		}
	}
}

func TestRequestRegistrationValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.fake.SetInvites(guildID, platform.Invite{Code: "mine", InviterID: "u1"})
	f.fake.SetInvites("other", platform.Invite{Code: "theirs", InviterID: "u9"})

	if _, err := f.w.RequestRegistration(ctx, "u1", "user", "not a link"); !errors.Is(err, ErrInvalidLink) {
		t.Fatalf("malformed link err = %v", err)
	}
	if _, err := f.w.RequestRegistration(ctx, "u1", "user", "https://discord.gg/missing"); !errors.Is(err, ErrInviteNotFound) {
		t.Fatalf("unknown invite err = %v", err)
	}
	if _, err := f.w.RequestRegistration(ctx, "u1", "user", "https://discord.gg/theirs"); !errors.Is(err, ErrForeignInvite) {
		t.Fatalf("foreign invite err = %v", err)
	}

	f.fake.SetInvites(guildID, platform.Invite{Code: "mine", InviterID: "u1"}, platform.Invite{Code: "noinviter"})
	if _, err := f.w.RequestRegistration(ctx, "u1", "user", "https://discord.gg/noinviter"); !errors.Is(err, ErrForeignInvite) {
		t.Fatalf("inviter-less invite err = %v", err)
	}
	if len(f.fake.DMsTo(ownerID)) != 0 {
		t.Fatal("owner was prompted for an invalid request")
	}
}

func TestRegistrationApprove(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.fake.SetInvites(guildID, platform.Invite{Code: "mine", InviterID: "u1", Uses: 2})

	p, err := f.w.RequestRegistration(ctx, "u1", "user#1", "https://discord.gg/mine")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	prompts := f.fake.DMsTo(ownerID)
	if len(prompts) != 1 || !strings.Contains(prompts[0].Content, "`mine`") || len(prompts[0].Components) != 1 {
		t.Fatalf("owner prompt = %+v", prompts)
	}

	// A previous registration is replaced.
	if err := f.db.ReplaceRegisteredInvite(ctx, "u1", "old"); err != nil {
		t.Fatal(err)
	}

	if _, err := f.w.Approve(ctx, "u1", p.ID); !errors.Is(err, ErrPermission) {
		t.Fatalf("non-owner approve err = %v", err)
	}
	if _, err := f.w.Approve(ctx, ownerID, p.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	reg, err := f.db.GetRegisteredInvite(ctx, "u1")
	if err != nil || reg == nil || reg.InviteCode != "mine" {
		t.Fatalf("registration = %+v, %v", reg, err)
	}
	if snap := f.engine.Snapshot(guildID); snap["mine"] != 2 {
		t.Fatalf("snapshot not refreshed: %v", snap)
	}
	if dms := f.fake.DMsTo("u1"); len(dms) != 1 || !strings.Contains(dms[0].Content, "approved") {
		t.Fatalf("requester DMs = %+v", dms)
	}

	if _, err := f.w.Approve(ctx, ownerID, p.ID); !errors.Is(err, ErrExpired) {
		t.Fatalf("second approve err = %v, want ErrExpired", err)
	}
}

func TestRegistrationDenyAndExpiry(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.fake.SetInvites(guildID, platform.Invite{Code: "mine", InviterID: "u1"})

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	f.w.now = func() time.Time { return now }

	p, err := f.w.RequestRegistration(ctx, "u1", "user", "discord.gg/mine")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.w.Deny(ctx, "intruder", p.ID); !errors.Is(err, ErrPermission) {
		t.Fatalf("non-owner deny err = %v", err)
	}
	if _, err := f.w.Deny(ctx, ownerID, p.ID); err != nil {
		t.Fatalf("deny: %v", err)
	}
	if reg, _ := f.db.GetRegisteredInvite(ctx, "u1"); reg != nil {
		t.Fatalf("deny registered %+v", reg)
	}
	if dms := f.fake.DMsTo("u1"); len(dms) != 1 || !strings.Contains(dms[0].Content, "denied") {
		t.Fatalf("requester DMs = %+v", dms)
	}

	p, err = f.w.RequestRegistration(ctx, "u1", "user", "discord.gg/mine")
	if err != nil {
		t.Fatal(err)
	}
	now = now.Add(DefaultPromptTTL)
	if _, err := f.w.Approve(ctx, ownerID, p.ID); !errors.Is(err, ErrExpired) {
		t.Fatalf("approve after ttl err = %v, want ErrExpired", err)
	}
	if reg, _ := f.db.GetRegisteredInvite(ctx, "u1"); reg != nil {
		t.Fatalf("expired prompt registered %+v", reg)
	}
}

func TestApproveRestoresPromptOnConflict(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.fake.SetInvites(guildID, platform.Invite{Code: "shared", InviterID: "u1"})
	if err := f.db.ReplaceRegisteredInvite(ctx, "u2", "shared"); err != nil {
		t.Fatal(err)
	}

	p, err := f.w.RequestRegistration(ctx, "u1", "user", "discord.gg/shared")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.w.Approve(ctx, ownerID, p.ID); !errors.Is(err, database.ErrInviteCodeTaken) {
		t.Fatalf("approve err = %v, want ErrInviteCodeTaken", err)
	}
	if f.w.prompts.len() != 1 {
		t.Fatal("prompt dropped after failed approval")
	}
}

func TestRequestRegistrationOwnerUnreachable(t *testing.T) {
	f := setup(t)
	f.fake.SetInvites(guildID, platform.Invite{Code: "mine", InviterID: "u1"})
	f.fake.DMBlocked[ownerID] = true

	_, err := f.w.RequestRegistration(context.Background(), "u1", "user", "discord.gg/mine")
	if !errors.Is(err, ErrApproverUnreachable) {
		t.Fatalf("err = %v", err)
	}
	if f.w.prompts.len() != 0 {
		t.Fatal("undeliverable prompt kept")
	}
}

func TestJanitorPrunesExpiredPrompts(t *testing.T) {
	f := setup(t)
	f.fake.SetInvites(guildID, platform.Invite{Code: "mine", InviterID: "u1"})

	now := time.Now()
	var clock = now
	f.w.now = func() time.Time { return clock }
	if _, err := f.w.RequestRegistration(context.Background(), "u1", "user", "discord.gg/mine"); err != nil {
		t.Fatal(err)
	}
	clock = now.Add(2 * DefaultPromptTTL)

	if n := f.w.prompts.prune(f.w.now()); n != 1 {
		t.Fatalf("pruned %d, want 1", n)
	}
	if f.w.prompts.len() != 0 {
		t.Fatal("prompt survived prune")
	}
}

func TestRequestNewInviteDuplicate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	if err := f.w.RequestNewInvite(ctx, "u1"); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if err := f.w.RequestNewInvite(ctx, "u1"); !errors.Is(err, ErrDuplicateRequest) {
		t.Fatalf("second request err = %v, want ErrDuplicateRequest", err)
	}
	if n := len(f.fake.DMsTo(ownerID)); n != 1 {
		t.Fatalf("owner prompts = %d, want 1", n)
	}
	if err := f.w.RequestNewInvite(ctx, "u2"); err != nil {
		t.Fatalf("other requester: %v", err)
	}
}

func TestApproveNewThenReset(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// bob already has a registration and credited joins.
	if err := f.db.ReplaceRegisteredInvite(ctx, "bob", "bobcode"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.db.RecordJoin(ctx, "m9", "bob", time.Now()); err != nil {
		t.Fatal(err)
	}

	if err := f.w.RequestNewInvite(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.w.ApproveNew(ctx, "alice", "alice"); !errors.Is(err, ErrPermission) {
		t.Fatalf("self approve err = %v", err)
	}
	url, err := f.w.ApproveNew(ctx, ownerID, "alice")
	if err != nil {
		t.Fatalf("approve new: %v", err)
	}
	if !strings.HasPrefix(url, "https://discord.gg/perm") {
		t.Fatalf("url = %s", url)
	}
	if len(f.fake.Created) != 1 || f.fake.Created[0].ChannelID != "general" {
		t.Fatalf("created invites = %+v", f.fake.Created)
	}
	if req, _ := f.db.GetInviteRequest(ctx, "alice"); req != nil {
		t.Fatalf("request not cleared: %+v", req)
	}
	reg, _ := f.db.GetRegisteredInvite(ctx, "alice")
	if reg == nil || url != "https://discord.gg/"+reg.InviteCode {
		t.Fatalf("registration = %+v", reg)
	}
	if _, ok := f.engine.Snapshot(guildID)[reg.InviteCode]; !ok {
		t.Fatal("new invite missing from snapshot")
	}
	if dms := f.fake.DMsTo("alice"); len(dms) != 1 || !strings.Contains(dms[0].Content, url) {
		t.Fatalf("alice DMs = %+v", dms)
	}

	if _, err := f.db.RecordJoin(ctx, "m1", "alice", time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := f.w.ResetInviter(ctx, ownerID, "alice"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if reg, _ := f.db.GetRegisteredInvite(ctx, "alice"); reg != nil {
		t.Fatalf("alice still registered: %+v", reg)
	}
	if n, _ := f.db.CountJoins(ctx, "alice"); n != 0 {
		t.Fatalf("alice joins = %d", n)
	}
	if reg, _ := f.db.GetRegisteredInvite(ctx, "bob"); reg == nil {
		t.Fatal("bob registration removed")
	}
	if n, _ := f.db.CountJoins(ctx, "bob"); n != 1 {
		t.Fatalf("bob joins = %d, want 1", n)
	}
}

func TestApproveNewUsesConfiguredChannel(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.w.cfg.InviteChannelID = "welcome"

	if err := f.w.RequestNewInvite(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.w.ApproveNew(ctx, ownerID, "alice"); err != nil {
		t.Fatal(err)
	}
	if len(f.fake.Created) != 1 || f.fake.Created[0].ChannelID != "welcome" {
		t.Fatalf("created invites = %+v", f.fake.Created)
	}
}

func TestApproveNewWithoutRequest(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	if _, err := f.w.ApproveNew(ctx, ownerID, "ghost"); !errors.Is(err, ErrNoPendingRequest) {
		t.Fatalf("err = %v", err)
	}
	if err := f.w.DenyNew(ctx, ownerID, "ghost"); !errors.Is(err, ErrNoPendingRequest) {
		t.Fatalf("deny err = %v", err)
	}
}

func TestApproveNewCreateFailureKeepsRequest(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	if err := f.w.RequestNewInvite(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	f.fake.CreateErr = errors.New("missing permissions")
	if _, err := f.w.ApproveNew(ctx, ownerID, "alice"); err == nil {
		t.Fatal("expected create error")
	}
	if req, _ := f.db.GetInviteRequest(ctx, "alice"); req == nil || req.Status != models.RequestPending {
		t.Fatalf("request after failed approval = %+v", req)
	}

	f.fake.CreateErr = nil
	if _, err := f.w.ApproveNew(ctx, ownerID, "alice"); err != nil {
		t.Fatalf("retry approve: %v", err)
	}
}

func TestApproveNewConcurrentDecisions(t *testing.T) {
	cases := []struct {
		name    string
		approve [2]bool
	}{
		{"approve twice", [2]bool{true, true}},
		{"approve and deny", [2]bool{true, false}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := setup(t)
			ctx := context.Background()
			if err := f.w.RequestNewInvite(ctx, "alice"); err != nil {
				t.Fatal(err)
			}
			// Keep the winning approval in flight while the other decision runs.
			f.fake.BeforeList = func(string) { time.Sleep(20 * time.Millisecond) }

			var wg sync.WaitGroup
			start := make(chan struct{})
			errs := make([]error, 2)
			for i, approve := range c.approve {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					if approve {
						_, errs[i] = f.w.ApproveNew(ctx, ownerID, "alice")
					} else {
						errs[i] = f.w.DenyNew(ctx, ownerID, "alice")
					}
				}()
			}
			close(start)
			wg.Wait()

			var won, lost int
			for _, err := range errs {
				switch {
				case err == nil:
					won++
				case errors.Is(err, ErrNoPendingRequest):
					lost++
				default:
					t.Fatalf("unexpected error: %v", err)
				}
			}
			if won != 1 || lost != 1 {
				t.Fatalf("errs = %v, want exactly one winner", errs)
			}
			if dms := f.fake.DMsTo("alice"); len(dms) != 1 {
				t.Fatalf("alice DMs = %d, want 1", len(dms))
			}
			if req, _ := f.db.GetInviteRequest(ctx, "alice"); req != nil {
				t.Fatalf("request left behind: %+v", req)
			}

			reg, _ := f.db.GetRegisteredInvite(ctx, "alice")
			if errs[0] == nil {
				if len(f.fake.Created) != 1 || reg == nil || reg.InviteCode != f.fake.Created[0].Code {
					t.Fatalf("created = %+v, registration = %+v", f.fake.Created, reg)
				}
			} else if len(f.fake.Created) != 0 || reg != nil {
				t.Fatalf("denied request created %+v, registration = %+v", f.fake.Created, reg)
			}
		})
	}
}

func TestClaimedRequestBlocksDuplicates(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	if err := f.w.RequestNewInvite(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	if ok, err := f.db.ClaimInviteRequest(ctx, "alice"); err != nil || !ok {
		t.Fatalf("claim = %v, %v", ok, err)
	}
	if err := f.w.RequestNewInvite(ctx, "alice"); !errors.Is(err, ErrDuplicateRequest) {
		t.Fatalf("request while claimed err = %v", err)
	}
	if err := f.w.DenyNew(ctx, ownerID, "alice"); !errors.Is(err, ErrNoPendingRequest) {
		t.Fatalf("deny while claimed err = %v", err)
	}

	reqs, err := f.w.PendingRequests(ctx, ownerID)
	if err != nil || len(reqs) != 1 || reqs[0].Status != models.RequestApproving {
		t.Fatalf("pending = %+v, %v", reqs, err)
	}
	if _, err := f.w.PendingRequests(ctx, "alice"); !errors.Is(err, ErrPermission) {
		t.Fatalf("non-owner list err = %v", err)
	}
}

func TestDenyNewSwallowsBlockedDM(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	if err := f.w.RequestNewInvite(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	f.fake.DMBlocked["alice"] = true

	if err := f.w.DenyNew(ctx, "alice", "alice"); !errors.Is(err, ErrPermission) {
		t.Fatalf("non-owner deny err = %v", err)
	}
	if err := f.w.DenyNew(ctx, ownerID, "alice"); err != nil {
		t.Fatalf("deny with blocked DM: %v", err)
	}
	if req, _ := f.db.GetInviteRequest(ctx, "alice"); req != nil {
		t.Fatal("request not deleted")
	}
	if err := f.w.RequestNewInvite(ctx, "alice"); err != nil {
		t.Fatalf("request after deny: %v", err)
	}
}

func TestApproveSwallowsBlockedDM(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.fake.SetInvites(guildID, platform.Invite{Code: "mine", InviterID: "u1"})
	p, err := f.w.RequestRegistration(ctx, "u1", "user", "discord.gg/mine")
	if err != nil {
		t.Fatal(err)
	}
	f.fake.DMBlocked["u1"] = true
	if _, err := f.w.Approve(ctx, ownerID, p.ID); err != nil {
		t.Fatalf("approve with blocked DM: %v", err)
	}
	if reg, _ := f.db.GetRegisteredInvite(ctx, "u1"); reg == nil {
		t.Fatal("registration missing")
	}
}

func TestAdminOperations(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	for inviter, code := range map[string]string{"a": "ca", "b": "cb", "c": "cc"} {
		if err := f.db.ReplaceRegisteredInvite(ctx, inviter, code); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := f.db.RecordJoin(ctx, "m1", "a", time.Now()); err != nil {
		t.Fatal(err)
	}

	if _, err := f.w.ListRegistered(ctx, "a"); !errors.Is(err, ErrPermission) {
		t.Fatalf("list err = %v", err)
	}
	if err := f.w.Unregister(ctx, "a", "a"); !errors.Is(err, ErrPermission) {
		t.Fatalf("unregister err = %v", err)
	}
	if err := f.w.SetLogChannel(ctx, "a", "logs"); !errors.Is(err, ErrPermission) {
		t.Fatalf("set log channel err = %v", err)
	}

	if err := f.w.Unregister(ctx, ownerID, "a"); err != nil {
		t.Fatal(err)
	}
	if n, _ := f.db.CountJoins(ctx, "a"); n != 1 {
		t.Fatalf("unregister removed joins: %d", n)
	}
	if err := f.w.Unregister(ctx, ownerID, "a"); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("second unregister err = %v", err)
	}

	if err := f.w.RemoveRegisteredInvite(ctx, ownerID, "b", "wrong"); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("mismatched removal err = %v", err)
	}
	if err := f.w.RemoveRegisteredInvite(ctx, ownerID, "b", "cb"); err != nil {
		t.Fatal(err)
	}

	list, err := f.w.ListRegistered(ctx, ownerID)
	if err != nil || len(list) != 1 || list[0].InviterID != "c" {
		t.Fatalf("list = %+v, %v", list, err)
	}

	if ch, err := f.w.LogChannel(ctx); err != nil || ch != "" {
		t.Fatalf("log channel before set = %q, %v", ch, err)
	}
	if err := f.w.SetLogChannel(ctx, ownerID, "logs"); err != nil {
		t.Fatal(err)
	}
	if ch, _ := f.w.LogChannel(ctx); ch != "logs" {
		t.Fatalf("log channel = %q", ch)
	}
	if err := f.w.SetLogChannel(ctx, ownerID, ""); err != nil {
		t.Fatal(err)
	}
	if ch, err := f.w.LogChannel(ctx); err != nil || ch != "" {
		t.Fatalf("log channel after clear = %q, %v", ch, err)
	}
}
