// Package platformtest provides an in-memory platform.Client for tests.
package platformtest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"discord-invite-tracker/internal/platform"
)

// Sent is a message captured by the fake.
type Sent struct {
	To  string
	Msg platform.Message
}

// Fake is a concurrency-safe platform.Client backed by maps.
type Fake struct {
	mu sync.Mutex

	invites  map[string][]platform.Invite // guild -> invites in platform order
	channels map[string]string            // guild -> default channel

	ListErr    error
	FetchErr   error
	CreateErr  error
	DMBlocked  map[string]bool
	ListCalls  int
	nextInvite int

	// BeforeList, when set, runs before ListInvites returns. It is called
	// without the fake's lock held.
	BeforeList func(guildID string)

	DMs          []Sent
	ChannelPosts []Sent
	Created      []platform.Invite
}

func New() *Fake {
	return &Fake{
		invites:   make(map[string][]platform.Invite),
		channels:  make(map[string]string),
		DMBlocked: make(map[string]bool),
	}
}

// SetInvites replaces the guild's invite list.
func (f *Fake) SetInvites(guildID string, invites ...platform.Invite) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]platform.Invite, len(invites))
	for i, inv := range invites {
		inv.GuildID = guildID
		cp[i] = inv
	}
	f.invites[guildID] = cp
}

// Use bumps the use-count of code by one, as a member joining would.
func (f *Fake) Use(guildID, code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.invites[guildID] {
		if f.invites[guildID][i].Code == code {
			f.invites[guildID][i].Uses++
			return
		}
	}
}

func (f *Fake) SetDefaultChannel(guildID, channelID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels[guildID] = channelID
}

func (f *Fake) ListInvites(ctx context.Context, guildID string) ([]platform.Invite, error) {
	if hook := f.BeforeList; hook != nil {
		hook(guildID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ListCalls++
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	out := make([]platform.Invite, len(f.invites[guildID]))
	copy(out, f.invites[guildID])
	return out, nil
}

func (f *Fake) FetchInvite(ctx context.Context, code string) (*platform.Invite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	for _, invites := range f.invites {
		for _, inv := range invites {
			if inv.Code == code {
				found := inv
				return &found, nil
			}
		}
	}
	return nil, fmt.Errorf("fetch invite %s: %w", code, platform.ErrNotFound)
}

func (f *Fake) CreatePermanentInvite(ctx context.Context, channelID string) (*platform.Invite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	guildID := ""
	for g, ch := range f.channels {
		if ch == channelID {
			guildID = g
		}
	}
	f.nextInvite++
	inv := platform.Invite{
		Code:      fmt.Sprintf("perm%03d", f.nextInvite),
		GuildID:   guildID,
		ChannelID: channelID,
	}
	if guildID != "" {
		f.invites[guildID] = append(f.invites[guildID], inv)
	}
	f.Created = append(f.Created, inv)
	return &inv, nil
}

func (f *Fake) DefaultInviteChannel(ctx context.Context, guildID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[guildID]
	if !ok {
		return "", platform.ErrNotFound
	}
	return ch, nil
}

func (f *Fake) SendDirectMessage(ctx context.Context, userID string, msg platform.Message) platform.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DMBlocked[userID] {
		return platform.Failed(errors.New("cannot send messages to this user"))
	}
	f.DMs = append(f.DMs, Sent{To: userID, Msg: msg})
	return platform.Delivered()
}

func (f *Fake) SendChannelMessage(ctx context.Context, channelID string, msg platform.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ChannelPosts = append(f.ChannelPosts, Sent{To: channelID, Msg: msg})
	return nil
}

// DMsTo returns the messages delivered to userID.
func (f *Fake) DMsTo(userID string) []platform.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []platform.Message
	for _, s := range f.DMs {
		if s.To == userID {
			out = append(out, s.Msg)
		}
	}
	return out
}
