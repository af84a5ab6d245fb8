// Package tracker attributes member joins to the invite they consumed by
// diffing per-guild invite use-counts before and after each join.
package tracker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"discord-invite-tracker/internal/metrics"
	"discord-invite-tracker/internal/platform"

	"go.uber.org/zap"
)

// Snapshot maps invite code to its use-count at a point in time.
type Snapshot map[string]int

// Codes returns the snapshot's invite codes in ascending order.
func (s Snapshot) Codes() []string {
	codes := make([]string, 0, len(s))
	for code := range s {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Attribution is a join that was traced to a registered inviter.
type Attribution struct {
	MemberID  string
	InviterID string
	Code      string
	// PlatformInviterID is the account Discord reports as the invite's creator.
	PlatformInviterID string
	// Recorded is false when the member already had a JoinRecord.
	Recorded bool
	JoinedAt time.Time
}

// Store is the persistence the engine needs.
type Store interface {
	GetInviterByCode(ctx context.Context, code string) (string, error)
	RecordJoin(ctx context.Context, memberID, inviterID string, at time.Time) (bool, error)
}

type guildState struct {
	mu       sync.Mutex
	snapshot Snapshot
}

// Engine holds the invite snapshot of every guild. Refresh and Attribute for
// the same guild never run concurrently.
type Engine struct {
	client  platform.Client
	store   Store
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu     sync.RWMutex
	guilds map[string]*guildState
}

func NewEngine(client platform.Client, store Store, logger *zap.Logger, m *metrics.Metrics) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		client:  client,
		store:   store,
		logger:  logger,
		metrics: m,
		now:     time.Now,
		guilds:  make(map[string]*guildState),
	}
}

func (e *Engine) guild(guildID string) *guildState {
	e.mu.RLock()
	g, ok := e.guilds[guildID]
	e.mu.RUnlock()
	if ok {
		return g
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	g, ok = e.guilds[guildID]
	if !ok {
		g = &guildState{}
		e.guilds[guildID] = g
	}
	return g
}

// fetch reads the live invite list. Caller holds g.mu.
func (e *Engine) fetch(ctx context.Context, guildID string) (Snapshot, map[string]string, error) {
	invites, err := e.client.ListInvites(ctx, guildID)
	if err != nil {
		e.metrics.Refresh(guildID, 0, err)
		return nil, nil, fmt.Errorf("list invites for guild %s: %w", guildID, err)
	}
	snap := make(Snapshot, len(invites))
	inviters := make(map[string]string, len(invites))
	for _, inv := range invites {
		snap[inv.Code] = inv.Uses
		inviters[inv.Code] = inv.InviterID
	}
	e.metrics.Refresh(guildID, len(snap), nil)
	return snap, inviters, nil
}

// Refresh replaces the guild's snapshot with the platform's current invite
// list. On a fetch error the previous snapshot is kept.
func (e *Engine) Refresh(ctx context.Context, guildID string) (Snapshot, error) {
	g := e.guild(guildID)
	g.mu.Lock()
	defer g.mu.Unlock()

	snap, _, err := e.fetch(ctx, guildID)
	if err != nil {
		return nil, err
	}
	g.snapshot = snap
	e.logger.Debug("invite snapshot refreshed",
		zap.String("guild_id", guildID),
		zap.Int("invites", len(snap)),
	)
	return snap.clone(), nil
}

// Snapshot returns a copy of the stored snapshot, or nil if the guild has none.
func (e *Engine) Snapshot(guildID string) Snapshot {
	g := e.guild(guildID)
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshot.clone()
}

// Forget drops the guild's snapshot, e.g. after the bot leaves it.
func (e *Engine) Forget(guildID string) {
	e.mu.Lock()
	delete(e.guilds, guildID)
	e.mu.Unlock()
	e.metrics.ForgetGuild(guildID)
}

// Attribute works out which invite memberID used to join guildID. A nil
// Attribution with a nil error means the join source is unknown or the invite
// has no registered owner.
func (e *Engine) Attribute(ctx context.Context, guildID, memberID string) (*Attribution, error) {
	g := e.guild(guildID)
	g.mu.Lock()
	defer g.mu.Unlock()

	prev := g.snapshot
	next, inviters, err := e.fetch(ctx, guildID)
	if err != nil {
		e.metrics.Attribution(metrics.OutcomeFetchError)
		return nil, err
	}
	g.snapshot = next

	code, ok := usedInvite(prev, next)
	if !ok {
		e.metrics.Attribution(metrics.OutcomeNoMatch)
		e.logger.Debug("join not attributed",
			zap.String("guild_id", guildID),
			zap.String("member_id", memberID),
		)
		return nil, nil
	}

	inviterID, err := e.store.GetInviterByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("look up registration for invite %s: %w", code, err)
	}
	if inviterID == "" {
		e.metrics.Attribution(metrics.OutcomeUnregistered)
		e.logger.Debug("join used an unregistered invite",
			zap.String("guild_id", guildID),
			zap.String("member_id", memberID),
			zap.String("code", code),
		)
		return nil, nil
	}

	at := e.now().UTC()
	recorded, err := e.store.RecordJoin(ctx, memberID, inviterID, at)
	if err != nil {
		return nil, fmt.Errorf("record join for member %s: %w", memberID, err)
	}
	if recorded {
		e.metrics.Attribution(metrics.OutcomeAttributed)
	} else {
		e.metrics.Attribution(metrics.OutcomeDuplicate)
	}

	e.logger.Info("join attributed",
		zap.String("guild_id", guildID),
		zap.String("member_id", memberID),
		zap.String("inviter_id", inviterID),
		zap.String("code", code),
		zap.Bool("recorded", recorded),
	)

	return &Attribution{
		MemberID:          memberID,
		InviterID:         inviterID,
		Code:              code,
		PlatformInviterID: inviters[code],
		Recorded:          recorded,
		JoinedAt:          at,
	}, nil
}

// usedInvite returns the lowest code present in both snapshots whose
// use-count went up.
func usedInvite(prev, next Snapshot) (string, bool) {
	if len(prev) == 0 {
		return "", false
	}
	for _, code := range prev.Codes() {
		uses, ok := next[code]
		if ok && uses > prev[code] {
			return code, true
		}
	}
	return "", false
}

func (s Snapshot) clone() Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
