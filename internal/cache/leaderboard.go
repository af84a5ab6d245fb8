package cache

import (
	"context"
	"fmt"

	"discord-invite-tracker/internal/models"

	"github.com/goccy/go-json"
)

// LeaderboardSize is the number of inviters shown on the leaderboard.
const LeaderboardSize = 10

func leaderboardKey(limit int) string {
	return fmt.Sprintf("invites:leaderboard:%d", limit)
}

// LeaderboardSource computes the leaderboard from the join table.
type LeaderboardSource interface {
	GetInviteLeaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
}

// Leaderboard caches the top inviters. Entries are invalidated whenever a
// join is recorded or an inviter is reset.
type Leaderboard struct {
	cache  *Cache
	source LeaderboardSource
	limit  int
}

func NewLeaderboard(c *Cache, source LeaderboardSource, limit int) *Leaderboard {
	if limit <= 0 {
		limit = LeaderboardSize
	}
	return &Leaderboard{cache: c, source: source, limit: limit}
}

func (l *Leaderboard) Top(ctx context.Context) ([]models.LeaderboardEntry, error) {
	raw, err := l.cache.Get(ctx, leaderboardKey(l.limit), func(ctx context.Context) ([]byte, error) {
		entries, err := l.source.GetInviteLeaderboard(ctx, l.limit)
		if err != nil {
			return nil, err
		}
		return json.Marshal(entries)
	})
	if err != nil {
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}

	var entries []models.LeaderboardEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode leaderboard: %w", err)
	}
	return entries, nil
}

func (l *Leaderboard) Invalidate(ctx context.Context) {
	l.cache.Delete(ctx, leaderboardKey(l.limit))
}
