package approval

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Prompt is a pending bring-your-own-link registration. It lives only in
// memory and is gone after ExpiresAt.
type Prompt struct {
	ID            string
	RequesterID   string
	RequesterName string
	Code          string
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

func (p *Prompt) expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

type promptStore struct {
	mu      sync.Mutex
	prompts map[string]*Prompt
}

func newPromptStore() *promptStore {
	return &promptStore{prompts: make(map[string]*Prompt)}
}

func (s *promptStore) add(requesterID, requesterName, code string, now time.Time, ttl time.Duration) *Prompt {
	p := &Prompt{
		ID:            uuid.NewString(),
		RequesterID:   requesterID,
		RequesterName: requesterName,
		Code:          code,
		CreatedAt:     now,
		ExpiresAt:     now.Add(ttl),
	}
	s.mu.Lock()
	s.prompts[p.ID] = p
	s.mu.Unlock()
	return p
}

// take removes and returns a live prompt. Expired prompts are dropped and
// reported as missing.
func (s *promptStore) take(id string, now time.Time) (*Prompt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prompts[id]
	if !ok {
		return nil, false
	}
	delete(s.prompts, id)
	if p.expired(now) {
		return nil, false
	}
	return p, true
}

// put restores a prompt that was taken but could not be acted on.
func (s *promptStore) put(p *Prompt) {
	s.mu.Lock()
	s.prompts[p.ID] = p
	s.mu.Unlock()
}

func (s *promptStore) remove(id string) {
	s.mu.Lock()
	delete(s.prompts, id)
	s.mu.Unlock()
}

func (s *promptStore) prune(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, p := range s.prompts {
		if p.expired(now) {
			delete(s.prompts, id)
			n++
		}
	}
	return n
}

func (s *promptStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

// janitor prunes expired prompts every interval until ctx is done.
func (s *promptStore) janitor(ctx context.Context, interval time.Duration, now func() time.Time, onPrune func(int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.prune(now()); n > 0 && onPrune != nil {
				onPrune(n)
			}
		}
	}
}
