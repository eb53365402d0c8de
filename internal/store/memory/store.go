// Package memory provides an in-process roast store for local
// development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/roasting-id/roasting-service/internal/roast"
)

// Store keeps roasts and votes in maps guarded by one mutex.
type Store struct {
	mu     sync.Mutex
	roasts map[string]roast.Roast
	votes  map[string]map[string]struct{}
}

// New builds an empty Store.
func New() *Store {
	return &Store{
		roasts: make(map[string]roast.Roast),
		votes:  make(map[string]map[string]struct{}),
	}
}

// CreateRoast stores a roast keyed by its ID.
func (s *Store) CreateRoast(_ context.Context, r roast.Roast) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roasts[r.ID] = r
	return nil
}

// GetRoast returns one roast with viewer-specific vote state.
func (s *Store) GetRoast(_ context.Context, id string, viewerID *string) (roast.RoastDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.roasts[id]
	if !ok {
		return roast.RoastDetails{}, roast.ErrNotFound
	}
	return s.details(r, viewerID), nil
}

// Leaderboard returns roasts ordered by fire count, newest first within
// equal counts.
func (s *Store) Leaderboard(_ context.Context, limit int, viewerID *string) ([]roast.RoastDetails, error) {
	if limit <= 0 {
		limit = 20
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]roast.Roast, 0, len(s.roasts))
	for _, r := range s.roasts {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].FireCount != all[j].FireCount {
			return all[i].FireCount > all[j].FireCount
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if len(all) > limit {
		all = all[:limit]
	}
	out := make([]roast.RoastDetails, 0, len(all))
	for _, r := range all {
		out = append(out, s.details(r, viewerID))
	}
	return out, nil
}

// ToggleVote flips the user's vote and recomputes the fire count.
func (s *Store) ToggleVote(_ context.Context, userID, roastID string) (roast.VoteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.roasts[roastID]
	if !ok {
		return roast.VoteResult{}, roast.ErrNotFound
	}
	voters := s.votes[roastID]
	if voters == nil {
		voters = make(map[string]struct{})
		s.votes[roastID] = voters
	}

	var voted bool
	if _, exists := voters[userID]; exists {
		delete(voters, userID)
	} else {
		voters[userID] = struct{}{}
		voted = true
	}
	r.FireCount = len(voters)
	s.roasts[roastID] = r
	return roast.VoteResult{FireCount: r.FireCount, Voted: voted}, nil
}

func (s *Store) details(r roast.Roast, viewerID *string) roast.RoastDetails {
	d := roast.RoastDetails{Roast: r}
	if viewerID != nil {
		_, d.Voted = s.votes[r.ID][*viewerID]
	}
	return d
}
