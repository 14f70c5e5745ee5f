// Package affinity tracks how each NPC feels about each user and classifies
// the emotional impact of an exchange.
package affinity

import (
	"math"
	"sync"

	"github.com/easeaico/npc-town/internal/apperr"
)

type pairKey struct {
	npc  string
	user string
}

// Summary is the reporting view of one pair.
type Summary struct {
	Score    float64 `json:"affinity"`
	Level    string  `json:"level"`
	LevelKey string  `json:"level_key"`
	Modifier string  `json:"modifier"`
}

// Summarize builds the reporting view for a score.
func Summarize(score float64) Summary {
	level := LevelOf(score)
	return Summary{
		Score:    score,
		Level:    level.String(),
		LevelKey: level.Key(),
		Modifier: ModifierText(score),
	}
}

// Store holds scores per (npc, user) in memory.
type Store struct {
	mu     sync.RWMutex
	scores map[pairKey]float64
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{scores: make(map[pairKey]float64)}
}

// GetOrInit returns the pair's score, recording DefaultScore on first access.
func (s *Store) GetOrInit(npc, user string) float64 {
	key := pairKey{npc: npc, user: user}

	s.mu.RLock()
	score, ok := s.scores[key]
	s.mu.RUnlock()
	if ok {
		return score
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if score, ok := s.scores[key]; ok {
		return score
	}
	s.scores[key] = DefaultScore
	return DefaultScore
}

// Set stores the clamped value.
func (s *Store) Set(npc, user string, value float64) {
	s.mu.Lock()
	s.scores[pairKey{npc: npc, user: user}] = Clamp(value)
	s.mu.Unlock()
}

// SetStrict rejects values outside [MinScore, MaxScore] without mutating.
func (s *Store) SetStrict(npc, user string, value float64) error {
	if value < MinScore || value > MaxScore || math.IsNaN(value) {
		return apperr.Validation("好感度必须在0-100之间")
	}
	s.Set(npc, user, value)
	return nil
}

// ApplyDelta adds delta to the pair's score under one lock and returns the
// score before and after.
func (s *Store) ApplyDelta(npc, user string, delta float64) (float64, float64) {
	key := pairKey{npc: npc, user: user}

	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.scores[key]
	if !ok {
		old = DefaultScore
	}
	updated := Clamp(old + delta)
	s.scores[key] = updated
	return old, updated
}

// AllFor reports every NPC the user has a score with. Untouched NPCs are omitted.
func (s *Store) AllFor(user string) map[string]Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Summary)
	for key, score := range s.scores {
		if key.user != user {
			continue
		}
		out[key.npc] = Summarize(score)
	}
	return out
}
