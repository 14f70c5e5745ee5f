package memory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/easeaico/npc-town/internal/repository"
	"github.com/easeaico/npc-town/internal/types"
)

// Bridge is the memory surface used by the dialogue pipeline and the API.
type Bridge interface {
	Retrieve(ctx context.Context, npc string, q types.MemoryQuery) ([]types.MemoryEntry, error)
	Append(ctx context.Context, npc string, entry types.MemoryEntry) error
	Clear(ctx context.Context, npc string, kind *types.MemoryKind) (int64, error)
	List(ctx context.Context, npc string, limit int) ([]types.MemoryEntry, error)
}

// Policy bounds how much each NPC remembers.
type Policy struct {
	// WorkingCapacity is kept per (npc, user).
	WorkingCapacity int
	// EpisodicCapacity is kept per npc.
	EpisodicCapacity int
	// ForgetThreshold drops entries below this importance when pruning.
	ForgetThreshold float64
	// SimilarityThreshold is the minimum cosine similarity for vector recall.
	SimilarityThreshold float64
	DefaultLimit        int
}

// DefaultPolicy returns the standard capacities.
func DefaultPolicy() Policy {
	return Policy{
		WorkingCapacity:     10,
		EpisodicCapacity:    100,
		ForgetThreshold:     0.3,
		SimilarityThreshold: 0.5,
		DefaultLimit:        5,
	}
}

type service struct {
	repo     repository.MemoryRepo
	embedder Embedder
	policy   Policy
	now      func() time.Time
}

// NewService returns a Bridge over repo. embedder may be nil, in which case
// text queries fall back to substring matching.
func NewService(repo repository.MemoryRepo, embedder Embedder, policy Policy) Bridge {
	if policy.DefaultLimit <= 0 {
		policy.DefaultLimit = 5
	}
	return &service{
		repo:     repo,
		embedder: embedder,
		policy:   policy,
		now:      time.Now,
	}
}

// Retrieve returns relevant entries first, topped up with the most recent
// ones, never more than q.Limit.
func (s *service) Retrieve(ctx context.Context, npc string, q types.MemoryQuery) ([]types.MemoryEntry, error) {
	if q.Limit <= 0 {
		q.Limit = s.policy.DefaultLimit
	}
	if q.Text == "" {
		return s.repo.Recent(ctx, npc, q)
	}

	relevant, err := s.search(ctx, npc, q)
	if err != nil {
		return nil, err
	}
	if len(relevant) >= q.Limit {
		return relevant[:q.Limit], nil
	}

	recent, err := s.repo.Recent(ctx, npc, q)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(relevant))
	for _, m := range relevant {
		seen[m.ID] = struct{}{}
	}
	for _, m := range recent {
		if len(relevant) >= q.Limit {
			break
		}
		if _, ok := seen[m.ID]; ok {
			continue
		}
		relevant = append(relevant, m)
	}
	return relevant, nil
}

func (s *service) search(ctx context.Context, npc string, q types.MemoryQuery) ([]types.MemoryEntry, error) {
	if searcher, ok := s.repo.(repository.VectorSearcher); ok && s.embedder != nil {
		vec, err := s.embedder.EmbedQuery(ctx, q.Text)
		if err == nil {
			return searcher.SearchSimilar(ctx, npc, q, vec, s.policy.SimilarityThreshold)
		}
		slog.Warn("failed to embed memory query, falling back to text match", "npc", npc, "error", err)
	}
	return s.repo.Match(ctx, npc, q)
}

// Append stores entry under npc and prunes according to the policy.
func (s *service) Append(ctx context.Context, npc string, entry types.MemoryEntry) error {
	entry.NPC = npc
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Kind == "" {
		entry.Kind = types.MemoryKindWorking
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	if s.embedder != nil && len(entry.Embedding) == 0 {
		vec, err := s.embedder.EmbedMemory(ctx, entry)
		if err != nil {
			slog.Warn("failed to embed memory", "npc", npc, "error", err)
		} else {
			entry.Embedding = vec
		}
	}

	if err := s.repo.Add(ctx, entry); err != nil {
		return fmt.Errorf("failed to append memory: %w", err)
	}
	if err := s.prune(ctx, npc, entry.UserID); err != nil {
		slog.Warn("failed to prune memories", "npc", npc, "error", err)
	}
	return nil
}

// prune keeps the newest WorkingCapacity working entries for the user, the
// newest EpisodicCapacity episodic entries for the npc, and forgets anything
// below ForgetThreshold.
func (s *service) prune(ctx context.Context, npc, userID string) error {
	var drop []string

	working, err := s.repo.Recent(ctx, npc, types.MemoryQuery{
		UserID: userID,
		Kinds:  []types.MemoryKind{types.MemoryKindWorking},
	})
	if err != nil {
		return err
	}
	drop = append(drop, s.overflow(working, s.policy.WorkingCapacity)...)

	episodic, err := s.repo.Recent(ctx, npc, types.MemoryQuery{
		Kinds: []types.MemoryKind{types.MemoryKindEpisodic},
	})
	if err != nil {
		return err
	}
	drop = append(drop, s.overflow(episodic, s.policy.EpisodicCapacity)...)

	if len(drop) == 0 {
		return nil
	}
	n, err := s.repo.DeleteIDs(ctx, drop)
	if err != nil {
		return err
	}
	slog.Debug("memories pruned", "npc", npc, "user", userID, "count", n)
	return nil
}

// overflow returns ids past capacity (entries are newest first) plus any
// kept entry under the forget threshold.
func (s *service) overflow(entries []types.MemoryEntry, capacity int) []string {
	var ids []string
	for i, m := range entries {
		if (capacity > 0 && i >= capacity) || m.Importance < s.policy.ForgetThreshold {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

func (s *service) Clear(ctx context.Context, npc string, kind *types.MemoryKind) (int64, error) {
	return s.repo.Delete(ctx, npc, kind)
}

func (s *service) List(ctx context.Context, npc string, limit int) ([]types.MemoryEntry, error) {
	return s.repo.Recent(ctx, npc, types.MemoryQuery{Limit: limit})
}
