// Package repository persists NPC memories.
package repository

import (
	"context"
	"fmt"

	"github.com/easeaico/npc-town/internal/config"
	"github.com/easeaico/npc-town/internal/types"
)

// MemoryRepo stores memory entries partitioned by NPC.
type MemoryRepo interface {
	Add(ctx context.Context, entry types.MemoryEntry) error
	// Recent returns entries newest first. q.Text is ignored.
	Recent(ctx context.Context, npc string, q types.MemoryQuery) ([]types.MemoryEntry, error)
	// Match returns entries whose content contains q.Text, newest first.
	Match(ctx context.Context, npc string, q types.MemoryQuery) ([]types.MemoryEntry, error)
	// Delete removes an NPC's entries, optionally of one kind only.
	Delete(ctx context.Context, npc string, kind *types.MemoryKind) (int64, error)
	DeleteIDs(ctx context.Context, ids []string) (int64, error)
	Close() error
}

// VectorSearcher is implemented by repositories that can rank by embedding.
type VectorSearcher interface {
	SearchSimilar(ctx context.Context, npc string, q types.MemoryQuery, embedding []float32, threshold float64) ([]types.MemoryEntry, error)
}

// OpenMemoryRepo opens the repository selected by cfg.MemoryBackend.
func OpenMemoryRepo(ctx context.Context, cfg config.Config) (MemoryRepo, error) {
	switch cfg.MemoryBackend {
	case config.MemoryBackendPostgres:
		db, err := OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return NewPGMemoryRepo(db), nil
	case config.MemoryBackendSQLite:
		return NewSQLiteMemoryRepo(cfg.SQLitePath)
	case config.MemoryBackendMemory, "":
		return NewSQLiteMemoryRepo(":memory:")
	default:
		return nil, fmt.Errorf("unsupported memory backend: %s", cfg.MemoryBackend)
	}
}

func kindStrings(kinds []types.MemoryKind) []string {
	out := make([]string, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, string(k))
	}
	return out
}
