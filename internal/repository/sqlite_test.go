package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/easeaico/npc-town/internal/config"
	"github.com/easeaico/npc-town/internal/types"
)

func newTestRepo(t *testing.T) *SQLiteMemoryRepo {
	t.Helper()
	repo, err := NewSQLiteMemoryRepo(":memory:")
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func addEntry(t *testing.T, repo MemoryRepo, id, npc, user, content string, kind types.MemoryKind, importance float64, at time.Time) {
	t.Helper()
	err := repo.Add(context.Background(), types.MemoryEntry{
		ID:         id,
		NPC:        npc,
		UserID:     user,
		Content:    content,
		Kind:       kind,
		Importance: importance,
		Metadata:   map[string]any{types.MetaSpeaker: user},
		CreatedAt:  at,
	})
	if err != nil {
		t.Fatalf("add %s: %v", id, err)
	}
}

func TestSQLiteRecentOrderAndFilters(t *testing.T) {
	repo := newTestRepo(t)
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	addEntry(t, repo, "a", "张三", "alice", "早上好", types.MemoryKindWorking, 0.5, base)
	addEntry(t, repo, "b", "张三", "alice", "代码写得真棒", types.MemoryKindEpisodic, 0.8, base.Add(time.Minute))
	addEntry(t, repo, "c", "张三", "bob", "你好", types.MemoryKindWorking, 0.2, base.Add(2*time.Minute))
	addEntry(t, repo, "d", "李四", "alice", "设计很好看", types.MemoryKindWorking, 0.5, base.Add(3*time.Minute))

	got, err := repo.Recent(context.Background(), "张三", types.MemoryQuery{})
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 3 || got[0].ID != "c" || got[2].ID != "a" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if got[0].Speaker() != "bob" {
		t.Fatalf("metadata not round-tripped: %+v", got[0].Metadata)
	}
	if !got[2].CreatedAt.Equal(base) {
		t.Fatalf("unexpected created_at %v", got[2].CreatedAt)
	}

	got, err = repo.Recent(context.Background(), "张三", types.MemoryQuery{
		UserID:        "alice",
		Kinds:         []types.MemoryKind{types.MemoryKindEpisodic},
		MinImportance: 0.3,
	})
	if err != nil {
		t.Fatalf("recent filtered: %v", err)
	}
	if len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("unexpected filtered result: %+v", got)
	}

	got, err = repo.Recent(context.Background(), "张三", types.MemoryQuery{Limit: 1})
	if err != nil {
		t.Fatalf("recent limited: %v", err)
	}
	if len(got) != 1 || got[0].ID != "c" {
		t.Fatalf("unexpected limited result: %+v", got)
	}
}

func TestSQLiteMatch(t *testing.T) {
	repo := newTestRepo(t)
	now := time.Now()
	addEntry(t, repo, "a", "张三", "alice", "今天讨论了代码评审", types.MemoryKindWorking, 0.5, now)
	addEntry(t, repo, "b", "张三", "alice", "午饭吃什么", types.MemoryKindWorking, 0.5, now.Add(time.Second))
	addEntry(t, repo, "c", "张三", "alice", "进度100%完成", types.MemoryKindWorking, 0.5, now.Add(2*time.Second))

	got, err := repo.Match(context.Background(), "张三", types.MemoryQuery{Text: "代码"})
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("unexpected match: %+v", got)
	}

	got, err = repo.Match(context.Background(), "张三", types.MemoryQuery{Text: "%"})
	if err != nil {
		t.Fatalf("match wildcard: %v", err)
	}
	if len(got) != 1 || got[0].ID != "c" {
		t.Fatalf("wildcard should match literally: %+v", got)
	}
}

func TestSQLiteDelete(t *testing.T) {
	repo := newTestRepo(t)
	now := time.Now()
	addEntry(t, repo, "a", "张三", "alice", "一", types.MemoryKindWorking, 0.5, now)
	addEntry(t, repo, "b", "张三", "alice", "二", types.MemoryKindEpisodic, 0.8, now)
	addEntry(t, repo, "c", "张三", "alice", "三", types.MemoryKindWorking, 0.5, now)
	addEntry(t, repo, "d", "李四", "alice", "四", types.MemoryKindWorking, 0.5, now)

	kind := types.MemoryKindWorking
	n, err := repo.Delete(context.Background(), "张三", &kind)
	if err != nil || n != 2 {
		t.Fatalf("delete working: n=%d err=%v", n, err)
	}
	n, err = repo.DeleteIDs(context.Background(), []string{"b", "missing"})
	if err != nil || n != 1 {
		t.Fatalf("delete ids: n=%d err=%v", n, err)
	}
	n, err = repo.Delete(context.Background(), "李四", nil)
	if err != nil || n != 1 {
		t.Fatalf("delete all: n=%d err=%v", n, err)
	}
}

func TestOpenMemoryRepo(t *testing.T) {
	repo, err := OpenMemoryRepo(context.Background(), config.Config{MemoryBackend: config.MemoryBackendMemory})
	if err != nil {
		t.Fatalf("open memory backend: %v", err)
	}
	_ = repo.Close()

	path := filepath.Join(t.TempDir(), "data", "memory.db")
	repo, err = OpenMemoryRepo(context.Background(), config.Config{MemoryBackend: config.MemoryBackendSQLite, SQLitePath: path})
	if err != nil {
		t.Fatalf("open sqlite backend: %v", err)
	}
	addEntry(t, repo, "a", "张三", "alice", "你好", types.MemoryKindWorking, 0.5, time.Now())
	_ = repo.Close()

	if _, err := OpenMemoryRepo(context.Background(), config.Config{MemoryBackend: "redis"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestEscapeLike(t *testing.T) {
	if got := escapeLike(`50%_a\b`); got != `50\%\_a\\b` {
		t.Fatalf("unexpected escape: %q", got)
	}
}
