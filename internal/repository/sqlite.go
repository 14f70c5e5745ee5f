package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/easeaico/npc-town/internal/types"
)

// SQLiteMemoryRepo stores memories in a local SQLite file, or in process
// memory for ":memory:".
type SQLiteMemoryRepo struct {
	db *sql.DB
}

// NewSQLiteMemoryRepo opens dbPath and ensures the schema exists.
func NewSQLiteMemoryRepo(dbPath string) (*SQLiteMemoryRepo, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("empty sqlite database path")
	}
	if dbPath != ":memory:" {
		parent := filepath.Dir(dbPath)
		if parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// one connection: ":memory:" databases are per-connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, pragma := range []string{
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA journal_mode = WAL;`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	if err := ensureSQLiteMemorySchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteMemoryRepo{db: db}, nil
}

func ensureSQLiteMemorySchema(ctx context.Context, db *sql.DB) error {
	statements := []string{`
CREATE TABLE IF NOT EXISTS npc_memories (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    uid TEXT NOT NULL UNIQUE,
    npc TEXT NOT NULL,
    user_id TEXT NOT NULL DEFAULT '',
    kind TEXT NOT NULL,
    content TEXT NOT NULL,
    importance REAL NOT NULL DEFAULT 0,
    metadata TEXT NOT NULL DEFAULT '{}',
    created_at_ms INTEGER NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_npc_memories_npc_kind ON npc_memories (npc, kind, created_at_ms)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure npc_memories schema: %w", err)
		}
	}
	return nil
}

func (r *SQLiteMemoryRepo) Add(ctx context.Context, entry types.MemoryEntry) error {
	meta, err := marshalMetadata(entry.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode memory metadata: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO npc_memories (uid, npc, user_id, kind, content, importance, metadata, created_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, entry.ID, entry.NPC, entry.UserID, string(entry.Kind), entry.Content, entry.Importance, string(meta), entry.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert memory: %w", err)
	}
	return nil
}

func (r *SQLiteMemoryRepo) Recent(ctx context.Context, npc string, q types.MemoryQuery) ([]types.MemoryEntry, error) {
	where, args := sqliteFilter(npc, q)
	return r.query(ctx, where, args, q.Limit)
}

func (r *SQLiteMemoryRepo) Match(ctx context.Context, npc string, q types.MemoryQuery) ([]types.MemoryEntry, error) {
	where, args := sqliteFilter(npc, q)
	where += ` AND content LIKE ? ESCAPE '\'`
	args = append(args, "%"+escapeLike(q.Text)+"%")
	return r.query(ctx, where, args, q.Limit)
}

func (r *SQLiteMemoryRepo) Delete(ctx context.Context, npc string, kind *types.MemoryKind) (int64, error) {
	query := `DELETE FROM npc_memories WHERE npc = ?`
	args := []any{npc}
	if kind != nil {
		query += ` AND kind = ?`
		args = append(args, string(*kind))
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete memories: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteMemoryRepo) DeleteIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	query := `DELETE FROM npc_memories WHERE uid IN (` + placeholders(len(ids)) + `)`
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete memories: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteMemoryRepo) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *SQLiteMemoryRepo) query(ctx context.Context, where string, args []any, limit int) ([]types.MemoryEntry, error) {
	query := `
SELECT uid, npc, user_id, kind, content, importance, metadata, created_at_ms
FROM npc_memories
WHERE ` + where + `
ORDER BY created_at_ms DESC, seq DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}
	defer rows.Close()

	var results []types.MemoryEntry
	for rows.Next() {
		var (
			entry     types.MemoryEntry
			kind      string
			meta      string
			createdMs int64
		)
		if err := rows.Scan(&entry.ID, &entry.NPC, &entry.UserID, &kind, &entry.Content, &entry.Importance, &meta, &createdMs); err != nil {
			return nil, fmt.Errorf("failed to scan memory: %w", err)
		}
		entry.Kind = types.MemoryKind(kind)
		entry.Metadata = unmarshalMetadata([]byte(meta))
		entry.CreatedAt = time.UnixMilli(createdMs)
		results = append(results, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate memories: %w", err)
	}
	return results, nil
}

func sqliteFilter(npc string, q types.MemoryQuery) (string, []any) {
	where := `npc = ?`
	args := []any{npc}
	if q.UserID != "" {
		where += ` AND user_id = ?`
		args = append(args, q.UserID)
	}
	if len(q.Kinds) > 0 {
		where += ` AND kind IN (` + placeholders(len(q.Kinds)) + `)`
		for _, k := range kindStrings(q.Kinds) {
			args = append(args, k)
		}
	}
	if q.MinImportance > 0 {
		where += ` AND importance >= ?`
		args = append(args, q.MinImportance)
	}
	return where, args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// escapeLike escapes LIKE wildcards using backslash.
func escapeLike(text string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(text)
}
