package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/easeaico/npc-town/internal/types"
)

// memoryModel maps to the npc_memories table.
type memoryModel struct {
	Seq        int64  `gorm:"column:seq;primaryKey;autoIncrement"`
	UID        string `gorm:"column:uid;uniqueIndex;not null"`
	NPC        string `gorm:"column:npc;index:idx_npc_memories_npc_kind;not null"`
	UserID     string `gorm:"column:user_id;index"`
	Kind       string `gorm:"column:kind;index:idx_npc_memories_npc_kind;not null"`
	Content    string `gorm:"column:content;not null"`
	Importance float64
	// Metadata carries speaker, turn id and affinity details.
	Metadata datatypes.JSON `gorm:"column:metadata;type:jsonb"`
	// Embedding is set only when an embedder is configured.
	Embedding *pgvector.Vector `gorm:"column:embedding;type:vector(768)"`
	CreatedAt time.Time        `gorm:"index"`
}

func (memoryModel) TableName() string {
	return "npc_memories"
}

// OpenPostgres opens the database and verifies the connection.
func OpenPostgres(ctx context.Context, databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// Migrate enables pgvector and creates the memory table.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("failed to enable pgvector: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(&memoryModel{}); err != nil {
		return fmt.Errorf("failed to migrate npc_memories: %w", err)
	}
	return nil
}

// PGMemoryRepo stores memories in PostgreSQL.
type PGMemoryRepo struct {
	db *gorm.DB
}

// NewPGMemoryRepo returns a PGMemoryRepo.
func NewPGMemoryRepo(db *gorm.DB) *PGMemoryRepo {
	return &PGMemoryRepo{db: db}
}

func (r *PGMemoryRepo) Add(ctx context.Context, entry types.MemoryEntry) error {
	var vector *pgvector.Vector
	if len(entry.Embedding) > 0 {
		v := pgvector.NewVector(entry.Embedding)
		vector = &v
	}
	meta, err := marshalMetadata(entry.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode memory metadata: %w", err)
	}
	record := memoryModel{
		UID:        entry.ID,
		NPC:        entry.NPC,
		UserID:     entry.UserID,
		Kind:       string(entry.Kind),
		Content:    entry.Content,
		Importance: entry.Importance,
		Metadata:   datatypes.JSON(meta),
		Embedding:  vector,
		CreatedAt:  entry.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to insert memory: %w", err)
	}
	return nil
}

func (r *PGMemoryRepo) Recent(ctx context.Context, npc string, q types.MemoryQuery) ([]types.MemoryEntry, error) {
	var records []memoryModel
	if err := r.filtered(ctx, npc, q).Order("created_at DESC, seq DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}
	return entriesFromModels(records), nil
}

func (r *PGMemoryRepo) Match(ctx context.Context, npc string, q types.MemoryQuery) ([]types.MemoryEntry, error) {
	var records []memoryModel
	err := r.filtered(ctx, npc, q).
		Where("content ILIKE ?", "%"+escapeLike(q.Text)+"%").
		Order("created_at DESC, seq DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to match memories: %w", err)
	}
	return entriesFromModels(records), nil
}

// SearchSimilar ranks by cosine similarity and keeps those above threshold.
func (r *PGMemoryRepo) SearchSimilar(ctx context.Context, npc string, q types.MemoryQuery, embedding []float32, threshold float64) ([]types.MemoryEntry, error) {
	if len(embedding) == 0 {
		return nil, nil
	}
	var records []memoryModel
	err := r.similar(ctx, npc, q, pgvector.NewVector(embedding), threshold).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to search similar memories: %w", err)
	}
	return entriesFromModels(records), nil
}

// similar 按余弦距离升序，只保留相似度高于 threshold 的记录
func (r *PGMemoryRepo) similar(ctx context.Context, npc string, q types.MemoryQuery, vec pgvector.Vector, threshold float64) *gorm.DB {
	return r.filtered(ctx, npc, q).
		Where("embedding IS NOT NULL AND 1 - (embedding <=> ?) > ?", vec, threshold).
		Clauses(clause.OrderBy{Expression: clause.Expr{SQL: "embedding <=> ?", Vars: []any{vec}}})
}

func (r *PGMemoryRepo) Delete(ctx context.Context, npc string, kind *types.MemoryKind) (int64, error) {
	query := r.db.WithContext(ctx).Where("npc = ?", npc)
	if kind != nil {
		query = query.Where("kind = ?", string(*kind))
	}
	result := query.Delete(&memoryModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete memories: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *PGMemoryRepo) DeleteIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Where("uid IN ?", ids).Delete(&memoryModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete memories: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *PGMemoryRepo) Close() error {
	if r.db == nil {
		return nil
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r *PGMemoryRepo) filtered(ctx context.Context, npc string, q types.MemoryQuery) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&memoryModel{}).Where("npc = ?", npc)
	if q.UserID != "" {
		query = query.Where("user_id = ?", q.UserID)
	}
	if len(q.Kinds) > 0 {
		query = query.Where("kind IN ?", kindStrings(q.Kinds))
	}
	if q.MinImportance > 0 {
		query = query.Where("importance >= ?", q.MinImportance)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	return query
}

func entriesFromModels(records []memoryModel) []types.MemoryEntry {
	results := make([]types.MemoryEntry, 0, len(records))
	for _, record := range records {
		entry := types.MemoryEntry{
			ID:         record.UID,
			NPC:        record.NPC,
			UserID:     record.UserID,
			Content:    record.Content,
			Kind:       types.MemoryKind(record.Kind),
			Importance: record.Importance,
			Metadata:   unmarshalMetadata(record.Metadata),
			CreatedAt:  record.CreatedAt,
		}
		if record.Embedding != nil {
			entry.Embedding = record.Embedding.Slice()
		}
		results = append(results, entry)
	}
	return results
}

// marshalMetadata encodes metadata, returning "{}" for empty maps.
func marshalMetadata(meta map[string]any) ([]byte, error) {
	if len(meta) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(meta)
}

func unmarshalMetadata(data []byte) map[string]any {
	if len(data) == 0 {
		return nil
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil || len(meta) == 0 {
		return nil
	}
	return meta
}
