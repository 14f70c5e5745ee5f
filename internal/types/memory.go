package types

import (
	"fmt"
	"time"
)

// MemoryKind separates short-horizon turns from significant events.
type MemoryKind string

const (
	// MemoryKindWorking holds the most recent turns.
	MemoryKindWorking MemoryKind = "working"
	// MemoryKindEpisodic holds significant events kept for longer.
	MemoryKindEpisodic MemoryKind = "episodic"
)

// ParseMemoryKind validates a kind name.
func ParseMemoryKind(value string) (MemoryKind, error) {
	switch MemoryKind(value) {
	case MemoryKindWorking, MemoryKindEpisodic:
		return MemoryKind(value), nil
	default:
		return "", fmt.Errorf("unknown memory kind %q", value)
	}
}

// Metadata keys written by the dialogue pipeline.
const (
	MetaSpeaker        = "speaker"
	MetaUserID         = "user_id"
	MetaTurnID         = "turn_id"
	MetaAffinity       = "affinity"
	MetaAffinityChange = "affinity_change"
	MetaSentiment      = "sentiment"
)

// MemoryEntry is one remembered line of a conversation.
type MemoryEntry struct {
	ID         string         `json:"id"`
	NPC        string         `json:"npc"`
	UserID     string         `json:"user_id"`
	Content    string         `json:"content"`
	Kind       MemoryKind     `json:"kind"`
	Importance float64        `json:"importance"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Embedding  []float32      `json:"-"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Speaker returns the speaker recorded in metadata, if any.
func (m MemoryEntry) Speaker() string {
	if m.Metadata == nil {
		return ""
	}
	if s, ok := m.Metadata[MetaSpeaker].(string); ok {
		return s
	}
	return ""
}

// MemoryQuery filters a retrieval.
type MemoryQuery struct {
	// Text is the relevance query; empty means most recent.
	Text          string
	UserID        string
	Kinds         []MemoryKind
	Limit         int
	MinImportance float64
}
