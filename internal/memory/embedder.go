// Package memory 实现 NPC 记忆的写入、检索与容量管理。
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/easeaico/npc-town/internal/types"
)

// Embedder 把检索文本和记忆条目映射到同一个向量空间。
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedMemory(ctx context.Context, entry types.MemoryEntry) ([]float32, error)
}

type embedFunc func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)

// GenAIEmbedder 通过 Gemini embedding 模型生成与 npc_memories.embedding 同维度的向量。
type GenAIEmbedder struct {
	embed embedFunc
	model string
}

const (
	embeddingDimensions = 768
	// maxEmbedRunes 超出部分不参与向量化
	maxEmbedRunes = 2000

	taskQuery    = "RETRIEVAL_QUERY"
	taskDocument = "RETRIEVAL_DOCUMENT"
)

func NewEmbedder(ctx context.Context, apiKey, modelName string) (*GenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google api key is required for memory embeddings")
	}
	if modelName == "" {
		modelName = "text-embedding-004"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}
	return &GenAIEmbedder{embed: client.Models.EmbedContent, model: modelName}, nil
}

// EmbedQuery 对玩家消息做检索向量化。空白消息返回 nil。
func (e *GenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.vector(ctx, text, &genai.EmbedContentConfig{TaskType: taskQuery})
}

// EmbedMemory 以 "说话人: 内容" 的形式向量化记忆, 并用 NPC 名作为文档标题,
// 这样同一句话由不同说话人说出时落在不同位置。
func (e *GenAIEmbedder) EmbedMemory(ctx context.Context, entry types.MemoryEntry) ([]float32, error) {
	return e.vector(ctx, memoryDocument(entry), &genai.EmbedContentConfig{
		TaskType: taskDocument,
		Title:    entry.NPC,
	})
}

func memoryDocument(entry types.MemoryEntry) string {
	content := strings.TrimSpace(entry.Content)
	if content == "" {
		return ""
	}
	if speaker := strings.TrimSpace(entry.Speaker()); speaker != "" {
		return speaker + ": " + content
	}
	return content
}

func (e *GenAIEmbedder) vector(ctx context.Context, text string, cfg *genai.EmbedContentConfig) ([]float32, error) {
	text = truncateRunes(strings.TrimSpace(text), maxEmbedRunes)
	if text == "" {
		return nil, nil
	}
	dims := int32(embeddingDimensions)
	cfg.OutputDimensionality = &dims

	resp, err := e.embed(ctx, e.model, genai.Text(text), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to embed %s: %w", strings.ToLower(cfg.TaskType), err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, fmt.Errorf("empty embedding response")
	}
	values := resp.Embeddings[0].Values
	switch {
	case len(values) == embeddingDimensions:
		return values, nil
	case len(values) > embeddingDimensions:
		slog.Warn("embedding longer than column, truncating", "actual", len(values), "model", e.model)
		return values[:embeddingDimensions], nil
	default:
		return nil, fmt.Errorf("embedding dimensions mismatch: got %d want %d", len(values), embeddingDimensions)
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
