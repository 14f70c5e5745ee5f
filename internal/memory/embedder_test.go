package memory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/easeaico/npc-town/internal/types"
)

type embedCall struct {
	model string
	text  string
	cfg   *genai.EmbedContentConfig
}

func fakeEmbedder(dims int, err error) (*GenAIEmbedder, *[]embedCall) {
	var calls []embedCall
	e := &GenAIEmbedder{model: "test-embedding", embed: func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
		calls = append(calls, embedCall{model: model, text: contents[0].Parts[0].Text, cfg: cfg})
		if err != nil {
			return nil, err
		}
		return &genai.EmbedContentResponse{Embeddings: []*genai.ContentEmbedding{{Values: make([]float32, dims)}}}, nil
	}}
	return e, &calls
}

func TestEmbedQuery(t *testing.T) {
	e, calls := fakeEmbedder(embeddingDimensions, nil)
	vec, err := e.EmbedQuery(context.Background(), "  咖啡  ")
	require.NoError(t, err)
	assert.Len(t, vec, embeddingDimensions)

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.Equal(t, "test-embedding", call.model)
	assert.Equal(t, "咖啡", call.text)
	assert.Equal(t, taskQuery, call.cfg.TaskType)
	assert.EqualValues(t, embeddingDimensions, *call.cfg.OutputDimensionality)
}

func TestEmbedMemoryIncludesSpeaker(t *testing.T) {
	e, calls := fakeEmbedder(embeddingDimensions, nil)
	entry := types.MemoryEntry{
		NPC:      "张三",
		Content:  "今天下班去喝咖啡",
		Metadata: map[string]any{types.MetaSpeaker: "player"},
	}
	_, err := e.EmbedMemory(context.Background(), entry)
	require.NoError(t, err)

	call := (*calls)[0]
	assert.Equal(t, "player: 今天下班去喝咖啡", call.text)
	assert.Equal(t, taskDocument, call.cfg.TaskType)
	assert.Equal(t, "张三", call.cfg.Title)
}

func TestEmbedSkipsBlankText(t *testing.T) {
	e, calls := fakeEmbedder(embeddingDimensions, nil)
	vec, err := e.EmbedQuery(context.Background(), " \n ")
	require.NoError(t, err)
	assert.Nil(t, vec)

	vec, err = e.EmbedMemory(context.Background(), types.MemoryEntry{Content: "  ", Metadata: map[string]any{types.MetaSpeaker: "player"}})
	require.NoError(t, err)
	assert.Nil(t, vec)
	assert.Empty(t, *calls)
}

func TestEmbedTruncatesLongText(t *testing.T) {
	e, calls := fakeEmbedder(embeddingDimensions, nil)
	_, err := e.EmbedQuery(context.Background(), strings.Repeat("字", maxEmbedRunes+50))
	require.NoError(t, err)
	assert.Equal(t, maxEmbedRunes, len([]rune((*calls)[0].text)))
}

func TestEmbedDimensions(t *testing.T) {
	e, _ := fakeEmbedder(embeddingDimensions+32, nil)
	vec, err := e.EmbedQuery(context.Background(), "hi")
	require.NoError(t, err)
	assert.Len(t, vec, embeddingDimensions)

	e, _ = fakeEmbedder(256, nil)
	_, err = e.EmbedQuery(context.Background(), "hi")
	assert.ErrorContains(t, err, "dimensions mismatch")
}

func TestEmbedError(t *testing.T) {
	boom := errors.New("quota")
	e, _ := fakeEmbedder(0, boom)
	_, err := e.EmbedMemory(context.Background(), types.MemoryEntry{Content: "hi"})
	assert.ErrorIs(t, err, boom)
}

func TestNewEmbedderRequiresKey(t *testing.T) {
	_, err := NewEmbedder(context.Background(), "", "")
	assert.Error(t, err)
}
