package models

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/easeaico/npc-town/internal/utils"
)

const anthropicDefaultMaxTokens = 1024

// anthropicModel adapts the Anthropic Messages API to model.LLM.
type anthropicModel struct {
	client *anthropic.Client
	name   string
}

// NewAnthropicModel creates a Claude-backed model.
func NewAnthropicModel(ctx context.Context, modelName, apiKey, baseURL string) (model.LLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name cannot be empty")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := anthropic.NewClient(opts...)

	return &anthropicModel{client: &client, name: modelName}, nil
}

func (m *anthropicModel) Name() string {
	return m.name
}

func (m *anthropicModel) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		resp, err := m.generate(ctx, req)
		yield(resp, err)
	}
}

func (m *anthropicModel) generate(ctx context.Context, req *model.LLMRequest) (*model.LLMResponse, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.name),
		MaxTokens: anthropicDefaultMaxTokens,
		Messages:  buildAnthropicMessages(req.Contents),
	}
	if req.Model != "" {
		params.Model = anthropic.Model(req.Model)
	}

	system := extractAnthropicSystem(req)
	if len(system) > 0 {
		params.System = system
	}
	if req.Config != nil {
		if req.Config.Temperature != nil {
			params.Temperature = anthropic.Float(float64(*req.Config.Temperature))
		}
		if req.Config.MaxOutputTokens > 0 {
			params.MaxTokens = int64(req.Config.MaxOutputTokens)
		}
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		slog.Error("failed to call anthropic API", "model", m.name, "error", err.Error())
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}

	content := &genai.Content{Role: "model"}
	if text := sb.String(); text != "" {
		content.Parts = append(content.Parts, &genai.Part{Text: text})
	}
	return &model.LLMResponse{Content: content, TurnComplete: true}, nil
}

// buildAnthropicMessages converts contents; system turns travel separately.
func buildAnthropicMessages(contents []*genai.Content) []anthropic.MessageParam {
	var messages []anthropic.MessageParam
	for _, c := range contents {
		if c == nil || c.Role == "system" {
			continue
		}
		text := strings.TrimSpace(utils.ExtractContentText(c))
		if text == "" {
			continue
		}
		switch c.Role {
		case "model", "assistant":
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(text)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(text)))
		}
	}
	return messages
}

func extractAnthropicSystem(req *model.LLMRequest) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	if req.Config != nil && req.Config.SystemInstruction != nil {
		if text := utils.ExtractContentText(req.Config.SystemInstruction); text != "" {
			blocks = append(blocks, anthropic.TextBlockParam{Text: text})
		}
	}
	for _, c := range req.Contents {
		if c != nil && c.Role == "system" {
			if text := utils.ExtractContentText(c); text != "" {
				blocks = append(blocks, anthropic.TextBlockParam{Text: text})
			}
		}
	}
	return blocks
}
