// Package models 提供各家模型提供方的适配器实现。
package models

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"runtime"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

// openaiModel 封装 OpenAI 兼容的聊天客户端。
type openaiModel struct {
	client             *openai.Client
	name               string
	versionHeaderValue string
}

// NewOpenAIModel 创建 OpenAI 兼容模型；baseURL 为空时使用官方地址。
func NewOpenAIModel(ctx context.Context, modelName, apiKey, baseURL string) (model.LLM, error) {
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
	client := openai.NewClient(opts...)

	// 创建时一次性生成 UA 头，避免每次请求重复拼接。
	headerValue := fmt.Sprintf("npc-town/%s go/%s",
		"1.0.0", strings.TrimPrefix(runtime.Version(), "go"))

	return &openaiModel{
		name:               modelName,
		client:             &client,
		versionHeaderValue: headerValue,
	}, nil
}

func (m *openaiModel) Name() string {
	return m.name
}

// GenerateContent 仅支持一次性返回；stream 参数被忽略。
func (m *openaiModel) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	m.maybeAppendUserContent(req)

	return func(yield func(*model.LLMResponse, error) bool) {
		resp, err := m.generate(ctx, req)
		yield(resp, err)
	}
}

func (m *openaiModel) generate(ctx context.Context, req *model.LLMRequest) (*model.LLMResponse, error) {
	params := buildOpenAIParams(req, m.name)

	resp, err := m.client.Chat.Completions.New(ctx, *params, option.WithHeader("User-Agent", m.versionHeaderValue))
	if err != nil {
		slog.Error("failed to call llm API", "model", m.name, "error", err.Error())
		return nil, fmt.Errorf("failed to call chat completions API: %w", err)
	}

	if resp == nil || len(resp.Choices) == 0 {
		return &model.LLMResponse{}, nil
	}

	message := resp.Choices[0].Message
	content := &genai.Content{
		Role:  "model",
		Parts: []*genai.Part{},
	}
	if message.Content != "" {
		content.Parts = append(content.Parts, &genai.Part{Text: message.Content})
	}

	return &model.LLMResponse{
		Content:      content,
		TurnComplete: true,
	}, nil
}

func (m *openaiModel) maybeAppendUserContent(req *model.LLMRequest) {
	if len(req.Contents) == 0 {
		req.Contents = append(req.Contents, genai.NewContentFromText("Handle the requests as specified in the System Instruction.", "user"))
	}

	if last := req.Contents[len(req.Contents)-1]; last != nil && last.Role != "user" {
		req.Contents = append(req.Contents, genai.NewContentFromText("Continue processing previous requests as instructed.", "user"))
	}
}
