package models

import (
	"context"
	"fmt"

	"google.golang.org/adk/model"

	"github.com/easeaico/npc-town/internal/apperr"
	"github.com/easeaico/npc-town/internal/config"
)

// New builds the configured model. Without an API key it returns a
// configuration_absent error and callers switch to offline behavior.
func New(ctx context.Context, cfg config.Config) (model.LLM, error) {
	if cfg.Offline() {
		return nil, apperr.ConfigurationAbsent("LLM_API_KEY 未配置")
	}

	switch cfg.LLMProvider {
	case config.ProviderGemini:
		return NewGeminiModel(ctx, cfg.LLMModelID, cfg.LLMAPIKey)
	case config.ProviderAnthropic:
		return NewAnthropicModel(ctx, cfg.LLMModelID, cfg.LLMAPIKey, cfg.LLMBaseURL)
	case config.ProviderOpenAI:
		return NewOpenAIModel(ctx, cfg.LLMModelID, cfg.LLMAPIKey, cfg.LLMBaseURL)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.LLMProvider)
	}
}
