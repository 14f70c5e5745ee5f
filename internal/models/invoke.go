package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/adk/model"

	"github.com/easeaico/npc-town/internal/apperr"
	"github.com/easeaico/npc-town/internal/utils"
)

// ErrEmptyResponse is returned when the model yields no text.
var ErrEmptyResponse = errors.New("empty model response")

// Invoke runs a single non-streaming request and returns the trimmed text.
// A positive timeout bounds the call. Failures are model_invocation errors.
func Invoke(ctx context.Context, llm model.LLM, req *model.LLMRequest, timeout time.Duration) (string, error) {
	if llm == nil {
		return "", apperr.ConfigurationAbsent("model not configured")
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	seq := llm.GenerateContent(ctx, req, false)
	var resp *model.LLMResponse
	var err error
	seq(func(r *model.LLMResponse, e error) bool {
		resp = r
		err = e
		return false
	})
	if err != nil {
		return "", apperr.ModelInvocation("模型调用失败", err)
	}
	if resp == nil || resp.Content == nil {
		return "", apperr.ModelInvocation("模型调用失败", ErrEmptyResponse)
	}

	text := strings.TrimSpace(utils.ExtractContentText(resp.Content))
	if text == "" {
		return "", apperr.ModelInvocation("模型调用失败", ErrEmptyResponse)
	}
	return text, nil
}
