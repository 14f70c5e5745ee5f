package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfWrapped(t *testing.T) {
	base := NotFound("npc %q not found", "张三")
	wrapped := fmt.Errorf("failed to chat: %w", base)

	if got := KindOf(wrapped); got != KindNotFound {
		t.Fatalf("expected not_found, got %s", got)
	}
	if !Is(wrapped, KindNotFound) {
		t.Fatalf("expected Is to match wrapped error")
	}
	if Is(nil, KindNotFound) {
		t.Fatalf("nil must not match any kind")
	}
}

func TestKindOfPlainError(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != KindInternal {
		t.Fatalf("expected internal, got %s", got)
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := ModelInvocation("model call failed", errors.New("timeout"))
	if err.Error() != "model call failed: timeout" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
	if !errors.Is(err, err.Err) {
		t.Fatalf("expected unwrap to expose cause")
	}
	if err.Code() != "MODEL_INVOCATION_FAILURE" {
		t.Fatalf("unexpected code: %s", err.Code())
	}
}
