package apperrors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestIsKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind Kind
		want bool
	}{
		{"direct", NewNoMatch("nothing"), NoMatch, true},
		{"wrong kind", NewNoMatch("nothing"), ParseFailure, false},
		{"wrapped", fmt.Errorf("stage: %w", NewParseFailure("bad json", nil)), ParseFailure, true},
		{"plain error", errors.New("boom"), BackendUnavailable, false},
		{"nil", nil, NoMatch, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsKind(tt.err, tt.kind); got != tt.want {
				t.Errorf("IsKind() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestError_UnwrapsCause(t *testing.T) {
	err := NewBackendUnavailable("llm", "request failed", context.DeadlineExceeded)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("expected errors.Is to find the cause")
	}
	if KindOf(err) != BackendUnavailable {
		t.Errorf("KindOf = %q, want %q", KindOf(err), BackendUnavailable)
	}
	msg := err.Error()
	if !strings.HasPrefix(msg, "llm: backend_unavailable") {
		t.Errorf("unexpected message prefix: %q", msg)
	}
	if !strings.Contains(msg, "deadline exceeded") {
		t.Errorf("message should mention cause: %q", msg)
	}
}

func TestKindOf_Unknown(t *testing.T) {
	if k := KindOf(errors.New("x")); k != "" {
		t.Errorf("KindOf(plain) = %q, want empty", k)
	}
}
