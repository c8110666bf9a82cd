package identity

import (
	"context"
	"testing"
)

func TestOwner(t *testing.T) {
	tests := []struct {
		name  string
		ctx   context.Context
		want  string
		found bool
	}{
		{"attached", WithOwner(context.Background(), "u1"), "u1", true},
		{"trimmed", WithOwner(context.Background(), "  u2 "), "u2", true},
		{"blank ignored", WithOwner(context.Background(), "   "), "", false},
		{"missing", context.Background(), "", false},
		{"innermost wins", WithOwner(WithOwner(context.Background(), "u1"), "u3"), "u3", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Owner(tt.ctx)
			if got != tt.want || ok != tt.found {
				t.Errorf("expected (%q, %v), got (%q, %v)", tt.want, tt.found, got, ok)
			}
		})
	}
}

func TestWithOwner_NilContext(t *testing.T) {
	ctx := WithOwner(nil, "u1")
	if owner, ok := Owner(ctx); !ok || owner != "u1" {
		t.Errorf("expected u1, got %q", owner)
	}
}
