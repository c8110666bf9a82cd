// Package identity carries the authenticated owner through context.Context.
// Resolving who the owner is belongs to the caller; the sync core only
// reads the value.
package identity

import (
	"context"
	"strings"
)

type ownerContextKey struct{}

// WithOwner attaches the owner identifier to ctx. Blank owners are ignored.
func WithOwner(ctx context.Context, owner string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return ctx
	}
	return context.WithValue(ctx, ownerContextKey{}, owner)
}

// Owner returns the owner attached to ctx.
func Owner(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	owner, ok := ctx.Value(ownerContextKey{}).(string)
	return owner, ok && owner != ""
}
