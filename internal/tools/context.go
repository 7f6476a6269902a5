package tools

import (
	"context"
)

// userIDKey is an unexported context key for zero-allocation type safety.
type userIDKey struct{}

// UserIDFromContext retrieves the authenticated user identity from context.
// Returns empty string if not set.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}

// ContextWithUserID stores the authenticated user identity in context.
// The chat orchestrator injects it before an agent turn; task tools compare
// it against the user_id argument to stop cross-tenant access.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}
