package types

import "context"

type contextKey string

const (
	invocationIDKey contextKey = "invocation_id"
)

// WithInvocationID stores the invocation ID in the context. Every log record
// emitted while serving one signup carries this ID.
func WithInvocationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, invocationIDKey, id)
}

// GetInvocationID retrieves the invocation ID from the context.
// Returns "" if none has been set.
func GetInvocationID(ctx context.Context) string {
	id, _ := ctx.Value(invocationIDKey).(string)
	return id
}
