package appctx

import (
	"context"

	"github.com/google/uuid"
)

// ContextKey is the shared type for all context keys in this codebase.
// Keeping it in a tiny package avoids import cycles (config <-> utils).
type ContextKey string

func (c ContextKey) String() string { return string(c) }

var (
	ContextKeyUserId        = ContextKey("UserId")
	ContextKeyUserName      = ContextKey("UserName")
	ContextKeyCorrelationId = ContextKey("CorrelationId")
)

func GetString(ctx context.Context, key ContextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok
}

func GetInt(ctx context.Context, key ContextKey) (int, bool) {
	v, ok := ctx.Value(key).(int)
	return v, ok
}

func Set(ctx context.Context, key ContextKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}

// EnsureCorrelationId returns a context carrying a correlation id, minting
// one when absent. Batch jobs call this once at startup so every log line in
// a run shares an id.
func EnsureCorrelationId(ctx context.Context) context.Context {
	if _, ok := GetString(ctx, ContextKeyCorrelationId); ok {
		return ctx
	}
	return Set(ctx, ContextKeyCorrelationId, uuid.NewString())
}
