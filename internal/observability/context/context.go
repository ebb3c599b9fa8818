// Package context carries request-scoped correlation identifiers.
package context

import (
	"context"
	"strings"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	learnerIDKey contextKey = "learner_id"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

func WithLearnerID(ctx context.Context, learnerID string) context.Context {
	learnerID = strings.TrimSpace(learnerID)
	if learnerID == "" {
		return ctx
	}
	return context.WithValue(ctx, learnerIDKey, learnerID)
}

func LearnerIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(learnerIDKey).(string); ok {
		return v
	}
	return ""
}
