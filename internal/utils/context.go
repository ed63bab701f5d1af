// Package utils provides small helpers shared by the client and the
// emulator: the trace ID carried in a context, JSON response writing, ETag
// hashing, the resty HTTP client and UUID generation.
package utils

import (
	"context"
)

// contextKey is a private type for context keys.
// Using a dedicated type instead of a plain string prevents key collisions
// with other packages that may use string-based keys in the context.
type contextKey string

func (c contextKey) String() string {
	return string(c)
}

// TraceIDCtxKey is the key of the request trace ID in a context.
var TraceIDCtxKey = contextKey("traceID")

// WithTraceID returns a copy of ctx carrying traceID.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDCtxKey, traceID)
}

// TraceIDFromContext returns the trace ID stored by WithTraceID.
//
//	traceID, ok := utils.TraceIDFromContext(ctx)
//	if !ok {
//	    traceID = generator.Generate()
//	}
func TraceIDFromContext(ctx context.Context) (string, bool) {
	traceID, ok := ctx.Value(TraceIDCtxKey).(string)
	return traceID, ok && traceID != ""
}
