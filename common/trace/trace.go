// Package trace generates cycle trace IDs and carries them in a context so
// every log line of one send cycle, refine or import can be correlated.
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"
)

// Prefix starts every trace ID.
const Prefix = "t_"

type ctxKey struct{}

// GenerateID returns a new trace ID: Prefix followed by 32 hex characters.
func GenerateID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return Prefix + strconv.FormatInt(time.Now().UnixNano(), 16)
	}
	return Prefix + hex.EncodeToString(b[:])
}

// WithTraceID returns a child context carrying id.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the trace ID carried by ctx, or "".
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Ensure returns ctx and its trace ID, attaching a fresh ID when ctx has
// none. Operations that may be entered with or without a caller's trace use
// it so their log lines always share one.
func Ensure(ctx context.Context) (context.Context, string) {
	if id := FromContext(ctx); id != "" {
		return ctx, id
	}
	id := GenerateID()
	return WithTraceID(ctx, id), id
}
