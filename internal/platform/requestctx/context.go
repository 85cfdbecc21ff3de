package requestctx

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type contextKey string

const (
	loggerContextKey contextKey = "github.com/hanko-field/commerce/internal/platform/requestctx/logger"
	traceContextKey  contextKey = "github.com/hanko-field/commerce/internal/platform/requestctx/trace"
	actorContextKey  contextKey = "github.com/hanko-field/commerce/internal/platform/requestctx/actor"
)

var noopLogger = zap.NewNop()

// TraceInfo captures trace metadata propagated through request context.
type TraceInfo struct {
	TraceID   string
	SpanID    string
	Sampled   bool
	ProjectID string
}

// WithLogger stores the logger in context for downstream consumers.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = noopLogger
	}
	return context.WithValue(ctx, loggerContextKey, logger)
}

// Logger retrieves the zap logger from context or returns a no-op logger.
func Logger(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return noopLogger
	}
	if logger, ok := ctx.Value(loggerContextKey).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return noopLogger
}

// WithTrace stores the trace metadata on the context.
func WithTrace(ctx context.Context, info TraceInfo) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, traceContextKey, info)
}

// Trace retrieves the trace metadata from context when available.
func Trace(ctx context.Context) (TraceInfo, bool) {
	if ctx == nil {
		return TraceInfo{}, false
	}
	info, ok := ctx.Value(traceContextKey).(TraceInfo)
	return info, ok
}

// TraceID extracts the trace identifier from context when present.
func TraceID(ctx context.Context) string {
	info, _ := Trace(ctx)
	return info.TraceID
}

type actorSlot struct {
	mu sync.RWMutex
	id string
}

// WithActorSlot reserves a slot for the authenticated user id. Middleware that runs before
// authentication installs it so it can read the actor after the handler chain returns.
func WithActorSlot(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Value(actorContextKey).(*actorSlot); ok {
		return ctx
	}
	return context.WithValue(ctx, actorContextKey, &actorSlot{})
}

// SetActor records the authenticated user id. Without a slot it does nothing.
func SetActor(ctx context.Context, id string) {
	if ctx == nil {
		return
	}
	if slot, ok := ctx.Value(actorContextKey).(*actorSlot); ok {
		slot.mu.Lock()
		slot.id = id
		slot.mu.Unlock()
	}
}

// Actor returns the authenticated user id recorded for the request, if any.
func Actor(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	slot, ok := ctx.Value(actorContextKey).(*actorSlot)
	if !ok {
		return ""
	}
	slot.mu.RLock()
	defer slot.mu.RUnlock()
	return slot.id
}
