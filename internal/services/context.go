package services

import "context"

type contextKey string

const (
	cycleIDKey    contextKey = "cycle_id"
	subscriberKey contextKey = "subscriber"
	creatorKey    contextKey = "creator"
	requestIDKey  contextKey = "request_id"
)

// WithCycleID annotates context with the polling cycle identifier.
func WithCycleID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, cycleIDKey, id)
}

// CycleIDFromContext extracts the polling cycle identifier if present.
func CycleIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(cycleIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithSubscriber annotates context with the subscriber (delivery channel) id.
func WithSubscriber(ctx context.Context, subscriber string) context.Context {
	if subscriber == "" {
		return ctx
	}
	return context.WithValue(ctx, subscriberKey, subscriber)
}

// SubscriberFromContext returns the subscriber id if present.
func SubscriberFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(subscriberKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithCreator annotates context with the watched creator id.
func WithCreator(ctx context.Context, creator int64) context.Context {
	if creator == 0 {
		return ctx
	}
	return context.WithValue(ctx, creatorKey, creator)
}

// CreatorFromContext extracts the creator id if present.
func CreatorFromContext(ctx context.Context) (int64, bool) {
	switch val := ctx.Value(creatorKey).(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
