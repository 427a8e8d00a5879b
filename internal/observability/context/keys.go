package context

import "context"

type contextKey string

const (
	requestIDKey contextKey = "observability_request_id"
	actorRoleKey contextKey = "observability_actor_role"
	actorIDKey   contextKey = "observability_actor_id"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

// WithActor records the caller for log correlation only; authorization reads identity.Actor.
func WithActor(ctx context.Context, role, userID string) context.Context {
	if ctx == nil {
		return ctx
	}
	if role != "" {
		ctx = context.WithValue(ctx, actorRoleKey, role)
	}
	if userID != "" {
		ctx = context.WithValue(ctx, actorIDKey, userID)
	}
	return ctx
}

func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	role, _ := ctx.Value(actorRoleKey).(string)
	userID, _ := ctx.Value(actorIDKey).(string)
	return role, userID
}
