package identity

import (
	"context"
	"strings"
)

// Role is the dashboard role reported by the identity provider.
type Role string

const (
	RoleDispatcher Role = "Dispatcher"
	RoleCustomer   Role = "Customer"
	RoleCarrier    Role = "Carrier"
	RoleDriver     Role = "Driver"
)

// ParseRole accepts any casing and rejects unknown roles.
func ParseRole(raw string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "dispatcher":
		return RoleDispatcher, true
	case "customer":
		return RoleCustomer, true
	case "carrier":
		return RoleCarrier, true
	case "driver":
		return RoleDriver, true
	default:
		return "", false
	}
}

// Subject is the casbin subject for the role.
func (r Role) Subject() string {
	return "role:" + strings.ToLower(string(r))
}

// Actor is the authenticated caller.
type Actor struct {
	UserID string
	Role   Role
}

// ActorContextKey is the request context key for the authenticated actor.
type ActorContextKey struct{}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, ActorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(ActorContextKey{}).(Actor)
	if !ok || strings.TrimSpace(actor.UserID) == "" {
		return Actor{}, false
	}
	return actor, true
}
