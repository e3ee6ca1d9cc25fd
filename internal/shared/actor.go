package shared

import "context"

// Role is an opaque capability flag supplied by the caller. The core never
// resolves roles itself.
type Role string

const (
	RoleOwner Role = "owner"
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

// ActorContext carries the request-scoped actor identity into every engine
// call. There is no process-wide session state.
type ActorContext struct {
	Role           Role
	WarehouseScope string
}

// CanForceChange reports whether the actor may apply force-change stock
// mutations.
func (a ActorContext) CanForceChange() bool {
	return a.Role == RoleOwner
}

// CanVoid reports whether the actor may void invoices.
func (a ActorContext) CanVoid() bool {
	return a.Role == RoleOwner || a.Role == RoleAdmin
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor ActorContext) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context. Missing actors default to
// staff with no warehouse scope.
func ActorFromContext(ctx context.Context) ActorContext {
	actor, ok := ctx.Value(actorContextKey{}).(ActorContext)
	if !ok {
		return ActorContext{Role: RoleStaff}
	}
	return actor
}
