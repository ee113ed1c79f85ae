package shared

import "context"

type actorContextKey struct{}

type schoolContextKey struct{}

// ContextWithActor stores the resolved actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor placed by the identity middleware.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}

// ContextWithSchoolID stores the school id bound by the tenancy guard. The
// guard returns the id as a value and the middleware stores it here; nothing
// downstream mutates it.
func ContextWithSchoolID(ctx context.Context, schoolID int64) context.Context {
	return context.WithValue(ctx, schoolContextKey{}, schoolID)
}

// SchoolIDFromContext extracts the bound school id. ok is false when the
// request never passed the tenancy guard; a zero id with ok=true means a
// super-admin operating in global scope.
func SchoolIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(schoolContextKey{}).(int64)
	return id, ok
}
