// Package requestcontext provides HTTP-independent accessors for
// request-scoped values.
//
// Middleware sets these values; services read them. Keeping the package free
// of net/http lets domain code consume the actor and clock without pulling in
// transport concerns, and lets tests inject both directly.
package requestcontext

import (
	"context"
	"time"

	"findmyid/pkg/domain"
)

// Actor is the authenticated caller of the current request. The verification
// workflow authorizes against Actor.Role capabilities, independent of any
// outer HTTP auth layer.
type Actor struct {
	UserID domain.UserID
	Role   domain.Role
}

// Can reports whether the actor holds the capability. The zero Actor holds
// none.
func (a Actor) Can(cap domain.Capability) bool {
	return a.Role.Has(cap)
}

type (
	actorKey       struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// WithActor injects the authenticated actor into the context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom retrieves the authenticated actor. The second return is false
// when no actor was set (unauthenticated request or missing middleware).
func ActorFrom(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}

// WithRequestID injects the correlation ID assigned by middleware.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID retrieves the correlation ID, or "" when unset.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithTime pins the request clock. Tests use this to make transition
// timestamps deterministic.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

// Now returns the pinned request time, falling back to the wall clock.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}
