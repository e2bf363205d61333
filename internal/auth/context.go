package auth

import "context"

type identityKey struct{}

// identity is the authenticated caller attached to a request.
type identity struct {
	role    Role
	subject string
}

// WithIdentity attaches the caller's role and JWT subject to ctx.
func WithIdentity(ctx context.Context, role Role, subject string) context.Context {
	return context.WithValue(ctx, identityKey{}, identity{role: role, subject: subject})
}

func identityFrom(ctx context.Context) identity {
	if ctx == nil {
		return identity{}
	}
	id, _ := ctx.Value(identityKey{}).(identity)
	return id
}

// RoleFromContext returns the caller's role, or "" for anonymous requests.
func RoleFromContext(ctx context.Context) Role {
	return identityFrom(ctx).role
}

// SubjectFromContext returns the caller's JWT subject.
func SubjectFromContext(ctx context.Context) string {
	return identityFrom(ctx).subject
}

// ActorFromContext returns the subject, or fallback when the request is anonymous.
func ActorFromContext(ctx context.Context, fallback string) string {
	if subject := SubjectFromContext(ctx); subject != "" {
		return subject
	}
	return fallback
}
