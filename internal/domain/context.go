package domain

import "context"

// ContextKey is a type for context keys to avoid magic strings
type ContextKey string

const (
	// ContextKeySubject is the key for the authenticated subject (username) in the context
	ContextKeySubject ContextKey = "sub"
	// ContextKeyRoles is the key for the subject roles in the context
	ContextKeyRoles ContextKey = "roles"
	// ContextKeyUsername is the key for the session user in the context
	ContextKeyUsername ContextKey = "username"
)

// WithSubject adds the subject to the context
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, ContextKeySubject, subject)
}

// WithRoles adds the subject roles to the context
func WithRoles(ctx context.Context, roles []string) context.Context {
	return context.WithValue(ctx, ContextKeyRoles, roles)
}

// WithUsername adds the session user to the context
func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, ContextKeyUsername, username)
}

// GetSubject retrieves the subject from the context
func GetSubject(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(ContextKeySubject).(string)
	return subject, ok
}

// GetRoles retrieves the subject roles from the context
func GetRoles(ctx context.Context) ([]string, bool) {
	roles, ok := ctx.Value(ContextKeyRoles).([]string)
	return roles, ok
}

// GetUsername retrieves the session user from the context
func GetUsername(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(ContextKeyUsername).(string)
	return username, ok && username != ""
}
