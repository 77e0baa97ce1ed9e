package shared

import "context"

type profileContextKey struct{}

// ContextWithProfile stores the browser profile in context.
func ContextWithProfile(ctx context.Context, p *Profile) context.Context {
	return context.WithValue(ctx, profileContextKey{}, p)
}

// ProfileFromContext extracts the browser profile from context.
func ProfileFromContext(ctx context.Context) *Profile {
	p, _ := ctx.Value(profileContextKey{}).(*Profile)
	return p
}
