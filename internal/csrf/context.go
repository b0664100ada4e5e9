package csrf

import "context"

type contextKey struct{}

// NewContext returns a copy of ctx carrying the encoded token issued for
// the request.
func NewContext(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, contextKey{}, token)
}

// TokenFromContext returns the encoded token issued for the request, or
// "" if none was.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(contextKey{}).(string)
	return token
}
