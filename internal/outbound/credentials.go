package outbound

import "context"

// Credentials is the token source for one client's outgoing calls.
type Credentials interface {
	Token(ctx context.Context) (string, error)
	ClearToken(ctx context.Context) error
}

type credentialsKey struct{}

func WithCredentials(ctx context.Context, c Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey{}, c)
}

func CredentialsFrom(ctx context.Context) (Credentials, bool) {
	c, ok := ctx.Value(credentialsKey{}).(Credentials)
	return c, ok && c != nil
}
