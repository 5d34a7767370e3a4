package shared

import "context"

// ctxKey scopes context values set by this package.
type ctxKey int

const sessionKey ctxKey = iota

// ContextWithSession attaches the request session.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

// SessionFromContext returns the request session, or nil when the session
// middleware has not run.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionKey).(*Session)
	return sess
}
