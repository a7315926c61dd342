package auth

import "context"

// SessionStore holds live admin sessions keyed by token. Implementations
// expire sessions after the configured TTL.
type SessionStore interface {
	Save(ctx context.Context, session *Session) error
	// ByToken returns the session, or sentinel.ErrNotFound when the token is
	// unknown or expired.
	ByToken(ctx context.Context, token string) (*Session, error)
	Revoke(ctx context.Context, token string) error
}
