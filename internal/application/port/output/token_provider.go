package output

import "context"

// TokenProvider supplies a non-expired bearer token on demand, transparently
// refreshing via the stored refresh token. Credential storage itself lives
// behind this port; the core never touches it.
type TokenProvider interface {
	// ValidAccessToken returns a token that is valid right now,
	// or ErrAuthExpired when no valid token can be produced
	ValidAccessToken(ctx context.Context) (string, error)
}
