// Package auth defines the contract shared by the two session backends.
// The password-grant and federated authenticators are capability
// equivalent but keep independent token formats; call sites pick one,
// nothing reconciles the two.
package auth

import "context"

const (
	// TokenType for Bearer authentication
	TokenType = "Bearer"

	// AuthHeaderName is the name of the Authorization header
	AuthHeaderName = "Authorization"

	// AuthHeaderPrefix is the prefix for the Authorization header value
	AuthHeaderPrefix = "Bearer "

	// ContentTypeJSON is sent on every outbound data-access request
	ContentTypeJSON = "application/json"
)

// SessionProvider answers "do I have a valid bearer credential right
// now". An empty token with a nil error means unauthenticated, which is
// an expected state, not a failure.
type SessionProvider interface {
	// IsAuthenticated is a pure local read; it never touches the network.
	IsAuthenticated() bool

	// BearerToken resolves the current bearer credential. Absence and
	// expiry yield ("", nil).
	BearerToken(ctx context.Context) (string, error)
}
