package requester

import (
	"context"

	"go.uber.org/zap"

	"github.com/atlasworlds/authkit/internal/auth"
	"github.com/atlasworlds/authkit/internal/logger"
)

// HeaderSource produces the headers for outbound data-access requests.
type HeaderSource interface {
	AuthHeaders(ctx context.Context) map[string]string
}

// SessionHeaderSource resolves the bearer credential from a session
// provider. An unauthenticated outbound call is a valid outcome: when no
// token resolves, the Authorization entry is simply omitted.
type SessionHeaderSource struct {
	session auth.SessionProvider
}

// NewSessionHeaderSource creates a header source backed by the given
// session provider.
func NewSessionHeaderSource(session auth.SessionProvider) *SessionHeaderSource {
	return &SessionHeaderSource{session: session}
}

// AuthHeaders always returns a usable header map. Token resolution
// failures are logged and swallowed; a malformed Authorization header is
// never sent.
func (s *SessionHeaderSource) AuthHeaders(ctx context.Context) map[string]string {
	headers := map[string]string{
		"Content-Type": auth.ContentTypeJSON,
	}

	token, err := s.session.BearerToken(ctx)
	if err != nil {
		logger.Warn("failed to resolve bearer token", zap.Error(err))
		return headers
	}
	if token != "" {
		headers[auth.AuthHeaderName] = auth.AuthHeaderPrefix + token
	}
	return headers
}
