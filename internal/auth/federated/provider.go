package federated

import (
	"context"

	"github.com/atlasworlds/authkit/internal/auth/models"
)

// Provider is the federated identity provider surface. Its state stream
// is the sole source of truth for who is signed in; the authenticator
// never claims a state the stream has not reported.
type Provider interface {
	// SignInInteractive runs the provider's interactive exchange to
	// completion or rejection. There is no cancellation mid-flight beyond
	// the context the provider itself honors.
	SignInInteractive(ctx context.Context) (*models.Identity, error)

	// IDToken fetches a short-lived ID token for the current identity.
	// Providers cache and silently refresh these internally, so callers
	// re-derive on every use instead of persisting the value long term.
	IDToken(ctx context.Context) (string, error)

	// SignOut ends the provider-side session.
	SignOut(ctx context.Context) error

	// Subscribe registers fn on the provider's state stream and returns a
	// detach function. A nil identity means signed out. The stream fires
	// once with the current state as soon as it is known.
	Subscribe(fn func(*models.Identity)) (unsubscribe func())
}
