package federated

import (
	"go.uber.org/fx"

	"github.com/atlasworlds/authkit/internal/auth"
)

// Module provides the federated authenticator dependencies. The
// authenticator doubles as the session provider the data-access layer
// resolves bearer credentials from.
var Module = fx.Module("federated",
	fx.Provide(
		NewAuthenticator,
		func(a *Authenticator) auth.SessionProvider { return a },
	),
)
