package providers

import (
	"go.uber.org/fx"

	"github.com/atlasworlds/authkit/internal/auth/federated"
	"github.com/atlasworlds/authkit/internal/auth/passwordgrant"
)

// Module provides the concrete identity-backend clients
var Module = fx.Module("providers",
	fx.Provide(
		fx.Annotate(
			NewHTTPPool,
			fx.As(new(passwordgrant.Pool)),
		),
		fx.Annotate(
			NewGoogleProvider,
			fx.As(new(federated.Provider)),
		),
	),
)
