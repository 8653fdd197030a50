package passwordgrant

import "go.uber.org/fx"

// Module provides the password-grant authenticator dependencies
var Module = fx.Module("passwordgrant",
	fx.Provide(
		NewAuthenticator,
	),
)
