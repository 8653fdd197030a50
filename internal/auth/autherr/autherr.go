// Package autherr normalizes provider failures from both identity
// backends into a single typed taxonomy. Raw provider errors never cross
// an authenticator boundary.
package autherr

import "fmt"

// Kind classifies a normalized authentication failure.
type Kind string

const (
	// Password-grant pool failures.
	KindInvalidCredentials Kind = "invalid_credentials"
	KindUserNotFound       Kind = "user_not_found"
	KindUserNotConfirmed   Kind = "user_not_confirmed"
	KindRateLimited        Kind = "rate_limited"
	KindInvalidParameters  Kind = "invalid_parameters"
	KindUsernameTaken      Kind = "username_taken"
	KindUnknown            Kind = "unknown"

	// Federated provider failures.
	KindPopupFailed      Kind = "popup_failed"
	KindTokenFetchFailed Kind = "token_fetch_failed"
	KindSignOutFailed    Kind = "sign_out_failed"
)

// Error is a normalized authentication failure. Message carries the
// provider's human-readable description when one was available.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is lets errors.Is match on Kind alone, so callers can compare against
// a bare New(Kind, "") sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// New builds a normalized error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a normalized error that retains the underlying cause for
// errors.Unwrap chains while presenting the normalized kind.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// poolCodes maps identity-pool error codes to taxonomy kinds. Codes are
// the provider's exception names as they appear on the wire.
var poolCodes = map[string]Kind{
	"NotAuthorizedException":    KindInvalidCredentials,
	"UserNotFoundException":     KindUserNotFound,
	"UserNotConfirmedException": KindUserNotConfirmed,
	"TooManyRequestsException":  KindRateLimited,
	"InvalidParameterException": KindInvalidParameters,
	"UsernameExistsException":   KindUsernameTaken,
}

// ClassifyPool maps a pool error code to exactly one taxonomy kind.
// Unmapped codes fall into KindUnknown carrying the original message.
func ClassifyPool(code, message string, cause error) *Error {
	if kind, ok := poolCodes[code]; ok {
		return Wrap(kind, message, cause)
	}
	if message == "" {
		message = code
	}
	return Wrap(KindUnknown, message, cause)
}
