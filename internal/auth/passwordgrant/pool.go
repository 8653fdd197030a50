package passwordgrant

import (
	"context"
	"fmt"

	"github.com/atlasworlds/authkit/internal/auth/models"
)

// Attribute is a single name/value pair attached to a registration.
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// AuthRequest is a password-grant exchange request. SecretHash is empty
// when no client secret is configured and must then be omitted from the
// wire entirely.
type AuthRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	SecretHash string `json:"secretHash,omitempty"`
}

// AuthResult is the raw token issuance response. ExpiresIn is the
// provider TTL in seconds, converted to an absolute deadline at receipt.
type AuthResult struct {
	AccessToken  string `json:"accessToken"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// SignUpRequest registers a new user. Email rides along as the first
// attribute, ahead of any caller-supplied ones.
type SignUpRequest struct {
	Username   string      `json:"username"`
	Password   string      `json:"password"`
	SecretHash string      `json:"secretHash,omitempty"`
	Attributes []Attribute `json:"attributes"`
}

// ConfirmRequest finalizes a pending registration with a verification code.
type ConfirmRequest struct {
	Username   string `json:"username"`
	Code       string `json:"code"`
	SecretHash string `json:"secretHash,omitempty"`
}

// Pool is the identity-pool client surface this authenticator drives.
// Implementations translate these calls onto the provider's transport;
// failures carry a *PoolError when the provider reported a coded error.
type Pool interface {
	InitiateAuth(ctx context.Context, req AuthRequest) (*AuthResult, error)
	SignUp(ctx context.Context, req SignUpRequest) error
	ConfirmSignUp(ctx context.Context, req ConfirmRequest) error
	GetUser(ctx context.Context, accessToken string) (*models.UserInfo, error)
	GlobalSignOut(ctx context.Context, accessToken string) error
}

// PoolError is a coded failure reported by the identity pool, prior to
// normalization into the autherr taxonomy.
type PoolError struct {
	Code    string
	Message string
}

func (e *PoolError) Error() string {
	return fmt.Sprintf("pool error %s: %s", e.Code, e.Message)
}
