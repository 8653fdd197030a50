package models

import "time"

// AuthTokens is the token set issued by the password-grant identity pool.
// ExpiresAt is absolute; a set with ExpiresAt in the past is dead and must
// never be sent on the wire.
type AuthTokens struct {
	AccessToken  string    `json:"access_token"`
	IDToken      string    `json:"id_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Valid reports whether the token set is usable at the given instant.
func (t *AuthTokens) Valid(now time.Time) bool {
	if t == nil {
		return false
	}
	return t.AccessToken != "" && now.Before(t.ExpiresAt)
}

// Identity is the persisted snapshot of a federated user. The provider's
// own session remains the source of truth; this is only what gets written
// to the session store and shown to callers.
type Identity struct {
	UID         string `json:"uid"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

// UserInfo is the profile projection for a password-grant user. It is
// recomputed from the provider on demand and never persisted.
type UserInfo struct {
	Username   string
	Email      string
	Attributes map[string]string
}
