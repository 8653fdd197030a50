// Package passwordgrant implements the password-grant authenticator: it
// signs credentials, exchanges them for a token set, tracks expiry and
// normalizes provider failures. It is the sole writer of the pool token
// record in the session store.
package passwordgrant

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/atlasworlds/authkit/internal/auth/autherr"
	"github.com/atlasworlds/authkit/internal/auth/models"
	"github.com/atlasworlds/authkit/internal/config"
	"github.com/atlasworlds/authkit/internal/logger"
	"github.com/atlasworlds/authkit/internal/session"
)

// Authenticator drives the password-grant exchange against an identity
// pool and owns the persisted token set.
type Authenticator struct {
	pool  Pool
	store session.Store
	cfg   *config.PoolConfig
	now   func() time.Time
}

// NewAuthenticator creates a password-grant authenticator.
func NewAuthenticator(cfg *config.PoolConfig, pool Pool, store session.Store) *Authenticator {
	return newAuthenticator(cfg, pool, store, time.Now)
}

func newAuthenticator(cfg *config.PoolConfig, pool Pool, store session.Store, now func() time.Time) *Authenticator {
	return &Authenticator{
		pool:  pool,
		store: store,
		cfg:   cfg,
		now:   now,
	}
}

// SignIn exchanges the credentials for a token set, persists it and
// returns it. Provider failures come back normalized, never raw.
func (a *Authenticator) SignIn(ctx context.Context, username, password string) (*models.AuthTokens, error) {
	result, err := a.pool.InitiateAuth(ctx, AuthRequest{
		Username:   username,
		Password:   password,
		SecretHash: SecretHash(username, a.cfg.ClientID, a.cfg.ClientSecret),
	})
	if err != nil {
		logger.Error("sign in failed", zap.String("username", username), zap.Error(err))
		return nil, normalize(err)
	}

	tokens := &models.AuthTokens{
		AccessToken:  result.AccessToken,
		IDToken:      result.IDToken,
		RefreshToken: result.RefreshToken,
		ExpiresAt:    a.now().Add(time.Duration(result.ExpiresIn) * time.Second),
	}

	if err := a.storeTokens(ctx, tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

// SignUp registers a new user. Registration alone never yields a
// session, so nothing is persisted here.
func (a *Authenticator) SignUp(ctx context.Context, username, password, email string, attributes map[string]string) error {
	attrs := make([]Attribute, 0, len(attributes)+1)
	attrs = append(attrs, Attribute{Name: "email", Value: email})

	names := make([]string, 0, len(attributes))
	for name := range attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		attrs = append(attrs, Attribute{Name: name, Value: attributes[name]})
	}

	err := a.pool.SignUp(ctx, SignUpRequest{
		Username:   username,
		Password:   password,
		SecretHash: SecretHash(username, a.cfg.ClientID, a.cfg.ClientSecret),
		Attributes: attrs,
	})
	if err != nil {
		logger.Error("sign up failed", zap.String("username", username), zap.Error(err))
		return normalize(err)
	}
	return nil
}

// ConfirmSignUp finalizes a pending registration with the verification code.
func (a *Authenticator) ConfirmSignUp(ctx context.Context, username, code string) error {
	err := a.pool.ConfirmSignUp(ctx, ConfirmRequest{
		Username:   username,
		Code:       code,
		SecretHash: SecretHash(username, a.cfg.ClientID, a.cfg.ClientSecret),
	})
	if err != nil {
		logger.Error("confirm sign up failed", zap.String("username", username), zap.Error(err))
		return normalize(err)
	}
	return nil
}

// GetCurrentUser fetches the profile for the stored session. It returns
// (nil, nil) without touching the network when no unexpired token set is
// stored. A provider failure on the profile fetch poisons the session:
// the stored tokens are cleared and the caller sees signed-out.
func (a *Authenticator) GetCurrentUser(ctx context.Context) (*models.UserInfo, error) {
	tokens := a.loadTokens(ctx)
	if !tokens.Valid(a.now()) {
		return nil, nil
	}

	user, err := a.pool.GetUser(ctx, tokens.AccessToken)
	if err != nil {
		logger.Warn("profile fetch failed, clearing session", zap.Error(err))
		a.clearTokens(ctx)
		return nil, nil
	}
	return user, nil
}

// SignOut invalidates the session globally at the provider, best effort.
// Local cleanup is unconditional and happens last.
func (a *Authenticator) SignOut(ctx context.Context) error {
	if tokens := a.loadTokens(ctx); tokens != nil && tokens.AccessToken != "" {
		if err := a.pool.GlobalSignOut(ctx, tokens.AccessToken); err != nil {
			logger.Warn("remote sign out failed", zap.Error(err))
		}
	}
	return a.clearTokens(ctx)
}

// IsAuthenticated reports whether an unexpired token set is stored. It
// is a pure local check with no side effects.
func (a *Authenticator) IsAuthenticated() bool {
	return a.loadTokens(context.Background()).Valid(a.now())
}

// GetValidAccessToken returns the stored access token if it has not
// expired. An expired set is cleared and "" is returned: refresh-token
// exchange is not implemented, so expiry currently means logout.
func (a *Authenticator) GetValidAccessToken(ctx context.Context) (string, error) {
	tokens := a.loadTokens(ctx)
	if tokens == nil {
		return "", nil
	}

	if tokens.Valid(a.now()) {
		return tokens.AccessToken, nil
	}

	// TODO: exchange the stored refresh token instead of forcing logout.
	logger.Info("access token expired, clearing session")
	if err := a.clearTokens(ctx); err != nil {
		return "", err
	}
	return "", nil
}

// BearerToken implements auth.SessionProvider.
func (a *Authenticator) BearerToken(ctx context.Context) (string, error) {
	return a.GetValidAccessToken(ctx)
}

func (a *Authenticator) storeTokens(ctx context.Context, tokens *models.AuthTokens) error {
	raw, err := json.Marshal(tokens)
	if err != nil {
		return err
	}
	return a.store.Put(ctx, session.KeyPoolTokens, raw)
}

// loadTokens reads the persisted token set. Absent or malformed records
// read as "no session".
func (a *Authenticator) loadTokens(ctx context.Context) *models.AuthTokens {
	raw, err := a.store.Get(ctx, session.KeyPoolTokens)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			logger.Warn("failed to read stored tokens", zap.Error(err))
		}
		return nil
	}

	var tokens models.AuthTokens
	if err := json.Unmarshal(raw, &tokens); err != nil {
		logger.Warn("malformed stored tokens, ignoring", zap.Error(err))
		return nil
	}
	return &tokens
}

func (a *Authenticator) clearTokens(ctx context.Context) error {
	return a.store.Delete(ctx, session.KeyPoolTokens)
}

// normalize maps a pool failure to the error taxonomy. Coded provider
// errors map to exactly one kind; everything else is Unknown with the
// original message preserved.
func normalize(err error) error {
	var poolErr *PoolError
	if errors.As(err, &poolErr) {
		return autherr.ClassifyPool(poolErr.Code, poolErr.Message, err)
	}
	return autherr.Wrap(autherr.KindUnknown, err.Error(), err)
}
