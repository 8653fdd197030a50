// Package federated implements the popup-flow authenticator around a
// federated identity provider. The provider's state stream is the only
// source of truth; this package caches the last reported identity,
// republishes changes to subscribers in registration order, and persists
// a device-local snapshot of the signed-in identity.
package federated

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/atlasworlds/authkit/internal/auth/autherr"
	"github.com/atlasworlds/authkit/internal/auth/models"
	"github.com/atlasworlds/authkit/internal/logger"
	"github.com/atlasworlds/authkit/internal/session"
)

// Authenticator wraps a federated Provider with listener fan-out and
// session-store persistence. Construct one instance at the composition
// root and hand references to consumers.
type Authenticator struct {
	provider Provider
	store    session.Store

	// dispatchMu serializes provider notifications with registration, so
	// a subscriber sees exactly one state on registration, either the
	// synchronous replay or the next dispatched change, never both out
	// of order and never neither. Callbacks run with only dispatchMu
	// held; mu is free so a callback may call unsubscribe.
	dispatchMu sync.Mutex

	// mu guards current, seen, listeners and waiters.
	mu        sync.Mutex
	current   *models.Identity
	seen      bool
	listeners listenerRegistry
	waiters   []chan *models.Identity

	detach func()
}

// NewAuthenticator creates the authenticator and attaches it to the
// provider's state stream for the life of the process.
func NewAuthenticator(provider Provider, store session.Store) *Authenticator {
	a := &Authenticator{
		provider: provider,
		store:    store,
	}
	a.detach = provider.Subscribe(a.onProviderState)
	return a
}

// onProviderState is the single entry point for provider notifications.
// The cached state and the listener snapshot advance together under the
// state lock; the callbacks then run outside it, in registration order,
// so no listener observes a state the registry has not settled on and a
// listener may detach itself mid-notification.
func (a *Authenticator) onProviderState(identity *models.Identity) {
	a.dispatchMu.Lock()
	defer a.dispatchMu.Unlock()

	a.mu.Lock()
	a.current = identity
	a.seen = true

	for _, waiter := range a.waiters {
		waiter <- identity
	}
	a.waiters = nil

	fns := a.listeners.snapshot()
	a.mu.Unlock()

	for _, fn := range fns {
		fn(identity)
	}
}

// SignInWithPopup runs the interactive exchange, eagerly fetches one ID
// token and persists both under the device-local keys. Failures come
// back as normalized errors; nothing escapes the call boundary raw.
func (a *Authenticator) SignInWithPopup(ctx context.Context) (*models.Identity, string, error) {
	identity, err := a.provider.SignInInteractive(ctx)
	if err != nil {
		logger.Error("interactive sign in failed", zap.Error(err))
		return nil, "", autherr.Wrap(autherr.KindPopupFailed, err.Error(), err)
	}

	idToken, err := a.provider.IDToken(ctx)
	if err != nil {
		logger.Error("id token fetch after sign in failed", zap.Error(err))
		return nil, "", autherr.Wrap(autherr.KindTokenFetchFailed, err.Error(), err)
	}

	if raw, err := json.Marshal(identity); err == nil {
		if err := a.store.Put(ctx, session.KeyFederatedIdentity, raw); err != nil {
			logger.Warn("failed to persist identity snapshot", zap.Error(err))
		}
	}
	if err := a.store.Put(ctx, session.KeyFederatedIDToken, []byte(idToken)); err != nil {
		logger.Warn("failed to persist id token", zap.Error(err))
	}

	return identity, idToken, nil
}

// SignOut ends the provider session. The two persisted keys are cleared
// whatever the remote outcome; cleanup is unconditional.
func (a *Authenticator) SignOut(ctx context.Context) error {
	signOutErr := a.provider.SignOut(ctx)

	if err := a.store.Delete(ctx, session.KeyFederatedIdentity); err != nil {
		logger.Warn("failed to clear identity snapshot", zap.Error(err))
	}
	if err := a.store.Delete(ctx, session.KeyFederatedIDToken); err != nil {
		logger.Warn("failed to clear persisted id token", zap.Error(err))
	}

	if signOutErr != nil {
		logger.Error("provider sign out failed", zap.Error(signOutErr))
		return autherr.Wrap(autherr.KindSignOutFailed, signOutErr.Error(), signOutErr)
	}
	return nil
}

// GetCurrentUser resolves the signed-in identity. If the provider has
// already reported a state the cached value is returned immediately,
// even when that state is signed-out. Before the first report it waits
// one-shot for the stream, so "not yet known" is never conflated with
// "signed out".
func (a *Authenticator) GetCurrentUser(ctx context.Context) (*models.Identity, error) {
	a.mu.Lock()
	if a.seen {
		identity := a.current
		a.mu.Unlock()
		return identity, nil
	}

	waiter := make(chan *models.Identity, 1)
	a.waiters = append(a.waiters, waiter)
	a.mu.Unlock()

	select {
	case identity := <-waiter:
		return identity, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// GetIDToken re-derives a fresh ID token from the current identity.
// Provider tokens are short-lived and refreshed inside the provider, so
// the persisted copy is never read back here. No identity and a failed
// fetch both yield ("", nil); the failure is logged, the caller only
// sees the signed-out shape.
func (a *Authenticator) GetIDToken(ctx context.Context) (string, error) {
	identity, err := a.GetCurrentUser(ctx)
	if err != nil {
		return "", err
	}
	if identity == nil {
		return "", nil
	}

	idToken, err := a.provider.IDToken(ctx)
	if err != nil {
		logger.Warn("id token fetch failed", zap.Error(err))
		return "", nil
	}
	return idToken, nil
}

// IsAuthenticated is a pure read of the cached identity. It may lag the
// provider's true state by at most one notification.
func (a *Authenticator) IsAuthenticated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current != nil
}

// BearerToken implements auth.SessionProvider.
func (a *Authenticator) BearerToken(ctx context.Context) (string, error) {
	return a.GetIDToken(ctx)
}

// OnAuthStateChanged registers the callback, replays the current cached
// identity to it synchronously, and returns a detach function. Detach
// removes exactly this registration, is safe to call from inside a
// notification, and registering the same callback value twice yields two
// independent subscriptions.
func (a *Authenticator) OnAuthStateChanged(fn func(*models.Identity)) (unsubscribe func()) {
	a.dispatchMu.Lock()
	defer a.dispatchMu.Unlock()

	a.mu.Lock()
	handle := a.listeners.add(fn)
	current := a.current
	a.mu.Unlock()

	fn(current)

	return func() {
		a.mu.Lock()
		a.listeners.remove(handle)
		a.mu.Unlock()
	}
}

// Close detaches from the provider's state stream.
func (a *Authenticator) Close() {
	if a.detach != nil {
		a.detach()
	}
}
