package federated

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasworlds/authkit/internal/auth/autherr"
	"github.com/atlasworlds/authkit/internal/auth/models"
	"github.com/atlasworlds/authkit/internal/session"
)

// fakeProvider is a scriptable provider with a manually driven state
// stream, mirroring how the real provider replays the current state to
// new subscribers once it is known.
type fakeProvider struct {
	mu      sync.Mutex
	subs    map[int]func(*models.Identity)
	nextSub int
	current *models.Identity
	known   bool

	signInIdentity *models.Identity
	signInErr      error

	idToken      string
	idTokenErr   error
	idTokenCalls int

	signOutErr   error
	signOutCalls int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{subs: map[int]func(*models.Identity){}}
}

func (f *fakeProvider) Subscribe(fn func(*models.Identity)) func() {
	f.mu.Lock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = fn
	known := f.known
	current := f.current
	f.mu.Unlock()

	if known {
		fn(current)
	}
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}
}

// emit reports a state transition on the stream.
func (f *fakeProvider) emit(identity *models.Identity) {
	f.mu.Lock()
	f.current = identity
	f.known = true
	fns := make([]func(*models.Identity), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(identity)
	}
}

func (f *fakeProvider) SignInInteractive(_ context.Context) (*models.Identity, error) {
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	f.emit(f.signInIdentity)
	return f.signInIdentity, nil
}

func (f *fakeProvider) IDToken(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.idTokenCalls++
	if f.idTokenErr != nil {
		return "", f.idTokenErr
	}
	return f.idToken, nil
}

func (f *fakeProvider) SignOut(_ context.Context) error {
	f.signOutCalls++
	if f.signOutErr != nil {
		return f.signOutErr
	}
	f.emit(nil)
	return nil
}

func mintIDToken(t *testing.T, uid string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": uid,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("test-signing-key"))
	require.NoError(t, err)
	return signed
}

func signedOutProvider() *fakeProvider {
	p := newFakeProvider()
	p.known = true
	return p
}

func TestListenerReplayAndOrdering(t *testing.T) {
	provider := signedOutProvider()
	a := NewAuthenticator(provider, session.NewMemoryStore())
	defer a.Close()

	var events []string
	record := func(name string) func(*models.Identity) {
		return func(identity *models.Identity) {
			uid := "<nil>"
			if identity != nil {
				uid = identity.UID
			}
			events = append(events, fmt.Sprintf("%s:%s", name, uid))
		}
	}

	unsubA := a.OnAuthStateChanged(record("A"))
	defer unsubA()
	assert.Equal(t, []string{"A:<nil>"}, events, "registration replays the current state exactly once")

	alice := &models.Identity{UID: "alice"}
	provider.emit(alice)

	unsubB := a.OnAuthStateChanged(record("B"))
	defer unsubB()
	assert.Equal(t, []string{"A:<nil>", "A:alice", "B:alice"}, events)

	bob := &models.Identity{UID: "bob"}
	provider.emit(bob)

	// A registered first, so A hears each transition before B.
	want := []string{"A:<nil>", "A:alice", "B:alice", "A:bob", "B:bob"}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("listener event order mismatch (-want +got):\n%s", diff)
	}
}

func TestUnsubscribe(t *testing.T) {
	provider := signedOutProvider()
	a := NewAuthenticator(provider, session.NewMemoryStore())
	defer a.Close()

	var aEvents, bEvents int
	unsubA := a.OnAuthStateChanged(func(*models.Identity) { aEvents++ })
	unsubB := a.OnAuthStateChanged(func(*models.Identity) { bEvents++ })
	defer unsubB()

	unsubA()
	provider.emit(&models.Identity{UID: "alice"})

	assert.Equal(t, 1, aEvents, "only the registration replay")
	assert.Equal(t, 2, bEvents)
}

func TestUnsubscribeInsideCallback(t *testing.T) {
	provider := signedOutProvider()
	a := NewAuthenticator(provider, session.NewMemoryStore())
	defer a.Close()

	// A one-shot listener detaches itself from inside its own
	// notification; this must return, not wedge the authenticator.
	calls := 0
	var unsub func()
	unsub = a.OnAuthStateChanged(func(*models.Identity) {
		calls++
		if calls == 2 {
			unsub()
		}
	})

	done := make(chan struct{})
	go func() {
		provider.emit(&models.Identity{UID: "alice"})
		provider.emit(&models.Identity{UID: "bob"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("unsubscribe from inside a notification did not return")
	}
	assert.Equal(t, 2, calls, "replay plus the notification that detached")

	// Later calls still go through; nothing holds the lock.
	assert.True(t, a.IsAuthenticated())
	identity, err := a.GetCurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bob", identity.UID)
}

func TestUnsubscribeDuplicateCallback(t *testing.T) {
	provider := signedOutProvider()
	a := NewAuthenticator(provider, session.NewMemoryStore())
	defer a.Close()

	calls := 0
	fn := func(*models.Identity) { calls++ }

	unsubFirst := a.OnAuthStateChanged(fn)
	unsubSecond := a.OnAuthStateChanged(fn)
	defer unsubSecond()
	calls = 0

	// Detaching the first registration leaves the second one live.
	unsubFirst()
	provider.emit(&models.Identity{UID: "alice"})
	assert.Equal(t, 1, calls)
}

func TestGetCurrentUserCached(t *testing.T) {
	provider := signedOutProvider()
	a := NewAuthenticator(provider, session.NewMemoryStore())
	defer a.Close()

	identity, err := a.GetCurrentUser(context.Background())
	require.NoError(t, err)
	assert.Nil(t, identity, "known signed-out state resolves immediately")

	provider.emit(&models.Identity{UID: "alice"})
	identity, err = a.GetCurrentUser(context.Background())
	require.NoError(t, err)
	require.NotNil(t, identity)
	assert.Equal(t, "alice", identity.UID)
}

func TestGetCurrentUserWaitsForFirstState(t *testing.T) {
	provider := newFakeProvider() // state not yet known
	a := NewAuthenticator(provider, session.NewMemoryStore())
	defer a.Close()

	type result struct {
		identity *models.Identity
		err      error
	}
	resultCh := make(chan result, 1)
	go func() {
		identity, err := a.GetCurrentUser(context.Background())
		resultCh <- result{identity, err}
	}()

	// Wait until the one-shot waiter is parked before emitting.
	require.Eventually(t, func() bool {
		a.mu.Lock()
		defer a.mu.Unlock()
		return len(a.waiters) == 1
	}, time.Second, time.Millisecond)

	provider.emit(&models.Identity{UID: "alice"})

	select {
	case r := <-resultCh:
		require.NoError(t, r.err)
		require.NotNil(t, r.identity)
		assert.Equal(t, "alice", r.identity.UID)
	case <-time.After(time.Second):
		t.Fatal("GetCurrentUser did not resolve on the first notification")
	}

	// The wait was one-shot; later calls resolve from the cache.
	identity, err := a.GetCurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", identity.UID)
}

func TestGetCurrentUserHonorsContext(t *testing.T) {
	provider := newFakeProvider()
	a := NewAuthenticator(provider, session.NewMemoryStore())
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := a.GetCurrentUser(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSignInWithPopupPersists(t *testing.T) {
	idToken := mintIDToken(t, "alice")
	provider := signedOutProvider()
	provider.signInIdentity = &models.Identity{UID: "alice", Email: "alice@example.com"}
	provider.idToken = idToken

	store := session.NewMemoryStore()
	a := NewAuthenticator(provider, store)
	defer a.Close()

	identity, token, err := a.SignInWithPopup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", identity.UID)
	assert.Equal(t, idToken, token)

	raw, err := store.Get(context.Background(), session.KeyFederatedIdentity)
	require.NoError(t, err)
	var snapshot models.Identity
	require.NoError(t, json.Unmarshal(raw, &snapshot))
	assert.Equal(t, *identity, snapshot)

	rawToken, err := store.Get(context.Background(), session.KeyFederatedIDToken)
	require.NoError(t, err)
	assert.Equal(t, idToken, string(rawToken))

	assert.True(t, a.IsAuthenticated())
}

func TestSignInWithPopupFailure(t *testing.T) {
	provider := signedOutProvider()
	provider.signInErr = errors.New("window closed")

	a := NewAuthenticator(provider, session.NewMemoryStore())
	defer a.Close()

	_, _, err := a.SignInWithPopup(context.Background())
	assert.ErrorIs(t, err, autherr.New(autherr.KindPopupFailed, ""))
	assert.False(t, a.IsAuthenticated())
}

func TestSignInWithPopupTokenFetchFailure(t *testing.T) {
	provider := signedOutProvider()
	provider.signInIdentity = &models.Identity{UID: "alice"}
	provider.idTokenErr = errors.New("backend unavailable")

	a := NewAuthenticator(provider, session.NewMemoryStore())
	defer a.Close()

	_, _, err := a.SignInWithPopup(context.Background())
	assert.ErrorIs(t, err, autherr.New(autherr.KindTokenFetchFailed, ""))
}

func TestSignOutAlwaysClears(t *testing.T) {
	tests := []struct {
		name       string
		signOutErr error
	}{
		{name: "provider sign out succeeds"},
		{name: "provider sign out fails", signOutErr: errors.New("network down")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := signedOutProvider()
			provider.signOutErr = tt.signOutErr

			store := session.NewMemoryStore()
			ctx := context.Background()
			require.NoError(t, store.Put(ctx, session.KeyFederatedIdentity, []byte(`{"uid":"alice"}`)))
			require.NoError(t, store.Put(ctx, session.KeyFederatedIDToken, []byte("token")))

			a := NewAuthenticator(provider, store)
			defer a.Close()

			err := a.SignOut(ctx)
			if tt.signOutErr != nil {
				assert.ErrorIs(t, err, autherr.New(autherr.KindSignOutFailed, ""))
			} else {
				require.NoError(t, err)
			}

			_, getErr := store.Get(ctx, session.KeyFederatedIdentity)
			assert.ErrorIs(t, getErr, session.ErrNotFound)
			_, getErr = store.Get(ctx, session.KeyFederatedIDToken)
			assert.ErrorIs(t, getErr, session.ErrNotFound)
		})
	}
}

func TestGetIDTokenRederives(t *testing.T) {
	provider := signedOutProvider()
	provider.idToken = mintIDToken(t, "alice")

	a := NewAuthenticator(provider, session.NewMemoryStore())
	defer a.Close()

	// No identity: no token, no fetch.
	token, err := a.GetIDToken(context.Background())
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.Zero(t, provider.idTokenCalls)

	provider.emit(&models.Identity{UID: "alice"})

	first, err := a.GetIDToken(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	// The provider rotates the token; the next read sees the fresh one
	// because nothing caches the previous value.
	rotated := mintIDToken(t, "alice-rotated")
	provider.mu.Lock()
	provider.idToken = rotated
	provider.mu.Unlock()

	second, err := a.GetIDToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, rotated, second)
	assert.Equal(t, 2, provider.idTokenCalls)
}

func TestGetIDTokenFetchFailureResolvesEmpty(t *testing.T) {
	provider := signedOutProvider()
	provider.idTokenErr = errors.New("backend unavailable")

	a := NewAuthenticator(provider, session.NewMemoryStore())
	defer a.Close()

	provider.emit(&models.Identity{UID: "alice"})

	// A failed fetch resolves like a signed-out session; the failure is
	// logged, never surfaced.
	token, err := a.GetIDToken(context.Background())
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestIsAuthenticatedTracksStream(t *testing.T) {
	provider := signedOutProvider()
	a := NewAuthenticator(provider, session.NewMemoryStore())
	defer a.Close()

	assert.False(t, a.IsAuthenticated())

	provider.emit(&models.Identity{UID: "alice"})
	assert.True(t, a.IsAuthenticated())

	provider.emit(nil)
	assert.False(t, a.IsAuthenticated())
}
