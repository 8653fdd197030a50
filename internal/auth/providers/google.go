package providers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/atlasworlds/authkit/internal/auth/models"
	"github.com/atlasworlds/authkit/internal/config"
	"github.com/atlasworlds/authkit/internal/logger"
)

const defaultIssuer = "https://accounts.google.com"

// GoogleProvider implements the federated provider contract with a
// browser-based authorization-code flow: the interactive sign-in opens
// the provider's consent page and collects the code on a loopback
// listener, which is this environment's equivalent of the popup.
type GoogleProvider struct {
	oauth2Config *oauth2.Config
	verifier     *oidc.IDTokenVerifier
	redirectPort int

	mu          sync.Mutex
	current     *models.Identity
	tokenSource oauth2.TokenSource
	idToken     string
	subscribers []subscriber
	nextSubID   int
}

type subscriber struct {
	id int
	fn func(*models.Identity)
}

// NewGoogleProvider discovers the issuer and prepares the OAuth client.
func NewGoogleProvider(cfg *config.FederatedConfig) (*GoogleProvider, error) {
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = defaultIssuer
	}

	provider, err := oidc.NewProvider(context.Background(), issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	scopes := cfg.Scopes
	hasOpenID := false
	for _, s := range scopes {
		if s == oidc.ScopeOpenID {
			hasOpenID = true
		}
	}
	if !hasOpenID {
		scopes = append([]string{oidc.ScopeOpenID}, scopes...)
	}

	return &GoogleProvider{
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     provider.Endpoint(),
			Scopes:       scopes,
		},
		verifier:     provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		redirectPort: cfg.RedirectPort,
	}, nil
}

// SignInInteractive runs the authorization-code flow to completion or
// rejection. Once started it cannot be aborted other than through ctx.
func (p *GoogleProvider) SignInInteractive(ctx context.Context) (*models.Identity, error) {
	state, err := randomState()
	if err != nil {
		return nil, err
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", p.redirectPort))
	if err != nil {
		return nil, fmt.Errorf("failed to open callback listener: %w", err)
	}
	defer func() {
		if err := ln.Close(); err != nil {
			logger.Debug("failed to close callback listener", zap.Error(err))
		}
	}()

	cfg := *p.oauth2Config // copy
	cfg.RedirectURL = fmt.Sprintf("http://%s/callback", ln.Addr().String())

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
	logger.Info("Open this URL in your browser to sign in", zap.String("url", authURL))

	code, err := p.waitForCallback(ctx, ln, state)
	if err != nil {
		return nil, err
	}

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}

	identity, rawIDToken, err := p.identityFromToken(ctx, token)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.current = identity
	p.tokenSource = cfg.TokenSource(context.Background(), token)
	p.idToken = rawIDToken
	p.mu.Unlock()

	p.notify(identity)
	return identity, nil
}

// IDToken returns the current raw ID token, letting the underlying token
// source refresh it when the provider rotates credentials.
func (p *GoogleProvider) IDToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	ts := p.tokenSource
	p.mu.Unlock()

	if ts == nil {
		return "", fmt.Errorf("no active session")
	}

	token, err := ts.Token()
	if err != nil {
		return "", fmt.Errorf("token refresh failed: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if raw, ok := token.Extra("id_token").(string); ok && raw != "" {
		p.idToken = raw
	}
	if p.idToken == "" {
		return "", fmt.Errorf("provider returned no id token")
	}
	return p.idToken, nil
}

// SignOut drops the provider-side session state and reports signed-out
// on the stream.
func (p *GoogleProvider) SignOut(_ context.Context) error {
	p.mu.Lock()
	p.current = nil
	p.tokenSource = nil
	p.idToken = ""
	p.mu.Unlock()

	p.notify(nil)
	return nil
}

// Subscribe registers fn on the state stream and immediately reports the
// current state, so subscribers never wait for a transition to learn
// where things stand.
func (p *GoogleProvider) Subscribe(fn func(*models.Identity)) func() {
	p.mu.Lock()
	id := p.nextSubID
	p.nextSubID++
	p.subscribers = append(p.subscribers, subscriber{id: id, fn: fn})
	current := p.current
	p.mu.Unlock()

	fn(current)

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, sub := range p.subscribers {
			if sub.id == id {
				p.subscribers = append(p.subscribers[:i], p.subscribers[i+1:]...)
				return
			}
		}
	}
}

func (p *GoogleProvider) notify(identity *models.Identity) {
	p.mu.Lock()
	subs := make([]subscriber, len(p.subscribers))
	copy(subs, p.subscribers)
	p.mu.Unlock()

	for _, sub := range subs {
		sub.fn(identity)
	}
}

// waitForCallback serves exactly one redirect on the loopback listener
// and returns the authorization code.
func (p *GoogleProvider) waitForCallback(ctx context.Context, ln net.Listener, state string) (string, error) {
	type callbackResult struct {
		code string
		err  error
	}
	resultCh := make(chan callbackResult, 1)

	server := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			query := r.URL.Query()
			if query.Get("state") != state {
				http.Error(w, "state mismatch", http.StatusBadRequest)
				resultCh <- callbackResult{err: fmt.Errorf("state mismatch in callback")}
				return
			}
			if errCode := query.Get("error"); errCode != "" {
				http.Error(w, errCode, http.StatusBadRequest)
				resultCh <- callbackResult{err: fmt.Errorf("provider denied sign in: %s", errCode)}
				return
			}
			fmt.Fprintln(w, "Signed in. You can close this window.")
			resultCh <- callbackResult{code: query.Get("code")}
		}),
	}

	go func() {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			resultCh <- callbackResult{err: err}
		}
	}()
	defer func() {
		_ = server.Close()
	}()

	select {
	case result := <-resultCh:
		return result.code, result.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (p *GoogleProvider) identityFromToken(ctx context.Context, token *oauth2.Token) (*models.Identity, string, error) {
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, "", fmt.Errorf("no id_token in token response")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, "", fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims struct {
		Sub     string `json:"sub"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, "", fmt.Errorf("failed to parse claims: %w", err)
	}

	return &models.Identity{
		UID:         claims.Sub,
		Email:       claims.Email,
		DisplayName: claims.Name,
		PhotoURL:    claims.Picture,
	}, rawIDToken, nil
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
