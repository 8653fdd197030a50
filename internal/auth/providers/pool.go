// Package providers contains the concrete identity-backend clients: the
// HTTP client for the password-grant identity pool and the browser-flow
// OAuth provider.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/atlasworlds/authkit/internal/auth"
	"github.com/atlasworlds/authkit/internal/auth/models"
	"github.com/atlasworlds/authkit/internal/auth/passwordgrant"
	"github.com/atlasworlds/authkit/internal/config"
	"github.com/atlasworlds/authkit/internal/logger"
)

// HTTPPool talks to the password-grant identity pool over HTTP. Request
// and response shapes mirror the pool's wire contract; coded failures
// come back as *passwordgrant.PoolError so the authenticator can
// normalize them.
type HTTPPool struct {
	client   *http.Client
	endpoint string
}

// NewHTTPPool creates a pool client for the configured endpoint.
func NewHTTPPool(cfg *config.PoolConfig) *HTTPPool {
	return &HTTPPool{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		endpoint: cfg.Endpoint,
	}
}

func (p *HTTPPool) InitiateAuth(ctx context.Context, req passwordgrant.AuthRequest) (*passwordgrant.AuthResult, error) {
	var result passwordgrant.AuthResult
	if err := p.post(ctx, "/signin", req, &result); err != nil {
		return nil, err
	}
	if result.AccessToken == "" {
		return nil, &passwordgrant.PoolError{Code: "NotAuthorizedException", Message: "authentication failed"}
	}
	return &result, nil
}

func (p *HTTPPool) SignUp(ctx context.Context, req passwordgrant.SignUpRequest) error {
	return p.post(ctx, "/signup", req, nil)
}

func (p *HTTPPool) ConfirmSignUp(ctx context.Context, req passwordgrant.ConfirmRequest) error {
	return p.post(ctx, "/confirm", req, nil)
}

func (p *HTTPPool) GetUser(ctx context.Context, accessToken string) (*models.UserInfo, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"/user", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set(auth.AuthHeaderName, auth.AuthHeaderPrefix+accessToken)

	var wire struct {
		Username   string `json:"username"`
		Attributes []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"attributes"`
	}
	if err := p.do(httpReq, &wire); err != nil {
		return nil, err
	}

	attributes := make(map[string]string, len(wire.Attributes))
	for _, attr := range wire.Attributes {
		if attr.Name != "" && attr.Value != "" {
			attributes[attr.Name] = attr.Value
		}
	}

	return &models.UserInfo{
		Username:   wire.Username,
		Email:      attributes["email"],
		Attributes: attributes,
	}, nil
}

func (p *HTTPPool) GlobalSignOut(ctx context.Context, accessToken string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/signout", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set(auth.AuthHeaderName, auth.AuthHeaderPrefix+accessToken)
	return p.do(httpReq, nil)
}

func (p *HTTPPool) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", auth.ContentTypeJSON)

	return p.do(httpReq, out)
}

func (p *HTTPPool) do(req *http.Request, out interface{}) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("pool request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("Failed to close response body", zap.Error(err))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parsePoolError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode pool response: %w", err)
	}
	return nil
}

// parsePoolError decodes the pool's coded error body. A body that does
// not parse still yields a PoolError so callers get a single error shape.
func parsePoolError(resp *http.Response) error {
	var wire struct {
		Type    string `json:"__type"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil || wire.Type == "" {
		return &passwordgrant.PoolError{
			Code:    "InternalErrorException",
			Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		}
	}
	return &passwordgrant.PoolError{Code: wire.Type, Message: wire.Message}
}
