package requester

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/atlasworlds/authkit/internal/config"
	"github.com/atlasworlds/authkit/internal/logger"
)

var (
	// ErrUnauthorized indicates the API rejected the request for lack of
	// valid credentials.
	ErrUnauthorized = errors.New("authentication required")

	// ErrForbidden indicates the credentials lack access to the resource.
	ErrForbidden = errors.New("access denied")
)

// Response represents an HTTP response from the data-access API
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// HTTPRequester executes requests against the catalog data-access API,
// attaching resolved auth headers to every call.
type HTTPRequester struct {
	client  *http.Client
	cfg     *config.EndpointConfig
	headers HeaderSource
}

type HTTPRequesterParams struct {
	fx.In

	EndpointConfig *config.EndpointConfig
	Headers        HeaderSource
}

// NewHTTPRequester creates a new HTTPRequester with default configuration
func NewHTTPRequester(params HTTPRequesterParams) *HTTPRequester {
	return &HTTPRequester{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		cfg:     params.EndpointConfig,
		headers: params.Headers,
	}
}

// SetTimeout sets the timeout for the HTTP client
func (r *HTTPRequester) SetTimeout(timeout time.Duration) {
	r.client.Timeout = timeout
}

// Do executes a request against the API. A nil body sends no payload;
// anything else is JSON-encoded.
func (r *HTTPRequester) Do(ctx context.Context, method, path string, body interface{}) (*Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for name, value := range r.headers.AuthHeaders(ctx) {
		req.Header.Set(name, value)
	}
	for name, value := range r.cfg.Headers {
		req.Header.Set(name, value)
	}

	logger.Debug("request route", zap.String("method", method), zap.Any("url", req.URL))

	resp, err := r.client.Do(req)
	if err != nil {
		logger.Error("failed to execute request", zap.Error(err))
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.Error("failed to close response body", zap.Error(closeErr))
		}
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case http.StatusForbidden:
		return nil, ErrForbidden
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("API error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       bodyBytes,
		Headers:    resp.Header,
	}, nil
}
