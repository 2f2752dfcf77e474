// Package transport provides the authenticated HTTP client used by every
// API operation.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"ecotracker-client/internal/apperror"
	"ecotracker-client/internal/credential"
)

// SignInRoute is where the navigator is sent after an authentication
// failure.
const SignInRoute = "/login"

// Navigator receives the route to show after the credential is cleared.
type Navigator func(route string)

// Client issues authenticated JSON requests against the configured base URL.
// It owns the credential read/write path: callers never see headers.
type Client struct {
	base     string
	store    credential.Store
	navigate Navigator
	http     *http.Client
	log      *zap.Logger
}

// New creates a Client. timeout is the fixed total budget per request.
func New(baseURL string, store credential.Store, navigate Navigator, timeout time.Duration, log *zap.Logger) *Client {
	if navigate == nil {
		navigate = func(string) {}
	}
	return &Client{
		base:     strings.TrimSuffix(baseURL, "/"),
		store:    store,
		navigate: navigate,
		http:     &http.Client{Timeout: timeout},
		log:      log,
	}
}

// Do performs one request. query may be nil; body is JSON-encoded when
// non-nil; a 2xx response is decoded into out unless out is nil.
//
// Failure classes: a 401 clears the credential, navigates to the sign-in
// route, and returns apperror.ErrAuthExpired; other non-2xx statuses return
// *apperror.APIError; transport and timeout errors return
// apperror.ErrNetworkFailure. Nothing here retries.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token, ok := c.store.Get(); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%w: %v", apperror.ErrNetworkFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		return c.authExpired(resp)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.apiError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// authExpired handles a 401: clear the credential, navigate to sign-in
// exactly once, then still fail the original call.
func (c *Client) authExpired(resp *http.Response) error {
	if err := c.store.Clear(); err != nil {
		c.log.Error("failed to clear credential", zap.Error(err))
	}
	c.navigate(SignInRoute)
	c.log.Info("credential expired", zap.String("url", resp.Request.URL.Path))
	return apperror.ErrAuthExpired
}

func (c *Client) apiError(resp *http.Response) error {
	apiErr := &apperror.APIError{Status: resp.StatusCode}
	data, err := io.ReadAll(resp.Body)
	if err == nil && len(data) > 0 {
		var decoded map[string]any
		if json.Unmarshal(data, &decoded) == nil {
			apiErr.Body = decoded
			if msg, ok := decoded["message"].(string); ok {
				apiErr.Message = msg
			} else if msg, ok := decoded["error"].(string); ok {
				apiErr.Message = msg
			}
		}
	}
	return apiErr
}

// IsRetriable reports whether err is a transient failure (network error or
// 5xx) that the caller may retry.
func IsRetriable(err error) bool {
	if errors.Is(err, apperror.ErrNetworkFailure) {
		return true
	}
	var apiErr *apperror.APIError
	return errors.As(err, &apiErr) && apiErr.IsServerError()
}
