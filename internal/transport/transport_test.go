package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"ecotracker-client/internal/apperror"
	"ecotracker-client/internal/credential"
)

func newBackend(t *testing.T) (*chi.Mux, *httptest.Server) {
	t.Helper()
	r := chi.NewRouter()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return r, srv
}

func TestDoInjectsBearerHeader(t *testing.T) {
	r, srv := newBackend(t)
	var gotAuth string
	r.Get("/ping", func(w http.ResponseWriter, req *http.Request) {
		gotAuth = req.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	store := credential.NewMemStore()
	require.NoError(t, store.Set("T"))
	c := New(srv.URL, store, nil, 5*time.Second, zaptest.NewLogger(t))

	var out map[string]bool
	require.NoError(t, c.Do(context.Background(), http.MethodGet, "/ping", nil, nil, &out))
	assert.Equal(t, "Bearer T", gotAuth)
	assert.True(t, out["ok"])
}

func TestDoOmitsHeaderWithoutCredential(t *testing.T) {
	r, srv := newBackend(t)
	var gotAuth string
	r.Get("/ping", func(w http.ResponseWriter, req *http.Request) {
		gotAuth = req.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	})

	c := New(srv.URL, credential.NewMemStore(), nil, 5*time.Second, zaptest.NewLogger(t))
	require.NoError(t, c.Do(context.Background(), http.MethodGet, "/ping", nil, nil, nil))
	assert.Empty(t, gotAuth)
}

func TestDoUnauthorizedClearsCredentialAndNavigates(t *testing.T) {
	r, srv := newBackend(t)
	r.Get("/secure", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	store := credential.NewMemStore()
	require.NoError(t, store.Set("expired"))

	var navigations []string
	nav := func(route string) { navigations = append(navigations, route) }
	c := New(srv.URL, store, nav, 5*time.Second, zaptest.NewLogger(t))

	err := c.Do(context.Background(), http.MethodGet, "/secure", nil, nil, nil)
	assert.ErrorIs(t, err, apperror.ErrAuthExpired)

	_, present := store.Get()
	assert.False(t, present, "credential must be cleared after a 401")
	assert.Equal(t, []string{SignInRoute}, navigations, "sign-in navigation exactly once")
}

func TestDoClientErrorCarriesDecodedBody(t *testing.T) {
	r, srv := newBackend(t)
	r.Post("/activities", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"quantity must be positive"}`))
	})

	c := New(srv.URL, credential.NewMemStore(), nil, 5*time.Second, zaptest.NewLogger(t))
	err := c.Do(context.Background(), http.MethodPost, "/activities", nil, map[string]int{"x": 1}, nil)

	var apiErr *apperror.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "quantity must be positive", apiErr.Message)
	assert.False(t, apiErr.IsServerError())
	assert.False(t, IsRetriable(err))
}

func TestDoServerErrorIsRetriable(t *testing.T) {
	r, srv := newBackend(t)
	r.Get("/dashboard", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	c := New(srv.URL, credential.NewMemStore(), nil, 5*time.Second, zaptest.NewLogger(t))
	err := c.Do(context.Background(), http.MethodGet, "/dashboard", nil, nil, nil)

	var apiErr *apperror.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.IsServerError())
	assert.True(t, IsRetriable(err))
}

func TestDoNetworkFailure(t *testing.T) {
	// Port from a closed server: connection refused, no status.
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := New(srv.URL, credential.NewMemStore(), nil, time.Second, zaptest.NewLogger(t))
	err := c.Do(context.Background(), http.MethodGet, "/ping", nil, nil, nil)
	assert.ErrorIs(t, err, apperror.ErrNetworkFailure)
	assert.True(t, IsRetriable(err))
}

func TestDoTimeoutSurfacesAsNetworkFailure(t *testing.T) {
	r, srv := newBackend(t)
	r.Get("/slow", func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})

	c := New(srv.URL, credential.NewMemStore(), nil, 50*time.Millisecond, zaptest.NewLogger(t))
	err := c.Do(context.Background(), http.MethodGet, "/slow", nil, nil, nil)
	assert.ErrorIs(t, err, apperror.ErrNetworkFailure)
}

func TestDoEncodesQuery(t *testing.T) {
	r, srv := newBackend(t)
	var got url.Values
	r.Get("/activities", func(w http.ResponseWriter, req *http.Request) {
		got = req.URL.Query()
		_, _ = w.Write([]byte(`{}`))
	})

	c := New(srv.URL, credential.NewMemStore(), nil, 5*time.Second, zaptest.NewLogger(t))
	q := url.Values{}
	q.Set("period", "30")
	var out map[string]any
	require.NoError(t, c.Do(context.Background(), http.MethodGet, "/activities", q, nil, &out))
	assert.Equal(t, "30", got.Get("period"))
}
