// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package loam

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/z5labs/loam/backend/restybackend"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cookieServer issues a session cookie on login and reports on whoami
// whether the cookie came back.
func cookieServer(t *testing.T) *httptest.Server {
	t.Helper()

	r := chi.NewRouter()
	r.Get("/login", func(w http.ResponseWriter, req *http.Request) {
		http.SetCookie(w, &http.Cookie{
			Name:  "sid",
			Value: "abc123",
			Path:  "/",
		})
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/whoami", func(w http.ResponseWriter, req *http.Request) {
		if c, err := req.Cookie("sid"); err == nil && c.Value == "abc123" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	})

	s := httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

func authResource() *Resource {
	return NewResource("auth",
		Method("Login", Get("login")),
		Method("WhoAmI", Get("whoami")),
	)
}

func TestSession(t *testing.T) {
	t.Run("carries cookies across calls", func(t *testing.T) {
		srv := cookieServer(t)

		c := New(
			Use(authResource()),
			WithEndpoint(srv.URL),
		)

		s, err := c.NewSession(context.Background())
		require.NoError(t, err)
		defer s.Close()

		_, err = s.Call(context.Background(), "Login")
		require.NoError(t, err)

		_, err = s.Call(context.Background(), "WhoAmI")
		require.NoError(t, err)
	})

	t.Run("sessionless calls do not share cookies", func(t *testing.T) {
		srv := cookieServer(t)

		c := New(
			Use(authResource()),
			WithEndpoint(srv.URL),
		)

		_, err := c.Call(context.Background(), "Login")
		require.NoError(t, err)

		_, err = c.Call(context.Background(), "WhoAmI")

		var httpErr *HTTPError
		require.ErrorAs(t, err, &httpErr)
		require.NotNil(t, httpErr.Response)
		assert.Equal(t, http.StatusUnauthorized, httpErr.Response.StatusCode)
	})

	t.Run("rejects calls after close", func(t *testing.T) {
		srv := cookieServer(t)

		c := New(
			Use(authResource()),
			WithEndpoint(srv.URL),
		)

		s, err := c.NewSession(context.Background())
		require.NoError(t, err)

		require.NoError(t, s.Close())

		_, err = s.Call(context.Background(), "Login")
		assert.ErrorIs(t, err, ErrSessionClosed)
	})

	t.Run("close is idempotent", func(t *testing.T) {
		srv := cookieServer(t)

		c := New(
			Use(authResource()),
			WithEndpoint(srv.URL),
		)

		s, err := c.NewSession(context.Background())
		require.NoError(t, err)

		require.NoError(t, s.Close())
		require.NoError(t, s.Close())
	})

	t.Run("unwrap exposes the underlying http client", func(t *testing.T) {
		c := New(Use(authResource()))

		s, err := c.NewSession(context.Background())
		require.NoError(t, err)
		defer s.Close()

		_, ok := s.Unwrap().(*http.Client)
		assert.True(t, ok)
	})
}

func TestClient_WithSession(t *testing.T) {
	t.Run("releases the session after f returns", func(t *testing.T) {
		srv := cookieServer(t)

		c := New(
			Use(authResource()),
			WithEndpoint(srv.URL),
		)

		var captured *Session
		err := c.WithSession(context.Background(), func(ctx context.Context, s *Session) error {
			captured = s
			_, err := s.Call(ctx, "Login")
			return err
		})
		require.NoError(t, err)

		_, err = captured.Call(context.Background(), "Login")
		assert.ErrorIs(t, err, ErrSessionClosed)
	})

	t.Run("returns the error from f", func(t *testing.T) {
		srv := cookieServer(t)

		c := New(
			Use(authResource()),
			WithEndpoint(srv.URL),
		)

		wantErr := errors.New("boom")
		err := c.WithSession(context.Background(), func(ctx context.Context, s *Session) error {
			return wantErr
		})
		assert.ErrorIs(t, err, wantErr)
	})
}

func TestAsyncSession(t *testing.T) {
	t.Run("fails when the backend is synchronous only", func(t *testing.T) {
		c := New(Use(authResource()))

		_, err := c.NewAsyncSession(context.Background())

		var cfgErr *ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Contains(t, cfgErr.Reason, "asynchronous")
	})

	t.Run("carries cookies across asynchronous calls", func(t *testing.T) {
		srv := cookieServer(t)

		c := New(
			Use(authResource()),
			WithEndpoint(srv.URL),
			WithBackend(restybackend.Name),
		)

		s, err := c.NewAsyncSession(context.Background())
		require.NoError(t, err)
		defer s.Close()

		ac, err := s.Go(context.Background(), "Login")
		require.NoError(t, err)
		_, err = ac.Await(context.Background())
		require.NoError(t, err)

		ac, err = s.Go(context.Background(), "WhoAmI")
		require.NoError(t, err)
		_, err = ac.Await(context.Background())
		require.NoError(t, err)
	})

	t.Run("rejects calls after close", func(t *testing.T) {
		c := New(
			Use(authResource()),
			WithBackend(restybackend.Name),
		)

		s, err := c.NewAsyncSession(context.Background())
		require.NoError(t, err)

		require.NoError(t, s.Close())

		_, err = s.Go(context.Background(), "Login")
		assert.ErrorIs(t, err, ErrSessionClosed)
	})
}
