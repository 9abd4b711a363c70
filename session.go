// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package loam

import (
	"context"
	"sync/atomic"

	"github.com/z5labs/loam/backend"

	"github.com/z5labs/sdk-go/try"
)

func withSession(s backend.Session) CallOption {
	return func(co *CallOptions) {
		co.session = s
	}
}

func withAsyncSession(s backend.AsyncSession) CallOption {
	return func(co *CallOptions) {
		co.asyncSession = s
	}
}

// Session executes calls through one reusable backend session, so
// consecutive requests share connections and cookies. Sessions are
// created with [Client.NewSession] or scoped via [Client.WithSession]
// and are not reusable after Close.
type Session struct {
	client *Client
	sess   backend.Session
	closed atomic.Bool
}

// NewSession opens a session on the client's configured backend.
func (c *Client) NewSession(ctx context.Context) (*Session, error) {
	b, err := c.sessionBackend()
	if err != nil {
		return nil, err
	}

	sess, err := b.OpenSession(ctx)
	if err != nil {
		return nil, err
	}

	return &Session{
		client: c,
		sess:   sess,
	}, nil
}

// WithSession opens a session, passes it to f and guarantees the
// session is released on every exit path, including panics.
func (c *Client) WithSession(ctx context.Context, f func(context.Context, *Session) error) (err error) {
	s, err := c.NewSession(ctx)
	if err != nil {
		return err
	}
	defer try.Close(&err, s)

	return f(ctx, s)
}

// Call invokes the named declared method through the session.
func (s *Session) Call(ctx context.Context, name string, opts ...CallOption) (any, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}
	return s.client.Call(ctx, name, append(opts, withSession(s.sess))...)
}

// Unwrap exposes the backend library's session object, e.g. a
// *http.Client, for advanced customization such as TLS settings.
func (s *Session) Unwrap() any {
	return s.sess.Unwrap()
}

// Close releases the session. Closing twice is a no-op.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.sess.Close()
}

// AsyncSession is the asynchronous counterpart of [Session]. It
// requires the client's backend to support asynchronous execution.
type AsyncSession struct {
	client *Client
	sess   backend.AsyncSession
	closed atomic.Bool
}

// NewAsyncSession opens an asynchronous session on the client's
// configured backend. A backend without async support yields a
// [ConfigurationError].
func (c *Client) NewAsyncSession(ctx context.Context) (*AsyncSession, error) {
	b, err := c.sessionBackend()
	if err != nil {
		return nil, err
	}

	ab, ok := b.(backend.AsyncBackend)
	if !ok {
		return nil, configErrorf("loam.Client.NewAsyncSession", "backend %q does not support asynchronous calls", b.Name())
	}

	sess, err := ab.OpenAsyncSession(ctx)
	if err != nil {
		return nil, err
	}

	return &AsyncSession{
		client: c,
		sess:   sess,
	}, nil
}

// WithAsyncSession opens an asynchronous session, passes it to f and
// guarantees the session is released on every exit path.
func (c *Client) WithAsyncSession(ctx context.Context, f func(context.Context, *AsyncSession) error) (err error) {
	s, err := c.NewAsyncSession(ctx)
	if err != nil {
		return err
	}
	defer try.Close(&err, s)

	return f(ctx, s)
}

// Go invokes the named declared method asynchronously through the
// session.
func (s *AsyncSession) Go(ctx context.Context, name string, opts ...CallOption) (*AsyncCall, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}
	return s.client.Go(ctx, name, append(opts, withAsyncSession(s.sess))...)
}

// Unwrap exposes the backend library's session object.
func (s *AsyncSession) Unwrap() any {
	return s.sess.Unwrap()
}

// Close releases the session. Closing twice is a no-op.
func (s *AsyncSession) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.sess.Close()
}

// sessionBackend picks the backend a session binds to. Method-level
// backend declarations do not participate; a session spans methods.
func (c *Client) sessionBackend() (backend.Backend, error) {
	c.mu.RLock()
	inst := c.backendInst
	name := c.backendName
	c.mu.RUnlock()

	if inst != nil {
		return inst, nil
	}
	if name == "" {
		name = DefaultBackend
	}

	b, ok := backend.Lookup(name)
	if !ok {
		return nil, configErrorf("loam.Client.NewSession", "unknown backend %q (registered: %v)", name, backend.Names())
	}
	return b, nil
}
