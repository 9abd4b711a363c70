// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package httpbackend implements the loam backend capability on top of
// [net/http]. It registers itself under the name "http" and is the
// default backend.
//
// The adapter is synchronous only. Requests are executed with an
// OpenTelemetry instrumented transport unless a custom client or
// transport is supplied.
package httpbackend

import (
	"context"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"sync/atomic"

	"github.com/z5labs/loam/backend"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var errSessionClosed = errors.New("httpbackend: session is closed")

// Name is the identifier this backend registers under.
const Name = "http"

func init() {
	backend.Register(New())
}

// Backend executes requests through [net/http].
type Backend struct {
	client *http.Client
}

// Option configures a [Backend] during [New].
type Option func(*Backend)

// WithClient sets the [http.Client] used for sessionless requests and
// as the template for sessions.
func WithClient(client *http.Client) Option {
	return func(b *Backend) {
		b.client = client
	}
}

// WithTransport sets the [http.RoundTripper] on the backend's client.
func WithTransport(rt http.RoundTripper) Option {
	return func(b *Backend) {
		b.client.Transport = rt
	}
}

// New initializes a [Backend].
func New(opts ...Option) *Backend {
	b := &Backend{
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name implements the [backend.Backend] interface.
func (b *Backend) Name() string {
	return Name
}

// Do implements the [backend.Backend] interface.
func (b *Backend) Do(ctx context.Context, req *backend.Request) (*backend.Response, error) {
	return do(ctx, b.client, req)
}

// OpenSession implements the [backend.Backend] interface. Each session
// gets its own [http.Client] sharing the backend's transport, with a
// fresh cookie jar for cookie continuity across requests.
func (b *Backend) OpenSession(ctx context.Context) (backend.Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	client := *b.client
	client.Jar = jar

	return &session{
		client: &client,
	}, nil
}

func do(ctx context.Context, client *http.Client, req *backend.Request) (*backend.Response, error) {
	if req.Timeout > 0 {
		// http.Client.Timeout covers reading the body, which a
		// context deadline removed on return would not.
		c := *client
		c.Timeout = req.Timeout
		client = &c
	}

	hr, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), req.Body)
	if err != nil {
		return nil, err
	}
	for k, vs := range req.Header {
		hr.Header[k] = vs
	}

	hresp, err := client.Do(hr)
	if err != nil {
		return nil, err
	}

	resp := &backend.Response{
		StatusCode: hresp.StatusCode,
		Status:     hresp.Status,
		Header:     hresp.Header,
		Body:       hresp.Body,
		Underlying: hresp,
	}
	if req.Stream {
		return resp, nil
	}

	// Buffer eagerly so the connection returns to the pool.
	if _, err := resp.Bytes(); err != nil {
		return nil, err
	}
	return resp, nil
}

type session struct {
	client *http.Client
	closed atomic.Bool
}

func (s *session) Do(ctx context.Context, req *backend.Request) (*backend.Response, error) {
	if s.closed.Load() {
		return nil, errSessionClosed
	}
	return do(ctx, s.client, req)
}

func (s *session) Unwrap() any {
	return s.client
}

func (s *session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.client.CloseIdleConnections()
	return nil
}
