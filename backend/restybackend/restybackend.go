// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package restybackend implements the loam backend capability on top
// of [github.com/go-resty/resty/v2]. It registers itself under the
// name "resty".
//
// Unlike the default net/http adapter, this backend supports
// asynchronous execution, so clients configured with it can use
// Client.Go and asynchronous sessions. Import it for side effects:
//
//	import _ "github.com/z5labs/loam/backend/restybackend"
package restybackend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"sync/atomic"

	"github.com/z5labs/loam/backend"

	"github.com/go-resty/resty/v2"
	"github.com/sourcegraph/conc/panics"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Name is the identifier this backend registers under.
const Name = "resty"

func init() {
	backend.Register(New())
}

var errSessionClosed = errors.New("restybackend: session is closed")

// Backend executes requests through a shared [resty.Client].
type Backend struct {
	client *resty.Client
}

// Option configures a [Backend] during [New].
type Option func(*Backend)

// WithClient sets the [resty.Client] used for sessionless requests.
func WithClient(client *resty.Client) Option {
	return func(b *Backend) {
		b.client = client
	}
}

// New initializes a [Backend].
func New(opts ...Option) *Backend {
	b := &Backend{
		client: resty.New().SetTransport(otelhttp.NewTransport(http.DefaultTransport)),
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

// DoAsync implements the [backend.AsyncBackend] interface. The request
// runs on its own goroutine; a panic in the exchange is captured and
// surfaced as the result error.
func (b *Backend) DoAsync(ctx context.Context, req *backend.Request) <-chan backend.Result {
	return doAsync(ctx, b.client, req)
}

// OpenSession implements the [backend.Backend] interface. Each session
// wraps a dedicated [resty.Client] sharing the backend's transport,
// with a fresh cookie jar.
func (b *Backend) OpenSession(ctx context.Context) (backend.Session, error) {
	return b.openSession()
}

// OpenAsyncSession implements the [backend.AsyncBackend] interface.
func (b *Backend) OpenAsyncSession(ctx context.Context) (backend.AsyncSession, error) {
	return b.openSession()
}

func (b *Backend) openSession() (*session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	client := resty.NewWithClient(&http.Client{
		Transport: b.client.GetClient().Transport,
		Jar:       jar,
	})

	return &session{
		client: client,
	}, nil
}

func do(ctx context.Context, client *resty.Client, req *backend.Request) (*backend.Response, error) {
	cancel := func() {}
	if req.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
	}

	r := client.R().SetContext(ctx)
	r.Header = req.Header
	if req.Body != nil {
		r.SetBody(req.Body)
	}
	if req.Stream {
		r.SetDoNotParseResponse(true)
	}

	rresp, err := r.Execute(req.Method, req.URL.String())
	if err != nil {
		cancel()
		return nil, err
	}

	if req.Stream {
		return &backend.Response{
			StatusCode: rresp.StatusCode(),
			Status:     rresp.Status(),
			Header:     rresp.Header(),
			Body: cancelReadCloser{
				ReadCloser: rresp.RawBody(),
				cancel:     cancel,
			},
			Underlying: rresp,
		}, nil
	}

	// resty buffers non-streamed bodies before Execute returns.
	cancel()
	return backend.NewBufferedResponse(
		rresp.StatusCode(),
		rresp.Status(),
		rresp.Header(),
		rresp.Body(),
		rresp,
	), nil
}

func doAsync(ctx context.Context, client *resty.Client, req *backend.Request) <-chan backend.Result {
	ch := make(chan backend.Result, 1)
	go func() {
		var resp *backend.Response
		var err error

		recovered := panics.Try(func() {
			resp, err = do(ctx, client, req)
		})
		if recovered != nil {
			err = recovered.AsError()
		}

		ch <- backend.Result{
			Response: resp,
			Err:      err,
		}
	}()
	return ch
}

// cancelReadCloser releases the request's timeout context when a
// streamed body is closed.
type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (rc cancelReadCloser) Close() error {
	defer rc.cancel()
	return rc.ReadCloser.Close()
}

type session struct {
	client *resty.Client
	closed atomic.Bool
}

func (s *session) Do(ctx context.Context, req *backend.Request) (*backend.Response, error) {
	if s.closed.Load() {
		return nil, errSessionClosed
	}
	return do(ctx, s.client, req)
}

func (s *session) DoAsync(ctx context.Context, req *backend.Request) <-chan backend.Result {
	if s.closed.Load() {
		ch := make(chan backend.Result, 1)
		ch <- backend.Result{Err: errSessionClosed}
		return ch
	}
	return doAsync(ctx, s.client, req)
}

func (s *session) Unwrap() any {
	return s.client
}

func (s *session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.client.GetClient().CloseIdleConnections()
	return nil
}
