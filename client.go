// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package loam

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/z5labs/loam/backend"
	"github.com/z5labs/loam/internal/cache"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	// The default backend is always available.
	_ "github.com/z5labs/loam/backend/httpbackend"
)

// DefaultBackend is the name of the backend used when none is
// selected: the net/http adapter.
const DefaultBackend = "http"

// Client executes the API methods declared on its composed resources.
// A Client is bound to at most one endpoint override, one backend, one
// authorizer and one default timeout, and is safe for concurrent use.
type Client struct {
	resources []*Resource

	mu          sync.RWMutex
	endpoint    string
	backendName string
	backendInst backend.Backend
	auth        Authorizer

	timeout   time.Duration
	requestID bool

	log    *slog.Logger
	tracer trace.Tracer

	resolved *cache.Map[string, *resolved]
}

// ClientOption configures a [Client] during [New].
type ClientOption func(*Client)

// Use composes one or more resources into the client's API surface.
// Method names are looked up in composition order; the first resource
// declaring a name wins.
func Use(resources ...*Resource) ClientOption {
	return func(c *Client) {
		c.resources = append(c.resources, resources...)
	}
}

// WithEndpoint overrides every declared endpoint for this client.
func WithEndpoint(url string) ClientOption {
	return func(c *Client) {
		c.endpoint = url
	}
}

// WithBackend selects the default backend for this client by
// registered name. An unknown name surfaces as a [ConfigurationError]
// on first call.
func WithBackend(name string) ClientOption {
	return func(c *Client) {
		c.backendName = name
	}
}

// UseBackend selects a backend instance directly, bypassing the
// registry. Useful for backends with non-default configuration.
func UseBackend(b backend.Backend) ClientOption {
	return func(c *Client) {
		c.backendInst = b
	}
}

// WithAuth sets the authorizer applied to every call.
func WithAuth(a Authorizer) ClientOption {
	return func(c *Client) {
		c.auth = a
	}
}

// WithTimeout sets the client-wide default request timeout. Declared
// [Timeout] options and per-call [WithTimeout] take precedence.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the logger used for request debug logging.
func WithLogger(log *slog.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// WithRequestID adds a unique X-Request-Id header to every request
// which does not already carry one.
func WithRequestID() ClientOption {
	return func(c *Client) {
		c.requestID = true
	}
}

// WithTracerProvider sets the [trace.TracerProvider] used to trace
// calls. The global provider is used by default.
func WithTracerProvider(tp trace.TracerProvider) ClientOption {
	return func(c *Client) {
		c.tracer = tp.Tracer(instrumentationName)
	}
}

const instrumentationName = "github.com/z5labs/loam"

// New initializes a [Client].
func New(opts ...ClientOption) *Client {
	c := &Client{
		log:      Logger(instrumentationName),
		tracer:   otel.Tracer(instrumentationName),
		resolved: cache.New[string, *resolved](),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetEndpoint changes the client's endpoint override.
func (c *Client) SetEndpoint(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endpoint = url
}

// SetAuth changes the client's authorizer.
func (c *Client) SetAuth(a Authorizer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.auth = a
}

// SetBackend changes the client's backend by registered name.
func (c *Client) SetBackend(name string) error {
	if _, ok := backend.Lookup(name); !ok {
		return configErrorf("loam.Client.SetBackend", "unknown backend %q (registered: %v)", name, backend.Names())
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.backendName = name
	c.backendInst = nil
	return nil
}

// Call invokes the named declared method synchronously. The result is
// the value produced by the matching status handler, or by the default
// response policy when no handler matched.
func (c *Client) Call(ctx context.Context, name string, opts ...CallOption) (any, error) {
	return c.call(ctx, name, evalCallOptions(opts))
}

func (c *Client) call(ctx context.Context, name string, co *CallOptions) (any, error) {
	res, req, b, err := c.prepare(name, co)
	if err != nil {
		return nil, err
	}

	ctx, span := c.tracer.Start(ctx, "Client.Call", trace.WithAttributes(
		attribute.String("loam.method", name),
		attribute.String("http.request.method", req.Method),
		attribute.String("url.full", req.URL.String()),
		attribute.String("loam.backend", b.Name()),
	))
	defer span.End()

	c.log.DebugContext(ctx, "dispatching request",
		slog.String("method", name),
		slog.String("verb", req.Method),
		slog.String("url", req.URL.String()),
		slog.String("backend", b.Name()),
	)

	var resp *backend.Response
	if co.session != nil {
		resp, err = co.session.Do(ctx, req)
	} else {
		resp, err = b.Do(ctx, req)
	}
	if err != nil {
		span.RecordError(err)
		return nil, &HTTPError{Cause: err}
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	return mapResponse(ctx, res, co, req, resp, req.Stream)
}

// AsyncCall is an in-flight asynchronous invocation started with
// [Client.Go].
type AsyncCall struct {
	done  chan struct{}
	value any
	err   error
}

// Done returns a channel which is closed once the call has completed.
func (a *AsyncCall) Done() <-chan struct{} {
	return a.done
}

// Await blocks until the call completes or ctx is done, and returns
// the call result.
func (a *AsyncCall) Await(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-a.done:
		return a.value, a.err
	}
}

// Go invokes the named declared method asynchronously. The selected
// backend must support asynchronous execution; a backend without that
// capability yields a [ConfigurationError] rather than silently
// executing synchronously.
func (c *Client) Go(ctx context.Context, name string, opts ...CallOption) (*AsyncCall, error) {
	co := evalCallOptions(opts)

	res, req, b, err := c.prepare(name, co)
	if err != nil {
		return nil, err
	}

	var ch <-chan backend.Result
	if co.asyncSession != nil {
		ch = co.asyncSession.DoAsync(ctx, req)
	} else {
		ab, ok := b.(backend.AsyncBackend)
		if !ok {
			return nil, configErrorf("loam.Client.Go", "backend %q does not support asynchronous calls", b.Name())
		}
		ch = ab.DoAsync(ctx, req)
	}

	ctx, span := c.tracer.Start(ctx, "Client.Go", trace.WithAttributes(
		attribute.String("loam.method", name),
		attribute.String("http.request.method", req.Method),
		attribute.String("url.full", req.URL.String()),
		attribute.String("loam.backend", b.Name()),
	))

	ac := &AsyncCall{
		done: make(chan struct{}),
	}
	go func() {
		defer close(ac.done)
		defer span.End()

		result := <-ch
		if result.Err != nil {
			span.RecordError(result.Err)
			ac.err = &HTTPError{
				Cause:    result.Err,
				Response: result.Response,
			}
			return
		}

		span.SetAttributes(attribute.Int("http.response.status_code", result.Response.StatusCode))
		ac.value, ac.err = mapResponse(ctx, res, co, req, result.Response, req.Stream)
	}()

	return ac, nil
}

// prepare resolves the method metadata, builds the request and selects
// the backend for one call.
func (c *Client) prepare(name string, co *CallOptions) (*resolved, *backend.Request, backend.Backend, error) {
	res, err := c.resolve(name)
	if err != nil {
		return nil, nil, nil, err
	}

	c.mu.RLock()
	endpoint := c.endpoint
	auth := c.auth
	c.mu.RUnlock()

	if co.auth != nil {
		auth = co.auth
	}

	req, err := buildRequest(res, co, endpoint, auth, c.timeout, c.requestID)
	if err != nil {
		return nil, nil, nil, err
	}

	b, err := c.selectBackend(co, res)
	if err != nil {
		return nil, nil, nil, err
	}

	return res, req, b, nil
}

func (c *Client) resolve(name string) (*resolved, error) {
	return c.resolved.GetOr(name, func() (*resolved, error) {
		for _, r := range c.resources {
			if m, ok := r.lookup(name); ok {
				return resolveMethod(r, m), nil
			}
		}
		return nil, configErrorf("loam.Client.Call", "no method %q declared on any composed resource", name)
	})
}

// selectBackend picks the backend for one call: per-call override,
// then client configuration, then declared metadata, then the default.
func (c *Client) selectBackend(co *CallOptions, res *resolved) (backend.Backend, error) {
	name := co.backendName

	c.mu.RLock()
	inst := c.backendInst
	clientName := c.backendName
	c.mu.RUnlock()

	if name == "" {
		if inst != nil {
			return inst, nil
		}
		name = clientName
	}
	if name == "" {
		name = res.backendName
	}
	if name == "" {
		name = DefaultBackend
	}

	b, ok := backend.Lookup(name)
	if !ok {
		return nil, configErrorf("loam.Client.Call", "unknown backend %q (registered: %v)", name, backend.Names())
	}
	return b, nil
}
