// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package backend defines the transport capability surface which all
// HTTP backends must implement in order to execute requests built by
// the loam root package.
//
// Backends are registered under a unique name, in the same style as
// [database/sql] drivers, and are selected at call time by that name:
//
//	import _ "github.com/z5labs/loam/backend/restybackend"
//
//	client := loam.New(loam.WithBackend("resty"))
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"
)

// Request is a fully assembled, wire-neutral HTTP request descriptor.
// The loam request builder produces one per call and hands it to the
// selected [Backend]. Query parameters are already encoded into URL.
type Request struct {
	// Method is the HTTP verb, e.g. http.MethodGet.
	Method string

	// URL is the fully resolved request URL, including query parameters.
	URL *url.URL

	// Header holds the merged request headers. Multi-valued keys have
	// already been joined with ", " by the request builder.
	Header http.Header

	// Body is the request payload. It is nil when the request carries
	// no body.
	Body io.Reader

	// Timeout bounds the entire request, including reading the
	// response body. Zero means the backend's own default applies.
	Timeout time.Duration

	// Stream indicates the response body should be left unread so the
	// caller can consume it incrementally.
	Stream bool
}

// Response is a wire-neutral HTTP response. All backends translate
// their library-specific response object into this form, keeping the
// rest of loam backend-agnostic.
type Response struct {
	// StatusCode is the numeric HTTP status, e.g. 200.
	StatusCode int

	// Status is the full status line, e.g. "200 OK".
	Status string

	// Header holds the response headers.
	Header http.Header

	// Body is the raw response body. For non-streamed calls prefer
	// [Response.Bytes], [Response.Text] or [Response.JSON] which read
	// and close it exactly once.
	Body io.ReadCloser

	// Underlying is the backend library's own response object, exposed
	// for advanced inspection. Its concrete type depends on the
	// backend, e.g. *http.Response or *resty.Response.
	Underlying any

	mu   sync.Mutex
	buf  []byte
	read bool
}

// Bytes reads the response body to completion, closes it and returns
// the raw bytes. Subsequent calls return the buffered bytes.
func (r *Response) Bytes() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.read {
		return r.buf, nil
	}
	if r.Body == nil {
		r.read = true
		return nil, nil
	}

	b, err := io.ReadAll(r.Body)
	if err != nil {
		r.Body.Close()
		return nil, err
	}
	if err := r.Body.Close(); err != nil {
		return nil, err
	}

	r.buf = b
	r.read = true
	return b, nil
}

// Text returns the response body as a string. See [Response.Bytes].
func (r *Response) Text() (string, error) {
	b, err := r.Bytes()
	return string(b), err
}

// JSON decodes the response body into v. See [Response.Bytes].
func (r *Response) JSON(v any) error {
	b, err := r.Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// Close releases the response body. It is safe to call after the body
// has already been fully read.
func (r *Response) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.read || r.Body == nil {
		return nil
	}
	r.read = true
	return r.Body.Close()
}

// NewBufferedResponse returns a [Response] whose body is served from b.
// It is intended for backends which buffer response bodies themselves
// and for tests.
func NewBufferedResponse(statusCode int, status string, header http.Header, b []byte, underlying any) *Response {
	return &Response{
		StatusCode: statusCode,
		Status:     status,
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader(b)),
		Underlying: underlying,
	}
}

// Result pairs a [Response] with the transport error, if any, of an
// asynchronously executed request.
type Result struct {
	Response *Response
	Err      error
}

// Backend executes assembled requests through a concrete HTTP client
// library. Implementations must be safe for concurrent use.
type Backend interface {
	// Name reports the identifier the backend registers under.
	Name() string

	// Do executes the request and blocks until the response headers
	// have been received. For non-streamed requests implementations
	// may buffer the body before returning.
	Do(ctx context.Context, req *Request) (*Response, error)

	// OpenSession returns a new connection-reusing session. The
	// session is bound to this backend and must be closed by the
	// caller.
	OpenSession(ctx context.Context) (Session, error)
}

// Session is a connection-reuse wrapper around one underlying backend
// session object, e.g. a dedicated *http.Client with a cookie jar. A
// Session is not reusable after Close.
type Session interface {
	Do(ctx context.Context, req *Request) (*Response, error)

	// Unwrap exposes the backend library's session object for advanced
	// customization, e.g. TLS settings.
	Unwrap() any

	Close() error
}

// AsyncBackend is implemented by backends capable of executing
// requests without blocking the caller.
type AsyncBackend interface {
	Backend

	// DoAsync starts the request and returns a channel which receives
	// exactly one [Result] once the exchange completes.
	DoAsync(ctx context.Context, req *Request) <-chan Result

	// OpenAsyncSession returns a new session supporting asynchronous
	// execution.
	OpenAsyncSession(ctx context.Context) (AsyncSession, error)
}

// AsyncSession is the asynchronous counterpart of [Session].
type AsyncSession interface {
	DoAsync(ctx context.Context, req *Request) <-chan Result

	Unwrap() any

	Close() error
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Backend)
)

// Register makes a backend available for selection by name. It panics
// if b is nil or a backend is already registered under the same name.
// Register is typically called from an adapter package's init func.
func Register(b Backend) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if b == nil {
		panic("backend: Register backend is nil")
	}
	name := b.Name()
	if name == "" {
		panic("backend: Register backend has empty name")
	}
	if _, dup := registry[name]; dup {
		panic("backend: Register called twice for backend " + name)
	}
	registry[name] = b
}

// Lookup returns the backend registered under name.
func Lookup(name string) (Backend, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	b, ok := registry[name]
	return b, ok
}

// Names returns the sorted names of all registered backends.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
