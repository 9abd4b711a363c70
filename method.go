// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package loam

import (
	"context"
	"net/http"
	"time"

	"github.com/z5labs/loam/backend"
)

// ResponseHandler converts a raw response into the value returned by
// [Client.Call]. Handlers are registered per status code with [On],
// or for every otherwise unhandled status with [OnAny].
type ResponseHandler func(ctx context.Context, resp *backend.Response) (any, error)

// defaults holds the metadata kinds which can be declared both on a
// method and on a resource. Resolution is nearest-definition-wins
// along the derivation chain, see resolve in resource.go.
type defaults struct {
	header     http.Header
	content    string
	accept     string
	handlers   map[int]ResponseHandler
	anyHandler ResponseHandler
	timeout    time.Duration
	hasTimeout bool
	stream     bool
	hasStream  bool
	backend    string
	endpoint   string
}

func (d *defaults) addHeader(key string, values []string) {
	if d.header == nil {
		d.header = make(http.Header)
	}
	for _, v := range values {
		d.header.Add(key, v)
	}
}

func (d *defaults) setHandler(status int, h ResponseHandler) {
	if d.handlers == nil {
		d.handlers = make(map[int]ResponseHandler)
	}
	d.handlers[status] = h
}

// method is the API method descriptor: one HTTP verb, a path template
// and the bindings mapping call arguments into the request.
type method struct {
	defaults

	name  string
	verbs []string
	path  Path

	queries      []Binding
	headerParams []Binding
	forms        []Binding
	parts        []Binding
	body         *Binding

	// owner is the resource the method was registered on. Endpoint
	// resolution starts its chain walk here.
	owner *Resource
}

// MethodOption configures a method declared with [Method].
type MethodOption interface {
	applyMethod(*method)
}

type methodOptionFunc func(*method)

func (f methodOptionFunc) applyMethod(m *method) {
	f(m)
}

// ResourceOption configures a resource created by [NewResource] or
// [Derive].
type ResourceOption interface {
	applyResource(*Resource)
}

type resourceOptionFunc func(*Resource)

func (f resourceOptionFunc) applyResource(r *Resource) {
	f(r)
}

// Option is a configuration option valid at both method and resource
// level, such as [Header], [On] or [Endpoint].
type Option interface {
	MethodOption
	ResourceOption
}

type defaultsOption func(*defaults)

func (f defaultsOption) applyMethod(m *method) {
	f(&m.defaults)
}

func (f defaultsOption) applyResource(r *Resource) {
	f(&r.defaults)
}

func verb(httpMethod, pathTemplate string) MethodOption {
	return methodOptionFunc(func(m *method) {
		m.verbs = append(m.verbs, httpMethod)
		m.path = parsePath(pathTemplate)
	})
}

// Get declares the method as an HTTP GET of the given path template.
// The template may contain "{name}" placeholders which are substituted
// from call arguments, e.g.:
//
//	loam.Method("ListSubBreeds",
//	    loam.Get("breed/{name}/list"),
//	    loam.Query("limit"),
//	)
//
// Exactly one verb option must be present per method.
func Get(pathTemplate string) MethodOption {
	return verb(http.MethodGet, pathTemplate)
}

// Put declares the method as an HTTP PUT of the given path template.
func Put(pathTemplate string) MethodOption {
	return verb(http.MethodPut, pathTemplate)
}

// Post declares the method as an HTTP POST of the given path template.
func Post(pathTemplate string) MethodOption {
	return verb(http.MethodPost, pathTemplate)
}

// Patch declares the method as an HTTP PATCH of the given path template.
func Patch(pathTemplate string) MethodOption {
	return verb(http.MethodPatch, pathTemplate)
}

// Delete declares the method as an HTTP DELETE of the given path template.
func Delete(pathTemplate string) MethodOption {
	return verb(http.MethodDelete, pathTemplate)
}

// Head declares the method as an HTTP HEAD of the given path template.
func Head(pathTemplate string) MethodOption {
	return verb(http.MethodHead, pathTemplate)
}

// Options declares the method as an HTTP OPTIONS of the given path template.
func Options(pathTemplate string) MethodOption {
	return verb(http.MethodOptions, pathTemplate)
}

// Query binds the named call argument to a query parameter.
func Query(arg string, opts ...BindingOption) MethodOption {
	b := newBinding("loam.Query", arg, false, opts...)
	return methodOptionFunc(func(m *method) {
		m.queries = append(m.queries, b)
	})
}

// HeaderParam binds the named call argument to a request header.
// Multiple bindings targeting the same header key accumulate; their
// values are joined with ", " in declaration order.
func HeaderParam(arg string, opts ...BindingOption) MethodOption {
	b := newBinding("loam.HeaderParam", arg, false, opts...)
	return methodOptionFunc(func(m *method) {
		m.headerParams = append(m.headerParams, b)
	})
}

// Form binds the named call argument to a form field. Declaring any
// form binding sets the request content type to
// application/x-www-form-urlencoded unless a [Content] option
// overrides it. Form bindings cannot be combined with [Body].
func Form(arg string, opts ...BindingOption) MethodOption {
	b := newBinding("loam.Form", arg, false, opts...)
	return methodOptionFunc(func(m *method) {
		m.forms = append(m.forms, b)
	})
}

// Part binds the named call argument to one part of a multipart
// request. A string or []byte value becomes a plain part; a [File]
// value becomes a file part. The wire name is the part name. Part
// bindings cannot be combined with [Body].
func Part(arg string, opts ...BindingOption) MethodOption {
	b := newBinding("loam.Part", arg, false, opts...)
	return methodOptionFunc(func(m *method) {
		m.parts = append(m.parts, b)
	})
}

// Body binds the named call argument to the request body. The bound
// value is passed through the [Serialize] function if one is declared;
// otherwise string, []byte and io.Reader values are sent as-is and any
// other value is marshaled as JSON.
func Body(arg string, opts ...BindingOption) MethodOption {
	b := newBinding("loam.Body", arg, true, opts...)
	return methodOptionFunc(func(m *method) {
		if m.body != nil {
			panic(configErrorf("loam.Body", "method declares more than one body binding"))
		}
		m.body = &b
	})
}

// Header declares a static header at method or resource level.
// Repeating Header for the same key at the same level accumulates the
// values; they are joined with ", " in declaration order when the
// request is built. A method-level key shadows the same resource-level
// key entirely.
func Header(key string, values ...string) Option {
	if key == "" {
		panic(configErrorf("loam.Header", "header key must not be empty"))
	}
	return defaultsOption(func(d *defaults) {
		d.addHeader(key, values)
	})
}

// Content sets the Content-Type header.
func Content(contentType string) Option {
	return defaultsOption(func(d *defaults) {
		d.content = contentType
	})
}

// Accept sets the Accept header.
func Accept(contentType string) Option {
	return defaultsOption(func(d *defaults) {
		d.accept = contentType
	})
}

// On registers a [ResponseHandler] for one exact status code. The
// status must be a valid HTTP status code; anything else panics with a
// [ConfigurationError] at declaration time.
func On(status int, h ResponseHandler) Option {
	if status < 100 || status > 599 {
		panic(configErrorf("loam.On", "invalid status code %d", status))
	}
	if h == nil {
		panic(configErrorf("loam.On", "handler must not be nil"))
	}
	return defaultsOption(func(d *defaults) {
		d.setHandler(status, h)
	})
}

// OnAny registers a [ResponseHandler] consulted for any status code
// without an exact [On] handler.
func OnAny(h ResponseHandler) Option {
	if h == nil {
		panic(configErrorf("loam.OnAny", "handler must not be nil"))
	}
	return defaultsOption(func(d *defaults) {
		d.anyHandler = h
	})
}

// Endpoint declares the base URL requests are issued against. At
// resource level it applies to every method defined on that resource;
// at method level it applies to that method only. See [Derive] for how
// endpoints resolve across a derivation chain.
func Endpoint(url string) Option {
	return defaultsOption(func(d *defaults) {
		d.endpoint = url
	})
}

// Timeout declares the default request timeout. A per-call
// [WithTimeout] takes precedence.
func Timeout(d time.Duration) Option {
	return defaultsOption(func(ds *defaults) {
		ds.timeout = d
		ds.hasTimeout = true
	})
}

// Stream declares that responses should be handed back with their body
// unread, for incremental consumption.
func Stream() Option {
	return defaultsOption(func(d *defaults) {
		d.stream = true
		d.hasStream = true
	})
}

// Backend declares the name of the backend used to execute requests.
func Backend(name string) Option {
	return defaultsOption(func(d *defaults) {
		d.backend = name
	})
}

func (m *method) validate() {
	if len(m.verbs) == 0 {
		panic(configErrorf("loam.Method", "method %q declares no HTTP verb", m.name))
	}
	if len(m.verbs) > 1 {
		panic(configErrorf("loam.Method", "method %q declares %d HTTP verbs", m.name, len(m.verbs)))
	}
	if m.body != nil && (len(m.forms) > 0 || len(m.parts) > 0) {
		panic(configErrorf("loam.Method", "method %q combines a body binding with form or multipart bindings", m.name))
	}
}

func (m *method) verb() string {
	return m.verbs[0]
}
