// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package loam

import (
	"net/http"
	"time"
)

// Resource is a named group of API method declarations together with
// group-wide defaults: endpoint, headers, status handlers, timeout and
// backend. It is the declarative analogue of one API fragment.
//
// Resources form single-parent derivation chains via [Derive]. A
// derived resource shadows its base: re-registering a method name
// overrides the inherited declaration, and group-wide defaults
// resolve nearest-definition-first along the chain.
//
// A Resource must be fully declared before it is composed into a
// client; it is immutable afterwards.
type Resource struct {
	defaults

	name    string
	base    *Resource
	methods map[string]*method
	order   []string
}

// NewResource declares a new resource. Declaration mistakes — a method
// without exactly one HTTP verb, a body binding combined with form or
// multipart bindings, an invalid [On] status — panic with a
// [ConfigurationError].
func NewResource(name string, opts ...ResourceOption) *Resource {
	r := &Resource{
		name:    name,
		methods: make(map[string]*method),
	}
	for _, opt := range opts {
		opt.applyResource(r)
	}
	return r
}

// Derive declares a resource extending base. Methods and defaults not
// re-declared on the derived resource are inherited; re-declared ones
// shadow the base entirely.
//
// Endpoints resolve from the defining resource outward: a method
// overridden on the derived resource with its own [Endpoint] uses that
// endpoint, while an inherited method keeps the endpoint nearest to
// the resource which declared it. This lets one composed client span
// API groups hosted on different endpoints.
func Derive(base *Resource, name string, opts ...ResourceOption) *Resource {
	r := NewResource(name, opts...)
	r.base = base
	return r
}

// Method declares an API method on a resource.
//
//	loam.NewResource("dog",
//	    loam.Endpoint("https://dog.ceo/api"),
//	    loam.Method("ListSubBreeds",
//	        loam.Get("breed/{name}/list"),
//	        loam.Query("limit"),
//	    ),
//	)
func Method(name string, opts ...MethodOption) ResourceOption {
	if name == "" {
		panic(configErrorf("loam.Method", "method name must not be empty"))
	}

	return resourceOptionFunc(func(r *Resource) {
		m := &method{
			name:  name,
			owner: r,
		}
		for _, opt := range opts {
			opt.applyMethod(m)
		}
		m.validate()

		if _, exists := r.methods[name]; !exists {
			r.order = append(r.order, name)
		}
		r.methods[name] = m
	})
}

// Name reports the resource name.
func (r *Resource) Name() string {
	return r.name
}

// lookup finds the effective declaration of a method, walking the
// derivation chain most-derived first.
func (r *Resource) lookup(name string) (*method, bool) {
	for cur := r; cur != nil; cur = cur.base {
		if m, ok := cur.methods[name]; ok {
			return m, true
		}
	}
	return nil, false
}

// methodNames returns the names of all methods visible on the chain,
// base declarations first, each name once.
func (r *Resource) methodNames() []string {
	var chain []*Resource
	for cur := r; cur != nil; cur = cur.base {
		chain = append(chain, cur)
	}

	var names []string
	seen := make(map[string]bool)
	for i := len(chain) - 1; i >= 0; i-- {
		for _, name := range chain[i].order {
			if seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// resolved is the effective, merged metadata for one method as seen
// through a particular resource chain. It is computed once per client
// and memoized.
type resolved struct {
	m *method

	endpoint    string
	backendName string

	timeout    time.Duration
	hasTimeout bool
	stream     bool

	content string
	accept  string

	header     http.Header
	handlers   map[int]ResponseHandler
	anyHandler ResponseHandler
}

// resolveMethod merges method-level metadata with the chain's
// defaults. For every kind except endpoint the nearest definition
// wins, walking from the most-derived resource toward the root.
// Endpoint resolution instead starts at the method's defining
// resource, so independently declared API groups keep their own hosts
// when composed.
func resolveMethod(top *Resource, m *method) *resolved {
	res := &resolved{
		m:           m,
		endpoint:    m.defaults.endpoint,
		backendName: m.defaults.backend,
		timeout:     m.defaults.timeout,
		hasTimeout:  m.defaults.hasTimeout,
		stream:      m.defaults.stream,
		content:     m.defaults.content,
		accept:      m.defaults.accept,
	}

	if res.endpoint == "" {
		for cur := m.owner; cur != nil; cur = cur.base {
			if cur.defaults.endpoint != "" {
				res.endpoint = cur.defaults.endpoint
				break
			}
		}
	}

	hasStream := m.defaults.hasStream
	for cur := top; cur != nil; cur = cur.base {
		if res.backendName == "" && cur.defaults.backend != "" {
			res.backendName = cur.defaults.backend
		}
		if !res.hasTimeout && cur.defaults.hasTimeout {
			res.timeout = cur.defaults.timeout
			res.hasTimeout = true
		}
		if !hasStream && cur.defaults.hasStream {
			res.stream = cur.defaults.stream
			hasStream = true
		}
		if res.content == "" && cur.defaults.content != "" {
			res.content = cur.defaults.content
		}
		if res.accept == "" && cur.defaults.accept != "" {
			res.accept = cur.defaults.accept
		}
	}

	res.header = mergeHeaders(nearestHeader(top), m.defaults.header)
	res.handlers, res.anyHandler = mergeHandlers(top, m)

	return res
}

// nearestHeader returns the header set of the most-derived resource
// declaring any headers. Header sets do not merge across chain levels;
// the nearest declaration wins wholesale.
func nearestHeader(top *Resource) http.Header {
	for cur := top; cur != nil; cur = cur.base {
		if len(cur.defaults.header) > 0 {
			return cur.defaults.header
		}
	}
	return nil
}

// mergeHeaders overlays method-level headers onto resource-level ones.
// A method-level key replaces the resource-level key entirely;
// accumulation only happens within one declaration scope.
func mergeHeaders(resource, method http.Header) http.Header {
	merged := make(http.Header, len(resource)+len(method))
	for k, vs := range resource {
		merged[k] = append([]string(nil), vs...)
	}
	for k, vs := range method {
		merged[k] = append([]string(nil), vs...)
	}
	return merged
}

func mergeHandlers(top *Resource, m *method) (map[int]ResponseHandler, ResponseHandler) {
	var resourceHandlers map[int]ResponseHandler
	for cur := top; cur != nil; cur = cur.base {
		if len(cur.defaults.handlers) > 0 {
			resourceHandlers = cur.defaults.handlers
			break
		}
	}

	merged := make(map[int]ResponseHandler, len(resourceHandlers)+len(m.defaults.handlers))
	for status, h := range resourceHandlers {
		merged[status] = h
	}
	for status, h := range m.defaults.handlers {
		merged[status] = h
	}

	anyHandler := m.defaults.anyHandler
	if anyHandler == nil {
		for cur := top; cur != nil; cur = cur.base {
			if cur.defaults.anyHandler != nil {
				anyHandler = cur.defaults.anyHandler
				break
			}
		}
	}

	return merged, anyHandler
}
