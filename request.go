// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package loam

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/z5labs/loam/backend"
)

// File is the value bound to a [Part] binding when the part should be
// transmitted as a file upload rather than a plain field.
type File struct {
	// Name is the filename reported in the part's Content-Disposition.
	Name string

	// Content provides the file body.
	Content io.Reader

	// ContentType optionally sets the part's own Content-Type.
	ContentType string
}

// CallOptions holds the per-call arguments and overrides applied to a
// single [Client.Call] or [Client.Go] invocation.
type CallOptions struct {
	args map[string]any

	query    map[string]any
	hasQuery bool

	header http.Header

	content string
	accept  string

	body    any
	hasBody bool

	form    map[string]any
	hasForm bool

	parts    map[string]any
	hasParts bool

	handlers   map[int]ResponseHandler
	anyHandler ResponseHandler

	timeout    time.Duration
	hasTimeout bool

	stream    bool
	hasStream bool

	backendName string
	auth        Authorizer

	session      backend.Session
	asyncSession backend.AsyncSession
}

// CallOption customizes one call. Options named after a metadata kind
// ([WithQuery], [WithBody], [WithTimeout], ...) override the declared
// metadata of that kind for the single call.
type CallOption func(*CallOptions)

// Arg supplies one named call argument. Arguments feed path parameter
// substitution and the declared bindings.
func Arg(name string, value any) CallOption {
	return func(co *CallOptions) {
		if co.args == nil {
			co.args = make(map[string]any)
		}
		co.args[name] = value
	}
}

// Args supplies several named call arguments at once.
func Args(args map[string]any) CallOption {
	return func(co *CallOptions) {
		if co.args == nil {
			co.args = make(map[string]any, len(args))
		}
		for name, value := range args {
			co.args[name] = value
		}
	}
}

// WithQuery replaces all declared query bindings for this call with
// the given wire-name to value mapping.
func WithQuery(query map[string]any) CallOption {
	return func(co *CallOptions) {
		co.query = query
		co.hasQuery = true
	}
}

// WithHeader overlays the given headers onto the declared ones for
// this call. Keys present in h replace the declared key entirely.
func WithHeader(h http.Header) CallOption {
	return func(co *CallOptions) {
		if co.header == nil {
			co.header = make(http.Header, len(h))
		}
		for k, vs := range h {
			co.header[textproto.CanonicalMIMEHeaderKey(k)] = append([]string(nil), vs...)
		}
	}
}

// WithContent overrides the Content-Type header for this call.
func WithContent(contentType string) CallOption {
	return func(co *CallOptions) {
		co.content = contentType
	}
}

// WithAccept overrides the Accept header for this call.
func WithAccept(contentType string) CallOption {
	return func(co *CallOptions) {
		co.accept = contentType
	}
}

// WithBody overrides the request payload for this call, bypassing any
// declared body, form or multipart bindings.
func WithBody(v any) CallOption {
	return func(co *CallOptions) {
		co.body = v
		co.hasBody = true
	}
}

// WithForm replaces all declared form bindings for this call.
func WithForm(form map[string]any) CallOption {
	return func(co *CallOptions) {
		co.form = form
		co.hasForm = true
	}
}

// WithMultipart replaces all declared multipart bindings for this
// call. Map keys are part names; values follow the [Part] conventions.
func WithMultipart(parts map[string]any) CallOption {
	return func(co *CallOptions) {
		co.parts = parts
		co.hasParts = true
	}
}

// WithOn overrides the handler for one status code for this call.
func WithOn(status int, h ResponseHandler) CallOption {
	return func(co *CallOptions) {
		if co.handlers == nil {
			co.handlers = make(map[int]ResponseHandler)
		}
		co.handlers[status] = h
	}
}

// WithOnAny overrides the any-status handler for this call.
func WithOnAny(h ResponseHandler) CallOption {
	return func(co *CallOptions) {
		co.anyHandler = h
	}
}

// WithTimeout overrides the request timeout for this call.
func WithTimeout(d time.Duration) CallOption {
	return func(co *CallOptions) {
		co.timeout = d
		co.hasTimeout = true
	}
}

// WithStream overrides the stream flag for this call.
func WithStream(stream bool) CallOption {
	return func(co *CallOptions) {
		co.stream = stream
		co.hasStream = true
	}
}

// WithBackend selects the backend for this call by name.
func WithBackend(name string) CallOption {
	return func(co *CallOptions) {
		co.backendName = name
	}
}

// WithAuth overrides the authorizer for this call.
func WithAuth(a Authorizer) CallOption {
	return func(co *CallOptions) {
		co.auth = a
	}
}

func evalCallOptions(opts []CallOption) *CallOptions {
	co := &CallOptions{}
	for _, opt := range opts {
		opt(co)
	}
	return co
}

const (
	contentTypeJSON = "application/json"
	contentTypeForm = "application/x-www-form-urlencoded"
)

// buildRequest binds the call arguments into the resolved method
// metadata and produces the wire-neutral request descriptor.
func buildRequest(res *resolved, co *CallOptions, clientEndpoint string, auth Authorizer, clientTimeout time.Duration, requestID bool) (*backend.Request, error) {
	const op = "loam.Client.Call"

	m := res.m

	endpoint := clientEndpoint
	if endpoint == "" {
		endpoint = res.endpoint
	}
	if endpoint == "" {
		return nil, configErrorf(op, "no endpoint declared for method %q", m.name)
	}

	reqPath, err := m.path.render(func(name string) (string, bool) {
		if v, ok := co.args[name]; ok {
			return formatValue(v), true
		}
		if v, ok := m.argDefault(name); ok {
			return formatValue(v), true
		}
		return "", false
	})
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(strings.TrimSuffix(endpoint, "/") + "/" + reqPath)
	if err != nil {
		return nil, configErrorf(op, "invalid endpoint %q: %v", endpoint, err)
	}

	query := u.Query()
	if co.hasQuery {
		for wire, v := range co.query {
			addValue(query, wire, v)
		}
	} else {
		for _, b := range m.queries {
			v, ok := b.value(co.args)
			if !ok {
				continue
			}
			addValue(query, b.wire, v)
		}
	}
	u.RawQuery = query.Encode()

	header := mergeHeaders(res.header, nil)
	for _, b := range m.headerParams {
		v, ok := b.value(co.args)
		if !ok {
			continue
		}
		header.Add(b.wire, formatValue(v))
	}

	contentExplicit := res.content != ""
	if res.content != "" {
		header.Set("Content-Type", res.content)
	}
	if res.accept != "" {
		header.Set("Accept", res.accept)
	}
	if co.content != "" {
		header.Set("Content-Type", co.content)
		contentExplicit = true
	}
	if co.accept != "" {
		header.Set("Accept", co.accept)
	}
	for k, vs := range co.header {
		header[k] = append([]string(nil), vs...)
	}

	body, multipartType, err := buildPayload(m, co, header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}

	switch {
	case multipartType != "":
		header.Set("Content-Type", multipartType)
	case payloadIsForm(m, co):
		if !contentExplicit {
			header.Set("Content-Type", contentTypeForm)
		}
	default:
		if header.Get("Content-Type") == "" {
			header.Set("Content-Type", contentTypeJSON)
		}
	}
	if header.Get("Accept") == "" {
		header.Set("Accept", contentTypeJSON)
	}

	// Multi-valued keys join with ", " in declaration order, per the
	// Accept header convention.
	for k, vs := range header {
		if len(vs) > 1 {
			header[k] = []string{strings.Join(vs, ", ")}
		}
	}

	if requestID && header.Get("X-Request-Id") == "" {
		header.Set("X-Request-Id", uuid.NewString())
	}

	timeout := clientTimeout
	if res.hasTimeout {
		timeout = res.timeout
	}
	if co.hasTimeout {
		timeout = co.timeout
	}

	stream := res.stream
	if co.hasStream {
		stream = co.stream
	}

	req := &backend.Request{
		Method:  m.verb(),
		URL:     u,
		Header:  header,
		Body:    body,
		Timeout: timeout,
		Stream:  stream,
	}

	if auth != nil {
		if err := auth.AuthorizeRequest(req); err != nil {
			return nil, err
		}
	}

	return req, nil
}

// argDefault finds a declared default for the named argument across
// all of the method's bindings, so path parameters can fall back to a
// binding default the same way query or form fields do.
func (m *method) argDefault(name string) (any, bool) {
	for _, bs := range [][]Binding{m.queries, m.headerParams, m.forms, m.parts} {
		for _, b := range bs {
			if b.arg == name && b.hasDefault {
				return b.defaultValue, true
			}
		}
	}
	if m.body != nil && m.body.arg == name && m.body.hasDefault {
		return m.body.defaultValue, true
	}
	return nil, false
}

func payloadIsForm(m *method, co *CallOptions) bool {
	if co.hasBody || co.hasParts {
		return false
	}
	return co.hasForm || len(m.forms) > 0
}

// buildPayload resolves the request body from, in priority order: a
// per-call body override, multipart bindings, form bindings, then the
// declared body binding. It returns the multipart content type when a
// multipart payload was produced.
func buildPayload(m *method, co *CallOptions, contentType string) (io.Reader, string, error) {
	if co.hasBody {
		body, err := encodePayload(co.body)
		return body, "", err
	}

	if co.hasParts || len(m.parts) > 0 {
		return buildMultipart(m, co)
	}

	if co.hasForm || len(m.forms) > 0 {
		vals := make(url.Values)
		if co.hasForm {
			for wire, v := range co.form {
				addValue(vals, wire, v)
			}
		} else {
			for _, b := range m.forms {
				v, ok := b.value(co.args)
				if !ok {
					continue
				}
				addValue(vals, b.wire, v)
			}
		}
		if len(vals) == 0 {
			return nil, "", nil
		}
		return strings.NewReader(vals.Encode()), "", nil
	}

	if m.body == nil {
		return nil, "", nil
	}

	v, ok := m.body.value(co.args)
	if !ok {
		return nil, "", nil
	}
	if m.body.serialize != nil {
		b, err := m.body.serialize(v)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(b), "", nil
	}

	body, err := encodePayload(v)
	return body, "", err
}

// encodePayload turns an arbitrary body value into an io.Reader.
// Readers, byte slices and strings pass through untouched; anything
// else is marshaled as JSON.
func encodePayload(v any) (io.Reader, error) {
	switch tv := v.(type) {
	case nil:
		return nil, nil
	case io.Reader:
		return tv, nil
	case []byte:
		return bytes.NewReader(tv), nil
	case string:
		return strings.NewReader(tv), nil
	default:
		b, err := json.Marshal(tv)
		if err != nil {
			return nil, err
		}
		return bytes.NewReader(b), nil
	}
}

type partEntry struct {
	name  string
	value any
}

func buildMultipart(m *method, co *CallOptions) (io.Reader, string, error) {
	var entries []partEntry
	if co.hasParts {
		names := make([]string, 0, len(co.parts))
		for name := range co.parts {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			entries = append(entries, partEntry{name: name, value: co.parts[name]})
		}
	} else {
		for _, b := range m.parts {
			v, ok := b.value(co.args)
			if !ok {
				continue
			}
			entries = append(entries, partEntry{name: b.wire, value: v})
		}
	}

	if len(entries) == 0 {
		return nil, "", nil
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, entry := range entries {
		if err := writePart(w, entry.name, entry.value); err != nil {
			w.Close()
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}

	return &buf, w.FormDataContentType(), nil
}

func writePart(w *multipart.Writer, name string, value any) error {
	switch v := value.(type) {
	case File:
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, name, v.Name))
		if v.ContentType != "" {
			h.Set("Content-Type", v.ContentType)
		}
		pw, err := w.CreatePart(h)
		if err != nil {
			return err
		}
		_, err = io.Copy(pw, v.Content)
		return err
	case []byte:
		return w.WriteField(name, string(v))
	default:
		return w.WriteField(name, formatValue(v))
	}
}

// addValue appends v to vals under key. Slice values become repeated
// parameters.
func addValue(vals url.Values, key string, v any) {
	switch tv := v.(type) {
	case []string:
		for _, s := range tv {
			vals.Add(key, s)
		}
	case []any:
		for _, el := range tv {
			vals.Add(key, formatValue(el))
		}
	default:
		vals.Add(key, formatValue(v))
	}
}

func formatValue(v any) string {
	switch tv := v.(type) {
	case string:
		return tv
	case []byte:
		return string(tv)
	case fmt.Stringer:
		return tv.String()
	default:
		return fmt.Sprint(tv)
	}
}
