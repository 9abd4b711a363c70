// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package loam

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"strings"

	"github.com/z5labs/loam/backend"
)

// mapResponse converts a raw response into the call result. Handler
// precedence: exact status handler, then the any-status handler, then
// the default policy. The default policy returns decoded JSON for JSON
// responses, raw bytes for binary ones and text otherwise; an
// unhandled 4xx or 5xx surfaces as a wrapped [HTTPError].
func mapResponse(ctx context.Context, res *resolved, co *CallOptions, req *backend.Request, resp *backend.Response, stream bool) (any, error) {
	if h, ok := co.handlers[resp.StatusCode]; ok {
		return h(ctx, resp)
	}
	if h, ok := res.handlers[resp.StatusCode]; ok {
		return h(ctx, resp)
	}
	if co.anyHandler != nil {
		return co.anyHandler(ctx, resp)
	}
	if res.anyHandler != nil {
		return res.anyHandler(ctx, resp)
	}

	if stream {
		return resp, nil
	}

	if resp.StatusCode >= 400 {
		resp.Close()
		return nil, &HTTPError{
			Cause:    fmt.Errorf("%s %s: unexpected status: %s", req.Method, req.URL, resp.Status),
			Response: resp,
		}
	}

	b, err := resp.Bytes()
	if err != nil {
		return nil, &HTTPError{
			Cause:    err,
			Response: resp,
		}
	}
	if len(b) == 0 {
		return nil, nil
	}

	contentType := resp.Header.Get("Content-Type")
	switch {
	case isJSONType(contentType):
		var v any
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, &HTTPError{
				Cause:    err,
				Response: resp,
			}
		}
		return v, nil
	case isBinaryType(contentType):
		return b, nil
	default:
		return string(b), nil
	}
}

func isJSONType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == contentTypeJSON || strings.HasSuffix(mediaType, "+json")
}

func isBinaryType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/octet-stream"
}

// CallAs invokes a declared method and decodes its result into T.
// Results produced by a status handler or the default policy are
// type-asserted first; otherwise the value is round-tripped through
// JSON into T, and a raw [backend.Response] result is decoded from its
// body.
func CallAs[T any](ctx context.Context, c *Client, name string, opts ...CallOption) (T, error) {
	var out T

	v, err := c.Call(ctx, name, opts...)
	if err != nil {
		return out, err
	}
	if v == nil {
		return out, nil
	}

	if tv, ok := v.(T); ok {
		return tv, nil
	}
	if resp, ok := v.(*backend.Response); ok {
		err := resp.JSON(&out)
		return out, err
	}

	b, err := json.Marshal(v)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(b, &out)
	return out, err
}
