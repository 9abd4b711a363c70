// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package loam

import (
	"context"
	"testing"
	"time"

	"github.com/z5labs/loam/backend"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopHandler(ctx context.Context, resp *backend.Response) (any, error) {
	return nil, nil
}

func TestMethod(t *testing.T) {
	t.Run("panics when no verb is declared", func(t *testing.T) {
		assert.PanicsWithError(t, `loam: loam.Method: method "ListBreeds" declares no HTTP verb`, func() {
			NewResource("dog",
				Method("ListBreeds", Query("limit")),
			)
		})
	})

	t.Run("panics when more than one verb is declared", func(t *testing.T) {
		assert.Panics(t, func() {
			NewResource("dog",
				Method("ListBreeds",
					Get("breeds/list/all"),
					Post("breeds/list/all"),
				),
			)
		})
	})

	t.Run("panics when a body binding is combined with form bindings", func(t *testing.T) {
		assert.Panics(t, func() {
			NewResource("dog",
				Method("CreateBreed",
					Post("breeds"),
					Body("breed"),
					Form("name"),
				),
			)
		})
	})

	t.Run("panics when a body binding is combined with multipart bindings", func(t *testing.T) {
		assert.Panics(t, func() {
			NewResource("dog",
				Method("UploadPhoto",
					Post("breeds/{name}/photo"),
					Body("photo"),
					Part("thumbnail"),
				),
			)
		})
	})

	t.Run("panics when two body bindings are declared", func(t *testing.T) {
		assert.Panics(t, func() {
			NewResource("dog",
				Method("CreateBreed",
					Post("breeds"),
					Body("breed"),
					Body("other"),
				),
			)
		})
	})
}

func TestOn(t *testing.T) {
	t.Run("panics on an invalid status code", func(t *testing.T) {
		assert.Panics(t, func() {
			On(1000, noopHandler)
		})
	})

	t.Run("panics on a nil handler", func(t *testing.T) {
		assert.Panics(t, func() {
			On(200, nil)
		})
	})
}

func TestSerialize(t *testing.T) {
	t.Run("panics on a non-body binding", func(t *testing.T) {
		assert.Panics(t, func() {
			Query("limit", Serialize(func(v any) ([]byte, error) {
				return nil, nil
			}))
		})
	})
}

func TestResource_lookup(t *testing.T) {
	t.Run("finds a method declared on the resource", func(t *testing.T) {
		r := NewResource("dog",
			Method("ListBreeds", Get("breeds/list/all")),
		)

		m, ok := r.lookup("ListBreeds")
		require.True(t, ok)
		assert.Equal(t, "GET", m.verb())
	})

	t.Run("finds an inherited method", func(t *testing.T) {
		base := NewResource("dog",
			Method("ListBreeds", Get("breeds/list/all")),
		)
		derived := Derive(base, "dogv2")

		m, ok := derived.lookup("ListBreeds")
		require.True(t, ok)
		assert.Same(t, base, m.owner)
	})

	t.Run("an override shadows the inherited declaration", func(t *testing.T) {
		base := NewResource("dog",
			Method("ListBreeds", Get("breeds/list/all")),
		)
		derived := Derive(base, "dogv2",
			Method("ListBreeds", Get("v2/breeds")),
		)

		m, ok := derived.lookup("ListBreeds")
		require.True(t, ok)
		assert.Equal(t, "v2/breeds", m.path.String())
		assert.Same(t, derived, m.owner)
	})
}

func TestResolveMethod(t *testing.T) {
	t.Run("endpoint declared on the defining resource applies to inherited methods", func(t *testing.T) {
		a := NewResource("a",
			Endpoint("https://x"),
			Method("Fetch", Get("things/{id}")),
		)
		b := Derive(a, "b")
		c := Derive(b, "c")

		m, ok := c.lookup("Fetch")
		require.True(t, ok)

		res := resolveMethod(c, m)
		assert.Equal(t, "https://x", res.endpoint)
	})

	t.Run("an overriding method with its own endpoint uses that endpoint", func(t *testing.T) {
		a := NewResource("a",
			Endpoint("https://x"),
			Method("Fetch", Get("things/{id}")),
		)
		b := Derive(a, "b")
		c := Derive(b, "c",
			Method("Fetch", Get("things/{id}"), Endpoint("https://y")),
		)

		m, ok := c.lookup("Fetch")
		require.True(t, ok)
		res := resolveMethod(c, m)
		assert.Equal(t, "https://y", res.endpoint)

		// The base declaration keeps its own endpoint.
		bm, ok := b.lookup("Fetch")
		require.True(t, ok)
		bres := resolveMethod(b, bm)
		assert.Equal(t, "https://x", bres.endpoint)
	})

	t.Run("an overriding resource endpoint applies to methods it re-declares", func(t *testing.T) {
		a := NewResource("a",
			Endpoint("https://x"),
			Method("Fetch", Get("things/{id}")),
		)
		c := Derive(a, "c",
			Endpoint("https://y"),
			Method("Fetch", Get("things/{id}")),
		)

		m, ok := c.lookup("Fetch")
		require.True(t, ok)
		res := resolveMethod(c, m)
		assert.Equal(t, "https://y", res.endpoint)
	})

	t.Run("nearest timeout declaration wins", func(t *testing.T) {
		a := NewResource("a",
			Timeout(5*time.Second),
			Method("Fetch", Get("things")),
		)
		b := Derive(a, "b", Timeout(time.Second))

		m, ok := b.lookup("Fetch")
		require.True(t, ok)

		res := resolveMethod(b, m)
		require.True(t, res.hasTimeout)
		assert.Equal(t, time.Second, res.timeout)
	})

	t.Run("method-level timeout beats every resource-level one", func(t *testing.T) {
		a := NewResource("a",
			Timeout(5*time.Second),
			Method("Fetch", Get("things"), Timeout(100*time.Millisecond)),
		)

		m, ok := a.lookup("Fetch")
		require.True(t, ok)

		res := resolveMethod(a, m)
		assert.Equal(t, 100*time.Millisecond, res.timeout)
	})

	t.Run("nearest header declaration wins wholesale", func(t *testing.T) {
		a := NewResource("a",
			Header("X-Api-Version", "1"),
			Header("X-Tenant", "acme"),
			Method("Fetch", Get("things")),
		)
		b := Derive(a, "b",
			Header("X-Api-Version", "2"),
		)

		m, ok := b.lookup("Fetch")
		require.True(t, ok)

		res := resolveMethod(b, m)
		assert.Equal(t, "2", res.header.Get("X-Api-Version"))
		// Header sets do not merge across chain levels.
		assert.Empty(t, res.header.Get("X-Tenant"))
	})

	t.Run("method-level headers shadow resource-level keys", func(t *testing.T) {
		a := NewResource("a",
			Header("X-Api-Version", "1"),
			Header("X-Tenant", "acme"),
			Method("Fetch",
				Get("things"),
				Header("X-Api-Version", "3"),
			),
		)

		m, ok := a.lookup("Fetch")
		require.True(t, ok)

		res := resolveMethod(a, m)
		assert.Equal(t, []string{"3"}, res.header.Values("X-Api-Version"))
		assert.Equal(t, "acme", res.header.Get("X-Tenant"))
	})

	t.Run("method status handlers override resource handlers per status", func(t *testing.T) {
		resourceHandler := func(ctx context.Context, resp *backend.Response) (any, error) {
			return "resource", nil
		}
		methodHandler := func(ctx context.Context, resp *backend.Response) (any, error) {
			return "method", nil
		}

		a := NewResource("a",
			On(404, resourceHandler),
			On(500, resourceHandler),
			Method("Fetch", Get("things"), On(404, methodHandler)),
		)

		m, ok := a.lookup("Fetch")
		require.True(t, ok)

		res := resolveMethod(a, m)

		v, err := res.handlers[404](context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, "method", v)

		v, err = res.handlers[500](context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, "resource", v)
	})
}

func TestResource_methodNames(t *testing.T) {
	t.Run("lists inherited and own methods once each", func(t *testing.T) {
		base := NewResource("base",
			Method("A", Get("a")),
			Method("B", Get("b")),
		)
		derived := Derive(base, "derived",
			Method("B", Get("b2")),
			Method("C", Get("c")),
		)

		assert.Equal(t, []string{"A", "B", "C"}, derived.methodNames())
	})
}
