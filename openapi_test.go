// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package loam

import (
	"context"
	"testing"

	"github.com/z5labs/loam/backend"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swaggest/openapi-go/openapi3"
)

func TestSpecOf(t *testing.T) {
	t.Run("renders one operation per declared method", func(t *testing.T) {
		dog := NewResource("dog",
			Endpoint("https://dog.ceo/api"),
			Method("ListBreeds", Get("breeds/list/all")),
			Method("ListSubBreeds",
				Get("breed/{name}/list"),
				Query("limit"),
			),
		)

		spec, err := SpecOf("Dog API", "1.0.0", dog)
		require.NoError(t, err)

		assert.Equal(t, "Dog API", spec.Info.Title)
		assert.Equal(t, "1.0.0", spec.Info.Version)

		require.Contains(t, spec.Paths.MapOfPathItemValues, "/breeds/list/all")
		require.Contains(t, spec.Paths.MapOfPathItemValues, "/breed/{name}/list")

		item := spec.Paths.MapOfPathItemValues["/breed/{name}/list"]
		op, ok := item.MapOfOperationValues["get"]
		require.True(t, ok)

		require.NotNil(t, op.ID)
		assert.Equal(t, "ListSubBreeds", *op.ID)
		assert.Equal(t, []string{"dog"}, op.Tags)
	})

	t.Run("path placeholders become required path parameters", func(t *testing.T) {
		dog := NewResource("dog",
			Method("ListSubBreeds", Get("breed/{name}/list")),
		)

		spec, err := SpecOf("Dog API", "1.0.0", dog)
		require.NoError(t, err)

		item := spec.Paths.MapOfPathItemValues["/breed/{name}/list"]
		op := item.MapOfOperationValues["get"]
		require.Len(t, op.Parameters, 1)

		p := op.Parameters[0].Parameter
		require.NotNil(t, p)
		assert.Equal(t, "name", p.Name)
		assert.Equal(t, openapi3.ParameterInPath, p.In)
		require.NotNil(t, p.Required)
		assert.True(t, *p.Required)
	})

	t.Run("query and header bindings become parameters under their wire names", func(t *testing.T) {
		svc := NewResource("svc",
			Method("Search",
				Get("search"),
				Query("pageSize", As("page_size")),
				HeaderParam("trace", As("X-Trace")),
			),
		)

		spec, err := SpecOf("API", "1.0.0", svc)
		require.NoError(t, err)

		op := spec.Paths.MapOfPathItemValues["/search"].MapOfOperationValues["get"]
		require.Len(t, op.Parameters, 2)

		q := op.Parameters[0].Parameter
		require.NotNil(t, q)
		assert.Equal(t, "page_size", q.Name)
		assert.Equal(t, openapi3.ParameterInQuery, q.In)

		h := op.Parameters[1].Parameter
		require.NotNil(t, h)
		assert.Equal(t, "X-Trace", h.Name)
		assert.Equal(t, openapi3.ParameterInHeader, h.In)
	})

	t.Run("body bindings with a schema sample produce a json request body", func(t *testing.T) {
		type breed struct {
			Name string `json:"name"`
		}

		svc := NewResource("svc",
			Method("Create",
				Post("breeds"),
				Body("breed", Schema(breed{})),
			),
		)

		spec, err := SpecOf("API", "1.0.0", svc)
		require.NoError(t, err)

		op := spec.Paths.MapOfPathItemValues["/breeds"].MapOfOperationValues["post"]
		require.NotNil(t, op.RequestBody)
		require.NotNil(t, op.RequestBody.RequestBody)

		content := op.RequestBody.RequestBody.Content
		require.Contains(t, content, "application/json")
		assert.NotNil(t, content["application/json"].Schema)
	})

	t.Run("form bindings produce an urlencoded request body", func(t *testing.T) {
		svc := NewResource("svc",
			Method("Create",
				Post("things"),
				Form("name"),
			),
		)

		spec, err := SpecOf("API", "1.0.0", svc)
		require.NoError(t, err)

		op := spec.Paths.MapOfPathItemValues["/things"].MapOfOperationValues["post"]
		require.NotNil(t, op.RequestBody)
		assert.Contains(t, op.RequestBody.RequestBody.Content, "application/x-www-form-urlencoded")
	})

	t.Run("multipart bindings produce a multipart request body", func(t *testing.T) {
		svc := NewResource("svc",
			Method("Upload",
				Post("things"),
				Part("photo"),
			),
		)

		spec, err := SpecOf("API", "1.0.0", svc)
		require.NoError(t, err)

		op := spec.Paths.MapOfPathItemValues["/things"].MapOfOperationValues["post"]
		require.NotNil(t, op.RequestBody)
		assert.Contains(t, op.RequestBody.RequestBody.Content, "multipart/form-data")
	})

	t.Run("status handlers contribute response entries", func(t *testing.T) {
		svc := NewResource("svc",
			Method("Fetch",
				Get("things"),
				On(404, func(ctx context.Context, resp *backend.Response) (any, error) {
					return nil, nil
				}),
				OnAny(func(ctx context.Context, resp *backend.Response) (any, error) {
					return nil, nil
				}),
			),
		)

		spec, err := SpecOf("API", "1.0.0", svc)
		require.NoError(t, err)

		op := spec.Paths.MapOfPathItemValues["/things"].MapOfOperationValues["get"]
		responses := op.Responses.MapOfResponseOrRefValues
		assert.Contains(t, responses, "200")
		assert.Contains(t, responses, "404")
		assert.NotNil(t, op.Responses.Default)
	})

	t.Run("inherited methods appear on the derived surface", func(t *testing.T) {
		base := NewResource("base",
			Method("A", Get("a")),
		)
		derived := Derive(base, "derived",
			Method("B", Get("b")),
		)

		spec, err := SpecOf("API", "1.0.0", derived)
		require.NoError(t, err)

		assert.Contains(t, spec.Paths.MapOfPathItemValues, "/a")
		assert.Contains(t, spec.Paths.MapOfPathItemValues, "/b")
	})
}
