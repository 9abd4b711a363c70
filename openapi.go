// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package loam

import (
	"net/http"
	"strconv"

	"github.com/swaggest/jsonschema-go"
	"github.com/swaggest/openapi-go/openapi3"
	"github.com/z5labs/sdk-go/ptr"
)

// SpecOf renders the API surface declared by the given resources as an
// OpenAPI 3.0 document. Each visible method becomes one operation,
// tagged with its resource name; path parameters and query/header
// bindings become operation parameters, and body or form bindings with
// a [Schema] sample contribute a reflected request body schema.
//
// The document describes the declared surface only; per-call overrides
// are, by nature, not representable.
func SpecOf(title, version string, resources ...*Resource) (*openapi3.Spec, error) {
	spec := &openapi3.Spec{
		Openapi: "3.0.3",
		Info: openapi3.Info{
			Title:   title,
			Version: version,
		},
	}

	for _, r := range resources {
		for _, name := range r.methodNames() {
			m, ok := r.lookup(name)
			if !ok {
				continue
			}

			op, err := operationOf(r, name, m)
			if err != nil {
				return nil, err
			}

			err = spec.AddOperation(m.verb(), "/"+m.path.String(), op)
			if err != nil {
				return nil, err
			}
		}
	}

	return spec, nil
}

func operationOf(r *Resource, name string, m *method) (openapi3.Operation, error) {
	res := resolveMethod(r, m)

	var op openapi3.Operation
	op.WithID(name)
	op.WithTags(r.name)

	for _, param := range m.path.params() {
		op.Parameters = append(op.Parameters, parameterOf(param, openapi3.ParameterInPath, true, nil))
	}
	for _, b := range m.queries {
		p, err := bindingParameter(b, openapi3.ParameterInQuery)
		if err != nil {
			return op, err
		}
		op.Parameters = append(op.Parameters, p)
	}
	for _, b := range m.headerParams {
		p, err := bindingParameter(b, openapi3.ParameterInHeader)
		if err != nil {
			return op, err
		}
		op.Parameters = append(op.Parameters, p)
	}

	reqBody, err := requestBodyOf(m, res)
	if err != nil {
		return op, err
	}
	op.RequestBody = reqBody

	op.Responses = responsesOf(res)

	return op, nil
}

func bindingParameter(b Binding, in openapi3.ParameterIn) (openapi3.ParameterOrRef, error) {
	var schemaOrRef *openapi3.SchemaOrRef
	if b.schema != nil {
		reflected, err := reflectSchema(b.schema)
		if err != nil {
			return openapi3.ParameterOrRef{}, err
		}
		schemaOrRef = reflected
	}
	return parameterOf(b.wire, in, false, schemaOrRef), nil
}

func parameterOf(name string, in openapi3.ParameterIn, required bool, schemaOrRef *openapi3.SchemaOrRef) openapi3.ParameterOrRef {
	if schemaOrRef == nil {
		schemaType := openapi3.SchemaTypeString
		schemaOrRef = &openapi3.SchemaOrRef{
			Schema: &openapi3.Schema{
				Type: &schemaType,
			},
		}
	}

	p := &openapi3.Parameter{
		Name:   name,
		In:     in,
		Schema: schemaOrRef,
	}
	if required {
		p.Required = ptr.Ref(true)
	}

	return openapi3.ParameterOrRef{
		Parameter: p,
	}
}

func requestBodyOf(m *method, res *resolved) (*openapi3.RequestBodyOrRef, error) {
	contentType := res.content

	var sample any
	switch {
	case m.body != nil:
		if contentType == "" {
			contentType = contentTypeJSON
		}
		sample = m.body.schema
	case len(m.forms) > 0:
		if contentType == "" {
			contentType = contentTypeForm
		}
	case len(m.parts) > 0:
		contentType = "multipart/form-data"
	default:
		return nil, nil
	}

	mediaType := openapi3.MediaType{}
	if sample != nil {
		schemaOrRef, err := reflectSchema(sample)
		if err != nil {
			return nil, err
		}
		mediaType.Schema = schemaOrRef
	}

	return &openapi3.RequestBodyOrRef{
		RequestBody: &openapi3.RequestBody{
			Content: map[string]openapi3.MediaType{
				contentType: mediaType,
			},
		},
	}, nil
}

func responsesOf(res *resolved) openapi3.Responses {
	responses := make(map[string]openapi3.ResponseOrRef)
	responses["200"] = openapi3.ResponseOrRef{
		Response: &openapi3.Response{
			Description: http.StatusText(http.StatusOK),
		},
	}
	for status := range res.handlers {
		responses[strconv.Itoa(status)] = openapi3.ResponseOrRef{
			Response: &openapi3.Response{
				Description: http.StatusText(status),
			},
		}
	}

	out := openapi3.Responses{
		MapOfResponseOrRefValues: responses,
	}
	if res.anyHandler != nil {
		out.Default = &openapi3.ResponseOrRef{
			Response: &openapi3.Response{
				Description: "Handled by the any-status handler",
			},
		}
	}
	return out
}

func reflectSchema(sample any) (*openapi3.SchemaOrRef, error) {
	var reflector jsonschema.Reflector

	jsonSchema, err := reflector.Reflect(sample, jsonschema.InlineRefs)
	if err != nil {
		return nil, err
	}

	var schemaOrRef openapi3.SchemaOrRef
	schemaOrRef.FromJSONSchema(jsonSchema.ToSchemaOrBool())
	return &schemaOrRef, nil
}
