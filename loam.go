// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package loam synthesizes working REST API clients from declarative
// resource definitions.
//
// # Overview
//
// An API is described once, as data: resources group method
// declarations, and each method declares an HTTP verb, a path template
// and bindings mapping call arguments into query parameters, headers,
// form fields, multipart parts or the request body. From that
// description loam assembles each request, dispatches it through a
// swappable HTTP backend and maps the response back through a
// status-code-keyed handler table.
//
//	dog := loam.NewResource("dog",
//	    loam.Endpoint("https://dog.ceo/api"),
//	    loam.Method("ListSubBreeds",
//	        loam.Get("breed/{name}/list"),
//	        loam.Query("limit"),
//	    ),
//	)
//
//	client := loam.New(loam.Use(dog))
//	breeds, err := client.Call(ctx, "ListSubBreeds",
//	    loam.Arg("name", "hound"),
//	    loam.Arg("limit", 5),
//	)
//
// # Composition
//
// Independently declared API fragments compose into one client with
// [Use], and a resource can extend another with [Derive]. Metadata
// resolves nearest-definition-first along the derivation chain, except
// endpoints which stay with the resource that declared the method, so
// one federated client can span groups hosted on different endpoints.
//
// # Backends
//
// Network I/O is delegated entirely to a backend adapter selected by
// name. The net/http adapter ("http") is always registered; the resty
// adapter ("resty") additionally supports asynchronous calls via
// [Client.Go]:
//
//	import _ "github.com/z5labs/loam/backend/restybackend"
//
//	client := loam.New(loam.Use(dog), loam.WithBackend("resty"))
//
// Transport concerns such as TLS, redirects, retries and connection
// pooling belong to the backend's underlying library; loam performs no
// retries of its own.
package loam

import (
	"log/slog"

	"go.opentelemetry.io/contrib/bridges/otelslog"
)

// Logger returns a [slog.Logger] bridged to the global OpenTelemetry
// logger provider.
func Logger(name string) *slog.Logger {
	return otelslog.NewLogger(name)
}
