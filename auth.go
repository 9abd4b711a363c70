// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package loam

import (
	"encoding/base64"

	"github.com/z5labs/loam/backend"
)

// Authorizer attaches credentials to an outgoing request, typically by
// setting the Authorization header. Authorization runs last during
// request building, so it sees the fully merged headers.
type Authorizer interface {
	AuthorizeRequest(req *backend.Request) error
}

// AuthorizerFunc is an adapter to allow the use of ordinary functions
// as [Authorizer]s.
type AuthorizerFunc func(req *backend.Request) error

// AuthorizeRequest implements the [Authorizer] interface.
func (f AuthorizerFunc) AuthorizeRequest(req *backend.Request) error {
	return f(req)
}

// BasicAuth authorizes requests with HTTP Basic credentials.
type BasicAuth struct {
	Username string
	Password string
}

// AuthorizeRequest implements the [Authorizer] interface.
func (a BasicAuth) AuthorizeRequest(req *backend.Request) error {
	credentials := base64.StdEncoding.EncodeToString([]byte(a.Username + ":" + a.Password))
	req.Header.Set("Authorization", "Basic "+credentials)
	return nil
}

// BearerAuth authorizes requests with an OAuth2-style bearer token.
type BearerAuth struct {
	Token string
}

// AuthorizeRequest implements the [Authorizer] interface.
func (a BearerAuth) AuthorizeRequest(req *backend.Request) error {
	req.Header.Set("Authorization", "Bearer "+a.Token)
	return nil
}
