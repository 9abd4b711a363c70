// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package loam

import (
	"net/url"
	"path"
	"strings"
)

// PathElement represents a component of a URL path.
// It can be either a static path segment or a dynamic path parameter.
type PathElement interface {
	pathElement() string
}

// PathSegment is a static component of a URL path.
type PathSegment string

func (s PathSegment) pathElement() string {
	return string(s)
}

// PathParam is a dynamic path parameter element. Its value is
// substituted from the call argument of the same name when a request
// is built.
type PathParam string

func (p PathParam) pathElement() string {
	return "{" + string(p) + "}"
}

// Path represents a URL path composed of static segments and dynamic
// parameters. Paths are built with [BasePath] and extended with
// [Path.Segment] and [Path.Param], or parsed from a template string
// like "breed/{name}/list" by the HTTP verb options.
type Path []PathElement

// BasePath starts a [Path] with a static segment.
func BasePath(s string) Path {
	return Path{PathSegment(s)}
}

// Segment appends a static segment.
func (p Path) Segment(s string) Path {
	return append(p, PathSegment(s))
}

// Param appends a dynamic parameter.
func (p Path) Param(name string) Path {
	return append(p, PathParam(name))
}

// String formats the path as a template, with parameters rendered in
// their "{name}" placeholder form.
func (p Path) String() string {
	ss := make([]string, len(p))
	for i, el := range p {
		ss[i] = el.pathElement()
	}
	return path.Join(ss...)
}

// params returns the parameter names in declaration order.
func (p Path) params() []string {
	var names []string
	for _, el := range p {
		if param, ok := el.(PathParam); ok {
			names = append(names, string(param))
		}
	}
	return names
}

// render substitutes every parameter using lookup and returns the
// concrete request path. A parameter which lookup cannot resolve is a
// configuration error.
func (p Path) render(lookup func(name string) (string, bool)) (string, error) {
	ss := make([]string, len(p))
	for i, el := range p {
		param, ok := el.(PathParam)
		if !ok {
			ss[i] = el.pathElement()
			continue
		}

		v, ok := lookup(string(param))
		if !ok {
			return "", configErrorf("loam.Path", "missing argument %q for path parameter", string(param))
		}
		ss[i] = url.PathEscape(v)
	}
	return path.Join(ss...), nil
}

// parsePath splits a template string like "breed/{name}/list" into a
// [Path] of static segments and parameters.
func parsePath(template string) Path {
	var p Path
	for _, seg := range strings.Split(template, "/") {
		if seg == "" {
			continue
		}
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") && len(seg) > 2 {
			p = append(p, PathParam(seg[1:len(seg)-1]))
			continue
		}
		p = append(p, PathSegment(seg))
	}
	return p
}
