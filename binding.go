// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package loam

// Binding maps one named call argument onto a request field: a query
// parameter, header, form field, multipart part or the request body.
// The wire name defaults to the argument name when no [As] option is
// given. Bindings with no value at call time and no declared default
// are silently omitted; there is no such thing as a required binding.
type Binding struct {
	arg  string
	wire string

	hasDefault   bool
	defaultValue any

	serialize func(v any) ([]byte, error)

	schema any
}

// BindingOption configures a [Binding] created by [Query],
// [HeaderParam], [Form], [Part] or [Body].
type BindingOption func(*Binding)

// As sets the wire name the bound argument is transmitted under.
// Without it the wire name equals the argument name.
func As(wire string) BindingOption {
	return func(b *Binding) {
		b.wire = wire
	}
}

// Default declares the value used when the argument is not supplied
// at call time.
func Default(v any) BindingOption {
	return func(b *Binding) {
		b.hasDefault = true
		b.defaultValue = v
	}
}

// Serialize sets the function used to turn the bound value into the
// request payload. It is only meaningful on a [Body] binding; every
// other binding kind rejects it at declaration time.
func Serialize(f func(v any) ([]byte, error)) BindingOption {
	return func(b *Binding) {
		b.serialize = f
	}
}

// Schema attaches a sample value whose reflected JSON schema describes
// this binding in the OpenAPI document produced by [SpecOf]. It has no
// effect on request building.
func Schema(sample any) BindingOption {
	return func(b *Binding) {
		b.schema = sample
	}
}

func newBinding(op, arg string, allowSerializer bool, opts ...BindingOption) Binding {
	if arg == "" {
		panic(configErrorf(op, "binding argument name must not be empty"))
	}

	b := Binding{
		arg:  arg,
		wire: arg,
	}
	for _, opt := range opts {
		opt(&b)
	}

	if b.serialize != nil && !allowSerializer {
		panic(configErrorf(op, "Serialize is only valid on a Body binding"))
	}
	return b
}

// value resolves the binding against the supplied call arguments.
func (b Binding) value(args map[string]any) (any, bool) {
	if v, ok := args[b.arg]; ok {
		return v, true
	}
	if b.hasDefault {
		return b.defaultValue, true
	}
	return nil, false
}
