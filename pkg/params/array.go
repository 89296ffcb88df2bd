package params

import (
	"fmt"
	"regexp"
)

// ArrayMode controls whether a parameter holds multiple values.
type ArrayMode string

const (
	ArrayUnset ArrayMode = ""
	ArrayOff   ArrayMode = "off"
	ArrayOn    ArrayMode = "on"
	// ArrayAuto unwraps single values and is only valid for search parameters.
	ArrayAuto ArrayMode = "auto"
)

// arrayType applies an element type to every value of a []any.
type arrayType struct {
	elem Type
	mode ArrayMode
}

// AsArray wraps t so that it handles []any values. isSearch must be true for ArrayAuto.
func AsArray(t Type, mode ArrayMode, isSearch bool) (Type, error) {
	switch mode {
	case ArrayUnset, ArrayOff:
		return t, nil
	case ArrayAuto:
		if !isSearch {
			return nil, fmt.Errorf("'auto' array mode is for query parameters only")
		}
	case ArrayOn:
	default:
		return nil, fmt.Errorf("unknown array mode %q", mode)
	}
	return &arrayType{elem: t, mode: mode}, nil
}

func wrap(v any) []any {
	switch vv := v.(type) {
	case []any:
		return vv
	case []string:
		out := make([]any, len(vv))
		for i, s := range vv {
			out[i] = s
		}
		return out
	case nil:
		return []any{}
	default:
		return []any{v}
	}
}

func (a *arrayType) unwrap(vals []any) any {
	switch len(vals) {
	case 0:
		return nil
	case 1:
		if a.mode == ArrayAuto {
			return vals[0]
		}
		return vals
	default:
		return vals
	}
}

func (a *arrayType) each(v any, fn func(any) (any, error)) (any, error) {
	if arr, ok := v.([]any); ok && len(arr) == 0 {
		return arr, nil
	}
	in := wrap(v)
	out := make([]any, len(in))
	for i, elem := range in {
		r, err := fn(elem)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = r
	}
	return a.unwrap(out), nil
}

func (a *arrayType) Name() string            { return a.elem.Name() }
func (a *arrayType) Pattern() *regexp.Regexp { return a.elem.Pattern() }
func (a *arrayType) Raw() bool               { return a.elem.Raw() }
func (a *arrayType) Dynamic() bool           { return a.elem.Dynamic() }
func (a *arrayType) Inherit() bool           { return a.elem.Inherit() }

// Mode returns the array mode the type was built with.
func (a *arrayType) Mode() ArrayMode { return a.mode }

func (a *arrayType) Is(v any) bool {
	if arr, ok := v.([]any); ok && len(arr) == 0 {
		return true
	}
	for _, elem := range wrap(v) {
		if !a.elem.Is(elem) {
			return false
		}
	}
	return true
}

func (a *arrayType) Encode(v any) (any, error) { return a.each(v, a.elem.Encode) }
func (a *arrayType) Decode(v any) (any, error) { return a.each(v, a.elem.Decode) }

func (a *arrayType) Normalize(v any) (any, error) {
	return a.each(v, func(e any) (any, error) { return Normalize(a.elem, e) })
}

func (a *arrayType) Equals(x, y any) bool {
	left, right := wrap(x), wrap(y)
	if len(left) != len(right) {
		return false
	}
	for i := range left {
		if !a.elem.Equals(left[i], right[i]) {
			return false
		}
	}
	return true
}
