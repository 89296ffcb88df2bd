package params

import (
	"fmt"
	"reflect"
	"regexp"
)

// Type defines how a parameter value is encoded to and decoded from its URL
// string form, compared, and checked.
type Type interface {
	// Name returns the registered name of the type (e.g. "int", "path").
	Name() string
	// Pattern is the (unanchored) expression an encoded value must match.
	Pattern() *regexp.Regexp
	// Is reports whether v is already a decoded value of this type.
	Is(v any) bool
	// Encode converts a decoded value to its string form ([]string for arrays).
	Encode(v any) (any, error)
	// Decode converts a string form back to a value.
	Decode(v any) (any, error)
	// Equals reports whether two decoded values are equivalent.
	Equals(a, b any) bool
	Raw() bool
	Dynamic() bool
	Inherit() bool
}

// Definition is a Type built from plain functions. Missing functions fall back
// to identity encode/decode, an always-true Is and loose equality.
type Definition struct {
	TypeName  string
	Regexp    *regexp.Regexp
	IsFn      func(v any) bool
	EncodeFn  func(v any) (any, error)
	DecodeFn  func(v any) (any, error)
	EqualsFn  func(a, b any) bool
	IsRaw     bool
	IsDynamic bool
	// NoInherit marks values of this type as never inherited across transitions.
	NoInherit bool
}

var matchAll = regexp.MustCompile(`.*`)

func (d *Definition) Name() string { return d.TypeName }

func (d *Definition) Pattern() *regexp.Regexp {
	if d.Regexp == nil {
		return matchAll
	}
	return d.Regexp
}

func (d *Definition) Is(v any) bool {
	if d.IsFn == nil {
		return true
	}
	return d.IsFn(v)
}

func (d *Definition) Encode(v any) (any, error) {
	if d.EncodeFn == nil {
		return v, nil
	}
	return d.EncodeFn(v)
}

func (d *Definition) Decode(v any) (any, error) {
	if d.DecodeFn == nil {
		return v, nil
	}
	return d.DecodeFn(v)
}

func (d *Definition) Equals(a, b any) bool {
	if d.EqualsFn == nil {
		return looseEquals(a, b)
	}
	return d.EqualsFn(a, b)
}

func (d *Definition) Raw() bool     { return d.IsRaw }
func (d *Definition) Dynamic() bool { return d.IsDynamic }
func (d *Definition) Inherit() bool { return !d.NoInherit }

func (d *Definition) String() string {
	return fmt.Sprintf("{ParamType:%s}", d.TypeName)
}

// Normalize returns v if t already accepts it, otherwise t's decoding of v.
func Normalize(t Type, v any) (any, error) {
	if n, ok := t.(interface{ Normalize(any) (any, error) }); ok {
		return n.Normalize(v)
	}
	if t.Is(v) {
		return v, nil
	}
	return t.Decode(v)
}

// looseEquals compares values the way a string-typed URL parameter sees them:
// 1 and "1" are the same value.
func looseEquals(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if reflect.TypeOf(a) == reflect.TypeOf(b) && reflect.TypeOf(a).Comparable() {
		return a == b
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}
