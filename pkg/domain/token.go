package domain

import (
	"fmt"
	"reflect"
)

// Token identifies an injectable value. It is either a name or a Go type and is
// comparable, so it can be used as a map key.
type Token struct {
	name string
	typ  reflect.Type
}

// Named returns a token identified by name.
func Named(name string) Token {
	return Token{name: name}
}

// TypeOf returns a token identified by the type T.
func TypeOf[T any]() Token {
	return Token{typ: reflect.TypeOf((*T)(nil)).Elem()}
}

// Name returns the token's name, or "" for type tokens.
func (t Token) Name() string { return t.name }

// Type returns the token's type, or nil for named tokens.
func (t Token) Type() reflect.Type { return t.typ }

// IsZero reports whether t is the zero Token.
func (t Token) IsZero() bool { return t.name == "" && t.typ == nil }

func (t Token) String() string {
	if t.typ != nil {
		return t.typ.String()
	}
	return fmt.Sprintf("%q", t.name)
}

// Tokens converts names to named tokens.
func Tokens(names ...string) []Token {
	out := make([]Token, len(names))
	for i, n := range names {
		out[i] = Named(n)
	}
	return out
}

// Tokens registered by the router on every transition.
var (
	TokenTransition  = Named("$transition$")
	TokenStateParams = Named("$stateParams")
	TokenState       = Named("$state$")
	TokenRouter      = Named("$router$")
)
