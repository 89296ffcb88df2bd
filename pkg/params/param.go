package params

import (
	"fmt"
	"strings"
)

// Location says where a parameter's value lives.
type Location int

const (
	Path Location = iota
	Search
	Config
)

func (l Location) String() string {
	switch l {
	case Path:
		return "path"
	case Search:
		return "search"
	case Config:
		return "config"
	default:
		return fmt.Sprintf("location(%d)", int(l))
	}
}

// Values maps parameter ids to values. A missing key is an undefined value.
type Values map[string]any

// Clone returns a shallow copy of v.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Replacement substitutes a raw value before normalization.
type Replacement struct {
	From any `mapstructure:"from" json:"from" yaml:"from"`
	To   any `mapstructure:"to" json:"to" yaml:"to"`
}

// Declared is the user-supplied configuration of a single parameter.
type Declared struct {
	// Type names a registered type. A TypeImpl takes precedence.
	Type     string `mapstructure:"type" json:"type,omitempty" yaml:"type,omitempty"`
	TypeImpl Type   `mapstructure:"-" json:"-" yaml:"-"`
	// Value is the default. ValueFn, when set, produces it lazily instead.
	Value   any                `mapstructure:"value" json:"value,omitempty" yaml:"value,omitempty"`
	ValueFn func() (any, error) `mapstructure:"-" json:"-" yaml:"-"`
	Array   ArrayMode          `mapstructure:"array" json:"array,omitempty" yaml:"array,omitempty"`
	// Squash is nil, a bool, or a replacement string.
	Squash  any           `mapstructure:"squash" json:"squash,omitempty" yaml:"squash,omitempty"`
	Replace []Replacement `mapstructure:"replace" json:"replace,omitempty" yaml:"replace,omitempty"`
	Dynamic *bool         `mapstructure:"dynamic" json:"dynamic,omitempty" yaml:"dynamic,omitempty"`
	Raw     *bool         `mapstructure:"raw" json:"raw,omitempty" yaml:"raw,omitempty"`
	Inherit *bool         `mapstructure:"inherit" json:"inherit,omitempty" yaml:"inherit,omitempty"`
}

func (d Declared) hasDefault() bool {
	return d.Value != nil || d.ValueFn != nil
}

// SquashPolicy says how a parameter equal to its default is rendered in a URL.
type SquashPolicy struct {
	Squash bool
	// Replacement, when non-empty, is rendered in place of the squashed value.
	Replacement string
}

// Param is a compiled, immutable parameter definition.
type Param struct {
	ID         string
	Type       Type
	Location   Location
	IsOptional bool
	Dynamic    bool
	Raw        bool
	Inherit    bool
	Array      ArrayMode
	Squash     SquashPolicy
	Replace    []Replacement
	Declared   Declared
}

// Factory builds Params against a type registry and a default squash policy.
type Factory struct {
	Types         *Types
	DefaultSquash SquashPolicy
}

// NewFactory returns a Factory over the built-in types.
func NewFactory() *Factory {
	return &Factory{Types: NewTypes()}
}

// New builds a Param. urlType is the type inferred from a URL pattern, or nil.
func (f *Factory) New(id string, urlType Type, loc Location, decl Declared) (*Param, error) {
	typ, err := f.resolveType(id, urlType, loc, decl)
	if err != nil {
		return nil, err
	}

	isOptional := decl.hasDefault() || loc == Search

	array := ArrayOff
	if loc == Search {
		array = ArrayAuto
	}
	if strings.HasSuffix(id, "[]") {
		array = ArrayOn
	}
	if decl.Array != ArrayUnset {
		array = decl.Array
	}
	typ, err = AsArray(typ, array, loc == Search)
	if err != nil {
		return nil, fmt.Errorf("param %q: %w", id, err)
	}

	squash, err := squashPolicy(decl.Squash, isOptional, f.DefaultSquash)
	if err != nil {
		return nil, fmt.Errorf("param %q: %w", id, err)
	}

	p := &Param{
		ID:         id,
		Type:       typ,
		Location:   loc,
		IsOptional: isOptional,
		Dynamic:    boolOr(decl.Dynamic, typ.Dynamic()),
		Raw:        boolOr(decl.Raw, typ.Raw()),
		Inherit:    boolOr(decl.Inherit, typ.Inherit()),
		Array:      array,
		Squash:     squash,
		Declared:   decl,
	}
	p.Replace = replacements(decl, array != ArrayOff, isOptional, squash)
	return p, nil
}

func (f *Factory) resolveType(id string, urlType Type, loc Location, decl Declared) (Type, error) {
	named := decl.TypeImpl
	if named == nil && decl.Type != "" {
		t, ok := f.Types.Type(decl.Type)
		if !ok {
			return nil, fmt.Errorf("param %q: %w %q", id, ErrUnknownType, decl.Type)
		}
		named = t
	}
	if urlType != nil {
		if named == nil {
			return urlType, nil
		}
		if urlType.Name() != "string" {
			return nil, fmt.Errorf("%w: %q", ErrTypeConflict, id)
		}
		return named, nil
	}
	if named != nil {
		return named, nil
	}
	name := "string"
	switch loc {
	case Config:
		name = "any"
	case Path:
		name = "path"
	case Search:
		name = "query"
	}
	t, _ := f.Types.Type(name)
	return t, nil
}

func boolOr(b *bool, fallback bool) bool {
	if b != nil {
		return *b
	}
	return fallback
}

// ParseSquashPolicy converts false, true or a replacement string into a
// SquashPolicy.
func ParseSquashPolicy(squash any) (SquashPolicy, error) {
	return squashPolicy(squash, true, SquashPolicy{})
}

func squashPolicy(squash any, isOptional bool, def SquashPolicy) (SquashPolicy, error) {
	if !isOptional {
		return SquashPolicy{}, nil
	}
	switch s := squash.(type) {
	case nil:
		return def, nil
	case bool:
		return SquashPolicy{Squash: s}, nil
	case string:
		return SquashPolicy{Squash: true, Replacement: s}, nil
	default:
		return SquashPolicy{}, fmt.Errorf("%w: '%v'. Valid policies: false, true, or arbitrary string", ErrInvalidSquashPolicy, squash)
	}
}

func replacements(decl Declared, isArray, isOptional bool, squash SquashPolicy) []Replacement {
	var to any = ""
	if isOptional || isArray {
		to = nil
	}
	configured := append([]Replacement(nil), decl.Replace...)
	if squash.Replacement != "" {
		configured = append(configured, Replacement{From: squash.Replacement, To: nil})
	}
	out := make([]Replacement, 0, len(configured)+1)
	hasEmpty := false
	for _, r := range configured {
		if s, ok := r.From.(string); ok && s == "" {
			hasEmpty = true
		}
	}
	if !hasEmpty {
		out = append(out, Replacement{From: "", To: to})
	}
	return append(out, configured...)
}

func (p *Param) replace(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	for _, r := range p.Replace {
		if from, ok := r.From.(string); ok && from == s {
			return r.To
		}
	}
	return v
}

// Value returns the normalized form of raw, or the normalized default when raw
// is undefined after replacements.
func (p *Param) Value(raw any) (any, error) {
	v := p.replace(raw)
	if v == nil {
		return p.defaultValue()
	}
	return Normalize(p.Type, v)
}

func (p *Param) defaultValue() (any, error) {
	def := p.Declared.Value
	if p.Declared.ValueFn != nil {
		v, err := p.Declared.ValueFn()
		if err != nil {
			return nil, fmt.Errorf("param %q: %w: %w", p.ID, ErrNoDefault, err)
		}
		def = v
	}
	if def == nil {
		return nil, nil
	}
	return Normalize(p.Type, def)
}

// IsDefaultValue reports whether v equals the parameter's default.
func (p *Param) IsDefaultValue(v any) bool {
	if !p.IsOptional {
		return false
	}
	def, err := p.defaultValue()
	return err == nil && p.Type.Equals(def, v)
}

// Validates reports whether v is acceptable for this parameter.
func (p *Param) Validates(v any) bool {
	return p.validate(v) == nil
}

func (p *Param) validate(v any) error {
	if v == nil && p.IsOptional {
		return nil
	}
	normalized, err := Normalize(p.Type, v)
	if err != nil {
		return &ValidationError{Key: p.ID, Reason: err.Error(), Value: v}
	}
	if !p.Type.Is(normalized) {
		return &ValidationError{Key: p.ID, Reason: "not a valid " + p.Type.Name(), Value: v}
	}
	encoded, err := p.Type.Encode(normalized)
	if err != nil {
		return &ValidationError{Key: p.ID, Reason: err.Error(), Value: v}
	}
	if s, ok := encoded.(string); ok && !p.Type.Pattern().MatchString(s) {
		return &ValidationError{Key: p.ID, Reason: "does not match " + p.Type.Pattern().String(), Value: v}
	}
	return nil
}

func (p *Param) String() string {
	return fmt.Sprintf("{Param:%s %s squash: '%v' optional: %v}", p.ID, p.Type.Name(), p.Squash.Squash, p.IsOptional)
}

// ValuesOf computes each param's value from vals, applying defaults.
func ValuesOf(params []*Param, vals Values) (Values, error) {
	out := make(Values, len(params))
	for _, p := range params {
		v, err := p.Value(vals[p.ID])
		if err != nil {
			return nil, err
		}
		out[p.ID] = v
	}
	return out, nil
}

// Changed returns the params whose values differ between a and b.
func Changed(params []*Param, a, b Values) []*Param {
	var out []*Param
	for _, p := range params {
		if !p.Type.Equals(a[p.ID], b[p.ID]) {
			out = append(out, p)
		}
	}
	return out
}

// Equals reports whether no param differs between a and b.
func Equals(params []*Param, a, b Values) bool {
	return len(Changed(params, a, b)) == 0
}

// ValidatesAll reports whether every param accepts its value in vals.
func ValidatesAll(params []*Param, vals Values) bool {
	return Validate(params, vals) == nil
}

// Validate checks every param against vals and returns an *AggregateError
// listing each failure, or nil.
func Validate(params []*Param, vals Values) error {
	var errs []error
	for _, p := range params {
		if err := p.validate(vals[p.ID]); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}
