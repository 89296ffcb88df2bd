package file

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/aretw0/waypoint"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/params"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a state document.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

// FormatOf picks the format from a file extension. Unknown extensions are
// read as YAML.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".toml":
		return FormatTOML
	default:
		return FormatYAML
	}
}

// Document is the content of a state file: optional router settings and the
// state declarations.
type Document struct {
	Router RouterConfig `mapstructure:"router"`
	States []StateDoc   `mapstructure:"states"`
}

// RouterConfig holds router settings a state file may carry.
type RouterConfig struct {
	Name          string               `mapstructure:"name"`
	HistoryLimit  int                  `mapstructure:"history_limit"`
	Trace         []string             `mapstructure:"trace"`
	DefaultPolicy domain.ResolvePolicy `mapstructure:"default_policy"`
	// Squash is the default squash policy: a bool or a replacement string.
	Squash any `mapstructure:"squash"`
}

// StateDoc declares one state.
type StateDoc struct {
	Name       string                     `mapstructure:"name"`
	Parent     string                     `mapstructure:"parent"`
	URL        string                     `mapstructure:"url"`
	Abstract   bool                       `mapstructure:"abstract"`
	Params     map[string]params.Declared `mapstructure:"params"`
	Resolve    []ResolveDoc               `mapstructure:"resolve"`
	Policy     domain.ResolvePolicy       `mapstructure:"policy"`
	Data       map[string]any             `mapstructure:"data"`
	Views      map[string]domain.ViewDecl `mapstructure:"views"`
	RedirectTo string                     `mapstructure:"redirect_to"`
}

// ResolveDoc declares a resolvable. A file cannot carry code, so a resolvable
// is a constant Value, the value of the transition Param, or a copy of its
// Deps: the single dependency's value, or the list of all of them.
type ResolveDoc struct {
	Token  string               `mapstructure:"token"`
	Value  any                  `mapstructure:"value"`
	Param  string               `mapstructure:"param"`
	Deps   []string             `mapstructure:"deps"`
	Policy domain.ResolvePolicy `mapstructure:"policy"`
}

// Parse decodes a state document.
func Parse(data []byte, format Format) (*Document, error) {
	var raw map[string]any
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to parse json: %w", err)
		}
		normalizeNumbers(raw)
	case FormatTOML:
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return nil, fmt.Errorf("failed to parse toml: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}

	var doc Document
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &doc,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid state document: %w", err)
	}
	return &doc, nil
}

// normalizeNumbers turns json.Number values into int64 or float64, the
// types the YAML and TOML decoders produce.
func normalizeNumbers(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, item := range x {
			x[k] = normalizeNumbers(item)
		}
	case []any:
		for i, item := range x {
			x[i] = normalizeNumbers(item)
		}
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		f, _ := x.Float64()
		return f
	}
	return v
}

// Declarations converts the document's states.
func (d *Document) Declarations() ([]*domain.Declaration, error) {
	out := make([]*domain.Declaration, 0, len(d.States))
	for i, s := range d.States {
		if s.Name == "" {
			return nil, fmt.Errorf("state #%d: missing name", i)
		}
		decl := &domain.Declaration{
			Name:          s.Name,
			Parent:        s.Parent,
			URL:           s.URL,
			Abstract:      s.Abstract,
			Params:        s.Params,
			ResolvePolicy: s.Policy,
			Data:          s.Data,
			Views:         s.Views,
		}
		if s.RedirectTo != "" {
			decl.RedirectTo = s.RedirectTo
		}
		for _, r := range s.Resolve {
			if r.Token == "" {
				return nil, fmt.Errorf("state %q: resolve without a token", s.Name)
			}
			rd := domain.ResolveDecl{Token: domain.Named(r.Token), Policy: r.Policy}
			switch {
			case r.Param != "":
				rd.Deps = []domain.Token{domain.TokenStateParams}
				rd.Fn = paramValue(r.Param)
			case len(r.Deps) > 0:
				rd.Deps = domain.Tokens(r.Deps...)
				rd.Fn = copyDeps
			default:
				rd.Value = r.Value
			}
			decl.Resolve = append(decl.Resolve, rd)
		}
		out = append(out, decl)
	}
	return out, nil
}

func paramValue(id string) domain.ResolveFn {
	return func(_ context.Context, deps ...any) (any, error) {
		vals, _ := deps[0].(params.Values)
		return vals[id], nil
	}
}

func copyDeps(_ context.Context, deps ...any) (any, error) {
	if len(deps) == 1 {
		return deps[0], nil
	}
	return deps, nil
}

// Options converts the router settings into router options.
func (c RouterConfig) Options() ([]waypoint.Option, error) {
	var opts []waypoint.Option
	if c.Name != "" {
		opts = append(opts, waypoint.WithName(c.Name))
	}
	if c.HistoryLimit > 0 {
		opts = append(opts, waypoint.WithHistoryLimit(c.HistoryLimit))
	}
	if c.DefaultPolicy.When != "" || c.DefaultPolicy.Async != "" {
		if err := validatePolicy(c.DefaultPolicy); err != nil {
			return nil, fmt.Errorf("default_policy: %w", err)
		}
		opts = append(opts, waypoint.WithDefaultResolvePolicy(c.DefaultPolicy))
	}
	if c.Squash != nil {
		if _, err := params.ParseSquashPolicy(c.Squash); err != nil {
			return nil, fmt.Errorf("squash: %w", err)
		}
		opts = append(opts, waypoint.WithDefaultSquashPolicy(c.Squash))
	}
	if len(c.Trace) > 0 {
		categories := make([]waypoint.Category, 0, len(c.Trace))
		for _, name := range c.Trace {
			cat := waypoint.Category(strings.ToLower(strings.TrimSpace(name)))
			if !slices.Contains(runtimeCategories, cat) {
				return nil, fmt.Errorf("unknown trace category %q", name)
			}
			categories = append(categories, cat)
		}
		opts = append(opts, waypoint.WithTrace(categories...))
	}
	return opts, nil
}

var runtimeCategories = []waypoint.Category{
	waypoint.TraceTransition,
	waypoint.TraceHook,
	waypoint.TraceResolve,
	waypoint.TraceViewConfig,
}

func validatePolicy(p domain.ResolvePolicy) error {
	switch p.When {
	case "", domain.WhenLazy, domain.WhenEager:
	default:
		return fmt.Errorf("unknown when %q", p.When)
	}
	switch p.Async {
	case "", domain.AsyncWait, domain.AsyncNoWait:
	default:
		return fmt.Errorf("unknown async %q", p.Async)
	}
	return nil
}
