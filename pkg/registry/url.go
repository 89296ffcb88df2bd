package registry

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/params"
)

// placeholder matches ":id" and "{id}" / "{id:int}" path parameters.
var placeholder = regexp.MustCompile(`:([\w\[\]]+)|\{([\w\[\]]+)(?::([\w]+))?\}`)

type segment struct {
	literal string
	param   *params.Param
}

// URLPattern is a compiled state URL such as "/users/:id?tab&sort".
// A child pattern extends its parent's unless it starts with '^'.
type URLPattern struct {
	source   string
	parent   *URLPattern
	segments []segment
	search   []*params.Param
	re       *regexp.Regexp
}

// CompileURL compiles pattern under parent (which may be nil). decls configures
// the parameters the pattern declares.
func CompileURL(pattern string, parent *URLPattern, f *params.Factory, decls map[string]params.Declared) (*URLPattern, error) {
	if strings.HasPrefix(pattern, "^") {
		pattern = pattern[1:]
		parent = nil
	}
	pathPart, searchPart, _ := strings.Cut(pattern, "?")
	u := &URLPattern{source: pathPart, parent: parent}
	seen := map[string]bool{}
	if parent != nil {
		for _, p := range parent.allParameters() {
			seen[p.ID] = true
		}
	}

	last := 0
	for _, m := range placeholder.FindAllStringSubmatchIndex(pathPart, -1) {
		u.segments = append(u.segments, segment{literal: pathPart[last:m[0]]})
		last = m[1]

		var id, typeName string
		if m[2] >= 0 {
			id = pathPart[m[2]:m[3]]
		} else {
			id = pathPart[m[4]:m[5]]
			if m[6] >= 0 {
				typeName = pathPart[m[6]:m[7]]
			}
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: %q in url %q", domain.ErrDuplicateParam, id, pattern)
		}
		seen[id] = true

		var urlType params.Type
		if typeName != "" {
			t, ok := f.Types.Type(typeName)
			if !ok {
				return nil, fmt.Errorf("url %q: %w %q", pattern, params.ErrUnknownType, typeName)
			}
			urlType = t
		}
		p, err := f.New(id, urlType, params.Path, decls[id])
		if err != nil {
			return nil, err
		}
		u.segments = append(u.segments, segment{param: p})
	}
	if last < len(pathPart) {
		u.segments = append(u.segments, segment{literal: pathPart[last:]})
	}

	if searchPart != "" {
		for _, id := range strings.Split(searchPart, "&") {
			if id == "" {
				continue
			}
			if seen[id] {
				return nil, fmt.Errorf("%w: %q in url %q", domain.ErrDuplicateParam, id, pattern)
			}
			seen[id] = true
			p, err := f.New(id, nil, params.Search, decls[id])
			if err != nil {
				return nil, err
			}
			u.search = append(u.search, p)
		}
	}

	re, err := regexp.Compile("^" + u.pathRegexp() + "/?$")
	if err != nil {
		return nil, fmt.Errorf("url %q: %w", pattern, err)
	}
	u.re = re
	return u, nil
}

func (u *URLPattern) pathRegexp() string {
	var sb strings.Builder
	if u.parent != nil {
		sb.WriteString(strings.TrimSuffix(u.parent.pathRegexp(), "/"))
	}
	for _, seg := range u.segments {
		if seg.param == nil {
			sb.WriteString(regexp.QuoteMeta(seg.literal))
			continue
		}
		fmt.Fprintf(&sb, "(%s)", seg.param.Type.Pattern().String())
	}
	return sb.String()
}

func (u *URLPattern) pathParams() []*params.Param {
	var out []*params.Param
	if u.parent != nil {
		out = u.parent.pathParams()
	}
	for _, seg := range u.segments {
		if seg.param != nil {
			out = append(out, seg.param)
		}
	}
	return out
}

func (u *URLPattern) searchParams() []*params.Param {
	var out []*params.Param
	if u.parent != nil {
		out = u.parent.searchParams()
	}
	return append(out, u.search...)
}

func (u *URLPattern) allParameters() []*params.Param {
	return append(u.pathParams(), u.searchParams()...)
}

// Pattern returns the full source pattern, including the parent's, with the
// search params of every level at the end ("/users/{id}?q&tab").
func (u *URLPattern) Pattern() string {
	out := u.pathSource()
	search := u.searchParams()
	for i, p := range search {
		sep := "&"
		if i == 0 {
			sep = "?"
		}
		out += sep + p.ID
	}
	return out
}

func (u *URLPattern) pathSource() string {
	if u.parent == nil {
		return u.source
	}
	return u.parent.pathSource() + u.source
}

// Parameters returns the parameters this pattern declares itself.
func (u *URLPattern) Parameters() []*params.Param {
	var out []*params.Param
	for _, seg := range u.segments {
		if seg.param != nil {
			out = append(out, seg.param)
		}
	}
	return append(out, u.search...)
}

// Exec matches path and search and returns decoded values for every
// parameter of the full pattern, or nil when path does not match.
func (u *URLPattern) Exec(path string, search map[string][]string) params.Values {
	m := u.re.FindStringSubmatch(path)
	if m == nil {
		return nil
	}
	out := params.Values{}
	for i, p := range u.pathParams() {
		raw, err := p.Type.Decode(m[i+1])
		if err != nil {
			raw = m[i+1]
		}
		out[p.ID] = raw
	}
	for _, p := range u.searchParams() {
		vals, ok := search[p.ID]
		if !ok || len(vals) == 0 {
			continue
		}
		var raw any = vals[0]
		if len(vals) > 1 {
			arr := make([]any, len(vals))
			for i, v := range vals {
				arr[i] = v
			}
			raw = arr
		}
		if dec, err := p.Type.Decode(raw); err == nil {
			raw = dec
		}
		out[p.ID] = raw
	}
	return out
}

// Format renders values into a URL. Required path params must be present.
func (u *URLPattern) Format(values params.Values) (string, error) {
	var sb strings.Builder
	var render func(p *URLPattern) error
	render = func(p *URLPattern) error {
		if p.parent != nil {
			if err := render(p.parent); err != nil {
				return err
			}
		}
		for _, seg := range p.segments {
			if seg.param == nil {
				sb.WriteString(seg.literal)
				continue
			}
			v := values[seg.param.ID]
			if v == nil || (seg.param.Squash.Squash && seg.param.IsDefaultValue(v)) {
				if !seg.param.IsOptional {
					return fmt.Errorf("missing required param %q", seg.param.ID)
				}
				sb.WriteString(seg.param.Squash.Replacement)
				continue
			}
			enc, err := seg.param.Type.Encode(v)
			if err != nil {
				return fmt.Errorf("param %q: %w", seg.param.ID, err)
			}
			sb.WriteString(url.PathEscape(fmt.Sprint(enc)))
		}
		return nil
	}
	if err := render(u); err != nil {
		return "", err
	}

	query := url.Values{}
	for _, p := range u.searchParams() {
		v := values[p.ID]
		if v == nil || p.IsDefaultValue(v) {
			continue
		}
		enc, err := p.Type.Encode(v)
		if err != nil {
			return "", fmt.Errorf("param %q: %w", p.ID, err)
		}
		switch e := enc.(type) {
		case []any:
			for _, item := range e {
				query.Add(p.ID, fmt.Sprint(item))
			}
		default:
			query.Set(p.ID, fmt.Sprint(e))
		}
	}
	out := sb.String()
	if len(query) > 0 {
		out += "?" + query.Encode()
	}
	return out, nil
}

func (u *URLPattern) String() string { return u.Pattern() }

// sortBySpecificity orders patterns so that more specific ones are tried first.
func sortBySpecificity(states []*urlEntry) {
	sort.SliceStable(states, func(i, j int) bool {
		a, b := states[i].pattern, states[j].pattern
		if la, lb := len(a.pathParams()), len(b.pathParams()); la != lb {
			return la < lb
		}
		return len(a.Pattern()) > len(b.Pattern())
	})
}
