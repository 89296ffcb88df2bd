package registry

import (
	"fmt"
	"maps"
	"slices"
	"sort"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/params"
)

// build turns a declaration into a StateNode under parent. Callers hold r.mu.
func (r *Registry) build(decl *domain.Declaration, parent *domain.StateNode) (*domain.StateNode, error) {
	s := &domain.StateNode{
		Name:          decl.Name,
		Parent:        parent,
		Self:          decl,
		Abstract:      decl.Abstract,
		ResolvePolicy: decl.ResolvePolicy,
		Includes:      map[string]bool{decl.Name: true},
		Data:          map[string]any{},
	}
	if parent != nil {
		maps.Copy(s.Includes, parent.Includes)
		maps.Copy(s.Data, parent.Data)
	}
	maps.Copy(s.Data, decl.Data)

	ps, err := r.buildParams(s, decl, parent)
	if err != nil {
		return nil, fmt.Errorf("state %q: %w", decl.Name, err)
	}
	s.Params = ps

	for _, rd := range decl.Resolve {
		if rd.Token.IsZero() {
			return nil, fmt.Errorf("state %q: resolve without a token", decl.Name)
		}
		if rd.Fn == nil {
			s.Resolvables = append(s.Resolvables, domain.FromData(rd.Token, rd.Value))
			continue
		}
		s.Resolvables = append(s.Resolvables, domain.NewResolvable(rd.Token, rd.Fn, rd.Deps, rd.Policy))
	}

	names := slices.Sorted(maps.Keys(decl.Views))
	for _, name := range names {
		v := decl.Views[name]
		if v.Name == "" {
			v.Name = name
		}
		s.Views = append(s.Views, v)
	}

	s.SetPath()
	return s, nil
}

func (r *Registry) buildParams(s *domain.StateNode, decl *domain.Declaration, parent *domain.StateNode) ([]*params.Param, error) {
	var parentURL *URLPattern
	for p := parent; p != nil; p = p.Parent {
		if u, ok := r.urls[p]; ok {
			parentURL = u
			break
		}
	}

	var out []*params.Param
	seen := map[string]bool{}
	if decl.URL != "" || parent == nil {
		u, err := CompileURL(decl.URL, parentURL, r.factory, decl.Params)
		if err != nil {
			return nil, err
		}
		s.URL = u
		r.urls[s] = u
		for _, p := range u.Parameters() {
			seen[p.ID] = true
			out = append(out, p)
		}
	}

	ids := make([]string, 0, len(decl.Params))
	for id := range decl.Params {
		if !seen[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		p, err := r.factory.New(id, nil, params.Config, decl.Params[id])
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
