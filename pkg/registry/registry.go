package registry

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/waypoint/internal/logging"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/params"
)

// Event says what happened to a set of states.
type Event string

const (
	EventRegistered   Event = "registered"
	EventDeregistered Event = "deregistered"
)

// Listener is notified after states are registered or deregistered.
type Listener func(event Event, states []*domain.StateNode)

type urlEntry struct {
	state   *domain.StateNode
	pattern *URLPattern
}

// Registry builds and stores the state tree.
//
// Declarations whose parent is not registered yet are queued and built as
// soon as the parent arrives. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	root      *domain.StateNode
	states    map[string]*domain.StateNode
	urls      map[*domain.StateNode]*URLPattern
	orphans   []*domain.Declaration
	listeners map[int]Listener
	nextID    int
	factory   *params.Factory
	logger    *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithParamFactory sets the factory used to build state parameters.
func WithParamFactory(f *params.Factory) Option {
	return func(r *Registry) {
		r.factory = f
	}
}

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// New creates a registry holding only the implicit root state.
func New(opts ...Option) *Registry {
	r := &Registry{
		states:    make(map[string]*domain.StateNode),
		urls:      make(map[*domain.StateNode]*URLPattern),
		listeners: make(map[int]Listener),
		factory:   params.NewFactory(),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	rootDecl := &domain.Declaration{Name: "", URL: "^", Abstract: true}
	root, err := r.build(rootDecl, nil)
	if err != nil {
		panic(fmt.Sprintf("registry: building root state: %v", err))
	}
	r.root = root
	r.states[""] = root
	return r
}

// Root returns the unnamed root state.
func (r *Registry) Root() *domain.StateNode {
	return r.root
}

// ParamTypes returns the type registry used for parameters.
func (r *Registry) ParamTypes() *params.Types {
	return r.factory.Types
}

// Register builds and stores decl. If its parent is not registered yet, the
// declaration is queued and Register returns a nil state and no error.
func (r *Registry) Register(decl *domain.Declaration) (*domain.StateNode, error) {
	r.mu.Lock()
	if decl.Name == "" {
		r.mu.Unlock()
		return nil, fmt.Errorf("state declaration has no name")
	}
	if _, exists := r.states[decl.Name]; exists || r.queued(decl.Name) {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", domain.ErrDuplicateState, decl.Name)
	}

	parent, ok := r.states[parentName(decl)]
	if !ok {
		r.orphans = append(r.orphans, decl)
		r.mu.Unlock()
		r.logger.Debug("state queued until parent registers", "state", decl.Name, "parent", parentName(decl))
		return nil, nil
	}

	state, err := r.build(decl, parent)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.states[decl.Name] = state
	built := append([]*domain.StateNode{state}, r.flushOrphans()...)
	listeners := r.snapshotListeners()
	r.mu.Unlock()

	for _, s := range built {
		r.logger.Debug("state registered", "state", s.Name)
	}
	for _, l := range listeners {
		l(EventRegistered, built)
	}
	return state, nil
}

func (r *Registry) queued(name string) bool {
	return slices.ContainsFunc(r.orphans, func(d *domain.Declaration) bool { return d.Name == name })
}

// flushOrphans builds queued declarations whose parent now exists.
func (r *Registry) flushOrphans() []*domain.StateNode {
	var built []*domain.StateNode
	for progress := true; progress; {
		progress = false
		remaining := r.orphans[:0]
		for _, decl := range r.orphans {
			parent, ok := r.states[parentName(decl)]
			if !ok {
				remaining = append(remaining, decl)
				continue
			}
			state, err := r.build(decl, parent)
			if err != nil {
				r.logger.Error("dropping queued state", "state", decl.Name, "err", err)
				continue
			}
			r.states[decl.Name] = state
			built = append(built, state)
			progress = true
		}
		r.orphans = remaining
	}
	return built
}

// Pending returns the names of queued declarations.
func (r *Registry) Pending() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.orphans))
	for i, d := range r.orphans {
		out[i] = d.Name
	}
	return out
}

// Deregister removes a state and all of its descendants.
func (r *Registry) Deregister(ref any) ([]*domain.StateNode, error) {
	r.mu.Lock()
	state := r.find(ref, nil)
	if state == nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", domain.ErrStateNotFound, ref)
	}
	if state == r.root {
		r.mu.Unlock()
		return nil, fmt.Errorf("cannot deregister the root state")
	}

	var removed []*domain.StateNode
	for name, s := range r.states {
		if s.IncludesState(state.Name) {
			removed = append(removed, s)
			delete(r.states, name)
			delete(r.urls, s)
		}
	}
	// deepest first
	sort.Slice(removed, func(i, j int) bool { return removed[i].Depth() > removed[j].Depth() })
	listeners := r.snapshotListeners()
	r.mu.Unlock()

	r.logger.Debug("states deregistered", "state", state.Name, "count", len(removed))
	for _, l := range listeners {
		l(EventDeregistered, removed)
	}
	return removed, nil
}

// OnStatesChanged registers a listener and returns a function removing it.
func (r *Registry) OnStatesChanged(l Listener) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = l
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.listeners, id)
	}
}

func (r *Registry) snapshotListeners() []Listener {
	ids := slices.Sorted(maps.Keys(r.listeners))
	out := make([]Listener, len(ids))
	for i, id := range ids {
		out[i] = r.listeners[id]
	}
	return out
}

// Get returns the state for an absolute reference, or nil.
func (r *Registry) Get(ref any) *domain.StateNode {
	return r.Find(ref, nil)
}

// All returns every registered state except the root, sorted by name.
func (r *Registry) All() []*domain.StateNode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.StateNode, 0, len(r.states))
	for name, s := range r.states {
		if name != "" {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Find implements domain.StateFinder. Relative names ("^.sibling", ".child")
// are resolved from base.
func (r *Registry) Find(ref any, base any) *domain.StateNode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.find(ref, base)
}

func (r *Registry) find(ref any, base any) *domain.StateNode {
	var name string
	switch v := ref.(type) {
	case string:
		name = v
	case *domain.StateNode:
		if v == nil {
			return nil
		}
		name = v.Name
	case *domain.Declaration:
		if v == nil {
			return nil
		}
		name = v.Name
	default:
		return nil
	}

	if isRelative(name) {
		resolved, ok := r.resolveRelative(name, base)
		if !ok {
			return nil
		}
		name = resolved
	}

	state, ok := r.states[name]
	if !ok {
		return nil
	}
	switch v := ref.(type) {
	case *domain.StateNode:
		if state != v {
			return nil
		}
	case *domain.Declaration:
		if state.Self != v {
			return nil
		}
	}
	return state
}

func isRelative(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "^")
}

func (r *Registry) resolveRelative(name string, base any) (string, bool) {
	if base == nil {
		return "", false
	}
	baseState := r.find(base, nil)
	if baseState == nil {
		return "", false
	}

	parts := strings.Split(name, ".")
	current := baseState
	i := 0
	for ; i < len(parts); i++ {
		if parts[i] == "" && i == 0 {
			continue
		}
		if parts[i] == "^" {
			if current.Parent == nil {
				return "", false
			}
			current = current.Parent
			continue
		}
		break
	}
	rel := strings.Join(parts[i:], ".")
	if current.Name != "" && rel != "" {
		return current.Name + "." + rel, true
	}
	return current.Name + rel, true
}

// Match finds the most specific non-abstract state whose URL matches path and
// returns it with the raw parameter values.
func (r *Registry) Match(path string, search map[string][]string) (*domain.StateNode, params.Values) {
	r.mu.RLock()
	entries := make([]*urlEntry, 0, len(r.urls))
	for s, u := range r.urls {
		if !s.Abstract {
			entries = append(entries, &urlEntry{state: s, pattern: u})
		}
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].state.Name < entries[j].state.Name })
	sortBySpecificity(entries)
	for _, e := range entries {
		if vals := e.pattern.Exec(path, search); vals != nil {
			return e.state, vals
		}
	}
	return nil, nil
}

// Href formats the URL of state with vals.
func (r *Registry) Href(state *domain.StateNode, vals params.Values) (string, error) {
	if state == nil || state.URL == nil {
		return "", fmt.Errorf("%w: %s has no url", domain.ErrStateNotFound, state)
	}
	return state.URL.Format(vals)
}

func parentName(decl *domain.Declaration) string {
	if decl.Parent != "" {
		return decl.Parent
	}
	if i := strings.LastIndex(decl.Name, "."); i >= 0 {
		return decl.Name[:i]
	}
	return ""
}
