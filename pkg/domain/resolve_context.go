package domain

import (
	"context"
	"fmt"
	"slices"

	"github.com/aretw0/waypoint/pkg/async"
	"golang.org/x/sync/errgroup"
)

// NativeInjector is the fallback lookup for tokens that no resolvable provides.
type NativeInjector interface {
	Get(token Token) (any, bool)
}

// MapInjector is a NativeInjector backed by a map.
type MapInjector map[Token]any

func (m MapInjector) Get(token Token) (any, bool) {
	v, ok := m[token]
	return v, ok
}

// ResolveEnv carries the router-wide collaborators of resolution.
type ResolveEnv struct {
	Native   NativeInjector
	Defaults ResolvePolicy
	Tracer   Tracer
}

// ResolvedValue pairs a token with its resolved value.
type ResolvedValue struct {
	Token Token
	Value any
}

// ResolveContext scopes resolution to a path: a resolvable only sees the
// resolvables of its own node and that node's ancestors.
type ResolveContext struct {
	path []*PathNode
	env  ResolveEnv
}

// NewResolveContext creates a ResolveContext over path.
func NewResolveContext(path []*PathNode, env ResolveEnv) *ResolveContext {
	env.Defaults = env.Defaults.Or(DefaultResolvePolicy)
	return &ResolveContext{path: path, env: env}
}

// Path returns the nodes in scope.
func (rc *ResolveContext) Path() []*PathNode { return rc.path }

// Env returns the collaborators of this context.
func (rc *ResolveContext) Env() ResolveEnv { return rc.env }

// GetTokens returns every token available in the path, without duplicates.
func (rc *ResolveContext) GetTokens() []Token {
	var out []Token
	for _, node := range rc.path {
		for _, r := range node.Resolvables() {
			if !slices.Contains(out, r.Token) {
				out = append(out, r.Token)
			}
		}
	}
	return out
}

// GetResolvable returns the deepest resolvable for token, or nil.
func (rc *ResolveContext) GetResolvable(token Token) *Resolvable {
	var found *Resolvable
	for _, node := range rc.path {
		for _, r := range node.Resolvables() {
			if r.Token == token {
				found = r
			}
		}
	}
	return found
}

// GetPolicy returns the effective policy of r within this context.
func (rc *ResolveContext) GetPolicy(r *Resolvable) ResolvePolicy {
	var state *StateNode
	if node := rc.FindNode(r); node != nil {
		state = node.State
	}
	return r.EffectivePolicy(state, rc.env.Defaults)
}

// SubContext returns a context over the path up to and including state.
func (rc *ResolveContext) SubContext(state *StateNode) *ResolveContext {
	sub := SubPath(rc.path, func(n *PathNode) bool { return n.State == state })
	return &ResolveContext{path: sub, env: rc.env}
}

// AddResolvables adds resolvables to state's node, replacing those with the same token.
func (rc *ResolveContext) AddResolvables(resolvables []*Resolvable, state *StateNode) error {
	idx := slices.IndexFunc(rc.path, func(n *PathNode) bool { return n.State == state })
	if idx < 0 {
		return fmt.Errorf("%w: %s is not in the resolve path", ErrStateNotFound, state)
	}
	rc.path[idx].AddResolvables(resolvables...)
	return nil
}

// FindNode returns the node owning r, or nil.
func (rc *ResolveContext) FindNode(r *Resolvable) *PathNode {
	for _, node := range rc.path {
		if slices.Contains(node.Resolvables(), r) {
			return node
		}
	}
	return nil
}

// GetDependencies returns the resolvables r depends on. Tokens are looked up in
// r's own node and its ancestors, then in the native injector.
func (rc *ResolveContext) GetDependencies(r *Resolvable) ([]*Resolvable, error) {
	node := rc.FindNode(r)
	sub := SubPath(rc.path, func(n *PathNode) bool { return n == node })
	if sub == nil {
		sub = rc.path
	}

	var available []*Resolvable
	for _, n := range sub {
		for _, res := range n.Resolvables() {
			if res != r {
				available = append(available, res)
			}
		}
	}

	deps := make([]*Resolvable, 0, len(r.Deps))
	for _, token := range r.Deps {
		var match *Resolvable
		for _, res := range available {
			if res.Token == token {
				match = res
			}
		}
		if match != nil {
			deps = append(deps, match)
			continue
		}
		v, ok := rc.Injector().GetNative(token)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrTokenNotFound, token)
		}
		deps = append(deps, FromData(token, v))
	}
	return deps, nil
}

// ResolvePath fetches the resolvables of every node. WhenEager only fetches
// eager resolvables; WhenLazy fetches both. NOWAIT resolvables are started
// but the returned future does not wait for them, nor include them.
func (rc *ResolveContext) ResolvePath(ctx context.Context, when When, trans Transition) *async.Future[[]ResolvedValue] {
	matched := []When{WhenEager, WhenLazy}
	if when == WhenEager {
		matched = []When{WhenEager}
	}
	if rc.env.Tracer != nil {
		rc.env.Tracer.TraceResolvePath(rc.path, when, trans)
	}

	type pending struct {
		token  Token
		future *async.Future[any]
	}
	var wait []pending
	for _, node := range rc.path {
		sub := rc.SubContext(node.State)
		for _, r := range node.Resolvables() {
			policy := rc.GetPolicy(r)
			if !slices.Contains(matched, policy.When) {
				continue
			}
			f := r.Get(ctx, sub, trans)
			if policy.Async != AsyncNoWait {
				wait = append(wait, pending{token: r.Token, future: f})
			}
		}
	}

	return async.Go(func() ([]ResolvedValue, error) {
		out := make([]ResolvedValue, len(wait))
		g, gctx := errgroup.WithContext(ctx)
		for i, p := range wait {
			g.Go(func() error {
				v, err := p.future.Await(gctx)
				out[i] = ResolvedValue{Token: p.token, Value: v}
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// Injector returns an Injector over this context.
func (rc *ResolveContext) Injector() *Injector {
	return &Injector{context: rc, native: rc.env.Native}
}

// Injector reads resolved values out of a ResolveContext.
type Injector struct {
	context *ResolveContext
	native  NativeInjector
}

// Get returns the resolved value of token. For a NOWAIT resolvable it returns
// its *async.Future[any] instead. It fails if a waited resolvable has not resolved.
func (i *Injector) Get(token Token) (any, error) {
	if r := i.context.GetResolvable(token); r != nil {
		if i.context.GetPolicy(r).Async == AsyncNoWait {
			return r.Get(context.Background(), i.context, nil), nil
		}
		if !r.Resolved() {
			return nil, fmt.Errorf("%w: %s", ErrResolveNotComplete, token)
		}
		return r.Data(), nil
	}
	if v, ok := i.GetNative(token); ok {
		return v, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrTokenNotFound, token)
}

// GetAsync returns a future for token, starting resolution if needed.
func (i *Injector) GetAsync(ctx context.Context, token Token) *async.Future[any] {
	if r := i.context.GetResolvable(token); r != nil {
		return r.Get(ctx, i.context, nil)
	}
	if v, ok := i.GetNative(token); ok {
		return async.Resolved(v)
	}
	return async.Rejected[any](fmt.Errorf("%w: %s", ErrTokenNotFound, token))
}

// GetNative looks token up in the native injector only.
func (i *Injector) GetNative(token Token) (any, bool) {
	if i.native == nil {
		return nil, false
	}
	return i.native.Get(token)
}
