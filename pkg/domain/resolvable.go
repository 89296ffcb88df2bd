package domain

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aretw0/waypoint/pkg/async"
	"golang.org/x/sync/errgroup"
)

// ResolveFn produces a resolvable's value from its dependencies, passed in
// declaration order.
type ResolveFn func(ctx context.Context, deps ...any) (any, error)

// Resolvable is a named, memoized, asynchronous value with declared dependencies.
//
// Get is idempotent: the resolve function runs at most once and every caller
// shares the same future. Once resolved, the data never changes and the
// resolve function is released.
type Resolvable struct {
	Token  Token
	Deps   []Token
	Policy ResolvePolicy

	mu       sync.Mutex
	fn       ResolveFn
	data     any
	resolved bool
	future   *async.Future[any]
}

// NewResolvable creates an unresolved Resolvable.
func NewResolvable(token Token, fn ResolveFn, deps []Token, policy ResolvePolicy) *Resolvable {
	return &Resolvable{
		Token:  token,
		Deps:   deps,
		Policy: policy,
		fn:     fn,
	}
}

// FromData creates a Resolvable that is already resolved to data.
func FromData(token Token, data any) *Resolvable {
	return &Resolvable{
		Token:    token,
		data:     data,
		resolved: true,
		future:   async.Resolved(data),
		fn: func(context.Context, ...any) (any, error) {
			return data, nil
		},
	}
}

// Clone returns a copy sharing this resolvable's state, including an in-flight future.
func (r *Resolvable) Clone() *Resolvable {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &Resolvable{
		Token:    r.Token,
		Deps:     append([]Token(nil), r.Deps...),
		Policy:   r.Policy,
		fn:       r.fn,
		data:     r.data,
		resolved: r.resolved,
		future:   r.future,
	}
}

// Resolved reports whether the value is available.
func (r *Resolvable) Resolved() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolved
}

// Data returns the resolved value, or nil before resolution.
func (r *Resolvable) Data() any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data
}

// EffectivePolicy merges the resolvable's policy over the state's and then defaults.
func (r *Resolvable) EffectivePolicy(state *StateNode, defaults ResolvePolicy) ResolvePolicy {
	var statePolicy ResolvePolicy
	if state != nil {
		statePolicy = state.ResolvePolicy
	}
	return r.Policy.Or(statePolicy).Or(defaults)
}

// Get returns the resolvable's future, starting resolution on first use.
func (r *Resolvable) Get(ctx context.Context, rc *ResolveContext, trans Transition) *async.Future[any] {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.future != nil {
		return r.future
	}
	return r.resolveLocked(ctx, rc, trans)
}

// Resolve starts a fresh resolution, replacing any previous future.
func (r *Resolvable) Resolve(ctx context.Context, rc *ResolveContext, trans Transition) *async.Future[any] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolveLocked(ctx, rc, trans)
}

func (r *Resolvable) resolveLocked(ctx context.Context, rc *ResolveContext, trans Transition) *async.Future[any] {
	fn := r.fn
	var state *StateNode
	if node := rc.FindNode(r); node != nil {
		state = node.State
	}
	policy := r.EffectivePolicy(state, rc.env.Defaults)

	r.future = async.Go(func() (any, error) {
		deps, err := rc.GetDependencies(r)
		if err != nil {
			return nil, err
		}

		values := make([]any, len(deps))
		g, gctx := errgroup.WithContext(ctx)
		for i, dep := range deps {
			g.Go(func() error {
				v, err := dep.Get(ctx, rc, trans).Await(gctx)
				values[i] = v
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		if fn == nil {
			return nil, fmt.Errorf("resolvable %s has no resolve function", r.Token)
		}
		v, err := fn(ctx, values...)
		if err != nil {
			return nil, err
		}
		if policy.Transform != nil {
			if v, err = policy.Transform(ctx, v); err != nil {
				return nil, err
			}
		}

		r.mu.Lock()
		r.data = v
		r.resolved = true
		r.fn = nil
		r.mu.Unlock()

		if rc.env.Tracer != nil {
			rc.env.Tracer.TraceResolvableResolved(r, trans)
		}
		return v, nil
	})
	return r.future
}

func (r *Resolvable) String() string {
	deps := make([]string, len(r.Deps))
	for i, d := range r.Deps {
		deps[i] = d.String()
	}
	return fmt.Sprintf("Resolvable(token: %s, requires: [%s])", r.Token, strings.Join(deps, ","))
}
