package runtime

import (
	"context"
	"fmt"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/rejection"
	"golang.org/x/sync/errgroup"
)

// Tokens of the router and transition, by type.
var (
	TokenEngine     = domain.TypeOf[*Engine]()
	TokenTransition = domain.TypeOf[*Transition]()
)

func (e *Engine) registerCoreHooks() {
	e.OnCreate(HookCriteria{}, addCoreResolvables, WithHookName("coreResolvables"))

	e.OnBefore(HookCriteria{}, invalidTransitionHook, WithPriority(-10000), WithHookName("invalidTransition"))
	e.OnBefore(HookCriteria{}, ignoredHook, WithPriority(-9999), WithHookName("ignoredTransition"))

	e.OnStart(HookCriteria{}, eagerResolvePath, WithPriority(1000), WithHookName("eagerResolve"))
	e.OnStart(HookCriteria{To: Predicate(hasRedirect)}, redirectToHook, WithHookName("redirectTo"))

	e.OnExit(HookCriteria{Exiting: Predicate(declares(func(d *domain.Declaration) domain.DeclHook { return d.OnExit }))},
		declHook(func(d *domain.Declaration) domain.DeclHook { return d.OnExit }), WithHookName("stateOnExit"))
	e.OnRetain(HookCriteria{Retained: Predicate(declares(func(d *domain.Declaration) domain.DeclHook { return d.OnRetain }))},
		declHook(func(d *domain.Declaration) domain.DeclHook { return d.OnRetain }), WithHookName("stateOnRetain"))
	e.OnEnter(HookCriteria{Entering: Predicate(declares(func(d *domain.Declaration) domain.DeclHook { return d.OnEnter }))},
		declHook(func(d *domain.Declaration) domain.DeclHook { return d.OnEnter }), WithHookName("stateOnEnter"))

	e.OnEnter(HookCriteria{Entering: Always()}, lazyResolveState, WithPriority(1000), WithHookName("lazyResolve"))
	e.OnFinish(HookCriteria{}, resolveRemaining, WithPriority(100), WithHookName("resolveRemaining"))
	e.OnFinish(HookCriteria{}, loadEnteringViews, WithHookName("loadViews"))

	e.OnSuccess(HookCriteria{}, updateGlobals, WithPriority(10000), WithHookName("updateGlobals"))
	e.OnSuccess(HookCriteria{}, cleanupTransitionResolvables, WithPriority(9999), WithHookName("cleanupResolvables"))
	e.OnSuccess(HookCriteria{}, activateViews, WithHookName("activateViews"))
}

// addCoreResolvables makes the router, the transition, its params and each
// entering state injectable.
func addCoreResolvables(_ context.Context, t *Transition, _ *domain.StateNode) (any, error) {
	for _, r := range []*domain.Resolvable{
		domain.FromData(domain.TokenRouter, t.engine),
		domain.FromData(TokenEngine, t.engine),
		domain.FromData(domain.TokenTransition, t),
		domain.FromData(TokenTransition, t),
		domain.FromData(domain.TokenStateParams, t.Params()),
	} {
		if err := t.AddResolvable(r, ""); err != nil {
			return nil, err
		}
	}
	for _, s := range t.Entering() {
		if err := t.AddResolvable(domain.FromData(domain.TokenState, s), s); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func invalidTransitionHook(_ context.Context, t *Transition, _ *domain.StateNode) (any, error) {
	if !t.Valid() {
		return nil, rejection.NewInvalid(t.Error().Error())
	}
	return nil, nil
}

func ignoredHook(_ context.Context, t *Transition, _ *domain.StateNode) (any, error) {
	reason := t.ignoredReason()
	if reason == "" {
		return nil, nil
	}
	t.engine.trace.transitionIgnored(t, reason)
	if pending := t.engine.globals.Transition(); reason == ignoredSameAsCurrent && pending != nil {
		pending.Abort()
	}
	return nil, rejection.NewIgnored(nil)
}

func eagerResolvePath(ctx context.Context, t *Transition, _ *domain.StateNode) (any, error) {
	return domain.NewResolveContext(t.treeChanges.To, t.engine.resolveEnv()).ResolvePath(ctx, domain.WhenEager, t), nil
}

func lazyResolveState(ctx context.Context, t *Transition, state *domain.StateNode) (any, error) {
	rc := domain.NewResolveContext(t.treeChanges.To, t.engine.resolveEnv()).SubContext(state)
	return rc.ResolvePath(ctx, domain.WhenLazy, t), nil
}

func resolveRemaining(ctx context.Context, t *Transition, _ *domain.StateNode) (any, error) {
	return domain.NewResolveContext(t.treeChanges.To, t.engine.resolveEnv()).ResolvePath(ctx, domain.WhenLazy, t), nil
}

func hasRedirect(state *domain.StateNode, _ *Transition) bool {
	return state.Self != nil && state.Self.RedirectTo != nil
}

// redirectToHook follows the RedirectTo of the target state.
func redirectToHook(ctx context.Context, t *Transition, _ *domain.StateNode) (any, error) {
	redirect := t.To().Self.RedirectTo
	switch fn := redirect.(type) {
	case domain.RedirectFn:
		res, err := fn(ctx, t)
		if err != nil {
			return nil, err
		}
		return t.redirectTarget(res)
	case func(context.Context, domain.Transition) (any, error):
		res, err := fn(ctx, t)
		if err != nil {
			return nil, err
		}
		return t.redirectTarget(res)
	}
	return t.redirectTarget(redirect)
}

// redirectTarget turns a redirect value into a target state, keeping the
// transition's params and options.
func (t *Transition) redirectTarget(v any) (any, error) {
	switch r := v.(type) {
	case nil:
		return nil, nil
	case *domain.TargetState:
		return r, nil
	case string:
		return t.engine.target(r, t.Params(), t.options)
	case *domain.StateNode, *domain.Declaration:
		return t.engine.target(r, t.Params(), t.options)
	}
	return nil, fmt.Errorf("unsupported redirect value %T", v)
}

func declares(get func(*domain.Declaration) domain.DeclHook) func(*domain.StateNode, *Transition) bool {
	return func(s *domain.StateNode, _ *Transition) bool {
		return s.Self != nil && get(s.Self) != nil
	}
}

// declHook runs the lifecycle callback a state declares.
func declHook(get func(*domain.Declaration) domain.DeclHook) HookFn {
	return func(ctx context.Context, t *Transition, state *domain.StateNode) (any, error) {
		return get(state.Self)(ctx, t, state)
	}
}

func updateGlobals(_ context.Context, t *Transition, _ *domain.StateNode) (any, error) {
	t.engine.globals.commit(t)
	return nil, nil
}

// cleanupTransitionResolvables drops references to the transition so that
// retained nodes do not keep it alive.
func cleanupTransitionResolvables(_ context.Context, t *Transition, _ *domain.StateNode) (any, error) {
	tc := t.treeChanges
	seen := map[*domain.PathNode]bool{}
	for _, path := range [][]*domain.PathNode{tc.From, tc.To, tc.Retained, tc.RetainedWithToParams, tc.Entering, tc.Exiting} {
		for _, node := range path {
			if seen[node] {
				continue
			}
			seen[node] = true
			rs := node.Resolvables()
			changed := false
			for i, r := range rs {
				if r.Token == domain.TokenTransition || r.Token == TokenTransition {
					rs[i] = domain.FromData(r.Token, nil)
					changed = true
				}
			}
			if changed {
				node.SetResolvables(rs)
			}
		}
	}
	return nil, nil
}

func loadEnteringViews(ctx context.Context, t *Transition, _ *domain.StateNode) (any, error) {
	views := t.Views(domain.PathEntering, nil)
	if len(views) == 0 {
		return nil, nil
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, v := range views {
		g.Go(func() error { return v.Load(gctx) })
	}
	return nil, g.Wait()
}

func activateViews(_ context.Context, t *Transition, _ *domain.StateNode) (any, error) {
	svc := t.engine.views
	entering, exiting := t.Views(domain.PathEntering, nil), t.Views(domain.PathExiting, nil)
	if svc == nil || (len(entering) == 0 && len(exiting) == 0) {
		return nil, nil
	}
	for _, v := range exiting {
		svc.DeactivateViewConfig(v)
	}
	for _, v := range entering {
		svc.ActivateViewConfig(v)
	}
	svc.Sync()
	t.engine.trace.viewConfigsSynced(t, len(entering), len(exiting))
	return nil, nil
}
