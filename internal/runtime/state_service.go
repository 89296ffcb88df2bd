package runtime

import (
	"context"
	"fmt"
	"slices"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/glob"
	"github.com/aretw0/waypoint/pkg/params"
	"github.com/aretw0/waypoint/pkg/rejection"
)

// InvalidHandler is called when a transition targets a state that does not
// exist. It may return a replacement target, or nil to let the next handler try.
type InvalidHandler func(ctx context.Context, to, from *domain.TargetState, injector *domain.Injector) (*domain.TargetState, error)

type invalidHandler struct {
	id int
	fn InvalidHandler
}

// OnInvalid registers an invalid-target handler and returns a function removing it.
// Handlers run in registration order.
func (e *Engine) OnInvalid(fn InvalidHandler) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextHandlerID
	e.nextHandlerID++
	e.invalidHandlers = append(e.invalidHandlers, &invalidHandler{id: id, fn: fn})
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.invalidHandlers = slices.DeleteFunc(e.invalidHandlers, func(h *invalidHandler) bool { return h.id == id })
	}
}

// Current returns the active state; the root before any transition succeeded.
func (e *Engine) Current() *domain.StateNode {
	if s := e.globals.Current(); s != nil {
		return s
	}
	return e.registry.Root()
}

// Params returns the param values of the active state.
func (e *Engine) Params() params.Values {
	return e.globals.Params()
}

// CurrentPath returns the path of the last successful transition, or a path
// holding only the root.
func (e *Engine) CurrentPath() []*domain.PathNode {
	if t, ok := e.globals.SuccessfulTransitions.PeekTail(); ok {
		return t.treeChanges.To
	}
	return []*domain.PathNode{domain.NewPathNode(e.registry.Root())}
}

// Target builds a target state. It fails when a reload state is requested
// but cannot be found.
func (e *Engine) Target(identifier any, vals params.Values, opts ...domain.TransitionOption) (*domain.TargetState, error) {
	return e.target(identifier, vals, domain.DefaultTransitionOptions().Apply(opts...))
}

func (e *Engine) target(identifier any, vals params.Values, options domain.TransitionOptions) (*domain.TargetState, error) {
	reloadState, err := e.reloadState(options)
	if err != nil {
		return nil, err
	}
	options.ReloadState = reloadState
	return domain.NewTargetState(e.registry, identifier, vals, options), nil
}

// reloadState resolves the reload option to a state, or nil.
func (e *Engine) reloadState(options domain.TransitionOptions) (*domain.StateNode, error) {
	switch {
	case !options.Reload:
		return nil, nil
	case options.ReloadRef == nil:
		return e.registry.Root(), nil
	}
	s := e.registry.Find(options.ReloadRef, options.Relative)
	if s == nil {
		return nil, fmt.Errorf("%w: no such reload state '%v'", domain.ErrStateNotFound, options.ReloadRef)
	}
	return s, nil
}

// TransitionTo moves to the state identified by to with vals, following
// redirects. It returns the last transition run.
//
// An ignored transition is a success. Aborted, superseded and invalid
// transitions return their *rejection.Rejection; genuine errors are also
// reported to the default error handler.
func (e *Engine) TransitionTo(ctx context.Context, to any, vals params.Values, opts ...domain.TransitionOption) (*Transition, error) {
	return e.transitionTo(ctx, to, vals, domain.DefaultTransitionOptions().Apply(opts...))
}

// Go is TransitionTo with inherited params and references relative to the
// current state.
func (e *Engine) Go(ctx context.Context, to any, vals params.Values, opts ...domain.TransitionOption) (*Transition, error) {
	options := domain.DefaultTransitionOptions()
	options.Inherit = true
	if cur := e.globals.Current(); cur != nil {
		options.Relative = cur
	}
	return e.transitionTo(ctx, to, vals, options.Apply(opts...))
}

// Reload re-enters the current state. With a nil reloadState everything is
// reloaded; otherwise reloadState and its descendants are.
func (e *Engine) Reload(ctx context.Context, reloadState any) (*Transition, error) {
	opt := domain.WithReload()
	if reloadState != nil {
		opt = domain.WithReloadState(reloadState)
	}
	return e.TransitionTo(ctx, e.Current(), e.Params(), opt, domain.WithInherit(false))
}

func (e *Engine) transitionTo(ctx context.Context, to any, vals params.Values, options domain.TransitionOptions) (*Transition, error) {
	if e.Disposed() {
		return nil, fmt.Errorf("%w: router %s", domain.ErrRouterDisposed, e.id)
	}
	ref, err := e.target(to, vals, options)
	if err != nil {
		return nil, err
	}
	fromPath := e.CurrentPath()
	if !ref.Exists() {
		return e.handleInvalidTarget(ctx, fromPath, ref)
	}
	if !ref.Valid() {
		return nil, rejection.NewInvalid(ref.Error())
	}
	if cur := e.globals.Transition(); !options.Supersede && cur != nil {
		return nil, rejection.NewIgnored("Another transition is in progress and supersede has been set to false: " + cur.String())
	}

	t, err := e.Create(fromPath, ref)
	if err != nil {
		return nil, err
	}
	return e.runTransition(ctx, t)
}

// runTransition runs t and follows redirect rejections with new transitions.
func (e *Engine) runTransition(ctx context.Context, t *Transition) (*Transition, error) {
	err := t.Run(ctx)
	if err == nil {
		return t, nil
	}
	if rej, ok := rejection.As(err); ok {
		switch rej.Type {
		case rejection.Ignored:
			return t, nil
		case rejection.Superseded:
			target, isRedirect := rej.Detail.(*domain.TargetState)
			if !rej.Redirected || !isRedirect {
				return t, rej
			}
			next, err := t.Redirect(target)
			if err != nil {
				e.reportError(err)
				return t, err
			}
			return e.runTransition(ctx, next)
		case rejection.Aborted:
			return t, rej
		}
	}
	e.reportError(err)
	return t, err
}

// handleInvalidTarget gives the invalid-target handlers a chance to replace a
// target that does not exist.
func (e *Engine) handleInvalidTarget(ctx context.Context, fromPath []*domain.PathNode, to *domain.TargetState) (*Transition, error) {
	from := domain.MakeTargetState(e.registry, fromPath)
	latest, _ := e.globals.TransitionHistory.PeekTail()
	injector := domain.NewResolveContext(fromPath, e.resolveEnv()).Injector()

	e.mu.RLock()
	handlers := slices.Clone(e.invalidHandlers)
	e.mu.RUnlock()

	for _, h := range handlers {
		res, err := h.fn(ctx, to, from, injector)
		if err != nil {
			return nil, err
		}
		if res == nil {
			continue
		}
		target, err := e.target(res.Identifier(), res.Params(), res.Options())
		if err != nil {
			return nil, err
		}
		if !target.Valid() {
			return nil, rejection.NewInvalid(target.Error())
		}
		if now, _ := e.globals.TransitionHistory.PeekTail(); now != latest {
			return nil, rejection.NewSuperseded(now)
		}
		return e.transitionTo(ctx, target.Identifier(), target.Params(), target.Options())
	}
	return nil, rejection.NewInvalid(to.Error())
}

// Is reports whether ref is exactly the active state and, when vals is
// given, whether those params have the given values.
func (e *Engine) Is(ref any, vals params.Values) bool {
	cur := e.Current()
	state := e.registry.Find(ref, cur)
	if state == nil || state != cur {
		return false
	}
	return e.paramsMatch(state, vals)
}

// Includes reports whether ref is the active state or one of its ancestors.
// ref may be a glob such as "users.**", matched against the active state name.
func (e *Engine) Includes(ref any, vals params.Values) bool {
	cur := e.Current()
	if s, ok := ref.(string); ok && glob.IsGlob(s) {
		if !glob.Compile(s).Matches(cur.Name) {
			return false
		}
		ref = cur.Name
	}
	state := e.registry.Find(ref, cur)
	if state == nil || !cur.IncludesState(state.Name) {
		return false
	}
	return e.paramsMatch(state, vals)
}

func (e *Engine) paramsMatch(state *domain.StateNode, vals params.Values) bool {
	if vals == nil {
		return true
	}
	var schema []*params.Param
	for _, p := range state.Parameters(true) {
		if _, ok := vals[p.ID]; ok {
			schema = append(schema, p)
		}
	}
	normalized, err := params.ValuesOf(schema, vals)
	if err != nil {
		return false
	}
	return params.Equals(schema, normalized, e.Params())
}

// Href formats the URL of ref with vals, inheriting the current values of
// params vals does not set.
func (e *Engine) Href(ref any, vals params.Values) (string, error) {
	state := e.registry.Find(ref, e.Current())
	if state == nil {
		return "", fmt.Errorf("%w: %v", domain.ErrStateNotFound, ref)
	}
	merged := e.Params()
	for k, v := range vals {
		merged[k] = v
	}
	return e.registry.Href(state, merged)
}
