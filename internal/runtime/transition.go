package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/aretw0/waypoint/pkg/async"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/params"
	"github.com/aretw0/waypoint/pkg/rejection"
	"go.uber.org/atomic"
)

const maxRedirects = 20

// Transition is one attempt to move from the current path to a target state.
//
// It is created by Engine.Create, runs once through Run, and then settles
// either successfully or with a *rejection.Rejection. Hooks registered on the
// transition itself only apply to it.
type Transition struct {
	*Hooks

	id          int64
	engine      *Engine
	target      *domain.TargetState
	options     domain.TransitionOptions
	treeChanges *domain.TreeChanges

	aborted atomic.Bool
	runOnce sync.Once

	mu      sync.RWMutex
	settled bool
	success bool
	err     *rejection.Rejection

	future  *async.Future[*domain.StateNode]
	resolve func(*domain.StateNode)
	reject  func(error)
}

var _ domain.Transition = (*Transition)(nil)

// ID returns the transition id, unique within its router.
func (t *Transition) ID() int64 { return t.id }

// Engine returns the router running the transition.
func (t *Transition) Engine() *Engine { return t.engine }

// Options returns the transition options.
func (t *Transition) Options() domain.TransitionOptions { return t.options }

// TargetState returns the target the transition was created for.
func (t *Transition) TargetState() *domain.TargetState { return t.target }

// TreeChanges returns the paths the transition leaves, keeps and enters.
func (t *Transition) TreeChanges() *domain.TreeChanges { return t.treeChanges }

// From returns the state the transition leaves.
func (t *Transition) From() *domain.StateNode { return lastState(t.treeChanges.From) }

// To returns the state the transition goes to.
func (t *Transition) To() *domain.StateNode { return lastState(t.treeChanges.To) }

func lastState(path []*domain.PathNode) *domain.StateNode {
	if len(path) == 0 {
		return nil
	}
	return path[len(path)-1].State
}

// Entering returns the states being entered, shallowest first.
func (t *Transition) Entering() []*domain.StateNode {
	return domain.States(t.treeChanges.Entering)
}

// Exiting returns the states being exited, deepest first.
func (t *Transition) Exiting() []*domain.StateNode {
	out := domain.States(t.treeChanges.Exiting)
	slices.Reverse(out)
	return out
}

// Retained returns the states kept active.
func (t *Transition) Retained() []*domain.StateNode {
	return domain.States(t.treeChanges.Retained)
}

// Params returns the merged param values of the named path, "to" by default.
func (t *Transition) Params(path ...domain.PathType) params.Values {
	return domain.ParamValues(t.treeChanges.Path(pathOr(path, domain.PathTo)))
}

func pathOr(path []domain.PathType, def domain.PathType) domain.PathType {
	if len(path) > 0 && path[0] != "" {
		return path[0]
	}
	return def
}

// ParamsChanged returns the "to" values of every param whose value differs
// between the "from" and "to" paths.
func (t *Transition) ParamsChanged() params.Values {
	from, to := t.Params(domain.PathFrom), t.Params(domain.PathTo)
	var schema []*params.Param
	for _, path := range [][]*domain.PathNode{t.treeChanges.To, t.treeChanges.From} {
		for _, n := range path {
			for _, p := range n.ParamSchema {
				if !slices.Contains(schema, p) {
					schema = append(schema, p)
				}
			}
		}
	}
	out := params.Values{}
	for _, p := range params.Changed(schema, from, to) {
		out[p.ID] = to[p.ID]
	}
	return out
}

// changedParams returns the params that changed when the transition keeps
// exactly the same states, or ok=false otherwise.
func (t *Transition) changedParams() (changed []*params.Param, ok bool) {
	tc := t.treeChanges
	if t.options.Reload || len(tc.Exiting) > 0 || len(tc.Entering) > 0 || len(tc.To) != len(tc.From) {
		return nil, false
	}
	for i := range tc.To {
		if tc.To[i].State != tc.From[i].State {
			return nil, false
		}
	}
	for i, n := range tc.To {
		changed = append(changed, params.Changed(n.ParamSchema, n.ParamValues, tc.From[i].ParamValues)...)
	}
	return changed, true
}

// Dynamic reports whether the transition only changes dynamic params.
func (t *Transition) Dynamic() bool {
	changed, ok := t.changedParams()
	if !ok {
		return false
	}
	for _, p := range changed {
		if p.Dynamic {
			return true
		}
	}
	return false
}

const (
	ignoredSameAsPending = "SameAsPending"
	ignoredSameAsCurrent = "SameAsCurrent"
)

// Ignored reports whether the transition would change nothing: it repeats
// the pending transition, or it keeps the current path and values.
func (t *Transition) Ignored() bool { return t.ignoredReason() != "" }

func (t *Transition) ignoredReason() string {
	reload := t.options.ReloadState
	same := func(a, b []*domain.PathNode) bool {
		if len(a) != len(b) {
			return false
		}
		n := 0
		for _, node := range domain.Matching(a, b, nil) {
			if reload == nil || !node.State.IncludesState(reload.Name) {
				n++
			}
		}
		return n == len(a)
	}

	tc := t.treeChanges
	if pending := t.engine.globals.Transition(); pending != nil && pending != t {
		ptc := pending.treeChanges
		if same(ptc.To, tc.To) && same(ptc.Exiting, tc.Exiting) {
			return ignoredSameAsPending
		}
	}
	if len(tc.Exiting) == 0 && len(tc.Entering) == 0 && same(tc.From, tc.To) {
		return ignoredSameAsCurrent
	}
	return ""
}

// Injector returns an injector over the "to" path, scoped to state when given.
func (t *Transition) Injector(state *domain.StateNode) *domain.Injector {
	return t.InjectorFor(state, domain.PathTo)
}

// InjectorFor returns an injector over the named path, scoped to state when given.
func (t *Transition) InjectorFor(state *domain.StateNode, path domain.PathType) *domain.Injector {
	nodes := t.treeChanges.Path(path)
	if state != nil {
		nodes = domain.SubPath(nodes, func(n *domain.PathNode) bool { return n.State == state })
	}
	return domain.NewResolveContext(nodes, t.engine.resolveEnv()).Injector()
}

// ResolveTokens returns every token available in the named path, "to" by default.
func (t *Transition) ResolveTokens(path ...domain.PathType) []domain.Token {
	return domain.NewResolveContext(t.treeChanges.Path(pathOr(path, domain.PathTo)), t.engine.resolveEnv()).GetTokens()
}

// AddResolvable adds r to the node of state in the "to" path. state is a
// name or a *domain.StateNode; nil and "" mean the root.
func (t *Transition) AddResolvable(r *domain.Resolvable, state any) error {
	name := ""
	switch s := state.(type) {
	case string:
		name = s
	case *domain.StateNode:
		if s != nil {
			name = s.Name
		}
	}
	for _, node := range t.treeChanges.To {
		if node.State.Name == name {
			return domain.NewResolveContext(t.treeChanges.To, t.engine.resolveEnv()).AddResolvables([]*domain.Resolvable{r}, node.State)
		}
	}
	return fmt.Errorf("%w: %q is not in the path of %s", domain.ErrStateNotFound, name, t)
}

// Views returns the view configs of the named path, "entering" by default,
// optionally only for state.
func (t *Transition) Views(path domain.PathType, state *domain.StateNode) []domain.ViewConfig {
	if path == "" {
		path = domain.PathEntering
	}
	var out []domain.ViewConfig
	for _, n := range t.treeChanges.Path(path) {
		if state == nil || n.State == state {
			out = append(out, n.Views...)
		}
	}
	return out
}

// RedirectedFrom returns the transition this one replaces, or nil.
func (t *Transition) RedirectedFrom() *Transition {
	prev, _ := t.options.RedirectedFrom.(*Transition)
	return prev
}

// OriginalTransition follows the redirect chain back to its first transition.
func (t *Transition) OriginalTransition() *Transition {
	orig := t
	for prev := orig.RedirectedFrom(); prev != nil; prev = orig.RedirectedFrom() {
		orig = prev
	}
	return orig
}

// Redirect creates a new transition from the same "from" path to target. The
// new transition reuses the resolvables of entering states it shares with t.
func (t *Transition) Redirect(target *domain.TargetState) (*Transition, error) {
	redirects := 1
	for prev := t.RedirectedFrom(); prev != nil; prev = prev.RedirectedFrom() {
		if redirects++; redirects > maxRedirects {
			return nil, fmt.Errorf("%w: too many consecutive transition redirects (%d+)", domain.ErrTooManyRedirects, maxRedirects)
		}
	}

	opts := mergeOptions(t.options, target.Options())
	opts.RedirectedFrom = t
	opts.Source = domain.SourceRedirect
	if t.options.Source == domain.SourceURL && opts.Location != domain.LocationNone {
		opts.Location = domain.LocationReplace
	}
	reloadState, err := t.engine.reloadState(opts)
	if err != nil {
		return nil, err
	}
	opts.ReloadState = reloadState
	target = target.WithOptions(true, func(o *domain.TransitionOptions) { *o = opts })

	next, err := t.engine.Create(t.treeChanges.From, target)
	if err != nil {
		return nil, err
	}

	original := t.treeChanges.Entering
	for i, node := range domain.Matching(next.treeChanges.Entering, original, domain.NonDynamicParams) {
		if reloadState != nil && node.State.IncludesState(reloadState.Name) {
			continue
		}
		node.SetResolvables(original[i].Resolvables())
	}
	return next, nil
}

// mergeOptions lays the explicit settings of over on top of base.
func mergeOptions(base, over domain.TransitionOptions) domain.TransitionOptions {
	out := base
	out.Location = over.Location
	out.Supersede = over.Supersede
	out.Inherit = over.Inherit
	if over.Relative != nil {
		out.Relative = over.Relative
	}
	if over.Reload {
		out.Reload, out.ReloadRef, out.ReloadState = true, over.ReloadRef, over.ReloadState
	}
	if over.Source != domain.SourceUnknown {
		out.Source = over.Source
	}
	if len(over.Custom) > 0 {
		out.Custom = maps.Clone(base.Custom)
		if out.Custom == nil {
			out.Custom = map[string]any{}
		}
		maps.Copy(out.Custom, over.Custom)
	}
	return out
}

// IsActive reports whether t is the router's running transition.
func (t *Transition) IsActive() bool {
	return t.engine.globals.Transition() == t
}

// Is reports whether t goes between the same states as other, or whether
// its paths match criteria.
func (t *Transition) Is(compare any) bool {
	switch c := compare.(type) {
	case *Transition:
		return c.To() == t.To() && c.From() == t.From()
	case HookCriteria:
		return (&RegisteredHook{Criteria: c}).matches(t.treeChanges, t) != nil
	}
	return false
}

// Abort stops a transition that has not settled yet.
func (t *Transition) Abort() {
	t.mu.RLock()
	settled := t.settled
	t.mu.RUnlock()
	if !settled {
		t.aborted.Store(true)
	}
}

// Valid reports whether the transition may run.
func (t *Transition) Valid() bool {
	t.mu.RLock()
	settled := t.settled
	t.mu.RUnlock()
	return settled || t.Error() == nil
}

// Error explains why the transition is not valid, or returns the rejection
// of a failed transition.
func (t *Transition) Error() error {
	if msg := t.target.Error(); msg != "" {
		return fmt.Errorf("%w: %s", domain.ErrInvalidTarget, msg)
	}
	to := t.To()
	if to.Abstract {
		return fmt.Errorf("%w: cannot transition to abstract state '%s'", domain.ErrInvalidTarget, to)
	}
	if err := params.Validate(to.Parameters(true), t.Params()); err != nil {
		return fmt.Errorf("param values not valid for state '%s': %w", to, err)
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.settled && !t.success {
		return t.err
	}
	return nil
}

// Run executes the transition and blocks until it settles. It returns nil on
// success or the *rejection.Rejection that stopped it. Calling Run again
// returns the first outcome.
func (t *Transition) Run(ctx context.Context) error {
	t.runOnce.Do(func() { t.run(ctx) })
	_, err := t.future.Result()
	return err
}

func (t *Transition) run(ctx context.Context) {
	if err := invokeHooks(ctx, t.buildHooksForPhase(PhaseBefore)); err != nil {
		t.fail(ctx, err)
		return
	}

	t.engine.globals.start(t)
	t.engine.trace.transitionStart(t)

	if err := invokeHooks(ctx, t.buildHooksForPhase(PhaseRun)); err != nil {
		t.fail(ctx, err)
		return
	}
	t.succeed(ctx)
}

func (t *Transition) succeed(ctx context.Context) {
	t.mu.Lock()
	t.settled, t.success = true, true
	t.mu.Unlock()

	t.engine.trace.transitionSuccess(t)
	runAllHooks(context.WithoutCancel(ctx), t.buildHooksForPhase(PhaseSuccess))
	t.engine.globals.finish(t)
	t.resolve(t.To())
}

func (t *Transition) fail(ctx context.Context, err error) {
	rej := rejection.Normalize(err)
	t.mu.Lock()
	t.settled, t.success, t.err = true, false, rej
	t.mu.Unlock()

	t.engine.trace.transitionError(t, rej)
	runAllHooks(context.WithoutCancel(ctx), t.buildHooksForPhase(PhaseError))
	t.engine.globals.finish(t)
	t.reject(rej)
}

// Future settles with the destination state once the transition finishes.
func (t *Transition) Future() *async.Future[*domain.StateNode] { return t.future }

// Done is closed once the transition settled.
func (t *Transition) Done() <-chan struct{} { return t.future.Done() }

// Err returns the rejection of a failed transition. It is nil while running
// and after success.
func (t *Transition) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.err == nil {
		return nil
	}
	return t.err
}

// Success reports the outcome: ok is false while the transition runs.
func (t *Transition) Success() (success, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.success, t.settled
}

func (t *Transition) String() string {
	from, to := t.From(), t.To()
	mark := ""
	if !t.Valid() {
		mark = "(X) "
	}
	toName := t.target.Name()
	if to != nil {
		toName = to.Name
	}
	return fmt.Sprintf("Transition#%d( '%s'%s -> %s'%s'%s )",
		t.id, from.Name, jsonString(t.Params(domain.PathFrom)), mark, toName, jsonString(t.Params()))
}

func jsonString(v params.Values) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(map[string]any(v))
	}
	return string(b)
}
