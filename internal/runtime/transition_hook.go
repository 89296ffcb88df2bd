package runtime

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/aretw0/waypoint/pkg/async"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/rejection"
)

// TransitionHook is a registered hook bound to a transition and, for
// state-scoped events, to one state.
type TransitionHook struct {
	trans *Transition
	hook  *RegisteredHook
	node  *domain.PathNode
	state *domain.StateNode
}

// Hook returns the registered hook.
func (th *TransitionHook) Hook() *RegisteredHook { return th.hook }

// State returns the state the hook runs for, or nil.
func (th *TransitionHook) State() *domain.StateNode { return th.state }

// notCurrent returns the rejection that stops a hook of a transition that
// can no longer make progress, or nil.
func (th *TransitionHook) notCurrent(ctx context.Context) *rejection.Rejection {
	e := th.trans.engine
	if e.Disposed() {
		return rejection.NewAborted(fmt.Sprintf("router %s has been stopped (disposed)", e.ID()))
	}
	if th.trans.aborted.Load() {
		return rejection.NewAborted(nil)
	}
	if err := ctx.Err(); err != nil {
		return rejection.NewAborted(err)
	}
	if th.hook.Event.Phase == PhaseRun && !th.trans.IsActive() {
		return rejection.NewSuperseded(e.globals.Transition())
	}
	return nil
}

// invoke runs the hook and returns the rejection it produced, if any.
func (th *TransitionHook) invoke(ctx context.Context) error {
	if th.hook.Deregistered() {
		return nil
	}
	if rej := th.notCurrent(ctx); rej != nil {
		return rej
	}
	th.trans.engine.trace.hookInvocation(th)

	result, err := th.call(ctx)
	th.hook.invoked()
	if err != nil {
		return th.failed(ctx, err)
	}
	return th.handleResult(ctx, result)
}

func (th *TransitionHook) call(ctx context.Context) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook %s panicked: %v", th.hook.name(), r)
		}
	}()
	return th.hook.fn(ctx, th.trans, th.state)
}

// failed turns a hook error into a rejection. An error caused by the run
// context ending aborts the transition instead of erroring it.
func (th *TransitionHook) failed(ctx context.Context, err error) error {
	if cerr := ctx.Err(); cerr != nil && errors.Is(err, cerr) {
		return th.handleError(rejection.NewAborted(err))
	}
	return th.handleError(rejection.Normalize(err))
}

func (th *TransitionHook) handleError(rej *rejection.Rejection) error {
	switch th.hook.Event.errors {
	case errorThrow:
		return rej
	case errorLog:
		th.trans.engine.reportError(rej)
		return nil
	}
	return rej
}

func (th *TransitionHook) handleResult(ctx context.Context, result any) error {
	if th.hook.Event.Synchronous {
		th.logRejectedResult(ctx, result)
		return nil
	}
	if rej := th.notCurrent(ctx); rej != nil {
		return rej
	}
	if aw, ok := result.(async.Awaiter); ok {
		v, err := aw.AwaitAny(ctx)
		if err != nil {
			return th.failed(ctx, err)
		}
		return th.handleResult(ctx, v)
	}
	th.trans.engine.trace.hookResult(th, result)

	switch r := result.(type) {
	case bool:
		if !r {
			return rejection.NewAborted("Hook aborted transition")
		}
	case *domain.TargetState:
		return rejection.NewRedirected(r)
	}
	return nil
}

// logRejectedResult reports a failing async result of a synchronous hook
// without blocking the transition.
func (th *TransitionHook) logRejectedResult(ctx context.Context, result any) {
	aw, ok := result.(async.Awaiter)
	if !ok {
		return
	}
	go func() {
		if _, err := aw.AwaitAny(context.WithoutCancel(ctx)); err != nil {
			th.trans.engine.reportError(rejection.Normalize(err))
		}
	}()
}

// invokeHooks runs hooks one after the other and stops at the first rejection.
func invokeHooks(ctx context.Context, hooks []*TransitionHook) error {
	for _, th := range hooks {
		if err := th.invoke(ctx); err != nil {
			return err
		}
	}
	return nil
}

// runAllHooks runs every hook regardless of failures.
func runAllHooks(ctx context.Context, hooks []*TransitionHook) {
	for _, th := range hooks {
		_ = th.invoke(ctx)
	}
}

// hookTuple is a TransitionHook with the keys it is sorted by.
type hookTuple struct {
	hook  *RegisteredHook
	node  *domain.PathNode
	depth int
	th    *TransitionHook
}

// buildHooksForPhase returns the hooks of every event type in phase, ordered
// by event order, then priority, then depth.
func (t *Transition) buildHooksForPhase(phase Phase) []*TransitionHook {
	var out []*TransitionHook
	for _, et := range eventsFor(t.engine.events, phase) {
		out = append(out, t.buildHooks(et)...)
	}
	return out
}

func (t *Transition) buildHooks(et *EventType) []*TransitionHook {
	registries := []*Hooks{t.Hooks, t.engine.Hooks}
	if et.Phase == PhaseCreate {
		registries = []*Hooks{t.engine.Hooks}
	}

	tc := t.treeChanges
	var tuples []hookTuple
	for _, reg := range registries {
		for _, h := range reg.Get(et.Name) {
			matched := h.matches(tc, t)
			if matched == nil {
				continue
			}
			for _, node := range matched[et.Path] {
				var state *domain.StateNode
				if et.Scope == ScopeState {
					state = node.State
				}
				tuples = append(tuples, hookTuple{
					hook:  h,
					node:  node,
					depth: node.State.Depth(),
					th:    &TransitionHook{trans: t, hook: h, node: node, state: state},
				})
			}
		}
	}

	slices.SortStableFunc(tuples, func(a, b hookTuple) int {
		if c := cmp.Compare(b.hook.Options.Priority, a.hook.Options.Priority); c != 0 {
			return c
		}
		if et.Reverse {
			return cmp.Compare(b.depth, a.depth)
		}
		return cmp.Compare(a.depth, b.depth)
	})

	out := make([]*TransitionHook, len(tuples))
	for i, tp := range tuples {
		out[i] = tp.th
	}
	return out
}
