package runtime

import (
	"context"
	"slices"
	"sync"

	"github.com/aretw0/waypoint/pkg/domain"
	"go.uber.org/atomic"
)

// HookFn is a transition hook. state is the state the hook runs for, or nil
// for transition-scoped events.
//
// Returning false aborts the transition, a *domain.TargetState redirects it,
// and an async.Awaiter is waited for and its value handled the same way.
// Anything else lets the transition continue. A returned error rejects it.
type HookFn func(ctx context.Context, t *Transition, state *domain.StateNode) (any, error)

// HookOptions configure a registered hook.
type HookOptions struct {
	// Priority orders hooks of the same event; higher runs first.
	Priority int
	// InvokeLimit deregisters the hook after that many invocations. Zero is unlimited.
	InvokeLimit int
	// Name labels the hook in traces.
	Name string
}

// HookOption configures HookOptions.
type HookOption func(*HookOptions)

// WithPriority sets the hook priority.
func WithPriority(p int) HookOption {
	return func(o *HookOptions) { o.Priority = p }
}

// WithInvokeLimit deregisters the hook after n invocations.
func WithInvokeLimit(n int) HookOption {
	return func(o *HookOptions) { o.InvokeLimit = n }
}

// WithHookName labels the hook in traces.
func WithHookName(name string) HookOption {
	return func(o *HookOptions) { o.Name = name }
}

// RegisteredHook is a hook registered for an event type.
type RegisteredHook struct {
	Event    *EventType
	Criteria HookCriteria
	Options  HookOptions

	fn           HookFn
	invokeCount  atomic.Int64
	deregistered atomic.Bool
	remove       func()
}

// Deregister removes the hook. It is safe to call more than once.
func (h *RegisteredHook) Deregister() {
	if h.deregistered.CompareAndSwap(false, true) && h.remove != nil {
		h.remove()
	}
}

// Deregistered reports whether the hook was removed.
func (h *RegisteredHook) Deregistered() bool { return h.deregistered.Load() }

// InvokeCount returns how many times the hook ran.
func (h *RegisteredHook) InvokeCount() int64 { return h.invokeCount.Load() }

func (h *RegisteredHook) name() string {
	if h.Options.Name != "" {
		return h.Options.Name
	}
	return h.Event.Name
}

// invoked counts an invocation and deregisters the hook when it hits its limit.
func (h *RegisteredHook) invoked() {
	n := h.invokeCount.Inc()
	if h.Options.InvokeLimit > 0 && n >= int64(h.Options.InvokeLimit) {
		h.Deregister()
	}
}

// matches checks every criteria path against tc. It returns the matching
// nodes per path, or nil when some criterion does not match.
func (h *RegisteredHook) matches(tc *domain.TreeChanges, t *Transition) map[domain.PathType][]*domain.PathNode {
	out := make(map[domain.PathType][]*domain.PathNode, len(criteriaPaths))
	for _, cp := range criteriaPaths {
		path := tc.Path(cp.name)
		nodes := path
		if cp.scope == ScopeTransition {
			nodes = nil
			if len(path) > 0 {
				nodes = path[len(path)-1:]
			}
		}
		matched, ok := matchingNodes(nodes, h.Criteria.get(cp.name), t)
		if !ok {
			return nil
		}
		out[cp.name] = matched
	}
	return out
}

// Hooks is a set of registered hooks keyed by event name. The router holds
// the global set; each transition holds its own.
type Hooks struct {
	mu     sync.RWMutex
	events []*EventType
	hooks  map[string][]*RegisteredHook
}

func newHooks(events []*EventType) *Hooks {
	return &Hooks{
		events: events,
		hooks:  make(map[string][]*RegisteredHook),
	}
}

func (hs *Hooks) eventType(name string) *EventType {
	for _, e := range hs.events {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// On registers fn for the named event and returns a function deregistering it.
func (hs *Hooks) On(event string, criteria HookCriteria, fn HookFn, opts ...HookOption) func() {
	et := hs.eventType(event)
	if et == nil {
		panic("runtime: unknown hook event " + event)
	}
	h := &RegisteredHook{Event: et, Criteria: criteria, fn: fn}
	for _, opt := range opts {
		opt(&h.Options)
	}
	h.remove = func() {
		hs.mu.Lock()
		defer hs.mu.Unlock()
		hs.hooks[event] = slices.DeleteFunc(hs.hooks[event], func(x *RegisteredHook) bool { return x == h })
	}

	hs.mu.Lock()
	hs.hooks[event] = append(hs.hooks[event], h)
	hs.mu.Unlock()
	return h.Deregister
}

// Get returns the hooks registered for event, in registration order.
func (hs *Hooks) Get(event string) []*RegisteredHook {
	hs.mu.RLock()
	defer hs.mu.RUnlock()
	return slices.Clone(hs.hooks[event])
}

// OnBefore registers a hook that runs before the transition starts.
func (hs *Hooks) OnBefore(criteria HookCriteria, fn HookFn, opts ...HookOption) func() {
	return hs.On(EventBefore, criteria, fn, opts...)
}

// OnStart registers a hook that runs when the transition starts.
func (hs *Hooks) OnStart(criteria HookCriteria, fn HookFn, opts ...HookOption) func() {
	return hs.On(EventStart, criteria, fn, opts...)
}

// OnExit registers a hook that runs for each exiting state, deepest first.
func (hs *Hooks) OnExit(criteria HookCriteria, fn HookFn, opts ...HookOption) func() {
	return hs.On(EventExit, criteria, fn, opts...)
}

// OnRetain registers a hook that runs for each retained state.
func (hs *Hooks) OnRetain(criteria HookCriteria, fn HookFn, opts ...HookOption) func() {
	return hs.On(EventRetain, criteria, fn, opts...)
}

// OnEnter registers a hook that runs for each entering state, shallowest first.
func (hs *Hooks) OnEnter(criteria HookCriteria, fn HookFn, opts ...HookOption) func() {
	return hs.On(EventEnter, criteria, fn, opts...)
}

// OnFinish registers a hook that runs after the states were entered.
func (hs *Hooks) OnFinish(criteria HookCriteria, fn HookFn, opts ...HookOption) func() {
	return hs.On(EventFinish, criteria, fn, opts...)
}

// OnSuccess registers a hook that runs after the transition succeeded.
func (hs *Hooks) OnSuccess(criteria HookCriteria, fn HookFn, opts ...HookOption) func() {
	return hs.On(EventSuccess, criteria, fn, opts...)
}

// OnError registers a hook that runs after the transition failed.
func (hs *Hooks) OnError(criteria HookCriteria, fn HookFn, opts ...HookOption) func() {
	return hs.On(EventError, criteria, fn, opts...)
}
