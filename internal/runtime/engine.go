package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/aretw0/waypoint/internal/logging"
	"github.com/aretw0/waypoint/pkg/async"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/registry"
	"github.com/aretw0/waypoint/pkg/rejection"
	"github.com/google/uuid"
	"go.uber.org/atomic"
)

// Engine is a router instance: the state registry, the global transition
// bookkeeping and the hooks every transition runs through.
type Engine struct {
	*Hooks

	id       string
	registry *registry.Registry
	globals  *Globals
	events   []*EventType
	logger   *slog.Logger
	trace    *Trace
	views    domain.ViewService
	native   domain.NativeInjector
	defaults domain.ResolvePolicy

	historyLimit    int
	traceCategories []Category
	transitionCount atomic.Int64
	disposed        atomic.Bool

	mu              sync.RWMutex
	errorHandler    func(error)
	invalidHandlers []*invalidHandler
	nextHandlerID   int
	disposers       []func()
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithRegistry sets the state registry. By default the engine creates an empty one.
func WithRegistry(reg *registry.Registry) Option {
	return func(e *Engine) {
		e.registry = reg
	}
}

// WithHistoryLimit sets how many transitions the history queues keep.
func WithHistoryLimit(n int) Option {
	return func(e *Engine) {
		e.historyLimit = n
	}
}

// WithDefaultResolvePolicy sets the policy of resolvables that declare none.
func WithDefaultResolvePolicy(p domain.ResolvePolicy) Option {
	return func(e *Engine) {
		e.defaults = p
	}
}

// WithViewService sets the sink for view lifecycle calls.
func WithViewService(v domain.ViewService) Option {
	return func(e *Engine) {
		e.views = v
	}
}

// WithInjector sets the fallback injector for tokens no state provides.
func WithInjector(n domain.NativeInjector) Option {
	return func(e *Engine) {
		e.native = n
	}
}

// WithTrace enables trace categories. With no arguments every category is enabled.
func WithTrace(categories ...Category) Option {
	return func(e *Engine) {
		if len(categories) == 0 {
			categories = AllCategories
		}
		e.traceCategories = append(e.traceCategories, categories...)
	}
}

// WithID sets the router id used in logs. The default is a random UUID.
func WithID(id string) Option {
	return func(e *Engine) {
		e.id = id
	}
}

// WithErrorHandler replaces the default error handler.
func WithErrorHandler(fn func(error)) Option {
	return func(e *Engine) {
		e.errorHandler = fn
	}
}

// NewEngine creates a router with the core hooks registered.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		logger:       logging.NewNop(),
		historyLimit: 1,
		events:       defaultEventTypes(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.id == "" {
		e.id = uuid.NewString()
	}
	e.logger = e.logger.With("router", e.id)
	if e.registry == nil {
		e.registry = registry.New(registry.WithLogger(e.logger))
	}
	if e.errorHandler == nil {
		e.errorHandler = e.logError
	}
	e.Hooks = newHooks(e.events)
	e.globals = newGlobals(e.historyLimit)
	e.trace = newTrace(e.logger)
	e.trace.Enable(e.traceCategories...)

	e.registerCoreHooks()
	return e
}

// ID returns the router id.
func (e *Engine) ID() string { return e.id }

// Registry returns the state registry.
func (e *Engine) Registry() *registry.Registry { return e.registry }

// Globals returns the transition bookkeeping.
func (e *Engine) Globals() *Globals { return e.globals }

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger { return e.logger }

// Trace returns the trace facility.
func (e *Engine) Trace() *Trace { return e.trace }

// ViewService returns the configured view service, or nil.
func (e *Engine) ViewService() domain.ViewService { return e.views }

// EventTypes returns the hook event types.
func (e *Engine) EventTypes() []*EventType { return slices.Clone(e.events) }

// OnCreate registers a hook that runs synchronously while transitions are
// created. Its errors fail Create.
func (e *Engine) OnCreate(criteria HookCriteria, fn HookFn, opts ...HookOption) func() {
	return e.On(EventCreate, criteria, fn, opts...)
}

func (e *Engine) resolveEnv() domain.ResolveEnv {
	return domain.ResolveEnv{
		Native:   e.native,
		Defaults: e.defaults,
		Tracer:   e.trace,
	}
}

// Create builds a transition from fromPath to target and runs its create
// hooks. It fails when the target is invalid or a create hook fails.
func (e *Engine) Create(fromPath []*domain.PathNode, target *domain.TargetState) (*Transition, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidTarget, target.Error())
	}
	toPath, err := domain.BuildToPath(fromPath, target)
	if err != nil {
		return nil, err
	}

	t := &Transition{
		id:      e.transitionCount.Inc() - 1,
		engine:  e,
		target:  target,
		options: target.Options(),
		Hooks:   newHooks(slices.DeleteFunc(slices.Clone(e.events), func(et *EventType) bool { return et.Phase == PhaseCreate })),
	}
	t.treeChanges = domain.Diff(fromPath, toPath, t.options.ReloadState)
	t.future, t.resolve, t.reject = async.New[*domain.StateNode]()

	if err := invokeHooks(context.Background(), t.buildHooksForPhase(PhaseCreate)); err != nil {
		return nil, err
	}
	domain.ApplyViewConfigs(e.views, t.treeChanges.To, domain.States(t.treeChanges.Entering))
	e.trace.viewConfigsCreated(t)
	return t, nil
}

// Disposed reports whether Dispose was called.
func (e *Engine) Disposed() bool { return e.disposed.Load() }

// OnDispose registers fn to run when the router is disposed.
func (e *Engine) OnDispose(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.disposers = append(e.disposers, fn)
}

// Dispose stops the router. Running transitions abort at their next hook and
// new transitions are refused.
func (e *Engine) Dispose() {
	if !e.disposed.CompareAndSwap(false, true) {
		return
	}
	if t := e.globals.Transition(); t != nil {
		t.Abort()
	}
	e.mu.Lock()
	disposers := e.disposers
	e.disposers = nil
	e.mu.Unlock()
	for _, fn := range disposers {
		fn()
	}
	e.logger.Debug("router disposed")
}

// DefaultErrorHandler returns the handler transition errors are reported to.
func (e *Engine) DefaultErrorHandler() func(error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.errorHandler
}

// SetDefaultErrorHandler replaces the handler transition errors are reported to.
func (e *Engine) SetDefaultErrorHandler(fn func(error)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if fn == nil {
		fn = e.logError
	}
	e.errorHandler = fn
}

func (e *Engine) reportError(err error) {
	if fn := e.DefaultErrorHandler(); fn != nil {
		fn(err)
	}
}

// logError is the default error handler.
func (e *Engine) logError(err error) {
	if rej, ok := rejection.As(err); ok {
		attrs := []any{"rejection_id", rej.ID, "type", rej.Type.String()}
		if cause := rej.Unwrap(); cause != nil {
			attrs = append(attrs, "err", cause)
		} else if rej.Detail != nil {
			attrs = append(attrs, "detail", fmt.Sprint(rej.Detail))
		}
		e.logger.Error(rej.Message, attrs...)
		return
	}
	e.logger.Error("transition failed", "err", err)
}
