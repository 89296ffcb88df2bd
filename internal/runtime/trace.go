package runtime

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/rejection"
)

// Category groups trace records.
type Category string

const (
	CategoryTransition Category = "transition"
	CategoryHook       Category = "hook"
	CategoryResolve    Category = "resolve"
	CategoryViewConfig Category = "viewconfig"
)

// AllCategories lists every trace category.
var AllCategories = []Category{CategoryTransition, CategoryHook, CategoryResolve, CategoryViewConfig}

// Trace writes debug records about transitions, hooks, resolves and views
// for the enabled categories. Everything is off by default.
type Trace struct {
	logger  *slog.Logger
	mu      sync.RWMutex
	enabled map[Category]bool
}

var _ domain.Tracer = (*Trace)(nil)

func newTrace(logger *slog.Logger) *Trace {
	return &Trace{logger: logger, enabled: map[Category]bool{}}
}

// Enable turns categories on.
func (tr *Trace) Enable(categories ...Category) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	for _, c := range categories {
		tr.enabled[c] = true
	}
}

// Disable turns categories off. With no arguments it turns everything off.
func (tr *Trace) Disable(categories ...Category) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if len(categories) == 0 {
		clear(tr.enabled)
		return
	}
	for _, c := range categories {
		delete(tr.enabled, c)
	}
}

// Enabled reports whether c is on.
func (tr *Trace) Enabled(c Category) bool {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return tr.enabled[c]
}

func (tr *Trace) log(c Category, msg string, attrs ...any) {
	if !tr.Enabled(c) {
		return
	}
	tr.logger.Debug(msg, append([]any{"category", string(c)}, attrs...)...)
}

func transitionID(t domain.Transition) any {
	if t == nil {
		return nil
	}
	if tt, ok := t.(*Transition); ok && tt == nil {
		return nil
	}
	return t.ID()
}

func (tr *Trace) transitionStart(t *Transition) {
	tr.log(CategoryTransition, "transition started", "transition_id", t.ID(), "transition", t.String())
}

func (tr *Trace) transitionIgnored(t *Transition, reason string) {
	tr.log(CategoryTransition, "transition ignored", "transition_id", t.ID(), "reason", reason)
}

func (tr *Trace) transitionSuccess(t *Transition) {
	tr.log(CategoryTransition, "transition succeeded", "transition_id", t.ID(), "state", t.To().Name)
}

func (tr *Trace) transitionError(t *Transition, rej *rejection.Rejection) {
	tr.log(CategoryTransition, "transition rejected", "transition_id", t.ID(), "type", rej.Type.String(), "rejection", rej.Error())
}

func (tr *Trace) hookInvocation(th *TransitionHook) {
	if !tr.Enabled(CategoryHook) {
		return
	}
	attrs := []any{"transition_id", th.trans.ID(), "hook", th.hook.name(), "event", th.hook.Event.Name}
	if th.state != nil {
		attrs = append(attrs, "state", th.state.Name)
	}
	tr.log(CategoryHook, "invoking hook", attrs...)
}

func (tr *Trace) hookResult(th *TransitionHook, result any) {
	if result == nil {
		return
	}
	tr.log(CategoryHook, "hook returned", "transition_id", th.trans.ID(), "hook", th.hook.name(), "result", fmt.Sprint(result))
}

// TraceResolvePath implements domain.Tracer.
func (tr *Trace) TraceResolvePath(path []*domain.PathNode, when domain.When, trans domain.Transition) {
	if !tr.Enabled(CategoryResolve) {
		return
	}
	state := ""
	if len(path) > 0 {
		state = path[len(path)-1].State.Name
	}
	tr.log(CategoryResolve, "resolving path", "transition_id", transitionID(trans), "state", state, "when", string(when))
}

// TraceResolvableResolved implements domain.Tracer.
func (tr *Trace) TraceResolvableResolved(r *domain.Resolvable, trans domain.Transition) {
	tr.log(CategoryResolve, "resolvable resolved", "transition_id", transitionID(trans), "token", r.Token.String())
}

func (tr *Trace) viewConfigsCreated(t *Transition) {
	if !tr.Enabled(CategoryViewConfig) {
		return
	}
	if views := t.Views(domain.PathEntering, nil); len(views) > 0 {
		tr.log(CategoryViewConfig, "view configs created", "transition_id", t.ID(), "count", len(views))
	}
}

func (tr *Trace) viewConfigsSynced(t *Transition, activated, deactivated int) {
	tr.log(CategoryViewConfig, "view configs synced", "transition_id", t.ID(), "activated", activated, "deactivated", deactivated)
}
