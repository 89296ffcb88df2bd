package runtime

import (
	"cmp"
	"slices"

	"github.com/aretw0/waypoint/pkg/domain"
)

// Phase groups event types by when their hooks run.
type Phase int

const (
	// PhaseCreate hooks run synchronously while the transition is built.
	PhaseCreate Phase = iota
	// PhaseBefore hooks run before the transition is registered as active.
	PhaseBefore
	// PhaseRun hooks run while the transition is active and can be superseded.
	PhaseRun
	// PhaseSuccess hooks run after the transition succeeded.
	PhaseSuccess
	// PhaseError hooks run after the transition failed.
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseCreate:
		return "create"
	case PhaseBefore:
		return "before"
	case PhaseRun:
		return "run"
	case PhaseSuccess:
		return "success"
	case PhaseError:
		return "error"
	}
	return "unknown"
}

// Scope says which nodes of a path a hook's criterion is matched against.
type Scope int

const (
	// ScopeTransition matches only the last node of the path, once per transition.
	ScopeTransition Scope = iota
	// ScopeState matches every node of the path; the hook runs once per matching state.
	ScopeState
)

// Event names.
const (
	EventCreate  = "onCreate"
	EventBefore  = "onBefore"
	EventStart   = "onStart"
	EventExit    = "onExit"
	EventRetain  = "onRetain"
	EventEnter   = "onEnter"
	EventFinish  = "onFinish"
	EventSuccess = "onSuccess"
	EventError   = "onError"
)

// errorMode says what a failing hook does to its transition.
type errorMode int

const (
	// errorReject rejects the transition.
	errorReject errorMode = iota
	// errorThrow fails transition construction.
	errorThrow
	// errorLog reports the error and carries on.
	errorLog
)

// EventType describes one kind of hook.
type EventType struct {
	Name  string
	Phase Phase
	// Order sorts event types within a phase.
	Order int
	// Path is the tree-changes path the hook's states are taken from.
	Path  domain.PathType
	Scope Scope
	// Reverse runs deeper states first.
	Reverse bool
	// Synchronous event types ignore false and redirect results.
	Synchronous bool

	errors errorMode
}

func defaultEventTypes() []*EventType {
	return []*EventType{
		{Name: EventCreate, Phase: PhaseCreate, Path: domain.PathTo, Scope: ScopeTransition, Synchronous: true, errors: errorThrow},
		{Name: EventBefore, Phase: PhaseBefore, Path: domain.PathTo, Scope: ScopeTransition},
		{Name: EventStart, Phase: PhaseRun, Path: domain.PathTo, Scope: ScopeTransition},
		{Name: EventExit, Phase: PhaseRun, Order: 10, Path: domain.PathExiting, Scope: ScopeState, Reverse: true},
		{Name: EventRetain, Phase: PhaseRun, Order: 20, Path: domain.PathRetained, Scope: ScopeState},
		{Name: EventEnter, Phase: PhaseRun, Order: 30, Path: domain.PathEntering, Scope: ScopeState},
		{Name: EventFinish, Phase: PhaseRun, Order: 40, Path: domain.PathTo, Scope: ScopeTransition},
		{Name: EventSuccess, Phase: PhaseSuccess, Path: domain.PathTo, Scope: ScopeTransition, Synchronous: true, errors: errorLog},
		{Name: EventError, Phase: PhaseError, Path: domain.PathTo, Scope: ScopeTransition, Synchronous: true, errors: errorLog},
	}
}

// eventsFor returns the event types of phase sorted by order.
func eventsFor(types []*EventType, phase Phase) []*EventType {
	var out []*EventType
	for _, t := range types {
		if t.Phase == phase {
			out = append(out, t)
		}
	}
	slices.SortStableFunc(out, func(a, b *EventType) int { return cmp.Compare(a.Order, b.Order) })
	return out
}

// criteriaPaths are the paths every hook criteria is checked against.
var criteriaPaths = []struct {
	name  domain.PathType
	scope Scope
}{
	{domain.PathTo, ScopeTransition},
	{domain.PathFrom, ScopeTransition},
	{domain.PathExiting, ScopeState},
	{domain.PathRetained, ScopeState},
	{domain.PathEntering, ScopeState},
}
