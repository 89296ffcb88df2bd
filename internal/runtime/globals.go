package runtime

import (
	"sync"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/params"
	"go.uber.org/atomic"
)

// Globals is the router-wide bookkeeping of transitions: the transition in
// progress, the last committed state and params, and bounded histories.
//
// Only the router's transition start and the transition's own success hook
// write to it; hooks anywhere may read it.
type Globals struct {
	mu         sync.RWMutex
	transition *Transition
	current    *domain.StateNode
	params     params.Values

	lastStartedID atomic.Int64

	// TransitionHistory holds the most recently started transitions.
	TransitionHistory *Queue[*Transition]
	// SuccessfulTransitions holds the most recently successful transitions.
	SuccessfulTransitions *Queue[*Transition]
}

func newGlobals(historyLimit int) *Globals {
	g := &Globals{
		params:                params.Values{},
		TransitionHistory:     NewQueue[*Transition](historyLimit),
		SuccessfulTransitions: NewQueue[*Transition](historyLimit),
	}
	g.lastStartedID.Store(-1)
	return g
}

// Transition returns the transition currently running, or nil.
func (g *Globals) Transition() *Transition {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.transition
}

// Current returns the last committed state, or nil before the first success.
func (g *Globals) Current() *domain.StateNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.current
}

// Params returns a copy of the last committed param values.
func (g *Globals) Params() params.Values {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.params.Clone()
}

// LastStartedTransitionID returns the id of the latest transition that
// passed its before phase, or -1.
func (g *Globals) LastStartedTransitionID() int64 {
	return g.lastStartedID.Load()
}

func (g *Globals) start(t *Transition) {
	g.mu.Lock()
	g.transition = t
	g.mu.Unlock()
	g.lastStartedID.Store(t.ID())
	g.TransitionHistory.Enqueue(t)
}

func (g *Globals) commit(t *Transition) {
	g.SuccessfulTransitions.Enqueue(t)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.current = t.To()
	g.params = t.Params()
}

// finish clears the running transition if it is still t.
func (g *Globals) finish(t *Transition) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.transition == t {
		g.transition = nil
	}
}
