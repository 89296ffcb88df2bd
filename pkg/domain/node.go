package domain

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/aretw0/waypoint/pkg/params"
)

// PathNode is one occurrence of a state inside a transition's path: the state,
// the values of its own parameters, and its resolvables.
type PathNode struct {
	State       *StateNode
	ParamSchema []*params.Param
	ParamValues params.Values
	Views       []ViewConfig

	mu          sync.RWMutex
	resolvables []*Resolvable
}

// NewPathNode creates a node for state with cloned copies of the state's resolvables.
func NewPathNode(state *StateNode) *PathNode {
	n := &PathNode{
		State:       state,
		ParamSchema: state.Parameters(false),
		ParamValues: params.Values{},
	}
	for _, r := range state.Resolvables {
		n.resolvables = append(n.resolvables, r.Clone())
	}
	return n
}

// Clone copies the node. Param values and the resolvable list are copied;
// the resolvables themselves are shared.
func (n *PathNode) Clone() *PathNode {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return &PathNode{
		State:       n.State,
		ParamSchema: n.ParamSchema,
		ParamValues: n.ParamValues.Clone(),
		Views:       slices.Clone(n.Views),
		resolvables: slices.Clone(n.resolvables),
	}
}

// Resolvables returns a snapshot of the node's resolvables.
func (n *PathNode) Resolvables() []*Resolvable {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return slices.Clone(n.resolvables)
}

// SetResolvables replaces the node's resolvables.
func (n *PathNode) SetResolvables(rs []*Resolvable) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resolvables = slices.Clone(rs)
}

// AddResolvables appends rs, dropping existing resolvables with the same tokens.
func (n *PathNode) AddResolvables(rs ...*Resolvable) {
	n.mu.Lock()
	defer n.mu.Unlock()
	keep := make([]*Resolvable, 0, len(n.resolvables)+len(rs))
	for _, r := range n.resolvables {
		if !slices.ContainsFunc(rs, func(x *Resolvable) bool { return x.Token == r.Token }) {
			keep = append(keep, r)
		}
	}
	n.resolvables = append(keep, rs...)
}

// ApplyRawParams sets the node's values from raw, one per param in its schema.
// A value that cannot be decoded is kept raw so that validation reports it.
func (n *PathNode) ApplyRawParams(raw params.Values) (*PathNode, error) {
	for _, p := range n.ParamSchema {
		v, err := p.Value(raw[p.ID])
		if err != nil {
			if errors.Is(err, params.ErrNoDefault) {
				return nil, fmt.Errorf("state %s: %w", n.State, err)
			}
			v = raw[p.ID]
		}
		n.ParamValues[p.ID] = v
	}
	return n, nil
}

// Parameter returns the schema param with id, or nil.
func (n *PathNode) Parameter(id string) *params.Param {
	for _, p := range n.ParamSchema {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// ParamsFn selects the params used to compare two nodes.
type ParamsFn func(*PathNode) []*params.Param

// Diff returns the params whose values differ between n and other. ok is false
// when the nodes are for different states.
func (n *PathNode) Diff(other *PathNode, fn ParamsFn) (changed []*params.Param, ok bool) {
	if other == nil || n.State != other.State {
		return nil, false
	}
	schema := n.ParamSchema
	if fn != nil {
		schema = fn(n)
	}
	return params.Changed(schema, n.ParamValues, other.ParamValues), true
}

// Equals reports whether other is for the same state with equal values.
func (n *PathNode) Equals(other *PathNode, fn ParamsFn) bool {
	changed, ok := n.Diff(other, fn)
	return ok && len(changed) == 0
}

func (n *PathNode) String() string {
	return fmt.Sprintf("PathNode(%s %v)", n.State, n.ParamValues)
}
