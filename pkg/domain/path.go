package domain

import (
	"slices"

	"github.com/aretw0/waypoint/pkg/params"
)

// BuildPath creates a fresh path for the target's state with the target's params applied.
func BuildPath(target *TargetState) ([]*PathNode, error) {
	raw := target.Params()
	states := target.State().Path()
	path := make([]*PathNode, 0, len(states))
	for _, s := range states {
		node, err := NewPathNode(s).ApplyRawParams(raw)
		if err != nil {
			return nil, err
		}
		path = append(path, node)
	}
	return path, nil
}

// BuildToPath builds the destination path of a transition from fromPath to target,
// inheriting parameter values when the target asks for it.
func BuildToPath(fromPath []*PathNode, target *TargetState) ([]*PathNode, error) {
	toPath, err := BuildPath(target)
	if err != nil {
		return nil, err
	}
	if !target.Options().Inherit {
		return toPath, nil
	}
	keys := make([]string, 0, len(target.Params()))
	for k := range target.Params() {
		keys = append(keys, k)
	}
	return InheritParams(fromPath, toPath, keys)
}

// InheritParams rebuilds each node of toPath, filling parameters that are not in
// toKeys with the values of the same state in fromPath. Parameters declared
// with inherit disabled anywhere in fromPath are never inherited.
func InheritParams(fromPath, toPath []*PathNode, toKeys []string) ([]*PathNode, error) {
	noInherit := map[string]bool{}
	for _, node := range fromPath {
		for _, p := range node.ParamSchema {
			if !p.Inherit {
				noInherit[p.ID] = true
			}
		}
	}

	out := make([]*PathNode, 0, len(toPath))
	for _, toNode := range toPath {
		vals := params.Values{}
		incoming := params.Values{}
		for k, v := range toNode.ParamValues {
			if slices.Contains(toKeys, k) {
				incoming[k] = v
			} else {
				vals[k] = v
			}
		}
		if i := slices.IndexFunc(fromPath, func(n *PathNode) bool { return n.State == toNode.State }); i >= 0 {
			for k, v := range fromPath[i].ParamValues {
				if !noInherit[k] {
					vals[k] = v
				}
			}
		}
		for k, v := range incoming {
			vals[k] = v
		}
		node, err := NewPathNode(toNode.State).ApplyRawParams(vals)
		if err != nil {
			return nil, err
		}
		out = append(out, node)
	}
	return out, nil
}

// NonDynamicParams returns the node's own params that are not dynamic. Two
// nodes equal on these params do not require the state to be reloaded.
func NonDynamicParams(n *PathNode) []*params.Param {
	var out []*params.Param
	for _, p := range n.State.Parameters(false) {
		if !p.Dynamic {
			out = append(out, p)
		}
	}
	return out
}

// Matching returns the longest common prefix of a and b, comparing nodes with fn.
func Matching(a, b []*PathNode, fn ParamsFn) []*PathNode {
	var out []*PathNode
	for i := 0; i < len(a) && i < len(b); i++ {
		if !a[i].Equals(b[i], fn) {
			break
		}
		out = append(out, a[i])
	}
	return out
}

// PathsEqual reports whether a and b have the same states and equal values.
func PathsEqual(a, b []*PathNode, fn ParamsFn) bool {
	return len(a) == len(b) && len(Matching(a, b, fn)) == len(a)
}

// SubPath returns path up to and including the first node matching pred, or nil.
func SubPath(path []*PathNode, pred func(*PathNode) bool) []*PathNode {
	i := slices.IndexFunc(path, pred)
	if i < 0 {
		return nil
	}
	return path[:i+1]
}

// ParamValues merges the values of every node in path.
func ParamValues(path []*PathNode) params.Values {
	out := params.Values{}
	for _, n := range path {
		for k, v := range n.ParamValues {
			out[k] = v
		}
	}
	return out
}

// States returns the state of every node in path.
func States(path []*PathNode) []*StateNode {
	out := make([]*StateNode, len(path))
	for i, n := range path {
		out[i] = n.State
	}
	return out
}

// ApplyViewConfigs creates view configs for the nodes of path whose state is in states.
func ApplyViewConfigs(views ViewService, path []*PathNode, states []*StateNode) {
	if views == nil {
		return
	}
	for i, node := range path {
		if !slices.Contains(states, node.State) {
			continue
		}
		var configs []ViewConfig
		for _, decl := range node.State.Views {
			configs = append(configs, views.CreateViewConfig(path[:i+1], decl)...)
		}
		node.Views = configs
	}
}

// MakeTargetState builds a target pointing at the last state of path, with the
// merged param values of the whole path.
func MakeTargetState(finder StateFinder, path []*PathNode) *TargetState {
	var state *StateNode
	if len(path) > 0 {
		state = path[len(path)-1].State
	}
	return NewTargetState(finder, state, ParamValues(path), DefaultTransitionOptions())
}
