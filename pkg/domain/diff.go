package domain

// PathType names one of the paths of a TreeChanges.
type PathType string

const (
	PathFrom     PathType = "from"
	PathTo       PathType = "to"
	PathRetained PathType = "retained"
	PathEntering PathType = "entering"
	PathExiting  PathType = "exiting"
)

// TreeChanges is the difference between the path a transition leaves and the
// path it reaches.
//
// Retained nodes are the common prefix; they keep their old values in Retained
// and carry the destination values in RetainedWithToParams. Exiting is the rest
// of From and Entering is the rest of To.
type TreeChanges struct {
	From                 []*PathNode
	To                   []*PathNode
	Retained             []*PathNode
	RetainedWithToParams []*PathNode
	Entering             []*PathNode
	Exiting              []*PathNode
}

// Path returns the named path.
func (tc *TreeChanges) Path(name PathType) []*PathNode {
	switch name {
	case PathFrom:
		return tc.From
	case PathTo:
		return tc.To
	case PathRetained:
		return tc.Retained
	case PathEntering:
		return tc.Entering
	case PathExiting:
		return tc.Exiting
	}
	return nil
}

// Diff computes the TreeChanges between fromPath and toPath.
//
// Nodes are kept while they are for the same state with equal non-dynamic
// params, stopping at reloadState so that it and its descendants exit and
// re-enter. reloadState may be nil.
func Diff(fromPath, toPath []*PathNode, reloadState *StateNode) *TreeChanges {
	keep := 0
	limit := min(len(fromPath), len(toPath))
	for keep < limit &&
		(reloadState == nil || fromPath[keep].State != reloadState) &&
		fromPath[keep].Equals(toPath[keep], NonDynamicParams) {
		keep++
	}

	retained := fromPath[:keep:keep]
	retainedWithToParams := make([]*PathNode, keep)
	for i, node := range retained {
		clone := node.Clone()
		clone.ParamValues = toPath[i].ParamValues.Clone()
		retainedWithToParams[i] = clone
	}
	entering := toPath[keep:]

	to := make([]*PathNode, 0, len(toPath))
	to = append(to, retainedWithToParams...)
	to = append(to, entering...)

	return &TreeChanges{
		From:                 fromPath,
		To:                   to,
		Retained:             retained,
		RetainedWithToParams: retainedWithToParams,
		Entering:             entering,
		Exiting:              fromPath[keep:],
	}
}

// IsEmpty reports whether nothing enters or exits.
func (tc *TreeChanges) IsEmpty() bool {
	return len(tc.Entering) == 0 && len(tc.Exiting) == 0
}
