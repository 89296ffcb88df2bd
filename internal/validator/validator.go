package validator

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/waypoint/pkg/domain"
)

// ErrInvalidTree wraps every problem found by ValidateTree.
var ErrInvalidTree = errors.New("invalid state tree")

// ValidateTree checks a built tree for problems that otherwise only show up
// when a transition reaches them: redirects to missing or abstract states,
// redirect loops, resolve dependencies that nothing provides, and abstract
// states without children. provided reports tokens that come from outside
// the tree, such as the router's core tokens; it may be nil.
func ValidateTree(states []*domain.StateNode, provided func(domain.Token) bool) error {
	byName := make(map[string]*domain.StateNode, len(states))
	children := make(map[string]int)
	for _, s := range states {
		byName[s.Name] = s
		if s.Parent != nil {
			children[s.Parent.Name]++
		}
	}
	sorted := make([]*domain.StateNode, len(states))
	copy(sorted, states)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var problems []string
	for _, s := range sorted {
		if s.Root() {
			continue
		}

		if to := redirectName(s); to != "" {
			target, ok := byName[to]
			switch {
			case !ok:
				problems = append(problems, fmt.Sprintf("state '%s' redirects to missing state '%s'", s.Name, to))
			case target.Abstract:
				problems = append(problems, fmt.Sprintf("state '%s' redirects to abstract state '%s'", s.Name, to))
			default:
				if loop := redirectLoop(s, byName); loop != nil {
					problems = append(problems, fmt.Sprintf("redirect loop: %s", strings.Join(loop, " -> ")))
				}
			}
		} else if s.Abstract && children[s.Name] == 0 {
			problems = append(problems, fmt.Sprintf("abstract state '%s' has no children and can never be active", s.Name))
		}

		for _, r := range s.Resolvables {
			for _, dep := range r.Deps {
				if (provided != nil && provided(dep)) || providedBy(s, dep) {
					continue
				}
				problems = append(problems, fmt.Sprintf("state '%s': resolve %s depends on %s, which nothing provides", s.Name, r.Token, dep))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: found %d errors:\n- %s", ErrInvalidTree, len(problems), strings.Join(problems, "\n- "))
	}
	return nil
}

func redirectName(s *domain.StateNode) string {
	if s.Self == nil {
		return ""
	}
	to, _ := s.Self.RedirectTo.(string)
	return to
}

// redirectLoop follows name redirects from s and returns the chain when it
// comes back to s.
func redirectLoop(s *domain.StateNode, byName map[string]*domain.StateNode) []string {
	chain := []string{s.Name}
	seen := map[string]bool{s.Name: true}
	for cur := s; ; {
		next, ok := byName[redirectName(cur)]
		if !ok {
			return nil
		}
		chain = append(chain, next.Name)
		if next == s {
			return chain
		}
		if seen[next.Name] {
			// a loop that s only leads into; reported from its members
			return nil
		}
		seen[next.Name] = true
		cur = next
	}
}

// providedBy reports whether s or one of its ancestors declares token.
func providedBy(s *domain.StateNode, token domain.Token) bool {
	for n := s; n != nil; n = n.Parent {
		for _, r := range n.Resolvables {
			if r.Token == token {
				return true
			}
		}
	}
	return false
}
