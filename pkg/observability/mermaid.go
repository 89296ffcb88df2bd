package observability

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/waypoint"
	"github.com/aretw0/waypoint/pkg/domain"
)

// GraphOverlay contains dynamic router data to visualize on the graph.
type GraphOverlay struct {
	VisitedStates []string
	// ActivePath holds the states from the root to the current one.
	ActivePath   []string
	CurrentState string
}

// GenerateMermaid produces a Mermaid flowchart of the state tree.
// It applies semantic styling:
// - Root: ((Circle))
// - Abstract: ([Stadium])
// - Default: [Rectangle], labeled with the state's URL when it has one
// Parent-child links are solid; declared redirects are dotted.
// It also applies overlay styles (Visited/Active/Current) if provided.
func GenerateMermaid(states []*domain.StateNode, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	sorted := make([]*domain.StateNode, len(states))
	copy(sorted, states)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	hasRoot := false
	for _, s := range sorted {
		if s.Parent != nil && s.Parent.Root() {
			hasRoot = true
			break
		}
	}
	if hasRoot {
		sb.WriteString("    root((\"root\"))\n")
	}

	for _, s := range sorted {
		if s.Root() {
			continue
		}
		safeID := sanitizeMermaidID(s.Name)
		opener, closer := "[", "]"
		if s.Abstract {
			opener, closer = "([", "])"
		}
		label := s.Name
		if s.URL != nil && s.URL.Pattern() != "" {
			label = fmt.Sprintf("%s <br/> %s", s.Name, s.URL.Pattern())
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, escapeLabel(label), closer)

		if s.Parent != nil {
			fmt.Fprintf(&sb, "    %s --> %s\n", sanitizeMermaidID(s.Parent.Name), safeID)
		}
		if s.Self != nil {
			if to, ok := s.Self.RedirectTo.(string); ok && to != "" {
				fmt.Fprintf(&sb, "    %s -. redirect .-> %s\n", safeID, sanitizeMermaidID(to))
			}
		}
	}

	// Apply Overlay Styles
	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef active fill:#c8e6c9,stroke:#2e7d32,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		styled := make(map[string]bool)
		apply := func(class string, names []string) {
			for _, name := range names {
				safeID := sanitizeMermaidID(name)
				if safeID == "root" || styled[safeID] {
					continue
				}
				styled[safeID] = true
				fmt.Fprintf(&sb, "    class %s %s;\n", safeID, class)
			}
		}
		// strongest style first, so a state gets exactly one class
		if overlay.CurrentState != "" {
			apply("current", []string{overlay.CurrentState})
		}
		apply("active", overlay.ActivePath)
		apply("visited", overlay.VisitedStates)
	}

	return sb.String()
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

// sanitizeMermaidID maps a state name to a node id. The root maps to "root".
func sanitizeMermaidID(name string) string {
	if name == "" {
		return "root"
	}
	s := strings.ReplaceAll(name, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return "s_" + s
}

// OverlayOf captures the active path of r and the states reached by its
// remembered transitions.
func OverlayOf(r *waypoint.Router) *GraphOverlay {
	o := &GraphOverlay{CurrentState: r.Current().Name}
	for _, n := range r.CurrentPath() {
		if n.State.Name != "" {
			o.ActivePath = append(o.ActivePath, n.State.Name)
		}
	}
	for _, t := range r.Globals().SuccessfulTransitions.Items() {
		for _, s := range t.Entering() {
			o.VisitedStates = append(o.VisitedStates, s.Name)
		}
	}
	return o
}
