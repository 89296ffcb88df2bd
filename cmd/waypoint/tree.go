package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/waypoint"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/observability"
	"github.com/spf13/cobra"
)

// treeCmd represents the tree command
var treeCmd = &cobra.Command{
	Use:   "tree [file]",
	Short: "Print the state tree",
	Long: `Loads a state document and prints its tree, either indented or as a
Mermaid diagram (graph TD). With --active, the router first moves to that
state and the diagram highlights the active path.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		active, _ := cmd.Flags().GetString("active")
		if format != "text" && format != "mermaid" {
			return fmt.Errorf("unknown format %q (want text or mermaid)", format)
		}

		r, err := openRouter(cmd, args)
		if err != nil {
			return err
		}
		defer r.Dispose()

		var overlay *observability.GraphOverlay
		if active != "" {
			if _, err := r.TransitionTo(cmd.Context(), active, nil); err != nil {
				return fmt.Errorf("failed to activate %q: %w", active, err)
			}
			overlay = observability.OverlayOf(r)
		}

		out := cmd.OutOrStdout()
		if format == "mermaid" {
			fmt.Fprint(out, observability.GenerateMermaid(r.States(), overlay))
			return nil
		}
		printTree(out, r)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(treeCmd)
	treeCmd.Flags().String("format", "text", "Output format (text or mermaid)")
	treeCmd.Flags().String("active", "", "Move to this state before printing")
}

// printTree writes one line per state, children indented under their parent.
func printTree(w io.Writer, r *waypoint.Router) {
	children := map[*domain.StateNode][]*domain.StateNode{}
	for _, s := range r.States() {
		children[s.Parent] = append(children[s.Parent], s)
	}
	current := r.Current()

	var walk func(parent *domain.StateNode, depth int)
	walk = func(parent *domain.StateNode, depth int) {
		for _, s := range children[parent] {
			var sb strings.Builder
			sb.WriteString(strings.Repeat("  ", depth))
			sb.WriteString(s.Name)
			if s.URL != nil && s.URL.Pattern() != "" {
				sb.WriteString("  " + s.URL.Pattern())
			}
			if s.Abstract {
				sb.WriteString("  (abstract)")
			}
			if s.Self != nil {
				if to, ok := s.Self.RedirectTo.(string); ok && to != "" {
					sb.WriteString("  -> " + to)
				}
			}
			if s == current {
				sb.WriteString("  *")
			}
			fmt.Fprintln(w, sb.String())
			walk(s, depth+1)
		}
	}
	walk(r.Registry().Root(), 0)
}
