package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/waypoint"
	"github.com/aretw0/waypoint/internal/logging"
	"github.com/aretw0/waypoint/pkg/adapters/file"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "waypoint",
	Short: "Waypoint is a hierarchical state router",
	Long: `Waypoint loads a tree of states from a YAML, TOML or JSON document and
moves between them, reporting which states are entered, exited and retained.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("file", "f", "waypoint.yaml", "State tree document (.yaml, .toml or .json)")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("sessions-dir", ".waypoint/sessions", "Directory of the file session store")
	rootCmd.PersistentFlags().String("redis", "", "Redis address; when set, sessions are stored and locked in Redis")
}

// statePath returns the document path: the --file flag, or the first
// argument when the flag was not given.
func statePath(cmd *cobra.Command, args []string) string {
	path, _ := cmd.Flags().GetString("file")
	if !cmd.Flags().Changed("file") && len(args) > 0 {
		path = args[0]
	}
	return path
}

// openRouter builds a router from the state document named on the command
// line. extra options are applied after the document's own settings.
func openRouter(cmd *cobra.Command, args []string, extra ...waypoint.Option) (*waypoint.Router, error) {
	levelName, _ := cmd.Flags().GetString("log-level")
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return nil, err
	}

	path := statePath(cmd, args)
	opts, err := file.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	opts = append(opts, waypoint.WithLogger(logging.New(level)))
	opts = append(opts, extra...)

	r, err := waypoint.New(cmd.Context(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize router: %w", err)
	}
	return r, nil
}
