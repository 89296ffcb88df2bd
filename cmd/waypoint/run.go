package main

import (
	"fmt"
	"io"
	"os"

	"github.com/aretw0/waypoint"
	"github.com/spf13/cobra"
)

// goCmd represents the go command
var goCmd = &cobra.Command{
	Use:   "go [file]",
	Short: "Drive the router with a sequence of transitions",
	Long: `Loads a state document and reads one command per line from --script or
stdin: a state name with optional JSON params, a relative reference
("^.sibling", ".child"), "reload [state]", "state" or "exit". Every
transition is reported with its entering, exiting and retained states.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		headless, _ := cmd.Flags().GetBool("headless")
		stopOnError, _ := cmd.Flags().GetBool("stop-on-error")
		script, _ := cmd.Flags().GetString("script")

		r, err := openRouter(cmd, args)
		if err != nil {
			return err
		}
		defer r.Dispose()

		detach, err := attachSession(cmd, r)
		if err != nil {
			return err
		}
		defer detach()

		var in io.Reader = cmd.InOrStdin()
		if script != "" {
			f, err := os.Open(script)
			if err != nil {
				return fmt.Errorf("failed to open script: %w", err)
			}
			defer f.Close()
			in = f
			headless = true
		}

		runner := waypoint.NewRunner(in, cmd.OutOrStdout())
		runner.Headless = headless
		runner.StopOnError = stopOnError
		return runner.Run(cmd.Context(), r)
	},
}

func init() {
	rootCmd.AddCommand(goCmd)

	goCmd.Flags().Bool("headless", false, "Run in headless mode (no banner or prompts)")
	goCmd.Flags().Bool("stop-on-error", false, "Stop at the first failed transition")
	goCmd.Flags().String("script", "", "Read commands from this file instead of stdin (implies --headless)")
	goCmd.Flags().String("session", "", "Restore and persist the router location under this session id")
}

// attachSession restores the location saved under --session and persists
// every later successful transition. Without --session it does nothing.
func attachSession(cmd *cobra.Command, r *waypoint.Router) (func(), error) {
	id, _ := cmd.Flags().GetString("session")
	if id == "" {
		return func() {}, nil
	}
	manager, closeFn, err := newSessionManager(cmd)
	if err != nil {
		return nil, err
	}
	t, err := manager.Restore(cmd.Context(), id, r)
	if err != nil {
		closeFn()
		return nil, fmt.Errorf("failed to restore session %q: %w", id, err)
	}
	if t != nil {
		r.Logger().Info("session restored", "session_id", id, "state", r.Current().Name)
	}
	detach := manager.Attach(id, r)
	return func() {
		detach()
		closeFn()
	}, nil
}
