package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Check the state tree for consistency",
	Long: `Loads a state document and reports redirects to missing or abstract
states, redirect loops, resolve dependencies that nothing provides and
abstract states without children.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := openRouter(cmd, args)
		if err != nil {
			return err
		}
		defer r.Dispose()

		if err := r.Validate(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "State tree is valid (%d states)\n", len(r.States()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
