package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aretw0/waypoint/internal/logging"
	"github.com/aretw0/waypoint/pkg/adapters/file"
	redisstore "github.com/aretw0/waypoint/pkg/adapters/redis"
	"github.com/aretw0/waypoint/pkg/persistence/middleware"
	"github.com/aretw0/waypoint/pkg/session"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage persisted router sessions",
	Long:  `List, inspect, and remove the router locations saved with --session.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all saved sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, closeFn, err := newSessionManager(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		sessions, err := manager.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}
		out := cmd.OutOrStdout()
		if len(sessions) == 0 {
			fmt.Fprintln(out, "No saved sessions found.")
			return nil
		}
		fmt.Fprintln(out, "Saved Sessions:")
		for _, s := range sessions {
			fmt.Fprintln(out, "- "+s)
		}
		return nil
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Print the saved location of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, closeFn, err := newSessionManager(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		snap, err := manager.Load(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to load session '%s': %w", args[0], err)
		}
		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <session-id>...",
	Short: "Remove one or more sessions",
	Args: func(cmd *cobra.Command, args []string) error {
		if all, _ := cmd.Flags().GetBool("all"); all {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.MinimumNArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, closeFn, err := newSessionManager(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		if all, _ := cmd.Flags().GetBool("all"); all {
			if args, err = manager.List(cmd.Context()); err != nil {
				return fmt.Errorf("failed to list sessions: %w", err)
			}
		}
		failed := 0
		for _, id := range args {
			if err := manager.Delete(cmd.Context(), id); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error removing '%s': %v\n", id, err)
				failed++
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed session '%s'\n", id)
		}
		if failed > 0 {
			return fmt.Errorf("%d session(s) could not be removed", failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)
	sessionRmCmd.Flags().Bool("all", false, "Remove every saved session")
}

// sessionKeyEnv holds a base64 AES-256 key; when set, saved sessions are
// encrypted.
const sessionKeyEnv = "WAYPOINT_SESSION_KEY"

// newSessionManager builds a session manager over the store selected by the
// --redis and --sessions-dir flags. The returned func releases the store.
func newSessionManager(cmd *cobra.Command) (*session.Manager, func(), error) {
	levelName, _ := cmd.Flags().GetString("log-level")
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(level)

	var mws []middleware.Middleware
	if key := os.Getenv(sessionKeyEnv); key != "" {
		raw, err := base64.StdEncoding.DecodeString(key)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", sessionKeyEnv, err)
		}
		enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: raw})
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", sessionKeyEnv, err)
		}
		mws = append(mws, enc)
	}

	if addr, _ := cmd.Flags().GetString("redis"); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		if err := client.Ping(cmd.Context()).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
		}
		m := session.NewManager(
			middleware.Chain(redisstore.NewFromClient(client), mws...),
			session.WithLocker(redisstore.NewLocker(client, "waypoint:")),
			session.WithLogger(logger),
		)
		return m, func() { client.Close() }, nil
	}

	dir, _ := cmd.Flags().GetString("sessions-dir")
	store := middleware.Chain(file.NewStore(dir), mws...)
	return session.NewManager(store, session.WithLogger(logger)), func() {}, nil
}
