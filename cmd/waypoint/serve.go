package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aretw0/waypoint"
	httpAdapter "github.com/aretw0/waypoint/pkg/adapters/http"
	"github.com/aretw0/waypoint/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve [file]",
	Short: "Start the HTTP server",
	Long: `Loads a state document and exposes the router over HTTP: inspection
(/states, /state, /transitions, /match), driving (POST /go), a stream of
settled transitions (/events) and Prometheus metrics (/metrics).`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")
		initial, _ := cmd.Flags().GetString("initial")

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics, err := observability.NewMetrics(reg, "")
		if err != nil {
			return err
		}

		r, err := openRouter(cmd, args, waypoint.WithPlugins(metrics))
		if err != nil {
			return err
		}
		defer r.Dispose()

		detach, err := attachSession(cmd, r)
		if err != nil {
			return err
		}
		defer detach()

		if initial != "" && r.Current().Root() {
			if _, err := r.TransitionTo(cmd.Context(), initial, nil); err != nil {
				return fmt.Errorf("failed to enter %q: %w", initial, err)
			}
		}

		api := httpAdapter.NewServer(r, httpAdapter.WithLogger(r.Logger()))
		defer api.Close()

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		mux.Handle("/", api.Handler())

		srv := &http.Server{
			Addr:              ":" + port,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			fmt.Fprintf(cmd.OutOrStdout(), "Starting waypoint server on %s\n", srv.Addr)
			fmt.Fprintf(cmd.OutOrStdout(), "Serving states from: %s\n", statePath(cmd, args))
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case <-cmd.Context().Done():
			fmt.Fprintln(cmd.OutOrStdout(), "\nStart shutdown...")

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			// Asking listener to shut down and shed load.
			if err := srv.Shutdown(ctx); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Graceful shutdown did not complete in %v: %v\n", shutdownTimeout, err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("error killing server: %w", err)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "waypoint server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	serveCmd.Flags().String("initial", "", "State to enter on startup when no session was restored")
	serveCmd.Flags().String("session", "", "Restore and persist the router location under this session id")
}
