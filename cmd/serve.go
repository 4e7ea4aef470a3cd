package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"skillscope/ingest-service/internal/logger"
	"skillscope/ingest-service/internal/scheduler"
)

const serviceName = "ingest-service"

func newServeCmd() *cobra.Command {
	var backend string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scrape scheduler with health and metrics endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, backend)
			if err != nil {
				return err
			}
			defer a.Close()
			return serve(ctx, a)
		},
	}
	cmd.Flags().StringVar(&backend, "store", storePostgres, "storage backend: postgres or memory")
	return cmd
}

func serve(ctx context.Context, a *app) error {
	// ── Scheduler ─────────────────────────────────────────────────────────────
	sched := scheduler.New(a.coordinator(), a.store, a.cfg.Sources, scheduler.Config{
		Spec:       a.cfg.SchedulerSpec,
		Query:      a.cfg.DefaultQuery,
		RunTimeout: a.cfg.RunTimeout,
	}, a.log)
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	// ── HTTP server ───────────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      newMux(a),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("HTTP server listening", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("shutdown error", logger.Error(err))
	}
	return nil
}

func newMux(a *app) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.Handle("GET /metrics", a.metrics.Handler())
	return mux
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthResponse{
		Status:  "ok",
		Service: serviceName,
		Version: version,
	})
}
