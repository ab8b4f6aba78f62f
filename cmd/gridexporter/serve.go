package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve usage metrics for Prometheus",
	Long: `Authenticates, discovers the account premise and serves the metrics endpoint.
Each scrape queries the usage API for every configured service.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address (overrides exporter.listen_address)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	exp, err := startExporter(ctx, cfg)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	if err := registry.Register(exp.Collector); err != nil {
		return fmt.Errorf("registering collector: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Exporter.MetricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	addr := cfg.Exporter.ListenAddress
	if serveListen != "" {
		addr = serveListen
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      scrapeWriteTimeout(cfg.API.Timeout, len(cfg.API.Services)),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("exporter running", "addr", addr, "path", cfg.Exporter.MetricsPath, "premise", exp.PremiseID)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving metrics: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// scrapeWriteTimeout bounds a scrape by one token renewal plus one usage
// request per service, each limited by the API timeout, and a margin for
// encoding the response
func scrapeWriteTimeout(apiTimeout time.Duration, services int) time.Duration {
	if services < 1 {
		services = 1
	}
	return time.Duration(services+1)*apiTimeout + 10*time.Second
}
