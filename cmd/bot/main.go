package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/guildtools/guildbank/internal/config"
	"github.com/guildtools/guildbank/internal/discord"
	"github.com/guildtools/guildbank/internal/ledger"
	"github.com/guildtools/guildbank/internal/reconcile"
	"github.com/guildtools/guildbank/internal/split"
	"github.com/guildtools/guildbank/internal/storage/sqlite"
	"github.com/guildtools/guildbank/pkg/logging"
)

func main() {
	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize SQLite storage
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.DBPath)

	// Wire the services. The registry is process-scoped: open splits are
	// discarded on restart.
	ledgerSvc := ledger.NewService(store)
	registry := split.NewRegistry()
	splitSvc := split.NewService(registry, ledgerSvc)
	reconciler := reconcile.New(ledgerSvc)

	gateway, err := discord.New(cfg.Token, ledgerSvc, splitSvc, registry, reconciler, store)
	if err != nil {
		slog.Error("Failed to create discord gateway", "error", err)
		os.Exit(1)
	}
	if err := gateway.Open(); err != nil {
		slog.Error("Failed to connect to discord", "error", err)
		os.Exit(1)
	}
	defer gateway.Close()

	// Keep-alive listener: hosting platforms idle services with no inbound
	// traffic, so expose a liveness endpoint, plus prometheus metrics.
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "Guild bank bot is running!")
	})
	mux.Handle("/metrics", promhttp.Handler())

	handler := loggingMiddleware(mux)
	h2cHandler := h2c.NewHandler(handler, &http2.Server{})

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: h2cHandler}
	go func() {
		slog.Info("Keep-alive server starting", "address", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Keep-alive server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	slog.Info("Shutting down")
	server.Close()
}

// loggingMiddleware logs all incoming requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		slog.Debug("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
