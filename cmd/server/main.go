/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the event pricing server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and configure logging
  2. Parse command-line flags (defaults from environment)
  3. Initialize SQLite store
  4. Create API handler and start the cash status monitor
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port          HTTP server port (default: $PORT or 8080)
  -db            SQLite database path (default: $DATABASE_PATH or event-pricing.db)
                 Use ":memory:" for in-memory database
  -cors-origins  Comma-separated allowed origins (default: $CORS_ORIGINS)
  -monitor       Cash status check interval, 0 disables (default: 15m)
  -scenario      Load a demo scenario at startup (resets the database)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the cash status monitor
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  # Run with file database
  ./server -db="./data/pricing.db"

  # Demo with in-memory database
  ./server -db=":memory:" -scenario=summer-camp

ENVIRONMENT:
  PORT, DATABASE_PATH, CORS_ORIGINS, LOG_LEVEL

SEE ALSO:
  - api/server.go: Router configuration
  - api/monitor.go: Cash status monitor
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/warp/event-pricing/api"
	"github.com/warp/event-pricing/pkg/logging"
	"github.com/warp/event-pricing/store/sqlite"
)

func main() {
	// .env is optional
	_ = godotenv.Load()
	logging.Setup()

	// Flags
	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envString("DATABASE_PATH", "event-pricing.db"), "SQLite database path")
	origins := flag.String("cors-origins", os.Getenv("CORS_ORIGINS"), "Comma-separated allowed CORS origins")
	interval := flag.Duration("monitor", 15*time.Minute, "Cash status check interval (0 disables)")
	scenario := flag.String("scenario", "", "Demo scenario to load at startup")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		slog.Error("failed to initialize database", "path", *dbPath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Initialize handler
	handler := api.NewHandler(store)

	if *scenario != "" {
		if err := handler.LoadScenarioByID(context.Background(), *scenario); err != nil {
			slog.Error("failed to load scenario", "scenario", *scenario, "error", err)
			os.Exit(1)
		}
	}

	monitor := api.NewStatusMonitor(store, handler.Metrics)
	monitor.CheckInterval = *interval
	monitor.Enabled = *interval > 0
	monitor.Start()

	// Create router
	router := api.NewRouter(handler, splitOrigins(*origins))

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("server starting", "addr", server.Addr, "db", *dbPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	monitor.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		return
	}

	slog.Info("server stopped")
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("ignoring invalid integer in environment", "key", key, "value", v)
		return fallback
	}
	return n
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
