/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the inventory engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load environment configuration (.env honored)
  2. Parse command-line flags (flags win over environment)
  3. Open the SQLite store, or fall back to in-memory when unconfigured
  4. Wire the engine and API handler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080, env PORT)
  -db      SQLite database path (env INVENTORY_DB)
           Use ":memory:" for an in-memory SQLite database.
           Empty means no durable store: the engine runs degraded on the
           map-backed store and loses everything on restart.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/inventory.db"

  # Run on different port
  ./server -port=3000

SEE ALSO:
  - config/config.go: Environment configuration and the shared logger
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/inventory-engine/api"
	"github.com/warp/inventory-engine/config"
	"github.com/warp/inventory-engine/engine"
	memstore "github.com/warp/inventory-engine/engine/store"
	"github.com/warp/inventory-engine/store/sqlite"
)

func main() {
	cfg := config.Load()
	logger := config.GetLogger()

	// Flags win over environment.
	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DatabasePath, "SQLite database path (empty: in-memory, non-durable)")
	flag.Parse()

	// Initialize store. A missing database path is a degraded start, not a
	// fatal one: every write lives only as long as the process.
	var st engine.Store
	if *dbPath == "" {
		logger.Warn("no database configured; running on the in-memory store, data will not survive a restart")
		st = memstore.NewMemory()
	} else {
		sqlStore, err := sqlite.New(*dbPath)
		if err != nil {
			logger.WithError(err).Fatal("failed to initialize database")
		}
		defer sqlStore.Close()
		st = sqlStore
		logger.WithField("db", *dbPath).Info("database ready")
	}

	// Wire the engine and API
	eng := engine.New(st, logger)
	handler := api.NewHandler(eng)
	router := api.NewRouter(handler)

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
		logger.WithField("addr", server.Addr).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("server forced to shutdown")
	}

	if dropped := eng.Audit.Dropped(); dropped > 0 {
		logger.WithField("dropped", dropped).Warn("audit entries were dropped during this run")
	}
	logger.Info("server stopped")
}
