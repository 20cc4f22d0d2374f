/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the reward ledger server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store
  3. Wire mint ledger and engine
  4. Configure HTTP router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port        HTTP server port (default: 8080)
  -db          SQLite database path (default: ledger.db)
               Use ":memory:" for an in-memory database
  -jwt-secret  HS256 secret for caller attestation (empty = dev mode)
  -reward-bps  Reward rate in basis points (default: 200 = 2%)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/ledger.db"

  # Run with in-memory database
  ./server -db=":memory:"

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
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

	"go.uber.org/zap"

	"github.com/lypto/reward-engine/api"
	"github.com/lypto/reward-engine/ledger"
	"github.com/lypto/reward-engine/minting"
	"github.com/lypto/reward-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "ledger.db", "SQLite database path")
	jwtSecret := flag.String("jwt-secret", "", "HS256 secret for caller attestation (empty = dev mode)")
	rewardBPS := flag.Uint64("reward-bps", ledger.RewardRateBPS, "Reward rate in basis points")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	// Wire mint ledger and engine
	mint := minting.NewLedger(store, store, logger)
	engine := ledger.NewEngine(store, mint,
		ledger.WithRewardRate(*rewardBPS),
		ledger.WithLogger(logger),
	)

	// Create router
	handler := api.NewHandler(engine, mint, logger)
	auth := api.NewAuthenticator(*jwtSecret)
	router := api.NewRouter(handler, auth)

	if *jwtSecret == "" {
		logger.Warn("no jwt secret configured; running in dev mode with X-Caller-ID attestation")
	}

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
		logger.Info("server starting",
			zap.Int("port", *port),
			zap.String("db", *dbPath),
			zap.Uint64("reward_bps", *rewardBPS))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
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
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
