package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mr-tron/base58"

	"github.com/provenonce/beats/internal/anchor"
	"github.com/provenonce/beats/internal/api"
	"github.com/provenonce/beats/internal/config"
	"github.com/provenonce/beats/internal/cron"
	"github.com/provenonce/beats/internal/keys"
	"github.com/provenonce/beats/internal/ledger"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Println("Starting Beats server...")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Local mode can run keyless for development; a throwaway keypair
	// is generated so receipts still verify within the process run.
	keypair := cfg.AnchorKeypair
	if keypair == "" && cfg.Ledger.Mode == "local" {
		seed := make([]byte, 64)
		if _, err := rand.Read(seed); err != nil {
			log.Fatalf("Failed to generate dev keypair: %v", err)
		}
		keypair = base58.Encode(seed)
		log.Println("Warning: BEATS_ANCHOR_KEYPAIR not set, using an ephemeral dev keypair")
	}

	// Initialize the receipt signing hierarchy
	signer, err := keys.NewSignerFromKeypair(keypair)
	if err != nil {
		log.Fatalf("Failed to derive signing keys: %v", err)
	}

	// Initialize the ledger backend
	var lg ledger.Ledger
	switch cfg.Ledger.Mode {
	case "local":
		log.Printf("Opening local ledger at %s", cfg.Ledger.LocalPath)
		local, err := ledger.NewLocalLedger(cfg.Ledger.LocalPath)
		if err != nil {
			log.Fatalf("Failed to open local ledger: %v", err)
		}
		defer local.Close()
		lg = local
	default:
		sol, err := ledger.NewSolanaLedger(cfg.RPC.URL, keypair,
			time.Duration(cfg.RPC.TimeoutSeconds)*time.Second)
		if err != nil {
			log.Fatalf("Failed to create ledger client: %v", err)
		}
		if err := sol.CheckVersion(ctx); err != nil {
			log.Printf("Warning: ledger node version check failed: %v", err)
		}
		lg = sol
	}
	log.Printf("Anchor writer address: %s", lg.WriterAddress())

	// Anchor cache and advancer
	cache := anchor.NewCache(lg, anchor.DefaultCacheTTL)
	advancer := cron.NewAdvancer(lg, cache, cfg.Anchor.IntervalMs, cfg.Anchor.DefaultDifficulty)

	if cfg.Anchor.SelfSchedule {
		go advancer.Run(ctx)
	}

	// Initialize API router
	router := api.NewRouter(cfg, lg, cache, signer, advancer)
	for _, limiter := range router.Limiters() {
		limiter.StartSweeping(ctx)
	}

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router.Engine(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start HTTP server in goroutine
	go func() {
		log.Printf("[SERVER] HTTP server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")

	// Stop background work
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
