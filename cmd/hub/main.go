package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codingsoft/community-hub/internal/api"
	"github.com/codingsoft/community-hub/internal/auth"
	"github.com/codingsoft/community-hub/internal/config"
	"github.com/codingsoft/community-hub/internal/store"
)

func main() {
	// Load configuration
	config.LoadConfig()

	// Setup logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if config.AppConfig.LogLevel == "DEBUG" {
		log.Println("Hub starting in DEBUG mode")
	}

	// Command line flag to force the starter catalog back in
	reseedFlag := flag.Bool("reseed", false, "Re-apply the starter catalog and exit")
	flag.Parse()

	// Initialize database store
	dbStore, err := store.NewSQLiteStore(config.AppConfig.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer dbStore.Close()

	if *reseedFlag {
		if err := dbStore.Reseed(); err != nil {
			log.Fatalf("Reseed failed: %v", err)
		}
		log.Println("Starter catalog re-applied. Exiting.")
		os.Exit(0)
	}

	// Seed the starter catalog if this database has never been seeded
	if err := dbStore.Seed(); err != nil {
		log.Fatalf("Failed to seed starter catalog: %v", err)
	}

	// Initialize connection keyring and API router
	keyring := auth.NewKeyring(config.AppConfig.ConnectionKeys, config.AppConfig.DemoMode)
	hubHandler := api.NewHubHandler(dbStore, keyring, config.AppConfig.HubMode)
	router := api.NewRouter(hubHandler)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		log.Printf("Community hub (%s mode) listening on %s. Press Ctrl+C to quit.", config.AppConfig.HubMode, serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", serverAddr, err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down hub...")

	// Give active connections time to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Hub exiting gracefully")
}
