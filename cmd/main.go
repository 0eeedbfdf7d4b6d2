/**
 * @description
 * This is the main entry point for the bridge-connector. Its primary role is
 * to start an HTTP server that listens for incoming webhooks from the Algoan
 * platform and runs the bank account/transaction synchronization pipeline.
 *
 * Key features:
 * - Loads application configuration from environment variables.
 * - Wires the Bridge and Algoan API clients into the connector service.
 * - Sets up an HTTP router (`chi`) to direct webhook traffic to the handler.
 * - Implements graceful shutdown to ensure clean resource cleanup on
 *   termination.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for building
 *   Go HTTP services.
 * - github.com/joho/godotenv: For loading .env files during local development.
 * - The service's internal packages for config, API handling and the clients.
 */
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/algoan/bridge-connector/internal/api"
	"github.com/algoan/bridge-connector/internal/app"
	"github.com/algoan/bridge-connector/internal/config"
	"github.com/algoan/bridge-connector/internal/domain"
	"github.com/algoan/bridge-connector/pkg/algoanclient"
	"github.com/algoan/bridge-connector/pkg/bridgeclient"
)

func main() {
	// Load .env file for local development.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load application configuration.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}

	algoan := algoanclient.NewClient(cfg.AlgoanBaseURL, cfg.AlgoanClientID, cfg.AlgoanClientSecret)
	bridge := bridgeclient.NewClient(cfg.BridgeBaseURL, bridgeclient.Defaults{
		ClientID:      cfg.BridgeClientID,
		ClientSecret:  cfg.BridgeClientSecret,
		BankinVersion: cfg.BankinVersion,
	})

	service := app.NewService(algoan, bridge, app.Settings{
		UserSecretKey:          cfg.BridgeUserSecretKey,
		SyncTimeout:            time.Duration(cfg.SyncTimeoutSeconds) * time.Second,
		SyncWaitInterval:       time.Duration(cfg.SyncWaitMilliseconds) * time.Millisecond,
		RefreshTimeout:         time.Duration(cfg.RefreshTimeoutSeconds) * time.Second,
		RefreshWaitInterval:    time.Duration(cfg.RefreshWaitMilliseconds) * time.Millisecond,
		NbOfMonths:             cfg.NbOfMonths,
		DeleteBridgeUsers:      cfg.DeleteBridgeUsers,
		ForceDeleteBridgeUsers: cfg.ForceDeleteBridgeUsers,
	})

	// The service-account client configuration threaded through the pipeline.
	clientConfig := &domain.ClientConfig{
		ClientID:      cfg.BridgeClientID,
		ClientSecret:  cfg.BridgeClientSecret,
		BankinVersion: cfg.BankinVersion,
	}

	webhookHandler := api.NewWebhookHandler(service, algoan, cfg.RestHookSecret, clientConfig)
	r := api.NewRouter(webhookHandler)

	// Start the HTTP server.
	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not start server: %s\n", err)
		}
	}()

	// Graceful shutdown logic.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}

	log.Println("Server gracefully stopped")
}
