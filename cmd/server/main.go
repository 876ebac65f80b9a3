package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/GriffinCanCode/termstream/internal/infrastructure/config"
	"github.com/GriffinCanCode/termstream/internal/infrastructure/server"
)

func main() {
	// Parse flags
	port := flag.String("port", "", "Server port (overrides PORT)")
	host := flag.String("host", "", "Bind address (overrides HOST)")
	strategy := flag.String("strategy", "", "Terminal backend: auto, native, or subprocess")
	shell := flag.String("shell", "", "Shell binary (overrides auto-detection)")
	configFile := flag.String("config", "", "Config file path, YAML or TOML")
	dev := flag.Bool("dev", false, "Development mode (colored logs, debug level)")
	flag.Parse()

	if *configFile != "" {
		os.Setenv("CONFIG_FILE", *configFile)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// CLI flags override environment and file values.
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *strategy != "" {
		cfg.Terminal.Strategy = *strategy
	}
	if *shell != "" {
		cfg.Terminal.Shell = *shell
	}
	if *dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Create server
	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := srv.Run(); err != nil {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-sigChan:
		log.Println("Shutting down gracefully...")
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	case err := <-errChan:
		log.Fatalf("Server error: %v", err)
	}
}
