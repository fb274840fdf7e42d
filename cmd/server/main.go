package main

import (
	"context"
	"dashregiond/internal/api"
	"dashregiond/internal/config"
	"dashregiond/internal/dash"
	"dashregiond/internal/logger"
	"dashregiond/internal/session"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	// 1. Parse command-line arguments
	listenAddr := flag.String("l", ":8080", "HTTP listen address")
	logLevel := flag.String("L", "info", "Log level (error, warn, info, debug)")
	configFile := flag.String("c", "channels.json", "Path to the channel config file (.json, .yaml or .yml)")
	flag.Parse()

	// 2. Initialize logger
	log := logger.NewLogger(*logLevel)
	log.Infof("Starting DASH region tracker...")
	log.Infof("Log level set to: %s", *logLevel)

	// 3. Load configuration
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Errorf("Failed to load configuration: %v", err)
		os.Exit(1)
	}
	log.Infof("Configuration loaded successfully for: %s (%d channels)", cfg.Name, len(cfg.Channels))

	// 4. Initialize services and managers
	dashClient := dash.NewClient(log, cfg.UserAgent)
	sessionMgr := session.NewManager(log, cfg, dashClient, session.Options{})

	// 5. Set up API router with dependencies
	router := api.New(sessionMgr)

	// 6. Set up and run the HTTP server with graceful shutdown
	server := &http.Server{
		Addr:    *listenAddr,
		Handler: router,
	}

	go func() {
		log.Infof("Server starting on %s", *listenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("Could not listen on %s: %v", *listenAddr, err)
			os.Exit(1)
		}
	}()

	// Listen for shutdown signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Infof("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("Server shutdown failed: %v", err)
		os.Exit(1)
	}

	// Release every timeline once no request can reach a session any more.
	sessionMgr.Stop()

	log.Infof("Server exited gracefully")
}
