package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiraleos/chatterd/internal/api"
	"github.com/kiraleos/chatterd/internal/config"
	"github.com/kiraleos/chatterd/internal/core"
	"github.com/kiraleos/chatterd/internal/ratelimit"
	"github.com/kiraleos/chatterd/internal/store"
)

func main() {
	// Load configuration
	config.LoadConfig()

	// Setup logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if config.AppConfig.LogLevel == "DEBUG" {
		log.Println("Service starting in DEBUG mode")
	}

	// Storage: the presence of DATABASE_URL selects the persistent adapter,
	// its absence the in-process one. The API surface is identical either way.
	var dbStore store.Store
	if config.AppConfig.DatabaseURL != "" {
		sqliteStore, err := store.NewSQLiteStore(config.AppConfig.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		dbStore = sqliteStore
	} else {
		log.Println("DATABASE_URL not set, using in-memory storage")
		dbStore = store.NewMemoryStore()
	}
	defer dbStore.Close()

	// Initialize LLM service
	llmService := core.NewLLMService()
	defer llmService.Close()

	// Command and canned-response tables
	ruleset, err := core.LoadRuleset(config.AppConfig.RulesFile)
	if err != nil {
		log.Fatalf("Failed to load rules file: %v", err)
	}

	engine := core.NewEngine(dbStore, ruleset, func() (bool, string) {
		return llmService.Available(), dbStore.Mode()
	})
	chatService := core.NewChatService(dbStore, engine, llmService)

	limiter := ratelimit.NewLimiter(
		config.AppConfig.RateLimit,
		time.Duration(config.AppConfig.RateWindowSeconds)*time.Second,
	)

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(chatService)
	router := api.NewRouter(apiHandler, limiter)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // LLM calls can take time
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		log.Printf("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", serverAddr, err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give active connections time to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting gracefully")
}
