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

	"docai.id/document-assistant/internal/api"
	"docai.id/document-assistant/internal/config"
	"docai.id/document-assistant/internal/core"
	"docai.id/document-assistant/internal/embedding"
	"docai.id/document-assistant/internal/llm"
	"docai.id/document-assistant/internal/store"
)

func main() {
	// Load configuration
	config.LoadConfig()

	// Setup logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if config.AppConfig.LogLevel == "DEBUG" {
		log.Println("Service starting in DEBUG mode")
	}

	// Initialize database store
	dbStore, err := store.NewSQLiteStore(config.AppConfig.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer dbStore.Close()

	// Outbound clients
	embedClient := embedding.NewClient(config.AppConfig.EmbeddingAPIURL, config.AppConfig.EmbeddingAPIKey)

	generators := map[llm.Provider]core.Generator{
		llm.ProviderDigitalOcean: llm.NewDigitalOceanGenerator(config.AppConfig.DOAPIURL, config.AppConfig.DOAPIKey),
		llm.ProviderOllama:       llm.NewOllamaGenerator(config.AppConfig.OllamaAPIURL, config.AppConfig.OllamaModel),
	}

	// Query pipeline
	chatService := core.NewChatService(dbStore, embedClient, generators)

	// API handler and router
	apiHandler := api.NewAPIHandler(chatService, embedClient)
	router := api.NewRouter(apiHandler)

	serverAddr := fmt.Sprintf("%s:%s", config.AppConfig.HTTPHost, config.AppConfig.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // streamed LLM answers can take a while
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		log.Printf("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", serverAddr, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting gracefully")
}
