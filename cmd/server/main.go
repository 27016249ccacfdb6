package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Rrens/smart-chat/internal/api"
	"github.com/Rrens/smart-chat/internal/config"
	"github.com/Rrens/smart-chat/internal/llm/providers"
	"github.com/Rrens/smart-chat/internal/logging"
	"github.com/Rrens/smart-chat/internal/repository"
	"github.com/Rrens/smart-chat/internal/repository/redis"
	"github.com/Rrens/smart-chat/internal/service"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env file - try multiple locations
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(p); err == nil {
			fmt.Printf("Loaded .env from: %s\n", p)
			break
		}
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	closer, err := logging.Setup(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	log.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("store", cfg.Store.Driver).
		Msg("Starting smart-chat server")

	ctx := context.Background()

	// Initialize session store
	store, err := repository.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open session store")
	}
	defer store.Close()

	sessions := service.NewSessionService(store, cfg.Store.KeyPrefix)
	loaded := sessions.LoadAll(ctx)
	log.Info().Int("sessions", len(loaded)).Msg("Sessions loaded")

	// Initialize completion providers
	llmRouter := providers.NewRouter(cfg.LLM)
	client := providers.NewClient(cfg, llmRouter)
	controller := service.NewController(
		sessions,
		client,
		service.WithGenerationOptions(cfg.LLM.Generation),
		service.WithTypingDelay(cfg.Chat.TypingDelay),
	)

	deps := api.Dependencies{
		Controller: controller,
		Providers:  llmRouter,
		Store:      store,
	}
	if store.Redis != nil {
		limit := cfg.Security.RateLimit
		deps.Limiter = redis.NewRateLimiter(store.Redis, cfg.Store.KeyPrefix, limit.RequestsPerMinute, limit.Burst)
	} else {
		log.Info().Msg("Rate limiting disabled: store driver is not redis")
	}

	// Initialize router
	router := api.NewRouter(cfg, deps)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Abandon any reply in flight before the store closes
	controller.Cancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
