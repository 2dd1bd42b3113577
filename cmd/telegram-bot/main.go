package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-diet-planner/internal/config"
	"ai-diet-planner/internal/database"
	"ai-diet-planner/internal/llm"
	"ai-diet-planner/internal/metrics"
	"ai-diet-planner/internal/planner"
	"ai-diet-planner/internal/telegram"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()

	// 1. Load Configuration
	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	config.ConfigureLogger(cfg)

	ctx := context.Background()

	// 2. Initialize the completion client
	textGen, err := llm.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("provider", string(cfg.LLMProvider)).Msg("failed to create LLM client")
	}
	if closer, ok := textGen.(llm.Closer); ok {
		defer closer.Close()
	}

	// 3. Optional usage metrics
	var metricsStore *metrics.Store
	if cfg.MetricsDBPath != "" {
		db, err := database.NewDB(cfg.MetricsDBPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize database")
		}
		metricsStore = metrics.NewStore(db.SQL)
		defer metricsStore.Close()
	}

	// 4. Initialize Telegram Bot
	mealPlanner := planner.NewPlanner(textGen, cfg.LLMTimeout)
	bot, err := telegram.NewBot(cfg, mealPlanner, metricsStore)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telegram bot")
	}

	// 5. Start Server with Graceful Shutdown
	mux := http.NewServeMux()
	bot.RegisterHandlers(mux)

	srv := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: time.Minute,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("telegram bot server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exiting")
}
