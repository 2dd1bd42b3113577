package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"ai-diet-planner/internal/app"
	"ai-diet-planner/internal/auth"
	"ai-diet-planner/internal/config"
	"ai-diet-planner/internal/database"
	"ai-diet-planner/internal/llm"
	"ai-diet-planner/internal/metrics"
	"ai-diet-planner/internal/planner"
	"ai-diet-planner/internal/server"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
	}

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	loadConfig := config.NewFromEnv
	if os.Args[1] == "issue-token" {
		loadConfig = config.NewTokenIssuerFromEnv
	}
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	config.ConfigureLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "serve":
		err = runServe(ctx, cfg)
	case "generate":
		err = runGenerate(ctx, cfg, os.Args[2:])
	case "metrics":
		err = runMetrics(cfg, os.Args[2:])
	case "metrics-cleanup":
		err = runMetricsCleanup(cfg, os.Args[2:])
	case "issue-token":
		err = runIssueToken(cfg, os.Args[2:])
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		log.Fatal().Err(err).Str("command", os.Args[1]).Msg("command failed")
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	textGen, err := llm.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize %s client: %w", cfg.LLMProvider, err)
	}
	if closer, ok := textGen.(llm.Closer); ok {
		defer closer.Close()
	}

	var opts []server.Option

	metricsStore, err := openMetricsStore(cfg)
	if err != nil {
		return err
	}
	if metricsStore != nil {
		defer metricsStore.Close()
		opts = append(opts, server.WithMetrics(metricsStore))
	}

	if cfg.AuthJWTSecret != "" {
		tokens, err := auth.NewTokenService(cfg.AuthJWTSecret)
		if err != nil {
			return err
		}
		opts = append(opts, server.WithTokenService(tokens))
		log.Info().Msg("bearer token required on /generate-meal-plan")
	}

	mealPlanner := planner.NewPlanner(textGen, cfg.LLMTimeout)
	log.Info().
		Str("provider", string(cfg.LLMProvider)).
		Str("model", cfg.LLMModel).
		Str("static_dir", cfg.StaticDir).
		Msg("starting meal plan service")

	return server.NewServer(cfg, mealPlanner, opts...).Run(ctx)
}

func runGenerate(ctx context.Context, cfg *config.Config, args []string) error {
	genCmd := flag.NewFlagSet("generate", flag.ExitOnError)
	diet := genCmd.String("diet", "", "Dietary preference, e.g. Vegetarian")
	allergies := genCmd.String("allergies", "", "Comma separated allergies")
	age := genCmd.String("age", "", "Age stage, e.g. Adult")
	conditions := genCmd.String("conditions", "", "Comma separated medical conditions")
	activity := genCmd.String("activity", "", "Activity level, e.g. Moderate")
	asJSON := genCmd.Bool("json", false, "Print the plan as JSON")
	genCmd.Parse(args)

	textGen, err := llm.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize %s client: %w", cfg.LLMProvider, err)
	}
	if closer, ok := textGen.(llm.Closer); ok {
		defer closer.Close()
	}

	metricsStore, err := openMetricsStore(cfg)
	if err != nil {
		return err
	}
	if metricsStore != nil {
		defer metricsStore.Close()
	}

	application := app.NewApp(planner.NewPlanner(textGen, cfg.LLMTimeout), metricsStore)
	return application.GenerateMealPlan(ctx, planner.MealPlanRequest{
		DietaryPreference: *diet,
		Allergies:         splitFlag(*allergies),
		AgeStage:          *age,
		MedicalConditions: splitFlag(*conditions),
		ActivityLevel:     *activity,
	}, *asJSON)
}

func runMetrics(cfg *config.Config, args []string) error {
	metricsCmd := flag.NewFlagSet("metrics", flag.ExitOnError)
	days := metricsCmd.Int("days", 7, "Show usage for the last N days")
	metricsCmd.Parse(args)

	metricsStore, err := openMetricsStore(cfg)
	if err != nil {
		return err
	}
	if metricsStore != nil {
		defer metricsStore.Close()
	}
	return app.NewApp(nil, metricsStore).ShowUsage(*days)
}

func runMetricsCleanup(cfg *config.Config, args []string) error {
	cleanupCmd := flag.NewFlagSet("metrics-cleanup", flag.ExitOnError)
	days := cleanupCmd.Int("days", 30, "Keep records for the last N days")
	cleanupCmd.Parse(args)

	metricsStore, err := openMetricsStore(cfg)
	if err != nil {
		return err
	}
	if metricsStore != nil {
		defer metricsStore.Close()
	}
	return app.NewApp(nil, metricsStore).CleanupMetrics(*days)
}

func runIssueToken(cfg *config.Config, args []string) error {
	tokenCmd := flag.NewFlagSet("issue-token", flag.ExitOnError)
	subject := tokenCmd.String("sub", "frontend", "Token subject")
	ttl := tokenCmd.Duration("ttl", 24*time.Hour, "Token lifetime")
	tokenCmd.Parse(args)

	tokens, err := auth.NewTokenService(cfg.AuthJWTSecret)
	if err != nil {
		return err
	}
	token, err := tokens.Issue(*subject, *ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

// openMetricsStore returns nil when METRICS_DB_PATH is not set.
func openMetricsStore(cfg *config.Config) (*metrics.Store, error) {
	if cfg.MetricsDBPath == "" {
		return nil, nil
	}
	db, err := database.NewDB(cfg.MetricsDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics database: %w", err)
	}
	return metrics.NewStore(db.SQL), nil
}

func splitFlag(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func printUsage() {
	fmt.Println("Usage: ai-diet-planner <command> [arguments]")
	fmt.Println("\nCommands:")
	fmt.Println("  serve              Run the HTTP meal plan service")
	fmt.Println("  generate           Generate one meal plan and print it")
	fmt.Println("  metrics            Show LLM usage per day")
	fmt.Println("  metrics-cleanup    Remove old metric records")
	fmt.Println("  issue-token        Print a bearer token for the HTTP service")
}
