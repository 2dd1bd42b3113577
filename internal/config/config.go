package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Provider names a completion service backend.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGroq   Provider = "groq"
	ProviderGemini Provider = "gemini"
)

const (
	defaultPort       = 5001
	defaultStaticDir  = "dist"
	defaultLLMTimeout = 60 * time.Second

	OpenAIChatURL = "https://api.openai.com/v1/chat/completions"
	GroqChatURL   = "https://api.groq.com/openai/v1/chat/completions"
)

var defaultModels = map[Provider]string{
	ProviderOpenAI: "gpt-4",
	ProviderGroq:   "llama-3.3-70b-versatile",
	ProviderGemini: "gemini-1.5-flash",
}

var apiKeyVars = map[Provider]string{
	ProviderOpenAI: "OPENAI_API_KEY",
	ProviderGroq:   "GROQ_API_KEY",
	ProviderGemini: "GEMINI_API_KEY",
}

// Config holds the configuration for the application.
type Config struct {
	Port      int
	StaticDir string

	// Completion service
	LLMProvider    Provider
	LLMAPIKey      string
	LLMModel       string
	LLMBaseURL     string
	LLMTemperature *float64
	LLMTimeout     time.Duration

	// Optional features
	MetricsDBPath string
	AuthJWTSecret string

	LogLevel  string
	LogFormat string

	// Telegram Config
	TelegramBotToken       string
	TelegramWebhookURL     string
	TelegramAllowedUserIDs []int64
	AdminTelegramID        int64
}

// NewFromEnv creates a new Config object from environment variables.
func NewFromEnv() (*Config, error) {
	cfg := &Config{
		Port:          defaultPort,
		StaticDir:     getEnv("STATIC_DIR", defaultStaticDir),
		LLMProvider:   Provider(strings.ToLower(getEnv("LLM_PROVIDER", string(ProviderOpenAI)))),
		LLMTimeout:    defaultLLMTimeout,
		MetricsDBPath: os.Getenv("METRICS_DB_PATH"),
		AuthJWTSecret: os.Getenv("AUTH_JWT_SECRET"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),

		TelegramBotToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramWebhookURL: os.Getenv("TELEGRAM_WEBHOOK_URL"),
	}

	if portStr := os.Getenv("PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("PORT must be a valid port number, got %q", portStr)
		}
		cfg.Port = port
	}

	keyVar, ok := apiKeyVars[cfg.LLMProvider]
	if !ok {
		return nil, fmt.Errorf("LLM_PROVIDER %q is not supported", cfg.LLMProvider)
	}
	cfg.LLMAPIKey = os.Getenv(keyVar)
	if cfg.LLMAPIKey == "" {
		return nil, fmt.Errorf("%s environment variable not set", keyVar)
	}

	cfg.LLMModel = getEnv("LLM_MODEL", defaultModels[cfg.LLMProvider])
	cfg.LLMBaseURL = os.Getenv("LLM_BASE_URL")
	if cfg.LLMBaseURL == "" {
		switch cfg.LLMProvider {
		case ProviderOpenAI:
			cfg.LLMBaseURL = OpenAIChatURL
		case ProviderGroq:
			cfg.LLMBaseURL = GroqChatURL
		}
	}

	if tempStr := os.Getenv("LLM_TEMPERATURE"); tempStr != "" {
		temp, err := strconv.ParseFloat(tempStr, 64)
		if err != nil {
			return nil, fmt.Errorf("LLM_TEMPERATURE must be a number, got %q", tempStr)
		}
		cfg.LLMTemperature = &temp
	}

	if timeoutStr := os.Getenv("LLM_TIMEOUT"); timeoutStr != "" {
		timeout, err := time.ParseDuration(timeoutStr)
		if err != nil {
			return nil, fmt.Errorf("LLM_TIMEOUT must be a duration, got %q", timeoutStr)
		}
		cfg.LLMTimeout = timeout
	}

	// Telegram Config (Optional for CLI, required for Bot)
	if ids := os.Getenv("TELEGRAM_ALLOWED_USER_IDS"); ids != "" {
		for _, raw := range strings.Split(ids, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("TELEGRAM_ALLOWED_USER_IDS contains invalid id %q", raw)
			}
			cfg.TelegramAllowedUserIDs = append(cfg.TelegramAllowedUserIDs, id)
		}
	}
	if adminStr := os.Getenv("ADMIN_TELEGRAM_ID"); adminStr != "" {
		id, err := strconv.ParseInt(adminStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ADMIN_TELEGRAM_ID must be numeric, got %q", adminStr)
		}
		cfg.AdminTelegramID = id
	}

	return cfg, nil
}

// NewTokenIssuerFromEnv loads only what issuing an API token needs: the
// signing secret and logging. No LLM provider or key is required.
func NewTokenIssuerFromEnv() (*Config, error) {
	cfg := &Config{
		AuthJWTSecret: os.Getenv("AUTH_JWT_SECRET"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),
	}
	if cfg.AuthJWTSecret == "" {
		return nil, fmt.Errorf("AUTH_JWT_SECRET environment variable not set")
	}
	return cfg, nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
