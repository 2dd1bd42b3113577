package config

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestConfigureLogger(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	ConfigureLogger(&Config{LogLevel: "debug", LogFormat: "console"})
	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Errorf("Expected debug level, got %v", zerolog.GlobalLevel())
	}

	ConfigureLogger(&Config{LogLevel: "loud", LogFormat: "json"})
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("Expected fallback to info, got %v", zerolog.GlobalLevel())
	}
}
