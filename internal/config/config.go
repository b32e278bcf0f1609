package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Server
	Port          int
	MaxUploadMB   int
	LocalOutput   bool // play through the host's speakers as well
	Keyboard      bool // read effect keys from the terminal
	SearchTimeout time.Duration
	FetchTimeout  time.Duration

	// Engine
	TickRate  int           // ticks per second
	MaxStep   time.Duration // largest dt a single tick may see
	PeakDecay string        // "frame" or "time"
	Seed      uint64        // camera shake seed, 0 for random

	// Jamendo catalogue
	JamendoAPIURL   string
	JamendoClientID string
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	cfg := Config{
		Port:          envInt("LITESHOW_PORT", 8080),
		MaxUploadMB:   envInt("LITESHOW_MAX_UPLOAD_MB", 64),
		LocalOutput:   envBool("LITESHOW_LOCAL_OUTPUT", false),
		Keyboard:      envBool("LITESHOW_KEYBOARD", false),
		SearchTimeout: envDuration("LITESHOW_SEARCH_TIMEOUT", 10*time.Second),
		FetchTimeout:  envDuration("LITESHOW_FETCH_TIMEOUT", 30*time.Second),

		TickRate:  envInt("LITESHOW_TICK_RATE", 60),
		MaxStep:   envDuration("LITESHOW_MAX_STEP", 50*time.Millisecond),
		PeakDecay: envStr("LITESHOW_PEAK_DECAY", "frame"),
		Seed:      uint64(envInt("LITESHOW_SEED", 0)),

		JamendoAPIURL:   envStr("JAMENDO_API_URL", "https://api.jamendo.com/v3.0"),
		JamendoClientID: envStr("JAMENDO_CLIENT_ID", ""),
	}
	// An unclamped step lets one stalled tick skip whole effect cycles.
	if cfg.MaxStep <= 0 {
		cfg.MaxStep = 50 * time.Millisecond
	}
	return cfg
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// envDuration accepts Go durations ("250ms") or plain seconds ("10", "0.5").
func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if f := envFloat(key, -1); f >= 0 {
			return time.Duration(f * float64(time.Second))
		}
	}
	return fallback
}
