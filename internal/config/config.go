package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultPort          = "3000"
	DefaultTokenTTL      = 168 * time.Hour
	DefaultUploadDir     = "uploads"
	DefaultMaxUploadSize = 10 * 1024 * 1024
)

var defaultOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

type Config struct {
	Port string

	DatabaseDriver string
	DatabaseURL    string

	JWTSecret    string
	TokenTTL     time.Duration
	CookieDomain string

	UploadDir     string
	MaxUploadSize int64

	AllowedOrigins []string

	LogLevel  string
	LogFormat string
}

// Load reads the configuration from the environment. Call godotenv.Load
// beforehand to pick up a .env file.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getenv("PORT", DefaultPort),
		DatabaseDriver: strings.ToLower(getenv("DATABASE_DRIVER", "postgres")),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		TokenTTL:       DefaultTokenTTL,
		CookieDomain:   os.Getenv("COOKIE_DOMAIN"),
		UploadDir:      getenv("UPLOAD_DIR", DefaultUploadDir),
		MaxUploadSize:  DefaultMaxUploadSize,
		AllowedOrigins: allowedOrigins(),
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogFormat:      strings.ToLower(getenv("LOG_FORMAT", "console")),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is not set")
	}

	switch cfg.DatabaseDriver {
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
		}
	case "sqlite":
		if cfg.DatabaseURL == "" {
			cfg.DatabaseURL = "campusconnect.db"
		}
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}

	if raw := os.Getenv("TOKEN_TTL"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil || ttl <= 0 {
			return nil, fmt.Errorf("invalid TOKEN_TTL %q", raw)
		}
		cfg.TokenTTL = ttl
	}

	if raw := os.Getenv("MAX_UPLOAD_SIZE"); raw != "" {
		size, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || size <= 0 {
			return nil, fmt.Errorf("invalid MAX_UPLOAD_SIZE %q", raw)
		}
		cfg.MaxUploadSize = size
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func allowedOrigins() []string {
	origins := make([]string, len(defaultOrigins))
	copy(origins, defaultOrigins)

	if clientURL := os.Getenv("CLIENT_URL"); clientURL != "" {
		origins = append(origins, clientURL)
	}

	if allowed := os.Getenv("ALLOWED_ORIGINS"); allowed != "" {
		for _, origin := range strings.Split(allowed, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}

	return origins
}
