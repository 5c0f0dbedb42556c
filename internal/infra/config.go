package infra

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	StoragePath        string
	GeminiAPIKey       string
	GeminiBaseURL      string
	VeoModel           string
	PollInterval       time.Duration
	MaxGenerationWait  time.Duration
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
	AllowedOrigins     []string
	CompositorConfig   string
	GalleryConfig      string
	CompositeRetention time.Duration
	// SyntheticVideos renders local placeholder clips when no API key is
	// configured. Intended for development only.
	SyntheticVideos    bool
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		StoragePath:        getEnv("STORAGE_PATH", "./storage"),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		GeminiBaseURL:      getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		VeoModel:           getEnv("VEO_MODEL", "veo-3.1-fast-generate-preview"),
		PollInterval:       time.Second * time.Duration(getEnvInt("GENERATION_POLL_INTERVAL_SECONDS", 10)),
		MaxGenerationWait:  time.Minute * time.Duration(getEnvInt("GENERATION_MAX_WAIT_MINUTES", 0)),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		AllowedOrigins:     splitList(os.Getenv("ALLOWED_ORIGINS")),
		CompositorConfig:   os.Getenv("COMPOSITOR_CONFIG"),
		GalleryConfig:      os.Getenv("GALLERY_CONFIG"),
		CompositeRetention: time.Minute * time.Duration(getEnvInt("COMPOSITE_RETENTION_MINUTES", 60)),
		SyntheticVideos:    getEnvBool("SYNTHETIC_VIDEOS", false),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("GENERATION_POLL_INTERVAL_SECONDS must be positive")
	}
	if _, err := url.Parse(cfg.GeminiBaseURL); err != nil {
		return nil, fmt.Errorf("GEMINI_BASE_URL: %w", err)
	}
	if cfg.SyntheticVideos && cfg.AppEnv == "production" {
		return nil, fmt.Errorf("SYNTHETIC_VIDEOS cannot be enabled in production")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
