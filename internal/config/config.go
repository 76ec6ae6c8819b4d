package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	ListenAddr string

	RedisURL    string
	MongoURL    string
	DatabaseURL string

	OrderServiceURL string

	TokenSecret string
	PlayURL     string

	SessionTTL      time.Duration
	GraceWindow     time.Duration
	HistoryWindow   int
	ExposeSolutions bool
}

func Load() (*AppConfig, error) {
	// .env is optional; real deployments inject the environment directly.
	_ = godotenv.Load()

	cfg := &AppConfig{
		ListenAddr:      ":8090",
		SessionTTL:      2 * time.Hour,
		GraceWindow:     10 * time.Minute,
		HistoryWindow:   10,
		ExposeSolutions: true,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.MongoURL = strings.TrimSpace(os.Getenv("MONGODB_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.OrderServiceURL = strings.TrimSpace(os.Getenv("ORDER_SERVICE_URL"))
	cfg.PlayURL = strings.TrimSpace(os.Getenv("PLAY_URL"))

	cfg.TokenSecret = strings.TrimSpace(os.Getenv("CHALLENGE_TOKEN_SECRET"))
	if cfg.TokenSecret == "" {
		cfg.TokenSecret = "dev-challenge-secret"
	}

	if v := strings.TrimSpace(os.Getenv("SESSION_TTL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.SessionTTL = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("GRACE_WINDOW")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.GraceWindow = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("HISTORY_WINDOW")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HistoryWindow = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("EXPOSE_SOLUTIONS")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.ExposeSolutions = b
		}
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.OrderServiceURL == "" {
		return nil, errors.New("ORDER_SERVICE_URL is required")
	}

	return cfg, nil
}
