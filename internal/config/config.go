package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Feed（管理API）
	FeedBaseURL     string
	FeedBearerToken string
	FeedTenants     []string
	DefaultTenant   string
	FetchTimeout    time.Duration
	FeedRateLimit   float64

	// Ingest
	IngestInterval time.Duration

	// Repair
	BackupDir string

	// Classification
	TickerListPath string
	LLMBaseURL     string
	LLMAPIKey      string
	LLMModel       string

	// Server
	ServerPort string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.FeedBaseURL = os.Getenv("FEED_BASE_URL")
	if cfg.FeedBaseURL == "" {
		missing = append(missing, "FEED_BASE_URL")
	}

	cfg.FeedBearerToken = os.Getenv("FEED_BEARER_TOKEN")
	if cfg.FeedBearerToken == "" {
		missing = append(missing, "FEED_BEARER_TOKEN")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.FeedTenants = splitTenants(getEnvString("FEED_TENANTS", "ibk,ibks"))
	cfg.DefaultTenant = getEnvString("DEFAULT_TENANT", "ibk")
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 10*time.Second)
	cfg.FeedRateLimit = getEnvFloat("FEED_RATE_LIMIT", 2.0)
	cfg.IngestInterval = getEnvDuration("INGEST_INTERVAL", time.Hour)
	cfg.BackupDir = getEnvString("BACKUP_DIR", "backups")
	cfg.TickerListPath = getEnvString("TICKER_LIST_PATH", "")
	cfg.LLMBaseURL = getEnvString("LLM_BASE_URL", "")
	cfg.LLMAPIKey = getEnvString("LLM_API_KEY", "")
	cfg.LLMModel = getEnvString("LLM_MODEL", "gpt-4o-mini")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")

	return cfg, nil
}

// ClassificationEnabled は質問分類ジョブの実行に必要な設定が揃っているかを返す。
func (c *Config) ClassificationEnabled() bool {
	return c.LLMBaseURL != "" && c.LLMAPIKey != ""
}

func splitTenants(s string) []string {
	var tenants []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			tenants = append(tenants, part)
		}
	}
	return tenants
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
