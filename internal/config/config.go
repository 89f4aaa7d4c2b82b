// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
// 運用ポリシー（座席数・自動退館・アラート）はここではなく
// app_settingsテーブル（AppSettings）で管理される点に注意。
type Config struct {
	// Database
	// DatabaseURL が空の場合はオフライン/デモモード（インメモリストア）で起動する。
	DatabaseURL string

	// Monitor
	MonitorInterval time.Duration

	// Notification
	AlertWebhookURL string
	NotifyTimeout   time.Duration

	// Store
	HistoryLimit         int
	SessionRetentionDays int

	// Rate Limit
	RateLimitGeneral int
	RateLimitCheckin int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string

	// Logging
	LogLevel string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envファイルがあれば先に読み込む（なくてもエラーにしない）。
func Load() (*Config, error) {
	// .envはローカル開発用。本番では環境変数を直接設定する。
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	cfg.MonitorInterval = getEnvDuration("MONITOR_INTERVAL", time.Minute)
	if cfg.MonitorInterval <= 0 {
		return nil, fmt.Errorf("MONITOR_INTERVAL must be positive: %s", cfg.MonitorInterval)
	}

	cfg.AlertWebhookURL = os.Getenv("ALERT_WEBHOOK_URL")
	cfg.NotifyTimeout = getEnvDuration("NOTIFY_TIMEOUT", 10*time.Second)

	cfg.HistoryLimit = getEnvInt("HISTORY_LIMIT", 50)
	cfg.SessionRetentionDays = getEnvInt("SESSION_RETENTION_DAYS", 365)

	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitCheckin = getEnvInt("RATE_LIMIT_CHECKIN", 30)

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	return cfg, nil
}

// Offline はオフライン/デモモード（リモートストアなし）で起動するかを返す。
func (c *Config) Offline() bool {
	return c.DatabaseURL == ""
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
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
