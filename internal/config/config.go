package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Notification Sink（webhook）
	WebhookURL string

	// Speedrun API
	SpeedrunAPIURL string
	UserAgent      string
	HTTPTimeout    time.Duration
	APIRateLimit   float64 // 外部APIへの秒間リクエスト数
	APIRateBurst   int

	// アナウンスサイクル
	// PostVerifiedAfter より前に検証された記録は「新規」とみなされない。
	PostVerifiedAfter time.Time

	// Server（serveモード）
	ServerPort       string
	RateLimitGeneral int // 管理APIの req/min
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合、POST_VERIFIED_AFTERが解釈できない場合はエラーを返す。
// 後者は起動時致命エラーであり、サイクルは一切実行されない。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.WebhookURL = os.Getenv("WEBHOOK_URL")
	if cfg.WebhookURL == "" {
		missing = append(missing, "WEBHOOK_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// カットオフ: 省略時はエポック0（すべての検証済み記録が対象）
	cutoff := os.Getenv("POST_VERIFIED_AFTER")
	if cutoff == "" {
		cfg.PostVerifiedAfter = time.UnixMilli(0).UTC()
	} else {
		t, err := time.Parse(time.RFC3339, cutoff)
		if err != nil {
			return nil, fmt.Errorf("the provided POST_VERIFIED_AFTER timestamp is invalid: %w", err)
		}
		cfg.PostVerifiedAfter = t.UTC()
	}

	// Optional fields with defaults
	cfg.SpeedrunAPIURL = getEnvString("SPEEDRUN_API_URL", "https://www.speedrun.com/api/v1")
	cfg.UserAgent = getEnvString("USER_AGENT", "runherald/1.0")
	cfg.HTTPTimeout = getEnvDuration("HTTP_TIMEOUT", 30*time.Second)
	cfg.APIRateLimit = getEnvFloat("API_RATE_LIMIT", 1)
	cfg.APIRateBurst = getEnvInt("API_RATE_BURST", 5)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)

	return cfg, nil
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
