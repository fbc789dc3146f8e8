package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Session
	SessionMaxAge      int
	SessionIdleTimeout time.Duration

	// Game
	GameDuration       time.Duration
	SecondChanceBonus  time.Duration
	WinThreshold       int
	LeaderboardLimit   int
	SecondChancePolicy string

	// Puzzle
	PuzzleEndpoint string
	PuzzleTimeout  time.Duration

	// Rate Limit
	RateLimitGeneral int
	RateLimitAuth    int

	// Maintenance
	CleanupInterval time.Duration

	// Logging
	LogLevel string

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// 既定値
const (
	DefaultPuzzleEndpoint     = "https://marcconrad.com/uob/heart/api.php"
	DefaultSecondChancePolicy = "losing"
)

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む（既存の環境変数は上書きしない）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.SessionIdleTimeout = getEnvDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute)
	cfg.GameDuration = getEnvDuration("GAME_DURATION", 180*time.Second)
	cfg.SecondChanceBonus = getEnvDuration("SECOND_CHANCE_BONUS", 60*time.Second)
	cfg.WinThreshold = getEnvInt("WIN_THRESHOLD", 20000)
	cfg.LeaderboardLimit = getEnvInt("LEADERBOARD_LIMIT", 20)
	cfg.SecondChancePolicy = strings.ToLower(getEnvString("SECOND_CHANCE_POLICY", DefaultSecondChancePolicy))
	cfg.PuzzleEndpoint = getEnvString("PUZZLE_ENDPOINT", DefaultPuzzleEndpoint)
	cfg.PuzzleTimeout = getEnvDuration("PUZZLE_TIMEOUT", 10*time.Second)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 240)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 10)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", time.Hour)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate はゲーム設定の整合性を検証する。
func (c *Config) validate() error {
	if c.GameDuration < time.Second {
		return fmt.Errorf("GAME_DURATION must be at least 1s: %v", c.GameDuration)
	}
	if c.SecondChanceBonus < 0 {
		return fmt.Errorf("SECOND_CHANCE_BONUS must not be negative: %v", c.SecondChanceBonus)
	}
	if c.LeaderboardLimit <= 0 {
		return fmt.Errorf("LEADERBOARD_LIMIT must be positive: %d", c.LeaderboardLimit)
	}
	switch c.SecondChancePolicy {
	case "losing", "timeout", "never":
	default:
		return fmt.Errorf("SECOND_CHANCE_POLICY must be one of losing, timeout, never: %q", c.SecondChancePolicy)
	}
	return nil
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
