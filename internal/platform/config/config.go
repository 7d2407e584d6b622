package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/jinford/wiki-keepalive/internal/module/keepalive/domain"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// Wikiアカウント
	Credentials domain.Credentials

	// 対象Wikiの設定ファイル
	TargetsFile string

	// ログファイル設定
	Log LogConfig

	// 起動中のBotを示すPIDファイル
	PIDFile string

	// 実行間隔などのスケジュール設定
	Schedule ScheduleConfig

	// MediaWiki API接続設定
	MediaWiki MediaWikiConfig

	// 編集要約
	EditSummary string
}

// LogConfig はログ出力設定
type LogConfig struct {
	File      string
	MaxSizeMB int
	Level     string // "debug", "info", "warn", "error"
	Format    string // "json" or "text"
}

// ScheduleConfig はサイクルとページ更新の間隔設定
type ScheduleConfig struct {
	RunInterval   time.Duration
	PageDelay     time.Duration
	MaxWorkers    int
	ShutdownGrace time.Duration
}

// MediaWikiConfig はMediaWiki API接続設定
type MediaWikiConfig struct {
	Scheme      string
	HTTPTimeout time.Duration
	UserAgent   string
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		Credentials: domain.Credentials{
			Username: getEnv("WIKI_USER", ""),
			Password: getEnv("WIKI_PASS", ""),
		},
		TargetsFile: getEnv("WIKI_TARGETS_FILE", "wikis.yaml"),
		Log: LogConfig{
			File:      getEnv("WIKI_LOG_FILE", "log.txt"),
			MaxSizeMB: getEnvAsInt("WIKI_LOG_MAX_SIZE_MB", 10),
			Level:     getEnv("LOG_LEVEL", "info"),
			Format:    getEnv("LOG_FORMAT", "json"),
		},
		PIDFile: getEnv("WIKI_PID_FILE", "wiki-keepalive.pid"),
		Schedule: ScheduleConfig{
			RunInterval:   getEnvAsDuration("WIKI_RUN_INTERVAL", 10*time.Minute),
			PageDelay:     getEnvAsDuration("WIKI_PAGE_DELAY", 20*time.Second),
			MaxWorkers:    getEnvAsInt("WIKI_MAX_WORKERS", 4),
			ShutdownGrace: getEnvAsDuration("WIKI_SHUTDOWN_GRACE", 30*time.Second),
		},
		MediaWiki: MediaWikiConfig{
			Scheme:      getEnv("WIKI_SCHEME", "https"),
			HTTPTimeout: getEnvAsDuration("WIKI_HTTP_TIMEOUT", 30*time.Second),
			UserAgent:   getEnv("WIKI_USER_AGENT", "wiki-keepalive/1.0"),
		},
		EditSummary: getEnv("WIKI_EDIT_SUMMARY", ""),
	}

	return cfg, nil
}

// RequireCredentials はWikiに接続するコマンドの前提条件を確認します
func (c *Config) RequireCredentials() error {
	if c.Credentials.IsZero() {
		return fmt.Errorf("%w: WIKI_USER と WIKI_PASS を設定してください", domain.ErrMissingCredentials)
	}
	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration は環境変数を time.Duration として取得します
// "90s" のような形式のほか、単位なしの数値は秒として扱う
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	if seconds, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
