package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/uma-arai/sbcntr-pickup/internal/common/database"
)

type Config struct {
	Env           string
	PublicBaseURL string
	Server        ServerConfig
	DB            database.Config
	Redis         RedisConfig
	Line          LineConfig
	Notify        NotifyConfig
	RateLimit     RateLimitConfig
	SFN           struct {
		TaskToken string
	}
	EnableTracing bool
}

type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// ConfigTTL は統合設定キャッシュの有効期限です
	ConfigTTL time.Duration
}

type LineConfig struct {
	ChannelAccessToken string
	ChannelSecret      string
	APIBaseURL         string
	Timeout            time.Duration
}

type NotifyConfig struct {
	MaxAttempts int
	Backoff     time.Duration
}

type RateLimitConfig struct {
	// Capacity が0の場合はレート制限を行わない
	Capacity  int
	PerSecond float64
}

var defaults = map[string]any{
	"ENV":                       "LOCAL",
	"SERVER_PORT":               "8080",
	"SERVER_SHUTDOWN_TIMEOUT":   30 * time.Second,
	"PUBLIC_BASE_URL":           "http://localhost:8080",
	"DB_HOST":                   "localhost",
	"DB_PORT":                   5432,
	"DB_USERNAME":               "sbcntrapp",
	"DB_PASSWORD":               "password",
	"DB_NAME":                   "sbcntrapp",
	"DB_SSL_MODE":               "",
	"REDIS_ADDR":                "",
	"REDIS_PASSWORD":            "",
	"REDIS_DB":                  0,
	"CONFIG_CACHE_TTL":          5 * time.Minute,
	"LINE_CHANNEL_ACCESS_TOKEN": "",
	"LINE_CHANNEL_SECRET":       "",
	"LINE_API_BASE_URL":         "https://api.line.me",
	"LINE_TIMEOUT":              10 * time.Second,
	"NOTIFY_MAX_ATTEMPTS":       3,
	"NOTIFY_BACKOFF":            500 * time.Millisecond,
	"RATE_LIMIT_CAPACITY":       0,
	"RATE_LIMIT_PER_SECOND":     1.0,
}

// LoadConfig は設定を読み込みます
// 環境変数が最優先で、CONFIG_FILE(既定は.env)が存在すればその値も利用します
func LoadConfig(taskToken string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	configFile := os.Getenv("CONFIG_FILE")
	if configFile == "" {
		configFile = ".env"
	}
	v.SetConfigFile(configFile)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, err
		}
		log.Printf("Config file %s is not found, using environment variables and defaults", configFile)
	}

	cfg := &Config{
		Env:           v.GetString("ENV"),
		PublicBaseURL: strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/"),
		Server: ServerConfig{
			Port:            v.GetString("SERVER_PORT"),
			ShutdownTimeout: v.GetDuration("SERVER_SHUTDOWN_TIMEOUT"),
		},
		DB: database.Config{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetInt("DB_PORT"),
			UserName: v.GetString("DB_USERNAME"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSL_MODE"),
		},
		Redis: RedisConfig{
			Addr:      v.GetString("REDIS_ADDR"),
			Password:  v.GetString("REDIS_PASSWORD"),
			DB:        v.GetInt("REDIS_DB"),
			ConfigTTL: v.GetDuration("CONFIG_CACHE_TTL"),
		},
		Line: LineConfig{
			ChannelAccessToken: v.GetString("LINE_CHANNEL_ACCESS_TOKEN"),
			ChannelSecret:      v.GetString("LINE_CHANNEL_SECRET"),
			APIBaseURL:         strings.TrimRight(v.GetString("LINE_API_BASE_URL"), "/"),
			Timeout:            v.GetDuration("LINE_TIMEOUT"),
		},
		Notify: NotifyConfig{
			MaxAttempts: v.GetInt("NOTIFY_MAX_ATTEMPTS"),
			Backoff:     v.GetDuration("NOTIFY_BACKOFF"),
		},
		RateLimit: RateLimitConfig{
			Capacity:  v.GetInt("RATE_LIMIT_CAPACITY"),
			PerSecond: v.GetFloat64("RATE_LIMIT_PER_SECOND"),
		},
		EnableTracing: false,
	}
	cfg.SFN.TaskToken = taskToken

	if cfg.Notify.MaxAttempts < 1 {
		cfg.Notify.MaxAttempts = 1
	}

	// 環境変数[SBCNTR_ENABLE_TRACING]を見てトレースを有効にする。対応しているTracingはAWS_XRAYのみ。
	// 環境変数[AWS_XRAY_SDK_DISABLED]がtrueの場合は必ずトレースを無効にする。
	enableKey := os.Getenv("SBCNTR_ENABLE_TRACING")
	if !sdkDisabled() && (strings.ToLower(enableKey) == "true" || enableKey == "1") {
		os.Setenv("AWS_XRAY_SDK_DISABLED", "FALSE")
		cfg.EnableTracing = true
	} else {
		os.Setenv("AWS_XRAY_SDK_DISABLED", "TRUE")
		cfg.EnableTracing = false
	}

	return cfg, nil
}

// IsLocal はローカル実行かどうかを返します
func (c *Config) IsLocal() bool {
	return strings.EqualFold(c.Env, "LOCAL")
}

// IsDevelopment はエラー詳細をレスポンスに含めてよい環境かどうかを返します
func (c *Config) IsDevelopment() bool {
	return c.IsLocal() || strings.EqualFold(c.Env, "development")
}

// Check if SDK is disabled
func sdkDisabled() bool {
	disableKey := os.Getenv("AWS_XRAY_SDK_DISABLED")
	return strings.ToLower(disableKey) == "true"
}
