package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server ServerConfig
	DB     DBConfig
	Redis  RedisConfig
	NATS   NATSConfig
	JWT    JWTConfig
	LLM    LLMConfig
	TTS    TTSConfig
	Quota  QuotaConfig
	Log    LogConfig
}

type ServerConfig struct {
	Host string
	Port int

	CORSAllowedOrigins []string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32

	MigrationsPath string
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NATSConfig configures the optional usage-event stream. An empty URL
// disables event publishing.
type NATSConfig struct {
	URL string
}

type JWTConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

// LLMConfig points at an OpenAI-compatible chat completion endpoint.
type LLMConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// TTSConfig points at the premium speech-synthesis endpoint.
type TTSConfig struct {
	BaseURL string
	APIKey  string
	Voice   string
	Timeout time.Duration
}

// QuotaConfig carries metering defaults. DefaultTTSDailyLimit is only
// the fallback when no value has been stored through the admin API.
type QuotaConfig struct {
	DefaultMinutesLimit  float64
	DefaultTTSDailyLimit int
	TTSMaxInputChars     int
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:               k.String("server.host"),
			Port:               k.Int("server.port"),
			CORSAllowedOrigins: k.Strings("server.cors.origins"),
		},
		DB: DBConfig{
			Host:     k.String("db.host"),
			Port:     k.Int("db.port"),
			User:     k.String("db.user"),
			Password: k.String("db.password"),
			Name:     k.String("db.name"),
			SSLMode:  k.String("db.sslmode"),
			MaxConns: int32(k.Int("db.max.conns")),

			MigrationsPath: k.String("db.migrations.path"),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		NATS: NATSConfig{
			URL: k.String("nats.url"),
		},
		JWT: JWTConfig{
			AccessSecret:  k.String("jwt.access.secret"),
			RefreshSecret: k.String("jwt.refresh.secret"),
		},
		LLM: LLMConfig{
			BaseURL: k.String("llm.base.url"),
			APIKey:  k.String("llm.api.key"),
			Model:   k.String("llm.model"),
		},
		TTS: TTSConfig{
			BaseURL: k.String("tts.base.url"),
			APIKey:  k.String("tts.api.key"),
			Voice:   k.String("tts.voice"),
		},
		Quota: QuotaConfig{
			DefaultMinutesLimit:  k.Float64("quota.default.minutes.limit"),
			DefaultTTSDailyLimit: k.Int("quota.default.tts.daily.limit"),
			TTSMaxInputChars:     k.Int("quota.tts.max.input.chars"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "parla"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "parla"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 25
	}
	if cfg.DB.MigrationsPath == "" {
		cfg.DB.MigrationsPath = "migrations"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.TTS.Voice == "" {
		cfg.TTS.Voice = "alloy"
	}
	if cfg.Quota.DefaultMinutesLimit == 0 {
		cfg.Quota.DefaultMinutesLimit = 120
	}
	if cfg.Quota.DefaultTTSDailyLimit == 0 {
		cfg.Quota.DefaultTTSDailyLimit = 15
	}
	if cfg.Quota.TTSMaxInputChars == 0 {
		cfg.Quota.TTSMaxInputChars = 500
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	// Parse durations
	accessExpStr := k.String("jwt.access.expiry")
	if accessExpStr == "" {
		accessExpStr = "15m"
	}
	cfg.JWT.AccessExpiry, err = time.ParseDuration(accessExpStr)
	if err != nil {
		return nil, fmt.Errorf("parsing jwt access expiry: %w", err)
	}

	refreshExpStr := k.String("jwt.refresh.expiry")
	if refreshExpStr == "" {
		refreshExpStr = "168h"
	}
	cfg.JWT.RefreshExpiry, err = time.ParseDuration(refreshExpStr)
	if err != nil {
		return nil, fmt.Errorf("parsing jwt refresh expiry: %w", err)
	}

	llmTimeoutStr := k.String("llm.timeout")
	if llmTimeoutStr == "" {
		llmTimeoutStr = "60s"
	}
	cfg.LLM.Timeout, err = time.ParseDuration(llmTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("parsing llm timeout: %w", err)
	}

	ttsTimeoutStr := k.String("tts.timeout")
	if ttsTimeoutStr == "" {
		ttsTimeoutStr = "30s"
	}
	cfg.TTS.Timeout, err = time.ParseDuration(ttsTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("parsing tts timeout: %w", err)
	}

	return cfg, nil
}
