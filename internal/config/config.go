package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server   ServerConfig
	Redis    RedisConfig
	Gemini   GeminiConfig
	Storage  StorageConfig
	Pipeline PipelineConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type GeminiConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	PollInterval time.Duration
	PollTimeout  time.Duration
}

type StorageConfig struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	RawBucket       string
	AnalyzedBucket  string
}

type PipelineConfig struct {
	AnalyzeURLTTL    time.Duration
	OverlayURLTTL    time.Duration
	TranscodeTimeout time.Duration
	FallbackWidth    int
	FallbackHeight   int
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("GEMINI_API_KEY")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	_ = viper.BindEnv("gemini.base_url", "GEMINI_BASE_URL")
	_ = viper.BindEnv("gemini.model", "GEMINI_MODEL")
	_ = viper.BindEnv("gemini.poll_interval", "GEMINI_POLL_INTERVAL")
	_ = viper.BindEnv("gemini.poll_timeout", "GEMINI_POLL_TIMEOUT")
	_ = viper.BindEnv("storage.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("storage.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("storage.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("storage.raw_bucket", "STORAGE_RAW_BUCKET")
	_ = viper.BindEnv("storage.analyzed_bucket", "STORAGE_ANALYZED_BUCKET")
	_ = viper.BindEnv("pipeline.analyze_url_ttl", "PIPELINE_ANALYZE_URL_TTL")
	_ = viper.BindEnv("pipeline.overlay_url_ttl", "PIPELINE_OVERLAY_URL_TTL")
	_ = viper.BindEnv("pipeline.transcode_timeout", "PIPELINE_TRANSCODE_TIMEOUT")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Gemini defaults
	viper.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com")
	viper.SetDefault("gemini.model", "gemini-2.5-flash")
	viper.SetDefault("gemini.poll_interval", "1500ms")
	viper.SetDefault("gemini.poll_timeout", "180s")

	// Storage defaults
	viper.SetDefault("storage.raw_bucket", "raw-workouts")
	viper.SetDefault("storage.analyzed_bucket", "analyzed-workouts")

	// Pipeline defaults. The overlay URL lives longer than the analyze URL
	// because transcoding is slower than a straight download. A zero
	// transcode timeout means the encode is awaited without bound.
	viper.SetDefault("pipeline.analyze_url_ttl", "5m")
	viper.SetDefault("pipeline.overlay_url_ttl", "10m")
	viper.SetDefault("pipeline.transcode_timeout", "0")
	viper.SetDefault("pipeline.fallback_width", 1920)
	viper.SetDefault("pipeline.fallback_height", 1080)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Gemini: GeminiConfig{
			APIKey:       viper.GetString("gemini.api_key"),
			BaseURL:      viper.GetString("gemini.base_url"),
			Model:        viper.GetString("gemini.model"),
			PollInterval: viper.GetDuration("gemini.poll_interval"),
			PollTimeout:  viper.GetDuration("gemini.poll_timeout"),
		},
		Storage: StorageConfig{
			AccountID:       viper.GetString("storage.account_id"),
			AccessKeyID:     viper.GetString("storage.access_key_id"),
			SecretAccessKey: viper.GetString("storage.secret_access_key"),
			RawBucket:       viper.GetString("storage.raw_bucket"),
			AnalyzedBucket:  viper.GetString("storage.analyzed_bucket"),
		},
		Pipeline: PipelineConfig{
			AnalyzeURLTTL:    viper.GetDuration("pipeline.analyze_url_ttl"),
			OverlayURLTTL:    viper.GetDuration("pipeline.overlay_url_ttl"),
			TranscodeTimeout: viper.GetDuration("pipeline.transcode_timeout"),
			FallbackWidth:    viper.GetInt("pipeline.fallback_width"),
			FallbackHeight:   viper.GetInt("pipeline.fallback_height"),
		},
	}

	return cfg, nil
}
