package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	APIURL     string        `yaml:"api_url"`
	WSURL      string        `yaml:"ws_url"`
	PageSize   int           `yaml:"page_size"`
	SessionDB  string        `yaml:"session_db"`
	LogLevel   string        `yaml:"log_level"`
	LogSink    string        `yaml:"log_sink"`
	RateLimit  float64       `yaml:"rate_limit"`
	RateBurst  int           `yaml:"rate_burst"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

func Defaults() *Config {
	return &Config{
		APIURL:     "http://localhost:5056/api",
		WSURL:      "ws://localhost:5056/chatHub",
		PageSize:   50,
		SessionDB:  filepath.Join(defaultDir(), "session.db"),
		LogLevel:   "info",
		RateLimit:  10,
		RateBurst:  20,
		Timeout:    30 * time.Second,
		MaxBackoff: 30 * time.Second,
	}
}

// Load builds the configuration: defaults, then the optional YAML file at
// path, then .env and process environment, which always win.
func Load(path string) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	cfg.APIURL = getEnv("MESSENGER_API_URL", cfg.APIURL)
	cfg.WSURL = getEnv("MESSENGER_WS_URL", cfg.WSURL)
	cfg.SessionDB = getEnv("MESSENGER_SESSION_DB", cfg.SessionDB)
	cfg.LogLevel = getEnv("MESSENGER_LOG_LEVEL", cfg.LogLevel)
	cfg.LogSink = getEnv("MESSENGER_LOG_SINK", cfg.LogSink)
	cfg.PageSize = getEnvInt("MESSENGER_PAGE_SIZE", cfg.PageSize)
	cfg.RateBurst = getEnvInt("MESSENGER_RATE_BURST", cfg.RateBurst)
	cfg.RateLimit = getEnvFloat("MESSENGER_RPS", cfg.RateLimit)
	cfg.Timeout = getEnvDuration("MESSENGER_TIMEOUT", cfg.Timeout)
	cfg.MaxBackoff = getEnvDuration("MESSENGER_MAX_BACKOFF", cfg.MaxBackoff)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("config: api_url is required")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("config: page_size must be positive, got %d", c.PageSize)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("config: timeout must be positive")
	}
	return nil
}

func defaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".messenger"
	}
	return filepath.Join(home, ".messenger")
}

func getEnv(key, fallback string) string {
	val, exists := os.LookupEnv(key)

	if exists {
		return val
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}
