package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	Port      string `yaml:"port"`
	DBPath    string `yaml:"db_path"`
	JWTSecret string `yaml:"jwt_secret"` // empty disables authentication
	Timezone  string `yaml:"timezone"`
	LogLevel  string `yaml:"log_level"`

	Pipeline   PipelineConfig   `yaml:"pipeline"`
	SmartGuess SmartGuessConfig `yaml:"smart_guess"`
	Events     EventsConfig     `yaml:"events"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
}

// PipelineConfig 流水线参数
type PipelineConfig struct {
	Interval              time.Duration `yaml:"interval"` // 0 disables scheduled runs
	MaxHorizontalAccuracy float64       `yaml:"max_horizontal_accuracy"`
	CommuteSpeedThreshold float64       `yaml:"commute_speed_threshold"`
}

// SmartGuessConfig 智能猜测参数
type SmartGuessConfig struct {
	K             int           `yaml:"k"`
	MaxDistance   float64       `yaml:"max_distance"`
	Decision      string        `yaml:"decision"`
	MaxAge        time.Duration `yaml:"max_age"`
	PurgeInterval time.Duration `yaml:"purge_interval"`
}

// EventsConfig 事件缓冲参数
type EventsConfig struct {
	BufferSize     int `yaml:"buffer_size"`
	SourceCapacity int `yaml:"source_capacity"`
}

// RateLimitConfig 限流参数
type RateLimitConfig struct {
	Requests int           `yaml:"requests"` // 0 disables rate limiting
	Window   time.Duration `yaml:"window"`
}

// Default 默认配置
func Default() *Config {
	return &Config{
		Port:     ":8080",
		DBPath:   "./data/daytrail.db",
		Timezone: "Local",
		LogLevel: "info",
		Pipeline: PipelineConfig{
			Interval:              5 * time.Minute,
			MaxHorizontalAccuracy: 200,
			CommuteSpeedThreshold: 1.0,
		},
		SmartGuess: SmartGuessConfig{
			K:             3,
			MaxDistance:   100,
			Decision:      "min_average_distance",
			MaxAge:        30 * 24 * time.Hour,
			PurgeInterval: 24 * time.Hour,
		},
		Events: EventsConfig{
			BufferSize:     100000,
			SourceCapacity: 1024,
		},
		RateLimit: RateLimitConfig{
			Requests: 600,
			Window:   time.Minute,
		},
	}
}

// Load 加载配置: defaults, then the YAML file at path (optional), then environment variables
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	envString("PORT", &c.Port)
	envString("DB_PATH", &c.DBPath)
	envString("JWT_SECRET", &c.JWTSecret)
	envString("TIMEZONE", &c.Timezone)
	envString("LOG_LEVEL", &c.LogLevel)
	envString("SMART_GUESS_DECISION", &c.SmartGuess.Decision)

	return errors.Join(
		envDuration("PIPELINE_INTERVAL", &c.Pipeline.Interval),
		envFloat("MAX_HORIZONTAL_ACCURACY", &c.Pipeline.MaxHorizontalAccuracy),
		envFloat("COMMUTE_SPEED_THRESHOLD", &c.Pipeline.CommuteSpeedThreshold),
		envInt("SMART_GUESS_K", &c.SmartGuess.K),
		envFloat("SMART_GUESS_MAX_DISTANCE", &c.SmartGuess.MaxDistance),
		envDuration("SMART_GUESS_MAX_AGE", &c.SmartGuess.MaxAge),
		envDuration("SMART_GUESS_PURGE_INTERVAL", &c.SmartGuess.PurgeInterval),
		envInt("EVENT_BUFFER_SIZE", &c.Events.BufferSize),
		envInt("RATE_LIMIT_REQUESTS", &c.RateLimit.Requests),
	)
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.SmartGuess.K <= 0 {
		return fmt.Errorf("smart_guess.k must be positive, got %d", c.SmartGuess.K)
	}
	if c.SmartGuess.MaxDistance <= 0 {
		return fmt.Errorf("smart_guess.max_distance must be positive, got %v", c.SmartGuess.MaxDistance)
	}
	if c.Events.BufferSize < 0 || c.Events.SourceCapacity < 0 {
		return errors.New("events sizes must not be negative")
	}
	if c.RateLimit.Requests > 0 && c.RateLimit.Window <= 0 {
		return errors.New("rate_limit.window must be positive when rate limiting is enabled")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location 返回计算自然日所用的时区
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func envFloat(key string, dst *float64) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = f
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}
