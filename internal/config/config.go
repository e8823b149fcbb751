// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Network NetworkConfig `mapstructure:"network" yaml:"network"`
	Oracle  OracleConfig  `mapstructure:"oracle" yaml:"oracle"`
	Flow    FlowConfig    `mapstructure:"flow" yaml:"flow"`
	Sink    SinkConfig    `mapstructure:"sink" yaml:"sink"`
	Report  ReportConfig  `mapstructure:"report" yaml:"report"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the headless browser instances.
type BrowserConfig struct {
	Headless        bool           `mapstructure:"headless" yaml:"headless"`
	DisableCache    bool           `mapstructure:"disable_cache" yaml:"disable_cache"`
	IgnoreTLSErrors bool           `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Args            []string       `mapstructure:"args" yaml:"args"`
	Viewport        map[string]int `mapstructure:"viewport" yaml:"viewport"`
	Stealth         StealthConfig  `mapstructure:"stealth" yaml:"stealth"`
	Humanoid        HumanoidConfig `mapstructure:"humanoid" yaml:"humanoid"`
}

// StealthConfig configures the anti-detection browser persona.
type StealthConfig struct {
	Enabled   bool     `mapstructure:"enabled" yaml:"enabled"`
	UserAgent string   `mapstructure:"user_agent" yaml:"user_agent"`
	Platform  string   `mapstructure:"platform" yaml:"platform"`
	Languages []string `mapstructure:"languages" yaml:"languages"`
	Timezone  string   `mapstructure:"timezone" yaml:"timezone"`
	Locale    string   `mapstructure:"locale" yaml:"locale"`
}

// HumanoidConfig tunes the human-timing simulation used for pacing and typing.
type HumanoidConfig struct {
	Enabled        bool    `mapstructure:"enabled" yaml:"enabled"`
	PacingMinMs    int     `mapstructure:"pacing_min_ms" yaml:"pacing_min_ms"`
	PacingMaxMs    int     `mapstructure:"pacing_max_ms" yaml:"pacing_max_ms"`
	KeyDelayMeanMs float64 `mapstructure:"key_delay_mean_ms" yaml:"key_delay_mean_ms"`
	KeyDelayStdMs  float64 `mapstructure:"key_delay_std_ms" yaml:"key_delay_std_ms"`
}

// ProxyConfig defines the rotating upstream proxy pool.
type ProxyConfig struct {
	Enabled    bool     `mapstructure:"enabled" yaml:"enabled"`
	ListenAddr string   `mapstructure:"listen_addr" yaml:"listen_addr"`
	Upstreams  []string `mapstructure:"upstreams" yaml:"upstreams"`
}

// NetworkConfig tunes the network behavior of the application.
type NetworkConfig struct {
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
	Proxy             ProxyConfig   `mapstructure:"proxy" yaml:"proxy"`
}

// LLMProvider defines the supported LLM providers.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
)

// LLMModelConfig defines the configuration for a single LLM.
type LLMModelConfig struct {
	Provider    LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"-"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// OracleConfig configures the Decision Oracle and its model routing.
type OracleConfig struct {
	FastModel      LLMModelConfig `mapstructure:"fast_model" yaml:"fast_model"`
	PowerfulModel  LLMModelConfig `mapstructure:"powerful_model" yaml:"powerful_model"`
	RequestsPerSec float64        `mapstructure:"requests_per_sec" yaml:"requests_per_sec"`
	Burst          int            `mapstructure:"burst" yaml:"burst"`
	// AnswerProfile points at an optional file of persona context injected
	// into answer-generation prompts. Supports "~" expansion.
	AnswerProfile string `mapstructure:"answer_profile" yaml:"answer_profile"`
}

// FlowConfig bounds the orchestration loop.
type FlowConfig struct {
	MaxIterations   int           `mapstructure:"max_iterations" yaml:"max_iterations"`
	MaxRetries      int           `mapstructure:"max_retries" yaml:"max_retries"`
	TimeBudget      time.Duration `mapstructure:"time_budget" yaml:"time_budget"`
	AnswerBatchSize int           `mapstructure:"answer_batch_size" yaml:"answer_batch_size"`
	DefaultWaitMs   int           `mapstructure:"default_wait_ms" yaml:"default_wait_ms"`
}

// SinkConfig selects the session telemetry backend.
type SinkConfig struct {
	// Type is one of "none", "postgres", "redis".
	Type     string         `mapstructure:"type" yaml:"type"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis" yaml:"redis"`
}

// PostgresConfig holds the connection details for a PostgreSQL sink.
type PostgresConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// RedisConfig holds the connection details for a Redis sink.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr" yaml:"addr"`
	Password string        `mapstructure:"password" yaml:"-"`
	DB       int           `mapstructure:"db" yaml:"db"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// ReportConfig controls terminal report output.
type ReportConfig struct {
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`
	Format    string `mapstructure:"format" yaml:"format"`
}

// SetDefaults initializes default values for the configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "flowpilot")
	v.SetDefault("logger.log_file", "flowpilot.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.disable_cache", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.stealth.enabled", true)
	v.SetDefault("browser.humanoid.enabled", true)
	v.SetDefault("browser.humanoid.pacing_min_ms", 1500)
	v.SetDefault("browser.humanoid.pacing_max_ms", 4000)
	v.SetDefault("browser.humanoid.key_delay_mean_ms", 85.0)
	v.SetDefault("browser.humanoid.key_delay_std_ms", 30.0)

	// -- Network --
	v.SetDefault("network.navigation_timeout", "90s")
	v.SetDefault("network.post_load_wait", "2s")
	v.SetDefault("network.proxy.enabled", false)
	v.SetDefault("network.proxy.listen_addr", "127.0.0.1:0")

	// -- Oracle --
	v.SetDefault("oracle.fast_model.provider", "gemini")
	v.SetDefault("oracle.fast_model.model", "gemini-2.0-flash")
	v.SetDefault("oracle.fast_model.api_timeout", "30s")
	v.SetDefault("oracle.fast_model.temperature", 0.7)
	v.SetDefault("oracle.fast_model.max_tokens", 512)
	v.SetDefault("oracle.powerful_model.provider", "gemini")
	v.SetDefault("oracle.powerful_model.model", "gemini-2.5-pro")
	v.SetDefault("oracle.powerful_model.api_timeout", "45s")
	v.SetDefault("oracle.powerful_model.temperature", 0.2)
	v.SetDefault("oracle.powerful_model.max_tokens", 1024)
	v.SetDefault("oracle.requests_per_sec", 2.0)
	v.SetDefault("oracle.burst", 4)

	// -- Flow --
	v.SetDefault("flow.max_iterations", 50)
	v.SetDefault("flow.max_retries", 3)
	v.SetDefault("flow.time_budget", "10m")
	v.SetDefault("flow.answer_batch_size", 3)
	v.SetDefault("flow.default_wait_ms", 3000)

	// -- Sink --
	v.SetDefault("sink.type", "none")
	v.SetDefault("sink.redis.ttl", "168h")

	// -- Report --
	v.SetDefault("report.output_dir", "reports")
	v.SetDefault("report.format", "json")
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// Validate checks cross-field constraints and expands file paths.
func (c *Config) Validate() error {
	if c.Flow.MaxIterations <= 0 {
		return fmt.Errorf("flow.max_iterations must be positive, got %d", c.Flow.MaxIterations)
	}
	if c.Flow.MaxRetries < 0 {
		return fmt.Errorf("flow.max_retries must not be negative, got %d", c.Flow.MaxRetries)
	}
	if c.Browser.Humanoid.PacingMinMs > c.Browser.Humanoid.PacingMaxMs {
		return fmt.Errorf("browser.humanoid pacing bounds inverted: min %d > max %d",
			c.Browser.Humanoid.PacingMinMs, c.Browser.Humanoid.PacingMaxMs)
	}
	switch c.Sink.Type {
	case "", "none", "postgres", "redis":
	default:
		return fmt.Errorf("unsupported sink.type %q", c.Sink.Type)
	}

	if c.Oracle.AnswerProfile != "" {
		expanded, err := homedir.Expand(c.Oracle.AnswerProfile)
		if err != nil {
			return fmt.Errorf("could not resolve oracle.answer_profile %q: %w", c.Oracle.AnswerProfile, err)
		}
		c.Oracle.AnswerProfile = expanded
	}
	if c.Logger.LogFile != "" {
		expanded, err := homedir.Expand(c.Logger.LogFile)
		if err != nil {
			return fmt.Errorf("could not resolve logger.log_file %q: %w", c.Logger.LogFile, err)
		}
		c.Logger.LogFile = expanded
	}
	return nil
}
