package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/lcu-tools/lcudump/pkg/endpoint"
)

// Config is the application configuration.
type Config struct {
	Filters    FiltersConfig    `yaml:"filters" mapstructure:"filters"`
	Runner     RunnerConfig     `yaml:"runner" mapstructure:"runner"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
	AutoParams AutoParamsConfig `yaml:"auto_params" mapstructure:"auto_params"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	History    HistoryConfig    `yaml:"history" mapstructure:"history"`
}

// FiltersConfig selects which discovered endpoints enter the plan.
type FiltersConfig struct {
	Include []string `yaml:"include" mapstructure:"include"`
	Exclude []string `yaml:"exclude" mapstructure:"exclude"`
	Methods []string `yaml:"methods" mapstructure:"methods"`
	// AllowWrite enables mutating methods (POST/PUT/PATCH/DELETE).
	AllowWrite bool `yaml:"allow_write" mapstructure:"allow_write"`
}

// RunnerConfig tunes the concurrent request runner.
type RunnerConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
	// TimeoutSeconds is the per-attempt request timeout.
	TimeoutSeconds float64 `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	// Attempts is the total tries per request, backoff between them.
	Attempts    int `yaml:"attempts" mapstructure:"attempts"`
	JitterMinMS int `yaml:"jitter_min_ms" mapstructure:"jitter_min_ms"`
	JitterMaxMS int `yaml:"jitter_max_ms" mapstructure:"jitter_max_ms"`
}

// OutputConfig controls the on-disk dump layout.
type OutputConfig struct {
	// Dir is the dump root; empty means a timestamped default.
	Dir string `yaml:"dir" mapstructure:"dir"`
	// PerEndpointDir stores each endpoint in its own folder as
	// response.json + meta.json instead of <leaf>.json + <leaf>.meta.json.
	PerEndpointDir bool `yaml:"per_endpoint_dir" mapstructure:"per_endpoint_dir"`
}

// AutoParamsConfig tunes parameter mining from earlier dumps.
type AutoParamsConfig struct {
	Limit int    `yaml:"limit" mapstructure:"limit"`
	Mode  string `yaml:"mode" mapstructure:"mode"`
}

// LogConfig log configuration.
type LogConfig struct {
	Level       string        `yaml:"level" mapstructure:"level"`
	FileLogging FileLogConfig `yaml:"file_logging" mapstructure:"file_logging"`
}

// FileLogConfig file log configuration.
type FileLogConfig struct {
	Enable     bool   `yaml:"enable" mapstructure:"enable"`
	Path       string `yaml:"path" mapstructure:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `yaml:"compress" mapstructure:"compress"`
}

// HistoryConfig controls the local run-history database.
type HistoryConfig struct {
	Enable bool   `yaml:"enable" mapstructure:"enable"`
	Path   string `yaml:"path" mapstructure:"path"`
}

// LoadConfig loads configuration from defaults, an optional YAML file, and
// LCUDUMP_* environment variables. If v is nil a fresh viper instance is used.
func LoadConfig(configPath string, v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	setDefaults(v)

	v.SetEnvPrefix("LCUDUMP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("filters.include", []string{})
	v.SetDefault("filters.exclude", []string{})
	v.SetDefault("filters.methods", []string{"GET"})
	v.SetDefault("filters.allow_write", false)

	v.SetDefault("runner.concurrency", 8)
	v.SetDefault("runner.timeout_seconds", 5.0)
	v.SetDefault("runner.attempts", 2)
	v.SetDefault("runner.jitter_min_ms", 50)
	v.SetDefault("runner.jitter_max_ms", 150)

	v.SetDefault("output.dir", "")
	v.SetDefault("output.per_endpoint_dir", false)

	v.SetDefault("auto_params.limit", 5)
	v.SetDefault("auto_params.mode", "zip")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file_logging.enable", false)
	v.SetDefault("log.file_logging.path", "./lcudump.log")
	v.SetDefault("log.file_logging.max_size_mb", 10)
	v.SetDefault("log.file_logging.max_backups", 3)
	v.SetDefault("log.file_logging.max_age_days", 14)
	v.SetDefault("log.file_logging.compress", false)

	v.SetDefault("history.enable", true)
	v.SetDefault("history.path", "")
}

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true,
	"warn": true, "error": true, "fatal": true, "panic": true,
}

// Validate checks configuration consistency before any request is issued.
func (c *Config) Validate() error {
	for _, m := range c.Filters.Methods {
		if !endpoint.SupportedMethod(m) {
			return fmt.Errorf("invalid HTTP method: %s", m)
		}
	}
	if c.Runner.Concurrency < 1 {
		return fmt.Errorf("runner concurrency must be at least 1, got %d", c.Runner.Concurrency)
	}
	if c.Runner.TimeoutSeconds <= 0 {
		return fmt.Errorf("runner timeout must be positive, got %v", c.Runner.TimeoutSeconds)
	}
	if c.Runner.Attempts < 1 {
		return fmt.Errorf("runner attempts must be at least 1, got %d", c.Runner.Attempts)
	}
	if c.Runner.JitterMinMS < 0 || c.Runner.JitterMaxMS < c.Runner.JitterMinMS {
		return fmt.Errorf("invalid jitter range [%d, %d]", c.Runner.JitterMinMS, c.Runner.JitterMaxMS)
	}
	if c.AutoParams.Limit < 1 {
		return fmt.Errorf("auto params limit must be at least 1, got %d", c.AutoParams.Limit)
	}
	if mode := c.AutoParams.Mode; mode != "zip" && mode != "cartesian" {
		return fmt.Errorf("invalid auto params mode: %s (want zip or cartesian)", mode)
	}
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}
	if c.Log.FileLogging.Enable && c.Log.FileLogging.Path == "" {
		return fmt.Errorf("file logging enabled but path is empty")
	}
	return nil
}

// NormalizedMethods returns the configured methods uppercased and deduplicated.
func (c *Config) NormalizedMethods() []string {
	seen := make(map[string]bool, len(c.Filters.Methods))
	out := make([]string, 0, len(c.Filters.Methods))
	for _, m := range c.Filters.Methods {
		u := strings.ToUpper(strings.TrimSpace(m))
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}
