package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. VIBE_DOWNLOAD_MAX_ATTEMPTS
const EnvPrefix = "VIBE"

// Config represents the application configuration
type Config struct {
	Download DownloadConfig `json:"download" mapstructure:"download"`
	Resolver ResolverConfig `json:"resolver" mapstructure:"resolver"`
	Search   SearchConfig   `json:"search" mapstructure:"search"`
	Playback PlaybackConfig `json:"playback" mapstructure:"playback"`
	Logging  LoggingConfig  `json:"logging" mapstructure:"logging"`
}

// DownloadConfig contains acquisition settings
type DownloadConfig struct {
	DocumentsDir        string  `json:"documents_dir" mapstructure:"documents_dir" validate:"required"`
	MaxAttempts         int     `json:"max_attempts" mapstructure:"max_attempts" validate:"min=1,max=10"`
	BackoffBase         float64 `json:"backoff_base" mapstructure:"backoff_base" validate:"gt=0"` // seconds
	ConcurrentDownloads int     `json:"concurrent_downloads" mapstructure:"concurrent_downloads" validate:"min=1,max=16"`
	RequestTimeout      int     `json:"request_timeout" mapstructure:"request_timeout" validate:"min=1"`   // seconds
	ResourceTimeout     int     `json:"resource_timeout" mapstructure:"resource_timeout" validate:"min=0"` // seconds, 0 = none
	CoverSize           int     `json:"cover_size" mapstructure:"cover_size" validate:"min=50,max=3000"`
}

// ResolverConfig contains link resolution settings
type ResolverConfig struct {
	FFprobeBinary     string  `json:"ffprobe_binary" mapstructure:"ffprobe_binary"`
	RequestsPerSecond float64 `json:"requests_per_second" mapstructure:"requests_per_second" validate:"gt=0"`
	Timeout           int     `json:"timeout" mapstructure:"timeout" validate:"min=0"` // seconds
}

// SearchConfig contains YouTube Data API settings
type SearchConfig struct {
	APIKey            string  `json:"api_key" mapstructure:"api_key"`
	RequestsPerSecond float64 `json:"requests_per_second" mapstructure:"requests_per_second" validate:"min=0"`
	MaxResults        int     `json:"max_results" mapstructure:"max_results" validate:"min=0,max=50"`
}

// PlaybackConfig contains player settings
type PlaybackConfig struct {
	DefaultLoopMode string `json:"default_loop_mode" mapstructure:"default_loop_mode" validate:"oneof=loop-queue loop-one shuffle"`
	TickIntervalMS  int    `json:"tick_interval_ms" mapstructure:"tick_interval_ms" validate:"min=0"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `json:"level" mapstructure:"level" validate:"oneof=debug info warn error"`
	Format     string `json:"format" mapstructure:"format" validate:"oneof=json console"`
	Output     string `json:"output" mapstructure:"output" validate:"oneof=file console both"`
	FilePath   string `json:"file_path" mapstructure:"file_path"`
	MaxSizeMB  int    `json:"max_size_mb" mapstructure:"max_size_mb" validate:"min=1"`
	MaxBackups int    `json:"max_backups" mapstructure:"max_backups" validate:"min=0"`
	MaxAgeDays int    `json:"max_age_days" mapstructure:"max_age_days" validate:"min=0"`
	Compress   bool   `json:"compress" mapstructure:"compress"`
}

// BackoffBaseDuration returns BackoffBase as a duration
func (d DownloadConfig) BackoffBaseDuration() time.Duration {
	return time.Duration(d.BackoffBase * float64(time.Second))
}

// Load loads configuration from file, writing one with defaults when missing
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath == "" {
		configPath = GetConfigPath()
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	if err := ensureConfigDir(configPath); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(configPath); os.IsNotExist(statErr) {
			if err := v.WriteConfigAs(configPath); err != nil {
				return nil, fmt.Errorf("failed to write default config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// A .env next to the settings file supplies overrides; real env vars win
	if err := godotenv.Load(filepath.Join(filepath.Dir(configPath), ".env")); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

var validate = newValidator()

// newValidator reports fields by their settings key, e.g. download.max_attempts
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate fills defaulted fields and checks every setting against its range
func (c *Config) Validate() error {
	if c.Download.CoverSize == 0 {
		c.Download.CoverSize = 500
	}
	if c.Resolver.FFprobeBinary == "" {
		c.Resolver.FFprobeBinary = "ffprobe"
	}

	if err := validate.Struct(c); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return err
		}
		problems := make([]string, 0, len(validationErrors))
		for _, e := range validationErrors {
			key := strings.TrimPrefix(e.Namespace(), "Config.")
			if e.Param() != "" {
				problems = append(problems, fmt.Sprintf("%s must satisfy %s=%s", key, e.Tag(), e.Param()))
			} else {
				problems = append(problems, fmt.Sprintf("%s is %s", key, e.Tag()))
			}
		}
		return fmt.Errorf("invalid settings: %s", strings.Join(problems, "; "))
	}

	return nil
}

// Save saves the configuration to file
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	v.Set("download", c.Download)
	v.Set("resolver", c.Resolver)
	v.Set("search", c.Search)
	v.Set("playback", c.Playback)
	v.Set("logging", c.Logging)

	return v.WriteConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("download.documents_dir", filepath.Join(GetDataDir(), "documents"))
	v.SetDefault("download.max_attempts", 3)
	v.SetDefault("download.backoff_base", 1.0)
	v.SetDefault("download.concurrent_downloads", 3)
	v.SetDefault("download.request_timeout", 30)
	v.SetDefault("download.resource_timeout", 0)
	v.SetDefault("download.cover_size", 500)

	v.SetDefault("resolver.ffprobe_binary", "ffprobe")
	v.SetDefault("resolver.requests_per_second", 2.0)
	v.SetDefault("resolver.timeout", 60)

	v.SetDefault("search.api_key", "")
	v.SetDefault("search.requests_per_second", 5.0)
	v.SetDefault("search.max_results", 10)

	v.SetDefault("playback.default_loop_mode", "loop-queue")
	v.SetDefault("playback.tick_interval_ms", 500)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "file")
	v.SetDefault("logging.file_path", filepath.Join(GetDataDir(), "logs", "vibe.log"))
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("logging.compress", true)
}

func ensureConfigDir(configPath string) error {
	dir := filepath.Dir(configPath)
	return os.MkdirAll(dir, 0755)
}

// GetDataDir returns the application data directory. VIBE_HOME overrides it.
func GetDataDir() string {
	if home := os.Getenv(EnvPrefix + "_HOME"); home != "" {
		return home
	}

	appData := os.Getenv("APPDATA")
	if appData == "" {
		appData = os.Getenv("HOME")
	}
	return filepath.Join(appData, ".vibe")
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	return filepath.Join(GetDataDir(), "settings.json")
}
