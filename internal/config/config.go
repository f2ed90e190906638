// Package config loads and watches the application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config is the root application configuration.
type Config struct {
	Sources  SourcesConfig  `mapstructure:"sources"`
	Network  NetworkConfig  `mapstructure:"network"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Advanced AdvancedConfig `mapstructure:"advanced"`
}

// SourcesConfig selects sources and tunes their listing behavior.
type SourcesConfig struct {
	AnifyBaseURL string `mapstructure:"anify_base_url"`

	// Pagination is "single" or "chunked"; ChunkSize only applies to
	// the chunked policy.
	Pagination string `mapstructure:"pagination"`
	ChunkSize  int    `mapstructure:"chunk_size"`

	// Eligibility is "observed" or "strict" and controls which provider
	// mappings become selectable seasons on anime entries.
	Eligibility string `mapstructure:"eligibility"`

	// SubtitleType is the track selector ("sub" or "dub") sent with
	// stream resolution requests.
	SubtitleType string `mapstructure:"subtitle_type"`

	DefaultVideo string `mapstructure:"default_video"`
	DefaultBook  string `mapstructure:"default_book"`
}

// NetworkConfig tunes the shared HTTP client.
type NetworkConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries"`
	UserAgent      string `mapstructure:"user_agent"`
}

// LoggingConfig controls log output, format and rotation.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	Color      bool   `mapstructure:"color"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// DatabaseConfig locates the local sqlite database.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// AdvancedConfig holds developer toggles.
type AdvancedConfig struct {
	Debug bool `mapstructure:"debug"`
}

// Load reads the configuration from the given file, or from the default
// location when path is empty. The returned viper instance is live and
// can be used for hot reload via WatchConfig.
func Load(path string) (*Config, *viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(getConfigDir(), "anify-source"))
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("ANIFY")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("parsing config: %w", err)
	}

	return &cfg, v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sources.anify_base_url", "https://anify.eltik.cc")
	v.SetDefault("sources.pagination", "single")
	v.SetDefault("sources.chunk_size", 4)
	v.SetDefault("sources.eligibility", "observed")
	v.SetDefault("sources.subtitle_type", "sub")
	v.SetDefault("sources.default_video", "anify-anime")
	v.SetDefault("sources.default_book", "anify-manga")

	v.SetDefault("network.timeout_seconds", 30)
	v.SetDefault("network.max_retries", 3)
	v.SetDefault("network.user_agent", "anify-source/1.0")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.color", true)
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	v.SetDefault("database.path", filepath.Join(getDataDir(), "anify-source", "anify.db"))

	v.SetDefault("advanced.debug", false)
}

// InitializeDirs creates the config, state and data directories.
func InitializeDirs() error {
	for _, dir := range []string{
		filepath.Join(getConfigDir(), "anify-source"),
		filepath.Join(getStateDir(), "anify-source"),
		filepath.Join(getDataDir(), "anify-source"),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}

func getConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir
	}
	return "."
}

func getStateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state")
	}
	return "."
}

func getDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share")
	}
	return "."
}
