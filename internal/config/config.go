package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	// Global settings
	Format  string `mapstructure:"format"`
	Quiet   bool   `mapstructure:"quiet"`
	Verbose bool   `mapstructure:"verbose"`

	// Daemon settings
	Daemon DaemonConfig `mapstructure:"daemon"`
}

// DaemonConfig holds the run command's settings
type DaemonConfig struct {
	CollectorURL string `mapstructure:"collector_url"`
	ListenAddr   string `mapstructure:"listen_addr"`
	StateDir     string `mapstructure:"state_dir"`

	// Tuning; defaults match the documented pipeline constants
	FlushInterval    time.Duration `mapstructure:"flush_interval"`
	MaxRetryAttempts int           `mapstructure:"max_retry_attempts"`
	QueueCapacity    int           `mapstructure:"queue_capacity"`
	SenderTimeout    time.Duration `mapstructure:"sender_timeout"`
}

// Default returns a Config with default values
func Default() *Config {
	return &Config{
		Format:  "text",
		Quiet:   false,
		Verbose: false,
		Daemon: DaemonConfig{
			CollectorURL:     "https://collector.channeltime.io",
			ListenAddr:       "127.0.0.1:7381",
			FlushInterval:    time.Minute,
			MaxRetryAttempts: 3,
			QueueCapacity:    100,
			SenderTimeout:    10 * time.Second,
		},
	}
}

// Load loads configuration from files and environment
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("ctw")
	v.SetConfigType("yaml")

	// Config paths in order of precedence, lowest first
	v.AddConfigPath("/etc/ctw/")
	if configDir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(configDir, "ctw"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
		v.SetConfigName(".ctw")
	}
	v.AddConfigPath(".")

	// Environment variables
	v.SetEnvPrefix("CTW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.BindEnv("format", "CTW_FORMAT")
	v.BindEnv("quiet", "CTW_QUIET")
	v.BindEnv("verbose", "CTW_VERBOSE")
	v.BindEnv("daemon.collector_url", "CTW_COLLECTOR_URL")
	v.BindEnv("daemon.listen_addr", "CTW_LISTEN_ADDR")
	v.BindEnv("daemon.state_dir", "CTW_STATE_DIR")

	cfg := Default()
	v.SetDefault("format", cfg.Format)
	v.SetDefault("quiet", cfg.Quiet)
	v.SetDefault("verbose", cfg.Verbose)
	v.SetDefault("daemon.collector_url", cfg.Daemon.CollectorURL)
	v.SetDefault("daemon.listen_addr", cfg.Daemon.ListenAddr)
	v.SetDefault("daemon.flush_interval", cfg.Daemon.FlushInterval)
	v.SetDefault("daemon.max_retry_attempts", cfg.Daemon.MaxRetryAttempts)
	v.SetDefault("daemon.queue_capacity", cfg.Daemon.QueueCapacity)
	v.SetDefault("daemon.sender_timeout", cfg.Daemon.SenderTimeout)

	// Try to read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a specific file
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
