package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Config struct {
	RomM          RomMConfig         `mapstructure:"romm" yaml:"romm"`
	Download      DownloadConfig     `mapstructure:"download" yaml:"download"`
	Notifications NotificationConfig `mapstructure:"notifications" yaml:"notifications"`
	Log           LogConfig          `mapstructure:"log" yaml:"log"`
	Store         StoreConfig        `mapstructure:"store" yaml:"store"`

	Port string `mapstructure:"port" yaml:"port"`
}

type RomMConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
}

type DownloadConfig struct {
	Root          string `mapstructure:"root" yaml:"root"`
	MaxConcurrent int    `mapstructure:"max_concurrent" yaml:"max_concurrent"`
	ChunkSize     int    `mapstructure:"chunk_size" yaml:"chunk_size"`
	ProgressStep  int    `mapstructure:"progress_step" yaml:"progress_step"`
}

type NotificationConfig struct {
	GracePeriod    time.Duration `mapstructure:"grace_period" yaml:"grace_period"`
	DismissSummary bool          `mapstructure:"dismiss_summary" yaml:"dismiss_summary"`
}

type LogConfig struct {
	Path          string `mapstructure:"path" yaml:"path"`
	Level         string `mapstructure:"level" yaml:"level"`
	IncludeStdout bool   `mapstructure:"include_stdout" yaml:"include_stdout"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
}

const (
	DefaultMaxConcurrent = 3
	DefaultChunkSize     = 64 * 1024
	DefaultProgressStep  = 5
)

func Load(path string) (*Config, error) {

	if path == "" {
		path = "config.yaml"
	}

	// 1. Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// FALLBACK: in Docker the config is mounted at /config/config.yaml
		if path == "config.yaml" {
			if _, errEx := os.Stat("/config/config.yaml"); errEx == nil {
				path = "/config/config.yaml"
			} else if _, errEx := os.Stat("config.yaml.example"); errEx == nil {
				return nil, fmt.Errorf("configuration file 'config.yaml' not found\n\n" +
					"To fix this, run:\n" +
					"  cp config.yaml.example config.yaml\n" +
					"Then edit it with your RomM host and credentials.")
			} else {
				return nil, fmt.Errorf("config file not found: %s", path)
			}
		} else {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
	}

	v := newViper()

	// Read config File
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	return decode(v)
}

// FromReader loads configuration from an in-memory YAML document.
func FromReader(r io.Reader) (*Config, error) {
	v := newViper()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("error reading config: %w", err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()

	// Set Defaults
	v.SetDefault("port", "8080")
	v.SetDefault("download.root", "./roms")
	v.SetDefault("download.max_concurrent", DefaultMaxConcurrent)
	v.SetDefault("download.chunk_size", DefaultChunkSize)
	v.SetDefault("download.progress_step", DefaultProgressStep)
	v.SetDefault("notifications.grace_period", "5s")
	v.SetDefault("notifications.dismiss_summary", false)
	v.SetDefault("log.path", "gorom.log")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.include_stdout", true)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "./data/gorom.db")

	// Support Environment Variables
	v.SetEnvPrefix("GOROM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.RomM.Host == "" {
		return errors.New("romm.host is required")
	}

	if !strings.HasPrefix(c.RomM.Host, "http://") && !strings.HasPrefix(c.RomM.Host, "https://") {
		return fmt.Errorf("romm.host must start with http:// or https://, got %q", c.RomM.Host)
	}

	if c.Download.Root == "" {
		c.Download.Root = "./roms"
	}

	if c.Download.MaxConcurrent <= 0 {
		// Default to a sane value
		c.Download.MaxConcurrent = DefaultMaxConcurrent
	}

	if c.Download.ChunkSize <= 0 {
		c.Download.ChunkSize = DefaultChunkSize
	}

	if c.Download.ProgressStep <= 0 || c.Download.ProgressStep > 100 {
		c.Download.ProgressStep = DefaultProgressStep
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("store.driver must be sqlite or postgres, got %q", c.Store.Driver)
	}

	return nil
}

// MaxConcurrentDownloads implements the engine's settings collaborator.
func (c *Config) MaxConcurrentDownloads() int { return c.Download.MaxConcurrent }

// DestinationRoot implements the engine's settings collaborator.
func (c *Config) DestinationRoot() string { return c.Download.Root }

// YAML renders the effective configuration with the password masked.
func (c *Config) YAML() ([]byte, error) {
	masked := *c
	if masked.RomM.Password != "" {
		masked.RomM.Password = "********"
	}
	return yaml.Marshal(masked)
}

// Settings is the live view of the download settings. The concurrency ceiling may be
// changed at runtime; the engine reads it once per submission batch.
type Settings struct {
	maxConcurrent atomic.Int64
	root          atomic.Value
}

func NewSettings(c *Config) *Settings {
	s := &Settings{}
	s.maxConcurrent.Store(int64(c.Download.MaxConcurrent))
	s.root.Store(c.Download.Root)
	return s
}

func (s *Settings) MaxConcurrentDownloads() int { return int(s.maxConcurrent.Load()) }

func (s *Settings) DestinationRoot() string { return s.root.Load().(string) }

// SetMaxConcurrentDownloads changes the ceiling for batches submitted afterwards.
func (s *Settings) SetMaxConcurrentDownloads(n int) error {
	if n <= 0 {
		return fmt.Errorf("max concurrent downloads must be positive, got %d", n)
	}
	s.maxConcurrent.Store(int64(n))
	return nil
}
