// Package config loads run configuration from harvest.yaml, HARVEST_*
// environment variables and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"

	"github.com/go-scripts/harvest/internal/render"
)

// Config holds all configuration for a harvest run
type Config struct {
	Profiles    []string      `mapstructure:"profiles"`
	OutputDir   string        `mapstructure:"output_dir"`
	SQLitePath  string        `mapstructure:"sqlite_path"`
	Concurrency int           `mapstructure:"concurrency"`
	LogLevel    string        `mapstructure:"log_level"`
	Browser     BrowserConfig `mapstructure:"browser"`
}

// BrowserConfig holds render session settings
type BrowserConfig struct {
	Headless        bool          `mapstructure:"headless"`
	UserAgent       string        `mapstructure:"user_agent"`
	Width           int           `mapstructure:"width"`
	Height          int           `mapstructure:"height"`
	NavigateTimeout time.Duration `mapstructure:"navigate_timeout"`
	ExecPath        string        `mapstructure:"exec_path"`
}

// Load reads configuration. An empty path looks for an optional
// harvest.yaml in the working directory; an explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("harvest")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("HARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	chrome := render.DefaultChromeOptions()

	v.SetDefault("profiles", []string{"profiles/*.yaml"})
	v.SetDefault("output_dir", "output")
	v.SetDefault("sqlite_path", "")
	v.SetDefault("concurrency", 2)
	v.SetDefault("log_level", "info")

	v.SetDefault("browser.headless", chrome.Headless)
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.width", chrome.Width)
	v.SetDefault("browser.height", chrome.Height)
	v.SetDefault("browser.navigate_timeout", chrome.NavigateTimeout.String())
	v.SetDefault("browser.exec_path", "")
}

func validate(config *Config) error {
	if len(config.Profiles) == 0 {
		return fmt.Errorf("at least one profile pattern is required")
	}
	if config.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got: %d", config.Concurrency)
	}
	if _, err := log.ParseLevel(config.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if config.Browser.Width <= 0 || config.Browser.Height <= 0 {
		return fmt.Errorf("browser window must be positive, got: %dx%d", config.Browser.Width, config.Browser.Height)
	}
	if config.Browser.NavigateTimeout <= 0 {
		return fmt.Errorf("navigate timeout must be positive")
	}
	return nil
}

// Level returns the configured log level.
func (c *Config) Level() log.Level {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// ChromeOptions converts the browser settings for render.NewChrome.
func (c *Config) ChromeOptions() render.ChromeOptions {
	return render.ChromeOptions{
		Headless:        c.Browser.Headless,
		UserAgent:       c.Browser.UserAgent,
		Width:           c.Browser.Width,
		Height:          c.Browser.Height,
		NavigateTimeout: c.Browser.NavigateTimeout,
		ExecPath:        c.Browser.ExecPath,
	}
}
