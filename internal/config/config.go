package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	// Base URL of the music site, e.g. "https://music.example.com"
	ServerURL string

	// Auth token sent with catalog requests (optional; public catalogs
	// need none)
	AuthToken string

	// Directory for local state (listen log database)
	DataDir string

	// Log level: trace, debug, info, warn, error
	LogLevel string

	// Report listens back to the site
	ListenReporting bool

	// Publish playback state over MPRIS
	MPRIS bool
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	configDir := getConfigDir()
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	v.SetDefault("data_dir", getDataDir())
	v.SetDefault("log_level", "info")
	v.SetDefault("listen_reporting", true)
	v.SetDefault("mpris", true)

	// Config file is optional; environment and flags can carry everything
	_ = v.ReadInConfig()

	v.SetEnvPrefix("TONEARM")
	v.AutomaticEnv()

	cfg := &Config{
		ServerURL:       v.GetString("server_url"),
		AuthToken:       v.GetString("auth_token"),
		DataDir:         v.GetString("data_dir"),
		LogLevel:        v.GetString("log_level"),
		ListenReporting: v.GetBool("listen_reporting"),
		MPRIS:           v.GetBool("mpris"),
	}

	return cfg, nil
}

// Validate checks that the configuration is usable for playback.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url is required (set it in %s or TONEARM_SERVER_URL)",
			filepath.Join(getConfigDir(), "config.yaml"))
	}
	return nil
}

// getConfigDir returns the configuration directory path
// Creates the directory if it doesn't exist
func getConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	configDir := filepath.Join(homeDir, ".config", "tonearm")
	_ = os.MkdirAll(configDir, 0755)

	return configDir
}

// getDataDir returns the default local state directory, creating it if
// needed.
func getDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	dataDir := filepath.Join(homeDir, ".local", "share", "tonearm")
	_ = os.MkdirAll(dataDir, 0755)

	return dataDir
}

// GetConfigDir returns the configuration directory path (public helper)
func GetConfigDir() string {
	return getConfigDir()
}

// Save writes configuration to file
func (c *Config) Save() error {
	v := viper.New()

	configFile := filepath.Join(getConfigDir(), "config.yaml")

	v.Set("server_url", c.ServerURL)
	v.Set("auth_token", c.AuthToken)
	v.Set("data_dir", c.DataDir)
	v.Set("log_level", c.LogLevel)
	v.Set("listen_reporting", c.ListenReporting)
	v.Set("mpris", c.MPRIS)

	return v.WriteConfigAs(configFile)
}
