package cmd

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tonearm/tonearm/internal/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the current configuration",
	Long: `Show the effective configuration and where it is loaded from.

Values come from the config file, TONEARM_* environment variables and
built-in defaults, in that order of precedence.`,
	RunE: runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value and write it to the config file.

Keys: server_url, auth_token, data_dir, log_level, listen_reporting,
mpris. Boolean keys take true or false.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configSetCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	token := "(not set)"
	if cfg.AuthToken != "" {
		token = "(set)"
	}

	fmt.Printf("Config file:       %s\n", filepath.Join(config.GetConfigDir(), "config.yaml"))
	fmt.Printf("server_url:        %s\n", cfg.ServerURL)
	fmt.Printf("auth_token:        %s\n", token)
	fmt.Printf("data_dir:          %s\n", cfg.DataDir)
	fmt.Printf("log_level:         %s\n", cfg.LogLevel)
	fmt.Printf("listen_reporting:  %t\n", cfg.ListenReporting)
	fmt.Printf("mpris:             %t\n", cfg.MPRIS)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if err := applyConfigValue(cfg, args[0], args[1]); err != nil {
		return err
	}
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("Saved %s to %s\n", args[0], filepath.Join(config.GetConfigDir(), "config.yaml"))
	return nil
}

// applyConfigValue sets the named key on cfg, parsing booleans for the
// keys that need them.
func applyConfigValue(cfg *config.Config, key, value string) error {
	switch key {
	case "server_url":
		cfg.ServerURL = value
	case "auth_token":
		cfg.AuthToken = value
	case "data_dir":
		cfg.DataDir = value
	case "log_level":
		cfg.LogLevel = value
	case "listen_reporting":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("listen_reporting must be true or false, got %q", value)
		}
		cfg.ListenReporting = b
	case "mpris":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("mpris must be true or false, got %q", value)
		}
		cfg.MPRIS = b
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return nil
}
