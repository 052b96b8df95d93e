package main

import (
	"errors"
	"fmt"
	"os"

	"sgsync/pkg/auth"
	"sgsync/pkg/config"
	"sgsync/pkg/ui"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
	Long: `Manage the sgsync configuration file.

Configuration is loaded from, highest priority first:
  - Command line flags
  - Environment variables (SGSYNC_*, also read from .env and ~/.sgsync.env)
  - Configuration file
  - Default values`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with every option at its default",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging every source. The session cookie is
masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing file")
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	p := ui.Stdio(quiet)
	path := configFile
	if path == "" {
		path = config.DefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil && !configForce {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	p.PrintSuccess("Configuration file created: " + path)
	p.PrintInfo("Next", "run 'sgsync auth login' to store your session cookie")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	display := *cfg
	if display.SteamGifts.Cookie != "" {
		display.SteamGifts.Cookie = auth.SanitizeAccount(&auth.Account{Cookie: cfg.SteamGifts.Cookie}).Cookie
	}

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("format configuration: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	p := ui.Stdio(quiet)
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := cfg.RequireSession(); err != nil {
		p.PrintWarning("Configuration warning", err)
	}
	if cfg.Logging.File != "" {
		if _, err := os.Stat(cfg.Logging.File); err != nil && !errors.Is(err, os.ErrNotExist) {
			p.PrintWarning("Log file is not accessible", err)
		}
	}

	p.PrintSuccess("Configuration is valid")
	p.PrintInfo("Cache", cfg.Cache.Path)
	p.PrintInfo("Snapshot", cfg.Cache.SnapshotPath)
	p.PrintInfo("Rate limit", fmt.Sprintf("%d/s %d/min %d/h %d/day",
		cfg.RateLimit.PerSecond, cfg.RateLimit.PerMinute, cfg.RateLimit.PerHour, cfg.RateLimit.PerDay))
	p.PrintInfo("Retry", fmt.Sprintf("%d attempts, %s doubling to %s",
		cfg.Retry.MaxAttempts, cfg.Retry.InitialBackoff, cfg.Retry.MaxBackoff))
	p.PrintInfo("Quartile method", cfg.Filter.QuartileMethod)
	return nil
}
