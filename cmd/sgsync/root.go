package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	errs "sgsync/pkg/errors"
	"sgsync/pkg/ui"

	"github.com/spf13/cobra"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile  string
	logLevel    string
	quiet       bool
	accountName string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sgsync",
	Short: "Keep a SteamGifts allow-list healthy",
	Long: `sgsync mirrors the giveaways you created and won into a local cache,
collects public statistics of the people on your allow-list and prints the
profiles that look like bad trading partners.

Commands:
  sync       update the local cache of giveaways and counterparties
  whitelist  print allow-list members recommended for removal
  auth       store or remove the session cookie
  config     create, show or validate the configuration file

Requests are rate limited per second, minute, hour and day. Runs can be
interrupted at any time and resume where they stopped.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		switch cmd.Name() {
		case "sync", "whitelist":
			ui.Stdio(quiet).PrintLogo()
		}
	},
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printFailure(err)
		os.Exit(1)
	}
}

func printFailure(err error) {
	p := ui.Stdio(quiet)
	switch {
	case errors.Is(err, errs.ErrAuthExpired):
		p.PrintError("Login failed. The session cookie PHPSESSID is missing or expired; run 'sgsync auth login'")
	case errors.Is(err, context.Canceled):
		p.PrintError("Interrupted. Completed work is saved and the next run resumes from it")
	default:
		p.PrintError("Error", err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is $HOME/.config/sgsync/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors and results")
	rootCmd.PersistentFlags().StringVar(&accountName, "account", "", "stored account to use")

	rootCmd.SetVersionTemplate(`sgsync {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
