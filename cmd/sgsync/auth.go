package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"sgsync/pkg/auth"
	"sgsync/pkg/client"
	"sgsync/pkg/config"
	"sgsync/pkg/logger"
	"sgsync/pkg/retry"
	"sgsync/pkg/steamgifts"
	"sgsync/pkg/ui"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	loginUserAgent string
	loginNoVerify  bool
	logoutAll      bool
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the SteamGifts session cookie",
	Long: `Manage stored SteamGifts session cookies.

Cookies are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - The SGSYNC_COOKIE environment variable (read only)`,
}

var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Store a session cookie",
	Long: `Store the PHPSESSID cookie of a logged in browser session.

The cookie is checked against the site before it is stored; the username is
read from the site when not given.`,
	Example: `  sgsync auth login
  sgsync auth login myname --user-agent "Mozilla/5.0 ..."`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout [username]",
	Short: "Remove a stored session cookie",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLogout,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	loginCmd.Flags().StringVar(&loginUserAgent, "user-agent", "", "User-Agent to send with this cookie")
	loginCmd.Flags().BoolVar(&loginNoVerify, "no-verify", false, "store without checking the cookie")
	logoutCmd.Flags().BoolVar(&logoutAll, "all", false, "remove every stored account")

	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	p := ui.Stdio(quiet)
	manager, err := auth.NewManager(config.DataDirectory())
	if err != nil {
		return fmt.Errorf("initialize credential manager: %w", err)
	}

	var username string
	if len(args) > 0 {
		username = strings.TrimSpace(args[0])
	}

	auth.ShowCookieExtractionGuide(p.Err)
	fmt.Fprint(p.Err, "\nPHPSESSID cookie value: ")
	cookie, err := readSecret()
	if err != nil {
		return fmt.Errorf("read cookie: %w", err)
	}
	if cookie == "" {
		return fmt.Errorf("no cookie entered")
	}

	if !loginNoVerify {
		ctx, stop := signalContext()
		defer stop()
		name, err := verifyCookie(ctx, cookie, loginUserAgent)
		if err != nil {
			return err
		}
		if username != "" && !strings.EqualFold(username, name) {
			p.PrintWarning("The cookie belongs to another account", name)
		}
		username = name
		p.PrintSuccess("Session verified for " + name)
	}

	if username == "" {
		return fmt.Errorf("a username is required with --no-verify")
	}

	account := &auth.Account{
		Username:  username,
		Cookie:    cookie,
		UserAgent: loginUserAgent,
	}
	if err := manager.Store(account); err != nil {
		return err
	}

	p.PrintSuccess("Account saved: " + username)
	p.PrintInfo("Cookie", auth.SanitizeAccount(account).Cookie)
	return nil
}

// verifyCookie resolves the username the cookie is logged in as
func verifyCookie(ctx context.Context, cookie, userAgent string) (string, error) {
	cfg, err := config.Load(configFile, globalFlags())
	if err != nil {
		return "", err
	}
	if userAgent == "" {
		userAgent = cfg.SteamGifts.UserAgent
	}

	c, err := client.New(client.Options{
		BaseURL:   cfg.SteamGifts.BaseURL,
		Cookie:    cookie,
		UserAgent: userAgent,
		Timeout:   cfg.SteamGifts.Timeout,
		Retry: &retry.Config{
			MaxAttempts: 3,
			Backoff:     retry.DefaultExponentialBackoff(),
			RetryIf:     retry.DefaultRetryIf,
		},
		Logger: logger.NewNopLogger(),
	})
	if err != nil {
		return "", err
	}
	return steamgifts.New(c, "", logger.NewNopLogger()).MyUsername(ctx)
}

// readSecret reads a line from stdin without echo when stdin is a terminal
func readSecret() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(secret)), nil
	}

	input, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	p := ui.Stdio(quiet)
	manager, err := auth.NewManager(config.DataDirectory())
	if err != nil {
		return fmt.Errorf("initialize credential manager: %w", err)
	}

	if logoutAll {
		if err := manager.DeleteAll(); err != nil {
			return err
		}
		p.PrintSuccess("All accounts removed")
		return nil
	}

	var username string
	switch {
	case len(args) > 0:
		username = args[0]
	case accountName != "":
		username = accountName
	default:
		accounts, err := manager.List()
		if err != nil {
			return err
		}
		if len(accounts) != 1 {
			return fmt.Errorf("%d accounts stored; name the one to remove or use --all", len(accounts))
		}
		username = accounts[0].Username
	}

	if err := manager.Delete(username); err != nil {
		return err
	}
	p.PrintSuccess("Account removed: " + username)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	p := ui.Stdio(quiet)
	manager, err := auth.NewManager(config.DataDirectory())
	if err != nil {
		return fmt.Errorf("initialize credential manager: %w", err)
	}

	accounts, err := manager.List()
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		p.PrintInfo("No stored accounts", "use 'sgsync auth login' to add one")
		return nil
	}

	out := cmd.OutOrStdout()
	for _, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		fmt.Fprintf(out, "%s\t%s\t%s\n", sanitized.Username, sanitized.Cookie, sanitized.LastModified.Format(time.DateTime))
	}
	return nil
}
