package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"sgsync/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		configFile, logLevel, quiet, accountName = "", "", false, ""
		configForce = false
	})
}

func TestGlobalFlags(t *testing.T) {
	resetFlags(t)

	assert.Empty(t, globalFlags())

	quiet = true
	assert.Equal(t, "error", globalFlags()["log-level"])

	logLevel = "debug"
	assert.Equal(t, "debug", globalFlags()["log-level"], "an explicit level wins over --quiet")
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"sync"},
		{"whitelist"},
		{"auth", "login"},
		{"auth", "logout"},
		{"auth", "list"},
		{"config", "init"},
		{"config", "show"},
		{"config", "validate"},
	} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}

	whitelist, _, err := rootCmd.Find([]string{"whitelist"})
	require.NoError(t, err)
	assert.NotNil(t, whitelist.Flags().Lookup("no-cache"))
	assert.Equal(t, "whitelist", whitelist.Flags().Lookup("source").DefValue)
}

func TestConfigInit(t *testing.T) {
	resetFlags(t)
	path := filepath.Join(t.TempDir(), "config.yaml")

	rootCmd.SetArgs([]string{"config", "init", "--config", path, "--quiet"})
	require.NoError(t, rootCmd.Execute())

	cfg := config.DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))
	assert.Equal(t, config.DefaultConfig().RateLimit, cfg.RateLimit)

	rootCmd.SetArgs([]string{"config", "init", "--config", path, "--quiet"})
	assert.Error(t, rootCmd.Execute(), "an existing file is not overwritten")

	require.NoError(t, os.WriteFile(path, []byte("junk: ["), 0600))
	rootCmd.SetArgs([]string{"config", "init", "--config", path, "--force", "--quiet"})
	require.NoError(t, rootCmd.Execute())
	require.NoError(t, config.DefaultConfig().LoadFromFile(path))
}

func TestConfigShowMasksCookie(t *testing.T) {
	resetFlags(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := config.DefaultConfig()
	cfg.SteamGifts.Username = "me"
	cfg.SteamGifts.Cookie = "0123456789abcdef0123"
	require.NoError(t, cfg.Save(path))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	defer rootCmd.SetOut(nil)
	rootCmd.SetArgs([]string{"config", "show", "--config", path, "--quiet"})
	require.NoError(t, rootCmd.Execute())

	assert.Contains(t, out.String(), "username: me")
	assert.NotContains(t, out.String(), "0123456789abcdef0123")
}
