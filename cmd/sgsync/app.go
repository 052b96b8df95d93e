package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sgsync/pkg/auth"
	"sgsync/pkg/client"
	"sgsync/pkg/config"
	"sgsync/pkg/logger"
	"sgsync/pkg/ratelimit"
	"sgsync/pkg/reputation"
	"sgsync/pkg/retry"
	"sgsync/pkg/steamgifts"
	"sgsync/pkg/store"
	"sgsync/pkg/ui"

	"github.com/google/uuid"
)

// app holds everything a network command needs
type app struct {
	cfg        *config.Config
	log        logger.Logger
	store      *store.Store
	client     *client.Client
	steamgifts *steamgifts.API
	reputation *reputation.Client
	printer    *ui.Printer
	runID      string
}

// globalFlags returns the persistent flags as a config override map
func globalFlags() map[string]interface{} {
	flags := make(map[string]interface{})
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	if quiet && logLevel == "" {
		flags["log-level"] = "error"
	}
	return flags
}

// loadConfig loads the configuration and fills the session from the
// credential store when none is configured
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile, globalFlags())
	if err != nil {
		return nil, err
	}

	if cfg.SteamGifts.Cookie != "" && accountName == "" {
		return cfg, nil
	}

	manager, err := auth.NewManager(config.DataDirectory())
	if err != nil {
		return nil, err
	}
	var account *auth.Account
	if accountName != "" {
		account, err = manager.Retrieve(accountName)
	} else {
		account, err = manager.RetrieveDefault()
	}
	if err != nil && !errors.Is(err, auth.ErrCredentialsNotFound) {
		return nil, err
	}
	if account != nil {
		cfg.SteamGifts.Cookie = account.Cookie
		if account.Username != "" && account.Username != "default" {
			cfg.SteamGifts.Username = account.Username
		}
		if account.UserAgent != "" {
			cfg.SteamGifts.UserAgent = account.UserAgent
		}
	}
	return cfg, nil
}

// newApp wires configuration, logging, the cache store, the rate limited
// client and the site APIs
func newApp(command string) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.RequireSession(); err != nil {
		return nil, err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	runID := uuid.NewString()
	log := logger.GetLogger().WithFields(map[string]interface{}{
		"run_id":  runID,
		"command": command,
	})

	st, err := store.Open(cfg.Cache.Path)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	limiterOpts := []ratelimit.Option{
		ratelimit.WithWaitHook(func(d time.Duration, rate ratelimit.Rate) {
			logger.LogRateLimitWait(log, d, rate.String())
		}),
	}
	if cfg.RateLimit.Persist {
		limiterOpts = append(limiterOpts, ratelimit.WithJournal(st.RequestLog()))
	}
	limiter, err := ratelimit.NewMulti([]ratelimit.Rate{
		{Limit: cfg.RateLimit.PerSecond, Interval: time.Second},
		{Limit: cfg.RateLimit.PerMinute, Interval: time.Minute},
		{Limit: cfg.RateLimit.PerHour, Interval: time.Hour},
		{Limit: cfg.RateLimit.PerDay, Interval: 24 * time.Hour},
	}, limiterOpts...)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("create rate limiter: %w", err)
	}

	c, err := client.New(client.Options{
		BaseURL:   cfg.SteamGifts.BaseURL,
		Cookie:    cfg.SteamGifts.Cookie,
		UserAgent: cfg.SteamGifts.UserAgent,
		Timeout:   cfg.SteamGifts.Timeout,
		Limiter:   limiter,
		Retry: &retry.Config{
			MaxAttempts: cfg.Retry.MaxAttempts,
			Backoff: retry.NewErrorTypeBackoff(&retry.ExponentialBackoff{
				BaseDelay:    cfg.Retry.InitialBackoff,
				MaxDelay:     cfg.Retry.MaxBackoff,
				Multiplier:   cfg.Retry.Multiplier,
				JitterFactor: 0.1,
			}),
			RetryIf: retry.DefaultRetryIf,
			Logger:  log,
		},
		Logger: log,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	logger.LogComponentStart(log, command, map[string]interface{}{
		"cache":     cfg.Cache.Path,
		"rate":      fmt.Sprintf("%d/s %d/m %d/h %d/d", cfg.RateLimit.PerSecond, cfg.RateLimit.PerMinute, cfg.RateLimit.PerHour, cfg.RateLimit.PerDay),
		"persisted": cfg.RateLimit.Persist,
	})

	return &app{
		cfg:        cfg,
		log:        log,
		store:      st,
		client:     c,
		steamgifts: steamgifts.New(c, cfg.SteamGifts.Username, log),
		reputation: reputation.New(c, cfg.Reputation.BaseURL, nil, log),
		printer:    ui.Stdio(quiet),
		runID:      runID,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.WithError(err).Warn("Failed to close cache")
	}
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
