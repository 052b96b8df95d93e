package whitelist

import (
	"context"
	"errors"
	"fmt"
	"time"

	errs "sgsync/pkg/errors"
	"sgsync/pkg/logger"
	"sgsync/pkg/models"
	"sgsync/pkg/snapshot"
)

// Source names where the usernames to evaluate come from
type Source string

const (
	// SourceWhitelist exports the account's allow-list
	SourceWhitelist Source = "whitelist"
	// SourceCache uses the counterparties recorded by sync
	SourceCache Source = "cache"
)

// ParseSource validates a --source value
func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case "", SourceWhitelist:
		return SourceWhitelist, nil
	case SourceCache:
		return SourceCache, nil
	default:
		return "", fmt.Errorf("unknown source %q (want whitelist or cache)", s)
	}
}

// progressEvery is how often collection progress is logged
const progressEvery = 20

// SiteAPI is the part of the SteamGifts API the collector needs
type SiteAPI interface {
	CheckSession(ctx context.Context) error
	Me(ctx context.Context) (string, error)
	FetchProfile(ctx context.Context, username string) (models.Profile, error)
	ExportWhitelist(ctx context.Context) ([]string, error)
}

// FlagSource looks up reputation flags
type FlagSource interface {
	Flags(ctx context.Context, username string) (models.Flags, error)
}

// CounterpartySource lists the usernames recorded by a sync
type CounterpartySource interface {
	Counterparties() []string
}

// Collector builds the dataset the filter runs on
type Collector struct {
	api      SiteAPI
	flags    FlagSource
	cache    CounterpartySource
	snapshot *snapshot.Manager
	logger   logger.Logger
	now      func() time.Time
}

// NewCollector creates a Collector. cache may be nil when only the allow-list
// source is used.
func NewCollector(api SiteAPI, flags FlagSource, cache CounterpartySource, snap *snapshot.Manager, log logger.Logger) *Collector {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Collector{
		api:      api,
		flags:    flags,
		cache:    cache,
		snapshot: snap,
		logger:   log.WithField("component", "whitelist"),
		now:      time.Now,
	}
}

// WithClock replaces the wall clock
func (c *Collector) WithClock(now func() time.Time) *Collector {
	c.now = now
	return c
}

// Load returns the dataset for source. A fresh snapshot is reused unless
// noCache is set; otherwise every profile is fetched again and the snapshot
// replaced.
func (c *Collector) Load(ctx context.Context, source Source, noCache bool) (models.Dataset, error) {
	if !noCache && c.snapshot != nil {
		snap, err := c.snapshot.Load(string(source))
		if err != nil {
			c.logger.WithError(err).Warn("Ignoring unreadable snapshot")
		} else if snap != nil {
			return snap.Dataset, nil
		}
	}

	data, err := c.Collect(ctx, source)
	if err != nil {
		return models.Dataset{}, err
	}

	if c.snapshot != nil {
		if err := c.snapshot.Save(string(source), data); err != nil {
			return data, fmt.Errorf("save snapshot: %w", err)
		}
	}
	return data, nil
}

// Collect fetches my profile and the profile and flags of every user in source
func (c *Collector) Collect(ctx context.Context, source Source) (models.Dataset, error) {
	if err := c.api.CheckSession(ctx); err != nil {
		return models.Dataset{}, err
	}

	names, err := c.usernames(ctx, source)
	if err != nil {
		return models.Dataset{}, err
	}

	me, err := c.api.Me(ctx)
	if err != nil {
		return models.Dataset{}, fmt.Errorf("resolve username: %w", err)
	}
	mine, err := c.api.FetchProfile(ctx, me)
	if err != nil {
		return models.Dataset{}, fmt.Errorf("load my profile: %w", err)
	}
	names = without(names, me)

	logger.LogComponentStart(c.logger, "collector", map[string]interface{}{
		"source": string(source),
		"users":  len(names),
	})

	users := make(map[string]models.UserStats, len(names))
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return models.Dataset{}, err
		}
		stats, err := c.user(ctx, name)
		switch {
		case errors.Is(err, errs.ErrNotFound):
			c.logger.WarnWithFields("There is no user with this username", map[string]interface{}{
				"username": name,
			})
		case err != nil:
			return models.Dataset{}, fmt.Errorf("user %s: %w", name, err)
		default:
			users[name] = stats
		}
		logger.LogUserProgress(c.logger, i+1, len(names), progressEvery)
	}

	c.logger.InfoWithFields("All user profiles retrieved", map[string]interface{}{
		"retrieved": len(users),
		"skipped":   len(names) - len(users),
	})

	return models.Dataset{
		MyProfile: mine,
		Users:     users,
		LastCheck: c.now(),
	}, nil
}

func (c *Collector) usernames(ctx context.Context, source Source) ([]string, error) {
	switch source {
	case SourceCache:
		if c.cache == nil {
			return nil, errors.New("no cache available for the cache source")
		}
		return c.cache.Counterparties(), nil
	default:
		names, err := c.api.ExportWhitelist(ctx)
		if err != nil {
			return nil, fmt.Errorf("export whitelist: %w", err)
		}
		return names, nil
	}
}

func (c *Collector) user(ctx context.Context, name string) (models.UserStats, error) {
	profile, err := c.api.FetchProfile(ctx, name)
	if err != nil {
		return models.UserStats{}, err
	}
	flags, err := c.flags.Flags(ctx, name)
	if err != nil {
		return models.UserStats{}, err
	}
	return models.UserStats{Profile: profile, Flags: flags}, nil
}

func without(names []string, name string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}
