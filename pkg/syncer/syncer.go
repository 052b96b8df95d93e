package syncer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"sgsync/pkg/logger"
	"sgsync/pkg/models"
	"sgsync/pkg/store"
)

// Mode tags a user with the role they were seen in
type Mode int

const (
	ModeDefault Mode = iota
	ModeCreator
	ModeWinner
)

func (m Mode) String() string {
	switch m {
	case ModeCreator:
		return "creator"
	case ModeWinner:
		return "winner"
	default:
		return "default"
	}
}

// Options controls cache freshness
type Options struct {
	// GiveawayTTL is how long the cached giveaway list stays valid
	GiveawayTTL time.Duration
	// UserTTL is how long a user record is trusted before it is refreshed
	UserTTL time.Duration
	// Now replaces the wall clock in tests
	Now func() time.Time
}

// DefaultOptions uses a one week TTL for both collections
func DefaultOptions() Options {
	return Options{
		GiveawayTTL: 7 * 24 * time.Hour,
		UserTTL:     7 * 24 * time.Hour,
		Now:         time.Now,
	}
}

// Result summarises one run
type Result struct {
	Refreshed      bool
	Ended          int
	Processed      int
	Skipped        int
	Pages          int
	UsersUpserted  int
	UsernamesAdded int
	Duration       time.Duration
}

// Synchronizer mirrors the account's giveaways and counterparties into the cache
type Synchronizer struct {
	api       SteamGiftsClient
	giveaways *store.Collection
	usernames *store.Collection
	users     *store.Collection
	opts      Options
	logger    logger.Logger
}

// New creates a Synchronizer over the three cache collections of st
func New(api SteamGiftsClient, st *store.Store, opts Options, log logger.Logger) (*Synchronizer, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	defaults := DefaultOptions()
	if opts.GiveawayTTL <= 0 {
		opts.GiveawayTTL = defaults.GiveawayTTL
	}
	if opts.UserTTL <= 0 {
		opts.UserTTL = defaults.UserTTL
	}
	if opts.Now == nil {
		opts.Now = defaults.Now
	}

	s := &Synchronizer{api: api, opts: opts, logger: log.WithField("component", "syncer")}
	var err error
	if s.giveaways, err = st.Collection(store.Giveaways); err != nil {
		return nil, err
	}
	if s.usernames, err = st.Collection(store.Usernames); err != nil {
		return nil, err
	}
	if s.users, err = st.Collection(store.Users); err != nil {
		return nil, err
	}
	return s, nil
}

// Run performs one synchronisation pass. An expired session aborts before any
// other request. Progress committed before a failure is kept.
func (s *Synchronizer) Run(ctx context.Context, noCache bool) (*Result, error) {
	start := time.Now()
	result := &Result{}

	if err := s.api.CheckSession(ctx); err != nil {
		return result, err
	}

	me, err := s.api.Me(ctx)
	if err != nil {
		return result, fmt.Errorf("resolve username: %w", err)
	}

	refreshed, err := s.RefreshGiveaways(ctx, me, noCache)
	if err != nil {
		return result, err
	}
	result.Refreshed = refreshed

	ended, err := s.EndedGiveaways()
	if err != nil {
		return result, err
	}
	result.Ended = len(ended)

	s.logger.InfoWithFields("Processing ended giveaways", map[string]interface{}{
		"count":    len(ended),
		"no_cache": noCache,
	})

	for i, g := range ended {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if g.FullyPaged() {
			result.Skipped++
			continue
		}

		logger.LogGiveawayProgress(s.logger, g.Link, i+1, len(ended))
		if err := s.ProcessGiveaway(ctx, g, me, noCache, result); err != nil {
			return result, fmt.Errorf("giveaway %d: %w", g.ID, err)
		}
		result.Processed++
	}

	result.Duration = time.Since(start)
	s.logger.InfoWithFields("Synchronisation finished", map[string]interface{}{
		"processed":       result.Processed,
		"skipped":         result.Skipped,
		"pages":           result.Pages,
		"users_upserted":  result.UsersUpserted,
		"usernames_added": result.UsernamesAdded,
		"duration":        result.Duration.Round(time.Millisecond).String(),
	})
	return result, nil
}

// RefreshGiveaways drops the cached list when nothing in it ended within the
// TTL (or noCache is set) and refetches it when empty. It reports whether the
// list was fetched.
func (s *Synchronizer) RefreshGiveaways(ctx context.Context, me string, noCache bool) (bool, error) {
	now := s.opts.Now()
	fresh := store.FreshSince("end_timestamp", now, s.opts.GiveawayTTL)

	if s.giveaways.Len() > 0 && (noCache || !s.giveaways.Contains(fresh)) {
		s.logger.InfoWithFields("Clearing cached giveaways", map[string]interface{}{
			"no_cache": noCache,
			"count":    s.giveaways.Len(),
		})
		if err := s.giveaways.Truncate(ctx); err != nil {
			return false, fmt.Errorf("clear giveaways: %w", err)
		}
	}

	if s.giveaways.Len() > 0 {
		return false, nil
	}

	created, err := s.api.FetchGiveaways(ctx, me, false)
	if err != nil {
		return false, err
	}
	won, err := s.api.FetchGiveaways(ctx, me, true)
	if err != nil {
		return false, err
	}

	docs := make([]store.Document, 0, len(created)+len(won))
	for _, g := range append(created, won...) {
		doc, err := store.Encode(g)
		if err != nil {
			return false, err
		}
		docs = append(docs, doc)
	}
	if _, err := s.giveaways.InsertMultiple(ctx, docs); err != nil {
		return false, fmt.Errorf("store giveaways: %w", err)
	}

	s.logger.InfoWithFields("Fetched giveaways", map[string]interface{}{
		"created": len(created),
		"won":     len(won),
	})
	return true, nil
}

// EndedGiveaways returns cached giveaways that have ended, oldest first
func (s *Synchronizer) EndedGiveaways() ([]models.Giveaway, error) {
	docs := s.giveaways.Search(store.Where("end_timestamp").Lt(s.opts.Now().Unix()))
	out := make([]models.Giveaway, 0, len(docs))
	for _, doc := range docs {
		var g models.Giveaway
		if err := store.Decode(doc, &g); err != nil {
			return nil, fmt.Errorf("decode giveaway: %w", err)
		}
		out = append(out, g)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].EndTimestamp != out[j].EndTimestamp {
			return out[i].EndTimestamp < out[j].EndTimestamp
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ProcessGiveaway records the winners or creator of g and then every entrant
// page after the stored offset. The offset is persisted after each page.
func (s *Synchronizer) ProcessGiveaway(ctx context.Context, g models.Giveaway, me string, noCache bool, result *Result) error {
	if result == nil {
		result = &Result{}
	}

	switch {
	case g.Creator.Username == me && len(g.Winners) > 0:
		for _, w := range g.Winners {
			if !w.Received {
				continue
			}
			if err := s.upsert(ctx, w.User, ModeWinner, noCache, result); err != nil {
				return err
			}
		}
	case g.Received != nil && *g.Received:
		if err := s.upsert(ctx, g.Creator, ModeCreator, noCache, result); err != nil {
			return err
		}
	}

	first := g.EntriesPageOffset + 1
	if noCache {
		first = 1
	}
	pages := g.Pages()
	for page := first; page <= pages; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		logger.LogPageProgress(s.logger, g.Link, page, pages)

		entrants, err := s.api.FetchEntriesPage(ctx, g, page)
		if err != nil {
			return fmt.Errorf("entries page %d: %w", page, err)
		}
		for _, name := range entrants {
			if err := s.upsert(ctx, models.User{Username: name}, ModeDefault, noCache, result); err != nil {
				return err
			}
		}

		if _, err := s.giveaways.Update(ctx, store.Document{"entries_page_offset": page}, store.Where("id").Eq(g.ID)); err != nil {
			return fmt.Errorf("save page offset: %w", err)
		}
		result.Pages++
	}
	return nil
}

// UpsertUser records u. Users with a Steam id are written to the users
// collection unless a fresh record exists; every new display name is added to
// the usernames collection once.
func (s *Synchronizer) UpsertUser(ctx context.Context, u models.User, mode Mode, noCache bool) error {
	return s.upsert(ctx, u, mode, noCache, &Result{})
}

func (s *Synchronizer) upsert(ctx context.Context, u models.User, mode Mode, noCache bool, result *Result) error {
	now := s.opts.Now()
	byName := store.Where("username").Eq(u.Username)

	if u.SteamID != "" {
		byID := store.Where("steam_id").Eq(u.SteamID)
		if !noCache && s.users.Contains(byID.And(store.FreshSince("timestamp", now, s.opts.UserTTL))) {
			return nil
		}

		doc, err := store.Encode(models.UserRecord{
			ID:        u.ID,
			SteamID:   u.SteamID,
			Username:  u.Username,
			Timestamp: now.Unix(),
			IsCreator: mode == ModeCreator,
			IsWinner:  mode == ModeWinner,
		})
		if err != nil {
			return err
		}
		if _, err := s.users.Upsert(ctx, doc, byID); err != nil {
			return fmt.Errorf("save user %s: %w", u.Username, err)
		}
		result.UsersUpserted++
	}

	if s.usernames.Contains(byName) {
		return nil
	}
	if _, err := s.usernames.Upsert(ctx, store.Document{"username": u.Username}, byName); err != nil {
		return fmt.Errorf("save username %s: %w", u.Username, err)
	}
	result.UsernamesAdded++
	return nil
}

// Counterparties returns every recorded display name, sorted
func (s *Synchronizer) Counterparties() []string {
	seen := make(map[string]bool)
	var names []string
	for _, doc := range s.usernames.All() {
		name, ok := doc["username"].(string)
		if !ok || name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
