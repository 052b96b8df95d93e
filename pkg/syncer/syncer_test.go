package syncer

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	errs "sgsync/pkg/errors"
	"sgsync/pkg/logger"
	"sgsync/pkg/models"
	"sgsync/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI serves giveaways and entrant pages from memory
type fakeAPI struct {
	sessionErr error
	me         string
	created    []models.Giveaway
	won        []models.Giveaway
	entries    map[int64][]string
	failPage   map[int64]int
	calls      []string
}

func (f *fakeAPI) CheckSession(ctx context.Context) error {
	f.calls = append(f.calls, "session")
	return f.sessionErr
}

func (f *fakeAPI) Me(ctx context.Context) (string, error) {
	return f.me, nil
}

func (f *fakeAPI) FetchGiveaways(ctx context.Context, username string, won bool) ([]models.Giveaway, error) {
	if won {
		f.calls = append(f.calls, "won")
		return f.won, nil
	}
	f.calls = append(f.calls, "created")
	return f.created, nil
}

func (f *fakeAPI) FetchEntriesPage(ctx context.Context, g models.Giveaway, page int) ([]string, error) {
	f.calls = append(f.calls, fmt.Sprintf("entries %d/%d", g.ID, page))
	if f.failPage[g.ID] == page {
		return nil, errs.New(errs.ErrorTypeRequestFailed, 503, "gave up")
	}
	names := f.entries[g.ID]
	start := (page - 1) * models.EntriesPerPage
	if start >= len(names) {
		return nil, nil
	}
	end := start + models.EntriesPerPage
	if end > len(names) {
		end = len(names)
	}
	return names[start:end], nil
}

func (f *fakeAPI) entryCalls() []string {
	var out []string
	for _, c := range f.calls {
		if len(c) > 8 && c[:8] == "entries " {
			out = append(out, c)
		}
	}
	return out
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func entrants(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%02d", prefix, i)
	}
	return out
}

// fixture builds an account with one created and one won ended giveaway and
// one giveaway still running
func fixture(now time.Time) *fakeAPI {
	received := true
	return &fakeAPI{
		me: "me",
		created: []models.Giveaway{
			{
				ID: 1, Link: "https://sg/giveaway/AAAAA/a", EndTimestamp: now.Add(-2 * time.Hour).Unix(), EntryCount: 30,
				Creator: models.User{ID: 100, SteamID: "s-me", Username: "me"},
				Winners: []models.Winner{
					{User: models.User{ID: 101, SteamID: "s-w1", Username: "w1"}, Received: true},
					{User: models.User{ID: 102, SteamID: "s-w2", Username: "w2"}, Received: false},
				},
			},
			{
				ID: 3, Link: "https://sg/giveaway/CCCCC/c", EndTimestamp: now.Add(24 * time.Hour).Unix(), EntryCount: 5,
				Creator: models.User{ID: 100, SteamID: "s-me", Username: "me"},
			},
		},
		won: []models.Giveaway{
			{
				ID: 2, Link: "https://sg/giveaway/BBBBB/b", EndTimestamp: now.Add(-time.Hour).Unix(), EntryCount: 10,
				Creator:  models.User{ID: 200, SteamID: "s-c", Username: "c"},
				Received: &received,
			},
		},
		entries: map[int64][]string{
			1: entrants("a", 30),
			2: entrants("b", 10),
			3: entrants("x", 5),
		},
		failPage: map[int64]int{},
	}
}

func newTestSyncer(t *testing.T, api SteamGiftsClient, clk *clock) (*Synchronizer, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	s, err := New(api, st, Options{Now: clk.Now}, logger.NewTestLogger())
	require.NoError(t, err)
	return s, st
}

func offset(t *testing.T, st *store.Store, id int64) float64 {
	t.Helper()
	c, err := st.Collection(store.Giveaways)
	require.NoError(t, err)
	doc, ok := c.Get(store.Where("id").Eq(id))
	require.True(t, ok, "giveaway %d cached", id)
	v, _ := doc["entries_page_offset"].(float64)
	return v
}

func TestRunAbortsOnExpiredSession(t *testing.T) {
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	api := fixture(clk.now)
	api.sessionErr = errs.ErrAuthExpired

	s, st := newTestSyncer(t, api, clk)
	_, err := s.Run(context.Background(), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrAuthExpired)
	assert.Equal(t, []string{"session"}, api.calls, "no request after a failed probe")

	giveaways, err := st.Collection(store.Giveaways)
	require.NoError(t, err)
	assert.Zero(t, giveaways.Len())
}

func TestRunFullSync(t *testing.T) {
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	api := fixture(clk.now)
	s, st := newTestSyncer(t, api, clk)

	result, err := s.Run(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, result.Refreshed)
	assert.Equal(t, 2, result.Ended)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 3, result.Pages)
	assert.Equal(t, []string{"entries 1/1", "entries 1/2", "entries 2/1"}, api.entryCalls())

	assert.Equal(t, float64(2), offset(t, st, 1))
	assert.Equal(t, float64(1), offset(t, st, 2))
	assert.Equal(t, float64(0), offset(t, st, 3), "running giveaways are not paged")

	users, err := st.Collection(store.Users)
	require.NoError(t, err)
	assert.Equal(t, 2, users.Len())

	w1, ok := users.Get(store.Where("steam_id").Eq("s-w1"))
	require.True(t, ok)
	assert.Equal(t, true, w1["is_winner"])
	assert.Equal(t, float64(clk.now.Unix()), w1["timestamp"])
	_, hasCreator := w1["is_creator"]
	assert.False(t, hasCreator)

	c, ok := users.Get(store.Where("steam_id").Eq("s-c"))
	require.True(t, ok)
	assert.Equal(t, true, c["is_creator"])

	assert.False(t, users.Contains(store.Where("steam_id").Eq("s-w2")), "unacknowledged winners are ignored")

	names := s.Counterparties()
	assert.Len(t, names, 30+10+2)
	assert.Contains(t, names, "w1")
	assert.Contains(t, names, "c")
	assert.NotContains(t, names, "x00")
	assert.IsIncreasing(t, names)
}

func TestRunIsIdempotent(t *testing.T) {
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	api := fixture(clk.now)
	s, st := newTestSyncer(t, api, clk)
	ctx := context.Background()

	_, err := s.Run(ctx, false)
	require.NoError(t, err)
	usernames, err := st.Collection(store.Usernames)
	require.NoError(t, err)
	before := usernames.Len()

	api.calls = nil
	clk.now = clk.now.Add(time.Minute)
	result, err := s.Run(ctx, false)
	require.NoError(t, err)

	assert.False(t, result.Refreshed)
	assert.Equal(t, 0, result.Processed)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, []string{"session"}, api.calls)
	assert.Equal(t, before, usernames.Len())
}

func TestRunResumesAfterPageFailure(t *testing.T) {
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	api := fixture(clk.now)
	api.failPage[1] = 2
	s, st := newTestSyncer(t, api, clk)
	ctx := context.Background()

	_, err := s.Run(ctx, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrRequestFailed)
	assert.Equal(t, float64(1), offset(t, st, 1), "the completed page stays committed")
	assert.Equal(t, float64(0), offset(t, st, 2), "later giveaways are untouched")

	usernames, err := st.Collection(store.Usernames)
	require.NoError(t, err)
	assert.True(t, usernames.Contains(store.Where("username").Eq("a24")))
	assert.False(t, usernames.Contains(store.Where("username").Eq("a25")))

	delete(api.failPage, 1)
	api.calls = nil
	_, err = s.Run(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"entries 1/2", "entries 2/1"}, api.entryCalls())
	assert.Equal(t, float64(2), offset(t, st, 1))
	assert.True(t, usernames.Contains(store.Where("username").Eq("a29")))
}

func TestRunClearsStaleGiveaways(t *testing.T) {
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	api := fixture(clk.now)
	s, st := newTestSyncer(t, api, clk)
	ctx := context.Background()

	giveaways, err := st.Collection(store.Giveaways)
	require.NoError(t, err)
	_, err = giveaways.Insert(ctx, store.Document{
		"id": 99, "link": "https://sg/giveaway/OLD", "end_timestamp": clk.now.Add(-30 * 24 * time.Hour).Unix(), "entry_count": 0,
	})
	require.NoError(t, err)

	result, err := s.Run(ctx, false)
	require.NoError(t, err)
	assert.True(t, result.Refreshed)
	assert.False(t, giveaways.Contains(store.Where("id").Eq(99)))
	assert.Equal(t, 3, giveaways.Len())
}

func TestRunNoCacheStartsOver(t *testing.T) {
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	api := fixture(clk.now)
	s, st := newTestSyncer(t, api, clk)
	ctx := context.Background()

	_, err := s.Run(ctx, false)
	require.NoError(t, err)

	api.calls = nil
	clk.now = clk.now.Add(time.Hour)
	result, err := s.Run(ctx, true)
	require.NoError(t, err)

	assert.True(t, result.Refreshed)
	assert.Contains(t, api.calls, "created")
	assert.Contains(t, api.calls, "won")
	assert.Equal(t, []string{"entries 1/1", "entries 1/2", "entries 2/1"}, api.entryCalls())

	users, err := st.Collection(store.Users)
	require.NoError(t, err)
	w1, ok := users.Get(store.Where("steam_id").Eq("s-w1"))
	require.True(t, ok)
	assert.Equal(t, float64(clk.now.Unix()), w1["timestamp"], "fresh records are rewritten under no-cache")
	assert.Equal(t, 2, users.Len())
}

func TestUpsertUserFreshness(t *testing.T) {
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	s, st := newTestSyncer(t, &fakeAPI{}, clk)
	ctx := context.Background()
	u := models.User{ID: 5, SteamID: "s-5", Username: "five"}

	require.NoError(t, s.UpsertUser(ctx, u, ModeWinner, false))

	clk.now = clk.now.Add(24 * time.Hour)
	require.NoError(t, s.UpsertUser(ctx, u, ModeCreator, false))

	users, err := st.Collection(store.Users)
	require.NoError(t, err)
	doc, ok := users.Get(store.Where("steam_id").Eq("s-5"))
	require.True(t, ok)
	assert.Equal(t, float64(1_700_000_000), doc["timestamp"], "fresh record skipped")
	_, hasCreator := doc["is_creator"]
	assert.False(t, hasCreator)

	clk.now = clk.now.Add(7 * 24 * time.Hour)
	renamed := u
	renamed.Username = "five-renamed"
	require.NoError(t, s.UpsertUser(ctx, renamed, ModeCreator, false))

	doc, ok = users.Get(store.Where("steam_id").Eq("s-5"))
	require.True(t, ok)
	assert.Equal(t, float64(clk.now.Unix()), doc["timestamp"])
	assert.Equal(t, "five-renamed", doc["username"])
	assert.Equal(t, true, doc["is_creator"])
	assert.Equal(t, true, doc["is_winner"], "earlier flags survive the merge")
	assert.Equal(t, 1, users.Len())

	assert.Equal(t, []string{"five", "five-renamed"}, s.Counterparties())
}

func TestUpsertUserNameOnly(t *testing.T) {
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	s, st := newTestSyncer(t, &fakeAPI{}, clk)
	ctx := context.Background()

	require.NoError(t, s.UpsertUser(ctx, models.User{Username: "anon"}, ModeDefault, false))
	require.NoError(t, s.UpsertUser(ctx, models.User{Username: "anon"}, ModeDefault, true))

	usernames, err := st.Collection(store.Usernames)
	require.NoError(t, err)
	assert.Equal(t, 1, usernames.Len())

	users, err := st.Collection(store.Users)
	require.NoError(t, err)
	assert.Zero(t, users.Len(), "name-only users never reach the users collection")
}

func TestEndedGiveawaysOrder(t *testing.T) {
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	s, st := newTestSyncer(t, &fakeAPI{}, clk)
	ctx := context.Background()

	giveaways, err := st.Collection(store.Giveaways)
	require.NoError(t, err)
	_, err = giveaways.InsertMultiple(ctx, []store.Document{
		{"id": 7, "end_timestamp": 500, "entry_count": 1},
		{"id": 4, "end_timestamp": 500, "entry_count": 1},
		{"id": 9, "end_timestamp": 100, "entry_count": 1},
		{"id": 1, "end_timestamp": clk.now.Unix(), "entry_count": 1},
	})
	require.NoError(t, err)

	ended, err := s.EndedGiveaways()
	require.NoError(t, err)
	var ids []int64
	for _, g := range ended {
		ids = append(ids, g.ID)
	}
	assert.Equal(t, []int64{9, 4, 7}, ids, "ends at now are not ended yet")
}

func TestRunHonoursCancellation(t *testing.T) {
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	api := fixture(clk.now)
	s, _ := newTestSyncer(t, api, clk)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Run(ctx, false)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessGiveawayResumesAtOffset(t *testing.T) {
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	api := &fakeAPI{entries: map[int64][]string{42: entrants("p", 120)}, failPage: map[int64]int{}}
	s, st := newTestSyncer(t, api, clk)
	ctx := context.Background()

	g := models.Giveaway{ID: 42, Link: "https://sg/giveaway/ZZZZZ/z", EndTimestamp: clk.now.Add(-time.Hour).Unix(), EntryCount: 120, EntriesPageOffset: 2}
	giveaways, err := st.Collection(store.Giveaways)
	require.NoError(t, err)
	doc, err := store.Encode(g)
	require.NoError(t, err)
	_, err = giveaways.Insert(ctx, doc)
	require.NoError(t, err)

	result := &Result{}
	require.NoError(t, s.ProcessGiveaway(ctx, g, "me", false, result))
	assert.Equal(t, []string{"entries 42/3", "entries 42/4", "entries 42/5"}, api.entryCalls())
	assert.Equal(t, 3, result.Pages)
	assert.Equal(t, float64(5), offset(t, st, 42))
	assert.Equal(t, 70, result.UsernamesAdded)
}
