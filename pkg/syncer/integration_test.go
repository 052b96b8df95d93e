package syncer

import (
	"context"
	"net/http"
	"testing"
	"time"

	"sgsync/internal/fakesg"
	"sgsync/pkg/client"
	errs "sgsync/pkg/errors"
	"sgsync/pkg/logger"
	"sgsync/pkg/models"
	"sgsync/pkg/retry"
	"sgsync/pkg/steamgifts"
	"sgsync/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSiteAPI(t *testing.T, srv *fakesg.Server, cookie string) *steamgifts.API {
	t.Helper()
	c, err := client.New(client.Options{
		BaseURL: srv.URL(),
		Cookie:  cookie,
		Timeout: 5 * time.Second,
		Retry:   &retry.Config{MaxAttempts: 2, Backoff: &retry.ConstantBackoff{}},
		Logger:  logger.NewNopLogger(),
	})
	require.NoError(t, err)
	return steamgifts.New(c, "", logger.NewNopLogger())
}

func TestSyncAgainstSite(t *testing.T) {
	srv := fakesg.New("session", "me")
	defer srv.Close()

	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	received := true
	srv.AddCreated(models.Giveaway{
		ID: 1, Link: srv.GiveawayLink("AAAAA"), EndTimestamp: clk.now.Add(-time.Hour).Unix(), EntryCount: 26,
		Creator: models.User{ID: 1, SteamID: "s-me", Username: "me"},
		Winners: []models.Winner{{User: models.User{ID: 2, SteamID: "s-w", Username: "winner"}, Received: true}},
	})
	srv.AddWon(models.Giveaway{
		ID: 2, Link: srv.GiveawayLink("BBBBB"), EndTimestamp: clk.now.Add(-2 * time.Hour).Unix(), EntryCount: 3,
		Creator:  models.User{ID: 3, SteamID: "s-gifter", Username: "gifter"},
		Received: &received,
	})
	srv.SetEntries("AAAAA", entrants("a", 26))
	srv.SetEntries("BBBBB", entrants("b", 3))

	s, st := newTestSyncer(t, newSiteAPI(t, srv, "session"), clk)
	ctx := context.Background()

	// second page of the first giveaway fails past every retry
	srv.Fail("/giveaway/AAAAA/game-aaaaa/entries/search", http.StatusServiceUnavailable, -1)
	_, err := s.Run(ctx, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrRequestFailed)
	assert.Equal(t, float64(1), offset(t, st, 2))
	assert.Equal(t, float64(1), offset(t, st, 1))

	srv.ClearFailures()
	srv.ResetRequests()
	_, err = s.Run(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, float64(2), offset(t, st, 1))
	assert.Equal(t, 0, srv.Count("/user/me"), "fresh giveaway list is not refetched")
	assert.Equal(t, 0, srv.Count("/giveaway/BBBBB"), "completed giveaways are skipped")
	assert.Equal(t, 1, srv.Count("/giveaway/AAAAA"))

	names := s.Counterparties()
	assert.Len(t, names, 26+3+2)
	assert.Contains(t, names, "gifter")
	assert.Contains(t, names, "winner")

	users, err := st.Collection(store.Users)
	require.NoError(t, err)
	assert.True(t, users.Contains(store.Where("steam_id").Eq("s-gifter").And(store.Where("is_creator").Eq(true))))
	assert.True(t, users.Contains(store.Where("steam_id").Eq("s-w").And(store.Where("is_winner").Eq(true))))

	// the cookie expires between runs
	srv.SetSession("rotated")
	srv.ResetRequests()
	_, err = s.Run(ctx, false)
	assert.ErrorIs(t, err, errs.ErrAuthExpired)
	assert.Equal(t, []string{"HEAD /account/settings/profile"}, srv.Requests())
}
