package steamgifts

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"sgsync/pkg/client"
	errs "sgsync/pkg/errors"
	"sgsync/pkg/htmlq"
	"sgsync/pkg/logger"
	"sgsync/pkg/models"

	"golang.org/x/net/html"
)

// maxWhitelistPages bounds the allow-list export if the pagination markup changes
const maxWhitelistPages = 1000

// API wraps the SteamGifts pages and JSON endpoints used by the sync
type API struct {
	client  *client.Client
	baseURL string
	logger  logger.Logger

	mu sync.Mutex
	me string
}

// New creates an API on top of c. username may be empty, in which case it is
// read from the settings page on first use.
func New(c *client.Client, username string, log logger.Logger) *API {
	if log == nil {
		log = logger.GetLogger()
	}
	return &API{
		client:  c,
		baseURL: c.BaseURL(),
		logger:  log.WithField("component", "steamgifts"),
		me:      username,
	}
}

// BaseURL returns the site root
func (a *API) BaseURL() string {
	return a.baseURL
}

// IsLoggedIn probes the settings page; a redirect means the session is gone.
func (a *API) IsLoggedIn(ctx context.Context) (bool, error) {
	return a.client.Probe(ctx, a.baseURL+SettingsPath)
}

// CheckSession returns errors.ErrAuthExpired when the session is not accepted
func (a *API) CheckSession(ctx context.Context) error {
	ok, err := a.IsLoggedIn(ctx)
	if err != nil {
		return fmt.Errorf("probe session: %w", err)
	}
	if !ok {
		return authExpired()
	}
	return nil
}

// Me returns the logged in username
func (a *API) Me(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.me != "" {
		return a.me, nil
	}
	name, err := a.MyUsername(ctx)
	if err != nil {
		return "", err
	}
	a.me = name
	return name, nil
}

// MyUsername reads the logged in username from the settings page
func (a *API) MyUsername(ctx context.Context) (string, error) {
	resp, err := a.client.GetNoRedirect(ctx, a.baseURL+SettingsPath, nil)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", authExpired()
	}
	return ParseUsername(resp.Body)
}

// FetchGiveaways returns the giveaways created (won=false, winners included)
// or won by username.
func (a *API) FetchGiveaways(ctx context.Context, username string, won bool) ([]models.Giveaway, error) {
	u, params := CreatedURL(a.baseURL, username)
	kind := "created"
	if won {
		u, params = WonURL(a.baseURL, username)
		kind = "won"
	}

	var list models.GiveawayListResponse
	if err := a.client.GetJSON(ctx, u, params, &list); err != nil {
		return nil, fmt.Errorf("fetch %s giveaways: %w", kind, err)
	}

	a.logger.DebugWithFields("Fetched giveaway list", map[string]interface{}{
		"kind":  kind,
		"count": len(list.Results),
	})
	return list.Results, nil
}

// FetchEntriesPage returns the entrant names on one page of a giveaway
func (a *API) FetchEntriesPage(ctx context.Context, g models.Giveaway, page int) ([]string, error) {
	u, params := EntriesURL(g.Link, page)
	resp, err := a.client.Get(ctx, u, params)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		e := errs.New(errs.TypeForStatus(resp.StatusCode), resp.StatusCode, "entries page %d", page)
		e.URL = resp.URL
		return nil, e
	}

	doc, err := htmlq.Parse(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeMalformed, err, "parse entries page %d", page)
	}
	return htmlq.TextAll(doc, "a.table__column__heading"), nil
}

// FetchProfile reads the statistics on a user page. A redirect or any non-200
// answer is errors.ErrNotFound. A page that cannot be fully read yields the
// fields that could be read and a warning.
func (a *API) FetchProfile(ctx context.Context, username string) (models.Profile, error) {
	resp, err := a.client.GetNoRedirect(ctx, UserURL(a.baseURL, username), nil)
	if err != nil {
		return models.Profile{}, err
	}
	if resp.StatusCode != http.StatusOK {
		e := errs.New(errs.ErrorTypeNotFound, resp.StatusCode, "no user %q", username)
		e.URL = resp.URL
		return models.Profile{}, e
	}

	p, err := ParseProfile(resp.Body)
	if err != nil {
		a.logger.WarnWithFields("Could not read every profile statistic", map[string]interface{}{
			"username": username,
			"error":    err.Error(),
		})
	}
	return p, nil
}

// ExportWhitelist returns every name on the allow-list, following the pagination
// until the last navigation link is the selected page.
func (a *API) ExportWhitelist(ctx context.Context) ([]string, error) {
	var names []string
	for page := 1; page <= maxWhitelistPages; page++ {
		a.logger.InfoWithFields("Retrieving allow-list", map[string]interface{}{"page": page})

		u, params := WhitelistURL(a.baseURL, page)
		resp, err := a.client.GetNoRedirect(ctx, u, params)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, authExpired()
		}

		doc, err := htmlq.Parse(resp.Body)
		if err != nil {
			return nil, errs.Wrap(errs.ErrorTypeMalformed, err, "parse allow-list page %d", page)
		}
		pageNames := htmlq.TextAll(doc, ".table__column__heading")
		names = append(names, pageNames...)

		if len(pageNames) == 0 || lastPage(doc) {
			break
		}
	}

	a.logger.InfoWithFields("Allow-list exported", map[string]interface{}{"count": len(names)})
	return names, nil
}

func lastPage(doc *html.Node) bool {
	nav := htmlq.QuerySelector(doc, ".pagination__navigation")
	if nav == nil {
		return true
	}
	last := htmlq.LastElementChild(nav)
	return last == nil || htmlq.HasClass(last, "is-selected")
}

func authExpired() error {
	return &errs.Error{
		Type:    errs.ErrorTypeAuthExpired,
		Message: "session cookie PHPSESSID is no longer accepted, run `sgsync auth login`",
	}
}

// IsAuthExpired reports whether err means the session must be renewed
func IsAuthExpired(err error) bool {
	return errors.Is(err, errs.ErrAuthExpired)
}
