// Package fakesg is an in-process stand-in for the SteamGifts web site and the
// sgtools reputation pages, used by tests.
package fakesg

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"sgsync/pkg/models"
)

// EntriesPerPage matches the page size of the real entrant and whitelist lists
const EntriesPerPage = 25

// ProfilePage is the data rendered on a /user/{name} page
type ProfilePage struct {
	Registered int64
	// count, full, reduced, zero, not received
	Won       [5]int
	WonCV     float64
	WonRealCV float64
	// count, full, reduced, zero, awaiting feedback, not received
	Sent       [6]int
	SentCV     float64
	SentRealCV float64
}

type failure struct {
	status    int
	remaining int
}

// Server simulates the SteamGifts and sgtools endpoints
type Server struct {
	server *httptest.Server

	mu           sync.RWMutex
	session      string
	me           string
	created      []models.Giveaway
	won          []models.Giveaway
	entries      map[string][]string
	profiles     map[string]ProfilePage
	notActivated map[string][]string
	multiple     map[string][]string
	private      map[string]bool
	whitelist    []string
	failures     map[string]*failure
	requests     []string
}

// New starts a server accepting session as the PHPSESSID cookie of user me
func New(session, me string) *Server {
	s := &Server{
		session:      session,
		me:           me,
		entries:      make(map[string][]string),
		profiles:     make(map[string]ProfilePage),
		notActivated: make(map[string][]string),
		multiple:     make(map[string][]string),
		private:      make(map[string]bool),
		failures:     make(map[string]*failure),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /account/settings/profile", s.handleSettings)
	mux.HandleFunc("GET /account/manage/whitelist/search", s.handleWhitelist)
	mux.HandleFunc("GET /user/{name}", s.handleUser)
	mux.HandleFunc("GET /user/{name}/giveaways/won", s.handleWon)
	mux.HandleFunc("GET /giveaway/{code}/{slug}/entries", s.handleEntries)
	mux.HandleFunc("GET /giveaway/{code}/{slug}/entries/search", s.handleEntries)
	mux.HandleFunc("GET /nonactivated/{name}", s.handleNotActivated)
	mux.HandleFunc("GET /multiple/{name}", s.handleMultiple)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			_, _ = w.Write([]byte("<html><body>home</body></html>"))
			return
		}
		http.NotFound(w, r)
	})

	s.server = httptest.NewServer(s.intercept(mux))
	return s
}

// URL returns the base URL of the server
func (s *Server) URL() string {
	return s.server.URL
}

// Close shuts down the server
func (s *Server) Close() {
	s.server.Close()
}

// SetSession replaces the accepted session cookie
func (s *Server) SetSession(session string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = session
}

// GiveawayLink returns the absolute link of giveaway code on this server
func (s *Server) GiveawayLink(code string) string {
	return fmt.Sprintf("%s/giveaway/%s/game-%s", s.server.URL, code, strings.ToLower(code))
}

// AddCreated publishes a giveaway created by the logged in user
func (s *Server) AddCreated(g models.Giveaway) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, g)
}

// AddWon publishes a giveaway won by the logged in user
func (s *Server) AddWon(g models.Giveaway) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.won = append(s.won, g)
}

// SetEntries sets the entrant names of giveaway code
func (s *Server) SetEntries(code string, names []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[code] = names
}

// SetProfile publishes a user profile page
func (s *Server) SetProfile(name string, p ProfilePage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[name] = p
}

// SetReputation publishes the sgtools pages of a user
func (s *Server) SetReputation(name string, notActivated, multiple []string, private bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notActivated[name] = notActivated
	s.multiple[name] = multiple
	s.private[name] = private
}

// SetWhitelist sets the allow-list of the logged in user
func (s *Server) SetWhitelist(names []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.whitelist = names
}

// Fail answers the next times requests whose path starts with prefix with
// status. A negative times fails forever.
func (s *Server) Fail(prefix string, status, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[prefix] = &failure{status: status, remaining: times}
}

// ClearFailures removes every configured failure
func (s *Server) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]*failure)
}

// Requests returns "METHOD /path?query" for every request served
func (s *Server) Requests() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.requests...)
}

// Count returns the number of requests whose path starts with prefix
func (s *Server) Count(prefix string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.requests {
		_, uri, _ := strings.Cut(r, " ")
		if strings.HasPrefix(uri, prefix) {
			n++
		}
	}
	return n
}

// ResetRequests clears the request log
func (s *Server) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

func (s *Server) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.RequestURI())
		status := 0
		for prefix, f := range s.failures {
			if !strings.HasPrefix(r.URL.Path, prefix) || f.remaining == 0 {
				continue
			}
			if f.remaining > 0 {
				f.remaining--
			}
			status = f.status
			break
		}
		s.mu.Unlock()

		if status != 0 {
			w.WriteHeader(status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggedIn(r *http.Request) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := r.Cookie("PHPSESSID")
	return err == nil && s.session != "" && c.Value == s.session
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if !s.loggedIn(r) {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	s.mu.RLock()
	me := s.me
	s.mu.RUnlock()
	fmt.Fprintf(w, `<html><body><header><a class="nav__avatar-outer-wrap" href="/user/%s"><div class="nav__avatar-inner-wrap"></div></a></header></body></html>`, html.EscapeString(me))
}

func (s *Server) handleWhitelist(w http.ResponseWriter, r *http.Request) {
	if !s.loggedIn(r) {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	s.mu.RLock()
	names := append([]string(nil), s.whitelist...)
	s.mu.RUnlock()

	page := pageParam(r)
	var b strings.Builder
	b.WriteString(`<html><body><div class="table__rows">`)
	for _, name := range window(names, page) {
		fmt.Fprintf(&b, `<div class="table__row-outer-wrap"><div class="table__column--width-fill"><a class="table__column__heading" href="/user/%[1]s">%[1]s</a></div></div>`, html.EscapeString(name))
	}
	b.WriteString(`</div>`)
	writePagination(&b, page, pageCount(len(names)))
	b.WriteString(`</body></html>`)
	_, _ = w.Write([]byte(b.String()))
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if r.URL.Query().Get("format") == "json" {
		s.mu.RLock()
		created := append([]models.Giveaway(nil), s.created...)
		s.mu.RUnlock()
		writeGiveaways(w, created)
		return
	}

	s.mu.RLock()
	p, ok := s.profiles[name]
	s.mu.RUnlock()
	if !ok {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	_, _ = w.Write([]byte(RenderProfile(p)))
}

func (s *Server) handleWon(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	won := append([]models.Giveaway(nil), s.won...)
	s.mu.RUnlock()
	writeGiveaways(w, won)
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	s.mu.RLock()
	names, ok := s.entries[code]
	s.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}

	page := 1
	if strings.HasSuffix(r.URL.Path, "/search") {
		page = pageParam(r)
	}
	var b strings.Builder
	b.WriteString(`<html><body><div class="table__rows">`)
	for _, name := range window(names, page) {
		fmt.Fprintf(&b, `<div class="table__row-outer-wrap"><a class="table__column__heading" href="/user/%[1]s">%[1]s</a></div>`, html.EscapeString(name))
	}
	b.WriteString(`</div>`)
	writePagination(&b, page, pageCount(len(names)))
	b.WriteString(`</body></html>`)
	_, _ = w.Write([]byte(b.String()))
}

func (s *Server) handleNotActivated(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	s.mu.RLock()
	games, ok := s.notActivated[name]
	private := s.private[name]
	s.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	var b strings.Builder
	b.WriteString(`<html><body><div id="data">`)
	if private {
		fmt.Fprintf(&b, `<p>%s has a private profile</p>`, html.EscapeString(name))
	}
	for _, g := range games {
		fmt.Fprintf(&b, `<div class="notActivatedGame">%s</div>`, html.EscapeString(g))
	}
	b.WriteString(`</div></body></html>`)
	_, _ = w.Write([]byte(b.String()))
}

func (s *Server) handleMultiple(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	s.mu.RLock()
	games, ok := s.multiple[name]
	s.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	var b strings.Builder
	b.WriteString(`<html><body><div id="data">`)
	for _, g := range games {
		fmt.Fprintf(&b, `<div class="multiplewins">%s</div>`, html.EscapeString(g))
	}
	b.WriteString(`</div></body></html>`)
	_, _ = w.Write([]byte(b.String()))
}

func writeGiveaways(w http.ResponseWriter, giveaways []models.Giveaway) {
	if giveaways == nil {
		giveaways = []models.Giveaway{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(models.GiveawayListResponse{
		Success: true,
		Page:    1,
		PerPage: 100,
		Results: giveaways,
	})
}

// RenderProfile renders the statistics table of a user page
func RenderProfile(p ProfilePage) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="featured__table">`)
	b.WriteString(`<div class="featured__table__row"><div class="featured__table__row__left">Role</div><div class="featured__table__row__right">Member</div></div>`)
	fmt.Fprintf(&b, `<div class="featured__table__row"><div class="featured__table__row__left">Registered</div><div class="featured__table__row__right"><span data-timestamp="%d">some time ago</span></div></div>`, p.Registered)

	wonLabels := []string{"Gifts Won", "Full CV", "Reduced CV", "No CV", "Not Received"}
	writeStatsRow(&b, "Gifts Won", wonLabels, p.Won[:], p.WonCV, p.WonRealCV)
	sentLabels := []string{"Gifts Sent", "Full CV", "Reduced CV", "No CV", "Awaiting Feedback", "Not Received"}
	writeStatsRow(&b, "Gifts Sent", sentLabels, p.Sent[:], p.SentCV, p.SentRealCV)

	b.WriteString(`</div></body></html>`)
	return b.String()
}

func writeStatsRow(b *strings.Builder, title string, labels []string, counts []int, cv, realCV float64) {
	type column struct {
		Name string `json:"name"`
	}
	type row struct {
		Columns []column `json:"columns"`
	}
	type tooltip struct {
		Rows []row `json:"rows"`
	}

	countTip := tooltip{}
	for i, label := range labels {
		countTip.Rows = append(countTip.Rows, row{Columns: []column{{Name: label}, {Name: thousands(counts[i])}}})
	}
	cvTip := tooltip{Rows: []row{{Columns: []column{{Name: "Real CV"}, {Name: "$" + money(realCV)}}}}}

	countJSON, _ := json.Marshal(countTip)
	cvJSON, _ := json.Marshal(cvTip)

	fmt.Fprintf(b, `<div class="featured__table__row"><div class="featured__table__row__left">%s</div><div class="featured__table__row__right"><span><span data-ui-tooltip="%s">%s</span></span> <span data-ui-tooltip="%s">$%s</span></div></div>`,
		title, html.EscapeString(string(countJSON)), thousands(counts[0]), html.EscapeString(string(cvJSON)), money(cv))
}

func thousands(n int) string {
	s := strconv.Itoa(n)
	if n < 0 || len(s) <= 3 {
		return s
	}
	var out []byte
	pre := len(s) % 3
	if pre > 0 {
		out = append(out, s[:pre]...)
	}
	for i := pre; i < len(s); i += 3 {
		if len(out) > 0 {
			out = append(out, ',')
		}
		out = append(out, s[i:i+3]...)
	}
	return string(out)
}

func money(v float64) string {
	whole := int(v)
	cents := int((v-float64(whole))*100 + 0.5)
	if cents == 100 {
		whole++
		cents = 0
	}
	return fmt.Sprintf("%s.%02d", thousands(whole), cents)
}

func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func pageCount(n int) int {
	return (n + EntriesPerPage - 1) / EntriesPerPage
}

func window(names []string, page int) []string {
	start := (page - 1) * EntriesPerPage
	if start >= len(names) {
		return nil
	}
	end := start + EntriesPerPage
	if end > len(names) {
		end = len(names)
	}
	return names[start:end]
}

func writePagination(b *strings.Builder, page, pages int) {
	if pages == 0 {
		return
	}
	b.WriteString(`<div class="pagination"><div class="pagination__navigation">`)
	for p := 1; p <= pages; p++ {
		class := ""
		if p == page {
			class = ` class="is-selected"`
		}
		fmt.Fprintf(b, `<a href="?page=%[1]d" data-page-number="%[1]d"%[2]s><span>%[1]d</span></a>`, p, class)
	}
	if page < pages {
		fmt.Fprintf(b, `<a href="?page=%[1]d" data-page-number="%[1]d"><span>Next</span></a>`, page+1)
	}
	b.WriteString(`</div></div>`)
}
