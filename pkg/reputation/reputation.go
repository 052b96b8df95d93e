// Package reputation looks up won games a user never activated and games a user
// won more than once on the sgtools reputation pages.
package reputation

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"sgsync/pkg/client"
	errs "sgsync/pkg/errors"
	"sgsync/pkg/htmlq"
	"sgsync/pkg/logger"
	"sgsync/pkg/models"
)

const (
	notActivatedPath = "/nonactivated/"
	multiplePath     = "/multiple/"
	privateMarker    = "has a private profile"
)

// Parser extracts flags from the two reputation pages
type Parser interface {
	// NotActivated returns the listed games; private is set when the
	// profile could not be checked.
	NotActivated(page []byte) (games []string, private bool)
	MultipleWins(page []byte) []string
}

// HTMLParser reads the sgtools markup
type HTMLParser struct{}

// NotActivated lists .notActivatedGame entries unless the page reports a private profile
func (HTMLParser) NotActivated(page []byte) ([]string, bool) {
	if bytes.Contains(page, []byte(privateMarker)) {
		return []string{}, true
	}
	return textOf(page, ".notActivatedGame"), false
}

// MultipleWins lists .multiplewins entries
func (HTMLParser) MultipleWins(page []byte) []string {
	return textOf(page, ".multiplewins")
}

func textOf(page []byte, selector string) []string {
	doc, err := htmlq.Parse(page)
	if err != nil {
		return []string{}
	}
	return htmlq.TextAll(doc, selector)
}

// Client fetches reputation pages through the shared rate limited client
type Client struct {
	http    *client.Client
	baseURL string
	parser  Parser
	logger  logger.Logger
}

// New creates a reputation client. A nil parser uses HTMLParser.
func New(c *client.Client, baseURL string, parser Parser, log logger.Logger) *Client {
	if parser == nil {
		parser = HTMLParser{}
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Client{
		http:    c,
		baseURL: strings.TrimRight(baseURL, "/"),
		parser:  parser,
		logger:  log.WithField("component", "reputation"),
	}
}

// Flags fetches both pages for username. A non-200 answer on either page is
// errors.ErrNotFound.
func (c *Client) Flags(ctx context.Context, username string) (models.Flags, error) {
	naPage, err := c.page(ctx, notActivatedPath, username)
	if err != nil {
		return models.Flags{}, err
	}
	mwPage, err := c.page(ctx, multiplePath, username)
	if err != nil {
		return models.Flags{}, err
	}

	games, private := c.parser.NotActivated(naPage)
	flags := models.Flags{
		NotActivated: games,
		Multiple:     c.parser.MultipleWins(mwPage),
		Unknown:      private,
	}
	if flags.NotActivated == nil {
		flags.NotActivated = []string{}
	}
	if flags.Multiple == nil {
		flags.Multiple = []string{}
	}

	c.logger.DebugWithFields("Reputation flags", map[string]interface{}{
		"username":      username,
		"not_activated": len(flags.NotActivated),
		"multiple":      len(flags.Multiple),
		"unknown":       flags.Unknown,
	})
	return flags, nil
}

func (c *Client) page(ctx context.Context, path, username string) ([]byte, error) {
	u := c.baseURL + path + url.PathEscape(username)
	resp, err := c.http.GetNoRedirect(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("reputation lookup: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		e := errs.New(errs.ErrorTypeNotFound, resp.StatusCode, "no reputation page for %q", username)
		e.URL = u
		return nil, e
	}
	return resp.Body, nil
}
