package steamgifts

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	errs "sgsync/pkg/errors"
	"sgsync/pkg/htmlq"
	"sgsync/pkg/models"

	"golang.org/x/net/html"
)

var userHrefPattern = regexp.MustCompile(`/user/(.+)`)

// tooltip is the JSON carried in data-ui-tooltip attributes
type tooltip struct {
	Rows []struct {
		Columns []struct {
			Name cell `json:"name"`
		} `json:"columns"`
	} `json:"rows"`
}

// cell accepts both JSON strings and numbers
type cell string

func (c *cell) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = cell(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*c = cell(n.String())
	return nil
}

func (t tooltip) value(row int) (string, error) {
	if row >= len(t.Rows) || len(t.Rows[row].Columns) < 2 {
		return "", fmt.Errorf("tooltip row %d missing", row)
	}
	return string(t.Rows[row].Columns[1].Name), nil
}

// ParseProfile extracts registration date and gift statistics from a user page.
// Rows that cannot be read are left at zero and reported in the returned error.
func ParseProfile(body []byte) (models.Profile, error) {
	var p models.Profile
	doc, err := htmlq.Parse(body)
	if err != nil {
		return p, errs.Wrap(errs.ErrorTypeMalformed, err, "parse user page")
	}

	var problems []error
	for _, left := range htmlq.QuerySelectorAll(doc, ".featured__table__row__left") {
		right := htmlq.NextElementSibling(left)
		label := htmlq.Text(left)
		switch label {
		case "Registered":
			if err := parseRegistered(right, &p); err != nil {
				problems = append(problems, err)
			}
		case "Gifts Won":
			if err := parseWon(right, &p); err != nil {
				problems = append(problems, err)
			}
		case "Gifts Sent":
			if err := parseSent(right, &p); err != nil {
				problems = append(problems, err)
			}
		}
	}

	p.ComputeRatios()
	if len(problems) > 0 {
		return p, errs.Wrap(errs.ErrorTypeMalformed, errors.Join(problems...), "user page")
	}
	return p, nil
}

// ParseUsername returns the logged in user from the navigation avatar link
func ParseUsername(body []byte) (string, error) {
	doc, err := htmlq.Parse(body)
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeMalformed, err, "parse settings page")
	}
	avatar := htmlq.QuerySelector(doc, ".nav__avatar-outer-wrap")
	if avatar == nil {
		return "", errs.New(errs.ErrorTypeMalformed, 0, "avatar link not found")
	}
	m := userHrefPattern.FindStringSubmatch(htmlq.Attr(avatar, "href"))
	if m == nil {
		return "", errs.New(errs.ErrorTypeMalformed, 0, "avatar link has no user")
	}
	return m[1], nil
}

func parseRegistered(right *html.Node, p *models.Profile) error {
	if right == nil {
		return errors.New("registered: no value")
	}
	span := htmlq.QuerySelector(right, "span")
	if span == nil {
		return errors.New("registered: no timestamp")
	}
	ts, err := strconv.ParseInt(htmlq.Attr(span, "data-timestamp"), 10, 64)
	if err != nil {
		return fmt.Errorf("registered: %w", err)
	}
	p.RegistrationDate = ts
	return nil
}

// statsTooltips returns the count tooltip, the value tooltip and the value text.
func statsTooltips(right *html.Node, label string) (tooltip, tooltip, string, error) {
	var counts, values tooltip
	if right == nil {
		return counts, values, "", fmt.Errorf("%s: no value", label)
	}
	nodes := htmlq.QuerySelectorAll(right, "[data-ui-tooltip]")
	if len(nodes) < 2 {
		return counts, values, "", fmt.Errorf("%s: expected 2 tooltips, got %d", label, len(nodes))
	}
	if err := json.Unmarshal([]byte(htmlq.Attr(nodes[0], "data-ui-tooltip")), &counts); err != nil {
		return counts, values, "", fmt.Errorf("%s: %w", label, err)
	}
	if err := json.Unmarshal([]byte(htmlq.Attr(nodes[1], "data-ui-tooltip")), &values); err != nil {
		return counts, values, "", fmt.Errorf("%s: %w", label, err)
	}
	return counts, values, htmlq.Text(nodes[1]), nil
}

func parseWon(right *html.Node, p *models.Profile) error {
	counts, values, cvText, err := statsTooltips(right, "gifts won")
	if err != nil {
		return err
	}
	var r rowReader
	p.WonCount = r.count(counts, 0)
	p.WonFull = r.count(counts, 1)
	p.WonReduced = r.count(counts, 2)
	p.WonZero = r.count(counts, 3)
	p.WonNotReceived = r.count(counts, 4)
	p.WonCV = r.money(cvText)
	p.WonRealCV = r.moneyRow(values, 0)
	return r.err("gifts won")
}

func parseSent(right *html.Node, p *models.Profile) error {
	counts, values, cvText, err := statsTooltips(right, "gifts sent")
	if err != nil {
		return err
	}
	var r rowReader
	p.SentCount = r.count(counts, 0)
	p.SentFull = r.count(counts, 1)
	p.SentReduced = r.count(counts, 2)
	p.SentZero = r.count(counts, 3)
	p.SentAwaiting = r.count(counts, 4)
	p.SentNotReceived = r.count(counts, 5)
	p.SentCV = r.money(cvText)
	p.SentRealCV = r.moneyRow(values, 0)
	return r.err("gifts sent")
}

// rowReader collects the first conversion failure
type rowReader struct {
	first error
}

func (r *rowReader) count(t tooltip, row int) int {
	s, err := t.value(row)
	if err != nil {
		r.fail(err)
		return 0
	}
	n, err := strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
	if err != nil {
		r.fail(err)
		return 0
	}
	return n
}

func (r *rowReader) moneyRow(t tooltip, row int) float64 {
	s, err := t.value(row)
	if err != nil {
		r.fail(err)
		return 0
	}
	return r.money(s)
}

func (r *rowReader) money(s string) float64 {
	clean := strings.NewReplacer(",", "", "$", "").Replace(strings.TrimSpace(s))
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		r.fail(err)
		return 0
	}
	return v
}

func (r *rowReader) fail(err error) {
	if r.first == nil {
		r.first = err
	}
}

func (r *rowReader) err(label string) error {
	if r.first == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", label, r.first)
}
