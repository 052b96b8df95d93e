package steamgifts

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// SettingsPath is only reachable with a valid session
	SettingsPath = "/account/settings/profile"

	// WhitelistPath lists the allow-list, one page per request
	WhitelistPath = "/account/manage/whitelist/search"

	// UserPath is the public profile of a user
	UserPath = "/user/"
)

// UserURL returns the public profile URL of name
func UserURL(baseURL, name string) string {
	return strings.TrimRight(baseURL, "/") + UserPath + name
}

// CreatedURL returns the JSON list of giveaways created by name, winners included
func CreatedURL(baseURL, name string) (string, url.Values) {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("include_winners", "1")
	return strings.TrimRight(baseURL, "/") + UserPath + url.PathEscape(name), params
}

// WonURL returns the JSON list of giveaways won by name
func WonURL(baseURL, name string) (string, url.Values) {
	params := url.Values{}
	params.Set("format", "json")
	return fmt.Sprintf("%s%s%s/giveaways/won", strings.TrimRight(baseURL, "/"), UserPath, url.PathEscape(name)), params
}

// EntriesURL returns the entrant page URL of a giveaway; page 1 has no search suffix
func EntriesURL(link string, page int) (string, url.Values) {
	u := strings.TrimRight(link, "/") + "/entries"
	if page <= 1 {
		return u, nil
	}
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	return u + "/search", params
}

// WhitelistURL returns the allow-list page URL
func WhitelistURL(baseURL string, page int) (string, url.Values) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	return strings.TrimRight(baseURL, "/") + WhitelistPath, params
}
