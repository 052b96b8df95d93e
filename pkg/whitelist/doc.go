// Package whitelist collects the statistics of allow-listed users.
//
// The collector reads usernames from the allow-list export or from the sync
// cache, fetches each profile and its reputation flags, and keeps the result
// as a snapshot so that repeated filter runs within a week stay offline.
package whitelist
