// Package steamgifts reads the SteamGifts pages and JSON endpoints: the session
// probe, the created and won giveaway lists, giveaway entrant pages, user
// statistics and the allow-list export.
//
// All requests go through a client.Client, so they share one rate limiter and
// one retry policy. A session the site no longer accepts is reported as
// errors.ErrAuthExpired; a missing or private user as errors.ErrNotFound.
package steamgifts
