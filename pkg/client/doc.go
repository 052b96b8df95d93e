// Package client is the rate limited HTTP client used for every SteamGifts and
// reputation lookup.
//
// Each attempt first waits on the configured limiter, so the per second,
// minute, hour and day quotas are never exceeded. Connection failures, 5xx and
// 429 answers are retried with backoff; when the attempts run out the error
// matches errors.ErrRequestFailed. Any other status is returned as a normal
// Response.
//
//	c, err := client.New(client.Options{
//	    BaseURL: config.DefaultBaseURL,
//	    Cookie:  cookie,
//	    Limiter: limiter,
//	})
//	ok, err := c.Probe(ctx, c.BaseURL()+"/account/settings/profile")
package client
