// Package retry provides exponential backoff and retry logic for transient
// failures talking to SteamGifts.
//
// Only typed transient failures (network errors, HTTP 429, HTTP 5xx) are
// retried. Exhausting MaxAttempts returns an error wrapping ErrMaxAttempts and
// the last failure.
//
//	cfg := &retry.Config{
//		MaxAttempts: 8,
//		Backoff:     retry.NewErrorTypeBackoff(retry.DefaultExponentialBackoff()),
//		Context:     ctx,
//		Logger:      logger.GetLogger(),
//	}
//	resp, err := retry.DoWithResult(func() (*Response, error) {
//		return attempt(ctx)
//	}, cfg)
//
// Throttling (HTTP 429) backs off three times slower than other failures.
package retry
