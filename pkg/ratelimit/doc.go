// Package ratelimit keeps outgoing SteamGifts traffic inside the service quotas.
//
// Implementations:
//
// Sliding Window:
//   - Tracks admitted requests within a moving time window
//   - A request is admitted only while fewer than the limit fall inside the window
//
// Multi:
//   - Combines several sliding windows (per second, minute, hour, day)
//   - Admits a request only when every window has capacity, sleeping otherwise
//   - Optionally persists admissions through a Journal so the hour and day
//     budgets survive restarts
//
// Usage:
//
//	limiter, err := ratelimit.NewMulti([]ratelimit.Rate{
//	    {Limit: 4, Interval: time.Second},
//	    {Limit: 120, Interval: time.Minute},
//	    {Limit: 2400, Interval: time.Hour},
//	    {Limit: 14400, Interval: 24 * time.Hour},
//	}, ratelimit.WithJournal(store.RequestLog()))
//
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
//	// proceed with request
package ratelimit
