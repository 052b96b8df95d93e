// Package syncer keeps the local cache in step with the account's giveaways.
//
// A run probes the session, refreshes the giveaway list when the cached one is
// stale, and then walks every ended giveaway oldest first. For each one it
// records the acknowledged winners (my giveaways) or the creator (my received
// wins), then pages through the entrants. The page offset is written after
// every page, so an interrupted run resumes where it stopped.
//
//	s, err := syncer.New(api, st, syncer.DefaultOptions(), log)
//	result, err := s.Run(ctx, noCache)
//	if errors.Is(err, errs.ErrAuthExpired) {
//	    // renew the PHPSESSID cookie
//	}
package syncer
