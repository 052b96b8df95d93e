package main

import (
	"sgsync/pkg/syncer"

	"github.com/spf13/cobra"
)

var syncNoCache bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Update the cache of giveaways and counterparties",
	Long: `Synchronise the giveaways you created and won, and every user involved in
them, into the local cache.

Entrant pages are fetched incrementally: a giveaway that was fully read is
skipped and an interrupted one resumes at the next unread page. Users seen
within the last week are not rewritten.`,
	Example: `  # Incremental update
  sgsync sync

  # Ignore every cached record and start over
  sgsync sync --no-cache`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncNoCache, "no-cache", false, "refetch everything regardless of freshness")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	a, err := newApp("sync")
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signalContext()
	defer stop()

	s, err := syncer.New(a.steamgifts, a.store, syncer.Options{
		GiveawayTTL: a.cfg.Cache.GiveawayTTL,
		UserTTL:     a.cfg.Cache.UserTTL,
	}, a.log)
	if err != nil {
		return err
	}

	result, err := s.Run(ctx, syncNoCache)
	if err != nil {
		a.log.WithError(err).Error("Synchronisation stopped")
		return err
	}
	a.printer.PrintSyncResult(result)
	return nil
}
