package main

import (
	"sgsync/pkg/filter"
	"sgsync/pkg/snapshot"
	"sgsync/pkg/steamgifts"
	"sgsync/pkg/syncer"
	"sgsync/pkg/whitelist"

	"github.com/spf13/cobra"
)

var (
	whitelistNoCache bool
	whitelistSource  string
	whitelistExplain bool
)

var whitelistCmd = &cobra.Command{
	Use:   "whitelist",
	Short: "Print allow-list members recommended for removal",
	Long: `Collect the public statistics and reputation flags of every user on your
allow-list (or every counterparty in the sync cache) and print the profile URL
of each user the filter recommends removing, one per line on stdout.

The first matching rule decides:
  1. remove: the profile is private and has wins
  2. remove: not activated wins are an outlier (above Q3 + 1.5 IQR)
  3. remove: multiple wins are an outlier
  4. keep:   they win less often per year than you do
  5. remove: their real value ratio is below yours
  6. remove: they won nothing of value and sent less real value than you
  7. keep

Collected data is reused for a week unless --no-cache is given.`,
	Example: `  # Review the allow-list
  sgsync whitelist

  # Judge everyone met through giveaways instead
  sgsync sync && sgsync whitelist --source cache

  # Save the list
  sgsync whitelist -q > remove.txt`,
	Args: cobra.NoArgs,
	RunE: runWhitelist,
}

func init() {
	whitelistCmd.Flags().BoolVar(&whitelistNoCache, "no-cache", false, "collect again even when the snapshot is fresh")
	whitelistCmd.Flags().StringVar(&whitelistSource, "source", "whitelist", "where usernames come from (whitelist, cache)")
	whitelistCmd.Flags().BoolVar(&whitelistExplain, "explain", false, "print the thresholds and the rule behind each removal")
	rootCmd.AddCommand(whitelistCmd)
}

func runWhitelist(cmd *cobra.Command, args []string) error {
	source, err := whitelist.ParseSource(whitelistSource)
	if err != nil {
		return err
	}

	a, err := newApp("whitelist")
	if err != nil {
		return err
	}
	defer a.Close()

	method, err := filter.ParseQuartileMethod(a.cfg.Filter.QuartileMethod)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	var cache whitelist.CounterpartySource
	if source == whitelist.SourceCache {
		s, err := syncer.New(a.steamgifts, a.store, syncer.Options{
			GiveawayTTL: a.cfg.Cache.GiveawayTTL,
			UserTTL:     a.cfg.Cache.UserTTL,
		}, a.log)
		if err != nil {
			return err
		}
		cache = s
	}

	snap := snapshot.NewManager(a.cfg.Cache.SnapshotPath, a.cfg.Cache.SnapshotTTL, a.log)
	collector := whitelist.NewCollector(a.steamgifts, a.reputation, cache, snap, a.log)

	data, err := collector.Load(ctx, source, whitelistNoCache)
	if err != nil {
		return err
	}

	report := filter.New(method, nil).Apply(data)
	a.log.InfoWithFields("Filter applied", map[string]interface{}{
		"users":  len(data.Users),
		"remove": len(report.Remove),
		"method": string(method),
	})

	if whitelistExplain {
		a.printer.PrintConditions(report.Conditions)
		a.printer.PrintRuleCounts(report)
	}

	baseURL := a.cfg.SteamGifts.BaseURL
	a.printer.PrintRemovals(report.Remove, func(name string) string {
		return steamgifts.UserURL(baseURL, name)
	})
	return nil
}
