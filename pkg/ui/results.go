package ui

import (
	"fmt"
	"sort"

	"sgsync/pkg/filter"
	"sgsync/pkg/syncer"
)

// PrintRemovals writes the header to Err and one profile URL per line to Out
func (p *Printer) PrintRemovals(names []string, urlFor func(string) string) {
	n := len(names)
	plural := "s"
	if n == 1 {
		plural = ""
	}
	if !p.quiet {
		fmt.Fprintln(p.Err)
		fmt.Fprintln(p.Err, p.paint(Magenta, fmt.Sprintf("Results (total %d user%s):", n, plural)))
	}
	for _, name := range names {
		fmt.Fprintln(p.Out, urlFor(name))
	}
}

// PrintConditions summarises the thresholds of a filter pass
func (p *Printer) PrintConditions(c filter.Conditions) {
	p.PrintInfo("Minimum real value sent", fmt.Sprintf("%.2f", c.MinSentRealCV))
	p.PrintInfo("Minimum real value ratio", fmt.Sprintf("%.2f", c.MinRatioRealCV))
	p.PrintInfo("Maximum wins per year", fmt.Sprintf("%.1f", c.MaxWonCount))
	p.PrintInfo("Not activated fence", fmt.Sprintf("%.1f", c.NotActivated.Upper))
	p.PrintInfo("Multiple wins fence", fmt.Sprintf("%.1f", c.Multiple.Upper))
}

// PrintRuleCounts prints how many removals each rule produced
func (p *Printer) PrintRuleCounts(r filter.Report) {
	counts := make(map[filter.Rule]int)
	for _, name := range r.Remove {
		counts[r.Decisions[name].Rule]++
	}
	rules := make([]filter.Rule, 0, len(counts))
	for rule := range counts {
		rules = append(rules, rule)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i] < rules[j] })
	for _, rule := range rules {
		p.PrintInfo(rule.String(), fmt.Sprintf("%d", counts[rule]))
	}
}

// PrintSyncResult summarises a synchronisation run
func (p *Printer) PrintSyncResult(r *syncer.Result) {
	if r == nil {
		return
	}
	p.PrintSuccess("Synchronisation complete")
	p.PrintInfo("Ended giveaways", fmt.Sprintf("%d (%d processed, %d already complete)", r.Ended, r.Processed, r.Skipped))
	p.PrintInfo("Entry pages", fmt.Sprintf("%d", r.Pages))
	p.PrintInfo("Users updated", fmt.Sprintf("%d", r.UsersUpserted))
	p.PrintInfo("New usernames", fmt.Sprintf("%d", r.UsernamesAdded))
	p.PrintDuration("Duration", r.Duration)
}
