package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"sgsync/pkg/filter"
	"sgsync/pkg/syncer"

	"github.com/stretchr/testify/assert"
)

func buffers(quiet bool) (*Printer, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return NewPrinter(&out, &errOut, quiet), &out, &errOut
}

func TestPrintRemovalsKeepsStdoutClean(t *testing.T) {
	p, out, errOut := buffers(false)
	p.PrintRemovals([]string{"alice", "bob"}, func(n string) string { return "https://sg/user/" + n })

	assert.Equal(t, "https://sg/user/alice\nhttps://sg/user/bob\n", out.String())
	assert.Contains(t, errOut.String(), "Results (total 2 users):")
	assert.NotContains(t, errOut.String(), "\033[", "buffers are not terminals")
}

func TestPrintRemovalsSingular(t *testing.T) {
	p, out, errOut := buffers(false)
	p.PrintRemovals(nil, func(n string) string { return n })
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "Results (total 0 users):")

	p, _, errOut = buffers(false)
	p.PrintRemovals([]string{"x"}, func(n string) string { return n })
	assert.Contains(t, errOut.String(), "Results (total 1 user):")
}

func TestQuietSilencesAllButErrors(t *testing.T) {
	p, out, errOut := buffers(true)
	p.PrintLogo()
	p.PrintInfo("a", "b")
	p.PrintSuccess("done")
	p.PrintWarning("careful")
	p.PrintRemovals([]string{"alice"}, func(n string) string { return n })
	assert.Equal(t, "alice\n", out.String())
	assert.Empty(t, errOut.String())

	p.PrintError("session expired", "log in again")
	assert.Equal(t, "session expired: log in again\n", errOut.String())
}

func TestPrintRuleCounts(t *testing.T) {
	p, _, errOut := buffers(false)
	p.PrintRuleCounts(filter.Report{
		Remove: []string{"a", "b", "c"},
		Decisions: map[string]filter.Decision{
			"a": {Remove: true, Rule: filter.RuleLowRealCVRatio},
			"b": {Remove: true, Rule: filter.RulePrivateWinner},
			"c": {Remove: true, Rule: filter.RuleLowRealCVRatio},
		},
	})
	lines := strings.Split(strings.TrimSpace(errOut.String()), "\n")
	assert.Equal(t, []string{
		"private profile with wins: 1",
		"real value ratio below mine: 2",
	}, lines)
}

func TestPrintSyncResult(t *testing.T) {
	p, out, errOut := buffers(false)
	p.PrintSyncResult(&syncer.Result{Ended: 3, Processed: 2, Skipped: 1, Pages: 7, Duration: 90 * time.Second})
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "Ended giveaways: 3 (2 processed, 1 already complete)")
	assert.Contains(t, errOut.String(), "Duration: 1m30s")
}
