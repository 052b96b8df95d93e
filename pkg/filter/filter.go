package filter

import (
	"sort"
	"time"

	"sgsync/pkg/models"
)

// secondsPerYear annualises my won count
const secondsPerYear = 31536000

// Conditions are the thresholds derived from my profile and the user population
type Conditions struct {
	MinSentRealCV  float64 `json:"min_sent_real_cv"`
	MinRatioRealCV float64 `json:"min_ratio_real_cv"`
	MaxWonCount    float64 `json:"max_won_count"`
	NotActivated   Bounds  `json:"not_activated"`
	Multiple       Bounds  `json:"multiple"`
}

// Rule identifies the rule that decided a user
type Rule int

const (
	RulePrivateWinner Rule = iota + 1
	RuleNotActivated
	RuleMultipleWins
	RuleBelowMyWinRate
	RuleLowRealCVRatio
	RuleLowContribution
	RuleDefault
)

func (r Rule) String() string {
	switch r {
	case RulePrivateWinner:
		return "private profile with wins"
	case RuleNotActivated:
		return "too many not activated wins"
	case RuleMultipleWins:
		return "too many multiple wins"
	case RuleBelowMyWinRate:
		return "wins less than my yearly rate"
	case RuleLowRealCVRatio:
		return "real value ratio below mine"
	case RuleLowContribution:
		return "real value sent below mine"
	default:
		return "no rule matched"
	}
}

// Decision is the outcome for one user
type Decision struct {
	Remove bool `json:"remove"`
	Rule   Rule `json:"rule"`
}

// Report is the outcome of a filter pass
type Report struct {
	Conditions Conditions          `json:"conditions"`
	Decisions  map[string]Decision `json:"decisions"`
	// Remove lists the usernames to remove, sorted
	Remove []string `json:"remove"`
}

// Filter recommends users for removal from the allow-list
type Filter struct {
	method QuartileMethod
	now    func() time.Time
}

// New creates a Filter. A nil now uses the wall clock.
func New(method QuartileMethod, now func() time.Time) *Filter {
	if method == "" {
		method = MethodHinges
	}
	if now == nil {
		now = time.Now
	}
	return &Filter{method: method, now: now}
}

// ComputeConditions derives the thresholds for data. Only users with at least
// one flag of a kind contribute to that kind's distribution.
func (f *Filter) ComputeConditions(data models.Dataset) Conditions {
	me := data.MyProfile
	c := Conditions{
		MinSentRealCV:  me.SentRealCV,
		MinRatioRealCV: me.RatioRealCV,
		MaxWonCount:    float64(me.WonCount),
	}
	if reg := me.Registered(); !reg.IsZero() {
		if age := f.now().Sub(reg).Seconds(); age > 0 {
			c.MaxWonCount = float64(me.WonCount) / age * secondsPerYear
		}
	}

	var na, mw []float64
	for _, u := range data.Users {
		if n := len(u.Flags.NotActivated); n > 0 {
			na = append(na, float64(n))
		}
		if n := len(u.Flags.Multiple); n > 0 {
			mw = append(mw, float64(n))
		}
	}
	c.NotActivated = ComputeBounds(na, f.method)
	c.Multiple = ComputeBounds(mw, f.method)
	return c
}

// Evaluate applies the removal rules in order; the first match decides.
func Evaluate(u models.UserStats, c Conditions) Decision {
	p := u.Profile
	switch {
	case p.WonCount > 0 && u.Flags.Unknown:
		return Decision{Remove: true, Rule: RulePrivateWinner}
	case float64(len(u.Flags.NotActivated)) > c.NotActivated.Upper:
		return Decision{Remove: true, Rule: RuleNotActivated}
	case float64(len(u.Flags.Multiple)) > c.Multiple.Upper:
		return Decision{Remove: true, Rule: RuleMultipleWins}
	case float64(p.WonCount) <= c.MaxWonCount:
		return Decision{Remove: false, Rule: RuleBelowMyWinRate}
	case p.WonRealCV != 0:
		if p.RatioRealCV < c.MinRatioRealCV {
			return Decision{Remove: true, Rule: RuleLowRealCVRatio}
		}
	default:
		if p.SentRealCV < c.MinSentRealCV {
			return Decision{Remove: true, Rule: RuleLowContribution}
		}
	}
	return Decision{Remove: false, Rule: RuleDefault}
}

// Apply evaluates every user of data
func (f *Filter) Apply(data models.Dataset) Report {
	conds := f.ComputeConditions(data)
	report := Report{
		Conditions: conds,
		Decisions:  make(map[string]Decision, len(data.Users)),
		Remove:     []string{},
	}
	for name, u := range data.Users {
		d := Evaluate(u, conds)
		report.Decisions[name] = d
		if d.Remove {
			report.Remove = append(report.Remove, name)
		}
	}
	sort.Strings(report.Remove)
	return report
}
