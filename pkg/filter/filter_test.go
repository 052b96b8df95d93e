package filter

import (
	"testing"
	"time"

	"sgsync/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func games(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "game"
	}
	return out
}

func TestQuartilesHinges(t *testing.T) {
	q1, q3 := Quartiles([]float64{10, 1, 2, 3, 2, 4, 3}, MethodHinges)
	assert.Equal(t, 2.0, q1)
	assert.Equal(t, 4.0, q3)

	b := ComputeBounds([]float64{1, 2, 2, 3, 3, 4, 10}, MethodHinges)
	assert.Equal(t, 2.0, b.IQR)
	assert.Equal(t, 7.0, b.Upper)
	assert.Equal(t, -1.0, b.Lower)

	q1, q3 = Quartiles([]float64{1, 2, 3, 4}, MethodHinges)
	assert.Equal(t, 1.5, q1)
	assert.Equal(t, 3.5, q3)

	q1, q3 = Quartiles([]float64{5}, MethodHinges)
	assert.Equal(t, 5.0, q1)
	assert.Equal(t, 5.0, q3)
}

func TestQuartilesLinear(t *testing.T) {
	q1, q3 := Quartiles([]float64{1, 2, 2, 3, 3, 4, 10}, MethodLinear)
	assert.Equal(t, 2.0, q1)
	assert.Equal(t, 3.5, q3)

	assert.Equal(t, 2.5, Percentile([]float64{1, 2, 3, 4}, 50))
	assert.Equal(t, 1.0, Percentile([]float64{1, 2, 3, 4}, 0))
	assert.Equal(t, 4.0, Percentile([]float64{1, 2, 3, 4}, 100))
}

func TestEmptyDistribution(t *testing.T) {
	for _, m := range []QuartileMethod{MethodHinges, MethodLinear} {
		b := ComputeBounds(nil, m)
		assert.Equal(t, Bounds{}, b, string(m))
	}
}

func TestParseQuartileMethod(t *testing.T) {
	m, err := ParseQuartileMethod("")
	require.NoError(t, err)
	assert.Equal(t, MethodHinges, m)

	m, err = ParseQuartileMethod(" Linear ")
	require.NoError(t, err)
	assert.Equal(t, MethodLinear, m)

	_, err = ParseQuartileMethod("nearest")
	assert.Error(t, err)
}

func TestIQROutlier(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	users := map[string]models.UserStats{}
	for i, n := range []int{1, 2, 2, 3, 3, 4, 10} {
		users[string(rune('a'+i))] = models.UserStats{
			Profile: models.Profile{WonCount: 100},
			Flags:   models.Flags{NotActivated: games(n)},
		}
	}
	users["five"] = models.UserStats{
		Profile: models.Profile{WonCount: 100},
		Flags:   models.Flags{NotActivated: games(5)},
	}
	users["clean"] = models.UserStats{Profile: models.Profile{WonCount: 100}}

	f := New(MethodHinges, func() time.Time { return now })
	data := models.Dataset{
		MyProfile: models.Profile{WonCount: 1000, RegistrationDate: now.Add(-365 * 24 * time.Hour).Unix()},
		Users:     users,
	}
	conds := f.ComputeConditions(data)
	// "five" joins the distribution: [1,2,2,3,3,4,5,10]
	assert.Equal(t, 2.0, conds.NotActivated.Q1)
	assert.Equal(t, 4.5, conds.NotActivated.Q3)

	report := f.Apply(data)
	assert.Equal(t, []string{"g"}, report.Remove, "only the count of 10 is an outlier")
	assert.Equal(t, RuleNotActivated, report.Decisions["g"].Rule)
	assert.False(t, report.Decisions["five"].Remove)
	assert.False(t, report.Decisions["clean"].Remove)
}

func TestEvaluateRuleOrder(t *testing.T) {
	conds := Conditions{
		MinSentRealCV:  100,
		MinRatioRealCV: 0.5,
		MaxWonCount:    10,
		NotActivated:   Bounds{Upper: 7},
		Multiple:       Bounds{Upper: 2},
	}

	tests := []struct {
		name   string
		user   models.UserStats
		remove bool
		rule   Rule
	}{
		{
			name:   "private with wins beats the win rate exception",
			user:   models.UserStats{Profile: models.Profile{WonCount: 1}, Flags: models.Flags{Unknown: true}},
			remove: true, rule: RulePrivateWinner,
		},
		{
			name:   "private without wins falls through",
			user:   models.UserStats{Profile: models.Profile{WonCount: 0}, Flags: models.Flags{Unknown: true}},
			remove: false, rule: RuleBelowMyWinRate,
		},
		{
			name:   "not activated above fence beats the exception",
			user:   models.UserStats{Profile: models.Profile{WonCount: 1}, Flags: models.Flags{NotActivated: games(8)}},
			remove: true, rule: RuleNotActivated,
		},
		{
			name:   "not activated at fence is kept",
			user:   models.UserStats{Profile: models.Profile{WonCount: 1}, Flags: models.Flags{NotActivated: games(7)}},
			remove: false, rule: RuleBelowMyWinRate,
		},
		{
			name:   "multiple wins above fence",
			user:   models.UserStats{Profile: models.Profile{WonCount: 1}, Flags: models.Flags{Multiple: games(3)}},
			remove: true, rule: RuleMultipleWins,
		},
		{
			name:   "win rate exception",
			user:   models.UserStats{Profile: models.Profile{WonCount: 10, WonRealCV: 50, RatioRealCV: 0}},
			remove: false, rule: RuleBelowMyWinRate,
		},
		{
			name:   "low real value ratio",
			user:   models.UserStats{Profile: models.Profile{WonCount: 11, WonRealCV: 50, RatioRealCV: 0.4, SentRealCV: 1000}},
			remove: true, rule: RuleLowRealCVRatio,
		},
		{
			name:   "good real value ratio",
			user:   models.UserStats{Profile: models.Profile{WonCount: 11, WonRealCV: 50, RatioRealCV: 0.5}},
			remove: false, rule: RuleDefault,
		},
		{
			name:   "won nothing of value and sent little",
			user:   models.UserStats{Profile: models.Profile{WonCount: 11, SentRealCV: 99}},
			remove: true, rule: RuleLowContribution,
		},
		{
			name:   "won nothing of value and sent enough",
			user:   models.UserStats{Profile: models.Profile{WonCount: 11, SentRealCV: 100}},
			remove: false, rule: RuleDefault,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(tt.user, conds)
			assert.Equal(t, tt.remove, d.Remove)
			assert.Equal(t, tt.rule, d.Rule, d.Rule.String())
		})
	}
}

func TestEndToEnd(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	f := New("", func() time.Time { return now })

	data := models.Dataset{
		MyProfile: models.Profile{
			WonCount:         10,
			RegistrationDate: now.Add(-secondsPerYear * time.Second).Unix(),
			RatioRealCV:      0.5,
			SentRealCV:       200,
		},
		Users: map[string]models.UserStats{
			"U": {Profile: models.Profile{WonCount: 8, WonRealCV: 100, RatioRealCV: 0.01}},
			"V": {Profile: models.Profile{WonCount: 20, WonRealCV: 100, RatioRealCV: 0.1}},
		},
	}

	report := f.Apply(data)
	assert.InDelta(t, 10.0, report.Conditions.MaxWonCount, 1e-9)
	assert.Equal(t, []string{"V"}, report.Remove)
	assert.Equal(t, RuleBelowMyWinRate, report.Decisions["U"].Rule)
	assert.Equal(t, RuleLowRealCVRatio, report.Decisions["V"].Rule)
}

func TestMaxWonCountUnknownRegistration(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	f := New(MethodHinges, func() time.Time { return now })

	conds := f.ComputeConditions(models.Dataset{MyProfile: models.Profile{WonCount: 42}})
	assert.Equal(t, 42.0, conds.MaxWonCount)

	conds = f.ComputeConditions(models.Dataset{MyProfile: models.Profile{WonCount: 42, RegistrationDate: now.Unix() + 60}})
	assert.Equal(t, 42.0, conds.MaxWonCount, "registration in the future")
}

func TestApplyEmpty(t *testing.T) {
	report := New(MethodHinges, nil).Apply(models.Dataset{})
	assert.Empty(t, report.Remove)
	assert.NotNil(t, report.Remove)
	assert.Empty(t, report.Decisions)
}
