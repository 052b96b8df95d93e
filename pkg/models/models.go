package models

import "time"

// GiveawayListResponse is the JSON envelope of the giveaway list endpoints
type GiveawayListResponse struct {
	Success bool       `json:"success"`
	Page    int        `json:"page"`
	PerPage int        `json:"per_page"`
	Results []Giveaway `json:"results"`
}

// User is a counterparty as reported by the service.
// SteamID is empty when only the display name is known.
type User struct {
	ID       int64  `json:"id,omitempty"`
	SteamID  string `json:"steam_id,omitempty"`
	Username string `json:"username"`
}

// Winner is a user who won one of my giveaways
type Winner struct {
	User
	Received bool `json:"received"`
}

// Giveaway is a cached giveaway record
type Giveaway struct {
	ID           int64    `json:"id"`
	Link         string   `json:"link"`
	EndTimestamp int64    `json:"end_timestamp"`
	EntryCount   int      `json:"entry_count"`
	Creator      User     `json:"creator"`
	Winners      []Winner `json:"winners,omitempty"`
	// Received is set on won giveaways only
	Received *bool `json:"received,omitempty"`
	// EntriesPageOffset is the last fully processed entrant page
	EntriesPageOffset int `json:"entries_page_offset,omitempty"`
}

// EntriesPerPage is the fixed size of an entrant page
const EntriesPerPage = 25

// Pages returns the number of entrant pages.
func (g Giveaway) Pages() int {
	return (g.EntryCount + EntriesPerPage - 1) / EntriesPerPage
}

// FullyPaged reports whether every entrant page has been processed.
func (g Giveaway) FullyPaged() bool {
	return g.EntriesPageOffset*EntriesPerPage >= g.EntryCount
}

// UserRecord is a cached user with a stable identity
type UserRecord struct {
	ID        int64  `json:"id,omitempty"`
	SteamID   string `json:"steam_id"`
	Username  string `json:"username"`
	Timestamp int64  `json:"timestamp"`
	IsCreator bool   `json:"is_creator,omitempty"`
	IsWinner  bool   `json:"is_winner,omitempty"`
}

// Profile holds the public statistics of a SteamGifts account
type Profile struct {
	RegistrationDate int64 `json:"registration_date"`

	WonCount       int     `json:"won_count"`
	WonFull        int     `json:"won_full"`
	WonReduced     int     `json:"won_reduced"`
	WonZero        int     `json:"won_zero"`
	WonNotReceived int     `json:"won_not_received"`
	WonCV          float64 `json:"won_cv"`
	WonRealCV      float64 `json:"won_real_cv"`

	SentCount       int     `json:"sent_count"`
	SentFull        int     `json:"sent_full"`
	SentReduced     int     `json:"sent_reduced"`
	SentZero        int     `json:"sent_zero"`
	SentAwaiting    int     `json:"sent_awaiting"`
	SentNotReceived int     `json:"sent_not_received"`
	SentCV          float64 `json:"sent_cv"`
	SentRealCV      float64 `json:"sent_real_cv"`

	Ratio        float64 `json:"ratio"`
	RatioFull    float64 `json:"ratio_full"`
	RatioReduced float64 `json:"ratio_reduced"`
	RatioZero    float64 `json:"ratio_zero"`
	RatioCV      float64 `json:"ratio_cv"`
	RatioRealCV  float64 `json:"ratio_real_cv"`
}

// ComputeRatios fills the sent/won ratios. A zero denominator yields 0.
func (p *Profile) ComputeRatios() {
	p.Ratio = ratio(float64(p.SentCount), float64(p.WonCount))
	p.RatioFull = ratio(float64(p.SentFull), float64(p.WonFull))
	p.RatioReduced = ratio(float64(p.SentReduced), float64(p.WonReduced))
	p.RatioZero = ratio(float64(p.SentZero), float64(p.WonZero))
	p.RatioCV = ratio(p.SentCV, p.WonCV)
	p.RatioRealCV = ratio(p.SentRealCV, p.WonRealCV)
}

func ratio(sent, won float64) float64 {
	if won == 0 {
		return 0
	}
	return sent / won
}

// Registered returns the registration time, zero when unknown.
func (p Profile) Registered() time.Time {
	if p.RegistrationDate <= 0 {
		return time.Time{}
	}
	return time.Unix(p.RegistrationDate, 0)
}

// Flags are the reputation anomalies of a user
type Flags struct {
	// NotActivated lists won games never activated on Steam
	NotActivated []string `json:"not_activated"`
	// Multiple lists games won more than once
	Multiple []string `json:"multiple"`
	// Unknown is set when the reputation lookup saw a private profile
	Unknown bool `json:"unknown"`
}

// UserStats is everything collected about one user
type UserStats struct {
	Profile Profile `json:"profile"`
	Flags   Flags   `json:"namwc"`
}

// Dataset is the input of the outlier filter
type Dataset struct {
	MyProfile Profile              `json:"my_profile"`
	Users     map[string]UserStats `json:"users"`
	LastCheck time.Time            `json:"last_check"`
}
