package scorecard

import "time"

// PlayerScore is the continuously recomputed reliability index for one
// member, keyed (clan, member, as-of date).
type PlayerScore struct {
	ClanTag    string
	MemberTag  string
	AsOf       time.Time
	Score      float64
	Components Components
}

// Components are the shrunk sub-scores that feed the weighted core.
type Components struct {
	Offense       float64
	Defense       float64
	Participation float64
	Capital       float64
	Donations     float64
	Availability  float64
	ObservedDays  int
}

// TournamentScore is the weekly window index, keyed (clan, member,
// week start). Computed at most once per window.
type TournamentScore struct {
	ClanTag        string
	MemberTag      string
	WeekStart      time.Time
	WeekEnd        time.Time
	Score          float64
	TrophyDelta    int
	LeagueDelta    int
	DonationDelta  int
	CapitalDelta   int
	HeroLevelDelta int
}
