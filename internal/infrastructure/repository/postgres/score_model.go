package postgres

import "time"

type playerScoreInsertModel struct {
	ClanTag       string    `db:"clan_tag"`
	MemberTag     string    `db:"member_tag"`
	AsOf          time.Time `db:"as_of"`
	Score         float64   `db:"score"`
	Offense       float64   `db:"offense"`
	Defense       float64   `db:"defense"`
	Participation float64   `db:"participation"`
	Capital       float64   `db:"capital"`
	Donations     float64   `db:"donations"`
	Availability  float64   `db:"availability"`
	ObservedDays  int       `db:"observed_days"`
}

type tournamentScoreInsertModel struct {
	ClanTag        string    `db:"clan_tag"`
	MemberTag      string    `db:"member_tag"`
	WeekStart      time.Time `db:"week_start"`
	WeekEnd        time.Time `db:"week_end"`
	Score          float64   `db:"score"`
	TrophyDelta    int       `db:"trophy_delta"`
	LeagueDelta    int       `db:"league_delta"`
	DonationDelta  int       `db:"donation_delta"`
	CapitalDelta   int       `db:"capital_delta"`
	HeroLevelDelta int       `db:"hero_level_delta"`
}
