package snapshot

import (
	"strings"
	"time"
)

const (
	RoleMember   = "member"
	RoleElder    = "elder"
	RoleCoLeader = "coLeader"
	RoleLeader   = "leader"
)

// Snapshot is a point-in-time capture of a clan roster plus the war and
// capital history that was visible at fetch time. Identity is (clan tag,
// snapshot date); a later fetch for the same date overwrites the row.
type Snapshot struct {
	ClanTag        string
	Date           time.Time
	ClanName       string
	ClanLevel      int
	MemberCount    int
	Members        []MemberSummary
	PlayerDetails  map[string]PlayerDetail
	WarLog         []byte
	CurrentWar     []byte
	CapitalSeasons []byte
	Meta           FetchMeta
}

// MemberSummary is one roster row. Tag is the stable identity; everything
// else is mutable between snapshots.
type MemberSummary struct {
	Tag               string
	Name              string
	Role              string
	TownHall          int
	Trophies          int
	RankedTrophies    int
	RankedLeagueID    int
	Donations         int
	DonationsReceived int
}

// PlayerDetail is the expensive per-member payload fetched through the
// player endpoint. Hero levels use the original field naming.
type PlayerDetail struct {
	Tag                      string
	Name                     string
	TownHall                 int
	ExpLevel                 int
	Trophies                 int
	BestTrophies             int
	WarStars                 int
	AttackWins               int
	DefenseWins              int
	Donations                int
	DonationsReceived        int
	ClanCapitalContributions int
	HeroBK                   int
	HeroAQ                   int
	HeroGW                   int
	HeroRC                   int
	HeroMP                   int
}

// FetchMeta records how complete the fetch behind a snapshot was.
type FetchMeta struct {
	FetchedAt                time.Time
	PlayerDetailCount        int
	PlayerDetailFailureCount int
	FailedPlayerTags         []string
	ErrorSamples             []string
	WarLogAvailable          bool
	CurrentWarAvailable      bool
	CapitalSeasonsAvailable  bool
}

const (
	ChangeJoined      = "joined"
	ChangeLeft        = "left"
	ChangeRoleChanged = "role_changed"
	ChangeStatChanged = "stat_changed"
)

// Change is one roster difference between two consecutive snapshots.
type Change struct {
	Type          string
	MemberTag     string
	MemberName    string
	Before        string
	After         string
	TownHall      int
	Trophies      int
	TrophyDelta   int
	DonationDelta int
}

// ChangeSummary is the persisted audit artifact for one diff run.
type ChangeSummary struct {
	ClanTag   string
	Date      time.Time
	Changes   []Change
	Narrative string
}

// Departure is a durable record of a member leaving, carrying the last
// known roster values since the member is no longer queryable.
type Departure struct {
	ClanTag    string
	MemberTag  string
	MemberName string
	LastRole   string
	TownHall   int
	Trophies   int
	DepartedOn time.Time
}

func (s Snapshot) MembersByTag() map[string]MemberSummary {
	out := make(map[string]MemberSummary, len(s.Members))
	for _, m := range s.Members {
		if strings.TrimSpace(m.Tag) == "" {
			continue
		}
		out[m.Tag] = m
	}
	return out
}

func (s Snapshot) HeroLevelSum(tag string) int {
	detail, ok := s.PlayerDetails[tag]
	if !ok {
		return 0
	}
	return detail.HeroBK + detail.HeroAQ + detail.HeroGW + detail.HeroRC + detail.HeroMP
}

func NormalizeRole(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "leader":
		return RoleLeader
	case "coleader", "co-leader", "co_leader":
		return RoleCoLeader
	case "admin", "elder":
		return RoleElder
	default:
		return RoleMember
	}
}

// DateOnly truncates a timestamp to its UTC calendar day.
func DateOnly(ts time.Time) time.Time {
	ts = ts.UTC()
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
}
