package war

import (
	"strings"
	"time"
)

const (
	TypeRegular  = "regular"
	TypeCWL      = "cwl"
	TypeFriendly = "friendly"

	StatePreparation = "preparation"
	StateInWar       = "inWar"
	StateEnded       = "warEnded"
)

// RegularWarDuration is the fixed battle-day length assumed when a payload
// only reports the end time.
const RegularWarDuration = 24 * time.Hour

// Record is one clan-vs-clan war. Natural key = (clan tag, war type,
// battle start) so a war seen mid-progress and again from the log resolves
// to a single row.
type Record struct {
	ID          int64
	ClanTag     string
	Type        string
	State       string
	TeamSize    int
	PrepStart   time.Time
	BattleStart time.Time
	EndTime     time.Time
	Result      string
	Raw         []byte
	Clans       []Clan
	Members     []Member
	Attacks     []Attack
}

// Clan is one side of a war.
type Clan struct {
	WarID                 int64
	ClanTag               string
	Name                  string
	ClanLevel             int
	IsHome                bool
	Stars                 int
	DestructionPercentage float64
	AttacksUsed           int
}

// Member is one participant with per-war aggregates.
type Member struct {
	WarID            int64
	MemberTag        string
	Name             string
	ClanTag          string
	TownHall         int
	MapPosition      int
	AttacksUsed      int
	StarsEarned      int
	BestDestruction  float64
	DefensesTaken    int
	BestDefenseStars int
}

// Attack is one attack event, keyed (war, attacker, defender, order).
type Attack struct {
	WarID                 int64
	AttackerTag           string
	DefenderTag           string
	Order                 int
	Stars                 int
	DestructionPercentage float64
	Duration              int
}

// DeriveTimes fills battle and preparation start from an end time when the
// payload omits them. Log entries only carry the end timestamp.
func DeriveTimes(endTime time.Time) (prepStart, battleStart time.Time) {
	battleStart = endTime.Add(-RegularWarDuration)
	prepStart = battleStart.Add(-RegularWarDuration)
	return prepStart, battleStart
}

func NormalizeState(value string) string {
	switch strings.TrimSpace(value) {
	case "preparation":
		return StatePreparation
	case "inWar", "battleDay":
		return StateInWar
	case "warEnded", "ended":
		return StateEnded
	default:
		return strings.TrimSpace(value)
	}
}

func IsEndedState(state string) bool {
	return NormalizeState(state) == StateEnded
}
