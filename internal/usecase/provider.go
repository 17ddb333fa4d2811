package usecase

import (
	"context"
	"time"
)

// ClanDataProvider is the outbound contract for the game-data API. The
// external client maps provider payloads into these neutral shapes.
type ClanDataProvider interface {
	FetchClan(ctx context.Context, clanTag string) (ExternalClan, error)
	FetchMembers(ctx context.Context, clanTag string) ([]ExternalMember, error)
	FetchPlayer(ctx context.Context, playerTag string) (ExternalPlayer, error)
	// FetchWarLog returns the raw payload alongside parsed entries so the
	// snapshot can retain the original blob.
	FetchWarLog(ctx context.Context, clanTag string, limit int) ([]ExternalWar, []byte, error)
	FetchCurrentWar(ctx context.Context, clanTag string) (ExternalWar, []byte, error)
	FetchCapitalRaidSeasons(ctx context.Context, clanTag string, limit int) ([]ExternalCapitalSeason, []byte, error)
}

type ExternalClan struct {
	Tag         string
	Name        string
	ClanLevel   int
	MemberCount int
	WarWins     int
	WarLosses   int
}

type ExternalMember struct {
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

type ExternalPlayer struct {
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
	Heroes                   []ExternalHero
}

type ExternalHero struct {
	Name    string
	Level   int
	Village string
}

type ExternalWar struct {
	State    string
	TeamSize int
	// EndTime is the only timestamp war-log entries are guaranteed to
	// carry; battle and preparation starts are derived from it when the
	// payload omits them.
	EndTime          time.Time
	PreparationStart time.Time
	BattleStart      time.Time
	Result           string
	Clan             ExternalWarClan
	Opponent         ExternalWarClan
	Raw              []byte
}

type ExternalWarClan struct {
	Tag                   string
	Name                  string
	ClanLevel             int
	Stars                 int
	DestructionPercentage float64
	AttacksUsed           int
	Members               []ExternalWarMember
}

type ExternalWarMember struct {
	Tag               string
	Name              string
	TownHall          int
	MapPosition       int
	Attacks           []ExternalWarAttack
	OpponentAttacks   int
	BestOpponentStars int
}

type ExternalWarAttack struct {
	AttackerTag           string
	DefenderTag           string
	Order                 int
	Stars                 int
	DestructionPercentage float64
	Duration              int
}

type ExternalCapitalSeason struct {
	State                   string
	StartTime               time.Time
	EndTime                 time.Time
	CapitalTotalLoot        int
	RaidsCompleted          int
	TotalAttacks            int
	EnemyDistrictsDestroyed int
	Members                 []ExternalCapitalMember
}

type ExternalCapitalMember struct {
	Tag           string
	Name          string
	Attacks       int
	AttackLimit   int
	CapitalLooted int
}
