package war

import (
	"context"
	"time"
)

// Repository persists war records and their cascade-owned rows. All writes
// are natural-key upserts so re-ingesting the same payload is a no-op.
type Repository interface {
	// UpsertRecord inserts or updates by (clan_tag, war_type, battle_start)
	// and returns the row id.
	UpsertRecord(ctx context.Context, record Record) (int64, error)
	UpsertClans(ctx context.Context, warID int64, clans []Clan) error
	UpsertMembers(ctx context.Context, warID int64, members []Member) error
	UpsertAttacks(ctx context.Context, warID int64, attacks []Attack) error
	CountAttacksByWar(ctx context.Context, warID int64) (int, error)
	// ListMemberFactsSince aggregates per-member offense/defense totals for
	// wars of the clan whose battle day started on or after the given time.
	ListMemberFactsSince(ctx context.Context, clanTag string, since time.Time) ([]MemberFacts, error)
}

// MemberFacts is the scoring-facing aggregate over a member's war history.
type MemberFacts struct {
	MemberTag        string
	WarsParticipated int
	AttacksUsed      int
	AttacksPossible  int
	StarsEarned      int
	TotalDestruction float64
	DefensesTaken    int
	DefenseStars     int
}
