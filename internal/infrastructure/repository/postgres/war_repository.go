package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/clashintel/clan-intel/internal/domain/war"
	qb "github.com/clashintel/clan-intel/internal/platform/querybuilder"
)

type WarRepository struct {
	db *sqlx.DB
}

func NewWarRepository(db *sqlx.DB) *WarRepository {
	return &WarRepository{db: db}
}

func (r *WarRepository) UpsertRecord(ctx context.Context, record war.Record) (int64, error) {
	insertModel := warInsertModel{
		ClanTag:     record.ClanTag,
		WarType:     record.Type,
		State:       record.State,
		TeamSize:    record.TeamSize,
		PrepStart:   record.PrepStart.UTC(),
		BattleStart: record.BattleStart.UTC(),
		EndTime:     record.EndTime.UTC(),
		Result:      record.Result,
		Raw:         emptyJSONIfNil(record.Raw),
	}
	query, args, err := qb.InsertModel("wars", insertModel, `ON CONFLICT (clan_tag, war_type, battle_start)
DO UPDATE SET
    state = EXCLUDED.state,
    team_size = EXCLUDED.team_size,
    prep_start = EXCLUDED.prep_start,
    end_time = EXCLUDED.end_time,
    result = EXCLUDED.result,
    raw = EXCLUDED.raw,
    updated_at = NOW()
RETURNING id`)
	if err != nil {
		return 0, fmt.Errorf("build upsert war query: %w", err)
	}

	var warID int64
	if err := r.db.QueryRowxContext(ctx, query, args...).Scan(&warID); err != nil {
		return 0, fmt.Errorf("upsert war: %w", err)
	}
	return warID, nil
}

func (r *WarRepository) UpsertClans(ctx context.Context, warID int64, clans []war.Clan) error {
	if len(clans) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx upsert war clans: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, clan := range clans {
		insertModel := warClanInsertModel{
			WarID:                 warID,
			ClanTag:               clan.ClanTag,
			Name:                  clan.Name,
			ClanLevel:             clan.ClanLevel,
			IsHome:                clan.IsHome,
			Stars:                 clan.Stars,
			DestructionPercentage: clan.DestructionPercentage,
			AttacksUsed:           clan.AttacksUsed,
		}
		query, args, err := qb.InsertModel("war_clans", insertModel, `ON CONFLICT (war_id, clan_tag)
DO UPDATE SET
    name = EXCLUDED.name,
    clan_level = EXCLUDED.clan_level,
    is_home = EXCLUDED.is_home,
    stars = EXCLUDED.stars,
    destruction_percentage = EXCLUDED.destruction_percentage,
    attacks_used = EXCLUDED.attacks_used`)
		if err != nil {
			return fmt.Errorf("build upsert war clan query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert war clan tag=%s: %w", clan.ClanTag, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert war clans tx: %w", err)
	}
	return nil
}

func (r *WarRepository) UpsertMembers(ctx context.Context, warID int64, members []war.Member) error {
	if len(members) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx upsert war members: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, member := range members {
		insertModel := warMemberInsertModel{
			WarID:            warID,
			MemberTag:        member.MemberTag,
			Name:             member.Name,
			ClanTag:          member.ClanTag,
			TownHall:         member.TownHall,
			MapPosition:      member.MapPosition,
			AttacksUsed:      member.AttacksUsed,
			StarsEarned:      member.StarsEarned,
			BestDestruction:  member.BestDestruction,
			DefensesTaken:    member.DefensesTaken,
			BestDefenseStars: member.BestDefenseStars,
		}
		query, args, err := qb.InsertModel("war_members", insertModel, `ON CONFLICT (war_id, member_tag)
DO UPDATE SET
    name = EXCLUDED.name,
    clan_tag = EXCLUDED.clan_tag,
    town_hall = EXCLUDED.town_hall,
    map_position = EXCLUDED.map_position,
    attacks_used = EXCLUDED.attacks_used,
    stars_earned = EXCLUDED.stars_earned,
    best_destruction = EXCLUDED.best_destruction,
    defenses_taken = EXCLUDED.defenses_taken,
    best_defense_stars = EXCLUDED.best_defense_stars`)
		if err != nil {
			return fmt.Errorf("build upsert war member query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert war member tag=%s: %w", member.MemberTag, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert war members tx: %w", err)
	}
	return nil
}

func (r *WarRepository) UpsertAttacks(ctx context.Context, warID int64, attacks []war.Attack) error {
	if len(attacks) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx upsert war attacks: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, attack := range attacks {
		insertModel := warAttackInsertModel{
			WarID:                 warID,
			AttackerTag:           attack.AttackerTag,
			DefenderTag:           attack.DefenderTag,
			AttackOrder:           attack.Order,
			Stars:                 attack.Stars,
			DestructionPercentage: attack.DestructionPercentage,
			Duration:              attack.Duration,
		}
		query, args, err := qb.InsertModel("war_attacks", insertModel, `ON CONFLICT (war_id, attacker_tag, defender_tag, attack_order)
DO UPDATE SET
    stars = EXCLUDED.stars,
    destruction_percentage = EXCLUDED.destruction_percentage,
    duration = EXCLUDED.duration`)
		if err != nil {
			return fmt.Errorf("build upsert war attack query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert war attack attacker=%s order=%d: %w", attack.AttackerTag, attack.Order, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert war attacks tx: %w", err)
	}
	return nil
}

func (r *WarRepository) CountAttacksByWar(ctx context.Context, warID int64) (int, error) {
	query, args, err := qb.Select("COUNT(*)").
		From("war_attacks").
		Where(qb.Eq("war_id", warID)).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build count war attacks query: %w", err)
	}

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count war attacks: %w", err)
	}
	return count, nil
}

const memberFactsQuery = `
SELECT
    m.member_tag,
    COUNT(DISTINCT w.id) AS wars_participated,
    COALESCE(SUM(m.attacks_used), 0) AS attacks_used,
    COALESCE(SUM(CASE WHEN w.war_type = 'cwl' THEN 1 ELSE 2 END), 0) AS attacks_possible,
    COALESCE(SUM(m.stars_earned), 0) AS stars_earned,
    COALESCE(SUM(m.best_destruction), 0) AS total_destruction,
    COALESCE(SUM(m.defenses_taken), 0) AS defenses_taken,
    COALESCE(SUM(m.best_defense_stars), 0) AS defense_stars
FROM war_members m
JOIN wars w ON w.id = m.war_id
WHERE w.clan_tag = $1
  AND m.clan_tag = $1
  AND w.battle_start >= $2
GROUP BY m.member_tag
ORDER BY m.member_tag`

func (r *WarRepository) ListMemberFactsSince(ctx context.Context, clanTag string, since time.Time) ([]war.MemberFacts, error) {
	var rows []memberFactsRow
	if err := r.db.SelectContext(ctx, &rows, memberFactsQuery, clanTag, since.UTC()); err != nil {
		return nil, fmt.Errorf("list member war facts: %w", err)
	}

	out := make([]war.MemberFacts, 0, len(rows))
	for _, row := range rows {
		out = append(out, war.MemberFacts{
			MemberTag:        row.MemberTag,
			WarsParticipated: row.WarsParticipated,
			AttacksUsed:      row.AttacksUsed,
			AttacksPossible:  row.AttacksPossible,
			StarsEarned:      row.StarsEarned,
			TotalDestruction: row.TotalDestruction,
			DefensesTaken:    row.DefensesTaken,
			DefenseStars:     row.DefenseStars,
		})
	}
	return out, nil
}
