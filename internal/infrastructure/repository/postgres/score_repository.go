package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/clashintel/clan-intel/internal/domain/scorecard"
	"github.com/clashintel/clan-intel/internal/domain/snapshot"
	qb "github.com/clashintel/clan-intel/internal/platform/querybuilder"
)

type ScoreRepository struct {
	db *sqlx.DB
}

func NewScoreRepository(db *sqlx.DB) *ScoreRepository {
	return &ScoreRepository{db: db}
}

func (r *ScoreRepository) UpsertPlayerScores(ctx context.Context, scores []scorecard.PlayerScore) error {
	if len(scores) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx upsert player scores: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, score := range scores {
		insertModel := playerScoreInsertModel{
			ClanTag:       score.ClanTag,
			MemberTag:     score.MemberTag,
			AsOf:          snapshot.DateOnly(score.AsOf),
			Score:         score.Score,
			Offense:       score.Components.Offense,
			Defense:       score.Components.Defense,
			Participation: score.Components.Participation,
			Capital:       score.Components.Capital,
			Donations:     score.Components.Donations,
			Availability:  score.Components.Availability,
			ObservedDays:  score.Components.ObservedDays,
		}
		query, args, err := qb.InsertModel("player_scores", insertModel, `ON CONFLICT (clan_tag, member_tag, as_of)
DO UPDATE SET
    score = EXCLUDED.score,
    offense = EXCLUDED.offense,
    defense = EXCLUDED.defense,
    participation = EXCLUDED.participation,
    capital = EXCLUDED.capital,
    donations = EXCLUDED.donations,
    availability = EXCLUDED.availability,
    observed_days = EXCLUDED.observed_days,
    updated_at = NOW()`)
		if err != nil {
			return fmt.Errorf("build upsert player score query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert player score member_tag=%s: %w", score.MemberTag, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert player scores tx: %w", err)
	}
	return nil
}

func (r *ScoreRepository) HasTournamentScores(ctx context.Context, clanTag string, weekStart time.Time) (bool, error) {
	query, args, err := qb.Select("COUNT(*)").
		From("tournament_scores").
		Where(
			qb.Eq("clan_tag", clanTag),
			qb.Eq("week_start", weekStart.UTC()),
		).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build count tournament scores query: %w", err)
	}

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return false, fmt.Errorf("count tournament scores: %w", err)
	}
	return count > 0, nil
}

func (r *ScoreRepository) UpsertTournamentScores(ctx context.Context, scores []scorecard.TournamentScore) error {
	if len(scores) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx upsert tournament scores: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, score := range scores {
		insertModel := tournamentScoreInsertModel{
			ClanTag:        score.ClanTag,
			MemberTag:      score.MemberTag,
			WeekStart:      score.WeekStart.UTC(),
			WeekEnd:        score.WeekEnd.UTC(),
			Score:          score.Score,
			TrophyDelta:    score.TrophyDelta,
			LeagueDelta:    score.LeagueDelta,
			DonationDelta:  score.DonationDelta,
			CapitalDelta:   score.CapitalDelta,
			HeroLevelDelta: score.HeroLevelDelta,
		}
		query, args, err := qb.InsertModel("tournament_scores", insertModel, `ON CONFLICT (clan_tag, member_tag, week_start)
DO UPDATE SET
    week_end = EXCLUDED.week_end,
    score = EXCLUDED.score,
    trophy_delta = EXCLUDED.trophy_delta,
    league_delta = EXCLUDED.league_delta,
    donation_delta = EXCLUDED.donation_delta,
    capital_delta = EXCLUDED.capital_delta,
    hero_level_delta = EXCLUDED.hero_level_delta,
    updated_at = NOW()`)
		if err != nil {
			return fmt.Errorf("build upsert tournament score query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert tournament score member_tag=%s: %w", score.MemberTag, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert tournament scores tx: %w", err)
	}
	return nil
}
