package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jmoiron/sqlx"

	"github.com/clashintel/clan-intel/internal/domain/snapshot"
	qb "github.com/clashintel/clan-intel/internal/platform/querybuilder"
)

type SnapshotRepository struct {
	db *sqlx.DB
}

func NewSnapshotRepository(db *sqlx.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

func (r *SnapshotRepository) Upsert(ctx context.Context, snap snapshot.Snapshot) error {
	insertModel, err := snapshotToInsertModel(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot clan_tag=%s: %w", snap.ClanTag, err)
	}

	query, args, err := qb.InsertModel("clan_snapshots", insertModel, `ON CONFLICT (clan_tag, snapshot_date)
DO UPDATE SET
    clan_name = EXCLUDED.clan_name,
    clan_level = EXCLUDED.clan_level,
    member_count = EXCLUDED.member_count,
    members = EXCLUDED.members,
    player_details = EXCLUDED.player_details,
    war_log = EXCLUDED.war_log,
    current_war = EXCLUDED.current_war,
    capital_seasons = EXCLUDED.capital_seasons,
    fetch_meta = EXCLUDED.fetch_meta,
    updated_at = NOW()`)
	if err != nil {
		return fmt.Errorf("build upsert snapshot query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

func (r *SnapshotRepository) GetByDate(ctx context.Context, clanTag string, date time.Time) (snapshot.Snapshot, error) {
	query, args, err := qb.Select("*").
		From("clan_snapshots").
		Where(
			qb.Eq("clan_tag", clanTag),
			qb.Eq("snapshot_date", snapshot.DateOnly(date)),
		).
		ToSQL()
	if err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("build get snapshot query: %w", err)
	}

	var row clanSnapshotTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return snapshot.Snapshot{}, snapshot.ErrNotFound
		}
		return snapshot.Snapshot{}, fmt.Errorf("get snapshot: %w", err)
	}
	return snapshotFromTableModel(row)
}

func (r *SnapshotRepository) MostRecentBefore(ctx context.Context, clanTag string, date time.Time) (snapshot.Snapshot, error) {
	query, args, err := qb.Select("*").
		From("clan_snapshots").
		Where(
			qb.Eq("clan_tag", clanTag),
			qb.Expr("snapshot_date < ?", snapshot.DateOnly(date)),
		).
		OrderBy("snapshot_date DESC").
		Limit(1).
		ToSQL()
	if err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("build most recent snapshot query: %w", err)
	}

	var row clanSnapshotTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return snapshot.Snapshot{}, snapshot.ErrNotFound
		}
		return snapshot.Snapshot{}, fmt.Errorf("get most recent snapshot: %w", err)
	}
	return snapshotFromTableModel(row)
}

func (r *SnapshotRepository) NearestWithin(ctx context.Context, clanTag string, date time.Time, tolerance time.Duration) (snapshot.Snapshot, error) {
	from := snapshot.DateOnly(date.Add(-tolerance))
	to := snapshot.DateOnly(date.Add(tolerance))

	query, args, err := qb.Select("*").
		From("clan_snapshots").
		Where(
			qb.Eq("clan_tag", clanTag),
			qb.Expr("snapshot_date BETWEEN ? AND ?", from, to),
		).
		OrderBy("snapshot_date ASC").
		Limit(1).
		ToSQL()
	if err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("build nearest snapshot query: %w", err)
	}

	var row clanSnapshotTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return snapshot.Snapshot{}, snapshot.ErrNotFound
		}
		return snapshot.Snapshot{}, fmt.Errorf("get nearest snapshot: %w", err)
	}
	return snapshotFromTableModel(row)
}

func (r *SnapshotRepository) ListDatesBetween(ctx context.Context, clanTag string, from, to time.Time) ([]time.Time, error) {
	query, args, err := qb.Select("snapshot_date").
		From("clan_snapshots").
		Where(
			qb.Eq("clan_tag", clanTag),
			qb.Expr("snapshot_date BETWEEN ? AND ?", snapshot.DateOnly(from), snapshot.DateOnly(to)),
		).
		OrderBy("snapshot_date").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list snapshot dates query: %w", err)
	}

	var rows []time.Time
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list snapshot dates: %w", err)
	}

	out := make([]time.Time, 0, len(rows))
	for _, row := range rows {
		out = append(out, snapshot.DateOnly(row))
	}
	return out, nil
}

func (r *SnapshotRepository) SaveChangeSummary(ctx context.Context, summary snapshot.ChangeSummary) error {
	changes, err := sonic.Marshal(summary.Changes)
	if err != nil {
		return fmt.Errorf("encode change summary clan_tag=%s: %w", summary.ClanTag, err)
	}

	insertModel := changeSummaryInsertModel{
		ClanTag:    summary.ClanTag,
		ChangeDate: snapshot.DateOnly(summary.Date),
		Changes:    changes,
		Narrative:  summary.Narrative,
	}
	query, args, err := qb.InsertModel("snapshot_changes", insertModel, `ON CONFLICT (clan_tag, change_date)
DO UPDATE SET
    changes = EXCLUDED.changes,
    narrative = EXCLUDED.narrative,
    updated_at = NOW()`)
	if err != nil {
		return fmt.Errorf("build upsert change summary query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert change summary: %w", err)
	}
	return nil
}

func (r *SnapshotRepository) SaveDepartures(ctx context.Context, departures []snapshot.Departure) error {
	if len(departures) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx save departures: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, departure := range departures {
		insertModel := departureInsertModel{
			ClanTag:    departure.ClanTag,
			MemberTag:  departure.MemberTag,
			MemberName: departure.MemberName,
			LastRole:   departure.LastRole,
			TownHall:   departure.TownHall,
			Trophies:   departure.Trophies,
			DepartedOn: snapshot.DateOnly(departure.DepartedOn),
		}
		query, args, err := qb.InsertModel("member_departures", insertModel, `ON CONFLICT (clan_tag, member_tag, departed_on)
DO UPDATE SET
    member_name = EXCLUDED.member_name,
    last_role = EXCLUDED.last_role,
    town_hall = EXCLUDED.town_hall,
    trophies = EXCLUDED.trophies`)
		if err != nil {
			return fmt.Errorf("build upsert departure query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert departure member_tag=%s: %w", departure.MemberTag, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save departures tx: %w", err)
	}
	return nil
}
