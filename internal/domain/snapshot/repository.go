package snapshot

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no snapshot matches the query.
var ErrNotFound = errors.New("snapshot not found")

// Repository persists snapshots and the artifacts derived from diffing them.
type Repository interface {
	Upsert(ctx context.Context, snap Snapshot) error
	GetByDate(ctx context.Context, clanTag string, date time.Time) (Snapshot, error)
	MostRecentBefore(ctx context.Context, clanTag string, date time.Time) (Snapshot, error)
	// NearestWithin returns the earliest snapshot whose date falls inside
	// [date-tolerance, date+tolerance].
	NearestWithin(ctx context.Context, clanTag string, date time.Time, tolerance time.Duration) (Snapshot, error)
	ListDatesBetween(ctx context.Context, clanTag string, from, to time.Time) ([]time.Time, error)
	SaveChangeSummary(ctx context.Context, summary ChangeSummary) error
	SaveDepartures(ctx context.Context, departures []Departure) error
}
