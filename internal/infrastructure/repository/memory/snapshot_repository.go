package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/clashintel/clan-intel/internal/domain/snapshot"
)

type SnapshotRepository struct {
	mu         sync.RWMutex
	byClan     map[string]map[string]snapshot.Snapshot
	summaries  []snapshot.ChangeSummary
	departures []snapshot.Departure
}

func NewSnapshotRepository() *SnapshotRepository {
	return &SnapshotRepository{
		byClan: make(map[string]map[string]snapshot.Snapshot),
	}
}

func dateKey(ts time.Time) string {
	return snapshot.DateOnly(ts).Format("2006-01-02")
}

func (r *SnapshotRepository) Upsert(_ context.Context, snap snapshot.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	byDate, ok := r.byClan[snap.ClanTag]
	if !ok {
		byDate = make(map[string]snapshot.Snapshot)
		r.byClan[snap.ClanTag] = byDate
	}
	byDate[dateKey(snap.Date)] = snap
	return nil
}

func (r *SnapshotRepository) GetByDate(_ context.Context, clanTag string, date time.Time) (snapshot.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap, ok := r.byClan[clanTag][dateKey(date)]
	if !ok {
		return snapshot.Snapshot{}, snapshot.ErrNotFound
	}
	return snap, nil
}

func (r *SnapshotRepository) MostRecentBefore(_ context.Context, clanTag string, date time.Time) (snapshot.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cutoff := snapshot.DateOnly(date)
	var best snapshot.Snapshot
	found := false
	for _, snap := range r.byClan[clanTag] {
		day := snapshot.DateOnly(snap.Date)
		if !day.Before(cutoff) {
			continue
		}
		if !found || day.After(snapshot.DateOnly(best.Date)) {
			best = snap
			found = true
		}
	}
	if !found {
		return snapshot.Snapshot{}, snapshot.ErrNotFound
	}
	return best, nil
}

func (r *SnapshotRepository) NearestWithin(_ context.Context, clanTag string, date time.Time, tolerance time.Duration) (snapshot.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	from := date.Add(-tolerance)
	to := date.Add(tolerance)
	var best snapshot.Snapshot
	found := false
	for _, snap := range r.byClan[clanTag] {
		day := snapshot.DateOnly(snap.Date)
		if day.Before(snapshot.DateOnly(from)) || day.After(snapshot.DateOnly(to)) {
			continue
		}
		if !found || day.Before(snapshot.DateOnly(best.Date)) {
			best = snap
			found = true
		}
	}
	if !found {
		return snapshot.Snapshot{}, snapshot.ErrNotFound
	}
	return best, nil
}

func (r *SnapshotRepository) ListDatesBetween(_ context.Context, clanTag string, from, to time.Time) ([]time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fromDay := snapshot.DateOnly(from)
	toDay := snapshot.DateOnly(to)
	out := make([]time.Time, 0)
	for _, snap := range r.byClan[clanTag] {
		day := snapshot.DateOnly(snap.Date)
		if day.Before(fromDay) || day.After(toDay) {
			continue
		}
		out = append(out, day)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (r *SnapshotRepository) SaveChangeSummary(_ context.Context, summary snapshot.ChangeSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.summaries = append(r.summaries, summary)
	return nil
}

func (r *SnapshotRepository) SaveDepartures(_ context.Context, departures []snapshot.Departure) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.departures = append(r.departures, departures...)
	return nil
}

func (r *SnapshotRepository) SavedChangeSummaries() []snapshot.ChangeSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]snapshot.ChangeSummary, len(r.summaries))
	copy(out, r.summaries)
	return out
}

func (r *SnapshotRepository) SavedDepartures() []snapshot.Departure {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]snapshot.Departure, len(r.departures))
	copy(out, r.departures)
	return out
}
