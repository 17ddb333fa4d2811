package scorecard

import (
	"context"
	"time"
)

// Repository persists derived score rows.
type Repository interface {
	UpsertPlayerScores(ctx context.Context, scores []PlayerScore) error
	HasTournamentScores(ctx context.Context, clanTag string, weekStart time.Time) (bool, error)
	UpsertTournamentScores(ctx context.Context, scores []TournamentScore) error
}
