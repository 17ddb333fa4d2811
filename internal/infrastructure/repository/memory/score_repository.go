package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/clashintel/clan-intel/internal/domain/scorecard"
)

type ScoreRepository struct {
	mu         sync.RWMutex
	player     map[string]scorecard.PlayerScore
	tournament map[string]scorecard.TournamentScore
}

func NewScoreRepository() *ScoreRepository {
	return &ScoreRepository{
		player:     make(map[string]scorecard.PlayerScore),
		tournament: make(map[string]scorecard.TournamentScore),
	}
}

func playerScoreKey(score scorecard.PlayerScore) string {
	return fmt.Sprintf("%s|%s|%s", score.ClanTag, score.MemberTag, score.AsOf.UTC().Format("2006-01-02"))
}

func tournamentScoreKey(clanTag, memberTag string, weekStart time.Time) string {
	return fmt.Sprintf("%s|%s|%d", clanTag, memberTag, weekStart.UTC().Unix())
}

func (r *ScoreRepository) UpsertPlayerScores(_ context.Context, scores []scorecard.PlayerScore) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, score := range scores {
		r.player[playerScoreKey(score)] = score
	}
	return nil
}

func (r *ScoreRepository) HasTournamentScores(_ context.Context, clanTag string, weekStart time.Time) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	prefix := fmt.Sprintf("%s|", clanTag)
	suffix := fmt.Sprintf("|%d", weekStart.UTC().Unix())
	for key := range r.tournament {
		if len(key) > len(prefix)+len(suffix) && key[:len(prefix)] == prefix && key[len(key)-len(suffix):] == suffix {
			return true, nil
		}
	}
	return false, nil
}

func (r *ScoreRepository) UpsertTournamentScores(_ context.Context, scores []scorecard.TournamentScore) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, score := range scores {
		r.tournament[tournamentScoreKey(score.ClanTag, score.MemberTag, score.WeekStart)] = score
	}
	return nil
}

func (r *ScoreRepository) PlayerScoreCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.player)
}

func (r *ScoreRepository) TournamentScores() []scorecard.TournamentScore {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]scorecard.TournamentScore, 0, len(r.tournament))
	for _, score := range r.tournament {
		out = append(out, score)
	}
	return out
}

func (r *ScoreRepository) PlayerScores() []scorecard.PlayerScore {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]scorecard.PlayerScore, 0, len(r.player))
	for _, score := range r.player {
		out = append(out, score)
	}
	return out
}
