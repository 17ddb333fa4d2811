package usecase

import (
	"testing"
	"time"

	"github.com/clashintel/clan-intel/internal/domain/snapshot"
	"github.com/clashintel/clan-intel/internal/domain/war"
	"github.com/clashintel/clan-intel/internal/infrastructure/repository/memory"
	"github.com/clashintel/clan-intel/internal/platform/logging"
)

func scoringFixtures(t *testing.T) (*memory.SnapshotRepository, *memory.WarRepository, *memory.ScoreRepository) {
	t.Helper()
	return memory.NewSnapshotRepository(), memory.NewWarRepository(), memory.NewScoreRepository()
}

func detailedSnapshot(date time.Time) snapshot.Snapshot {
	return snapshot.Snapshot{
		ClanTag:     "#CLAN",
		Date:        snapshot.DateOnly(date),
		ClanName:    "Test Clan",
		MemberCount: 3,
		Members: []snapshot.MemberSummary{
			{Tag: "#AAA", Name: "Alpha", Role: snapshot.RoleLeader, TownHall: 16, Trophies: 5600, RankedTrophies: 300, RankedLeagueID: 85, Donations: 900, DonationsReceived: 100},
			{Tag: "#BBB", Name: "Bravo", Role: snapshot.RoleElder, TownHall: 14, Trophies: 4700, RankedTrophies: 210, RankedLeagueID: 80, Donations: 200, DonationsReceived: 400},
			{Tag: "#CCC", Name: "Charlie", Role: snapshot.RoleMember, TownHall: 12, Trophies: 3800, RankedTrophies: 120, RankedLeagueID: 73, Donations: 40, DonationsReceived: 300},
		},
		PlayerDetails: map[string]snapshot.PlayerDetail{
			"#AAA": {Tag: "#AAA", ClanCapitalContributions: 120000, HeroBK: 90, HeroAQ: 92, HeroGW: 65, HeroRC: 40},
			"#BBB": {Tag: "#BBB", ClanCapitalContributions: 60000, HeroBK: 75, HeroAQ: 78},
			"#CCC": {Tag: "#CCC", ClanCapitalContributions: 5000, HeroBK: 50},
		},
		Meta: snapshot.FetchMeta{FetchedAt: date},
	}
}

func seedWarHistory(t *testing.T, repo *memory.WarRepository, battleStart time.Time) {
	t.Helper()

	id, err := repo.UpsertRecord(t.Context(), war.Record{
		ClanTag:     "#CLAN",
		Type:        war.TypeRegular,
		State:       war.StateEnded,
		TeamSize:    15,
		PrepStart:   battleStart.Add(-war.RegularWarDuration),
		BattleStart: battleStart,
		EndTime:     battleStart.Add(war.RegularWarDuration),
		Result:      "win",
	})
	if err != nil {
		t.Fatalf("seed war record: %v", err)
	}

	members := []war.Member{
		{MemberTag: "#AAA", ClanTag: "#CLAN", AttacksUsed: 2, StarsEarned: 6, DefensesTaken: 2, BestDefenseStars: 1},
		{MemberTag: "#BBB", ClanTag: "#CLAN", AttacksUsed: 1, StarsEarned: 2, DefensesTaken: 1, BestDefenseStars: 3},
		{MemberTag: "#CCC", ClanTag: "#CLAN", AttacksUsed: 0, StarsEarned: 0, DefensesTaken: 1, BestDefenseStars: 3},
	}
	if err := repo.UpsertMembers(t.Context(), id, members); err != nil {
		t.Fatalf("seed war members: %v", err)
	}
}

func TestScoringService_ComputePlayerScores_BoundedAndOrdered(t *testing.T) {
	snapshots, wars, scores := scoringFixtures(t)
	service := NewScoringService(snapshots, wars, scores, ScoringConfig{}, logging.NewNop())

	asOf := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	current := detailedSnapshot(asOf)
	if err := snapshots.Upsert(t.Context(), current); err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}
	seedWarHistory(t, wars, asOf.AddDate(0, 0, -3))

	computed, err := service.ComputePlayerScores(t.Context(), current)
	if err != nil {
		t.Fatalf("compute player scores failed: %v", err)
	}
	if computed != 3 {
		t.Fatalf("expected 3 scores, got %d", computed)
	}

	for _, score := range scores.PlayerScores() {
		if score.Score < 0 || score.Score > 100 {
			t.Fatalf("score out of bounds for %s: %v", score.MemberTag, score.Score)
		}
		if score.Components.Availability < 0.85 || score.Components.Availability > 1.0 {
			t.Fatalf("availability out of bounds for %s: %v", score.MemberTag, score.Components.Availability)
		}
		if !score.AsOf.Equal(current.Date) {
			t.Fatalf("expected as-of %v, got %v", current.Date, score.AsOf)
		}
	}
}

func TestScoringService_ComputePlayerScores_ActiveAttackerOutranksIdle(t *testing.T) {
	snapshots, wars, scores := scoringFixtures(t)
	service := NewScoringService(snapshots, wars, scores, ScoringConfig{}, logging.NewNop())

	asOf := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	current := detailedSnapshot(asOf)
	if err := snapshots.Upsert(t.Context(), current); err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}
	seedWarHistory(t, wars, asOf.AddDate(0, 0, -3))

	if _, err := service.ComputePlayerScores(t.Context(), current); err != nil {
		t.Fatalf("compute player scores failed: %v", err)
	}

	byTag := make(map[string]float64)
	for _, score := range scores.PlayerScores() {
		byTag[score.MemberTag] = score.Score
	}
	// #AAA tripled #CCC's output everywhere: perfect attacks, top capital
	// and donation standing.
	if byTag["#AAA"] <= byTag["#CCC"] {
		t.Fatalf("expected #AAA (%v) to outrank #CCC (%v)", byTag["#AAA"], byTag["#CCC"])
	}
}

func TestScoringService_ComputeTournamentScores_OncePerWindow(t *testing.T) {
	snapshots, wars, scores := scoringFixtures(t)
	service := NewScoringService(snapshots, wars, scores, ScoringConfig{}, logging.NewNop())

	// Window start: Tuesday 2026-03-03 05:00 UTC.
	windowStart := time.Date(2026, 3, 3, 5, 0, 0, 0, time.UTC)

	baseline := detailedSnapshot(windowStart)
	if err := snapshots.Upsert(t.Context(), baseline); err != nil {
		t.Fatalf("seed baseline: %v", err)
	}

	current := detailedSnapshot(windowStart.AddDate(0, 0, 3))
	current.Members[0].RankedTrophies += 60
	current.Members[1].RankedTrophies -= 20

	computed, err := service.ComputeTournamentScores(t.Context(), current)
	if err != nil {
		t.Fatalf("compute tournament scores failed: %v", err)
	}
	if computed != 3 {
		t.Fatalf("expected 3 tournament scores, got %d", computed)
	}

	for _, score := range scores.TournamentScores() {
		if !score.WeekStart.Equal(windowStart) {
			t.Fatalf("expected week start %v, got %v", windowStart, score.WeekStart)
		}
		if score.Score < 0 || score.Score > 100 {
			t.Fatalf("tournament score out of bounds: %v", score.Score)
		}
		if score.MemberTag == "#AAA" && score.TrophyDelta != 60 {
			t.Fatalf("expected trophy delta 60 for #AAA, got %d", score.TrophyDelta)
		}
	}

	// A second run inside the same window is a no-op.
	computed, err = service.ComputeTournamentScores(t.Context(), current)
	if err != nil {
		t.Fatalf("second compute failed: %v", err)
	}
	if computed != 0 {
		t.Fatalf("expected window to be scored once, got %d new scores", computed)
	}
}

func TestScoringService_ComputeTournamentScores_ForceRecompute(t *testing.T) {
	snapshots, wars, scores := scoringFixtures(t)
	service := NewScoringService(snapshots, wars, scores, ScoringConfig{ForceTournamentRecompute: true}, logging.NewNop())

	windowStart := time.Date(2026, 3, 3, 5, 0, 0, 0, time.UTC)
	if err := snapshots.Upsert(t.Context(), detailedSnapshot(windowStart)); err != nil {
		t.Fatalf("seed baseline: %v", err)
	}
	current := detailedSnapshot(windowStart.AddDate(0, 0, 3))

	if _, err := service.ComputeTournamentScores(t.Context(), current); err != nil {
		t.Fatalf("first compute failed: %v", err)
	}
	computed, err := service.ComputeTournamentScores(t.Context(), current)
	if err != nil {
		t.Fatalf("forced recompute failed: %v", err)
	}
	if computed != 3 {
		t.Fatalf("expected forced recompute to rewrite 3 scores, got %d", computed)
	}
}

func TestScoringService_ComputeTournamentScores_NoBaselineSkips(t *testing.T) {
	snapshots, wars, scores := scoringFixtures(t)
	service := NewScoringService(snapshots, wars, scores, ScoringConfig{}, logging.NewNop())

	// Only a current snapshot, three days past the window start; nothing
	// within the one-day tolerance of the start.
	current := detailedSnapshot(time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC))
	if err := snapshots.Upsert(t.Context(), current); err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}

	computed, err := service.ComputeTournamentScores(t.Context(), current)
	if err != nil {
		t.Fatalf("expected graceful skip, got %v", err)
	}
	if computed != 0 {
		t.Fatalf("expected no scores without a baseline, got %d", computed)
	}
}
