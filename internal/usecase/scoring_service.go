package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/clashintel/clan-intel/internal/domain/scorecard"
	"github.com/clashintel/clan-intel/internal/domain/snapshot"
	"github.com/clashintel/clan-intel/internal/domain/war"
	"github.com/clashintel/clan-intel/internal/platform/logging"
)

// starsPerAttackBaseline is the neutral offensive expectation; members
// averaging above it score positively, below it negatively.
const starsPerAttackBaseline = 2.0

type ScoringConfig struct {
	Params ScoringParams
	// HistoryWindow bounds how far back war facts and snapshot days feed
	// the reliability index.
	HistoryWindow time.Duration
	// WindowStartTolerance is how far the baseline snapshot may sit from
	// the tournament window start before the window is skipped.
	WindowStartTolerance time.Duration
	// ForceTournamentRecompute overrides the once-per-window guard.
	ForceTournamentRecompute bool
}

func (c ScoringConfig) normalized() ScoringConfig {
	c.Params = c.Params.normalized()
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = 30 * 24 * time.Hour
	}
	if c.WindowStartTolerance <= 0 {
		c.WindowStartTolerance = 24 * time.Hour
	}
	return c
}

type ScoringService struct {
	snapshots snapshot.Repository
	wars      war.Repository
	scores    scorecard.Repository
	cfg       ScoringConfig
	logger    *logging.Logger
}

func NewScoringService(
	snapshots snapshot.Repository,
	wars war.Repository,
	scores scorecard.Repository,
	cfg ScoringConfig,
	logger *logging.Logger,
) *ScoringService {
	if logger == nil {
		logger = logging.Default()
	}
	return &ScoringService{
		snapshots: snapshots,
		wars:      wars,
		scores:    scores,
		cfg:       cfg.normalized(),
		logger:    logger,
	}
}

// ComputePlayerScores recomputes the reliability index for every current
// roster member and upserts one row per member keyed by the snapshot date.
func (s *ScoringService) ComputePlayerScores(ctx context.Context, current snapshot.Snapshot) (int, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ScoringService.ComputePlayerScores")
	defer span.End()

	if s.wars == nil || s.scores == nil || s.snapshots == nil {
		return 0, fmt.Errorf("%w: scoring repositories are not configured", ErrDependencyUnavailable)
	}
	if strings.TrimSpace(current.ClanTag) == "" {
		return 0, fmt.Errorf("%w: snapshot has no clan tag", ErrInvalidInput)
	}
	if len(current.Members) == 0 {
		return 0, nil
	}

	since := current.Date.Add(-s.cfg.HistoryWindow)

	facts, err := s.wars.ListMemberFactsSince(ctx, current.ClanTag, since)
	if err != nil {
		return 0, fmt.Errorf("list war facts clan_tag=%s: %w", current.ClanTag, err)
	}
	factsByTag := make(map[string]war.MemberFacts, len(facts))
	for _, f := range facts {
		factsByTag[f.MemberTag] = f
	}

	dates, err := s.snapshots.ListDatesBetween(ctx, current.ClanTag, since, current.Date)
	if err != nil {
		return 0, fmt.Errorf("list snapshot dates clan_tag=%s: %w", current.ClanTag, err)
	}
	observedDays := len(dates)

	capitalValues := make([]float64, 0, len(current.Members))
	donationValues := make([]float64, 0, len(current.Members))
	for _, m := range current.Members {
		if detail, ok := current.PlayerDetails[m.Tag]; ok {
			capitalValues = append(capitalValues, float64(detail.ClanCapitalContributions))
		}
		donationValues = append(donationValues, float64(m.Donations-m.DonationsReceived))
	}
	capitalMean, capitalSpread := meanAndSpread(capitalValues)
	donationMean, donationSpread := meanAndSpread(donationValues)

	params := s.cfg.Params
	scores := make([]scorecard.PlayerScore, 0, len(current.Members))
	for _, m := range current.Members {
		f := factsByTag[m.Tag]
		components := s.buildComponents(m, current, f, observedDays, capitalMean, capitalSpread, donationMean, donationSpread)

		core := params.OffenseWeight*components.Offense +
			params.DefenseWeight*components.Defense +
			params.ParticipationWeight*components.Participation +
			params.CapitalWeight*components.Capital +
			params.DonationWeight*components.Donations

		score := clampScore(100 * logisticSquash(core, params.Alpha) * components.Availability)

		scores = append(scores, scorecard.PlayerScore{
			ClanTag:    current.ClanTag,
			MemberTag:  m.Tag,
			AsOf:       current.Date,
			Score:      score,
			Components: components,
		})
	}

	sort.Slice(scores, func(i, j int) bool { return scores[i].MemberTag < scores[j].MemberTag })

	if err := s.scores.UpsertPlayerScores(ctx, scores); err != nil {
		return 0, fmt.Errorf("upsert player scores clan_tag=%s: %w", current.ClanTag, err)
	}
	return len(scores), nil
}

func (s *ScoringService) buildComponents(
	m snapshot.MemberSummary,
	current snapshot.Snapshot,
	f war.MemberFacts,
	observedDays int,
	capitalMean, capitalSpread, donationMean, donationSpread float64,
) scorecard.Components {
	params := s.cfg.Params

	var offense float64
	if f.AttacksUsed > 0 {
		raw := float64(f.StarsEarned)/float64(f.AttacksUsed) - starsPerAttackBaseline
		offense = shrinkSignal(raw, f.AttacksUsed, params.ShrinkageK)
	}

	var defense float64
	if f.DefensesTaken > 0 {
		raw := starsPerAttackBaseline - float64(f.DefenseStars)/float64(f.DefensesTaken)
		defense = shrinkSignal(raw, f.DefensesTaken, params.ShrinkageK)
	}

	var participation float64
	if f.AttacksPossible > 0 {
		// Centered so that using half the available attacks is neutral.
		raw := 2*float64(f.AttacksUsed)/float64(f.AttacksPossible) - 1
		participation = shrinkSignal(raw, f.WarsParticipated, params.ShrinkageK)
	}

	var capital float64
	if detail, ok := current.PlayerDetails[m.Tag]; ok {
		raw := (float64(detail.ClanCapitalContributions) - capitalMean) / capitalSpread
		capital = shrinkSignal(raw, observedDays, params.ShrinkageK)
	}

	donationRaw := (float64(m.Donations-m.DonationsReceived) - donationMean) / donationSpread
	donations := shrinkSignal(donationRaw, observedDays, params.ShrinkageK)

	return scorecard.Components{
		Offense:       offense,
		Defense:       defense,
		Participation: participation,
		Capital:       capital,
		Donations:     donations,
		Availability:  availabilityMultiplier(observedDays),
		ObservedDays:  observedDays,
	}
}

// ComputeTournamentScores computes the weekly window index once per window.
// It needs a baseline snapshot near the window start; without one the
// window is skipped rather than scored against a misleading baseline.
func (s *ScoringService) ComputeTournamentScores(ctx context.Context, current snapshot.Snapshot) (int, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ScoringService.ComputeTournamentScores")
	defer span.End()

	if s.scores == nil || s.snapshots == nil {
		return 0, fmt.Errorf("%w: scoring repositories are not configured", ErrDependencyUnavailable)
	}
	if strings.TrimSpace(current.ClanTag) == "" {
		return 0, fmt.Errorf("%w: snapshot has no clan tag", ErrInvalidInput)
	}

	anchor := current.Meta.FetchedAt
	if anchor.IsZero() {
		anchor = current.Date
	}
	weekStart, weekEnd := TournamentWindow(anchor)

	if !s.cfg.ForceTournamentRecompute {
		exists, err := s.scores.HasTournamentScores(ctx, current.ClanTag, weekStart)
		if err != nil {
			return 0, fmt.Errorf("check tournament scores clan_tag=%s: %w", current.ClanTag, err)
		}
		if exists {
			s.logger.DebugContext(ctx, "tournament window already scored",
				"clan_tag", current.ClanTag,
				"week_start", weekStart.Format(time.RFC3339),
			)
			return 0, nil
		}
	}

	baseline, err := s.snapshots.NearestWithin(ctx, current.ClanTag, weekStart, s.cfg.WindowStartTolerance)
	if err != nil {
		if isNotFoundErr(err) {
			s.logger.WarnContext(ctx, "no baseline snapshot near window start, skipping tournament scores",
				"clan_tag", current.ClanTag,
				"week_start", weekStart.Format(time.RFC3339),
			)
			return 0, nil
		}
		return 0, fmt.Errorf("load baseline snapshot clan_tag=%s: %w", current.ClanTag, err)
	}

	scores := s.tournamentScoresAgainst(baseline, current, weekStart, weekEnd)
	if len(scores) == 0 {
		return 0, nil
	}

	if err := s.scores.UpsertTournamentScores(ctx, scores); err != nil {
		return 0, fmt.Errorf("upsert tournament scores clan_tag=%s: %w", current.ClanTag, err)
	}
	return len(scores), nil
}

// tournamentScoresAgainst builds deltas for members present in both the
// baseline and the current roster; joiners and leavers are excluded since
// their deltas would span a partial window.
func (s *ScoringService) tournamentScoresAgainst(baseline, current snapshot.Snapshot, weekStart, weekEnd time.Time) []scorecard.TournamentScore {
	baseByTag := baseline.MembersByTag()
	params := s.cfg.Params

	type deltaRow struct {
		tag      string
		trophy   int
		league   int
		donation int
		capital  int
		hero     int
	}

	rows := make([]deltaRow, 0, len(current.Members))
	trophyValues := make([]float64, 0, len(current.Members))
	donationValues := make([]float64, 0, len(current.Members))
	capitalValues := make([]float64, 0, len(current.Members))
	heroValues := make([]float64, 0, len(current.Members))

	for _, m := range current.Members {
		base, ok := baseByTag[m.Tag]
		if !ok {
			continue
		}
		row := deltaRow{
			tag:      m.Tag,
			trophy:   m.RankedTrophies - base.RankedTrophies,
			league:   m.RankedLeagueID - base.RankedLeagueID,
			donation: (m.Donations - m.DonationsReceived) - (base.Donations - base.DonationsReceived),
			hero:     current.HeroLevelSum(m.Tag) - baseline.HeroLevelSum(m.Tag),
		}
		if currDetail, ok := current.PlayerDetails[m.Tag]; ok {
			if baseDetail, ok := baseline.PlayerDetails[m.Tag]; ok {
				row.capital = currDetail.ClanCapitalContributions - baseDetail.ClanCapitalContributions
			}
		}
		rows = append(rows, row)
		trophyValues = append(trophyValues, float64(row.trophy))
		donationValues = append(donationValues, float64(row.donation))
		capitalValues = append(capitalValues, float64(row.capital))
		heroValues = append(heroValues, float64(row.hero))
	}
	if len(rows) == 0 {
		return nil
	}

	trophyMean, trophySpread := meanAndSpread(trophyValues)
	donationMean, donationSpread := meanAndSpread(donationValues)
	capitalMean, capitalSpread := meanAndSpread(capitalValues)
	heroMean, heroSpread := meanAndSpread(heroValues)

	out := make([]scorecard.TournamentScore, 0, len(rows))
	for _, row := range rows {
		core := params.TrophyDeltaWeight*(float64(row.trophy)-trophyMean)/trophySpread +
			params.LeagueDeltaWeight*float64(row.league) +
			params.DonationDeltaWeight*(float64(row.donation)-donationMean)/donationSpread +
			params.CapitalDeltaWeight*(float64(row.capital)-capitalMean)/capitalSpread +
			params.HeroDeltaWeight*(float64(row.hero)-heroMean)/heroSpread

		out = append(out, scorecard.TournamentScore{
			ClanTag:        current.ClanTag,
			MemberTag:      row.tag,
			WeekStart:      weekStart,
			WeekEnd:        weekEnd,
			Score:          clampScore(100 * logisticSquash(core, params.Alpha)),
			TrophyDelta:    row.trophy,
			LeagueDelta:    row.league,
			DonationDelta:  row.donation,
			CapitalDelta:   row.capital,
			HeroLevelDelta: row.hero,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].MemberTag < out[j].MemberTag })
	return out
}
