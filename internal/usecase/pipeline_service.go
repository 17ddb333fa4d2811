package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/clashintel/clan-intel/internal/domain/snapshot"
	"github.com/clashintel/clan-intel/internal/platform/logging"
)

// IngestionResult reports what one pipeline run accomplished. Errors holds
// the non-fatal failures of stages the run degraded through.
type IngestionResult struct {
	ClanTag                  string
	Date                     time.Time
	WarsIngested             int
	WarsFailed               int
	CurrentWarIngested       bool
	ChangesDetected          int
	ScoresComputed           int
	TournamentScoresComputed int
	Errors                   []string
}

// PipelineService runs the full ingestion sequence for one clan: fetch,
// persist, diff, war ingestion, scoring. Only the fetch and the snapshot
// write are fatal; every later stage degrades into Errors.
type PipelineService struct {
	fetch     *FetchService
	snapshots snapshot.Repository
	diff      *DiffService
	wars      *WarIngestionService
	scoring   *ScoringService
	logger    *logging.Logger
}

func NewPipelineService(
	fetch *FetchService,
	snapshots snapshot.Repository,
	diff *DiffService,
	wars *WarIngestionService,
	scoring *ScoringService,
	logger *logging.Logger,
) *PipelineService {
	if logger == nil {
		logger = logging.Default()
	}
	return &PipelineService{
		fetch:     fetch,
		snapshots: snapshots,
		diff:      diff,
		wars:      wars,
		scoring:   scoring,
		logger:    logger,
	}
}

func (s *PipelineService) RunIngestion(ctx context.Context, clanTag string) (IngestionResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.PipelineService.RunIngestion")
	defer span.End()

	clanTag = strings.TrimSpace(clanTag)
	result := IngestionResult{ClanTag: clanTag}
	if clanTag == "" {
		return result, fmt.Errorf("%w: clan tag is required", ErrInvalidInput)
	}
	if s.fetch == nil || s.snapshots == nil {
		return result, fmt.Errorf("%w: pipeline is missing fetch or snapshot dependencies", ErrDependencyUnavailable)
	}

	started := time.Now()
	s.logger.InfoContext(ctx, "ingestion run started", "clan_tag", clanTag)

	fetched, err := s.fetch.FetchSnapshot(ctx, clanTag)
	if err != nil {
		return result, fmt.Errorf("fetch snapshot clan_tag=%s: %w", clanTag, err)
	}
	current := fetched.Snapshot
	result.Date = current.Date

	if err := s.snapshots.Upsert(ctx, current); err != nil {
		return result, fmt.Errorf("persist snapshot clan_tag=%s: %w", clanTag, err)
	}

	if s.diff != nil {
		changes, err := s.diff.DetectAndRecord(ctx, current)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("diff: %v", err))
			s.logger.ErrorContext(ctx, "diff stage failed", "clan_tag", clanTag, "error", err)
		} else {
			result.ChangesDetected = len(changes)
		}
	}

	if s.wars != nil {
		if len(fetched.Wars) > 0 {
			counts, err := s.wars.IngestWarLog(ctx, clanTag, fetched.Wars)
			result.WarsIngested = counts.WarsIngested
			result.WarsFailed = counts.WarsFailed
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("war log: %v", err))
				s.logger.ErrorContext(ctx, "war log stage failed", "clan_tag", clanTag, "error", err)
			}
		}
		if fetched.CurrentWar != nil {
			if err := s.wars.IngestCurrentWar(ctx, clanTag, *fetched.CurrentWar); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("current war: %v", err))
				s.logger.ErrorContext(ctx, "current war stage failed", "clan_tag", clanTag, "error", err)
			} else {
				result.CurrentWarIngested = true
			}
		}
	}

	if s.scoring != nil {
		computed, err := s.scoring.ComputePlayerScores(ctx, current)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("player scores: %v", err))
			s.logger.ErrorContext(ctx, "player score stage failed", "clan_tag", clanTag, "error", err)
		} else {
			result.ScoresComputed = computed
		}

		tournament, err := s.scoring.ComputeTournamentScores(ctx, current)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("tournament scores: %v", err))
			s.logger.ErrorContext(ctx, "tournament score stage failed", "clan_tag", clanTag, "error", err)
		} else {
			result.TournamentScoresComputed = tournament
		}
	}

	s.logger.InfoContext(ctx, "ingestion run finished",
		"clan_tag", clanTag,
		"wars_ingested", result.WarsIngested,
		"changes_detected", result.ChangesDetected,
		"scores_computed", result.ScoresComputed,
		"errors", len(result.Errors),
		"elapsed", time.Since(started).String(),
	)

	return result, nil
}
