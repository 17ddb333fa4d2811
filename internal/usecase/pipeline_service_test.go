package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clashintel/clan-intel/internal/domain/war"
	"github.com/clashintel/clan-intel/internal/infrastructure/repository/memory"
	"github.com/clashintel/clan-intel/internal/platform/logging"
)

func newTestPipeline(provider ClanDataProvider) (*PipelineService, *memory.SnapshotRepository, *memory.WarRepository, *memory.ScoreRepository) {
	snapshots := memory.NewSnapshotRepository()
	wars := memory.NewWarRepository()
	scores := memory.NewScoreRepository()
	logger := logging.NewNop()

	pipeline := NewPipelineService(
		NewFetchService(provider, nil, FetchConfig{}, logger),
		snapshots,
		NewDiffService(snapshots, nil, logger),
		NewWarIngestionService(wars, logger),
		NewScoringService(snapshots, wars, scores, ScoringConfig{}, logger),
		logger,
	)
	return pipeline, snapshots, wars, scores
}

func TestPipelineService_RunIngestion_FullRun(t *testing.T) {
	endTime := time.Now().UTC().Add(-48 * time.Hour)
	provider := &fakeProvider{
		members: func(_ context.Context, _ string) ([]ExternalMember, error) {
			return testMembers(5), nil
		},
		warLog: func(_ context.Context, _ string, _ int) ([]ExternalWar, []byte, error) {
			return []ExternalWar{warLogEntry(endTime, "win")}, []byte(`{"items":[{}]}`), nil
		},
		currentWar: func(_ context.Context, _ string) (ExternalWar, []byte, error) {
			current := warLogEntry(time.Now().UTC().Add(20*time.Hour), "")
			current.State = "inWar"
			return current, []byte(`{"state":"inWar"}`), nil
		},
	}

	pipeline, snapshots, wars, scores := newTestPipeline(provider)

	result, err := pipeline.RunIngestion(t.Context(), "#2PP")
	if err != nil {
		t.Fatalf("run ingestion failed: %v", err)
	}

	if len(result.Errors) != 0 {
		t.Fatalf("expected clean run, got errors: %v", result.Errors)
	}
	if result.WarsIngested != 1 {
		t.Fatalf("expected 1 war ingested, got %d", result.WarsIngested)
	}
	if !result.CurrentWarIngested {
		t.Fatalf("expected current war ingested")
	}
	if result.ScoresComputed != 5 {
		t.Fatalf("expected 5 player scores, got %d", result.ScoresComputed)
	}
	if result.ChangesDetected != 0 {
		t.Fatalf("expected no changes on first run, got %d", result.ChangesDetected)
	}

	if _, err := snapshots.GetByDate(t.Context(), "#2PP", result.Date); err != nil {
		t.Fatalf("expected snapshot persisted: %v", err)
	}
	if wars.WarCount() != 2 {
		t.Fatalf("expected log entry plus current war stored, got %d", wars.WarCount())
	}
	if scores.PlayerScoreCount() != 5 {
		t.Fatalf("expected 5 score rows, got %d", scores.PlayerScoreCount())
	}
}

func TestPipelineService_RunIngestion_FetchFailureIsFatal(t *testing.T) {
	provider := &fakeProvider{
		clan: func(_ context.Context, _ string) (ExternalClan, error) {
			return ExternalClan{}, errors.New("status=503")
		},
	}

	pipeline, _, _, _ := newTestPipeline(provider)

	_, err := pipeline.RunIngestion(t.Context(), "#2PP")
	if !errors.Is(err, ErrFetchAborted) {
		t.Fatalf("expected ErrFetchAborted, got %v", err)
	}
}

func TestPipelineService_RunIngestion_WarStageFailureDegrades(t *testing.T) {
	provider := &fakeProvider{
		members: func(_ context.Context, _ string) ([]ExternalMember, error) {
			return testMembers(2), nil
		},
		warLog: func(_ context.Context, _ string, _ int) ([]ExternalWar, []byte, error) {
			// One entry with no timestamps at all.
			return []ExternalWar{{State: war.StateEnded, Result: "win"}}, []byte(`{"items":[{}]}`), nil
		},
	}

	pipeline, _, _, _ := newTestPipeline(provider)

	result, err := pipeline.RunIngestion(t.Context(), "#2PP")
	if err != nil {
		t.Fatalf("expected degraded run, got %v", err)
	}
	if result.WarsIngested != 0 || result.WarsFailed != 1 {
		t.Fatalf("expected failed war entry counted, got %+v", result)
	}
	if result.ScoresComputed != 2 {
		t.Fatalf("expected scoring to run despite war failures, got %d", result.ScoresComputed)
	}
}

func TestPipelineService_RunIngestion_RequiresClanTag(t *testing.T) {
	pipeline, _, _, _ := newTestPipeline(&fakeProvider{})

	_, err := pipeline.RunIngestion(t.Context(), "   ")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
