package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("CLAN_TAG", "#2PP0JCCL")
	t.Setenv("CLASH_API_TOKEN", "token-123")
}

func TestLoad_AppEnvValidation(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("APP_ENV", "invalid")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid APP_ENV")
	}
}

func TestLoad_RequiresClanTag(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CLAN_TAG", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error when CLAN_TAG is missing")
	}
}

func TestLoad_RequiresAPIToken(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CLASH_API_TOKEN", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error when CLASH_API_TOKEN is missing")
	}
}

func TestLoad_SplitsClanTagCSV(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CLAN_TAG", "#AAA, #BBB ,,#CCC")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.ClanTags) != 3 {
		t.Fatalf("expected 3 clan tags, got %d", len(cfg.ClanTags))
	}
	if cfg.ClanTags[1] != "#BBB" {
		t.Fatalf("unexpected second tag: %q", cfg.ClanTags[1])
	}
}

func TestLoad_UptraceRequiresDSNWhenEnabled(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("UPTRACE_ENABLED", "true")
	t.Setenv("UPTRACE_DSN", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when UPTRACE_ENABLED=true without UPTRACE_DSN")
	}
}

func TestLoad_SummarizerRequiresEndpointWhenEnabled(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SUMMARIZER_ENABLED", "true")
	t.Setenv("SUMMARIZER_ENDPOINT", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when SUMMARIZER_ENABLED=true without SUMMARIZER_ENDPOINT")
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ClashAPIBaseURL != "https://api.clashofclans.com/v1" {
		t.Fatalf("unexpected ClashAPIBaseURL: %q", cfg.ClashAPIBaseURL)
	}
	if cfg.RateMaxConcurrent != 4 {
		t.Fatalf("unexpected RateMaxConcurrent: %d", cfg.RateMaxConcurrent)
	}
	if cfg.RateMinInterval != 150*time.Millisecond {
		t.Fatalf("unexpected RateMinInterval: %s", cfg.RateMinInterval)
	}
	if cfg.FetchWarLogLimit != 10 {
		t.Fatalf("unexpected FetchWarLogLimit: %d", cfg.FetchWarLogLimit)
	}
	if cfg.FetchPlayerFailureRatio != 0.6 {
		t.Fatalf("unexpected FetchPlayerFailureRatio: %v", cfg.FetchPlayerFailureRatio)
	}
	if cfg.ScoringHistoryWindow != 720*time.Hour {
		t.Fatalf("unexpected ScoringHistoryWindow: %s", cfg.ScoringHistoryWindow)
	}
	if cfg.ScoringShrinkageK != 4 {
		t.Fatalf("unexpected ScoringShrinkageK: %v", cfg.ScoringShrinkageK)
	}
	if !cfg.FetchPlayerDetails {
		t.Fatalf("expected FetchPlayerDetails=true by default")
	}
}

func TestLoad_OverridesParse(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("RATE_MAX_CONCURRENT", "2")
	t.Setenv("RATE_MIN_INTERVAL", "500ms")
	t.Setenv("FETCH_PLAYER_FAILURE_RATIO", "0.4")
	t.Setenv("SCORING_WINDOW_TOLERANCE", "12h")
	t.Setenv("SCORING_FORCE_TOURNAMENT_RECOMPUTE", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.RateMaxConcurrent != 2 {
		t.Fatalf("unexpected RateMaxConcurrent: %d", cfg.RateMaxConcurrent)
	}
	if cfg.RateMinInterval != 500*time.Millisecond {
		t.Fatalf("unexpected RateMinInterval: %s", cfg.RateMinInterval)
	}
	if cfg.FetchPlayerFailureRatio != 0.4 {
		t.Fatalf("unexpected FetchPlayerFailureRatio: %v", cfg.FetchPlayerFailureRatio)
	}
	if cfg.ScoringWindowTolerance != 12*time.Hour {
		t.Fatalf("unexpected ScoringWindowTolerance: %s", cfg.ScoringWindowTolerance)
	}
	if !cfg.ScoringForceTournament {
		t.Fatalf("expected ScoringForceTournament=true")
	}
}

func TestLoad_RejectsOutOfRangeValues(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("FETCH_PLAYER_FAILURE_RATIO", "1.5")

	if _, err := Load(); err == nil {
		t.Fatalf("expected validation error for FETCH_PLAYER_FAILURE_RATIO > 1")
	}
}
