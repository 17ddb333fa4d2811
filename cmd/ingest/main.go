package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/clashintel/clan-intel/internal/app"
	"github.com/clashintel/clan-intel/internal/config"
	"github.com/clashintel/clan-intel/internal/observability"
	"github.com/clashintel/clan-intel/internal/platform/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.NewJSON(cfg.LogLevel)
	logging.SetDefault(logger)
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownUptrace, err := observability.InitUptrace(cfg, logger)
	if err != nil {
		logger.Error("init uptrace", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := shutdownUptrace(shutdownCtx); err != nil {
			logger.Error("shutdown uptrace", "error", err)
		}
	}()

	stopPyroscope, err := observability.InitPyroscope(cfg, logger)
	if err != nil {
		logger.Error("init pyroscope", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := stopPyroscope(); err != nil {
			logger.Error("stop pyroscope", "error", err)
		}
	}()

	pprofSrv, err := observability.StartPprofServer(cfg, logger)
	if err != nil {
		logger.Error("start pprof server", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := observability.StopPprofServer(pprofSrv, logger, 5*time.Second); err != nil {
			logger.Error("stop pprof server", "error", err)
		}
	}()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("build app", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Error("close app", "error", err)
		}
	}()

	runPool := pool.New().WithErrors().WithContext(ctx)
	for _, clanTag := range cfg.ClanTags {
		runPool.Go(func(ctx context.Context) error {
			result, err := application.Pipeline.RunIngestion(ctx, clanTag)
			if err != nil {
				logger.ErrorContext(ctx, "ingestion failed", "clan_tag", clanTag, "error", err)
				return err
			}

			logger.InfoContext(ctx, "ingestion complete",
				"clan_tag", result.ClanTag,
				"date", result.Date.Format("2006-01-02"),
				"wars_ingested", result.WarsIngested,
				"wars_failed", result.WarsFailed,
				"current_war_ingested", result.CurrentWarIngested,
				"changes_detected", result.ChangesDetected,
				"scores_computed", result.ScoresComputed,
				"tournament_scores_computed", result.TournamentScoresComputed,
				"stage_errors", len(result.Errors),
			)
			for _, stageErr := range result.Errors {
				logger.WarnContext(ctx, "ingestion stage degraded", "clan_tag", result.ClanTag, "detail", stageErr)
			}
			return nil
		})
	}
	if err := runPool.Wait(); err != nil {
		os.Exit(1)
	}
}
