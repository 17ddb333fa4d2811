package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"
	"go.opentelemetry.io/otel/attribute"

	"github.com/clashintel/clan-intel/external/clashapi"
	"github.com/clashintel/clan-intel/internal/config"
	"github.com/clashintel/clan-intel/internal/infrastructure/notify"
	"github.com/clashintel/clan-intel/internal/infrastructure/repository/postgres"
	"github.com/clashintel/clan-intel/internal/platform/cache"
	idgen "github.com/clashintel/clan-intel/internal/platform/id"
	"github.com/clashintel/clan-intel/internal/platform/logging"
	"github.com/clashintel/clan-intel/internal/platform/ratelimit"
	"github.com/clashintel/clan-intel/internal/platform/resilience"
	"github.com/clashintel/clan-intel/internal/usecase"
)

// App owns the wired dependency graph for one ingestion process.
type App struct {
	Config   config.Config
	Logger   *logging.Logger
	DB       *sqlx.DB
	Pipeline *usecase.PipelineService
}

func New(ctx context.Context, cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}

	dbURL := normalizeDBURL(cfg.DBURL, cfg.DBDisablePreparedBinary)
	db, err := otelsqlx.Open("postgres", dbURL,
		otelsql.WithAttributes(attribute.String("db.system", "postgresql")),
		otelsql.WithDBName(dbNameFromURL(dbURL)),
		otelsql.WithQueryFormatter(formatDBQueryForTrace),
	)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	snapshotRepo := postgres.NewSnapshotRepository(db)
	warRepo := postgres.NewWarRepository(db)
	scoreRepo := postgres.NewScoreRepository(db)

	gate := ratelimit.NewGate(cfg.RateMaxConcurrent, cfg.RateMinInterval)
	client := clashapi.NewClient(clashapi.ClientConfig{
		BaseURL:    cfg.ClashAPIBaseURL,
		Token:      cfg.ClashAPIToken,
		Timeout:    cfg.ClashAPITimeout,
		MaxRetries: cfg.ClashAPIMaxRetries,
		Gate:       gate,
		Logger:     logger,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.ClashCircuitEnabled,
			FailureThreshold: cfg.ClashCircuitFailureCount,
			OpenTimeout:      cfg.ClashCircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.ClashCircuitHalfOpenMaxReq,
		},
	})

	var detailCache *cache.Store
	if cfg.CacheEnabled {
		detailCache = cache.NewStore(cfg.CacheTTL)
	}

	fetchSvc := usecase.NewFetchService(client, detailCache, usecase.FetchConfig{
		WarLogLimit:         cfg.FetchWarLogLimit,
		CapitalSeasonLimit:  cfg.FetchCapitalSeasonLimit,
		MandatoryTimeout:    cfg.FetchMandatoryTimeout,
		OptionalTimeout:     cfg.FetchOptionalTimeout,
		PlayerDetailTimeout: cfg.FetchPlayerDetailTimeout,
		PlayerFailureRatio:  cfg.FetchPlayerFailureRatio,
		MaxDetailWorkers:    cfg.FetchMaxDetailWorkers,
		FetchPlayerDetails:  cfg.FetchPlayerDetails,
	}, logger)

	var summarizer usecase.ChangeSummarizer
	if cfg.SummarizerEnabled {
		summarizer = notify.NewWebhookSummarizer(notify.WebhookSummarizerConfig{
			Endpoint: cfg.SummarizerEndpoint,
			Token:    cfg.SummarizerToken,
			Timeout:  cfg.SummarizerTimeout,
		}, idgen.NewRandomGenerator(), logger)
	}

	diffSvc := usecase.NewDiffService(snapshotRepo, summarizer, logger)
	warSvc := usecase.NewWarIngestionService(warRepo, logger)
	scoringSvc := usecase.NewScoringService(snapshotRepo, warRepo, scoreRepo, usecase.ScoringConfig{
		Params: usecase.ScoringParams{
			ShrinkageK: cfg.ScoringShrinkageK,
			Alpha:      cfg.ScoringAlpha,
		},
		HistoryWindow:            cfg.ScoringHistoryWindow,
		WindowStartTolerance:     cfg.ScoringWindowTolerance,
		ForceTournamentRecompute: cfg.ScoringForceTournament,
	}, logger)

	pipeline := usecase.NewPipelineService(fetchSvc, snapshotRepo, diffSvc, warSvc, scoringSvc, logger)

	return &App{
		Config:   cfg,
		Logger:   logger,
		DB:       db,
		Pipeline: pipeline,
	}, nil
}

func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}
