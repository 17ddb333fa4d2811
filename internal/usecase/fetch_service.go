package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"

	"github.com/clashintel/clan-intel/internal/domain/snapshot"
	"github.com/clashintel/clan-intel/internal/platform/cache"
	"github.com/clashintel/clan-intel/internal/platform/logging"
)

const maxFetchErrorSamples = 5

type FetchConfig struct {
	WarLogLimit         int
	CapitalSeasonLimit  int
	MandatoryTimeout    time.Duration
	OptionalTimeout     time.Duration
	PlayerDetailTimeout time.Duration
	// PlayerFailureRatio is the fraction of failed member-detail calls at
	// which the whole fetch aborts instead of storing a hollow snapshot.
	PlayerFailureRatio float64
	MaxDetailWorkers   int
	FetchPlayerDetails bool
}

func (c FetchConfig) normalized() FetchConfig {
	if c.WarLogLimit <= 0 {
		c.WarLogLimit = 10
	}
	if c.CapitalSeasonLimit <= 0 {
		c.CapitalSeasonLimit = 3
	}
	if c.MandatoryTimeout <= 0 {
		c.MandatoryTimeout = 30 * time.Second
	}
	if c.OptionalTimeout <= 0 {
		c.OptionalTimeout = 45 * time.Second
	}
	if c.PlayerDetailTimeout <= 0 {
		c.PlayerDetailTimeout = 10 * time.Second
	}
	if c.PlayerFailureRatio <= 0 || c.PlayerFailureRatio > 1 {
		c.PlayerFailureRatio = 0.6
	}
	if c.MaxDetailWorkers <= 0 {
		c.MaxDetailWorkers = 8
	}
	return c
}

// FetchResult carries the assembled snapshot plus the parsed war payloads
// that feed war ingestion downstream.
type FetchResult struct {
	Snapshot   snapshot.Snapshot
	Wars       []ExternalWar
	CurrentWar *ExternalWar
}

type FetchService struct {
	provider    ClanDataProvider
	detailCache *cache.Store
	cfg         FetchConfig
	logger      *logging.Logger
}

func NewFetchService(provider ClanDataProvider, detailCache *cache.Store, cfg FetchConfig, logger *logging.Logger) *FetchService {
	if logger == nil {
		logger = logging.Default()
	}
	return &FetchService{
		provider:    provider,
		detailCache: detailCache,
		cfg:         cfg.normalized(),
		logger:      logger,
	}
}

// FetchSnapshot pulls the full clan object graph. Clan info and the member
// list are mandatory; war log, current war and capital seasons degrade to
// empty values on failure.
func (s *FetchService) FetchSnapshot(ctx context.Context, clanTag string) (FetchResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.FetchService.FetchSnapshot")
	defer span.End()

	clanTag = strings.TrimSpace(clanTag)
	if clanTag == "" {
		return FetchResult{}, fmt.Errorf("%w: clan tag is required", ErrInvalidInput)
	}
	if s.provider == nil {
		return FetchResult{}, fmt.Errorf("%w: clan data provider is not configured", ErrDependencyUnavailable)
	}

	now := time.Now().UTC()

	var clan ExternalClan
	var members []ExternalMember
	mandatoryCtx, cancelMandatory := context.WithTimeout(ctx, s.cfg.MandatoryTimeout)
	mandatory := pool.New().WithErrors().WithContext(mandatoryCtx).WithCancelOnError()
	mandatory.Go(func(ctx context.Context) error {
		fetched, err := s.provider.FetchClan(ctx, clanTag)
		if err != nil {
			return fmt.Errorf("fetch clan tag=%s: %w", clanTag, err)
		}
		clan = fetched
		return nil
	})
	mandatory.Go(func(ctx context.Context) error {
		fetched, err := s.provider.FetchMembers(ctx, clanTag)
		if err != nil {
			return fmt.Errorf("fetch members tag=%s: %w", clanTag, err)
		}
		members = fetched
		return nil
	})
	err := mandatory.Wait()
	cancelMandatory()
	if err != nil {
		return FetchResult{}, fmt.Errorf("%w: %v", ErrFetchAborted, err)
	}

	snap := snapshot.Snapshot{
		ClanTag:     clan.Tag,
		Date:        snapshot.DateOnly(now),
		ClanName:    clan.Name,
		ClanLevel:   clan.ClanLevel,
		MemberCount: len(members),
		Members:     mapExternalMembers(members),
		Meta: snapshot.FetchMeta{
			FetchedAt: now,
		},
	}
	if snap.ClanTag == "" {
		snap.ClanTag = clanTag
	}

	result := FetchResult{}
	s.fetchOptional(ctx, clanTag, &snap, &result)

	if s.cfg.FetchPlayerDetails {
		details, meta, err := s.fetchPlayerDetails(ctx, members)
		if err != nil {
			return FetchResult{}, err
		}
		snap.PlayerDetails = details
		snap.Meta.PlayerDetailCount = meta.PlayerDetailCount
		snap.Meta.PlayerDetailFailureCount = meta.PlayerDetailFailureCount
		snap.Meta.FailedPlayerTags = meta.FailedPlayerTags
		snap.Meta.ErrorSamples = meta.ErrorSamples
	}

	result.Snapshot = snap
	return result, nil
}

// fetchOptional runs the three independently optional calls. Each failure
// is logged and leaves the corresponding field empty.
func (s *FetchService) fetchOptional(ctx context.Context, clanTag string, snap *snapshot.Snapshot, result *FetchResult) {
	optionalCtx, cancel := context.WithTimeout(ctx, s.cfg.OptionalTimeout)
	defer cancel()

	var wg conc.WaitGroup
	var mu sync.Mutex

	wg.Go(func() {
		wars, raw, err := s.provider.FetchWarLog(optionalCtx, clanTag, s.cfg.WarLogLimit)
		if err != nil {
			s.logger.WarnContext(ctx, "war log unavailable, continuing without it", "clan_tag", clanTag, "error", err)
			return
		}
		mu.Lock()
		snap.WarLog = raw
		snap.Meta.WarLogAvailable = true
		result.Wars = wars
		mu.Unlock()
	})
	wg.Go(func() {
		current, raw, err := s.provider.FetchCurrentWar(optionalCtx, clanTag)
		if err != nil {
			s.logger.WarnContext(ctx, "current war unavailable, continuing without it", "clan_tag", clanTag, "error", err)
			return
		}
		mu.Lock()
		snap.CurrentWar = raw
		snap.Meta.CurrentWarAvailable = true
		if current.State != "" && current.State != "notInWar" {
			result.CurrentWar = &current
		}
		mu.Unlock()
	})
	wg.Go(func() {
		_, raw, err := s.provider.FetchCapitalRaidSeasons(optionalCtx, clanTag, s.cfg.CapitalSeasonLimit)
		if err != nil {
			s.logger.WarnContext(ctx, "capital seasons unavailable, continuing without them", "clan_tag", clanTag, "error", err)
			return
		}
		mu.Lock()
		snap.CapitalSeasons = raw
		snap.Meta.CapitalSeasonsAvailable = true
		mu.Unlock()
	})
	wg.Wait()
}

// fetchPlayerDetails fans out one gated call per member through a bounded
// worker pool, short-circuiting through the detail cache.
func (s *FetchService) fetchPlayerDetails(ctx context.Context, members []ExternalMember) (map[string]snapshot.PlayerDetail, snapshot.FetchMeta, error) {
	meta := snapshot.FetchMeta{}
	if len(members) == 0 {
		return map[string]snapshot.PlayerDetail{}, meta, nil
	}

	type detailResult struct {
		tag    string
		detail snapshot.PlayerDetail
		err    error
	}

	workerCount := s.cfg.MaxDetailWorkers
	if workerCount > len(members) {
		workerCount = len(members)
	}
	workerPool, err := ants.NewPool(workerCount)
	if err != nil {
		return nil, meta, fmt.Errorf("create detail worker pool: %w", err)
	}
	defer workerPool.Release()

	results := make(chan detailResult, len(members))
	var failureCount atomic.Int32
	var workers sync.WaitGroup

	for _, member := range members {
		member := member
		workers.Add(1)
		if err := workerPool.Submit(func() {
			defer workers.Done()

			detail, err := s.loadPlayerDetail(ctx, member.Tag)
			if err != nil {
				failureCount.Add(1)
				results <- detailResult{tag: member.Tag, err: err}
				return
			}
			results <- detailResult{tag: member.Tag, detail: detail}
		}); err != nil {
			workers.Done()
			return nil, meta, fmt.Errorf("submit detail fetch to worker pool: %w", err)
		}
	}

	workers.Wait()
	close(results)

	details := make(map[string]snapshot.PlayerDetail, len(members))
	failedTags := make([]string, 0)
	samples := make([]string, 0, maxFetchErrorSamples)
	for row := range results {
		if row.err != nil {
			failedTags = append(failedTags, row.tag)
			if len(samples) < maxFetchErrorSamples {
				samples = append(samples, row.err.Error())
			}
			continue
		}
		details[row.tag] = row.detail
	}
	sort.Strings(failedTags)

	meta.PlayerDetailCount = len(details)
	meta.PlayerDetailFailureCount = int(failureCount.Load())
	meta.FailedPlayerTags = failedTags
	meta.ErrorSamples = samples

	ratio := float64(meta.PlayerDetailFailureCount) / float64(len(members))
	if ratio >= s.cfg.PlayerFailureRatio {
		return nil, meta, fmt.Errorf(
			"%w: %d of %d member detail fetches failed (ratio %.2f >= %.2f)",
			ErrFetchAborted, meta.PlayerDetailFailureCount, len(members), ratio, s.cfg.PlayerFailureRatio,
		)
	}
	if meta.PlayerDetailFailureCount > 0 {
		s.logger.WarnContext(ctx, "partial member detail fetch",
			"failed", meta.PlayerDetailFailureCount,
			"total", len(members),
			"failed_tags", failedTags,
		)
	}

	return details, meta, nil
}

func (s *FetchService) loadPlayerDetail(ctx context.Context, tag string) (snapshot.PlayerDetail, error) {
	loader := func(ctx context.Context) (any, error) {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.PlayerDetailTimeout)
		defer cancel()

		player, err := s.provider.FetchPlayer(callCtx, tag)
		if err != nil {
			return nil, fmt.Errorf("fetch player tag=%s: %w", tag, err)
		}
		return mapExternalPlayer(player), nil
	}

	if s.detailCache == nil {
		value, err := loader(ctx)
		if err != nil {
			return snapshot.PlayerDetail{}, err
		}
		return value.(snapshot.PlayerDetail), nil
	}

	value, err := s.detailCache.GetOrLoad(ctx, "player-detail:"+tag, loader)
	if err != nil {
		return snapshot.PlayerDetail{}, err
	}
	detail, ok := value.(snapshot.PlayerDetail)
	if !ok {
		return snapshot.PlayerDetail{}, fmt.Errorf("unexpected cached detail type %T for tag=%s", value, tag)
	}
	return detail, nil
}

func mapExternalMembers(members []ExternalMember) []snapshot.MemberSummary {
	out := make([]snapshot.MemberSummary, 0, len(members))
	for _, m := range members {
		if strings.TrimSpace(m.Tag) == "" {
			continue
		}
		out = append(out, snapshot.MemberSummary{
			Tag:               m.Tag,
			Name:              m.Name,
			Role:              snapshot.NormalizeRole(m.Role),
			TownHall:          m.TownHall,
			Trophies:          m.Trophies,
			RankedTrophies:    m.RankedTrophies,
			RankedLeagueID:    m.RankedLeagueID,
			Donations:         m.Donations,
			DonationsReceived: m.DonationsReceived,
		})
	}
	return out
}

func mapExternalPlayer(p ExternalPlayer) snapshot.PlayerDetail {
	detail := snapshot.PlayerDetail{
		Tag:                      p.Tag,
		Name:                     p.Name,
		TownHall:                 p.TownHall,
		ExpLevel:                 p.ExpLevel,
		Trophies:                 p.Trophies,
		BestTrophies:             p.BestTrophies,
		WarStars:                 p.WarStars,
		AttackWins:               p.AttackWins,
		DefenseWins:              p.DefenseWins,
		Donations:                p.Donations,
		DonationsReceived:        p.DonationsReceived,
		ClanCapitalContributions: p.ClanCapitalContributions,
	}
	for _, hero := range p.Heroes {
		if hero.Village != "" && !strings.EqualFold(hero.Village, "home") {
			continue
		}
		switch hero.Name {
		case "Barbarian King":
			detail.HeroBK = hero.Level
		case "Archer Queen":
			detail.HeroAQ = hero.Level
		case "Grand Warden":
			detail.HeroGW = hero.Level
		case "Royal Champion":
			detail.HeroRC = hero.Level
		case "Minion Prince":
			detail.HeroMP = hero.Level
		}
	}
	return detail
}
