package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/clashintel/clan-intel/internal/platform/cache"
	"github.com/clashintel/clan-intel/internal/platform/logging"
)

type fakeProvider struct {
	clan       func(ctx context.Context, tag string) (ExternalClan, error)
	members    func(ctx context.Context, tag string) ([]ExternalMember, error)
	player     func(ctx context.Context, tag string) (ExternalPlayer, error)
	warLog     func(ctx context.Context, tag string, limit int) ([]ExternalWar, []byte, error)
	currentWar func(ctx context.Context, tag string) (ExternalWar, []byte, error)
	capital    func(ctx context.Context, tag string, limit int) ([]ExternalCapitalSeason, []byte, error)
}

func (p *fakeProvider) FetchClan(ctx context.Context, tag string) (ExternalClan, error) {
	if p.clan == nil {
		return ExternalClan{Tag: tag, Name: "Test Clan", ClanLevel: 10}, nil
	}
	return p.clan(ctx, tag)
}

func (p *fakeProvider) FetchMembers(ctx context.Context, tag string) ([]ExternalMember, error) {
	if p.members == nil {
		return nil, nil
	}
	return p.members(ctx, tag)
}

func (p *fakeProvider) FetchPlayer(ctx context.Context, tag string) (ExternalPlayer, error) {
	if p.player == nil {
		return ExternalPlayer{Tag: tag}, nil
	}
	return p.player(ctx, tag)
}

func (p *fakeProvider) FetchWarLog(ctx context.Context, tag string, limit int) ([]ExternalWar, []byte, error) {
	if p.warLog == nil {
		return nil, []byte(`{"items":[]}`), nil
	}
	return p.warLog(ctx, tag, limit)
}

func (p *fakeProvider) FetchCurrentWar(ctx context.Context, tag string) (ExternalWar, []byte, error) {
	if p.currentWar == nil {
		return ExternalWar{State: "notInWar"}, []byte(`{"state":"notInWar"}`), nil
	}
	return p.currentWar(ctx, tag)
}

func (p *fakeProvider) FetchCapitalRaidSeasons(ctx context.Context, tag string, limit int) ([]ExternalCapitalSeason, []byte, error) {
	if p.capital == nil {
		return nil, []byte(`{"items":[]}`), nil
	}
	return p.capital(ctx, tag, limit)
}

func testMembers(count int) []ExternalMember {
	members := make([]ExternalMember, 0, count)
	for i := 0; i < count; i++ {
		members = append(members, ExternalMember{
			Tag:      fmt.Sprintf("#MEM%02d", i),
			Name:     fmt.Sprintf("Member %d", i),
			Role:     "member",
			TownHall: 14,
			Trophies: 4000 + i,
		})
	}
	return members
}

func TestFetchService_FetchSnapshot_PartialDetailFailureDegrades(t *testing.T) {
	members := testMembers(10)
	failing := map[string]bool{"#MEM02": true, "#MEM05": true, "#MEM08": true}

	provider := &fakeProvider{
		members: func(_ context.Context, _ string) ([]ExternalMember, error) {
			return members, nil
		},
		player: func(_ context.Context, tag string) (ExternalPlayer, error) {
			if failing[tag] {
				return ExternalPlayer{}, errors.New("maintenance break")
			}
			return ExternalPlayer{
				Tag:      tag,
				TownHall: 14,
				Heroes: []ExternalHero{
					{Name: "Barbarian King", Level: 80, Village: "home"},
					{Name: "Archer Queen", Level: 85, Village: "home"},
					{Name: "Battle Machine", Level: 30, Village: "builderBase"},
				},
			}, nil
		},
	}

	service := NewFetchService(provider, cache.NewStore(time.Minute), FetchConfig{FetchPlayerDetails: true}, logging.NewNop())

	result, err := service.FetchSnapshot(t.Context(), "#2PP")
	if err != nil {
		t.Fatalf("fetch snapshot failed: %v", err)
	}

	snap := result.Snapshot
	if snap.Meta.PlayerDetailCount != 7 {
		t.Fatalf("expected 7 player details, got %d", snap.Meta.PlayerDetailCount)
	}
	if snap.Meta.PlayerDetailFailureCount != 3 {
		t.Fatalf("expected 3 detail failures, got %d", snap.Meta.PlayerDetailFailureCount)
	}
	wantFailed := []string{"#MEM02", "#MEM05", "#MEM08"}
	if len(snap.Meta.FailedPlayerTags) != len(wantFailed) {
		t.Fatalf("expected failed tags %v, got %v", wantFailed, snap.Meta.FailedPlayerTags)
	}
	for i, tag := range wantFailed {
		if snap.Meta.FailedPlayerTags[i] != tag {
			t.Fatalf("expected failed tags %v, got %v", wantFailed, snap.Meta.FailedPlayerTags)
		}
	}
	if len(snap.Meta.ErrorSamples) == 0 || len(snap.Meta.ErrorSamples) > maxFetchErrorSamples {
		t.Fatalf("expected between 1 and %d error samples, got %d", maxFetchErrorSamples, len(snap.Meta.ErrorSamples))
	}

	detail, ok := snap.PlayerDetails["#MEM00"]
	if !ok {
		t.Fatalf("expected detail for #MEM00")
	}
	if detail.HeroBK != 80 || detail.HeroAQ != 85 {
		t.Fatalf("expected home heroes mapped, got bk=%d aq=%d", detail.HeroBK, detail.HeroAQ)
	}
}

func TestFetchService_FetchSnapshot_AbortsOnHighDetailFailureRatio(t *testing.T) {
	members := testMembers(10)

	calls := 0
	provider := &fakeProvider{
		members: func(_ context.Context, _ string) ([]ExternalMember, error) {
			return members, nil
		},
		player: func(_ context.Context, tag string) (ExternalPlayer, error) {
			calls++
			if calls <= 6 {
				return ExternalPlayer{}, errors.New("service unavailable")
			}
			return ExternalPlayer{Tag: tag}, nil
		},
	}

	// No cache so every member hits the failing provider directly.
	service := NewFetchService(provider, nil, FetchConfig{FetchPlayerDetails: true, MaxDetailWorkers: 1}, logging.NewNop())

	_, err := service.FetchSnapshot(t.Context(), "#2PP")
	if !errors.Is(err, ErrFetchAborted) {
		t.Fatalf("expected ErrFetchAborted, got %v", err)
	}
}

func TestFetchService_FetchSnapshot_MandatoryFailureIsFatal(t *testing.T) {
	provider := &fakeProvider{
		members: func(_ context.Context, _ string) ([]ExternalMember, error) {
			return nil, errors.New("status=503")
		},
	}

	service := NewFetchService(provider, nil, FetchConfig{}, logging.NewNop())

	_, err := service.FetchSnapshot(t.Context(), "#2PP")
	if !errors.Is(err, ErrFetchAborted) {
		t.Fatalf("expected ErrFetchAborted, got %v", err)
	}
}

func TestFetchService_FetchSnapshot_OptionalFailuresDegrade(t *testing.T) {
	provider := &fakeProvider{
		members: func(_ context.Context, _ string) ([]ExternalMember, error) {
			return testMembers(3), nil
		},
		warLog: func(_ context.Context, _ string, _ int) ([]ExternalWar, []byte, error) {
			return nil, nil, errors.New("war log private")
		},
		currentWar: func(_ context.Context, _ string) (ExternalWar, []byte, error) {
			return ExternalWar{}, nil, errors.New("status=403")
		},
		capital: func(_ context.Context, _ string, _ int) ([]ExternalCapitalSeason, []byte, error) {
			return nil, nil, errors.New("status=500")
		},
	}

	service := NewFetchService(provider, nil, FetchConfig{}, logging.NewNop())

	result, err := service.FetchSnapshot(t.Context(), "#2PP")
	if err != nil {
		t.Fatalf("expected degraded success, got %v", err)
	}

	meta := result.Snapshot.Meta
	if meta.WarLogAvailable || meta.CurrentWarAvailable || meta.CapitalSeasonsAvailable {
		t.Fatalf("expected all optional sections unavailable, got %+v", meta)
	}
	if len(result.Wars) != 0 || result.CurrentWar != nil {
		t.Fatalf("expected no war payloads, got wars=%d current=%v", len(result.Wars), result.CurrentWar)
	}
	if result.Snapshot.MemberCount != 3 {
		t.Fatalf("expected 3 members, got %d", result.Snapshot.MemberCount)
	}
}

func TestFetchService_FetchSnapshot_NotInWarIsNotIngestable(t *testing.T) {
	provider := &fakeProvider{
		members: func(_ context.Context, _ string) ([]ExternalMember, error) {
			return testMembers(2), nil
		},
	}

	service := NewFetchService(provider, nil, FetchConfig{}, logging.NewNop())

	result, err := service.FetchSnapshot(t.Context(), "#2PP")
	if err != nil {
		t.Fatalf("fetch snapshot failed: %v", err)
	}
	if !result.Snapshot.Meta.CurrentWarAvailable {
		t.Fatalf("expected current war payload recorded")
	}
	if result.CurrentWar != nil {
		t.Fatalf("expected notInWar to produce no ingestable war, got %+v", result.CurrentWar)
	}
}
