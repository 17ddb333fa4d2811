package usecase

import (
	"testing"
	"time"

	"github.com/clashintel/clan-intel/internal/domain/war"
	"github.com/clashintel/clan-intel/internal/infrastructure/repository/memory"
	"github.com/clashintel/clan-intel/internal/platform/logging"
)

func warLogEntry(endTime time.Time, result string) ExternalWar {
	return ExternalWar{
		State:    war.StateEnded,
		TeamSize: 15,
		EndTime:  endTime,
		Result:   result,
		Clan: ExternalWarClan{
			Tag:       "#CLAN",
			Name:      "Test Clan",
			ClanLevel: 12,
			Stars:     38,
			Members: []ExternalWarMember{
				{
					Tag:         "#AAA",
					Name:        "Alpha",
					TownHall:    15,
					MapPosition: 1,
					Attacks: []ExternalWarAttack{
						{DefenderTag: "#XXX", Order: 1, Stars: 3, DestructionPercentage: 100},
						{DefenderTag: "#YYY", Order: 4, Stars: 2, DestructionPercentage: 87},
					},
					OpponentAttacks:   1,
					BestOpponentStars: 1,
				},
			},
		},
		Opponent: ExternalWarClan{
			Tag:   "#ENEMY",
			Name:  "Enemy Clan",
			Stars: 31,
			Members: []ExternalWarMember{
				{
					Tag:         "#XXX",
					Name:        "Xray",
					TownHall:    15,
					MapPosition: 1,
				},
			},
		},
		Raw: []byte(`{"state":"warEnded"}`),
	}
}

func TestWarIngestionService_IngestWarLog_IsIdempotent(t *testing.T) {
	repo := memory.NewWarRepository()
	service := NewWarIngestionService(repo, logging.NewNop())

	entries := []ExternalWar{
		warLogEntry(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), "win"),
		warLogEntry(time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC), "lose"),
	}

	counts, err := service.IngestWarLog(t.Context(), "#CLAN", entries)
	if err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}
	if counts.WarsIngested != 2 || counts.WarsFailed != 0 {
		t.Fatalf("expected 2 ingested, got %+v", counts)
	}
	if repo.WarCount() != 2 {
		t.Fatalf("expected 2 wars stored, got %d", repo.WarCount())
	}

	counts, err = service.IngestWarLog(t.Context(), "#CLAN", entries)
	if err != nil {
		t.Fatalf("second ingest failed: %v", err)
	}
	if counts.WarsIngested != 2 {
		t.Fatalf("expected reingest to succeed, got %+v", counts)
	}
	if repo.WarCount() != 2 {
		t.Fatalf("expected reingest to reuse rows, got %d wars", repo.WarCount())
	}
}

func TestWarIngestionService_DerivesBattleStartFromEndTime(t *testing.T) {
	repo := memory.NewWarRepository()
	service := NewWarIngestionService(repo, logging.NewNop())

	endTime := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if _, err := service.IngestWarLog(t.Context(), "#CLAN", []ExternalWar{warLogEntry(endTime, "win")}); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	wantBattle := endTime.Add(-war.RegularWarDuration)
	record, ok := repo.RecordByKey("#CLAN", war.TypeRegular, wantBattle)
	if !ok {
		t.Fatalf("expected war stored under derived battle start %v", wantBattle)
	}
	if !record.PrepStart.Equal(wantBattle.Add(-war.RegularWarDuration)) {
		t.Fatalf("expected prep start 24h before battle, got %v", record.PrepStart)
	}
	if !record.EndTime.Equal(endTime) {
		t.Fatalf("expected end time preserved, got %v", record.EndTime)
	}
}

func TestWarIngestionService_ExplicitTimestampsWin(t *testing.T) {
	repo := memory.NewWarRepository()
	service := NewWarIngestionService(repo, logging.NewNop())

	battle := time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)
	entry := warLogEntry(battle.Add(war.RegularWarDuration), "win")
	entry.BattleStart = battle
	entry.PreparationStart = battle.Add(-23 * time.Hour)

	if err := service.IngestCurrentWar(t.Context(), "#CLAN", entry); err != nil {
		t.Fatalf("ingest current war failed: %v", err)
	}

	record, ok := repo.RecordByKey("#CLAN", war.TypeRegular, battle)
	if !ok {
		t.Fatalf("expected war keyed by explicit battle start")
	}
	if !record.PrepStart.Equal(battle.Add(-23 * time.Hour)) {
		t.Fatalf("expected explicit prep start kept, got %v", record.PrepStart)
	}
}

func TestWarIngestionService_AggregatesMemberAndAttackRows(t *testing.T) {
	repo := memory.NewWarRepository()
	service := NewWarIngestionService(repo, logging.NewNop())

	endTime := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if _, err := service.IngestWarLog(t.Context(), "#CLAN", []ExternalWar{warLogEntry(endTime, "win")}); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	since := endTime.AddDate(0, 0, -7)
	facts, err := repo.ListMemberFactsSince(t.Context(), "#CLAN", since)
	if err != nil {
		t.Fatalf("list member facts failed: %v", err)
	}
	if len(facts) != 1 {
		t.Fatalf("expected facts for 1 member, got %d", len(facts))
	}
	f := facts[0]
	if f.MemberTag != "#AAA" || f.AttacksUsed != 2 || f.StarsEarned != 5 {
		t.Fatalf("unexpected aggregate: %+v", f)
	}
	if f.AttacksPossible != 2 || f.DefensesTaken != 1 {
		t.Fatalf("unexpected aggregate: %+v", f)
	}

	record, ok := repo.RecordByKey("#CLAN", war.TypeRegular, endTime.Add(-war.RegularWarDuration))
	if !ok {
		t.Fatalf("expected war stored")
	}
	attackCount, err := repo.CountAttacksByWar(t.Context(), record.ID)
	if err != nil {
		t.Fatalf("count attacks failed: %v", err)
	}
	if attackCount != 2 {
		t.Fatalf("expected 2 attack rows, got %d", attackCount)
	}
}

func TestWarIngestionService_EntryWithoutTimestampsCountsAsFailed(t *testing.T) {
	repo := memory.NewWarRepository()
	service := NewWarIngestionService(repo, logging.NewNop())

	entries := []ExternalWar{
		{State: war.StateEnded, Result: "win"},
		warLogEntry(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), "win"),
	}

	counts, err := service.IngestWarLog(t.Context(), "#CLAN", entries)
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if counts.WarsIngested != 1 || counts.WarsFailed != 1 {
		t.Fatalf("expected 1 ingested and 1 failed, got %+v", counts)
	}
}
