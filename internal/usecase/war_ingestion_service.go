package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/clashintel/clan-intel/internal/domain/war"
	"github.com/clashintel/clan-intel/internal/platform/logging"
)

type WarIngestionService struct {
	wars   war.Repository
	logger *logging.Logger
}

func NewWarIngestionService(wars war.Repository, logger *logging.Logger) *WarIngestionService {
	if logger == nil {
		logger = logging.Default()
	}
	return &WarIngestionService{
		wars:   wars,
		logger: logger,
	}
}

// IngestionCounts reports per-entry outcomes so a run can distinguish
// partial degradation from total failure.
type IngestionCounts struct {
	WarsIngested       int
	WarsFailed         int
	CurrentWarIngested bool
}

// IngestWarLog upserts each ended war entry. A failure on one entry is
// logged and counted, never aborting the rest of the batch.
func (s *WarIngestionService) IngestWarLog(ctx context.Context, clanTag string, entries []ExternalWar) (IngestionCounts, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.WarIngestionService.IngestWarLog")
	defer span.End()

	counts := IngestionCounts{}
	if s.wars == nil {
		return counts, fmt.Errorf("%w: war repository is not configured", ErrDependencyUnavailable)
	}
	clanTag = strings.TrimSpace(clanTag)
	if clanTag == "" {
		return counts, fmt.Errorf("%w: clan tag is required", ErrInvalidInput)
	}

	for _, entry := range entries {
		if err := s.ingestOne(ctx, clanTag, entry, war.StateEnded); err != nil {
			counts.WarsFailed++
			s.logger.ErrorContext(ctx, "ingest war entry failed, continuing",
				"clan_tag", clanTag,
				"end_time", entry.EndTime,
				"error", err,
			)
			continue
		}
		counts.WarsIngested++
	}

	return counts, nil
}

// IngestCurrentWar upserts the in-progress war. Re-running with the same
// payload refreshes the existing rows.
func (s *WarIngestionService) IngestCurrentWar(ctx context.Context, clanTag string, current ExternalWar) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.WarIngestionService.IngestCurrentWar")
	defer span.End()

	if s.wars == nil {
		return fmt.Errorf("%w: war repository is not configured", ErrDependencyUnavailable)
	}
	return s.ingestOne(ctx, strings.TrimSpace(clanTag), current, war.NormalizeState(current.State))
}

func (s *WarIngestionService) ingestOne(ctx context.Context, clanTag string, entry ExternalWar, state string) error {
	prepStart, battleStart, endTime := resolveWarTimes(entry)
	if battleStart.IsZero() {
		return fmt.Errorf("%w: war entry has no usable timestamps", ErrInvalidInput)
	}

	record := war.Record{
		ClanTag:     clanTag,
		Type:        war.TypeRegular,
		State:       state,
		TeamSize:    entry.TeamSize,
		PrepStart:   prepStart,
		BattleStart: battleStart,
		EndTime:     endTime,
		Result:      entry.Result,
		Raw:         entry.Raw,
	}

	warID, err := s.wars.UpsertRecord(ctx, record)
	if err != nil {
		return fmt.Errorf("upsert war clan_tag=%s battle_start=%s: %w", clanTag, battleStart.Format(time.RFC3339), err)
	}

	clans := mapWarClans(warID, clanTag, entry)
	if err := s.wars.UpsertClans(ctx, warID, clans); err != nil {
		return fmt.Errorf("upsert war clans war_id=%d: %w", warID, err)
	}

	members := mapWarMembers(warID, entry)
	if err := s.wars.UpsertMembers(ctx, warID, members); err != nil {
		return fmt.Errorf("upsert war members war_id=%d: %w", warID, err)
	}

	attacks := mapWarAttacks(warID, entry)
	if err := s.wars.UpsertAttacks(ctx, warID, attacks); err != nil {
		return fmt.Errorf("upsert war attacks war_id=%d: %w", warID, err)
	}

	return nil
}

// resolveWarTimes prefers explicit payload timestamps and falls back to
// the fixed-duration derivation from the end time.
func resolveWarTimes(entry ExternalWar) (prepStart, battleStart, endTime time.Time) {
	endTime = entry.EndTime.UTC()
	battleStart = entry.BattleStart
	prepStart = entry.PreparationStart

	if battleStart.IsZero() && !endTime.IsZero() {
		prepDerived, battleDerived := war.DeriveTimes(endTime)
		battleStart = battleDerived
		if prepStart.IsZero() {
			prepStart = prepDerived
		}
	}
	battleStart = battleStart.UTC()
	if prepStart.IsZero() && !battleStart.IsZero() {
		prepStart = battleStart.Add(-war.RegularWarDuration)
	}
	prepStart = prepStart.UTC()
	if endTime.IsZero() && !battleStart.IsZero() {
		endTime = battleStart.Add(war.RegularWarDuration)
	}
	return prepStart, battleStart, endTime
}

func mapWarClans(warID int64, homeTag string, entry ExternalWar) []war.Clan {
	home := entry.Clan
	opponent := entry.Opponent
	// Some payloads report the perspective clan on the opponent side.
	if opponent.Tag == homeTag && home.Tag != homeTag {
		home, opponent = opponent, home
	}

	out := make([]war.Clan, 0, 2)
	for _, side := range []struct {
		clan   ExternalWarClan
		isHome bool
	}{
		{clan: home, isHome: true},
		{clan: opponent, isHome: false},
	} {
		if strings.TrimSpace(side.clan.Tag) == "" {
			continue
		}
		out = append(out, war.Clan{
			WarID:                 warID,
			ClanTag:               side.clan.Tag,
			Name:                  side.clan.Name,
			ClanLevel:             side.clan.ClanLevel,
			IsHome:                side.isHome,
			Stars:                 side.clan.Stars,
			DestructionPercentage: side.clan.DestructionPercentage,
			AttacksUsed:           side.clan.AttacksUsed,
		})
	}
	return out
}

func mapWarMembers(warID int64, entry ExternalWar) []war.Member {
	out := make([]war.Member, 0, len(entry.Clan.Members)+len(entry.Opponent.Members))
	for _, side := range []ExternalWarClan{entry.Clan, entry.Opponent} {
		for _, m := range side.Members {
			if strings.TrimSpace(m.Tag) == "" {
				continue
			}
			member := war.Member{
				WarID:            warID,
				MemberTag:        m.Tag,
				Name:             m.Name,
				ClanTag:          side.Tag,
				TownHall:         m.TownHall,
				MapPosition:      m.MapPosition,
				AttacksUsed:      len(m.Attacks),
				DefensesTaken:    m.OpponentAttacks,
				BestDefenseStars: m.BestOpponentStars,
			}
			for _, attack := range m.Attacks {
				member.StarsEarned += attack.Stars
				if attack.DestructionPercentage > member.BestDestruction {
					member.BestDestruction = attack.DestructionPercentage
				}
			}
			out = append(out, member)
		}
	}
	return out
}

func mapWarAttacks(warID int64, entry ExternalWar) []war.Attack {
	out := make([]war.Attack, 0)
	for _, side := range []ExternalWarClan{entry.Clan, entry.Opponent} {
		for _, m := range side.Members {
			for _, attack := range m.Attacks {
				attackerTag := attack.AttackerTag
				if attackerTag == "" {
					attackerTag = m.Tag
				}
				if attackerTag == "" || attack.DefenderTag == "" {
					continue
				}
				out = append(out, war.Attack{
					WarID:                 warID,
					AttackerTag:           attackerTag,
					DefenderTag:           attack.DefenderTag,
					Order:                 attack.Order,
					Stars:                 attack.Stars,
					DestructionPercentage: attack.DestructionPercentage,
					Duration:              attack.Duration,
				})
			}
		}
	}
	return out
}
