package clashapi

import (
	"strings"
	"time"

	"github.com/clashintel/clan-intel/internal/usecase"
)

// clashTimeLayout is the provider's compact timestamp format, e.g.
// 20260301T120000.000Z.
const clashTimeLayout = "20060102T150405.000Z"

func parseClashTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(clashTimeLayout, value)
	if err != nil {
		parsed, err = time.Parse(time.RFC3339, value)
		if err != nil {
			return time.Time{}
		}
	}
	return parsed.UTC()
}

type leagueRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type clanPayload struct {
	Tag        string          `json:"tag"`
	Name       string          `json:"name"`
	ClanLevel  int             `json:"clanLevel"`
	Members    int             `json:"members"`
	WarWins    int             `json:"warWins"`
	WarLosses  int             `json:"warLosses"`
	MemberList []memberPayload `json:"memberList"`
}

type memberPayload struct {
	Tag               string    `json:"tag"`
	Name              string    `json:"name"`
	Role              string    `json:"role"`
	TownHallLevel     int       `json:"townHallLevel"`
	Trophies          int       `json:"trophies"`
	RankedTrophies    int       `json:"rankedTrophies"`
	RankedLeague      leagueRef `json:"rankedLeague"`
	Donations         int       `json:"donations"`
	DonationsReceived int       `json:"donationsReceived"`
}

type memberListEnvelope struct {
	Items []memberPayload `json:"items"`
}

type heroPayload struct {
	Name    string `json:"name"`
	Level   int    `json:"level"`
	Village string `json:"village"`
}

type playerPayload struct {
	Tag                      string        `json:"tag"`
	Name                     string        `json:"name"`
	TownHallLevel            int           `json:"townHallLevel"`
	ExpLevel                 int           `json:"expLevel"`
	Trophies                 int           `json:"trophies"`
	BestTrophies             int           `json:"bestTrophies"`
	WarStars                 int           `json:"warStars"`
	AttackWins               int           `json:"attackWins"`
	DefenseWins              int           `json:"defenseWins"`
	Donations                int           `json:"donations"`
	DonationsReceived        int           `json:"donationsReceived"`
	ClanCapitalContributions int           `json:"clanCapitalContributions"`
	Heroes                   []heroPayload `json:"heroes"`
}

type warAttackPayload struct {
	AttackerTag           string  `json:"attackerTag"`
	DefenderTag           string  `json:"defenderTag"`
	Stars                 int     `json:"stars"`
	DestructionPercentage float64 `json:"destructionPercentage"`
	Order                 int     `json:"order"`
	Duration              int     `json:"duration"`
}

type warMemberPayload struct {
	Tag                string             `json:"tag"`
	Name               string             `json:"name"`
	TownhallLevel      int                `json:"townhallLevel"`
	MapPosition        int                `json:"mapPosition"`
	Attacks            []warAttackPayload `json:"attacks"`
	OpponentAttacks    int                `json:"opponentAttacks"`
	BestOpponentAttack *warAttackPayload  `json:"bestOpponentAttack"`
}

type warClanPayload struct {
	Tag                   string             `json:"tag"`
	Name                  string             `json:"name"`
	ClanLevel             int                `json:"clanLevel"`
	Stars                 int                `json:"stars"`
	DestructionPercentage float64            `json:"destructionPercentage"`
	Attacks               int                `json:"attacks"`
	Members               []warMemberPayload `json:"members"`
}

type warPayload struct {
	State                string         `json:"state"`
	Result               string         `json:"result"`
	TeamSize             int            `json:"teamSize"`
	PreparationStartTime string         `json:"preparationStartTime"`
	StartTime            string         `json:"startTime"`
	EndTime              string         `json:"endTime"`
	Clan                 warClanPayload `json:"clan"`
	Opponent             warClanPayload `json:"opponent"`
}

type warLogEnvelope struct {
	Items []warPayload `json:"items"`
}

type capitalMemberPayload struct {
	Tag                    string `json:"tag"`
	Name                   string `json:"name"`
	Attacks                int    `json:"attacks"`
	AttackLimit            int    `json:"attackLimit"`
	BonusAttackLimit       int    `json:"bonusAttackLimit"`
	CapitalResourcesLooted int    `json:"capitalResourcesLooted"`
}

type capitalSeasonPayload struct {
	State                   string                 `json:"state"`
	StartTime               string                 `json:"startTime"`
	EndTime                 string                 `json:"endTime"`
	CapitalTotalLoot        int                    `json:"capitalTotalLoot"`
	RaidsCompleted          int                    `json:"raidsCompleted"`
	TotalAttacks            int                    `json:"totalAttacks"`
	EnemyDistrictsDestroyed int                    `json:"enemyDistrictsDestroyed"`
	Members                 []capitalMemberPayload `json:"members"`
}

type capitalSeasonsEnvelope struct {
	Items []capitalSeasonPayload `json:"items"`
}

func mapClan(payload clanPayload) usecase.ExternalClan {
	return usecase.ExternalClan{
		Tag:         payload.Tag,
		Name:        payload.Name,
		ClanLevel:   payload.ClanLevel,
		MemberCount: payload.Members,
		WarWins:     payload.WarWins,
		WarLosses:   payload.WarLosses,
	}
}

func mapMembers(items []memberPayload) []usecase.ExternalMember {
	out := make([]usecase.ExternalMember, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.Tag) == "" {
			continue
		}
		out = append(out, usecase.ExternalMember{
			Tag:               item.Tag,
			Name:              item.Name,
			Role:              item.Role,
			TownHall:          item.TownHallLevel,
			Trophies:          item.Trophies,
			RankedTrophies:    item.RankedTrophies,
			RankedLeagueID:    item.RankedLeague.ID,
			Donations:         item.Donations,
			DonationsReceived: item.DonationsReceived,
		})
	}
	return out
}

func mapPlayer(payload playerPayload) usecase.ExternalPlayer {
	heroes := make([]usecase.ExternalHero, 0, len(payload.Heroes))
	for _, hero := range payload.Heroes {
		heroes = append(heroes, usecase.ExternalHero{
			Name:    hero.Name,
			Level:   hero.Level,
			Village: hero.Village,
		})
	}
	return usecase.ExternalPlayer{
		Tag:                      payload.Tag,
		Name:                     payload.Name,
		TownHall:                 payload.TownHallLevel,
		ExpLevel:                 payload.ExpLevel,
		Trophies:                 payload.Trophies,
		BestTrophies:             payload.BestTrophies,
		WarStars:                 payload.WarStars,
		AttackWins:               payload.AttackWins,
		DefenseWins:              payload.DefenseWins,
		Donations:                payload.Donations,
		DonationsReceived:        payload.DonationsReceived,
		ClanCapitalContributions: payload.ClanCapitalContributions,
		Heroes:                   heroes,
	}
}

func mapWarClan(payload warClanPayload) usecase.ExternalWarClan {
	members := make([]usecase.ExternalWarMember, 0, len(payload.Members))
	for _, member := range payload.Members {
		attacks := make([]usecase.ExternalWarAttack, 0, len(member.Attacks))
		for _, attack := range member.Attacks {
			attacks = append(attacks, usecase.ExternalWarAttack{
				AttackerTag:           attack.AttackerTag,
				DefenderTag:           attack.DefenderTag,
				Order:                 attack.Order,
				Stars:                 attack.Stars,
				DestructionPercentage: attack.DestructionPercentage,
				Duration:              attack.Duration,
			})
		}
		mapped := usecase.ExternalWarMember{
			Tag:             member.Tag,
			Name:            member.Name,
			TownHall:        member.TownhallLevel,
			MapPosition:     member.MapPosition,
			Attacks:         attacks,
			OpponentAttacks: member.OpponentAttacks,
		}
		if member.BestOpponentAttack != nil {
			mapped.BestOpponentStars = member.BestOpponentAttack.Stars
		}
		members = append(members, mapped)
	}
	return usecase.ExternalWarClan{
		Tag:                   payload.Tag,
		Name:                  payload.Name,
		ClanLevel:             payload.ClanLevel,
		Stars:                 payload.Stars,
		DestructionPercentage: payload.DestructionPercentage,
		AttacksUsed:           payload.Attacks,
		Members:               members,
	}
}

func mapWar(payload warPayload, raw []byte) usecase.ExternalWar {
	return usecase.ExternalWar{
		State:            payload.State,
		TeamSize:         payload.TeamSize,
		EndTime:          parseClashTime(payload.EndTime),
		PreparationStart: parseClashTime(payload.PreparationStartTime),
		BattleStart:      parseClashTime(payload.StartTime),
		Result:           payload.Result,
		Clan:             mapWarClan(payload.Clan),
		Opponent:         mapWarClan(payload.Opponent),
		Raw:              raw,
	}
}

func mapCapitalSeasons(items []capitalSeasonPayload) []usecase.ExternalCapitalSeason {
	out := make([]usecase.ExternalCapitalSeason, 0, len(items))
	for _, item := range items {
		members := make([]usecase.ExternalCapitalMember, 0, len(item.Members))
		for _, member := range item.Members {
			members = append(members, usecase.ExternalCapitalMember{
				Tag:           member.Tag,
				Name:          member.Name,
				Attacks:       member.Attacks,
				AttackLimit:   member.AttackLimit + member.BonusAttackLimit,
				CapitalLooted: member.CapitalResourcesLooted,
			})
		}
		out = append(out, usecase.ExternalCapitalSeason{
			State:                   item.State,
			StartTime:               parseClashTime(item.StartTime),
			EndTime:                 parseClashTime(item.EndTime),
			CapitalTotalLoot:        item.CapitalTotalLoot,
			RaidsCompleted:          item.RaidsCompleted,
			TotalAttacks:            item.TotalAttacks,
			EnemyDistrictsDestroyed: item.EnemyDistrictsDestroyed,
			Members:                 members,
		})
	}
	return out
}
