package postgres

import "time"

type warInsertModel struct {
	ClanTag     string    `db:"clan_tag"`
	WarType     string    `db:"war_type"`
	State       string    `db:"state"`
	TeamSize    int       `db:"team_size"`
	PrepStart   time.Time `db:"prep_start"`
	BattleStart time.Time `db:"battle_start"`
	EndTime     time.Time `db:"end_time"`
	Result      string    `db:"result"`
	Raw         []byte    `db:"raw"`
}

type warClanInsertModel struct {
	WarID                 int64   `db:"war_id"`
	ClanTag               string  `db:"clan_tag"`
	Name                  string  `db:"name"`
	ClanLevel             int     `db:"clan_level"`
	IsHome                bool    `db:"is_home"`
	Stars                 int     `db:"stars"`
	DestructionPercentage float64 `db:"destruction_percentage"`
	AttacksUsed           int     `db:"attacks_used"`
}

type warMemberInsertModel struct {
	WarID            int64   `db:"war_id"`
	MemberTag        string  `db:"member_tag"`
	Name             string  `db:"name"`
	ClanTag          string  `db:"clan_tag"`
	TownHall         int     `db:"town_hall"`
	MapPosition      int     `db:"map_position"`
	AttacksUsed      int     `db:"attacks_used"`
	StarsEarned      int     `db:"stars_earned"`
	BestDestruction  float64 `db:"best_destruction"`
	DefensesTaken    int     `db:"defenses_taken"`
	BestDefenseStars int     `db:"best_defense_stars"`
}

type warAttackInsertModel struct {
	WarID                 int64   `db:"war_id"`
	AttackerTag           string  `db:"attacker_tag"`
	DefenderTag           string  `db:"defender_tag"`
	AttackOrder           int     `db:"attack_order"`
	Stars                 int     `db:"stars"`
	DestructionPercentage float64 `db:"destruction_percentage"`
	Duration              int     `db:"duration"`
}

type memberFactsRow struct {
	MemberTag        string  `db:"member_tag"`
	WarsParticipated int     `db:"wars_participated"`
	AttacksUsed      int     `db:"attacks_used"`
	AttacksPossible  int     `db:"attacks_possible"`
	StarsEarned      int     `db:"stars_earned"`
	TotalDestruction float64 `db:"total_destruction"`
	DefensesTaken    int     `db:"defenses_taken"`
	DefenseStars     int     `db:"defense_stars"`
}
