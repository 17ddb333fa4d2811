package postgres

import (
	"time"

	"github.com/bytedance/sonic"

	"github.com/clashintel/clan-intel/internal/domain/snapshot"
)

type clanSnapshotTableModel struct {
	ID             int64     `db:"id"`
	ClanTag        string    `db:"clan_tag"`
	SnapshotDate   time.Time `db:"snapshot_date"`
	ClanName       string    `db:"clan_name"`
	ClanLevel      int       `db:"clan_level"`
	MemberCount    int       `db:"member_count"`
	Members        []byte    `db:"members"`
	PlayerDetails  []byte    `db:"player_details"`
	WarLog         []byte    `db:"war_log"`
	CurrentWar     []byte    `db:"current_war"`
	CapitalSeasons []byte    `db:"capital_seasons"`
	FetchMeta      []byte    `db:"fetch_meta"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

type clanSnapshotInsertModel struct {
	ClanTag        string    `db:"clan_tag"`
	SnapshotDate   time.Time `db:"snapshot_date"`
	ClanName       string    `db:"clan_name"`
	ClanLevel      int       `db:"clan_level"`
	MemberCount    int       `db:"member_count"`
	Members        []byte    `db:"members"`
	PlayerDetails  []byte    `db:"player_details"`
	WarLog         []byte    `db:"war_log"`
	CurrentWar     []byte    `db:"current_war"`
	CapitalSeasons []byte    `db:"capital_seasons"`
	FetchMeta      []byte    `db:"fetch_meta"`
}

type changeSummaryInsertModel struct {
	ClanTag    string    `db:"clan_tag"`
	ChangeDate time.Time `db:"change_date"`
	Changes    []byte    `db:"changes"`
	Narrative  string    `db:"narrative"`
}

type departureInsertModel struct {
	ClanTag    string    `db:"clan_tag"`
	MemberTag  string    `db:"member_tag"`
	MemberName string    `db:"member_name"`
	LastRole   string    `db:"last_role"`
	TownHall   int       `db:"town_hall"`
	Trophies   int       `db:"trophies"`
	DepartedOn time.Time `db:"departed_on"`
}

func snapshotToInsertModel(snap snapshot.Snapshot) (clanSnapshotInsertModel, error) {
	members, err := sonic.Marshal(snap.Members)
	if err != nil {
		return clanSnapshotInsertModel{}, err
	}
	details, err := sonic.Marshal(snap.PlayerDetails)
	if err != nil {
		return clanSnapshotInsertModel{}, err
	}
	meta, err := sonic.Marshal(snap.Meta)
	if err != nil {
		return clanSnapshotInsertModel{}, err
	}

	return clanSnapshotInsertModel{
		ClanTag:        snap.ClanTag,
		SnapshotDate:   snapshot.DateOnly(snap.Date),
		ClanName:       snap.ClanName,
		ClanLevel:      snap.ClanLevel,
		MemberCount:    snap.MemberCount,
		Members:        members,
		PlayerDetails:  details,
		WarLog:         emptyJSONIfNil(snap.WarLog),
		CurrentWar:     emptyJSONIfNil(snap.CurrentWar),
		CapitalSeasons: emptyJSONIfNil(snap.CapitalSeasons),
		FetchMeta:      meta,
	}, nil
}

func snapshotFromTableModel(row clanSnapshotTableModel) (snapshot.Snapshot, error) {
	snap := snapshot.Snapshot{
		ClanTag:        row.ClanTag,
		Date:           snapshot.DateOnly(row.SnapshotDate),
		ClanName:       row.ClanName,
		ClanLevel:      row.ClanLevel,
		MemberCount:    row.MemberCount,
		WarLog:         row.WarLog,
		CurrentWar:     row.CurrentWar,
		CapitalSeasons: row.CapitalSeasons,
	}
	if len(row.Members) > 0 {
		if err := sonic.Unmarshal(row.Members, &snap.Members); err != nil {
			return snapshot.Snapshot{}, err
		}
	}
	if len(row.PlayerDetails) > 0 {
		if err := sonic.Unmarshal(row.PlayerDetails, &snap.PlayerDetails); err != nil {
			return snapshot.Snapshot{}, err
		}
	}
	if len(row.FetchMeta) > 0 {
		if err := sonic.Unmarshal(row.FetchMeta, &snap.Meta); err != nil {
			return snapshot.Snapshot{}, err
		}
	}
	return snap, nil
}

func emptyJSONIfNil(raw []byte) []byte {
	if len(raw) == 0 {
		return []byte("null")
	}
	return raw
}
