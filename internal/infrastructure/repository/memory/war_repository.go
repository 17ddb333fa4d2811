package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/clashintel/clan-intel/internal/domain/war"
)

type WarRepository struct {
	mu      sync.RWMutex
	nextID  int64
	records map[int64]war.Record
	// byKey maps the natural key (clan tag, war type, battle start) to a
	// row id so re-ingesting a war reuses the same id.
	byKey   map[string]int64
	clans   map[int64]map[string]war.Clan
	members map[int64]map[string]war.Member
	attacks map[int64]map[string]war.Attack
}

func NewWarRepository() *WarRepository {
	return &WarRepository{
		nextID:  1,
		records: make(map[int64]war.Record),
		byKey:   make(map[string]int64),
		clans:   make(map[int64]map[string]war.Clan),
		members: make(map[int64]map[string]war.Member),
		attacks: make(map[int64]map[string]war.Attack),
	}
}

func warKey(record war.Record) string {
	return fmt.Sprintf("%s|%s|%d", record.ClanTag, record.Type, record.BattleStart.UTC().Unix())
}

func (r *WarRepository) UpsertRecord(_ context.Context, record war.Record) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := warKey(record)
	id, ok := r.byKey[key]
	if !ok {
		id = r.nextID
		r.nextID++
		r.byKey[key] = id
	}
	record.ID = id
	r.records[id] = record
	return id, nil
}

func (r *WarRepository) UpsertClans(_ context.Context, warID int64, clans []war.Clan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	byTag, ok := r.clans[warID]
	if !ok {
		byTag = make(map[string]war.Clan)
		r.clans[warID] = byTag
	}
	for _, c := range clans {
		c.WarID = warID
		byTag[c.ClanTag] = c
	}
	return nil
}

func (r *WarRepository) UpsertMembers(_ context.Context, warID int64, members []war.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	byTag, ok := r.members[warID]
	if !ok {
		byTag = make(map[string]war.Member)
		r.members[warID] = byTag
	}
	for _, m := range members {
		m.WarID = warID
		byTag[m.MemberTag] = m
	}
	return nil
}

func (r *WarRepository) UpsertAttacks(_ context.Context, warID int64, attacks []war.Attack) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	byKey, ok := r.attacks[warID]
	if !ok {
		byKey = make(map[string]war.Attack)
		r.attacks[warID] = byKey
	}
	for _, a := range attacks {
		a.WarID = warID
		key := fmt.Sprintf("%s|%s|%d", a.AttackerTag, a.DefenderTag, a.Order)
		byKey[key] = a
	}
	return nil
}

func (r *WarRepository) CountAttacksByWar(_ context.Context, warID int64) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.attacks[warID]), nil
}

func (r *WarRepository) ListMemberFactsSince(_ context.Context, clanTag string, since time.Time) ([]war.MemberFacts, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factsByTag := make(map[string]*war.MemberFacts)
	for id, record := range r.records {
		if record.ClanTag != clanTag || record.BattleStart.Before(since) {
			continue
		}
		attacksPerMember := 2
		if record.Type == war.TypeCWL {
			attacksPerMember = 1
		}
		for _, m := range r.members[id] {
			if m.ClanTag != clanTag {
				continue
			}
			facts, ok := factsByTag[m.MemberTag]
			if !ok {
				facts = &war.MemberFacts{MemberTag: m.MemberTag}
				factsByTag[m.MemberTag] = facts
			}
			facts.WarsParticipated++
			facts.AttacksUsed += m.AttacksUsed
			facts.AttacksPossible += attacksPerMember
			facts.StarsEarned += m.StarsEarned
			facts.TotalDestruction += m.BestDestruction
			facts.DefensesTaken += m.DefensesTaken
			facts.DefenseStars += m.BestDefenseStars
		}
	}

	out := make([]war.MemberFacts, 0, len(factsByTag))
	for _, facts := range factsByTag {
		out = append(out, *facts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MemberTag < out[j].MemberTag })
	return out, nil
}

// WarCount reports how many distinct wars are stored.
func (r *WarRepository) WarCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.records)
}

// RecordByKey looks a war up by natural key, for assertions.
func (r *WarRepository) RecordByKey(clanTag, warType string, battleStart time.Time) (war.Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byKey[warKey(war.Record{ClanTag: clanTag, Type: warType, BattleStart: battleStart})]
	if !ok {
		return war.Record{}, false
	}
	return r.records[id], true
}
