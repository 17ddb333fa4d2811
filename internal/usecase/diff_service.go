package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/clashintel/clan-intel/internal/domain/snapshot"
	"github.com/clashintel/clan-intel/internal/platform/logging"
)

// ChangeSummarizer turns a change list into a human-readable narrative.
// The pipeline persists whatever it returns without inspecting it.
type ChangeSummarizer interface {
	Summarize(ctx context.Context, clanTag string, date string, changes []snapshot.Change) (string, error)
}

type DiffService struct {
	snapshots  snapshot.Repository
	summarizer ChangeSummarizer
	logger     *logging.Logger
}

func NewDiffService(snapshots snapshot.Repository, summarizer ChangeSummarizer, logger *logging.Logger) *DiffService {
	if logger == nil {
		logger = logging.Default()
	}
	return &DiffService{
		snapshots:  snapshots,
		summarizer: summarizer,
		logger:     logger,
	}
}

// DetectAndRecord diffs the current snapshot against the most recent prior
// one, persists departures and the change summary, and returns the change
// list. Same-date pairs produce no diff.
func (s *DiffService) DetectAndRecord(ctx context.Context, current snapshot.Snapshot) ([]snapshot.Change, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.DiffService.DetectAndRecord")
	defer span.End()

	if s.snapshots == nil {
		return nil, fmt.Errorf("%w: snapshot repository is not configured", ErrDependencyUnavailable)
	}

	previous, err := s.snapshots.MostRecentBefore(ctx, current.ClanTag, current.Date)
	if err != nil {
		if isNotFoundErr(err) {
			s.logger.InfoContext(ctx, "no prior snapshot, skipping diff", "clan_tag", current.ClanTag)
			return nil, nil
		}
		return nil, fmt.Errorf("load prior snapshot clan_tag=%s: %w", current.ClanTag, err)
	}
	if previous.Date.Equal(current.Date) {
		return nil, nil
	}

	changes := DetectChanges(previous, current)
	if len(changes) == 0 {
		return nil, nil
	}

	departures := departuresFromChanges(current, changes)
	if len(departures) > 0 {
		if err := s.snapshots.SaveDepartures(ctx, departures); err != nil {
			return nil, fmt.Errorf("save departures clan_tag=%s: %w", current.ClanTag, err)
		}
	}

	narrative := s.buildNarrative(ctx, current, changes)
	summary := snapshot.ChangeSummary{
		ClanTag:   current.ClanTag,
		Date:      current.Date,
		Changes:   changes,
		Narrative: narrative,
	}
	if err := s.snapshots.SaveChangeSummary(ctx, summary); err != nil {
		return nil, fmt.Errorf("save change summary clan_tag=%s: %w", current.ClanTag, err)
	}

	return changes, nil
}

// DetectChanges compares two snapshots' rosters by tag set difference.
// Departed members carry their last known role, town hall and trophies.
func DetectChanges(previous, current snapshot.Snapshot) []snapshot.Change {
	prevByTag := previous.MembersByTag()
	currByTag := current.MembersByTag()

	changes := make([]snapshot.Change, 0)

	for tag, member := range currByTag {
		if _, ok := prevByTag[tag]; ok {
			continue
		}
		changes = append(changes, snapshot.Change{
			Type:       snapshot.ChangeJoined,
			MemberTag:  tag,
			MemberName: member.Name,
			After:      member.Role,
			TownHall:   member.TownHall,
			Trophies:   member.Trophies,
		})
	}

	for tag, member := range prevByTag {
		if _, ok := currByTag[tag]; ok {
			continue
		}
		changes = append(changes, snapshot.Change{
			Type:       snapshot.ChangeLeft,
			MemberTag:  tag,
			MemberName: member.Name,
			Before:     member.Role,
			TownHall:   member.TownHall,
			Trophies:   member.Trophies,
		})
	}

	for tag, curr := range currByTag {
		prev, ok := prevByTag[tag]
		if !ok {
			continue
		}
		if prev.Role != curr.Role {
			changes = append(changes, snapshot.Change{
				Type:       snapshot.ChangeRoleChanged,
				MemberTag:  tag,
				MemberName: curr.Name,
				Before:     prev.Role,
				After:      curr.Role,
				TownHall:   curr.TownHall,
				Trophies:   curr.Trophies,
			})
		}

		trophyDelta := curr.Trophies - prev.Trophies
		donationDelta := curr.Donations - prev.Donations
		if trophyDelta != 0 || donationDelta != 0 {
			changes = append(changes, snapshot.Change{
				Type:          snapshot.ChangeStatChanged,
				MemberTag:     tag,
				MemberName:    curr.Name,
				TownHall:      curr.TownHall,
				Trophies:      curr.Trophies,
				TrophyDelta:   trophyDelta,
				DonationDelta: donationDelta,
			})
		}
	}

	sort.SliceStable(changes, func(i, j int) bool {
		if changes[i].Type != changes[j].Type {
			return changeTypeOrder(changes[i].Type) < changeTypeOrder(changes[j].Type)
		}
		return changes[i].MemberTag < changes[j].MemberTag
	})

	return changes
}

func (s *DiffService) buildNarrative(ctx context.Context, current snapshot.Snapshot, changes []snapshot.Change) string {
	if s.summarizer != nil {
		narrative, err := s.summarizer.Summarize(ctx, current.ClanTag, current.Date.Format("2006-01-02"), changes)
		if err != nil {
			s.logger.WarnContext(ctx, "change summarizer failed, using fallback text", "clan_tag", current.ClanTag, "error", err)
		} else if strings.TrimSpace(narrative) != "" {
			return narrative
		}
	}
	return fallbackNarrative(changes)
}

// fallbackNarrative builds a deterministic summary when no summarizer is
// configured or it fails.
func fallbackNarrative(changes []snapshot.Change) string {
	var joined, left, roles, stats int
	for _, change := range changes {
		switch change.Type {
		case snapshot.ChangeJoined:
			joined++
		case snapshot.ChangeLeft:
			left++
		case snapshot.ChangeRoleChanged:
			roles++
		case snapshot.ChangeStatChanged:
			stats++
		}
	}
	return fmt.Sprintf("%d joined, %d left, %d role changes, %d members with stat movement", joined, left, roles, stats)
}

func departuresFromChanges(current snapshot.Snapshot, changes []snapshot.Change) []snapshot.Departure {
	out := make([]snapshot.Departure, 0)
	for _, change := range changes {
		if change.Type != snapshot.ChangeLeft {
			continue
		}
		out = append(out, snapshot.Departure{
			ClanTag:    current.ClanTag,
			MemberTag:  change.MemberTag,
			MemberName: change.MemberName,
			LastRole:   change.Before,
			TownHall:   change.TownHall,
			Trophies:   change.Trophies,
			DepartedOn: current.Date,
		})
	}
	return out
}

func changeTypeOrder(changeType string) int {
	switch changeType {
	case snapshot.ChangeJoined:
		return 0
	case snapshot.ChangeLeft:
		return 1
	case snapshot.ChangeRoleChanged:
		return 2
	default:
		return 3
	}
}

func isNotFoundErr(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, snapshot.ErrNotFound)
}
