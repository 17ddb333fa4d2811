package usecase

import (
	"math"
	"time"
)

// Tournament weeks cut over every Tuesday at 05:00 UTC and run through the
// following Monday 05:00 UTC.
const (
	tournamentBoundaryWeekday = time.Tuesday
	tournamentBoundaryHour    = 5
)

// ScoringParams are the tunable constants of both composite indexes.
type ScoringParams struct {
	// ShrinkageK divides raw signals by (n + k) instead of n, pulling
	// sparse-sample members toward neutral.
	ShrinkageK float64
	// Alpha scales the logistic squash that bounds the core to (0, 1).
	Alpha float64

	OffenseWeight       float64
	DefenseWeight       float64
	ParticipationWeight float64
	CapitalWeight       float64
	DonationWeight      float64

	TrophyDeltaWeight   float64
	LeagueDeltaWeight   float64
	DonationDeltaWeight float64
	CapitalDeltaWeight  float64
	HeroDeltaWeight     float64
}

func DefaultScoringParams() ScoringParams {
	return ScoringParams{
		ShrinkageK:          4,
		Alpha:               2.5,
		OffenseWeight:       0.30,
		DefenseWeight:       0.15,
		ParticipationWeight: 0.25,
		CapitalWeight:       0.15,
		DonationWeight:      0.15,
		TrophyDeltaWeight:   0.35,
		LeagueDeltaWeight:   0.15,
		DonationDeltaWeight: 0.20,
		CapitalDeltaWeight:  0.15,
		HeroDeltaWeight:     0.15,
	}
}

func (p ScoringParams) normalized() ScoringParams {
	defaults := DefaultScoringParams()
	if p.ShrinkageK <= 0 {
		p.ShrinkageK = defaults.ShrinkageK
	}
	if p.Alpha <= 0 {
		p.Alpha = defaults.Alpha
	}
	if p.OffenseWeight <= 0 && p.DefenseWeight <= 0 && p.ParticipationWeight <= 0 &&
		p.CapitalWeight <= 0 && p.DonationWeight <= 0 {
		p.OffenseWeight = defaults.OffenseWeight
		p.DefenseWeight = defaults.DefenseWeight
		p.ParticipationWeight = defaults.ParticipationWeight
		p.CapitalWeight = defaults.CapitalWeight
		p.DonationWeight = defaults.DonationWeight
	}
	if p.TrophyDeltaWeight <= 0 && p.LeagueDeltaWeight <= 0 && p.DonationDeltaWeight <= 0 &&
		p.CapitalDeltaWeight <= 0 && p.HeroDeltaWeight <= 0 {
		p.TrophyDeltaWeight = defaults.TrophyDeltaWeight
		p.LeagueDeltaWeight = defaults.LeagueDeltaWeight
		p.DonationDeltaWeight = defaults.DonationDeltaWeight
		p.CapitalDeltaWeight = defaults.CapitalDeltaWeight
		p.HeroDeltaWeight = defaults.HeroDeltaWeight
	}
	return p
}

// shrinkSignal dampens a raw per-member signal by sample size.
func shrinkSignal(raw float64, sampleSize int, k float64) float64 {
	if sampleSize <= 0 {
		return 0
	}
	return raw * float64(sampleSize) / (float64(sampleSize) + k)
}

// logisticSquash bounds an unbounded core to (0, 1); extreme inputs
// saturate instead of overflowing.
func logisticSquash(core, alpha float64) float64 {
	if alpha <= 0 {
		alpha = 1
	}
	return 1 / (1 + math.Exp(-core/alpha))
}

// availabilityMultiplier rewards longer observation windows, saturating at
// a 30-day window. Output is always within [0.85, 1.00].
func availabilityMultiplier(observedDays int) float64 {
	if observedDays < 0 {
		observedDays = 0
	}
	if observedDays > 30 {
		observedDays = 30
	}
	return 0.85 + 0.15*float64(observedDays)/30
}

func clampScore(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}

// TournamentWindow maps a timestamp to its fixed weekly scoring window.
// Every timestamp within the same calendar week returns the same pair:
// the most recent Tuesday 05:00 UTC at or before ts, through the
// following Monday 05:00 UTC.
func TournamentWindow(ts time.Time) (start, end time.Time) {
	ts = ts.UTC()

	daysBack := (int(ts.Weekday()) - int(tournamentBoundaryWeekday) + 7) % 7
	start = time.Date(ts.Year(), ts.Month(), ts.Day(), tournamentBoundaryHour, 0, 0, 0, time.UTC)
	start = start.AddDate(0, 0, -daysBack)
	// A Tuesday timestamp before 05:00 still belongs to the prior week.
	if start.After(ts) {
		start = start.AddDate(0, 0, -7)
	}
	end = start.AddDate(0, 0, 6)
	return start, end
}

// meanAndSpread returns the mean and a spread guard for normalizing a
// population of values; spread never returns zero.
func meanAndSpread(values []float64) (mean, spread float64) {
	if len(values) == 0 {
		return 0, 1
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	for _, v := range values {
		spread += (v - mean) * (v - mean)
	}
	spread = math.Sqrt(spread / float64(len(values)))
	if spread < 1 {
		spread = 1
	}
	return mean, spread
}
