// Package aggregator derives per-athlete training totals and weekly averages from the
// cumulative activity store.
package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"example.com/endurance/internal/domain"
)

// ActivityReader reads the full activity log.
type ActivityReader interface {
	ReadActivities(context.Context) (domain.ActivityLog, error)
}

// Option configures optional behaviour for the Aggregator.
type Option func(*Aggregator)

// WithLogger overrides the logger used to report failures.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

// Aggregator recomputes athlete metrics from the store.
type Aggregator struct {
	store  ActivityReader
	logger *slog.Logger
}

// New constructs an Aggregator reading from store.
func New(store ActivityReader, opts ...Option) *Aggregator {
	a := &Aggregator{
		store:  store,
		logger: slog.Default().With("component", "aggregator"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Compute reads the whole store and summarizes the target athletes. divisor is the number of
// weeks scraped so far, normally the end week of the run.
func (a *Aggregator) Compute(ctx context.Context, targets []int64, divisor int) ([]domain.AthleteMetrics, error) {
	log, err := a.store.ReadActivities(ctx)
	if err != nil {
		a.logger.Error("read activity store", "error", err)
		return nil, err
	}
	metrics, err := Summarize(log.Activities, targets, divisor)
	if err != nil {
		a.logger.Error("aggregate metrics", "targets", targets, "divisor", divisor, "error", err)
		return nil, err
	}
	a.logger.Info("aggregated athlete metrics", "athletes", len(metrics), "divisor", divisor)
	return metrics, nil
}

type totals struct {
	name     string
	distance map[string]float64
	minutes  map[string]float64
}

// Summarize groups activities of the target athletes by type and derives the metrics, sorted by
// athlete ID. It fails with ErrNoActivities when no activity belongs to a target.
func Summarize(activities []domain.Activity, targets []int64, divisor int) ([]domain.AthleteMetrics, error) {
	if divisor <= 0 {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidDivisor, divisor)
	}

	wanted := make(map[int64]struct{}, len(targets))
	for _, id := range targets {
		wanted[id] = struct{}{}
	}

	byAthlete := make(map[int64]*totals)
	for _, act := range activities {
		if _, ok := wanted[act.AthleteID]; !ok {
			continue
		}
		t, ok := byAthlete[act.AthleteID]
		if !ok {
			t = &totals{distance: map[string]float64{}, minutes: map[string]float64{}}
			byAthlete[act.AthleteID] = t
		}
		if act.AthleteName != "" {
			t.name = act.AthleteName
		}
		t.distance[act.Type] += act.DistanceKm
		t.minutes[act.Type] += act.DurationMin
	}
	if len(byAthlete) == 0 {
		return nil, fmt.Errorf("%w: %v", domain.ErrNoActivities, targets)
	}

	weeks := float64(divisor)
	out := make([]domain.AthleteMetrics, 0, len(byAthlete))
	for id, t := range byAthlete {
		runKm := t.distance[domain.TypeRun]
		runHours := t.minutes[domain.TypeRun] / 60

		m := domain.AthleteMetrics{
			AthleteID:             id,
			AthleteName:           t.name,
			TotalRunDistanceKm:    domain.Round2(runKm),
			AvgWeeklyRunMileageKm: domain.Round2(runKm / weeks),
			TotalRunHours:         domain.Round2(runHours),
			AvgWeeklyRunHours:     domain.Round2(runHours / weeks),
			TotalRideHours:        domain.Round2(t.minutes[domain.TypeRide] / 60),
			TotalSwimHours:        domain.Round2(t.minutes[domain.TypeSwim] / 60),
			TotalOtherHours:       domain.Round2(t.minutes[domain.TypeOther] / 60),
		}
		if pace := domain.Ratio(t.minutes[domain.TypeRun], runKm); pace != nil {
			rounded := domain.Round2(*pace)
			m.AvgRunPaceMinPerKm = &rounded
		}
		out = append(out, m)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].AthleteID < out[j].AthleteID })
	return out, nil
}
