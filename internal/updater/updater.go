// Package updater appends cleaned activities to the cumulative store, skipping identifiers it
// already holds.
package updater

import (
	"context"
	"fmt"
	"log/slog"

	"example.com/endurance/internal/domain"
)

// Appender is the append-only write side of the activity store.
type Appender interface {
	AppendActivities(context.Context, []domain.Activity) error
}

// Option configures optional behaviour for the Updater.
type Option func(*Updater)

// WithLogger overrides the logger used to report append outcomes.
func WithLogger(logger *slog.Logger) Option {
	return func(u *Updater) {
		u.logger = logger
	}
}

// Updater owns serial assignment and appends to the activity log.
type Updater struct {
	store  Appender
	logger *slog.Logger
}

// Result summarizes one append.
type Result struct {
	Appended    int
	Duplicates  int
	FirstSerial int64
	LastSerial  int64
	Activities  []domain.Activity
}

// New constructs an Updater writing through store.
func New(store Appender, opts ...Option) *Updater {
	u := &Updater{
		store:  store,
		logger: slog.Default().With("component", "updater"),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Apply drops every activity whose identifier is already in existing, or repeated earlier in the
// batch, and appends the rest. Survivors are renumbered from the store's last serial so the
// appended block stays gapless. An empty survivor set is a successful no-op.
func (u *Updater) Apply(ctx context.Context, existing domain.ActivityLog, batch []domain.Activity) (Result, error) {
	seen := existing.ActivityIDs()
	fresh := make([]domain.Activity, 0, len(batch))
	for _, a := range batch {
		if _, dup := seen[a.ActivityID]; dup {
			continue
		}
		seen[a.ActivityID] = struct{}{}
		fresh = append(fresh, a)
	}

	res := Result{Duplicates: len(batch) - len(fresh)}
	if len(fresh) == 0 {
		u.logger.Info("no new unique activities", "batch", len(batch), "duplicates", res.Duplicates)
		return res, nil
	}

	next := existing.LastSerial() + 1
	for i := range fresh {
		fresh[i].Serial = next + int64(i)
	}

	if err := u.store.AppendActivities(ctx, fresh); err != nil {
		u.logger.Error("append to activity store failed", "rows", len(fresh), "error", err)
		return Result{}, fmt.Errorf("append activities: %w", err)
	}

	res.Appended = len(fresh)
	res.FirstSerial = fresh[0].Serial
	res.LastSerial = fresh[len(fresh)-1].Serial
	res.Activities = fresh
	u.logger.Info("appended new activities",
		"appended", res.Appended, "duplicates", res.Duplicates,
		"first_serial", res.FirstSerial, "last_serial", res.LastSerial)
	return res, nil
}
