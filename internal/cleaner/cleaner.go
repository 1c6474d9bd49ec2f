// Package cleaner normalizes freshly scraped activity rows into the canonical store schema.
package cleaner

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"unicode"

	"example.com/endurance/internal/domain"
	"example.com/endurance/internal/timeparse"
)

// Option configures optional behaviour for the Cleaner.
type Option func(*Cleaner)

// WithLogger overrides the logger used to report failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cleaner) {
		c.logger = logger
	}
}

// Cleaner turns a raw batch into store-ready activities.
type Cleaner struct {
	logger *slog.Logger
}

// New constructs a Cleaner.
func New(opts ...Option) *Cleaner {
	c := &Cleaner{logger: slog.Default().With("component", "cleaner")}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Clean normalizes batch against the current store snapshot. The snapshot supplies the last
// serial and the column order; it is not modified.
//
// A nil slice with ErrStoreUnavailable or ErrSchemaMismatch means nothing may be appended.
func (c *Cleaner) Clean(batch domain.RawBatch, store domain.ActivityLog) ([]domain.Activity, error) {
	if len(store.Header) == 0 || len(store.Activities) == 0 {
		c.logger.Error("activity store is empty, refusing to guess a starting serial")
		return nil, fmt.Errorf("%w: store has no rows", domain.ErrStoreUnavailable)
	}
	if !slices.Equal(store.Header, domain.ActivityColumns) {
		c.logger.Error("activity store columns do not match the canonical schema",
			"expected", domain.ActivityColumns, "actual", store.Header)
		return nil, fmt.Errorf("%w: store has %d columns, want %d", domain.ErrSchemaMismatch, len(store.Header), len(domain.ActivityColumns))
	}

	hasMinutes := batch.HasColumn(domain.ColDurationMin)
	hasSeconds := batch.HasColumn(domain.ColDurationSec)

	next := store.LastSerial() + 1
	out := make([]domain.Activity, 0, len(batch.Rows))
	for i, row := range batch.Rows {
		var minutes float64
		if hasMinutes {
			minutes = domain.CoerceFloat(row[domain.ColDurationMin])
		} else {
			minutes = timeparse.Minutes(row[domain.ColTime])
		}
		seconds := minutes * 60
		if hasSeconds {
			seconds = domain.CoerceFloat(row[domain.ColDurationSec])
		}
		distance := domain.CoerceFloat(row[domain.ColDistanceKm])

		out = append(out, domain.Activity{
			Serial:       next + int64(i),
			AthleteID:    domain.CoerceInt(row[domain.ColAthleteID]),
			AthleteName:  TitleCase(strings.TrimSpace(row[domain.ColAthleteName])),
			ActivityID:   domain.CoerceInt(row[domain.ColActivityID]),
			ActivityName: row[domain.ColActivityName],
			Description:  row[domain.ColDescription],
			StartDate:    row[domain.ColStartDate],
			ElapsedTime:  domain.CoerceInt(row[domain.ColElapsedTime]),
			Type:         row[domain.ColType],
			Location:     row[domain.ColLocation],
			PacePerKm:    domain.Ratio(minutes, distance),
			DurationMin:  minutes,
			DistanceKm:   distance,
			DurationSec:  seconds,
			Time:         row[domain.ColTime],
		})
	}

	c.logger.Debug("cleaned activity batch", "rows", len(out), "first_serial", next)
	return out, nil
}

// TitleCase upper-cases every letter that follows a non-letter and lower-cases the rest, so
// "o'neil SMITH" becomes "O'Neil Smith".
func TitleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				r = unicode.ToLower(r)
			} else {
				r = unicode.ToTitle(r)
			}
			prevLetter = true
		} else {
			prevLetter = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
