// Package domain holds the record types, canonical schema and failure taxonomy shared by the
// reconciliation pipeline.
package domain

import "errors"

var (
	// ErrStoreUnavailable indicates the cumulative activity store could not be read or is empty.
	ErrStoreUnavailable = errors.New("activity store unavailable")
	// ErrSchemaMismatch indicates the store header does not match the canonical column order.
	ErrSchemaMismatch = errors.New("activity schema mismatch")
	// ErrNoActivities is returned when no stored activity belongs to the requested athletes.
	ErrNoActivities = errors.New("no activities found for target athletes")
	// ErrInvalidDivisor is returned when the weekly-average divisor is not positive.
	ErrInvalidDivisor = errors.New("weekly divisor must be positive")
	// ErrInvalidWeekRange is returned when the end week precedes the start week.
	ErrInvalidWeekRange = errors.New("end week precedes start week")
	// ErrAthleteNotFound is returned when an athlete is missing from a metadata table.
	ErrAthleteNotFound = errors.New("athlete not found")
	// ErrCounterDivergence indicates the weeks-scraped counters of the two metadata tables disagree.
	ErrCounterDivergence = errors.New("weeks scraped counters diverged")
	// ErrColumnMissing is returned when a required column is absent from a table.
	ErrColumnMissing = errors.New("column missing")
)
