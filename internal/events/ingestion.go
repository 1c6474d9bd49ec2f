// Package events defines the payloads exchanged between the pipeline and its downstream processes.
package events

import "time"

// Event type names carried in the event_type message header.
const (
	TypeIngestionCompleted     = "ingestion.completed"
	TypeRecalculationCompleted = "recalculation.completed"
)

// IngestionCompleted is emitted after a run has appended activities and committed both
// metadata tables.
type IngestionCompleted struct {
	RunID       string    `json:"run_id"`
	StartWeek   int       `json:"start_week"`
	EndWeek     int       `json:"end_week"`
	AthleteIDs  []int64   `json:"athlete_ids"`
	Appended    int       `json:"appended"`
	Duplicates  int       `json:"duplicates"`
	FirstSerial int64     `json:"first_serial,omitempty"`
	LastSerial  int64     `json:"last_serial,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// RecalculationCompleted is emitted after metrics were recomputed without new activities.
type RecalculationCompleted struct {
	RunID       string    `json:"run_id"`
	StartWeek   int       `json:"start_week"`
	EndWeek     int       `json:"end_week"`
	AthleteIDs  []int64   `json:"athlete_ids"`
	CompletedAt time.Time `json:"completed_at"`
}
