package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"example.com/endurance/internal/events"
	"example.com/endurance/internal/observability"
	"example.com/endurance/internal/persistence/postgres"
)

// RunRecorder stores completed runs.
type RunRecorder interface {
	RecordRun(context.Context, postgres.RunRecord) error
}

// PersistenceHandler writes consumed run events into the run log for auditing.
type PersistenceHandler struct {
	store RunRecorder
	now   func() time.Time
}

// NewPersistenceHandler constructs a handler backed by the provided store.
func NewPersistenceHandler(store RunRecorder) *PersistenceHandler {
	return &PersistenceHandler{store: store, now: time.Now}
}

// Handle decodes ingestion and recalculation events and records them. Other events are ignored.
func (h *PersistenceHandler) Handle(ctx context.Context, msg Message) error {
	run := postgres.RunRecord{EventType: msg.EventType, ReceivedAt: h.now().UTC()}
	switch msg.EventType {
	case events.TypeIngestionCompleted:
		var ev events.IngestionCompleted
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			return fmt.Errorf("decode %s: %w", msg.EventType, err)
		}
		run.RunID, run.StartWeek, run.EndWeek = ev.RunID, ev.StartWeek, ev.EndWeek
		run.AthleteIDs, run.CompletedAt = ev.AthleteIDs, ev.CompletedAt
		run.Appended, run.Duplicates = ev.Appended, ev.Duplicates
	case events.TypeRecalculationCompleted:
		var ev events.RecalculationCompleted
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			return fmt.Errorf("decode %s: %w", msg.EventType, err)
		}
		run.RunID, run.StartWeek, run.EndWeek = ev.RunID, ev.StartWeek, ev.EndWeek
		run.AthleteIDs, run.CompletedAt = ev.AthleteIDs, ev.CompletedAt
	default:
		return nil
	}

	if run.RunID == "" {
		run.RunID = msg.Key
	}
	if run.RunID == "" {
		return fmt.Errorf("%s event without run id", msg.EventType)
	}
	if run.CompletedAt.IsZero() {
		run.CompletedAt = msg.Timestamp
	}
	if err := h.store.RecordRun(ctx, run); err != nil {
		return err
	}
	observability.RecordRunLogged(run.EventType, run.Appended, run.CompletedAt, run.ReceivedAt)
	return nil
}
