package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"example.com/endurance/internal/events"
)

// Chain runs handlers in order and stops at the first failure.
type Chain []Handler

// Handle implements Handler.
func (c Chain) Handle(ctx context.Context, msg Message) error {
	for _, h := range c {
		if err := h.Handle(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

// Refresher re-publishes the tables to the mirror.
type Refresher interface {
	Refresh(context.Context) (map[string]int, error)
}

// MirrorHandler refreshes the mirror whenever a run has changed the tables.
type MirrorHandler struct {
	refresher Refresher
	logger    *slog.Logger
}

// NewMirrorHandler constructs a MirrorHandler.
func NewMirrorHandler(refresher Refresher, logger *slog.Logger) *MirrorHandler {
	if logger == nil {
		logger = slog.Default().With("component", "mirror-handler")
	}
	return &MirrorHandler{refresher: refresher, logger: logger}
}

// Handle refreshes on ingestion and recalculation events and ignores everything else.
func (h *MirrorHandler) Handle(ctx context.Context, msg Message) error {
	if !isRunEvent(msg.EventType) {
		h.logger.Debug("ignoring event", "event_type", msg.EventType)
		return nil
	}
	counts, err := h.refresher.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("mirror refresh: %w", err)
	}
	h.logger.Info("mirror refreshed for run", "run_id", msg.Key, "collections", len(counts))
	return nil
}

func isRunEvent(eventType string) bool {
	return eventType == events.TypeIngestionCompleted || eventType == events.TypeRecalculationCompleted
}
