// Package analytics consumes patient events and maintains idempotent
// aggregate counts. Duplicates and malformed payloads are absorbed, never
// redelivered: returning an error from Handle would block the partition
// behind a message that can never succeed.
package analytics

import (
	"context"
	"encoding/json"
	"log/slog"

	"careflow/internal/analytics/dedup"
	"careflow/internal/events"
	"careflow/internal/platform/kafka/consumer"
	"careflow/internal/platform/metrics"
)

// Handler implements consumer.Handler for the patient events topic.
type Handler struct {
	tracker dedup.Tracker
	stats   *Stats
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewHandler(tracker dedup.Tracker, stats *Stats, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		tracker: tracker,
		stats:   stats,
		logger:  logger,
		metrics: m,
	}
}

// Handle processes one consumed record. A nil return commits the offset;
// only infrastructure failures (dedup store unreachable) return an error so
// the record is redelivered once the store is back.
func (h *Handler) Handle(ctx context.Context, msg *consumer.Message) error {
	var evt events.PatientEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		h.logger.WarnContext(ctx, "skipping malformed event",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err.Error(),
		)
		return nil
	}
	if evt.EventID == "" || evt.EventType == "" {
		h.logger.WarnContext(ctx, "skipping event without id or type",
			"topic", msg.Topic,
			"offset", msg.Offset,
		)
		return nil
	}

	first, err := h.tracker.MarkProcessed(ctx, evt.EventID)
	if err != nil {
		// Redeliver rather than risk double counting.
		return err
	}
	if !first {
		h.logger.DebugContext(ctx, "duplicate event skipped",
			"event_id", evt.EventID,
			"event_type", evt.EventType,
		)
		if h.metrics != nil {
			h.metrics.DuplicateEvents.Inc()
		}
		return nil
	}

	h.stats.Record(evt.EventType, evt.PatientID)
	if h.metrics != nil {
		h.metrics.EventsConsumed.WithLabelValues(evt.EventType).Inc()
	}

	h.logger.InfoContext(ctx, "event processed",
		"event_id", evt.EventID,
		"event_type", evt.EventType,
		"patient_id", evt.PatientID,
	)
	return nil
}
