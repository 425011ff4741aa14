package workers

import (
	"context"
	"log/slog"
	"time"

	application "github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/application"
	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/ports"
)

const (
	summaryUpdatedTopic = "event.summary.updated"
	summaryDeletedTopic = "event.summary.deleted"
)

// IndexRelay drains one index queue and publishes the signaled summaries to
// the external indexer topics. Queue entries whose row no longer exists are
// published as deletions.
type IndexRelay struct {
	Queue     ports.IndexQueueRepository
	Store     ports.SummaryLookup
	Publisher ports.EventPublisher
	IDGen     ports.IDGenerator
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

func (r IndexRelay) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pending, err := r.Queue.NextIndexBatch(ctx, limit)
	if err != nil {
		logger.Error("index queue read failed",
			"event", "index_queue_read_failed",
			"module", "event-management/summary-engine",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}

	// The queue may hold several signals for one uuid; they collapse to a
	// single publish of the current row state.
	seen := make(map[string]struct{}, len(pending))
	uuids := make([]string, 0, len(pending))
	ids := make([]int64, 0, len(pending))
	for _, entry := range pending {
		ids = append(ids, entry.ID)
		if _, ok := seen[entry.UUID]; ok {
			continue
		}
		seen[entry.UUID] = struct{}{}
		uuids = append(uuids, entry.UUID)
	}

	summaries, err := r.Store.FindByUUIDs(ctx, uuids)
	if err != nil {
		logger.Error("index batch load failed",
			"event", "index_batch_load_failed",
			"module", "event-management/summary-engine",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	byUUID := make(map[string]struct{}, len(summaries))
	for _, s := range summaries {
		byUUID[s.UUID] = struct{}{}
	}

	for _, s := range summaries {
		eventID, err := r.IDGen.NewID(ctx)
		if err != nil {
			return err
		}
		envelope := ports.Envelope{
			EventID:    eventID,
			EventType:  summaryUpdatedTopic,
			OccurredAt: now,
			Payload:    s,
		}
		if err := r.Publisher.Publish(ctx, summaryUpdatedTopic, envelope); err != nil {
			logger.Error("index publish failed",
				"event", "index_publish_failed",
				"module", "event-management/summary-engine",
				"layer", "worker",
				"summary_uuid", s.UUID,
				"error", err.Error(),
			)
			return err
		}
	}
	for _, uuid := range uuids {
		if _, ok := byUUID[uuid]; ok {
			continue
		}
		eventID, err := r.IDGen.NewID(ctx)
		if err != nil {
			return err
		}
		envelope := ports.Envelope{
			EventID:    eventID,
			EventType:  summaryDeletedTopic,
			OccurredAt: now,
			Payload:    map[string]string{"uuid": uuid},
		}
		if err := r.Publisher.Publish(ctx, summaryDeletedTopic, envelope); err != nil {
			logger.Error("index publish failed",
				"event", "index_publish_failed",
				"module", "event-management/summary-engine",
				"layer", "worker",
				"summary_uuid", uuid,
				"error", err.Error(),
			)
			return err
		}
	}

	if err := r.Queue.DeleteIndexEntries(ctx, ids); err != nil {
		logger.Error("index queue delete failed",
			"event", "index_queue_delete_failed",
			"module", "event-management/summary-engine",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	logger.Info("index relay cycle completed",
		"event", "index_relay_completed",
		"module", "event-management/summary-engine",
		"layer", "worker",
		"published_count", len(uuids),
	)
	return nil
}
