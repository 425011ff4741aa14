package workers

import (
	"context"
	"log/slog"
	"time"

	application "github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/application"
	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/ports"
)

// EventArchiver moves closed summaries older than Age out of the live table
// into the archive store.
type EventArchiver struct {
	Summaries ports.SummaryRepository
	Clock     ports.Clock
	Age       time.Duration
	BatchSize int
	Logger    *slog.Logger
}

func (j EventArchiver) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(j.Logger)
	if j.Age <= 0 {
		return nil
	}
	limit := j.BatchSize
	if limit <= 0 {
		limit = 100
	}

	now := time.Now().UTC()
	if j.Clock != nil {
		now = j.Clock.Now().UTC()
	}
	cutoff := now.Add(-j.Age).UnixMilli()

	archived, err := j.Summaries.Archive(ctx, cutoff, limit, now.UnixMilli())
	if err != nil {
		logger.Error("event archive sweep failed",
			"event", "event_archive_failed",
			"module", "event-management/summary-engine",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if archived > 0 {
		logger.Info("event archive sweep completed",
			"event", "event_archive_completed",
			"module", "event-management/summary-engine",
			"layer", "worker",
			"archived_count", archived,
		)
	}
	return nil
}
