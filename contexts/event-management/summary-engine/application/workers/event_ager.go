package workers

import (
	"context"
	"log/slog"
	"time"

	application "github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/application"
	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/domain/entities"
	domainerrors "github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/domain/errors"
	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/ports"
)

// EventAger sweeps stale open summaries below the configured severity into
// AGED. A zero Interval disables the sweep.
type EventAger struct {
	Summaries   ports.SummaryRepository
	Clock       ports.Clock
	Interval    time.Duration
	MaxSeverity entities.Severity
	BatchSize   int
	Logger      *slog.Logger
}

func (j EventAger) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(j.Logger)
	if j.Interval <= 0 {
		return nil
	}
	severities := entities.SeveritiesBelow(j.MaxSeverity)
	if len(severities) == 0 {
		return nil
	}

	limit := j.BatchSize
	if limit <= 0 {
		return domainerrors.ErrInvalidAgingLimit
	}

	now := time.Now().UTC()
	if j.Clock != nil {
		now = j.Clock.Now().UTC()
	}
	cutoff := now.Add(-j.Interval).UnixMilli()

	aged, err := j.Summaries.Age(ctx, cutoff, severities, limit, now.UnixMilli())
	if err != nil {
		logger.Error("event aging sweep failed",
			"event", "event_aging_failed",
			"module", "event-management/summary-engine",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if aged > 0 {
		logger.Info("event aging sweep completed",
			"event", "event_aging_completed",
			"module", "event-management/summary-engine",
			"layer", "worker",
			"aged_count", aged,
		)
	}
	return nil
}
