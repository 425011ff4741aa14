package queries

import (
	"context"
	"log/slog"

	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/domain/entities"
	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/ports"
)

const defaultBatchLimit = 500

type ListBatchQuery struct {
	// StartingUUID is the exclusive lower bound for the page; empty starts
	// from the beginning.
	StartingUUID string
	// MaxUpdateTime pins the paging snapshot so rows updated mid-scan do
	// not reappear.
	MaxUpdateTime int64
	Limit         int
	Archived      bool
}

type ListBatchResult struct {
	Summaries []entities.EventSummary
	// NextUUID carries the cursor for the following page, empty when the
	// scan is exhausted.
	NextUUID string
}

// ListBatchUseCase pages summaries by ascending uuid for bulk export and
// migration jobs.
type ListBatchUseCase struct {
	Summaries ports.SummaryRepository
	Archive   ports.ArchiveRepository
	Logger    *slog.Logger
}

func (uc ListBatchUseCase) Execute(ctx context.Context, q ListBatchQuery) (ListBatchResult, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultBatchLimit
	}
	var (
		summaries []entities.EventSummary
		err       error
	)
	if q.Archived {
		summaries, err = uc.Archive.ListBatch(ctx, q.StartingUUID, q.MaxUpdateTime, limit)
	} else {
		summaries, err = uc.Summaries.ListBatch(ctx, q.StartingUUID, q.MaxUpdateTime, limit)
	}
	if err != nil {
		return ListBatchResult{}, err
	}
	result := ListBatchResult{Summaries: summaries}
	if len(summaries) == limit {
		result.NextUUID = summaries[len(summaries)-1].UUID
	}
	return result, nil
}
