package queries

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	domainerrors "github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/domain/errors"
	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/domain/entities"
	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/ports"
)

// GetSummaryUseCase resolves a summary by UUID, falling back to the archive
// when the live table no longer holds the row.
type GetSummaryUseCase struct {
	Summaries ports.SummaryRepository
	Archive   ports.ArchiveRepository
	Logger    *slog.Logger
}

func (uc GetSummaryUseCase) Execute(ctx context.Context, uuid string) (entities.EventSummary, error) {
	uuid = strings.TrimSpace(uuid)
	summary, err := uc.Summaries.FindByUUID(ctx, uuid)
	if err == nil {
		return summary, nil
	}
	if !errors.Is(err, domainerrors.ErrSummaryNotFound) || uc.Archive == nil {
		return entities.EventSummary{}, err
	}
	return uc.Archive.FindByUUID(ctx, uuid)
}

// GetSummariesUseCase resolves a batch of UUIDs against both stores, live
// rows winning over archived duplicates.
type GetSummariesUseCase struct {
	Summaries ports.SummaryRepository
	Archive   ports.ArchiveRepository
	Logger    *slog.Logger
}

func (uc GetSummariesUseCase) Execute(ctx context.Context, uuids []string) ([]entities.EventSummary, error) {
	if len(uuids) == 0 {
		return nil, nil
	}
	live, err := uc.Summaries.FindByUUIDs(ctx, uuids)
	if err != nil {
		return nil, err
	}
	if uc.Archive == nil || len(live) == len(uuids) {
		return live, nil
	}
	found := make(map[string]struct{}, len(live))
	for _, s := range live {
		found[s.UUID] = struct{}{}
	}
	missing := make([]string, 0, len(uuids)-len(live))
	for _, uuid := range uuids {
		if _, ok := found[uuid]; !ok {
			missing = append(missing, uuid)
		}
	}
	archived, err := uc.Archive.FindByUUIDs(ctx, missing)
	if err != nil {
		return nil, err
	}
	return append(live, archived...), nil
}
