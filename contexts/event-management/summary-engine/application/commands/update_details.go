package commands

import (
	"context"
	"log/slog"

	application "github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/application"
	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/domain/entities"
	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/ports"
)

type UpdateDetailsCommand struct {
	UUID    string
	Details []entities.EventDetail
}

// UpdateDetailsUseCase merges an explicit detail set into a stored summary
// using the per-field merge behaviors.
type UpdateDetailsUseCase struct {
	Summaries ports.SummaryRepository
	Clock     ports.Clock
	Logger    *slog.Logger
}

func (uc UpdateDetailsUseCase) Execute(ctx context.Context, cmd UpdateDetailsCommand) (int64, error) {
	logger := application.ResolveLogger(uc.Logger)
	now := uc.Clock.Now().UnixMilli()
	affected, err := uc.Summaries.UpdateDetails(ctx, cmd.UUID, cmd.Details, now)
	if err != nil {
		logger.Error("detail update failed",
			"event", "summary_details_failed",
			"module", "event-management/summary-engine",
			"layer", "application",
			"summary_uuid", cmd.UUID,
			"error", err.Error(),
		)
		return 0, err
	}
	return affected, nil
}
