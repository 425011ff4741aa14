package commands

import (
	"context"
	"log/slog"

	application "github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/application"
	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/domain/entities"
	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/ports"
)

type ReidentifyCommand struct {
	ElementType entities.ElementType
	Identifier  string
	ElementUUID string
	// ParentUUID is set when the identified element is a sub-element of an
	// already identified parent; its summaries get UUID-style clear hashes.
	ParentUUID string
}

// ReidentifyUseCase stamps a newly learned element UUID onto summaries that
// were created before the element was modeled, re-keying their
// clear-correlation hashes.
type ReidentifyUseCase struct {
	Summaries ports.SummaryRepository
	Clock     ports.Clock
	Logger    *slog.Logger
}

func (uc ReidentifyUseCase) Execute(ctx context.Context, cmd ReidentifyCommand) (int64, error) {
	logger := application.ResolveLogger(uc.Logger)
	now := uc.Clock.Now().UnixMilli()
	affected, err := uc.Summaries.Reidentify(ctx, cmd.ElementType, cmd.Identifier, cmd.ElementUUID, cmd.ParentUUID, now)
	if err != nil {
		return 0, err
	}
	logger.Info("summaries reidentified",
		"event", "summaries_reidentified",
		"module", "event-management/summary-engine",
		"layer", "application",
		"element_uuid", cmd.ElementUUID,
		"affected", affected,
	)
	return affected, nil
}

// DeidentifyUseCase reverses a reidentification when an element is removed
// from the model.
type DeidentifyUseCase struct {
	Summaries ports.SummaryRepository
	Clock     ports.Clock
	Logger    *slog.Logger
}

func (uc DeidentifyUseCase) Execute(ctx context.Context, elementUUID string) (int64, error) {
	logger := application.ResolveLogger(uc.Logger)
	now := uc.Clock.Now().UnixMilli()
	affected, err := uc.Summaries.Deidentify(ctx, elementUUID, now)
	if err != nil {
		return 0, err
	}
	logger.Info("summaries deidentified",
		"event", "summaries_deidentified",
		"module", "event-management/summary-engine",
		"layer", "application",
		"element_uuid", elementUUID,
		"affected", affected,
	)
	return affected, nil
}
