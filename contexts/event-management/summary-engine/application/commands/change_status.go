package commands

import (
	"context"
	"log/slog"

	application "github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/application"
	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/domain/entities"
	domainerrors "github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/domain/errors"
	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/ports"
)

type StatusAction string

const (
	StatusActionAcknowledge StatusAction = "acknowledge"
	StatusActionClose       StatusAction = "close"
	StatusActionReopen      StatusAction = "reopen"
	StatusActionSuppress    StatusAction = "suppress"
)

type ChangeStatusCommand struct {
	UUIDs    []string
	Action   StatusAction
	UserUUID string
	UserName string
}

// ChangeStatusUseCase executes user-requested lifecycle transitions. A
// transition a summary's current status does not allow touches zero rows;
// callers detect "nothing changed" through the returned count.
type ChangeStatusUseCase struct {
	Summaries ports.SummaryRepository
	Clock     ports.Clock
	Logger    *slog.Logger
}

func (uc ChangeStatusUseCase) Execute(ctx context.Context, cmd ChangeStatusCommand) (int64, error) {
	logger := application.ResolveLogger(uc.Logger)
	if len(cmd.UUIDs) == 0 {
		return 0, nil
	}

	var update entities.StatusUpdate
	switch cmd.Action {
	case StatusActionAcknowledge:
		update = entities.AcknowledgeUpdate(cmd.UserUUID, cmd.UserName)
	case StatusActionClose:
		update = entities.CloseUpdate(cmd.UserUUID, cmd.UserName)
	case StatusActionReopen:
		update = entities.ReopenUpdate(cmd.UserUUID, cmd.UserName)
	case StatusActionSuppress:
		update = entities.SuppressUpdate()
	default:
		return 0, domainerrors.ErrInvalidOccurrence
	}

	now := uc.Clock.Now().UnixMilli()
	affected, err := uc.Summaries.UpdateStatus(ctx, cmd.UUIDs, update, now)
	if err != nil {
		logger.Error("status change failed",
			"event", "summary_status_change_failed",
			"module", "event-management/summary-engine",
			"layer", "application",
			"action", string(cmd.Action),
			"requested", len(cmd.UUIDs),
			"error", err.Error(),
		)
		return 0, err
	}
	logger.Info("status change applied",
		"event", "summary_status_changed",
		"module", "event-management/summary-engine",
		"layer", "application",
		"action", string(cmd.Action),
		"requested", len(cmd.UUIDs),
		"affected", affected,
	)
	return affected, nil
}
