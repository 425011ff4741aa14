package commands

import (
	"context"
	"log/slog"
	"strings"

	application "github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/application"
	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/domain/entities"
	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/ports"
)

type AddNoteCommand struct {
	UUID     string
	Message  string
	UserUUID string
	UserName string
	// Archived targets the archive store instead of the live one.
	Archived bool
}

// AddNoteUseCase appends a user note to a summary, newest first.
type AddNoteUseCase struct {
	Summaries ports.SummaryRepository
	Archive   ports.ArchiveRepository
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

func (uc AddNoteUseCase) Execute(ctx context.Context, cmd AddNoteCommand) (int64, error) {
	logger := application.ResolveLogger(uc.Logger)
	now := uc.Clock.Now().UnixMilli()
	noteUUID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return 0, err
	}
	note := entities.EventNote{
		UUID:        noteUUID,
		UserUUID:    strings.TrimSpace(cmd.UserUUID),
		UserName:    entities.TruncateUTF8(strings.TrimSpace(cmd.UserName), entities.MaxUserNameBytes),
		Message:     cmd.Message,
		CreatedTime: now,
	}

	var affected int64
	if cmd.Archived {
		affected, err = uc.Archive.AddNote(ctx, cmd.UUID, note, now)
	} else {
		affected, err = uc.Summaries.AddNote(ctx, cmd.UUID, note, now)
	}
	if err != nil {
		logger.Error("note append failed",
			"event", "summary_note_failed",
			"module", "event-management/summary-engine",
			"layer", "application",
			"summary_uuid", cmd.UUID,
			"archived", cmd.Archived,
			"error", err.Error(),
		)
		return 0, err
	}
	return affected, nil
}
