package summaryengine

import (
	"log/slog"
	"time"

	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/application/commands"
	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/application/queries"
	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/application/workers"
	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/domain/entities"
	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/domain/fingerprint"
	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/ports"
)

// Module is the assembled summary engine: ingestion, lifecycle commands,
// queries, and the background workers.
type Module struct {
	Ingest        *commands.IngestUseCase
	ChangeStatus  commands.ChangeStatusUseCase
	AddNote       commands.AddNoteUseCase
	UpdateDetails commands.UpdateDetailsUseCase
	Reidentify    commands.ReidentifyUseCase
	Deidentify    commands.DeidentifyUseCase

	GetSummary   queries.GetSummaryUseCase
	GetSummaries queries.GetSummariesUseCase
	ListBatch    queries.ListBatchUseCase

	Consumer     workers.OccurrenceConsumer
	Ager         workers.EventAger
	Archiver     workers.EventArchiver
	SummaryRelay workers.IndexRelay
	ArchiveRelay workers.IndexRelay
}

type Dependencies struct {
	Summaries    ports.SummaryRepository
	Archive      ports.ArchiveRepository
	SummaryQueue ports.IndexQueueRepository
	ArchiveQueue ports.IndexQueueRepository

	Publisher  ports.EventPublisher
	Subscriber ports.EventSubscriber

	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Hashes      fingerprint.Generator

	ClearClasses     []string
	ConsumerGroup    string
	AgingInterval    time.Duration
	AgingMaxSeverity entities.Severity
	AgingBatchSize   int
	ArchiveAge       time.Duration
	ArchiveBatchSize int
	IndexBatchSize   int

	Logger *slog.Logger
}

func NewModule(deps Dependencies) Module {
	ingest := commands.NewIngestUseCase(deps.Summaries, deps.Hashes, deps.Clock, deps.Logger)

	module := Module{
		Ingest: ingest,
		ChangeStatus: commands.ChangeStatusUseCase{
			Summaries: deps.Summaries,
			Clock:     deps.Clock,
			Logger:    deps.Logger,
		},
		AddNote: commands.AddNoteUseCase{
			Summaries: deps.Summaries,
			Archive:   deps.Archive,
			Clock:     deps.Clock,
			IDGen:     deps.IDGenerator,
			Logger:    deps.Logger,
		},
		UpdateDetails: commands.UpdateDetailsUseCase{
			Summaries: deps.Summaries,
			Clock:     deps.Clock,
			Logger:    deps.Logger,
		},
		Reidentify: commands.ReidentifyUseCase{
			Summaries: deps.Summaries,
			Clock:     deps.Clock,
			Logger:    deps.Logger,
		},
		Deidentify: commands.DeidentifyUseCase{
			Summaries: deps.Summaries,
			Clock:     deps.Clock,
			Logger:    deps.Logger,
		},
		GetSummary: queries.GetSummaryUseCase{
			Summaries: deps.Summaries,
			Archive:   deps.Archive,
			Logger:    deps.Logger,
		},
		GetSummaries: queries.GetSummariesUseCase{
			Summaries: deps.Summaries,
			Archive:   deps.Archive,
			Logger:    deps.Logger,
		},
		ListBatch: queries.ListBatchUseCase{
			Summaries: deps.Summaries,
			Archive:   deps.Archive,
			Logger:    deps.Logger,
		},
		Ager: workers.EventAger{
			Summaries:   deps.Summaries,
			Clock:       deps.Clock,
			Interval:    deps.AgingInterval,
			MaxSeverity: deps.AgingMaxSeverity,
			BatchSize:   deps.AgingBatchSize,
			Logger:      deps.Logger,
		},
		Archiver: workers.EventArchiver{
			Summaries: deps.Summaries,
			Clock:     deps.Clock,
			Age:       deps.ArchiveAge,
			BatchSize: deps.ArchiveBatchSize,
			Logger:    deps.Logger,
		},
	}

	if deps.Subscriber != nil {
		module.Consumer = workers.OccurrenceConsumer{
			Subscriber:    deps.Subscriber,
			Ingest:        ingest,
			ClearClasses:  deps.ClearClasses,
			ConsumerGroup: deps.ConsumerGroup,
			Logger:        deps.Logger,
		}
	}
	if deps.Publisher != nil {
		module.SummaryRelay = workers.IndexRelay{
			Queue:     deps.SummaryQueue,
			Store:     deps.Summaries,
			Publisher: deps.Publisher,
			IDGen:     deps.IDGenerator,
			Clock:     deps.Clock,
			BatchSize: deps.IndexBatchSize,
			Logger:    deps.Logger,
		}
		module.ArchiveRelay = workers.IndexRelay{
			Queue:     deps.ArchiveQueue,
			Store:     deps.Archive,
			Publisher: deps.Publisher,
			IDGen:     deps.IDGenerator,
			Clock:     deps.Clock,
			BatchSize: deps.IndexBatchSize,
			Logger:    deps.Logger,
		}
	}
	return module
}
