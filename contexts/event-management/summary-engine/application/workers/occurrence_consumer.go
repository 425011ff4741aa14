package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	application "github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/application"
	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/application/commands"
	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/domain/entities"
	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/ports"
)

const (
	occurrenceTopic              = "event.occurrence"
	defaultOccurrenceConsumerGrp = "summary-engine-occurrence-cg"
)

// OccurrenceConsumer feeds decoded raw occurrences from the bus into the
// dedup pipeline.
type OccurrenceConsumer struct {
	Subscriber    ports.EventSubscriber
	Ingest        *commands.IngestUseCase
	ClearClasses  []string
	ConsumerGroup string
	Logger        *slog.Logger
}

func (c OccurrenceConsumer) Start(ctx context.Context) error {
	group := strings.TrimSpace(c.ConsumerGroup)
	if group == "" {
		group = defaultOccurrenceConsumerGrp
	}
	return c.Subscriber.Subscribe(ctx, occurrenceTopic, group, c.handleOccurrence)
}

func (c OccurrenceConsumer) handleOccurrence(ctx context.Context, event ports.Envelope) error {
	logger := application.ResolveLogger(c.Logger)

	raw, ok := event.Payload.(json.RawMessage)
	if !ok {
		encoded, err := json.Marshal(event.Payload)
		if err != nil {
			return fmt.Errorf("encode occurrence payload: %w", err)
		}
		raw = encoded
	}
	var occ entities.Occurrence
	if err := json.Unmarshal(raw, &occ); err != nil {
		return fmt.Errorf("decode occurrence payload: %w", err)
	}
	if strings.TrimSpace(occ.Fingerprint) == "" {
		return fmt.Errorf("occurrence payload missing fingerprint")
	}

	uuid, err := c.Ingest.Execute(ctx, commands.IngestCommand{
		Occurrence:   occ,
		ClearClasses: c.ClearClasses,
	})
	if err != nil {
		logger.Error("occurrence ingestion failed",
			"event", "occurrence_ingestion_failed",
			"module", "event-management/summary-engine",
			"layer", "worker",
			"event_id", event.EventID,
			"fingerprint", occ.Fingerprint,
			"error", err.Error(),
		)
		return err
	}

	logger.Debug("occurrence ingested",
		"event", "occurrence_ingested",
		"module", "event-management/summary-engine",
		"layer", "worker",
		"event_id", event.EventID,
		"summary_uuid", uuid,
	)
	return nil
}
