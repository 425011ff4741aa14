package queries

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/adapters/memory"
	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/application/commands"
	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/domain/entities"
	domainerrors "github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/domain/errors"
	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/ports"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func seedSummaries(t *testing.T, store *memory.Store, count int) []string {
	t.Helper()
	clock := fixedClock{now: time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)}
	ingest := commands.NewIngestUseCase(store, nil, clock, nil)
	uuids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		uuid, err := ingest.Execute(context.Background(), commands.IngestCommand{
			Occurrence: entities.Occurrence{
				Fingerprint: "fp-" + string(rune('a'+i)),
				CreatedTime: int64(1000 + i),
				Severity:    entities.SeverityWarning,
			},
		})
		if err != nil {
			t.Fatal(err)
		}
		uuids = append(uuids, uuid)
	}
	return uuids
}

func TestGetSummaryFallsBackToArchive(t *testing.T) {
	archive := memory.NewArchiveStore(0)
	store := memory.NewStore(ports.StorageLimits{}, archive)
	clock := fixedClock{now: time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)}
	ingest := commands.NewIngestUseCase(store, nil, clock, nil)

	occ := entities.Occurrence{
		Fingerprint: "fp-archived",
		CreatedTime: 1000,
		Severity:    entities.SeverityWarning,
		Status:      entities.StatusClosed,
	}
	uuid, err := ingest.Execute(context.Background(), commands.IngestCommand{Occurrence: occ})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Archive(context.Background(), 2000, 10, 3000); err != nil {
		t.Fatal(err)
	}

	query := GetSummaryUseCase{Summaries: store, Archive: archive}
	summary, err := query.Execute(context.Background(), uuid)
	if err != nil {
		t.Fatal(err)
	}
	if summary.UUID != uuid {
		t.Fatalf("expected archived summary returned, got %+v", summary)
	}

	marker := false
	for _, d := range summary.Occurrence.Details {
		if d.Name == entities.ArchiveTimeDetailName {
			marker = true
		}
	}
	if !marker {
		t.Fatal("expected archive marker detail on archived read")
	}

	if _, err := query.Execute(context.Background(), "missing"); !errors.Is(err, domainerrors.ErrSummaryNotFound) {
		t.Fatalf("expected not-found for unknown uuid, got %v", err)
	}
}

func TestGetSummariesMergesLiveAndArchive(t *testing.T) {
	archive := memory.NewArchiveStore(0)
	store := memory.NewStore(ports.StorageLimits{}, archive)
	uuids := seedSummaries(t, store, 2)

	query := GetSummariesUseCase{Summaries: store, Archive: archive}
	summaries, err := query.Execute(context.Background(), append(uuids, "missing"))
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected the two live rows, got %d", len(summaries))
	}
}

func TestListBatchPagesByUUID(t *testing.T) {
	archive := memory.NewArchiveStore(0)
	store := memory.NewStore(ports.StorageLimits{}, archive)
	seedSummaries(t, store, 5)

	query := ListBatchUseCase{Summaries: store, Archive: archive}
	page1, err := query.Execute(context.Background(), ListBatchQuery{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(page1.Summaries) != 2 || page1.NextUUID == "" {
		t.Fatalf("expected a full first page with a cursor, got %+v", page1)
	}

	page2, err := query.Execute(context.Background(), ListBatchQuery{StartingUUID: page1.NextUUID, Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range page2.Summaries {
		if s.UUID <= page1.NextUUID {
			t.Fatalf("expected page 2 past the cursor, got %s", s.UUID)
		}
	}

	page3, err := query.Execute(context.Background(), ListBatchQuery{StartingUUID: page2.NextUUID, Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(page3.Summaries) != 1 || page3.NextUUID != "" {
		t.Fatalf("expected a final short page with no cursor, got %+v", page3)
	}
}
