package commands

import (
	"context"
	"testing"

	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/domain/entities"
)

func TestAcknowledgeIsIdempotentPerUser(t *testing.T) {
	store, _ := newTestStore()
	ingest := NewIngestUseCase(store, nil, testClock(), nil)
	changeStatus := ChangeStatusUseCase{Summaries: store, Clock: testClock()}

	uuid, err := ingest.Execute(context.Background(), IngestCommand{Occurrence: pingOccurrence(1000)})
	if err != nil {
		t.Fatal(err)
	}

	affected, err := changeStatus.Execute(context.Background(), ChangeStatusCommand{
		UUIDs:    []string{uuid},
		Action:   StatusActionAcknowledge,
		UserUUID: "user-1",
		UserName: "jane",
	})
	if err != nil || affected != 1 {
		t.Fatalf("expected first acknowledge to touch 1 row, got %d (%v)", affected, err)
	}

	affected, err = changeStatus.Execute(context.Background(), ChangeStatusCommand{
		UUIDs:    []string{uuid},
		Action:   StatusActionAcknowledge,
		UserUUID: "user-1",
		UserName: "jane",
	})
	if err != nil || affected != 0 {
		t.Fatalf("expected same-user re-acknowledge to touch 0 rows, got %d (%v)", affected, err)
	}

	affected, err = changeStatus.Execute(context.Background(), ChangeStatusCommand{
		UUIDs:    []string{uuid},
		Action:   StatusActionAcknowledge,
		UserUUID: "user-2",
		UserName: "joe",
	})
	if err != nil || affected != 1 {
		t.Fatalf("expected different-user acknowledge to touch 1 row, got %d (%v)", affected, err)
	}

	summary, _ := store.FindByUUID(context.Background(), uuid)
	if summary.CurrentUserUUID != "user-2" || summary.CurrentUserName != "joe" {
		t.Fatalf("expected ownership moved to user-2, got %+v", summary)
	}
}

func TestCloseFreesOpenSlotForFingerprint(t *testing.T) {
	store, _ := newTestStore()
	ingest := NewIngestUseCase(store, nil, testClock(), nil)
	changeStatus := ChangeStatusUseCase{Summaries: store, Clock: testClock()}

	uuid, err := ingest.Execute(context.Background(), IngestCommand{Occurrence: pingOccurrence(1000)})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := changeStatus.Execute(context.Background(), ChangeStatusCommand{
		UUIDs:  []string{uuid},
		Action: StatusActionClose,
	}); err != nil {
		t.Fatal(err)
	}

	fresh, err := ingest.Execute(context.Background(), IngestCommand{Occurrence: pingOccurrence(2000)})
	if err != nil {
		t.Fatal(err)
	}
	if fresh == uuid {
		t.Fatal("expected a fresh summary after close, not a merge into the closed row")
	}

	closed, _ := store.FindByUUID(context.Background(), uuid)
	if closed.Status != entities.StatusClosed || closed.Count != 1 {
		t.Fatalf("expected closed row untouched by new occurrence, got %+v", closed)
	}
}

func TestReopenBlockedWhileOpenRowHoldsFingerprint(t *testing.T) {
	store, _ := newTestStore()
	ingest := NewIngestUseCase(store, nil, testClock(), nil)
	changeStatus := ChangeStatusUseCase{Summaries: store, Clock: testClock()}

	first, err := ingest.Execute(context.Background(), IngestCommand{Occurrence: pingOccurrence(1000)})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := changeStatus.Execute(context.Background(), ChangeStatusCommand{
		UUIDs:  []string{first},
		Action: StatusActionClose,
	}); err != nil {
		t.Fatal(err)
	}
	second, err := ingest.Execute(context.Background(), IngestCommand{Occurrence: pingOccurrence(2000)})
	if err != nil {
		t.Fatal(err)
	}

	// The open slot for this fingerprint is taken by the second summary, so
	// reopening the first must skip it.
	affected, err := changeStatus.Execute(context.Background(), ChangeStatusCommand{
		UUIDs:  []string{first},
		Action: StatusActionReopen,
	})
	if err != nil {
		t.Fatal(err)
	}
	if affected != 0 {
		t.Fatalf("expected reopen skipped on hash collision, got %d rows", affected)
	}

	open, _ := store.FindByUUID(context.Background(), second)
	if open.Status != entities.StatusNew {
		t.Fatalf("expected the open row untouched, got %v", open.Status)
	}
}

func TestReopenReturnsClosedRowToNew(t *testing.T) {
	store, _ := newTestStore()
	ingest := NewIngestUseCase(store, nil, testClock(), nil)
	changeStatus := ChangeStatusUseCase{Summaries: store, Clock: testClock()}

	uuid, err := ingest.Execute(context.Background(), IngestCommand{Occurrence: pingOccurrence(1000)})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := changeStatus.Execute(context.Background(), ChangeStatusCommand{
		UUIDs:  []string{uuid},
		Action: StatusActionClose,
	}); err != nil {
		t.Fatal(err)
	}

	affected, err := changeStatus.Execute(context.Background(), ChangeStatusCommand{
		UUIDs:  []string{uuid},
		Action: StatusActionReopen,
	})
	if err != nil || affected != 1 {
		t.Fatalf("expected reopen to touch 1 row, got %d (%v)", affected, err)
	}

	summary, _ := store.FindByUUID(context.Background(), uuid)
	if summary.Status != entities.StatusNew {
		t.Fatalf("expected new after reopen, got %v", summary.Status)
	}

	// The reopened row owns the open slot again, so the next occurrence
	// merges into it.
	merged, err := ingest.Execute(context.Background(), IngestCommand{Occurrence: pingOccurrence(3000)})
	if err != nil {
		t.Fatal(err)
	}
	if merged != uuid {
		t.Fatalf("expected merge into reopened summary, got %s", merged)
	}
}

func TestSuppressRejectedFromAcknowledged(t *testing.T) {
	store, _ := newTestStore()
	ingest := NewIngestUseCase(store, nil, testClock(), nil)
	changeStatus := ChangeStatusUseCase{Summaries: store, Clock: testClock()}

	uuid, err := ingest.Execute(context.Background(), IngestCommand{Occurrence: pingOccurrence(1000)})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := changeStatus.Execute(context.Background(), ChangeStatusCommand{
		UUIDs:    []string{uuid},
		Action:   StatusActionAcknowledge,
		UserUUID: "user-1",
		UserName: "jane",
	}); err != nil {
		t.Fatal(err)
	}

	affected, err := changeStatus.Execute(context.Background(), ChangeStatusCommand{
		UUIDs:  []string{uuid},
		Action: StatusActionSuppress,
	})
	if err != nil {
		t.Fatal(err)
	}
	if affected != 0 {
		t.Fatalf("expected suppress blocked from acknowledged, got %d rows", affected)
	}
}

func TestUnknownActionReturnsError(t *testing.T) {
	store, _ := newTestStore()
	changeStatus := ChangeStatusUseCase{Summaries: store, Clock: testClock()}
	if _, err := changeStatus.Execute(context.Background(), ChangeStatusCommand{
		UUIDs:  []string{"some-uuid"},
		Action: "escalate",
	}); err == nil {
		t.Fatal("expected an error for an unknown action")
	}
}

func TestAddNoteTargetsLiveAndArchive(t *testing.T) {
	store, archive := newTestStore()
	ingest := NewIngestUseCase(store, nil, testClock(), nil)
	addNote := AddNoteUseCase{
		Summaries: store,
		Archive:   archive,
		Clock:     testClock(),
		IDGen:     &seqIDGen{},
	}

	occ := pingOccurrence(1000)
	occ.Status = entities.StatusClosed
	uuid, err := ingest.Execute(context.Background(), IngestCommand{Occurrence: occ})
	if err != nil {
		t.Fatal(err)
	}

	affected, err := addNote.Execute(context.Background(), AddNoteCommand{
		UUID:     uuid,
		Message:  "checked by ops",
		UserUUID: "user-1",
		UserName: "jane",
	})
	if err != nil || affected != 1 {
		t.Fatalf("expected live note appended, got %d (%v)", affected, err)
	}

	if _, err := store.Archive(context.Background(), 2000, 10, 3000); err != nil {
		t.Fatal(err)
	}
	affected, err = addNote.Execute(context.Background(), AddNoteCommand{
		UUID:     uuid,
		Message:  "post-archive note",
		Archived: true,
	})
	if err != nil || affected != 1 {
		t.Fatalf("expected archive note appended, got %d (%v)", affected, err)
	}

	archived, err := archive.FindByUUID(context.Background(), uuid)
	if err != nil {
		t.Fatal(err)
	}
	if len(archived.Notes) != 2 || archived.Notes[0].Message != "post-archive note" {
		t.Fatalf("expected both notes newest first, got %v", archived.Notes)
	}
}
