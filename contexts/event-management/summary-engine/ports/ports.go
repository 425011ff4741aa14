package ports

import (
	"context"
	"time"

	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/domain/entities"
)

// MergeItem is one occurrence prepared for a persistence pass: normalized,
// with its proposed status and precomputed clear-correlation hash.
type MergeItem struct {
	Occurrence entities.Occurrence
	Status     entities.Status
	ClearHash  []byte
}

// StorageLimits carries the lossy-degradation byte budgets applied at write
// time. Zero values disable the corresponding budget.
type StorageLimits struct {
	MaxDetailsBytes       int
	MaxNotesBytes         int
	ProtectedDetailPrefix string
}

// SummaryRepository is the live event_summary store. Implementations own the
// transaction boundary: every mutation that commits also appends the
// matching index-queue signal in the same transaction.
type SummaryRepository interface {
	// MergeOccurrences runs one persistence pass for a drained batch
	// sharing fingerprintHash: row-lock the stored summary if present,
	// fold every item in order, update or insert, and emit exactly one
	// index signal. Insert races on the fingerprint hash are resolved by
	// re-locking and merging, never surfaced.
	MergeOccurrences(ctx context.Context, fingerprintHash []byte, items []MergeItem, now int64) (string, error)

	// FindOpenByClearHashes returns uuids of open summaries whose clear
	// fingerprint hash is among hashes and whose last seen time is at or
	// before maxLastSeen.
	FindOpenByClearHashes(ctx context.Context, hashes [][]byte, maxLastSeen int64) ([]string, error)

	// UpdateStatus applies one transition to the given summaries using the
	// bulk shape: lock eligible rows, signal, re-derive fingerprint hash
	// and audit state, update each row individually tolerating unique-key
	// collisions. Returns the number of rows actually changed.
	UpdateStatus(ctx context.Context, uuids []string, update entities.StatusUpdate, now int64) (int64, error)

	// Age transitions open summaries last seen before maxLastSeen with a
	// severity among severities to AGED, at most limit rows.
	Age(ctx context.Context, maxLastSeen int64, severities []entities.Severity, limit int, now int64) (int64, error)

	// Archive copies closed summaries last seen before maxLastSeen to the
	// archive store (upsert by uuid), signals the live index queue for
	// each, and deletes the rows that are still closed.
	Archive(ctx context.Context, maxLastSeen int64, limit int, now int64) (int64, error)

	FindByUUID(ctx context.Context, uuid string) (entities.EventSummary, error)
	FindByUUIDs(ctx context.Context, uuids []string) ([]entities.EventSummary, error)

	// ListBatch pages summaries by ascending uuid, bounded by update time.
	ListBatch(ctx context.Context, startingUUID string, maxUpdateTime int64, limit int) ([]entities.EventSummary, error)

	AddNote(ctx context.Context, uuid string, note entities.EventNote, now int64) (int64, error)

	// UpdateDetails merges details into the stored summary's detail state
	// under a row lock.
	UpdateDetails(ctx context.Context, uuid string, details []entities.EventDetail, now int64) (int64, error)

	// Reidentify stamps elementUUID onto summaries matching the element
	// identity, and when parentUUID is given, stamps sub-element UUIDs and
	// recomputes clear-correlation hashes in the UUID-based style.
	Reidentify(ctx context.Context, elementType entities.ElementType, identifier, elementUUID, parentUUID string, now int64) (int64, error)

	// Deidentify removes elementUUID from summaries referencing it and
	// reverts clear-correlation hashes to the identifier-based style.
	Deidentify(ctx context.Context, elementUUID string, now int64) (int64, error)

	Delete(ctx context.Context, uuid string) (int64, error)
}

// ArchiveRepository reads the append-only archive store. Rows carry an
// injected migration-time marker detail.
type ArchiveRepository interface {
	FindByUUID(ctx context.Context, uuid string) (entities.EventSummary, error)
	FindByUUIDs(ctx context.Context, uuids []string) ([]entities.EventSummary, error)
	ListBatch(ctx context.Context, startingUUID string, maxUpdateTime int64, limit int) ([]entities.EventSummary, error)
	AddNote(ctx context.Context, uuid string, note entities.EventNote, now int64) (int64, error)
}

// SummaryLookup is the read subset shared by the live and archive stores,
// used by the index relay to load signaled rows.
type SummaryLookup interface {
	FindByUUIDs(ctx context.Context, uuids []string) ([]entities.EventSummary, error)
}

// IndexQueueEntry is one change notification for the external indexer.
type IndexQueueEntry struct {
	ID         int64
	UUID       string
	UpdateTime int64
}

// IndexQueueRepository drains one index queue (live or archive, fixed at
// construction) in insertion order.
type IndexQueueRepository interface {
	NextIndexBatch(ctx context.Context, limit int) ([]IndexQueueEntry, error)
	DeleteIndexEntries(ctx context.Context, ids []int64) error
}

// Envelope is the message-bus frame shared by inbound occurrences and
// outbound signals.
type Envelope struct {
	EventID    string
	EventType  string
	OccurredAt time.Time
	Payload    any
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event Envelope) error
}

type EventSubscriber interface {
	Subscribe(ctx context.Context, topic string, consumerGroup string, handler func(context.Context, Envelope) error) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
