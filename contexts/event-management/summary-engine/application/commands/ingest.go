package commands

import (
	"context"
	"log/slog"
	"sync"

	application "github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/application"
	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/domain/entities"
	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/domain/fingerprint"
	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/ports"
)

// IngestCommand carries one decoded occurrence plus the clear-correlation
// context configured by the ingestion pipeline.
type IngestCommand struct {
	Occurrence   entities.Occurrence
	ClearClasses []string
}

// IngestUseCase routes occurrences into summaries. Clear-severity
// occurrences resolve the open summaries they correlate with; everything
// else is de-duplicated per fingerprint.
//
// De-duplication runs without a global lock: concurrently arriving
// occurrences for one fingerprint are appended to a shared keyed buffer,
// and a per-key critical section drains whatever is buffered in one
// persistence pass. Appending is a fast in-memory step; a goroutine whose
// occurrence was drained by an earlier pass finds its buffer empty and
// returns without touching storage.
type IngestUseCase struct {
	summaries ports.SummaryRepository
	hashes    fingerprint.Generator
	clock     ports.Clock
	logger    *slog.Logger

	mu      sync.Mutex
	pending map[string][]ports.MergeItem
	passes  map[string]*ingestPass
}

type ingestPass struct {
	mu   sync.Mutex
	refs int
}

func NewIngestUseCase(
	summaries ports.SummaryRepository,
	hashes fingerprint.Generator,
	clock ports.Clock,
	logger *slog.Logger,
) *IngestUseCase {
	if hashes == nil {
		hashes = fingerprint.Default{}
	}
	return &IngestUseCase{
		summaries: summaries,
		hashes:    hashes,
		clock:     clock,
		logger:    logger,
		pending:   make(map[string][]ports.MergeItem),
		passes:    make(map[string]*ingestPass),
	}
}

// Execute ingests one occurrence. It returns the uuid of the summary the
// occurrence landed on, or an empty uuid when a concurrent pass persisted
// the batch (the occurrence is committed either way) or when a clear
// occurrence matched nothing and was dropped.
func (uc *IngestUseCase) Execute(ctx context.Context, cmd IngestCommand) (string, error) {
	logger := application.ResolveLogger(uc.logger)
	occ := cmd.Occurrence.Normalize()
	now := uc.clock.Now().UnixMilli()

	if occ.Severity == entities.SeverityClear {
		return uc.executeClear(ctx, occ, cmd.ClearClasses, now, logger)
	}

	if occ.Status.IsClosed() {
		// A closed proposed status never de-duplicates: the row gets a
		// salted hash so a later active occurrence starts fresh.
		items := []ports.MergeItem{{Occurrence: occ, Status: occ.Status}}
		return uc.summaries.MergeOccurrences(ctx, fingerprint.ClosedHash(occ.Fingerprint, now), items, now)
	}

	hash := fingerprint.DedupHash(occ.Fingerprint)
	key := string(hash)
	item := ports.MergeItem{
		Occurrence: occ,
		Status:     occ.Status,
		ClearHash:  uc.hashes.ClearHash(occ),
	}

	uc.mu.Lock()
	uc.pending[key] = append(uc.pending[key], item)
	pass, ok := uc.passes[key]
	if !ok {
		pass = &ingestPass{}
		uc.passes[key] = pass
	}
	pass.refs++
	uc.mu.Unlock()

	pass.mu.Lock()
	uc.mu.Lock()
	batch := uc.pending[key]
	delete(uc.pending, key)
	uc.mu.Unlock()

	var uuid string
	var err error
	if len(batch) > 0 {
		uuid, err = uc.summaries.MergeOccurrences(ctx, hash, batch, now)
	}
	pass.mu.Unlock()

	uc.mu.Lock()
	pass.refs--
	if pass.refs == 0 {
		delete(uc.passes, key)
	}
	uc.mu.Unlock()

	if err != nil {
		logger.Error("occurrence merge failed",
			"event", "summary_merge_failed",
			"module", "event-management/summary-engine",
			"layer", "application",
			"fingerprint", occ.Fingerprint,
			"batch_size", len(batch),
			"error", err.Error(),
		)
		return "", err
	}
	return uuid, nil
}

// executeClear correlates a clear occurrence with the open summaries it
// resolves. A clear that cannot produce correlation hashes, or that matches
// no eligible summaries, is dropped without creating a row.
func (uc *IngestUseCase) executeClear(
	ctx context.Context,
	occ entities.Occurrence,
	clearClasses []string,
	now int64,
	logger *slog.Logger,
) (string, error) {
	hashes := uc.hashes.ClearHashes(occ, clearClasses)
	if len(hashes) == 0 {
		logger.Debug("clear occurrence has no correlation hashes, dropping",
			"event", "clear_without_hashes_dropped",
			"module", "event-management/summary-engine",
			"layer", "application",
			"fingerprint", occ.Fingerprint,
		)
		return "", nil
	}

	// Eligibility is judged against the clear's own timestamp: a summary
	// last seen after the clear was created is not resolved by it.
	uuids, err := uc.summaries.FindOpenByClearHashes(ctx, hashes, occ.CreatedTime)
	if err != nil {
		return "", err
	}
	if len(uuids) == 0 {
		logger.Debug("clear occurrence matched no open summaries, dropping",
			"event", "clear_unmatched_dropped",
			"module", "event-management/summary-engine",
			"layer", "application",
			"fingerprint", occ.Fingerprint,
		)
		return "", nil
	}

	items := []ports.MergeItem{{Occurrence: occ, Status: entities.StatusClosed}}
	uuid, err := uc.summaries.MergeOccurrences(ctx, fingerprint.ClosedHash(occ.Fingerprint, now), items, now)
	if err != nil {
		return "", err
	}

	cleared, err := uc.summaries.UpdateStatus(ctx, uuids, entities.ClearUpdate(uuid), now)
	if err != nil {
		return "", err
	}
	logger.Info("clear occurrence resolved open summaries",
		"event", "summaries_cleared",
		"module", "event-management/summary-engine",
		"layer", "application",
		"clear_event_uuid", uuid,
		"cleared_count", cleared,
	)
	return uuid, nil
}
