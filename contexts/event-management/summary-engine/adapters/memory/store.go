package memory

import (
	"bytes"
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/domain/entities"
	domainerrors "github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/domain/errors"
	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/domain/fingerprint"
	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/ports"

	"github.com/google/uuid"
)

// Store is the in-memory live summary store. It mirrors the relational
// adapter's semantics: the fingerprint hash is unique across rows, status
// transitions re-key the hash, and every mutation appends an index-queue
// signal.
type Store struct {
	mu sync.RWMutex

	limits    ports.StorageLimits
	summaries map[string]entities.EventSummary
	byHash    map[string]string

	queue       []ports.IndexQueueEntry
	nextQueueID int64

	archive *ArchiveStore
}

func NewStore(limits ports.StorageLimits, archive *ArchiveStore) *Store {
	return &Store{
		limits:    limits,
		summaries: make(map[string]entities.EventSummary),
		byHash:    make(map[string]string),
		archive:   archive,
	}
}

func (s *Store) signalLocked(uuid string, now int64) {
	s.nextQueueID++
	s.queue = append(s.queue, ports.IndexQueueEntry{ID: s.nextQueueID, UUID: uuid, UpdateTime: now})
}

func (s *Store) MergeOccurrences(_ context.Context, fingerprintHash []byte, items []ports.MergeItem, now int64) (string, error) {
	if len(items) == 0 {
		return "", nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := string(fingerprintHash)
	var summary entities.EventSummary
	id, exists := s.byHash[key]
	if exists {
		summary = s.summaries[id]
	} else {
		first := items[0]
		id = uuid.NewString()
		summary = entities.NewSummary(id, first.Occurrence, first.Status, now)
		summary.FingerprintHash = append([]byte(nil), fingerprintHash...)
		summary.ClearFingerprintHash = first.ClearHash
		if entities.StatusIsAudited(first.Status) {
			summary.PrependAudit(entities.AuditLogEntry{Timestamp: now, NewStatus: first.Status})
		}
		items = items[1:]
	}

	for _, item := range items {
		occ := item.Occurrence
		occ.Status = item.Status
		entities.MergeOccurrence(&summary, occ, item.ClearHash, now)
	}
	last := items
	fallback := summary.Occurrence.Details
	if len(last) > 0 {
		fallback = last[len(last)-1].Occurrence.Details
	}
	capped, _ := entities.CapDetails(summary.Occurrence.Details, fallback, s.limits.MaxDetailsBytes, s.limits.ProtectedDetailPrefix)
	summary.Occurrence.Details = capped

	s.summaries[id] = summary
	s.byHash[key] = id
	s.signalLocked(id, now)
	return id, nil
}

func (s *Store) FindOpenByClearHashes(_ context.Context, hashes [][]byte, maxLastSeen int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var uuids []string
	for id, summary := range s.summaries {
		if !summary.Status.IsOpen() || summary.LastSeenTime > maxLastSeen {
			continue
		}
		for _, h := range hashes {
			if bytes.Equal(summary.ClearFingerprintHash, h) {
				uuids = append(uuids, id)
				break
			}
		}
	}
	sort.Strings(uuids)
	return uuids, nil
}

func (s *Store) UpdateStatus(_ context.Context, uuids []string, update entities.StatusUpdate, now int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var affected int64
	for _, id := range uuids {
		summary, ok := s.summaries[id]
		if !ok || !update.Eligible(summary.Status) || update.RedundantAcknowledge(summary) {
			continue
		}

		newHash := summary.FingerprintHash
		switch {
		case update.Target.IsClosed() && !summary.Status.IsClosed():
			newHash = fingerprint.ClosedHash(summary.Occurrence.Fingerprint, now)
		case update.Target == entities.StatusNew && summary.Status.IsClosed():
			newHash = fingerprint.DedupHash(summary.Occurrence.Fingerprint)
		}
		if string(newHash) != string(summary.FingerprintHash) {
			if holder, taken := s.byHash[string(newHash)]; taken && holder != id {
				// Another row already owns the target hash. Relational
				// adapters skip such rows on the unique violation; so do we.
				continue
			}
			delete(s.byHash, string(summary.FingerprintHash))
			s.byHash[string(newHash)] = id
			summary.FingerprintHash = newHash
		}

		update.Apply(&summary, now)
		s.summaries[id] = summary
		s.signalLocked(id, now)
		affected++
	}
	return affected, nil
}

func (s *Store) Age(ctx context.Context, maxLastSeen int64, severities []entities.Severity, limit int, now int64) (int64, error) {
	if limit <= 0 {
		return 0, domainerrors.ErrInvalidAgingLimit
	}
	allowed := make(map[entities.Severity]bool, len(severities))
	for _, sev := range severities {
		allowed[sev] = true
	}

	s.mu.RLock()
	var candidates []string
	for id, summary := range s.summaries {
		if summary.Status.IsOpen() && summary.LastSeenTime < maxLastSeen && allowed[summary.Occurrence.Severity] {
			candidates = append(candidates, id)
		}
	}
	s.mu.RUnlock()

	sort.Strings(candidates)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return s.UpdateStatus(ctx, candidates, entities.AgeUpdate(), now)
}

func (s *Store) Archive(_ context.Context, maxLastSeen int64, limit int, now int64) (int64, error) {
	if s.archive == nil {
		return 0, domainerrors.ErrStorageFailure
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates []string
	for id, summary := range s.summaries {
		if summary.Status.IsClosed() && summary.LastSeenTime < maxLastSeen {
			candidates = append(candidates, id)
		}
	}
	sort.Strings(candidates)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	var archived int64
	for _, id := range candidates {
		summary := s.summaries[id]
		summary.UpdateTime = now
		s.archive.put(summary, now)
		delete(s.byHash, string(summary.FingerprintHash))
		delete(s.summaries, id)
		s.signalLocked(id, now)
		archived++
	}
	return archived, nil
}

func (s *Store) FindByUUID(_ context.Context, uuid string) (entities.EventSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary, ok := s.summaries[uuid]
	if !ok {
		return entities.EventSummary{}, domainerrors.ErrSummaryNotFound
	}
	return summary, nil
}

func (s *Store) FindByUUIDs(_ context.Context, uuids []string) ([]entities.EventSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entities.EventSummary, 0, len(uuids))
	for _, id := range uuids {
		if summary, ok := s.summaries[id]; ok {
			out = append(out, summary)
		}
	}
	return out, nil
}

func (s *Store) ListBatch(_ context.Context, startingUUID string, maxUpdateTime int64, limit int) ([]entities.EventSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listBatch(s.summaries, startingUUID, maxUpdateTime, limit)
}

func (s *Store) AddNote(_ context.Context, uuid string, note entities.EventNote, now int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary, ok := s.summaries[uuid]
	if !ok {
		return 0, domainerrors.ErrSummaryNotFound
	}
	summary.PrependNote(note, s.limits.MaxNotesBytes)
	summary.UpdateTime = now
	s.summaries[uuid] = summary
	s.signalLocked(uuid, now)
	return 1, nil
}

func (s *Store) UpdateDetails(_ context.Context, uuid string, details []entities.EventDetail, now int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary, ok := s.summaries[uuid]
	if !ok {
		return 0, domainerrors.ErrSummaryNotFound
	}
	merged := entities.MergeDetails(summary.Occurrence.Details, details)
	capped, _ := entities.CapDetails(merged, summary.Occurrence.Details, s.limits.MaxDetailsBytes, s.limits.ProtectedDetailPrefix)
	summary.Occurrence.Details = capped
	summary.UpdateTime = now
	s.summaries[uuid] = summary
	s.signalLocked(uuid, now)
	return 1, nil
}

func (s *Store) Reidentify(_ context.Context, elementType entities.ElementType, identifier, elementUUID, parentUUID string, now int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var affected int64
	for id, summary := range s.summaries {
		actor := summary.Occurrence.Actor
		if parentUUID == "" {
			if actor.ElementType != elementType || actor.ElementIdentifier != identifier || actor.ElementUUID != "" {
				continue
			}
			summary.Occurrence.Actor.ElementUUID = elementUUID
		} else {
			if actor.ElementSubType != elementType || actor.ElementSubIdentifier != identifier ||
				actor.ElementUUID != parentUUID || actor.ElementSubUUID != "" {
				continue
			}
			summary.Occurrence.Actor.ElementSubUUID = elementUUID
			summary.ClearFingerprintHash = fingerprint.ClearHash(summary.Occurrence)
		}
		summary.UpdateTime = now
		s.summaries[id] = summary
		s.signalLocked(id, now)
		affected++
	}
	return affected, nil
}

func (s *Store) Deidentify(_ context.Context, elementUUID string, now int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var affected int64
	for id, summary := range s.summaries {
		actor := summary.Occurrence.Actor
		switch elementUUID {
		case actor.ElementUUID:
			summary.Occurrence.Actor.ElementUUID = ""
		case actor.ElementSubUUID:
			summary.Occurrence.Actor.ElementSubUUID = ""
			summary.ClearFingerprintHash = fingerprint.ClearHash(summary.Occurrence)
		default:
			continue
		}
		summary.UpdateTime = now
		s.summaries[id] = summary
		s.signalLocked(id, now)
		affected++
	}
	return affected, nil
}

func (s *Store) Delete(_ context.Context, uuid string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary, ok := s.summaries[uuid]
	if !ok {
		return 0, nil
	}
	delete(s.byHash, string(summary.FingerprintHash))
	delete(s.summaries, uuid)
	s.signalLocked(uuid, summary.UpdateTime)
	return 1, nil
}

func (s *Store) NextIndexBatch(_ context.Context, limit int) ([]ports.IndexQueueEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.queue) {
		limit = len(s.queue)
	}
	return append([]ports.IndexQueueEntry(nil), s.queue[:limit]...), nil
}

func (s *Store) DeleteIndexEntries(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	drop := make(map[int64]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := s.queue[:0]
	for _, entry := range s.queue {
		if !drop[entry.ID] {
			kept = append(kept, entry)
		}
	}
	s.queue = kept
	return nil
}

// ArchiveStore is the in-memory append-only archive. Reads inject the
// archive-time marker detail.
type ArchiveStore struct {
	mu sync.RWMutex

	summaries    map[string]entities.EventSummary
	archiveTimes map[string]int64
	notesBudget  int

	queue       []ports.IndexQueueEntry
	nextQueueID int64
}

func NewArchiveStore(notesBudget int) *ArchiveStore {
	return &ArchiveStore{
		summaries:    make(map[string]entities.EventSummary),
		archiveTimes: make(map[string]int64),
		notesBudget:  notesBudget,
	}
}

func (a *ArchiveStore) put(summary entities.EventSummary, now int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.summaries[summary.UUID] = summary
	a.archiveTimes[summary.UUID] = now
	a.nextQueueID++
	a.queue = append(a.queue, ports.IndexQueueEntry{ID: a.nextQueueID, UUID: summary.UUID, UpdateTime: now})
}

func (a *ArchiveStore) withMarker(summary entities.EventSummary) entities.EventSummary {
	archivedAt := a.archiveTimes[summary.UUID]
	details := append([]entities.EventDetail(nil), summary.Occurrence.Details...)
	summary.Occurrence.Details = append(details, entities.EventDetail{
		Name:   entities.ArchiveTimeDetailName,
		Values: []string{strconv.FormatInt(archivedAt, 10)},
	})
	return summary
}

func (a *ArchiveStore) FindByUUID(_ context.Context, uuid string) (entities.EventSummary, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	summary, ok := a.summaries[uuid]
	if !ok {
		return entities.EventSummary{}, domainerrors.ErrSummaryNotFound
	}
	return a.withMarker(summary), nil
}

func (a *ArchiveStore) FindByUUIDs(_ context.Context, uuids []string) ([]entities.EventSummary, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]entities.EventSummary, 0, len(uuids))
	for _, id := range uuids {
		if summary, ok := a.summaries[id]; ok {
			out = append(out, a.withMarker(summary))
		}
	}
	return out, nil
}

func (a *ArchiveStore) ListBatch(_ context.Context, startingUUID string, maxUpdateTime int64, limit int) ([]entities.EventSummary, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out, err := listBatch(a.summaries, startingUUID, maxUpdateTime, limit)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i] = a.withMarker(out[i])
	}
	return out, nil
}

func (a *ArchiveStore) AddNote(_ context.Context, uuid string, note entities.EventNote, now int64) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	summary, ok := a.summaries[uuid]
	if !ok {
		return 0, domainerrors.ErrSummaryNotFound
	}
	summary.PrependNote(note, a.notesBudget)
	summary.UpdateTime = now
	a.summaries[uuid] = summary
	a.nextQueueID++
	a.queue = append(a.queue, ports.IndexQueueEntry{ID: a.nextQueueID, UUID: uuid, UpdateTime: now})
	return 1, nil
}

func (a *ArchiveStore) NextIndexBatch(_ context.Context, limit int) ([]ports.IndexQueueEntry, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if limit <= 0 || limit > len(a.queue) {
		limit = len(a.queue)
	}
	return append([]ports.IndexQueueEntry(nil), a.queue[:limit]...), nil
}

func (a *ArchiveStore) DeleteIndexEntries(_ context.Context, ids []int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	drop := make(map[int64]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := a.queue[:0]
	for _, entry := range a.queue {
		if !drop[entry.ID] {
			kept = append(kept, entry)
		}
	}
	a.queue = kept
	return nil
}

func listBatch(summaries map[string]entities.EventSummary, startingUUID string, maxUpdateTime int64, limit int) ([]entities.EventSummary, error) {
	ids := make([]string, 0, len(summaries))
	for id, summary := range summaries {
		if id <= startingUUID && startingUUID != "" {
			continue
		}
		if maxUpdateTime > 0 && summary.UpdateTime > maxUpdateTime {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]entities.EventSummary, 0, len(ids))
	for _, id := range ids {
		out = append(out, summaries[id])
	}
	return out, nil
}
