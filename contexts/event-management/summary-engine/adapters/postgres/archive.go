package postgresadapter

import (
	"context"
	"errors"
	"log/slog"

	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/domain/entities"
	domainerrors "github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/domain/errors"
	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/ports"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ArchiveStore reads the event_archive table. Notes are the only mutation
// allowed on archived rows.
type ArchiveStore struct {
	db     *gorm.DB
	limits ports.StorageLimits
	logger *slog.Logger
}

func NewArchiveStore(db *gorm.DB, limits ports.StorageLimits, logger *slog.Logger) *ArchiveStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArchiveStore{
		db:     db,
		limits: limits,
		logger: logger,
	}
}

func (a *ArchiveStore) FindByUUID(ctx context.Context, summaryUUID string) (entities.EventSummary, error) {
	var row archiveModel
	err := a.db.WithContext(ctx).
		Where("uuid = ?", summaryUUID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.EventSummary{}, domainerrors.ErrSummaryNotFound
		}
		return entities.EventSummary{}, err
	}
	return row.toEntity()
}

func (a *ArchiveStore) FindByUUIDs(ctx context.Context, uuids []string) ([]entities.EventSummary, error) {
	if len(uuids) == 0 {
		return nil, nil
	}
	var rows []archiveModel
	if err := a.db.WithContext(ctx).
		Where("uuid IN ?", uuids).
		Order("uuid ASC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	items := make([]entities.EventSummary, 0, len(rows))
	for _, row := range rows {
		item, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (a *ArchiveStore) ListBatch(ctx context.Context, startingUUID string, maxUpdateTime int64, limit int) ([]entities.EventSummary, error) {
	tx := a.db.WithContext(ctx).Model(&archiveModel{})
	if startingUUID != "" {
		tx = tx.Where("uuid > ?", startingUUID)
	}
	if maxUpdateTime > 0 {
		tx = tx.Where("update_time <= ?", maxUpdateTime)
	}
	if limit > 0 {
		tx = tx.Limit(limit)
	}

	var rows []archiveModel
	if err := tx.Order("uuid ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]entities.EventSummary, 0, len(rows))
	for _, row := range rows {
		item, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (a *ArchiveStore) AddNote(ctx context.Context, summaryUUID string, note entities.EventNote, now int64) (int64, error) {
	var affected int64
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row archiveModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("uuid = ?", summaryUUID).
			First(&row).
			Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrSummaryNotFound
			}
			return err
		}
		summary, err := row.toEntity()
		if err != nil {
			return err
		}
		summary.PrependNote(note, a.limits.MaxNotesBytes)

		notes, err := notesJSON(summary)
		if err != nil {
			return err
		}
		if err := tx.Model(&archiveModel{}).
			Where("uuid = ?", summaryUUID).
			Updates(map[string]any{
				"notes":       notes,
				"update_time": now,
			}).
			Error; err != nil {
			return err
		}
		affected = 1
		return tx.Create(&archiveIndexQueueModel{UUID: summaryUUID, UpdateTime: now}).Error
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

// IndexQueue drains one of the two index-queue tables in insertion order.
type IndexQueue struct {
	db      *gorm.DB
	archive bool
}

func NewSummaryIndexQueue(db *gorm.DB) *IndexQueue {
	return &IndexQueue{db: db}
}

func NewArchiveIndexQueue(db *gorm.DB) *IndexQueue {
	return &IndexQueue{db: db, archive: true}
}

func (q *IndexQueue) NextIndexBatch(ctx context.Context, limit int) ([]ports.IndexQueueEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	tx := q.db.WithContext(ctx)
	entries := make([]ports.IndexQueueEntry, 0, limit)
	if q.archive {
		var rows []archiveIndexQueueModel
		if err := tx.Order("id ASC").Limit(limit).Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, row := range rows {
			entries = append(entries, ports.IndexQueueEntry{ID: row.ID, UUID: row.UUID, UpdateTime: row.UpdateTime})
		}
		return entries, nil
	}
	var rows []indexQueueModel
	if err := tx.Order("id ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		entries = append(entries, ports.IndexQueueEntry{ID: row.ID, UUID: row.UUID, UpdateTime: row.UpdateTime})
	}
	return entries, nil
}

func (q *IndexQueue) DeleteIndexEntries(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if q.archive {
		return q.db.WithContext(ctx).Where("id IN ?", ids).Delete(&archiveIndexQueueModel{}).Error
	}
	return q.db.WithContext(ctx).Where("id IN ?", ids).Delete(&indexQueueModel{}).Error
}
