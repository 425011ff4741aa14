package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/domain/entities"
	domainerrors "github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/domain/errors"
	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/domain/fingerprint"
	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const mergeRetryAttempts = 3

// Repository is the live event_summary store. Every mutating method appends
// the matching index-queue signal inside the same transaction.
type Repository struct {
	db     *gorm.DB
	limits ports.StorageLimits
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, limits ports.StorageLimits, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		limits: limits,
		logger: logger,
	}
}

// errMergeRace aborts a merge transaction after an insert lost the
// fingerprint-hash race; the caller retries against the winner's row.
var errMergeRace = errors.New("merge lost insert race")

func (r *Repository) MergeOccurrences(ctx context.Context, fingerprintHash []byte, items []ports.MergeItem, now int64) (string, error) {
	if len(items) == 0 {
		return "", nil
	}

	var summaryUUID string
	var err error
	for attempt := 0; attempt < mergeRetryAttempts; attempt++ {
		summaryUUID, err = r.mergeOnce(ctx, fingerprintHash, items, now)
		if !errors.Is(err, errMergeRace) {
			break
		}
	}
	if err != nil {
		return "", err
	}
	return summaryUUID, nil
}

func (r *Repository) mergeOnce(ctx context.Context, fingerprintHash []byte, items []ports.MergeItem, now int64) (string, error) {
	var summaryUUID string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row summaryModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("fingerprint_hash = ?", fingerprintHash).
			First(&row).
			Error

		var summary entities.EventSummary
		exists := err == nil
		switch {
		case exists:
			summary, err = row.toEntity()
			if err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			first := items[0]
			summary = entities.NewSummary(uuid.NewString(), first.Occurrence, first.Status, now)
			summary.FingerprintHash = append([]byte(nil), fingerprintHash...)
			summary.ClearFingerprintHash = first.ClearHash
			if entities.StatusIsAudited(first.Status) {
				summary.PrependAudit(entities.AuditLogEntry{Timestamp: now, NewStatus: first.Status})
			}
		default:
			return err
		}

		rest := items
		if !exists {
			rest = items[1:]
		}
		for _, item := range rest {
			occ := item.Occurrence
			occ.Status = item.Status
			entities.MergeOccurrence(&summary, occ, item.ClearHash, now)
		}
		fallback := summary.Occurrence.Details
		if len(rest) > 0 {
			fallback = rest[len(rest)-1].Occurrence.Details
		}
		summary.Occurrence.Details, _ = entities.CapDetails(
			summary.Occurrence.Details, fallback, r.limits.MaxDetailsBytes, r.limits.ProtectedDetailPrefix)

		if exists {
			updates, err := summaryUpdatesFromEntity(summary)
			if err != nil {
				return err
			}
			if err := tx.Model(&summaryModel{}).
				Where("uuid = ?", summary.UUID).
				Updates(updates).
				Error; err != nil {
				return err
			}
		} else {
			model, err := summaryModelFromEntity(summary)
			if err != nil {
				return err
			}
			if err := tx.Create(&model).Error; err != nil {
				if isUniqueViolation(err) {
					return errMergeRace
				}
				return err
			}
		}

		summaryUUID = summary.UUID
		return signalSummaryTx(tx, summary.UUID, now)
	})
	if err != nil {
		return "", err
	}
	return summaryUUID, nil
}

func (r *Repository) FindOpenByClearHashes(ctx context.Context, hashes [][]byte, maxLastSeen int64) ([]string, error) {
	if len(hashes) == 0 {
		return nil, nil
	}
	var uuids []string
	err := r.db.WithContext(ctx).
		Model(&summaryModel{}).
		Where("status IN ?", statusStrings(entities.OpenStatuses)).
		Where("clear_fingerprint_hash IN ?", hashes).
		Where("last_seen <= ?", maxLastSeen).
		Order("uuid ASC").
		Pluck("uuid", &uuids).
		Error
	if err != nil {
		return nil, err
	}
	return uuids, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, uuids []string, update entities.StatusUpdate, now int64) (int64, error) {
	if len(uuids) == 0 {
		return 0, nil
	}
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []summaryModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("uuid IN ?", uuids).
			Where("status IN ?", statusStrings(update.AllowedFrom)).
			Order("uuid ASC").
			Find(&rows).
			Error; err != nil {
			return err
		}

		for _, row := range rows {
			summary, err := row.toEntity()
			if err != nil {
				return err
			}
			if update.RedundantAcknowledge(summary) {
				continue
			}
			applied, err := applyStatusTx(tx, summary, update, now)
			if err != nil {
				return err
			}
			if applied {
				affected++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

// applyStatusTx transitions one locked row, re-keying its fingerprint hash
// when the transition crosses the open/closed boundary. The per-row work runs
// in a savepoint so a hash collision skips the row without poisoning the
// enclosing transaction.
func applyStatusTx(tx *gorm.DB, summary entities.EventSummary, update entities.StatusUpdate, now int64) (bool, error) {
	switch {
	case update.Target.IsClosed() && !summary.Status.IsClosed():
		summary.FingerprintHash = fingerprint.ClosedHash(summary.Occurrence.Fingerprint, now)
	case update.Target == entities.StatusNew && summary.Status.IsClosed():
		summary.FingerprintHash = fingerprint.DedupHash(summary.Occurrence.Fingerprint)
	}
	update.Apply(&summary, now)

	updates, err := summaryUpdatesFromEntity(summary)
	if err != nil {
		return false, err
	}
	err = tx.Transaction(func(inner *gorm.DB) error {
		if err := inner.Model(&summaryModel{}).
			Where("uuid = ?", summary.UUID).
			Updates(updates).
			Error; err != nil {
			return err
		}
		return signalSummaryTx(inner, summary.UUID, now)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *Repository) Age(ctx context.Context, maxLastSeen int64, severities []entities.Severity, limit int, now int64) (int64, error) {
	if limit <= 0 {
		return 0, domainerrors.ErrInvalidAgingLimit
	}
	if len(severities) == 0 {
		return 0, nil
	}
	severityInts := make([]int, 0, len(severities))
	for _, s := range severities {
		severityInts = append(severityInts, int(s))
	}

	var uuids []string
	err := r.db.WithContext(ctx).
		Model(&summaryModel{}).
		Where("status IN ?", statusStrings(entities.OpenStatuses)).
		Where("severity IN ?", severityInts).
		Where("last_seen < ?", maxLastSeen).
		Order("last_seen ASC").
		Limit(limit).
		Pluck("uuid", &uuids).
		Error
	if err != nil {
		return 0, err
	}
	return r.UpdateStatus(ctx, uuids, entities.AgeUpdate(), now)
}

func (r *Repository) Archive(ctx context.Context, maxLastSeen int64, limit int, now int64) (int64, error) {
	if limit <= 0 {
		limit = 100
	}
	var archived int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []summaryModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("status IN ?", statusStrings(entities.ClosedStatuses)).
			Where("last_seen < ?", maxLastSeen).
			Order("last_seen ASC").
			Limit(limit).
			Find(&rows).
			Error; err != nil {
			return err
		}

		for _, row := range rows {
			summary, err := row.toEntity()
			if err != nil {
				return err
			}
			summary.UpdateTime = now
			archiveRow, err := archiveModelFromEntity(summary, now)
			if err != nil {
				return err
			}
			// Re-archiving a uuid that raced back into the live table keeps
			// the newest copy.
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "uuid"}},
				UpdateAll: true,
			}).Create(&archiveRow).Error; err != nil {
				return err
			}
			if err := tx.Create(&archiveIndexQueueModel{UUID: summary.UUID, UpdateTime: now}).Error; err != nil {
				return err
			}
			if err := tx.Where("uuid = ?", summary.UUID).Delete(&summaryModel{}).Error; err != nil {
				return err
			}
			if err := signalSummaryTx(tx, summary.UUID, now); err != nil {
				return err
			}
			archived++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return archived, nil
}

func (r *Repository) FindByUUID(ctx context.Context, summaryUUID string) (entities.EventSummary, error) {
	var row summaryModel
	err := r.db.WithContext(ctx).
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

func (r *Repository) FindByUUIDs(ctx context.Context, uuids []string) ([]entities.EventSummary, error) {
	if len(uuids) == 0 {
		return nil, nil
	}
	var rows []summaryModel
	if err := r.db.WithContext(ctx).
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

func (r *Repository) ListBatch(ctx context.Context, startingUUID string, maxUpdateTime int64, limit int) ([]entities.EventSummary, error) {
	tx := r.db.WithContext(ctx).Model(&summaryModel{})
	if startingUUID != "" {
		tx = tx.Where("uuid > ?", startingUUID)
	}
	if maxUpdateTime > 0 {
		tx = tx.Where("update_time <= ?", maxUpdateTime)
	}
	if limit > 0 {
		tx = tx.Limit(limit)
	}

	var rows []summaryModel
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

func (r *Repository) AddNote(ctx context.Context, summaryUUID string, note entities.EventNote, now int64) (int64, error) {
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row summaryModel
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
		summary.PrependNote(note, r.limits.MaxNotesBytes)
		summary.UpdateTime = now

		updates, err := summaryUpdatesFromEntity(summary)
		if err != nil {
			return err
		}
		if err := tx.Model(&summaryModel{}).
			Where("uuid = ?", summaryUUID).
			Updates(updates).
			Error; err != nil {
			return err
		}
		affected = 1
		return signalSummaryTx(tx, summaryUUID, now)
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

func (r *Repository) UpdateDetails(ctx context.Context, summaryUUID string, details []entities.EventDetail, now int64) (int64, error) {
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row summaryModel
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
		merged := entities.MergeDetails(summary.Occurrence.Details, details)
		summary.Occurrence.Details, _ = entities.CapDetails(
			merged, summary.Occurrence.Details, r.limits.MaxDetailsBytes, r.limits.ProtectedDetailPrefix)
		summary.UpdateTime = now

		updates, err := summaryUpdatesFromEntity(summary)
		if err != nil {
			return err
		}
		if err := tx.Model(&summaryModel{}).
			Where("uuid = ?", summaryUUID).
			Updates(updates).
			Error; err != nil {
			return err
		}
		affected = 1
		return signalSummaryTx(tx, summaryUUID, now)
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

func (r *Repository) Reidentify(ctx context.Context, elementType entities.ElementType, identifier, elementUUID, parentUUID string, now int64) (int64, error) {
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Clauses(clause.Locking{Strength: "UPDATE"})
		if parentUUID == "" {
			query = query.
				Where("element_type = ?", string(elementType)).
				Where("element_identifier = ?", identifier).
				Where("element_uuid = ''")
		} else {
			query = query.
				Where("element_sub_type = ?", string(elementType)).
				Where("element_sub_identifier = ?", identifier).
				Where("element_uuid = ?", parentUUID).
				Where("element_sub_uuid = ''")
		}

		var rows []summaryModel
		if err := query.Order("uuid ASC").Find(&rows).Error; err != nil {
			return err
		}
		for _, row := range rows {
			summary, err := row.toEntity()
			if err != nil {
				return err
			}
			if parentUUID == "" {
				summary.Occurrence.Actor.ElementUUID = elementUUID
			} else {
				summary.Occurrence.Actor.ElementSubUUID = elementUUID
				summary.ClearFingerprintHash = fingerprint.ClearHash(summary.Occurrence)
			}
			summary.UpdateTime = now

			updates, err := summaryUpdatesFromEntity(summary)
			if err != nil {
				return err
			}
			if err := tx.Model(&summaryModel{}).
				Where("uuid = ?", summary.UUID).
				Updates(updates).
				Error; err != nil {
				return err
			}
			if err := signalSummaryTx(tx, summary.UUID, now); err != nil {
				return err
			}
			affected++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

func (r *Repository) Deidentify(ctx context.Context, elementUUID string, now int64) (int64, error) {
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []summaryModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("element_uuid = ? OR element_sub_uuid = ?", elementUUID, elementUUID).
			Order("uuid ASC").
			Find(&rows).
			Error; err != nil {
			return err
		}
		for _, row := range rows {
			summary, err := row.toEntity()
			if err != nil {
				return err
			}
			actor := &summary.Occurrence.Actor
			switch elementUUID {
			case actor.ElementUUID:
				actor.ElementUUID = ""
			case actor.ElementSubUUID:
				actor.ElementSubUUID = ""
				summary.ClearFingerprintHash = fingerprint.ClearHash(summary.Occurrence)
			default:
				continue
			}
			summary.UpdateTime = now

			updates, err := summaryUpdatesFromEntity(summary)
			if err != nil {
				return err
			}
			if err := tx.Model(&summaryModel{}).
				Where("uuid = ?", summary.UUID).
				Updates(updates).
				Error; err != nil {
				return err
			}
			if err := signalSummaryTx(tx, summary.UUID, now); err != nil {
				return err
			}
			affected++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

func (r *Repository) Delete(ctx context.Context, summaryUUID string) (int64, error) {
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("uuid = ?", summaryUUID).Delete(&summaryModel{})
		if result.Error != nil {
			return result.Error
		}
		affected = result.RowsAffected
		if affected == 0 {
			return nil
		}
		return signalSummaryTx(tx, summaryUUID, time.Now().UTC().UnixMilli())
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

func signalSummaryTx(tx *gorm.DB, summaryUUID string, now int64) error {
	return tx.Create(&indexQueueModel{UUID: summaryUUID, UpdateTime: now}).Error
}

func statusStrings(statuses []entities.Status) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
