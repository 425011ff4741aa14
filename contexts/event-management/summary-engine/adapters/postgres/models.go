package postgresadapter

import (
	"encoding/json"
	"strconv"

	"gorm.io/gorm"

	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/domain/entities"
)

// Migrate creates the summary, archive, and index-queue tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&summaryModel{},
		&archiveModel{},
		&indexQueueModel{},
		&archiveIndexQueueModel{},
	)
}

// summaryModel is the live event_summary row. The full occurrence state is
// kept as JSON; fields the engine filters or joins on are promoted to
// columns. fingerprint_hash carries the open-row uniqueness constraint.
type summaryModel struct {
	UUID                 string `gorm:"column:uuid;primaryKey"`
	FingerprintHash      []byte `gorm:"column:fingerprint_hash;uniqueIndex"`
	ClearFingerprintHash []byte `gorm:"column:clear_fingerprint_hash;index"`
	Status               string `gorm:"column:status;index"`
	Severity             int    `gorm:"column:severity"`
	Count                int    `gorm:"column:event_count"`
	FirstSeen            int64  `gorm:"column:first_seen"`
	LastSeen             int64  `gorm:"column:last_seen;index"`
	StatusChange         int64  `gorm:"column:status_change"`
	UpdateTime           int64  `gorm:"column:update_time;index"`
	Fingerprint          string `gorm:"column:fingerprint"`
	ElementType          string `gorm:"column:element_type"`
	ElementIdentifier    string `gorm:"column:element_identifier;index"`
	ElementUUID          string `gorm:"column:element_uuid;index"`
	ElementSubType       string `gorm:"column:element_sub_type"`
	ElementSubIdentifier string `gorm:"column:element_sub_identifier"`
	ElementSubUUID       string `gorm:"column:element_sub_uuid;index"`
	CurrentUserUUID      string `gorm:"column:current_user_uuid"`
	CurrentUserName      string `gorm:"column:current_user_name"`
	ClearedByEventUUID   string `gorm:"column:cleared_by_event_uuid"`
	Occurrence           []byte `gorm:"column:occurrence;type:jsonb"`
	Notes                []byte `gorm:"column:notes;type:jsonb"`
	AuditLog             []byte `gorm:"column:audit_log;type:jsonb"`
}

func (summaryModel) TableName() string {
	return "event_summary"
}

// archiveModel is the append-only event_archive row. Same shape as the live
// row plus the archive timestamp; the fingerprint hash loses uniqueness.
type archiveModel struct {
	UUID                 string `gorm:"column:uuid;primaryKey"`
	FingerprintHash      []byte `gorm:"column:fingerprint_hash"`
	ClearFingerprintHash []byte `gorm:"column:clear_fingerprint_hash"`
	Status               string `gorm:"column:status"`
	Severity             int    `gorm:"column:severity"`
	Count                int    `gorm:"column:event_count"`
	FirstSeen            int64  `gorm:"column:first_seen"`
	LastSeen             int64  `gorm:"column:last_seen;index"`
	StatusChange         int64  `gorm:"column:status_change"`
	UpdateTime           int64  `gorm:"column:update_time;index"`
	Fingerprint          string `gorm:"column:fingerprint"`
	ElementType          string `gorm:"column:element_type"`
	ElementIdentifier    string `gorm:"column:element_identifier"`
	ElementUUID          string `gorm:"column:element_uuid"`
	ElementSubType       string `gorm:"column:element_sub_type"`
	ElementSubIdentifier string `gorm:"column:element_sub_identifier"`
	ElementSubUUID       string `gorm:"column:element_sub_uuid"`
	CurrentUserUUID      string `gorm:"column:current_user_uuid"`
	CurrentUserName      string `gorm:"column:current_user_name"`
	ClearedByEventUUID   string `gorm:"column:cleared_by_event_uuid"`
	Occurrence           []byte `gorm:"column:occurrence;type:jsonb"`
	Notes                []byte `gorm:"column:notes;type:jsonb"`
	AuditLog             []byte `gorm:"column:audit_log;type:jsonb"`
	ArchiveTime          int64  `gorm:"column:archive_time"`
}

func (archiveModel) TableName() string {
	return "event_archive"
}

type indexQueueModel struct {
	ID         int64  `gorm:"column:id;primaryKey;autoIncrement"`
	UUID       string `gorm:"column:uuid"`
	UpdateTime int64  `gorm:"column:update_time"`
}

func (indexQueueModel) TableName() string {
	return "event_summary_index_queue"
}

type archiveIndexQueueModel struct {
	ID         int64  `gorm:"column:id;primaryKey;autoIncrement"`
	UUID       string `gorm:"column:uuid"`
	UpdateTime int64  `gorm:"column:update_time"`
}

func (archiveIndexQueueModel) TableName() string {
	return "event_archive_index_queue"
}

func summaryModelFromEntity(item entities.EventSummary) (summaryModel, error) {
	occurrence, err := json.Marshal(item.Occurrence)
	if err != nil {
		return summaryModel{}, err
	}
	notes, err := json.Marshal(item.Notes)
	if err != nil {
		return summaryModel{}, err
	}
	auditLog, err := json.Marshal(item.AuditLog)
	if err != nil {
		return summaryModel{}, err
	}
	actor := item.Occurrence.Actor
	return summaryModel{
		UUID:                 item.UUID,
		FingerprintHash:      item.FingerprintHash,
		ClearFingerprintHash: item.ClearFingerprintHash,
		Status:               string(item.Status),
		Severity:             int(item.Occurrence.Severity),
		Count:                item.Count,
		FirstSeen:            item.FirstSeenTime,
		LastSeen:             item.LastSeenTime,
		StatusChange:         item.StatusChangeTime,
		UpdateTime:           item.UpdateTime,
		Fingerprint:          item.Occurrence.Fingerprint,
		ElementType:          string(actor.ElementType),
		ElementIdentifier:    actor.ElementIdentifier,
		ElementUUID:          actor.ElementUUID,
		ElementSubType:       string(actor.ElementSubType),
		ElementSubIdentifier: actor.ElementSubIdentifier,
		ElementSubUUID:       actor.ElementSubUUID,
		CurrentUserUUID:      item.CurrentUserUUID,
		CurrentUserName:      item.CurrentUserName,
		ClearedByEventUUID:   item.ClearedByEventUUID,
		Occurrence:           occurrence,
		Notes:                notes,
		AuditLog:             auditLog,
	}, nil
}

func summaryUpdatesFromEntity(item entities.EventSummary) (map[string]any, error) {
	row, err := summaryModelFromEntity(item)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"fingerprint_hash":       row.FingerprintHash,
		"clear_fingerprint_hash": row.ClearFingerprintHash,
		"status":                 row.Status,
		"severity":               row.Severity,
		"event_count":            row.Count,
		"first_seen":             row.FirstSeen,
		"last_seen":              row.LastSeen,
		"status_change":          row.StatusChange,
		"update_time":            row.UpdateTime,
		"fingerprint":            row.Fingerprint,
		"element_type":           row.ElementType,
		"element_identifier":     row.ElementIdentifier,
		"element_uuid":           row.ElementUUID,
		"element_sub_type":       row.ElementSubType,
		"element_sub_identifier": row.ElementSubIdentifier,
		"element_sub_uuid":       row.ElementSubUUID,
		"current_user_uuid":      row.CurrentUserUUID,
		"current_user_name":      row.CurrentUserName,
		"cleared_by_event_uuid":  row.ClearedByEventUUID,
		"occurrence":             row.Occurrence,
		"notes":                  row.Notes,
		"audit_log":              row.AuditLog,
	}, nil
}

func (m summaryModel) toEntity() (entities.EventSummary, error) {
	return summaryFromColumns(m.UUID, m.Status, m.Count, m.FirstSeen, m.LastSeen,
		m.StatusChange, m.UpdateTime, m.FingerprintHash, m.ClearFingerprintHash,
		m.CurrentUserUUID, m.CurrentUserName, m.ClearedByEventUUID,
		m.Occurrence, m.Notes, m.AuditLog, false, 0)
}

func (m archiveModel) toEntity() (entities.EventSummary, error) {
	return summaryFromColumns(m.UUID, m.Status, m.Count, m.FirstSeen, m.LastSeen,
		m.StatusChange, m.UpdateTime, m.FingerprintHash, m.ClearFingerprintHash,
		m.CurrentUserUUID, m.CurrentUserName, m.ClearedByEventUUID,
		m.Occurrence, m.Notes, m.AuditLog, true, m.ArchiveTime)
}

func archiveModelFromEntity(item entities.EventSummary, archiveTime int64) (archiveModel, error) {
	row, err := summaryModelFromEntity(item)
	if err != nil {
		return archiveModel{}, err
	}
	return archiveModel{
		UUID:                 row.UUID,
		FingerprintHash:      row.FingerprintHash,
		ClearFingerprintHash: row.ClearFingerprintHash,
		Status:               row.Status,
		Severity:             row.Severity,
		Count:                row.Count,
		FirstSeen:            row.FirstSeen,
		LastSeen:             row.LastSeen,
		StatusChange:         row.StatusChange,
		UpdateTime:           row.UpdateTime,
		Fingerprint:          row.Fingerprint,
		ElementType:          row.ElementType,
		ElementIdentifier:    row.ElementIdentifier,
		ElementUUID:          row.ElementUUID,
		ElementSubType:       row.ElementSubType,
		ElementSubIdentifier: row.ElementSubIdentifier,
		ElementSubUUID:       row.ElementSubUUID,
		CurrentUserUUID:      row.CurrentUserUUID,
		CurrentUserName:      row.CurrentUserName,
		ClearedByEventUUID:   row.ClearedByEventUUID,
		Occurrence:           row.Occurrence,
		Notes:                row.Notes,
		AuditLog:             row.AuditLog,
		ArchiveTime:          archiveTime,
	}, nil
}

func notesJSON(item entities.EventSummary) ([]byte, error) {
	return json.Marshal(item.Notes)
}

// summaryFromColumns is the single row-to-entity mapping for live and
// archive reads. Archive reads inject the archive-time marker detail.
func summaryFromColumns(
	uuid, status string,
	count int,
	firstSeen, lastSeen, statusChange, updateTime int64,
	fingerprintHash, clearHash []byte,
	userUUID, userName, clearedBy string,
	occurrence, notes, auditLog []byte,
	isArchive bool,
	archiveTime int64,
) (entities.EventSummary, error) {
	item := entities.EventSummary{
		UUID:                 uuid,
		Status:               entities.Status(status),
		Count:                count,
		FirstSeenTime:        firstSeen,
		LastSeenTime:         lastSeen,
		StatusChangeTime:     statusChange,
		UpdateTime:           updateTime,
		FingerprintHash:      append([]byte(nil), fingerprintHash...),
		ClearFingerprintHash: append([]byte(nil), clearHash...),
		CurrentUserUUID:      userUUID,
		CurrentUserName:      userName,
		ClearedByEventUUID:   clearedBy,
	}
	if len(occurrence) > 0 {
		if err := json.Unmarshal(occurrence, &item.Occurrence); err != nil {
			return entities.EventSummary{}, err
		}
	}
	if len(notes) > 0 {
		if err := json.Unmarshal(notes, &item.Notes); err != nil {
			return entities.EventSummary{}, err
		}
	}
	if len(auditLog) > 0 {
		if err := json.Unmarshal(auditLog, &item.AuditLog); err != nil {
			return entities.EventSummary{}, err
		}
	}
	if isArchive {
		item.Occurrence.Details = append(item.Occurrence.Details, entities.EventDetail{
			Name:   entities.ArchiveTimeDetailName,
			Values: []string{strconv.FormatInt(archiveTime, 10)},
		})
	}
	return item, nil
}
