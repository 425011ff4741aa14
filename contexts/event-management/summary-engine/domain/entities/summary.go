package entities

import "encoding/json"

// EventNote is one user note attached to a summary. Notes are kept
// newest-first.
type EventNote struct {
	UUID        string `json:"uuid"`
	UserUUID    string `json:"user_uuid,omitempty"`
	UserName    string `json:"user_name,omitempty"`
	Message     string `json:"message"`
	CreatedTime int64  `json:"created_time"`
}

// AuditLogEntry records one significant status transition, newest-first.
type AuditLogEntry struct {
	Timestamp int64  `json:"timestamp"`
	NewStatus Status `json:"new_status"`
	UserUUID  string `json:"user_uuid,omitempty"`
	UserName  string `json:"user_name,omitempty"`
}

// EventSummary is the mutable de-duplicated aggregate for one problem.
// Occurrence holds the latest merged occurrence state; its detail and tag
// lists are cumulative.
type EventSummary struct {
	UUID                 string
	Status               Status
	Count                int
	FirstSeenTime        int64
	LastSeenTime         int64
	StatusChangeTime     int64
	UpdateTime           int64
	FingerprintHash      []byte
	ClearFingerprintHash []byte
	CurrentUserUUID      string
	CurrentUserName      string
	ClearedByEventUUID   string
	Occurrence           Occurrence
	Notes                []EventNote
	AuditLog             []AuditLogEntry
}

// auditedStatuses are the transitions significant enough to record.
var auditedStatuses = map[Status]bool{
	StatusNew:          true,
	StatusAcknowledged: true,
	StatusClosed:       true,
	StatusCleared:      true,
}

func StatusIsAudited(s Status) bool {
	return auditedStatuses[s]
}

// PrependAudit records entry as the newest audit log element.
func (s *EventSummary) PrependAudit(entry AuditLogEntry) {
	s.AuditLog = append([]AuditLogEntry{entry}, s.AuditLog...)
}

// PrependNote records note as the newest note, then drops whole oldest
// entries until the serialized list fits maxBytes. A maxBytes of zero or
// less disables the budget.
func (s *EventSummary) PrependNote(note EventNote, maxBytes int) {
	s.Notes = append([]EventNote{note}, s.Notes...)
	if maxBytes <= 0 {
		return
	}
	for len(s.Notes) > 1 {
		encoded, err := json.Marshal(s.Notes)
		if err != nil || len(encoded) <= maxBytes {
			return
		}
		s.Notes = s.Notes[:len(s.Notes)-1]
	}
}

// StatusUpdate describes one lifecycle transition request applied to a batch
// of summaries. AllowedFrom is the prior-status guard; rows in any other
// status are untouched.
type StatusUpdate struct {
	Target             Status
	AllowedFrom        []Status
	UserUUID           string
	UserName           string
	ClearedByEventUUID string
}

func AcknowledgeUpdate(userUUID, userName string) StatusUpdate {
	return StatusUpdate{
		Target:      StatusAcknowledged,
		AllowedFrom: []Status{StatusNew, StatusAcknowledged, StatusSuppressed},
		UserUUID:    userUUID,
		UserName:    TruncateUTF8(userName, MaxUserNameBytes),
	}
}

func CloseUpdate(userUUID, userName string) StatusUpdate {
	return StatusUpdate{
		Target:      StatusClosed,
		AllowedFrom: []Status{StatusNew, StatusAcknowledged, StatusSuppressed},
		UserUUID:    userUUID,
		UserName:    TruncateUTF8(userName, MaxUserNameBytes),
	}
}

func ReopenUpdate(userUUID, userName string) StatusUpdate {
	return StatusUpdate{
		Target:      StatusNew,
		AllowedFrom: []Status{StatusClosed, StatusCleared, StatusAged, StatusAcknowledged, StatusSuppressed},
		UserUUID:    userUUID,
		UserName:    TruncateUTF8(userName, MaxUserNameBytes),
	}
}

func SuppressUpdate() StatusUpdate {
	return StatusUpdate{
		Target:      StatusSuppressed,
		AllowedFrom: []Status{StatusNew},
	}
}

func ClearUpdate(clearedByEventUUID string) StatusUpdate {
	return StatusUpdate{
		Target:             StatusCleared,
		AllowedFrom:        OpenStatuses,
		ClearedByEventUUID: clearedByEventUUID,
	}
}

func AgeUpdate() StatusUpdate {
	return StatusUpdate{
		Target:      StatusAged,
		AllowedFrom: OpenStatuses,
	}
}

// Eligible reports whether a summary in status current may take this
// transition.
func (u StatusUpdate) Eligible(current Status) bool {
	for _, s := range u.AllowedFrom {
		if s == current {
			return true
		}
	}
	return false
}

// Apply executes the transition on s, except for re-deriving the fingerprint
// hash, which needs the hashing layer and is done by the caller. Audited
// targets get a prepended audit entry. Moving away from ACKNOWLEDGED drops
// the recorded user identity; the CLEARED target records the clearing event.
func (u StatusUpdate) Apply(s *EventSummary, now int64) {
	s.Status = u.Target
	s.StatusChangeTime = now
	s.UpdateTime = now
	if u.Target == StatusAcknowledged {
		s.CurrentUserUUID = u.UserUUID
		s.CurrentUserName = u.UserName
	} else {
		s.CurrentUserUUID = ""
		s.CurrentUserName = ""
	}
	if u.ClearedByEventUUID != "" {
		s.ClearedByEventUUID = u.ClearedByEventUUID
	}
	if StatusIsAudited(u.Target) {
		s.PrependAudit(AuditLogEntry{
			Timestamp: now,
			NewStatus: u.Target,
			UserUUID:  u.UserUUID,
			UserName:  u.UserName,
		})
	}
}

// RedundantAcknowledge reports a same-user re-acknowledge of an already
// acknowledged summary. Such rows are skipped entirely: no audit entry, no
// row touched.
func (u StatusUpdate) RedundantAcknowledge(s EventSummary) bool {
	return u.Target == StatusAcknowledged &&
		s.Status == StatusAcknowledged &&
		s.CurrentUserUUID == u.UserUUID &&
		s.CurrentUserName == u.UserName
}
