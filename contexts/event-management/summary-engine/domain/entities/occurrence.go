package entities

import "unicode/utf8"

type Severity int

// Severities ordered from least to most severe. Clear is the minimum and
// marks an occurrence that resolves open summaries instead of creating one.
const (
	SeverityClear Severity = iota
	SeverityDebug
	SeverityInfo
	SeverityWarning
	SeverityError
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityClear:
		return "clear"
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// SeveritiesBelow returns every severity strictly less severe than max, in
// ascending order. Used by aging to build the severity floor filter.
func SeveritiesBelow(max Severity) []Severity {
	var out []Severity
	for s := SeverityClear; s < max && s <= SeverityCritical; s++ {
		out = append(out, s)
	}
	return out
}

type Status string

const (
	StatusNew          Status = "new"
	StatusAcknowledged Status = "acknowledged"
	StatusSuppressed   Status = "suppressed"
	StatusClosed       Status = "closed"
	StatusCleared      Status = "cleared"
	StatusAged         Status = "aged"
)

// OpenStatuses are statuses participating in de-duplication: at most one row
// per fingerprint hash may hold one of these.
var OpenStatuses = []Status{StatusNew, StatusAcknowledged, StatusSuppressed}

var ClosedStatuses = []Status{StatusClosed, StatusCleared, StatusAged}

func (s Status) IsClosed() bool {
	return s == StatusClosed || s == StatusCleared || s == StatusAged
}

func (s Status) IsOpen() bool {
	switch s {
	case StatusNew, StatusAcknowledged, StatusSuppressed:
		return true
	}
	return false
}

type MergeBehavior string

const (
	MergeReplace MergeBehavior = "replace"
	MergeAppend  MergeBehavior = "append"
	MergeUnique  MergeBehavior = "unique"
)

type EventDetail struct {
	Name          string
	Values        []string
	MergeBehavior MergeBehavior
}

type EventTag struct {
	Type  string
	UUIDs []string
}

type ElementType string

const (
	ElementTypeDevice    ElementType = "device"
	ElementTypeComponent ElementType = "component"
	ElementTypeService   ElementType = "service"
	ElementTypeOrganizer ElementType = "organizer"
)

// EventActor identifies the element (and optional sub-element) an occurrence
// happened on. Identity fields feed the clear-correlation hash.
type EventActor struct {
	ElementType          ElementType
	ElementUUID          string
	ElementIdentifier    string
	ElementTitle         string
	ElementSubType       ElementType
	ElementSubUUID       string
	ElementSubIdentifier string
	ElementSubTitle      string
}

// Byte budgets for persisted string fields. Truncation happens before
// fingerprint hashing so stored hashes stay stable.
const (
	MaxFingerprintBytes          = 255
	MaxEventClassBytes           = 128
	MaxEventClassKeyBytes        = 128
	MaxEventKeyBytes             = 128
	MaxEventGroupBytes           = 64
	MaxMonitorBytes              = 128
	MaxAgentBytes                = 64
	MaxSummaryBytes              = 255
	MaxMessageBytes              = 4096
	MaxElementIdentifierBytes    = 255
	MaxElementTitleBytes         = 255
	MaxElementSubIdentifierBytes = 255
	MaxElementSubTitleBytes      = 255
	MaxUserNameBytes             = 32
)

// ArchiveTimeDetailName is the detail injected on rows read back from the
// archive store. Its value is the epoch-millisecond archive time.
const ArchiveTimeDetailName = "zenoss.event.migrate_update_time"

// Occurrence is one immutable observation of an event as delivered by the
// ingestion pipeline. CreatedTime is epoch milliseconds and is required;
// validation of required fields happens upstream.
type Occurrence struct {
	UUID           string
	CreatedTime    int64
	FirstSeenTime  int64
	Fingerprint    string
	Severity       Severity
	Status         Status
	EventClass     string
	EventClassKey  string
	EventKey       string
	EventGroup     string
	Actor          EventActor
	Monitor        string
	Agent          string
	SyslogFacility int
	SyslogPriority int
	NTEventCode    int
	Summary        string
	Message        string
	Details        []EventDetail
	Tags           []EventTag
	Count          int
}

// OccurrenceCount is the number of occurrences this input represents.
// Pre-aggregated inputs carry an explicit count; everything else is one.
func (o Occurrence) OccurrenceCount() int {
	if o.Count <= 0 {
		return 1
	}
	return o.Count
}

// Normalize truncates string fields to their byte budgets, collapses
// duplicate detail names, and de-duplicates tags. It is applied once per
// inbound occurrence, before any hashing.
func (o Occurrence) Normalize() Occurrence {
	o.Fingerprint = TruncateUTF8(o.Fingerprint, MaxFingerprintBytes)
	o.EventClass = TruncateUTF8(o.EventClass, MaxEventClassBytes)
	o.EventClassKey = TruncateUTF8(o.EventClassKey, MaxEventClassKeyBytes)
	o.EventKey = TruncateUTF8(o.EventKey, MaxEventKeyBytes)
	o.EventGroup = TruncateUTF8(o.EventGroup, MaxEventGroupBytes)
	o.Monitor = TruncateUTF8(o.Monitor, MaxMonitorBytes)
	o.Agent = TruncateUTF8(o.Agent, MaxAgentBytes)
	o.Summary = TruncateUTF8(o.Summary, MaxSummaryBytes)
	o.Message = TruncateUTF8(o.Message, MaxMessageBytes)
	o.Actor.ElementIdentifier = TruncateUTF8(o.Actor.ElementIdentifier, MaxElementIdentifierBytes)
	o.Actor.ElementTitle = TruncateUTF8(o.Actor.ElementTitle, MaxElementTitleBytes)
	o.Actor.ElementSubIdentifier = TruncateUTF8(o.Actor.ElementSubIdentifier, MaxElementSubIdentifierBytes)
	o.Actor.ElementSubTitle = TruncateUTF8(o.Actor.ElementSubTitle, MaxElementSubTitleBytes)
	o.Details = MergeDuplicateDetails(o.Details)
	o.Tags = BuildTags(o.Tags)
	if o.Status == "" {
		o.Status = StatusNew
	}
	return o
}

// TruncateUTF8 shortens s to at most maxBytes bytes without splitting a
// multi-byte rune.
func TruncateUTF8(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	total := 0
	for i, r := range s {
		total += utf8.RuneLen(r)
		if total > maxBytes {
			return s[:i]
		}
	}
	return s
}
