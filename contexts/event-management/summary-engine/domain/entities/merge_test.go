package entities

import (
	"encoding/json"
	"testing"
)

func detailValues(details []EventDetail, name string) []string {
	for _, d := range details {
		if d.Name == name {
			return d.Values
		}
	}
	return nil
}

func TestMergeDetailsReplaceOverwritesAndDeletes(t *testing.T) {
	oldDetails := []EventDetail{
		{Name: "ip", Values: []string{"10.0.0.1"}},
		{Name: "state", Values: []string{"down"}},
	}
	newDetails := []EventDetail{
		{Name: "state", Values: []string{"up"}, MergeBehavior: MergeReplace},
		{Name: "ip", MergeBehavior: MergeReplace},
	}

	merged := MergeDetails(oldDetails, newDetails)
	if got := detailValues(merged, "state"); len(got) != 1 || got[0] != "up" {
		t.Fatalf("expected state replaced with [up], got %v", got)
	}
	if got := detailValues(merged, "ip"); got != nil {
		t.Fatalf("expected empty replace to delete ip, got %v", got)
	}
}

func TestMergeDetailsEmptyBehaviorDefaultsToReplace(t *testing.T) {
	oldDetails := []EventDetail{{Name: "state", Values: []string{"down"}}}
	merged := MergeDetails(oldDetails, []EventDetail{{Name: "state", Values: []string{"up"}}})
	if got := detailValues(merged, "state"); len(got) != 1 || got[0] != "up" {
		t.Fatalf("expected default replace, got %v", got)
	}
}

func TestMergeDetailsAppendAndUnique(t *testing.T) {
	oldDetails := []EventDetail{
		{Name: "log", Values: []string{"a"}},
		{Name: "seen", Values: []string{"a", "b"}},
	}
	newDetails := []EventDetail{
		{Name: "log", Values: []string{"a", "b"}, MergeBehavior: MergeAppend},
		{Name: "seen", Values: []string{"b", "c"}, MergeBehavior: MergeUnique},
	}

	merged := MergeDetails(oldDetails, newDetails)
	if got := detailValues(merged, "log"); len(got) != 3 {
		t.Fatalf("expected append to keep duplicates, got %v", got)
	}
	if got := detailValues(merged, "seen"); len(got) != 3 || got[2] != "c" {
		t.Fatalf("expected unique to add only c, got %v", got)
	}
}

func TestMergeDetailsUnknownBehaviorIsNoOp(t *testing.T) {
	oldDetails := []EventDetail{{Name: "state", Values: []string{"down"}}}
	merged := MergeDetails(oldDetails, []EventDetail{
		{Name: "state", Values: []string{"up"}, MergeBehavior: "bogus"},
	})
	if got := detailValues(merged, "state"); len(got) != 1 || got[0] != "down" {
		t.Fatalf("expected unknown behavior to leave detail alone, got %v", got)
	}
}

func TestMergeDetailsDeleteThenReAdd(t *testing.T) {
	oldDetails := []EventDetail{{Name: "state", Values: []string{"down"}}}
	newDetails := []EventDetail{
		{Name: "state", MergeBehavior: MergeReplace},
		{Name: "state", Values: []string{"up"}, MergeBehavior: MergeReplace},
	}
	merged := MergeDetails(oldDetails, newDetails)
	if len(merged) != 1 {
		t.Fatalf("expected a single state detail, got %v", merged)
	}
	if got := detailValues(merged, "state"); len(got) != 1 || got[0] != "up" {
		t.Fatalf("expected re-added state [up], got %v", got)
	}
}

func TestMergeDuplicateDetailsConcatenatesInOrder(t *testing.T) {
	merged := MergeDuplicateDetails([]EventDetail{
		{Name: "a", Values: []string{"1"}},
		{Name: "b", Values: []string{"x"}},
		{Name: "a", Values: []string{"2"}},
	})
	if len(merged) != 2 || merged[0].Name != "a" || merged[1].Name != "b" {
		t.Fatalf("expected collapsed [a b], got %v", merged)
	}
	if got := merged[0].Values; len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Fatalf("expected a=[1 2], got %v", got)
	}
}

func TestBuildTagsUnionsAndDropsEmpty(t *testing.T) {
	tags := BuildTags([]EventTag{
		{Type: "location", UUIDs: []string{"u1", "u2"}},
		{Type: "group", UUIDs: []string{"u2"}},
		{Type: "location", UUIDs: []string{"u3", "u1"}},
		{Type: "empty"},
	})
	if len(tags) != 1 {
		t.Fatalf("expected only the location group to survive, got %v", tags)
	}
	if got := tags[0].UUIDs; len(got) != 3 {
		t.Fatalf("expected location uuids [u1 u2 u3], got %v", got)
	}
}

func TestMergeOccurrenceNewerOverwrites(t *testing.T) {
	first := Occurrence{
		Fingerprint: "fp",
		CreatedTime: 1000,
		Severity:    SeverityWarning,
		Status:      StatusNew,
		Summary:     "first",
		Details:     []EventDetail{{Name: "state", Values: []string{"down"}}},
	}
	summary := NewSummary("uuid-1", first, StatusNew, 1000)

	second := first
	second.CreatedTime = 2000
	second.Severity = SeverityError
	second.Summary = "second"
	second.Details = []EventDetail{{Name: "state", Values: []string{"degraded"}}}

	if !MergeOccurrence(&summary, second, []byte{0x01}, 2000) {
		t.Fatal("expected newer occurrence to report true")
	}
	if summary.Count != 2 {
		t.Fatalf("expected count 2, got %d", summary.Count)
	}
	if summary.LastSeenTime != 2000 || summary.Occurrence.Summary != "second" {
		t.Fatalf("expected identity fields from newer occurrence, got %+v", summary.Occurrence)
	}
	if summary.Occurrence.Severity != SeverityError {
		t.Fatalf("expected severity error, got %v", summary.Occurrence.Severity)
	}
	if got := detailValues(summary.Occurrence.Details, "state"); len(got) != 1 || got[0] != "degraded" {
		t.Fatalf("expected newer detail value, got %v", got)
	}
}

func TestMergeOccurrenceOlderOnlyContributesDetails(t *testing.T) {
	current := Occurrence{
		Fingerprint: "fp",
		CreatedTime: 2000,
		Summary:     "current",
		Details:     []EventDetail{{Name: "state", Values: []string{"up"}}},
	}
	summary := NewSummary("uuid-1", current, StatusNew, 2000)

	older := current
	older.CreatedTime = 500
	older.Summary = "stale"
	older.Details = []EventDetail{
		{Name: "state", Values: []string{"down"}},
		{Name: "origin", Values: []string{"syslog"}},
	}

	if MergeOccurrence(&summary, older, nil, 2100) {
		t.Fatal("expected older occurrence to report false")
	}
	if summary.Occurrence.Summary != "current" || summary.LastSeenTime != 2000 {
		t.Fatalf("expected stored identity untouched, got %+v", summary.Occurrence)
	}
	if summary.FirstSeenTime != 500 {
		t.Fatalf("expected first seen lowered to 500, got %d", summary.FirstSeenTime)
	}
	if got := detailValues(summary.Occurrence.Details, "state"); len(got) != 1 || got[0] != "up" {
		t.Fatalf("expected stored detail to win, got %v", got)
	}
	if got := detailValues(summary.Occurrence.Details, "origin"); len(got) != 1 {
		t.Fatalf("expected older-only detail kept, got %v", got)
	}
}

func TestMergeOccurrenceStickyAcknowledged(t *testing.T) {
	first := Occurrence{Fingerprint: "fp", CreatedTime: 1000, Status: StatusNew}
	summary := NewSummary("uuid-1", first, StatusAcknowledged, 1000)

	repeat := first
	repeat.CreatedTime = 2000
	repeat.Status = StatusNew
	MergeOccurrence(&summary, repeat, nil, 2000)
	if summary.Status != StatusAcknowledged {
		t.Fatalf("expected acknowledged to resist new, got %v", summary.Status)
	}

	closed := first
	closed.CreatedTime = 3000
	closed.Status = StatusClosed
	MergeOccurrence(&summary, closed, nil, 3000)
	if summary.Status != StatusClosed {
		t.Fatalf("expected closed to displace acknowledged, got %v", summary.Status)
	}
	if summary.StatusChangeTime != 3000 {
		t.Fatalf("expected status change at occurrence time, got %d", summary.StatusChangeTime)
	}
}

func TestStatusUpdateAcknowledgeLifecycle(t *testing.T) {
	update := AcknowledgeUpdate("user-1", "jane")
	if !update.Eligible(StatusNew) || !update.Eligible(StatusSuppressed) {
		t.Fatal("expected acknowledge allowed from new and suppressed")
	}
	if update.Eligible(StatusClosed) {
		t.Fatal("expected acknowledge blocked from closed")
	}

	summary := EventSummary{UUID: "uuid-1", Status: StatusNew}
	update.Apply(&summary, 5000)
	if summary.Status != StatusAcknowledged || summary.CurrentUserUUID != "user-1" {
		t.Fatalf("expected acknowledged by user-1, got %+v", summary)
	}
	if len(summary.AuditLog) != 1 || summary.AuditLog[0].NewStatus != StatusAcknowledged {
		t.Fatalf("expected one acknowledge audit entry, got %v", summary.AuditLog)
	}
	if !update.RedundantAcknowledge(summary) {
		t.Fatal("expected same-user re-acknowledge to be redundant")
	}
	if AcknowledgeUpdate("user-2", "joe").RedundantAcknowledge(summary) {
		t.Fatal("expected different-user acknowledge to proceed")
	}
}

func TestStatusUpdateLeavingAcknowledgedClearsUser(t *testing.T) {
	summary := EventSummary{
		UUID:            "uuid-1",
		Status:          StatusAcknowledged,
		CurrentUserUUID: "user-1",
		CurrentUserName: "jane",
	}
	CloseUpdate("user-2", "joe").Apply(&summary, 6000)
	if summary.CurrentUserUUID != "" || summary.CurrentUserName != "" {
		t.Fatalf("expected user identity cleared, got %+v", summary)
	}
	if summary.Status != StatusClosed {
		t.Fatalf("expected closed, got %v", summary.Status)
	}
}

func TestSuppressOnlyFromNew(t *testing.T) {
	update := SuppressUpdate()
	if !update.Eligible(StatusNew) {
		t.Fatal("expected suppress allowed from new")
	}
	for _, status := range []Status{StatusAcknowledged, StatusClosed, StatusCleared, StatusAged} {
		if update.Eligible(status) {
			t.Fatalf("expected suppress blocked from %v", status)
		}
	}
}

func TestPrependNoteDropsOldestWhenOverBudget(t *testing.T) {
	summary := EventSummary{}
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'x'
	}
	for i := 0; i < 5; i++ {
		summary.PrependNote(EventNote{UUID: "note", Message: string(long), CreatedTime: int64(i)}, 600)
	}
	encoded, err := json.Marshal(summary.Notes)
	if err != nil {
		t.Fatal(err)
	}
	if len(encoded) > 600 {
		t.Fatalf("expected serialized notes within budget, got %d bytes", len(encoded))
	}
	if summary.Notes[0].CreatedTime != 4 {
		t.Fatalf("expected newest note first, got %+v", summary.Notes[0])
	}
}

func TestCapDetailsDegradesToProtectedThenFallback(t *testing.T) {
	merged := []EventDetail{
		{Name: "zenoss.device.production_state", Values: []string{"1000"}},
		{Name: "bulk", Values: []string{string(make([]byte, 500))}},
	}
	fallback := []EventDetail{{Name: "incoming", Values: []string{"v"}}}

	capped, degraded := CapDetails(merged, fallback, 200, "zenoss.")
	if !degraded {
		t.Fatal("expected degradation")
	}
	if len(capped) != 1 || capped[0].Name != "zenoss.device.production_state" {
		t.Fatalf("expected only protected detail, got %v", capped)
	}

	capped, degraded = CapDetails(merged, fallback, 20, "zenoss.")
	if !degraded || len(capped) != 1 || capped[0].Name != "incoming" {
		t.Fatalf("expected fallback details, got %v", capped)
	}

	capped, degraded = CapDetails(merged, fallback, 0, "zenoss.")
	if degraded {
		t.Fatal("expected zero budget to disable capping")
	}
	if len(capped) != 2 {
		t.Fatalf("expected merged details untouched, got %v", capped)
	}
}

func TestTruncateUTF8KeepsRunesWhole(t *testing.T) {
	if got := TruncateUTF8("héllo", 2); got != "h" {
		t.Fatalf("expected multi-byte rune dropped whole, got %q", got)
	}
	if got := TruncateUTF8("abc", 10); got != "abc" {
		t.Fatalf("expected short string untouched, got %q", got)
	}
}

func TestNormalizeDefaultsStatusAndTruncates(t *testing.T) {
	long := make([]byte, MaxSummaryBytes+50)
	for i := range long {
		long[i] = 'a'
	}
	occ := Occurrence{Fingerprint: "fp", Summary: string(long)}
	normalized := occ.Normalize()
	if normalized.Status != StatusNew {
		t.Fatalf("expected default status new, got %v", normalized.Status)
	}
	if len(normalized.Summary) != MaxSummaryBytes {
		t.Fatalf("expected summary truncated to %d bytes, got %d", MaxSummaryBytes, len(normalized.Summary))
	}
}

func TestSeveritiesBelow(t *testing.T) {
	below := SeveritiesBelow(SeverityError)
	if len(below) != 4 || below[0] != SeverityClear || below[3] != SeverityWarning {
		t.Fatalf("expected [clear debug info warning], got %v", below)
	}
	if got := SeveritiesBelow(SeverityClear); len(got) != 0 {
		t.Fatalf("expected empty set below clear, got %v", got)
	}
}
