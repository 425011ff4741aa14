package entities

import "encoding/json"

// MergeDuplicateDetails collapses a single occurrence's own detail list by
// name, concatenating values in encounter order. Runs once per inbound
// occurrence, before any de-duplication.
func MergeDuplicateDetails(details []EventDetail) []EventDetail {
	if len(details) == 0 {
		return nil
	}
	index := make(map[string]int, len(details))
	out := make([]EventDetail, 0, len(details))
	for _, d := range details {
		if i, ok := index[d.Name]; ok {
			out[i].Values = append(out[i].Values, d.Values...)
			continue
		}
		index[d.Name] = len(out)
		out = append(out, EventDetail{
			Name:          d.Name,
			Values:        append([]string(nil), d.Values...),
			MergeBehavior: d.MergeBehavior,
		})
	}
	return out
}

// MergeDetails folds newDetails into oldDetails according to each new
// detail's merge behavior. REPLACE overwrites, or deletes when the new value
// list is empty. APPEND concatenates. UNIQUE appends only values not already
// present. Untouched names keep oldDetails order; newly introduced names are
// appended. Unknown behaviors are a no-op.
func MergeDetails(oldDetails, newDetails []EventDetail) []EventDetail {
	byName := make(map[string]*EventDetail, len(oldDetails)+len(newDetails))
	order := make([]string, 0, len(oldDetails)+len(newDetails))
	put := func(d EventDetail) {
		copied := EventDetail{
			Name:          d.Name,
			Values:        append([]string(nil), d.Values...),
			MergeBehavior: d.MergeBehavior,
		}
		if _, ok := byName[d.Name]; !ok {
			order = append(order, d.Name)
		}
		byName[d.Name] = &copied
	}
	for _, d := range oldDetails {
		put(d)
	}

	for _, nd := range newDetails {
		behavior := nd.MergeBehavior
		if behavior == "" {
			behavior = MergeReplace
		}
		existing := byName[nd.Name]
		switch behavior {
		case MergeReplace:
			// An empty REPLACE deletes the detail.
			if len(nd.Values) == 0 {
				delete(byName, nd.Name)
				continue
			}
			put(nd)
		case MergeAppend:
			if existing == nil {
				put(nd)
				continue
			}
			existing.Values = append(existing.Values, nd.Values...)
		case MergeUnique:
			if existing == nil {
				put(nd)
				continue
			}
			seen := make(map[string]bool, len(existing.Values))
			for _, v := range existing.Values {
				seen[v] = true
			}
			for _, v := range nd.Values {
				if !seen[v] {
					seen[v] = true
					existing.Values = append(existing.Values, v)
				}
			}
		default:
			// Unknown merge behavior: leave the existing detail alone.
		}
	}

	final := make([]EventDetail, 0, len(byName))
	emitted := make(map[string]bool, len(byName))
	for _, name := range order {
		d, ok := byName[name]
		if !ok || emitted[name] {
			continue
		}
		emitted[name] = true
		final = append(final, *d)
	}
	if len(final) == 0 {
		return nil
	}
	return final
}

// BuildTags groups tags by type, unions the UUID sets in first-seen order,
// and drops empty groups. A UUID already claimed by an earlier type is not
// repeated.
func BuildTags(tags []EventTag) []EventTag {
	if len(tags) == 0 {
		return nil
	}
	index := make(map[string]int, len(tags))
	seen := make(map[string]bool)
	grouped := make([]EventTag, 0, len(tags))
	for _, t := range tags {
		i, ok := index[t.Type]
		if !ok {
			i = len(grouped)
			index[t.Type] = i
			grouped = append(grouped, EventTag{Type: t.Type})
		}
		for _, id := range t.UUIDs {
			if !seen[id] {
				seen[id] = true
				grouped[i].UUIDs = append(grouped[i].UUIDs, id)
			}
		}
	}
	out := make([]EventTag, 0, len(grouped))
	for _, t := range grouped {
		if len(t.UUIDs) > 0 {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// NewSummary seeds a summary from the first occurrence of a fingerprint.
// The fingerprint and clear hashes are filled in by the caller.
func NewSummary(uuid string, occ Occurrence, status Status, now int64) EventSummary {
	firstSeen := occ.FirstSeenTime
	if firstSeen == 0 {
		firstSeen = occ.CreatedTime
	}
	return EventSummary{
		UUID:             uuid,
		Status:           status,
		Count:            occ.OccurrenceCount(),
		FirstSeenTime:    firstSeen,
		LastSeenTime:     occ.CreatedTime,
		StatusChangeTime: occ.CreatedTime,
		UpdateTime:       now,
		Occurrence:       occ,
	}
}

// MergeOccurrence folds occ into s and reports whether occ was at least as
// new as the summary's last seen time. Newer occurrences overwrite identity
// and classification fields and may advance the status; the proposed status
// never displaces ACKNOWLEDGED with NEW or SUPPRESSED. Older occurrences
// only contribute details, with the merge argument order swapped because the
// stored state is chronologically ahead. clearHash is the occurrence's
// clear-correlation hash (nil when it has none).
func MergeOccurrence(s *EventSummary, occ Occurrence, clearHash []byte, now int64) bool {
	s.Count += occ.OccurrenceCount()
	s.UpdateTime = now

	isNewer := occ.CreatedTime >= s.LastSeenTime
	if isNewer {
		s.LastSeenTime = occ.CreatedTime
		merged := MergeDetails(s.Occurrence.Details, occ.Details)
		prior := s.Occurrence
		s.Occurrence = occ
		s.Occurrence.Details = merged
		s.Occurrence.FirstSeenTime = prior.FirstSeenTime
		s.ClearFingerprintHash = clearHash

		proposed := occ.Status
		sticky := s.Status == StatusAcknowledged &&
			(proposed == StatusNew || proposed == StatusSuppressed)
		if !sticky && proposed != "" && proposed != s.Status {
			s.Status = proposed
			s.StatusChangeTime = occ.CreatedTime
		}
	} else {
		// Out-of-order arrival: the occurrence's details are the base and
		// the stored details win conflicts.
		s.Occurrence.Details = MergeDetails(occ.Details, s.Occurrence.Details)
	}

	occFirst := occ.FirstSeenTime
	if occFirst == 0 {
		occFirst = occ.CreatedTime
	}
	if occFirst < s.FirstSeenTime || s.FirstSeenTime == 0 {
		s.FirstSeenTime = occFirst
	}
	return isNewer
}

// CapDetails enforces the serialized byte budget on a merged detail list.
// Over budget, only details under protectedPrefix survive; still over
// budget, the merged state is discarded in favor of fallback (the incoming
// occurrence's own details). Never an error. The second return reports
// whether degradation happened.
func CapDetails(merged, fallback []EventDetail, maxBytes int, protectedPrefix string) ([]EventDetail, bool) {
	if maxBytes <= 0 || withinBudget(merged, maxBytes) {
		return merged, false
	}
	if protectedPrefix != "" {
		var protected []EventDetail
		for _, d := range merged {
			if hasPrefix(d.Name, protectedPrefix) {
				protected = append(protected, d)
			}
		}
		if len(protected) > 0 && withinBudget(protected, maxBytes) {
			return protected, true
		}
	}
	return fallback, true
}

func withinBudget(details []EventDetail, maxBytes int) bool {
	if len(details) == 0 {
		return true
	}
	encoded, err := json.Marshal(details)
	if err != nil {
		return false
	}
	return len(encoded) <= maxBytes
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
