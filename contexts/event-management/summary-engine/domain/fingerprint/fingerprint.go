// Package fingerprint derives the hashes that drive de-duplication and
// clear correlation. All functions are pure; inputs are expected to be
// normalized (byte budgets applied) before hashing so stored hashes stay
// stable across configuration changes.
package fingerprint

import (
	"crypto/sha1"
	"strconv"
	"strings"

	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/domain/entities"
)

// DedupHash is the unique key among open-status summaries.
func DedupHash(fp string) []byte {
	return sha1Bytes(fp)
}

// ClosedHash salts the fingerprint with a timestamp so closed rows never
// collide with each other or with the open row for the same fingerprint.
func ClosedHash(fp string, ts int64) []byte {
	return sha1Bytes(fp + "|" + strconv.FormatInt(ts, 10))
}

// ClearHash computes the clear-correlation key for an occurrence. It needs
// at minimum an event class and an element identifier; otherwise the
// occurrence can neither be cleared nor clear anything and nil is returned.
// When the sub-element UUID is known it takes precedence over identifiers.
func ClearHash(occ entities.Occurrence) []byte {
	actor := occ.Actor
	if actor.ElementIdentifier == "" || occ.EventClass == "" {
		return nil
	}
	if actor.ElementSubUUID != "" {
		return sha1Bytes(Join('|', actor.ElementSubUUID, occ.EventClass, occ.EventKey))
	}
	return sha1Bytes(Join('|', actor.ElementIdentifier, actor.ElementSubIdentifier, occ.EventClass, occ.EventKey))
}

// ClearHashes generates the candidate hashes a clear occurrence matches
// against: one identifier-based hash per clear class, plus one UUID-based
// hash per class when the sub-element UUID is known. Both styles are needed
// to match summaries created before and after element-UUID tagging.
func ClearHashes(occ entities.Occurrence, clearClasses []string) [][]byte {
	actor := occ.Actor
	if actor.ElementIdentifier == "" {
		return nil
	}
	hashes := make([][]byte, 0, len(clearClasses)*2)
	for _, class := range clearClasses {
		hashes = append(hashes, sha1Bytes(Join('|', actor.ElementIdentifier, actor.ElementSubIdentifier, class, occ.EventKey)))
		if actor.ElementSubUUID != "" {
			hashes = append(hashes, sha1Bytes(Join('|', actor.ElementSubUUID, class, occ.EventKey)))
		}
	}
	return hashes
}

// Generator is the pluggable clear-correlation strategy. The ingestion
// pipeline may supply a custom one; Default matches the stock scheme.
type Generator interface {
	ClearHash(occ entities.Occurrence) []byte
	ClearHashes(occ entities.Occurrence, clearClasses []string) [][]byte
}

type Default struct{}

func (Default) ClearHash(occ entities.Occurrence) []byte {
	return ClearHash(occ)
}

func (Default) ClearHashes(occ entities.Occurrence, clearClasses []string) [][]byte {
	return ClearHashes(occ, clearClasses)
}

// Join concatenates args with sep, including empty values so that field
// positions stay fixed.
func Join(sep byte, args ...string) string {
	return strings.Join(args, string(sep))
}

func sha1Bytes(s string) []byte {
	sum := sha1.Sum([]byte(s))
	return sum[:]
}
