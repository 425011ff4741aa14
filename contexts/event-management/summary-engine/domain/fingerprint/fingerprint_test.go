package fingerprint

import (
	"bytes"
	"testing"

	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/domain/entities"
)

func TestDedupHashIsStable(t *testing.T) {
	a := DedupHash("fp")
	b := DedupHash("fp")
	if !bytes.Equal(a, b) {
		t.Fatal("expected identical hashes for identical fingerprints")
	}
	if len(a) != 20 {
		t.Fatalf("expected sha1 length 20, got %d", len(a))
	}
	if bytes.Equal(a, DedupHash("other")) {
		t.Fatal("expected distinct fingerprints to hash differently")
	}
}

func TestClosedHashDiffersFromOpenAndPerTimestamp(t *testing.T) {
	open := DedupHash("fp")
	closed1 := ClosedHash("fp", 1000)
	closed2 := ClosedHash("fp", 2000)
	if bytes.Equal(open, closed1) {
		t.Fatal("expected salted closed hash to differ from open hash")
	}
	if bytes.Equal(closed1, closed2) {
		t.Fatal("expected different timestamps to salt differently")
	}
	if !bytes.Equal(closed1, ClosedHash("fp", 1000)) {
		t.Fatal("expected closed hash to be deterministic")
	}
}

func TestClearHashRequiresClassAndIdentifier(t *testing.T) {
	occ := entities.Occurrence{EventClass: "/Status/Ping"}
	if ClearHash(occ) != nil {
		t.Fatal("expected nil without element identifier")
	}
	occ = entities.Occurrence{
		Actor: entities.EventActor{ElementIdentifier: "dev1"},
	}
	if ClearHash(occ) != nil {
		t.Fatal("expected nil without event class")
	}
}

func TestClearHashSubUUIDTakesPrecedence(t *testing.T) {
	base := entities.Occurrence{
		EventClass: "/Status/Ping",
		EventKey:   "ping",
		Actor: entities.EventActor{
			ElementIdentifier:    "dev1",
			ElementSubIdentifier: "eth0",
		},
	}
	identifierStyle := ClearHash(base)

	withUUID := base
	withUUID.Actor.ElementSubUUID = "sub-uuid-1"
	uuidStyle := ClearHash(withUUID)

	if identifierStyle == nil || uuidStyle == nil {
		t.Fatal("expected both styles to produce hashes")
	}
	if bytes.Equal(identifierStyle, uuidStyle) {
		t.Fatal("expected uuid style to differ from identifier style")
	}
}

func TestClearHashesGeneratesBothStylesPerClass(t *testing.T) {
	occ := entities.Occurrence{
		EventKey: "ping",
		Actor: entities.EventActor{
			ElementIdentifier: "dev1",
			ElementSubUUID:    "sub-uuid-1",
		},
	}
	classes := []string{"/Status/Ping", "/Status/Snmp"}
	hashes := ClearHashes(occ, classes)
	if len(hashes) != 4 {
		t.Fatalf("expected two styles per class, got %d hashes", len(hashes))
	}

	occ.Actor.ElementSubUUID = ""
	hashes = ClearHashes(occ, classes)
	if len(hashes) != 2 {
		t.Fatalf("expected one style per class without sub uuid, got %d", len(hashes))
	}

	occ.Actor.ElementIdentifier = ""
	if got := ClearHashes(occ, classes); got != nil {
		t.Fatalf("expected nil without element identifier, got %v", got)
	}
}

func TestClearHashesMatchStoredClearHash(t *testing.T) {
	stored := entities.Occurrence{
		EventClass: "/Status/Ping",
		EventKey:   "ping",
		Actor:      entities.EventActor{ElementIdentifier: "dev1"},
	}
	clearing := entities.Occurrence{
		EventKey: "ping",
		Actor:    entities.EventActor{ElementIdentifier: "dev1"},
	}

	storedHash := ClearHash(stored)
	candidates := ClearHashes(clearing, []string{"/Status/Ping"})
	found := false
	for _, h := range candidates {
		if bytes.Equal(h, storedHash) {
			found = true
		}
	}
	if !found {
		t.Fatal("expected clear candidates to include the stored clear hash")
	}
}
