package store

import (
	"path/filepath"
	"testing"
)

func TestAuditLogRecordAndRecent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	log, err := OpenAuditLog(path)
	if err != nil {
		t.Fatalf("OpenAuditLog: %v", err)
	}
	defer log.Close()

	if err := log.RecordApplied("GW-1", 1, 1000); err != nil {
		t.Fatalf("RecordApplied: %v", err)
	}
	if err := log.RecordApplied("GW-1", 2, 2000); err != nil {
		t.Fatalf("RecordApplied: %v", err)
	}

	entries, err := log.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].ConfigVersion != 2 || entries[0].AppliedAtUnix != 2000 {
		t.Errorf("newest-first ordering wrong: %+v", entries[0])
	}
	if entries[1].ConfigVersion != 1 {
		t.Errorf("second entry wrong: %+v", entries[1])
	}
}

func TestAuditLogRecentRespectsLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	log, err := OpenAuditLog(path)
	if err != nil {
		t.Fatalf("OpenAuditLog: %v", err)
	}
	defer log.Close()

	for i := 0; i < 5; i++ {
		if err := log.RecordApplied("GW-1", uint8(i+1), int64(i)); err != nil {
			t.Fatalf("RecordApplied: %v", err)
		}
	}

	entries, err := log.Recent(2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].ConfigVersion != 5 {
		t.Errorf("expected newest entry first, got %+v", entries[0])
	}
}

func TestAuditLogEmptyReturnsNoEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	log, err := OpenAuditLog(path)
	if err != nil {
		t.Fatalf("OpenAuditLog: %v", err)
	}
	defer log.Close()

	entries, err := log.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}
