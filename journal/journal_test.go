package journal

import (
	"path/filepath"
	"testing"
	"time"
)

func setupTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("failed to open journal: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestOpen(t *testing.T) {
	j := setupTestJournal(t)
	if j.db == nil {
		t.Fatal("db should not be nil")
	}
}

func TestRecordAndSince(t *testing.T) {
	j := setupTestJournal(t)

	entries := []Entry{
		{ID: 4, Summary: "Pic of Joe", Sender: "email@add.rs", PublishedAt: time.Now()},
		{ID: 5, Summary: "", Sender: "email@add.rs", PublishedAt: time.Now()},
		{ID: 6, Summary: "Another", Sender: "other@add.rs", PublishedAt: time.Now()},
	}
	for _, e := range entries {
		if err := j.Record(e); err != nil {
			t.Fatalf("Record(%d): %v", e.ID, err)
		}
	}

	got, err := j.Since(4)
	if err != nil {
		t.Fatalf("Since: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Since(4) returned %d entries, want 2", len(got))
	}
	if got[0].ID != 5 || got[1].ID != 6 {
		t.Errorf("Since(4) ids = %d, %d, want 5, 6", got[0].ID, got[1].ID)
	}
	if got[1].Summary != "Another" {
		t.Errorf("Summary = %q, want %q", got[1].Summary, "Another")
	}
	if got[1].Sender != "other@add.rs" {
		t.Errorf("Sender = %q, want %q", got[1].Sender, "other@add.rs")
	}
}

func TestRecordOverwrites(t *testing.T) {
	j := setupTestJournal(t)

	if err := j.Record(Entry{ID: 1, Summary: "first", PublishedAt: time.Now()}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := j.Record(Entry{ID: 1, Summary: "second", PublishedAt: time.Now()}); err != nil {
		t.Fatalf("Record again: %v", err)
	}

	got, err := j.Since(0)
	if err != nil {
		t.Fatalf("Since: %v", err)
	}
	if len(got) != 1 || got[0].Summary != "second" {
		t.Errorf("Since(0) = %+v, want single entry with summary %q", got, "second")
	}
}

func TestWatermark(t *testing.T) {
	j := setupTestJournal(t)

	last, err := j.LastNotified()
	if err != nil {
		t.Fatalf("LastNotified: %v", err)
	}
	if last != -1 {
		t.Errorf("fresh journal LastNotified = %d, want -1", last)
	}

	if err := j.SetLastNotified(7); err != nil {
		t.Fatalf("SetLastNotified: %v", err)
	}
	if last, _ = j.LastNotified(); last != 7 {
		t.Errorf("LastNotified = %d, want 7", last)
	}

	if err := j.SetLastNotified(9); err != nil {
		t.Fatalf("SetLastNotified again: %v", err)
	}
	if last, _ = j.LastNotified(); last != 9 {
		t.Errorf("LastNotified after update = %d, want 9", last)
	}
}
