package store

import (
	"testing"
	"time"

	"github.com/dukerupert/doubleup/internal/model"
)

func setupArchiveTest(t *testing.T) (*ArchiveStore, string) {
	t.Helper()
	db := setupTestDB(t)
	run, err := NewRunStore(db).Create("asec16.csv")
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	return NewArchiveStore(db), run.ID
}

func TestArchiveCreate(t *testing.T) {
	as, runID := setupArchiveTest(t)

	a, err := as.Create(runID, "doubleup-2026.db.enc", "doubleup/doubleup-2026.db.enc")
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	if a.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if a.Status != model.ArchiveStatusPending {
		t.Errorf("status = %q, want %q", a.Status, model.ArchiveStatusPending)
	}

	got, err := as.GetByID(a.ID)
	if err != nil {
		t.Fatalf("get archive: %v", err)
	}
	if got.RunID != runID {
		t.Errorf("run_id = %q, want %q", got.RunID, runID)
	}

	byKey, err := as.GetByKey("doubleup/doubleup-2026.db.enc")
	if err != nil {
		t.Fatalf("get archive by key: %v", err)
	}
	if byKey == nil || byKey.ID != a.ID {
		t.Errorf("by key = %+v", byKey)
	}
}

func TestArchiveWithoutRun(t *testing.T) {
	as, _ := setupArchiveTest(t)

	a, err := as.Create("", "all.db.enc", "doubleup/all.db.enc")
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	got, err := as.GetByID(a.ID)
	if err != nil {
		t.Fatalf("get archive: %v", err)
	}
	if got.RunID != "" {
		t.Errorf("run_id = %q, want empty", got.RunID)
	}
}

func TestArchiveUpdateStatus(t *testing.T) {
	as, runID := setupArchiveTest(t)

	a, _ := as.Create(runID, "f.db.enc", "k1")
	if err := as.UpdateStatus(a.ID, model.ArchiveStatusFailed, "upload failed"); err != nil {
		t.Fatalf("update status: %v", err)
	}

	got, _ := as.GetByID(a.ID)
	if got.Status != model.ArchiveStatusFailed {
		t.Errorf("status = %q, want %q", got.Status, model.ArchiveStatusFailed)
	}
	if got.ErrorMessage != "upload failed" {
		t.Errorf("error = %q, want %q", got.ErrorMessage, "upload failed")
	}
}

func TestArchiveUpdateCompleted(t *testing.T) {
	as, runID := setupArchiveTest(t)

	a, _ := as.Create(runID, "f.db.enc", "k1")
	if err := as.UpdateCompleted(a.ID, 4096); err != nil {
		t.Fatalf("update completed: %v", err)
	}

	got, _ := as.GetByID(a.ID)
	if got.Status != model.ArchiveStatusCompleted || got.SizeBytes != 4096 || got.CompletedAt == nil {
		t.Errorf("archive = %+v", got)
	}

	latest, err := as.LatestCompleted()
	if err != nil {
		t.Fatalf("latest completed: %v", err)
	}
	if latest == nil || latest.ID != a.ID {
		t.Errorf("latest = %+v, want %d", latest, a.ID)
	}
}

func TestArchiveListAndDeleteOlderThan(t *testing.T) {
	as, runID := setupArchiveTest(t)

	for _, key := range []string{"k1", "k2", "k3"} {
		if _, err := as.Create(runID, key+".db.enc", key); err != nil {
			t.Fatalf("create archive: %v", err)
		}
	}
	list, err := as.List(10)
	if err != nil {
		t.Fatalf("list archives: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("archives = %d, want 3", len(list))
	}

	keys, err := as.DeleteOlderThan(time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("delete older than: %v", err)
	}
	if len(keys) != 3 {
		t.Errorf("deleted keys = %v, want 3", keys)
	}

	list, _ = as.List(10)
	if len(list) != 0 {
		t.Errorf("archives after delete = %d, want 0", len(list))
	}
}
