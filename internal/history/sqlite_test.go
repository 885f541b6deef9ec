package history

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"safeskin/internal/domain"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "safeskin-test.db")
	db, err := InitDB(dbPath)
	if err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func confPtr(v float64) *float64 { return &v }

func TestInsertAndListNewestFirst(t *testing.T) {
	db := newTestDB(t)
	base := time.Now().UTC().Truncate(time.Second)

	items := []domain.HistoryItem{
		{
			UserID:     "u1",
			ImageURL:   "https://proj.example.co/storage/v1/object/public/skin-images/u1/1.jpg",
			Label:      "Benign",
			Confidence: confPtr(0.91),
			CreatedAt:  base,
		},
		{
			UserID:     "u1",
			ImageURL:   "https://proj.example.co/storage/v1/object/public/skin-images/u1/2.jpg",
			Label:      "malignant",
			Confidence: confPtr(0.66),
			CreatedAt:  base.Add(10 * time.Minute),
		},
		{
			UserID:    "u2",
			Label:     "Benign",
			CreatedAt: base.Add(5 * time.Minute),
		},
	}
	for _, item := range items {
		if err := InsertHistoryItem(db, item); err != nil {
			t.Fatalf("InsertHistoryItem failed: %v", err)
		}
	}

	got, err := GetHistoryByUser(db, "u1")
	if err != nil {
		t.Fatalf("GetHistoryByUser failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Label != "malignant" || got[1].Label != "Benign" {
		t.Fatalf("rows not newest first: %s then %s", got[0].Label, got[1].Label)
	}
	if got[0].ID == "" {
		t.Fatal("row ID was not generated")
	}
	if got[0].Confidence == nil || *got[0].Confidence != 0.66 {
		t.Fatalf("confidence = %v", got[0].Confidence)
	}

	other, err := GetHistoryByUser(db, "u2")
	if err != nil {
		t.Fatalf("GetHistoryByUser failed: %v", err)
	}
	if len(other) != 1 {
		t.Fatalf("user scoping broken, len = %d", len(other))
	}
	if other[0].Confidence != nil {
		t.Fatalf("expected nil confidence, got %v", *other[0].Confidence)
	}
}

func TestListUnknownUserIsEmptyNotNil(t *testing.T) {
	db := newTestDB(t)
	got, err := GetHistoryByUser(db, "nobody")
	if err != nil {
		t.Fatalf("GetHistoryByUser failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(got) != 0 {
		t.Fatalf("len = %d, want 0", len(got))
	}
}

func TestImageURLExists(t *testing.T) {
	db := newTestDB(t)
	url := "https://proj.example.co/storage/v1/object/public/skin-images/u1/1.jpg"
	if err := InsertHistoryItem(db, domain.HistoryItem{UserID: "u1", ImageURL: url, Label: "Benign"}); err != nil {
		t.Fatalf("InsertHistoryItem failed: %v", err)
	}

	exists, err := HistoryImageURLExists(db, url)
	if err != nil {
		t.Fatalf("HistoryImageURLExists failed: %v", err)
	}
	if !exists {
		t.Fatal("expected existing url to be found")
	}

	exists, err = HistoryImageURLExists(db, url+"-other")
	if err != nil {
		t.Fatalf("HistoryImageURLExists failed: %v", err)
	}
	if exists {
		t.Fatal("unexpected match for unknown url")
	}
}

func TestSQLiteStoreImplementsStore(t *testing.T) {
	db := newTestDB(t)
	var store Store = NewSQLiteStore(db)
	ctx := context.Background()

	if err := store.Insert(ctx, domain.HistoryItem{UserID: "u1", Label: "Benign"}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	items, err := store.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("len = %d, want 1", len(items))
	}
}
