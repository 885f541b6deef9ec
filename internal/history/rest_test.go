package history

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"safeskin/internal/domain"
)

func TestRESTInsertSendsRow(t *testing.T) {
	var gotPath, gotPrefer string
	var gotRow map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotPrefer = r.Header.Get("Prefer")
		if got := r.Header.Get("apikey"); got != "anon-key" {
			t.Fatalf("apikey header = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotRow); err != nil {
			t.Fatalf("decode row: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	store := NewRESTStore(server.URL, "anon-key", "history")
	created := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	err := store.Insert(context.Background(), domain.HistoryItem{
		UserID:     "u1",
		ImageURL:   "https://proj.example.co/img.jpg",
		Label:      "Benign",
		Confidence: confPtr(0.91),
		CreatedAt:  created,
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if gotPath != "/rest/v1/history" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotPrefer != "return=minimal" {
		t.Fatalf("prefer = %q", gotPrefer)
	}
	if gotRow["user_id"] != "u1" || gotRow["label"] != "Benign" {
		t.Fatalf("row = %v", gotRow)
	}
	if gotRow["confidence"] != 0.91 {
		t.Fatalf("confidence = %v", gotRow["confidence"])
	}
	if _, present := gotRow["id"]; present {
		t.Fatal("id must be left to the table to generate")
	}
}

func TestRESTInsertFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"new row violates row-level security policy"}`))
	}))
	defer server.Close()

	store := NewRESTStore(server.URL, "anon-key", "history")
	err := store.Insert(context.Background(), domain.HistoryItem{UserID: "u1", Label: "Benign"})
	if err == nil {
		t.Fatal("expected insert error")
	}
}

func TestRESTListByUserFiltersAndOrders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if got := q.Get("user_id"); got != "eq.u1" {
			t.Fatalf("user_id filter = %q", got)
		}
		if got := q.Get("order"); got != "created_at.desc" {
			t.Fatalf("order = %q", got)
		}
		if got := q.Get("select"); got != selectColumns {
			t.Fatalf("select = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id":"b","user_id":"u1","image_url":"","label":"malignant","confidence":0.7,"created_at":"2026-08-30T11:00:00Z"},
			{"id":"a","user_id":"u1","image_url":"https://x/img.jpg","label":"Benign","confidence":null,"created_at":"2026-08-29T11:00:00Z"}
		]`))
	}))
	defer server.Close()

	store := NewRESTStore(server.URL, "anon-key", "history")
	items, err := store.ListByUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	if items[0].ID != "b" {
		t.Fatalf("order not preserved, first id = %q", items[0].ID)
	}
	if items[0].Confidence == nil || *items[0].Confidence != 0.7 {
		t.Fatalf("confidence = %v", items[0].Confidence)
	}
	if items[1].Confidence != nil {
		t.Fatal("null confidence must decode to nil")
	}
}

func TestRESTListByUserEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	store := NewRESTStore(server.URL, "anon-key", "history")
	items, err := store.ListByUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Fatalf("expected empty slice, got %v", items)
	}
}

func TestRESTImageURLExists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("limit") != "1" {
			t.Fatalf("limit = %q", q.Get("limit"))
		}
		if q.Get("image_url") == "eq.https://x/present.jpg" {
			w.Write([]byte(`[{"id":"a"}]`))
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	store := NewRESTStore(server.URL, "anon-key", "history")

	exists, err := store.ImageURLExists(context.Background(), "https://x/present.jpg")
	if err != nil {
		t.Fatalf("ImageURLExists failed: %v", err)
	}
	if !exists {
		t.Fatal("expected url to exist")
	}

	exists, err = store.ImageURLExists(context.Background(), "https://x/missing.jpg")
	if err != nil {
		t.Fatalf("ImageURLExists failed: %v", err)
	}
	if exists {
		t.Fatal("unexpected match")
	}
}
