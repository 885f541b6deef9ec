package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"safeskin/internal/domain"
	"safeskin/internal/httpx"
)

const selectColumns = "id,user_id,image_url,label,confidence,created_at"

// RESTStore is the managed history table, reached over the project's
// PostgREST-style surface.
type RESTStore struct {
	baseURL string
	apiKey  string
	table   string
}

func NewRESTStore(baseURL, apiKey, table string) *RESTStore {
	return &RESTStore{baseURL: baseURL, apiKey: apiKey, table: table}
}

func (s *RESTStore) setAuth(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("apikey", s.apiKey)
}

func (s *RESTStore) Insert(ctx context.Context, item domain.HistoryItem) error {
	row := map[string]any{
		"user_id":    item.UserID,
		"image_url":  item.ImageURL,
		"label":      item.Label,
		"created_at": item.CreatedAt,
	}
	if item.Confidence != nil {
		row["confidence"] = *item.Confidence
	}
	if item.ID != "" {
		row["id"] = item.ID
	}
	payload, err := json.Marshal(row)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/rest/v1/%s", s.baseURL, s.table)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create insert request: %w", err)
	}
	s.setAuth(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")

	resp, err := httpx.Client().Do(req)
	if err != nil {
		return fmt.Errorf("insert history row: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("insert into %s: %s", s.table, restErrorMessage(resp))
	}
	return nil
}

func (s *RESTStore) ListByUser(ctx context.Context, userID string) ([]domain.HistoryItem, error) {
	q := url.Values{}
	q.Set("select", selectColumns)
	q.Set("user_id", "eq."+userID)
	q.Set("order", "created_at.desc")

	items, err := s.query(ctx, q)
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *RESTStore) ImageURLExists(ctx context.Context, imageURL string) (bool, error) {
	q := url.Values{}
	q.Set("select", "id")
	q.Set("image_url", "eq."+imageURL)
	q.Set("limit", "1")

	items, err := s.query(ctx, q)
	if err != nil {
		return false, err
	}
	return len(items) > 0, nil
}

func (s *RESTStore) query(ctx context.Context, q url.Values) ([]domain.HistoryItem, error) {
	endpoint := fmt.Sprintf("%s/rest/v1/%s?%s", s.baseURL, s.table, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create select request: %w", err)
	}
	s.setAuth(req)

	resp, err := httpx.Client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("select history rows: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("select from %s: %s", s.table, restErrorMessage(resp))
	}

	items := []domain.HistoryItem{}
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode history rows: %w", err)
	}
	return items, nil
}

func restErrorMessage(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Message != "" {
		return fmt.Sprintf("status %d: %s", resp.StatusCode, payload.Message)
	}
	return fmt.Sprintf("status %d", resp.StatusCode)
}
