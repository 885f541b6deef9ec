package domain

import "time"

// HistoryItem is one saved screening, owned by exactly one user. Records are
// append-only: they are never mutated after insert and deletion is not
// offered. Confidence is nullable because rows written before confidence
// capture carry none.
type HistoryItem struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	ImageURL   string    `json:"image_url,omitempty"`
	Label      string    `json:"label"`
	Confidence *float64  `json:"confidence,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
