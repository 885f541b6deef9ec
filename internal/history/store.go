// Package history is the append-only per-user log of saved screenings. Two
// backends implement it: the managed table of the hosted project and a local
// sqlite database for self-hosted deployments.
package history

import (
	"context"

	"safeskin/internal/domain"
)

type Store interface {
	// Insert appends one record. Records are never updated afterwards.
	Insert(ctx context.Context, item domain.HistoryItem) error
	// ListByUser returns the user's records newest first. A user with no
	// records gets an empty slice, not an error.
	ListByUser(ctx context.Context, userID string) ([]domain.HistoryItem, error)
	// ImageURLExists reports whether any record references the image URL.
	// Used by the reconciliation sweep to spot orphaned uploads.
	ImageURLExists(ctx context.Context, imageURL string) (bool, error)
}
