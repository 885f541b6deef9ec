package history

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"safeskin/internal/domain"
)

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS history (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		image_url  TEXT DEFAULT '',
		label      TEXT NOT NULL,
		confidence REAL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_history_user ON history(user_id);
	CREATE INDEX IF NOT EXISTS idx_history_created_at ON history(created_at);
	CREATE INDEX IF NOT EXISTS idx_history_image_url ON history(image_url);
	`
	_, err = db.Exec(schema)
	if err != nil {
		return nil, err
	}

	return db, nil
}

func InsertHistoryItem(db *sql.DB, item domain.HistoryItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	var confidence any
	if item.Confidence != nil {
		confidence = *item.Confidence
	}
	_, err := db.Exec(
		`INSERT INTO history (id, user_id, image_url, label, confidence, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		item.ID, item.UserID, item.ImageURL, item.Label, confidence, item.CreatedAt,
	)
	return err
}

func GetHistoryByUser(db *sql.DB, userID string) ([]domain.HistoryItem, error) {
	rows, err := db.Query(
		`SELECT id, user_id, image_url, label, confidence, created_at
		 FROM history WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []domain.HistoryItem{}
	for rows.Next() {
		var item domain.HistoryItem
		var confidence sql.NullFloat64
		err := rows.Scan(
			&item.ID, &item.UserID, &item.ImageURL, &item.Label,
			&confidence, &item.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if confidence.Valid {
			item.Confidence = &confidence.Float64
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func HistoryImageURLExists(db *sql.DB, imageURL string) (bool, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM history WHERE image_url = ?", imageURL).Scan(&count)
	return count > 0, err
}

// SQLiteStore adapts the package helpers to the Store interface.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Insert(ctx context.Context, item domain.HistoryItem) error {
	return InsertHistoryItem(s.db, item)
}

func (s *SQLiteStore) ListByUser(ctx context.Context, userID string) ([]domain.HistoryItem, error) {
	return GetHistoryByUser(s.db, userID)
}

func (s *SQLiteStore) ImageURLExists(ctx context.Context, imageURL string) (bool, error) {
	return HistoryImageURLExists(s.db, imageURL)
}
