package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jo-hoe/imagebot/internal/raster"
)

// SQLiteStore keeps PNG-encoded session images in a sqlite table.
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

func NewSQLiteStore(ctx context.Context, connectionString string, ttl time.Duration) (*SQLiteStore, error) {
	if connectionString == "" {
		connectionString = ":memory:"
	}
	db, err := sql.Open("sqlite", connectionString)
	if err != nil {
		return nil, err
	}
	// every connection to ":memory:" is a separate database
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, ttl: ttl, now: time.Now}
	if err := s.createTable(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) createTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS sessions (
		session_key TEXT PRIMARY KEY,
		image BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("failed to create sessions table: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (*raster.Image, bool, error) {
	row := s.db.QueryRowContext(ctx, "SELECT image, updated_at FROM sessions WHERE session_key = ?", key)
	var data []byte
	var updatedAt int64
	if err := row.Scan(&data, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read session %s: %w", key, err)
	}

	if s.ttl > 0 && !s.now().Before(time.Unix(0, updatedAt).Add(s.ttl)) {
		if _, err := s.db.ExecContext(ctx,
			"DELETE FROM sessions WHERE session_key = ? AND updated_at = ?", key, updatedAt); err != nil {
			return nil, false, fmt.Errorf("failed to expire session %s: %w", key, err)
		}
		return nil, false, nil
	}

	img, err := raster.Unmarshal(data)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode session %s: %w", key, err)
	}
	return img, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key string, img *raster.Image) error {
	data, err := raster.Marshal(img)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO sessions (session_key, image, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(session_key) DO UPDATE SET image = excluded.image, updated_at = excluded.updated_at`,
		key, data, s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to write session %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
