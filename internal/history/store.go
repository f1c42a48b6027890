// Package history keeps a durable local log of listens and submits them
// to the catalog in the background. Submission failures are retried on
// the next flush; the log survives restarts so no listen is lost to a
// flaky connection or an unclean exit.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store manages the persistent listen log using SQLite.
type Store struct {
	db *sql.DB
}

// Listen is a recorded play of a track.
type Listen struct {
	ID         int64
	TrackID    int64
	Title      string
	Artist     string
	Played     time.Duration
	ListenedAt time.Time
	Submitted  bool
	Error      string
}

// NewStore opens (creating if necessary) the listen log at dbPath.
// Use ":memory:" for an ephemeral store.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps in-memory databases consistent and is
	// plenty for this write rate.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA journal_mode = WAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS listens (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			track_id INTEGER NOT NULL,
			title TEXT NOT NULL,
			artist TEXT,
			played INTEGER NOT NULL,
			listened_at INTEGER NOT NULL,
			submitted BOOLEAN DEFAULT 0,
			error TEXT,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);

		CREATE INDEX IF NOT EXISTS idx_submitted ON listens(submitted, listened_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Add appends a listen to the log.
func (s *Store) Add(ctx context.Context, l Listen) (int64, error) {
	query := `
		INSERT INTO listens (track_id, title, artist, played, listened_at)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		l.TrackID,
		l.Title,
		l.Artist,
		int64(l.Played.Seconds()),
		l.ListenedAt.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert listen: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get insert id: %w", err)
	}
	return id, nil
}

// MarkSubmitted marks a listen as delivered to the catalog.
func (s *Store) MarkSubmitted(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE listens SET submitted = 1, error = NULL WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to mark listen submitted: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("listen with id %d not found", id)
	}
	return nil
}

// MarkError records a submission failure so the listen is retried later.
func (s *Store) MarkError(ctx context.Context, id int64, errMsg string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE listens SET error = ? WHERE id = ?", errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to mark listen error: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("listen with id %d not found", id)
	}
	return nil
}

// GetPending retrieves undelivered listens oldest first, optionally
// limited.
func (s *Store) GetPending(ctx context.Context, limit int) ([]Listen, error) {
	query := `
		SELECT id, track_id, title, COALESCE(artist, ''), played, listened_at, submitted, COALESCE(error, '')
		FROM listens
		WHERE submitted = 0
		ORDER BY listened_at ASC
	`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending listens: %w", err)
	}
	defer rows.Close()

	var listens []Listen
	for rows.Next() {
		var l Listen
		var playedSecs, listenedAtUnix int64
		if err := rows.Scan(
			&l.ID,
			&l.TrackID,
			&l.Title,
			&l.Artist,
			&playedSecs,
			&listenedAtUnix,
			&l.Submitted,
			&l.Error,
		); err != nil {
			return nil, fmt.Errorf("failed to scan listen: %w", err)
		}
		l.Played = time.Duration(playedSecs) * time.Second
		l.ListenedAt = time.Unix(listenedAtUnix, 0)
		listens = append(listens, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating listens: %w", err)
	}
	return listens, nil
}

// Cleanup removes delivered listens older than maxAge. Undelivered
// listens are always kept.
func (s *Store) Cleanup(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).Unix()

	result, err := s.db.ExecContext(ctx,
		"DELETE FROM listens WHERE submitted = 1 AND listened_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old listens: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// Count returns the number of listens in the log. With includeSubmitted
// false only undelivered listens are counted.
func (s *Store) Count(ctx context.Context, includeSubmitted bool) (int, error) {
	query := "SELECT COUNT(*) FROM listens"
	if !includeSubmitted {
		query += " WHERE submitted = 0"
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count listens: %w", err)
	}
	return count, nil
}
