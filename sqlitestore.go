package quizengine

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists session snapshots in a SQLite database. The
// snapshot JSON is the source of truth; status and user id are
// duplicated into columns so listings and cleanup can query without
// deserializing every row.
type SQLiteStore struct {
	db *sql.DB
}

// SessionSummary is one row of a session listing.
type SessionSummary struct {
	SessionID string        `json:"session_id"`
	UserID    string        `json:"user_id,omitempty"`
	Status    SessionStatus `json:"status"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// OpenSQLiteStore opens the database at dbPath and ensures the schema
// exists.
func OpenSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) createTables() error {
	query := `CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		snapshot TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'generating',
		user_id TEXT,
		updated_at DATETIME NOT NULL
	)`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create sessions table: %w", err)
	}
	return nil
}

// Save upserts a session snapshot. Status and user id are read out of
// the snapshot itself so the columns can never disagree with it.
func (s *SQLiteStore) Save(ctx context.Context, sessionID string, snapshot []byte) error {
	var peek struct {
		Status SessionStatus `json:"status"`
		UserID string        `json:"user_id"`
	}
	if err := json.Unmarshal(snapshot, &peek); err != nil {
		return fmt.Errorf("failed to read snapshot fields: %w", err)
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO sessions (session_id, snapshot, status, user_id, updated_at) VALUES (?, ?, ?, ?, ?)",
		sessionID, string(snapshot), string(peek.Status), peek.UserID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Load retrieves a session snapshot by id.
func (s *SQLiteStore) Load(ctx context.Context, sessionID string) ([]byte, error) {
	var snapshot string
	err := s.db.QueryRowContext(ctx,
		"SELECT snapshot FROM sessions WHERE session_id = ?", sessionID,
	).Scan(&snapshot)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return []byte(snapshot), nil
}

// Delete removes a session. Deleting an unknown id is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// List returns session summaries, newest first, optionally filtered by
// user id and limited by count.
func (s *SQLiteStore) List(ctx context.Context, userID string, limit int) ([]SessionSummary, error) {
	query := "SELECT session_id, user_id, status, updated_at FROM sessions"
	var args []any
	if userID != "" {
		query += " WHERE user_id = ?"
		args = append(args, userID)
	}
	query += " ORDER BY updated_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var summaries []SessionSummary
	for rows.Next() {
		var sum SessionSummary
		var user sql.NullString
		var status string
		if err := rows.Scan(&sum.SessionID, &user, &status, &sum.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sum.UserID = user.String
		sum.Status = SessionStatus(status)
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return summaries, nil
}

// CleanupExpired deletes sessions not updated within maxAge and returns
// how many were removed.
func (s *SQLiteStore) CleanupExpired(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE updated_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count cleaned sessions: %w", err)
	}
	return n, nil
}
