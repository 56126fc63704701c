package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Register driver

	"voxgate/pkg/model"
)

// SQLiteStore is a Store backed by a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the profile database and runs migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	// Enable WAL mode for better concurrency and set busy timeout
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=30000;"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	// Enforce single connection to avoid SQLITE_BUSY errors during concurrent writes
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS user_profiles (
		user_id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT 'unknown',
		assigned_provider TEXT NOT NULL DEFAULT '',
		assigned_voice TEXT NOT NULL DEFAULT '',
		assigned_emotion TEXT NOT NULL DEFAULT '',
		volume_gain REAL NOT NULL DEFAULT 1.0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`)
	return err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get returns the profile for userID, or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, userID string) (*model.UserProfile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, display_name, state, assigned_provider, assigned_voice, assigned_emotion, volume_gain
		 FROM user_profiles WHERE user_id = ?`, userID)

	var p model.UserProfile
	err := row.Scan(&p.UserID, &p.DisplayName, &p.State, &p.AssignedProvider, &p.AssignedVoice, &p.AssignedEmotion, &p.VolumeGain)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile %s: %w", userID, err)
	}
	return &p, nil
}

// Put inserts or replaces a profile.
func (s *SQLiteStore) Put(ctx context.Context, profile *model.UserProfile) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_profiles (user_id, display_name, state, assigned_provider, assigned_voice, assigned_emotion, volume_gain)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			display_name = excluded.display_name,
			state = excluded.state,
			assigned_provider = excluded.assigned_provider,
			assigned_voice = excluded.assigned_voice,
			assigned_emotion = excluded.assigned_emotion,
			volume_gain = excluded.volume_gain,
			updated_at = CURRENT_TIMESTAMP`,
		profile.UserID, profile.DisplayName, profile.State,
		profile.AssignedProvider, profile.AssignedVoice, profile.AssignedEmotion, profile.VolumeGain)
	if err != nil {
		return fmt.Errorf("failed to store profile %s: %w", profile.UserID, err)
	}
	return nil
}

// All returns every stored profile.
func (s *SQLiteStore) All(ctx context.Context) ([]*model.UserProfile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, display_name, state, assigned_provider, assigned_voice, assigned_emotion, volume_gain
		 FROM user_profiles ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var out []*model.UserProfile
	for rows.Next() {
		var p model.UserProfile
		if err := rows.Scan(&p.UserID, &p.DisplayName, &p.State, &p.AssignedProvider, &p.AssignedVoice, &p.AssignedEmotion, &p.VolumeGain); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
