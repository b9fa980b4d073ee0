// Package store provides storage backends for NIRO.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"
	"github.com/nirolabs/niro/internal/models"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN. The DSN is
// a file path to the database file; its directory is created if missing.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) GetSession(sessionID string) (*models.ConversationState, error) {
	row := s.db.QueryRow(`SELECT session_id, mode, active_topic, focus, birth_details, has_done_retro, message_count, created_at, updated_at
		FROM sessions WHERE session_id = ?`, sessionID)
	state, err := scanSession(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetSession not found", "sessionID", sessionID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetSession failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to get session %s: %w", sessionID, err)
	}
	return state, nil
}

func (s *SQLiteStore) SaveSession(state *models.ConversationState) error {
	birthJSON, err := marshalBirthDetails(state.BirthDetails)
	if err != nil {
		slog.Error("SQLiteStore SaveSession marshal failed", "error", err, "sessionID", state.SessionID)
		return err
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO sessions
		(session_id, mode, active_topic, focus, birth_details, has_done_retro, message_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		state.SessionID, string(state.Mode), string(state.ActiveTopic), string(state.Focus),
		nilIfEmpty(birthJSON), state.HasDoneRetro, state.MessageCount, state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveSession failed", "error", err, "sessionID", state.SessionID)
		return fmt.Errorf("failed to save session %s: %w", state.SessionID, err)
	}
	slog.Debug("SQLiteStore SaveSession succeeded", "sessionID", state.SessionID, "mode", state.Mode)
	return nil
}

func (s *SQLiteStore) DeleteSession(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		slog.Error("SQLiteStore DeleteSession failed", "error", err, "sessionID", sessionID)
		return err
	}
	slog.Debug("SQLiteStore DeleteSession succeeded", "sessionID", sessionID)
	return nil
}

func (s *SQLiteStore) GetOrCreateSession(sessionID string) (*models.ConversationState, error) {
	state, err := s.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if state != nil {
		return state, nil
	}
	state = models.NewConversationState(sessionID)
	if err := s.SaveSession(state); err != nil {
		return nil, err
	}
	slog.Debug("SQLiteStore GetOrCreateSession created session", "sessionID", sessionID)
	return state, nil
}

func (s *SQLiteStore) GetProfile(userID string) (*models.AstroProfile, error) {
	var profileJSON string
	err := s.db.QueryRow(`SELECT profile FROM astro_profiles WHERE user_id = ?`, userID).Scan(&profileJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetProfile failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get profile for %s: %w", userID, err)
	}
	return unmarshalProfile(profileJSON)
}

func (s *SQLiteStore) SaveProfile(profile *models.AstroProfile) error {
	profileJSON, err := marshalJSON(profile)
	if err != nil {
		slog.Error("SQLiteStore SaveProfile marshal failed", "error", err, "userID", profile.UserID)
		return err
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO astro_profiles (user_id, profile, computed_at) VALUES (?, ?, ?)`,
		profile.UserID, profileJSON, profile.ComputedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveProfile failed", "error", err, "userID", profile.UserID)
		return fmt.Errorf("failed to save profile for %s: %w", profile.UserID, err)
	}
	slog.Debug("SQLiteStore SaveProfile succeeded", "userID", profile.UserID)
	return nil
}

func (s *SQLiteStore) GetTransits(userID string) (*models.AstroTransits, error) {
	var transitsJSON string
	err := s.db.QueryRow(`SELECT transits FROM astro_transits WHERE user_id = ?`, userID).Scan(&transitsJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetTransits failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get transits for %s: %w", userID, err)
	}
	return unmarshalTransits(transitsJSON)
}

func (s *SQLiteStore) SaveTransits(transits *models.AstroTransits) error {
	transitsJSON, err := marshalJSON(transits)
	if err != nil {
		slog.Error("SQLiteStore SaveTransits marshal failed", "error", err, "userID", transits.UserID)
		return err
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO astro_transits (user_id, transits, computed_at) VALUES (?, ?, ?)`,
		transits.UserID, transitsJSON, transits.ComputedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveTransits failed", "error", err, "userID", transits.UserID)
		return fmt.Errorf("failed to save transits for %s: %w", transits.UserID, err)
	}
	slog.Debug("SQLiteStore SaveTransits succeeded", "userID", transits.UserID, "events", len(transits.Events))
	return nil
}

func (s *SQLiteStore) DeleteTransits(userID string) error {
	_, err := s.db.Exec(`DELETE FROM astro_transits WHERE user_id = ?`, userID)
	if err != nil {
		slog.Error("SQLiteStore DeleteTransits failed", "error", err, "userID", userID)
		return err
	}
	return nil
}

func (s *SQLiteStore) PurgeTransitsBefore(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM astro_transits WHERE computed_at < ?`, cutoff)
	if err != nil {
		slog.Error("SQLiteStore PurgeTransitsBefore failed", "error", err)
		return 0, fmt.Errorf("failed to purge transits: %w", err)
	}
	purged, _ := res.RowsAffected()
	slog.Debug("SQLiteStore PurgeTransitsBefore succeeded", "purged", purged)
	return purged, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
