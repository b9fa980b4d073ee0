// Package store provides storage backends for NIRO.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/lib/pq"
	"github.com/nirolabs/niro/internal/models"
)

// Database connection pool configuration constants.
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		// Concurrent boots can race on CREATE TABLE IF NOT EXISTS.
		if pqErr, ok := err.(*pq.Error); !ok || pqErr.Code != "23505" {
			slog.Error("Failed to run migrations", "error", err)
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) GetSession(sessionID string) (*models.ConversationState, error) {
	row := s.db.QueryRow(`SELECT session_id, mode, active_topic, focus, birth_details, has_done_retro, message_count, created_at, updated_at
		FROM sessions WHERE session_id = $1`, sessionID)
	state, err := scanSession(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetSession not found", "sessionID", sessionID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetSession failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to get session %s: %w", sessionID, err)
	}
	return state, nil
}

func (s *PostgresStore) SaveSession(state *models.ConversationState) error {
	birthJSON, err := marshalBirthDetails(state.BirthDetails)
	if err != nil {
		slog.Error("PostgresStore SaveSession marshal failed", "error", err, "sessionID", state.SessionID)
		return err
	}
	_, err = s.db.Exec(`INSERT INTO sessions
		(session_id, mode, active_topic, focus, birth_details, has_done_retro, message_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (session_id) DO UPDATE SET
			mode = EXCLUDED.mode,
			active_topic = EXCLUDED.active_topic,
			focus = EXCLUDED.focus,
			birth_details = EXCLUDED.birth_details,
			has_done_retro = EXCLUDED.has_done_retro,
			message_count = EXCLUDED.message_count,
			updated_at = EXCLUDED.updated_at`,
		state.SessionID, string(state.Mode), string(state.ActiveTopic), string(state.Focus),
		nilIfEmpty(birthJSON), state.HasDoneRetro, state.MessageCount, state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveSession failed", "error", err, "sessionID", state.SessionID)
		return fmt.Errorf("failed to save session %s: %w", state.SessionID, err)
	}
	slog.Debug("PostgresStore SaveSession succeeded", "sessionID", state.SessionID, "mode", state.Mode)
	return nil
}

func (s *PostgresStore) DeleteSession(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE session_id = $1`, sessionID)
	if err != nil {
		slog.Error("PostgresStore DeleteSession failed", "error", err, "sessionID", sessionID)
		return err
	}
	slog.Debug("PostgresStore DeleteSession succeeded", "sessionID", sessionID)
	return nil
}

func (s *PostgresStore) GetOrCreateSession(sessionID string) (*models.ConversationState, error) {
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
	slog.Debug("PostgresStore GetOrCreateSession created session", "sessionID", sessionID)
	return state, nil
}

func (s *PostgresStore) GetProfile(userID string) (*models.AstroProfile, error) {
	var profileJSON string
	err := s.db.QueryRow(`SELECT profile FROM astro_profiles WHERE user_id = $1`, userID).Scan(&profileJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetProfile failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get profile for %s: %w", userID, err)
	}
	return unmarshalProfile(profileJSON)
}

func (s *PostgresStore) SaveProfile(profile *models.AstroProfile) error {
	profileJSON, err := marshalJSON(profile)
	if err != nil {
		slog.Error("PostgresStore SaveProfile marshal failed", "error", err, "userID", profile.UserID)
		return err
	}
	_, err = s.db.Exec(`INSERT INTO astro_profiles (user_id, profile, computed_at) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET profile = EXCLUDED.profile, computed_at = EXCLUDED.computed_at`,
		profile.UserID, profileJSON, profile.ComputedAt)
	if err != nil {
		slog.Error("PostgresStore SaveProfile failed", "error", err, "userID", profile.UserID)
		return fmt.Errorf("failed to save profile for %s: %w", profile.UserID, err)
	}
	slog.Debug("PostgresStore SaveProfile succeeded", "userID", profile.UserID)
	return nil
}

func (s *PostgresStore) GetTransits(userID string) (*models.AstroTransits, error) {
	var transitsJSON string
	err := s.db.QueryRow(`SELECT transits FROM astro_transits WHERE user_id = $1`, userID).Scan(&transitsJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetTransits failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get transits for %s: %w", userID, err)
	}
	return unmarshalTransits(transitsJSON)
}

func (s *PostgresStore) SaveTransits(transits *models.AstroTransits) error {
	transitsJSON, err := marshalJSON(transits)
	if err != nil {
		slog.Error("PostgresStore SaveTransits marshal failed", "error", err, "userID", transits.UserID)
		return err
	}
	_, err = s.db.Exec(`INSERT INTO astro_transits (user_id, transits, computed_at) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET transits = EXCLUDED.transits, computed_at = EXCLUDED.computed_at`,
		transits.UserID, transitsJSON, transits.ComputedAt)
	if err != nil {
		slog.Error("PostgresStore SaveTransits failed", "error", err, "userID", transits.UserID)
		return fmt.Errorf("failed to save transits for %s: %w", transits.UserID, err)
	}
	slog.Debug("PostgresStore SaveTransits succeeded", "userID", transits.UserID, "events", len(transits.Events))
	return nil
}

func (s *PostgresStore) DeleteTransits(userID string) error {
	_, err := s.db.Exec(`DELETE FROM astro_transits WHERE user_id = $1`, userID)
	if err != nil {
		slog.Error("PostgresStore DeleteTransits failed", "error", err, "userID", userID)
		return err
	}
	return nil
}

func (s *PostgresStore) PurgeTransitsBefore(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM astro_transits WHERE computed_at < $1`, cutoff)
	if err != nil {
		slog.Error("PostgresStore PurgeTransitsBefore failed", "error", err)
		return 0, fmt.Errorf("failed to purge transits: %w", err)
	}
	purged, _ := res.RowsAffected()
	slog.Debug("PostgresStore PurgeTransitsBefore succeeded", "purged", purged)
	return purged, nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
