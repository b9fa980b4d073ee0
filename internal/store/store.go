// Package store provides storage backends for NIRO.
//
// It includes an in-memory store for tests and single-process use, and
// SQLite/PostgreSQL stores for persistent conversation state and cached
// astrology data.
package store

import (
	"strings"
	"time"

	"github.com/nirolabs/niro/internal/models"
)

// Store is the persistence contract consumed by the orchestrator and the
// scheduler. Lookups return (nil, nil) when the key is absent.
type Store interface {
	// Sessions hold mutable conversation state keyed by session id.
	GetSession(sessionID string) (*models.ConversationState, error)
	SaveSession(state *models.ConversationState) error
	DeleteSession(sessionID string) error
	// GetOrCreateSession returns the existing session or persists a fresh one.
	GetOrCreateSession(sessionID string) (*models.ConversationState, error)

	// Cached natal charts keyed by user id.
	GetProfile(userID string) (*models.AstroProfile, error)
	SaveProfile(profile *models.AstroProfile) error

	// Cached transit sets keyed by user id.
	GetTransits(userID string) (*models.AstroTransits, error)
	SaveTransits(transits *models.AstroTransits) error
	DeleteTransits(userID string) error
	// PurgeTransitsBefore removes transit rows computed before the cutoff.
	// Returns the number of rows removed.
	PurgeTransitsBefore(cutoff time.Time) (int64, error)

	Close() error
}

// Opts holds configuration options for persistent stores.
type Opts struct {
	DSN string
}

// Option defines a configuration option for a store.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType returns "postgres" for PostgreSQL-style connection strings
// and "sqlite" otherwise (bare file paths).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	if strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite"
}
