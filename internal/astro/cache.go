// Package astro supplies natal-chart and transit data.
//
// This file implements the read-through cache in front of the provider.
package astro

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nirolabs/niro/internal/models"
)

// DefaultTransitTTL is how long cached transits stay fresh.
const DefaultTransitTTL = 24 * time.Hour

// Required transit coverage relative to now. The trailing side feeds
// past-event analysis, the leading side feeds timing windows.
const (
	requiredTrailingYears = 2
	requiredLeadingYears  = 1
)

// cacheStore is the slice of the persistence contract the cache needs.
type cacheStore interface {
	GetProfile(userID string) (*models.AstroProfile, error)
	SaveProfile(profile *models.AstroProfile) error
	GetTransits(userID string) (*models.AstroTransits, error)
	SaveTransits(transits *models.AstroTransits) error
}

// Cache is a read-through cache over a Provider. A refresh failure never
// drops a previously cached value; stale-but-present beats absent.
type Cache struct {
	store    cacheStore
	provider Provider
	ttl      time.Duration
}

// CacheOpts holds configuration options for the cache.
type CacheOpts struct {
	TTL time.Duration
}

// CacheOption defines a configuration option for the cache.
type CacheOption func(*CacheOpts)

// WithTransitTTL overrides the transit freshness window.
func WithTransitTTL(ttl time.Duration) CacheOption {
	return func(o *CacheOpts) {
		o.TTL = ttl
	}
}

// NewCache creates a cache over the given store and provider.
func NewCache(store cacheStore, provider Provider, opts ...CacheOption) *Cache {
	var cfg CacheOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTransitTTL
	}
	return &Cache{store: store, provider: provider, ttl: cfg.TTL}
}

// EnsureProfile returns the cached natal chart, fetching it when absent
// or when the birth details no longer match the cached chart.
func (c *Cache) EnsureProfile(ctx context.Context, userID string, birth models.BirthDetails) (*models.AstroProfile, error) {
	cached, err := c.store.GetProfile(userID)
	if err != nil {
		slog.Warn("Cache.EnsureProfile: store read failed, refetching", "error", err, "userID", userID)
	}
	if cached != nil && sameBirth(cached.BirthDetails, birth) {
		return cached, nil
	}

	profile, err := c.provider.FetchProfile(ctx, userID, birth)
	if err != nil {
		if cached != nil {
			slog.Warn("Cache.EnsureProfile: fetch failed, serving stale profile", "error", err, "userID", userID)
			return cached, nil
		}
		slog.Error("Cache.EnsureProfile: fetch failed with no cached profile", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to fetch profile for %s: %w", userID, err)
	}
	if err := c.store.SaveProfile(profile); err != nil {
		slog.Warn("Cache.EnsureProfile: failed to persist profile", "error", err, "userID", userID)
	}
	return profile, nil
}

// EnsureTransits returns cached transits, refreshing when the cache is
// expired or does not cover the window the current request needs.
func (c *Cache) EnsureTransits(ctx context.Context, userID string, birth models.BirthDetails, now time.Time) (*models.AstroTransits, error) {
	// The required window is day-granular. A full-precision cutoff would
	// creep past the cached ToDate as the clock advances and force a
	// refetch on every turn.
	day := now.UTC().Truncate(24 * time.Hour)
	needFrom := day.AddDate(-requiredTrailingYears, 0, 0)
	needTo := day.AddDate(requiredLeadingYears, 0, 0)

	cached, err := c.store.GetTransits(userID)
	if err != nil {
		slog.Warn("Cache.EnsureTransits: store read failed, refetching", "error", err, "userID", userID)
	}
	if cached != nil && c.fresh(cached, now) && covers(cached, needFrom, needTo) {
		return cached, nil
	}

	transits, err := c.provider.FetchTransits(ctx, userID, birth, needFrom, needTo)
	if err != nil {
		if cached != nil {
			slog.Warn("Cache.EnsureTransits: refresh failed, serving stale transits", "error", err, "userID", userID)
			return cached, nil
		}
		slog.Error("Cache.EnsureTransits: fetch failed with no cached transits", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to fetch transits for %s: %w", userID, err)
	}
	if err := c.store.SaveTransits(transits); err != nil {
		slog.Warn("Cache.EnsureTransits: failed to persist transits", "error", err, "userID", userID)
	}
	return transits, nil
}

func (c *Cache) fresh(transits *models.AstroTransits, now time.Time) bool {
	return now.Sub(transits.ComputedAt) < c.ttl
}

func covers(transits *models.AstroTransits, from, to time.Time) bool {
	return !transits.FromDate.After(from) && !transits.ToDate.Before(to)
}

func sameBirth(a, b models.BirthDetails) bool {
	return a.DOB == b.DOB && a.TOB == b.TOB && a.Location == b.Location
}
