// Package astro supplies natal-chart and transit data and builds the
// topic-scoped feature bundle consumed by the text generator.
//
// The pipeline works against any Provider implementation, including the
// deterministic stub. Chart data is cached with a TTL and a date-window
// check; see Cache.
package astro

import (
	"context"
	"time"

	"github.com/nirolabs/niro/internal/models"
)

// Provider is the external astrology data source contract.
type Provider interface {
	// FetchProfile computes the natal chart for the given birth details.
	FetchProfile(ctx context.Context, userID string, birth models.BirthDetails) (*models.AstroProfile, error)
	// FetchTransits computes transit events against the chart for a date range.
	FetchTransits(ctx context.Context, userID string, birth models.BirthDetails, from, to time.Time) (*models.AstroTransits, error)
}
