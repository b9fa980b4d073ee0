package astro

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nirolabs/niro/internal/models"
	"github.com/nirolabs/niro/internal/store"
)

// fakeProvider counts fetches and can be made to fail.
type fakeProvider struct {
	profileCalls int
	transitCalls int
	fail         bool
	now          time.Time
}

func (f *fakeProvider) FetchProfile(ctx context.Context, userID string, birth models.BirthDetails) (*models.AstroProfile, error) {
	f.profileCalls++
	if f.fail {
		return nil, errors.New("provider down")
	}
	return &models.AstroProfile{UserID: userID, BirthDetails: birth, ComputedAt: f.now, Ascendant: "Leo"}, nil
}

func (f *fakeProvider) FetchTransits(ctx context.Context, userID string, birth models.BirthDetails, from, to time.Time) (*models.AstroTransits, error) {
	f.transitCalls++
	if f.fail {
		return nil, errors.New("provider down")
	}
	return &models.AstroTransits{UserID: userID, FromDate: from, ToDate: to, ComputedAt: f.now}, nil
}

var testBirth = models.BirthDetails{DOB: "1985-10-10", TOB: "10:47", Location: "Dehradun"}

func TestCacheProfileFetchedOnce(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	provider := &fakeProvider{now: now}
	cache := NewCache(store.NewInMemoryStore(), provider)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		profile, err := cache.EnsureProfile(ctx, "u1", testBirth)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if profile.Ascendant != "Leo" {
			t.Fatalf("unexpected profile: %+v", profile)
		}
	}
	if provider.profileCalls != 1 {
		t.Errorf("profile fetches = %d, want 1 (cached thereafter)", provider.profileCalls)
	}
}

func TestCacheProfileRefetchedOnBirthChange(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	provider := &fakeProvider{now: now}
	cache := NewCache(store.NewInMemoryStore(), provider)
	ctx := context.Background()

	if _, err := cache.EnsureProfile(ctx, "u1", testBirth); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	changed := testBirth
	changed.TOB = "11:00"
	if _, err := cache.EnsureProfile(ctx, "u1", changed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.profileCalls != 2 {
		t.Errorf("profile fetches = %d, want 2 after birth details change", provider.profileCalls)
	}
}

func TestCacheTransitsTTLExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	provider := &fakeProvider{now: now.Add(-25 * time.Hour)}
	st := store.NewInMemoryStore()
	cache := NewCache(st, provider)
	ctx := context.Background()

	// Seed the cache with a value computed 25h ago but covering the window.
	if _, err := cache.EnsureTransits(ctx, "u1", testBirth, now.Add(-25*time.Hour)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.transitCalls != 1 {
		t.Fatalf("transit fetches = %d, want 1", provider.transitCalls)
	}

	provider.now = now
	if _, err := cache.EnsureTransits(ctx, "u1", testBirth, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.transitCalls != 2 {
		t.Errorf("transit fetches = %d, want 2 after TTL expiry", provider.transitCalls)
	}

	// Fresh again: no further fetch.
	if _, err := cache.EnsureTransits(ctx, "u1", testBirth, now.Add(time.Hour)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.transitCalls != 2 {
		t.Errorf("transit fetches = %d, want 2 while fresh and covering", provider.transitCalls)
	}
}

func TestCacheTransitsWindowCheck(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	provider := &fakeProvider{now: now}
	st := store.NewInMemoryStore()
	cache := NewCache(st, provider)
	ctx := context.Background()

	// Fresh but covering only a narrow window around an earlier date.
	narrow := &models.AstroTransits{
		UserID:     "u1",
		FromDate:   now.AddDate(-2, 0, 0),
		ToDate:     now.AddDate(0, 1, 0), // does not reach now+1y
		ComputedAt: now,
	}
	if err := st.SaveTransits(narrow); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := cache.EnsureTransits(ctx, "u1", testBirth, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.transitCalls != 1 {
		t.Errorf("transit fetches = %d, want 1 (window not covered)", provider.transitCalls)
	}
	day := now.UTC().Truncate(24 * time.Hour)
	if got.ToDate.Before(day.AddDate(1, 0, 0)) {
		t.Errorf("refreshed window %v does not cover today+1y", got.ToDate)
	}
}

func TestCacheTransitsServedWithinDay(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	provider := &fakeProvider{now: now}
	cache := NewCache(store.NewInMemoryStore(), provider)
	ctx := context.Background()

	// Repeated same-day requests at later clock times must all be served
	// from the cached value.
	for _, offset := range []time.Duration{0, 2 * time.Hour, 9 * time.Hour, 15 * time.Hour} {
		if _, err := cache.EnsureTransits(ctx, "u1", testBirth, now.Add(offset)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if provider.transitCalls != 1 {
		t.Errorf("transit fetches = %d, want 1 for same-day requests", provider.transitCalls)
	}
}

func TestCacheStaleOnFailure(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	provider := &fakeProvider{now: now.Add(-48 * time.Hour)}
	st := store.NewInMemoryStore()
	cache := NewCache(st, provider)
	ctx := context.Background()

	if _, err := cache.EnsureTransits(ctx, "u1", testBirth, now.Add(-48*time.Hour)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Expired and the provider is down: the stale value must survive.
	provider.fail = true
	got, err := cache.EnsureTransits(ctx, "u1", testBirth, now)
	if err != nil {
		t.Fatalf("refresh failure must not surface when a cached value exists: %v", err)
	}
	if got == nil {
		t.Fatal("expected stale transits, got nil")
	}
	if still, _ := st.GetTransits("u1"); still == nil {
		t.Error("refresh failure dropped the cached value")
	}

	// No cached value at all: the failure propagates.
	if _, err := cache.EnsureTransits(ctx, "nobody", testBirth, now); err == nil {
		t.Error("expected error when fetch fails with an empty cache")
	}
}
