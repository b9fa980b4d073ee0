package astro

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nirolabs/niro/internal/models"
)

func fixedClock() func() time.Time {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return now }
}

func TestStubProfileDeterministic(t *testing.T) {
	p := NewStubProviderAt(fixedClock())
	birth := models.BirthDetails{DOB: "1985-10-10", TOB: "10:47", Location: "Dehradun"}
	ctx := context.Background()

	first, err := p.FetchProfile(ctx, "u1", birth)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := p.FetchProfile(ctx, "u1", birth)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Error("identical birth details produced different charts")
	}

	other, err := p.FetchProfile(ctx, "u2", models.BirthDetails{DOB: "1990-01-15", TOB: "06:30", Location: "Mumbai"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Ascendant == other.Ascendant && first.MoonSign == other.MoonSign && first.SunSign == other.SunSign {
		t.Log("different births produced the same core signs; acceptable but unlikely")
	}
}

func TestStubProfileShape(t *testing.T) {
	p := NewStubProviderAt(fixedClock())
	birth := models.BirthDetails{DOB: "1985-10-10", TOB: "10:47", Location: "Dehradun"}
	profile, err := p.FetchProfile(context.Background(), "u1", birth)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(profile.Planets) != len(models.Planets) {
		t.Errorf("planets = %d, want %d", len(profile.Planets), len(models.Planets))
	}
	if len(profile.Houses) != 12 {
		t.Errorf("houses = %d, want 12", len(profile.Houses))
	}
	for _, planet := range profile.Planets {
		if planet.House < 1 || planet.House > 12 {
			t.Errorf("%s house = %d, out of range", planet.Planet, planet.House)
		}
		if planet.Sign == "" || planet.Nakshatra == "" {
			t.Errorf("%s missing sign or nakshatra", planet.Planet)
		}
	}
	for _, house := range profile.Houses {
		if house.SignLord == "" {
			t.Errorf("house %d missing sign lord", house.HouseNum)
		}
		// Occupants must agree with planet placements.
		for _, occupant := range house.Planets {
			if pos := profile.GetPlanet(occupant); pos == nil || pos.House != house.HouseNum {
				t.Errorf("house %d lists %s but the planet is not placed there", house.HouseNum, occupant)
			}
		}
	}
	if profile.CurrentMahadasha == nil {
		t.Error("expected a current mahadasha")
	} else if profile.CurrentMahadasha.YearsRemaining < 0 {
		t.Errorf("mahadasha years remaining = %v, want >= 0", profile.CurrentMahadasha.YearsRemaining)
	}
}

func TestStubTransitsWithinWindow(t *testing.T) {
	p := NewStubProviderAt(fixedClock())
	birth := models.BirthDetails{DOB: "1985-10-10", TOB: "10:47", Location: "Dehradun"}
	now := fixedClock()()
	from, to := now.AddDate(-2, 0, 0), now.AddDate(1, 0, 0)

	transits, err := p.FetchTransits(context.Background(), "u1", birth, from, to)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(transits.Events) == 0 {
		t.Fatal("expected transit events across a three-year window")
	}
	for _, event := range transits.Events {
		if event.StartDate.Before(from) || event.StartDate.After(to) {
			t.Errorf("event %s/%s starts %v, outside [%v, %v]", event.Planet, event.EventType, event.StartDate, from, to)
		}
	}

	again, err := p.FetchTransits(context.Background(), "u1", birth, from, to)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, _ := json.Marshal(transits)
	b, _ := json.Marshal(again)
	if string(a) != string(b) {
		t.Error("identical inputs produced different transit sets")
	}
}
