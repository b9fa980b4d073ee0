package astro

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/nirolabs/niro/internal/models"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testProfile() *models.AstroProfile {
	signs := models.ZodiacSigns
	planets := []models.PlanetPosition{
		{Planet: "Sun", Sign: "Leo", House: 10, Nakshatra: "Magha", Dignity: "own", StrengthScore: 0.8},
		{Planet: "Moon", Sign: "Taurus", House: 7, Nakshatra: "Rohini", Dignity: "exalted", StrengthScore: 0.8},
		{Planet: "Mars", Sign: "Aries", House: 6, Dignity: "own", StrengthScore: 0.8},
		{Planet: "Mercury", Sign: "Virgo", House: 11, Dignity: "exalted", StrengthScore: 0.8},
		{Planet: "Jupiter", Sign: "Cancer", House: 3, Dignity: "exalted", StrengthScore: 0.8},
		{Planet: "Venus", Sign: "Libra", House: 12, Dignity: "own", StrengthScore: 0.8},
		{Planet: "Saturn", Sign: "Capricorn", House: 1, Dignity: "own", StrengthScore: 0.8},
		{Planet: "Rahu", Sign: "Gemini", House: 8, Dignity: "neutral", StrengthScore: 0.5},
		{Planet: "Ketu", Sign: "Sagittarius", House: 2, Dignity: "neutral", StrengthScore: 0.5},
	}
	houses := make([]models.HouseData, 0, 12)
	for i := 1; i <= 12; i++ {
		sign := signs[(i-1)%12]
		houses = append(houses, models.HouseData{HouseNum: i, Sign: sign, SignLord: models.SignLords[sign]})
	}
	return &models.AstroProfile{
		UserID:       "u1",
		BirthDetails: models.BirthDetails{DOB: "1985-10-10", TOB: "10:47", Location: "Dehradun"},
		Ascendant:    "Aries",
		MoonSign:     "Taurus",
		SunSign:      "Leo",
		Planets:      planets,
		Houses:       houses,
		CurrentMahadasha: &models.DashaInfo{
			Level: "mahadasha", Planet: "Saturn",
			StartDate:      testNow.AddDate(-3, 0, 0),
			EndDate:        testNow.AddDate(16, 0, 0),
			YearsTotal:     19,
			YearsRemaining: 16,
		},
		Yogas: []models.YogaInfo{
			{Name: "Gajakesari Yoga", Category: "raja", Strength: "strong"},
			{Name: "Dhana Yoga", Category: "dhana", Strength: "medium"},
			{Name: "Arishta Yoga", Category: "arishta", Strength: "weak"},
		},
	}
}

func transitAt(daysFromNow int, house int, strength, nature string) models.TransitEvent {
	return models.TransitEvent{
		EventType:     "ingress",
		Planet:        "Saturn",
		ToSign:        "Pisces",
		AffectedHouse: house,
		StartDate:     testNow.AddDate(0, 0, daysFromNow),
		Strength:      strength,
		Nature:        nature,
	}
}

func testTransits(events ...models.TransitEvent) *models.AstroTransits {
	return &models.AstroTransits{
		UserID:   "u1",
		FromDate: testNow.AddDate(-2, 0, 0),
		ToDate:   testNow.AddDate(1, 0, 0),
		Events:   events,
	}
}

func TestBuildTransitWindowBoundaries(t *testing.T) {
	// Career levers include house 10.
	transits := testTransits(
		transitAt(-200, 10, "strong", models.TransitNatureMalefic),
		transitAt(-100, 10, "strong", models.TransitNatureMalefic),
	)
	features := Build(BuildInput{
		Profile:  testProfile(),
		Transits: transits,
		Mode:     models.ModeNormalReading,
		Topic:    models.TopicCareer,
		Now:      testNow,
	})
	if len(features.Transits) != 1 {
		t.Fatalf("transits = %d, want 1 (200-day-old excluded, 100-day-old included)", len(features.Transits))
	}
	want := testNow.AddDate(0, 0, -100).Format("2006-01-02")
	if features.Transits[0].StartDate != want {
		t.Errorf("kept transit start = %s, want %s", features.Transits[0].StartDate, want)
	}
}

func TestBuildIrrelevantHouseExcluded(t *testing.T) {
	// House 3 is not in the career levers.
	transits := testTransits(transitAt(30, 3, "strong", models.TransitNatureBenefic))
	features := Build(BuildInput{
		Profile: testProfile(), Transits: transits,
		Mode: models.ModeNormalReading, Topic: models.TopicCareer, Now: testNow,
	})
	if len(features.Transits) != 0 {
		t.Errorf("transits = %d, want 0 for irrelevant house", len(features.Transits))
	}
}

func TestBuildCapsRespected(t *testing.T) {
	var events []models.TransitEvent
	for i := 0; i < 40; i++ {
		events = append(events, transitAt(i+1, 10, "strong", models.TransitNatureBenefic))
	}
	profile := testProfile()
	for i := 0; i < 50; i++ {
		profile.Yogas = append(profile.Yogas, models.YogaInfo{
			Name: "Raja Yoga", Category: "raja", Strength: "strong",
		})
	}
	features := Build(BuildInput{
		Profile: profile, Transits: testTransits(events...),
		Mode: models.ModeNormalReading, Topic: models.TopicCareer, Now: testNow,
		Retrospective: true,
	})
	if len(features.Transits) > models.MaxTransits {
		t.Errorf("transits = %d, exceeds cap %d", len(features.Transits), models.MaxTransits)
	}
	if len(features.KeyRules) > models.MaxKeyRules {
		t.Errorf("key rules = %d, exceeds cap %d", len(features.KeyRules), models.MaxKeyRules)
	}
	if len(features.FocusFactors) > models.MaxFocusFactors {
		t.Errorf("focus factors = %d, exceeds cap %d", len(features.FocusFactors), models.MaxFocusFactors)
	}
	if len(features.PastEvents) > models.MaxPastEvents {
		t.Errorf("past events = %d, exceeds cap %d", len(features.PastEvents), models.MaxPastEvents)
	}
	if len(features.TimingWindows) > models.MaxTimingWindows {
		t.Errorf("timing windows = %d, exceeds cap %d", len(features.TimingWindows), models.MaxTimingWindows)
	}
	if len(features.Yogas) > models.MaxYogas {
		t.Errorf("yogas = %d, exceeds cap %d", len(features.Yogas), models.MaxYogas)
	}
}

func TestBuildIdempotent(t *testing.T) {
	transits := testTransits(
		transitAt(-90, 10, "strong", models.TransitNatureMalefic),
		transitAt(60, 2, "medium", models.TransitNatureBenefic),
		transitAt(120, 11, "strong", models.TransitNatureBenefic),
	)
	in := BuildInput{
		Profile: testProfile(), Transits: transits,
		Mode: models.ModeNormalReading, Topic: models.TopicCareer, Now: testNow,
		Retrospective: true,
	}
	first, err := json.Marshal(Build(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := json.Marshal(Build(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(first) != string(second) {
		t.Error("identical inputs produced different output")
	}
}

func TestBuildResolvesLordReferences(t *testing.T) {
	features := Build(BuildInput{
		Profile: testProfile(), Transits: testTransits(),
		Mode: models.ModeNormalReading, Topic: models.TopicCareer, Now: testNow,
	})
	// Career levers name "10th Lord"; house 10 is Capricorn, ruled by Saturn.
	found := false
	for _, factor := range features.FocusFactors {
		if factor.Type == "planet" && factor.Reference == "10th Lord" {
			found = true
			if factor.Planet != "Saturn" {
				t.Errorf("10th Lord resolved to %s, want Saturn", factor.Planet)
			}
		}
	}
	if !found {
		t.Error("no focus factor emitted for the 10th Lord reference")
	}
}

func TestBuildPastEventsOnlyWhenRetrospective(t *testing.T) {
	transits := testTransits(transitAt(-300, 10, "strong", models.TransitNatureMalefic))
	in := BuildInput{
		Profile: testProfile(), Transits: transits,
		Mode: models.ModeNormalReading, Topic: models.TopicCareer, Now: testNow,
	}
	if got := Build(in); len(got.PastEvents) != 0 {
		t.Errorf("past events = %d in non-retrospective turn, want 0", len(got.PastEvents))
	}
	in.Retrospective = true
	got := Build(in)
	if len(got.PastEvents) == 0 {
		t.Fatal("expected past events in retrospective turn")
	}
	if got.PastEvents[0].Theme != "Career restructuring, professional challenges" {
		t.Errorf("theme = %q, want tabulated Saturn/10 theme", got.PastEvents[0].Theme)
	}
}

func TestBuildTimingWindowNatures(t *testing.T) {
	transits := testTransits(
		transitAt(60, 10, "strong", models.TransitNatureBenefic),
		transitAt(90, 10, "strong", models.TransitNatureMalefic),
		transitAt(120, 10, "strong", models.TransitNatureNeutral),
		transitAt(600, 10, "strong", models.TransitNatureBenefic), // beyond 545d
		transitAt(30, 10, "weak", models.TransitNatureBenefic),    // not strong
	)
	features := Build(BuildInput{
		Profile: testProfile(), Transits: transits,
		Mode: models.ModeNormalReading, Topic: models.TopicCareer, Now: testNow,
	})
	natures := map[string]int{}
	for _, w := range features.TimingWindows {
		natures[w.Nature]++
	}
	if natures["favorable"] != 1 || natures["challenging"] != 1 || natures["mixed"] != 1 {
		t.Errorf("window natures = %v, want one favorable, one challenging, one mixed", natures)
	}
}

func TestBuildYogaFilter(t *testing.T) {
	features := Build(BuildInput{
		Profile: testProfile(), Transits: testTransits(),
		Mode: models.ModeNormalReading, Topic: models.TopicCareer, Now: testNow,
	})
	for _, yoga := range features.Yogas {
		if yoga.Category == "arishta" {
			t.Error("arishta yoga surfaced for career topic")
		}
	}
	// raja and dhana always surface.
	if len(features.Yogas) != 2 {
		t.Errorf("yogas = %d, want 2 (raja + dhana)", len(features.Yogas))
	}
}

func TestBuildSaturnAspectMoonRule(t *testing.T) {
	profile := testProfile()
	// Saturn in house 1 aspects house 8; move Moon there.
	for i := range profile.Planets {
		if profile.Planets[i].Planet == "Moon" {
			profile.Planets[i].House = 8
		}
	}
	features := Build(BuildInput{
		Profile: profile, Transits: testTransits(),
		Mode: models.ModeNormalReading, Topic: models.TopicGeneral, Now: testNow,
	})
	found := false
	for _, rule := range features.KeyRules {
		if rule.ID == "SATURN_ASPECT_MOON" {
			found = true
			if rule.Strength != "strong" {
				t.Errorf("rule strength = %q, want strong for Saturn in own sign", rule.Strength)
			}
		}
	}
	if !found {
		t.Error("SATURN_ASPECT_MOON did not fire with Moon seven houses from Saturn")
	}
}
