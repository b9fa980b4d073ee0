// Package astro supplies natal-chart and transit data.
//
// This file implements the deterministic stub provider. It is a
// development stand-in for a real ephemeris service: the data is
// seed-derived from the birth details, so identical inputs always yield
// identical charts, but it carries no astronomical accuracy.
package astro

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/nirolabs/niro/internal/models"
)

// Exaltation and debilitation signs per planet.
var (
	exaltation = map[string]string{
		"Sun": "Aries", "Moon": "Taurus", "Mars": "Capricorn",
		"Mercury": "Virgo", "Jupiter": "Cancer", "Venus": "Pisces",
		"Saturn": "Libra", "Rahu": "Taurus", "Ketu": "Scorpio",
	}
	debilitation = map[string]string{
		"Sun": "Libra", "Moon": "Scorpio", "Mars": "Cancer",
		"Mercury": "Pisces", "Jupiter": "Capricorn", "Venus": "Virgo",
		"Saturn": "Aries", "Rahu": "Scorpio", "Ketu": "Taurus",
	}
)

// Vimshottari dasha cycle.
var (
	dashaOrder = []string{"Ketu", "Venus", "Sun", "Moon", "Mars", "Rahu", "Jupiter", "Saturn", "Mercury"}
	dashaYears = map[string]float64{
		"Ketu": 7, "Venus": 20, "Sun": 6, "Moon": 10, "Mars": 7,
		"Rahu": 18, "Jupiter": 16, "Saturn": 19, "Mercury": 17,
	}
)

// transitSpeeds gives the approximate days a slow planet spends per sign.
var transitSpeeds = []struct {
	planet      string
	daysPerSign int
}{
	{"Saturn", 912},
	{"Jupiter", 365},
	{"Rahu", 548},
	{"Mars", 45},
}

// StubProvider generates deterministic chart data from a seed derived
// from the birth details.
type StubProvider struct {
	now func() time.Time
}

// NewStubProvider creates a stub provider using wall-clock time for
// dasha currency checks.
func NewStubProvider() *StubProvider {
	return &StubProvider{now: func() time.Time { return time.Now().UTC() }}
}

// NewStubProviderAt creates a stub provider with a fixed clock, for tests.
func NewStubProviderAt(now func() time.Time) *StubProvider {
	return &StubProvider{now: now}
}

// seedFor derives a stable seed from the birth details.
func seedFor(birth models.BirthDetails) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s-%s-%s", birth.DOB, birth.TOB, birth.Location)
	return int64(h.Sum64() & math.MaxInt64)
}

func (p *StubProvider) FetchProfile(ctx context.Context, userID string, birth models.BirthDetails) (*models.AstroProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seed := seedFor(birth)
	rng := rand.New(rand.NewSource(seed))
	slog.Debug("StubProvider.FetchProfile: generating chart", "userID", userID, "seed", seed)

	hour := birthHour(birth.TOB)
	ascIdx := int((seed + int64(hour)) % 12)
	ascendant := models.ZodiacSigns[ascIdx]

	planets := make([]models.PlanetPosition, 0, len(models.Planets))
	for i, planet := range models.Planets {
		signIdx := int((seed + int64(i)*3) % 12)
		sign := models.ZodiacSigns[signIdx]
		degree := rng.Float64() * 29.99
		nakshatraIdx := int((float64(signIdx)*30+degree)/13.33) % 27
		house := ((signIdx-ascIdx)+12)%12 + 1

		dignity := "neutral"
		switch {
		case exaltation[planet] == sign:
			dignity = "exalted"
		case debilitation[planet] == sign:
			dignity = "debilitated"
		case models.SignLords[sign] == planet:
			dignity = "own"
		}

		retroCapable := planet == "Mars" || planet == "Mercury" || planet == "Jupiter" ||
			planet == "Saturn" || planet == "Venus"

		planets = append(planets, models.PlanetPosition{
			Planet:        planet,
			Sign:          sign,
			Degree:        math.Round(degree*100) / 100,
			House:         house,
			Nakshatra:     models.Nakshatras[nakshatraIdx],
			NakshatraLord: dashaOrder[nakshatraIdx%9],
			IsRetrograde:  retroCapable && rng.Float64() > 0.7,
			IsCombust:     planet != "Sun" && intAbs(int((seed+int64(i))%30)-15) < 8 && rng.Float64() > 0.8,
			Dignity:       dignity,
			StrengthScore: strengthForDignity(dignity),
		})
	}

	houses := make([]models.HouseData, 0, 12)
	for num := 1; num <= 12; num++ {
		signIdx := (ascIdx + num - 1) % 12
		sign := models.ZodiacSigns[signIdx]
		var occupants []string
		for _, pl := range planets {
			if pl.House == num {
				occupants = append(occupants, pl.Planet)
			}
		}
		houses = append(houses, models.HouseData{
			HouseNum: num,
			Sign:     sign,
			SignLord: models.SignLords[sign],
			Planets:  occupants,
		})
	}

	maha, antar := p.generateDashas(birth, seed)

	profile := &models.AstroProfile{
		UserID:             userID,
		BirthDetails:       birth,
		ComputedAt:         p.now(),
		Ascendant:          ascendant,
		AscendantNakshatra: models.Nakshatras[(ascIdx*2)%27],
		MoonSign:           planetSign(planets, "Moon"),
		MoonNakshatra:      planetNakshatra(planets, "Moon"),
		SunSign:            planetSign(planets, "Sun"),
		Planets:            planets,
		Houses:             houses,
		CurrentMahadasha:   maha,
		CurrentAntardasha:  antar,
		Yogas:              generateYogas(planets, seed),
	}
	return profile, nil
}

func (p *StubProvider) FetchTransits(ctx context.Context, userID string, birth models.BirthDetails, from, to time.Time) (*models.AstroTransits, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seed := seedFor(birth)
	rng := rand.New(rand.NewSource(seed + from.Unix()/86400))
	slog.Debug("StubProvider.FetchTransits: generating transits", "userID", userID, "from", from, "to", to)

	var events []models.TransitEvent
	for _, ts := range transitSpeeds {
		signIdx := int((seed + int64(planetIndex(ts.planet))*7) % 12)
		date := from
		for date.Before(to) {
			if date.After(from) {
				nature := models.TransitNatureNeutral
				switch ts.planet {
				case "Saturn":
					nature = models.TransitNatureMalefic
				case "Jupiter":
					nature = models.TransitNatureBenefic
				}
				strength := "medium"
				if ts.planet == "Saturn" || ts.planet == "Jupiter" {
					strength = "strong"
				}
				events = append(events, models.TransitEvent{
					EventType:     "ingress",
					Planet:        ts.planet,
					FromSign:      models.ZodiacSigns[(signIdx+11)%12],
					ToSign:        models.ZodiacSigns[signIdx],
					AffectedHouse: signIdx + 1,
					StartDate:     date,
					Strength:      strength,
					Nature:        nature,
				})
			}
			date = date.AddDate(0, 0, ts.daysPerSign+rng.Intn(61)-30)
			signIdx = (signIdx + 1) % 12
		}
	}

	for _, planet := range []string{"Saturn", "Jupiter", "Mars", "Mercury"} {
		retroDate := from.AddDate(0, 0, 30+rng.Intn(151))
		if retroDate.Before(to) {
			events = append(events, models.TransitEvent{
				EventType: "retrograde_start",
				Planet:    planet,
				StartDate: retroDate,
				EndDate:   retroDate.AddDate(0, 0, 60+rng.Intn(81)),
				Strength:  "strong",
				Nature:    models.TransitNatureNeutral,
			})
		}
	}

	return &models.AstroTransits{
		UserID:     userID,
		FromDate:   from,
		ToDate:     to,
		ComputedAt: p.now(),
		Events:     events,
	}, nil
}

// generateDashas builds a Vimshottari timeline from birth and returns the
// currently running mahadasha and antardasha.
func (p *StubProvider) generateDashas(birth models.BirthDetails, seed int64) (*models.DashaInfo, *models.DashaInfo) {
	birthDate, err := time.Parse("2006-01-02", birth.DOB)
	if err != nil {
		birthDate = time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	now := p.now()
	startIdx := int(seed % 9)

	var maha *models.DashaInfo
	current := birthDate
	for cycle := 0; cycle < 3 && maha == nil; cycle++ {
		for i := 0; i < 9; i++ {
			planet := dashaOrder[(startIdx+i)%9]
			years := dashaYears[planet]
			end := current.AddDate(0, 0, int(years*365.25))
			if !now.Before(current) && !now.After(end) {
				maha = &models.DashaInfo{
					Level:          "mahadasha",
					Planet:         planet,
					StartDate:      current,
					EndDate:        end,
					YearsTotal:     years,
					YearsRemaining: round2(end.Sub(now).Hours() / 24 / 365.25),
				}
				break
			}
			current = end
		}
	}
	if maha == nil {
		return nil, nil
	}

	// Antardashas subdivide the mahadasha proportionally to the full cycle.
	antarStartIdx := indexOf(dashaOrder, maha.Planet)
	antarCurrent := maha.StartDate
	for i := 0; i < 9; i++ {
		planet := dashaOrder[(antarStartIdx+i)%9]
		years := dashaYears[maha.Planet] * dashaYears[planet] / 120
		end := antarCurrent.AddDate(0, 0, int(years*365.25))
		if !now.Before(antarCurrent) && !now.After(end) {
			return maha, &models.DashaInfo{
				Level:          "antardasha",
				Planet:         planet,
				StartDate:      antarCurrent,
				EndDate:        end,
				YearsTotal:     round2(years),
				YearsRemaining: round2(end.Sub(now).Hours() / 24 / 365.25),
			}
		}
		antarCurrent = end
	}
	return maha, nil
}

// generateYogas checks a few classical combinations against the chart and
// fills in seed-derived extras for variety.
func generateYogas(planets []models.PlanetPosition, seed int64) []models.YogaInfo {
	var yogas []models.YogaInfo
	moonHouse := planetHouse(planets, "Moon")
	jupiterHouse := planetHouse(planets, "Jupiter")
	jupiterDignity := planetDignity(planets, "Jupiter")

	// Gajakesari: Jupiter in a kendra from the Moon.
	for _, offset := range []int{0, 3, 6, 9} {
		if jupiterHouse == (moonHouse+offset-1)%12+1 {
			strength := "medium"
			if jupiterDignity == "exalted" || jupiterDignity == "own" {
				strength = "strong"
			}
			yogas = append(yogas, models.YogaInfo{
				Name:            "Gajakesari Yoga",
				Category:        "raja",
				PlanetsInvolved: []string{"Moon", "Jupiter"},
				HousesInvolved:  []int{moonHouse, jupiterHouse},
				Strength:        strength,
				Effects:         "Wisdom, fame, and prosperity",
			})
			break
		}
	}

	// Budhaditya: Sun and Mercury conjunct.
	if planetHouse(planets, "Sun") == planetHouse(planets, "Mercury") {
		yogas = append(yogas, models.YogaInfo{
			Name:            "Budhaditya Yoga",
			Category:        "raja",
			PlanetsInvolved: []string{"Sun", "Mercury"},
			HousesInvolved:  []int{planetHouse(planets, "Sun")},
			Strength:        "medium",
			Effects:         "Intelligence and communication skills",
		})
	}

	// Hamsa: Jupiter in a kendra in own or exalted sign.
	if (jupiterHouse == 1 || jupiterHouse == 4 || jupiterHouse == 7 || jupiterHouse == 10) &&
		(jupiterDignity == "exalted" || jupiterDignity == "own") {
		yogas = append(yogas, models.YogaInfo{
			Name:            "Hamsa Yoga",
			Category:        "pancha_mahapurusha",
			PlanetsInvolved: []string{"Jupiter"},
			HousesInvolved:  []int{jupiterHouse},
			Strength:        "strong",
			Effects:         "Righteous nature and spiritual wisdom",
		})
	}

	extras := []models.YogaInfo{
		{Name: "Chandra-Mangala Yoga", Category: "dhana", Effects: "Wealth through own efforts"},
		{Name: "Shukra-Chandra Yoga", Category: "dhana", Effects: "Material comforts and beauty"},
		{Name: "Neecha Bhanga Raja Yoga", Category: "raja", Effects: "Success after initial struggles"},
		{Name: "Viparita Raja Yoga", Category: "raja", Effects: "Gains through adversity"},
	}
	rng := rand.New(rand.NewSource(seed))
	strengths := []string{"strong", "medium", "weak"}
	for _, extra := range extras {
		if rng.Float64() > 0.6 {
			extra.PlanetsInvolved = []string{models.Planets[rng.Intn(7)], models.Planets[rng.Intn(7)]}
			extra.HousesInvolved = []int{rng.Intn(12) + 1, rng.Intn(12) + 1}
			extra.Strength = strengths[rng.Intn(3)]
			yogas = append(yogas, extra)
		}
	}
	return yogas
}

func birthHour(tob string) int {
	parts := strings.SplitN(tob, ":", 2)
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0
	}
	return hour
}

func strengthForDignity(dignity string) float64 {
	switch dignity {
	case "exalted", "own":
		return 0.8
	case "debilitated":
		return 0.3
	default:
		return 0.5
	}
}

func planetIndex(name string) int {
	return indexOf(models.Planets, name)
}

func indexOf(list []string, name string) int {
	for i, v := range list {
		if v == name {
			return i
		}
	}
	return 0
}

func planetSign(planets []models.PlanetPosition, name string) string {
	for _, p := range planets {
		if p.Planet == name {
			return p.Sign
		}
	}
	return ""
}

func planetNakshatra(planets []models.PlanetPosition, name string) string {
	for _, p := range planets {
		if p.Planet == name {
			return p.Nakshatra
		}
	}
	return ""
}

func planetHouse(planets []models.PlanetPosition, name string) int {
	for _, p := range planets {
		if p.Planet == name {
			return p.House
		}
	}
	return 0
}

func planetDignity(planets []models.PlanetPosition, name string) string {
	for _, p := range planets {
		if p.Planet == name {
			return p.Dignity
		}
	}
	return ""
}

func intAbs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
