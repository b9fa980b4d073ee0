// Package models defines the core data structures for NIRO.
//
// This file holds the chart/transit schema contract consumed from the
// astrology data provider, and the bounded feature bundle handed to the
// text generator.
package models

import "time"

// Planets in traditional order. Stable ordering matters for deterministic
// output from the feature builder and the stub provider.
var Planets = []string{"Sun", "Moon", "Mars", "Mercury", "Jupiter", "Venus", "Saturn", "Rahu", "Ketu"}

// ZodiacSigns in zodiacal order.
var ZodiacSigns = []string{
	"Aries", "Taurus", "Gemini", "Cancer", "Leo", "Virgo",
	"Libra", "Scorpio", "Sagittarius", "Capricorn", "Aquarius", "Pisces",
}

// Nakshatras in order.
var Nakshatras = []string{
	"Ashwini", "Bharani", "Krittika", "Rohini", "Mrigashira", "Ardra",
	"Punarvasu", "Pushya", "Ashlesha", "Magha", "Purva Phalguni", "Uttara Phalguni",
	"Hasta", "Chitra", "Swati", "Vishakha", "Anuradha", "Jyeshtha",
	"Mula", "Purva Ashadha", "Uttara Ashadha", "Shravana", "Dhanishta", "Shatabhisha",
	"Purva Bhadrapada", "Uttara Bhadrapada", "Revati",
}

// SignLords maps each sign to its ruling planet.
var SignLords = map[string]string{
	"Aries": "Mars", "Taurus": "Venus", "Gemini": "Mercury",
	"Cancer": "Moon", "Leo": "Sun", "Virgo": "Mercury",
	"Libra": "Venus", "Scorpio": "Mars", "Sagittarius": "Jupiter",
	"Capricorn": "Saturn", "Aquarius": "Saturn", "Pisces": "Jupiter",
}

// PlanetPosition is a planet placement in a natal chart.
type PlanetPosition struct {
	Planet        string  `json:"planet"`
	Sign          string  `json:"sign"`
	Degree        float64 `json:"degree"`
	House         int     `json:"house"`
	Nakshatra     string  `json:"nakshatra"`
	NakshatraLord string  `json:"nakshatra_lord,omitempty"`
	IsRetrograde  bool    `json:"is_retrograde"`
	IsCombust     bool    `json:"is_combust"`
	Dignity       string  `json:"dignity,omitempty"` // exalted, own, friendly, neutral, enemy, debilitated
	StrengthScore float64 `json:"strength_score"`    // 0..1
}

// HouseData is a single house (bhava) record.
type HouseData struct {
	HouseNum int      `json:"house_num"` // 1..12
	Sign     string   `json:"sign"`
	SignLord string   `json:"sign_lord"`
	Planets  []string `json:"planets,omitempty"` // occupants
}

// DashaInfo describes a major or minor planetary period.
type DashaInfo struct {
	Level          string    `json:"level"` // "mahadasha" or "antardasha"
	Planet         string    `json:"planet"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	YearsTotal     float64   `json:"years_total"`
	YearsRemaining float64   `json:"years_remaining"`
}

// YogaInfo is a named planetary combination present in the chart.
type YogaInfo struct {
	Name            string   `json:"name"`
	Category        string   `json:"category"` // raja, dhana, arishta, sannyasa, moksha, relationship, ...
	PlanetsInvolved []string `json:"planets_involved,omitempty"`
	HousesInvolved  []int    `json:"houses_involved,omitempty"`
	Strength        string   `json:"strength"` // strong, medium, weak
	Effects         string   `json:"effects,omitempty"`
}

// Transit natures.
const (
	TransitNatureBenefic = "benefic"
	TransitNatureMalefic = "malefic"
	TransitNatureNeutral = "neutral"
)

// TransitEvent is a time-bounded astrological event against the chart.
type TransitEvent struct {
	EventType     string    `json:"event_type"` // ingress, retrograde_start, retrograde_end, aspect, conjunction
	Planet        string    `json:"planet"`
	FromSign      string    `json:"from_sign,omitempty"`
	ToSign        string    `json:"to_sign,omitempty"`
	AffectedHouse int       `json:"affected_house,omitempty"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date,omitzero"` // zero means open-ended
	Strength      string    `json:"strength"`          // strong, medium, weak
	Nature        string    `json:"nature"`            // benefic, malefic, neutral
}

// AstroProfile is the natal chart contract consumed from the provider.
type AstroProfile struct {
	UserID       string       `json:"user_id"`
	BirthDetails BirthDetails `json:"birth_details"`
	ComputedAt   time.Time    `json:"computed_at"`

	Ascendant          string `json:"ascendant"`
	AscendantNakshatra string `json:"ascendant_nakshatra,omitempty"`
	MoonSign           string `json:"moon_sign"`
	MoonNakshatra      string `json:"moon_nakshatra,omitempty"`
	SunSign            string `json:"sun_sign"`

	Planets []PlanetPosition `json:"planets"`
	Houses  []HouseData      `json:"houses"`

	CurrentMahadasha  *DashaInfo `json:"current_mahadasha,omitempty"`
	CurrentAntardasha *DashaInfo `json:"current_antardasha,omitempty"`

	Yogas []YogaInfo `json:"yogas,omitempty"`
}

// GetPlanet returns the placement for a planet name, or nil.
func (p *AstroProfile) GetPlanet(name string) *PlanetPosition {
	for i := range p.Planets {
		if p.Planets[i].Planet == name {
			return &p.Planets[i]
		}
	}
	return nil
}

// GetHouse returns the house record for a house number, or nil.
func (p *AstroProfile) GetHouse(num int) *HouseData {
	for i := range p.Houses {
		if p.Houses[i].HouseNum == num {
			return &p.Houses[i]
		}
	}
	return nil
}

// HouseLord returns the ruling planet of a house, or "" when unknown.
func (p *AstroProfile) HouseLord(num int) string {
	if h := p.GetHouse(num); h != nil {
		return h.SignLord
	}
	return ""
}

// AstroTransits is the transit contract consumed from the provider.
type AstroTransits struct {
	UserID     string         `json:"user_id"`
	FromDate   time.Time      `json:"from_date"`
	ToDate     time.Time      `json:"to_date"`
	ComputedAt time.Time      `json:"computed_at"`
	Events     []TransitEvent `json:"events"`
}

// Output caps for the feature bundle. Every list the builder emits is
// bounded because the bundle feeds a size-constrained generation prompt.
const (
	MaxFocusFactors  = 12
	MaxKeyRules      = 5
	MaxTransits      = 10
	MaxYogas         = 6
	MaxPastEvents    = 5
	MaxTimingWindows = 6
)

// FocusFactor is one lever-relevant chart fact (house- or planet-level).
type FocusFactor struct {
	Type string `json:"type"` // "house" or "planet"

	// House factors
	House        int      `json:"house,omitempty"`
	Sign         string   `json:"sign,omitempty"`
	Lord         string   `json:"lord,omitempty"`
	LordHouse    int      `json:"lord_house,omitempty"`
	LordSign     string   `json:"lord_sign,omitempty"`
	LordDignity  string   `json:"lord_dignity,omitempty"`
	Occupants    []string `json:"occupants,omitempty"`
	Significance string   `json:"significance,omitempty"`

	// Planet factors
	Planet        string  `json:"planet,omitempty"`
	Reference     string  `json:"reference,omitempty"` // original lever ref, e.g. "10th Lord"
	Nakshatra     string  `json:"nakshatra,omitempty"`
	Dignity       string  `json:"dignity,omitempty"`
	IsRetrograde  bool    `json:"is_retrograde,omitempty"`
	IsCombust     bool    `json:"is_combust,omitempty"`
	StrengthScore float64 `json:"strength_score,omitempty"`
}

// KeyRule is a named astrological condition that is currently true.
type KeyRule struct {
	ID       string   `json:"id"`
	Meaning  string   `json:"meaning"`
	Strength string   `json:"strength"`
	Planets  []string `json:"planets,omitempty"`
	House    int      `json:"house,omitempty"`
	Window   string   `json:"window,omitempty"`
}

// TransitSummary is one filtered, topic-relevant transit.
type TransitSummary struct {
	Planet        string `json:"planet"`
	EventType     string `json:"event_type"`
	Sign          string `json:"sign,omitempty"`
	AffectedHouse int    `json:"affected_house"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date,omitempty"`
	Nature        string `json:"nature"`
	Strength      string `json:"strength"`
}

// PlanetStrength is the strength record for a lever-relevant planet.
type PlanetStrength struct {
	Planet        string  `json:"planet"`
	Sign          string  `json:"sign"`
	Dignity       string  `json:"dignity,omitempty"`
	StrengthScore float64 `json:"strength_score"`
	IsRetrograde  bool    `json:"is_retrograde"`
	Nakshatra     string  `json:"nakshatra,omitempty"`
}

// PastEvent is a trailing-window transit annotated with a theme.
type PastEvent struct {
	Period    string `json:"period"`
	Planet    string `json:"planet"`
	EventType string `json:"event_type"`
	House     int    `json:"house,omitempty"`
	Theme     string `json:"theme"`
	Nature    string `json:"nature"`
}

// TimingWindow is an upcoming strong transit classified by outlook.
type TimingWindow struct {
	Period   string `json:"period"`
	Nature   string `json:"nature"` // favorable, challenging, mixed, ongoing
	Trigger  string `json:"trigger"`
	House    int    `json:"house,omitempty"`
	Activity string `json:"activity"`
}

// DashaSummary is the generator-facing view of a dasha period.
type DashaSummary struct {
	Planet         string  `json:"planet"`
	StartDate      string  `json:"start_date"`
	EndDate        string  `json:"end_date"`
	YearsRemaining float64 `json:"years_remaining"`
}

// BirthSummary is the generator-facing view of birth details.
type BirthSummary struct {
	DOB      string `json:"dob"`
	TOB      string `json:"tob"`
	Location string `json:"location"`
}

// AstroFeatures is the topic-scoped, size-bounded feature bundle. It is
// the only astrological context the text generator is permitted to use.
type AstroFeatures struct {
	BirthDetails BirthSummary `json:"birth_details"`

	Ascendant          string `json:"ascendant"`
	AscendantNakshatra string `json:"ascendant_nakshatra,omitempty"`
	MoonSign           string `json:"moon_sign"`
	MoonNakshatra      string `json:"moon_nakshatra,omitempty"`
	SunSign            string `json:"sun_sign"`

	Mahadasha  *DashaSummary `json:"mahadasha,omitempty"`
	Antardasha *DashaSummary `json:"antardasha,omitempty"`

	FocusFactors       []FocusFactor    `json:"focus_factors"`
	KeyRules           []KeyRule        `json:"key_rules"`
	Transits           []TransitSummary `json:"transits"`
	PlanetaryStrengths []PlanetStrength `json:"planetary_strengths"`
	Yogas              []YogaInfo       `json:"yogas"`
	PastEvents         []PastEvent      `json:"past_events"`
	TimingWindows      []TimingWindow   `json:"timing_windows"`
}

// TimeframeType classifies the detected time horizon.
type TimeframeType string

const (
	TimeframeDays    TimeframeType = "days"
	TimeframeWeeks   TimeframeType = "weeks"
	TimeframeMonths  TimeframeType = "months"
	TimeframeYears   TimeframeType = "years"
	TimeframeDefault TimeframeType = "default"
)

// DefaultHorizonMonths is used when no temporal phrase is detected.
const DefaultHorizonMonths = 12

// TimeframeResult is the normalized time horizon for a question.
// Invariant: HorizonMonths >= 0; DefaultHorizonMonths when nothing matched.
type TimeframeResult struct {
	Type          TimeframeType `json:"type"`
	Value         int           `json:"value"`
	HorizonMonths float64       `json:"horizon_months"`
	Description   string        `json:"description"`
}

// DefaultTimeframe returns the 12-month fallback horizon.
func DefaultTimeframe() TimeframeResult {
	return TimeframeResult{
		Type:          TimeframeDefault,
		Value:         DefaultHorizonMonths,
		HorizonMonths: DefaultHorizonMonths,
		Description:   "Next 12 months (default)",
	}
}
