// Package astro supplies natal-chart and transit data.
//
// This file implements the feature builder: it scopes chart and transit
// data to the active topic via the chart levers and emits the bounded
// AstroFeatures bundle. The builder is a pure function of its inputs, so
// identical inputs always produce byte-identical output.
package astro

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/nirolabs/niro/internal/models"
	"github.com/nirolabs/niro/internal/topics"
)

// Transit windowing relative to now, in days.
const (
	transitTrailingDays = 180
	transitLeadingDays  = 365
	pastEventDays       = 730
	timingWindowDays    = 545
)

// BuildInput carries everything the builder needs for one bundle.
type BuildInput struct {
	Profile  *models.AstroProfile
	Transits *models.AstroTransits
	Mode     models.Mode
	Topic    models.Topic
	Now      time.Time
	// Timeframe is advisory input to windowing, never authoritative.
	Timeframe *models.TimeframeResult
	// Retrospective widens the bundle with past-event analysis.
	Retrospective bool
}

var houseSignificance = map[int]string{
	1:  "Self, personality, physical body, vitality",
	2:  "Wealth, family, speech, values",
	3:  "Siblings, courage, short travels, communication",
	4:  "Home, mother, emotions, inner peace, property",
	5:  "Intelligence, children, creativity, romance, education",
	6:  "Enemies, diseases, debts, service, daily work",
	7:  "Marriage, partnerships, business, public dealings",
	8:  "Longevity, transformation, hidden matters, inheritance",
	9:  "Fortune, dharma, higher learning, father, spirituality",
	10: "Career, reputation, status, public image, authority",
	11: "Gains, income, friends, aspirations, elder siblings",
	12: "Losses, expenses, foreign lands, moksha, isolation",
}

var planetSignificance = map[string]string{
	"Sun":     "Soul, authority, father, vitality, ego, government",
	"Moon":    "Mind, emotions, mother, nurturing, public, liquids",
	"Mars":    "Energy, courage, siblings, property, aggression, blood",
	"Mercury": "Intelligence, communication, business, skin, nervous system",
	"Jupiter": "Wisdom, expansion, teachers, children, dharma, wealth",
	"Venus":   "Love, beauty, luxury, spouse, arts, vehicles, pleasures",
	"Saturn":  "Discipline, delays, karma, longevity, service, restrictions",
	"Rahu":    "Obsession, foreign, unconventional, sudden gains, illusion",
	"Ketu":    "Spirituality, detachment, past karma, moksha, intuition",
}

// transitThemes tabulates (planet, house) themes for past events.
var transitThemes = map[string]string{
	"Saturn/10":  "Career restructuring, professional challenges",
	"Saturn/7":   "Relationship testing, commitment decisions",
	"Jupiter/10": "Career expansion, recognition opportunities",
	"Jupiter/2":  "Financial growth, value reassessment",
	"Rahu/10":    "Unconventional career moves, ambition surge",
	"Mars/10":    "Career drive, potential conflicts at work",
}

var houseNumberRe = regexp.MustCompile(`(\d+)`)

// Build produces the topic-scoped feature bundle. Unknown topics resolve
// to the general levers; missing chart data drops the specific factor
// instead of failing the turn.
func Build(in BuildInput) models.AstroFeatures {
	levers := topics.Levers(in.Topic)
	slog.Debug("astro.Build: building features",
		"mode", in.Mode, "topic", in.Topic, "houses", len(levers.Houses), "planets", len(levers.Planets))

	features := models.AstroFeatures{
		BirthDetails: models.BirthSummary{
			DOB:      in.Profile.BirthDetails.DOB,
			TOB:      in.Profile.BirthDetails.TOB,
			Location: in.Profile.BirthDetails.Location,
		},
		Ascendant:          in.Profile.Ascendant,
		AscendantNakshatra: in.Profile.AscendantNakshatra,
		MoonSign:           in.Profile.MoonSign,
		MoonNakshatra:      in.Profile.MoonNakshatra,
		SunSign:            in.Profile.SunSign,
		Mahadasha:          summarizeDasha(in.Profile.CurrentMahadasha),
		Antardasha:         summarizeDasha(in.Profile.CurrentAntardasha),
		FocusFactors:       buildFocusFactors(in.Profile, levers),
		KeyRules:           buildKeyRules(in.Profile, in.Transits, levers),
		Transits:           filterTransits(in.Transits, levers.Houses, in.Now, in.Timeframe),
		PlanetaryStrengths: buildStrengths(in.Profile, levers.Planets),
		Yogas:              filterYogas(in.Profile.Yogas, in.Topic),
		TimingWindows:      buildTimingWindows(in.Profile, in.Transits, levers.Houses, in.Now),
	}
	if in.Retrospective {
		features.PastEvents = buildPastEvents(in.Profile, in.Transits, levers.Houses, in.Now)
	} else {
		features.PastEvents = []models.PastEvent{}
	}
	return features
}

func summarizeDasha(d *models.DashaInfo) *models.DashaSummary {
	if d == nil {
		return nil
	}
	return &models.DashaSummary{
		Planet:         d.Planet,
		StartDate:      d.StartDate.Format("2006-01-02"),
		EndDate:        d.EndDate.Format("2006-01-02"),
		YearsRemaining: d.YearsRemaining,
	}
}

// buildFocusFactors emits a record per lever house and per resolved lever
// planet reference, capped at MaxFocusFactors.
func buildFocusFactors(profile *models.AstroProfile, levers topics.ChartLevers) []models.FocusFactor {
	factors := make([]models.FocusFactor, 0, len(levers.Houses)+len(levers.Planets))

	for _, houseNum := range levers.Houses {
		house := profile.GetHouse(houseNum)
		if house == nil {
			continue
		}
		factor := models.FocusFactor{
			Type:         "house",
			House:        houseNum,
			Sign:         house.Sign,
			Lord:         house.SignLord,
			Occupants:    house.Planets,
			Significance: houseSignificance[houseNum],
		}
		if lord := profile.GetPlanet(house.SignLord); lord != nil {
			factor.LordHouse = lord.House
			factor.LordSign = lord.Sign
			factor.LordDignity = lord.Dignity
		}
		factors = append(factors, factor)
	}

	for _, ref := range levers.Planets {
		name := resolvePlanetReference(ref, profile)
		if name == "" {
			continue
		}
		planet := profile.GetPlanet(name)
		if planet == nil {
			continue
		}
		factors = append(factors, models.FocusFactor{
			Type:          "planet",
			Planet:        name,
			Reference:     ref,
			Sign:          planet.Sign,
			House:         planet.House,
			Nakshatra:     planet.Nakshatra,
			Dignity:       planet.Dignity,
			IsRetrograde:  planet.IsRetrograde,
			IsCombust:     planet.IsCombust,
			StrengthScore: planet.StrengthScore,
			Significance:  planetSignificance[name],
		})
	}

	if len(factors) > models.MaxFocusFactors {
		factors = factors[:models.MaxFocusFactors]
	}
	return factors
}

// resolvePlanetReference resolves relative references like "10th Lord" or
// "Lagna Lord" to a planet name. Returns "" when unresolvable.
func resolvePlanetReference(ref string, profile *models.AstroProfile) string {
	for _, planet := range models.Planets {
		if ref == planet {
			return planet
		}
	}
	if strings.Contains(ref, "Lord") {
		if strings.Contains(ref, "Lagna") || strings.Contains(ref, "1st") {
			return profile.HouseLord(1)
		}
		if m := houseNumberRe.FindString(ref); m != "" {
			var houseNum int
			fmt.Sscanf(m, "%d", &houseNum)
			return profile.HouseLord(houseNum)
		}
	}
	return ""
}

// aspectedHouse is the house seven positions forward, modulo twelve.
func aspectedHouse(from int) int {
	return (from+6)%12 + 1
}

// buildKeyRules evaluates the fixed named conditions against the chart
// and returns the firing subset, capped at MaxKeyRules.
func buildKeyRules(profile *models.AstroProfile, transits *models.AstroTransits, levers topics.ChartLevers) []models.KeyRule {
	var rules []models.KeyRule

	saturn := profile.GetPlanet("Saturn")
	moon := profile.GetPlanet("Moon")
	if saturn != nil && moon != nil && aspectedHouse(saturn.House) == moon.House {
		strength := "medium"
		if saturn.Dignity == "exalted" || saturn.Dignity == "own" {
			strength = "strong"
		}
		rules = append(rules, models.KeyRule{
			ID:       "SATURN_ASPECT_MOON",
			Meaning:  "Saturn's aspect on Moon brings emotional discipline but can cause heaviness",
			Strength: strength,
			Planets:  []string{"Saturn", "Moon"},
			House:    moon.House,
		})
	}

	if jupiter := profile.GetPlanet("Jupiter"); jupiter != nil {
		for _, houseNum := range topHouses(levers.Houses, 2) {
			if aspectedHouse(jupiter.House) != houseNum {
				continue
			}
			strength := "strong"
			if jupiter.Dignity == "debilitated" {
				strength = "weak"
			}
			rules = append(rules, models.KeyRule{
				ID:       fmt.Sprintf("JUPITER_ASPECT_%dTH", houseNum),
				Meaning:  fmt.Sprintf("Jupiter's aspect on the %dth house brings expansion and blessings", houseNum),
				Strength: strength,
				Planets:  []string{"Jupiter"},
				House:    houseNum,
			})
		}
	}

	if maha := profile.CurrentMahadasha; maha != nil {
		rule := models.KeyRule{
			ID:       "MAHADASHA_" + strings.ToUpper(maha.Planet),
			Meaning:  fmt.Sprintf("%s Mahadasha emphasizes themes of %s", maha.Planet, planetSignificance[maha.Planet]),
			Strength: "strong",
			Planets:  []string{maha.Planet},
			Window:   fmt.Sprintf("%.1f years remaining", maha.YearsRemaining),
		}
		if pos := profile.GetPlanet(maha.Planet); pos != nil {
			rule.House = pos.House
		}
		rules = append(rules, rule)
	}

	for i, event := range transits.Events {
		if i >= 5 {
			break
		}
		if event.Strength != "strong" {
			continue
		}
		target := event.ToSign
		if target == "" {
			target = fmt.Sprintf("house %d", event.AffectedHouse)
		}
		window := "From " + event.StartDate.Format("2006-01-02")
		if !event.EndDate.IsZero() {
			window = event.StartDate.Format("2006-01-02") + " to " + event.EndDate.Format("2006-01-02")
		}
		rules = append(rules, models.KeyRule{
			ID:       fmt.Sprintf("TRANSIT_%s_%s", strings.ToUpper(event.Planet), strings.ToUpper(event.EventType)),
			Meaning:  fmt.Sprintf("%s %s affecting %s", event.Planet, event.EventType, target),
			Strength: event.Strength,
			Planets:  []string{event.Planet},
			House:    event.AffectedHouse,
			Window:   window,
		})
	}

	if len(rules) > models.MaxKeyRules {
		rules = rules[:models.MaxKeyRules]
	}
	return rules
}

// filterTransits keeps events starting within the trailing/leading window
// whose affected house is topic-relevant, strongest first, capped at
// MaxTransits. A long timeframe stretches the leading window.
func filterTransits(transits *models.AstroTransits, relevantHouses []int, now time.Time, tf *models.TimeframeResult) []models.TransitSummary {
	leadingDays := transitLeadingDays
	if tf != nil {
		if horizon := int(tf.HorizonMonths * 30); horizon > leadingDays {
			leadingDays = horizon
		}
	}
	pastCutoff := now.AddDate(0, 0, -transitTrailingDays)
	futureCutoff := now.AddDate(0, 0, leadingDays)

	var kept []models.TransitEvent
	for _, event := range transits.Events {
		if event.StartDate.Before(pastCutoff) || event.StartDate.After(futureCutoff) {
			continue
		}
		if event.AffectedHouse == 0 || !containsInt(relevantHouses, event.AffectedHouse) {
			continue
		}
		kept = append(kept, event)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		ri, rj := strengthRank(kept[i].Strength), strengthRank(kept[j].Strength)
		if ri != rj {
			return ri < rj
		}
		return kept[i].StartDate.Before(kept[j].StartDate)
	})
	if len(kept) > models.MaxTransits {
		kept = kept[:models.MaxTransits]
	}

	summaries := make([]models.TransitSummary, 0, len(kept))
	for _, event := range kept {
		summary := models.TransitSummary{
			Planet:        event.Planet,
			EventType:     event.EventType,
			Sign:          event.ToSign,
			AffectedHouse: event.AffectedHouse,
			StartDate:     event.StartDate.Format("2006-01-02"),
			Nature:        event.Nature,
			Strength:      event.Strength,
		}
		if !event.EndDate.IsZero() {
			summary.EndDate = event.EndDate.Format("2006-01-02")
		}
		summaries = append(summaries, summary)
	}
	return summaries
}

func buildStrengths(profile *models.AstroProfile, planetRefs []string) []models.PlanetStrength {
	strengths := make([]models.PlanetStrength, 0, len(planetRefs))
	for _, ref := range planetRefs {
		name := resolvePlanetReference(ref, profile)
		if name == "" {
			continue
		}
		planet := profile.GetPlanet(name)
		if planet == nil {
			continue
		}
		strengths = append(strengths, models.PlanetStrength{
			Planet:        name,
			Sign:          planet.Sign,
			Dignity:       planet.Dignity,
			StrengthScore: planet.StrengthScore,
			IsRetrograde:  planet.IsRetrograde,
			Nakshatra:     planet.Nakshatra,
		})
	}
	return strengths
}

// filterYogas keeps yogas whose category is topic-mapped or generically
// positive (raja/dhana), so strong positive yogas surface for almost
// every topic. Capped at MaxYogas, strongest first.
func filterYogas(yogas []models.YogaInfo, topic models.Topic) []models.YogaInfo {
	relevant := topics.YogaCategoriesFor(topic)
	filtered := make([]models.YogaInfo, 0, len(yogas))
	for _, yoga := range yogas {
		if containsString(relevant, yoga.Category) || yoga.Category == "raja" || yoga.Category == "dhana" {
			filtered = append(filtered, yoga)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return strengthRank(filtered[i].Strength) < strengthRank(filtered[j].Strength)
	})
	if len(filtered) > models.MaxYogas {
		filtered = filtered[:models.MaxYogas]
	}
	return filtered
}

// buildPastEvents collects trailing-window transits in topic-relevant
// houses, each annotated with a theme, capped at MaxPastEvents.
func buildPastEvents(profile *models.AstroProfile, transits *models.AstroTransits, relevantHouses []int, now time.Time) []models.PastEvent {
	pastStart := now.AddDate(0, 0, -pastEventDays)

	events := make([]models.PastEvent, 0, models.MaxPastEvents)
	for _, transit := range transits.Events {
		if transit.StartDate.Before(pastStart) || !transit.StartDate.Before(now) {
			continue
		}
		if !containsInt(relevantHouses, transit.AffectedHouse) {
			continue
		}
		events = append(events, models.PastEvent{
			Period:    transit.StartDate.Format("January 2006"),
			Planet:    transit.Planet,
			EventType: transit.EventType,
			House:     transit.AffectedHouse,
			Theme:     themeForTransit(transit.Planet, transit.AffectedHouse),
			Nature:    transit.Nature,
		})
	}

	if maha := profile.CurrentMahadasha; maha != nil {
		events = append(events, models.PastEvent{
			Period:    "Current Period",
			Planet:    maha.Planet,
			EventType: "mahadasha",
			Theme:     maha.Planet + " period themes",
			Nature:    "ongoing",
		})
	}

	if len(events) > models.MaxPastEvents {
		events = events[:models.MaxPastEvents]
	}
	return events
}

// themeForTransit looks up the tabulated (planet, house) theme, falling
// back to a generic phrase from the house significance.
func themeForTransit(planet string, house int) string {
	if theme, ok := transitThemes[fmt.Sprintf("%s/%d", planet, house)]; ok {
		return theme
	}
	significance := houseSignificance[house]
	if idx := strings.Index(significance, ","); idx > 0 {
		significance = significance[:idx]
	}
	return fmt.Sprintf("%s influence on %s", planet, strings.ToLower(significance))
}

// buildTimingWindows classifies upcoming strong topic-relevant transits
// as favorable/challenging/mixed, capped at MaxTimingWindows.
func buildTimingWindows(profile *models.AstroProfile, transits *models.AstroTransits, relevantHouses []int, now time.Time) []models.TimingWindow {
	futureEnd := now.AddDate(0, 0, timingWindowDays)

	windows := make([]models.TimingWindow, 0, models.MaxTimingWindows)
	for _, transit := range transits.Events {
		if transit.StartDate.Before(now) || transit.StartDate.After(futureEnd) {
			continue
		}
		if transit.Strength != "strong" || !containsInt(relevantHouses, transit.AffectedHouse) {
			continue
		}
		nature := "mixed"
		switch transit.Nature {
		case models.TransitNatureBenefic:
			nature = "favorable"
		case models.TransitNatureMalefic:
			nature = "challenging"
		}
		period := transit.StartDate.Format("January 2006") + " - ongoing"
		if !transit.EndDate.IsZero() {
			period = transit.StartDate.Format("January 2006") + " - " + transit.EndDate.Format("January 2006")
		}
		windows = append(windows, models.TimingWindow{
			Period:   period,
			Nature:   nature,
			Trigger:  transit.Planet + " " + transit.EventType,
			House:    transit.AffectedHouse,
			Activity: activityForWindow(nature),
		})
	}

	if antar := profile.CurrentAntardasha; antar != nil {
		trigger := antar.Planet + " period"
		if maha := profile.CurrentMahadasha; maha != nil {
			trigger = maha.Planet + "-" + antar.Planet + " period"
		}
		windows = append(windows, models.TimingWindow{
			Period:   "Current Antardasha (" + antar.Planet + ")",
			Nature:   "ongoing",
			Trigger:  trigger,
			Activity: "Themes of both planets are active",
		})
	}

	if len(windows) > models.MaxTimingWindows {
		windows = windows[:models.MaxTimingWindows]
	}
	return windows
}

func activityForWindow(nature string) string {
	switch nature {
	case "favorable":
		return "Good time for new initiatives and decisions"
	case "challenging":
		return "Focus on consolidation and careful planning"
	default:
		return "Mixed results - proceed with awareness"
	}
}

func topHouses(houses []int, n int) []int {
	if len(houses) > n {
		return houses[:n]
	}
	return houses
}

func strengthRank(strength string) int {
	switch strength {
	case "strong":
		return 0
	case "medium":
		return 1
	default:
		return 2
	}
}

func containsInt(list []int, v int) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
