// Package topics defines the topic taxonomy for NIRO conversations.
//
// It holds the action-id mapping, the keyword sets used for topic
// classification, and the static chart-lever table that scopes chart data
// to a topic.
package topics

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/nirolabs/niro/internal/models"
)

// ChartLevers is the curated subset of chart factors relevant to a topic.
// Static and read-only, keyed by topic.
type ChartLevers struct {
	Houses           []int
	Planets          []string // planet names or relative refs like "10th Lord"
	DivisionalCharts []string
	KeyFactors       []string
}

// ActionToTopic maps UI action ids to topics. An entry mapping to
// TopicGeneral with preserve semantics is handled separately below.
var ActionToTopic = map[string]models.Topic{
	"focus_career":       models.TopicCareer,
	"focus_relationship": models.TopicRomanticRelations,
	"focus_marriage":     models.TopicMarriagePartnership,
	"focus_money":        models.TopicMoney,
	"focus_finance":      models.TopicMoney,
	"focus_health":       models.TopicHealthEnergy,
	"focus_family":       models.TopicFamilyHome,
	"focus_education":    models.TopicLearningEducation,
	"focus_spirituality": models.TopicSpirituality,
	"focus_travel":       models.TopicTravelRelocation,

	"ask_career":       models.TopicCareer,
	"ask_relationship": models.TopicRomanticRelations,
	"ask_money":        models.TopicMoney,
	"ask_health":       models.TopicHealthEnergy,
	"ask_timing":       models.TopicGeneral,

	"daily_guidance": models.TopicDailyGuidance,
	"weekly_outlook": models.TopicDailyGuidance,
	"past_themes":    models.TopicGeneral,

	"compatibility": models.TopicRomanticRelations,
}

// preserveActions keep the current topic instead of remapping.
var preserveActions = map[string]bool{
	"deep_dive": true,
	"go_deeper": true,
}

// Keywords maps each topic to its keyword set. Multi-word entries are
// matched as phrases and score double.
var Keywords = map[models.Topic][]string{
	models.TopicCareer: {
		"job", "career", "work", "office", "boss", "promotion", "startup",
		"company", "profession", "employment", "colleague", "interview",
		"resign", "fired", "hired", "workplace", "business", "venture",
		"entrepreneur", "corporate", "salary hike", "appraisal", "project",
	},
	models.TopicRomanticRelations: {
		"love", "crush", "dating", "boyfriend", "girlfriend", "romantic",
		"attraction", "relationship", "romance", "flirt", "breakup",
		"ex", "feelings", "chemistry", "soulmate", "twin flame",
	},
	models.TopicMarriagePartnership: {
		"marriage", "husband", "wife", "spouse", "wedding", "married",
		"divorce", "engagement", "partner", "matrimony", "manglik",
		"compatibility", "kundli matching", "vivah", "shaadi",
	},
	models.TopicMoney: {
		"money", "income", "salary", "finance", "investment", "debt",
		"loan", "wealth", "rich", "poor", "savings", "stock", "trading",
		"real estate", "property", "inheritance", "financial", "profit",
		"loss", "expense", "budget", "crypto", "mutual fund",
	},
	models.TopicFamilyHome: {
		"family", "mother", "father", "parents", "home", "house",
		"children", "kids", "son", "daughter", "sibling", "brother",
		"sister", "relatives", "in-laws", "ancestral", "property",
		"domestic", "household",
	},
	models.TopicFriendsSocial: {
		"friend", "friends", "social", "party", "networking", "group",
		"community", "circle", "connections", "acquaintance", "peers",
	},
	models.TopicLearningEducation: {
		"study", "exam", "college", "university", "course", "degree",
		"learning", "skill", "education", "school", "student", "teacher",
		"training", "certification", "academic", "research", "phd",
		"masters", "bachelors", "competitive exam", "upsc", "cat", "gmat",
	},
	models.TopicHealthEnergy: {
		"health", "tired", "energy", "fitness", "diet", "stress",
		"sleep", "illness", "disease", "doctor", "hospital", "medicine",
		"surgery", "mental", "anxiety", "depression", "wellness",
		"fatigue", "chronic", "recovery",
	},
	models.TopicSpirituality: {
		"spiritual", "meditation", "karma", "purpose", "soul", "inner",
		"enlightenment", "guru", "temple", "prayer", "mantra", "moksha",
		"dharma", "divine", "consciousness", "awakening", "past life",
		"astral", "intuition",
	},
	models.TopicTravelRelocation: {
		"travel", "trip", "abroad", "relocate", "move", "foreign",
		"immigration", "visa", "overseas", "settle", "migration",
		"country", "city", "shifting", "transfer",
	},
	models.TopicLegalContracts: {
		"court", "legal", "contract", "case", "lawsuit", "lawyer",
		"litigation", "dispute", "agreement", "settlement", "judge",
		"police", "crime",
	},
	models.TopicSelfPsychology: {
		"personality", "character", "nature", "myself", "identity",
		"confidence", "self-esteem", "who am i", "purpose", "life path",
		"destiny", "potential", "strengths", "weaknesses",
	},
	models.TopicDailyGuidance: {
		"today", "daily", "now", "this week", "this month", "guidance",
		"current", "immediate", "right now", "tomorrow",
	},
}

// leverTable maps each topic to its chart levers.
var leverTable = map[models.Topic]ChartLevers{
	models.TopicSelfPsychology: {
		Houses:           []int{1, 4, 5, 12},
		Planets:          []string{"Lagna Lord", "Moon", "Rahu", "Ketu"},
		DivisionalCharts: []string{"D1"},
		KeyFactors:       []string{"ascendant_strength", "moon_stability", "atmakaraka"},
	},
	models.TopicCareer: {
		Houses:           []int{2, 6, 10, 11},
		Planets:          []string{"10th Lord", "Sun", "Saturn", "Rahu", "Mercury"},
		DivisionalCharts: []string{"D1", "D10"},
		KeyFactors:       []string{"10th_house_strength", "saturn_position", "career_yogas"},
	},
	models.TopicMoney: {
		Houses:           []int{2, 11, 8, 5},
		Planets:          []string{"Jupiter", "Venus", "2nd Lord", "11th Lord"},
		DivisionalCharts: []string{"D1"},
		KeyFactors:       []string{"dhana_yogas", "2nd_11th_connection", "jupiter_strength"},
	},
	models.TopicRomanticRelations: {
		Houses:           []int{5, 7, 8},
		Planets:          []string{"Venus", "Moon", "Mars", "5th Lord"},
		DivisionalCharts: []string{"D1", "D9"},
		KeyFactors:       []string{"venus_strength", "5th_house_romance", "emotional_compatibility"},
	},
	models.TopicMarriagePartnership: {
		Houses:           []int{7, 8, 2, 4},
		Planets:          []string{"7th Lord", "Venus", "Jupiter", "Mars"},
		DivisionalCharts: []string{"D1", "D9"},
		KeyFactors:       []string{"7th_house_strength", "navamsa_7th", "manglik_dosha"},
	},
	models.TopicFamilyHome: {
		Houses:           []int{2, 4, 8},
		Planets:          []string{"Moon", "4th Lord", "Venus"},
		DivisionalCharts: []string{"D1", "D4"},
		KeyFactors:       []string{"4th_house_strength", "moon_position", "ancestral_karma"},
	},
	models.TopicFriendsSocial: {
		Houses:           []int{3, 11},
		Planets:          []string{"Mercury", "11th Lord", "3rd Lord"},
		DivisionalCharts: []string{"D1"},
		KeyFactors:       []string{"11th_house_gains", "social_yogas"},
	},
	models.TopicLearningEducation: {
		Houses:           []int{3, 4, 5, 9},
		Planets:          []string{"Mercury", "Jupiter", "5th Lord", "9th Lord"},
		DivisionalCharts: []string{"D1", "D24"},
		KeyFactors:       []string{"mercury_strength", "5th_9th_axis", "vidya_yogas"},
	},
	models.TopicHealthEnergy: {
		Houses:           []int{1, 6, 8, 12},
		Planets:          []string{"Lagna Lord", "Sun", "Mars", "Saturn"},
		DivisionalCharts: []string{"D1"},
		KeyFactors:       []string{"ascendant_vitality", "6th_house_diseases", "sun_strength"},
	},
	models.TopicSpirituality: {
		Houses:           []int{5, 9, 12},
		Planets:          []string{"Jupiter", "Ketu", "9th Lord", "12th Lord"},
		DivisionalCharts: []string{"D1", "D20"},
		KeyFactors:       []string{"moksha_houses", "jupiter_ketu_connection", "dharma_trikona"},
	},
	models.TopicTravelRelocation: {
		Houses:           []int{3, 4, 9, 12},
		Planets:          []string{"Rahu", "9th Lord", "12th Lord", "4th Lord"},
		DivisionalCharts: []string{"D1"},
		KeyFactors:       []string{"foreign_settlement_yoga", "4th_12th_connection", "rahu_position"},
	},
	models.TopicLegalContracts: {
		Houses:           []int{6, 7, 9},
		Planets:          []string{"Mars", "Saturn", "6th Lord", "7th Lord"},
		DivisionalCharts: []string{"D1"},
		KeyFactors:       []string{"6th_house_disputes", "mars_saturn_aspect", "legal_yogas"},
	},
	models.TopicDailyGuidance: {
		Houses:           []int{1, 5, 9},
		Planets:          []string{"Moon", "Lagna Lord"},
		DivisionalCharts: []string{"D1"},
		KeyFactors:       []string{"current_transits", "moon_transit", "dasha_timing"},
	},
	models.TopicGeneral: {
		Houses:           []int{1, 5, 9, 10},
		Planets:          []string{"Lagna Lord", "Moon", "Sun", "Jupiter"},
		DivisionalCharts: []string{"D1"},
		KeyFactors:       []string{"dharma_trikona", "overall_strength"},
	},
}

// YogaCategories maps topics to the yoga categories surfaced for them.
// Generically positive categories (raja, dhana) surface for every topic.
var YogaCategories = map[models.Topic][]string{
	models.TopicCareer:              {"raja", "pancha_mahapurusha"},
	models.TopicMoney:               {"dhana"},
	models.TopicRomanticRelations:   {"relationship"},
	models.TopicMarriagePartnership: {"relationship", "raja"},
	models.TopicHealthEnergy:        {"arishta"},
	models.TopicSpirituality:        {"sannyasa", "moksha"},
}

var wordRe = regexp.MustCompile(`[a-z0-9]+(?:-[a-z0-9]+)*`)

// Classify resolves the topic for a message. Resolution order, each step
// short-circuiting: explicit action id, keyword scoring, carried-over
// current topic, then the general default. Explicit user intent always
// outranks inferred intent, which outranks session memory.
func Classify(message, actionID string, currentTopic models.Topic) models.Topic {
	if actionID != "" {
		if preserveActions[actionID] && currentTopic != "" {
			slog.Debug("topics.Classify: preserve action keeps current topic", "actionID", actionID, "topic", currentTopic)
			return currentTopic
		}
		if mapped, ok := ActionToTopic[actionID]; ok {
			slog.Debug("topics.Classify: topic from action id", "actionID", actionID, "topic", mapped)
			return mapped
		}
	}

	if topic, score := ScoreKeywords(message); score > 0 {
		slog.Debug("topics.Classify: topic from keywords", "topic", topic, "score", score)
		return topic
	}

	if currentTopic != "" {
		slog.Debug("topics.Classify: keeping current topic", "topic", currentTopic)
		return currentTopic
	}

	slog.Debug("topics.Classify: defaulting to general topic")
	return models.TopicGeneral
}

// ScoreKeywords scores each topic against the message: single-word hits
// count 1, multi-word phrase hits count 2. The highest-scoring topic wins;
// ties break by enumeration order. Returns score 0 when nothing matched.
func ScoreKeywords(message string) (models.Topic, int) {
	lower := strings.ToLower(message)
	words := make(map[string]bool)
	for _, w := range wordRe.FindAllString(lower, -1) {
		words[w] = true
	}

	best := models.TopicGeneral
	bestScore := 0
	for _, topic := range models.AllTopics {
		score := 0
		for _, kw := range Keywords[topic] {
			if strings.ContainsRune(kw, ' ') {
				if strings.Contains(lower, kw) {
					score += 2
				}
			} else if words[kw] {
				score++
			}
		}
		if score > bestScore {
			best = topic
			bestScore = score
		}
	}
	return best, bestScore
}

// Levers returns the chart levers for a topic. An unknown topic resolves
// to the general levers; this lookup never fails.
func Levers(topic models.Topic) ChartLevers {
	if levers, ok := leverTable[topic]; ok {
		return levers
	}
	return leverTable[models.TopicGeneral]
}

// YogaCategoriesFor returns the yoga categories mapped to a topic.
func YogaCategoriesFor(topic models.Topic) []string {
	return YogaCategories[topic]
}

// SuggestedForMode returns the topics offered as suggestions for a mode.
func SuggestedForMode(mode models.Mode) []models.Topic {
	if mode == models.ModeNeedsBirthDetails {
		return nil
	}
	return []models.Topic{
		models.TopicCareer,
		models.TopicRomanticRelations,
		models.TopicMoney,
		models.TopicDailyGuidance,
	}
}
