// Package router decides the conversation mode for a turn.
//
// The router is a pure function of its inputs: the same state snapshot,
// message, and action id always produce the same decision. Missing or
// incomplete birth details gate everything else.
package router

import (
	"log/slog"
	"strings"

	"github.com/nirolabs/niro/internal/models"
)

// Decision is the mode and optional focus resolved for one turn.
type Decision struct {
	Mode  models.Mode
	Focus models.FocusArea // empty when no focus resolved
}

// actionToFocus maps UI action ids to focus areas. Marriage and romance
// actions collapse into the single relationship focus.
var actionToFocus = map[string]models.FocusArea{
	"focus_career":       models.FocusCareer,
	"focus_relationship": models.FocusRelationship,
	"focus_marriage":     models.FocusRelationship,
	"focus_money":        models.FocusFinance,
	"focus_finance":      models.FocusFinance,
	"focus_health":       models.FocusHealth,
	"focus_spirituality": models.FocusSpirituality,

	"ask_career":       models.FocusCareer,
	"ask_relationship": models.FocusRelationship,
	"ask_money":        models.FocusFinance,
	"ask_health":       models.FocusHealth,
}

// focusOrder fixes the tie-break order for keyword scoring.
var focusOrder = []models.FocusArea{
	models.FocusCareer,
	models.FocusRelationship,
	models.FocusHealth,
	models.FocusFinance,
	models.FocusSpirituality,
}

// focusKeywords is the narrower keyword set used for focus resolution.
// Multi-word entries match as phrases and score double.
var focusKeywords = map[models.FocusArea][]string{
	models.FocusCareer: {
		"job", "career", "work", "office", "promotion", "business",
		"profession", "interview", "startup", "salary hike",
	},
	models.FocusRelationship: {
		"love", "relationship", "marriage", "partner", "spouse",
		"dating", "romance", "breakup", "soulmate", "twin flame",
	},
	models.FocusHealth: {
		"health", "energy", "tired", "stress", "sleep", "illness",
		"fitness", "anxiety", "mental health",
	},
	models.FocusFinance: {
		"money", "income", "salary", "finance", "investment", "wealth",
		"debt", "loan", "savings", "mutual fund", "real estate",
	},
	models.FocusSpirituality: {
		"spiritual", "meditation", "karma", "purpose", "soul",
		"moksha", "dharma", "mantra", "past life",
	},
}

// Route resolves the mode and focus for a turn. Incomplete birth details
// force ModeNeedsBirthDetails regardless of message or action. With
// complete details the mode is ModeNormalReading, and focus follows the
// action/keyword/carry-over precedence.
func Route(state *models.ConversationState, message, actionID string) Decision {
	if state == nil || !state.BirthDetails.Complete() {
		slog.Debug("router.Route: birth details incomplete, gating to needs-details mode")
		return Decision{Mode: models.ModeNeedsBirthDetails}
	}

	decision := Decision{Mode: models.ModeNormalReading, Focus: resolveFocus(state, message, actionID)}
	slog.Debug("router.Route: resolved decision", "mode", decision.Mode, "focus", decision.Focus)
	return decision
}

func resolveFocus(state *models.ConversationState, message, actionID string) models.FocusArea {
	if actionID != "" {
		if focus, ok := actionToFocus[actionID]; ok {
			return focus
		}
	}
	if focus, score := scoreFocus(message); score > 0 {
		return focus
	}
	return state.Focus
}

// scoreFocus scores each focus area against the message. Single-word hits
// count 1, phrase hits count 2; ties break by the fixed area order.
func scoreFocus(message string) (models.FocusArea, int) {
	lower := strings.ToLower(message)
	words := make(map[string]bool)
	for _, w := range strings.Fields(lower) {
		words[strings.Trim(w, ".,!?;:'\"()")] = true
	}

	var best models.FocusArea
	bestScore := 0
	for _, area := range focusOrder {
		score := 0
		for _, kw := range focusKeywords[area] {
			if strings.ContainsRune(kw, ' ') {
				if strings.Contains(lower, kw) {
					score += 2
				}
			} else if words[kw] {
				score++
			}
		}
		if score > bestScore {
			best = area
			bestScore = score
		}
	}
	return best, bestScore
}
