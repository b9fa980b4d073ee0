// Package orchestrator sequences the conversation pipeline.
//
// This file builds the suggested follow-up actions offered after a turn.
package orchestrator

import (
	"github.com/nirolabs/niro/internal/models"
)

// MaxSuggestedActions caps the follow-up chips offered after a turn.
const MaxSuggestedActions = 4

// topicToAskAction maps topics back to the ask action that targets them,
// so the active topic is not re-suggested.
var topicToAskAction = map[models.Topic]string{
	models.TopicCareer:            "ask_career",
	models.TopicRomanticRelations: "ask_relationship",
	models.TopicMoney:             "ask_money",
	models.TopicHealthEnergy:      "ask_health",
}

var askActionLabels = []models.SuggestedAction{
	{ID: "ask_career", Label: "Career outlook"},
	{ID: "ask_relationship", Label: "Love & relationships"},
	{ID: "ask_money", Label: "Money & finances"},
	{ID: "ask_health", Label: "Health & energy"},
}

// buildSuggestedActions returns the follow-up chips for the turn just
// completed. In needs-details mode the chips guide the user toward
// sharing birth details; in normal mode they offer a deep dive on the
// active topic, the first retrospective reading, and adjacent topics.
func buildSuggestedActions(state *models.ConversationState, topic models.Topic) []models.SuggestedAction {
	if state.Mode == models.ModeNeedsBirthDetails {
		return []models.SuggestedAction{
			{ID: "birth_details_help", Label: "What details do you need?"},
			{ID: "birth_details_example", Label: "Show me an example"},
		}
	}

	actions := make([]models.SuggestedAction, 0, MaxSuggestedActions)
	if topic != models.TopicGeneral && topic != models.TopicDailyGuidance {
		actions = append(actions, models.SuggestedAction{ID: "deep_dive", Label: "Go deeper on this"})
	}
	if !state.HasDoneRetro {
		actions = append(actions, models.SuggestedAction{ID: "past_themes", Label: "What shaped my recent past?"})
	}
	actions = append(actions, models.SuggestedAction{ID: "daily_guidance", Label: "Today's guidance"})

	active := topicToAskAction[topic]
	for _, ask := range askActionLabels {
		if len(actions) >= MaxSuggestedActions {
			break
		}
		if ask.ID == active {
			continue
		}
		actions = append(actions, ask)
	}
	if len(actions) > MaxSuggestedActions {
		actions = actions[:MaxSuggestedActions]
	}
	return actions
}
