package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/nirolabs/niro/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// scanSession scans a ConversationState from a single sql.Row.
func scanSession(row *sql.Row) (*models.ConversationState, error) {
	var state models.ConversationState
	var mode, topic, focus string
	var birthJSON sql.NullString
	err := row.Scan(&state.SessionID, &mode, &topic, &focus, &birthJSON,
		&state.HasDoneRetro, &state.MessageCount, &state.CreatedAt, &state.UpdatedAt)
	if err != nil {
		return nil, err
	}
	state.Mode = models.Mode(mode)
	state.ActiveTopic = models.Topic(topic)
	state.Focus = models.FocusArea(focus)
	if birthJSON.Valid && birthJSON.String != "" {
		var details models.BirthDetails
		if err := json.Unmarshal([]byte(birthJSON.String), &details); err != nil {
			return nil, fmt.Errorf("failed to decode birth details for %s: %w", state.SessionID, err)
		}
		state.BirthDetails = &details
	}
	return &state, nil
}

func marshalBirthDetails(details *models.BirthDetails) (string, error) {
	if details == nil {
		return "", nil
	}
	data, err := json.Marshal(details)
	if err != nil {
		return "", fmt.Errorf("failed to encode birth details: %w", err)
	}
	return string(data), nil
}

func marshalJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode value: %w", err)
	}
	return string(data), nil
}

func unmarshalProfile(profileJSON string) (*models.AstroProfile, error) {
	var profile models.AstroProfile
	if err := json.Unmarshal([]byte(profileJSON), &profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	return &profile, nil
}

func unmarshalTransits(transitsJSON string) (*models.AstroTransits, error) {
	var transits models.AstroTransits
	if err := json.Unmarshal([]byte(transitsJSON), &transits); err != nil {
		return nil, fmt.Errorf("failed to decode transits: %w", err)
	}
	return &transits, nil
}
