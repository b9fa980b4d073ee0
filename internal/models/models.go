// Package models defines the core data structures for NIRO.
//
// It includes conversation state, birth details, chat request/response types,
// and the topic/mode enumerations shared across modules.
package models

import (
	"errors"
	"time"
)

// Mode identifies the conversation mode for a session.
type Mode string

const (
	// ModeNeedsBirthDetails indicates birth details are absent or incomplete.
	ModeNeedsBirthDetails Mode = "NEEDS_BIRTH_DETAILS"
	// ModeNormalReading indicates the session can proceed to readings.
	ModeNormalReading Mode = "NORMAL_READING"
)

// IsValidMode checks if the given mode is supported.
func IsValidMode(m Mode) bool {
	switch m {
	case ModeNeedsBirthDetails, ModeNormalReading:
		return true
	default:
		return false
	}
}

// FocusArea is the narrower focus set resolved by the mode router.
type FocusArea string

const (
	FocusCareer       FocusArea = "career"
	FocusRelationship FocusArea = "relationship"
	FocusHealth       FocusArea = "health"
	FocusFinance      FocusArea = "finance"
	FocusSpirituality FocusArea = "spirituality"
)

// Topic is the closed topic taxonomy for NIRO conversations.
type Topic string

const (
	TopicSelfPsychology      Topic = "self_psychology"
	TopicCareer              Topic = "career"
	TopicMoney               Topic = "money"
	TopicRomanticRelations   Topic = "romantic_relationships"
	TopicMarriagePartnership Topic = "marriage_partnership"
	TopicFamilyHome          Topic = "family_home"
	TopicFriendsSocial       Topic = "friends_social"
	TopicLearningEducation   Topic = "learning_education"
	TopicHealthEnergy        Topic = "health_energy"
	TopicSpirituality        Topic = "spirituality"
	TopicTravelRelocation    Topic = "travel_relocation"
	TopicLegalContracts      Topic = "legal_contracts"
	TopicDailyGuidance       Topic = "daily_guidance"
	TopicGeneral             Topic = "general"
)

// AllTopics lists every topic in enumeration order. Classification
// tie-breaking relies on this ordering being stable.
var AllTopics = []Topic{
	TopicSelfPsychology,
	TopicCareer,
	TopicMoney,
	TopicRomanticRelations,
	TopicMarriagePartnership,
	TopicFamilyHome,
	TopicFriendsSocial,
	TopicLearningEducation,
	TopicHealthEnergy,
	TopicSpirituality,
	TopicTravelRelocation,
	TopicLegalContracts,
	TopicDailyGuidance,
	TopicGeneral,
}

// IsValidTopic checks if the topic is part of the closed taxonomy.
func IsValidTopic(t Topic) bool {
	for _, known := range AllTopics {
		if t == known {
			return true
		}
	}
	return false
}

// DefaultTimezoneOffset is used when birth details omit a timezone (IST).
const DefaultTimezoneOffset = 5.5

// BirthDetails holds the birth data needed for chart calculations.
// Once accepted it is replaced wholesale, never partially patched.
type BirthDetails struct {
	DOB       string   `json:"dob"`      // YYYY-MM-DD
	TOB       string   `json:"tob"`      // HH:MM, 24h
	Location  string   `json:"location"` // city, country
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Timezone  float64  `json:"timezone,omitempty"` // offset from UTC
}

// Complete reports whether all three required fields are present.
func (b *BirthDetails) Complete() bool {
	return b != nil && b.DOB != "" && b.TOB != "" && b.Location != ""
}

// ConversationState is the persisted state for a chat session.
// Invariant: Mode is ModeNeedsBirthDetails iff BirthDetails is incomplete.
type ConversationState struct {
	SessionID    string        `json:"session_id"`
	Mode         Mode          `json:"mode"`
	ActiveTopic  Topic         `json:"active_topic,omitempty"`
	Focus        FocusArea     `json:"focus,omitempty"`
	BirthDetails *BirthDetails `json:"birth_details,omitempty"`
	HasDoneRetro bool          `json:"has_done_retro"`
	MessageCount int           `json:"message_count"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// NewConversationState creates a fresh state for a session id.
func NewConversationState(sessionID string) *ConversationState {
	now := time.Now().UTC()
	return &ConversationState{
		SessionID: sessionID,
		Mode:      ModeNeedsBirthDetails,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validation constants for chat input.
const (
	// MaxMessageLength is the maximum allowed user message length.
	MaxMessageLength = 4096
)

// Error variables for better error handling and testability.
var (
	ErrEmptyMessage       = errors.New("message cannot be empty")
	ErrMessageTooLong     = errors.New("message exceeds maximum length")
	ErrMissingBirthFields = errors.New("birth details require dob, tob and location")
	ErrSessionNotFound    = errors.New("session not found")
)

// ChatRequest is the inbound payload for a chat turn.
type ChatRequest struct {
	SessionID    string        `json:"sessionId"`
	Message      string        `json:"message"`
	ActionID     string        `json:"actionId,omitempty"`
	BirthDetails *BirthDetails `json:"birthDetails,omitempty"`
}

// Validate performs input validation on a chat request.
func (r *ChatRequest) Validate() error {
	if r.Message == "" && r.ActionID == "" {
		return ErrEmptyMessage
	}
	if len(r.Message) > MaxMessageLength {
		return ErrMessageTooLong
	}
	if r.BirthDetails != nil && !r.BirthDetails.Complete() {
		return ErrMissingBirthFields
	}
	return nil
}

// NiroReply is the structured reply produced by the generator.
type NiroReply struct {
	RawText  string   `json:"rawText"`
	Summary  string   `json:"summary"`
	Reasons  []string `json:"reasons"`
	Remedies []string `json:"remedies"`
}

// SuggestedAction is a quick-reply chip offered after a turn.
type SuggestedAction struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// ChatResponse is the outbound payload for a chat turn.
type ChatResponse struct {
	SessionID        string            `json:"sessionId"`
	Reply            NiroReply         `json:"reply"`
	Mode             Mode              `json:"mode"`
	Topic            Topic             `json:"topic"`
	SuggestedActions []SuggestedAction `json:"suggestedActions"`
}

// GeneratorPayload is the only context the text generator may use.
type GeneratorPayload struct {
	Mode         Mode          `json:"mode"`
	Topic        Topic         `json:"topic"`
	UserQuestion string        `json:"user_question"`
	Features     AstroFeatures `json:"astro_features"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	APIStatusOK    APIStatus = "ok"
	APIStatusError APIStatus = "error"
)

// APIResponse is the standard envelope for HTTP responses.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
