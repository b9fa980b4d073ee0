// Package extract turns free text into structured birth-detail candidates.
//
// This file implements the LLM-backed secondary extractor using the OpenAI
// chat completions API with temperature 0 and strict JSON output.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/nirolabs/niro/internal/models"
)

const extractionSystemPrompt = `Extract birth details ONLY. Return STRICT JSON with keys ` +
	`"dob" (YYYY-MM-DD), "tob" (HH:MM, 24h), "location" (city name), and optional "timezone" ` +
	`(UTC offset as a number). Use null for fields you cannot determine. No prose.`

// chatCompletions is the minimal OpenAI surface the extractor needs.
type chatCompletions interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// LLMExtractor implements Secondary using OpenAI chat completions.
type LLMExtractor struct {
	completions chatCompletions
	model       string
}

// NewLLMExtractor creates a secondary extractor with the given API key.
func NewLLMExtractor(apiKey, model string) (*LLMExtractor, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key not set")
	}
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &LLMExtractor{completions: &client.Chat.Completions, model: model}, nil
}

// llmBirthDetails is the JSON shape requested from the model.
type llmBirthDetails struct {
	DOB      string   `json:"dob"`
	TOB      string   `json:"tob"`
	Location string   `json:"location"`
	Timezone *float64 `json:"timezone"`
}

// ExtractBirthDetails asks the model for structured birth details.
func (e *LLMExtractor) ExtractBirthDetails(ctx context.Context, text string) (*models.BirthDetails, error) {
	slog.Debug("LLMExtractor.ExtractBirthDetails: invoking secondary extraction", "model", e.model)

	resp, err := e.completions.New(ctx, openai.ChatCompletionNewParams{
		Model: e.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(extractionSystemPrompt),
			openai.UserMessage(text),
		},
		Temperature: openai.Float(0),
		MaxTokens:   openai.Int(120),
	})
	if err != nil {
		return nil, fmt.Errorf("secondary extraction request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("secondary extraction returned no choices")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.Trim(content, "` \n")

	var parsed llmBirthDetails
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("secondary extraction returned invalid JSON: %w", err)
	}

	details := &models.BirthDetails{
		DOB:      parsed.DOB,
		TOB:      parsed.TOB,
		Location: parsed.Location,
		Timezone: models.DefaultTimezoneOffset,
	}
	if parsed.Timezone != nil {
		details.Timezone = *parsed.Timezone
	}

	slog.Debug("LLMExtractor.ExtractBirthDetails: parsed secondary result",
		"hasDate", details.DOB != "", "hasTime", details.TOB != "", "hasLocation", details.Location != "")
	return details, nil
}
