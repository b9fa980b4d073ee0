// Package genai generates the astrologer reply from the feature bundle.
//
// The pipeline only sees the Generator contract: a payload of mode,
// topic, question and features in; a structured reply out. Provider
// failures are handled by the fallback chain, never surfaced raw.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/nirolabs/niro/internal/models"
)

const systemPrompt = `You are NIRO, a concise, insightful Vedic astrologer.

Your purpose:
1. Answer ONLY the user's question directly and concisely
2. Use ONLY the astro data provided as your astrological source
3. If data is missing or inconclusive, state uncertainty instead of guessing
4. Never generate full reports unless explicitly asked
5. Use the topic to scope your answer appropriately

MANDATORY RESPONSE STRUCTURE:

SUMMARY:
[2-3 concise lines directly answering the user's question]

REASONS:
- [Chart Factor]: [Effect and interpretation]
(2-4 bullets maximum, using ONLY the provided astro data)

REMEDIES:
(Only include if the chart shows a clear challenge)
- [Simple remedy]

RULES:
- Use possibility language: "This phase tends to...", "You may experience..."
- Never claim certainty: avoid "This will happen"
- Stay warm, grounded, conversational
- Be extremely concise`

// Generator produces a structured reply from the generation payload.
type Generator interface {
	Generate(ctx context.Context, payload models.GeneratorPayload) (models.NiroReply, error)
}

// chatCompletions is the minimal OpenAI surface the generator needs.
type chatCompletions interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Client implements Generator on the OpenAI chat completions API.
type Client struct {
	completions chatCompletions
	model       string
}

// Opts holds configuration options for the OpenAI generator.
type Opts struct {
	APIKey string
	Model  string
}

// Option defines a configuration option for the OpenAI generator.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) {
		o.APIKey = key
	}
}

// WithModel overrides the chat model.
func WithModel(model string) Option {
	return func(o *Opts) {
		o.Model = model
	}
}

// NewClient creates an OpenAI-backed generator.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key not set")
	}
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4oMini
	}
	client := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	slog.Debug("genai.NewClient: created generator", "model", cfg.Model)
	return &Client{completions: &client.Chat.Completions, model: cfg.Model}, nil
}

// Generate asks the model for a reply and parses the sectioned output.
func (c *Client) Generate(ctx context.Context, payload models.GeneratorPayload) (models.NiroReply, error) {
	slog.Info("genai.Generate: generating reply", "mode", payload.Mode, "topic", payload.Topic)

	resp, err := c.completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(buildUserPrompt(payload)),
		},
		Temperature: openai.Float(0.7),
		MaxTokens:   openai.Int(800),
	})
	if err != nil {
		return models.NiroReply{}, fmt.Errorf("generation request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return models.NiroReply{}, fmt.Errorf("generation returned no choices")
	}
	return ParseReply(resp.Choices[0].Message.Content), nil
}

// buildUserPrompt renders the payload into the generation prompt. The
// feature lists are already capped upstream; the prompt trims further to
// keep the context small.
func buildUserPrompt(payload models.GeneratorPayload) string {
	f := payload.Features
	var b strings.Builder

	fmt.Fprintf(&b, "CONTEXT:\nMode: %s\nTopic: %s\n\n", payload.Mode, payload.Topic)
	fmt.Fprintf(&b, "USER QUESTION:\n%s\n\n", payload.UserQuestion)
	b.WriteString("ASTRO DATA:\n\nCore Chart:\n")
	fmt.Fprintf(&b, "- Ascendant: %s\n- Moon Sign: %s\n- Sun Sign: %s\n", orNA(f.Ascendant), orNA(f.MoonSign), orNA(f.SunSign))

	b.WriteString("\nCurrent Dasha:\n")
	if f.Mahadasha != nil {
		fmt.Fprintf(&b, "- Mahadasha: %s (%.1f years remaining)\n", f.Mahadasha.Planet, f.Mahadasha.YearsRemaining)
	} else {
		b.WriteString("- Mahadasha: N/A\n")
	}
	if f.Antardasha != nil {
		fmt.Fprintf(&b, "- Antardasha: %s\n", f.Antardasha.Planet)
	}

	b.WriteString("\nTopic-Specific Factors:\n")
	for i, factor := range f.FocusFactors {
		if i >= 8 {
			break
		}
		if factor.Type == "house" {
			fmt.Fprintf(&b, "  - House %d: %s sign, Lord %s\n", factor.House, factor.Sign, factor.Lord)
		} else {
			fmt.Fprintf(&b, "  - %s: %s (house %d), %s\n", factor.Planet, factor.Sign, factor.House, factor.Dignity)
		}
	}

	b.WriteString("\nKey Rules:\n")
	for _, rule := range f.KeyRules {
		fmt.Fprintf(&b, "  - %s\n", rule.Meaning)
	}

	b.WriteString("\nRelevant Transits:\n")
	for i, transit := range f.Transits {
		if i >= 5 {
			break
		}
		fmt.Fprintf(&b, "  - %s %s affecting house %d (%s)\n", transit.Planet, transit.EventType, transit.AffectedHouse, transit.Nature)
	}

	if len(f.PastEvents) > 0 {
		b.WriteString("\nPast Themes:\n")
		for _, event := range f.PastEvents {
			fmt.Fprintf(&b, "  - %s: %s\n", event.Period, event.Theme)
		}
	}
	if len(f.TimingWindows) > 0 {
		b.WriteString("\nTiming Windows:\n")
		for _, window := range f.TimingWindows {
			fmt.Fprintf(&b, "  - %s: %s (%s)\n", window.Period, window.Trigger, window.Nature)
		}
	}

	b.WriteString("\nINSTRUCTIONS:\n- Answer ONLY the user question above\n- Use ONLY the astro data provided\n- Follow the 3-part structure: SUMMARY, REASONS, REMEDIES\n- Be concise and direct")
	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// ParseReply splits sectioned generator output into a structured reply.
// Text before any section header counts toward the summary.
func ParseReply(text string) models.NiroReply {
	reply := models.NiroReply{RawText: text}
	var reasons, remedies []string
	var summaryParts []string

	section := ""
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		switch {
		case strings.Contains(lower, "summary") && strings.Contains(line, ":"):
			section = "summary"
			if after := strings.TrimSpace(strings.SplitN(line, ":", 2)[1]); after != "" {
				summaryParts = append(summaryParts, after)
			}
			continue
		case strings.Contains(lower, "reason") && strings.Contains(line, ":"):
			section = "reasons"
			continue
		case strings.Contains(lower, "remed") && strings.Contains(line, ":"):
			section = "remedies"
			continue
		}

		switch section {
		case "summary", "":
			summaryParts = append(summaryParts, line)
		case "reasons":
			if clean := cleanBullet(line); len(clean) > 10 {
				reasons = append(reasons, clean)
			}
		case "remedies":
			if clean := cleanBullet(line); len(clean) > 10 {
				remedies = append(remedies, clean)
			}
		}
	}

	reply.Summary = strings.Join(summaryParts, " ")
	if reply.Summary == "" {
		if len(text) > 300 {
			text = text[:300]
		}
		reply.Summary = text
	}
	if len(reasons) == 0 {
		reasons = []string{"Based on your chart analysis"}
	}
	if len(reasons) > 4 {
		reasons = reasons[:4]
	}
	if len(remedies) > 2 {
		remedies = remedies[:2]
	}
	reply.Reasons = reasons
	reply.Remedies = remedies
	return reply
}

func cleanBullet(line string) string {
	return strings.TrimSpace(strings.TrimLeft(line, "-•*0123456789.) "))
}
