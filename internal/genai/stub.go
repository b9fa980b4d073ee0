// Package genai generates the astrologer reply from the feature bundle.
//
// This file implements the deterministic stub generator used as the
// final link in the fallback chain and in environments without an API key.
package genai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nirolabs/niro/internal/models"
)

// StubGenerator produces a deterministic, clearly templated reply from
// the feature bundle alone. It never fails.
type StubGenerator struct{}

// NewStubGenerator creates the deterministic fallback generator.
func NewStubGenerator() *StubGenerator {
	return &StubGenerator{}
}

func (s *StubGenerator) Generate(ctx context.Context, payload models.GeneratorPayload) (models.NiroReply, error) {
	slog.Warn("StubGenerator.Generate: serving deterministic fallback reply", "mode", payload.Mode, "topic", payload.Topic)

	if payload.Mode == models.ModeNeedsBirthDetails {
		return models.NiroReply{
			RawText: "I need your birth details to provide personalized insights.",
			Summary: "To give you accurate astrological guidance, I need your birth details, that is your date, time, and place of birth.",
			Reasons: []string{
				"Ascendant calculated from birth time forms the foundation of your chart",
				"Planetary positions from birth date shape your life themes",
			},
			Remedies: []string{},
		}, nil
	}

	f := payload.Features
	ascendant := orDefault(f.Ascendant, "Aries")
	moonSign := orDefault(f.MoonSign, "Cancer")
	mahadasha := "Jupiter"
	if f.Mahadasha != nil {
		mahadasha = f.Mahadasha.Planet
	}

	summary := fmt.Sprintf("With %s Ascendant and %s Moon, your %s area is influenced by the %s Mahadasha.",
		ascendant, moonSign, payload.Topic, mahadasha)

	return models.NiroReply{
		RawText: fmt.Sprintf("SUMMARY:\n%s\n\nREASONS:\n- %s Ascendant shapes your approach to %s\n- %s Moon influences emotional patterns\n- Current %s period brings specific themes",
			summary, ascendant, payload.Topic, moonSign, mahadasha),
		Summary: summary,
		Reasons: []string{
			fmt.Sprintf("%s Ascendant shapes how you naturally handle %s", ascendant, payload.Topic),
			fmt.Sprintf("%s Moon influences your %s decisions", moonSign, payload.Topic),
			fmt.Sprintf("%s Mahadasha brings focus to this life phase", mahadasha),
		},
		Remedies: []string{},
	}, nil
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
