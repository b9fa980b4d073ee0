package timeframe

import (
	"testing"

	"github.com/nirolabs/niro/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		question    string
		wantType    models.TimeframeType
		wantValue   int
		wantHorizon float64
	}{
		{"explicit months", "What does my career look like in the next 3 months?", models.TimeframeMonths, 3, 3},
		{"explicit years", "Will I get married in the next 2 years?", models.TimeframeYears, 2, 24},
		{"explicit days", "Anything important in the coming 15 days?", models.TimeframeDays, 15, 0.5},
		{"this week", "How is this week looking for me?", models.TimeframeWeeks, 1, 0.25},
		{"immediate", "What should I do right now?", models.TimeframeDays, 7, 0.25},
		{"this month", "Money this month?", models.TimeframeMonths, 1, 1},
		{"few months", "Should I change jobs in the next few months?", models.TimeframeMonths, 3, 3},
		{"several months", "Health over the next several months?", models.TimeframeMonths, 6, 6},
		{"next year", "What about next year?", models.TimeframeYears, 1, 12},
		{"year range", "Will I settle abroad in the next 2-3 years?", models.TimeframeYears, 2, 24},
		{"few years", "Plans for the next few years?", models.TimeframeYears, 2, 24},
		{"long term", "What is my long term career direction?", models.TimeframeYears, 5, 60},
		{"no temporal phrase", "Tell me about my marriage prospects", models.TimeframeDefault, 12, 12},
		{"empty message", "", models.TimeframeDefault, 12, 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.question)
			if got.Type != tt.wantType {
				t.Errorf("type = %q, want %q", got.Type, tt.wantType)
			}
			if got.Value != tt.wantValue {
				t.Errorf("value = %d, want %d", got.Value, tt.wantValue)
			}
			if got.HorizonMonths != tt.wantHorizon {
				t.Errorf("horizonMonths = %v, want %v", got.HorizonMonths, tt.wantHorizon)
			}
		})
	}
}

func TestClassifyDaysBeforeMonths(t *testing.T) {
	// Day phrases are more specific and must win over month phrases when
	// both could match.
	got := Classify("next 10 days or maybe this month")
	if got.Type != models.TimeframeDays {
		t.Errorf("type = %q, want days", got.Type)
	}
}

func TestClassifyHorizonNonNegative(t *testing.T) {
	for _, q := range []string{"next 0 months", "next 1 days", "whatever", "long term future"} {
		got := Classify(q)
		if got.HorizonMonths < 0 {
			t.Errorf("Classify(%q).HorizonMonths = %v, want >= 0", q, got.HorizonMonths)
		}
	}
}
