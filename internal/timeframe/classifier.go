// Package timeframe classifies the time horizon of a user question.
//
// It evaluates an ordered list of regex rules from most specific to least
// specific; the first match wins. Numeric captures are normalized to months
// (1 day ~ 1/30 month, 1 year = 12 months). The result is advisory input to
// the feature builder's windowing logic, never authoritative on its own.
package timeframe

import (
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/nirolabs/niro/internal/models"
)

// rule pairs a pattern with either a fixed result or a numeric capture.
type rule struct {
	re      *regexp.Regexp
	kind    models.TimeframeType
	value   int     // fixed value when numeric is false
	horizon float64 // fixed horizon when numeric is false
	numeric bool    // extract the value from the first digit group
}

// Rules are ordered most specific first: explicit day/week phrases before
// month phrases before year phrases before vague long-term phrases.
var rules = []rule{
	// Days and weeks
	{re: regexp.MustCompile(`(this|next)\s+week`), kind: models.TimeframeWeeks, value: 1, horizon: 0.25},
	{re: regexp.MustCompile(`(next|coming)\s+(\d+)\s+days?`), kind: models.TimeframeDays, numeric: true},
	{re: regexp.MustCompile(`\b(today|now|immediate|urgent)\b`), kind: models.TimeframeDays, value: 7, horizon: 0.25},

	// Months
	{re: regexp.MustCompile(`(this|current)\s+month`), kind: models.TimeframeMonths, value: 1, horizon: 1},
	{re: regexp.MustCompile(`(next|coming)\s+month\b`), kind: models.TimeframeMonths, value: 1, horizon: 1},
	{re: regexp.MustCompile(`(next|coming)\s+(\d+)\s+months?`), kind: models.TimeframeMonths, numeric: true},
	{re: regexp.MustCompile(`(next\s+)?few\s+months`), kind: models.TimeframeMonths, value: 3, horizon: 3},
	{re: regexp.MustCompile(`(next\s+)?several\s+months`), kind: models.TimeframeMonths, value: 6, horizon: 6},

	// Years
	{re: regexp.MustCompile(`(this|current)\s+year`), kind: models.TimeframeYears, value: 1, horizon: 12},
	{re: regexp.MustCompile(`(next|coming)\s+year\b`), kind: models.TimeframeYears, value: 1, horizon: 12},
	{re: regexp.MustCompile(`(next|coming)\s+(\d+)(?:-|\s+to\s+)?(\d+)?\s+years?`), kind: models.TimeframeYears, numeric: true},
	{re: regexp.MustCompile(`(next\s+)?few\s+years`), kind: models.TimeframeYears, value: 2, horizon: 24},
	{re: regexp.MustCompile(`long\s+term`), kind: models.TimeframeYears, value: 5, horizon: 60},
}

// Classify detects the time horizon of a question. No match yields the
// default 12-month horizon.
func Classify(question string) models.TimeframeResult {
	lower := strings.ToLower(question)

	for _, r := range rules {
		m := r.re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}

		if !r.numeric {
			result := models.TimeframeResult{
				Type:          r.kind,
				Value:         r.value,
				HorizonMonths: r.horizon,
				Description:   fmt.Sprintf("Next %d %s", r.value, r.kind),
			}
			slog.Debug("timeframe.Classify: matched fixed rule", "type", result.Type, "horizonMonths", result.HorizonMonths)
			return result
		}

		value := firstNumericGroup(m)
		if value <= 0 {
			continue
		}

		var horizon float64
		switch r.kind {
		case models.TimeframeDays:
			horizon = math.Round(float64(value)/30*10) / 10
		case models.TimeframeMonths:
			horizon = float64(value)
		case models.TimeframeYears:
			horizon = float64(value) * 12
		default:
			horizon = models.DefaultHorizonMonths
		}

		result := models.TimeframeResult{
			Type:          r.kind,
			Value:         value,
			HorizonMonths: horizon,
			Description:   fmt.Sprintf("Next %d %s", value, r.kind),
		}
		slog.Debug("timeframe.Classify: matched numeric rule", "type", result.Type, "value", value, "horizonMonths", horizon)
		return result
	}

	slog.Debug("timeframe.Classify: no temporal phrase detected, using default horizon")
	return models.DefaultTimeframe()
}

// firstNumericGroup returns the first all-digit capture group, or 0.
func firstNumericGroup(groups []string) int {
	for _, g := range groups[1:] {
		if g == "" {
			continue
		}
		if n, err := strconv.Atoi(g); err == nil {
			return n
		}
	}
	return 0
}
