// Package extract turns free text into structured birth-detail candidates.
//
// A regex cascade runs first; a secondary LLM-based extractor is invoked
// only when the fast path is incomplete, to bound external-call cost.
// Extraction failure is not an error: it yields an absent candidate, which
// the mode router treats as "still need details".
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/nirolabs/niro/internal/models"
)

// Confidence weights per matched field. All three fields together reach
// the acceptance threshold.
const (
	dateConfidence     = 0.4
	timeConfidence     = 0.3
	locationConfidence = 0.3

	// AcceptThreshold is the confidence required to accept a candidate
	// without consulting the secondary extractor.
	AcceptThreshold = 0.9
)

// Candidate is a structured birth-detail candidate with its confidence.
type Candidate struct {
	Details    models.BirthDetails
	Confidence float64
}

// Secondary is an optional fallback extractor (typically LLM-based). Its
// result is accepted only if it independently supplies all three fields.
type Secondary interface {
	ExtractBirthDetails(ctx context.Context, text string) (*models.BirthDetails, error)
}

// Extractor runs the regex cascade with an optional secondary fallback.
type Extractor struct {
	secondary Secondary
}

// NewExtractor creates an extractor. The secondary may be nil.
func NewExtractor(secondary Secondary) *Extractor {
	slog.Debug("extract.NewExtractor: creating extractor", "hasSecondary", secondary != nil)
	return &Extractor{secondary: secondary}
}

var monthNumbers = map[string]string{
	"jan": "01", "feb": "02", "mar": "03", "apr": "04", "may": "05", "jun": "06",
	"jul": "07", "aug": "08", "sep": "09", "oct": "10", "nov": "11", "dec": "12",
}

var (
	// Numeric date formats, day first: DD/MM/YYYY, DD-MM-YYYY, DD.MM.YYYY.
	numericDateRe = regexp.MustCompile(`(\d{1,2})[/.-](\d{1,2})[/.-](\d{4})`)
	// ISO date format: YYYY-MM-DD.
	isoDateRe = regexp.MustCompile(`(\d{4})-(\d{1,2})-(\d{1,2})`)
	// Month-name format: DD MMM YYYY.
	monthNameDateRe = regexp.MustCompile(`(?i)(\d{1,2})\s+(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\s+(\d{4})`)

	// Time formats: HH:MM with optional meridiem, bare H am/pm.
	clockTimeRe    = regexp.MustCompile(`(?i)(\d{1,2}):(\d{2})\s*(am|pm)?`)
	meridiemOnlyRe = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(am|pm)\b`)

	// Location formats: "born in/at/from <Place>" and a trailing
	// comma-separated place ("..., Dehradun").
	markerLocationRe   = regexp.MustCompile(`\b(?:born\s+in|in|at|from)\s+([A-Z][a-zA-Z]+(?:[\s,]+[A-Z][a-zA-Z]+)*)`)
	trailingLocationRe = regexp.MustCompile(`,\s*([A-Z][a-zA-Z]+(?:\s+[A-Z][a-zA-Z]+)*)[.\s]*$`)
)

// Extract runs the cascade over the text. A nil candidate means absent.
// The secondary is consulted only when the fast path is incomplete.
func (e *Extractor) Extract(ctx context.Context, text string) (*Candidate, error) {
	candidate := e.extractRuleBased(text)
	if candidate != nil && candidate.Confidence >= AcceptThreshold {
		slog.Info("extract.Extract: fast path extracted all fields, skipping secondary",
			"confidence", candidate.Confidence, "location", candidate.Details.Location)
		return candidate, nil
	}

	if e.secondary == nil {
		slog.Debug("extract.Extract: fast path incomplete and no secondary configured")
		return nil, nil
	}

	slog.Info("extract.Extract: fast path incomplete, attempting secondary extraction")
	details, err := e.secondary.ExtractBirthDetails(ctx, text)
	if err != nil {
		// A secondary miss is not a turn failure; the router will ask again.
		slog.Warn("extract.Extract: secondary extraction failed", "error", err)
		return nil, nil
	}
	if !details.Complete() {
		slog.Debug("extract.Extract: secondary result incomplete, treating as absent")
		return nil, nil
	}
	if details.Timezone == 0 {
		details.Timezone = models.DefaultTimezoneOffset
	}
	return &Candidate{Details: *details, Confidence: AcceptThreshold}, nil
}

// extractRuleBased runs the regex cascade, accumulating confidence per
// matched field. Returns nil when no field matched at all.
func (e *Extractor) extractRuleBased(text string) *Candidate {
	var details models.BirthDetails
	var confidence float64

	if dob, ok := extractDate(text); ok {
		details.DOB = dob
		confidence += dateConfidence
	}
	if tob, ok := extractTime(text); ok {
		details.TOB = tob
		confidence += timeConfidence
	}
	if loc, ok := extractLocation(text); ok {
		details.Location = loc
		confidence += locationConfidence
	}

	if confidence == 0 {
		return nil
	}
	details.Timezone = models.DefaultTimezoneOffset
	slog.Debug("extract.extractRuleBased: cascade result",
		"hasDate", details.DOB != "", "hasTime", details.TOB != "", "hasLocation", details.Location != "", "confidence", confidence)
	return &Candidate{Details: details, Confidence: confidence}
}

// extractDate normalizes the first matched date to YYYY-MM-DD.
func extractDate(text string) (string, bool) {
	if m := monthNameDateRe.FindStringSubmatch(text); m != nil {
		month := monthNumbers[strings.ToLower(m[2])[:3]]
		return fmt.Sprintf("%s-%s-%s", m[3], month, pad2(m[1])), true
	}
	if m := isoDateRe.FindStringSubmatch(text); m != nil {
		return fmt.Sprintf("%s-%s-%s", m[1], pad2(m[2]), pad2(m[3])), true
	}
	if m := numericDateRe.FindStringSubmatch(text); m != nil {
		day, month := m[1], m[2]
		// Day-first convention; swap when the first component cannot be a day.
		if d, _ := strconv.Atoi(day); d > 31 {
			return "", false
		}
		if mo, _ := strconv.Atoi(month); mo > 12 {
			day, month = month, day
		}
		return fmt.Sprintf("%s-%s-%s", m[3], pad2(month), pad2(day)), true
	}
	return "", false
}

// extractTime normalizes the first matched time to HH:MM (24h).
// An ambiguous hour without meridiem and outside 0-23 is rejected, not
// guessed.
func extractTime(text string) (string, bool) {
	if m := clockTimeRe.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if tob, ok := normalizeTime(hour, minute, strings.ToLower(m[3])); ok {
			return tob, true
		}
	}
	if m := meridiemOnlyRe.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		if tob, ok := normalizeTime(hour, 0, strings.ToLower(m[2])); ok {
			return tob, true
		}
	}
	return "", false
}

func normalizeTime(hour, minute int, meridiem string) (string, bool) {
	if minute < 0 || minute > 59 {
		return "", false
	}
	switch meridiem {
	case "pm":
		if hour < 1 || hour > 12 {
			return "", false
		}
		if hour != 12 {
			hour += 12
		}
	case "am":
		if hour < 1 || hour > 12 {
			return "", false
		}
		if hour == 12 {
			hour = 0
		}
	default:
		if hour < 0 || hour > 23 {
			return "", false
		}
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), true
}

// extractLocation pulls the birth place from a location marker or a
// trailing comma-separated place name.
func extractLocation(text string) (string, bool) {
	if m := markerLocationRe.FindStringSubmatch(text); m != nil {
		loc := strings.TrimRight(strings.TrimSpace(m[1]), ",.")
		if len(loc) > 2 {
			return loc, true
		}
	}
	if m := trailingLocationRe.FindStringSubmatch(text); m != nil {
		loc := strings.TrimSpace(m[1])
		if len(loc) > 2 {
			return loc, true
		}
	}
	return "", false
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}
