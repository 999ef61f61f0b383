package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lynkerai/truechart/internal/storage/models"
)

// ErrMalformedVerdict marks a reasoning-service response that failed schema
// validation. The whole payload is discarded; the core never keeps a
// half-trusted external object.
var ErrMalformedVerdict = errors.New("agent: malformed verdict payload")

// Verdict is a validated reasoning-service judgment about one chart.
type Verdict struct {
	Confidence  models.Confidence `json:"confidence"`
	Score       float64           `json:"score"`
	Supporting  []string          `json:"supporting_points"`
	Conflicting []string          `json:"conflicting_points"`
	Summary     string            `json:"summary"`
	Provider    string            `json:"provider,omitempty"`
	Fallback    bool              `json:"fallback"`
}

// ParseVerdict validates a raw reasoning response. Required keys: confidence
// (an allowed enum value or a number in [0,1]), supporting_points and
// conflicting_points (lists of strings), summary (string). Any missing key or
// type mismatch rejects the entire payload.
func ParseVerdict(raw string) (*Verdict, error) {
	payload := stripCodeFence(raw)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedVerdict, err)
	}

	confidence, score, err := parseConfidence(fields["confidence"])
	if err != nil {
		return nil, err
	}

	supporting, err := parseStringList(fields, "supporting_points")
	if err != nil {
		return nil, err
	}

	conflicting, err := parseStringList(fields, "conflicting_points")
	if err != nil {
		return nil, err
	}

	rawSummary, ok := fields["summary"]
	if !ok {
		return nil, fmt.Errorf("%w: missing summary", ErrMalformedVerdict)
	}
	var summary string
	if err := json.Unmarshal(rawSummary, &summary); err != nil || strings.TrimSpace(summary) == "" {
		return nil, fmt.Errorf("%w: summary is not a non-empty string", ErrMalformedVerdict)
	}

	return &Verdict{
		Confidence:  confidence,
		Score:       score,
		Supporting:  supporting,
		Conflicting: conflicting,
		Summary:     summary,
	}, nil
}

func parseConfidence(raw json.RawMessage) (models.Confidence, float64, error) {
	if raw == nil {
		return "", 0, fmt.Errorf("%w: missing confidence", ErrMalformedVerdict)
	}

	var tier string
	if err := json.Unmarshal(raw, &tier); err == nil {
		switch models.Confidence(strings.ToLower(tier)) {
		case models.ConfidenceHigh:
			return models.ConfidenceHigh, 0.9, nil
		case models.ConfidenceMid:
			return models.ConfidenceMid, 0.7, nil
		case models.ConfidenceLow:
			return models.ConfidenceLow, 0.3, nil
		default:
			return "", 0, fmt.Errorf("%w: confidence %q not in allowed set", ErrMalformedVerdict, tier)
		}
	}

	var score float64
	if err := json.Unmarshal(raw, &score); err != nil {
		return "", 0, fmt.Errorf("%w: confidence is neither tier nor number", ErrMalformedVerdict)
	}
	if score < 0 || score > 1 {
		return "", 0, fmt.Errorf("%w: confidence %.3f outside [0,1]", ErrMalformedVerdict, score)
	}

	switch {
	case score >= 0.85:
		return models.ConfidenceHigh, score, nil
	case score >= 0.65:
		return models.ConfidenceMid, score, nil
	default:
		return models.ConfidenceLow, score, nil
	}
}

func parseStringList(fields map[string]json.RawMessage, key string) ([]string, error) {
	raw, ok := fields[key]
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedVerdict, key)
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("%w: %s is not a list of strings", ErrMalformedVerdict, key)
	}
	return list, nil
}

// stripCodeFence removes a surrounding markdown fence; reasoning services
// wrap JSON that way more often than not.
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// FallbackVerdict is the deterministic rule-based substitute used whenever no
// provider produced a valid verdict: a presence-of-evidence heuristic over
// the chart's categorical fields and the profile's narrated events.
func FallbackVerdict(chart *models.Chart, profile *models.LifeProfile) *Verdict {
	var present int
	for _, field := range []string{"ziwei_palace", "main_star", "shen_palace"} {
		if chart.Field(field) != "" {
			present++
		}
	}

	score := float64(present) / 4.0
	if strings.TrimSpace(chart.Notes) != "" {
		score += 0.25
	}

	supporting := make([]string, 0, present)
	for _, field := range []string{"ziwei_palace", "main_star", "shen_palace"} {
		if v := chart.Field(field); v != "" {
			supporting = append(supporting, fmt.Sprintf("%s recorded as %s", field, v))
		}
	}

	var conflicting []string
	if len(profile.Events) == 0 {
		conflicting = append(conflicting, "no narrated life events to weigh against the chart")
	}
	if strings.TrimSpace(chart.Notes) == "" {
		conflicting = append(conflicting, "chart carries no annotation text")
	}

	confidence := models.ConfidenceLow
	if score >= 0.75 && len(profile.Events) > 0 {
		confidence = models.ConfidenceMid
	}

	return &Verdict{
		Confidence:  confidence,
		Score:       score,
		Supporting:  supporting,
		Conflicting: conflicting,
		Summary:     "rule-based assessment substituted for an unavailable or malformed reasoning response",
		Provider:    "rule-based",
		Fallback:    true,
	}
}
