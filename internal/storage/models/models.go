package models

import "time"

// Chart is a structured birth-record candidate produced by the digitizer.
// The core treats it as read-only; only shape checks are applied to
// externally-sourced instances.
type Chart struct {
	ID            string            `json:"chart_id"`
	SourceTag     string            `json:"source"`
	BirthDatetime string            `json:"birth_datetime"`
	Fields        map[string]string `json:"fields"`
	Notes         string            `json:"notes"`
}

// Field returns a categorical field value, or "" when the digitizer omitted it.
func (c *Chart) Field(name string) string {
	if c.Fields == nil {
		return ""
	}
	return c.Fields[name]
}

// LifeEvent is a single narrated fact with a learned importance weight.
type LifeEvent struct {
	Description string  `json:"desc"`
	Weight      float64 `json:"weight"`
	Category    string  `json:"category,omitempty"`
}

type LifeProfile struct {
	SubjectID      string      `json:"subject_id"`
	CareerType     string      `json:"career_type"`
	MarriageStatus string      `json:"marriage_status"`
	Children       int         `json:"children"`
	Events         []LifeEvent `json:"events"`
}

// DerivedTags summarize a profile independent of chart matching; they feed
// same-destiny lookups downstream.
type DerivedTags struct {
	CareerType     string  `json:"career_type"`
	MarriageStatus string  `json:"marriage_status"`
	Children       int     `json:"children"`
	StudyAbroad    bool    `json:"study_abroad"`
	MajorAccident  *string `json:"major_accident"`
}

type Confidence string

const (
	ConfidenceHigh Confidence = "high"
	ConfidenceMid  Confidence = "mid"
	ConfidenceLow  Confidence = "low"
)

// Band is the finer five-level scale used when reconciling two independent
// chart-family verdicts for the same subject.
type Band string

const (
	BandHigh    Band = "high"
	BandMidHigh Band = "mid-high"
	BandMid     Band = "mid"
	BandLowMid  Band = "low-mid"
	BandLow     Band = "low"
)

// EventMatch records how one life event fared against a chart's features.
type EventMatch struct {
	Event       LifeEvent `json:"event"`
	BestSim     float64   `json:"best_sim"`
	BestFeature string    `json:"best_feature,omitempty"`
}

type VerificationResult struct {
	SubjectID  string       `json:"subject_id"`
	ChartID    string       `json:"chart_id"`
	Score      float64      `json:"score"`
	Confidence Confidence   `json:"confidence"`
	Matched    []EventMatch `json:"matched_events"`
	Unmatched  []EventMatch `json:"unmatched_events"`
	Tags       DerivedTags  `json:"life_tags"`
	Fallback   bool         `json:"fallback,omitempty"`
	Note       string       `json:"note,omitempty"`
	VerifiedAt time.Time    `json:"verified_at"`
}

type CandidateRanking struct {
	SubjectID string               `json:"subject_id"`
	Results   []VerificationResult `json:"results"`
	BestMatch *string              `json:"best_match"`
}

type CompatibilityScore struct {
	ChartAID       string   `json:"chart_a_id"`
	ChartBID       string   `json:"chart_b_id"`
	Score          int      `json:"score"`
	MatchingFields []string `json:"matching_fields"`
	Comment        string   `json:"comment,omitempty"`
}

// MatchResult is one row of a same-destiny recommendation run.
type MatchResult struct {
	ChartAID       string    `json:"chart_a_id"`
	ChartBID       string    `json:"chart_b_id"`
	Score          int       `json:"score"`
	MatchingFields []string  `json:"matching_fields"`
	Comment        string    `json:"comment"`
	ComputedAt     time.Time `json:"computed_at"`
}

// PatternInsight is a mined co-occurrence regularity across stored charts.
type PatternInsight struct {
	Pattern string    `json:"pattern"`
	Count   int       `json:"count"`
	Insight string    `json:"insight"`
	MinedAt time.Time `json:"mined_at"`
}
