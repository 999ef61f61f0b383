package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lynkerai/truechart/internal/storage/models"
)

const validPayload = `{
	"confidence": "high",
	"supporting_points": ["late marriage aligns", "wealth pattern aligns"],
	"conflicting_points": [],
	"summary": "the chart explains the narrated life well"
}`

func TestParseVerdictValid(t *testing.T) {
	v, err := ParseVerdict(validPayload)
	require.NoError(t, err)

	assert.Equal(t, models.ConfidenceHigh, v.Confidence)
	assert.Len(t, v.Supporting, 2)
	assert.Empty(t, v.Conflicting)
	assert.NotEmpty(t, v.Summary)
	assert.False(t, v.Fallback)
}

func TestParseVerdictCodeFence(t *testing.T) {
	v, err := ParseVerdict("```json\n" + validPayload + "\n```")
	require.NoError(t, err)
	assert.Equal(t, models.ConfidenceHigh, v.Confidence)
}

func TestParseVerdictNumericConfidence(t *testing.T) {
	cases := []struct {
		raw  string
		want models.Confidence
	}{
		{"0.9", models.ConfidenceHigh},
		{"0.85", models.ConfidenceHigh},
		{"0.7", models.ConfidenceMid},
		{"0.3", models.ConfidenceLow},
	}

	for _, tc := range cases {
		payload := `{"confidence": ` + tc.raw + `,
			"supporting_points": [], "conflicting_points": [], "summary": "s"}`
		v, err := ParseVerdict(payload)
		require.NoError(t, err, "confidence %s", tc.raw)
		assert.Equal(t, tc.want, v.Confidence, "confidence %s", tc.raw)
	}
}

func TestParseVerdictRejectsMalformedPayloads(t *testing.T) {
	cases := map[string]string{
		"not json":                 `late marriage aligns with the chart`,
		"missing confidence":       `{"supporting_points": [], "conflicting_points": [], "summary": "s"}`,
		"unknown tier":             `{"confidence": "certain", "supporting_points": [], "conflicting_points": [], "summary": "s"}`,
		"confidence out of range":  `{"confidence": 1.5, "supporting_points": [], "conflicting_points": [], "summary": "s"}`,
		"missing supporting":       `{"confidence": "high", "conflicting_points": [], "summary": "s"}`,
		"supporting wrong type":    `{"confidence": "high", "supporting_points": "none", "conflicting_points": [], "summary": "s"}`,
		"missing summary":          `{"confidence": "high", "supporting_points": [], "conflicting_points": []}`,
		"blank summary":            `{"confidence": "high", "supporting_points": [], "conflicting_points": [], "summary": "  "}`,
		"list of non-strings":      `{"confidence": "high", "supporting_points": [1, 2], "conflicting_points": [], "summary": "s"}`,
		"summary wrong type":       `{"confidence": "high", "supporting_points": [], "conflicting_points": [], "summary": 7}`,
		"conflicting wrong type":   `{"confidence": "high", "supporting_points": [], "conflicting_points": {}, "summary": "s"}`,
		"confidence unusable type": `{"confidence": [], "supporting_points": [], "conflicting_points": [], "summary": "s"}`,
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseVerdict(payload)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedVerdict)
		})
	}
}

func TestFallbackVerdict(t *testing.T) {
	chart := &models.Chart{
		ID: "chart-1",
		Fields: map[string]string{
			"ziwei_palace": "命宫",
			"main_star":    "紫微",
			"shen_palace":  "财帛",
		},
		Notes: "late marriage",
	}
	profile := &models.LifeProfile{
		SubjectID: "subject-1",
		Events:    []models.LifeEvent{{Description: "married at 35", Weight: 1.0}},
	}

	v := FallbackVerdict(chart, profile)

	assert.True(t, v.Fallback)
	assert.Equal(t, "rule-based", v.Provider)
	assert.InDelta(t, 1.0, v.Score, 1e-9)
	assert.Equal(t, models.ConfidenceMid, v.Confidence)
	assert.Len(t, v.Supporting, 3)
	assert.NotEmpty(t, v.Summary)
}

func TestFallbackVerdictSparseChart(t *testing.T) {
	chart := &models.Chart{ID: "chart-2"}
	profile := &models.LifeProfile{SubjectID: "subject-2"}

	v := FallbackVerdict(chart, profile)

	assert.True(t, v.Fallback)
	assert.Equal(t, models.ConfidenceLow, v.Confidence)
	assert.Equal(t, 0.0, v.Score)
	assert.NotEmpty(t, v.Conflicting)
}

func TestFallbackVerdictDeterministic(t *testing.T) {
	chart := &models.Chart{
		ID:     "chart-3",
		Fields: map[string]string{"ziwei_palace": "命宫"},
		Notes:  "some notes",
	}
	profile := &models.LifeProfile{SubjectID: "subject-3"}

	first := FallbackVerdict(chart, profile)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, FallbackVerdict(chart, profile))
	}
}
