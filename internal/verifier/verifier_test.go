package verifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lynkerai/truechart/internal/extract"
	"github.com/lynkerai/truechart/internal/similarity"
	"github.com/lynkerai/truechart/internal/storage/models"
)

func newTestVerifier() *Verifier {
	return New(extract.New(0), similarity.NewLexical(), DefaultThresholds())
}

func wealthProfile() *models.LifeProfile {
	return &models.LifeProfile{
		SubjectID: "subject-1",
		Events: []models.LifeEvent{
			{Description: "married at 35", Weight: 1.2},
			{Description: "changed jobs 4 times", Weight: 1.0},
			{Description: "inherited wealth at 40", Weight: 1.5},
		},
	}
}

func TestVerifyAllEventsMatched(t *testing.T) {
	v := newTestVerifier()

	chart := &models.Chart{
		ID:    "chart-1",
		Notes: "late marriage, career volatility, strong wealth in middle age",
	}

	result, err := v.Verify(context.Background(), chart, wealthProfile())
	require.NoError(t, err)

	assert.Len(t, result.Matched, 3)
	assert.Empty(t, result.Unmatched)
	assert.Equal(t, models.ConfidenceHigh, result.Confidence)
	assert.Greater(t, result.Score, 0.85)
	assert.LessOrEqual(t, result.Score, 1.0)
	assert.Equal(t, "subject-1", result.SubjectID)
	assert.Equal(t, "chart-1", result.ChartID)
	assert.False(t, result.VerifiedAt.IsZero())
}

func TestVerifyBlankNotes(t *testing.T) {
	v := newTestVerifier()

	chart := &models.Chart{ID: "chart-2", Notes: ""}

	result, err := v.Verify(context.Background(), chart, wealthProfile())
	require.NoError(t, err)

	assert.Equal(t, 0.0, result.Score)
	assert.Equal(t, models.ConfidenceLow, result.Confidence)
	assert.Empty(t, result.Matched)
	assert.Len(t, result.Unmatched, 3)
}

func TestVerifyNoEvents(t *testing.T) {
	v := newTestVerifier()

	chart := &models.Chart{ID: "chart-3", Notes: "late marriage"}
	profile := &models.LifeProfile{SubjectID: "subject-3"}

	result, err := v.Verify(context.Background(), chart, profile)
	require.NoError(t, err)

	assert.Equal(t, 0.0, result.Score)
	assert.Equal(t, models.ConfidenceLow, result.Confidence)
}

func TestVerifyZeroWeightDefaultsToBaseline(t *testing.T) {
	v := newTestVerifier()

	chart := &models.Chart{ID: "chart-4", Notes: "late marriage"}
	profile := &models.LifeProfile{
		SubjectID: "subject-4",
		Events:    []models.LifeEvent{{Description: "married late", Weight: 0}},
	}

	result, err := v.Verify(context.Background(), chart, profile)
	require.NoError(t, err)

	require.Len(t, result.Matched, 1)
	assert.Equal(t, 1.0, result.Matched[0].Event.Weight)
	assert.Equal(t, 1.0, result.Score)
}

func TestVerifyIdempotent(t *testing.T) {
	v := newTestVerifier()

	chart := &models.Chart{
		ID:    "chart-5",
		Notes: "late marriage, career volatility, strong wealth in middle age",
	}

	first, err := v.Verify(context.Background(), chart, wealthProfile())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := v.Verify(context.Background(), chart, wealthProfile())
		require.NoError(t, err)
		assert.Equal(t, first.Score, again.Score)
		assert.Equal(t, first.Confidence, again.Confidence)
		assert.Len(t, again.Matched, len(first.Matched))
	}
}

func TestVerifyRecordsBestFeature(t *testing.T) {
	v := newTestVerifier()

	chart := &models.Chart{ID: "chart-6", Notes: "career volatility"}
	profile := &models.LifeProfile{
		SubjectID: "subject-6",
		Events:    []models.LifeEvent{{Description: "changed jobs 4 times", Weight: 1.0}},
	}

	result, err := v.Verify(context.Background(), chart, profile)
	require.NoError(t, err)

	require.Len(t, result.Matched, 1)
	assert.Equal(t, "changed jobs", result.Matched[0].BestFeature)
	assert.Equal(t, 1.0, result.Matched[0].BestSim)
}

func TestTier(t *testing.T) {
	v := newTestVerifier()

	assert.Equal(t, models.ConfidenceHigh, v.Tier(0.85))
	assert.Equal(t, models.ConfidenceHigh, v.Tier(1.0))
	assert.Equal(t, models.ConfidenceMid, v.Tier(0.65))
	assert.Equal(t, models.ConfidenceMid, v.Tier(0.849))
	assert.Equal(t, models.ConfidenceLow, v.Tier(0.649))
	assert.Equal(t, models.ConfidenceLow, v.Tier(0.0))
}

func TestDeriveTags(t *testing.T) {
	profile := &models.LifeProfile{
		SubjectID:      "subject-7",
		CareerType:     "engineer",
		MarriageStatus: "married",
		Children:       2,
		Events: []models.LifeEvent{
			{Description: "studied abroad in Germany", Weight: 1.0},
			{Description: "major surgery at 50", Weight: 1.0},
		},
	}

	tags := DeriveTags(profile)

	assert.Equal(t, "engineer", tags.CareerType)
	assert.Equal(t, "married", tags.MarriageStatus)
	assert.Equal(t, 2, tags.Children)
	assert.True(t, tags.StudyAbroad)
	require.NotNil(t, tags.MajorAccident)
	assert.Equal(t, "major surgery at 50", *tags.MajorAccident)
}

func TestDeriveTagsCJKMarkers(t *testing.T) {
	profile := &models.LifeProfile{
		SubjectID: "subject-8",
		Events: []models.LifeEvent{
			{Description: "25岁出国留学", Weight: 1.0},
			{Description: "40岁大病一场", Weight: 1.0},
		},
	}

	tags := DeriveTags(profile)

	assert.True(t, tags.StudyAbroad)
	require.NotNil(t, tags.MajorAccident)
	assert.Equal(t, "40岁大病一场", *tags.MajorAccident)
}

func TestDeriveTagsIndependentOfMatching(t *testing.T) {
	profile := &models.LifeProfile{
		SubjectID: "subject-9",
		Events:    []models.LifeEvent{{Description: "overseas study", Weight: 1.0}},
	}

	v := newTestVerifier()
	blank := &models.Chart{ID: "chart-9", Notes: ""}

	result, err := v.Verify(context.Background(), blank, profile)
	require.NoError(t, err)

	// Nothing matched, yet the life tags still describe the profile.
	assert.Empty(t, result.Matched)
	assert.True(t, result.Tags.StudyAbroad)
}

// Raising the weight of the best-aligned matched event can only improve the
// score. The guarantee is deliberately narrow: under gained/totalWeight,
// shifting weight onto a matched event whose similarity sits below the
// current score dilutes it instead.
func TestScoreMonotoneInTopMatchedWeight(t *testing.T) {
	v := newTestVerifier()

	chart := &models.Chart{
		ID:    "chart-7",
		Notes: "late marriage, career volatility, strong wealth in middle age",
	}

	prev := -1.0
	for _, w := range []float64{1.0, 1.5, 2.0, 3.0} {
		profile := wealthProfile()
		// "changed jobs 4 times" carries the run's best similarity (1.0).
		profile.Events[1].Weight = w

		result, err := v.Verify(context.Background(), chart, profile)
		require.NoError(t, err)

		assert.GreaterOrEqual(t, result.Score, prev, "weight %v", w)
		prev = result.Score
	}
}

func TestScoreInvariantWhenAllSimilaritiesEqual(t *testing.T) {
	v := newTestVerifier()

	// Every event is contained verbatim in the notes, so each matches at 1.0
	// and reweighting cannot move the score.
	chart := &models.Chart{ID: "chart-8", Notes: "late marriage, overseas study"}

	for _, weights := range [][2]float64{{1.0, 1.0}, {0.5, 3.0}, {2.0, 0.7}} {
		profile := &models.LifeProfile{
			SubjectID: "subject-8",
			Events: []models.LifeEvent{
				{Description: "late marriage", Weight: weights[0]},
				{Description: "overseas study", Weight: weights[1]},
			},
		}

		result, err := v.Verify(context.Background(), chart, profile)
		require.NoError(t, err)
		assert.Equal(t, 1.0, result.Score)
	}
}
