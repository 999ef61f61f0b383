package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lynkerai/truechart/internal/storage"
	"github.com/lynkerai/truechart/internal/storage/models"
)

func TestChartRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	chart := models.Chart{
		ID:        "c1",
		SourceTag: "palace",
		Fields:    map[string]string{"ziwei_palace": "命宫"},
		Notes:     "late marriage",
	}
	require.NoError(t, s.UpsertChart(ctx, &chart))

	got, err := s.GetChart(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, chart, *got)

	_, err = s.GetChart(ctx, "missing")
	assert.True(t, storage.IsNotFound(err))
}

func TestListChartsKeepsInsertionOrder(t *testing.T) {
	s := New()
	ctx := context.Background()

	for _, id := range []string{"z", "a", "m"} {
		require.NoError(t, s.UpsertChart(ctx, &models.Chart{ID: id}))
	}
	// Re-upserting must not duplicate or reorder.
	require.NoError(t, s.UpsertChart(ctx, &models.Chart{ID: "a", Notes: "updated"}))

	charts, err := s.ListCharts(ctx)
	require.NoError(t, err)
	require.Len(t, charts, 3)
	assert.Equal(t, "z", charts[0].ID)
	assert.Equal(t, "a", charts[1].ID)
	assert.Equal(t, "m", charts[2].ID)
	assert.Equal(t, "updated", charts[1].Notes)
}

func TestProfileRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	profile := models.LifeProfile{
		SubjectID: "s1",
		Events:    []models.LifeEvent{{Description: "married at 35", Weight: 1.2}},
	}
	require.NoError(t, s.UpsertProfile(ctx, &profile))

	got, err := s.GetProfile(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, profile, *got)

	_, err = s.GetProfile(ctx, "missing")
	assert.True(t, storage.IsNotFound(err))
}

func TestWeightLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.GetWeight(ctx, "married at 35")
	assert.True(t, storage.IsNotFound(err))

	require.NoError(t, s.UpsertWeight(ctx, "married at 35", 1.3))
	w, err := s.GetWeight(ctx, "married at 35")
	require.NoError(t, err)
	assert.Equal(t, 1.3, w)

	// Last writer wins.
	require.NoError(t, s.UpsertWeight(ctx, "married at 35", 1.4))
	w, err = s.GetWeight(ctx, "married at 35")
	require.NoError(t, err)
	assert.Equal(t, 1.4, w)
}

func TestVerificationResultKeyedBySubjectAndChart(t *testing.T) {
	s := New()
	ctx := context.Background()

	first := models.VerificationResult{SubjectID: "s1", ChartID: "c1", Score: 0.5}
	second := models.VerificationResult{SubjectID: "s1", ChartID: "c2", Score: 0.9}
	require.NoError(t, s.UpsertVerificationResult(ctx, &first))
	require.NoError(t, s.UpsertVerificationResult(ctx, &second))

	got, err := s.GetVerificationResult(ctx, "s1", "c1")
	require.NoError(t, err)
	assert.Equal(t, 0.5, got.Score)

	got, err = s.GetVerificationResult(ctx, "s1", "c2")
	require.NoError(t, err)
	assert.Equal(t, 0.9, got.Score)

	// Upsert replaces the row for the same pair.
	first.Score = 0.6
	require.NoError(t, s.UpsertVerificationResult(ctx, &first))
	got, err = s.GetVerificationResult(ctx, "s1", "c1")
	require.NoError(t, err)
	assert.Equal(t, 0.6, got.Score)

	_, err = s.GetVerificationResult(ctx, "s2", "c1")
	assert.True(t, storage.IsNotFound(err))
}
