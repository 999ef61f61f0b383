package compat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lynkerai/truechart/internal/storage/memory"
	"github.com/lynkerai/truechart/internal/storage/models"
)

func chart(id, palace, star, shen string) models.Chart {
	return models.Chart{
		ID: id,
		Fields: map[string]string{
			"ziwei_palace": palace,
			"main_star":    star,
			"shen_palace":  shen,
		},
	}
}

func TestScoreTiers(t *testing.T) {
	a := chart("a", "命宫", "紫微", "财帛")

	t.Run("all three fields match", func(t *testing.T) {
		b := chart("b", "命宫", "紫微", "财帛")
		got := Score(&a, &b)
		assert.Equal(t, 100, got.Score)
		assert.Equal(t, []string{"ziwei_palace", "main_star", "shen_palace"}, got.MatchingFields)
	})

	t.Run("two fields match", func(t *testing.T) {
		b := chart("b", "命宫", "紫微", "迁移")
		got := Score(&a, &b)
		assert.Equal(t, 70, got.Score)
		assert.Equal(t, []string{"ziwei_palace", "main_star"}, got.MatchingFields)
	})

	t.Run("one field matches", func(t *testing.T) {
		b := chart("b", "迁移", "紫微", "迁移")
		got := Score(&a, &b)
		assert.Equal(t, 40, got.Score)
		assert.Equal(t, []string{"main_star"}, got.MatchingFields)
	})

	t.Run("nothing matches", func(t *testing.T) {
		b := chart("b", "迁移", "破军", "官禄")
		got := Score(&a, &b)
		assert.Equal(t, 0, got.Score)
		assert.Empty(t, got.MatchingFields)
	})
}

func TestScoreMissingFieldsNeverMatch(t *testing.T) {
	a := models.Chart{ID: "a"}
	b := models.Chart{ID: "b"}

	got := Score(&a, &b)
	assert.Equal(t, 0, got.Score)
	assert.Empty(t, got.MatchingFields)
}

func TestScoreIsPure(t *testing.T) {
	a := chart("a", "命宫", "紫微", "财帛")
	b := chart("b", "命宫", "破军", "财帛")

	first := Score(&a, &b)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Score(&a, &b))
	}
}

func TestScoreComments(t *testing.T) {
	a := chart("a", "命宫", "紫微", "财帛")

	both := Score(&a, &models.Chart{ID: "b", Fields: map[string]string{
		"ziwei_palace": "命宫", "shen_palace": "财帛",
	}})
	starOnly := Score(&a, &models.Chart{ID: "c", Fields: map[string]string{
		"main_star": "紫微",
	}})
	none := Score(&a, &models.Chart{ID: "d"})

	assert.Contains(t, both.Comment, "紫微宫与身宫皆同")
	assert.Contains(t, starOnly.Comment, "主星相同")
	assert.Contains(t, none.Comment, "互补")
}

func TestRecommend(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	self := chart("self", "命宫", "紫微", "财帛")
	full := chart("full", "命宫", "紫微", "财帛")
	partial := chart("partial", "命宫", "紫微", "迁移")
	weak := chart("weak", "迁移", "紫微", "官禄")
	stranger := chart("stranger", "迁移", "破军", "官禄")

	for _, c := range []models.Chart{self, full, partial, weak, stranger} {
		c := c
		require.NoError(t, store.UpsertChart(ctx, &c))
	}

	r := NewRecommender(store)

	t.Run("ranked, self and zero scores excluded", func(t *testing.T) {
		matches, err := r.Recommend(ctx, "self", 10, nil)
		require.NoError(t, err)

		require.Len(t, matches, 3)
		assert.Equal(t, "full", matches[0].ChartBID)
		assert.Equal(t, 100, matches[0].Score)
		assert.Equal(t, "partial", matches[1].ChartBID)
		assert.Equal(t, 70, matches[1].Score)
		assert.Equal(t, "weak", matches[2].ChartBID)
		assert.Equal(t, 40, matches[2].Score)
	})

	t.Run("limit truncates", func(t *testing.T) {
		matches, err := r.Recommend(ctx, "self", 1, nil)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "full", matches[0].ChartBID)
	})

	t.Run("main star filter narrows the pool", func(t *testing.T) {
		matches, err := r.Recommend(ctx, "self", 10, &Filter{MainStars: []string{"破军"}})
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("unknown chart is a hard error", func(t *testing.T) {
		_, err := r.Recommend(ctx, "nope", 10, nil)
		assert.Error(t, err)
	})

	t.Run("comments are attached", func(t *testing.T) {
		matches, err := r.Recommend(ctx, "self", 10, nil)
		require.NoError(t, err)
		for _, m := range matches {
			assert.NotEmpty(t, m.Comment)
			assert.False(t, m.ComputedAt.IsZero())
		}
	})
}
