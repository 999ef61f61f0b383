package compat

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/lynkerai/truechart/internal/storage"
	"github.com/lynkerai/truechart/internal/storage/models"
	"github.com/lynkerai/truechart/pkg/logger"
)

const defaultRecommendLimit = 10

// Filter narrows the candidate pool before scoring.
type Filter struct {
	// MainStars keeps only candidates whose main_star is in the set.
	MainStars []string
}

func (f *Filter) admits(chart *models.Chart) bool {
	if f == nil || len(f.MainStars) == 0 {
		return true
	}
	star := chart.Field("main_star")
	for _, s := range f.MainStars {
		if s == star {
			return true
		}
	}
	return false
}

// Recommender builds same-destiny recommendation lists over the stored
// chart pool.
type Recommender struct {
	store storage.ProfileStore
}

func NewRecommender(store storage.ProfileStore) *Recommender {
	return &Recommender{store: store}
}

// Recommend scores one chart against every other stored chart and returns
// the top matches, highest score first, ties in listing order. Candidates
// scoring zero are dropped. Each retained match is upserted; a persistence
// failure is logged and does not fail the run.
func (r *Recommender) Recommend(ctx context.Context, chartID string, limit int, filter *Filter) ([]models.MatchResult, error) {
	if limit <= 0 {
		limit = defaultRecommendLimit
	}

	self, err := r.store.GetChart(ctx, chartID)
	if err != nil {
		return nil, fmt.Errorf("loading chart %s: %w", chartID, err)
	}

	charts, err := r.store.ListCharts(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing charts: %w", err)
	}

	now := time.Now().UTC()
	matches := make([]models.MatchResult, 0, len(charts))
	for i := range charts {
		other := &charts[i]
		if other.ID == self.ID || !filter.admits(other) {
			continue
		}
		comp := Score(self, other)
		if comp.Score == 0 {
			continue
		}
		matches = append(matches, models.MatchResult{
			ChartAID:       comp.ChartAID,
			ChartBID:       comp.ChartBID,
			Score:          comp.Score,
			MatchingFields: comp.MatchingFields,
			Comment:        comp.Comment,
			ComputedAt:     now,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}

	for i := range matches {
		if err := r.store.UpsertMatchResult(ctx, &matches[i]); err != nil {
			logger.Warn("failed to persist match result",
				zap.String("chart_a", matches[i].ChartAID),
				zap.String("chart_b", matches[i].ChartBID),
				zap.Error(err))
		}
	}

	return matches, nil
}
