// Package verifier aggregates per-event similarities into one
// confidence-tiered score for a single chart.
package verifier

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/lynkerai/truechart/internal/extract"
	"github.com/lynkerai/truechart/internal/similarity"
	"github.com/lynkerai/truechart/internal/storage/models"
	"github.com/lynkerai/truechart/pkg/logger"
)

// Thresholds holds the verifier's tunable cutoffs. Different scoring
// surfaces have historically wanted slightly different constants, so nothing
// here is hard-coded.
type Thresholds struct {
	Match          float64
	ConfidenceHigh float64
	ConfidenceMid  float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Match:          0.62,
		ConfidenceHigh: 0.85,
		ConfidenceMid:  0.65,
	}
}

// Verifier scores one chart against one life profile. The similarity backend
// is an injected dependency whose lifecycle the caller owns.
type Verifier struct {
	extractor  *extract.Extractor
	backend    similarity.Backend
	thresholds Thresholds
}

func New(extractor *extract.Extractor, backend similarity.Backend, thresholds Thresholds) *Verifier {
	return &Verifier{
		extractor:  extractor,
		backend:    backend,
		thresholds: thresholds,
	}
}

// Verify classifies every profile event as matched or unmatched against the
// chart's features and folds the outcomes into a weighted score. A profile
// with no events, or a chart with no usable notes, scores 0.0 at low
// confidence; absence of evidence is not a fault.
func (v *Verifier) Verify(ctx context.Context, chart *models.Chart, profile *models.LifeProfile) (*models.VerificationResult, error) {
	features := v.extractor.Extract(chart.Notes)

	if primer, ok := v.backend.(similarity.Primer); ok && len(features) > 0 {
		texts := make([]string, 0, len(features)+len(profile.Events))
		texts = append(texts, features...)
		for _, ev := range profile.Events {
			texts = append(texts, ev.Description)
		}
		if err := primer.Prime(ctx, texts); err != nil {
			return nil, fmt.Errorf("failed to prime similarity backend: %w", err)
		}
	}

	var (
		totalWeight float64
		gained      float64
		matched     []models.EventMatch
		unmatched   []models.EventMatch
	)

	for _, ev := range profile.Events {
		weight := ev.Weight
		if weight <= 0 {
			// Narrations arriving without an explicit weight count as baseline.
			weight = 1.0
		}
		totalWeight += weight

		best, bestFeature, err := v.bestSimilarity(ctx, features, ev.Description)
		if err != nil {
			return nil, err
		}

		match := models.EventMatch{
			Event:       models.LifeEvent{Description: ev.Description, Weight: weight, Category: ev.Category},
			BestSim:     round3(best),
			BestFeature: bestFeature,
		}

		if best >= v.thresholds.Match {
			gained += weight * best
			matched = append(matched, match)
		} else {
			unmatched = append(unmatched, match)
		}
	}

	score := 0.0
	if totalWeight > 0 {
		score = round3(gained / totalWeight)
	}

	result := &models.VerificationResult{
		SubjectID:  profile.SubjectID,
		ChartID:    chart.ID,
		Score:      score,
		Confidence: v.Tier(score),
		Matched:    matched,
		Unmatched:  unmatched,
		Tags:       DeriveTags(profile),
		VerifiedAt: time.Now().UTC(),
	}

	logger.Info("Chart verified",
		zap.String("subject_id", profile.SubjectID),
		zap.String("chart_id", chart.ID),
		zap.Float64("score", score),
		zap.String("confidence", string(result.Confidence)),
		zap.Int("matched", len(matched)),
		zap.Int("unmatched", len(unmatched)),
	)

	return result, nil
}

// Tier maps a score onto the coarse three-level confidence scale.
func (v *Verifier) Tier(score float64) models.Confidence {
	switch {
	case score >= v.thresholds.ConfidenceHigh:
		return models.ConfidenceHigh
	case score >= v.thresholds.ConfidenceMid:
		return models.ConfidenceMid
	default:
		return models.ConfidenceLow
	}
}

func (v *Verifier) bestSimilarity(ctx context.Context, features []string, description string) (float64, string, error) {
	var best float64
	var bestFeature string

	for _, feature := range features {
		sim, err := v.backend.Score(ctx, feature, description)
		if err != nil {
			return 0, "", fmt.Errorf("similarity backend failed on %q: %w", feature, err)
		}
		if sim > best {
			best = sim
			bestFeature = feature
		}
	}

	return best, bestFeature, nil
}

func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}
