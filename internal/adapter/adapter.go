// Package adapter nudges persisted life-event weights after a verification,
// so recurring phrasings earn or lose influence on future scoring runs.
//
// The policy is a monotone nudging heuristic, not a statistically principled
// estimator: near-misses gain a fixed increment, events that rarely align
// with any chart lose a smaller one, and everything stays clamped inside the
// configured bounds. Weights are keyed by the normalized event description,
// so the learning pools across subjects who narrate similar events.
package adapter

import (
	"context"

	"go.uber.org/zap"

	"github.com/lynkerai/truechart/internal/metrics"
	"github.com/lynkerai/truechart/internal/storage"
	"github.com/lynkerai/truechart/internal/storage/models"
	"github.com/lynkerai/truechart/pkg/logger"
	"github.com/lynkerai/truechart/pkg/utils"
)

// Policy holds the adaptation cutoffs. NearMissFloor is a sub-threshold below
// the verifier's match threshold, not the same constant.
type Policy struct {
	WeightMin     float64
	WeightMax     float64
	Increment     float64
	Decrement     float64
	NearMissFloor float64
	LowSimCeiling float64
}

func DefaultPolicy() Policy {
	return Policy{
		WeightMin:     0.5,
		WeightMax:     3.0,
		Increment:     0.1,
		Decrement:     0.05,
		NearMissFloor: 0.6,
		LowSimCeiling: 0.3,
	}
}

type Adapter struct {
	store  storage.ProfileStore
	policy Policy
}

func New(store storage.ProfileStore, policy Policy) *Adapter {
	return &Adapter{store: store, policy: policy}
}

// Adapt applies the nudging policy to every unmatched event from a
// verification pass. Persistence errors are logged per event and reported
// once; the scoring contract of the caller is never blocked on them.
// Upserts are last-writer-wins; interleaved runs for the same phrasing are
// tolerable because every update is a bounded monotone nudge.
func (a *Adapter) Adapt(ctx context.Context, unmatched []models.EventMatch) error {
	var firstErr error

	for _, miss := range unmatched {
		delta := a.delta(miss.BestSim)
		if delta == 0 {
			continue
		}

		key := utils.NormalizeEventKey(miss.Event.Description)
		if key == "" {
			continue
		}

		current, err := a.store.GetWeight(ctx, key)
		if err != nil {
			if !storage.IsNotFound(err) {
				logger.Warn("Weight read failed, skipping event", zap.String("event_key", key), zap.Error(err))
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			current = miss.Event.Weight
			if current <= 0 {
				current = 1.0
			}
		}

		updated := clamp(current+delta, a.policy.WeightMin, a.policy.WeightMax)
		if updated == current {
			continue
		}

		if err := a.store.UpsertWeight(ctx, key, updated); err != nil {
			logger.Warn("Weight upsert failed", zap.String("event_key", key), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		direction := "up"
		if delta < 0 {
			direction = "down"
		}
		metrics.WeightUpdates.WithLabelValues(direction).Inc()

		logger.Debug("Event weight adapted",
			zap.String("event_key", key),
			zap.Float64("best_sim", miss.BestSim),
			zap.Float64("from", current),
			zap.Float64("to", updated),
		)
	}

	return firstErr
}

// delta decides the nudge direction: a best similarity that almost cleared
// the match threshold means "trust this event more next time"; a very low one
// means it rarely aligns with any chart.
func (a *Adapter) delta(bestSim float64) float64 {
	switch {
	case bestSim > a.policy.NearMissFloor:
		return a.policy.Increment
	case bestSim < a.policy.LowSimCeiling:
		return -a.policy.Decrement
	default:
		return 0
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
