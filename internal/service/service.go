// Package service orchestrates verification runs over the profile store:
// loading charts and learned weights, invoking the verifier, persisting
// results, and triggering weight adaptation.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lynkerai/truechart/internal/adapter"
	"github.com/lynkerai/truechart/internal/metrics"
	"github.com/lynkerai/truechart/internal/ranker"
	"github.com/lynkerai/truechart/internal/storage"
	"github.com/lynkerai/truechart/internal/storage/models"
	"github.com/lynkerai/truechart/internal/verifier"
	"github.com/lynkerai/truechart/pkg/logger"
	"github.com/lynkerai/truechart/pkg/utils"
)

// Options tune the service without widening the constructor.
type Options struct {
	// BackendName labels metrics; it does not select the backend.
	BackendName string
	// DualTimeout bounds each branch of a dual verification.
	DualTimeout time.Duration
	// WarningBuffer sizes the persistence-warning channel.
	WarningBuffer int
}

// Service is the top-level entry point for verification workflows. Store
// reads are the only hard failures; persistence and adaptation problems are
// logged and surfaced on the warning channel without failing the call.
type Service struct {
	store    storage.ProfileStore
	verifier *verifier.Verifier
	ranker   *ranker.Ranker
	adapter  *adapter.Adapter

	backendName string
	dualTimeout time.Duration
	warnings    chan string
}

func New(store storage.ProfileStore, v *verifier.Verifier, r *ranker.Ranker, a *adapter.Adapter, opts Options) *Service {
	if opts.DualTimeout <= 0 {
		opts.DualTimeout = 20 * time.Second
	}
	if opts.WarningBuffer <= 0 {
		opts.WarningBuffer = 16
	}
	if opts.BackendName == "" {
		opts.BackendName = "unknown"
	}

	return &Service{
		store:       store,
		verifier:    v,
		ranker:      r,
		adapter:     a,
		backendName: opts.BackendName,
		dualTimeout: opts.DualTimeout,
		warnings:    make(chan string, opts.WarningBuffer),
	}
}

// Warnings exposes non-fatal persistence and adaptation failures. The
// channel is never closed; sends are dropped when nobody drains it.
func (s *Service) Warnings() <-chan string {
	return s.warnings
}

// VerifyChart runs one verification for the subject against the chart,
// using persisted learned weights, then upserts the result and nudges
// weights for unmatched events.
func (s *Service) VerifyChart(ctx context.Context, subjectID, chartID string) (*models.VerificationResult, error) {
	runID := uuid.New().String()
	start := time.Now()

	logger.Info("Verifying chart",
		zap.String("run_id", runID),
		zap.String("subject_id", subjectID),
		zap.String("chart_id", chartID),
	)

	chart, err := s.store.GetChart(ctx, chartID)
	if err != nil {
		metrics.VerificationTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("loading chart %s: %w", chartID, err)
	}

	profile, err := s.store.GetProfile(ctx, subjectID)
	if err != nil {
		metrics.VerificationTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("loading profile %s: %w", subjectID, err)
	}

	s.loadWeights(ctx, profile)

	result, err := s.verifier.Verify(ctx, chart, profile)
	if err != nil {
		// Scoring must not fail the call once inputs are loaded; degrade
		// instead and record why.
		logger.Warn("verification degraded", zap.String("run_id", runID), zap.Error(err))
		metrics.VerificationTotal.WithLabelValues("degraded").Inc()
		result = &models.VerificationResult{
			SubjectID:  subjectID,
			ChartID:    chartID,
			Score:      0.0,
			Confidence: models.ConfidenceLow,
			Fallback:   true,
			Note:       fmt.Sprintf("verification failed: %v", err),
			VerifiedAt: time.Now().UTC(),
		}
	} else {
		metrics.VerificationTotal.WithLabelValues("ok").Inc()
	}

	metrics.VerificationDuration.WithLabelValues(s.backendName).Observe(time.Since(start).Seconds())
	metrics.VerificationScore.Observe(result.Score)
	metrics.ConfidenceTier.WithLabelValues(string(result.Confidence)).Inc()

	if err := s.store.UpsertVerificationResult(ctx, result); err != nil {
		s.warn(fmt.Sprintf("persisting verification result %s/%s: %v", subjectID, chartID, err))
	}

	if err := s.adapter.Adapt(ctx, result.Unmatched); err != nil {
		s.warn(fmt.Sprintf("adapting weights for %s: %v", subjectID, err))
	}

	logger.Info("Verification complete",
		zap.String("run_id", runID),
		zap.Float64("score", result.Score),
		zap.String("confidence", string(result.Confidence)),
		zap.Int("latency_ms", int(time.Since(start).Milliseconds())),
	)

	return result, nil
}

// VerifyDualCharts verifies two chart families for the same subject in
// parallel and reconciles the pair into a five-level band.
func (s *Service) VerifyDualCharts(ctx context.Context, subjectID, primaryChartID, secondaryChartID string) (*verifier.DualResult, error) {
	primary, err := s.store.GetChart(ctx, primaryChartID)
	if err != nil {
		return nil, fmt.Errorf("loading chart %s: %w", primaryChartID, err)
	}
	secondary, err := s.store.GetChart(ctx, secondaryChartID)
	if err != nil {
		return nil, fmt.Errorf("loading chart %s: %w", secondaryChartID, err)
	}
	profile, err := s.store.GetProfile(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("loading profile %s: %w", subjectID, err)
	}

	s.loadWeights(ctx, profile)

	dual := s.verifier.VerifyDual(ctx, primary, secondary, profile, s.dualTimeout)

	for _, res := range []*models.VerificationResult{dual.Primary, dual.Secondary} {
		if err := s.store.UpsertVerificationResult(ctx, res); err != nil {
			s.warn(fmt.Sprintf("persisting verification result %s/%s: %v", res.SubjectID, res.ChartID, err))
		}
	}

	return dual, nil
}

// RankCandidates verifies every candidate chart for the subject and returns
// the stable score-descending ranking, persisting each per-chart result.
func (s *Service) RankCandidates(ctx context.Context, subjectID string, chartIDs []string) (*models.CandidateRanking, error) {
	profile, err := s.store.GetProfile(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("loading profile %s: %w", subjectID, err)
	}

	charts := make([]models.Chart, 0, len(chartIDs))
	for _, id := range chartIDs {
		chart, err := s.store.GetChart(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading chart %s: %w", id, err)
		}
		charts = append(charts, *chart)
	}

	s.loadWeights(ctx, profile)

	ranking := s.ranker.Rank(ctx, charts, profile)
	metrics.RankedCharts.Observe(float64(len(charts)))

	for i := range ranking.Results {
		if err := s.store.UpsertVerificationResult(ctx, &ranking.Results[i]); err != nil {
			s.warn(fmt.Sprintf("persisting ranked result %s/%s: %v",
				subjectID, ranking.Results[i].ChartID, err))
		}
	}

	return ranking, nil
}

// loadWeights overlays persisted learned weights onto the profile's events.
// Events never adapted keep their stated weight.
func (s *Service) loadWeights(ctx context.Context, profile *models.LifeProfile) {
	for i := range profile.Events {
		key := utils.NormalizeEventKey(profile.Events[i].Description)
		w, err := s.store.GetWeight(ctx, key)
		if err != nil {
			if !storage.IsNotFound(err) {
				s.warn(fmt.Sprintf("loading weight for %q: %v", key, err))
			}
			continue
		}
		profile.Events[i].Weight = w
	}
}

func (s *Service) warn(msg string) {
	logger.Warn(msg)
	select {
	case s.warnings <- msg:
	default:
	}
}
