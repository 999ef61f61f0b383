package verifier

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lynkerai/truechart/internal/storage/models"
	"github.com/lynkerai/truechart/pkg/logger"
)

// DualResult joins two independent chart-family verifications (e.g. a
// pillar-based chart and a palace-based chart for the same subject) into one
// five-level band.
type DualResult struct {
	Primary   *models.VerificationResult `json:"primary"`
	Secondary *models.VerificationResult `json:"secondary"`
	Band      models.Band                `json:"band"`
}

// VerifyDual forks both verifications, joins, then reconciles. The branches
// have no data dependency; a branch that times out or fails degrades to a
// zero-score low-confidence result with a note, and never blocks or aborts
// its sibling.
func (v *Verifier) VerifyDual(ctx context.Context, primary, secondary *models.Chart, profile *models.LifeProfile, branchTimeout time.Duration) *DualResult {
	if branchTimeout <= 0 {
		branchTimeout = 20 * time.Second
	}

	var primaryResult, secondaryResult *models.VerificationResult

	g := new(errgroup.Group)
	g.Go(func() error {
		primaryResult = v.verifyBranch(ctx, primary, profile, branchTimeout)
		return nil
	})
	g.Go(func() error {
		secondaryResult = v.verifyBranch(ctx, secondary, profile, branchTimeout)
		return nil
	})
	// Branches report failure through degraded results, never through errors,
	// so the join always completes.
	_ = g.Wait()

	return &DualResult{
		Primary:   primaryResult,
		Secondary: secondaryResult,
		Band:      reconcile(primaryResult, secondaryResult),
	}
}

func (v *Verifier) verifyBranch(ctx context.Context, chart *models.Chart, profile *models.LifeProfile, timeout time.Duration) *models.VerificationResult {
	branchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan *models.VerificationResult, 1)
	failed := make(chan error, 1)

	go func() {
		result, err := v.Verify(branchCtx, chart, profile)
		if err != nil {
			failed <- err
			return
		}
		done <- result
	}()

	select {
	case result := <-done:
		return result
	case err := <-failed:
		logger.Warn("Verification branch failed, degrading",
			zap.String("chart_id", chart.ID),
			zap.Error(err),
		)
		return degradedResult(chart, profile, "verification failed: "+err.Error())
	case <-branchCtx.Done():
		logger.Warn("Verification branch timed out, degrading",
			zap.String("chart_id", chart.ID),
			zap.Duration("timeout", timeout),
		)
		return degradedResult(chart, profile, "verification timed out")
	}
}

func degradedResult(chart *models.Chart, profile *models.LifeProfile, note string) *models.VerificationResult {
	return &models.VerificationResult{
		SubjectID:  profile.SubjectID,
		ChartID:    chart.ID,
		Score:      0.0,
		Confidence: models.ConfidenceLow,
		Tags:       DeriveTags(profile),
		Fallback:   true,
		Note:       note,
		VerifiedAt: time.Now().UTC(),
	}
}

// reconcile maps the mean of both branch scores onto the finer five-level
// scale used when two chart families must agree.
func reconcile(a, b *models.VerificationResult) models.Band {
	mean := (a.Score + b.Score) / 2

	switch {
	case mean >= 0.85:
		return models.BandHigh
	case mean >= 0.75:
		return models.BandMidHigh
	case mean >= 0.65:
		return models.BandMid
	case mean >= 0.5:
		return models.BandLowMid
	default:
		return models.BandLow
	}
}
