// Package ranker runs the verifier over multiple candidate charts for one
// subject and selects a best match.
package ranker

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lynkerai/truechart/internal/storage/models"
	"github.com/lynkerai/truechart/internal/verifier"
	"github.com/lynkerai/truechart/pkg/logger"
)

type Ranker struct {
	verifier *verifier.Verifier
	parallel int
}

func New(v *verifier.Verifier, parallel int) *Ranker {
	if parallel <= 0 {
		parallel = 4
	}
	return &Ranker{verifier: v, parallel: parallel}
}

// Rank verifies every candidate concurrently, then sorts descending by score
// with ties broken by input order. A verifier failure on one chart records a
// zero-score result with a note instead of aborting the ranking; an empty
// candidate set yields an empty ranking with no best match.
func (r *Ranker) Rank(ctx context.Context, charts []models.Chart, profile *models.LifeProfile) *models.CandidateRanking {
	ranking := &models.CandidateRanking{SubjectID: profile.SubjectID}
	if len(charts) == 0 {
		return ranking
	}

	// Collected into input order so the tie-break is deterministic no matter
	// which verification finishes first.
	results := make([]models.VerificationResult, len(charts))

	g := new(errgroup.Group)
	g.SetLimit(r.parallel)

	for i := range charts {
		i := i
		chart := charts[i]
		g.Go(func() error {
			result, err := r.verifier.Verify(ctx, &chart, profile)
			if err != nil {
				logger.Warn("Candidate verification failed, recording degraded result",
					zap.String("chart_id", chart.ID),
					zap.Error(err),
				)
				results[i] = models.VerificationResult{
					SubjectID:  profile.SubjectID,
					ChartID:    chart.ID,
					Score:      0.0,
					Confidence: models.ConfidenceLow,
					Tags:       verifier.DeriveTags(profile),
					Fallback:   true,
					Note:       "verification failed: " + err.Error(),
					VerifiedAt: time.Now().UTC(),
				}
				return nil
			}
			results[i] = *result
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Score > results[b].Score
	})

	ranking.Results = results
	best := results[0].ChartID
	ranking.BestMatch = &best

	logger.Info("Candidates ranked",
		zap.String("subject_id", profile.SubjectID),
		zap.Int("candidates", len(charts)),
		zap.String("best_match", best),
		zap.Float64("best_score", results[0].Score),
	)

	return ranking
}
