package agent

import (
	"context"

	"go.uber.org/zap"

	"github.com/lynkerai/truechart/internal/metrics"
	"github.com/lynkerai/truechart/internal/storage/models"
	"github.com/lynkerai/truechart/pkg/logger"
)

// Chain runs capability-equivalent providers in order and stops at the first
// one whose response survives validation. When every provider fails or
// returns garbage, the deterministic rule-based verdict is substituted, so
// callers always receive a well-formed result.
type Chain struct {
	providers []Provider
}

func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: providers}
}

func (c *Chain) Judge(ctx context.Context, chart *models.Chart, profile *models.LifeProfile) *Verdict {
	prompt := JudgePrompt(chart, profile)

	for _, provider := range c.providers {
		raw, err := provider.Judge(ctx, prompt)
		if err != nil {
			metrics.AgentVerdicts.WithLabelValues(provider.Name(), "error").Inc()
			logger.Warn("Reasoning provider failed, trying next",
				zap.String("provider", provider.Name()),
				zap.Error(err),
			)
			continue
		}

		verdict, err := ParseVerdict(raw)
		if err != nil {
			metrics.AgentVerdicts.WithLabelValues(provider.Name(), "invalid").Inc()
			logger.Warn("Reasoning provider returned invalid verdict, trying next",
				zap.String("provider", provider.Name()),
				zap.Error(err),
			)
			continue
		}

		verdict.Provider = provider.Name()
		metrics.AgentVerdicts.WithLabelValues(provider.Name(), "accepted").Inc()
		logger.Info("Reasoning verdict accepted",
			zap.String("provider", provider.Name()),
			zap.String("confidence", string(verdict.Confidence)),
		)
		return verdict
	}

	metrics.AgentVerdicts.WithLabelValues("rule-based", "fallback").Inc()
	logger.Warn("All reasoning providers exhausted, using rule-based fallback",
		zap.String("chart_id", chart.ID),
	)
	return FallbackVerdict(chart, profile)
}
