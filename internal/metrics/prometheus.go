package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	VerificationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "truechart_verification_duration_seconds",
			Help:    "Chart verification duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"backend"},
	)

	VerificationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "truechart_verification_total",
			Help: "Total number of chart verifications",
		},
		[]string{"status"},
	)

	VerificationScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "truechart_verification_score",
			Help:    "Verification scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	ConfidenceTier = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "truechart_confidence_tier_total",
			Help: "Verification results per confidence tier",
		},
		[]string{"tier"},
	)

	BackendFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "truechart_backend_fallbacks_total",
			Help: "Semantic-to-lexical similarity backend fallbacks",
		},
	)

	WeightUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "truechart_weight_updates_total",
			Help: "Event weight adaptations applied",
		},
		[]string{"direction"},
	)

	RankedCharts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "truechart_ranked_charts_count",
			Help:    "Number of candidate charts per ranking run",
			Buckets: []float64{1, 2, 5, 10, 20, 50},
		},
	)

	AgentVerdicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "truechart_agent_verdicts_total",
			Help: "Reasoning agent verdicts by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	EmbeddingCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "truechart_embedding_cache_hits_total",
			Help: "Embedding cache hits",
		},
		[]string{"cache_type"},
	)

	EmbeddingCacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "truechart_embedding_cache_misses_total",
			Help: "Embedding cache misses",
		},
		[]string{"cache_type"},
	)

	PatternInsightsMined = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "truechart_pattern_insights_mined_total",
			Help: "Pattern insights produced by mining runs",
		},
	)
)

func Init() {
	prometheus.MustRegister(VerificationDuration)
	prometheus.MustRegister(VerificationTotal)
	prometheus.MustRegister(VerificationScore)
	prometheus.MustRegister(ConfidenceTier)
	prometheus.MustRegister(BackendFallbacks)
	prometheus.MustRegister(WeightUpdates)
	prometheus.MustRegister(RankedCharts)
	prometheus.MustRegister(AgentVerdicts)
	prometheus.MustRegister(EmbeddingCacheHits)
	prometheus.MustRegister(EmbeddingCacheMisses)
	prometheus.MustRegister(PatternInsightsMined)
}
