package similarity

import (
	"context"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/lynkerai/truechart/internal/metrics"
	"github.com/lynkerai/truechart/pkg/logger"
	"github.com/lynkerai/truechart/pkg/utils"
)

// Embedder produces dense vectors for short texts. The agent package owns the
// OpenAI-backed implementation; tests substitute a deterministic fake.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbeddingCache persists embeddings across runs, keyed by text hash. The
// redis client satisfies it; a nil cache disables cross-run reuse.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, textHash string, embedding []float32) error
}

// Semantic scores by cosine over model embeddings. Each unique string is
// embedded at most once per instance; callers prime the FeatureSet up front
// so per-event scoring never re-embeds.
type Semantic struct {
	embedder Embedder
	cache    EmbeddingCache

	mu   sync.Mutex
	memo map[string][]float32
}

var _ Backend = (*Semantic)(nil)
var _ Primer = (*Semantic)(nil)

func NewSemantic(embedder Embedder, cache EmbeddingCache) *Semantic {
	return &Semantic{
		embedder: embedder,
		cache:    cache,
		memo:     make(map[string][]float32),
	}
}

func (s *Semantic) Name() string { return "semantic" }

// Prime embeds every given text in one batch, consulting the cross-run cache
// first. Strings already memoized are skipped.
func (s *Semantic) Prime(ctx context.Context, texts []string) error {
	var missing []string

	s.mu.Lock()
	for _, t := range texts {
		key := normalize(t)
		if _, ok := s.memo[key]; ok {
			continue
		}
		if cached, ok := s.fromCache(ctx, key); ok {
			s.memo[key] = cached
			continue
		}
		missing = append(missing, key)
	}
	s.mu.Unlock()

	if len(missing) == 0 {
		return nil
	}

	vectors, err := s.embedder.EmbedBatch(ctx, missing)
	if err != nil {
		return fmt.Errorf("failed to prime embeddings: %w", err)
	}
	if len(vectors) != len(missing) {
		return fmt.Errorf("embedding count mismatch: got %d, expected %d", len(vectors), len(missing))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, key := range missing {
		s.memo[key] = vectors[i]
		s.toCache(ctx, key, vectors[i])
	}

	return nil
}

func (s *Semantic) Score(ctx context.Context, a, b string) (float64, error) {
	va, err := s.vector(ctx, a)
	if err != nil {
		return 0, err
	}
	vb, err := s.vector(ctx, b)
	if err != nil {
		return 0, err
	}

	// Cosine lands in [-1,1]; clamp the negative tail so the contract holds.
	sim := cosine(va, vb)
	if sim < 0 {
		sim = 0
	}
	return sim, nil
}

func (s *Semantic) vector(ctx context.Context, text string) ([]float32, error) {
	key := normalize(text)

	s.mu.Lock()
	if v, ok := s.memo[key]; ok {
		s.mu.Unlock()
		return v, nil
	}
	if cached, ok := s.fromCache(ctx, key); ok {
		s.memo[key] = cached
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	v, err := s.embedder.Embed(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to embed %q: %w", text, err)
	}

	s.mu.Lock()
	s.memo[key] = v
	s.toCache(ctx, key, v)
	s.mu.Unlock()

	return v, nil
}

func (s *Semantic) fromCache(ctx context.Context, key string) ([]float32, bool) {
	if s.cache == nil {
		return nil, false
	}
	v, ok, err := s.cache.GetEmbedding(ctx, utils.HashString(key))
	if err != nil {
		logger.Warn("Embedding cache read failed", zap.Error(err))
		return nil, false
	}
	if ok {
		metrics.EmbeddingCacheHits.WithLabelValues("redis").Inc()
	} else {
		metrics.EmbeddingCacheMisses.WithLabelValues("redis").Inc()
	}
	return v, ok
}

func (s *Semantic) toCache(ctx context.Context, key string, v []float32) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetEmbedding(ctx, utils.HashString(key), v); err != nil {
		logger.Warn("Embedding cache write failed", zap.Error(err))
	}
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
