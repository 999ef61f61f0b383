package similarity

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/lynkerai/truechart/internal/metrics"
	"github.com/lynkerai/truechart/pkg/logger"
)

// Failover serves scores from the primary backend and degrades to the
// fallback when the primary errors. Once tripped it stays on the fallback for
// the rest of the run; an unreachable embedding service should cost one
// failed call, not one per event.
type Failover struct {
	primary  Backend
	fallback Backend
	tripped  atomic.Bool
}

var _ Backend = (*Failover)(nil)
var _ Primer = (*Failover)(nil)

func NewFailover(primary, fallback Backend) *Failover {
	return &Failover{primary: primary, fallback: fallback}
}

func (f *Failover) Name() string {
	if f.tripped.Load() {
		return f.fallback.Name()
	}
	return f.primary.Name()
}

// Tripped reports whether the run has degraded to the fallback backend.
func (f *Failover) Tripped() bool {
	return f.tripped.Load()
}

func (f *Failover) Prime(ctx context.Context, texts []string) error {
	if f.tripped.Load() {
		return primeIfAble(ctx, f.fallback, texts)
	}

	if err := primeIfAble(ctx, f.primary, texts); err != nil {
		f.trip(err)
		return primeIfAble(ctx, f.fallback, texts)
	}
	return nil
}

func (f *Failover) Score(ctx context.Context, a, b string) (float64, error) {
	if f.tripped.Load() {
		return f.fallback.Score(ctx, a, b)
	}

	score, err := f.primary.Score(ctx, a, b)
	if err != nil {
		f.trip(err)
		return f.fallback.Score(ctx, a, b)
	}
	return score, nil
}

func (f *Failover) trip(err error) {
	if f.tripped.CompareAndSwap(false, true) {
		metrics.BackendFallbacks.Inc()
		logger.Warn("Similarity backend unavailable, switching to fallback",
			zap.String("primary", f.primary.Name()),
			zap.String("fallback", f.fallback.Name()),
			zap.Error(err),
		)
	}
}

func primeIfAble(ctx context.Context, b Backend, texts []string) error {
	if p, ok := b.(Primer); ok {
		return p.Prime(ctx, texts)
	}
	return nil
}
