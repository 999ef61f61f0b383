// Package patterns mines palace/star co-occurrence regularities from the
// stored chart pool and records them as insights.
package patterns

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

// minPatternCount is the smallest co-occurrence count worth reporting.
const minPatternCount = 2

// Graph is the knowledge-graph sink for mined results. The neo4j client
// satisfies it; a nil graph disables persistence without disabling mining.
type Graph interface {
	UpsertChart(ctx context.Context, chartID, palace, star string) error
	RecordCoOccurrence(ctx context.Context, palace, star string, count int) error
	InsightExists(ctx context.Context, title string) (bool, error)
	StoreInsight(ctx context.Context, title, insight string, count int, minedAt time.Time) error
}

type Engine struct {
	store storage.ProfileStore
	graph Graph
}

func NewEngine(store storage.ProfileStore, graph Graph) *Engine {
	return &Engine{store: store, graph: graph}
}

// Mine scans every stored chart, counts (palace, main star) pairings, and
// returns the pairings seen at least twice as insights, highest count first.
// Charts missing either field are skipped. When a graph is attached, chart
// nodes and co-occurrence edges are merged and new insights stored; an
// insight whose title already exists in the graph is not re-stored but is
// still returned.
func (e *Engine) Mine(ctx context.Context) ([]models.PatternInsight, error) {
	charts, err := e.store.ListCharts(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing charts: %w", err)
	}

	type pairKey struct {
		palace string
		star   string
	}

	counts := make(map[pairKey]int)
	order := make([]pairKey, 0)
	skipped := 0

	for i := range charts {
		ch := &charts[i]
		palace := ch.Field("ziwei_palace")
		star := ch.Field("main_star")
		if palace == "" || star == "" {
			skipped++
			continue
		}

		key := pairKey{palace: palace, star: star}
		if counts[key] == 0 {
			order = append(order, key)
		}
		counts[key]++

		if e.graph != nil {
			if err := e.graph.UpsertChart(ctx, ch.ID, palace, star); err != nil {
				logger.Warn("failed to merge chart into graph",
					zap.String("chart_id", ch.ID), zap.Error(err))
			}
		}
	}

	if skipped > 0 {
		logger.Info("skipped incomplete charts during mining", zap.Int("skipped", skipped))
	}

	now := time.Now().UTC()
	insights := make([]models.PatternInsight, 0)
	for _, key := range order {
		count := counts[key]
		if count < minPatternCount {
			continue
		}
		insights = append(insights, models.PatternInsight{
			Pattern: fmt.Sprintf("%s-%s", key.palace, key.star),
			Count:   count,
			Insight: fmt.Sprintf("%s 宫主星 %s 出现频率较高，可能与特定命格特征相关。", key.palace, key.star),
			MinedAt: now,
		})

		if e.graph != nil {
			if err := e.graph.RecordCoOccurrence(ctx, key.palace, key.star, count); err != nil {
				logger.Warn("failed to record co-occurrence",
					zap.String("palace", key.palace), zap.String("star", key.star), zap.Error(err))
			}
		}
	}

	sort.SliceStable(insights, func(i, j int) bool {
		return insights[i].Count > insights[j].Count
	})

	if e.graph != nil {
		e.storeInsights(ctx, insights)
	}

	logger.Info("pattern mining completed",
		zap.Int("charts", len(charts)),
		zap.Int("insights", len(insights)),
	)

	return insights, nil
}

func (e *Engine) storeInsights(ctx context.Context, insights []models.PatternInsight) {
	stored, skipped := 0, 0
	for _, ins := range insights {
		title := fmt.Sprintf("命盘规律发现：%s", ins.Pattern)

		exists, err := e.graph.InsightExists(ctx, title)
		if err != nil {
			logger.Warn("failed to check insight for dedupe", zap.String("title", title), zap.Error(err))
			continue
		}
		if exists {
			skipped++
			continue
		}

		if err := e.graph.StoreInsight(ctx, title, ins.Insight, ins.Count, ins.MinedAt); err != nil {
			logger.Warn("failed to store insight", zap.String("title", title), zap.Error(err))
			continue
		}
		stored++
	}

	logger.Info("insight persistence finished", zap.Int("stored", stored), zap.Int("skipped", skipped))
}
