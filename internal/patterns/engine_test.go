package patterns

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lynkerai/truechart/internal/storage/memory"
	"github.com/lynkerai/truechart/internal/storage/models"
)

type fakeGraph struct {
	charts        []string
	coOccurrences map[string]int
	insights      map[string]string
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{
		coOccurrences: make(map[string]int),
		insights:      make(map[string]string),
	}
}

func (g *fakeGraph) UpsertChart(_ context.Context, chartID, _, _ string) error {
	g.charts = append(g.charts, chartID)
	return nil
}

func (g *fakeGraph) RecordCoOccurrence(_ context.Context, palace, star string, count int) error {
	g.coOccurrences[palace+"-"+star] = count
	return nil
}

func (g *fakeGraph) InsightExists(_ context.Context, title string) (bool, error) {
	_, ok := g.insights[title]
	return ok, nil
}

func (g *fakeGraph) StoreInsight(_ context.Context, title, insight string, _ int, _ time.Time) error {
	g.insights[title] = insight
	return nil
}

func seedCharts(t *testing.T, store *memory.Store, specs [][2]string) {
	t.Helper()
	ctx := context.Background()
	for i, s := range specs {
		chart := models.Chart{
			ID: string(rune('a' + i)),
			Fields: map[string]string{
				"ziwei_palace": s[0],
				"main_star":    s[1],
			},
		}
		require.NoError(t, store.UpsertChart(ctx, &chart))
	}
}

func TestMineCountsCoOccurrences(t *testing.T) {
	store := memory.New()
	seedCharts(t, store, [][2]string{
		{"命宫", "紫微"},
		{"命宫", "紫微"},
		{"命宫", "紫微"},
		{"迁移", "破军"},
		{"迁移", "破军"},
		{"官禄", "天机"}, // seen once, below the reporting floor
	})

	engine := NewEngine(store, nil)
	insights, err := engine.Mine(context.Background())
	require.NoError(t, err)

	require.Len(t, insights, 2)
	assert.Equal(t, "命宫-紫微", insights[0].Pattern)
	assert.Equal(t, 3, insights[0].Count)
	assert.Equal(t, "迁移-破军", insights[1].Pattern)
	assert.Equal(t, 2, insights[1].Count)
	assert.Contains(t, insights[0].Insight, "紫微")
	assert.False(t, insights[0].MinedAt.IsZero())
}

func TestMineSkipsIncompleteCharts(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	complete := models.Chart{ID: "c1", Fields: map[string]string{"ziwei_palace": "命宫", "main_star": "紫微"}}
	noStar := models.Chart{ID: "c2", Fields: map[string]string{"ziwei_palace": "命宫"}}
	empty := models.Chart{ID: "c3"}
	require.NoError(t, store.UpsertChart(ctx, &complete))
	require.NoError(t, store.UpsertChart(ctx, &noStar))
	require.NoError(t, store.UpsertChart(ctx, &empty))

	engine := NewEngine(store, nil)
	insights, err := engine.Mine(ctx)
	require.NoError(t, err)

	// One complete chart means no pair reaches the floor of two.
	assert.Empty(t, insights)
}

func TestMineEmptyStore(t *testing.T) {
	engine := NewEngine(memory.New(), nil)

	insights, err := engine.Mine(context.Background())
	require.NoError(t, err)
	assert.Empty(t, insights)
}

func TestMinePersistsToGraph(t *testing.T) {
	store := memory.New()
	seedCharts(t, store, [][2]string{
		{"命宫", "紫微"},
		{"命宫", "紫微"},
	})

	graph := newFakeGraph()
	engine := NewEngine(store, graph)

	insights, err := engine.Mine(context.Background())
	require.NoError(t, err)
	require.Len(t, insights, 1)

	assert.Len(t, graph.charts, 2)
	assert.Equal(t, 2, graph.coOccurrences["命宫-紫微"])
	assert.Len(t, graph.insights, 1)
}

func TestMineDeduplicatesInsightsAcrossRuns(t *testing.T) {
	store := memory.New()
	seedCharts(t, store, [][2]string{
		{"命宫", "紫微"},
		{"命宫", "紫微"},
	})

	graph := newFakeGraph()
	engine := NewEngine(store, graph)

	first, err := engine.Mine(context.Background())
	require.NoError(t, err)
	second, err := engine.Mine(context.Background())
	require.NoError(t, err)

	// The insight is still reported on the second run but stored only once.
	assert.Len(t, first, 1)
	assert.Len(t, second, 1)
	assert.Len(t, graph.insights, 1)
}
