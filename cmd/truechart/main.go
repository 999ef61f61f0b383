package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lynkerai/truechart/internal/adapter"
	"github.com/lynkerai/truechart/internal/agent"
	"github.com/lynkerai/truechart/internal/cache/redis"
	"github.com/lynkerai/truechart/internal/compat"
	"github.com/lynkerai/truechart/internal/extract"
	"github.com/lynkerai/truechart/internal/kg/neo4j"
	"github.com/lynkerai/truechart/internal/metrics"
	"github.com/lynkerai/truechart/internal/patterns"
	"github.com/lynkerai/truechart/internal/ranker"
	"github.com/lynkerai/truechart/internal/service"
	"github.com/lynkerai/truechart/internal/similarity"
	"github.com/lynkerai/truechart/internal/storage"
	"github.com/lynkerai/truechart/internal/storage/memory"
	"github.com/lynkerai/truechart/internal/storage/models"
	"github.com/lynkerai/truechart/internal/storage/sqlite"
	"github.com/lynkerai/truechart/internal/vector/milvus"
	"github.com/lynkerai/truechart/internal/verifier"
	"github.com/lynkerai/truechart/pkg/config"
	appLogger "github.com/lynkerai/truechart/pkg/logger"
)

func main() {
	var (
		chartFile   = flag.String("chart", "", "path to a chart JSON file to load and verify")
		profileFile = flag.String("profile", "", "path to a life-profile JSON file to load")
		rankIDs     = flag.String("rank", "", "comma-separated chart IDs to rank against the profile")
		matchWith   = flag.String("match", "", "second chart JSON file for a compatibility score")
		judge       = flag.Bool("judge", false, "ask the reasoning agent for a verdict on -chart against -profile")
		mine        = flag.Bool("mine", false, "run pattern mining over stored charts")
		index       = flag.Bool("index", false, "embed and index the chart into the vector store")
		similar     = flag.Int("similar", 0, "return the top-N charts most similar to -chart")
		inMemory    = flag.Bool("memory", false, "use the in-memory store instead of sqlite")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	metrics.Init()

	appLogger.Info("Starting TrueChart verification core")

	var store storage.ProfileStore
	if *inMemory {
		store = memory.New()
	} else {
		sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
		if err != nil {
			appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
		}
		defer sqliteClient.Close()

		if err := sqliteClient.InitSchema(); err != nil {
			appLogger.Fatal("Failed to initialize schema", zap.Error(err))
		}
		store = sqliteClient
	}

	backend := buildBackend(cfg)

	extractor := extract.New(cfg.Extractor.MaxFragments)
	thresholds := verifier.Thresholds{
		Match:          cfg.Scoring.MatchThreshold,
		ConfidenceHigh: cfg.Scoring.ConfidenceHigh,
		ConfidenceMid:  cfg.Scoring.ConfidenceMid,
	}
	chartVerifier := verifier.New(extractor, backend, thresholds)
	chartRanker := ranker.New(chartVerifier, cfg.Scoring.RankerParallel)
	weightAdapter := adapter.New(store, adapter.Policy{
		WeightMin:     cfg.Weights.Min,
		WeightMax:     cfg.Weights.Max,
		Increment:     cfg.Weights.Increment,
		Decrement:     cfg.Weights.Decrement,
		NearMissFloor: cfg.Weights.NearMissFloor,
		LowSimCeiling: cfg.Weights.LowSimCeiling,
	})

	svc := service.New(store, chartVerifier, chartRanker, weightAdapter, service.Options{
		BackendName: backend.Name(),
		DualTimeout: time.Duration(cfg.Scoring.DualTimeoutSec) * time.Second,
	})

	go func() {
		for w := range svc.Warnings() {
			appLogger.Warn("service warning", zap.String("warning", w))
		}
	}()

	ctx := context.Background()

	var chart *models.Chart
	if *chartFile != "" {
		chart = loadChart(ctx, store, *chartFile)
	}
	var profile *models.LifeProfile
	if *profileFile != "" {
		profile = loadProfile(ctx, store, *profileFile)
	}

	switch {
	case *mine:
		runMining(ctx, cfg, store)

	case *index:
		if chart == nil {
			appLogger.Fatal("indexing needs -chart")
		}
		indexChart(ctx, cfg, extractor, chart)

	case *similar > 0:
		if chart == nil {
			appLogger.Fatal("similar-chart lookup needs -chart")
		}
		similarCharts(ctx, cfg, extractor, chart, *similar)

	case *matchWith != "":
		if chart == nil {
			appLogger.Fatal("compatibility scoring needs -chart")
		}
		other := loadChart(ctx, store, *matchWith)
		printJSON(compat.Score(chart, other))

	case *judge:
		if chart == nil || profile == nil {
			appLogger.Fatal("a verdict needs -chart and -profile")
		}
		printJSON(buildJudgeChain(cfg).Judge(ctx, chart, profile))

	case *rankIDs != "":
		if profile == nil {
			appLogger.Fatal("ranking needs -profile")
		}
		ids := strings.Split(*rankIDs, ",")
		ranking, err := svc.RankCandidates(ctx, profile.SubjectID, ids)
		if err != nil {
			appLogger.Fatal("Ranking failed", zap.Error(err))
		}
		printJSON(ranking)

	case chart != nil && profile != nil:
		result, err := svc.VerifyChart(ctx, profile.SubjectID, chart.ID)
		if err != nil {
			appLogger.Fatal("Verification failed", zap.Error(err))
		}
		printJSON(result)

	default:
		flag.Usage()
		os.Exit(2)
	}
}

// buildBackend assembles the configured similarity backend. The semantic
// backend always rides a failover wrapper over lexical so a broken embedding
// path degrades instead of failing the run.
func buildBackend(cfg *config.Config) similarity.Backend {
	lexical := similarity.NewLexical()
	if cfg.Scoring.Backend != "semantic" {
		return lexical
	}

	if cfg.Agent.APIKey == "" {
		appLogger.Warn("semantic backend requested without an API key, using lexical")
		return lexical
	}

	provider := agent.NewOpenAIProvider(
		cfg.Agent.APIKey,
		cfg.Agent.Model,
		cfg.Agent.EmbeddingModel,
		cfg.Agent.Temperature,
		cfg.Agent.MaxTokens,
		cfg.Agent.TimeoutSec,
	)

	var cache similarity.EmbeddingCache
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, embeddings will not be cached across runs", zap.Error(err))
		} else {
			cache = redisClient
		}
	}

	return similarity.NewFailover(similarity.NewSemantic(provider, cache), lexical)
}

// embedChartFeatures embeds the chart's extracted feature text for vector
// indexing and lookup.
func embedChartFeatures(ctx context.Context, cfg *config.Config, extractor *extract.Extractor, chart *models.Chart) []float32 {
	if cfg.Agent.APIKey == "" {
		appLogger.Fatal("vector operations need an agent API key for embeddings")
	}

	provider := agent.NewOpenAIProvider(
		cfg.Agent.APIKey,
		cfg.Agent.Model,
		cfg.Agent.EmbeddingModel,
		cfg.Agent.Temperature,
		cfg.Agent.MaxTokens,
		cfg.Agent.TimeoutSec,
	)

	features := extractor.Extract(chart.Notes)
	text := strings.Join(features, " ")
	if text == "" {
		text = chart.Notes
	}

	embedding, err := provider.Embed(ctx, text)
	if err != nil {
		appLogger.Fatal("Failed to embed chart features", zap.Error(err))
	}

	return embedding
}

func openVectorStore(cfg *config.Config) *milvus.Client {
	if !cfg.Milvus.Enabled {
		appLogger.Fatal("vector operations need milvus.enabled")
	}

	vectorDB, err := milvus.NewClient(cfg.Milvus.Endpoint, cfg.Milvus.APIKey, cfg.Milvus.CollectionName, cfg.Milvus.VectorDim)
	if err != nil {
		appLogger.Fatal("Failed to create Milvus client", zap.Error(err))
	}

	return vectorDB
}

func indexChart(ctx context.Context, cfg *config.Config, extractor *extract.Extractor, chart *models.Chart) {
	vectorDB := openVectorStore(cfg)
	defer vectorDB.Close()

	if err := vectorDB.EnsureCollection(ctx); err != nil {
		appLogger.Fatal("Failed to ensure collection", zap.Error(err))
	}

	embedding := embedChartFeatures(ctx, cfg, extractor, chart)
	err := vectorDB.Insert(ctx, []milvus.ChartEmbedding{{
		ChartID:   chart.ID,
		Embedding: embedding,
		SourceTag: chart.SourceTag,
		Notes:     chart.Notes,
		IndexedAt: time.Now().UTC(),
	}})
	if err != nil {
		appLogger.Fatal("Failed to index chart", zap.Error(err))
	}

	appLogger.Info("Chart indexed", zap.String("chart_id", chart.ID))
}

func similarCharts(ctx context.Context, cfg *config.Config, extractor *extract.Extractor, chart *models.Chart, topK int) {
	vectorDB := openVectorStore(cfg)
	defer vectorDB.Close()

	embedding := embedChartFeatures(ctx, cfg, extractor, chart)
	hits, err := vectorDB.SimilarCharts(ctx, embedding, topK, "")
	if err != nil {
		appLogger.Fatal("Similar-chart lookup failed", zap.Error(err))
	}

	printJSON(hits)
}

func runMining(ctx context.Context, cfg *config.Config, store storage.ProfileStore) {
	var (
		graph    patterns.Graph
		kgClient *neo4j.Client
	)
	if cfg.Neo4j.Enabled {
		client, err := neo4j.NewClient(cfg.Neo4j.URI, cfg.Neo4j.Username, cfg.Neo4j.Password, cfg.Neo4j.Database)
		if err != nil {
			appLogger.Fatal("Failed to create Neo4j client", zap.Error(err))
		}
		defer client.Close(ctx)
		kgClient = client
		graph = client
	}

	engine := patterns.NewEngine(store, graph)
	insights, err := engine.Mine(ctx)
	if err != nil {
		appLogger.Fatal("Pattern mining failed", zap.Error(err))
	}
	metrics.PatternInsightsMined.Add(float64(len(insights)))

	out := struct {
		Insights []models.PatternInsight `json:"insights"`
		Patterns []neo4j.CoOccurrence    `json:"persisted_patterns,omitempty"`
	}{Insights: insights}

	// With a graph attached, read back everything persisted so far, not just
	// this run's discoveries.
	if kgClient != nil {
		pairs, err := kgClient.CoOccurrences(ctx, 2)
		if err != nil {
			appLogger.Warn("Failed to read back persisted patterns", zap.Error(err))
		} else {
			out.Patterns = pairs
		}
	}

	printJSON(out)
}

func loadChart(ctx context.Context, store storage.ProfileStore, path string) *models.Chart {
	data, err := os.ReadFile(path)
	if err != nil {
		appLogger.Fatal("Failed to read chart file", zap.String("path", path), zap.Error(err))
	}

	var chart models.Chart
	if err := json.Unmarshal(data, &chart); err != nil {
		appLogger.Fatal("Failed to parse chart file", zap.String("path", path), zap.Error(err))
	}
	if chart.ID == "" {
		appLogger.Fatal("Chart file has no chart_id", zap.String("path", path))
	}

	if err := store.UpsertChart(ctx, &chart); err != nil {
		appLogger.Fatal("Failed to store chart", zap.Error(err))
	}

	return &chart
}

func loadProfile(ctx context.Context, store storage.ProfileStore, path string) *models.LifeProfile {
	data, err := os.ReadFile(path)
	if err != nil {
		appLogger.Fatal("Failed to read profile file", zap.String("path", path), zap.Error(err))
	}

	var profile models.LifeProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		appLogger.Fatal("Failed to parse profile file", zap.String("path", path), zap.Error(err))
	}
	if profile.SubjectID == "" {
		appLogger.Fatal("Profile file has no subject_id", zap.String("path", path))
	}

	if err := store.UpsertProfile(ctx, &profile); err != nil {
		appLogger.Fatal("Failed to store profile", zap.Error(err))
	}

	return &profile
}

// buildJudgeChain assembles the verdict providers in preference order. With
// no usable provider the chain still answers via its rule-based fallback.
func buildJudgeChain(cfg *config.Config) *agent.Chain {
	var providers []agent.Provider
	if cfg.Agent.Provider == "openai" && cfg.Agent.APIKey != "" {
		providers = append(providers, agent.NewOpenAIProvider(
			cfg.Agent.APIKey,
			cfg.Agent.Model,
			cfg.Agent.EmbeddingModel,
			cfg.Agent.Temperature,
			cfg.Agent.MaxTokens,
			cfg.Agent.TimeoutSec,
		))
	}
	return agent.NewChain(providers...)
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		appLogger.Fatal("Failed to encode output", zap.Error(err))
	}
	fmt.Println(string(out))
}
