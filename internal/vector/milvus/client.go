// Package milvus stores per-chart feature embeddings for similar-chart
// lookup. It backs the embedding-based half of same-destiny recommendations
// and is optional at runtime.
package milvus

import (
	"context"
	"fmt"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/lynkerai/truechart/pkg/logger"
)

type Client struct {
	client         client.Client
	collectionName string
	vectorDim      int
}

// ChartEmbedding is one indexed chart: the embedding of its extracted
// feature text plus enough metadata to present a hit without a store read.
type ChartEmbedding struct {
	ChartID   string
	Embedding []float32
	SourceTag string
	Notes     string
	IndexedAt time.Time
}

type SimilarChart struct {
	ChartID   string
	SourceTag string
	Notes     string
	Score     float32
}

func NewClient(endpoint, apiKey, collectionName string, vectorDim int) (*Client, error) {
	c, err := client.NewClient(context.Background(), client.Config{
		Address: endpoint,
		APIKey:  apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus client initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return &Client{
		client:         c,
		collectionName: collectionName,
		vectorDim:      vectorDim,
	}, nil
}

func (m *Client) Close() error {
	return m.client.Close()
}

func (m *Client) EnsureCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if has {
		logger.Info("Collection already exists", zap.String("collection", m.collectionName))
		return nil
	}

	schema := &entity.Schema{
		CollectionName: m.collectionName,
		Description:    "Birth-chart feature embeddings",
		Fields: []*entity.Field{
			{
				Name:       "chart_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", m.vectorDim),
				},
			},
			{
				Name:     "source_tag",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "notes",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "4096",
				},
			},
			{
				Name:     "indexed_at",
				DataType: entity.FieldTypeInt64,
			},
		},
	}

	err = m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.L2, 1024)
	if err != nil {
		return fmt.Errorf("failed to build index: %w", err)
	}
	err = m.client.CreateIndex(ctx, m.collectionName, "embedding", idx, false)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = m.client.LoadCollection(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", m.collectionName))

	return nil
}

func (m *Client) Insert(ctx context.Context, charts []ChartEmbedding) error {
	if len(charts) == 0 {
		return nil
	}

	chartIDs := make([]string, len(charts))
	embeddings := make([][]float32, len(charts))
	sourceTags := make([]string, len(charts))
	notes := make([]string, len(charts))
	indexedAts := make([]int64, len(charts))

	for i, ch := range charts {
		chartIDs[i] = ch.ChartID
		embeddings[i] = ch.Embedding
		sourceTags[i] = ch.SourceTag
		notes[i] = ch.Notes
		indexedAts[i] = ch.IndexedAt.Unix()
	}

	_, err := m.client.Insert(
		ctx,
		m.collectionName,
		"",
		entity.NewColumnVarChar("chart_id", chartIDs),
		entity.NewColumnFloatVector("embedding", m.vectorDim, embeddings),
		entity.NewColumnVarChar("source_tag", sourceTags),
		entity.NewColumnVarChar("notes", notes),
		entity.NewColumnInt64("indexed_at", indexedAts),
	)

	if err != nil {
		return fmt.Errorf("failed to insert chart embeddings: %w", err)
	}

	err = m.client.Flush(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("Chart embeddings inserted", zap.Int("count", len(charts)))

	return nil
}

// SimilarCharts returns the topK nearest charts to the query embedding,
// optionally restricted to one source tag.
func (m *Client) SimilarCharts(ctx context.Context, queryEmbedding []float32, topK int, sourceTag string) ([]SimilarChart, error) {
	expr := ""
	if sourceTag != "" {
		expr = fmt.Sprintf(`source_tag == "%s"`, sourceTag)
	}

	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := m.client.Search(
		ctx,
		m.collectionName,
		[]string{},
		expr,
		[]string{"chart_id", "source_tag", "notes"},
		[]entity.Vector{entity.FloatVector(queryEmbedding)},
		"embedding",
		entity.L2,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]SimilarChart, 0)
	for _, sr := range searchResult {
		for i := 0; i < sr.ResultCount; i++ {
			chartIDCol := sr.Fields.GetColumn("chart_id")
			sourceTagCol := sr.Fields.GetColumn("source_tag")
			notesCol := sr.Fields.GetColumn("notes")

			chartID, _ := chartIDCol.Get(i)
			tag, _ := sourceTagCol.Get(i)
			note, _ := notesCol.Get(i)

			results = append(results, SimilarChart{
				ChartID:   chartID.(string),
				SourceTag: tag.(string),
				Notes:     note.(string),
				Score:     sr.Scores[i],
			})
		}
	}

	logger.Info("Similar-chart search completed",
		zap.Int("topK", topK),
		zap.Int("results", len(results)),
	)

	return results, nil
}
