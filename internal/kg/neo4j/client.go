// Package neo4j persists the chart knowledge graph: palace and star nodes,
// chart membership edges, co-occurrence counts, and mined pattern insights.
package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/lynkerai/truechart/pkg/circuitbreaker"
	"github.com/lynkerai/truechart/pkg/logger"
	"github.com/lynkerai/truechart/pkg/retry"
)

type Client struct {
	driver      neo4j.DriverWithContext
	database    string
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

// CoOccurrence is one (palace, main star) pairing with its observed count
// across stored charts.
type CoOccurrence struct {
	Palace string
	Star   string
	Count  int
}

func NewClient(uri, username, password, database string) (*Client, error) {
	if database == "" {
		database = "neo4j"
	}
	driver, err := neo4j.NewDriverWithContext(
		uri,
		neo4j.BasicAuth(username, password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	ctx := context.Background()
	err = driver.VerifyConnectivity(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to verify connectivity: %w", err)
	}

	cb := circuitbreaker.New("neo4j", circuitbreaker.Config{
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          20 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   200 * time.Millisecond,
		MaxDelay:       3 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("Neo4j client initialized", zap.String("uri", uri))

	return &Client{
		driver:      driver,
		database:    database,
		cb:          cb,
		retryConfig: retryConfig,
	}, nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

func (c *Client) executeWithRetry(ctx context.Context, operation func(neo4j.SessionWithContext) error) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database})
			defer session.Close(ctx)
			return operation(session)
		})
	})
}

// UpsertChart merges the chart node and its palace/star membership edges.
// Empty field values are skipped rather than merged as blank nodes.
func (c *Client) UpsertChart(ctx context.Context, chartID, palace, star string) error {
	return c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		query := `
			MERGE (ch:Chart {id: $chart_id})
			SET ch.updated_at = timestamp()
		`
		if _, err := session.Run(ctx, query, map[string]interface{}{"chart_id": chartID}); err != nil {
			return fmt.Errorf("failed to merge chart node: %w", err)
		}

		if palace != "" {
			query = `
				MATCH (ch:Chart {id: $chart_id})
				MERGE (p:Palace {name: $palace})
				MERGE (ch)-[:HAS_PALACE]->(p)
			`
			if _, err := session.Run(ctx, query, map[string]interface{}{
				"chart_id": chartID,
				"palace":   palace,
			}); err != nil {
				return fmt.Errorf("failed to merge palace edge: %w", err)
			}
		}

		if star != "" {
			query = `
				MATCH (ch:Chart {id: $chart_id})
				MERGE (s:Star {name: $star})
				MERGE (ch)-[:HAS_STAR]->(s)
			`
			if _, err := session.Run(ctx, query, map[string]interface{}{
				"chart_id": chartID,
				"star":     star,
			}); err != nil {
				return fmt.Errorf("failed to merge star edge: %w", err)
			}
		}

		logger.Debug("Chart merged into KG",
			zap.String("chart_id", chartID),
			zap.String("palace", palace),
			zap.String("star", star),
		)

		return nil
	})
}

// RecordCoOccurrence upserts the counted edge between a palace and a star.
func (c *Client) RecordCoOccurrence(ctx context.Context, palace, star string, count int) error {
	return c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		query := `
			MERGE (p:Palace {name: $palace})
			MERGE (s:Star {name: $star})
			MERGE (p)-[r:CO_OCCURS]->(s)
			SET r.count = $count,
			    r.updated_at = timestamp()
		`

		_, err := session.Run(ctx, query, map[string]interface{}{
			"palace": palace,
			"star":   star,
			"count":  count,
		})
		if err != nil {
			return fmt.Errorf("failed to record co-occurrence: %w", err)
		}

		return nil
	})
}

// InsightExists reports whether an insight with the given title was already
// stored. Used to dedupe repeated mining runs.
func (c *Client) InsightExists(ctx context.Context, title string) (bool, error) {
	var exists bool

	err := c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		query := `
			MATCH (i:Insight {title: $title})
			RETURN count(i) AS n
		`

		result, err := session.Run(ctx, query, map[string]interface{}{"title": title})
		if err != nil {
			return fmt.Errorf("failed to query insight: %w", err)
		}

		if result.Next(ctx) {
			n, _ := result.Record().Get("n")
			if count, ok := n.(int64); ok {
				exists = count > 0
			}
		}

		return result.Err()
	})

	if err != nil {
		return false, err
	}

	return exists, nil
}

// StoreInsight persists one mined insight node keyed by title.
func (c *Client) StoreInsight(ctx context.Context, title, insight string, count int, minedAt time.Time) error {
	return c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		query := `
			MERGE (i:Insight {title: $title})
			SET i.insight = $insight,
			    i.count = $count,
			    i.mined_at = $mined_at
		`

		_, err := session.Run(ctx, query, map[string]interface{}{
			"title":    title,
			"insight":  insight,
			"count":    count,
			"mined_at": minedAt.Unix(),
		})
		if err != nil {
			return fmt.Errorf("failed to store insight: %w", err)
		}

		logger.Debug("Insight stored in KG", zap.String("title", title), zap.Int("count", count))

		return nil
	})
}

// CoOccurrences returns all counted palace-star edges at or above minCount,
// highest count first.
func (c *Client) CoOccurrences(ctx context.Context, minCount int) ([]CoOccurrence, error) {
	var pairs []CoOccurrence

	err := c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		query := `
			MATCH (p:Palace)-[r:CO_OCCURS]->(s:Star)
			WHERE r.count >= $min_count
			RETURN p.name AS palace, s.name AS star, r.count AS count
			ORDER BY r.count DESC
		`

		result, err := session.Run(ctx, query, map[string]interface{}{"min_count": minCount})
		if err != nil {
			return fmt.Errorf("failed to query co-occurrences: %w", err)
		}

		for result.Next(ctx) {
			record := result.Record()
			palace, _ := record.Get("palace")
			star, _ := record.Get("star")
			count, _ := record.Get("count")

			pair := CoOccurrence{}
			if v, ok := palace.(string); ok {
				pair.Palace = v
			}
			if v, ok := star.(string); ok {
				pair.Star = v
			}
			if v, ok := count.(int64); ok {
				pair.Count = int(v)
			}
			pairs = append(pairs, pair)
		}

		return result.Err()
	})

	if err != nil {
		return nil, err
	}

	logger.Info("KG co-occurrence query completed",
		zap.Int("min_count", minCount),
		zap.Int("results", len(pairs)),
	)

	return pairs, nil
}
