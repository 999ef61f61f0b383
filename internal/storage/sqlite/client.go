package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/lynkerai/truechart/internal/storage"
	"github.com/lynkerai/truechart/internal/storage/models"
	"github.com/lynkerai/truechart/pkg/logger"
)

// Client implements storage.ProfileStore on SQLite.
type Client struct {
	db *sql.DB
}

var _ storage.ProfileStore = (*Client)(nil)

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS birthcharts (
		id TEXT PRIMARY KEY,
		source TEXT,
		birth_datetime TEXT,
		fields TEXT NOT NULL DEFAULT '{}',
		notes TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS life_profiles (
		subject_id TEXT PRIMARY KEY,
		career_type TEXT,
		marriage_status TEXT,
		children INTEGER DEFAULT 0,
		events TEXT NOT NULL DEFAULT '[]',
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS event_weights (
		event_key TEXT PRIMARY KEY,
		weight REAL NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS verification_results (
		subject_id TEXT NOT NULL,
		chart_id TEXT NOT NULL,
		score REAL NOT NULL,
		confidence TEXT NOT NULL,
		matched TEXT NOT NULL DEFAULT '[]',
		unmatched TEXT NOT NULL DEFAULT '[]',
		life_tags TEXT NOT NULL DEFAULT '{}',
		fallback INTEGER DEFAULT 0,
		note TEXT,
		verified_at INTEGER NOT NULL,
		PRIMARY KEY (subject_id, chart_id)
	);
	CREATE INDEX IF NOT EXISTS idx_verification_subject ON verification_results(subject_id);

	CREATE TABLE IF NOT EXISTS match_results (
		chart_a_id TEXT NOT NULL,
		chart_b_id TEXT NOT NULL,
		score INTEGER NOT NULL,
		matching_fields TEXT NOT NULL DEFAULT '[]',
		comment TEXT,
		computed_at INTEGER NOT NULL,
		PRIMARY KEY (chart_a_id, chart_b_id)
	);
	CREATE INDEX IF NOT EXISTS idx_match_score ON match_results(score);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) UpsertChart(ctx context.Context, chart *models.Chart) error {
	fieldsJSON, err := json.Marshal(chart.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal chart fields: %w", err)
	}

	query := `
		INSERT INTO birthcharts (id, source, birth_datetime, fields, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source = excluded.source,
			birth_datetime = excluded.birth_datetime,
			fields = excluded.fields,
			notes = excluded.notes
	`

	_, err = c.db.ExecContext(ctx, query,
		chart.ID,
		chart.SourceTag,
		chart.BirthDatetime,
		string(fieldsJSON),
		chart.Notes,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert chart: %w", err)
	}

	logger.Debug("Chart upserted", zap.String("chart_id", chart.ID))
	return nil
}

func (c *Client) GetChart(ctx context.Context, chartID string) (*models.Chart, error) {
	query := `SELECT id, source, birth_datetime, fields, notes FROM birthcharts WHERE id = ?`

	var chart models.Chart
	var fieldsJSON string

	err := c.db.QueryRowContext(ctx, query, chartID).Scan(
		&chart.ID,
		&chart.SourceTag,
		&chart.BirthDatetime,
		&fieldsJSON,
		&chart.Notes,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chart %s: %w", chartID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chart: %w", err)
	}

	if err := json.Unmarshal([]byte(fieldsJSON), &chart.Fields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chart fields: %w", err)
	}

	return &chart, nil
}

func (c *Client) ListCharts(ctx context.Context) ([]models.Chart, error) {
	query := `SELECT id, source, birth_datetime, fields, notes FROM birthcharts ORDER BY created_at`

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list charts: %w", err)
	}
	defer rows.Close()

	var charts []models.Chart
	for rows.Next() {
		var chart models.Chart
		var fieldsJSON string

		if err := rows.Scan(&chart.ID, &chart.SourceTag, &chart.BirthDatetime, &fieldsJSON, &chart.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if err := json.Unmarshal([]byte(fieldsJSON), &chart.Fields); err != nil {
			return nil, fmt.Errorf("failed to unmarshal chart fields: %w", err)
		}

		charts = append(charts, chart)
	}

	return charts, rows.Err()
}

func (c *Client) UpsertProfile(ctx context.Context, profile *models.LifeProfile) error {
	eventsJSON, err := json.Marshal(profile.Events)
	if err != nil {
		return fmt.Errorf("failed to marshal events: %w", err)
	}

	query := `
		INSERT INTO life_profiles (subject_id, career_type, marriage_status, children, events, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(subject_id) DO UPDATE SET
			career_type = excluded.career_type,
			marriage_status = excluded.marriage_status,
			children = excluded.children,
			events = excluded.events,
			updated_at = excluded.updated_at
	`

	_, err = c.db.ExecContext(ctx, query,
		profile.SubjectID,
		profile.CareerType,
		profile.MarriageStatus,
		profile.Children,
		string(eventsJSON),
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}

	return nil
}

func (c *Client) GetProfile(ctx context.Context, subjectID string) (*models.LifeProfile, error) {
	query := `SELECT subject_id, career_type, marriage_status, children, events FROM life_profiles WHERE subject_id = ?`

	var profile models.LifeProfile
	var eventsJSON string

	err := c.db.QueryRowContext(ctx, query, subjectID).Scan(
		&profile.SubjectID,
		&profile.CareerType,
		&profile.MarriageStatus,
		&profile.Children,
		&eventsJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", subjectID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	if err := json.Unmarshal([]byte(eventsJSON), &profile.Events); err != nil {
		return nil, fmt.Errorf("failed to unmarshal events: %w", err)
	}

	return &profile, nil
}

func (c *Client) GetWeight(ctx context.Context, eventKey string) (float64, error) {
	var weight float64

	err := c.db.QueryRowContext(ctx, `SELECT weight FROM event_weights WHERE event_key = ?`, eventKey).Scan(&weight)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, storage.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get weight: %w", err)
	}

	return weight, nil
}

func (c *Client) UpsertWeight(ctx context.Context, eventKey string, value float64) error {
	query := `
		INSERT INTO event_weights (event_key, weight, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(event_key) DO UPDATE SET
			weight = excluded.weight,
			updated_at = excluded.updated_at
	`

	if _, err := c.db.ExecContext(ctx, query, eventKey, value, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to upsert weight: %w", err)
	}

	logger.Debug("Event weight upserted", zap.String("event_key", eventKey), zap.Float64("weight", value))
	return nil
}

func (c *Client) UpsertVerificationResult(ctx context.Context, result *models.VerificationResult) error {
	matchedJSON, err := json.Marshal(result.Matched)
	if err != nil {
		return fmt.Errorf("failed to marshal matched events: %w", err)
	}
	unmatchedJSON, err := json.Marshal(result.Unmatched)
	if err != nil {
		return fmt.Errorf("failed to marshal unmatched events: %w", err)
	}
	tagsJSON, err := json.Marshal(result.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal life tags: %w", err)
	}

	fallback := 0
	if result.Fallback {
		fallback = 1
	}

	query := `
		INSERT INTO verification_results
			(subject_id, chart_id, score, confidence, matched, unmatched, life_tags, fallback, note, verified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(subject_id, chart_id) DO UPDATE SET
			score = excluded.score,
			confidence = excluded.confidence,
			matched = excluded.matched,
			unmatched = excluded.unmatched,
			life_tags = excluded.life_tags,
			fallback = excluded.fallback,
			note = excluded.note,
			verified_at = excluded.verified_at
	`

	_, err = c.db.ExecContext(ctx, query,
		result.SubjectID,
		result.ChartID,
		result.Score,
		string(result.Confidence),
		string(matchedJSON),
		string(unmatchedJSON),
		string(tagsJSON),
		fallback,
		result.Note,
		result.VerifiedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert verification result: %w", err)
	}

	logger.Info("Verification result stored",
		zap.String("subject_id", result.SubjectID),
		zap.String("chart_id", result.ChartID),
		zap.Float64("score", result.Score),
	)

	return nil
}

func (c *Client) GetVerificationResult(ctx context.Context, subjectID, chartID string) (*models.VerificationResult, error) {
	query := `
		SELECT subject_id, chart_id, score, confidence, matched, unmatched, life_tags, fallback, note, verified_at
		FROM verification_results
		WHERE subject_id = ? AND chart_id = ?
	`

	var result models.VerificationResult
	var matchedJSON, unmatchedJSON, tagsJSON, confidence string
	var fallback int
	var verifiedAt int64

	err := c.db.QueryRowContext(ctx, query, subjectID, chartID).Scan(
		&result.SubjectID,
		&result.ChartID,
		&result.Score,
		&confidence,
		&matchedJSON,
		&unmatchedJSON,
		&tagsJSON,
		&fallback,
		&result.Note,
		&verifiedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("verification %s/%s: %w", subjectID, chartID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get verification result: %w", err)
	}

	result.Confidence = models.Confidence(confidence)
	result.Fallback = fallback != 0
	result.VerifiedAt = time.Unix(verifiedAt, 0)

	if err := json.Unmarshal([]byte(matchedJSON), &result.Matched); err != nil {
		return nil, fmt.Errorf("failed to unmarshal matched events: %w", err)
	}
	if err := json.Unmarshal([]byte(unmatchedJSON), &result.Unmatched); err != nil {
		return nil, fmt.Errorf("failed to unmarshal unmatched events: %w", err)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &result.Tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal life tags: %w", err)
	}

	return &result, nil
}

func (c *Client) UpsertMatchResult(ctx context.Context, match *models.MatchResult) error {
	fieldsJSON, err := json.Marshal(match.MatchingFields)
	if err != nil {
		return fmt.Errorf("failed to marshal matching fields: %w", err)
	}

	query := `
		INSERT INTO match_results (chart_a_id, chart_b_id, score, matching_fields, comment, computed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(chart_a_id, chart_b_id) DO UPDATE SET
			score = excluded.score,
			matching_fields = excluded.matching_fields,
			comment = excluded.comment,
			computed_at = excluded.computed_at
	`

	_, err = c.db.ExecContext(ctx, query,
		match.ChartAID,
		match.ChartBID,
		match.Score,
		string(fieldsJSON),
		match.Comment,
		match.ComputedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert match result: %w", err)
	}

	return nil
}
