// Package storage defines the narrow persistence contract the verification
// core consumes. The core is agnostic to the technology behind it; sqlite
// and in-memory implementations live in subpackages.
package storage

import (
	"context"
	"errors"

	"github.com/lynkerai/truechart/internal/storage/models"
)

// ErrNotFound is returned by lookups whose key has no record. Callers that
// treat absence as a default (e.g. weight reads) branch on it with errors.Is.
var ErrNotFound = errors.New("storage: record not found")

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ProfileStore is the record interface between the scoring core and
// persistence. Upserts are last-writer-wins; weight rows are keyed by the
// normalized event description so learning pools across subjects.
type ProfileStore interface {
	GetChart(ctx context.Context, chartID string) (*models.Chart, error)
	ListCharts(ctx context.Context) ([]models.Chart, error)
	UpsertChart(ctx context.Context, chart *models.Chart) error

	GetProfile(ctx context.Context, subjectID string) (*models.LifeProfile, error)
	UpsertProfile(ctx context.Context, profile *models.LifeProfile) error

	// GetWeight returns ErrNotFound when the event key has never been adapted.
	GetWeight(ctx context.Context, eventKey string) (float64, error)
	UpsertWeight(ctx context.Context, eventKey string, value float64) error

	UpsertVerificationResult(ctx context.Context, result *models.VerificationResult) error
	GetVerificationResult(ctx context.Context, subjectID, chartID string) (*models.VerificationResult, error)

	UpsertMatchResult(ctx context.Context, match *models.MatchResult) error
}
