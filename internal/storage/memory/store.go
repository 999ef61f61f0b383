// Package memory is an in-process ProfileStore used by tests and by the demo
// binary when no database path is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/lynkerai/truechart/internal/storage"
	"github.com/lynkerai/truechart/internal/storage/models"
)

type Store struct {
	mu            sync.RWMutex
	charts        map[string]models.Chart
	chartOrder    []string
	profiles      map[string]models.LifeProfile
	weights       map[string]float64
	verifications map[string]models.VerificationResult
	matches       map[string]models.MatchResult
}

var _ storage.ProfileStore = (*Store)(nil)

func New() *Store {
	return &Store{
		charts:        make(map[string]models.Chart),
		profiles:      make(map[string]models.LifeProfile),
		weights:       make(map[string]float64),
		verifications: make(map[string]models.VerificationResult),
		matches:       make(map[string]models.MatchResult),
	}
}

func (s *Store) UpsertChart(_ context.Context, chart *models.Chart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.charts[chart.ID]; !exists {
		s.chartOrder = append(s.chartOrder, chart.ID)
	}
	s.charts[chart.ID] = *chart
	return nil
}

func (s *Store) GetChart(_ context.Context, chartID string) (*models.Chart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chart, ok := s.charts[chartID]
	if !ok {
		return nil, fmt.Errorf("chart %s: %w", chartID, storage.ErrNotFound)
	}
	return &chart, nil
}

func (s *Store) ListCharts(_ context.Context) ([]models.Chart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	charts := make([]models.Chart, 0, len(s.chartOrder))
	for _, id := range s.chartOrder {
		charts = append(charts, s.charts[id])
	}
	return charts, nil
}

func (s *Store) UpsertProfile(_ context.Context, profile *models.LifeProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.profiles[profile.SubjectID] = *profile
	return nil
}

func (s *Store) GetProfile(_ context.Context, subjectID string) (*models.LifeProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, ok := s.profiles[subjectID]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", subjectID, storage.ErrNotFound)
	}
	return &profile, nil
}

func (s *Store) GetWeight(_ context.Context, eventKey string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	weight, ok := s.weights[eventKey]
	if !ok {
		return 0, storage.ErrNotFound
	}
	return weight, nil
}

func (s *Store) UpsertWeight(_ context.Context, eventKey string, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.weights[eventKey] = value
	return nil
}

func (s *Store) UpsertVerificationResult(_ context.Context, result *models.VerificationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.verifications[result.SubjectID+"/"+result.ChartID] = *result
	return nil
}

func (s *Store) GetVerificationResult(_ context.Context, subjectID, chartID string) (*models.VerificationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result, ok := s.verifications[subjectID+"/"+chartID]
	if !ok {
		return nil, fmt.Errorf("verification %s/%s: %w", subjectID, chartID, storage.ErrNotFound)
	}
	return &result, nil
}

func (s *Store) UpsertMatchResult(_ context.Context, match *models.MatchResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.matches[match.ChartAID+"/"+match.ChartBID] = *match
	return nil
}
