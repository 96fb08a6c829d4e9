package service

import (
	"context"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-console/internal/models"
)

type recordsReader interface {
	ListStudents(ctx context.Context, filters models.FilterSet) ([]models.StudentRecord, error)
	ListClasses(ctx context.Context) ([]models.ClassRecord, error)
}

type recordsCache interface {
	Filters() models.FilterSet
	ReplaceStudents(students []models.StudentRecord)
	ReplaceClasses(classes []models.ClassRecord)
}

// RefreshService re-fetches collections from the backend and swaps them into
// the store. A failed fetch leaves the cache untouched.
type RefreshService struct {
	gateway recordsReader
	cache   recordsCache
	logger  *zap.Logger
}

// NewRefreshService constructs a RefreshService.
func NewRefreshService(gateway recordsReader, cache recordsCache, logger *zap.Logger) *RefreshService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RefreshService{gateway: gateway, cache: cache, logger: logger}
}

// Students fetches the students matching the store's current filters.
func (s *RefreshService) Students(ctx context.Context) error {
	filters := s.cache.Filters()
	students, err := s.gateway.ListStudents(ctx, filters)
	if err != nil {
		s.logger.Warn("student refresh failed", zap.Error(err))
		return err
	}
	s.cache.ReplaceStudents(students)
	s.logger.Debug("students refreshed", zap.Int("count", len(students)))
	return nil
}

// Classes fetches every class.
func (s *RefreshService) Classes(ctx context.Context) error {
	classes, err := s.gateway.ListClasses(ctx)
	if err != nil {
		s.logger.Warn("class refresh failed", zap.Error(err))
		return err
	}
	s.cache.ReplaceClasses(classes)
	s.logger.Debug("classes refreshed", zap.Int("count", len(classes)))
	return nil
}

// All loads both collections concurrently. Each collection is replaced on its
// own success; the returned error joins every failure.
func (s *RefreshService) All(ctx context.Context) error {
	p := pool.New().WithErrors()
	p.Go(func() error { return s.Students(ctx) })
	p.Go(func() error { return s.Classes(ctx) })
	return p.Wait()
}
