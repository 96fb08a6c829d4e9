package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-console/internal/models"
	appErrors "github.com/noah-isme/sma-adp-console/pkg/errors"
)

type classGateway interface {
	CreateClass(ctx context.Context, in models.ClassInput) (*models.ClassRecord, error)
	UpdateClass(ctx context.Context, id string, in models.ClassInput) (*models.ClassRecord, error)
	DeleteClass(ctx context.Context, id string) error
}

type classLookup interface {
	Class(id string) (models.ClassRecord, bool)
	Occupancy(classID string) int
}

type classRefresher interface {
	Students(ctx context.Context) error
	Classes(ctx context.Context) error
}

// ClassService coordinates class mutations.
type ClassService struct {
	gateway   classGateway
	cache     classLookup
	refresh   classRefresher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs ClassService.
func NewClassService(gateway classGateway, cache classLookup, refresh classRefresher, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = NewValidator(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{gateway: gateway, cache: cache, refresh: refresh, validator: validate, logger: logger}
}

// Validate checks a class payload without submitting it.
func (s *ClassService) Validate(in models.ClassInput) error {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validator.Struct(in); err != nil {
		return validationError(err, "invalid class payload")
	}
	return nil
}

// Create adds a new class.
func (s *ClassService) Create(ctx context.Context, in models.ClassInput) (*models.ClassRecord, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validator.Struct(in); err != nil {
		return nil, validationError(err, "invalid class payload")
	}
	created, err := s.gateway.CreateClass(ctx, in)
	if err != nil {
		return nil, err
	}
	s.logger.Info("class created", zap.String("class_id", created.ID))
	s.refreshAfter(ctx, false)
	return created, nil
}

// Update modifies a cached class. Students are re-fetched too since their class
// names may change.
func (s *ClassService) Update(ctx context.Context, id string, in models.ClassInput) (*models.ClassRecord, error) {
	if _, ok := s.cache.Class(id); !ok {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "class not found")
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validator.Struct(in); err != nil {
		return nil, validationError(err, "invalid class payload")
	}
	updated, err := s.gateway.UpdateClass(ctx, id, in)
	if err != nil {
		return nil, err
	}
	s.logger.Info("class updated", zap.String("class_id", id))
	s.refreshAfter(ctx, true)
	return updated, nil
}

// Delete removes an empty class. Classes with enrolled students are rejected
// before any request is sent.
func (s *ClassService) Delete(ctx context.Context, id string) error {
	if _, ok := s.cache.Class(id); !ok {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "class not found")
	}
	if n := s.cache.Occupancy(id); n > 0 {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("class has %d enrolled students", n))
	}
	if err := s.gateway.DeleteClass(ctx, id); err != nil {
		return err
	}
	s.logger.Info("class deleted", zap.String("class_id", id))
	s.refreshAfter(ctx, false)
	return nil
}

func (s *ClassService) refreshAfter(ctx context.Context, students bool) {
	if s.refresh == nil {
		return
	}
	if err := s.refresh.Classes(ctx); err != nil {
		s.logger.Warn("refresh after class mutation failed", zap.Error(err))
	}
	if !students {
		return
	}
	if err := s.refresh.Students(ctx); err != nil {
		s.logger.Warn("refresh after class mutation failed", zap.Error(err))
	}
}
