package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-console/internal/models"
	appErrors "github.com/noah-isme/sma-adp-console/pkg/errors"
)

type studentGateway interface {
	CreateStudent(ctx context.Context, in models.StudentInput) (*models.StudentRecord, error)
	UpdateStudent(ctx context.Context, id string, in models.StudentInput) (*models.StudentRecord, error)
	DeleteStudent(ctx context.Context, id string) error
}

type studentLookup interface {
	Student(id string) (models.StudentRecord, bool)
}

type studentRefresher interface {
	Students(ctx context.Context) error
}

// StudentService validates and submits student mutations, then re-fetches the list.
type StudentService struct {
	gateway   studentGateway
	cache     studentLookup
	refresh   studentRefresher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs StudentService.
func NewStudentService(gateway studentGateway, cache studentLookup, refresh studentRefresher, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = NewValidator(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{gateway: gateway, cache: cache, refresh: refresh, validator: validate, logger: logger}
}

// Validate checks a student payload without submitting it.
func (s *StudentService) Validate(in models.StudentInput) error {
	in = normalizeStudentInput(in)
	if err := s.validator.Struct(in); err != nil {
		return validationError(err, "invalid student payload")
	}
	return nil
}

// Create registers a new student.
func (s *StudentService) Create(ctx context.Context, in models.StudentInput) (*models.StudentRecord, error) {
	in = normalizeStudentInput(in)
	if err := s.validator.Struct(in); err != nil {
		return nil, validationError(err, "invalid student payload")
	}
	created, err := s.gateway.CreateStudent(ctx, in)
	if err != nil {
		return nil, err
	}
	s.logger.Info("student created", zap.String("student_id", created.ID))
	s.afterMutation(ctx)
	return created, nil
}

// Update replaces the editable fields of a cached student.
func (s *StudentService) Update(ctx context.Context, id string, in models.StudentInput) (*models.StudentRecord, error) {
	if _, ok := s.cache.Student(id); !ok {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student not found")
	}
	in = normalizeStudentInput(in)
	if err := s.validator.Struct(in); err != nil {
		return nil, validationError(err, "invalid student payload")
	}
	updated, err := s.gateway.UpdateStudent(ctx, id, in)
	if err != nil {
		return nil, err
	}
	s.logger.Info("student updated", zap.String("student_id", id))
	s.afterMutation(ctx)
	return updated, nil
}

// Delete removes a cached student.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	if _, ok := s.cache.Student(id); !ok {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "student not found")
	}
	if err := s.gateway.DeleteStudent(ctx, id); err != nil {
		return err
	}
	s.logger.Info("student deleted", zap.String("student_id", id))
	s.afterMutation(ctx)
	return nil
}

// afterMutation re-fetches the student list. The mutation already succeeded, so a
// failed refresh is only logged.
func (s *StudentService) afterMutation(ctx context.Context) {
	if s.refresh == nil {
		return
	}
	if err := s.refresh.Students(ctx); err != nil {
		s.logger.Warn("refresh after student mutation failed", zap.Error(err))
	}
}

func normalizeStudentInput(in models.StudentInput) models.StudentInput {
	in.Name = strings.TrimSpace(in.Name)
	if in.Email != nil {
		in.Email = models.StringPtr(strings.TrimSpace(*in.Email))
	}
	if in.ClassID != nil {
		in.ClassID = models.StringPtr(strings.TrimSpace(*in.ClassID))
	}
	in.Status = models.StudentStatus(strings.ToLower(strings.TrimSpace(string(in.Status))))
	return in
}
