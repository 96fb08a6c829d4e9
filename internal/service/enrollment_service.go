package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-console/internal/models"
	appErrors "github.com/noah-isme/sma-adp-console/pkg/errors"
)

type enrollmentGateway interface {
	Enroll(ctx context.Context, req models.EnrollmentRequest) error
}

type enrollmentLookup interface {
	Student(id string) (models.StudentRecord, bool)
	Class(id string) (models.ClassRecord, bool)
	Occupancy(classID string) int
	View() models.View
}

// EnrollmentService assigns students to classes. The cached occupancy is checked
// first; the backend remains the authority on capacity.
type EnrollmentService struct {
	gateway enrollmentGateway
	cache   enrollmentLookup
	refresh studentRefresher
	logger  *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(gateway enrollmentGateway, cache enrollmentLookup, refresh studentRefresher, logger *zap.Logger) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{gateway: gateway, cache: cache, refresh: refresh, logger: logger}
}

// Enroll assigns studentID to classID.
func (s *EnrollmentService) Enroll(ctx context.Context, studentID, classID string) error {
	student, ok := s.cache.Student(studentID)
	if !ok {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "student not found")
	}
	if student.Enrolled() {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "student is already enrolled in a class")
	}
	class, ok := s.cache.Class(classID)
	if !ok {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "class not found")
	}
	if s.cache.Occupancy(classID) >= class.Capacity {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "class is full")
	}

	if err := s.gateway.Enroll(ctx, models.EnrollmentRequest{StudentID: studentID, ClassID: classID}); err != nil {
		return err
	}
	s.logger.Info("student enrolled", zap.String("student_id", studentID), zap.String("class_id", classID))
	if s.refresh != nil {
		if err := s.refresh.Students(ctx); err != nil {
			s.logger.Warn("refresh after enrollment failed", zap.Error(err))
		}
	}
	return nil
}

// Options lists every cached class for the enrollment picker. Full classes are
// listed but not selectable.
func (s *EnrollmentService) Options(studentID string) ([]models.ClassOption, error) {
	if _, ok := s.cache.Student(studentID); !ok {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student not found")
	}
	rows := s.cache.View().Classes
	options := make([]models.ClassOption, 0, len(rows))
	for _, row := range rows {
		options = append(options, models.ClassOption{ClassRow: row, Selectable: !row.Full})
	}
	return options, nil
}
