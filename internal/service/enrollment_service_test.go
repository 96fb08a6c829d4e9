package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-console/internal/models"
	"github.com/noah-isme/sma-adp-console/internal/view"
	appErrors "github.com/noah-isme/sma-adp-console/pkg/errors"
)

func TestEnrollmentScenarioAnaBrunoTurmaA(t *testing.T) {
	store := seededStore()
	gateway := &mockRecordsGateway{}
	svc := NewEnrollmentService(gateway, store, nil, nil)

	names := func(students []models.StudentRecord) []string {
		out := make([]string, 0, len(students))
		for _, s := range students {
			out = append(out, s.Name)
		}
		return out
	}
	assert.Equal(t, []string{"Ana", "Bruno", "Carla"}, names(store.View().Students))
	assert.Equal(t, 19, view.Age(store.View().Students[0].BirthDate, testNow))

	require.NoError(t, store.SetStatusFilter(models.StudentStatusActive))
	assert.Equal(t, []string{"Ana", "Carla"}, names(store.View().Students))

	// Turma A now reaches capacity 2.
	classID := "c1"
	students := sampleStudents()
	students[2].ClassID = &classID
	store.ReplaceStudents(append(students, models.StudentRecord{ID: "s4", Name: "Davi", Status: models.StudentStatusActive}))

	err := svc.Enroll(context.Background(), "s4", "c1")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrPreconditionFailed))
	assert.Equal(t, "class is full", appErrors.FromError(err).Message)
	assert.Empty(t, gateway.calls)
}

func TestEnrollmentPreconditions(t *testing.T) {
	store := seededStore()
	gateway := &mockRecordsGateway{}
	svc := NewEnrollmentService(gateway, store, nil, nil)
	ctx := context.Background()

	assert.Equal(t, "student not found", appErrors.FromError(svc.Enroll(ctx, "nobody", "c1")).Message)
	assert.Equal(t, "student is already enrolled in a class", appErrors.FromError(svc.Enroll(ctx, "s1", "c2")).Message)
	assert.Equal(t, "class not found", appErrors.FromError(svc.Enroll(ctx, "s2", "c9")).Message)
	assert.Empty(t, gateway.calls)
}

func TestEnrollmentSendsRequestAndRefetches(t *testing.T) {
	store := seededStore()
	gateway := &mockRecordsGateway{students: sampleStudents()}
	svc := NewEnrollmentService(gateway, store, NewRefreshService(gateway, store, nil), nil)

	require.NoError(t, svc.Enroll(context.Background(), "s2", "c2"))
	assert.Equal(t, []models.EnrollmentRequest{{StudentID: "s2", ClassID: "c2"}}, gateway.enrolled)
	assert.Equal(t, []string{"Enroll", "ListStudents"}, gateway.calls)
}

func TestEnrollmentBackendRejectionIsAuthoritative(t *testing.T) {
	store := seededStore()
	gateway := &mockRecordsGateway{err: appErrors.Rejection(http.StatusConflict, "Turma lotada")}
	svc := NewEnrollmentService(gateway, store, NewRefreshService(gateway, store, nil), nil)
	before := store.State()

	err := svc.Enroll(context.Background(), "s2", "c2")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrBackendRejection))
	assert.Equal(t, "Turma lotada", appErrors.FromError(err).Message)
	assert.Equal(t, []string{"Enroll"}, gateway.calls)
	assert.Equal(t, before, store.State())
}

func TestEnrollmentOptionsMarkFullClasses(t *testing.T) {
	store := seededStore()
	classID := "c2"
	students := sampleStudents()
	students[2].ClassID = &classID
	store.ReplaceStudents(students)
	svc := NewEnrollmentService(&mockRecordsGateway{}, store, nil, nil)

	options, err := svc.Options("s2")
	require.NoError(t, err)
	require.Len(t, options, 2)
	assert.True(t, options[0].Selectable)
	assert.False(t, options[1].Selectable)
	assert.Equal(t, 100.0, options[1].OccupancyPercent)

	_, err = svc.Options("nobody")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrPreconditionFailed))
}
