package console

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-console/internal/models"
	"github.com/noah-isme/sma-adp-console/internal/service"
)

func dispatch(t *testing.T, h *harness, line string) Result {
	t.Helper()
	fields, err := SplitArgs(line)
	require.NoError(t, err)
	return h.dispatcher.Dispatch(context.Background(), fields[0], fields[1:])
}

func countPrefix(entries []string, prefix string) int {
	n := 0
	for _, e := range entries {
		if strings.HasPrefix(e, prefix) {
			n++
		}
	}
	return n
}

func TestRefreshLoadsBothCollections(t *testing.T) {
	h := newHarness(t, 0)
	result := dispatch(t, h, "refresh")
	require.True(t, result.OK())
	assert.Nil(t, result.Notification)
	assert.Len(t, h.store.State().Students, 2)
	assert.Len(t, h.store.State().Classes, 2)
	assert.Equal(t, "Turma A", models.StringValue(h.store.View().Students[0].ClassName))
}

func TestSearchIsDebounced(t *testing.T) {
	h := newHarness(t, 40*time.Millisecond)
	dispatch(t, h, "search a")
	dispatch(t, h, "search an")
	dispatch(t, h, "search ana")
	assert.Equal(t, "ana", h.store.Filters().Search)

	require.Eventually(t, func() bool {
		return countPrefix(h.backend.requestLog(), "GET /students?search=ana") == 1
	}, time.Second, 10*time.Millisecond)
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 1, countPrefix(h.backend.requestLog(), "GET /students"))
	require.Eventually(t, func() bool { return len(h.store.State().Students) == 1 }, time.Second, 10*time.Millisecond)
}

func TestSearchNowBypassesDebounce(t *testing.T) {
	h := newHarness(t, time.Hour)
	dispatch(t, h, "search bru")
	result := dispatch(t, h, `search-now "bru"`)
	require.True(t, result.OK())
	assert.Equal(t, []string{"GET /students?search=bru"}, h.backend.requestLog())
	require.Len(t, h.store.View().Students, 1)
	assert.Equal(t, "Bruno", h.store.View().Students[0].Name)
}

func TestFiltersRefetchWithQuery(t *testing.T) {
	h := newHarness(t, 0)
	dispatch(t, h, "refresh")

	require.True(t, dispatch(t, h, "filter-status active").OK())
	require.True(t, dispatch(t, h, "filter-class c1").OK())
	assert.Equal(t, models.FilterSet{ClassID: "c1", Status: models.StudentStatusActive}, h.store.Filters())
	assert.Contains(t, h.backend.requestLog(), "GET /students?classId=c1&status=ativo")

	bad := dispatch(t, h, "filter-class c9")
	assert.False(t, bad.OK())
	assert.Equal(t, "unknown class: c9", bad.Notification.Message)

	require.True(t, dispatch(t, h, "clear-filters").OK())
	assert.True(t, h.store.Filters().Empty())
}

func TestSortRepeatsFlipDirection(t *testing.T) {
	h := newHarness(t, 0)
	dispatch(t, h, "refresh")

	dispatch(t, h, "sort age")
	assert.Equal(t, models.SortSpec{Field: models.SortByAge, Order: models.SortAsc}, h.store.State().Sort)
	assert.Equal(t, "Bruno", h.store.View().Students[0].Name)

	dispatch(t, h, "sort age")
	assert.Equal(t, models.SortDesc, h.store.State().Sort.Order)
	assert.Equal(t, "Ana", h.store.View().Students[0].Name)

	dispatch(t, h, "sort-toggle")
	assert.Equal(t, models.SortAsc, h.store.State().Sort.Order)

	result := dispatch(t, h, "sort height")
	assert.False(t, result.OK())
	result = dispatch(t, h, "sort name sideways")
	assert.Equal(t, "invalid sort order: sideways", result.Notification.Message)
	assert.Equal(t, models.SortByAge, h.store.State().Sort.Field)
}

func TestSortAcceptsClassNameAlias(t *testing.T) {
	h := newHarness(t, 0)
	dispatch(t, h, "refresh")

	result := dispatch(t, h, "sort class-name desc")
	require.True(t, result.OK())
	assert.Equal(t, models.SortSpec{Field: models.SortByClass, Order: models.SortDesc}, h.store.State().Sort)

	dispatch(t, h, "sort class")
	assert.Equal(t, models.SortAsc, h.store.State().Sort.Order)
}

func TestTabFetchesClassesWhenCacheEmpty(t *testing.T) {
	h := newHarness(t, 0)
	require.True(t, dispatch(t, h, "tab 2").OK())
	assert.Equal(t, models.TabClasses, h.store.View().ActiveTab)
	assert.Equal(t, []string{"GET /classes"}, h.backend.requestLog())

	dispatch(t, h, "tab reports")
	assert.Len(t, h.backend.requestLog(), 1)

	result := dispatch(t, h, "tab grades")
	assert.Equal(t, "unknown tab: grades", result.Notification.Message)
}

func TestStudentFormCreateFlow(t *testing.T) {
	h := newHarness(t, 0)
	dispatch(t, h, "refresh")

	require.True(t, dispatch(t, h, "student-new").OK())
	require.True(t, dispatch(t, h, `student-set name "Carla Dias"`).OK())
	require.True(t, dispatch(t, h, "student-set birth 2011-02-03").OK())
	require.True(t, dispatch(t, h, "student-set email carla@escola.br").OK())
	assert.Equal(t, service.FormOpen, h.dispatcher.Forms().Student.Phase)

	result := dispatch(t, h, "student-submit")
	require.True(t, result.OK())
	assert.Equal(t, "Student created", result.Notification.Message)
	assert.Equal(t, service.FormClosed, h.dispatcher.Forms().Student.Phase)
	assert.Len(t, h.store.State().Students, 3)
}

func TestStudentFormValidationKeepsFormOpen(t *testing.T) {
	h := newHarness(t, 0)
	dispatch(t, h, "refresh")
	before := len(h.backend.requestLog())

	dispatch(t, h, "student-new")
	dispatch(t, h, "student-set name Al")
	dispatch(t, h, "student-set birth 2011-02-03")
	result := dispatch(t, h, "student-submit")
	require.False(t, result.OK())
	assert.Equal(t, "name must be at least 3 characters", result.Notification.Message)

	forms := h.dispatcher.Forms()
	assert.Equal(t, service.FormOpen, forms.Student.Phase)
	assert.Equal(t, "Al", forms.Student.Values.Name)
	assert.Equal(t, before, len(h.backend.requestLog()))

	assert.False(t, dispatch(t, h, "student-set birth yesterday").OK())
	require.True(t, dispatch(t, h, "student-cancel").OK())
	assert.False(t, dispatch(t, h, "student-set name Alice").OK())
}

func TestStudentEditPrefillsAndUpdates(t *testing.T) {
	h := newHarness(t, 0)
	dispatch(t, h, "refresh")

	require.True(t, dispatch(t, h, "student-edit s2").OK())
	assert.Equal(t, "Bruno", h.dispatcher.Forms().Student.Values.Name)
	dispatch(t, h, `student-set name "Bruno Lima"`)
	result := dispatch(t, h, "student-submit")
	require.True(t, result.OK())
	assert.Equal(t, "Student updated", result.Notification.Message)
	assert.Contains(t, h.backend.requestLog(), "PUT /students/s2")

	student, ok := h.store.Student("s2")
	require.True(t, ok)
	assert.Equal(t, "Bruno Lima", student.Name)
}

func TestEnrollRespectsCachedCapacity(t *testing.T) {
	h := newHarness(t, 0)
	dispatch(t, h, "refresh")

	result := dispatch(t, h, "enroll s1 c2")
	assert.Equal(t, "student is already enrolled in a class", result.Notification.Message)

	result = dispatch(t, h, "enroll s2 c2")
	require.True(t, result.OK())
	assert.Equal(t, "Student enrolled", result.Notification.Message)
	student, _ := h.store.Student("s2")
	assert.Equal(t, "Turma B", models.StringValue(student.ClassName))

	dispatch(t, h, "student-new")
	dispatch(t, h, "student-set name Davi")
	dispatch(t, h, "student-set birth 2012-01-01")
	require.True(t, dispatch(t, h, "student-submit").OK())
	var davi string
	for _, s := range h.store.State().Students {
		if s.Name == "Davi" {
			davi = s.ID
		}
	}
	require.NotEmpty(t, davi)

	before := countPrefix(h.backend.requestLog(), "POST /enrollments")
	result = dispatch(t, h, "enroll "+davi+" c2")
	assert.Equal(t, "class is full", result.Notification.Message)
	assert.Equal(t, before, countPrefix(h.backend.requestLog(), "POST /enrollments"))

	options := dispatch(t, h, "enroll-options "+davi)
	assert.Contains(t, options.Output, "c2  Turma B  1/1 (100.0%)  (full)")
}

func TestClassDeleteWithStudentsRejectedLocally(t *testing.T) {
	h := newHarness(t, 0)
	dispatch(t, h, "refresh")

	result := dispatch(t, h, "class-delete c1")
	assert.Equal(t, "class has 1 enrolled students", result.Notification.Message)
	assert.Zero(t, countPrefix(h.backend.requestLog(), "DELETE"))

	result = dispatch(t, h, "class-delete c2")
	require.True(t, result.OK())
	assert.Len(t, h.store.State().Classes, 1)
}

func TestClassFormCreateFlow(t *testing.T) {
	h := newHarness(t, 0)
	dispatch(t, h, "refresh")

	dispatch(t, h, "class-new")
	dispatch(t, h, `class-set name "Turma C"`)
	assert.Equal(t, "capacity must be a whole number", dispatch(t, h, "class-set capacity many").Notification.Message)
	dispatch(t, h, "class-set capacity 25")
	result := dispatch(t, h, "class-submit")
	require.True(t, result.OK())
	assert.Len(t, h.store.State().Classes, 3)
}

func TestTransportFailureShowsGenericMessage(t *testing.T) {
	h := newHarness(t, 0)
	h.server.Close()

	result := dispatch(t, h, "refresh")
	require.False(t, result.OK())
	assert.Equal(t, TransportFailureMessage, result.Notification.Message)
	assert.Equal(t, *result.Notification, *h.dispatcher.deps.Notifier.Last())
}

func TestUnknownEventAndUsage(t *testing.T) {
	h := newHarness(t, 0)
	result := dispatch(t, h, "dance")
	assert.Equal(t, `unknown event "dance", try help`, result.Notification.Message)
	result = dispatch(t, h, "enroll s1")
	assert.Equal(t, "usage: enroll <student-id> <class-id>", result.Notification.Message)

	help := dispatch(t, h, "help")
	assert.Contains(t, help.Output, "sort <name|age|class|status> [asc|desc]")
	assert.Contains(t, h.metrics.events, "unknown:error")
	assert.Contains(t, h.metrics.events, "help:ok")
}

func TestExportFollowsActiveTab(t *testing.T) {
	h := newHarness(t, 0)
	dispatch(t, h, "refresh")

	result := dispatch(t, h, "export")
	require.True(t, result.OK())
	require.NotNil(t, result.Export)
	assert.Equal(t, "students_2024-06-15.csv", result.Export.FileName)
	assert.Equal(t, "Data exported as CSV", result.Notification.Message)

	dispatch(t, h, "tab classes")
	result = dispatch(t, h, "export")
	assert.Equal(t, models.ExportJSON, result.Export.Format)

	result = dispatch(t, h, "export enrollments")
	assert.Equal(t, models.ExportCSV, result.Export.Format)
	assert.Equal(t, 1, result.Export.Rows)

	result = dispatch(t, h, "export reports")
	assert.Equal(t, models.ExportPDF, result.Export.Format)

	assert.False(t, dispatch(t, h, "export grades").OK())
}
