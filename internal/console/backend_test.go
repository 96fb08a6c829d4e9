package console

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-console/internal/gateway"
	"github.com/noah-isme/sma-adp-console/internal/models"
	"github.com/noah-isme/sma-adp-console/internal/service"
	"github.com/noah-isme/sma-adp-console/internal/view"
	"github.com/noah-isme/sma-adp-console/internal/viewstate"
	"github.com/noah-isme/sma-adp-console/pkg/storage"
)

var consoleNow = time.Date(2024, time.June, 15, 10, 0, 0, 0, time.UTC)

// fakeBackend is an in-memory records server speaking the backend's JSON API.
type fakeBackend struct {
	mu       sync.Mutex
	students []models.StudentRecord
	classes  []models.ClassRecord
	requests []string
	nextID   int
}

func newFakeBackend() *fakeBackend {
	turmaA := "c1"
	return &fakeBackend{
		classes: []models.ClassRecord{
			{ID: "c1", Name: "Turma A", Capacity: 2},
			{ID: "c2", Name: "Turma B", Capacity: 1},
		},
		students: []models.StudentRecord{
			{ID: "s1", Name: "Ana", BirthDate: models.NewDate(2004, time.June, 16), Status: models.StudentStatusActive, ClassID: &turmaA},
			{ID: "s2", Name: "Bruno", BirthDate: models.NewDate(2008, time.March, 3), Status: models.StudentStatusInactive},
		},
		nextID: 100,
	}
}

func (b *fakeBackend) requestLog() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.requests...)
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry := r.Method + " " + r.URL.Path
	if r.URL.RawQuery != "" {
		entry += "?" + r.URL.RawQuery
	}
	b.requests = append(b.requests, entry)

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case parts[0] == "students" && len(parts) == 1 && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, b.listStudents(r))
	case parts[0] == "students" && len(parts) == 1 && r.Method == http.MethodPost:
		var in models.StudentInput
		_ = json.NewDecoder(r.Body).Decode(&in)
		b.nextID++
		rec := models.StudentRecord{ID: fmt.Sprintf("s%d", b.nextID), Name: in.Name, BirthDate: in.BirthDate, Email: in.Email, Status: in.Status, ClassID: in.ClassID}
		b.students = append(b.students, rec)
		writeJSON(w, http.StatusCreated, rec)
	case parts[0] == "students" && len(parts) == 2 && r.Method == http.MethodPut:
		var in models.StudentInput
		_ = json.NewDecoder(r.Body).Decode(&in)
		for i := range b.students {
			if b.students[i].ID == parts[1] {
				b.students[i].Name = in.Name
				b.students[i].BirthDate = in.BirthDate
				b.students[i].Email = in.Email
				b.students[i].Status = in.Status
				writeJSON(w, http.StatusOK, b.students[i])
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Aluno não encontrado"})
	case parts[0] == "students" && len(parts) == 2 && r.Method == http.MethodDelete:
		kept := b.students[:0]
		for _, s := range b.students {
			if s.ID != parts[1] {
				kept = append(kept, s)
			}
		}
		b.students = kept
		w.WriteHeader(http.StatusNoContent)
	case parts[0] == "classes" && len(parts) == 1 && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, b.classes)
	case parts[0] == "classes" && len(parts) == 1 && r.Method == http.MethodPost:
		var in models.ClassInput
		_ = json.NewDecoder(r.Body).Decode(&in)
		b.nextID++
		rec := models.ClassRecord{ID: fmt.Sprintf("c%d", b.nextID), Name: in.Name, Capacity: in.Capacity}
		b.classes = append(b.classes, rec)
		writeJSON(w, http.StatusCreated, rec)
	case parts[0] == "classes" && len(parts) == 2 && r.Method == http.MethodDelete:
		kept := b.classes[:0]
		for _, c := range b.classes {
			if c.ID != parts[1] {
				kept = append(kept, c)
			}
		}
		b.classes = kept
		w.WriteHeader(http.StatusNoContent)
	case parts[0] == "enrollments" && r.Method == http.MethodPost:
		var req models.EnrollmentRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		for i := range b.students {
			if b.students[i].ID == req.StudentID {
				classID := req.ClassID
				b.students[i].ClassID = &classID
				b.students[i].Status = models.StudentStatusActive
			}
		}
		writeJSON(w, http.StatusCreated, map[string]string{"message": "ok"})
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not Found"})
	}
}

func (b *fakeBackend) listStudents(r *http.Request) []models.StudentRecord {
	q := r.URL.Query()
	filters := models.FilterSet{Search: q.Get("search"), ClassID: q.Get("classId"), Status: models.StudentStatus(q.Get("status"))}
	out := []models.StudentRecord{}
	for _, s := range b.students {
		if !view.Matches(s, filters) {
			continue
		}
		rec := s.Clone()
		if rec.Enrolled() {
			name := view.ClassName(rec, b.classes)
			rec.ClassName = &name
		}
		out = append(out, rec)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *eventRecorder) ObserveEvent(event string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.events = append(r.events, event+":"+outcome)
}

type harness struct {
	backend    *fakeBackend
	server     *httptest.Server
	store      *viewstate.Store
	dispatcher *Dispatcher
	metrics    *eventRecorder
}

func newHarness(t *testing.T, debounce time.Duration) *harness {
	t.Helper()
	backend := newFakeBackend()
	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	logger := zap.NewNop()
	clock := func() time.Time { return consoleNow }
	client := gateway.New(gateway.Options{BaseURL: server.URL, Timeout: time.Second})
	store := viewstate.New(view.NewEngine(clock), nil, models.DefaultSortSpec(), logger)
	validate := service.NewValidator(clock)
	refresh := service.NewRefreshService(client, store, logger)

	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	exports := service.NewExportService(store, files, storage.NewDownloadSigner("secret", time.Hour), service.ExportConfig{Now: clock}, logger)

	metrics := &eventRecorder{}
	dispatcher := NewDispatcher(Deps{
		Store:       store,
		Refresh:     refresh,
		Students:    service.NewStudentService(client, store, refresh, validate, logger),
		Classes:     service.NewClassService(client, store, refresh, validate, logger),
		Enrollments: service.NewEnrollmentService(client, store, refresh, logger),
		Exports:     exports,
		Debounce:    debounce,
		Metrics:     metrics,
		Logger:      logger,
	})
	t.Cleanup(dispatcher.Close)
	return &harness{backend: backend, server: server, store: store, dispatcher: dispatcher, metrics: metrics}
}
