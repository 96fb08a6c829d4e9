package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-console/internal/models"
	appErrors "github.com/noah-isme/sma-adp-console/pkg/errors"
)

type observedRequest struct {
	method  string
	route   string
	outcome string
}

type recorderMock struct {
	mu   sync.Mutex
	seen []observedRequest
}

func (r *recorderMock) ObserveGatewayRequest(method, route, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, observedRequest{method: method, route: route, outcome: outcome})
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *recorderMock) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	rec := &recorderMock{}
	return New(Options{BaseURL: srv.URL + "/", Metrics: rec}), rec
}

func TestListStudentsSendsFiltersAndDecodes(t *testing.T) {
	client, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/students", r.URL.Path)
		assert.Equal(t, "ana", r.URL.Query().Get("search"))
		assert.Equal(t, "c1", r.URL.Query().Get("classId"))
		assert.Equal(t, "ativo", r.URL.Query().Get("status"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"s1","name":"Ana","birth_date":"2010-05-01","status":"ativo","class_id":"c1","class_name":"1A"}]`))
	})

	students, err := client.ListStudents(context.Background(), models.FilterSet{Search: "ana", ClassID: "c1", Status: models.StudentStatusActive})
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "Ana", students[0].Name)
	assert.Equal(t, "2010-05-01", students[0].BirthDate.String())
	assert.Equal(t, "1A", models.StringValue(students[0].ClassName))
	assert.Equal(t, []observedRequest{{method: "GET", route: "/students", outcome: "ok"}}, rec.seen)
}

func TestListStudentsOmitsEmptyFilters(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.RawQuery)
		_, _ = w.Write([]byte(`null`))
	})

	students, err := client.ListStudents(context.Background(), models.FilterSet{})
	require.NoError(t, err)
	assert.NotNil(t, students)
	assert.Empty(t, students)
}

func TestRejectionCarriesDetailVerbatim(t *testing.T) {
	client, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"detail":"Turma lotada"}`))
	})

	err := client.Enroll(context.Background(), models.EnrollmentRequest{StudentID: "s1", ClassID: "c1"})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrBackendRejection))
	appErr := appErrors.FromError(err)
	assert.Equal(t, "Turma lotada", appErr.Message)
	assert.Equal(t, http.StatusConflict, appErr.Status)
	assert.Equal(t, "backend_rejection", rec.seen[0].outcome)
}

func TestRejectionWithValidationListAndEmptyBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"detail":[{"msg":"field required"},{"msg":"invalid email"}]}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.CreateStudent(context.Background(), models.StudentInput{Name: "Ana"})
	require.Error(t, err)
	assert.Equal(t, "field required; invalid email", appErrors.FromError(err).Message)

	err = client.DeleteStudent(context.Background(), "s1")
	require.Error(t, err)
	assert.Equal(t, "request failed with status 500", appErrors.FromError(err).Message)
}

func TestTransportFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := New(Options{BaseURL: url, Timeout: time.Second})
	_, err := client.ListClasses(context.Background())
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrTransportFailure))

	bad, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	})
	_, err = bad.ListClasses(context.Background())
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrTransportFailure))
}

func TestMutationsUseExpectedRoutesAndBodies(t *testing.T) {
	type call struct {
		method string
		path   string
		body   map[string]interface{}
	}
	var mu sync.Mutex
	var calls []call
	client, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		if r.Body != nil && r.ContentLength != 0 {
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			_ = json.NewDecoder(r.Body).Decode(&body)
		}
		mu.Lock()
		calls = append(calls, call{method: r.Method, path: r.URL.Path, body: body})
		mu.Unlock()
		switch {
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		case strings.HasPrefix(r.URL.Path, "/classes"):
			_, _ = w.Write([]byte(`{"id":"c9","name":"2B","capacity":30}`))
		case r.URL.Path == "/enrollments":
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"message":"ok"}`))
		default:
			_, _ = w.Write([]byte(`{"id":"s9","name":"Bruno","birth_date":"2009-01-01","status":"ativo"}`))
		}
	})
	ctx := context.Background()

	student, err := client.UpdateStudent(ctx, "s9", models.StudentInput{Name: "Bruno", Status: models.StudentStatusActive})
	require.NoError(t, err)
	assert.Equal(t, "s9", student.ID)
	class, err := client.CreateClass(ctx, models.ClassInput{Name: "2B", Capacity: 30})
	require.NoError(t, err)
	assert.Equal(t, 30, class.Capacity)
	_, err = client.UpdateClass(ctx, "c9", models.ClassInput{Name: "2B", Capacity: 31})
	require.NoError(t, err)
	require.NoError(t, client.DeleteClass(ctx, "c9"))
	require.NoError(t, client.Enroll(ctx, models.EnrollmentRequest{StudentID: "s9", ClassID: "c9"}))

	require.Len(t, calls, 5)
	assert.Equal(t, "PUT", calls[0].method)
	assert.Equal(t, "/students/s9", calls[0].path)
	assert.Equal(t, "Bruno", calls[0].body["name"])
	assert.Equal(t, "POST", calls[1].method)
	assert.Equal(t, float64(30), calls[1].body["capacity"])
	assert.Equal(t, "/classes/c9", calls[2].path)
	assert.Equal(t, "DELETE", calls[3].method)
	assert.Equal(t, "/enrollments", calls[4].path)
	assert.Equal(t, "s9", calls[4].body["studentId"])
	assert.Equal(t, "c9", calls[4].body["classId"])

	routes := make([]string, 0, len(rec.seen))
	for _, o := range rec.seen {
		routes = append(routes, o.route)
	}
	assert.Equal(t, []string{"/students/{id}", "/classes", "/classes/{id}", "/classes/{id}", "/enrollments"}, routes)
}

func TestBearerTokenAttached(t *testing.T) {
	var header string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	client := New(Options{BaseURL: srv.URL, Tokens: NewTokenSource("secret", "console", time.Minute)})
	require.NoError(t, client.Health(context.Background()))

	require.True(t, strings.HasPrefix(header, "Bearer "))
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), claims, func(*jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "console", claims.Subject)
}

func TestNewTokenSourceWithoutSecret(t *testing.T) {
	assert.Nil(t, NewTokenSource("", "console", time.Minute))
}
