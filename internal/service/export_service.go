package service

import (
	"context"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-console/internal/models"
	"github.com/noah-isme/sma-adp-console/internal/view"
	appErrors "github.com/noah-isme/sma-adp-console/pkg/errors"
	"github.com/noah-isme/sma-adp-console/pkg/export"
)

// Column headers of the tabular exports.
var (
	StudentExportHeaders    = []string{"ID", "Name", "Birth Date", "Email", "Status", "Class"}
	EnrollmentExportHeaders = []string{"Student ID", "Student Name", "Class ID", "Class Name", "Enrollment Date"}
	ClassExportHeaders      = []string{"ID", "Name", "Capacity", "Occupancy"}
	ReportExportHeaders     = []string{"Class", "Students", "Capacity", "Occupancy %"}
)

type exportSnapshot interface {
	State() models.ViewState
	View() models.View
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type downloadSigner interface {
	Issue(exportID, relPath string) (string, time.Time, error)
	Parse(token string) (exportID, relPath string, err error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type jsonRenderer interface {
	Render(v interface{}) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string, summary ...string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
	Now       func() time.Time
}

// ExportService renders the cached collections to files and issues download tokens.
type ExportService struct {
	cache   exportSnapshot
	storage fileStorage
	signer  downloadSigner
	csv     csvRenderer
	json    jsonRenderer
	pdf     pdfRenderer
	cfg     ExportConfig
	now     func() time.Time
	logger  *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(cache exportSnapshot, storage fileStorage, signer downloadSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &ExportService{
		cache:   cache,
		storage: storage,
		signer:  signer,
		csv:     export.NewCSVExporter(),
		json:    export.NewJSONExporter(),
		pdf:     export.NewPDFExporter(),
		cfg:     cfg,
		now:     cfg.Now,
		logger:  logger,
	}
}

// Export renders kind in format, stores the file as <kind>_<YYYY-MM-DD>.<ext>
// and returns a signed download token for it.
func (s *ExportService) Export(ctx context.Context, kind models.ExportKind, format models.ExportFormat) (*models.ExportResult, error) {
	if _, ok := models.ParseExportKind(string(kind)); !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown export kind %q", kind))
	}
	if _, ok := models.ParseExportFormat(string(format)); !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown export format %q", format))
	}
	if err := ctx.Err(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "export cancelled")
	}

	now := s.now()
	payload, rows, err := s.render(kind, format, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	id := uuid.NewString()
	fileName := fmt.Sprintf("%s_%s.%s", kind, models.DateOf(now).String(), format)
	relPath, err := s.storage.Save(path.Join(id, fileName), payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}
	token, expiresAt, err := s.signer.Issue(id, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export")
	}

	s.logger.Info("export generated", zap.String("export_id", id), zap.String("kind", string(kind)), zap.String("format", string(format)), zap.Int("rows", rows))
	return &models.ExportResult{
		ID:        id,
		Kind:      kind,
		Format:    format,
		FileName:  fileName,
		Path:      relPath,
		Token:     token,
		URL:       fmt.Sprintf("%s/downloads/%s", strings.TrimRight(s.cfg.APIPrefix, "/"), token),
		Rows:      rows,
		ExpiresAt: expiresAt,
	}, nil
}

// Open validates a download token and opens the referenced file. The returned
// name is the file's base name.
func (s *ExportService) Open(token string) (*os.File, string, error) {
	_, relPath, err := s.signer.Parse(token)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "download link invalid or expired")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export file not found")
	}
	return file, path.Base(relPath), nil
}

// Cleanup removes stored exports older than ttl, defaulting to the configured TTL.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) render(kind models.ExportKind, format models.ExportFormat, now time.Time) ([]byte, int, error) {
	state := s.cache.State()
	current := s.cache.View()

	var (
		dataset export.Dataset
		records interface{}
		title   string
		summary []string
	)
	switch kind {
	case models.ExportStudents:
		dataset = studentDataset(state.Students, state.Classes)
		records = state.Students
		title = "Students"
	case models.ExportEnrollments:
		rows := enrollmentRows(state.Students, state.Classes, now)
		dataset = enrollmentDataset(rows)
		records = rows
		title = "Enrollments"
	case models.ExportClasses:
		dataset = classDataset(current.Classes)
		records = current.Classes
		title = "Classes"
	case models.ExportReports:
		dataset = reportDataset(current.Stats.Classes)
		records = current.Stats
		title = "School report"
		summary = []string{
			fmt.Sprintf("Generated: %s", models.DateOf(now).String()),
			fmt.Sprintf("Total students: %d", current.Stats.TotalStudents),
			fmt.Sprintf("Active students: %d", current.Stats.ActiveStudents),
			fmt.Sprintf("Inactive students: %d", current.Stats.InactiveStudents),
			fmt.Sprintf("Total classes: %d", current.Stats.TotalClasses),
		}
	}

	var (
		payload []byte
		err     error
	)
	switch format {
	case models.ExportCSV:
		payload, err = s.csv.Render(dataset)
	case models.ExportJSON:
		payload, err = s.json.Render(records)
	case models.ExportPDF:
		payload, err = s.pdf.Render(dataset, title, summary...)
	}
	return payload, len(dataset.Rows), err
}

func studentDataset(students []models.StudentRecord, classes []models.ClassRecord) export.Dataset {
	rows := make([]map[string]string, 0, len(students))
	for _, st := range students {
		rows = append(rows, map[string]string{
			"ID":         st.ID,
			"Name":       st.Name,
			"Birth Date": st.BirthDate.String(),
			"Email":      models.StringValue(st.Email),
			"Status":     string(st.Status),
			"Class":      view.ClassName(st, classes),
		})
	}
	return export.Dataset{Headers: StudentExportHeaders, Rows: rows}
}

// enrollmentRows lists the students having a class. The backend does not expose
// the enrollment date, so the export date is used.
func enrollmentRows(students []models.StudentRecord, classes []models.ClassRecord, now time.Time) []models.EnrollmentRow {
	rows := make([]models.EnrollmentRow, 0, len(students))
	for _, st := range students {
		if !st.Enrolled() {
			continue
		}
		rows = append(rows, models.EnrollmentRow{
			StudentID:      st.ID,
			StudentName:    st.Name,
			ClassID:        *st.ClassID,
			ClassName:      view.ClassName(st, classes),
			EnrollmentDate: models.DateOf(now),
		})
	}
	return rows
}

func enrollmentDataset(rows []models.EnrollmentRow) export.Dataset {
	out := make([]map[string]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, map[string]string{
			"Student ID":      r.StudentID,
			"Student Name":    r.StudentName,
			"Class ID":        r.ClassID,
			"Class Name":      r.ClassName,
			"Enrollment Date": r.EnrollmentDate.String(),
		})
	}
	return export.Dataset{Headers: EnrollmentExportHeaders, Rows: out}
}

func classDataset(classes []models.ClassRow) export.Dataset {
	rows := make([]map[string]string, 0, len(classes))
	for _, c := range classes {
		rows = append(rows, map[string]string{
			"ID":        c.ID,
			"Name":      c.Name,
			"Capacity":  strconv.Itoa(c.Capacity),
			"Occupancy": strconv.Itoa(c.Occupancy),
		})
	}
	return export.Dataset{Headers: ClassExportHeaders, Rows: rows}
}

func reportDataset(classes []models.ClassRow) export.Dataset {
	rows := make([]map[string]string, 0, len(classes))
	for _, c := range classes {
		rows = append(rows, map[string]string{
			"Class":       c.Name,
			"Students":    strconv.Itoa(c.Occupancy),
			"Capacity":    strconv.Itoa(c.Capacity),
			"Occupancy %": strconv.FormatFloat(c.OccupancyPercent, 'f', 1, 64),
		})
	}
	return export.Dataset{Headers: ReportExportHeaders, Rows: rows}
}
