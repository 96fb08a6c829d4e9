package models

import (
	"strings"
	"time"
)

// ExportKind selects the dataset to export.
type ExportKind string

// Export kinds.
const (
	ExportStudents    ExportKind = "students"
	ExportEnrollments ExportKind = "enrollments"
	ExportClasses     ExportKind = "classes"
	ExportReports     ExportKind = "reports"
)

// ExportFormat selects the rendered file format.
type ExportFormat string

// Export formats.
const (
	ExportCSV  ExportFormat = "csv"
	ExportJSON ExportFormat = "json"
	ExportPDF  ExportFormat = "pdf"
)

// ParseExportKind validates a kind name.
func ParseExportKind(raw string) (ExportKind, bool) {
	kind := ExportKind(strings.ToLower(strings.TrimSpace(raw)))
	switch kind {
	case ExportStudents, ExportEnrollments, ExportClasses, ExportReports:
		return kind, true
	}
	return "", false
}

// ParseExportFormat validates a format name.
func ParseExportFormat(raw string) (ExportFormat, bool) {
	format := ExportFormat(strings.ToLower(strings.TrimSpace(raw)))
	switch format {
	case ExportCSV, ExportJSON, ExportPDF:
		return format, true
	}
	return "", false
}

// DefaultExport returns the export offered for the active tab.
func DefaultExport(tab Tab) (ExportKind, ExportFormat) {
	switch tab {
	case TabClasses:
		return ExportClasses, ExportJSON
	case TabReports:
		return ExportReports, ExportPDF
	default:
		return ExportStudents, ExportCSV
	}
}

// ExportResult describes a stored export file and its download token.
type ExportResult struct {
	ID        string       `json:"id"`
	Kind      ExportKind   `json:"kind"`
	Format    ExportFormat `json:"format"`
	FileName  string       `json:"file_name"`
	Path      string       `json:"path"`
	Token     string       `json:"token"`
	URL       string       `json:"url"`
	Rows      int          `json:"rows"`
	ExpiresAt time.Time    `json:"expires_at"`
}
