// Package view derives the display-ready projection of the console state.
// Every function here is pure: the only clock input is an explicit asOf date.
package view

import (
	"math"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/noah-isme/sma-adp-console/internal/models"
)

// Engine binds the derivation functions to a clock.
type Engine struct {
	Now func() time.Time
}

// NewEngine returns an engine using the wall clock when now is nil.
func NewEngine(now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{Now: now}
}

// Derive builds the full view for a state snapshot.
func (e *Engine) Derive(state models.ViewState) models.View {
	asOf := e.Now()
	rows := ComputeClassRows(state.Classes, state.Students)
	return models.View{
		ActiveTab: state.ActiveTab,
		Filters:   state.Filters,
		Sort:      state.Sort,
		Students:  ComputeView(state.Students, state.Classes, state.Filters, state.Sort, asOf),
		Classes:   rows,
		Stats:     summarizeRows(state.Students, rows),
	}
}

// ComputeView filters then stably sorts the students. The input slice is not modified.
// Sort keys are extracted once per record before sorting.
func ComputeView(students []models.StudentRecord, classes []models.ClassRecord, filters models.FilterSet, spec models.SortSpec, asOf time.Time) []models.StudentRecord {
	folder := cases.Fold()
	search := folder.String(filters.Search)
	keyOf := keyFunc(spec.Field, classNames(classes), asOf, folder)

	rows := make([]keyedRecord, 0, len(students))
	for _, s := range students {
		if !matches(s, filters, search, folder) {
			continue
		}
		text, num := keyOf(s)
		rows = append(rows, keyedRecord{record: s.Clone(), text: text, num: num})
	}

	desc := spec.Order == models.SortDesc
	sort.SliceStable(rows, func(i, j int) bool {
		c := compareKeys(rows[i], rows[j])
		if desc {
			c = -c
		}
		return c < 0
	})

	out := make([]models.StudentRecord, len(rows))
	for i, row := range rows {
		out[i] = row.record
	}
	return out
}

// Matches reports whether the record satisfies every active filter dimension.
func Matches(s models.StudentRecord, filters models.FilterSet) bool {
	folder := cases.Fold()
	return matches(s, filters, folder.String(filters.Search), folder)
}

func matches(s models.StudentRecord, filters models.FilterSet, foldedSearch string, folder cases.Caser) bool {
	if foldedSearch != "" && !strings.Contains(folder.String(s.Name), foldedSearch) {
		return false
	}
	if filters.ClassID != "" && !s.InClass(filters.ClassID) {
		return false
	}
	if filters.Status != "" && s.Status != filters.Status {
		return false
	}
	return true
}

// Age returns the whole years elapsed between birth and asOf.
func Age(birth models.Date, asOf time.Time) int {
	ay, am, ad := asOf.Date()
	by, bm, bd := birth.Date()
	age := ay - by
	if am < bm || (am == bm && ad < bd) {
		age--
	}
	return age
}

// ComputeClassRows annotates each class with its live occupancy, keeping input order.
func ComputeClassRows(classes []models.ClassRecord, students []models.StudentRecord) []models.ClassRow {
	occupancy := make(map[string]int, len(classes))
	for _, s := range students {
		if s.Enrolled() {
			occupancy[*s.ClassID]++
		}
	}
	rows := make([]models.ClassRow, 0, len(classes))
	for _, c := range classes {
		n := occupancy[c.ID]
		row := models.ClassRow{ClassRecord: c, Occupancy: n, Full: n >= c.Capacity}
		if c.Capacity > 0 {
			row.OccupancyPercent = math.Round(float64(n)/float64(c.Capacity)*1000) / 10
		}
		rows = append(rows, row)
	}
	return rows
}

// Occupancy counts the students assigned to classID.
func Occupancy(classID string, students []models.StudentRecord) int {
	n := 0
	for _, s := range students {
		if s.InClass(classID) {
			n++
		}
	}
	return n
}

// Summarize computes the reports-tab counters.
func Summarize(students []models.StudentRecord, classes []models.ClassRecord) models.Statistics {
	return summarizeRows(students, ComputeClassRows(classes, students))
}

func summarizeRows(students []models.StudentRecord, rows []models.ClassRow) models.Statistics {
	stats := models.Statistics{TotalStudents: len(students), TotalClasses: len(rows), Classes: rows}
	for _, s := range students {
		switch s.Status {
		case models.StudentStatusActive:
			stats.ActiveStudents++
		case models.StudentStatusInactive:
			stats.InactiveStudents++
		}
	}
	return stats
}

// ClassName resolves the display class name of a student.
func ClassName(s models.StudentRecord, classes []models.ClassRecord) string {
	return className(s, classNames(classes))
}

func className(s models.StudentRecord, names map[string]string) string {
	if s.ClassName != nil {
		return *s.ClassName
	}
	if s.Enrolled() {
		return names[*s.ClassID]
	}
	return ""
}

func classNames(classes []models.ClassRecord) map[string]string {
	names := make(map[string]string, len(classes))
	for _, c := range classes {
		names[c.ID] = c.Name
	}
	return names
}

type keyedRecord struct {
	record models.StudentRecord
	text   string
	num    int
}

// keyFunc returns the extractor for the sort key: a case-folded string for
// text keys, the age in years for the age key.
func keyFunc(key models.SortKey, names map[string]string, asOf time.Time, folder cases.Caser) func(models.StudentRecord) (string, int) {
	switch key.Canonical() {
	case models.SortByAge:
		return func(s models.StudentRecord) (string, int) {
			return "", Age(s.BirthDate, asOf)
		}
	case models.SortByClass:
		return func(s models.StudentRecord) (string, int) {
			return folder.String(className(s, names)), 0
		}
	case models.SortByStatus:
		return func(s models.StudentRecord) (string, int) {
			return folder.String(string(s.Status)), 0
		}
	default:
		return func(s models.StudentRecord) (string, int) {
			return folder.String(s.Name), 0
		}
	}
}

func compareKeys(a, b keyedRecord) int {
	if c := compareInts(a.num, b.num); c != 0 {
		return c
	}
	return strings.Compare(a.text, b.text)
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
