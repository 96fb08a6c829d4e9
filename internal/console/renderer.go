package console

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/noah-isme/sma-adp-console/internal/models"
	"github.com/noah-isme/sma-adp-console/internal/view"
)

const (
	maxNameWidth  = 32
	maxEmailWidth = 28
	emptyCell     = "-"
)

// TextRenderer prints a derived view as aligned text tables.
type TextRenderer struct {
	now func() time.Time
}

// NewTextRenderer constructs a TextRenderer using now for displayed ages.
func NewTextRenderer(now func() time.Time) *TextRenderer {
	if now == nil {
		now = time.Now
	}
	return &TextRenderer{now: now}
}

// Render writes the tab bar and the active tab's content.
func (r *TextRenderer) Render(w io.Writer, v models.View) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, tabBar(v.ActiveTab))
	switch v.ActiveTab {
	case models.TabClasses:
		r.classes(tw, v.Classes)
	case models.TabReports:
		r.reports(tw, v.Stats)
	default:
		r.students(tw, v)
	}
	return tw.Flush()
}

// RenderNotification prints a notification line.
func (r *TextRenderer) RenderNotification(w io.Writer, n models.Notification) error {
	prefix := "OK"
	if n.Level == models.NotificationError {
		prefix = "ERROR"
	}
	_, err := fmt.Fprintf(w, "[%s] %s\n", prefix, n.Message)
	return err
}

func tabBar(active models.Tab) string {
	parts := make([]string, 0, len(models.Tabs))
	for i, tab := range models.Tabs {
		label := fmt.Sprintf("%d:%s", i+1, tab)
		if tab == active {
			label = "[" + label + "]"
		}
		parts = append(parts, label)
	}
	return strings.Join(parts, "  ")
}

func (r *TextRenderer) students(w io.Writer, v models.View) {
	fmt.Fprintf(w, "filters: %s\n", describeFilters(v.Filters))
	headers := []struct {
		key   models.SortKey
		label string
	}{
		{models.SortByName, "NAME"},
		{models.SortByAge, "AGE"},
		{"", "EMAIL"},
		{models.SortByStatus, "STATUS"},
		{models.SortByClass, "CLASS"},
		{"", "ID"},
	}
	cells := make([]string, 0, len(headers))
	for _, h := range headers {
		label := h.label
		if h.key != "" && h.key == v.Sort.Field {
			label += sortArrow(v.Sort.Order)
		}
		cells = append(cells, label)
	}
	fmt.Fprintln(w, strings.Join(cells, "\t"))

	if len(v.Students) == 0 {
		fmt.Fprintln(w, "No students found. Add a student or adjust the filters.")
		return
	}
	asOf := r.now()
	names := make([]models.ClassRecord, 0, len(v.Classes))
	for _, row := range v.Classes {
		names = append(names, row.ClassRecord)
	}
	for _, s := range v.Students {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n",
			runewidth.Truncate(s.Name, maxNameWidth, "…"),
			view.Age(s.BirthDate, asOf),
			orEmpty(runewidth.Truncate(models.StringValue(s.Email), maxEmailWidth, "…")),
			s.Status,
			orEmpty(view.ClassName(s, names)),
			s.ID,
		)
	}
	fmt.Fprintf(w, "%d student(s)\n", len(v.Students))
}

func (r *TextRenderer) classes(w io.Writer, rows []models.ClassRow) {
	fmt.Fprintln(w, "NAME\tOCCUPANCY\tSTATE\tID")
	if len(rows) == 0 {
		fmt.Fprintln(w, "No classes registered.")
		return
	}
	for _, row := range rows {
		state := "open"
		if row.Full {
			state = "full"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", runewidth.Truncate(row.Name, maxNameWidth, "…"), occupancyLabel(row), state, row.ID)
	}
}

func (r *TextRenderer) reports(w io.Writer, stats models.Statistics) {
	fmt.Fprintf(w, "Total students:\t%d\n", stats.TotalStudents)
	fmt.Fprintf(w, "Active students:\t%d\n", stats.ActiveStudents)
	fmt.Fprintf(w, "Inactive students:\t%d\n", stats.InactiveStudents)
	fmt.Fprintf(w, "Total classes:\t%d\n", stats.TotalClasses)
	if len(stats.Classes) == 0 {
		return
	}
	fmt.Fprintln(w, "\nCLASS\tOCCUPANCY")
	for _, row := range stats.Classes {
		fmt.Fprintf(w, "%s\t%s\n", runewidth.Truncate(row.Name, maxNameWidth, "…"), occupancyLabel(row))
	}
}

func occupancyLabel(row models.ClassRow) string {
	return fmt.Sprintf("%d/%d (%.1f%%)", row.Occupancy, row.Capacity, row.OccupancyPercent)
}

func describeFilters(f models.FilterSet) string {
	if f.Empty() {
		return "none"
	}
	parts := make([]string, 0, 3)
	if f.Search != "" {
		parts = append(parts, fmt.Sprintf("search=%q", f.Search))
	}
	if f.ClassID != "" {
		parts = append(parts, "class="+f.ClassID)
	}
	if f.Status != "" {
		parts = append(parts, "status="+string(f.Status))
	}
	return strings.Join(parts, " ")
}

func sortArrow(order models.SortDirection) string {
	if order == models.SortDesc {
		return " ▼"
	}
	return " ▲"
}

func orEmpty(v string) string {
	if v == "" {
		return emptyCell
	}
	return v
}
