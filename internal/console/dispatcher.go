// Package console maps named user events onto the store and the command
// services, and renders the result for the interactive console and the HTTP
// surface.
package console

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-console/internal/models"
	"github.com/noah-isme/sma-adp-console/internal/service"
	"github.com/noah-isme/sma-adp-console/internal/viewstate"
	appErrors "github.com/noah-isme/sma-adp-console/pkg/errors"
)

type eventObserver interface {
	ObserveEvent(event string, err error)
}

// Deps wires a Dispatcher.
type Deps struct {
	Store       *viewstate.Store
	Refresh     *service.RefreshService
	Students    *service.StudentService
	Classes     *service.ClassService
	Enrollments *service.EnrollmentService
	Exports     *service.ExportService
	Notifier    *Notifier
	Debounce    time.Duration
	Metrics     eventObserver
	Logger      *zap.Logger
}

// Event is one entry of the dispatch table.
type Event struct {
	Name    string `json:"name"`
	Usage   string `json:"usage"`
	Summary string `json:"summary"`
	MinArgs int    `json:"-"`
	MaxArgs int    `json:"-"`
	run     func(ctx context.Context, args []string) (outcome, error)
}

// Result is the outcome of a dispatched event.
type Result struct {
	Event        string               `json:"event"`
	Output       string               `json:"output,omitempty"`
	Notification *models.Notification `json:"notification,omitempty"`
	Export       *models.ExportResult `json:"export,omitempty"`
}

// OK reports whether the event succeeded.
func (r Result) OK() bool {
	return r.Notification == nil || r.Notification.Level != models.NotificationError
}

// Forms snapshots the create/edit forms.
type Forms struct {
	Student service.FormSnapshot[models.StudentInput] `json:"student"`
	Class   service.FormSnapshot[models.ClassInput]   `json:"class"`
}

type outcome struct {
	notice string
	output string
	export *models.ExportResult
}

const unlimited = -1

// Dispatcher routes events through a declarative table. Every failure is caught
// here and turned into an error notification.
type Dispatcher struct {
	deps        Deps
	studentForm *service.FormFlow[models.StudentInput]
	classForm   *service.FormFlow[models.ClassInput]
	debouncer   *Debouncer
	logger      *zap.Logger
	events      []Event
	index       map[string]int
}

// NewDispatcher builds the event table.
func NewDispatcher(deps Deps) *Dispatcher {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Notifier == nil {
		deps.Notifier = NewNotifier(deps.Logger)
	}
	d := &Dispatcher{
		deps:        deps,
		studentForm: service.NewFormFlow[models.StudentInput](),
		classForm:   service.NewFormFlow[models.ClassInput](),
		debouncer:   NewDebouncer(deps.Debounce),
		logger:      deps.Logger,
	}
	d.events = []Event{
		{Name: "help", Usage: "help", Summary: "list events", MaxArgs: 0, run: d.help},
		{Name: "refresh", Usage: "refresh", Summary: "reload students and classes", run: d.refresh},
		{Name: "tab", Usage: "tab <students|classes|reports|1|2|3>", Summary: "switch tab", MinArgs: 1, MaxArgs: 1, run: d.tab},
		{Name: "search", Usage: "search [text]", Summary: "filter by name after a short pause", MaxArgs: unlimited, run: d.search},
		{Name: "search-now", Usage: "search-now [text]", Summary: "filter by name immediately", MaxArgs: unlimited, run: d.searchNow},
		{Name: "filter-class", Usage: "filter-class <class-id|all>", Summary: "filter by class", MinArgs: 1, MaxArgs: 1, run: d.filterClass},
		{Name: "filter-status", Usage: "filter-status <ativo|inativo|all>", Summary: "filter by status", MinArgs: 1, MaxArgs: 1, run: d.filterStatus},
		{Name: "clear-filters", Usage: "clear-filters", Summary: "remove every filter", run: d.clearFilters},
		{Name: "sort", Usage: "sort <name|age|class|status> [asc|desc]", Summary: "order students; repeating a field flips direction", MinArgs: 1, MaxArgs: 2, run: d.sort},
		{Name: "sort-toggle", Usage: "sort-toggle", Summary: "flip sort direction", run: d.sortToggle},
		{Name: "student-new", Usage: "student-new", Summary: "open the new student form", run: d.studentNew},
		{Name: "student-edit", Usage: "student-edit <student-id>", Summary: "open the edit form for a student", MinArgs: 1, MaxArgs: 1, run: d.studentEdit},
		{Name: "student-set", Usage: "student-set <name|birth_date|email|status|class_id> [value]", Summary: "set a student form field", MinArgs: 1, MaxArgs: unlimited, run: d.studentSet},
		{Name: "student-submit", Usage: "student-submit", Summary: "save the student form", run: d.studentSubmit},
		{Name: "student-cancel", Usage: "student-cancel", Summary: "discard the student form", run: d.studentCancel},
		{Name: "student-delete", Usage: "student-delete <student-id>", Summary: "delete a student", MinArgs: 1, MaxArgs: 1, run: d.studentDelete},
		{Name: "class-new", Usage: "class-new", Summary: "open the new class form", run: d.classNew},
		{Name: "class-edit", Usage: "class-edit <class-id>", Summary: "open the edit form for a class", MinArgs: 1, MaxArgs: 1, run: d.classEdit},
		{Name: "class-set", Usage: "class-set <name|capacity> [value]", Summary: "set a class form field", MinArgs: 1, MaxArgs: unlimited, run: d.classSet},
		{Name: "class-submit", Usage: "class-submit", Summary: "save the class form", run: d.classSubmit},
		{Name: "class-cancel", Usage: "class-cancel", Summary: "discard the class form", run: d.classCancel},
		{Name: "class-delete", Usage: "class-delete <class-id>", Summary: "delete an empty class", MinArgs: 1, MaxArgs: 1, run: d.classDelete},
		{Name: "enroll", Usage: "enroll <student-id> <class-id>", Summary: "assign a student to a class", MinArgs: 2, MaxArgs: 2, run: d.enroll},
		{Name: "enroll-options", Usage: "enroll-options <student-id>", Summary: "list classes a student can join", MinArgs: 1, MaxArgs: 1, run: d.enrollOptions},
		{Name: "export", Usage: "export [students|enrollments|classes|reports] [csv|json|pdf]", Summary: "export data; defaults follow the active tab", MaxArgs: 2, run: d.export},
		{Name: "forms", Usage: "forms", Summary: "show open forms", run: d.forms},
	}
	d.index = make(map[string]int, len(d.events))
	for i, ev := range d.events {
		d.index[ev.Name] = i
	}
	return d
}

// Events returns the dispatch table.
func (d *Dispatcher) Events() []Event {
	out := make([]Event, len(d.events))
	copy(out, d.events)
	return out
}

// Forms returns the current form snapshots.
func (d *Dispatcher) Forms() Forms {
	return Forms{Student: d.studentForm.Snapshot(), Class: d.classForm.Snapshot()}
}

// Notifier returns the notifier events report through.
func (d *Dispatcher) Notifier() *Notifier {
	return d.deps.Notifier
}

// Close cancels any pending debounced fetch.
func (d *Dispatcher) Close() {
	d.debouncer.Cancel()
}

// Dispatch runs the named event. It never returns an error: failures become an
// error notification on the result.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args []string) (result Result) {
	name = strings.ToLower(strings.TrimSpace(name))
	result.Event = name

	var err error
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error("event panicked", zap.String("event", name), zap.Any("panic", rec))
			err = appErrors.New(appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("%v", rec))
		}
		if err != nil {
			note := d.deps.Notifier.Error(err)
			result.Notification = &note
		}
		if d.deps.Metrics != nil {
			d.deps.Metrics.ObserveEvent(metricLabel(d, name), err)
		}
	}()

	i, ok := d.index[name]
	if !ok {
		err = appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown event %q, try help", name))
		return result
	}
	ev := d.events[i]
	if len(args) < ev.MinArgs || (ev.MaxArgs != unlimited && len(args) > ev.MaxArgs) {
		err = appErrors.Clone(appErrors.ErrValidation, "usage: "+ev.Usage)
		return result
	}

	var out outcome
	out, err = ev.run(ctx, args)
	if err != nil {
		return result
	}
	result.Output = out.output
	result.Export = out.export
	if out.notice != "" {
		note := d.deps.Notifier.Success(out.notice)
		result.Notification = &note
	}
	return result
}

func metricLabel(d *Dispatcher, name string) string {
	if _, ok := d.index[name]; ok {
		return name
	}
	return "unknown"
}

func (d *Dispatcher) help(context.Context, []string) (outcome, error) {
	var b strings.Builder
	for _, ev := range d.events {
		fmt.Fprintf(&b, "%-64s %s\n", ev.Usage, ev.Summary)
	}
	b.WriteString("quit")
	return outcome{output: b.String()}, nil
}

func (d *Dispatcher) refresh(ctx context.Context, _ []string) (outcome, error) {
	return outcome{}, d.deps.Refresh.All(ctx)
}

func (d *Dispatcher) tab(ctx context.Context, args []string) (outcome, error) {
	tab, ok := models.ParseTab(args[0])
	if !ok {
		return outcome{}, appErrors.Clone(appErrors.ErrValidation, "unknown tab: "+args[0])
	}
	if err := d.deps.Store.SetActiveTab(tab); err != nil {
		return outcome{}, err
	}
	if tab != models.TabStudents && len(d.deps.Store.State().Classes) == 0 {
		return outcome{}, d.deps.Refresh.Classes(ctx)
	}
	return outcome{}, nil
}

func (d *Dispatcher) search(ctx context.Context, args []string) (outcome, error) {
	d.deps.Store.SetSearch(strings.Join(args, " "))
	background := context.WithoutCancel(ctx)
	d.debouncer.Trigger(func() {
		if err := d.deps.Refresh.Students(background); err != nil {
			d.deps.Notifier.Error(err)
		}
	})
	return outcome{}, nil
}

func (d *Dispatcher) searchNow(ctx context.Context, args []string) (outcome, error) {
	d.debouncer.Cancel()
	d.deps.Store.SetSearch(strings.Join(args, " "))
	return outcome{}, d.deps.Refresh.Students(ctx)
}

func (d *Dispatcher) filterClass(ctx context.Context, args []string) (outcome, error) {
	classID := clearable(args[0])
	if classID != "" {
		if _, ok := d.deps.Store.Class(classID); !ok {
			return outcome{}, appErrors.Clone(appErrors.ErrValidation, "unknown class: "+classID)
		}
	}
	d.deps.Store.SetClassFilter(classID)
	return outcome{}, d.deps.Refresh.Students(ctx)
}

func (d *Dispatcher) filterStatus(ctx context.Context, args []string) (outcome, error) {
	var status models.StudentStatus
	if raw := clearable(args[0]); raw != "" {
		parsed, ok := models.ParseStudentStatus(raw)
		if !ok {
			return outcome{}, appErrors.Clone(appErrors.ErrValidation, "invalid status filter: "+raw)
		}
		status = parsed
	}
	if err := d.deps.Store.SetStatusFilter(status); err != nil {
		return outcome{}, err
	}
	return outcome{}, d.deps.Refresh.Students(ctx)
}

func (d *Dispatcher) clearFilters(ctx context.Context, _ []string) (outcome, error) {
	d.debouncer.Cancel()
	d.deps.Store.ClearFilters()
	return outcome{}, d.deps.Refresh.Students(ctx)
}

func (d *Dispatcher) sort(ctx context.Context, args []string) (outcome, error) {
	field := models.SortKey(args[0]).Canonical()
	if !field.Valid() {
		return outcome{}, appErrors.Clone(appErrors.ErrValidation, "invalid sort field: "+args[0])
	}
	current := d.deps.Store.State().Sort
	spec := models.SortSpec{Field: field, Order: models.SortAsc}
	if len(args) == 2 {
		spec.Order = models.SortDirection(strings.ToLower(args[1]))
	} else if current.Field == field {
		spec.Order = current.Order.Toggle()
	}
	return outcome{}, d.deps.Store.SetSort(ctx, spec)
}

func (d *Dispatcher) sortToggle(ctx context.Context, _ []string) (outcome, error) {
	d.deps.Store.ToggleSortOrder(ctx)
	return outcome{}, nil
}

func (d *Dispatcher) studentNew(context.Context, []string) (outcome, error) {
	return outcome{}, d.studentForm.OpenCreate(models.StudentInput{Status: models.StudentStatusActive})
}

func (d *Dispatcher) studentEdit(_ context.Context, args []string) (outcome, error) {
	record, ok := d.deps.Store.Student(args[0])
	if !ok {
		return outcome{}, appErrors.Clone(appErrors.ErrPreconditionFailed, "student not found")
	}
	return outcome{}, d.studentForm.OpenEdit(record.ID, models.StudentInputFrom(record))
}

func (d *Dispatcher) studentSet(_ context.Context, args []string) (outcome, error) {
	snap := d.studentForm.Snapshot()
	if snap.Phase != service.FormOpen {
		return outcome{}, appErrors.Clone(appErrors.ErrPreconditionFailed, "student form is not open")
	}
	values := snap.Values
	value := strings.Join(args[1:], " ")
	switch strings.ToLower(args[0]) {
	case "name":
		values.Name = value
	case "birth_date", "birth":
		date, err := models.ParseDate(value)
		if err != nil {
			return outcome{}, appErrors.Clone(appErrors.ErrValidation, "birth_date must be a date like 2010-05-01")
		}
		values.BirthDate = date
	case "email":
		values.Email = models.StringPtr(value)
	case "status":
		status, ok := models.ParseStudentStatus(value)
		if !ok {
			return outcome{}, appErrors.Clone(appErrors.ErrValidation, "status must be one of: ativo, inativo")
		}
		values.Status = status
	case "class_id", "class":
		values.ClassID = models.StringPtr(clearable(value))
	default:
		return outcome{}, appErrors.Clone(appErrors.ErrValidation, "unknown student field: "+args[0])
	}
	return outcome{}, d.studentForm.Edit(values)
}

func (d *Dispatcher) studentSubmit(ctx context.Context, _ []string) (outcome, error) {
	var notice string
	err := d.studentForm.Submit(ctx, func(ctx context.Context, mode service.FormMode, id string, values models.StudentInput) error {
		if mode == service.FormEdit {
			notice = "Student updated"
			_, err := d.deps.Students.Update(ctx, id, values)
			return err
		}
		notice = "Student created"
		_, err := d.deps.Students.Create(ctx, values)
		return err
	})
	return outcome{notice: notice}, err
}

func (d *Dispatcher) studentCancel(context.Context, []string) (outcome, error) {
	return outcome{}, d.studentForm.Cancel()
}

func (d *Dispatcher) studentDelete(ctx context.Context, args []string) (outcome, error) {
	if err := d.deps.Students.Delete(ctx, args[0]); err != nil {
		return outcome{}, err
	}
	return outcome{notice: "Student deleted"}, nil
}

func (d *Dispatcher) classNew(context.Context, []string) (outcome, error) {
	return outcome{}, d.classForm.OpenCreate(models.ClassInput{})
}

func (d *Dispatcher) classEdit(_ context.Context, args []string) (outcome, error) {
	record, ok := d.deps.Store.Class(args[0])
	if !ok {
		return outcome{}, appErrors.Clone(appErrors.ErrPreconditionFailed, "class not found")
	}
	return outcome{}, d.classForm.OpenEdit(record.ID, models.ClassInput{Name: record.Name, Capacity: record.Capacity})
}

func (d *Dispatcher) classSet(_ context.Context, args []string) (outcome, error) {
	snap := d.classForm.Snapshot()
	if snap.Phase != service.FormOpen {
		return outcome{}, appErrors.Clone(appErrors.ErrPreconditionFailed, "class form is not open")
	}
	values := snap.Values
	value := strings.Join(args[1:], " ")
	switch strings.ToLower(args[0]) {
	case "name":
		values.Name = value
	case "capacity":
		capacity, err := strconv.Atoi(value)
		if err != nil {
			return outcome{}, appErrors.Clone(appErrors.ErrValidation, "capacity must be a whole number")
		}
		values.Capacity = capacity
	default:
		return outcome{}, appErrors.Clone(appErrors.ErrValidation, "unknown class field: "+args[0])
	}
	return outcome{}, d.classForm.Edit(values)
}

func (d *Dispatcher) classSubmit(ctx context.Context, _ []string) (outcome, error) {
	var notice string
	err := d.classForm.Submit(ctx, func(ctx context.Context, mode service.FormMode, id string, values models.ClassInput) error {
		if mode == service.FormEdit {
			notice = "Class updated"
			_, err := d.deps.Classes.Update(ctx, id, values)
			return err
		}
		notice = "Class created"
		_, err := d.deps.Classes.Create(ctx, values)
		return err
	})
	return outcome{notice: notice}, err
}

func (d *Dispatcher) classCancel(context.Context, []string) (outcome, error) {
	return outcome{}, d.classForm.Cancel()
}

func (d *Dispatcher) classDelete(ctx context.Context, args []string) (outcome, error) {
	if err := d.deps.Classes.Delete(ctx, args[0]); err != nil {
		return outcome{}, err
	}
	return outcome{notice: "Class deleted"}, nil
}

func (d *Dispatcher) enroll(ctx context.Context, args []string) (outcome, error) {
	if err := d.deps.Enrollments.Enroll(ctx, args[0], args[1]); err != nil {
		return outcome{}, err
	}
	return outcome{notice: "Student enrolled"}, nil
}

func (d *Dispatcher) enrollOptions(_ context.Context, args []string) (outcome, error) {
	options, err := d.deps.Enrollments.Options(args[0])
	if err != nil {
		return outcome{}, err
	}
	if len(options) == 0 {
		return outcome{output: "no classes registered"}, nil
	}
	lines := make([]string, 0, len(options))
	for _, opt := range options {
		line := fmt.Sprintf("%s  %s  %s", opt.ID, opt.Name, occupancyLabel(opt.ClassRow))
		if !opt.Selectable {
			line += "  (full)"
		}
		lines = append(lines, line)
	}
	return outcome{output: strings.Join(lines, "\n")}, nil
}

func (d *Dispatcher) export(ctx context.Context, args []string) (outcome, error) {
	kind, format := models.DefaultExport(d.deps.Store.State().ActiveTab)
	if len(args) > 0 {
		parsed, ok := models.ParseExportKind(args[0])
		if !ok {
			return outcome{}, appErrors.Clone(appErrors.ErrValidation, "unknown export kind: "+args[0])
		}
		kind = parsed
		format = models.ExportCSV
		if kind == models.ExportReports {
			format = models.ExportPDF
		}
	}
	if len(args) > 1 {
		parsed, ok := models.ParseExportFormat(args[1])
		if !ok {
			return outcome{}, appErrors.Clone(appErrors.ErrValidation, "unknown export format: "+args[1])
		}
		format = parsed
	}
	result, err := d.deps.Exports.Export(ctx, kind, format)
	if err != nil {
		return outcome{}, err
	}
	return outcome{
		notice: fmt.Sprintf("Data exported as %s", strings.ToUpper(string(format))),
		output: fmt.Sprintf("%s (%d rows) %s", result.FileName, result.Rows, result.URL),
		export: result,
	}, nil
}

func (d *Dispatcher) forms(context.Context, []string) (outcome, error) {
	forms := d.Forms()
	lines := []string{}
	if forms.Student.Phase != service.FormClosed {
		v := forms.Student.Values
		lines = append(lines, fmt.Sprintf("student form (%s %s): name=%q birth_date=%s email=%q status=%s class_id=%q",
			forms.Student.Mode, forms.Student.TargetID, v.Name, v.BirthDate, models.StringValue(v.Email), v.Status, models.StringValue(v.ClassID)))
		if forms.Student.Error != "" {
			lines = append(lines, "  last error: "+forms.Student.Error)
		}
	}
	if forms.Class.Phase != service.FormClosed {
		v := forms.Class.Values
		lines = append(lines, fmt.Sprintf("class form (%s %s): name=%q capacity=%d", forms.Class.Mode, forms.Class.TargetID, v.Name, v.Capacity))
		if forms.Class.Error != "" {
			lines = append(lines, "  last error: "+forms.Class.Error)
		}
	}
	if len(lines) == 0 {
		return outcome{output: "no open forms"}, nil
	}
	return outcome{output: strings.Join(lines, "\n")}, nil
}

// clearable maps the "all" and "-" placeholders to the empty filter.
func clearable(raw string) string {
	raw = strings.TrimSpace(raw)
	switch strings.ToLower(raw) {
	case "all", "-", "none":
		return ""
	}
	return raw
}
