// Package viewstate holds the single source of truth for the console: cached
// records, active filters, sort and tab. Every mutation recomputes the derived
// view and publishes it to subscribers.
package viewstate

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-console/internal/models"
	"github.com/noah-isme/sma-adp-console/internal/view"
	appErrors "github.com/noah-isme/sma-adp-console/pkg/errors"
)

type sortPersister interface {
	SaveSortPreference(ctx context.Context, spec models.SortSpec) error
}

// Store serializes mutations of the console state.
type Store struct {
	mu          sync.RWMutex
	state       models.ViewState
	current     models.View
	engine      *view.Engine
	settings    sortPersister
	logger      *zap.Logger
	subscribers map[int]func(models.View)
	nextSub     int
}

// New creates a store on the students tab with the given initial sort. An
// invalid sort falls back to the default. settings may be nil.
func New(engine *view.Engine, settings sortPersister, initial models.SortSpec, logger *zap.Logger) *Store {
	if engine == nil {
		engine = view.NewEngine(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if !initial.Valid() {
		initial = models.DefaultSortSpec()
	}
	initial = initial.Canonical()
	s := &Store{
		state: models.ViewState{
			ActiveTab: models.TabStudents,
			Sort:      initial,
			Students:  []models.StudentRecord{},
			Classes:   []models.ClassRecord{},
		},
		engine:   engine,
		settings: settings,
		logger:   logger,
	}
	s.current = engine.Derive(s.state)
	return s
}

// Subscribe registers fn to receive every recomputed view and returns a func
// that removes it. fn runs on the mutating goroutine after the lock is
// released; it must not call mutators and must treat the view as read-only.
func (s *Store) Subscribe(fn func(models.View)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	if s.subscribers == nil {
		s.subscribers = make(map[int]func(models.View))
	}
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// State returns a copy of the current state.
func (s *Store) State() models.ViewState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyState(s.state)
}

// View returns a copy of the current derived view.
func (s *Store) View() models.View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyView(s.current)
}

// Filters returns the active filters.
func (s *Store) Filters() models.FilterSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Filters
}

// Student looks up a cached student.
func (s *Store) Student(id string) (models.StudentRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.state.Students {
		if st.ID == id {
			return st.Clone(), true
		}
	}
	return models.StudentRecord{}, false
}

// Class looks up a cached class.
func (s *Store) Class(id string) (models.ClassRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.state.Classes {
		if c.ID == id {
			return c, true
		}
	}
	return models.ClassRecord{}, false
}

// Occupancy counts the cached students assigned to classID.
func (s *Store) Occupancy(classID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view.Occupancy(classID, s.state.Students)
}

// SetFilters replaces all three filter dimensions; unspecified fields become empty.
func (s *Store) SetFilters(filters models.FilterSet) error {
	if err := validateStatus(filters.Status); err != nil {
		return err
	}
	s.mutate(func(st *models.ViewState) { st.Filters = filters })
	return nil
}

// SetSearch updates the search text, keeping the other filter dimensions.
func (s *Store) SetSearch(text string) {
	s.mutate(func(st *models.ViewState) { st.Filters.Search = text })
}

// SetClassFilter updates the class filter, keeping the other filter dimensions.
func (s *Store) SetClassFilter(classID string) {
	s.mutate(func(st *models.ViewState) { st.Filters.ClassID = classID })
}

// SetStatusFilter updates the status filter, keeping the other filter dimensions.
func (s *Store) SetStatusFilter(status models.StudentStatus) error {
	if err := validateStatus(status); err != nil {
		return err
	}
	s.mutate(func(st *models.ViewState) { st.Filters.Status = status })
	return nil
}

// ClearFilters empties every filter dimension.
func (s *Store) ClearFilters() {
	s.mutate(func(st *models.ViewState) { st.Filters = models.FilterSet{} })
}

// SetSort changes the ordering and writes it through to the settings adapter.
// A failed write is logged; the in-memory sort is kept.
func (s *Store) SetSort(ctx context.Context, spec models.SortSpec) error {
	spec = spec.Canonical()
	if !spec.Field.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "invalid sort field: "+string(spec.Field))
	}
	if !spec.Order.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "invalid sort order: "+string(spec.Order))
	}
	s.mutate(func(st *models.ViewState) { st.Sort = spec })
	s.persistSort(ctx, spec)
	return nil
}

// ToggleSortOrder flips the direction of the current sort field.
func (s *Store) ToggleSortOrder(ctx context.Context) models.SortSpec {
	var spec models.SortSpec
	s.mutate(func(st *models.ViewState) {
		st.Sort.Order = st.Sort.Order.Toggle()
		spec = st.Sort
	})
	s.persistSort(ctx, spec)
	return spec
}

// ReplaceStudents swaps the cached student collection wholesale.
func (s *Store) ReplaceStudents(students []models.StudentRecord) {
	next := models.CloneStudents(students)
	if next == nil {
		next = []models.StudentRecord{}
	}
	s.mutate(func(st *models.ViewState) { st.Students = next })
}

// ReplaceClasses swaps the cached class collection wholesale.
func (s *Store) ReplaceClasses(classes []models.ClassRecord) {
	next := models.CloneClasses(classes)
	if next == nil {
		next = []models.ClassRecord{}
	}
	s.mutate(func(st *models.ViewState) { st.Classes = next })
}

// SetActiveTab switches the displayed section.
func (s *Store) SetActiveTab(tab models.Tab) error {
	valid := false
	for _, t := range models.Tabs {
		if t == tab {
			valid = true
			break
		}
	}
	if !valid {
		return appErrors.Clone(appErrors.ErrValidation, "unknown tab: "+string(tab))
	}
	s.mutate(func(st *models.ViewState) { st.ActiveTab = tab })
	return nil
}

func (s *Store) mutate(fn func(*models.ViewState)) {
	s.mu.Lock()
	fn(&s.state)
	s.current = s.engine.Derive(s.state)
	current := s.current
	ids := make([]int, 0, len(s.subscribers))
	for id := range s.subscribers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subscribers := make([]func(models.View), 0, len(ids))
	for _, id := range ids {
		subscribers = append(subscribers, s.subscribers[id])
	}
	s.mu.Unlock()

	for _, sub := range subscribers {
		sub(copyView(current))
	}
}

func (s *Store) persistSort(ctx context.Context, spec models.SortSpec) {
	if s.settings == nil {
		return
	}
	if err := s.settings.SaveSortPreference(ctx, spec); err != nil {
		s.logger.Warn("sort preference not saved", zap.String("field", string(spec.Field)), zap.String("order", string(spec.Order)), zap.Error(err))
	}
}

func validateStatus(status models.StudentStatus) error {
	if status != "" && !status.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "invalid status filter: "+string(status))
	}
	return nil
}

func copyView(in models.View) models.View {
	out := in
	out.Students = models.CloneStudents(in.Students)
	out.Classes = models.CloneClassRows(in.Classes)
	out.Stats.Classes = models.CloneClassRows(in.Stats.Classes)
	return out
}

func copyState(in models.ViewState) models.ViewState {
	out := in
	out.Students = models.CloneStudents(in.Students)
	out.Classes = models.CloneClasses(in.Classes)
	return out
}
