package models

import "strings"

// Tab identifies the active console section.
type Tab string

// Console tabs.
const (
	TabStudents Tab = "students"
	TabClasses  Tab = "classes"
	TabReports  Tab = "reports"
)

// Tabs lists the tabs in display order.
var Tabs = []Tab{TabStudents, TabClasses, TabReports}

// ParseTab accepts a tab name or its 1-based position.
func ParseTab(raw string) (Tab, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	for i, tab := range Tabs {
		if raw == string(tab) || raw == string(rune('1'+i)) {
			return tab, true
		}
	}
	return "", false
}

// SortKey selects the student list ordering.
type SortKey string

// Sort keys.
const (
	SortByName   SortKey = "name"
	SortByAge    SortKey = "age"
	SortByClass  SortKey = "class"
	SortByStatus SortKey = "status"
)

// Canonical maps the class-name spellings onto SortByClass and lowercases the key.
func (k SortKey) Canonical() SortKey {
	switch key := SortKey(strings.ToLower(strings.TrimSpace(string(k)))); key {
	case "class-name", "class_name", "classname":
		return SortByClass
	default:
		return key
	}
}

// Valid reports whether the key, or one of its aliases, is known.
func (k SortKey) Valid() bool {
	switch k.Canonical() {
	case SortByName, SortByAge, SortByClass, SortByStatus:
		return true
	}
	return false
}

// SortDirection is ascending or descending.
type SortDirection string

// Sort directions.
const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Valid reports whether the direction is known.
func (d SortDirection) Valid() bool {
	return d == SortAsc || d == SortDesc
}

// Toggle returns the opposite direction.
func (d SortDirection) Toggle() SortDirection {
	if d == SortDesc {
		return SortAsc
	}
	return SortDesc
}

// SortSpec is the active ordering of the student list.
type SortSpec struct {
	Field SortKey       `json:"field"`
	Order SortDirection `json:"order"`
}

// DefaultSortSpec orders by name ascending.
func DefaultSortSpec() SortSpec {
	return SortSpec{Field: SortByName, Order: SortAsc}
}

// Canonical returns the spec with its field in canonical form.
func (s SortSpec) Canonical() SortSpec {
	s.Field = s.Field.Canonical()
	return s
}

// Valid reports whether both the field and the order are known.
func (s SortSpec) Valid() bool {
	return s.Field.Valid() && s.Order.Valid()
}

// FilterSet narrows the student list. Empty fields impose no constraint.
type FilterSet struct {
	Search  string        `json:"search"`
	ClassID string        `json:"class_id"`
	Status  StudentStatus `json:"status"`
}

// Empty reports whether no filter dimension is active.
func (f FilterSet) Empty() bool {
	return f.Search == "" && f.ClassID == "" && f.Status == ""
}

// ViewState is a snapshot of the console state.
type ViewState struct {
	ActiveTab Tab             `json:"active_tab"`
	Filters   FilterSet       `json:"filters"`
	Sort      SortSpec        `json:"sort"`
	Students  []StudentRecord `json:"students"`
	Classes   []ClassRecord   `json:"classes"`
}

// View is the derived, display-ready projection of a ViewState.
type View struct {
	ActiveTab Tab             `json:"active_tab"`
	Filters   FilterSet       `json:"filters"`
	Sort      SortSpec        `json:"sort"`
	Students  []StudentRecord `json:"students"`
	Classes   []ClassRow      `json:"classes"`
	Stats     Statistics      `json:"stats"`
}

// Statistics summarises the cached collections for the reports tab.
type Statistics struct {
	TotalStudents    int        `json:"total_students"`
	ActiveStudents   int        `json:"active_students"`
	InactiveStudents int        `json:"inactive_students"`
	TotalClasses     int        `json:"total_classes"`
	Classes          []ClassRow `json:"classes"`
}

// NotificationLevel classifies transient notifications.
type NotificationLevel string

// Notification levels.
const (
	NotificationSuccess NotificationLevel = "success"
	NotificationError   NotificationLevel = "error"
)

// Notification is a transient message surfaced to the user.
type Notification struct {
	Level   NotificationLevel `json:"level"`
	Message string            `json:"message"`
}
