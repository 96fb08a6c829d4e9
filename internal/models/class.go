package models

// ClassRecord represents a class as served by the records backend.
type ClassRecord struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
}

// ClassRow annotates a class with its live occupancy. It is derived, never stored.
type ClassRow struct {
	ClassRecord
	Occupancy        int     `json:"occupancy"`
	OccupancyPercent float64 `json:"occupancy_percent"`
	Full             bool    `json:"full"`
}

// ClassInput is the create/edit payload for a class.
type ClassInput struct {
	Name     string `json:"name" validate:"required,min=1,max=50"`
	Capacity int    `json:"capacity" validate:"gt=0"`
}

// ClassOption is a class offered in the enrollment picker.
type ClassOption struct {
	ClassRow
	Selectable bool `json:"selectable"`
}

// CloneClassRows copies a derived class collection.
func CloneClassRows(in []ClassRow) []ClassRow {
	if in == nil {
		return nil
	}
	out := make([]ClassRow, len(in))
	copy(out, in)
	return out
}

// CloneClasses copies a class collection.
func CloneClasses(in []ClassRecord) []ClassRecord {
	if in == nil {
		return nil
	}
	out := make([]ClassRecord, len(in))
	copy(out, in)
	return out
}
