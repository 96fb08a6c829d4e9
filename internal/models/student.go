package models

import "strings"

// StudentStatus is the enrollment status of a student as emitted by the backend.
type StudentStatus string

// Possible student statuses.
const (
	StudentStatusActive   StudentStatus = "ativo"
	StudentStatusInactive StudentStatus = "inativo"
)

// Valid reports whether the status is one of the known values.
func (s StudentStatus) Valid() bool {
	return s == StudentStatusActive || s == StudentStatusInactive
}

// ParseStudentStatus accepts the wire values and their English aliases.
func ParseStudentStatus(raw string) (StudentStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "ativo", "active":
		return StudentStatusActive, true
	case "inativo", "inactive":
		return StudentStatusInactive, true
	}
	return "", false
}

// StudentRecord represents a learner as served by the records backend.
type StudentRecord struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	BirthDate Date          `json:"birth_date"`
	Email     *string       `json:"email,omitempty"`
	Status    StudentStatus `json:"status"`
	ClassID   *string       `json:"class_id,omitempty"`
	ClassName *string       `json:"class_name,omitempty"`
}

// Enrolled reports whether the student is assigned to a class.
func (s StudentRecord) Enrolled() bool {
	return s.ClassID != nil && *s.ClassID != ""
}

// InClass reports whether the student is assigned to the given class.
func (s StudentRecord) InClass(classID string) bool {
	return s.Enrolled() && *s.ClassID == classID
}

// StudentInput is the create/edit payload for a student.
type StudentInput struct {
	Name      string        `json:"name" validate:"required,min=3,max=80"`
	BirthDate Date          `json:"birth_date" validate:"student_age"`
	Email     *string       `json:"email,omitempty" validate:"omitempty,simple_email"`
	Status    StudentStatus `json:"status" validate:"required,oneof=ativo inativo"`
	ClassID   *string       `json:"class_id,omitempty"`
}

// StudentInputFrom prefills an edit form from an existing record.
func StudentInputFrom(record StudentRecord) StudentInput {
	return StudentInput{
		Name:      record.Name,
		BirthDate: record.BirthDate,
		Email:     cloneString(record.Email),
		Status:    record.Status,
		ClassID:   cloneString(record.ClassID),
	}
}

// Clone returns a deep copy of the record.
func (s StudentRecord) Clone() StudentRecord {
	out := s
	out.Email = cloneString(s.Email)
	out.ClassID = cloneString(s.ClassID)
	out.ClassName = cloneString(s.ClassName)
	return out
}

// CloneStudents deep-copies a record collection.
func CloneStudents(in []StudentRecord) []StudentRecord {
	if in == nil {
		return nil
	}
	out := make([]StudentRecord, len(in))
	for i, s := range in {
		out[i] = s.Clone()
	}
	return out
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// StringPtr returns a pointer to v, or nil for the empty string.
func StringPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// StringValue dereferences v, returning "" for nil.
func StringValue(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
