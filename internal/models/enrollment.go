package models

// EnrollmentRequest assigns a student to a class.
type EnrollmentRequest struct {
	StudentID string `json:"studentId" validate:"required"`
	ClassID   string `json:"classId" validate:"required"`
}

// EnrollmentRow is a student-with-class line used by the enrollments export.
type EnrollmentRow struct {
	StudentID      string `json:"student_id"`
	StudentName    string `json:"student_name"`
	ClassID        string `json:"class_id"`
	ClassName      string `json:"class_name"`
	EnrollmentDate Date   `json:"enrollment_date"`
}
