package models

import "time"

// Enrollment is one subject's registration in one catalog course. Only the
// course reference may change after creation.
type Enrollment struct {
	AttendingID int64     `db:"attending_id" json:"attending_id"`
	SubjectID   int64     `db:"subject_id" json:"subject_id"`
	CourseID    int64     `db:"course_id" json:"course_id" validate:"required,gt=0"`
	StartDate   time.Time `db:"start_date" json:"start_date"`
	EndDate     time.Time `db:"end_date" json:"end_date"`
}

// CourseDetail is an enrollment together with its status timeline ordered by start date.
type CourseDetail struct {
	Enrollment    Enrollment    `json:"enrollment"`
	StatusHistory []StatusEvent `json:"status_history" validate:"dive"`
}

// SubjectDetail is the aggregate root returned by read paths and accepted by
// registration and edits.
type SubjectDetail struct {
	Subject       Subject        `json:"subject"`
	CourseDetails []CourseDetail `json:"course_details" validate:"dive"`
}

// EditOutcome reports how many rows each entity kind changed during an edit.
type EditOutcome struct {
	SubjectRows     int64 `json:"subject_rows"`
	EnrollmentRows  int64 `json:"enrollment_rows"`
	StatusRows      int64 `json:"status_rows"`
	ClosedIntervals int64 `json:"closed_intervals"`
}

// Changed reports whether any subject, enrollment or status row was written.
func (o EditOutcome) Changed() bool {
	return o.SubjectRows > 0 || o.EnrollmentRows > 0 || o.StatusRows > 0
}
