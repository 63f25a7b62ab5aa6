package models

import "time"

// SubjectSearchForm holds the user-facing search parameters for subject lists.
type SubjectSearchForm struct {
	Name           string
	MinAge         *int
	MaxAge         *int
	Area           string
	Email          string
	Gender         string
	Remark         string
	CourseID       *int64
	Category       string
	StartDate      *time.Time
	EndDate        *time.Time
	Statuses       []string
	IncludeDeleted bool
}

// SubjectCriteria is the storage-facing form of SubjectSearchForm. Nil bounds
// mean no constraint; an empty Statuses slice means any status.
type SubjectCriteria struct {
	Name           string
	StartBirthDate *time.Time
	EndBirthDate   *time.Time
	Area           string
	Email          string
	Gender         string
	Remark         string
	CourseID       *int64
	Category       string
	StartDate      *time.Time
	EndDate        *time.Time
	Statuses       []Status
	IncludeDeleted bool
}

// HasEnrollmentFilter reports whether any enrollment-level predicate is set.
func (c SubjectCriteria) HasEnrollmentFilter() bool {
	return c.CourseID != nil || c.Category != "" || c.StartDate != nil || c.EndDate != nil || len(c.Statuses) > 0
}

// StatusIDs returns the status filter as plain ids for array binding.
func (c SubjectCriteria) StatusIDs() []int64 {
	ids := make([]int64, 0, len(c.Statuses))
	for _, s := range c.Statuses {
		ids = append(ids, int64(s))
	}
	return ids
}
