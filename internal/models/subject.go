package models

import "time"

// Subject is a person taking courses. Subjects are never physically removed;
// Deleted marks a cancelled registration.
type Subject struct {
	ID                int64     `db:"id" json:"id"`
	FullName          string    `db:"full_name" json:"full_name" validate:"required,max=50"`
	NamePronunciation string    `db:"name_pronunciation" json:"name_pronunciation" validate:"required,max=50"`
	Nickname          string    `db:"nickname" json:"nickname" validate:"required,max=20"`
	Email             string    `db:"email" json:"email" validate:"required,email"`
	Area              string    `db:"area" json:"area" validate:"required,max=100"`
	BirthDate         time.Time `db:"birth_date" json:"birth_date" validate:"required"`
	Gender            string    `db:"gender" json:"gender" validate:"required,oneof=Male Female Other"`
	Remark            string    `db:"remark" json:"remark" validate:"max=200"`
	Deleted           bool      `db:"is_deleted" json:"deleted"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// SetDeletedRequest toggles the soft-delete flag of a subject.
type SetDeletedRequest struct {
	Deleted *bool `json:"deleted" validate:"required"`
}
