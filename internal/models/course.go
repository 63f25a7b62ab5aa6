package models

import "time"

// Course is an entry of the course catalog.
type Course struct {
	ID             int64     `db:"id" json:"id"`
	Name           string    `db:"name" json:"name" validate:"required,max=50"`
	Category       string    `db:"category" json:"category" validate:"required,max=50"`
	DurationMonths int       `db:"duration_months" json:"duration_months" validate:"gte=0,lte=60"`
	Closed         bool      `db:"is_closed" json:"closed"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}
