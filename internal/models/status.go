package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Status identifies a step in an enrollment's lifecycle.
type Status int

// Known statuses. The numeric values are the stored status ids.
const (
	StatusApplied    Status = 1
	StatusConfirmed  Status = 2
	StatusInProgress Status = 3
	StatusCompleted  Status = 4
	StatusCancelled  Status = 99
)

var statusNames = map[Status]string{
	StatusApplied:    "APPLIED",
	StatusConfirmed:  "CONFIRMED",
	StatusInProgress: "IN_PROGRESS",
	StatusCompleted:  "COMPLETED",
	StatusCancelled:  "CANCELLED",
}

// Statuses returns every known status in lifecycle order.
func Statuses() []Status {
	return []Status{StatusApplied, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled}
}

// String returns the canonical status name.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// ParseStatus accepts a status name (case-insensitive) or its numeric id.
func ParseStatus(raw string) (Status, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	if value == "" {
		return 0, fmt.Errorf("empty status")
	}
	if id, err := strconv.Atoi(value); err == nil {
		if s := Status(id); s.Valid() {
			return s, nil
		}
		return 0, fmt.Errorf("unknown status id %d", id)
	}
	for s, name := range statusNames {
		if name == value {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", raw)
}

// MarshalText encodes the status as its name.
func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unknown status id %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name or id.
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// StatusEvent is one interval of an enrollment's status timeline. A nil
// EndDate marks the currently open interval. (AttendingID, Status, StartDate)
// is unique.
type StatusEvent struct {
	ID           int64      `db:"id" json:"id"`
	AttendingID  int64      `db:"attending_id" json:"attending_id"`
	Status       Status     `db:"status_id" json:"status"`
	StartDate    time.Time  `db:"start_date" json:"start_date"`
	EndDate      *time.Time `db:"end_date" json:"end_date,omitempty"`
	ChangeReason string     `db:"change_reason" json:"change_reason" validate:"max=100"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Open reports whether the event is the enrollment's current status.
func (e StatusEvent) Open() bool {
	return e.EndDate == nil
}
