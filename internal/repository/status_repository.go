package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/enrollment-api/internal/models"
	appErrors "github.com/noah-isme/enrollment-api/pkg/errors"
)

const statusColumns = `h.id, h.attending_id, h.status_id, h.start_date, h.end_date, h.change_reason, h.created_at, h.updated_at`

// StatusRepository persists enrollment status history.
type StatusRepository struct {
	db *sqlx.DB
}

// NewStatusRepository constructs the repository.
func NewStatusRepository(db *sqlx.DB) *StatusRepository {
	return &StatusRepository{db: db}
}

// ListByEnrollment returns an enrollment's timeline ordered by start date.
func (r *StatusRepository) ListByEnrollment(ctx context.Context, attendingID int64) ([]models.StatusEvent, error) {
	query := `SELECT ` + statusColumns + ` FROM status_history h WHERE h.attending_id = $1 ORDER BY h.start_date, h.id`
	events := []models.StatusEvent{}
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &events, query, attendingID); err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	return events, nil
}

// List returns full timelines of enrollments matching the criteria, grouped
// by enrollment and ordered by start date.
func (r *StatusRepository) List(ctx context.Context, criteria models.SubjectCriteria) ([]models.StatusEvent, error) {
	b := &whereBuilder{}
	subjectPredicates(b, criteria)
	enrollmentPredicates(b, criteria)
	query := `SELECT ` + statusColumns + ` FROM status_history h
        JOIN enrollments e ON e.attending_id = h.attending_id
        JOIN subjects s ON s.id = e.subject_id
        LEFT JOIN courses c ON c.id = e.course_id` + b.clause() + ` ORDER BY h.attending_id, h.start_date, h.id`

	events := []models.StatusEvent{}
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &events, query, b.args...); err != nil {
		return nil, fmt.Errorf("list status events: %w", err)
	}
	return events, nil
}

// FindByNaturalKey returns the event with the given (enrollment, status, start
// date) key, or nil when there is none.
func (r *StatusRepository) FindByNaturalKey(ctx context.Context, attendingID int64, status models.Status, startDate time.Time) (*models.StatusEvent, error) {
	query := `SELECT ` + statusColumns + ` FROM status_history h WHERE h.attending_id = $1 AND h.status_id = $2 AND h.start_date = $3`
	var event models.StatusEvent
	if err := sqlx.GetContext(ctx, conn(ctx, r.db), &event, query, attendingID, status, startDate); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find status event: %w", err)
	}
	return &event, nil
}

// Create inserts a status event. A natural-key collision leaves the table
// untouched and yields ErrDuplicateKey without aborting the transaction.
func (r *StatusRepository) Create(ctx context.Context, event models.StatusEvent) (models.StatusEvent, int64, error) {
	now := time.Now().UTC()
	const query = `INSERT INTO status_history (attending_id, status_id, start_date, end_date, change_reason, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $6)
        ON CONFLICT (attending_id, status_id, start_date) DO NOTHING
        RETURNING id, created_at, updated_at`
	created := event
	err := conn(ctx, r.db).QueryRowxContext(ctx, query,
		event.AttendingID, event.Status, event.StartDate, event.EndDate, event.ChangeReason, now,
	).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if err == sql.ErrNoRows {
		return event, 0, fmt.Errorf("create status event: %w", appErrors.ErrDuplicateKey)
	}
	if err != nil {
		return event, 0, fmt.Errorf("create status event: %w", mapConstraintError(err, "unknown enrollment"))
	}
	return created, 1, nil
}

// Update corrects an existing event identified by its id. A nil end date keeps
// the stored one so a closed interval is never reopened.
func (r *StatusRepository) Update(ctx context.Context, event models.StatusEvent) (int64, error) {
	const query = `UPDATE status_history SET end_date = COALESCE($2, end_date), change_reason = $3, updated_at = $4
        WHERE id = $1 AND attending_id = $5`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, event.ID, event.EndDate, event.ChangeReason, time.Now().UTC(), event.AttendingID)
	if err != nil {
		return 0, fmt.Errorf("update status event: %w", err)
	}
	return res.RowsAffected()
}

// CloseOpenInterval ends the open intervals of the enrollment that started no
// later than newStart, other than keepID, on the day before newStart. An
// interval starting that same day ends on its start date.
func (r *StatusRepository) CloseOpenInterval(ctx context.Context, attendingID, keepID int64, newStart time.Time) (int64, error) {
	const query = `UPDATE status_history SET end_date = GREATEST(start_date, $3::date - 1), updated_at = $4
        WHERE attending_id = $1 AND id <> $2 AND end_date IS NULL AND start_date <= $3`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, attendingID, keepID, newStart, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("close open status interval: %w", err)
	}
	return res.RowsAffected()
}
