package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/enrollment-api/internal/models"
)

const enrollmentColumns = `e.attending_id, e.subject_id, e.course_id, e.start_date, e.end_date`

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// ListBySubject returns the subject's enrollments ordered by id.
func (r *EnrollmentRepository) ListBySubject(ctx context.Context, subjectID int64) ([]models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments e WHERE e.subject_id = $1 ORDER BY e.attending_id`
	enrollments := []models.Enrollment{}
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &enrollments, query, subjectID); err != nil {
		return nil, fmt.Errorf("list subject enrollments: %w", err)
	}
	return enrollments, nil
}

// LockBySubject is ListBySubject taking row locks for the rest of the
// transaction, which serializes concurrent edits of the same enrollments.
func (r *EnrollmentRepository) LockBySubject(ctx context.Context, subjectID int64) ([]models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments e WHERE e.subject_id = $1 ORDER BY e.attending_id FOR UPDATE`
	enrollments := []models.Enrollment{}
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &enrollments, query, subjectID); err != nil {
		return nil, fmt.Errorf("lock subject enrollments: %w", err)
	}
	return enrollments, nil
}

// List returns enrollments of subjects matching the criteria.
func (r *EnrollmentRepository) List(ctx context.Context, criteria models.SubjectCriteria) ([]models.Enrollment, error) {
	b := &whereBuilder{}
	subjectPredicates(b, criteria)
	enrollmentPredicates(b, criteria)
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments e
        JOIN subjects s ON s.id = e.subject_id
        LEFT JOIN courses c ON c.id = e.course_id` + b.clause() + ` ORDER BY e.subject_id, e.attending_id`

	enrollments := []models.Enrollment{}
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &enrollments, query, b.args...); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return enrollments, nil
}

// Create inserts an enrollment and returns it carrying the generated attending id.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment models.Enrollment) (models.Enrollment, int64, error) {
	const query = `INSERT INTO enrollments (subject_id, course_id, start_date, end_date)
        VALUES ($1, $2, $3, $4) RETURNING attending_id`
	created := enrollment
	err := conn(ctx, r.db).QueryRowxContext(ctx, query,
		enrollment.SubjectID, enrollment.CourseID, enrollment.StartDate, enrollment.EndDate,
	).Scan(&created.AttendingID)
	if err != nil {
		return enrollment, 0, fmt.Errorf("create enrollment: %w", mapConstraintError(err, "unknown subject"))
	}
	return created, 1, nil
}

// UpdateCourse changes the course reference, the only mutable enrollment field.
func (r *EnrollmentRepository) UpdateCourse(ctx context.Context, enrollment models.Enrollment) (int64, error) {
	const query = `UPDATE enrollments SET course_id = $1 WHERE attending_id = $2 AND subject_id = $3`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, enrollment.CourseID, enrollment.AttendingID, enrollment.SubjectID)
	if err != nil {
		return 0, fmt.Errorf("update enrollment course: %w", err)
	}
	return res.RowsAffected()
}
