package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/enrollment-api/internal/models"
)

const courseColumns = `id, name, category, duration_months, is_closed, created_at, updated_at`

// CourseRepository persists the course catalog.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs a course repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns every course ordered by category and name.
func (r *CourseRepository) List(ctx context.Context) ([]models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses ORDER BY category, name`
	courses := []models.Course{}
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &courses, query); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// FindByID returns the course or sql.ErrNoRows.
func (r *CourseRepository) FindByID(ctx context.Context, id int64) (*models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE id = $1`
	var course models.Course
	if err := sqlx.GetContext(ctx, conn(ctx, r.db), &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// Create inserts a course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	now := time.Now().UTC()
	const query = `INSERT INTO courses (name, category, duration_months, is_closed, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $5) RETURNING id`
	if err := conn(ctx, r.db).QueryRowxContext(ctx, query, course.Name, course.Category, course.DurationMonths, course.Closed, now).Scan(&course.ID); err != nil {
		return fmt.Errorf("create course: %w", mapConstraintError(err, "course already exists"))
	}
	course.CreatedAt = now
	course.UpdatedAt = now
	return nil
}

// Update overwrites the course and reports affected rows.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) (int64, error) {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET name = $2, category = $3, duration_months = $4, is_closed = $5, updated_at = $6 WHERE id = $1`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, course.ID, course.Name, course.Category, course.DurationMonths, course.Closed, course.UpdatedAt)
	if err != nil {
		return 0, fmt.Errorf("update course: %w", mapConstraintError(err, "course already exists"))
	}
	return res.RowsAffected()
}

// Delete removes a course. Enrollments keep their course id and fall back to
// zero duration like any course missing from the catalog.
func (r *CourseRepository) Delete(ctx context.Context, id int64) (int64, error) {
	res, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete course: %w", err)
	}
	return res.RowsAffected()
}
