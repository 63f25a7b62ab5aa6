package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/enrollment-api/internal/models"
)

const subjectColumns = `s.id, s.full_name, s.name_pronunciation, s.nickname, s.email, s.area, s.birth_date, s.gender, s.remark, s.is_deleted, s.created_at, s.updated_at`

// SubjectRepository manages persistence for subject records.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository constructs a SubjectRepository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// FindByID returns the subject or sql.ErrNoRows.
func (r *SubjectRepository) FindByID(ctx context.Context, id int64) (*models.Subject, error) {
	query := `SELECT ` + subjectColumns + ` FROM subjects s WHERE s.id = $1`
	var subject models.Subject
	if err := sqlx.GetContext(ctx, conn(ctx, r.db), &subject, query, id); err != nil {
		return nil, err
	}
	return &subject, nil
}

// List returns subjects matching the criteria ordered by id. Enrollment and
// status predicates restrict the result to subjects having a matching enrollment.
func (r *SubjectRepository) List(ctx context.Context, criteria models.SubjectCriteria) ([]models.Subject, error) {
	b := &whereBuilder{}
	subjectPredicates(b, criteria)
	if criteria.HasEnrollmentFilter() {
		b.exists("SELECT 1 FROM enrollments e LEFT JOIN courses c ON c.id = e.course_id WHERE e.subject_id = s.id", func(inner *whereBuilder) {
			enrollmentPredicates(inner, criteria)
		})
	}
	query := `SELECT ` + subjectColumns + ` FROM subjects s` + b.clause() + ` ORDER BY s.id`

	subjects := []models.Subject{}
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &subjects, query, b.args...); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}

// Create inserts the subject and returns it with generated fields. A subject
// whose email is already registered is not inserted and reports zero rows.
func (r *SubjectRepository) Create(ctx context.Context, subject models.Subject) (models.Subject, int64, error) {
	now := time.Now().UTC()
	const query = `INSERT INTO subjects (full_name, name_pronunciation, nickname, email, area, birth_date, gender, remark, is_deleted, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
        ON CONFLICT (email) DO NOTHING
        RETURNING id, created_at, updated_at`
	created := subject
	err := conn(ctx, r.db).QueryRowxContext(ctx, query,
		subject.FullName, subject.NamePronunciation, subject.Nickname, subject.Email, subject.Area,
		subject.BirthDate, subject.Gender, subject.Remark, subject.Deleted, now,
	).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if err == sql.ErrNoRows {
		return subject, 0, nil
	}
	if err != nil {
		return subject, 0, fmt.Errorf("create subject: %w", err)
	}
	return created, 1, nil
}

// Update overwrites the mutable fields of a subject.
func (r *SubjectRepository) Update(ctx context.Context, subject models.Subject) (int64, error) {
	const query = `UPDATE subjects SET full_name = $2, name_pronunciation = $3, nickname = $4, email = $5, area = $6,
        birth_date = $7, gender = $8, remark = $9, is_deleted = $10, updated_at = $11 WHERE id = $1`
	res, err := conn(ctx, r.db).ExecContext(ctx, query,
		subject.ID, subject.FullName, subject.NamePronunciation, subject.Nickname, subject.Email, subject.Area,
		subject.BirthDate, subject.Gender, subject.Remark, subject.Deleted, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("update subject: %w", mapConstraintError(err, "email already registered"))
	}
	return res.RowsAffected()
}

// SetDeleted flips the soft-delete flag.
func (r *SubjectRepository) SetDeleted(ctx context.Context, id int64, deleted bool) (int64, error) {
	const query = `UPDATE subjects SET is_deleted = $2, updated_at = $3 WHERE id = $1`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, id, deleted, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("set subject deleted: %w", err)
	}
	return res.RowsAffected()
}
