package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enrollment-api/internal/models"
)

var subjectRowColumns = []string{"id", "full_name", "name_pronunciation", "nickname", "email", "area", "birth_date", "gender", "remark", "is_deleted", "created_at", "updated_at"}

func TestSubjectRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM subjects s WHERE s.id = $1")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(subjectRowColumns).
			AddRow(3, "Ann Lee", "an li", "Ann", "ann@example.com", "Tokyo", now, "Female", "", false, now, now))

	subject, err := repo.FindByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "Ann Lee", subject.FullName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectRepositoryFindByIDMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectQuery("FROM subjects s WHERE").WillReturnError(sql.ErrNoRows)

	_, err := NewSubjectRepository(db).FindByID(context.Background(), 9)
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSubjectRepositoryListWithEnrollmentFilter(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	courseID := int64(2)
	criteria := models.SubjectCriteria{Name: "ann", CourseID: &courseID, Statuses: []models.Status{models.StatusApplied}}

	mock.ExpectQuery(regexp.QuoteMeta("FROM subjects s WHERE s.is_deleted = FALSE AND (s.full_name ILIKE $1") +
		".*" + regexp.QuoteMeta("EXISTS (SELECT 1 FROM enrollments e LEFT JOIN courses c ON c.id = e.course_id WHERE e.subject_id = s.id AND e.course_id = $2 AND EXISTS") +
		".*" + regexp.QuoteMeta("cur.status_id = ANY($3))) ORDER BY s.id")).
		WithArgs("%ann%", int64(2), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(subjectRowColumns))

	subjects, err := repo.List(context.Background(), criteria)
	require.NoError(t, err)
	assert.NotNil(t, subjects)
	assert.Empty(t, subjects)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	now := time.Now()
	subject := models.Subject{FullName: "Ann Lee", Email: "ann@example.com", Gender: "Female"}
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO subjects")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(11, now, now))

	created, rows, err := repo.Create(context.Background(), subject)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)
	assert.Equal(t, int64(11), created.ID)
	assert.Zero(t, subject.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectRepositoryCreateDuplicateEmailWritesNothing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (email) DO NOTHING")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}))

	created, rows, err := NewSubjectRepository(db).Create(context.Background(), models.Subject{Email: "dup@example.com"})
	require.NoError(t, err)
	assert.Zero(t, rows)
	assert.Zero(t, created.ID)
}

func TestSubjectRepositoryUpdate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE subjects SET full_name = $2")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rows, err := NewSubjectRepository(db).Update(context.Background(), models.Subject{ID: 4, FullName: "Bo"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)
	require.NoError(t, mock.ExpectationsWereMet())
}
