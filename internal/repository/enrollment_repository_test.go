package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enrollment-api/internal/models"
	appErrors "github.com/noah-isme/enrollment-api/pkg/errors"
)

var enrollmentRowColumns = []string{"attending_id", "subject_id", "course_id", "start_date", "end_date"}

func TestEnrollmentRepositoryLockBySubject(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments e WHERE e.subject_id = $1 ORDER BY e.attending_id FOR UPDATE")).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(enrollmentRowColumns).
			AddRow(21, 5, 2, now, now.AddDate(0, 6, 0)).
			AddRow(22, 5, 3, now, now))

	enrollments, err := repo.LockBySubject(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, enrollments, 2)
	assert.Equal(t, int64(22), enrollments[1].AttendingID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListJoinsSubjects(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("JOIN subjects s ON s.id = e.subject_id") + ".*" +
		regexp.QuoteMeta("WHERE s.is_deleted = FALSE AND c.category = $1")).
		WithArgs("Language").
		WillReturnRows(sqlmock.NewRows(enrollmentRowColumns))

	enrollments, err := NewEnrollmentRepository(db).List(context.Background(), models.SubjectCriteria{Category: "Language"})
	require.NoError(t, err)
	assert.Empty(t, enrollments)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	start := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO enrollments (subject_id, course_id, start_date, end_date)")).
		WithArgs(int64(5), int64(2), start, start.AddDate(0, 6, 0)).
		WillReturnRows(sqlmock.NewRows([]string{"attending_id"}).AddRow(31))

	created, rows, err := NewEnrollmentRepository(db).Create(context.Background(), models.Enrollment{
		SubjectID: 5, CourseID: 2, StartDate: start, EndDate: start.AddDate(0, 6, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)
	assert.Equal(t, int64(31), created.AttendingID)
}

func TestEnrollmentRepositoryCreateUnknownCourse(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	start := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO enrollments (subject_id, course_id, start_date, end_date)")).
		WithArgs(int64(5), int64(999), start, start).
		WillReturnRows(sqlmock.NewRows([]string{"attending_id"}).AddRow(32))

	created, rows, err := NewEnrollmentRepository(db).Create(context.Background(), models.Enrollment{
		SubjectID: 5, CourseID: 999, StartDate: start, EndDate: start,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)
	assert.Equal(t, int64(999), created.CourseID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateUnknownSubject(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectQuery("INSERT INTO enrollments").WillReturnError(&pq.Error{Code: pqForeignKeyViolation})

	_, rows, err := NewEnrollmentRepository(db).Create(context.Background(), models.Enrollment{SubjectID: 404, CourseID: 2})
	require.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Zero(t, rows)
}

func TestEnrollmentRepositoryUpdateCourseScopedToSubject(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET course_id = $1 WHERE attending_id = $2 AND subject_id = $3")).
		WithArgs(int64(4), int64(21), int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rows, err := NewEnrollmentRepository(db).UpdateCourse(context.Background(), models.Enrollment{AttendingID: 21, SubjectID: 5, CourseID: 4})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)
	require.NoError(t, mock.ExpectationsWereMet())
}
