package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enrollment-api/internal/models"
	appErrors "github.com/noah-isme/enrollment-api/pkg/errors"
)

// seedSubject stores subject 1 with enrollment 10 on course 5 whose current
// status is APPLIED since 2026-01-05.
func seedSubject(f *serviceFixture) {
	subject := sampleSubject()
	subject.ID = 1
	f.store.putSubject(subject)
	f.store.putEnrollment(models.Enrollment{AttendingID: 10, SubjectID: 1, CourseID: 5, StartDate: day(2026, 1, 5), EndDate: day(2026, 7, 5)})
	f.store.putEvent(models.StatusEvent{ID: 50, AttendingID: 10, Status: models.StatusApplied, StartDate: day(2026, 1, 5)})
}

func editPayload(events ...models.StatusEvent) models.SubjectDetail {
	subject := sampleSubject()
	subject.Remark = "prefers evenings"
	return models.SubjectDetail{
		Subject: subject,
		CourseDetails: []models.CourseDetail{{
			Enrollment:    models.Enrollment{AttendingID: 10, SubjectID: 1, CourseID: 5},
			StatusHistory: events,
		}},
	}
}

func openCount(events []models.StatusEvent) int {
	n := 0
	for _, e := range events {
		if e.Open() {
			n++
		}
	}
	return n
}

func TestEditMissingStatusHistoryFailsWithoutWrites(t *testing.T) {
	f := newServiceFixture()
	subject := sampleSubject()
	subject.ID = 1
	f.store.putSubject(subject)
	f.store.putEnrollment(models.Enrollment{AttendingID: 10, SubjectID: 1, CourseID: 5})

	_, err := f.service.Edit(context.Background(), 1, editPayload(models.StatusEvent{Status: models.StatusConfirmed, StartDate: day(2026, 2, 1)}))
	require.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.Equal(t, "status history not found", appErrors.FromError(err).Message)
	assert.Zero(t, f.store.writes)
}

func TestEditMissingSubjectOrEnrollments(t *testing.T) {
	f := newServiceFixture()
	_, err := f.service.Edit(context.Background(), 1, editPayload())
	require.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.Equal(t, "subject not found", appErrors.FromError(err).Message)

	subject := sampleSubject()
	subject.ID = 1
	f.store.putSubject(subject)
	_, err = f.service.Edit(context.Background(), 1, editPayload())
	require.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.Equal(t, "enrollments not found", appErrors.FromError(err).Message)
	assert.Zero(t, f.store.writes)
}

func TestEditForeignEnrollmentFailsBeforeWrites(t *testing.T) {
	f := newServiceFixture()
	seedSubject(f)
	payload := editPayload()
	payload.CourseDetails[0].Enrollment.AttendingID = 999

	_, err := f.service.Edit(context.Background(), 1, payload)
	require.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.Zero(t, f.store.writes)
}

func TestEditNewStatusClosesPreviousInterval(t *testing.T) {
	f := newServiceFixture()
	seedSubject(f)

	outcome, err := f.service.Edit(context.Background(), 1, editPayload(
		models.StatusEvent{Status: models.StatusConfirmed, StartDate: day(2026, 2, 10), ChangeReason: "paid"},
	))
	require.NoError(t, err)
	assert.Equal(t, int64(1), outcome.SubjectRows)
	assert.Equal(t, int64(1), outcome.EnrollmentRows)
	assert.Equal(t, int64(1), outcome.StatusRows)
	assert.Equal(t, int64(1), outcome.ClosedIntervals)

	timeline := f.store.timeline(10)
	require.Len(t, timeline, 2)
	assert.Equal(t, 1, openCount(timeline))
	assert.Equal(t, models.StatusConfirmed, timeline[1].Status)
	assert.True(t, timeline[1].Open())
	require.NotNil(t, timeline[0].EndDate)
	assert.Equal(t, day(2026, 2, 9), *timeline[0].EndDate)
	assert.Equal(t, "prefers evenings", f.store.subjects[1].Remark)
}

func TestEditReplayInsertsThenUpdates(t *testing.T) {
	f := newServiceFixture()
	seedSubject(f)
	event := models.StatusEvent{Status: models.StatusConfirmed, StartDate: day(2026, 2, 10), ChangeReason: "paid"}

	_, err := f.service.Edit(context.Background(), 1, editPayload(event))
	require.NoError(t, err)

	event.ChangeReason = "paid by transfer"
	outcome, err := f.service.Edit(context.Background(), 1, editPayload(event))
	require.NoError(t, err)
	assert.Equal(t, int64(1), outcome.StatusRows)
	assert.Zero(t, outcome.ClosedIntervals)

	timeline := f.store.timeline(10)
	require.Len(t, timeline, 2)
	assert.Equal(t, "paid by transfer", timeline[1].ChangeReason)
	assert.Equal(t, 1, openCount(timeline))
}

func TestEditInsertRaceFallsBackToUpdate(t *testing.T) {
	f := newServiceFixture()
	seedSubject(f)
	f.store.hideNextKeyLookup = true

	outcome, err := f.service.Edit(context.Background(), 1, editPayload(
		models.StatusEvent{Status: models.StatusApplied, StartDate: day(2026, 1, 5), ChangeReason: "corrected"},
	))
	require.NoError(t, err)
	assert.Equal(t, int64(1), outcome.StatusRows)
	assert.Zero(t, outcome.ClosedIntervals)
	timeline := f.store.timeline(10)
	require.Len(t, timeline, 1)
	assert.Equal(t, "corrected", timeline[0].ChangeReason)
}

func TestEditSeveralNewIntervalsKeepsLatestOpen(t *testing.T) {
	f := newServiceFixture()
	seedSubject(f)

	_, err := f.service.Edit(context.Background(), 1, editPayload(
		models.StatusEvent{Status: models.StatusConfirmed, StartDate: day(2026, 2, 10)},
		models.StatusEvent{Status: models.StatusInProgress, StartDate: day(2026, 3, 1)},
	))
	require.NoError(t, err)

	timeline := f.store.timeline(10)
	require.Len(t, timeline, 3)
	assert.Equal(t, 1, openCount(timeline))
	assert.True(t, timeline[2].Open())
	assert.Equal(t, models.StatusInProgress, timeline[2].Status)
	assert.Equal(t, day(2026, 2, 9), *timeline[0].EndDate)
	assert.Equal(t, day(2026, 2, 28), *timeline[1].EndDate)
}

func TestEditBackdatedIntervalIsClosedByCurrentOne(t *testing.T) {
	f := newServiceFixture()
	seedSubject(f)

	outcome, err := f.service.Edit(context.Background(), 1, editPayload(
		models.StatusEvent{Status: models.StatusConfirmed, StartDate: day(2026, 1, 1)},
	))
	require.NoError(t, err)
	assert.Equal(t, int64(1), outcome.ClosedIntervals)

	timeline := f.store.timeline(10)
	require.Len(t, timeline, 2)
	assert.Equal(t, 1, openCount(timeline))
	assert.Equal(t, day(2026, 1, 4), *timeline[0].EndDate)
	assert.True(t, f.store.events[50].Open())
}

func TestEditClosedBackfillLeavesCurrentIntervalOpen(t *testing.T) {
	f := newServiceFixture()
	seedSubject(f)
	end := day(2025, 12, 31)

	outcome, err := f.service.Edit(context.Background(), 1, editPayload(
		models.StatusEvent{Status: models.StatusCancelled, StartDate: day(2025, 12, 1), EndDate: &end},
	))
	require.NoError(t, err)
	assert.Zero(t, outcome.ClosedIntervals)
	assert.True(t, f.store.events[50].Open())
}

func TestEditNothingUpdatedFails(t *testing.T) {
	f := newServiceFixture()
	seedSubject(f)
	f.store.zeroSubjectUpdate = true
	payload := editPayload()
	payload.CourseDetails = nil

	_, err := f.service.Edit(context.Background(), 1, payload)
	require.ErrorIs(t, err, appErrors.ErrProcessFailed)
	assert.Equal(t, "nothing updated", appErrors.FromError(err).Message)
}

func TestEditSubjectOnlySucceeds(t *testing.T) {
	f := newServiceFixture()
	seedSubject(f)
	f.store.zeroEnrollUpdate = true

	outcome, err := f.service.Edit(context.Background(), 1, editPayload())
	require.NoError(t, err)
	assert.Equal(t, models.EditOutcome{SubjectRows: 1}, outcome)
}

func TestEditChangesCourseOnly(t *testing.T) {
	f := newServiceFixture()
	seedSubject(f)
	payload := editPayload()
	payload.CourseDetails[0].Enrollment.CourseID = 3
	payload.CourseDetails[0].Enrollment.StartDate = day(2030, 1, 1)

	_, err := f.service.Edit(context.Background(), 1, payload)
	require.NoError(t, err)
	stored := f.store.enrollments[10]
	assert.Equal(t, int64(3), stored.CourseID)
	assert.Equal(t, day(2026, 1, 5), stored.StartDate)
}

func TestEditKeepsDeletedFlag(t *testing.T) {
	f := newServiceFixture()
	seedSubject(f)
	subject := f.store.subjects[1]
	subject.Deleted = true
	f.store.putSubject(subject)

	_, err := f.service.Edit(context.Background(), 1, editPayload())
	require.NoError(t, err)
	assert.True(t, f.store.subjects[1].Deleted)
}

func TestEditRequiresStatusStartDate(t *testing.T) {
	f := newServiceFixture()
	seedSubject(f)

	_, err := f.service.Edit(context.Background(), 1, editPayload(models.StatusEvent{Status: models.StatusConfirmed}))
	require.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Zero(t, f.store.writes)
}

func TestEditRecordsStatusWritesAfterCommit(t *testing.T) {
	f := newServiceFixture()
	seedSubject(f)

	_, err := f.service.Edit(context.Background(), 1, editPayload(
		models.StatusEvent{Status: models.StatusApplied, StartDate: day(2026, 1, 5), ChangeReason: "walk-in"},
		models.StatusEvent{Status: models.StatusConfirmed, StartDate: day(2026, 2, 10)},
	))
	require.NoError(t, err)

	snap := f.service.metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.StatusInserts)
	assert.Equal(t, uint64(1), snap.StatusUpdates)
	assert.Equal(t, uint64(1), snap.StatusCloses)
}

func TestEditRolledBackRecordsNoStatusWrites(t *testing.T) {
	f := newServiceFixture()
	seedSubject(f)
	f.store.failClose = true

	_, err := f.service.Edit(context.Background(), 1, editPayload(
		models.StatusEvent{Status: models.StatusConfirmed, StartDate: day(2026, 2, 10)},
	))
	require.ErrorIs(t, err, appErrors.ErrInternal)

	snap := f.service.metrics.Snapshot()
	assert.Zero(t, snap.StatusInserts)
	assert.Zero(t, snap.StatusCloses)
	assert.Equal(t, uint64(1), snap.Edits)
	assert.Len(t, f.store.timeline(10), 1)
	assert.True(t, f.store.events[50].Open())
}
