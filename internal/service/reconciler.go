package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-api/internal/models"
	appErrors "github.com/noah-isme/enrollment-api/pkg/errors"
)

// Edit merges a submitted aggregate into the stored one inside a single
// transaction. The subject, its enrollments and their status history must all
// exist. Status events are upserted on their natural key; every newly opened
// interval closes the interval it supersedes. The edit fails with
// ProcessFailed only when no subject, enrollment or status row changed.
// Status write metrics are recorded only once the transaction commits.
func (s *SubjectService) Edit(ctx context.Context, subjectID int64, detail models.SubjectDetail) (models.EditOutcome, error) {
	if err := s.validateEdit(detail); err != nil {
		return models.EditOutcome{}, err
	}

	var (
		outcome           models.EditOutcome
		inserted, updated int64
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		outcome = models.EditOutcome{}
		inserted, updated = 0, 0

		current, err := s.findSubject(ctx, subjectID)
		if err != nil {
			return err
		}
		// Row locks serialize concurrent edits touching the same timelines.
		enrollments, err := s.enrollments.LockBySubject(ctx, subjectID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
		}
		if len(enrollments) == 0 {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollments not found")
		}
		history, err := s.historyOf(ctx, enrollments)
		if err != nil {
			return err
		}
		if len(history) == 0 {
			return appErrors.Clone(appErrors.ErrNotFound, "status history not found")
		}

		owned := make(map[int64]models.Enrollment, len(enrollments))
		for _, enrollment := range enrollments {
			owned[enrollment.AttendingID] = enrollment
		}
		for _, course := range detail.CourseDetails {
			if _, ok := owned[course.Enrollment.AttendingID]; !ok {
				return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("enrollment %d not found", course.Enrollment.AttendingID))
			}
		}

		subject := detail.Subject
		subject.ID = subjectID
		subject.Deleted = current.Deleted
		if outcome.SubjectRows, err = s.subjects.Update(ctx, subject); err != nil {
			return wrapWriteError(err, "failed to update subject")
		}

		opened := make(map[int64][]models.StatusEvent)
		endedByEdit := make(map[int64]bool)
		for _, course := range detail.CourseDetails {
			enrollment := owned[course.Enrollment.AttendingID]
			enrollment.CourseID = course.Enrollment.CourseID
			rows, err := s.enrollments.UpdateCourse(ctx, enrollment)
			if err != nil {
				return wrapWriteError(err, "failed to update enrollment")
			}
			outcome.EnrollmentRows += rows

			for _, submitted := range course.StatusHistory {
				event := submitted
				event.AttendingID = enrollment.AttendingID
				event.StartDate = dateOnly(event.StartDate)
				if event.EndDate != nil {
					end := dateOnly(*event.EndDate)
					event.EndDate = &end
				}

				written, rows, isInsert, err := s.upsertStatus(ctx, event)
				if err != nil {
					return err
				}
				outcome.StatusRows += rows
				if isInsert {
					inserted += rows
				} else {
					updated += rows
				}
				switch {
				case isInsert && written.Open():
					opened[written.AttendingID] = append(opened[written.AttendingID], written)
				case !isInsert && written.EndDate != nil:
					endedByEdit[written.ID] = true
				}
			}
		}

		closed, err := s.closeSuperseded(ctx, history, opened, endedByEdit)
		if err != nil {
			return err
		}
		outcome.ClosedIntervals = closed

		if !outcome.Changed() {
			return appErrors.Clone(appErrors.ErrProcessFailed, "nothing updated")
		}
		return nil
	})
	s.metrics.RecordEdit(err)
	if err != nil {
		s.logger.Warn("subject edit rejected", zap.Int64("subject_id", subjectID), zap.Error(err))
		return models.EditOutcome{}, err
	}
	s.metrics.RecordStatusWrite(StatusWriteInsert, inserted)
	s.metrics.RecordStatusWrite(StatusWriteUpdate, updated)
	s.metrics.RecordStatusWrite(StatusWriteClose, outcome.ClosedIntervals)

	s.logger.Info("subject edited",
		zap.Int64("subject_id", subjectID),
		zap.Int64("subject_rows", outcome.SubjectRows),
		zap.Int64("enrollment_rows", outcome.EnrollmentRows),
		zap.Int64("status_rows", outcome.StatusRows),
		zap.Int64("closed_intervals", outcome.ClosedIntervals),
	)
	return outcome, nil
}

// upsertStatus inserts the event when its natural key is new and updates the
// stored row otherwise. inserted reports which branch wrote.
func (s *SubjectService) upsertStatus(ctx context.Context, event models.StatusEvent) (written models.StatusEvent, rows int64, inserted bool, err error) {
	existing, err := s.statuses.FindByNaturalKey(ctx, event.AttendingID, event.Status, event.StartDate)
	if err != nil {
		return models.StatusEvent{}, 0, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load status event")
	}

	if existing == nil {
		created, rows, err := s.statuses.Create(ctx, event)
		if err == nil {
			return created, rows, true, nil
		}
		if !errors.Is(err, appErrors.ErrDuplicateKey) {
			return models.StatusEvent{}, 0, false, wrapWriteError(err, "failed to insert status event")
		}
		// Another writer inserted the same key after the lookup.
		s.logger.Debug("status event appeared concurrently, updating instead",
			zap.Int64("attending_id", event.AttendingID),
			zap.Stringer("status", event.Status),
		)
		existing, err = s.statuses.FindByNaturalKey(ctx, event.AttendingID, event.Status, event.StartDate)
		if err != nil {
			return models.StatusEvent{}, 0, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load status event")
		}
		if existing == nil {
			return models.StatusEvent{}, 0, false, appErrors.Clone(appErrors.ErrInternal, "status event vanished during upsert")
		}
	}

	event.ID = existing.ID
	event.CreatedAt = existing.CreatedAt
	rows, err = s.statuses.Update(ctx, event)
	if err != nil {
		return models.StatusEvent{}, 0, false, wrapWriteError(err, "failed to update status event")
	}
	return event, rows, false, nil
}

// closeSuperseded restores a single open interval on every enrollment that
// gained one. The open intervals stored before the edit and the newly opened
// ones are ordered by start date; each is closed the day before its successor
// starts and only the last stays open. A backdated insert is therefore closed
// by the interval that was already current, which stays open.
func (s *SubjectService) closeSuperseded(ctx context.Context, before []models.StatusEvent, opened map[int64][]models.StatusEvent, endedByEdit map[int64]bool) (int64, error) {
	ids := make([]int64, 0, len(opened))
	for id := range opened {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var closed int64
	for _, attendingID := range ids {
		candidates := append([]models.StatusEvent{}, opened[attendingID]...)
		for _, event := range before {
			if event.AttendingID == attendingID && event.Open() && !endedByEdit[event.ID] {
				candidates = append(candidates, event)
			}
		}
		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].StartDate.Equal(candidates[j].StartDate) {
				return candidates[i].ID < candidates[j].ID
			}
			return candidates[i].StartDate.Before(candidates[j].StartDate)
		})

		for _, successor := range candidates[1:] {
			rows, err := s.statuses.CloseOpenInterval(ctx, attendingID, successor.ID, successor.StartDate)
			if err != nil {
				return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close status interval")
			}
			closed += rows
		}
	}
	return closed, nil
}

func (s *SubjectService) validateEdit(detail models.SubjectDetail) error {
	if err := s.validator.Struct(detail); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid edit payload")
	}
	if err := validateStatuses(detail, false); err != nil {
		return err
	}
	for _, course := range detail.CourseDetails {
		if course.Enrollment.AttendingID <= 0 {
			return appErrors.Clone(appErrors.ErrValidation, "enrollment id is required")
		}
		for _, event := range course.StatusHistory {
			if event.StartDate.IsZero() {
				return appErrors.Clone(appErrors.ErrValidation, "status start date is required")
			}
			if event.EndDate != nil && event.EndDate.Before(event.StartDate) {
				return appErrors.Clone(appErrors.ErrValidation, "status end date precedes its start date")
			}
		}
	}
	return nil
}
