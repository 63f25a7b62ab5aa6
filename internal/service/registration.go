package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-api/internal/models"
	appErrors "github.com/noah-isme/enrollment-api/pkg/errors"
)

// Register writes a new aggregate top-down inside one transaction. Each level
// is written with the identifier generated for its parent; the caller's
// aggregate is left untouched and the identified copy is returned.
func (s *SubjectService) Register(ctx context.Context, detail models.SubjectDetail) (*models.SubjectDetail, error) {
	if err := s.validateRegistration(detail); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var (
		registered models.SubjectDetail
		statusRows int64
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		subject := detail.Subject
		subject.ID = 0
		subject.Deleted = false
		created, rows, err := s.subjects.Create(ctx, subject)
		if err != nil {
			return wrapWriteError(err, "failed to register subject")
		}
		if rows == 0 {
			return appErrors.Clone(appErrors.ErrProcessFailed, "subject registration failed")
		}

		var enrollmentRows int64
		statusRows = 0
		courses := make([]models.CourseDetail, 0, len(detail.CourseDetails))
		for _, course := range detail.CourseDetails {
			enrollment, written, err := s.registerEnrollment(ctx, created.ID, course.Enrollment, now)
			if err != nil {
				return err
			}
			enrollmentRows += written

			history := make([]models.StatusEvent, 0, len(course.StatusHistory))
			for _, submitted := range course.StatusHistory {
				event, written, err := s.registerStatus(ctx, enrollment.AttendingID, submitted, now)
				if err != nil {
					return err
				}
				if written == 0 {
					continue
				}
				statusRows += written
				history = append(history, event)
			}
			courses = append(courses, models.CourseDetail{Enrollment: enrollment, StatusHistory: history})
		}

		if enrollmentRows == 0 {
			return appErrors.Clone(appErrors.ErrProcessFailed, "enrollment registration failed")
		}
		if statusRows == 0 {
			return appErrors.Clone(appErrors.ErrProcessFailed, "status registration failed")
		}
		registered = models.SubjectDetail{Subject: created, CourseDetails: courses}
		return nil
	})
	s.metrics.RecordRegistration(err)
	if err != nil {
		s.logger.Warn("subject registration rejected", zap.String("email", detail.Subject.Email), zap.Error(err))
		return nil, err
	}
	s.metrics.RecordStatusWrite(StatusWriteInsert, statusRows)

	s.logger.Info("subject registered",
		zap.Int64("subject_id", registered.Subject.ID),
		zap.Int("enrollments", len(registered.CourseDetails)),
	)
	return &registered, nil
}

// registerEnrollment builds the enrollment for subjectID, spanning the course
// duration from now, and writes it.
func (s *SubjectService) registerEnrollment(ctx context.Context, subjectID int64, submitted models.Enrollment, now time.Time) (models.Enrollment, int64, error) {
	months, err := s.catalog.Duration(ctx, submitted.CourseID)
	if err != nil {
		return models.Enrollment{}, 0, err
	}
	enrollment := models.Enrollment{
		SubjectID: subjectID,
		CourseID:  submitted.CourseID,
		StartDate: now,
		EndDate:   now.AddDate(0, months, 0),
	}
	created, rows, err := s.enrollments.Create(ctx, enrollment)
	if err != nil {
		return models.Enrollment{}, 0, wrapWriteError(err, "failed to register enrollment")
	}
	return created, rows, nil
}

// registerStatus writes one submitted event under attendingID. Missing status
// and start date default to APPLIED today. A repeated natural key within the
// same submission is skipped.
func (s *SubjectService) registerStatus(ctx context.Context, attendingID int64, submitted models.StatusEvent, now time.Time) (models.StatusEvent, int64, error) {
	event := models.StatusEvent{
		AttendingID:  attendingID,
		Status:       submitted.Status,
		StartDate:    submitted.StartDate,
		EndDate:      submitted.EndDate,
		ChangeReason: submitted.ChangeReason,
	}
	if event.Status == 0 {
		event.Status = models.StatusApplied
	}
	if event.StartDate.IsZero() {
		event.StartDate = now
	}
	event.StartDate = dateOnly(event.StartDate)
	if event.EndDate != nil {
		end := dateOnly(*event.EndDate)
		event.EndDate = &end
	}

	created, rows, err := s.statuses.Create(ctx, event)
	if err != nil {
		if errors.Is(err, appErrors.ErrDuplicateKey) {
			s.logger.Debug("skipping repeated status event",
				zap.Int64("attending_id", attendingID),
				zap.Stringer("status", event.Status),
			)
			return event, 0, nil
		}
		return models.StatusEvent{}, 0, wrapWriteError(err, "failed to register status event")
	}
	return created, rows, nil
}

func (s *SubjectService) validateRegistration(detail models.SubjectDetail) error {
	if err := s.validator.Struct(detail); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}
	if err := validateStatuses(detail, true); err != nil {
		return err
	}
	for _, course := range detail.CourseDetails {
		open := 0
		for _, event := range course.StatusHistory {
			if event.EndDate == nil {
				open++
			}
			if event.EndDate != nil && !event.StartDate.IsZero() && event.EndDate.Before(event.StartDate) {
				return appErrors.Clone(appErrors.ErrValidation, "status end date precedes its start date")
			}
		}
		if open > 1 {
			return appErrors.Clone(appErrors.ErrValidation, "an enrollment can have only one open status")
		}
	}
	return nil
}
