package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/enrollment-api/internal/models"
	appErrors "github.com/noah-isme/enrollment-api/pkg/errors"
)

type subjectRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Subject, error)
	List(ctx context.Context, criteria models.SubjectCriteria) ([]models.Subject, error)
	Create(ctx context.Context, subject models.Subject) (models.Subject, int64, error)
	Update(ctx context.Context, subject models.Subject) (int64, error)
	SetDeleted(ctx context.Context, id int64, deleted bool) (int64, error)
}

type enrollmentRepository interface {
	ListBySubject(ctx context.Context, subjectID int64) ([]models.Enrollment, error)
	LockBySubject(ctx context.Context, subjectID int64) ([]models.Enrollment, error)
	List(ctx context.Context, criteria models.SubjectCriteria) ([]models.Enrollment, error)
	Create(ctx context.Context, enrollment models.Enrollment) (models.Enrollment, int64, error)
	UpdateCourse(ctx context.Context, enrollment models.Enrollment) (int64, error)
}

type statusRepository interface {
	ListByEnrollment(ctx context.Context, attendingID int64) ([]models.StatusEvent, error)
	List(ctx context.Context, criteria models.SubjectCriteria) ([]models.StatusEvent, error)
	FindByNaturalKey(ctx context.Context, attendingID int64, status models.Status, startDate time.Time) (*models.StatusEvent, error)
	Create(ctx context.Context, event models.StatusEvent) (models.StatusEvent, int64, error)
	Update(ctx context.Context, event models.StatusEvent) (int64, error)
	CloseOpenInterval(ctx context.Context, attendingID, keepID int64, newStart time.Time) (int64, error)
}

type courseCatalog interface {
	Duration(ctx context.Context, courseID int64) (int, error)
}

type transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SubjectService owns the subject aggregate: it assembles nested views for
// reads, cascades new aggregates into storage and reconciles edits.
type SubjectService struct {
	subjects    subjectRepository
	enrollments enrollmentRepository
	statuses    statusRepository
	catalog     courseCatalog
	tx          transactor
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewSubjectService constructs SubjectService.
func NewSubjectService(subjects subjectRepository, enrollments enrollmentRepository, statuses statusRepository, catalog courseCatalog, tx transactor, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectService{
		subjects:    subjects,
		enrollments: enrollments,
		statuses:    statuses,
		catalog:     catalog,
		tx:          tx,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		now:         time.Now,
	}
}

// List returns the aggregates of subjects matching the search form.
func (s *SubjectService) List(ctx context.Context, form models.SubjectSearchForm) ([]models.SubjectDetail, error) {
	criteria, err := TranslateSearch(form, s.now())
	if err != nil {
		return nil, err
	}

	var (
		subjects    []models.Subject
		enrollments []models.Enrollment
		events      []models.StatusEvent
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		subjects, err = s.subjects.List(gctx, criteria)
		return err
	})
	g.Go(func() error {
		var err error
		enrollments, err = s.enrollments.List(gctx, criteria)
		return err
	})
	g.Go(func() error {
		var err error
		events, err = s.statuses.List(gctx, criteria)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}

	return GroupSubjectDetails(subjects, GroupCourseDetails(enrollments, events)), nil
}

// Get returns one subject with its enrollments and their full status history.
func (s *SubjectService) Get(ctx context.Context, id int64) (*models.SubjectDetail, error) {
	subject, err := s.findSubject(ctx, id)
	if err != nil {
		return nil, err
	}
	enrollments, err := s.enrollments.ListBySubject(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}
	events, err := s.historyOf(ctx, enrollments)
	if err != nil {
		return nil, err
	}
	details := GroupSubjectDetails([]models.Subject{*subject}, GroupCourseDetails(enrollments, events))
	return &details[0], nil
}

// SetDeleted marks a subject as cancelled or restores it.
func (s *SubjectService) SetDeleted(ctx context.Context, id int64, deleted bool) error {
	if _, err := s.findSubject(ctx, id); err != nil {
		return err
	}
	rows, err := s.subjects.SetDeleted(ctx, id, deleted)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subject")
	}
	if rows == 0 {
		return appErrors.Clone(appErrors.ErrProcessFailed, "subject not updated")
	}
	s.logger.Info("subject deletion flag changed", zap.Int64("subject_id", id), zap.Bool("deleted", deleted))
	return nil
}

func (s *SubjectService) findSubject(ctx context.Context, id int64) (*models.Subject, error) {
	subject, err := s.subjects.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	return subject, nil
}

// historyOf concatenates the timelines of the given enrollments.
func (s *SubjectService) historyOf(ctx context.Context, enrollments []models.Enrollment) ([]models.StatusEvent, error) {
	events := []models.StatusEvent{}
	for _, enrollment := range enrollments {
		history, err := s.statuses.ListByEnrollment(ctx, enrollment.AttendingID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load status history")
		}
		events = append(events, history...)
	}
	return events, nil
}

// validateStatuses rejects unknown status ids in a submitted aggregate.
func validateStatuses(detail models.SubjectDetail, allowZero bool) error {
	for _, course := range detail.CourseDetails {
		for _, event := range course.StatusHistory {
			if event.Status == 0 && allowZero {
				continue
			}
			if !event.Status.Valid() {
				return appErrors.Clone(appErrors.ErrValidation, "unknown status "+event.Status.String())
			}
		}
	}
	return nil
}
