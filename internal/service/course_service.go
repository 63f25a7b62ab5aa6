package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-api/internal/models"
	appErrors "github.com/noah-isme/enrollment-api/pkg/errors"
)

const courseCacheKeyPrefix = "catalog:course:"

type courseRepository interface {
	List(ctx context.Context) ([]models.Course, error)
	FindByID(ctx context.Context, id int64) (*models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) (int64, error)
	Delete(ctx context.Context, id int64) (int64, error)
}

type cacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CourseService manages the course catalog and answers duration lookups for registrations.
type CourseService struct {
	repo      courseRepository
	cache     cacheStore
	metrics   *MetricsService
	ttl       time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs CourseService. cache may be nil.
func NewCourseService(repo courseRepository, cache cacheStore, metrics *MetricsService, ttl time.Duration, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CourseService{repo: repo, cache: cache, metrics: metrics, ttl: ttl, validator: validate, logger: logger}
}

// List returns the whole catalog.
func (s *CourseService) List(ctx context.Context) ([]models.Course, error) {
	courses, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, nil
}

// Get returns a course by id.
func (s *CourseService) Get(ctx context.Context, id int64) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// Create adds a course to the catalog.
func (s *CourseService) Create(ctx context.Context, course models.Course) (*models.Course, error) {
	if err := s.validator.Struct(course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course.ID = 0
	if err := s.repo.Create(ctx, &course); err != nil {
		return nil, wrapWriteError(err, "failed to create course")
	}
	return &course, nil
}

// Update replaces a course and drops its cached duration.
func (s *CourseService) Update(ctx context.Context, id int64, course models.Course) (*models.Course, error) {
	if err := s.validator.Struct(course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	course.ID = id
	course.CreatedAt = existing.CreatedAt
	rows, err := s.repo.Update(ctx, &course)
	if err != nil {
		return nil, wrapWriteError(err, "failed to update course")
	}
	if rows == 0 {
		return nil, appErrors.Clone(appErrors.ErrProcessFailed, "course not updated")
	}
	s.invalidate(ctx, id)
	return &course, nil
}

// Delete removes a course from the catalog.
func (s *CourseService) Delete(ctx context.Context, id int64) error {
	rows, err := s.repo.Delete(ctx, id)
	if err != nil {
		return wrapWriteError(err, "failed to delete course")
	}
	if rows == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	s.invalidate(ctx, id)
	return nil
}

// Duration returns the course length in months. Unknown courses last zero
// months so a registration referencing them still goes through.
func (s *CourseService) Duration(ctx context.Context, courseID int64) (int, error) {
	key := fmt.Sprintf("%s%d", courseCacheKeyPrefix, courseID)
	if s.cache != nil {
		start := time.Now()
		var months int
		err := s.cache.Get(ctx, key, &months)
		s.metrics.RecordCacheOperation(err == nil, time.Since(start))
		if err == nil {
			return months, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("course cache read failed", zap.Int64("course_id", courseID), zap.Error(err))
		}
	}

	course, err := s.repo.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("unknown course, using zero duration", zap.Int64("course_id", courseID))
			return 0, nil
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course duration")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, course.DurationMonths, s.ttl); err != nil {
			s.logger.Warn("course cache write failed", zap.Int64("course_id", courseID), zap.Error(err))
		}
	}
	return course.DurationMonths, nil
}

// ResetCache drops every cached course duration. Run at startup, since the
// catalog may have been changed while no instance was serving.
func (s *CourseService) ResetCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.DeleteByPattern(ctx, courseCacheKeyPrefix+"*"); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset course cache")
	}
	return nil
}

func (s *CourseService) invalidate(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, fmt.Sprintf("%s%d", courseCacheKeyPrefix, id)); err != nil {
		s.logger.Warn("course cache invalidation failed", zap.Int64("course_id", id), zap.Error(err))
	}
}

// wrapWriteError keeps typed errors raised by repositories and hides the rest.
func wrapWriteError(err error, message string) error {
	var typed *appErrors.Error
	if errors.As(err, &typed) {
		return typed
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
