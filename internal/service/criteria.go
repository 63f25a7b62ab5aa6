package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/enrollment-api/internal/models"
	appErrors "github.com/noah-isme/enrollment-api/pkg/errors"
)

// TranslateSearch converts user-facing search parameters into storage
// predicates. Ages are relative to today, so they become a birth-date range
// containing everyone currently between MinAge and MaxAge years old inclusive.
func TranslateSearch(form models.SubjectSearchForm, today time.Time) (models.SubjectCriteria, error) {
	if form.MinAge != nil && *form.MinAge < 0 {
		return models.SubjectCriteria{}, appErrors.Clone(appErrors.ErrValidation, "minAge must not be negative")
	}
	if form.MaxAge != nil && *form.MaxAge < 0 {
		return models.SubjectCriteria{}, appErrors.Clone(appErrors.ErrValidation, "maxAge must not be negative")
	}
	if form.MinAge != nil && form.MaxAge != nil && *form.MinAge > *form.MaxAge {
		return models.SubjectCriteria{}, appErrors.Clone(appErrors.ErrValidation, "minAge must not exceed maxAge")
	}
	if form.StartDate != nil && form.EndDate != nil && form.EndDate.Before(*form.StartDate) {
		return models.SubjectCriteria{}, appErrors.Clone(appErrors.ErrValidation, "endDate must not precede startDate")
	}

	statuses := make([]models.Status, 0, len(form.Statuses))
	for _, raw := range form.Statuses {
		status, err := models.ParseStatus(raw)
		if err != nil {
			return models.SubjectCriteria{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("invalid status %q", raw))
		}
		statuses = append(statuses, status)
	}

	criteria := models.SubjectCriteria{
		Name:           strings.TrimSpace(form.Name),
		Area:           strings.TrimSpace(form.Area),
		Email:          strings.TrimSpace(form.Email),
		Gender:         strings.TrimSpace(form.Gender),
		Remark:         strings.TrimSpace(form.Remark),
		CourseID:       form.CourseID,
		Category:       strings.TrimSpace(form.Category),
		StartDate:      form.StartDate,
		EndDate:        form.EndDate,
		Statuses:       statuses,
		IncludeDeleted: form.IncludeDeleted,
	}

	day := dateOnly(today)
	if form.MaxAge != nil {
		// The oldest member turns MaxAge+1 tomorrow.
		start := day.AddDate(-(*form.MaxAge + 1), 0, 1)
		criteria.StartBirthDate = &start
	}
	if form.MinAge != nil {
		end := day.AddDate(-*form.MinAge, 0, 0)
		criteria.EndBirthDate = &end
	}
	return criteria, nil
}

// dateOnly truncates t to midnight UTC of its calendar day.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
