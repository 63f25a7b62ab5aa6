package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-api/internal/models"
	appErrors "github.com/noah-isme/enrollment-api/pkg/errors"
	"github.com/noah-isme/enrollment-api/pkg/export"
)

// Supported roster formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

const exportDateLayout = "2006-01-02"

type subjectLister interface {
	List(ctx context.Context, form models.SubjectSearchForm) ([]models.SubjectDetail, error)
}

type renderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
}

// ExportFile is a rendered roster ready to be sent to the client.
type ExportFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService renders subject rosters.
type ExportService struct {
	subjects subjectLister
	csv      renderer
	pdf      renderer
	logger   *zap.Logger
	now      func() time.Time
}

// NewExportService constructs ExportService.
func NewExportService(subjects subjectLister, csv, pdf renderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{subjects: subjects, csv: csv, pdf: pdf, logger: logger, now: time.Now}
}

// Roster renders the subjects matching form, one row per status event.
func (s *ExportService) Roster(ctx context.Context, form models.SubjectSearchForm, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	var r renderer
	switch format {
	case ExportFormatCSV:
		r = s.csv
	case ExportFormatPDF:
		r = s.pdf
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	details, err := s.subjects.List(ctx, form)
	if err != nil {
		return nil, err
	}
	generated := s.now().UTC()
	payload, err := r.Render(rosterDataset(details, generated))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}

	s.logger.Info("roster exported", zap.String("format", format), zap.Int("subjects", len(details)))
	return &ExportFile{
		Filename:    fmt.Sprintf("roster-%s.%s", generated.Format("20060102-150405"), format),
		ContentType: r.ContentType(),
		Payload:     payload,
	}, nil
}

func rosterDataset(details []models.SubjectDetail, generated time.Time) export.Dataset {
	data := export.Dataset{
		Title:   "Enrollment roster " + generated.Format(exportDateLayout),
		Headers: rosterHeaders,
	}
	for _, detail := range details {
		subject := detail.Subject
		base := []string{strconv.FormatInt(subject.ID, 10), subject.FullName, subject.Email, subject.Area}
		if len(detail.CourseDetails) == 0 {
			data.Rows = append(data.Rows, rosterRow(base))
			continue
		}
		for _, course := range detail.CourseDetails {
			enrollment := course.Enrollment
			enrollmentCols := []string{
				strconv.FormatInt(enrollment.AttendingID, 10),
				strconv.FormatInt(enrollment.CourseID, 10),
				enrollment.StartDate.Format(exportDateLayout),
				enrollment.EndDate.Format(exportDateLayout),
			}
			if len(course.StatusHistory) == 0 {
				data.Rows = append(data.Rows, rosterRow(base, enrollmentCols))
				continue
			}
			for _, event := range course.StatusHistory {
				ended := ""
				if event.EndDate != nil {
					ended = event.EndDate.Format(exportDateLayout)
				}
				data.Rows = append(data.Rows, rosterRow(base, enrollmentCols, []string{
					event.Status.String(), event.StartDate.Format(exportDateLayout), ended, event.ChangeReason,
				}))
			}
		}
	}
	return data
}

var rosterHeaders = []string{"Subject ID", "Name", "Email", "Area", "Enrollment", "Course", "Enrolled", "Until", "Status", "Since", "Ended", "Reason"}

// rosterRow keys the concatenated values by header; trailing columns stay empty.
func rosterRow(parts ...[]string) map[string]string {
	row := make(map[string]string, len(rosterHeaders))
	i := 0
	for _, part := range parts {
		for _, value := range part {
			row[rosterHeaders[i]] = value
			i++
		}
	}
	return row
}
