package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enrollment-api/internal/models"
	"github.com/noah-isme/enrollment-api/internal/service"
	appErrors "github.com/noah-isme/enrollment-api/pkg/errors"
	"github.com/noah-isme/enrollment-api/pkg/response"
)

const queryDateLayout = "2006-01-02"

type subjectService interface {
	List(ctx context.Context, form models.SubjectSearchForm) ([]models.SubjectDetail, error)
	Get(ctx context.Context, id int64) (*models.SubjectDetail, error)
	Register(ctx context.Context, detail models.SubjectDetail) (*models.SubjectDetail, error)
	Edit(ctx context.Context, subjectID int64, detail models.SubjectDetail) (models.EditOutcome, error)
	SetDeleted(ctx context.Context, id int64, deleted bool) error
}

type rosterExporter interface {
	Roster(ctx context.Context, form models.SubjectSearchForm, format string) (*service.ExportFile, error)
}

// SubjectHandler handles subject aggregate endpoints.
type SubjectHandler struct {
	service  subjectService
	exporter rosterExporter
}

// NewSubjectHandler constructs a subject handler. exporter may be nil when exports are disabled.
func NewSubjectHandler(svc subjectService, exporter rosterExporter) *SubjectHandler {
	return &SubjectHandler{service: svc, exporter: exporter}
}

// List godoc
// @Summary List subjects with their enrollments and status history
// @Tags Subjects
// @Produce json
// @Param name query string false "Name fragment"
// @Param minAge query int false "Minimum age"
// @Param maxAge query int false "Maximum age"
// @Param area query string false "Area fragment"
// @Param email query string false "Email"
// @Param gender query string false "Gender"
// @Param remark query string false "Remark fragment"
// @Param courseId query int false "Course ID"
// @Param category query string false "Course category"
// @Param startDate query string false "Enrollment starts on or after (YYYY-MM-DD)"
// @Param endDate query string false "Enrollment ends on or before (YYYY-MM-DD)"
// @Param status query []string false "Current status names or ids"
// @Param includeDeleted query bool false "Include cancelled subjects"
// @Success 200 {object} response.Envelope
// @Router /subjects [get]
func (h *SubjectHandler) List(c *gin.Context) {
	form, err := parseSearchForm(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	details, err := h.service.List(c.Request.Context(), form)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, details, map[string]interface{}{"count": len(details)})
}

// Get godoc
// @Summary Get subject aggregate by id
// @Tags Subjects
// @Produce json
// @Param id path int true "Subject ID"
// @Success 200 {object} response.Envelope
// @Router /subjects/{id} [get]
func (h *SubjectHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	detail, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail)
}

// Register godoc
// @Summary Register a subject with enrollments and initial statuses
// @Tags Subjects
// @Accept json
// @Produce json
// @Param payload body models.SubjectDetail true "Subject aggregate"
// @Success 201 {object} response.Envelope
// @Router /subjects [post]
func (h *SubjectHandler) Register(c *gin.Context) {
	var req models.SubjectDetail
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	detail, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	location := strings.TrimSuffix(c.Request.URL.Path, "/") + "/" + strconv.FormatInt(detail.Subject.ID, 10)
	response.Created(c, location, detail)
}

// Edit godoc
// @Summary Reconcile a submitted subject aggregate with storage
// @Tags Subjects
// @Accept json
// @Produce json
// @Param id path int true "Subject ID"
// @Param payload body models.SubjectDetail true "Subject aggregate"
// @Success 200 {object} response.Envelope
// @Router /subjects/{id} [put]
func (h *SubjectHandler) Edit(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req models.SubjectDetail
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	outcome, err := h.service.Edit(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outcome)
}

// SetDeleted godoc
// @Summary Cancel or restore a subject
// @Tags Subjects
// @Accept json
// @Param id path int true "Subject ID"
// @Param payload body models.SetDeletedRequest true "Deletion flag"
// @Success 204
// @Router /subjects/{id} [patch]
func (h *SubjectHandler) SetDeleted(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req models.SetDeletedRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Deleted == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "deleted flag is required"))
		return
	}
	if err := h.service.SetDeleted(c.Request.Context(), id, *req.Deleted); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Export the subject roster
// @Tags Subjects
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /subjects/export [get]
func (h *SubjectHandler) Export(c *gin.Context) {
	if h.exporter == nil {
		response.Error(c, appErrors.New("EXPORT_DISABLED", http.StatusNotFound, "exports are disabled"))
		return
	}
	form, err := parseSearchForm(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.exporter.Roster(c.Request.Context(), form, c.DefaultQuery("format", service.ExportFormatCSV))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Payload)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid id"))
		return 0, false
	}
	return id, true
}

func parseSearchForm(c *gin.Context) (models.SubjectSearchForm, error) {
	form := models.SubjectSearchForm{
		Name:     c.Query("name"),
		Area:     c.Query("area"),
		Email:    c.Query("email"),
		Gender:   c.Query("gender"),
		Remark:   c.Query("remark"),
		Category: c.Query("category"),
	}
	var err error
	if form.MinAge, err = optionalInt(c, "minAge"); err != nil {
		return form, err
	}
	if form.MaxAge, err = optionalInt(c, "maxAge"); err != nil {
		return form, err
	}
	if raw := c.Query("courseId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return form, appErrors.Clone(appErrors.ErrValidation, "courseId must be a number")
		}
		form.CourseID = &id
	}
	if form.StartDate, err = optionalDate(c, "startDate"); err != nil {
		return form, err
	}
	if form.EndDate, err = optionalDate(c, "endDate"); err != nil {
		return form, err
	}
	for _, raw := range c.QueryArray("status") {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				form.Statuses = append(form.Statuses, part)
			}
		}
	}
	if raw := c.Query("includeDeleted"); raw != "" {
		include, err := strconv.ParseBool(raw)
		if err != nil {
			return form, appErrors.Clone(appErrors.ErrValidation, "includeDeleted must be a boolean")
		}
		form.IncludeDeleted = include
	}
	return form, nil
}

func optionalInt(c *gin.Context, key string) (*int, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must be a number", key))
	}
	return &v, nil
}

func optionalDate(c *gin.Context, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(queryDateLayout, raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must be formatted as YYYY-MM-DD", key))
	}
	return &t, nil
}
