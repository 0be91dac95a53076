// Package handlers provides the HTTP API for the tracker, translating
// between JSON payloads and domain models and mapping service errors to
// status codes.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	e "github.com/monorhythm/shukatsu/internal/tracker/errors"
	"github.com/monorhythm/shukatsu/internal/tracker/extract"
	"github.com/monorhythm/shukatsu/internal/tracker/models"
)

// TrackerController defines the business logic interface the HTTP handlers
// invoke.
type TrackerController interface {
	ParseEmail(ctx context.Context, emailText string) (extract.Fields, error)
	ApplyParsedEmail(ctx context.Context, parsed models.ParsedEmail) (*models.ApplyResult, error)
	CreateCompany(ctx context.Context, company *models.Company) (*models.Company, error)
	GetCompany(ctx context.Context, id uuid.UUID) (*models.Company, error)
	ListCompanies(ctx context.Context) ([]*models.Company, error)
	UpdateCompany(ctx context.Context, update *models.CompanyUpdate) (*models.Company, error)
	DeleteCompany(ctx context.Context, id uuid.UUID) error
	DeleteCompanyByName(ctx context.Context, name string) error
}

// TrackerHandler serves the tracker API over HTTP.
type TrackerHandler struct {
	service TrackerController
	logger  *zap.Logger
}

// NewTrackerHandler constructs a TrackerHandler with the given service and
// logger.
func NewTrackerHandler(service TrackerController, logger *zap.Logger) *TrackerHandler {
	return &TrackerHandler{
		service: service,
		logger:  logger.Named("http_handler"),
	}
}

type parseEmailRequest struct {
	EmailText string `json:"emailText" binding:"required"`
}

type applyEmailRequest struct {
	Company  string `json:"company"`
	Event    string `json:"event"`
	Date     string `json:"date"`
	Location string `json:"location"`
}

type applyEmailResponse struct {
	Action        models.ApplyAction `json:"action"`
	TargetName    string             `json:"targetName,omitempty"`
	UpdatedFields []string           `json:"updatedFields"`
}

// ParseEmail extracts structured fields from raw email text. Partial or
// fully empty extraction is still a success; only missing input is an
// error.
func (h *TrackerHandler) ParseEmail(c *gin.Context) {
	var req parseEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "emailText required"})
		return
	}

	fields, err := h.service.ParseEmail(c.Request.Context(), req.EmailText)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, fields)
}

// ApplyEmail merges a parsed email into the named company's pipeline.
func (h *TrackerHandler) ApplyEmail(c *gin.Context) {
	var req applyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := h.service.ApplyParsedEmail(c.Request.Context(), models.ParsedEmail{
		Company:  req.Company,
		Event:    req.Event,
		Date:     req.Date,
		Location: req.Location,
	})
	if err != nil {
		h.logger.Error("Apply parsed email failed", zap.Error(err))
		h.respondError(c, err)
		return
	}
	updatedFields := result.UpdatedFields
	if updatedFields == nil {
		updatedFields = []string{}
	}
	c.JSON(http.StatusOK, applyEmailResponse{
		Action:        result.Action,
		TargetName:    result.TargetName,
		UpdatedFields: updatedFields,
	})
}

type companyPayload struct {
	ID            string   `json:"id,omitempty"`
	Name          string   `json:"name"`
	Industry      string   `json:"industry,omitempty"`
	Interest      int      `json:"interest,omitempty"`
	Status        string   `json:"status,omitempty"`
	InterviewFlow string   `json:"interviewFlow,omitempty"`
	AdvancePolicy string   `json:"advancePolicy,omitempty"`
	FlowDeadline  string   `json:"flowDeadline,omitempty"`
	LocationHint  string   `json:"locationHint,omitempty"`
	NextAction    string   `json:"nextAction,omitempty"`
	Notes         string   `json:"notes,omitempty"`
	EventHistory  []string `json:"eventHistory,omitempty"`
	UpdatedAt     string   `json:"updatedAt,omitempty"`
}

type updateCompanyRequest struct {
	Name          *string  `json:"name"`
	Industry      *string  `json:"industry"`
	Interest      *int     `json:"interest"`
	Status        *string  `json:"status"`
	InterviewFlow *string  `json:"interviewFlow"`
	AdvancePolicy *string  `json:"advancePolicy"`
	FlowDeadline  *string  `json:"flowDeadline"`
	LocationHint  *string  `json:"locationHint"`
	NextAction    *string  `json:"nextAction"`
	Notes         *string  `json:"notes"`
	EventHistory  []string `json:"eventHistory"`
}

// CreateCompany registers a company explicitly (as opposed to creation via
// an applied email).
func (h *TrackerHandler) CreateCompany(c *gin.Context) {
	var req companyPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	company := &models.Company{
		Name:          req.Name,
		Industry:      req.Industry,
		Interest:      req.Interest,
		Status:        req.Status,
		InterviewFlow: req.InterviewFlow,
		AdvancePolicy: models.AdvancePolicy(req.AdvancePolicy),
		FlowDeadline:  req.FlowDeadline,
		LocationHint:  req.LocationHint,
		NextAction:    req.NextAction,
		Notes:         req.Notes,
	}
	created, err := h.service.CreateCompany(c.Request.Context(), company)
	if err != nil {
		h.logger.Error("Create company failed", zap.Error(err))
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toPayload(created))
}

// GetCompany returns one company by ID.
func (h *TrackerHandler) GetCompany(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid company ID"})
		return
	}

	company, err := h.service.GetCompany(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPayload(company))
}

// ListCompanies returns all companies, name-sorted.
func (h *TrackerHandler) ListCompanies(c *gin.Context) {
	companies, err := h.service.ListCompanies(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	payloads := make([]companyPayload, 0, len(companies))
	for _, company := range companies {
		payloads = append(payloads, toPayload(company))
	}
	c.JSON(http.StatusOK, payloads)
}

// UpdateCompany applies a partial update to one company.
func (h *TrackerHandler) UpdateCompany(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid company ID"})
		return
	}

	var req updateCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	update := &models.CompanyUpdate{
		ID:            id,
		Name:          req.Name,
		Industry:      req.Industry,
		Interest:      req.Interest,
		Status:        req.Status,
		InterviewFlow: req.InterviewFlow,
		FlowDeadline:  req.FlowDeadline,
		LocationHint:  req.LocationHint,
		NextAction:    req.NextAction,
		Notes:         req.Notes,
		EventHistory:  req.EventHistory,
	}
	if req.AdvancePolicy != nil {
		policy := models.AdvancePolicy(*req.AdvancePolicy)
		update.AdvancePolicy = &policy
	}

	updated, err := h.service.UpdateCompany(c.Request.Context(), update)
	if err != nil {
		h.logger.Error("Update company failed", zap.Error(err))
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPayload(updated))
}

// DeleteCompany removes one company by ID.
func (h *TrackerHandler) DeleteCompany(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid company ID"})
		return
	}

	if err := h.service.DeleteCompany(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteCompanyByName removes the company matching the normalized form of
// the "name" query parameter.
func (h *TrackerHandler) DeleteCompanyByName(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name query parameter required"})
		return
	}

	if err := h.service.DeleteCompanyByName(c.Request.Context(), name); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TrackerHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, e.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, e.ErrDuplicateName):
		c.JSON(http.StatusConflict, gin.H{"error": "duplicate name"})
	case errors.Is(err, e.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Internal error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func toPayload(c *models.Company) companyPayload {
	p := companyPayload{
		ID:            c.ID.String(),
		Name:          c.Name,
		Industry:      c.Industry,
		Interest:      c.Interest,
		Status:        c.Status,
		InterviewFlow: c.InterviewFlow,
		AdvancePolicy: string(c.AdvancePolicy),
		FlowDeadline:  c.FlowDeadline,
		LocationHint:  c.LocationHint,
		NextAction:    c.NextAction,
		Notes:         c.Notes,
		EventHistory:  c.EventHistory,
	}
	if !c.UpdatedAt.IsZero() {
		p.UpdatedAt = c.UpdatedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return p
}
