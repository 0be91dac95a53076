// Package controller implements the core business logic (service layer) for
// the tracker: running the email field extractor, applying parsed emails to
// the persisted company pipeline, and plain company CRUD, orchestrating
// repository operations and sending relevant events.
package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	e "github.com/monorhythm/shukatsu/internal/tracker/errors"
	"github.com/monorhythm/shukatsu/internal/tracker/events"
	"github.com/monorhythm/shukatsu/internal/tracker/extract"
	"github.com/monorhythm/shukatsu/internal/tracker/metrics"
	"github.com/monorhythm/shukatsu/internal/tracker/models"
	"github.com/monorhythm/shukatsu/internal/tracker/naming"
	"github.com/monorhythm/shukatsu/internal/tracker/reconcile"
	"github.com/monorhythm/shukatsu/internal/tracker/stage"
)

type EventProducer interface {
	Produce(eventType events.EventType, company *models.Company)
}

// Repository defines the storage interface for Company objects.
type Repository interface {
	CreateCompany(ctx context.Context, company *models.Company) error
	GetCompany(ctx context.Context, id uuid.UUID) (*models.Company, error)
	FindByNameKey(ctx context.Context, key string) (*models.Company, error)
	ListCompanies(ctx context.Context) ([]*models.Company, error)
	UpdateCompany(ctx context.Context, update *models.CompanyUpdate) error
	DeleteCompany(ctx context.Context, id uuid.UUID) error
	UpsertByName(ctx context.Context, up *models.CompanyUpsert) (*models.Company, bool, error)
	Close() error
}

// TrackerService provides methods to manage companies and apply extracted
// email events via repository operations and event production.
type TrackerService struct {
	repo     Repository
	producer EventProducer
	logger   *zap.Logger
}

// NewTrackerService constructs a TrackerService with a repository, an event
// producer, and a logger.
func NewTrackerService(repo Repository, producer EventProducer, logger *zap.Logger) *TrackerService {
	return &TrackerService{
		repo:     repo,
		producer: producer,
		logger:   logger.Named("tracker_service"),
	}
}

// ParseEmail runs the field extractor over raw email text. Unmatched fields
// come back empty; the only error is missing input.
func (s *TrackerService) ParseEmail(_ context.Context, emailText string) (extract.Fields, error) {
	if emailText == "" {
		return extract.Fields{}, fmt.Errorf("%w: emailText required", e.ErrInvalidInput)
	}
	metrics.EmailsParsed.Inc()
	return extract.Extract(emailText), nil
}

// ApplyParsedEmail merges an extracted (event, date, location) triple into
// the persisted pipeline of the named company, creating the company when no
// normalized-name match exists.
func (s *TrackerService) ApplyParsedEmail(ctx context.Context, parsed models.ParsedEmail) (*models.ApplyResult, error) {
	raw := strings.TrimSpace(parsed.Company)
	if raw == "" {
		metrics.AppliesTotal.WithLabelValues(string(models.ActionSkippedNoCompany)).Inc()
		return &models.ApplyResult{Action: models.ActionSkippedNoCompany}, nil
	}

	incomingDate := strings.TrimSpace(parsed.Date)
	incomingLoc := strings.TrimSpace(parsed.Location)

	existing, err := s.repo.FindByNameKey(ctx, naming.Key(raw))
	if err != nil && !errors.Is(err, e.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up company: %w", err)
	}

	if existing == nil {
		return s.applyToNewCompany(ctx, raw, parsed.Event, incomingDate, incomingLoc)
	}
	return s.applyToExistingCompany(ctx, existing, parsed.Event, incomingDate, incomingLoc)
}

func (s *TrackerService) applyToNewCompany(ctx context.Context, rawName, event, date, loc string) (*models.ApplyResult, error) {
	status := ""
	if event != "" {
		status = stage.Canonicalize(event)
	}

	up := &models.CompanyUpsert{Name: rawName}
	var fields []string
	if status != "" {
		up.Status = &status
		nextAction := prepMessage(status)
		up.NextAction = &nextAction
		fields = append(fields, "status", "nextAction")
	}
	if date != "" {
		up.FlowDeadline = &date
		up.EventHistory = []string{reconcile.Signature(date, loc)}
		fields = append(fields, "flowDeadline")
	}
	if loc != "" {
		up.LocationHint = &loc
		fields = append(fields, "locationHint")
	}

	company, created, err := s.repo.UpsertByName(ctx, up)
	if err != nil {
		return nil, fmt.Errorf("failed to create company: %w", err)
	}
	if created {
		go func() {
			s.producer.Produce(events.CompanyCreated, company)
		}()
	}
	metrics.AppliesTotal.WithLabelValues(string(models.ActionCreated)).Inc()
	return &models.ApplyResult{
		Action:        models.ActionCreated,
		TargetName:    company.Name,
		UpdatedFields: fields,
	}, nil
}

func (s *TrackerService) applyToExistingCompany(ctx context.Context, existing *models.Company, event, date, loc string) (*models.ApplyResult, error) {
	decision := reconcile.Decide(existing, event, date, loc)

	up := &models.CompanyUpsert{Name: existing.Name}
	var fields []string

	if decision.Status != "" && decision.Status != existing.Status {
		status := decision.Status
		nextAction := prepMessage(status)
		up.Status = &status
		up.NextAction = &nextAction
		fields = append(fields, "status", "nextAction")
	} else if date != "" && decision.Status != "" {
		nextAction := prepMessage(decision.Status)
		if nextAction != existing.NextAction {
			up.NextAction = &nextAction
			fields = append(fields, "nextAction")
		}
	}

	if date != "" && date != existing.FlowDeadline {
		up.FlowDeadline = &date
		fields = append(fields, "flowDeadline")
	}
	if loc != "" && loc != existing.LocationHint {
		up.LocationHint = &loc
		fields = append(fields, "locationHint")
	}
	if date != "" {
		history := reconcile.AppendHistory(existing, date, loc)
		if len(history) != len(existing.EventHistory) {
			up.EventHistory = history
		}
	}

	if len(fields) == 0 && up.EventHistory == nil {
		metrics.AppliesTotal.WithLabelValues(string(models.ActionNoChange)).Inc()
		return &models.ApplyResult{
			Action:        models.ActionNoChange,
			TargetName:    existing.Name,
			UpdatedFields: []string{},
		}, nil
	}

	updated, _, err := s.repo.UpsertByName(ctx, up)
	if err != nil {
		return nil, fmt.Errorf("failed to update company: %w", err)
	}

	go func() {
		s.producer.Produce(events.CompanyUpdated, updated)
		if decision.Advanced {
			s.producer.Produce(events.CompanyStageAdvanced, updated)
		}
	}()
	if decision.Advanced {
		metrics.StageAdvances.Inc()
	}
	metrics.AppliesTotal.WithLabelValues(string(models.ActionUpdated)).Inc()
	return &models.ApplyResult{
		Action:        models.ActionUpdated,
		TargetName:    existing.Name,
		UpdatedFields: fields,
	}, nil
}

// prepMessage derives the nextAction display string for a stage.
func prepMessage(status string) string {
	return status + " の準備をする"
}

// CreateCompany adds a new Company after validating input data, ensures
// uniqueness by normalized name, and triggers an event.
func (s *TrackerService) CreateCompany(ctx context.Context, company *models.Company) (*models.Company, error) {
	name := naming.Clean(company.Name)
	if naming.IsBoilerplate(name) {
		return nil, fmt.Errorf("%w: invalid name", e.ErrInvalidInput)
	}
	company.Name = name

	if _, err := s.repo.FindByNameKey(ctx, naming.Key(name)); err == nil {
		return nil, e.ErrDuplicateName
	} else if !errors.Is(err, e.ErrNotFound) {
		return nil, fmt.Errorf("failed to check name existence: %w", err)
	}

	company.ID = uuid.New()
	if company.AdvancePolicy == "" {
		company.AdvancePolicy = models.AdvanceByDate
	}
	if err := s.repo.CreateCompany(ctx, company); err != nil {
		return nil, fmt.Errorf("failed to create company: %w", err)
	}
	go func() {
		s.producer.Produce(events.CompanyCreated, company)
	}()
	return company, nil
}

// GetCompany retrieves a Company by ID, returning an error if not found.
func (s *TrackerService) GetCompany(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	company, err := s.repo.GetCompany(ctx, id)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return company, nil
}

// ListCompanies returns every tracked company, name-sorted.
func (s *TrackerService) ListCompanies(ctx context.Context) ([]*models.Company, error) {
	companies, err := s.repo.ListCompanies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	return companies, nil
}

// UpdateCompany modifies the specified Company fields, then fetches the
// updated version for returning and event production.
func (s *TrackerService) UpdateCompany(ctx context.Context, update *models.CompanyUpdate) (*models.Company, error) {
	if update.ID == uuid.Nil {
		return nil, fmt.Errorf("%w: invalid company ID", e.ErrInvalidInput)
	}

	if err := s.repo.UpdateCompany(ctx, update); err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update company: %w", err)
	}

	updated, err := s.repo.GetCompany(ctx, update.ID)
	if err != nil {
		s.logger.Error("Failed to get company for event",
			zap.Error(err),
			zap.String("company_id", update.ID.String()),
		)
		return nil, err
	}
	go func() {
		s.producer.Produce(events.CompanyUpdated, updated)
	}()
	return updated, nil
}

// DeleteCompany removes a Company by ID and fires a deletion event.
func (s *TrackerService) DeleteCompany(ctx context.Context, id uuid.UUID) error {
	company, err := s.repo.GetCompany(ctx, id)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to get company for deletion: %w", err)
	}

	if err := s.repo.DeleteCompany(ctx, id); err != nil {
		return fmt.Errorf("failed to delete company: %w", err)
	}

	go func() {
		s.producer.Produce(events.CompanyDeleted, company)
	}()
	return nil
}

// DeleteCompanyByName removes a company located by normalized name match.
func (s *TrackerService) DeleteCompanyByName(ctx context.Context, name string) error {
	company, err := s.repo.FindByNameKey(ctx, naming.Key(name))
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to find company for deletion: %w", err)
	}
	if err := s.repo.DeleteCompany(ctx, company.ID); err != nil {
		return fmt.Errorf("failed to delete company: %w", err)
	}
	go func() {
		s.producer.Produce(events.CompanyDeleted, company)
	}()
	return nil
}
