// Package db implements the company repository on top of GORM. A local
// SQLite file is the default store; postgres is selectable by config.
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	e "github.com/monorhythm/shukatsu/internal/tracker/errors"
	"github.com/monorhythm/shukatsu/internal/tracker/models"
	"github.com/monorhythm/shukatsu/internal/tracker/naming"
)

type Repository struct {
	db *gorm.DB
}

type Config struct {
	Driver   string // "sqlite" (default) or "postgres"
	Path     string // sqlite file path
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func NewRepository(cfg *Config) (*Repository, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "sqlite":
		path := cfg.Path
		if path == "" {
			path = "shukatsu.db"
		}
		dialector = sqlite.Open(path)
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: unknown db driver %q", e.ErrInvalidInput, cfg.Driver)
	}

	var db *gorm.DB
	open := func() error {
		var err error
		db, err = gorm.Open(dialector, &gorm.Config{})
		return err
	}
	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5)
	if err := backoff.Retry(open, bo); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&companyRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) CreateCompany(ctx context.Context, company *models.Company) error {
	rec := toRecord(company)
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	result := r.db.WithContext(ctx).Create(rec)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return e.ErrDuplicateName
		}
		return result.Error
	}
	company.CreatedAt = rec.CreatedAt
	company.UpdatedAt = rec.UpdatedAt
	return nil
}

func (r *Repository) GetCompany(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	var rec companyRecord
	result := r.db.WithContext(ctx).First(&rec, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrNotFound
		}
		return nil, result.Error
	}
	return toDomain(&rec), nil
}

// FindByNameKey locates a company by its normalized name key. The caller is
// expected to pass naming.Key output; raw names will not match.
func (r *Repository) FindByNameKey(ctx context.Context, key string) (*models.Company, error) {
	var rec companyRecord
	result := r.db.WithContext(ctx).First(&rec, "name_key = ?", key)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrNotFound
		}
		return nil, result.Error
	}
	return toDomain(&rec), nil
}

// ListCompanies returns all companies ordered by display name.
func (r *Repository) ListCompanies(ctx context.Context) ([]*models.Company, error) {
	var recs []companyRecord
	result := r.db.WithContext(ctx).Order("name").Find(&recs)
	if result.Error != nil {
		return nil, result.Error
	}
	companies := make([]*models.Company, 0, len(recs))
	for i := range recs {
		companies = append(companies, toDomain(&recs[i]))
	}
	return companies, nil
}

func (r *Repository) UpdateCompany(ctx context.Context, update *models.CompanyUpdate) error {
	values := updateValues(update)
	if len(values) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).Model(&companyRecord{}).
		Where("id = ?", update.ID).
		Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return e.ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteCompany(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&companyRecord{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return e.ErrNotFound
	}
	return nil
}

// UpsertByName creates or merges a company keyed by normalized name.
//
// Boilerplate names (greeting prose the extractor mis-scoped as a company)
// are silently declined: nothing is persisted and the first stored company,
// or an empty placeholder, is returned instead. A rare false negative beats
// junk records.
func (r *Repository) UpsertByName(ctx context.Context, up *models.CompanyUpsert) (*models.Company, bool, error) {
	clean := naming.Clean(up.Name)
	if naming.IsBoilerplate(clean) {
		companies, err := r.ListCompanies(ctx)
		if err != nil {
			return nil, false, err
		}
		if len(companies) > 0 {
			return companies[0], false, nil
		}
		return &models.Company{ID: uuid.New(), UpdatedAt: time.Now()}, false, nil
	}

	existing, err := r.FindByNameKey(ctx, naming.Key(clean))
	if err != nil && !errors.Is(err, e.ErrNotFound) {
		return nil, false, err
	}

	if existing != nil {
		update := &models.CompanyUpdate{
			ID:            existing.ID,
			Industry:      up.Industry,
			Interest:      up.Interest,
			Status:        up.Status,
			InterviewFlow: up.InterviewFlow,
			AdvancePolicy: up.AdvancePolicy,
			FlowDeadline:  up.FlowDeadline,
			LocationHint:  up.LocationHint,
			NextAction:    up.NextAction,
			Notes:         up.Notes,
			EventHistory:  up.EventHistory,
		}
		if err := r.UpdateCompany(ctx, update); err != nil {
			return nil, false, err
		}
		merged, err := r.GetCompany(ctx, existing.ID)
		if err != nil {
			return nil, false, err
		}
		return merged, false, nil
	}

	created := &models.Company{
		ID:            uuid.New(),
		Name:          clean,
		Interest:      3,
		AdvancePolicy: models.AdvanceByDate,
	}
	applyUpsertDefaults(created, up)
	if err := r.CreateCompany(ctx, created); err != nil {
		return nil, false, err
	}
	return created, true, nil
}

func applyUpsertDefaults(c *models.Company, up *models.CompanyUpsert) {
	if up.Industry != nil {
		c.Industry = *up.Industry
	}
	if up.Interest != nil {
		c.Interest = *up.Interest
	}
	if up.Status != nil {
		c.Status = *up.Status
	}
	if up.InterviewFlow != nil {
		c.InterviewFlow = *up.InterviewFlow
	}
	if up.AdvancePolicy != nil {
		c.AdvancePolicy = *up.AdvancePolicy
	}
	if up.FlowDeadline != nil {
		c.FlowDeadline = *up.FlowDeadline
	}
	if up.LocationHint != nil {
		c.LocationHint = *up.LocationHint
	}
	if up.NextAction != nil {
		c.NextAction = *up.NextAction
	}
	if up.Notes != nil {
		c.Notes = *up.Notes
	}
	if up.EventHistory != nil {
		c.EventHistory = up.EventHistory
	}
}

func updateValues(update *models.CompanyUpdate) map[string]interface{} {
	values := map[string]interface{}{}
	if update.Name != nil {
		clean := naming.Clean(*update.Name)
		values["name"] = clean
		values["name_key"] = naming.Key(clean)
	}
	if update.Industry != nil {
		values["industry"] = *update.Industry
	}
	if update.Interest != nil {
		values["interest"] = *update.Interest
	}
	if update.Status != nil {
		values["status"] = *update.Status
	}
	if update.InterviewFlow != nil {
		values["interview_flow"] = *update.InterviewFlow
	}
	if update.AdvancePolicy != nil {
		values["advance_policy"] = string(*update.AdvancePolicy)
	}
	if update.FlowDeadline != nil {
		values["flow_deadline"] = *update.FlowDeadline
	}
	if update.LocationHint != nil {
		values["location_hint"] = *update.LocationHint
	}
	if update.NextAction != nil {
		values["next_action"] = *update.NextAction
	}
	if update.Notes != nil {
		values["notes"] = *update.Notes
	}
	if update.EventHistory != nil {
		values["event_history"] = marshalHistory(update.EventHistory)
	}
	if len(values) > 0 {
		values["updated_at"] = time.Now()
	}
	return values
}

func (r *Repository) WithTransaction(ctx context.Context, fn func(repo *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

func (r *Repository) Close() error {
	db, err := r.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
