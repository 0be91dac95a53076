package controller

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	e "github.com/monorhythm/shukatsu/internal/tracker/errors"
	"github.com/monorhythm/shukatsu/internal/tracker/events"
	"github.com/monorhythm/shukatsu/internal/tracker/models"
)

// MockRepository implements the Repository interface for testing
type MockRepository struct {
	createCompany func(context.Context, *models.Company) error
	getCompany    func(context.Context, uuid.UUID) (*models.Company, error)
	findByNameKey func(context.Context, string) (*models.Company, error)
	listCompanies func(context.Context) ([]*models.Company, error)
	updateCompany func(context.Context, *models.CompanyUpdate) error
	deleteCompany func(context.Context, uuid.UUID) error
	upsertByName  func(context.Context, *models.CompanyUpsert) (*models.Company, bool, error)
}

func (m *MockRepository) CreateCompany(ctx context.Context, c *models.Company) error {
	return m.createCompany(ctx, c)
}

func (m *MockRepository) GetCompany(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	return m.getCompany(ctx, id)
}

func (m *MockRepository) FindByNameKey(ctx context.Context, key string) (*models.Company, error) {
	return m.findByNameKey(ctx, key)
}

func (m *MockRepository) ListCompanies(ctx context.Context) ([]*models.Company, error) {
	return m.listCompanies(ctx)
}

func (m *MockRepository) UpdateCompany(ctx context.Context, u *models.CompanyUpdate) error {
	return m.updateCompany(ctx, u)
}

func (m *MockRepository) DeleteCompany(ctx context.Context, id uuid.UUID) error {
	return m.deleteCompany(ctx, id)
}

func (m *MockRepository) UpsertByName(ctx context.Context, up *models.CompanyUpsert) (*models.Company, bool, error) {
	return m.upsertByName(ctx, up)
}

func (m *MockRepository) Close() error {
	return nil
}

// MockProducer is a test double for the Kafka producer.
type MockProducer struct {
	mu             sync.Mutex
	producedEvents []events.EventType
	wg             *sync.WaitGroup
}

// Produce records the event type and signals the wait group.
func (m *MockProducer) Produce(eventType events.EventType, _ *models.Company) {
	m.mu.Lock()
	m.producedEvents = append(m.producedEvents, eventType)
	m.mu.Unlock()
	if m.wg != nil {
		m.wg.Done()
	}
}

func (m *MockProducer) events() []events.EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]events.EventType(nil), m.producedEvents...)
}

func TestTrackerService_ParseEmail(t *testing.T) {
	logger := zaptest.NewLogger(t)
	service := NewTrackerService(&MockRepository{}, &MockProducer{}, logger)

	_, err := service.ParseEmail(context.Background(), "")
	if !errors.Is(err, e.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty text, got %v", err)
	}

	fields, err := service.ParseEmail(context.Background(), "一次面接のご案内。Zoomにて実施します。")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fields.Event != "一次面接" {
		t.Errorf("expected event 一次面接, got %q", fields.Event)
	}
	if fields.Location != "Zoom" {
		t.Errorf("expected location Zoom, got %q", fields.Location)
	}
}

func TestTrackerService_ApplyParsedEmail_SkipsWithoutCompany(t *testing.T) {
	logger := zaptest.NewLogger(t)
	service := NewTrackerService(&MockRepository{}, &MockProducer{}, logger)

	result, err := service.ApplyParsedEmail(context.Background(), models.ParsedEmail{
		Event: "一次面接",
		Date:  "2025-07-10 13:00",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Action != models.ActionSkippedNoCompany {
		t.Errorf("expected skipped_no_company, got %q", result.Action)
	}
}

func TestTrackerService_ApplyParsedEmail_CreatesCompany(t *testing.T) {
	logger := zaptest.NewLogger(t)
	mockRepo := &MockRepository{
		findByNameKey: func(_ context.Context, _ string) (*models.Company, error) {
			return nil, e.ErrNotFound
		},
		upsertByName: func(_ context.Context, up *models.CompanyUpsert) (*models.Company, bool, error) {
			if up.Status == nil || *up.Status != "一次面接" {
				t.Errorf("expected canonical status 一次面接, got %v", up.Status)
			}
			if up.NextAction == nil || *up.NextAction != "一次面接 の準備をする" {
				t.Errorf("expected derived next action, got %v", up.NextAction)
			}
			if len(up.EventHistory) != 1 || up.EventHistory[0] != "2025-07-10 13:00|zoom" {
				t.Errorf("expected seeded history, got %v", up.EventHistory)
			}
			return &models.Company{ID: uuid.New(), Name: "株式会社ミライ"}, true, nil
		},
	}
	mockProducer := &MockProducer{wg: new(sync.WaitGroup)}
	service := NewTrackerService(mockRepo, mockProducer, logger)

	mockProducer.wg.Add(1)
	result, err := service.ApplyParsedEmail(context.Background(), models.ParsedEmail{
		Company:  "株式会社ミライ 採用担当",
		Event:    "1次面接",
		Date:     "2025-07-10 13:00",
		Location: "Zoom",
	})
	mockProducer.wg.Wait()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Action != models.ActionCreated {
		t.Errorf("expected created, got %q", result.Action)
	}
	if result.TargetName != "株式会社ミライ" {
		t.Errorf("expected persisted display name, got %q", result.TargetName)
	}
	got := mockProducer.events()
	if len(got) != 1 || got[0] != events.CompanyCreated {
		t.Errorf("expected a single creation event, got %v", got)
	}
}

func TestTrackerService_ApplyParsedEmail_AdvancesExisting(t *testing.T) {
	logger := zaptest.NewLogger(t)
	existing := &models.Company{
		ID:            uuid.New(),
		Name:          "株式会社ミライ",
		Status:        "書類選考",
		InterviewFlow: "書類選考 -> 一次面接 -> 最終面接",
		AdvancePolicy: models.AdvanceByDate,
	}
	mockRepo := &MockRepository{
		findByNameKey: func(_ context.Context, _ string) (*models.Company, error) {
			return existing, nil
		},
		upsertByName: func(_ context.Context, up *models.CompanyUpsert) (*models.Company, bool, error) {
			if up.Status == nil || *up.Status != "一次面接" {
				t.Errorf("expected advance to 一次面接, got %v", up.Status)
			}
			if len(up.EventHistory) != 1 {
				t.Errorf("expected grown history, got %v", up.EventHistory)
			}
			return existing, false, nil
		},
	}
	mockProducer := &MockProducer{wg: new(sync.WaitGroup)}
	service := NewTrackerService(mockRepo, mockProducer, logger)

	// Update event plus stage-advanced event.
	mockProducer.wg.Add(2)
	result, err := service.ApplyParsedEmail(context.Background(), models.ParsedEmail{
		Company:  "ミライ",
		Event:    "面接",
		Date:     "2025-07-10 13:00",
		Location: "Zoom",
	})
	mockProducer.wg.Wait()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Action != models.ActionUpdated {
		t.Errorf("expected updated, got %q", result.Action)
	}
	got := mockProducer.events()
	if len(got) != 2 {
		t.Fatalf("expected two events, got %v", got)
	}
	if got[0] != events.CompanyUpdated || got[1] != events.CompanyStageAdvanced {
		t.Errorf("expected update then stage-advance, got %v", got)
	}
}

func TestTrackerService_ApplyParsedEmail_DuplicateIsNoChange(t *testing.T) {
	logger := zaptest.NewLogger(t)
	existing := &models.Company{
		ID:            uuid.New(),
		Name:          "株式会社ミライ",
		Status:        "一次面接",
		InterviewFlow: "書類選考 -> 一次面接 -> 最終面接",
		AdvancePolicy: models.AdvanceByDate,
		FlowDeadline:  "2025-07-10 13:00",
		LocationHint:  "Zoom",
		NextAction:    "一次面接 の準備をする",
		EventHistory:  []string{"2025-07-10 13:00|zoom"},
	}
	mockRepo := &MockRepository{
		findByNameKey: func(_ context.Context, _ string) (*models.Company, error) {
			return existing, nil
		},
		upsertByName: func(_ context.Context, _ *models.CompanyUpsert) (*models.Company, bool, error) {
			t.Error("no_change must not write")
			return nil, false, nil
		},
	}
	mockProducer := &MockProducer{}
	service := NewTrackerService(mockRepo, mockProducer, logger)

	result, err := service.ApplyParsedEmail(context.Background(), models.ParsedEmail{
		Company:  "ミライ",
		Event:    "一次面接",
		Date:     "2025-07-10 13:00",
		Location: "Zoom",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Action != models.ActionNoChange {
		t.Errorf("expected no_change, got %q", result.Action)
	}
	if len(result.UpdatedFields) != 0 {
		t.Errorf("expected no updated fields, got %v", result.UpdatedFields)
	}
	if got := mockProducer.events(); len(got) != 0 {
		t.Errorf("expected no events, got %v", got)
	}
}

func TestTrackerService_CreateCompany(t *testing.T) {
	testID := uuid.New()

	tests := []struct {
		name          string
		input         *models.Company
		mockSetup     func(*MockRepository)
		expectError   bool
		expectedError error
	}{
		{
			name:  "successful creation",
			input: &models.Company{Name: "株式会社ミライ"},
			mockSetup: func(mr *MockRepository) {
				mr.findByNameKey = func(_ context.Context, _ string) (*models.Company, error) {
					return nil, e.ErrNotFound
				}
				mr.createCompany = func(_ context.Context, c *models.Company) error {
					return nil
				}
			},
			expectError: false,
		},
		{
			name:  "duplicate normalized name",
			input: &models.Company{Name: "ミライ 採用担当"},
			mockSetup: func(mr *MockRepository) {
				mr.findByNameKey = func(_ context.Context, _ string) (*models.Company, error) {
					return &models.Company{ID: testID, Name: "株式会社ミライ"}, nil
				}
			},
			expectError:   true,
			expectedError: e.ErrDuplicateName,
		},
		{
			name:          "boilerplate name",
			input:         &models.Company{Name: "お世話になっております"},
			mockSetup:     func(_ *MockRepository) {},
			expectError:   true,
			expectedError: e.ErrInvalidInput,
		},
		{
			name:  "repository error",
			input: &models.Company{Name: "AlphaSoft"},
			mockSetup: func(mr *MockRepository) {
				mr.findByNameKey = func(_ context.Context, _ string) (*models.Company, error) {
					return nil, e.ErrNotFound
				}
				mr.createCompany = func(_ context.Context, _ *models.Company) error {
					return errors.New("database error")
				}
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := zaptest.NewLogger(t)
			mockRepo := &MockRepository{}
			mockProducer := &MockProducer{wg: new(sync.WaitGroup)}
			tt.mockSetup(mockRepo)
			service := NewTrackerService(mockRepo, mockProducer, logger)

			// For successful creation, add one waitgroup counter for the async event.
			if !tt.expectError {
				mockProducer.wg.Add(1)
			}

			result, err := service.CreateCompany(context.Background(), tt.input)

			if !tt.expectError {
				mockProducer.wg.Wait()
			}

			if tt.expectError {
				if err == nil {
					t.Fatal("expected error but got none")
				}
				if tt.expectedError != nil && !errors.Is(err, tt.expectedError) {
					t.Errorf("expected error %v, got %v", tt.expectedError, err)
				}
			} else {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if result.ID == uuid.Nil {
					t.Error("expected company ID to be set")
				}
				if result.AdvancePolicy != models.AdvanceByDate {
					t.Errorf("expected default advance policy, got %q", result.AdvancePolicy)
				}
				if len(mockProducer.events()) != 1 {
					t.Error("expected creation event to be produced")
				}
			}
		})
	}
}

func TestTrackerService_UpdateCompany(t *testing.T) {
	testID := uuid.New()

	tests := []struct {
		name          string
		input         *models.CompanyUpdate
		mockSetup     func(*MockRepository)
		expectError   bool
		expectedError error
	}{
		{
			name:  "successful update",
			input: &models.CompanyUpdate{ID: testID},
			mockSetup: func(mr *MockRepository) {
				mr.updateCompany = func(_ context.Context, _ *models.CompanyUpdate) error {
					return nil
				}
				mr.getCompany = func(_ context.Context, _ uuid.UUID) (*models.Company, error) {
					return &models.Company{ID: testID}, nil
				}
			},
			expectError: false,
		},
		{
			name:          "invalid ID",
			input:         &models.CompanyUpdate{ID: uuid.Nil},
			mockSetup:     func(_ *MockRepository) {},
			expectError:   true,
			expectedError: e.ErrInvalidInput,
		},
		{
			name:  "not found",
			input: &models.CompanyUpdate{ID: testID},
			mockSetup: func(mr *MockRepository) {
				mr.updateCompany = func(_ context.Context, _ *models.CompanyUpdate) error {
					return e.ErrNotFound
				}
			},
			expectError:   true,
			expectedError: e.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := zaptest.NewLogger(t)
			mockRepo := &MockRepository{}
			mockProducer := &MockProducer{wg: new(sync.WaitGroup)}
			tt.mockSetup(mockRepo)
			service := NewTrackerService(mockRepo, mockProducer, logger)

			if !tt.expectError {
				mockProducer.wg.Add(1)
			}

			_, err := service.UpdateCompany(context.Background(), tt.input)

			if !tt.expectError {
				mockProducer.wg.Wait()
			}

			if tt.expectError {
				if err == nil {
					t.Fatal("expected error but got none")
				}
				if !errors.Is(err, tt.expectedError) {
					t.Errorf("expected error %v, got %v", tt.expectedError, err)
				}
			} else {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if len(mockProducer.events()) != 1 {
					t.Error("expected update event to be produced")
				}
			}
		})
	}
}

func TestTrackerService_DeleteCompanyByName(t *testing.T) {
	testID := uuid.New()

	tests := []struct {
		name          string
		input         string
		mockSetup     func(*MockRepository)
		expectError   bool
		expectedError error
	}{
		{
			name:  "successful deletion by variant name",
			input: "ミライ（株） 採用担当",
			mockSetup: func(mr *MockRepository) {
				mr.findByNameKey = func(_ context.Context, key string) (*models.Company, error) {
					if key != "ミライ" {
						t.Errorf("expected normalized key ミライ, got %q", key)
					}
					return &models.Company{ID: testID, Name: "株式会社ミライ"}, nil
				}
				mr.deleteCompany = func(_ context.Context, id uuid.UUID) error {
					if id != testID {
						t.Errorf("expected delete of %v, got %v", testID, id)
					}
					return nil
				}
			},
			expectError: false,
		},
		{
			name:  "not found",
			input: "存在しない会社",
			mockSetup: func(mr *MockRepository) {
				mr.findByNameKey = func(_ context.Context, _ string) (*models.Company, error) {
					return nil, e.ErrNotFound
				}
			},
			expectError:   true,
			expectedError: e.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := zaptest.NewLogger(t)
			mockRepo := &MockRepository{}
			mockProducer := &MockProducer{wg: new(sync.WaitGroup)}
			tt.mockSetup(mockRepo)
			service := NewTrackerService(mockRepo, mockProducer, logger)

			if !tt.expectError {
				mockProducer.wg.Add(1)
			}

			err := service.DeleteCompanyByName(context.Background(), tt.input)

			if !tt.expectError {
				mockProducer.wg.Wait()
			}

			if tt.expectError {
				if err == nil {
					t.Fatal("expected error but got none")
				}
				if !errors.Is(err, tt.expectedError) {
					t.Errorf("expected error %v, got %v", tt.expectedError, err)
				}
			} else {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				got := mockProducer.events()
				if len(got) != 1 || got[0] != events.CompanyDeleted {
					t.Errorf("expected deletion event, got %v", got)
				}
			}
		})
	}
}
