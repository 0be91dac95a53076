package db

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/monorhythm/shukatsu/internal/tracker/models"
	"github.com/monorhythm/shukatsu/internal/tracker/naming"
)

// companyRecord is the stored form of a Company. NameKey is the normalized
// matching key (naming.Key) and carries the uniqueness constraint; Name is
// display-only. EventHistory is serialized as a JSON array of signatures.
type companyRecord struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name          string    `gorm:"size:120"`
	NameKey       string    `gorm:"size:120;uniqueIndex"`
	Industry      string
	Interest      int
	Status        string
	InterviewFlow string
	AdvancePolicy string
	FlowDeadline  string
	LocationHint  string
	NextAction    string
	Notes         string
	EventHistory  string `gorm:"type:text"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     gorm.DeletedAt `gorm:"index"`
}

func (companyRecord) TableName() string { return "companies" }

func toRecord(c *models.Company) *companyRecord {
	return &companyRecord{
		ID:            c.ID,
		Name:          c.Name,
		NameKey:       naming.Key(c.Name),
		Industry:      c.Industry,
		Interest:      c.Interest,
		Status:        c.Status,
		InterviewFlow: c.InterviewFlow,
		AdvancePolicy: string(c.AdvancePolicy),
		FlowDeadline:  c.FlowDeadline,
		LocationHint:  c.LocationHint,
		NextAction:    c.NextAction,
		Notes:         c.Notes,
		EventHistory:  marshalHistory(c.EventHistory),
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func toDomain(r *companyRecord) *models.Company {
	return &models.Company{
		ID:            r.ID,
		Name:          r.Name,
		Industry:      r.Industry,
		Interest:      r.Interest,
		Status:        r.Status,
		InterviewFlow: r.InterviewFlow,
		AdvancePolicy: models.AdvancePolicy(r.AdvancePolicy),
		FlowDeadline:  r.FlowDeadline,
		LocationHint:  r.LocationHint,
		NextAction:    r.NextAction,
		Notes:         r.Notes,
		EventHistory:  unmarshalHistory(r.EventHistory),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func marshalHistory(history []string) string {
	if len(history) == 0 {
		return "[]"
	}
	b, err := json.Marshal(history)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func unmarshalHistory(raw string) []string {
	if raw == "" {
		return nil
	}
	var history []string
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		return nil
	}
	if len(history) == 0 {
		return nil
	}
	return history
}
