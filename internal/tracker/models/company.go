// Package models defines the core domain models for the tracker:
// the Company pipeline record, partial-update/upsert carriers, and the
// result types produced by email reconciliation.
package models

import (
	"time"

	"github.com/google/uuid"
)

// AdvancePolicy governs how an incoming extracted event moves a company's
// status forward.
type AdvancePolicy string

const (
	// AdvanceByDate advances one flow stage per previously unseen event date.
	AdvanceByDate AdvancePolicy = "byDate"
	// AdvanceByKeyword snaps status onto the flow from the event label.
	AdvanceByKeyword AdvancePolicy = "byKeyword"
	// AdvanceManual never changes status automatically.
	AdvanceManual AdvancePolicy = "manual"
)

// Company defines the domain model for a tracked company and its
// interview pipeline.
type Company struct {
	// ID is the unique identifier for the company.
	ID uuid.UUID
	// Name is the cleaned display name. Identity for matching purposes is
	// the normalized name key, not this value.
	Name string
	// Industry is a free-text industry label.
	Industry string
	// Interest is a 1-5 interest score.
	Interest int
	// Status is the current pipeline stage, kept in the flow's own notation.
	Status string
	// InterviewFlow is the company-specific pipeline, serialized as
	// "A -> B -> C". May be empty.
	InterviewFlow string
	// AdvancePolicy selects the reconciliation behavior for this company.
	AdvancePolicy AdvancePolicy
	// FlowDeadline is the next scheduled date/time,
	// "YYYY-MM-DD HH:mm" optionally followed by " 〜 HH:mm".
	FlowDeadline string
	// LocationHint is a free-text location or medium ("Teams", "対面", ...).
	LocationHint string
	// NextAction is a derived display string.
	NextAction string
	// Notes is free text owned by the user.
	Notes string
	// EventHistory holds "date|location" signatures already applied,
	// the idempotency keys preventing double-advancing.
	EventHistory []string
	// CreatedAt records the timestamp when the company was created.
	CreatedAt time.Time
	// UpdatedAt records the timestamp when the company was last updated.
	UpdatedAt time.Time
}

// HasSignature reports whether sig has already been applied to the company.
func (c *Company) HasSignature(sig string) bool {
	for _, s := range c.EventHistory {
		if s == sig {
			return true
		}
	}
	return false
}

// CompanyUpdate represents the fields that can be updated for a Company.
// Pointer types are used to allow partial updates.
type CompanyUpdate struct {
	// ID is the unique identifier for the company to update.
	ID            uuid.UUID
	Name          *string
	Industry      *string
	Interest      *int
	Status        *string
	InterviewFlow *string
	AdvancePolicy *AdvancePolicy
	FlowDeadline  *string
	LocationHint  *string
	NextAction    *string
	Notes         *string
	// EventHistory replaces the stored history when non-nil.
	EventHistory []string
}

// CompanyUpsert carries a create-or-merge request keyed by name rather than
// ID. Nil pointers leave the stored value untouched; on create they fall
// back to defaults.
type CompanyUpsert struct {
	// Name is the raw company name; the store cleans it before persisting.
	Name          string
	Industry      *string
	Interest      *int
	Status        *string
	InterviewFlow *string
	AdvancePolicy *AdvancePolicy
	FlowDeadline  *string
	LocationHint  *string
	NextAction    *string
	Notes         *string
	EventHistory  []string
}

// ParsedEmail is the extractor output plus the company name it applies to.
type ParsedEmail struct {
	Company  string
	Event    string
	Date     string
	Location string
}

// ApplyAction discriminates the outcome of applying a parsed email.
type ApplyAction string

const (
	ActionSkippedNoCompany ApplyAction = "skipped_no_company"
	ActionCreated          ApplyAction = "created"
	ActionUpdated          ApplyAction = "updated"
	ActionNoChange         ApplyAction = "no_change"
)

// ApplyResult reports what applying a parsed email did to the store.
type ApplyResult struct {
	Action        ApplyAction
	TargetName    string
	UpdatedFields []string
}
