// Package transport defines the request and response types for the
// health-check HTTP API.
package transport

import (
	"time"

	"github.com/google/uuid"
)

// ── Requests ──────────────────────────────────────────────────────────────────

// CreateHealthCheckRequest is the request body for creating a health check.
// AwaitingArrival creates the job ahead of the vehicle's arrival; it starts
// in awaiting_arrival instead of created/assigned.
type CreateHealthCheckRequest struct {
	VehicleID            uuid.UUID  `json:"vehicleId" validate:"required"`
	CustomerID           uuid.UUID  `json:"customerId" validate:"required"`
	TemplateID           uuid.UUID  `json:"templateId" validate:"required"`
	SiteID               uuid.UUID  `json:"siteId" validate:"required"`
	AssignedTechnicianID *uuid.UUID `json:"assignedTechnicianId"`
	AdvisorID            *uuid.UUID `json:"advisorId"`
	MileageIn            *int       `json:"mileageIn" validate:"omitempty,min=0"`
	AwaitingArrival      bool       `json:"awaitingArrival"`
}

// ChangeStatusRequest is the request body for a generic status change.
type ChangeStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Notes  string `json:"notes" validate:"max=2000"`
}

// AssignTechnicianRequest is the request body for assigning a technician.
type AssignTechnicianRequest struct {
	TechnicianID uuid.UUID `json:"technicianId" validate:"required"`
}

// ClockOutRequest is the request body for closing a work session.
// Complete defaults to true; false pauses the job instead of completing it.
type ClockOutRequest struct {
	Complete *bool `json:"complete"`
}

// PublishRequest is the request body for issuing a customer report link.
type PublishRequest struct {
	ExpiresInDays int      `json:"expiresInDays" validate:"omitempty,min=1,max=90"`
	Channels      []string `json:"channels" validate:"omitempty,dive,oneof=email sms whatsapp"`
	Message       string   `json:"message" validate:"max=2000"`
}

// CreateRepairItemRequest is the request body for a manually added line item.
type CreateRepairItemRequest struct {
	Title           string     `json:"title" validate:"required,min=1,max=500"`
	Description     string     `json:"description" validate:"max=2000"`
	RAGStatus       string     `json:"ragStatus" validate:"required,oneof=green amber red"`
	PartsCostCents  int64      `json:"partsCostCents" validate:"min=0"`
	LabourCostCents int64      `json:"labourCostCents" validate:"min=0"`
	IsVisible       *bool      `json:"isVisible"`
	IsMOTFailure    bool       `json:"isMotFailure"`
	FollowUpDate    *time.Time `json:"followUpDate"`
}

// UpdateRepairItemRequest is the request body for mutating a line item.
// All fields are optional; only the supplied ones are applied.
type UpdateRepairItemRequest struct {
	Title           *string    `json:"title" validate:"omitempty,min=1,max=500"`
	Description     *string    `json:"description" validate:"omitempty,max=2000"`
	RAGStatus       *string    `json:"ragStatus" validate:"omitempty,oneof=green amber red"`
	PartsCostCents  *int64     `json:"partsCostCents" validate:"omitempty,min=0"`
	LabourCostCents *int64     `json:"labourCostCents" validate:"omitempty,min=0"`
	TotalPriceCents *int64     `json:"totalPriceCents" validate:"omitempty,min=0"`
	IsVisible       *bool      `json:"isVisible"`
	IsApproved      *bool      `json:"isApproved"`
	WorkCompleted   *bool      `json:"workCompleted"`
	FollowUpDate    *time.Time `json:"followUpDate"`
	SortOrder       *int       `json:"sortOrder" validate:"omitempty,min=0"`
}

// SoftDeleteRequest is the request body for soft-deleting one health check.
type SoftDeleteRequest struct {
	Reason string `json:"reason" validate:"required,oneof=no_show no_time not_required customer_declined vehicle_issue duplicate other"`
	Notes  string `json:"notes" validate:"max=2000"`
}

// BulkDeleteRequest is the request body for soft-deleting up to 100 checks.
type BulkDeleteRequest struct {
	IDs    []uuid.UUID `json:"ids" validate:"required,min=1,max=100"`
	Reason string      `json:"reason" validate:"required,oneof=no_show no_time not_required customer_declined vehicle_issue duplicate other"`
	Notes  string      `json:"notes" validate:"max=2000"`
}

// AuthorizeItemRequest is one customer decision in an authorize call.
type AuthorizeItemRequest struct {
	RepairItemID uuid.UUID `json:"repairItemId" validate:"required"`
	Decision     string    `json:"decision" validate:"required,oneof=approved declined"`
	Notes        string    `json:"notes" validate:"max=2000"`
	HasSignature bool      `json:"hasSignature"`
}

// AuthorizeRequest is the public portal request body recording decisions.
type AuthorizeRequest struct {
	Items []AuthorizeItemRequest `json:"items" validate:"required,min=1,max=200,dive"`
}

// ── Responses ─────────────────────────────────────────────────────────────────

// HealthCheckResponse is the API representation of one health check.
type HealthCheckResponse struct {
	ID                   uuid.UUID  `json:"id"`
	OrganizationID       uuid.UUID  `json:"organizationId"`
	SiteID               uuid.UUID  `json:"siteId"`
	VehicleID            uuid.UUID  `json:"vehicleId"`
	CustomerID           uuid.UUID  `json:"customerId"`
	TemplateID           uuid.UUID  `json:"templateId"`
	AssignedTechnicianID *uuid.UUID `json:"assignedTechnicianId,omitempty"`
	AdvisorID            *uuid.UUID `json:"advisorId,omitempty"`
	Status               string     `json:"status"`
	GreenCount           int        `json:"greenCount"`
	AmberCount           int        `json:"amberCount"`
	RedCount             int        `json:"redCount"`
	TotalPartsCents      int64      `json:"totalPartsCents"`
	TotalLabourCents     int64      `json:"totalLabourCents"`
	TotalAmountCents     int64      `json:"totalAmountCents"`
	MileageIn            *int       `json:"mileageIn,omitempty"`
	MileageOut           *int       `json:"mileageOut,omitempty"`
	TokenExpiresAt       *time.Time `json:"tokenExpiresAt,omitempty"`
	SentAt               *time.Time `json:"sentAt,omitempty"`
	FirstOpenedAt        *time.Time `json:"firstOpenedAt,omitempty"`
	ArrivedAt            *time.Time `json:"arrivedAt,omitempty"`
	ClosedAt             *time.Time `json:"closedAt,omitempty"`
	DeletedAt            *time.Time `json:"deletedAt,omitempty"`
	DeleteReason         *string    `json:"deleteReason,omitempty"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

// HealthCheckListResponse is a paginated page of health checks.
type HealthCheckListResponse struct {
	Items      []HealthCheckResponse `json:"items"`
	Total      int                   `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"pageSize"`
	TotalPages int                   `json:"totalPages"`
}

// RepairItemResponse is the API representation of one line item.
type RepairItemResponse struct {
	ID              uuid.UUID  `json:"id"`
	CheckResultID   *uuid.UUID `json:"checkResultId,omitempty"`
	Title           string     `json:"title"`
	Description     *string    `json:"description,omitempty"`
	RAGStatus       string     `json:"ragStatus"`
	PartsCostCents  int64      `json:"partsCostCents"`
	LabourCostCents int64      `json:"labourCostCents"`
	TotalPriceCents int64      `json:"totalPriceCents"`
	IsVisible       bool       `json:"isVisible"`
	IsApproved      bool       `json:"isApproved"`
	IsMOTFailure    bool       `json:"isMotFailure"`
	FollowUpDate    *time.Time `json:"followUpDate,omitempty"`
	WorkCompletedAt *time.Time `json:"workCompletedAt,omitempty"`
	SortOrder       int        `json:"sortOrder"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// CheckResultResponse is the API representation of one inspection finding.
type CheckResultResponse struct {
	ID               uuid.UUID `json:"id"`
	TemplateItemID   uuid.UUID `json:"templateItemId"`
	TemplateItemName *string   `json:"templateItemName,omitempty"`
	RAGStatus        string    `json:"ragStatus"`
	Value            *string   `json:"value,omitempty"`
	Notes            *string   `json:"notes,omitempty"`
	IsMOTFailure     bool      `json:"isMotFailure"`
	CreatedAt        time.Time `json:"createdAt"`
}

// TimeEntryResponse is the API representation of one work session.
type TimeEntryResponse struct {
	ID              uuid.UUID  `json:"id"`
	TechnicianID    uuid.UUID  `json:"technicianId"`
	ClockInAt       time.Time  `json:"clockInAt"`
	ClockOutAt      *time.Time `json:"clockOutAt,omitempty"`
	DurationMinutes *int       `json:"durationMinutes,omitempty"`
}

// HistoryEntryResponse is one audit row of the status trail.
type HistoryEntryResponse struct {
	ID         uuid.UUID `json:"id"`
	FromStatus *string   `json:"fromStatus,omitempty"`
	ToStatus   string    `json:"toStatus"`
	ActorID    uuid.UUID `json:"actorId"`
	Source     string    `json:"source"`
	Notes      *string   `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// RAGCounts groups finding counts by severity.
type RAGCounts struct {
	Green int `json:"green"`
	Amber int `json:"amber"`
	Red   int `json:"red"`
}

// SummaryResponse is the authorization tally for one health check. It is
// recomputed on every read and never persisted.
type SummaryResponse struct {
	RAGCounts               RAGCounts `json:"ragCounts"`
	TotalIdentifiedCents    int64     `json:"totalIdentifiedCents"`
	TotalAuthorisedCents    int64     `json:"totalAuthorisedCents"`
	DeclinedCount           int       `json:"declinedCount"`
	WorkCompletedCount      int       `json:"workCompletedCount"`
	WorkCompletedValueCents int64     `json:"workCompletedValueCents"`
	OutstandingCount        int       `json:"outstandingCount"`
	OutstandingValueCents   int64     `json:"outstandingValueCents"`
}

// HealthCheckDetailResponse is the full read of one health check.
type HealthCheckDetailResponse struct {
	HealthCheckResponse
	Items       []RepairItemResponse   `json:"items"`
	Results     []CheckResultResponse  `json:"results"`
	TimeEntries []TimeEntryResponse    `json:"timeEntries"`
	History     []HistoryEntryResponse `json:"history"`
	Summary     SummaryResponse        `json:"summary"`
}

// ClockInResponse reports the opened session and, when a stale session was
// recovered, the entry that was auto-closed.
type ClockInResponse struct {
	Entry          TimeEntryResponse  `json:"entry"`
	RecoveredEntry *TimeEntryResponse `json:"recoveredEntry,omitempty"`
	Status         string             `json:"status"`
}

// ClockOutResponse reports the closed session and the resulting status.
type ClockOutResponse struct {
	Entry  TimeEntryResponse `json:"entry"`
	Status string            `json:"status"`
}

// GenerateItemsResponse reports how many line items a generation run created.
type GenerateItemsResponse struct {
	Created int `json:"created"`
}

// BulkDeleteResponse reports the outcome of a bulk soft delete.
type BulkDeleteResponse struct {
	Deleted int `json:"deleted"`
	Skipped int `json:"skipped"`
}

// PublishResponse reports the issued customer link.
type PublishResponse struct {
	PublicURL string    `json:"publicUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
	Status    string    `json:"status"`
}

// PublicCheckResponse is the customer-facing view of a published report.
// Hidden items and internal identifiers are excluded.
type PublicCheckResponse struct {
	Status    string               `json:"status"`
	VehicleID uuid.UUID            `json:"vehicleId"`
	SentAt    *time.Time           `json:"sentAt,omitempty"`
	ExpiresAt *time.Time           `json:"expiresAt,omitempty"`
	Items     []RepairItemResponse `json:"items"`
	Summary   SummaryResponse      `json:"summary"`
}
