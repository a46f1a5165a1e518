// Package service implements the health-check lifecycle orchestrator. Every
// mutating operation validates against the status table and role policy,
// performs the write atomically through the store, appends one audit row and
// then emits best-effort events.
package service

import (
	"context"
	"fmt"
	"time"

	"workshop_portal_backend/internal/events"
	"workshop_portal_backend/internal/healthchecks/domain"
	"workshop_portal_backend/internal/healthchecks/repository"
	"workshop_portal_backend/internal/healthchecks/transport"
	"workshop_portal_backend/platform/apperr"
	"workshop_portal_backend/platform/logger"

	"github.com/google/uuid"
)

// Change sources recorded in the audit trail.
const (
	SourceStaff    = "staff"
	SourceCustomer = "customer"
	SourceSystem   = "system"
)

// Store is the persistence surface the orchestrator depends on.
// *repository.Repository implements it against Postgres.
type Store interface {
	CreateCheck(ctx context.Context, hc *repository.HealthCheck, first repository.HistoryRow) error
	GetCheck(ctx context.Context, id, orgID uuid.UUID) (*repository.HealthCheck, error)
	GetCheckByToken(ctx context.Context, token string) (*repository.HealthCheck, error)
	ListChecks(ctx context.Context, params repository.ListParams) (*repository.ListResult, error)
	ListExpiredLinkRefs(ctx context.Context, before time.Time, limit int) ([]repository.ExpiredLinkRef, error)
	UpdateAssignedTechnician(ctx context.Context, id, orgID, technicianID uuid.UUID) error
	UpdateCheckTotals(ctx context.Context, id, orgID uuid.UUID, partsCents, labourCents, amountCents int64) error
	UpdateRAGCounts(ctx context.Context, id, orgID uuid.UUID, green, amber, red int) error
	MarkFirstOpened(ctx context.Context, id uuid.UUID, at time.Time) error

	Transition(ctx context.Context, p repository.TransitionParams) error
	SoftDelete(ctx context.Context, p repository.SoftDeleteParams) error
	BulkSoftDelete(ctx context.Context, ids []uuid.UUID, orgID uuid.UUID, reason domain.DeleteReason, notes *string, actorID uuid.UUID, source string) (deleted, skipped int, err error)
	Restore(ctx context.Context, id, orgID, actorID uuid.UUID, source string) error
	ListHistory(ctx context.Context, checkID, orgID uuid.UUID) ([]repository.HistoryRow, error)

	ListItems(ctx context.Context, checkID, orgID uuid.UUID) ([]repository.RepairItem, error)
	GetItem(ctx context.Context, id, orgID uuid.UUID) (*repository.RepairItem, error)
	InsertItems(ctx context.Context, items []repository.RepairItem) error
	UpdateItem(ctx context.Context, it *repository.RepairItem) error
	DeleteItem(ctx context.Context, id, orgID uuid.UUID) error
	ListResults(ctx context.Context, checkID, orgID uuid.UUID) ([]repository.CheckResult, error)

	OpenTimeEntry(ctx context.Context, checkID, orgID, technicianID uuid.UUID, now time.Time) (stale, opened *repository.TimeEntry, err error)
	CloseTimeEntry(ctx context.Context, checkID, orgID, technicianID uuid.UUID, now time.Time) (*repository.TimeEntry, error)
	ListTimeEntries(ctx context.Context, checkID, orgID uuid.UUID) ([]repository.TimeEntry, error)

	UpsertAuthorization(ctx context.Context, auth repository.Authorization) error
	ListAuthorizations(ctx context.Context, checkID, orgID uuid.UUID) ([]repository.Authorization, error)
}

var _ Store = (*repository.Repository)(nil)

// TechnicianReader is the narrow staff-directory port used to verify that an
// assignee exists within the tenant. Implemented by the staff module.
type TechnicianReader interface {
	TechnicianExists(ctx context.Context, technicianID, orgID uuid.UUID) (bool, error)
}

// Service orchestrates the health-check lifecycle.
type Service struct {
	store Store
	staff TechnicianReader
	bus   events.Bus
	log   *logger.Logger

	publicBaseURL string
	linkTTLDays   int

	// now is swapped out in tests.
	now func() time.Time
}

// New creates the orchestrator. bus may be nil when no subscribers exist
// (e.g. in the scheduler binary).
func New(store Store, staff TechnicianReader, bus events.Bus, log *logger.Logger, publicBaseURL string, linkTTLDays int) *Service {
	if linkTTLDays <= 0 {
		linkTTLDays = 7
	}
	return &Service{
		store:         store,
		staff:         staff,
		bus:           bus,
		log:           log,
		publicBaseURL: publicBaseURL,
		linkTTLDays:   linkTTLDays,
		now:           time.Now,
	}
}

// Create registers a new health check. The initial status is created or
// assigned depending on technician presence, or awaiting_arrival when the
// job is booked ahead of the vehicle's arrival.
func (s *Service) Create(ctx context.Context, actor domain.Actor, req transport.CreateHealthCheckRequest) (*transport.HealthCheckResponse, error) {
	if req.AssignedTechnicianID != nil {
		if !domain.CanAssignTechnician(actor, *req.AssignedTechnicianID) {
			return nil, apperr.Forbidden("technicians may only assign themselves")
		}
		if err := s.requireTechnician(ctx, *req.AssignedTechnicianID, actor.OrganizationID); err != nil {
			return nil, err
		}
	}

	status := domain.InitialStatus(req.AssignedTechnicianID != nil)
	if req.AwaitingArrival {
		status = domain.StatusAwaitingArrival
	}

	now := s.now()
	hc := &repository.HealthCheck{
		ID:                   uuid.New(),
		OrganizationID:       actor.OrganizationID,
		SiteID:               req.SiteID,
		VehicleID:            req.VehicleID,
		CustomerID:           req.CustomerID,
		TemplateID:           req.TemplateID,
		AssignedTechnicianID: req.AssignedTechnicianID,
		AdvisorID:            req.AdvisorID,
		Status:               status,
		MileageIn:            req.MileageIn,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	first := repository.HistoryRow{
		ID:            uuid.New(),
		HealthCheckID: hc.ID,
		ToStatus:      status,
		ActorID:       actor.ID,
		Source:        SourceStaff,
		CreatedAt:     now,
	}
	if err := s.store.CreateCheck(ctx, hc, first); err != nil {
		return nil, err
	}

	resp := toCheckResponse(hc)
	return &resp, nil
}

// Get returns one health check without its dependent records.
func (s *Service) Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*transport.HealthCheckResponse, error) {
	hc, err := s.store.GetCheck(ctx, id, actor.OrganizationID)
	if err != nil {
		return nil, err
	}
	resp := toCheckResponse(hc)
	return &resp, nil
}

// List returns a filtered page of health checks.
func (s *Service) List(ctx context.Context, actor domain.Actor, params repository.ListParams) (*transport.HealthCheckListResponse, error) {
	params.OrganizationID = actor.OrganizationID
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 200 {
		params.PageSize = 50
	}

	result, err := s.store.ListChecks(ctx, params)
	if err != nil {
		return nil, err
	}

	items := make([]transport.HealthCheckResponse, len(result.Items))
	for i := range result.Items {
		items[i] = toCheckResponse(&result.Items[i])
	}
	return &transport.HealthCheckListResponse{
		Items:      items,
		Total:      result.Total,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalPages: result.TotalPages,
	}, nil
}

// Detail returns one health check with items, findings, time entries, audit
// trail and the authorization tally. For jobs whose inspection is finished
// but which have findings and no derived items yet, items are generated
// lazily before the read.
func (s *Service) Detail(ctx context.Context, actor domain.Actor, id uuid.UUID) (*transport.HealthCheckDetailResponse, error) {
	hc, err := s.store.GetCheck(ctx, id, actor.OrganizationID)
	if err != nil {
		return nil, err
	}

	if !hc.IsDeleted() && domain.InspectionFinished(hc.Status) {
		items, err := s.store.ListItems(ctx, hc.ID, hc.OrganizationID)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			if _, err := s.generateItems(ctx, hc); err != nil {
				return nil, err
			}
		}
	}

	items, err := s.store.ListItems(ctx, hc.ID, hc.OrganizationID)
	if err != nil {
		return nil, err
	}
	results, err := s.store.ListResults(ctx, hc.ID, hc.OrganizationID)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.ListTimeEntries(ctx, hc.ID, hc.OrganizationID)
	if err != nil {
		return nil, err
	}
	history, err := s.store.ListHistory(ctx, hc.ID, hc.OrganizationID)
	if err != nil {
		return nil, err
	}
	auths, err := s.store.ListAuthorizations(ctx, hc.ID, hc.OrganizationID)
	if err != nil {
		return nil, err
	}

	detail := &transport.HealthCheckDetailResponse{
		HealthCheckResponse: toCheckResponse(hc),
		Items:               toItemResponses(items),
		Results:             toResultResponses(results),
		TimeEntries:         toEntryResponses(entries),
		History:             toHistoryResponses(history),
		Summary:             BuildSummary(items, auths),
	}
	return detail, nil
}

// ChangeStatus applies a generic validated transition.
func (s *Service) ChangeStatus(ctx context.Context, actor domain.Actor, id uuid.UUID, req transport.ChangeStatusRequest) (*transport.HealthCheckResponse, error) {
	to := domain.Status(req.Status)
	if !domain.IsValidStatus(to) {
		return nil, apperr.Validation(fmt.Sprintf("unknown status %q", req.Status))
	}
	return s.transition(ctx, actor, id, to, transitionOpts{notes: nilIfEmpty(req.Notes)})
}

// Cancel moves a health check to cancelled from any status that allows it.
func (s *Service) Cancel(ctx context.Context, actor domain.Actor, id uuid.UUID, notes string) (*transport.HealthCheckResponse, error) {
	return s.transition(ctx, actor, id, domain.StatusCancelled, transitionOpts{notes: nilIfEmpty(notes)})
}

// MarkArrived records the vehicle's arrival. The job must be in exactly
// awaiting_arrival.
func (s *Service) MarkArrived(ctx context.Context, actor domain.Actor, id uuid.UUID) (*transport.HealthCheckResponse, error) {
	now := s.now()
	return s.transition(ctx, actor, id, domain.StatusCreated, transitionOpts{
		require:   domain.StatusAwaitingArrival,
		arrivedAt: &now,
	})
}

// MarkNoShow records that the vehicle never arrived. The job must be in
// exactly awaiting_arrival.
func (s *Service) MarkNoShow(ctx context.Context, actor domain.Actor, id uuid.UUID) (*transport.HealthCheckResponse, error) {
	return s.transition(ctx, actor, id, domain.StatusNoShow, transitionOpts{
		require: domain.StatusAwaitingArrival,
	})
}

// AssignTechnician assigns a technician to the job. From created the job
// moves to assigned with an audit row; in any other status the assignment is
// an idempotent update without history.
func (s *Service) AssignTechnician(ctx context.Context, actor domain.Actor, id, technicianID uuid.UUID) (*transport.HealthCheckResponse, error) {
	if !domain.CanAssignTechnician(actor, technicianID) {
		return nil, apperr.Forbidden("technicians may only assign themselves")
	}
	if err := s.requireTechnician(ctx, technicianID, actor.OrganizationID); err != nil {
		return nil, err
	}

	hc, err := s.store.GetCheck(ctx, id, actor.OrganizationID)
	if err != nil {
		return nil, err
	}
	if hc.IsDeleted() {
		return nil, apperr.Conflict("health check is deleted").WithCode("already_deleted")
	}

	if hc.Status == domain.StatusCreated {
		tech := technicianID
		if err := s.store.Transition(ctx, repository.TransitionParams{
			ID:                   hc.ID,
			OrganizationID:       hc.OrganizationID,
			From:                 domain.StatusCreated,
			To:                   domain.StatusAssigned,
			ActorID:              actor.ID,
			Source:               SourceStaff,
			AssignedTechnicianID: &tech,
		}); err != nil {
			return nil, err
		}
		s.emitStatusChanged(ctx, hc.ID, hc.OrganizationID, domain.StatusCreated, domain.StatusAssigned, actor.ID)
	} else if err := s.store.UpdateAssignedTechnician(ctx, hc.ID, hc.OrganizationID, technicianID); err != nil {
		return nil, err
	}

	return s.Get(ctx, actor, id)
}

// Close finishes a health check. Every approved repair item must have its
// work completed; offenders are reported back by id and title.
func (s *Service) Close(ctx context.Context, actor domain.Actor, id uuid.UUID) (*transport.HealthCheckResponse, error) {
	hc, err := s.store.GetCheck(ctx, id, actor.OrganizationID)
	if err != nil {
		return nil, err
	}
	if hc.IsDeleted() {
		return nil, apperr.Conflict("health check is deleted").WithCode("already_deleted")
	}

	items, err := s.store.ListItems(ctx, hc.ID, hc.OrganizationID)
	if err != nil {
		return nil, err
	}
	type blockingItem struct {
		ID    uuid.UUID `json:"id"`
		Title string    `json:"title"`
	}
	var blocking []blockingItem
	for _, it := range items {
		if it.IsApproved && it.WorkCompletedAt == nil {
			blocking = append(blocking, blockingItem{ID: it.ID, Title: it.Title})
		}
	}
	if len(blocking) > 0 {
		return nil, apperr.BadRequest("approved repair items have outstanding work").
			WithCode("incomplete_work").
			WithDetails(blocking)
	}

	now := s.now()
	actorID := actor.ID
	resp, err := s.transitionChecked(ctx, actor, hc, domain.StatusCompleted, transitionOpts{
		closedAt: &now,
		closedBy: &actorID,
	})
	if err != nil {
		return nil, err
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.HealthCheckClosed{
			BaseEvent: events.NewBaseEvent(),
			CheckID:   hc.ID,
			TenantID:  hc.OrganizationID,
			ClosedBy:  actor.ID,
		})
	}
	return resp, nil
}

// SoftDelete marks one health check deleted.
func (s *Service) SoftDelete(ctx context.Context, actor domain.Actor, id uuid.UUID, req transport.SoftDeleteRequest) error {
	reason := domain.DeleteReason(req.Reason)
	if err := validateDeletion(reason, req.Notes); err != nil {
		return err
	}
	return s.store.SoftDelete(ctx, repository.SoftDeleteParams{
		ID:             id,
		OrganizationID: actor.OrganizationID,
		Reason:         reason,
		Notes:          nilIfEmpty(req.Notes),
		ActorID:        actor.ID,
		Source:         SourceStaff,
	})
}

// BulkSoftDelete deletes every deletable check among the given ids. Checks
// that are missing, already deleted or in a non-deletable status are counted
// as skipped rather than failing the batch.
func (s *Service) BulkSoftDelete(ctx context.Context, actor domain.Actor, req transport.BulkDeleteRequest) (*transport.BulkDeleteResponse, error) {
	if len(req.IDs) == 0 {
		return nil, apperr.Validation("ids must not be empty")
	}
	if len(req.IDs) > domain.MaxBulkDelete {
		return nil, apperr.Validation(fmt.Sprintf("at most %d ids per batch", domain.MaxBulkDelete))
	}
	reason := domain.DeleteReason(req.Reason)
	if err := validateDeletion(reason, req.Notes); err != nil {
		return nil, err
	}

	deleted, skipped, err := s.store.BulkSoftDelete(ctx, req.IDs, actor.OrganizationID, reason, nilIfEmpty(req.Notes), actor.ID, SourceStaff)
	if err != nil {
		return nil, err
	}
	return &transport.BulkDeleteResponse{Deleted: deleted, Skipped: skipped}, nil
}

// Restore brings a soft-deleted health check back, forcing status created.
func (s *Service) Restore(ctx context.Context, actor domain.Actor, id uuid.UUID) (*transport.HealthCheckResponse, error) {
	if err := s.store.Restore(ctx, id, actor.OrganizationID, actor.ID, SourceStaff); err != nil {
		return nil, err
	}
	return s.Get(ctx, actor, id)
}

// ── internals ─────────────────────────────────────────────────────────────────

type transitionOpts struct {
	// require, when set, demands the current status matches exactly. The
	// transition table still applies on top.
	require domain.Status
	// skipTable is for operations with their own narrower precondition,
	// such as clock-out, whose targets are fixed by the operation rather
	// than the table.
	skipTable bool
	notes     *string
	source    string
	arrivedAt *time.Time
	sentAt    *time.Time
	closedAt  *time.Time
	closedBy  *uuid.UUID
	token     *string
	tokenExp  *time.Time
}

func (s *Service) transition(ctx context.Context, actor domain.Actor, id uuid.UUID, to domain.Status, opts transitionOpts) (*transport.HealthCheckResponse, error) {
	hc, err := s.store.GetCheck(ctx, id, actor.OrganizationID)
	if err != nil {
		return nil, err
	}
	return s.transitionChecked(ctx, actor, hc, to, opts)
}

// transitionChecked validates and applies to against an already-loaded check.
func (s *Service) transitionChecked(ctx context.Context, actor domain.Actor, hc *repository.HealthCheck, to domain.Status, opts transitionOpts) (*transport.HealthCheckResponse, error) {
	if hc.IsDeleted() {
		return nil, apperr.Conflict("health check is deleted").WithCode("already_deleted")
	}
	if opts.require != "" && hc.Status != opts.require {
		return nil, apperr.Conflict(fmt.Sprintf("operation requires status %s", opts.require)).
			WithCode("invalid_state").
			WithDetails(map[string]string{"current": string(hc.Status), "required": string(opts.require)})
	}
	if !opts.skipTable && !domain.CanTransition(hc.Status, to) {
		return nil, apperr.Conflict(fmt.Sprintf("cannot move from %s to %s", hc.Status, to)).
			WithCode("invalid_transition").
			WithDetails(map[string]any{
				"from":    string(hc.Status),
				"to":      string(to),
				"allowed": domain.AllowedNext(hc.Status),
			})
	}
	if !domain.CanChangeStatus(actor, hc.AssignedTechnicianID) {
		return nil, apperr.Forbidden("technicians may only update their own jobs")
	}

	source := opts.source
	if source == "" {
		source = SourceStaff
	}
	if err := s.store.Transition(ctx, repository.TransitionParams{
		ID:             hc.ID,
		OrganizationID: hc.OrganizationID,
		From:           hc.Status,
		To:             to,
		ActorID:        actor.ID,
		Source:         source,
		Notes:          opts.notes,
		ArrivedAt:      opts.arrivedAt,
		SentAt:         opts.sentAt,
		ClosedAt:       opts.closedAt,
		ClosedBy:       opts.closedBy,
		PublicToken:    opts.token,
		TokenExpiresAt: opts.tokenExp,
	}); err != nil {
		return nil, err
	}

	s.emitStatusChanged(ctx, hc.ID, hc.OrganizationID, hc.Status, to, actor.ID)

	updated, err := s.store.GetCheck(ctx, hc.ID, hc.OrganizationID)
	if err != nil {
		return nil, err
	}
	resp := toCheckResponse(updated)
	return &resp, nil
}

// emitStatusChanged broadcasts a status change. Failures never surface to
// the caller.
func (s *Service) emitStatusChanged(ctx context.Context, checkID, orgID uuid.UUID, from, to domain.Status, actorID uuid.UUID) {
	if s.log != nil {
		s.log.StatusChanged(checkID.String(), string(from), string(to), actorID.String())
	}
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, events.HealthCheckStatusChanged{
		BaseEvent:  events.NewBaseEvent(),
		CheckID:    checkID,
		TenantID:   orgID,
		FromStatus: string(from),
		ToStatus:   string(to),
		ActorID:    actorID,
	})
}

func (s *Service) requireTechnician(ctx context.Context, technicianID, orgID uuid.UUID) error {
	if s.staff == nil {
		return nil
	}
	ok, err := s.staff.TechnicianExists(ctx, technicianID, orgID)
	if err != nil {
		return fmt.Errorf("verify technician: %w", err)
	}
	if !ok {
		return apperr.NotFound("technician not found")
	}
	return nil
}

func validateDeletion(reason domain.DeleteReason, notes string) error {
	if !domain.IsValidDeleteReason(reason) {
		return apperr.Validation(fmt.Sprintf("unknown delete reason %q", reason))
	}
	if domain.RequiresNotes(reason, notes) {
		return apperr.Validation(`reason "other" requires notes`)
	}
	return nil
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
