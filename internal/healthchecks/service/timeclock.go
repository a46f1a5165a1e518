package service

import (
	"context"

	"workshop_portal_backend/internal/events"
	"workshop_portal_backend/internal/healthchecks/domain"
	"workshop_portal_backend/internal/healthchecks/transport"
	"workshop_portal_backend/platform/apperr"

	"github.com/google/uuid"
)

// ClockIn opens a work session for a technician on a job. An open session
// left behind by a crashed or abandoned client is auto-closed first, never
// rejected. From assigned or paused the job moves to in_progress; a job
// already in_progress is left alone so no duplicate history is written.
func (s *Service) ClockIn(ctx context.Context, actor domain.Actor, checkID, technicianID uuid.UUID) (*transport.ClockInResponse, error) {
	if !domain.CanClockFor(actor, technicianID) {
		return nil, apperr.Forbidden("technicians may only clock in for themselves")
	}

	hc, err := s.store.GetCheck(ctx, checkID, actor.OrganizationID)
	if err != nil {
		return nil, err
	}
	if hc.IsDeleted() {
		return nil, apperr.Conflict("health check is deleted").WithCode("already_deleted")
	}
	if !domain.IsActiveWork(hc.Status) {
		return nil, apperr.Conflict("health check is not in a workable status").
			WithCode("invalid_state").
			WithDetails(map[string]string{"current": string(hc.Status)})
	}
	// Every precondition, ownership included, runs before the session row
	// is written.
	if !domain.CanChangeStatus(actor, hc.AssignedTechnicianID) {
		return nil, apperr.Forbidden("technicians may only clock in on their own jobs")
	}

	stale, opened, err := s.store.OpenTimeEntry(ctx, checkID, actor.OrganizationID, technicianID, s.now())
	if err != nil {
		return nil, err
	}

	status := hc.Status
	if hc.Status == domain.StatusAssigned || hc.Status == domain.StatusPaused {
		if _, err := s.transitionChecked(ctx, actor, hc, domain.StatusInProgress, transitionOpts{source: SourceSystem}); err != nil {
			return nil, err
		}
		status = domain.StatusInProgress
	}

	if s.log != nil {
		s.log.ClockEvent("clock_in", checkID.String(), technicianID.String(), 0)
	}
	if s.bus != nil {
		evt := events.TechnicianClockedIn{
			BaseEvent:    events.NewBaseEvent(),
			CheckID:      checkID,
			TenantID:     actor.OrganizationID,
			TechnicianID: technicianID,
		}
		if stale != nil {
			id := stale.ID
			evt.RecoveredID = &id
		}
		s.bus.Publish(ctx, evt)
	}

	resp := &transport.ClockInResponse{
		Entry:  toEntryResponse(opened),
		Status: string(status),
	}
	if stale != nil {
		recovered := toEntryResponse(stale)
		resp.RecoveredEntry = &recovered
	}
	return resp, nil
}

// ClockOut closes the technician's open session. complete moves the job to
// tech_completed and derives repair items from the findings; otherwise the
// job is paused. A job already in the target status stays put without a
// history row.
func (s *Service) ClockOut(ctx context.Context, actor domain.Actor, checkID, technicianID uuid.UUID, complete bool) (*transport.ClockOutResponse, error) {
	if !domain.CanClockFor(actor, technicianID) {
		return nil, apperr.Forbidden("technicians may only clock out for themselves")
	}

	hc, err := s.store.GetCheck(ctx, checkID, actor.OrganizationID)
	if err != nil {
		return nil, err
	}
	if hc.IsDeleted() {
		return nil, apperr.Conflict("health check is deleted").WithCode("already_deleted")
	}
	// Same ordering rule as ClockIn: ownership is settled before the
	// session closes.
	if !domain.CanChangeStatus(actor, hc.AssignedTechnicianID) {
		return nil, apperr.Forbidden("technicians may only clock out on their own jobs")
	}

	entry, err := s.store.CloseTimeEntry(ctx, checkID, actor.OrganizationID, technicianID, s.now())
	if err != nil {
		return nil, err
	}

	target := domain.StatusPaused
	if complete {
		target = domain.StatusTechCompleted
	}

	status := hc.Status
	if domain.IsActiveWork(hc.Status) && hc.Status != target {
		// The clock-out targets are fixed by the operation, so the table
		// check is skipped; assigned or paused may jump straight to
		// tech_completed when a session is closed as complete.
		if _, err := s.transitionChecked(ctx, actor, hc, target, transitionOpts{source: SourceSystem, skipTable: true}); err != nil {
			return nil, err
		}
		status = target

		if target == domain.StatusTechCompleted {
			// Findings are final now; derive the billable items.
			updated := *hc
			updated.Status = target
			if _, err := s.generateItems(ctx, &updated); err != nil {
				return nil, err
			}
		}
	}

	minutes := 0
	if entry.DurationMinutes != nil {
		minutes = *entry.DurationMinutes
	}
	if s.log != nil {
		s.log.ClockEvent("clock_out", checkID.String(), technicianID.String(), minutes)
	}
	if s.bus != nil {
		s.bus.Publish(ctx, events.TechnicianClockedOut{
			BaseEvent:       events.NewBaseEvent(),
			CheckID:         checkID,
			TenantID:        actor.OrganizationID,
			TechnicianID:    technicianID,
			DurationMinutes: minutes,
			Completed:       complete,
		})
	}

	return &transport.ClockOutResponse{
		Entry:  toEntryResponse(entry),
		Status: string(status),
	}, nil
}
