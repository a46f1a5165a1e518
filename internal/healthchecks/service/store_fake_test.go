package service

import (
	"context"
	"math"
	"sort"
	"time"

	"workshop_portal_backend/internal/healthchecks/domain"
	"workshop_portal_backend/internal/healthchecks/repository"
	"workshop_portal_backend/platform/apperr"

	"github.com/google/uuid"
)

// fakeStore is an in-memory Store with the same conflict semantics as the
// Postgres repository.
type fakeStore struct {
	now func() time.Time

	checks  map[uuid.UUID]*repository.HealthCheck
	items   map[uuid.UUID]*repository.RepairItem
	results map[uuid.UUID][]repository.CheckResult
	entries []*repository.TimeEntry
	history []repository.HistoryRow
	auths   map[uuid.UUID]repository.Authorization
}

func newFakeStore(now func() time.Time) *fakeStore {
	return &fakeStore{
		now:     now,
		checks:  make(map[uuid.UUID]*repository.HealthCheck),
		items:   make(map[uuid.UUID]*repository.RepairItem),
		results: make(map[uuid.UUID][]repository.CheckResult),
		auths:   make(map[uuid.UUID]repository.Authorization),
	}
}

var _ Store = (*fakeStore)(nil)

func (f *fakeStore) CreateCheck(_ context.Context, hc *repository.HealthCheck, first repository.HistoryRow) error {
	cp := *hc
	f.checks[hc.ID] = &cp
	f.history = append(f.history, first)
	return nil
}

func (f *fakeStore) GetCheck(_ context.Context, id, orgID uuid.UUID) (*repository.HealthCheck, error) {
	hc, ok := f.checks[id]
	if !ok || hc.OrganizationID != orgID {
		return nil, apperr.NotFound("health check not found")
	}
	cp := *hc
	return &cp, nil
}

func (f *fakeStore) GetCheckByToken(_ context.Context, token string) (*repository.HealthCheck, error) {
	for _, hc := range f.checks {
		if hc.PublicToken == nil || *hc.PublicToken != token || hc.DeletedAt != nil {
			continue
		}
		if hc.TokenExpiresAt != nil && !hc.TokenExpiresAt.After(f.now()) {
			continue
		}
		cp := *hc
		return &cp, nil
	}
	return nil, apperr.NotFound("health check not found")
}

func (f *fakeStore) ListExpiredLinkRefs(_ context.Context, before time.Time, limit int) ([]repository.ExpiredLinkRef, error) {
	expirable := map[domain.Status]bool{
		domain.StatusSent:            true,
		domain.StatusDelivered:       true,
		domain.StatusOpened:          true,
		domain.StatusPartialResponse: true,
	}
	var refs []repository.ExpiredLinkRef
	for _, hc := range f.checks {
		if !expirable[hc.Status] || hc.DeletedAt != nil {
			continue
		}
		if hc.TokenExpiresAt == nil || !hc.TokenExpiresAt.Before(before) {
			continue
		}
		refs = append(refs, repository.ExpiredLinkRef{ID: hc.ID, OrganizationID: hc.OrganizationID})
		if len(refs) == limit {
			break
		}
	}
	return refs, nil
}

func (f *fakeStore) ListChecks(_ context.Context, params repository.ListParams) (*repository.ListResult, error) {
	var items []repository.HealthCheck
	for _, hc := range f.checks {
		if hc.OrganizationID != params.OrganizationID {
			continue
		}
		if !params.IncludeDeleted && hc.DeletedAt != nil {
			continue
		}
		if params.Status != nil && hc.Status != *params.Status {
			continue
		}
		items = append(items, *hc)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return &repository.ListResult{
		Items:      items,
		Total:      len(items),
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalPages: 1,
	}, nil
}

func (f *fakeStore) UpdateAssignedTechnician(_ context.Context, id, orgID, technicianID uuid.UUID) error {
	hc, ok := f.checks[id]
	if !ok || hc.OrganizationID != orgID || hc.DeletedAt != nil {
		return apperr.NotFound("health check not found")
	}
	tech := technicianID
	hc.AssignedTechnicianID = &tech
	return nil
}

func (f *fakeStore) UpdateCheckTotals(_ context.Context, id, orgID uuid.UUID, partsCents, labourCents, amountCents int64) error {
	hc, ok := f.checks[id]
	if !ok || hc.OrganizationID != orgID {
		return apperr.NotFound("health check not found")
	}
	hc.TotalPartsCents = partsCents
	hc.TotalLabourCents = labourCents
	hc.TotalAmountCents = amountCents
	return nil
}

func (f *fakeStore) UpdateRAGCounts(_ context.Context, id, orgID uuid.UUID, green, amber, red int) error {
	hc, ok := f.checks[id]
	if !ok || hc.OrganizationID != orgID {
		return apperr.NotFound("health check not found")
	}
	hc.GreenCount, hc.AmberCount, hc.RedCount = green, amber, red
	return nil
}

func (f *fakeStore) MarkFirstOpened(_ context.Context, id uuid.UUID, at time.Time) error {
	if hc, ok := f.checks[id]; ok && hc.FirstOpenedAt == nil {
		hc.FirstOpenedAt = &at
	}
	return nil
}

func (f *fakeStore) Transition(_ context.Context, p repository.TransitionParams) error {
	hc, ok := f.checks[p.ID]
	if !ok || hc.OrganizationID != p.OrganizationID {
		return apperr.NotFound("health check not found")
	}
	if hc.DeletedAt != nil {
		return apperr.Conflict("health check is deleted").WithCode("already_deleted")
	}
	if hc.Status != p.From {
		return apperr.Conflict("health check status changed concurrently").WithCode("status_changed")
	}
	hc.Status = p.To
	if p.AssignedTechnicianID != nil {
		hc.AssignedTechnicianID = p.AssignedTechnicianID
	}
	if p.ArrivedAt != nil {
		hc.ArrivedAt = p.ArrivedAt
	}
	if p.SentAt != nil {
		hc.SentAt = p.SentAt
	}
	if p.ClosedAt != nil {
		hc.ClosedAt = p.ClosedAt
	}
	if p.ClosedBy != nil {
		hc.ClosedBy = p.ClosedBy
	}
	if p.PublicToken != nil {
		hc.PublicToken = p.PublicToken
	}
	if p.TokenExpiresAt != nil {
		hc.TokenExpiresAt = p.TokenExpiresAt
	}
	from := p.From
	f.history = append(f.history, repository.HistoryRow{
		ID:            uuid.New(),
		HealthCheckID: p.ID,
		FromStatus:    &from,
		ToStatus:      p.To,
		ActorID:       p.ActorID,
		Source:        p.Source,
		Notes:         p.Notes,
		CreatedAt:     f.now(),
	})
	return nil
}

func (f *fakeStore) softDelete(p repository.SoftDeleteParams) error {
	hc, ok := f.checks[p.ID]
	if !ok || hc.OrganizationID != p.OrganizationID {
		return apperr.NotFound("health check not found")
	}
	switch domain.CheckDeletable(hc.Status, hc.DeletedAt != nil) {
	case domain.DeletionAlreadyDeleted:
		return apperr.Conflict("health check is already deleted").WithCode("already_deleted")
	case domain.DeletionWrongStatus:
		return apperr.Conflict("health check cannot be deleted in its current status").WithCode("invalid_state")
	}
	now := f.now()
	actor := p.ActorID
	reason := string(p.Reason)
	hc.DeletedAt = &now
	hc.DeletedBy = &actor
	hc.DeleteReason = &reason
	hc.DeleteNotes = p.Notes
	from := hc.Status
	f.history = append(f.history, repository.HistoryRow{
		ID:            uuid.New(),
		HealthCheckID: p.ID,
		FromStatus:    &from,
		ToStatus:      domain.StatusDeleted,
		ActorID:       p.ActorID,
		Source:        p.Source,
		Notes:         p.Notes,
		CreatedAt:     now,
	})
	return nil
}

func (f *fakeStore) SoftDelete(_ context.Context, p repository.SoftDeleteParams) error {
	return f.softDelete(p)
}

func (f *fakeStore) BulkSoftDelete(_ context.Context, ids []uuid.UUID, orgID uuid.UUID, reason domain.DeleteReason, notes *string, actorID uuid.UUID, source string) (int, int, error) {
	var deleted, skipped int
	for _, id := range ids {
		err := f.softDelete(repository.SoftDeleteParams{
			ID: id, OrganizationID: orgID, Reason: reason, Notes: notes, ActorID: actorID, Source: source,
		})
		switch {
		case err == nil:
			deleted++
		case apperr.Is(err, apperr.KindNotFound) || apperr.Is(err, apperr.KindConflict):
			skipped++
		default:
			return 0, 0, err
		}
	}
	return deleted, skipped, nil
}

func (f *fakeStore) Restore(_ context.Context, id, orgID, actorID uuid.UUID, source string) error {
	hc, ok := f.checks[id]
	if !ok || hc.OrganizationID != orgID {
		return apperr.NotFound("health check not found")
	}
	if hc.DeletedAt == nil {
		return apperr.Conflict("health check is not deleted").WithCode("not_deleted")
	}
	hc.DeletedAt, hc.DeletedBy, hc.DeleteReason, hc.DeleteNotes = nil, nil, nil, nil
	hc.Status = domain.StatusCreated
	from := domain.StatusDeleted
	f.history = append(f.history, repository.HistoryRow{
		ID:            uuid.New(),
		HealthCheckID: id,
		FromStatus:    &from,
		ToStatus:      domain.StatusCreated,
		ActorID:       actorID,
		Source:        source,
		CreatedAt:     f.now(),
	})
	return nil
}

func (f *fakeStore) ListHistory(_ context.Context, checkID, orgID uuid.UUID) ([]repository.HistoryRow, error) {
	var rows []repository.HistoryRow
	for _, h := range f.history {
		if h.HealthCheckID == checkID {
			rows = append(rows, h)
		}
	}
	return rows, nil
}

func (f *fakeStore) ListItems(_ context.Context, checkID, orgID uuid.UUID) ([]repository.RepairItem, error) {
	var items []repository.RepairItem
	for _, it := range f.items {
		if it.HealthCheckID == checkID && it.OrganizationID == orgID {
			items = append(items, *it)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].SortOrder < items[j].SortOrder })
	return items, nil
}

func (f *fakeStore) GetItem(_ context.Context, id, orgID uuid.UUID) (*repository.RepairItem, error) {
	it, ok := f.items[id]
	if !ok || it.OrganizationID != orgID {
		return nil, apperr.NotFound("repair item not found")
	}
	cp := *it
	return &cp, nil
}

func (f *fakeStore) InsertItems(_ context.Context, items []repository.RepairItem) error {
	for _, it := range items {
		cp := it
		f.items[it.ID] = &cp
	}
	return nil
}

func (f *fakeStore) UpdateItem(_ context.Context, it *repository.RepairItem) error {
	if _, ok := f.items[it.ID]; !ok {
		return apperr.NotFound("repair item not found")
	}
	cp := *it
	f.items[it.ID] = &cp
	return nil
}

func (f *fakeStore) DeleteItem(_ context.Context, id, orgID uuid.UUID) error {
	it, ok := f.items[id]
	if !ok || it.OrganizationID != orgID {
		return apperr.NotFound("repair item not found")
	}
	delete(f.items, id)
	return nil
}

func (f *fakeStore) ListResults(_ context.Context, checkID, orgID uuid.UUID) ([]repository.CheckResult, error) {
	return f.results[checkID], nil
}

func (f *fakeStore) OpenTimeEntry(_ context.Context, checkID, orgID, technicianID uuid.UUID, now time.Time) (*repository.TimeEntry, *repository.TimeEntry, error) {
	var stale *repository.TimeEntry
	for _, e := range f.entries {
		if e.HealthCheckID == checkID && e.TechnicianID == technicianID && e.ClockOutAt == nil {
			out := now
			minutes := int(math.Round(out.Sub(e.ClockInAt).Minutes()))
			e.ClockOutAt = &out
			e.DurationMinutes = &minutes
			cp := *e
			stale = &cp
			break
		}
	}
	opened := &repository.TimeEntry{
		ID:             uuid.New(),
		HealthCheckID:  checkID,
		OrganizationID: orgID,
		TechnicianID:   technicianID,
		ClockInAt:      now,
		CreatedAt:      now,
	}
	f.entries = append(f.entries, opened)
	cp := *opened
	return stale, &cp, nil
}

func (f *fakeStore) CloseTimeEntry(_ context.Context, checkID, orgID, technicianID uuid.UUID, now time.Time) (*repository.TimeEntry, error) {
	for _, e := range f.entries {
		if e.HealthCheckID == checkID && e.TechnicianID == technicianID && e.ClockOutAt == nil {
			out := now
			minutes := int(math.Round(out.Sub(e.ClockInAt).Minutes()))
			e.ClockOutAt = &out
			e.DurationMinutes = &minutes
			cp := *e
			return &cp, nil
		}
	}
	return nil, apperr.Conflict("no open time entry for technician").WithCode("not_clocked_in")
}

func (f *fakeStore) ListTimeEntries(_ context.Context, checkID, orgID uuid.UUID) ([]repository.TimeEntry, error) {
	var entries []repository.TimeEntry
	for _, e := range f.entries {
		if e.HealthCheckID == checkID {
			entries = append(entries, *e)
		}
	}
	return entries, nil
}

func (f *fakeStore) UpsertAuthorization(_ context.Context, auth repository.Authorization) error {
	f.auths[auth.RepairItemID] = auth
	return nil
}

func (f *fakeStore) ListAuthorizations(_ context.Context, checkID, orgID uuid.UUID) ([]repository.Authorization, error) {
	var out []repository.Authorization
	for _, a := range f.auths {
		if it, ok := f.items[a.RepairItemID]; ok && it.HealthCheckID == checkID {
			out = append(out, a)
		}
	}
	return out, nil
}

// openEntryCount reports how many sessions are open for a technician on a
// check.
func (f *fakeStore) openEntryCount(checkID, technicianID uuid.UUID) int {
	n := 0
	for _, e := range f.entries {
		if e.HealthCheckID == checkID && e.TechnicianID == technicianID && e.ClockOutAt == nil {
			n++
		}
	}
	return n
}

// fakeStaff answers technician lookups from a fixed id set.
type fakeStaff struct {
	known map[uuid.UUID]bool
}

func (f *fakeStaff) TechnicianExists(_ context.Context, technicianID, _ uuid.UUID) (bool, error) {
	return f.known[technicianID], nil
}
