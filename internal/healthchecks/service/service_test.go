package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	"workshop_portal_backend/internal/healthchecks/domain"
	"workshop_portal_backend/internal/healthchecks/repository"
	"workshop_portal_backend/internal/healthchecks/transport"
	"workshop_portal_backend/platform/apperr"

	"github.com/google/uuid"
)

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time { return c.t }

func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestService(start time.Time) (*Service, *fakeStore, *testClock) {
	clock := &testClock{t: start}
	store := newFakeStore(clock.Now)
	svc := New(store, &fakeStaff{known: map[uuid.UUID]bool{}}, nil, nil, "http://localhost:4200/report", 7)
	svc.now = clock.Now
	return svc, store, clock
}

func seedCheck(store *fakeStore, orgID uuid.UUID, status domain.Status, tech *uuid.UUID) *repository.HealthCheck {
	hc := &repository.HealthCheck{
		ID:                   uuid.New(),
		OrganizationID:       orgID,
		SiteID:               uuid.New(),
		VehicleID:            uuid.New(),
		CustomerID:           uuid.New(),
		TemplateID:           uuid.New(),
		AssignedTechnicianID: tech,
		Status:               status,
		CreatedAt:            store.now(),
		UpdatedAt:            store.now(),
	}
	store.checks[hc.ID] = hc
	return hc
}

func seedItem(store *fakeStore, hc *repository.HealthCheck, mutate func(*repository.RepairItem)) *repository.RepairItem {
	it := &repository.RepairItem{
		ID:             uuid.New(),
		HealthCheckID:  hc.ID,
		OrganizationID: hc.OrganizationID,
		Title:          "Front brake pads",
		RAGStatus:      domain.RAGRed,
		IsVisible:      true,
		SortOrder:      len(store.items) + 1,
		CreatedAt:      store.now(),
		UpdatedAt:      store.now(),
	}
	if mutate != nil {
		mutate(it)
	}
	store.items[it.ID] = it
	return it
}

func advisor(orgID uuid.UUID) domain.Actor {
	return domain.Actor{ID: uuid.New(), Role: domain.RoleServiceAdvisor, OrganizationID: orgID}
}

func wantCode(t *testing.T, err error, kind apperr.Kind, code string) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
	if !apperr.Is(err, kind) {
		t.Fatalf("expected kind %v, got %v (%v)", kind, apperr.GetKind(err), err)
	}
	if code != "" && apperr.GetCode(err) != code {
		t.Fatalf("expected code %q, got %q (%v)", code, apperr.GetCode(err), err)
	}
}

var start = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func TestChangeStatusRejectsInvalidTransition(t *testing.T) {
	svc, store, _ := newTestService(start)
	org := uuid.New()
	hc := seedCheck(store, org, domain.StatusCreated, nil)

	_, err := svc.ChangeStatus(context.Background(), advisor(org), hc.ID, transport.ChangeStatusRequest{Status: "in_progress"})
	wantCode(t, err, apperr.KindConflict, "invalid_transition")

	if store.checks[hc.ID].Status != domain.StatusCreated {
		t.Fatalf("status changed to %s after rejected transition", store.checks[hc.ID].Status)
	}
	if len(store.history) != 0 {
		t.Fatalf("expected no history rows, got %d", len(store.history))
	}
}

func TestChangeStatusUnknownStatus(t *testing.T) {
	svc, store, _ := newTestService(start)
	org := uuid.New()
	hc := seedCheck(store, org, domain.StatusCreated, nil)

	_, err := svc.ChangeStatus(context.Background(), advisor(org), hc.ID, transport.ChangeStatusRequest{Status: "flying"})
	wantCode(t, err, apperr.KindValidation, "")
}

func TestChangeStatusAppendsOneHistoryRow(t *testing.T) {
	svc, store, _ := newTestService(start)
	org := uuid.New()
	hc := seedCheck(store, org, domain.StatusCreated, nil)

	resp, err := svc.ChangeStatus(context.Background(), advisor(org), hc.ID, transport.ChangeStatusRequest{Status: "cancelled", Notes: "customer called"})
	if err != nil {
		t.Fatalf("ChangeStatus: %v", err)
	}
	if resp.Status != "cancelled" {
		t.Fatalf("expected status cancelled, got %s", resp.Status)
	}
	if len(store.history) != 1 {
		t.Fatalf("expected 1 history row, got %d", len(store.history))
	}
	h := store.history[0]
	if h.FromStatus == nil || *h.FromStatus != domain.StatusCreated || h.ToStatus != domain.StatusCancelled {
		t.Fatalf("history row %v -> %v", h.FromStatus, h.ToStatus)
	}
	if h.Notes == nil || *h.Notes != "customer called" {
		t.Fatal("history notes not recorded")
	}
}

func TestTechnicianMayOnlyTouchOwnJobs(t *testing.T) {
	svc, store, _ := newTestService(start)
	org := uuid.New()
	other := uuid.New()
	hc := seedCheck(store, org, domain.StatusAssigned, &other)

	tech := domain.Actor{ID: uuid.New(), Role: domain.RoleTechnician, OrganizationID: org}
	_, err := svc.ChangeStatus(context.Background(), tech, hc.ID, transport.ChangeStatusRequest{Status: "in_progress"})
	wantCode(t, err, apperr.KindForbidden, "")

	// The assigned technician is allowed through.
	owner := domain.Actor{ID: other, Role: domain.RoleTechnician, OrganizationID: org}
	if _, err := svc.ChangeStatus(context.Background(), owner, hc.ID, transport.ChangeStatusRequest{Status: "in_progress"}); err != nil {
		t.Fatalf("assigned technician rejected: %v", err)
	}
}

func TestCreateInitialStatus(t *testing.T) {
	svc, store, _ := newTestService(start)
	org := uuid.New()
	tech := uuid.New()
	svc.staff = &fakeStaff{known: map[uuid.UUID]bool{tech: true}}

	cases := []struct {
		name string
		req  transport.CreateHealthCheckRequest
		want domain.Status
	}{
		{"no technician", transport.CreateHealthCheckRequest{}, domain.StatusCreated},
		{"with technician", transport.CreateHealthCheckRequest{AssignedTechnicianID: &tech}, domain.StatusAssigned},
		{"pre-arrival", transport.CreateHealthCheckRequest{AwaitingArrival: true}, domain.StatusAwaitingArrival},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.req.VehicleID = uuid.New()
			tc.req.CustomerID = uuid.New()
			tc.req.TemplateID = uuid.New()
			tc.req.SiteID = uuid.New()
			resp, err := svc.Create(context.Background(), advisor(org), tc.req)
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			if resp.Status != string(tc.want) {
				t.Fatalf("expected %s, got %s", tc.want, resp.Status)
			}
			rows, _ := store.ListHistory(context.Background(), resp.ID, org)
			if len(rows) != 1 || rows[0].FromStatus != nil || rows[0].ToStatus != tc.want {
				t.Fatalf("unexpected first history row %+v", rows)
			}
		})
	}
}

func TestCreateUnknownTechnician(t *testing.T) {
	svc, _, _ := newTestService(start)
	org := uuid.New()
	tech := uuid.New()

	_, err := svc.Create(context.Background(), advisor(org), transport.CreateHealthCheckRequest{
		VehicleID: uuid.New(), CustomerID: uuid.New(), TemplateID: uuid.New(), SiteID: uuid.New(),
		AssignedTechnicianID: &tech,
	})
	wantCode(t, err, apperr.KindNotFound, "")
}

func TestMarkArrivedRequiresAwaitingArrival(t *testing.T) {
	svc, store, _ := newTestService(start)
	org := uuid.New()

	hc := seedCheck(store, org, domain.StatusAwaitingArrival, nil)
	resp, err := svc.MarkArrived(context.Background(), advisor(org), hc.ID)
	if err != nil {
		t.Fatalf("MarkArrived: %v", err)
	}
	if resp.Status != "created" || resp.ArrivedAt == nil {
		t.Fatalf("expected created with arrival stamp, got %s %v", resp.Status, resp.ArrivedAt)
	}

	other := seedCheck(store, org, domain.StatusCreated, nil)
	_, err = svc.MarkArrived(context.Background(), advisor(org), other.ID)
	wantCode(t, err, apperr.KindConflict, "invalid_state")
}

func TestAssignTechnician(t *testing.T) {
	svc, store, _ := newTestService(start)
	org := uuid.New()
	tech := uuid.New()
	svc.staff = &fakeStaff{known: map[uuid.UUID]bool{tech: true}}

	hc := seedCheck(store, org, domain.StatusCreated, nil)
	resp, err := svc.AssignTechnician(context.Background(), advisor(org), hc.ID, tech)
	if err != nil {
		t.Fatalf("AssignTechnician: %v", err)
	}
	if resp.Status != "assigned" {
		t.Fatalf("expected assigned, got %s", resp.Status)
	}
	if len(store.history) != 1 {
		t.Fatalf("expected 1 history row, got %d", len(store.history))
	}

	// Re-assignment outside created is idempotent and silent.
	replacement := uuid.New()
	svc.staff = &fakeStaff{known: map[uuid.UUID]bool{replacement: true}}
	resp, err = svc.AssignTechnician(context.Background(), advisor(org), hc.ID, replacement)
	if err != nil {
		t.Fatalf("re-assign: %v", err)
	}
	if resp.Status != "assigned" || *resp.AssignedTechnicianID != replacement {
		t.Fatalf("re-assignment not applied: %+v", resp)
	}
	if len(store.history) != 1 {
		t.Fatalf("re-assignment must not append history, got %d rows", len(store.history))
	}
}

func TestAssignTechnicianSelfOnly(t *testing.T) {
	svc, store, _ := newTestService(start)
	org := uuid.New()
	hc := seedCheck(store, org, domain.StatusCreated, nil)

	actor := domain.Actor{ID: uuid.New(), Role: domain.RoleTechnician, OrganizationID: org}
	_, err := svc.AssignTechnician(context.Background(), actor, hc.ID, uuid.New())
	wantCode(t, err, apperr.KindForbidden, "")
}

func TestDoubleClockInRecoversStaleSession(t *testing.T) {
	svc, store, clock := newTestService(start)
	org := uuid.New()
	tech := uuid.New()
	hc := seedCheck(store, org, domain.StatusAssigned, &tech)
	actor := domain.Actor{ID: tech, Role: domain.RoleTechnician, OrganizationID: org}

	first, err := svc.ClockIn(context.Background(), actor, hc.ID, tech)
	if err != nil {
		t.Fatalf("first ClockIn: %v", err)
	}
	if first.RecoveredEntry != nil {
		t.Fatal("first clock-in must not recover anything")
	}
	if first.Status != "in_progress" {
		t.Fatalf("expected in_progress, got %s", first.Status)
	}

	clock.Advance(25 * time.Minute)
	second, err := svc.ClockIn(context.Background(), actor, hc.ID, tech)
	if err != nil {
		t.Fatalf("second ClockIn: %v", err)
	}
	if second.RecoveredEntry == nil {
		t.Fatal("expected the stale session to be recovered")
	}
	if second.RecoveredEntry.DurationMinutes == nil || *second.RecoveredEntry.DurationMinutes != 25 {
		t.Fatalf("recovered duration = %v, want 25", second.RecoveredEntry.DurationMinutes)
	}
	if n := store.openEntryCount(hc.ID, tech); n != 1 {
		t.Fatalf("expected exactly 1 open entry, got %d", n)
	}
	// Already in_progress: the second clock-in must not write more history.
	if len(store.history) != 1 {
		t.Fatalf("expected 1 history row, got %d", len(store.history))
	}
}

func TestClockOutWithoutOpenEntry(t *testing.T) {
	svc, store, _ := newTestService(start)
	org := uuid.New()
	tech := uuid.New()
	hc := seedCheck(store, org, domain.StatusInProgress, &tech)
	actor := domain.Actor{ID: tech, Role: domain.RoleTechnician, OrganizationID: org}

	_, err := svc.ClockOut(context.Background(), actor, hc.ID, tech, true)
	wantCode(t, err, apperr.KindConflict, "not_clocked_in")
}

func TestClockOutCompleteGeneratesItems(t *testing.T) {
	svc, store, clock := newTestService(start)
	org := uuid.New()
	tech := uuid.New()
	hc := seedCheck(store, org, domain.StatusAssigned, &tech)
	actor := domain.Actor{ID: tech, Role: domain.RoleTechnician, OrganizationID: org}

	name := "Front brake discs"
	store.results[hc.ID] = []repository.CheckResult{{
		ID:               uuid.New(),
		HealthCheckID:    hc.ID,
		TemplateItemID:   uuid.New(),
		RAGStatus:        domain.RAGRed,
		TemplateItemName: &name,
		CreatedAt:        clock.Now(),
	}}

	if _, err := svc.ClockIn(context.Background(), actor, hc.ID, tech); err != nil {
		t.Fatalf("ClockIn: %v", err)
	}
	clock.Advance(90 * time.Second)
	out, err := svc.ClockOut(context.Background(), actor, hc.ID, tech, true)
	if err != nil {
		t.Fatalf("ClockOut: %v", err)
	}
	if out.Status != "tech_completed" {
		t.Fatalf("expected tech_completed, got %s", out.Status)
	}
	if out.Entry.DurationMinutes == nil || *out.Entry.DurationMinutes != 2 {
		t.Fatalf("duration = %v, want 2 (rounded from 90s)", out.Entry.DurationMinutes)
	}

	items, _ := store.ListItems(context.Background(), hc.ID, org)
	if len(items) != 1 {
		t.Fatalf("expected 1 generated item, got %d", len(items))
	}
	if items[0].Title != name || items[0].TotalPriceCents != 0 {
		t.Fatalf("unexpected generated item %+v", items[0])
	}
	if store.checks[hc.ID].TotalAmountCents != 0 {
		t.Fatalf("new items start at zero cost, total = %d", store.checks[hc.ID].TotalAmountCents)
	}
}

func TestClockOutPauseInsteadOfComplete(t *testing.T) {
	svc, store, _ := newTestService(start)
	org := uuid.New()
	tech := uuid.New()
	hc := seedCheck(store, org, domain.StatusAssigned, &tech)
	actor := domain.Actor{ID: tech, Role: domain.RoleTechnician, OrganizationID: org}

	if _, err := svc.ClockIn(context.Background(), actor, hc.ID, tech); err != nil {
		t.Fatalf("ClockIn: %v", err)
	}
	out, err := svc.ClockOut(context.Background(), actor, hc.ID, tech, false)
	if err != nil {
		t.Fatalf("ClockOut: %v", err)
	}
	if out.Status != "paused" {
		t.Fatalf("expected paused, got %s", out.Status)
	}
	if items, _ := store.ListItems(context.Background(), hc.ID, org); len(items) != 0 {
		t.Fatal("pausing must not generate items")
	}
}

func TestClockInOnForeignJobLeavesNoEntry(t *testing.T) {
	svc, store, _ := newTestService(start)
	org := uuid.New()
	owner := uuid.New()
	hc := seedCheck(store, org, domain.StatusAssigned, &owner)

	intruder := domain.Actor{ID: uuid.New(), Role: domain.RoleTechnician, OrganizationID: org}
	_, err := svc.ClockIn(context.Background(), intruder, hc.ID, intruder.ID)
	wantCode(t, err, apperr.KindForbidden, "")
	if n := store.openEntryCount(hc.ID, intruder.ID); n != 0 {
		t.Fatalf("rejected clock-in left %d open entries", n)
	}
	if len(store.history) != 0 {
		t.Fatalf("rejected clock-in wrote %d history rows", len(store.history))
	}
	if store.checks[hc.ID].Status != domain.StatusAssigned {
		t.Fatalf("status moved to %s", store.checks[hc.ID].Status)
	}
}

func TestClockOutOnForeignJobLeavesSessionOpen(t *testing.T) {
	svc, store, _ := newTestService(start)
	org := uuid.New()
	owner := uuid.New()
	hc := seedCheck(store, org, domain.StatusInProgress, &owner)

	intruder := domain.Actor{ID: uuid.New(), Role: domain.RoleTechnician, OrganizationID: org}
	if _, _, err := store.OpenTimeEntry(context.Background(), hc.ID, org, intruder.ID, start); err != nil {
		t.Fatalf("seed entry: %v", err)
	}

	_, err := svc.ClockOut(context.Background(), intruder, hc.ID, intruder.ID, true)
	wantCode(t, err, apperr.KindForbidden, "")
	if n := store.openEntryCount(hc.ID, intruder.ID); n != 1 {
		t.Fatalf("expected the session untouched, got %d open entries", n)
	}
	if store.checks[hc.ID].Status != domain.StatusInProgress {
		t.Fatalf("status moved to %s", store.checks[hc.ID].Status)
	}
}

func TestGenerateItemsIsIdempotent(t *testing.T) {
	svc, store, clock := newTestService(start)
	org := uuid.New()
	hc := seedCheck(store, org, domain.StatusTechCompleted, nil)

	store.results[hc.ID] = []repository.CheckResult{
		{ID: uuid.New(), HealthCheckID: hc.ID, TemplateItemID: uuid.New(), RAGStatus: domain.RAGRed, CreatedAt: clock.Now()},
		{ID: uuid.New(), HealthCheckID: hc.ID, TemplateItemID: uuid.New(), RAGStatus: domain.RAGAmber, CreatedAt: clock.Now()},
		{ID: uuid.New(), HealthCheckID: hc.ID, TemplateItemID: uuid.New(), RAGStatus: domain.RAGGreen, CreatedAt: clock.Now()},
	}

	firstRun, err := svc.GenerateRepairItems(context.Background(), advisor(org), hc.ID)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if firstRun.Created != 2 {
		t.Fatalf("expected 2 items from red+amber, got %d", firstRun.Created)
	}

	secondRun, err := svc.GenerateRepairItems(context.Background(), advisor(org), hc.ID)
	if err != nil {
		t.Fatalf("second generate: %v", err)
	}
	if secondRun.Created != 0 {
		t.Fatalf("second run must create nothing, got %d", secondRun.Created)
	}
	items, _ := store.ListItems(context.Background(), hc.ID, org)
	if len(items) != 2 {
		t.Fatalf("expected 2 items total, got %d", len(items))
	}
	if items[0].SortOrder != 1 || items[1].SortOrder != 2 {
		t.Fatalf("sort orders %d,%d, want 1,2", items[0].SortOrder, items[1].SortOrder)
	}

	hcRow := store.checks[hc.ID]
	if hcRow.GreenCount != 1 || hcRow.AmberCount != 1 || hcRow.RedCount != 1 {
		t.Fatalf("rag counts %d/%d/%d", hcRow.GreenCount, hcRow.AmberCount, hcRow.RedCount)
	}
}

func TestGenerateItemFallbacks(t *testing.T) {
	svc, store, clock := newTestService(start)
	org := uuid.New()
	hc := seedCheck(store, org, domain.StatusTechCompleted, nil)

	desc := "Check tread depth"
	store.results[hc.ID] = []repository.CheckResult{{
		ID:               uuid.New(),
		HealthCheckID:    hc.ID,
		TemplateItemID:   uuid.New(),
		RAGStatus:        domain.RAGAmber,
		TemplateItemDesc: &desc,
		CreatedAt:        clock.Now(),
	}}

	if _, err := svc.GenerateRepairItems(context.Background(), advisor(org), hc.ID); err != nil {
		t.Fatalf("generate: %v", err)
	}
	items, _ := store.ListItems(context.Background(), hc.ID, org)
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Title != "Repair Item" {
		t.Fatalf("title fallback not applied: %q", items[0].Title)
	}
	if items[0].Description == nil || *items[0].Description != desc {
		t.Fatalf("description fallback not applied: %v", items[0].Description)
	}
}

func TestTotalsExcludeHiddenItems(t *testing.T) {
	svc, store, _ := newTestService(start)
	org := uuid.New()
	hc := seedCheck(store, org, domain.StatusAwaitingPricing, nil)
	actor := advisor(org)

	visible := seedItem(store, hc, func(it *repository.RepairItem) {
		it.PartsCostCents, it.LabourCostCents, it.TotalPriceCents = 4000, 6000, 10000
	})
	hidden := seedItem(store, hc, func(it *repository.RepairItem) {
		it.PartsCostCents, it.LabourCostCents, it.TotalPriceCents = 5000, 0, 5000
	})

	// Hide the second item; only the first may contribute.
	hide := false
	if _, err := svc.UpdateRepairItem(context.Background(), actor, hc.ID, hidden.ID, transport.UpdateRepairItemRequest{IsVisible: &hide}); err != nil {
		t.Fatalf("hide item: %v", err)
	}

	hcRow := store.checks[hc.ID]
	if hcRow.TotalPartsCents != 4000 || hcRow.TotalLabourCents != 6000 || hcRow.TotalAmountCents != 10000 {
		t.Fatalf("totals %d/%d/%d, want 4000/6000/10000", hcRow.TotalPartsCents, hcRow.TotalLabourCents, hcRow.TotalAmountCents)
	}
	if hcRow.TotalAmountCents != hcRow.TotalPartsCents+hcRow.TotalLabourCents {
		t.Fatal("total amount must equal parts plus labour")
	}

	// A cost change on the visible item recomputes its line total and the rollups.
	parts := int64(5000)
	resp, err := svc.UpdateRepairItem(context.Background(), actor, hc.ID, visible.ID, transport.UpdateRepairItemRequest{PartsCostCents: &parts})
	if err != nil {
		t.Fatalf("update parts: %v", err)
	}
	if resp.TotalPriceCents != 11000 {
		t.Fatalf("line total %d, want 11000", resp.TotalPriceCents)
	}
	if store.checks[hc.ID].TotalAmountCents != 11000 {
		t.Fatalf("rollup %d, want 11000", store.checks[hc.ID].TotalAmountCents)
	}
}

func TestTotalPriceOverrideKeepsBreakdown(t *testing.T) {
	svc, store, _ := newTestService(start)
	org := uuid.New()
	hc := seedCheck(store, org, domain.StatusAwaitingPricing, nil)

	it := seedItem(store, hc, func(it *repository.RepairItem) {
		it.PartsCostCents, it.LabourCostCents, it.TotalPriceCents = 2000, 3000, 5000
	})

	override := int64(4500)
	resp, err := svc.UpdateRepairItem(context.Background(), advisor(org), hc.ID, it.ID, transport.UpdateRepairItemRequest{TotalPriceCents: &override})
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	if resp.TotalPriceCents != 4500 || resp.PartsCostCents != 2000 || resp.LabourCostCents != 3000 {
		t.Fatalf("override mangled the breakdown: %+v", resp)
	}
	// Rollups keep summing the breakdown, not the overridden line total.
	if store.checks[hc.ID].TotalAmountCents != 5000 {
		t.Fatalf("rollup %d, want 5000", store.checks[hc.ID].TotalAmountCents)
	}
}

func TestDeleteItemRecomputesTotals(t *testing.T) {
	svc, store, _ := newTestService(start)
	org := uuid.New()
	hc := seedCheck(store, org, domain.StatusAwaitingPricing, nil)

	it := seedItem(store, hc, func(it *repository.RepairItem) {
		it.PartsCostCents, it.LabourCostCents, it.TotalPriceCents = 2500, 0, 2500
	})
	if err := svc.recomputeTotals(context.Background(), hc.ID, org); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if store.checks[hc.ID].TotalAmountCents != 2500 {
		t.Fatalf("precondition failed, total %d", store.checks[hc.ID].TotalAmountCents)
	}

	if err := svc.DeleteRepairItem(context.Background(), advisor(org), hc.ID, it.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if store.checks[hc.ID].TotalAmountCents != 0 {
		t.Fatalf("total after delete %d, want 0", store.checks[hc.ID].TotalAmountCents)
	}
}

func TestCloseGatedOnIncompleteWork(t *testing.T) {
	svc, store, _ := newTestService(start)
	org := uuid.New()
	hc := seedCheck(store, org, domain.StatusAuthorized, nil)
	actor := advisor(org)

	blocking := seedItem(store, hc, func(it *repository.RepairItem) { it.IsApproved = true })
	seedItem(store, hc, nil) // unapproved items never block

	_, err := svc.Close(context.Background(), actor, hc.ID)
	wantCode(t, err, apperr.KindBadRequest, "incomplete_work")
	if store.checks[hc.ID].Status != domain.StatusAuthorized {
		t.Fatal("failed close must not change status")
	}

	done := true
	if _, err := svc.UpdateRepairItem(context.Background(), actor, hc.ID, blocking.ID, transport.UpdateRepairItemRequest{WorkCompleted: &done}); err != nil {
		t.Fatalf("complete work: %v", err)
	}
	resp, err := svc.Close(context.Background(), actor, hc.ID)
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if resp.Status != "completed" || resp.ClosedAt == nil {
		t.Fatalf("close result %+v", resp)
	}
}

func TestSoftDeleteValidation(t *testing.T) {
	svc, store, _ := newTestService(start)
	org := uuid.New()
	actor := advisor(org)

	hc := seedCheck(store, org, domain.StatusCreated, nil)
	err := svc.SoftDelete(context.Background(), actor, hc.ID, transport.SoftDeleteRequest{Reason: "other", Notes: "   "})
	wantCode(t, err, apperr.KindValidation, "")

	err = svc.SoftDelete(context.Background(), actor, hc.ID, transport.SoftDeleteRequest{Reason: "other", Notes: "duplicate booking"})
	if err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if store.checks[hc.ID].DeletedAt == nil {
		t.Fatal("check not marked deleted")
	}
	last := store.history[len(store.history)-1]
	if last.ToStatus != domain.StatusDeleted {
		t.Fatalf("audit row to_status %s, want deleted", last.ToStatus)
	}

	busy := seedCheck(store, org, domain.StatusInProgress, nil)
	err = svc.SoftDelete(context.Background(), actor, busy.ID, transport.SoftDeleteRequest{Reason: "no_time"})
	wantCode(t, err, apperr.KindConflict, "invalid_state")
}

func TestBulkSoftDeleteSkipsIneligible(t *testing.T) {
	svc, store, clock := newTestService(start)
	org := uuid.New()
	actor := advisor(org)

	deletable := seedCheck(store, org, domain.StatusCreated, nil)
	already := seedCheck(store, org, domain.StatusCreated, nil)
	now := clock.Now()
	already.DeletedAt = &now
	busy := seedCheck(store, org, domain.StatusInProgress, nil)

	resp, err := svc.BulkSoftDelete(context.Background(), actor, transport.BulkDeleteRequest{
		IDs:    []uuid.UUID{deletable.ID, already.ID, busy.ID},
		Reason: "not_required",
	})
	if err != nil {
		t.Fatalf("BulkSoftDelete: %v", err)
	}
	if resp.Deleted != 1 || resp.Skipped != 2 {
		t.Fatalf("deleted=%d skipped=%d, want 1/2", resp.Deleted, resp.Skipped)
	}
}

func TestBulkSoftDeleteCap(t *testing.T) {
	svc, _, _ := newTestService(start)
	org := uuid.New()

	ids := make([]uuid.UUID, domain.MaxBulkDelete+1)
	for i := range ids {
		ids[i] = uuid.New()
	}
	_, err := svc.BulkSoftDelete(context.Background(), advisor(org), transport.BulkDeleteRequest{IDs: ids, Reason: "no_show"})
	wantCode(t, err, apperr.KindValidation, "")
}

func TestRestore(t *testing.T) {
	svc, store, clock := newTestService(start)
	org := uuid.New()
	actor := advisor(org)

	hc := seedCheck(store, org, domain.StatusAssigned, nil)
	now := clock.Now()
	hc.DeletedAt = &now
	hc.Status = domain.StatusAssigned

	resp, err := svc.Restore(context.Background(), actor, hc.ID)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if resp.Status != "created" || resp.DeletedAt != nil {
		t.Fatalf("restore result %+v", resp)
	}
	last := store.history[len(store.history)-1]
	if last.FromStatus == nil || *last.FromStatus != domain.StatusDeleted || last.ToStatus != domain.StatusCreated {
		t.Fatalf("audit row %v -> %v", last.FromStatus, last.ToStatus)
	}

	_, err = svc.Restore(context.Background(), actor, hc.ID)
	wantCode(t, err, apperr.KindConflict, "not_deleted")
}

var hexToken = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestPublishSetsTokenAndExpiry(t *testing.T) {
	svc, store, _ := newTestService(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	org := uuid.New()
	hc := seedCheck(store, org, domain.StatusReadyToSend, nil)

	resp, err := svc.Publish(context.Background(), advisor(org), hc.ID, transport.PublishRequest{ExpiresInDays: 7})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if resp.Status != "sent" {
		t.Fatalf("expected sent, got %s", resp.Status)
	}
	want := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	if !resp.ExpiresAt.Equal(want) {
		t.Fatalf("expiry %v, want %v", resp.ExpiresAt, want)
	}

	row := store.checks[hc.ID]
	if row.PublicToken == nil || !hexToken.MatchString(*row.PublicToken) {
		t.Fatalf("token %v is not 64 lowercase hex chars", row.PublicToken)
	}
	if row.SentAt == nil || row.Status != domain.StatusSent {
		t.Fatalf("row after publish %+v", row)
	}
}

func TestRepublishIssuesFreshToken(t *testing.T) {
	svc, store, clock := newTestService(start)
	org := uuid.New()
	hc := seedCheck(store, org, domain.StatusReadyToSend, nil)
	actor := advisor(org)

	if _, err := svc.Publish(context.Background(), actor, hc.ID, transport.PublishRequest{}); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	firstToken := *store.checks[hc.ID].PublicToken

	clock.Advance(time.Hour)
	if _, err := svc.Publish(context.Background(), actor, hc.ID, transport.PublishRequest{}); err != nil {
		t.Fatalf("republish: %v", err)
	}
	if *store.checks[hc.ID].PublicToken == firstToken {
		t.Fatal("republish must mint a fresh token")
	}
	// Default TTL is 7 days from the republish.
	wantExp := clock.Now().Add(7 * 24 * time.Hour)
	if !store.checks[hc.ID].TokenExpiresAt.Equal(wantExp) {
		t.Fatalf("expiry %v, want %v", store.checks[hc.ID].TokenExpiresAt, wantExp)
	}
}

func TestPublishRejectedFromWrongStatus(t *testing.T) {
	svc, store, _ := newTestService(start)
	org := uuid.New()
	hc := seedCheck(store, org, domain.StatusCreated, nil)

	_, err := svc.Publish(context.Background(), advisor(org), hc.ID, transport.PublishRequest{})
	wantCode(t, err, apperr.KindConflict, "invalid_state")
}

func TestDetailLazyGeneration(t *testing.T) {
	svc, store, clock := newTestService(start)
	org := uuid.New()
	hc := seedCheck(store, org, domain.StatusAwaitingReview, nil)

	store.results[hc.ID] = []repository.CheckResult{
		{ID: uuid.New(), HealthCheckID: hc.ID, TemplateItemID: uuid.New(), RAGStatus: domain.RAGRed, CreatedAt: clock.Now()},
	}

	detail, err := svc.Detail(context.Background(), advisor(org), hc.ID)
	if err != nil {
		t.Fatalf("Detail: %v", err)
	}
	if len(detail.Items) != 1 {
		t.Fatalf("lazy generation expected 1 item, got %d", len(detail.Items))
	}

	// Jobs still being worked never generate on read.
	active := seedCheck(store, org, domain.StatusInProgress, nil)
	store.results[active.ID] = store.results[hc.ID]
	activeDetail, err := svc.Detail(context.Background(), advisor(org), active.ID)
	if err != nil {
		t.Fatalf("Detail: %v", err)
	}
	if len(activeDetail.Items) != 0 {
		t.Fatalf("in_progress job must not generate items, got %d", len(activeDetail.Items))
	}
}
