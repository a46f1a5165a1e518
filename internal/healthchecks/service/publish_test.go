package service

import (
	"context"
	"testing"
	"time"

	"workshop_portal_backend/internal/healthchecks/domain"
	"workshop_portal_backend/internal/healthchecks/repository"
	"workshop_portal_backend/internal/healthchecks/transport"
	"workshop_portal_backend/platform/apperr"

	"github.com/google/uuid"
)

func publishCheck(t *testing.T, svc *Service, store *fakeStore, org uuid.UUID) (*repository.HealthCheck, string) {
	t.Helper()
	hc := seedCheck(store, org, domain.StatusReadyToSend, nil)
	if _, err := svc.Publish(context.Background(), advisor(org), hc.ID, transport.PublishRequest{}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	return hc, *store.checks[hc.ID].PublicToken
}

func TestPublicViewAdvancesToOpened(t *testing.T) {
	svc, store, _ := newTestService(start)
	org := uuid.New()
	hc, token := publishCheck(t, svc, store, org)

	view, err := svc.PublicView(context.Background(), token)
	if err != nil {
		t.Fatalf("PublicView: %v", err)
	}
	if view.Status != "opened" {
		t.Fatalf("expected opened, got %s", view.Status)
	}
	row := store.checks[hc.ID]
	if row.FirstOpenedAt == nil {
		t.Fatal("first open not stamped")
	}
	stamp := *row.FirstOpenedAt

	// A second view keeps the first-open stamp and the status.
	if _, err := svc.PublicView(context.Background(), token); err != nil {
		t.Fatalf("second view: %v", err)
	}
	if !store.checks[hc.ID].FirstOpenedAt.Equal(stamp) {
		t.Fatal("first-open stamp must not move on later views")
	}
}

func TestPublicViewExpiredToken(t *testing.T) {
	svc, store, clock := newTestService(start)
	org := uuid.New()
	_, token := publishCheck(t, svc, store, org)

	clock.Advance(8 * 24 * time.Hour)
	_, err := svc.PublicView(context.Background(), token)
	wantCode(t, err, apperr.KindNotFound, "")
}

func TestPublicViewHidesInvisibleItems(t *testing.T) {
	svc, store, _ := newTestService(start)
	org := uuid.New()
	hc, token := publishCheck(t, svc, store, org)

	seedItem(store, hc, func(it *repository.RepairItem) { it.TotalPriceCents = 4000 })
	seedItem(store, hc, func(it *repository.RepairItem) {
		it.IsVisible = false
		it.TotalPriceCents = 9000
	})

	view, err := svc.PublicView(context.Background(), token)
	if err != nil {
		t.Fatalf("PublicView: %v", err)
	}
	if len(view.Items) != 1 {
		t.Fatalf("expected 1 visible item, got %d", len(view.Items))
	}
	if view.Summary.TotalIdentifiedCents != 4000 {
		t.Fatalf("identified %d, want 4000", view.Summary.TotalIdentifiedCents)
	}
}

func TestRecordDecisionsCoverage(t *testing.T) {
	cases := []struct {
		name      string
		decisions []string // one per item; "" means undecided
		want      string
	}{
		{"all approved", []string{"approved", "approved"}, "authorized"},
		{"all declined", []string{"declined", "declined"}, "declined"},
		{"mixed decided", []string{"approved", "declined"}, "authorized"},
		{"partial", []string{"approved", ""}, "partial_response"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, store, _ := newTestService(start)
			org := uuid.New()
			hc, token := publishCheck(t, svc, store, org)

			items := []*repository.RepairItem{
				seedItem(store, hc, func(it *repository.RepairItem) { it.TotalPriceCents = 5000 }),
				seedItem(store, hc, func(it *repository.RepairItem) { it.TotalPriceCents = 2000 }),
			}

			var req transport.AuthorizeRequest
			for i, d := range tc.decisions {
				if d == "" {
					continue
				}
				req.Items = append(req.Items, transport.AuthorizeItemRequest{
					RepairItemID: items[i].ID,
					Decision:     d,
				})
			}

			view, err := svc.RecordDecisions(context.Background(), token, req)
			if err != nil {
				t.Fatalf("RecordDecisions: %v", err)
			}
			if view.Status != tc.want {
				t.Fatalf("status %s, want %s", view.Status, tc.want)
			}
			if store.checks[hc.ID].Status != domain.Status(tc.want) {
				t.Fatalf("stored status %s, want %s", store.checks[hc.ID].Status, tc.want)
			}
		})
	}
}

func TestRecordDecisionsRevisedDecisionReplaces(t *testing.T) {
	svc, store, _ := newTestService(start)
	org := uuid.New()
	hc, token := publishCheck(t, svc, store, org)
	item := seedItem(store, hc, func(it *repository.RepairItem) { it.TotalPriceCents = 5000 })

	decide := func(d string) {
		t.Helper()
		if _, err := svc.RecordDecisions(context.Background(), token, transport.AuthorizeRequest{
			Items: []transport.AuthorizeItemRequest{{RepairItemID: item.ID, Decision: d}},
		}); err != nil {
			t.Fatalf("decide %s: %v", d, err)
		}
	}

	decide("declined")
	if store.checks[hc.ID].Status != domain.StatusDeclined {
		t.Fatalf("status %s, want declined", store.checks[hc.ID].Status)
	}

	decide("approved")
	auths, _ := store.ListAuthorizations(context.Background(), hc.ID, org)
	if len(auths) != 1 || auths[0].Decision != repository.DecisionApproved {
		t.Fatalf("expected one approved decision, got %+v", auths)
	}
	if store.checks[hc.ID].Status != domain.StatusAuthorized {
		t.Fatalf("status %s, want authorized", store.checks[hc.ID].Status)
	}
}

func TestRecordDecisionsRejectsForeignItem(t *testing.T) {
	svc, store, _ := newTestService(start)
	org := uuid.New()
	_, token := publishCheck(t, svc, store, org)

	other := seedCheck(store, org, domain.StatusSent, nil)
	foreign := seedItem(store, other, nil)

	_, err := svc.RecordDecisions(context.Background(), token, transport.AuthorizeRequest{
		Items: []transport.AuthorizeItemRequest{{RepairItemID: foreign.ID, Decision: "approved"}},
	})
	wantCode(t, err, apperr.KindNotFound, "")
}

func TestRecordDecisionsClosedReport(t *testing.T) {
	svc, store, _ := newTestService(start)
	org := uuid.New()
	hc, token := publishCheck(t, svc, store, org)
	store.checks[hc.ID].Status = domain.StatusCompleted

	_, err := svc.RecordDecisions(context.Background(), token, transport.AuthorizeRequest{
		Items: []transport.AuthorizeItemRequest{{RepairItemID: uuid.New(), Decision: "approved"}},
	})
	wantCode(t, err, apperr.KindConflict, "invalid_state")
}

func TestExpireOverdueLinks(t *testing.T) {
	svc, store, clock := newTestService(start)
	org := uuid.New()
	overdue, _ := publishCheck(t, svc, store, org)

	clock.Advance(8 * 24 * time.Hour)
	fresh := seedCheck(store, org, domain.StatusReadyToSend, nil)
	if _, err := svc.Publish(context.Background(), advisor(org), fresh.ID, transport.PublishRequest{}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	expired, err := svc.ExpireOverdueLinks(context.Background(), 0)
	if err != nil {
		t.Fatalf("ExpireOverdueLinks: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expired %d checks, want 1", expired)
	}
	if got := store.checks[overdue.ID].Status; got != domain.StatusExpired {
		t.Fatalf("overdue check status %s, want expired", got)
	}
	if got := store.checks[fresh.ID].Status; got != domain.StatusSent {
		t.Fatalf("fresh check status %s, want sent", got)
	}

	// A second sweep finds nothing left to expire.
	expired, err = svc.ExpireOverdueLinks(context.Background(), 0)
	if err != nil {
		t.Fatalf("ExpireOverdueLinks: %v", err)
	}
	if expired != 0 {
		t.Fatalf("expired %d checks on second sweep, want 0", expired)
	}
}
