package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"workshop_portal_backend/internal/events"
	"workshop_portal_backend/internal/healthchecks/domain"
	"workshop_portal_backend/internal/healthchecks/repository"
	"workshop_portal_backend/internal/healthchecks/transport"
	"workshop_portal_backend/platform/apperr"
	"workshop_portal_backend/platform/sanitize"

	"github.com/google/uuid"
)

// newPublicToken returns 256 bits of randomness as lowercase hex.
func newPublicToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate public token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Publish issues a customer report link. Allowed from ready_to_send, sent
// and expired; republishing always mints a fresh token and expiry, so any
// previously issued link stops working.
func (s *Service) Publish(ctx context.Context, actor domain.Actor, id uuid.UUID, req transport.PublishRequest) (*transport.PublishResponse, error) {
	hc, err := s.store.GetCheck(ctx, id, actor.OrganizationID)
	if err != nil {
		return nil, err
	}
	if hc.IsDeleted() {
		return nil, apperr.Conflict("health check is deleted").WithCode("already_deleted")
	}
	if !domain.CanPublish(hc.Status) {
		return nil, apperr.Conflict(fmt.Sprintf("cannot publish from status %s", hc.Status)).
			WithCode("invalid_state").
			WithDetails(map[string]string{"current": string(hc.Status)})
	}

	token, err := newPublicToken()
	if err != nil {
		return nil, err
	}

	days := req.ExpiresInDays
	if days <= 0 {
		days = s.linkTTLDays
	}
	now := s.now()
	expiresAt := now.Add(time.Duration(days) * 24 * time.Hour)

	if _, err := s.transitionChecked(ctx, actor, hc, domain.StatusSent, transitionOpts{
		skipTable: hc.Status != domain.StatusReadyToSend,
		sentAt:    &now,
		token:     &token,
		tokenExp:  &expiresAt,
	}); err != nil {
		return nil, err
	}

	publicURL := strings.TrimRight(s.publicBaseURL, "/") + "/" + token

	channels := req.Channels
	if len(channels) == 0 {
		channels = []string{"email"}
	}
	if s.bus != nil {
		s.bus.Publish(ctx, events.HealthCheckPublished{
			BaseEvent:  events.NewBaseEvent(),
			CheckID:    hc.ID,
			TenantID:   hc.OrganizationID,
			CustomerID: hc.CustomerID,
			PublicURL:  publicURL,
			Channels:   channels,
			Message:    req.Message,
			SentAt:     now,
			ExpiresAt:  expiresAt,
		})
	}

	return &transport.PublishResponse{
		PublicURL: publicURL,
		ExpiresAt: expiresAt,
		Status:    string(domain.StatusSent),
	}, nil
}

// PublicView returns the customer-facing report for a valid token. The
// first view moves the check through delivered to opened and stamps
// first_opened_at once.
func (s *Service) PublicView(ctx context.Context, token string) (*transport.PublicCheckResponse, error) {
	hc, err := s.store.GetCheckByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	customer := domain.CustomerActor(hc.OrganizationID)
	switch hc.Status {
	case domain.StatusSent:
		if _, err := s.transitionChecked(ctx, customer, hc, domain.StatusDelivered, transitionOpts{source: SourceCustomer}); err != nil {
			return nil, err
		}
		hc.Status = domain.StatusDelivered
		fallthrough
	case domain.StatusDelivered:
		if _, err := s.transitionChecked(ctx, customer, hc, domain.StatusOpened, transitionOpts{source: SourceCustomer}); err != nil {
			return nil, err
		}
		hc.Status = domain.StatusOpened
		if err := s.store.MarkFirstOpened(ctx, hc.ID, s.now()); err != nil {
			return nil, err
		}
	}

	return s.buildPublicView(ctx, hc)
}

// RecordDecisions stores customer approve/decline decisions from the public
// portal and advances the check to partial_response, authorized or declined
// depending on decision coverage.
func (s *Service) RecordDecisions(ctx context.Context, token string, req transport.AuthorizeRequest) (*transport.PublicCheckResponse, error) {
	hc, err := s.store.GetCheckByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	switch hc.Status {
	case domain.StatusSent, domain.StatusDelivered, domain.StatusOpened, domain.StatusPartialResponse:
	default:
		return nil, apperr.Conflict("report is no longer accepting decisions").
			WithCode("invalid_state").
			WithDetails(map[string]string{"current": string(hc.Status)})
	}

	now := s.now()
	for _, d := range req.Items {
		item, err := s.store.GetItem(ctx, d.RepairItemID, hc.OrganizationID)
		if err != nil {
			return nil, err
		}
		if item.HealthCheckID != hc.ID || !item.IsVisible {
			return nil, apperr.NotFound("repair item not found")
		}
		if err := s.store.UpsertAuthorization(ctx, repository.Authorization{
			ID:           uuid.New(),
			RepairItemID: d.RepairItemID,
			Decision:     repository.Decision(d.Decision),
			HasSignature: d.HasSignature,
			// Customer notes arrive from the unauthenticated portal.
			Notes:        nilIfEmpty(sanitize.Text(d.Notes)),
			DecidedAt:    now,
		}); err != nil {
			return nil, err
		}
		if s.bus != nil {
			s.bus.Publish(ctx, events.CustomerResponded{
				BaseEvent:    events.NewBaseEvent(),
				CheckID:      hc.ID,
				TenantID:     hc.OrganizationID,
				RepairItemID: d.RepairItemID,
				Decision:     d.Decision,
			})
		}
	}

	target, err := s.decisionOutcome(ctx, hc)
	if err != nil {
		return nil, err
	}
	if target != hc.Status {
		customer := domain.CustomerActor(hc.OrganizationID)
		if _, err := s.transitionChecked(ctx, customer, hc, target, transitionOpts{source: SourceCustomer, skipTable: true}); err != nil {
			return nil, err
		}
		hc.Status = target
	}

	return s.buildPublicView(ctx, hc)
}

// ExpireOverdueLinks moves published checks whose report link lapsed without
// a final customer decision to expired. Called from the scheduler worker.
func (s *Service) ExpireOverdueLinks(ctx context.Context, limit int) (int, error) {
	if limit < 1 {
		limit = 100
	}
	refs, err := s.store.ListExpiredLinkRefs(ctx, s.now(), limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, ref := range refs {
		hc, err := s.store.GetCheck(ctx, ref.ID, ref.OrganizationID)
		if err != nil {
			continue
		}
		system := domain.SystemActor(ref.OrganizationID)
		if _, err := s.transitionChecked(ctx, system, hc, domain.StatusExpired, transitionOpts{source: SourceSystem}); err != nil {
			// Another worker may have advanced the check; skip it.
			if s.log != nil {
				s.log.Warn("link expiry skipped", "checkId", ref.ID, "error", err)
			}
			continue
		}
		expired++
	}
	return expired, nil
}

// decisionOutcome maps decision coverage over the visible items to a status:
// every item decided with at least one approval means authorized, every item
// declined means declined, anything in between is partial_response.
func (s *Service) decisionOutcome(ctx context.Context, hc *repository.HealthCheck) (domain.Status, error) {
	items, err := s.store.ListItems(ctx, hc.ID, hc.OrganizationID)
	if err != nil {
		return "", err
	}
	auths, err := s.store.ListAuthorizations(ctx, hc.ID, hc.OrganizationID)
	if err != nil {
		return "", err
	}
	decisions := make(map[uuid.UUID]repository.Decision, len(auths))
	for _, a := range auths {
		decisions[a.RepairItemID] = a.Decision
	}

	var visible, decided, approved int
	for _, it := range items {
		if !it.IsVisible {
			continue
		}
		visible++
		switch decisions[it.ID] {
		case repository.DecisionApproved:
			decided++
			approved++
		case repository.DecisionDeclined:
			decided++
		}
	}

	switch {
	case visible == 0 || decided == 0:
		return hc.Status, nil
	case decided < visible:
		return domain.StatusPartialResponse, nil
	case approved > 0:
		return domain.StatusAuthorized, nil
	default:
		return domain.StatusDeclined, nil
	}
}

func (s *Service) buildPublicView(ctx context.Context, hc *repository.HealthCheck) (*transport.PublicCheckResponse, error) {
	items, err := s.store.ListItems(ctx, hc.ID, hc.OrganizationID)
	if err != nil {
		return nil, err
	}
	auths, err := s.store.ListAuthorizations(ctx, hc.ID, hc.OrganizationID)
	if err != nil {
		return nil, err
	}

	visible := make([]repository.RepairItem, 0, len(items))
	for _, it := range items {
		if it.IsVisible {
			visible = append(visible, it)
		}
	}

	return &transport.PublicCheckResponse{
		Status:    string(hc.Status),
		VehicleID: hc.VehicleID,
		SentAt:    hc.SentAt,
		ExpiresAt: hc.TokenExpiresAt,
		Items:     toItemResponses(visible),
		Summary:   BuildSummary(visible, auths),
	}, nil
}
