package service

import (
	"context"

	"workshop_portal_backend/internal/healthchecks/domain"
	"workshop_portal_backend/internal/healthchecks/repository"
	"workshop_portal_backend/internal/healthchecks/transport"
	"workshop_portal_backend/platform/apperr"

	"github.com/google/uuid"
)

// fallbackItemTitle is used when a finding's template item has no name.
const fallbackItemTitle = "Repair Item"

// GenerateRepairItems derives billable line items from the red and amber
// findings of a health check. Safe to call repeatedly.
func (s *Service) GenerateRepairItems(ctx context.Context, actor domain.Actor, checkID uuid.UUID) (*transport.GenerateItemsResponse, error) {
	hc, err := s.store.GetCheck(ctx, checkID, actor.OrganizationID)
	if err != nil {
		return nil, err
	}
	if hc.IsDeleted() {
		return nil, apperr.Conflict("health check is deleted").WithCode("already_deleted")
	}
	created, err := s.generateItems(ctx, hc)
	if err != nil {
		return nil, err
	}
	return &transport.GenerateItemsResponse{Created: created}, nil
}

// generateItems creates one repair item per red/amber finding that does not
// already have one. New items start at zero cost, visible, with sort order
// continuing after the existing items. Zero eligible findings is not an
// error. RAG counts and totals are refreshed afterwards.
func (s *Service) generateItems(ctx context.Context, hc *repository.HealthCheck) (int, error) {
	results, err := s.store.ListResults(ctx, hc.ID, hc.OrganizationID)
	if err != nil {
		return 0, err
	}

	existing, err := s.store.ListItems(ctx, hc.ID, hc.OrganizationID)
	if err != nil {
		return 0, err
	}
	covered := make(map[uuid.UUID]bool, len(existing))
	maxSort := 0
	for _, it := range existing {
		if it.CheckResultID != nil {
			covered[*it.CheckResultID] = true
		}
		if it.SortOrder > maxSort {
			maxSort = it.SortOrder
		}
	}

	var green, amber, red int
	now := s.now()
	var items []repository.RepairItem
	sort := maxSort
	for _, res := range results {
		switch res.RAGStatus {
		case domain.RAGGreen:
			green++
		case domain.RAGAmber:
			amber++
		case domain.RAGRed:
			red++
		}
		if !domain.NeedsRepairItem(res.RAGStatus) || covered[res.ID] {
			continue
		}

		title := fallbackItemTitle
		if res.TemplateItemName != nil && *res.TemplateItemName != "" {
			title = *res.TemplateItemName
		}
		description := res.Notes
		if description == nil || *description == "" {
			description = res.TemplateItemDesc
		}

		sort++
		resultID := res.ID
		items = append(items, repository.RepairItem{
			ID:             uuid.New(),
			HealthCheckID:  hc.ID,
			OrganizationID: hc.OrganizationID,
			CheckResultID:  &resultID,
			Title:          title,
			Description:    description,
			RAGStatus:      res.RAGStatus,
			IsVisible:      true,
			IsMOTFailure:   res.IsMOTFailure,
			SortOrder:      sort,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}

	if len(items) > 0 {
		if err := s.store.InsertItems(ctx, items); err != nil {
			return 0, err
		}
	}
	if len(results) > 0 {
		if err := s.store.UpdateRAGCounts(ctx, hc.ID, hc.OrganizationID, green, amber, red); err != nil {
			return 0, err
		}
	}
	if err := s.recomputeTotals(ctx, hc.ID, hc.OrganizationID); err != nil {
		return 0, err
	}
	return len(items), nil
}

// CreateRepairItem adds a manual line item not backed by a finding.
func (s *Service) CreateRepairItem(ctx context.Context, actor domain.Actor, checkID uuid.UUID, req transport.CreateRepairItemRequest) (*transport.RepairItemResponse, error) {
	hc, err := s.store.GetCheck(ctx, checkID, actor.OrganizationID)
	if err != nil {
		return nil, err
	}
	if hc.IsDeleted() {
		return nil, apperr.Conflict("health check is deleted").WithCode("already_deleted")
	}

	existing, err := s.store.ListItems(ctx, hc.ID, hc.OrganizationID)
	if err != nil {
		return nil, err
	}
	maxSort := 0
	for _, it := range existing {
		if it.SortOrder > maxSort {
			maxSort = it.SortOrder
		}
	}

	visible := true
	if req.IsVisible != nil {
		visible = *req.IsVisible
	}

	now := s.now()
	item := repository.RepairItem{
		ID:              uuid.New(),
		HealthCheckID:   hc.ID,
		OrganizationID:  hc.OrganizationID,
		Title:           req.Title,
		Description:     nilIfEmpty(req.Description),
		RAGStatus:       domain.RAGStatus(req.RAGStatus),
		PartsCostCents:  req.PartsCostCents,
		LabourCostCents: req.LabourCostCents,
		TotalPriceCents: req.PartsCostCents + req.LabourCostCents,
		IsVisible:       visible,
		IsMOTFailure:    req.IsMOTFailure,
		FollowUpDate:    req.FollowUpDate,
		SortOrder:       maxSort + 1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.InsertItems(ctx, []repository.RepairItem{item}); err != nil {
		return nil, err
	}
	if err := s.recomputeTotals(ctx, hc.ID, hc.OrganizationID); err != nil {
		return nil, err
	}

	resp := toItemResponse(&item)
	return &resp, nil
}

// UpdateRepairItem applies the supplied fields to a line item. A parts or
// labour change recomputes the line total; a direct total write overrides it
// and leaves the breakdown untouched. Totals are recomputed afterwards.
func (s *Service) UpdateRepairItem(ctx context.Context, actor domain.Actor, checkID, itemID uuid.UUID, req transport.UpdateRepairItemRequest) (*transport.RepairItemResponse, error) {
	item, err := s.store.GetItem(ctx, itemID, actor.OrganizationID)
	if err != nil {
		return nil, err
	}
	if item.HealthCheckID != checkID {
		return nil, apperr.NotFound("repair item not found")
	}

	if req.Title != nil {
		item.Title = *req.Title
	}
	if req.Description != nil {
		item.Description = nilIfEmpty(*req.Description)
	}
	if req.RAGStatus != nil {
		item.RAGStatus = domain.RAGStatus(*req.RAGStatus)
	}
	if req.IsVisible != nil {
		item.IsVisible = *req.IsVisible
	}
	if req.IsApproved != nil {
		item.IsApproved = *req.IsApproved
	}
	if req.FollowUpDate != nil {
		item.FollowUpDate = req.FollowUpDate
	}
	if req.SortOrder != nil {
		item.SortOrder = *req.SortOrder
	}

	costChanged := req.PartsCostCents != nil || req.LabourCostCents != nil
	if req.PartsCostCents != nil {
		item.PartsCostCents = *req.PartsCostCents
	}
	if req.LabourCostCents != nil {
		item.LabourCostCents = *req.LabourCostCents
	}
	switch {
	case costChanged:
		item.TotalPriceCents = item.PartsCostCents + item.LabourCostCents
	case req.TotalPriceCents != nil:
		// Direct override; parts and labour keep their old values.
		item.TotalPriceCents = *req.TotalPriceCents
	}

	if req.WorkCompleted != nil {
		if *req.WorkCompleted {
			if item.WorkCompletedAt == nil {
				now := s.now()
				actorID := actor.ID
				item.WorkCompletedAt = &now
				item.WorkCompletedBy = &actorID
			}
		} else {
			item.WorkCompletedAt = nil
			item.WorkCompletedBy = nil
		}
	}

	item.UpdatedAt = s.now()
	if err := s.store.UpdateItem(ctx, item); err != nil {
		return nil, err
	}
	if err := s.recomputeTotals(ctx, checkID, actor.OrganizationID); err != nil {
		return nil, err
	}

	resp := toItemResponse(item)
	return &resp, nil
}

// DeleteRepairItem removes a line item permanently and refreshes totals.
func (s *Service) DeleteRepairItem(ctx context.Context, actor domain.Actor, checkID, itemID uuid.UUID) error {
	item, err := s.store.GetItem(ctx, itemID, actor.OrganizationID)
	if err != nil {
		return err
	}
	if item.HealthCheckID != checkID {
		return apperr.NotFound("repair item not found")
	}
	if err := s.store.DeleteItem(ctx, itemID, actor.OrganizationID); err != nil {
		return err
	}
	return s.recomputeTotals(ctx, checkID, actor.OrganizationID)
}

// recomputeTotals sums parts and labour over the visible items and writes
// the rollups back. Hidden items never contribute.
func (s *Service) recomputeTotals(ctx context.Context, checkID, orgID uuid.UUID) error {
	items, err := s.store.ListItems(ctx, checkID, orgID)
	if err != nil {
		return err
	}
	var parts, labour int64
	for _, it := range items {
		if !it.IsVisible {
			continue
		}
		parts += it.PartsCostCents
		labour += it.LabourCostCents
	}
	return s.store.UpdateCheckTotals(ctx, checkID, orgID, parts, labour, parts+labour)
}
