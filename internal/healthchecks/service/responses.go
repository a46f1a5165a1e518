package service

import (
	"workshop_portal_backend/internal/healthchecks/repository"
	"workshop_portal_backend/internal/healthchecks/transport"
)

func toCheckResponse(hc *repository.HealthCheck) transport.HealthCheckResponse {
	return transport.HealthCheckResponse{
		ID:                   hc.ID,
		OrganizationID:       hc.OrganizationID,
		SiteID:               hc.SiteID,
		VehicleID:            hc.VehicleID,
		CustomerID:           hc.CustomerID,
		TemplateID:           hc.TemplateID,
		AssignedTechnicianID: hc.AssignedTechnicianID,
		AdvisorID:            hc.AdvisorID,
		Status:               string(hc.Status),
		GreenCount:           hc.GreenCount,
		AmberCount:           hc.AmberCount,
		RedCount:             hc.RedCount,
		TotalPartsCents:      hc.TotalPartsCents,
		TotalLabourCents:     hc.TotalLabourCents,
		TotalAmountCents:     hc.TotalAmountCents,
		MileageIn:            hc.MileageIn,
		MileageOut:           hc.MileageOut,
		TokenExpiresAt:       hc.TokenExpiresAt,
		SentAt:               hc.SentAt,
		FirstOpenedAt:        hc.FirstOpenedAt,
		ArrivedAt:            hc.ArrivedAt,
		ClosedAt:             hc.ClosedAt,
		DeletedAt:            hc.DeletedAt,
		DeleteReason:         hc.DeleteReason,
		CreatedAt:            hc.CreatedAt,
		UpdatedAt:            hc.UpdatedAt,
	}
}

func toItemResponse(it *repository.RepairItem) transport.RepairItemResponse {
	return transport.RepairItemResponse{
		ID:              it.ID,
		CheckResultID:   it.CheckResultID,
		Title:           it.Title,
		Description:     it.Description,
		RAGStatus:       string(it.RAGStatus),
		PartsCostCents:  it.PartsCostCents,
		LabourCostCents: it.LabourCostCents,
		TotalPriceCents: it.TotalPriceCents,
		IsVisible:       it.IsVisible,
		IsApproved:      it.IsApproved,
		IsMOTFailure:    it.IsMOTFailure,
		FollowUpDate:    it.FollowUpDate,
		WorkCompletedAt: it.WorkCompletedAt,
		SortOrder:       it.SortOrder,
		CreatedAt:       it.CreatedAt,
		UpdatedAt:       it.UpdatedAt,
	}
}

func toItemResponses(items []repository.RepairItem) []transport.RepairItemResponse {
	out := make([]transport.RepairItemResponse, len(items))
	for i := range items {
		out[i] = toItemResponse(&items[i])
	}
	return out
}

func toResultResponses(results []repository.CheckResult) []transport.CheckResultResponse {
	out := make([]transport.CheckResultResponse, len(results))
	for i, r := range results {
		out[i] = transport.CheckResultResponse{
			ID:               r.ID,
			TemplateItemID:   r.TemplateItemID,
			TemplateItemName: r.TemplateItemName,
			RAGStatus:        string(r.RAGStatus),
			Value:            r.Value,
			Notes:            r.Notes,
			IsMOTFailure:     r.IsMOTFailure,
			CreatedAt:        r.CreatedAt,
		}
	}
	return out
}

func toEntryResponse(e *repository.TimeEntry) transport.TimeEntryResponse {
	return transport.TimeEntryResponse{
		ID:              e.ID,
		TechnicianID:    e.TechnicianID,
		ClockInAt:       e.ClockInAt,
		ClockOutAt:      e.ClockOutAt,
		DurationMinutes: e.DurationMinutes,
	}
}

func toEntryResponses(entries []repository.TimeEntry) []transport.TimeEntryResponse {
	out := make([]transport.TimeEntryResponse, len(entries))
	for i := range entries {
		out[i] = toEntryResponse(&entries[i])
	}
	return out
}

func toHistoryResponses(rows []repository.HistoryRow) []transport.HistoryEntryResponse {
	out := make([]transport.HistoryEntryResponse, len(rows))
	for i, h := range rows {
		var from *string
		if h.FromStatus != nil {
			v := string(*h.FromStatus)
			from = &v
		}
		out[i] = transport.HistoryEntryResponse{
			ID:         h.ID,
			FromStatus: from,
			ToStatus:   string(h.ToStatus),
			ActorID:    h.ActorID,
			Source:     h.Source,
			Notes:      h.Notes,
			CreatedAt:  h.CreatedAt,
		}
	}
	return out
}
