package service

import (
	"workshop_portal_backend/internal/healthchecks/domain"
	"workshop_portal_backend/internal/healthchecks/repository"
	"workshop_portal_backend/internal/healthchecks/transport"
)

// BuildSummary computes the authorization tally for a set of repair items
// and customer decisions. It is a pure projection, recomputed on every read
// and never persisted. Hidden items are excluded from the value figures.
func BuildSummary(items []repository.RepairItem, auths []repository.Authorization) transport.SummaryResponse {
	decisions := make(map[string]repository.Decision, len(auths))
	for _, a := range auths {
		decisions[a.RepairItemID.String()] = a.Decision
	}

	var out transport.SummaryResponse
	for _, it := range items {
		switch it.RAGStatus {
		case domain.RAGGreen:
			out.RAGCounts.Green++
		case domain.RAGAmber:
			out.RAGCounts.Amber++
		case domain.RAGRed:
			out.RAGCounts.Red++
		}

		if !it.IsVisible {
			continue
		}
		out.TotalIdentifiedCents += it.TotalPriceCents

		switch decisions[it.ID.String()] {
		case repository.DecisionApproved:
			out.TotalAuthorisedCents += it.TotalPriceCents
		case repository.DecisionDeclined:
			out.DeclinedCount++
		}

		if it.WorkCompletedAt != nil {
			out.WorkCompletedCount++
			out.WorkCompletedValueCents += it.TotalPriceCents
		} else {
			out.OutstandingCount++
			out.OutstandingValueCents += it.TotalPriceCents
		}
	}
	return out
}
