package service

import (
	"testing"
	"time"

	"workshop_portal_backend/internal/healthchecks/domain"
	"workshop_portal_backend/internal/healthchecks/repository"

	"github.com/google/uuid"
)

func TestBuildSummary(t *testing.T) {
	now := time.Now()
	approvedDone := repository.RepairItem{
		ID: uuid.New(), RAGStatus: domain.RAGRed, IsVisible: true,
		TotalPriceCents: 12000, WorkCompletedAt: &now,
	}
	approvedOutstanding := repository.RepairItem{
		ID: uuid.New(), RAGStatus: domain.RAGAmber, IsVisible: true,
		TotalPriceCents: 8000,
	}
	declined := repository.RepairItem{
		ID: uuid.New(), RAGStatus: domain.RAGAmber, IsVisible: true,
		TotalPriceCents: 3000,
	}
	undecided := repository.RepairItem{
		ID: uuid.New(), RAGStatus: domain.RAGGreen, IsVisible: true,
		TotalPriceCents: 1000,
	}
	hidden := repository.RepairItem{
		ID: uuid.New(), RAGStatus: domain.RAGRed, IsVisible: false,
		TotalPriceCents: 99000,
	}

	items := []repository.RepairItem{approvedDone, approvedOutstanding, declined, undecided, hidden}
	auths := []repository.Authorization{
		{RepairItemID: approvedDone.ID, Decision: repository.DecisionApproved},
		{RepairItemID: approvedOutstanding.ID, Decision: repository.DecisionApproved},
		{RepairItemID: declined.ID, Decision: repository.DecisionDeclined},
	}

	got := BuildSummary(items, auths)

	if got.RAGCounts.Red != 2 || got.RAGCounts.Amber != 2 || got.RAGCounts.Green != 1 {
		t.Fatalf("rag counts %+v", got.RAGCounts)
	}
	if got.TotalIdentifiedCents != 24000 {
		t.Fatalf("identified %d, want 24000 (hidden item excluded)", got.TotalIdentifiedCents)
	}
	if got.TotalAuthorisedCents != 20000 {
		t.Fatalf("authorised %d, want 20000", got.TotalAuthorisedCents)
	}
	if got.DeclinedCount != 1 {
		t.Fatalf("declined %d, want 1", got.DeclinedCount)
	}
	if got.WorkCompletedCount != 1 || got.WorkCompletedValueCents != 12000 {
		t.Fatalf("completed %d/%d, want 1/12000", got.WorkCompletedCount, got.WorkCompletedValueCents)
	}
	if got.OutstandingCount != 3 || got.OutstandingValueCents != 12000 {
		t.Fatalf("outstanding %d/%d, want 3/12000", got.OutstandingCount, got.OutstandingValueCents)
	}
}

func TestBuildSummaryEmpty(t *testing.T) {
	got := BuildSummary(nil, nil)
	if got.TotalIdentifiedCents != 0 || got.OutstandingCount != 0 {
		t.Fatalf("empty summary %+v", got)
	}
}
