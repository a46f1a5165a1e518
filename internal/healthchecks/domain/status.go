// Package domain provides core business rules for the health-check bounded
// context: the status state machine, role policy and deletion rules.
package domain

// Status is the lifecycle state of a health check.
type Status string

const (
	StatusAwaitingArrival Status = "awaiting_arrival"
	StatusNoShow          Status = "no_show"
	StatusCreated         Status = "created"
	StatusAssigned        Status = "assigned"
	StatusInProgress      Status = "in_progress"
	StatusPaused          Status = "paused"
	StatusTechCompleted   Status = "tech_completed"
	StatusAwaitingReview  Status = "awaiting_review"
	StatusAwaitingPricing Status = "awaiting_pricing"
	StatusAwaitingParts   Status = "awaiting_parts"
	StatusReadyToSend     Status = "ready_to_send"
	StatusSent            Status = "sent"
	StatusDelivered       Status = "delivered"
	StatusOpened          Status = "opened"
	StatusPartialResponse Status = "partial_response"
	StatusAuthorized      Status = "authorized"
	StatusDeclined        Status = "declined"
	StatusExpired         Status = "expired"
	StatusCompleted       Status = "completed"
	StatusCancelled       Status = "cancelled"
)

// StatusDeleted is a pseudo-status written to the audit trail when a health
// check is soft-deleted. It is not part of the state machine and has no
// outgoing transitions; restoring a check forces status back to "created".
const StatusDeleted Status = "deleted"

// transitions is the fixed adjacency table of the status state machine.
// An empty slice marks a terminal state.
var transitions = map[Status][]Status{
	StatusAwaitingArrival: {StatusCreated, StatusNoShow, StatusCancelled},
	StatusNoShow:          {StatusAwaitingArrival, StatusCancelled},
	StatusCreated:         {StatusAssigned, StatusCancelled},
	StatusAssigned:        {StatusInProgress, StatusCancelled},
	StatusInProgress:      {StatusPaused, StatusTechCompleted, StatusCancelled},
	StatusPaused:          {StatusInProgress, StatusCancelled},
	StatusTechCompleted:   {StatusAwaitingReview, StatusAwaitingPricing},
	StatusAwaitingReview:  {StatusAwaitingPricing, StatusReadyToSend},
	StatusAwaitingPricing: {StatusAwaitingParts, StatusReadyToSend},
	StatusAwaitingParts:   {StatusReadyToSend},
	StatusReadyToSend:     {StatusSent},
	StatusSent:            {StatusDelivered, StatusExpired},
	StatusDelivered:       {StatusOpened, StatusExpired},
	StatusOpened:          {StatusPartialResponse, StatusAuthorized, StatusDeclined, StatusExpired},
	StatusPartialResponse: {StatusAuthorized, StatusDeclined, StatusExpired},
	StatusAuthorized:      {StatusCompleted},
	StatusDeclined:        {StatusCompleted},
	StatusExpired:         {StatusCompleted},
	StatusCompleted:       {},
	StatusCancelled:       {},
}

// IsValidStatus reports whether s is a member of the state machine.
// The "deleted" pseudo-status is not a member.
func IsValidStatus(s Status) bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether to is a direct successor of from in the
// transition table. It has no side effects and does not consider roles.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AllowedNext returns the statuses reachable from the given status.
func AllowedNext(from Status) []Status {
	return append([]Status(nil), transitions[from]...)
}

// IsTerminal reports whether no further transitions exist from s.
func IsTerminal(s Status) bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// InitialStatus returns the status a health check is created in:
// "assigned" when a technician is set at creation time, else "created".
func InitialStatus(hasTechnician bool) Status {
	if hasTechnician {
		return StatusAssigned
	}
	return StatusCreated
}

// AllStatuses lists every member of the state machine, in lifecycle order.
func AllStatuses() []Status {
	return []Status{
		StatusAwaitingArrival, StatusNoShow, StatusCreated, StatusAssigned,
		StatusInProgress, StatusPaused, StatusTechCompleted, StatusAwaitingReview,
		StatusAwaitingPricing, StatusAwaitingParts, StatusReadyToSend, StatusSent,
		StatusDelivered, StatusOpened, StatusPartialResponse, StatusAuthorized,
		StatusDeclined, StatusExpired, StatusCompleted, StatusCancelled,
	}
}

// publishableStatuses are the statuses from which a report can be (re)published.
var publishableStatuses = map[Status]bool{
	StatusReadyToSend: true,
	StatusSent:        true,
	StatusExpired:     true,
}

// CanPublish reports whether a report link may be issued from s.
func CanPublish(s Status) bool {
	return publishableStatuses[s]
}

// activeWorkStatuses are the statuses during which technician time tracking
// may move the check in or out of in_progress.
var activeWorkStatuses = map[Status]bool{
	StatusAssigned:   true,
	StatusInProgress: true,
	StatusPaused:     true,
}

// IsActiveWork reports whether s is a status in which a technician is
// expected to be clocking time.
func IsActiveWork(s Status) bool {
	return activeWorkStatuses[s]
}

// preInspectionStatuses are the statuses before the technician has finished
// the inspection. Repair items cannot exist yet in these statuses.
var preInspectionStatuses = map[Status]bool{
	StatusAwaitingArrival: true,
	StatusNoShow:          true,
	StatusCreated:         true,
	StatusAssigned:        true,
	StatusInProgress:      true,
	StatusPaused:          true,
	StatusCancelled:       true,
}

// InspectionFinished reports whether s is at or past tech_completed, i.e.
// findings are final and repair items may be derived from them.
func InspectionFinished(s Status) bool {
	return !preInspectionStatuses[s]
}
