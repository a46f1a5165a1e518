package domain

import "strings"

// DeleteReason classifies why a health check was soft-deleted.
type DeleteReason string

const (
	DeleteReasonNoShow           DeleteReason = "no_show"
	DeleteReasonNoTime           DeleteReason = "no_time"
	DeleteReasonNotRequired      DeleteReason = "not_required"
	DeleteReasonCustomerDeclined DeleteReason = "customer_declined"
	DeleteReasonVehicleIssue     DeleteReason = "vehicle_issue"
	DeleteReasonDuplicate        DeleteReason = "duplicate"
	DeleteReasonOther            DeleteReason = "other"
)

// MaxBulkDelete caps the number of ids accepted by a bulk soft-delete.
const MaxBulkDelete = 100

// IsValidDeleteReason reports whether r is a known reason.
func IsValidDeleteReason(r DeleteReason) bool {
	switch r {
	case DeleteReasonNoShow, DeleteReasonNoTime, DeleteReasonNotRequired,
		DeleteReasonCustomerDeclined, DeleteReasonVehicleIssue,
		DeleteReasonDuplicate, DeleteReasonOther:
		return true
	}
	return false
}

// deletableStatuses are the only statuses from which a check may be
// soft-deleted. Work in flight or already customer-visible must be
// cancelled or completed through the state machine instead.
var deletableStatuses = map[Status]bool{
	StatusCreated:   true,
	StatusAssigned:  true,
	StatusCancelled: true,
}

// IsDeletableStatus reports whether a check in status s may be soft-deleted.
func IsDeletableStatus(s Status) bool {
	return deletableStatuses[s]
}

// DeletionDenial explains why a check cannot be soft-deleted.
type DeletionDenial string

const (
	// DeletionOK means the check may be deleted.
	DeletionOK DeletionDenial = ""
	// DeletionAlreadyDeleted means the check is already soft-deleted.
	DeletionAlreadyDeleted DeletionDenial = "already_deleted"
	// DeletionWrongStatus means the current status is not deletable.
	DeletionWrongStatus DeletionDenial = "wrong_status"
)

// CheckDeletable validates the per-check preconditions for soft deletion.
func CheckDeletable(status Status, alreadyDeleted bool) DeletionDenial {
	if alreadyDeleted {
		return DeletionAlreadyDeleted
	}
	if !IsDeletableStatus(status) {
		return DeletionWrongStatus
	}
	return DeletionOK
}

// RequiresNotes reports whether the reason needs a free-form explanation.
// Only "other" does; blank or whitespace-only notes do not count.
func RequiresNotes(reason DeleteReason, notes string) bool {
	return reason == DeleteReasonOther && strings.TrimSpace(notes) == ""
}
