// Package transport defines the staff API types.
package transport

import (
	"time"

	"github.com/google/uuid"
)

// StaffMemberResponse is the API representation of one staff member.
type StaffMemberResponse struct {
	ID        uuid.UUID  `json:"id"`
	SiteID    *uuid.UUID `json:"siteId,omitempty"`
	Email     string     `json:"email"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Role      string     `json:"role"`
	CreatedAt time.Time  `json:"createdAt"`
}

// StaffListResponse is the list of staff members for an organization.
type StaffListResponse struct {
	Items []StaffMemberResponse `json:"items"`
}
