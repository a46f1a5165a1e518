package domain

import "github.com/google/uuid"

// Role is a staff role within a tenant.
type Role string

const (
	RoleSuperAdmin     Role = "super_admin"
	RoleOrgAdmin       Role = "org_admin"
	RoleSiteAdmin      Role = "site_admin"
	RoleServiceAdvisor Role = "service_advisor"
	RoleTechnician     Role = "technician"
)

// IsValidRole reports whether r is a known role.
func IsValidRole(r Role) bool {
	switch r {
	case RoleSuperAdmin, RoleOrgAdmin, RoleSiteAdmin, RoleServiceAdvisor, RoleTechnician:
		return true
	}
	return false
}

// RoleSystem marks pseudo-actors for transitions nobody on staff performs:
// expiry sweeps and customer actions arriving through the public report
// link. It never appears on a user record and IsValidRole rejects it.
const RoleSystem Role = "system"

// Actor is the authenticated staff member performing an operation.
type Actor struct {
	ID             uuid.UUID
	Role           Role
	OrganizationID uuid.UUID
	SiteID         *uuid.UUID
}

// SystemActor is the pseudo-actor for transitions the service performs on
// its own behalf, such as the link expiry sweep.
func SystemActor(orgID uuid.UUID) Actor {
	return Actor{Role: RoleSystem, OrganizationID: orgID}
}

// CustomerActor is the pseudo-actor for customer actions arriving through
// the public report link. Customers have no account, so the id stays zero;
// attribution comes from the history row's source column.
func CustomerActor(orgID uuid.UUID) Actor {
	return Actor{Role: RoleSystem, OrganizationID: orgID}
}

// The technician role is the only restricted role: technicians may only act
// on checks assigned to them and may only clock or assign themselves.
// All policy checks live here so the restriction is testable independent of
// transport concerns.

// CanChangeStatus reports whether the actor may change the status of a check
// assigned to the given technician (nil when unassigned).
func CanChangeStatus(actor Actor, assignedTechnicianID *uuid.UUID) bool {
	if actor.Role != RoleTechnician {
		return true
	}
	return assignedTechnicianID != nil && *assignedTechnicianID == actor.ID
}

// CanClockFor reports whether the actor may clock time on behalf of the
// given technician.
func CanClockFor(actor Actor, technicianID uuid.UUID) bool {
	if actor.Role != RoleTechnician {
		return true
	}
	return technicianID == actor.ID
}

// CanAssignTechnician reports whether the actor may assign the given
// technician to a check. Technicians may only self-assign.
func CanAssignTechnician(actor Actor, technicianID uuid.UUID) bool {
	if actor.Role != RoleTechnician {
		return true
	}
	return technicianID == actor.ID
}
