package services

import "nko-map-backend/shared/database/models"

// Operation names an action subject to role-based authorization.
type Operation string

const (
	OpSubmitNPO           Operation = "npo:submit"
	OpModerateNPO         Operation = "npo:moderate"
	OpViewModerationQueue Operation = "npo:queue"
	OpViewStats           Operation = "admin:stats"
	OpListUsers           Operation = "admin:users"
	OpManageProfile       Operation = "profile:manage"
)

var allRoles = []models.Role{models.RoleUser, models.RoleModerator, models.RoleAdmin}

// Policy is the single table of which roles may perform which operation.
// Both the HTTP guard and the lifecycle controller consult it.
type Policy struct {
	rules map[Operation][]models.Role
}

// NewPolicy builds the default table. Moderation is admin-only unless
// moderatorsCanModerate is set.
func NewPolicy(moderatorsCanModerate bool) *Policy {
	staff := []models.Role{models.RoleAdmin}
	if moderatorsCanModerate {
		staff = append(staff, models.RoleModerator)
	}

	return &Policy{rules: map[Operation][]models.Role{
		OpSubmitNPO:           allRoles,
		OpManageProfile:       allRoles,
		OpModerateNPO:         staff,
		OpViewModerationQueue: staff,
		OpViewStats:           staff,
		OpListUsers:           staff,
	}}
}

func (p *Policy) Allows(role models.Role, op Operation) bool {
	for _, allowed := range p.rules[op] {
		if allowed == role {
			return true
		}
	}
	return false
}

// Roles returns the roles allowed to perform op.
func (p *Policy) Roles(op Operation) []models.Role {
	return append([]models.Role(nil), p.rules[op]...)
}

// CanSeeUnpublished reports whether role may read NPOs that are not approved.
func (p *Policy) CanSeeUnpublished(role models.Role) bool {
	return p.Allows(role, OpModerateNPO)
}
