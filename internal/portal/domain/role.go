package domain

import "time"

// Permission is a bitmask of capabilities attached to a role.
type Permission uint8

const (
	PermOrgAdmin     Permission = 0x01
	PermSubmitSample Permission = 0x02
	PermAddAccount   Permission = 0x04
	PermSLAActions   Permission = 0x08
	PermAdminister   Permission = 0x80
)

// Has reports whether every bit of p2 is set in p.
func (p Permission) Has(p2 Permission) bool {
	return p&p2 == p2
}

type Role struct {
	ID          string
	Name        string
	Permissions Permission
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Built-in roles seeded at startup.
const (
	RoleConstituent    = "Constituent"    // 0x07
	RoleSLAConstituent = "SLA Constituent" // 0x0f
	RoleAdministrator  = "Administrator"  // 0xff
)

// IsSLA reports whether the role carries SLA privileges without being a
// full administrator. Used to pick the registration role for SLA users.
func (r Role) IsSLA() bool {
	return r.Permissions != 0xff && r.Permissions.Has(PermSLAActions)
}
