// Package access holds the role hierarchy, capability predicates and the
// action permission table. Everything here is pure: no I/O, no clock.
package access

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidRole is returned by ParseRole for labels that are neither a role
// nor a known alias.
var ErrInvalidRole = errors.New("invalid role")

// Role is a company-scoped role. The zero value is not a valid role.
type Role string

const (
	RoleFieldTech  Role = "field_tech"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
)

// Roles lists the valid roles from lowest to highest.
var Roles = []Role{RoleFieldTech, RoleSupervisor, RoleAdmin}

var roleRank = map[Role]int{
	RoleFieldTech:  1,
	RoleSupervisor: 2,
	RoleAdmin:      3,
}

// roleAliases maps legacy labels still sent by older clients.
var roleAliases = map[string]Role{
	"technician":    RoleFieldTech,
	"tech":          RoleFieldTech,
	"field tech":    RoleFieldTech,
	"field-tech":    RoleFieldTech,
	"fieldtech":     RoleFieldTech,
	"employee":      RoleFieldTech,
	"manager":       RoleSupervisor,
	"lead":          RoleSupervisor,
	"foreman":       RoleSupervisor,
	"administrator": RoleAdmin,
	"owner":         RoleAdmin,
}

// ParseRole normalizes a role label received at the system boundary.
// It is the only place where free-form role strings are interpreted.
func ParseRole(s string) (Role, error) {
	label := strings.ToLower(strings.TrimSpace(s))
	if r := Role(label); r.Valid() {
		return r, nil
	}
	if r, ok := roleAliases[label]; ok {
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r ranks at or above min. Invalid roles rank below
// everything.
func (r Role) AtLeast(min Role) bool {
	return roleRank[r] >= roleRank[min] && roleRank[r] > 0
}

func (r Role) String() string {
	return string(r)
}

// Caller is the subset of an authenticated identity the policy looks at.
type Caller struct {
	UserID       uuid.UUID
	Role         Role
	CompanyID    *uuid.UUID
	IsSuperAdmin bool
}

// Company is the subset of a company record the policy looks at.
type Company struct {
	ID      uuid.UUID
	OwnerID *uuid.UUID
}

// BelongsTo reports whether the caller's profile is linked to companyID.
func (c Caller) BelongsTo(companyID uuid.UUID) bool {
	return c.CompanyID != nil && *c.CompanyID == companyID
}
