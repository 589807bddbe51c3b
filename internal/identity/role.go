package identity

import (
	"fmt"
	"strings"
)

// Role is the closed set of organisational roles recognised by the messaging
// core. Roles are resolved once per session and never re-derived downstream.
type Role string

const (
	RoleUser           Role = "user"
	RoleAdmin          Role = "admin"
	RoleFinance        Role = "finance"
	RoleFinanceOfficer Role = "finance_officer"
	RoleSuperAdmin     Role = "super_admin"
)

// financeRoles is the single definition of finance-equivalent roles. Every
// visibility and bootstrap decision goes through IsFinance rather than
// comparing role strings at call sites.
var financeRoles = map[Role]struct{}{
	RoleFinance:        {},
	RoleFinanceOfficer: {},
	RoleSuperAdmin:     {},
}

// ParseRole validates a role tag, rejecting anything outside the closed set.
func ParseRole(value string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	switch role {
	case RoleUser, RoleAdmin, RoleFinance, RoleFinanceOfficer, RoleSuperAdmin:
		return role, nil
	default:
		return "", fmt.Errorf("identity: unknown role %q", value)
	}
}

// IsFinance reports whether the role belongs to the finance team.
func IsFinance(role Role) bool {
	_, ok := financeRoles[role]
	return ok
}

// IsStaff reports whether the role sees the unfiltered conversation directory
// and participates in the staff bootstrap fan-out.
func IsStaff(role Role) bool {
	return role == RoleAdmin || IsFinance(role)
}

// FinanceRoles returns the finance-equivalent role tags as strings, for use in
// database queries.
func FinanceRoles() []string {
	out := make([]string, 0, len(financeRoles))
	for role := range financeRoles {
		out = append(out, string(role))
	}
	return out
}
