package core

import (
	"fmt"
	"strings"
)

// Role is a flat enumeration. Permissions come from the table below and
// are never derived by comparing roles.
type Role string

const (
	RoleMember      Role = "member"
	RoleSecretary   Role = "secretary"
	RoleTreasurer   Role = "treasurer"
	RoleChairperson Role = "chairperson"
)

// Capability names one thing a role may do.
type Capability string

const (
	CapEditLedger       Capability = "edit_ledger"
	CapInitializeLedger Capability = "initialize_ledger"
	CapRecordPayout     Capability = "record_payout"
	CapManageMembers    Capability = "manage_members"
)

var permissions = map[Role]map[Capability]bool{
	RoleMember:    {},
	RoleSecretary: {CapManageMembers: true},
	RoleTreasurer: {
		CapEditLedger:       true,
		CapInitializeLedger: true,
		CapRecordPayout:     true,
	},
	RoleChairperson: {
		CapEditLedger:       true,
		CapInitializeLedger: true,
		CapRecordPayout:     true,
		CapManageMembers:    true,
	},
}

// Wire values used by the original group application.
var roleAliases = map[string]Role{
	"user":         RoleMember,
	"katibu":       RoleSecretary,
	"mweka_hazina": RoleTreasurer,
	"mwenyekiti":   RoleChairperson,
}

// ParseRole accepts both the English role names and the Swahili aliases.
func ParseRole(s string) (Role, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if r := Role(s); r.IsValid() {
		return r, nil
	}
	if r, ok := roleAliases[s]; ok {
		return r, nil
	}
	return "", Invalid("role", fmt.Errorf("%w: %q", ErrInvalidRole, s))
}

func (r Role) IsValid() bool {
	_, ok := permissions[r]
	return ok
}

func (r Role) String() string { return string(r) }

// Roles returns every role in privilege order.
func Roles() []Role {
	return []Role{RoleMember, RoleSecretary, RoleTreasurer, RoleChairperson}
}

// Can looks the capability up in the permission table.
func Can(role Role, c Capability) bool {
	return permissions[role][c]
}

// CanEdit reports whether role may edit ledger cells. It is false whenever
// no period is selected.
func CanEdit(role Role, hasActivePeriod bool) bool {
	return hasActivePeriod && Can(role, CapEditLedger)
}

// Session carries the caller's identity and selection explicitly into
// every core operation.
type Session struct {
	ActorID  string
	Role     Role
	PeriodID string
}

func (s Session) HasActivePeriod() bool {
	return strings.TrimSpace(s.PeriodID) != ""
}

// CanEdit is re-evaluated on each call; nothing is cached on the session.
func (s Session) CanEdit() bool {
	return CanEdit(s.Role, s.HasActivePeriod())
}

// Require returns a PreconditionError unless the session holds c.
// Ledger capabilities additionally require an active period.
func (s Session) Require(c Capability) error {
	if strings.TrimSpace(s.ActorID) == "" {
		return Denied("no authenticated actor")
	}
	if c != CapManageMembers && !s.HasActivePeriod() {
		return Conflict("no active contribution period selected")
	}
	return s.RequireRole(c)
}

// RequireRole checks the actor and permission table only. It is used for
// operations that do not act on a selected period, such as opening one.
func (s Session) RequireRole(c Capability) error {
	if strings.TrimSpace(s.ActorID) == "" {
		return Denied("no authenticated actor")
	}
	if !Can(s.Role, c) {
		return Denied("role %q may not %s", s.Role, strings.ReplaceAll(string(c), "_", " "))
	}
	return nil
}
