// Package authz decides which roles may perform which API operations and
// resolves authentication keys to users.
package authz

import (
	"fmt"
	"strings"

	"github.com/septivank/weather-readings-api/internal/db"
)

// Operation is a protected group of API actions sharing one allow-list
type Operation uint8

const (
	OpReadReadings Operation = iota + 1
	OpCreateReadings
	OpModifyReadings
	OpUpdatePrecipitation
	OpReadUsers
	OpModifyUsers
	OpManageUserRoles
)

// Operations lists every protected operation
var Operations = []Operation{
	OpReadReadings,
	OpCreateReadings,
	OpModifyReadings,
	OpUpdatePrecipitation,
	OpReadUsers,
	OpModifyUsers,
	OpManageUserRoles,
}

func (op Operation) String() string {
	switch op {
	case OpReadReadings:
		return "read_readings"
	case OpCreateReadings:
		return "create_readings"
	case OpModifyReadings:
		return "modify_readings"
	case OpUpdatePrecipitation:
		return "update_precipitation"
	case OpReadUsers:
		return "read_users"
	case OpModifyUsers:
		return "modify_users"
	case OpManageUserRoles:
		return "manage_user_roles"
	}
	return fmt.Sprintf("operation(%d)", uint8(op))
}

// DeniedMessage is the client-facing text for a rejected operation
func (op Operation) DeniedMessage() string {
	switch op {
	case OpReadReadings:
		return "The user does not have permission to get weather data readings."
	case OpCreateReadings, OpModifyReadings, OpUpdatePrecipitation:
		return "The user does not have permission to modify readings."
	case OpReadUsers, OpModifyUsers, OpManageUserRoles:
		return "The user does not have permission to access user information."
	}
	return "The user does not have permission to perform this action."
}

// RoleSet is a set of roles stored as a bitmask
type RoleSet uint8

// NewRoleSet builds a set from roles
func NewRoleSet(roles ...db.Role) RoleSet {
	var s RoleSet
	for _, r := range roles {
		s |= 1 << r
	}
	return s
}

// Has reports whether role is in the set. RoleUnknown never is.
func (s RoleSet) Has(role db.Role) bool {
	if role == db.RoleUnknown {
		return false
	}
	return s&(1<<role) != 0
}

func (s RoleSet) String() string {
	var names []string
	for _, r := range db.Roles {
		if s.Has(r) {
			names = append(names, r.String())
		}
	}
	return "{" + strings.Join(names, ",") + "}"
}

var (
	readers        = NewRoleSet(db.RoleAdmin, db.RoleTeacher, db.RoleStudent)
	writers        = NewRoleSet(db.RoleAdmin, db.RoleTeacher, db.RoleSensor)
	staff          = NewRoleSet(db.RoleAdmin, db.RoleTeacher)
	administrators = NewRoleSet(db.RoleAdmin)
)

// AllowedRoles returns the allow-list of op; an unknown operation allows nobody
func AllowedRoles(op Operation) RoleSet {
	switch op {
	case OpReadReadings:
		return readers
	case OpCreateReadings:
		return writers
	case OpModifyReadings:
		return staff
	case OpUpdatePrecipitation:
		return administrators
	case OpReadUsers:
		return staff
	case OpModifyUsers:
		return staff
	case OpManageUserRoles:
		return administrators
	}
	return 0
}

// Allowed reports whether role may perform op
func Allowed(role db.Role, op Operation) bool {
	return AllowedRoles(op).Has(role)
}
