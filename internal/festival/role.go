package festival

import (
	"fmt"
	"strings"
)

// Role is the base category assigned to every account.
type Role uint8

const (
	RoleUser Role = iota + 1
	RoleSubmitter
	RoleStaff
	RoleProgrammer
	RoleAdmin
)

// Roles lists every defined role in ascending privilege order.
func Roles() []Role {
	return []Role{RoleUser, RoleSubmitter, RoleStaff, RoleProgrammer, RoleAdmin}
}

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleSubmitter:
		return "submitter"
	case RoleStaff:
		return "staff"
	case RoleProgrammer:
		return "programmer"
	case RoleAdmin:
		return "admin"
	}
	return fmt.Sprintf("role(%d)", uint8(r))
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleSubmitter, RoleStaff, RoleProgrammer, RoleAdmin:
		return true
	}
	return false
}

// IsAdmin reports whether the role carries administrative rights.
func (r Role) IsAdmin() bool {
	switch r {
	case RoleAdmin:
		return true
	case RoleUser, RoleSubmitter, RoleStaff, RoleProgrammer:
		return false
	}
	return false
}

// ParseRole converts the textual form produced by String back into a Role.
func ParseRole(value string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "user":
		return RoleUser, nil
	case "submitter":
		return RoleSubmitter, nil
	case "staff":
		return RoleStaff, nil
	case "programmer":
		return RoleProgrammer, nil
	case "admin":
		return RoleAdmin, nil
	}
	return 0, invalid("role", fmt.Sprintf("unknown role %q", value))
}
