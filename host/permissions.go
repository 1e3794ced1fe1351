package host

import (
	"fmt"
	"strings"
)

// Role is a user role, ordered by privilege.
type Role int

const (
	RolePlayer Role = iota + 1
	RoleTrusted
	RoleAssistant
	RoleGamemaster
)

var roleNames = map[string]Role{
	"player":     RolePlayer,
	"trusted":    RoleTrusted,
	"assistant":  RoleAssistant,
	"gamemaster": RoleGamemaster,
	"gm":         RoleGamemaster,
}

func ParseRole(s string) (Role, error) {
	if r, ok := roleNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return r, nil
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

// Permissions answers the guarded actions for one user.
type Permissions struct {
	Role Role
}

func (p Permissions) IsGM() bool {
	return p.Role >= RoleAssistant
}

// CanCreateToken is required to drag actors onto a scene.
func (p Permissions) CanCreateToken() bool {
	return p.Role >= RoleAssistant
}

func (p Permissions) CanExport() bool {
	return p.Role == RoleGamemaster
}
