// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package auth

import "strings"

// Role is the closed set of application roles, ordered by privilege.
type Role string

const (
	RoleViewer    Role = "viewer"
	RoleInspector Role = "inspector"
	RoleAdmin     Role = "admin"
)

// Roles lists every role, lowest privilege first.
var Roles = []Role{RoleViewer, RoleInspector, RoleAdmin}

func (r Role) String() string { return string(r) }

// rank orders roles; unknown roles rank below viewer.
func (r Role) rank() int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleInspector:
		return 2
	case RoleViewer:
		return 1
	}
	return 0
}

// AtLeast reports whether r grants at least the privileges of min.
func (r Role) AtLeast(min Role) bool {
	return r.rank() >= min.rank()
}

// RoleClaims is the raw role data carried by an identity token. Either field
// may be empty.
type RoleClaims struct {
	Role  string
	Roles []string
}

// roleSynonyms maps normalized role names to roles. Names not listed are
// ignored.
var roleSynonyms = map[string]Role{
	"admin":         RoleAdmin,
	"administrator": RoleAdmin,
	"superadmin":    RoleAdmin,

	"inspector": RoleInspector,
	"surveyor":  RoleInspector,
	"engineer":  RoleInspector,
	"field":     RoleInspector,

	"viewer": RoleViewer,
}

// NormalizeRole maps one raw role name to a Role. ok is false for names
// outside the known set.
func NormalizeRole(raw string) (role Role, ok bool) {
	role, ok = roleSynonyms[strings.ToLower(strings.TrimSpace(raw))]
	return role, ok
}

// DeriveRole returns the highest-privilege role named anywhere in c. A
// subject with no recognizable role is a viewer.
func DeriveRole(c RoleClaims) Role {
	best := RoleViewer
	consider := func(raw string) {
		if r, ok := NormalizeRole(raw); ok && r.rank() > best.rank() {
			best = r
		}
	}
	consider(c.Role)
	for _, raw := range c.Roles {
		consider(raw)
	}
	return best
}
