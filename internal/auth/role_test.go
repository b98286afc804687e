// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package auth

import "testing"

func TestDeriveRole(t *testing.T) {
	tests := []struct {
		name   string
		claims RoleClaims
		want   Role
	}{
		{"empty", RoleClaims{}, RoleViewer},
		{"admin", RoleClaims{Role: "admin"}, RoleAdmin},
		{"trim and case", RoleClaims{Role: "  Administrator "}, RoleAdmin},
		{"superadmin", RoleClaims{Role: "SUPERADMIN"}, RoleAdmin},
		{"surveyor", RoleClaims{Role: "surveyor"}, RoleInspector},
		{"engineer in list", RoleClaims{Roles: []string{"engineer"}}, RoleInspector},
		{"field", RoleClaims{Role: "Field"}, RoleInspector},
		{"unknown", RoleClaims{Role: "authenticated"}, RoleViewer},
		{"highest wins", RoleClaims{Role: "viewer", Roles: []string{"field", "admin"}}, RoleAdmin},
		{"list beats role", RoleClaims{Role: "viewer", Roles: []string{"inspector"}}, RoleInspector},
		{"unknowns ignored", RoleClaims{Roles: []string{"owner", "", "inspector"}}, RoleInspector},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveRole(tt.claims); got != tt.want {
				t.Errorf("DeriveRole(%+v) = %s, want %s", tt.claims, got, tt.want)
			}
		})
	}
}

func TestRoleAtLeast(t *testing.T) {
	if !RoleAdmin.AtLeast(RoleInspector) || !RoleInspector.AtLeast(RoleInspector) {
		t.Error("admin and inspector should satisfy inspector")
	}
	if RoleViewer.AtLeast(RoleInspector) {
		t.Error("viewer should not satisfy inspector")
	}
	if Role("ghost").AtLeast(RoleViewer) {
		t.Error("unknown role should not satisfy viewer")
	}
}

func TestNormalizeRole(t *testing.T) {
	if r, ok := NormalizeRole(" Engineer"); !ok || r != RoleInspector {
		t.Errorf("NormalizeRole(Engineer) = %s, %v", r, ok)
	}
	if _, ok := NormalizeRole("owner"); ok {
		t.Error("owner should not normalize")
	}
}
