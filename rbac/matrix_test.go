package rbac

import (
	"reflect"
	"testing"
)

func TestIsAuthorizedIsTotal(t *testing.T) {
	m := Default()

	for _, role := range Roles() {
		for _, resource := range Resources() {
			for _, action := range Actions() {
				// Must answer without panicking for every combination.
				_ = m.IsAuthorized(role, resource, action)
			}
		}
	}

	if m.IsAuthorized("ghost", ResourceUsers, ActionRead) {
		t.Fatal("unknown role must be denied")
	}
	if m.IsAuthorized(RoleAdmin, "widgets", ActionRead) {
		t.Fatal("unknown resource must be denied")
	}
	if m.IsAuthorized(RoleAdmin, ResourceUsers, "transmogrify") {
		t.Fatal("unknown action must be denied")
	}
}

func TestDefaultPolicy(t *testing.T) {
	m := Default()

	cases := []struct {
		role     Role
		resource Resource
		action   Action
		want     bool
	}{
		{RoleAdmin, ResourceUsers, ActionDelete, true},
		{RoleAdmin, ResourceSettings, ActionUpdate, true},
		{RoleAdmin, ResourceSettings, ActionDelete, false},
		{RoleUser, ResourceUsers, ActionRead, true},
		{RoleUser, ResourceUsers, ActionList, false},
		{RoleUser, ResourceServices, ActionList, true},
		{RoleUser, ResourceSettings, ActionUpdate, false},
		{RoleService, ResourceUsers, ActionList, true},
		{RoleService, ResourceServices, ActionRead, true},
		{RoleService, ResourceServices, ActionList, false},
		{RoleService, ResourceSettings, ActionRead, false},
	}

	for _, tc := range cases {
		got := m.IsAuthorized(tc.role, tc.resource, tc.action)
		if got != tc.want {
			t.Errorf("IsAuthorized(%s, %s, %s) = %v, want %v",
				tc.role, tc.resource, tc.action, got, tc.want)
		}
	}
}

func TestPermittedActionsSorted(t *testing.T) {
	m := Default()

	got := m.PermittedActions(RoleAdmin, ResourceSettings)
	want := []Action{ActionRead, ActionUpdate}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("PermittedActions = %v, want %v", got, want)
	}

	if got := m.PermittedActions(RoleService, ResourceSettings); len(got) != 0 {
		t.Fatalf("expected empty slice for ungranted resource, got %v", got)
	}
	if got := m.PermittedActions("ghost", ResourceUsers); got == nil || len(got) != 0 {
		t.Fatalf("expected non-nil empty slice for unknown role, got %v", got)
	}
}

func TestPermittedResources(t *testing.T) {
	m := Default()

	got := m.PermittedResources(RoleService)
	want := []Resource{ResourceServices, ResourceUsers}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("PermittedResources = %v, want %v", got, want)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	original := Default()
	clone := original.Clone()

	clone[RoleUser][ResourceUsers][ActionDelete] = struct{}{}

	if original.IsAuthorized(RoleUser, ResourceUsers, ActionDelete) {
		t.Fatal("mutating the clone leaked into the original")
	}
}

func TestValidRole(t *testing.T) {
	for _, r := range Roles() {
		if !ValidRole(r) {
			t.Errorf("ValidRole(%s) = false", r)
		}
	}
	if ValidRole("superadmin") {
		t.Fatal("ValidRole accepted a role outside the closed set")
	}
}
