package rbac

import "sort"

// Role is one of the closed set of roles a principal can hold.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleUser    Role = "user"
	RoleService Role = "service"
)

// Resource is a protected resource class.
type Resource string

const (
	ResourceUsers    Resource = "users"
	ResourceSettings Resource = "settings"
	ResourceServices Resource = "services"
)

// Action is an operation a role may perform on a resource.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionList   Action = "list"
)

// Roles returns the closed role set.
func Roles() []Role {
	return []Role{RoleAdmin, RoleUser, RoleService}
}

// Resources returns the closed resource set.
func Resources() []Resource {
	return []Resource{ResourceUsers, ResourceSettings, ResourceServices}
}

// Actions returns the closed action set.
func Actions() []Action {
	return []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionList}
}

// ValidRole reports whether r is a member of the closed role set.
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleUser, RoleService:
		return true
	}
	return false
}

// ActionSet is the set of actions a role holds on a single resource.
type ActionSet map[Action]struct{}

func newActionSet(actions ...Action) ActionSet {
	s := make(ActionSet, len(actions))
	for _, a := range actions {
		s[a] = struct{}{}
	}
	return s
}

// Matrix maps role -> resource -> permitted actions. A Matrix is read-only
// after construction; queries require no synchronization.
type Matrix map[Role]map[Resource]ActionSet

// Default returns the built-in policy table.
//
// Administrators fully manage users and services and may read and update
// settings. Regular users get read access plus service listing. Service
// principals read users and services for machine-to-machine calls.
func Default() Matrix {
	return Matrix{
		RoleAdmin: {
			ResourceUsers:    newActionSet(ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionList),
			ResourceSettings: newActionSet(ActionRead, ActionUpdate),
			ResourceServices: newActionSet(ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionList),
		},
		RoleUser: {
			ResourceUsers:    newActionSet(ActionRead),
			ResourceSettings: newActionSet(ActionRead),
			ResourceServices: newActionSet(ActionRead, ActionList),
		},
		RoleService: {
			ResourceUsers:    newActionSet(ActionRead, ActionList),
			ResourceServices: newActionSet(ActionRead),
		},
	}
}

// IsAuthorized reports whether role may perform action on resource.
// Absence at any level means deny.
func (m Matrix) IsAuthorized(role Role, resource Resource, action Action) bool {
	resources, ok := m[role]
	if !ok {
		return false
	}
	actions, ok := resources[resource]
	if !ok {
		return false
	}
	_, ok = actions[action]
	return ok
}

// PermittedActions returns the sorted actions role holds on resource.
// The result is empty, never nil-unsafe, for unknown roles or resources.
func (m Matrix) PermittedActions(role Role, resource Resource) []Action {
	actions, ok := m[role][resource]
	if !ok {
		return []Action{}
	}

	out := make([]Action, 0, len(actions))
	for a := range actions {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// PermittedResources returns the sorted resources role holds any action on.
func (m Matrix) PermittedResources(role Role) []Resource {
	resources, ok := m[role]
	if !ok {
		return []Resource{}
	}

	out := make([]Resource, 0, len(resources))
	for r := range resources {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clone returns a deep copy of the matrix. The engine clones the configured
// matrix at build time so later mutation of the caller's copy cannot change
// authorization decisions.
func (m Matrix) Clone() Matrix {
	out := make(Matrix, len(m))
	for role, resources := range m {
		rc := make(map[Resource]ActionSet, len(resources))
		for resource, actions := range resources {
			ac := make(ActionSet, len(actions))
			for a := range actions {
				ac[a] = struct{}{}
			}
			rc[resource] = ac
		}
		out[role] = rc
	}
	return out
}
