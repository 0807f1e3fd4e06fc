// Package permission holds the static role → resource → action matrix used by
// the authorization guards. The matrix is built once at startup and passed to
// whoever needs it; nothing mutates it afterwards.
package permission

import "github.com/mesaqr/api/internal/enum"

type Resource string

const (
	ResourceOrders     Resource = "orders"
	ResourceOrderItems Resource = "order_items"
	ResourceTables     Resource = "tables"
	ResourcePayments   Resource = "payments"
	ResourceSectors    Resource = "sectors"
)

type Action string

const (
	ActionRead    Action = "read"
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionCancel  Action = "cancel"
	ActionProcess Action = "process"
)

type grant struct {
	role     enum.Role
	resource Resource
	action   Action
}

// Matrix is an immutable permission table.
type Matrix struct {
	grants map[grant]struct{}
}

// Default returns the production permission matrix.
func Default() *Matrix {
	m := &Matrix{grants: make(map[grant]struct{})}

	all := []Resource{ResourceOrders, ResourceOrderItems, ResourceTables, ResourcePayments, ResourceSectors}
	allActions := []Action{ActionRead, ActionCreate, ActionUpdate, ActionCancel, ActionProcess}
	for _, role := range []enum.Role{enum.RoleSuperAdmin, enum.RoleAdmin} {
		for _, res := range all {
			m.allow(role, res, allActions...)
		}
	}

	m.allow(enum.RoleWaiter, ResourceOrders, ActionRead, ActionUpdate)
	m.allow(enum.RoleWaiter, ResourceOrderItems, ActionRead)
	m.allow(enum.RoleWaiter, ResourceTables, ActionRead, ActionUpdate)
	m.allow(enum.RoleWaiter, ResourcePayments, ActionRead, ActionProcess)
	m.allow(enum.RoleWaiter, ResourceSectors, ActionRead)

	for _, role := range []enum.Role{enum.RoleCook, enum.RoleBartender} {
		m.allow(role, ResourceOrders, ActionRead)
		m.allow(role, ResourceOrderItems, ActionRead, ActionUpdate)
		m.allow(role, ResourceSectors, ActionRead)
	}

	return m
}

func (m *Matrix) allow(role enum.Role, res Resource, actions ...Action) {
	for _, a := range actions {
		m.grants[grant{role, res, a}] = struct{}{}
	}
}

// HasPermission reports whether role may perform action on resource.
func (m *Matrix) HasPermission(role enum.Role, res Resource, action Action) bool {
	_, ok := m.grants[grant{role, res, action}]
	return ok
}

// SectorAccess reports whether role may work the console of the given sector.
// Cooks own the kitchen, bartenders own the bar, admins own every sector.
func SectorAccess(role enum.Role, sectorCode string) bool {
	switch role {
	case enum.RoleSuperAdmin, enum.RoleAdmin:
		return true
	case enum.RoleCook:
		return sectorCode == enum.SectorKitchen
	case enum.RoleBartender:
		return sectorCode == enum.SectorBar
	}
	return false
}

// HomeSector is the only sector a station role works, or "" for roles that
// are not tied to one.
func HomeSector(role enum.Role) string {
	switch role {
	case enum.RoleCook:
		return enum.SectorKitchen
	case enum.RoleBartender:
		return enum.SectorBar
	}
	return ""
}

// CanCancel reports whether role may move items or orders to CANCELLED.
func CanCancel(role enum.Role) bool {
	return role.IsAdmin()
}
