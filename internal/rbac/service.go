package rbac

import (
	"slices"

	"github.com/assistente-financeiro/assistente-financeiro/internal/users"
)

// Checker evaluates a permission table.
type Checker struct {
	table Table
}

// NewChecker returns a Checker over table. A nil table selects DefaultTable.
func NewChecker(table Table) *Checker {
	if table == nil {
		table = DefaultTable
	}
	return &Checker{table: table}
}

// HasPermission reports whether user may perform action on resource. It fails closed: a nil
// user, an unknown role or an unknown resource is denied.
func (c *Checker) HasPermission(user *users.User, resource, action string) bool {
	if user == nil {
		return false
	}
	resources, ok := c.table[user.Role]
	if !ok {
		return false
	}
	actions, ok := resources[resource]
	if !ok {
		return false
	}
	return slices.Contains(actions, action)
}

// Grants returns a copy of the resources and actions granted to user's role.
func (c *Checker) Grants(user *users.User) map[string][]string {
	out := make(map[string][]string)
	if user == nil {
		return out
	}
	for resource, actions := range c.table[user.Role] {
		out[resource] = slices.Clone(actions)
	}
	return out
}

// HasPermission evaluates DefaultTable.
func HasPermission(user *users.User, resource, action string) bool {
	return defaultChecker.HasPermission(user, resource, action)
}

var defaultChecker = NewChecker(DefaultTable)
