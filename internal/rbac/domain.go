// Package rbac answers whether a role may perform an action on a resource.
package rbac

import (
	"github.com/assistente-financeiro/assistente-financeiro/internal/shared"
	"github.com/assistente-financeiro/assistente-financeiro/internal/users"
)

// Table maps role to resource to the set of allowed actions.
type Table map[users.Role]map[string][]string

var crud = []string{shared.ActionCreate, shared.ActionRead, shared.ActionUpdate, shared.ActionDelete}

var readUpdate = []string{shared.ActionRead, shared.ActionUpdate}

// DefaultTable is the permission table in force. It is not persisted and never changes at
// runtime.
var DefaultTable = Table{
	users.RoleAdmin: {
		shared.ResourceUsers:        crud,
		shared.ResourceTransactions: crud,
		shared.ResourceCategories:   crud,
		shared.ResourceGoals:        crud,
		shared.ResourceInvestments:  crud,
		shared.ResourceBudget:       readUpdate,
		shared.ResourceReports:      {shared.ActionRead},
		shared.ResourceSettings:     readUpdate,
	},
	users.RoleUser: {
		shared.ResourceUsers:        {shared.ActionRead},
		shared.ResourceTransactions: crud,
		shared.ResourceCategories:   crud,
		shared.ResourceGoals:        crud,
		shared.ResourceInvestments:  crud,
		shared.ResourceBudget:       readUpdate,
		shared.ResourceReports:      {shared.ActionRead},
		shared.ResourceSettings:     readUpdate,
	},
}
