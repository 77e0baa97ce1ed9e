package shared

import "net/http"

// Resources guarded by the permission table.
const (
	ResourceUsers        = "users"
	ResourceTransactions = "transactions"
	ResourceCategories   = "categories"
	ResourceGoals        = "goals"
	ResourceInvestments  = "investments"
	ResourceBudget       = "budget"
	ResourceReports      = "reports"
	ResourceSettings     = "settings"
)

// Actions a role may be granted on a resource.
const (
	ActionCreate = "create"
	ActionRead   = "read"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Authorizer gates routes on a (resource, action) pair for the signed-in user.
type Authorizer interface {
	Require(resource, action string) func(http.Handler) http.Handler
}
