// Package actions executes the ordered, named data lookups a winning rule
// requests, chaining intermediate results so later actions can consume
// earlier ones.
package actions

// Result is the outcome of one action. Error is set iff OK is false.
type Result struct {
	Name  string         `json:"name"`
	OK    bool           `json:"ok"`
	Data  map[string]any `json:"data,omitempty"`
	Error string         `json:"error,omitempty"`
}

// UserInfo identifies the requesting user inside an action context.
type UserInfo struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// TenantInfo identifies the tenant inside an action context.
type TenantInfo struct {
	ID      string `json:"id"`
	OrgType string `json:"org_type"`
}

// Context carries one request's inputs through an action chain. It is owned
// by a single decision request and never shared. Runtime accumulates the
// data of prior successful actions; it only grows within one run and is
// discarded with the context.
type Context struct {
	Question string
	Fields   map[string]any
	User     UserInfo
	Tenant   TenantInfo
	Runtime  map[string]any
}

// Func implements one named action against a tenant's data.
type Func func(tenantID string, ctx *Context) Result

// Output is the merged outcome of one action run.
type Output struct {
	Data    map[string]any `json:"data"`
	Results []Result       `json:"action_results"`
}
