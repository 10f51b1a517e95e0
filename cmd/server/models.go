package main

import (
	"github.com/mkarvelas/krino/actions"
	"github.com/mkarvelas/krino/engine"
	"github.com/mkarvelas/krino/tenants"
)

// API request and response models.

// SignupRequest creates a tenant together with its first admin user.
type SignupRequest struct {
	TenantName string `json:"tenant_name"`
	OrgType    string `json:"org_type"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type SignupResponse struct {
	Tenant *tenants.Tenant `json:"tenant"`
	Token  TokenResponse   `json:"token"`
}

type MeResponse struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	TenantID string `json:"tenant_id"`
	OrgType  string `json:"org_type"`
}

type CreateTenantRequest struct {
	Name    string `json:"name"`
	OrgType string `json:"org_type"`
}

type CreateDocumentRequest struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// DecisionRequest is the inbound decision call: a free-text question plus
// structured fields the rules and actions may consume.
type DecisionRequest struct {
	Question string         `json:"question"`
	Fields   map[string]any `json:"fields,omitempty"`
}

// DecisionResponse is the engine decision enriched with executed action
// data and request metadata.
type DecisionResponse struct {
	engine.Decision

	Data          map[string]any   `json:"data"`
	ActionResults []actions.Result `json:"action_results"`

	TenantID    string `json:"tenant_id"`
	OrgType     string `json:"org_type"`
	RequestedBy string `json:"requested_by"`
}
