// Package tenants persists the organizations, users and documents the
// decision service is invoked on behalf of.
package tenants

import "time"

// Tenant is one organization. OrgType selects which ruleset applies to its
// decision requests.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OrgType   string    `json:"org_type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User belongs to exactly one tenant.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	TenantID     string    `json:"tenant_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// Document is uploaded file metadata scoped to a tenant.
type Document struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	Filename   string    `json:"filename"`
	Size       int64     `json:"size"`
	UploadedBy string    `json:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at"`
}
