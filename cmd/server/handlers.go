package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mkarvelas/krino/actions"
	"github.com/mkarvelas/krino/ruleset"
	"github.com/mkarvelas/krino/tenants"
)

type contextKey string

const userContextKey contextKey = "user"

// requireUser authenticates the Bearer token and loads the user into the
// request context.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			respondError(w, http.StatusUnauthorized, "missing bearer token", nil)
			return
		}

		claims, err := s.auth.ParseToken(token)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid token", nil)
			return
		}

		user, err := s.store.GetUser(claims.Subject)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid token user", nil)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFrom(r *http.Request) *tenants.User {
	user, _ := r.Context().Value(userContextKey).(*tenants.User)
	return user
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "krino",
	})
}

// handleSignup creates a tenant and its first admin user, returning an
// access token.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.TenantName == "" || req.OrgType == "" || req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "tenant_name, org_type, email and password are required", nil)
		return
	}

	tenant := &tenants.Tenant{Name: req.TenantName, OrgType: req.OrgType}
	if err := s.store.CreateTenant(tenant); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create tenant", err)
		return
	}

	hash, err := s.auth.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to hash password", err)
		return
	}

	user := &tenants.User{Email: req.Email, PasswordHash: hash, Role: "admin", TenantID: tenant.ID}
	if err := s.store.CreateUser(user); err != nil {
		if errors.Is(err, tenants.ErrEmailTaken) {
			respondError(w, http.StatusConflict, "email already registered", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to create user", err)
		return
	}

	token, err := s.auth.IssueToken(user.ID, tenant.ID, user.Role)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to issue token", err)
		return
	}

	respondJSON(w, http.StatusCreated, SignupResponse{
		Tenant: tenant,
		Token:  TokenResponse{AccessToken: token, TokenType: "bearer"},
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	user, err := s.store.GetUserByEmail(req.Email)
	if err != nil || !s.auth.VerifyPassword(req.Password, user.PasswordHash) {
		respondError(w, http.StatusUnauthorized, "invalid credentials", nil)
		return
	}

	token, err := s.auth.IssueToken(user.ID, user.TenantID, user.Role)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to issue token", err)
		return
	}

	respondJSON(w, http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	tenant, err := s.store.GetTenant(user.TenantID)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "tenant not found", nil)
		return
	}

	respondJSON(w, http.StatusOK, MeResponse{
		UserID:   user.ID,
		Email:    user.Email,
		Role:     user.Role,
		TenantID: tenant.ID,
		OrgType:  tenant.OrgType,
	})
}

func (s *Server) handleListTenants(w http.ResponseWriter, r *http.Request) {
	all, err := s.store.ListTenants()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list tenants", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"tenants": all})
}

func (s *Server) handleCreateTenant(w http.ResponseWriter, r *http.Request) {
	var req CreateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Name == "" || req.OrgType == "" {
		respondError(w, http.StatusBadRequest, "name and org_type are required", nil)
		return
	}

	tenant := &tenants.Tenant{Name: req.Name, OrgType: req.OrgType}
	if err := s.store.CreateTenant(tenant); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create tenant", err)
		return
	}
	respondJSON(w, http.StatusCreated, tenant)
}

func (s *Server) handleGetTenant(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.authorizedTenant(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, tenant)
}

// handleDecision matches the question against the tenant's ruleset, runs
// the winning rule's actions and returns the merged result.
func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.authorizedTenant(w, r)
	if !ok {
		return
	}

	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Question == "" {
		respondError(w, http.StatusBadRequest, "question is required", nil)
		return
	}

	user := userFrom(r)
	start := time.Now()

	decision, err := s.engine.Decide(tenant.OrgType, req.Question, req.Fields)
	if err != nil {
		var loadErr *ruleset.LoadError
		if errors.As(err, &loadErr) {
			respondError(w, http.StatusInternalServerError, "ruleset is invalid", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "decision failed", err)
		return
	}

	actx := &actions.Context{
		Question: req.Question,
		Fields:   req.Fields,
		User:     actions.UserInfo{Email: user.Email, Role: user.Role},
		Tenant:   actions.TenantInfo{ID: tenant.ID, OrgType: tenant.OrgType},
	}
	out := s.runner.Run(tenant.ID, decision.Actions, actx)

	s.metrics.ObserveDecision(tenant.OrgType, decision.Decision, time.Since(start))
	for _, res := range out.Results {
		s.metrics.ObserveAction(res.Name, res.OK)
	}

	respondJSON(w, http.StatusOK, DecisionResponse{
		Decision:      *decision,
		Data:          out.Data,
		ActionResults: out.Results,
		TenantID:      tenant.ID,
		OrgType:       tenant.OrgType,
		RequestedBy:   user.Email,
	})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.authorizedTenant(w, r)
	if !ok {
		return
	}

	docs, err := s.store.ListDocuments(tenant.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list documents", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.authorizedTenant(w, r)
	if !ok {
		return
	}

	var req CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Filename == "" {
		respondError(w, http.StatusBadRequest, "filename is required", nil)
		return
	}

	doc := &tenants.Document{
		TenantID:   tenant.ID,
		Filename:   req.Filename,
		Size:       req.Size,
		UploadedBy: userFrom(r).Email,
	}
	if err := s.store.CreateDocument(doc); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create document", err)
		return
	}
	respondJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.authorizedTenant(w, r)
	if !ok {
		return
	}

	docID := chi.URLParam(r, "documentId")
	if err := s.store.DeleteDocument(tenant.ID, docID); err != nil {
		respondError(w, http.StatusNotFound, "document not found", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// authorizedTenant resolves the {tenantId} URL parameter and enforces that
// the authenticated user belongs to it.
func (s *Server) authorizedTenant(w http.ResponseWriter, r *http.Request) (*tenants.Tenant, bool) {
	tenantID := chi.URLParam(r, "tenantId")
	user := userFrom(r)

	if user == nil || user.TenantID != tenantID {
		respondError(w, http.StatusForbidden, "tenant access denied", nil)
		return nil, false
	}

	tenant, err := s.store.GetTenant(tenantID)
	if err != nil {
		respondError(w, http.StatusNotFound, "tenant not found", nil)
		return nil, false
	}
	return tenant, true
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]string{"error": message}
	if err != nil {
		response["details"] = err.Error()
	}
	respondJSON(w, status, response)
}
