// Copyright 2026 Mandatevault Ltd.

package vaulthttp

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/shopspring/decimal"

	"github.com/mandatevault/mvault/api/params"
	"github.com/mandatevault/mvault/internal/auth"
	"github.com/mandatevault/mvault/internal/db"
	"github.com/mandatevault/mvault/internal/dbmodel"
	"github.com/mandatevault/mvault/internal/errors"
	"github.com/mandatevault/mvault/internal/vault"
)

// An AuthorizationHandler serves the authorization lifecycle
// endpoints.
type AuthorizationHandler struct {
	Router *chi.Mux
	Vault  *vault.Vault
}

// NewAuthorizationHandler returns a new authorization handler.
func NewAuthorizationHandler(v *vault.Vault) *AuthorizationHandler {
	return &AuthorizationHandler{Router: chi.NewRouter(), Vault: v}
}

// Routes returns the grouped routers routes with group specific
// middlewares.
func (h *AuthorizationHandler) Routes() chi.Router {
	h.SetupMiddleware()
	h.Router.Post("/", h.Create)
	h.Router.Post("/search", h.Search)
	h.Router.Get("/{id}", h.Get)
	h.Router.Post("/{id}/verify", h.Verify)
	h.Router.Delete("/{id}", h.Revoke)
	h.Router.Post("/{id}/soft-delete", h.SoftDelete)
	h.Router.Post("/{id}/restore", h.Restore)
	h.Router.Get("/{id}/evidence-pack", h.EvidencePack)
	return h.Router
}

// SetupMiddleware applies middlewares.
func (h *AuthorizationHandler) SetupMiddleware() {
	h.Router.Use(
		render.SetContentType(
			render.ContentTypeJSON,
		),
	)
}

// Create handles POST /authorizations.
func (h *AuthorizationHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := auth.IdentityFromContext(ctx)
	var req params.CreateAuthorizationRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, errors.E(errors.CodeBadRequest, "invalid request body"))
		return
	}
	a, err := h.Vault.CreateAuthorization(ctx, id, vault.CreateAuthorizationArgs{
		TenantID:      req.TenantID,
		Protocol:      req.Protocol,
		Payload:       req.Payload,
		RetentionDays: req.RetentionDays,
		ExpectedScope: req.ExpectedScope,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toAPIAuthorization(a))
}

// Get handles GET /authorizations/{id}.
func (h *AuthorizationHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := auth.IdentityFromContext(ctx)
	a, err := h.Vault.GetAuthorization(ctx, id, id.TenantID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, toAPIAuthorization(a))
}

// Verify handles POST /authorizations/{id}/verify, re-running
// verification on the stored payload.
func (h *AuthorizationHandler) Verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := auth.IdentityFromContext(ctx)
	a, result, err := h.Vault.ReverifyAuthorization(ctx, id, id.TenantID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	verifiedAt := a.VerifiedAt.Time
	render.JSON(w, r, params.Verification{
		Status:     string(result.Status),
		Reason:     result.Reason,
		Details:    result.Details,
		VerifiedAt: &verifiedAt,
	})
}

// Revoke handles DELETE /authorizations/{id}.
func (h *AuthorizationHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := auth.IdentityFromContext(ctx)
	var req params.RevokeAuthorizationRequest
	if r.ContentLength > 0 {
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			writeError(w, r, errors.E(errors.CodeBadRequest, "invalid request body"))
			return
		}
	}
	if err := h.Vault.RevokeAuthorization(ctx, id, id.TenantID, chi.URLParam(r, "id"), req.Reason); err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]string{"status": dbmodel.StatusRevoked})
}

// SoftDelete handles POST /authorizations/{id}/soft-delete.
func (h *AuthorizationHandler) SoftDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := auth.IdentityFromContext(ctx)
	if err := h.Vault.SoftDeleteAuthorization(ctx, id, id.TenantID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]string{"status": dbmodel.StatusDeleted})
}

// Restore handles POST /authorizations/{id}/restore.
func (h *AuthorizationHandler) Restore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := auth.IdentityFromContext(ctx)
	if err := h.Vault.RestoreAuthorization(ctx, id, id.TenantID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]string{"status": dbmodel.StatusValid})
}

// Search handles POST /authorizations/search.
func (h *AuthorizationHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := auth.IdentityFromContext(ctx)
	var req params.SearchAuthorizationsRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, errors.E(errors.CodeBadRequest, "invalid request body"))
		return
	}
	filter, err := searchFilter(req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	as, err := h.Vault.SearchAuthorizations(ctx, id, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := params.SearchAuthorizationsResponse{
		Authorizations: make([]params.Authorization, len(as)),
		Count:          len(as),
	}
	for i := range as {
		resp.Authorizations[i] = toAPIAuthorization(&as[i])
	}
	render.JSON(w, r, resp)
}

// EvidencePack handles GET /authorizations/{id}/evidence-pack,
// streaming the compliance archive.
func (h *AuthorizationHandler) EvidencePack(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := auth.IdentityFromContext(ctx)
	pack, filename, err := h.Vault.BuildEvidencePack(ctx, id, id.TenantID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(pack); err != nil {
		return
	}
}

// searchFilter converts a search request into a store filter.
func searchFilter(req params.SearchAuthorizationsRequest) (db.AuthorizationFilter, error) {
	filter := db.AuthorizationFilter{
		TenantID:           req.TenantID,
		Protocol:           req.Protocol,
		Issuer:             req.Issuer,
		Subject:            req.Subject,
		Status:             req.Status,
		Currency:           req.Currency,
		ScopeMerchant:      req.ScopeMerchant,
		ScopeCategory:      req.ScopeCategory,
		ScopeItem:          req.ScopeItem,
		IncludeSoftDeleted: req.IncludeSoftDeleted,
		Limit:              req.Limit,
		Offset:             req.Offset,
		SortField:          req.SortField,
		SortDesc:           req.SortDesc,
	}
	if req.ExpiresBefore != nil {
		filter.ExpiresBefore = *req.ExpiresBefore
	}
	if req.ExpiresAfter != nil {
		filter.ExpiresAfter = *req.ExpiresAfter
	}
	if req.CreatedAfter != nil {
		filter.CreatedAfter = *req.CreatedAfter
	}
	var err error
	if filter.MinAmount, err = parseAmount(req.MinAmount); err != nil {
		return filter, err
	}
	if filter.MaxAmount, err = parseAmount(req.MaxAmount); err != nil {
		return filter, err
	}
	return filter, nil
}

func parseAmount(s string) (decimal.NullDecimal, error) {
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, errors.E(errors.CodeBadRequest, "invalid amount filter")
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, nil
}

// toAPIAuthorization converts a stored authorization into its API
// representation.
func toAPIAuthorization(a *dbmodel.Authorization) params.Authorization {
	out := params.Authorization{
		ID:        a.ID,
		TenantID:  a.TenantID,
		Protocol:  a.Protocol,
		Issuer:    a.Issuer,
		Subject:   a.Subject,
		TokenRef:  a.TokenRef,
		Scope:     map[string]interface{}(a.Scope),
		Currency:  a.Currency,
		ExpiresAt: a.ExpiresAt,
		Status:    a.Status,
		Verification: params.Verification{
			Status:  a.VerificationStatus,
			Reason:  a.VerificationReason,
			Details: map[string]interface{}(a.VerificationDetails),
		},
		RetentionDays:    a.RetentionDays,
		CreatedBy:        a.CreatedBy,
		RevocationReason: a.RevocationReason,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
	if a.AmountLimit.Valid {
		out.AmountLimit = a.AmountLimit.Decimal.StringFixed(2)
	}
	if a.VerifiedAt.Valid {
		t := a.VerifiedAt.Time
		out.Verification.VerifiedAt = &t
	}
	if a.RevokedAt.Valid {
		t := a.RevokedAt.Time
		out.RevokedAt = &t
	}
	return out
}
