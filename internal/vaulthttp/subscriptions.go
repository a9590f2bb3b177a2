// Copyright 2026 Mandatevault Ltd.

package vaulthttp

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/mandatevault/mvault/api/params"
	"github.com/mandatevault/mvault/internal/auth"
	"github.com/mandatevault/mvault/internal/dbmodel"
	"github.com/mandatevault/mvault/internal/errors"
	"github.com/mandatevault/mvault/internal/vault"
)

// A SubscriptionHandler serves the webhook subscription admin
// endpoints.
type SubscriptionHandler struct {
	Router *chi.Mux
	Vault  *vault.Vault
}

// NewSubscriptionHandler returns a new subscription handler.
func NewSubscriptionHandler(v *vault.Vault) *SubscriptionHandler {
	return &SubscriptionHandler{Router: chi.NewRouter(), Vault: v}
}

// Routes returns the grouped routers routes with group specific
// middlewares.
func (h *SubscriptionHandler) Routes() chi.Router {
	h.SetupMiddleware()
	h.Router.Post("/", h.Add)
	h.Router.Get("/", h.List)
	h.Router.Delete("/{id}", h.Remove)
	return h.Router
}

// SetupMiddleware applies middlewares.
func (h *SubscriptionHandler) SetupMiddleware() {
	h.Router.Use(
		render.SetContentType(
			render.ContentTypeJSON,
		),
	)
}

// Add handles POST /webhook-subscriptions.
func (h *SubscriptionHandler) Add(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := auth.IdentityFromContext(ctx)
	var req params.AddWebhookSubscriptionRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, errors.E(errors.CodeBadRequest, "invalid request body"))
		return
	}
	sub := dbmodel.WebhookSubscription{
		TenantID:         id.TenantID,
		Name:             req.Name,
		URL:              req.URL,
		Events:           dbmodel.Strings(req.Events),
		Secret:           req.Secret,
		Active:           true,
		MaxAttempts:      req.MaxAttempts,
		BaseDelaySeconds: req.BaseDelaySeconds,
		TimeoutSeconds:   req.TimeoutSeconds,
	}
	if err := h.Vault.AddWebhookSubscription(ctx, id, &sub); err != nil {
		writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toAPISubscription(&sub))
}

// List handles GET /webhook-subscriptions.
func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := auth.IdentityFromContext(ctx)
	subs, err := h.Vault.ListWebhookSubscriptions(ctx, id, id.TenantID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]params.WebhookSubscription, len(subs))
	for i := range subs {
		out[i] = toAPISubscription(&subs[i])
	}
	render.JSON(w, r, out)
}

// Remove handles DELETE /webhook-subscriptions/{id}.
func (h *SubscriptionHandler) Remove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := auth.IdentityFromContext(ctx)
	if err := h.Vault.RemoveWebhookSubscription(ctx, id, id.TenantID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	render.NoContent(w, r)
}

// toAPISubscription converts a stored subscription into its API
// representation. The secret is omitted.
func toAPISubscription(s *dbmodel.WebhookSubscription) params.WebhookSubscription {
	return params.WebhookSubscription{
		ID:               s.ID,
		TenantID:         s.TenantID,
		Name:             s.Name,
		URL:              s.URL,
		Events:           []string(s.Events),
		Active:           s.Active,
		MaxAttempts:      s.MaxAttempts,
		BaseDelaySeconds: s.BaseDelaySeconds,
		TimeoutSeconds:   s.TimeoutSeconds,
	}
}
