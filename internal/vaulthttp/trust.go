// Copyright 2026 Mandatevault Ltd.

package vaulthttp

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/mandatevault/mvault/api/params"
	"github.com/mandatevault/mvault/internal/auth"
	"github.com/mandatevault/mvault/internal/errors"
	"github.com/mandatevault/mvault/internal/truststore"
)

// A TrustHandler serves the trust store admin endpoints. All routes
// require the administrator role.
type TrustHandler struct {
	Router *chi.Mux
	Trust  *truststore.Store
}

// NewTrustHandler returns a new trust store handler.
func NewTrustHandler(s *truststore.Store) *TrustHandler {
	return &TrustHandler{Router: chi.NewRouter(), Trust: s}
}

// Routes returns the grouped routers routes with group specific
// middlewares.
func (h *TrustHandler) Routes() chi.Router {
	h.SetupMiddleware()
	h.Router.Post("/issuers", h.RegisterIssuer)
	h.Router.Delete("/issuers/{issuer}", h.RemoveIssuer)
	h.Router.Get("/status", h.Status)
	return h.Router
}

// SetupMiddleware applies middlewares.
func (h *TrustHandler) SetupMiddleware() {
	h.Router.Use(
		render.SetContentType(
			render.ContentTypeJSON,
		),
		requireAdmin,
	)
}

// requireAdmin rejects requests from non-administrator identities.
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := auth.IdentityFromContext(r.Context())
		if id == nil || !id.Admin {
			writeError(w, r, errors.E(errors.CodeForbidden, "administrator role required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RegisterIssuer handles POST /trust/issuers, registering an issuer
// with an out-of-band key set.
func (h *TrustHandler) RegisterIssuer(w http.ResponseWriter, r *http.Request) {
	var req params.RegisterIssuerRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, errors.E(errors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.Issuer == "" {
		writeError(w, r, errors.E(errors.CodeBadRequest, "missing issuer"))
		return
	}
	keys, err := jwk.Parse(req.JWKS)
	if err != nil {
		writeError(w, r, errors.E(errors.CodeBadRequest, "invalid key set"))
		return
	}
	if err := h.Trust.RegisterIssuer(req.Issuer, keys); err != nil {
		writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]string{"issuer": req.Issuer})
}

// RemoveIssuer handles DELETE /trust/issuers/{issuer}.
func (h *TrustHandler) RemoveIssuer(w http.ResponseWriter, r *http.Request) {
	h.Trust.RemoveIssuer(chi.URLParam(r, "issuer"))
	render.NoContent(w, r)
}

// Status handles GET /trust/status.
func (h *TrustHandler) Status(w http.ResponseWriter, r *http.Request) {
	statuses := h.Trust.Status()
	resp := params.TrustStatusResponse{
		Issuers: make([]params.IssuerStatus, 0, len(statuses)),
	}
	for issuer, st := range statuses {
		is := params.IssuerStatus{
			Issuer: issuer,
			Keys:   st.Keys,
			Static: st.Static,
		}
		if !st.LastRefresh.IsZero() {
			t := st.LastRefresh
			is.LastRefresh = &t
		}
		resp.Issuers = append(resp.Issuers, is)
	}
	sort.Slice(resp.Issuers, func(i, j int) bool {
		return resp.Issuers[i].Issuer < resp.Issuers[j].Issuer
	})
	render.JSON(w, r, resp)
}
