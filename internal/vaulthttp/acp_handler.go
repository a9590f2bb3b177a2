// Copyright 2026 Mandatevault Ltd.

package vaulthttp

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/mandatevault/mvault/api/params"
	"github.com/mandatevault/mvault/internal/errors"
	"github.com/mandatevault/mvault/internal/vault"
	"github.com/mandatevault/mvault/internal/webhook"
)

// InboundSignatureHeader carries the HMAC signature on inbound
// events.
const InboundSignatureHeader = "X-ACP-Signature"

// maxInboundBody bounds the inbound request body size.
const maxInboundBody = 1 << 20

// An ACPHandler receives token lifecycle signals from the external
// authority. Requests are authenticated by an HMAC of the raw body
// bytes under a shared secret, and replays are detected by event id.
type ACPHandler struct {
	Router *chi.Mux
	Vault  *vault.Vault

	// Secret is the shared HMAC secret.
	Secret string
}

// NewACPHandler returns a new inbound webhook handler.
func NewACPHandler(v *vault.Vault, secret string) *ACPHandler {
	return &ACPHandler{Router: chi.NewRouter(), Vault: v, Secret: secret}
}

// Routes returns the grouped routers routes with group specific
// middlewares.
func (h *ACPHandler) Routes() chi.Router {
	h.SetupMiddleware()
	h.Router.Post("/", h.Receive)
	return h.Router
}

// SetupMiddleware applies middlewares.
func (h *ACPHandler) SetupMiddleware() {
	h.Router.Use(
		render.SetContentType(
			render.ContentTypeJSON,
		),
	)
}

// Receive handles POST /acp/webhook. The HMAC is computed over the
// exact body bytes received, before any JSON parsing.
func (h *ACPHandler) Receive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxInboundBody))
	if err != nil {
		writeError(w, r, errors.E(errors.CodeBadRequest, "cannot read request body"))
		return
	}
	sig := strings.TrimPrefix(r.Header.Get(InboundSignatureHeader), "sha256=")
	if !webhook.VerifyHMAC(h.Secret, body, sig) {
		writeError(w, r, errors.E(errors.CodeUnauthorized, "invalid signature"))
		return
	}

	var event params.InboundEvent
	if err := json.Unmarshal(body, &event); err != nil {
		writeError(w, r, errors.E(errors.CodeBadRequest, "invalid request body"))
		return
	}
	if event.EventID == "" {
		writeError(w, r, errors.E(errors.CodeBadRequest, "missing event id"))
		return
	}
	tokenRef, _ := event.Data["token_id"].(string)
	if tokenRef == "" {
		writeError(w, r, errors.E(errors.CodeNotFound, "unknown token"))
		return
	}

	alreadyProcessed, err := h.Vault.ProcessInboundSignal(ctx, vault.InboundSignal{
		EventID:  event.EventID,
		Kind:     event.EventType,
		TokenRef: tokenRef,
		Details:  event.Data,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := params.StatusProcessed
	if alreadyProcessed {
		status = params.StatusAlreadyProcessed
	}
	render.JSON(w, r, params.InboundEventResponse{Status: status})
}
