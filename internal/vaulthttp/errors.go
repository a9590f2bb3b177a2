// Copyright 2026 Mandatevault Ltd.

package vaulthttp

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/juju/zaputil/zapctx"
	"go.uber.org/zap"

	"github.com/mandatevault/mvault/api/params"
	"github.com/mandatevault/mvault/internal/errors"
)

// writeError renders an error document with the HTTP status the error
// code maps to. Unexpected errors are logged and reported with a
// generic message so internal detail never reaches clients.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.ErrorCode(err)
	var status int
	switch code {
	case errors.CodeBadRequest, errors.CodeVerificationFailed:
		status = http.StatusBadRequest
	case errors.CodeUnauthorized:
		status = http.StatusUnauthorized
	case errors.CodeForbidden:
		status = http.StatusForbidden
	case errors.CodeNotFound:
		status = http.StatusNotFound
	case errors.CodeAlreadyExists:
		status = http.StatusConflict
	case errors.CodeUpgradeInProgress, errors.CodeConnectionFailed, errors.CodeDatabaseLocked:
		status = http.StatusServiceUnavailable
	default:
		zapctx.Error(r.Context(), "internal server error", zap.Error(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, params.Error{Message: "internal server error"})
		return
	}
	render.Status(r, status)
	render.JSON(w, r, params.Error{Message: err.Error(), Code: string(code)})
}
