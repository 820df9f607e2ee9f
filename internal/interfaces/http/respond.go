// Package http exposes the platform over a chi-routed JSON API.  Handlers
// translate transport concerns only; all behavior lives in the application
// services.
package http

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CoverIQ-Intelligence/pkg/errors"
)

// errorBody is the JSON error envelope.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// listBody wraps paginated collections.
type listBody struct {
	Items interface{} `json:"items"`
	Total int64       `json:"total"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Default().Error("Failed to encode response", logging.Err(err))
	}
}

// writeError maps an AppError onto its HTTP status; unknown errors become
// opaque 500s so internals never leak to clients.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		appErr = errors.New(errors.ErrCodeInternal, errors.DefaultMessageForCode(errors.ErrCodeInternal))
	}
	status := errors.HTTPStatusForCode(appErr.Code)

	body := errorBody{
		Code:    appErr.Code.String(),
		Message: appErr.Message,
		Detail:  appErr.Detail,
	}
	if errors.IsServerError(appErr.Code) {
		requestLogger(r).Error("Request failed",
			logging.String("code", appErr.Code.String()),
			logging.Err(err),
		)
		body.Message = errors.DefaultMessageForCode(appErr.Code)
		body.Detail = ""
	}
	writeJSON(w, status, body)
}

// decodeJSON decodes a request body, rejecting unknown fields.
func decodeJSON(r *http.Request, target interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return errors.Wrap(err, errors.ErrCodeValidation, "invalid request body")
	}
	return nil
}

// pagination reads offset/limit query parameters with defaults.
func pagination(r *http.Request) (offset, limit int) {
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 50
	}
	return offset, limit
}
