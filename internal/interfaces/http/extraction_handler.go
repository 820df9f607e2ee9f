package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/turtacn/CoverIQ-Intelligence/internal/application/extractions"
	"github.com/turtacn/CoverIQ-Intelligence/internal/domain/extraction"
	"github.com/turtacn/CoverIQ-Intelligence/pkg/errors"
)

type extractionHandler struct {
	service *extractions.Service
}

func (h *extractionHandler) list(w http.ResponseWriter, r *http.Request) {
	offset, limit := pagination(r)
	opts := []extraction.QueryOption{extraction.WithPagination(offset, limit)}
	if contractID := r.URL.Query().Get("contract_id"); contractID != "" {
		opts = append(opts, extraction.WithContract(contractID))
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := extraction.Status(raw)
		if !status.Valid() {
			writeError(w, r, errors.NewValidationError("unknown status: "+raw))
			return
		}
		opts = append(opts, extraction.WithStatus(status))
	}

	rows, total, err := h.service.List(r.Context(), opts...)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listBody{Items: rows, Total: total})
}

func (h *extractionHandler) create(w http.ResponseWriter, r *http.Request) {
	var req extractions.CreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	job, err := h.service.Create(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (h *extractionHandler) get(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *extractionHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (h *extractionHandler) listModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.service.ListModels(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models)
}
