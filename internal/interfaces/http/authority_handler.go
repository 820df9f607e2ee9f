package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/turtacn/CoverIQ-Intelligence/internal/application/authorities"
	"github.com/turtacn/CoverIQ-Intelligence/internal/domain/authority"
)

type authorityHandler struct {
	service *authorities.Service
}

func (h *authorityHandler) list(w http.ResponseWriter, r *http.Request) {
	offset, limit := pagination(r)
	opts := []authority.QueryOption{authority.WithPagination(offset, limit)}
	q := r.URL.Query()
	if keyword := q.Get("search"); keyword != "" {
		opts = append(opts, authority.WithSearch(keyword))
	}
	if memberID := q.Get("member_id"); memberID != "" {
		opts = append(opts, authority.WithMemberID(memberID))
	}
	if lob := q.Get("lob"); lob != "" {
		opts = append(opts, authority.WithLOBName(lob))
	}
	if cob := q.Get("cob"); cob != "" {
		opts = append(opts, authority.WithCOBName(cob))
	}

	rows, total, err := h.service.List(r.Context(), opts...)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listBody{Items: rows, Total: total})
}

func (h *authorityHandler) create(w http.ResponseWriter, r *http.Request) {
	var req authorities.CreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	detail, err := h.service.Create(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, detail)
}

func (h *authorityHandler) options(w http.ResponseWriter, r *http.Request) {
	opts, err := h.service.Options(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

func (h *authorityHandler) get(w http.ResponseWriter, r *http.Request) {
	detail, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *authorityHandler) updateData(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ExtractedData   authority.ExtractedData `json:"extracted_data"`
		AnalysisSummary *string                 `json:"analysis_summary,omitempty"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	detail, err := h.service.UpdateData(r.Context(), chi.URLParam(r, "id"),
		body.ExtractedData, body.AnalysisSummary)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *authorityHandler) patchField(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value interface{} `json:"value"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	detail, err := h.service.PatchField(r.Context(), chi.URLParam(r, "id"),
		chi.URLParam(r, "field"), body.Value)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *authorityHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
