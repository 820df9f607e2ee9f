package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/turtacn/CoverIQ-Intelligence/internal/application/members"
	"github.com/turtacn/CoverIQ-Intelligence/internal/domain/gwp"
	"github.com/turtacn/CoverIQ-Intelligence/pkg/errors"
)

type memberHandler struct {
	service        *members.Service
	maxUploadBytes int64
}

func (h *memberHandler) list(w http.ResponseWriter, r *http.Request) {
	offset, limit := pagination(r)
	opts := []gwp.QueryOption{gwp.WithPagination(offset, limit)}
	if keyword := r.URL.Query().Get("search"); keyword != "" {
		opts = append(opts, gwp.WithSearch(keyword))
	}

	rows, total, err := h.service.List(r.Context(), opts...)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listBody{Items: rows, Total: total})
}

func (h *memberHandler) get(w http.ResponseWriter, r *http.Request) {
	detail, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *memberHandler) tree(w http.ResponseWriter, r *http.Request) {
	tree, err := h.service.Tree(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

func (h *memberHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// importWorkbook accepts the member/GWP Excel workbook as multipart form
// field "file".
func (h *memberHandler) importWorkbook(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, r, errors.Wrap(err, errors.ErrCodeValidation, "invalid multipart request"))
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, errors.Wrap(err, errors.ErrCodeValidation, "form field \"file\" is required"))
		return
	}
	defer file.Close()

	stats, err := h.service.ImportExcel(r.Context(), file)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
