package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/turtacn/CoverIQ-Intelligence/internal/application/export"
)

type exportHandler struct {
	service *export.Service
}

// portfolio streams one portfolio export; ?format=xlsx|csv|json, default
// xlsx.
func (h *exportHandler) portfolio(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("format")
	if raw == "" {
		raw = string(export.FormatExcel)
	}
	format, err := export.ParseFormat(raw)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.service.Portfolio(r.Context(), chi.URLParam(r, "id"), format)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeFile(w, result)
}

func (h *exportHandler) memberGWP(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.MemberGWP(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeFile(w, result)
}

func writeFile(w http.ResponseWriter, result *export.Result) {
	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(result.Data)
}
