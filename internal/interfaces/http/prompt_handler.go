package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/turtacn/CoverIQ-Intelligence/internal/domain/prompt"
)

type promptHandler struct {
	store *prompt.Store
}

func (h *promptHandler) list(w http.ResponseWriter, r *http.Request) {
	prompts, err := h.store.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prompts)
}

func (h *promptHandler) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.Get(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *promptHandler) update(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content string `json:"prompt_content"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.store.Update(r.Context(), chi.URLParam(r, "key"), body.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// reset removes the override, returning the compiled-in default.
func (h *promptHandler) reset(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.Reset(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
