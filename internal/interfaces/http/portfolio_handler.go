package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/turtacn/CoverIQ-Intelligence/internal/application/portfolios"
	"github.com/turtacn/CoverIQ-Intelligence/internal/domain/portfolio"
)

type portfolioHandler struct {
	service *portfolios.Service
}

func (h *portfolioHandler) list(w http.ResponseWriter, r *http.Request) {
	offset, limit := pagination(r)
	opts := []portfolio.QueryOption{portfolio.WithPagination(offset, limit)}
	if keyword := r.URL.Query().Get("search"); keyword != "" {
		opts = append(opts, portfolio.WithSearch(keyword))
	}

	rows, total, err := h.service.List(r.Context(), opts...)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listBody{Items: rows, Total: total})
}

func (h *portfolioHandler) create(w http.ResponseWriter, r *http.Request) {
	var req portfolios.CreateRequest
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

func (h *portfolioHandler) get(w http.ResponseWriter, r *http.Request) {
	detail, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *portfolioHandler) update(w http.ResponseWriter, r *http.Request) {
	var req portfolios.UpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	detail, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *portfolioHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (h *portfolioHandler) addItem(w http.ResponseWriter, r *http.Request) {
	var input portfolios.ItemInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, r, err)
		return
	}
	detail, err := h.service.AddItem(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, detail)
}

func (h *portfolioHandler) updateItem(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AllocationPct decimal.Decimal `json:"allocation_pct"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	detail, err := h.service.UpdateItem(r.Context(),
		chi.URLParam(r, "id"), chi.URLParam(r, "itemID"), body.AllocationPct)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *portfolioHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	detail, err := h.service.RemoveItem(r.Context(),
		chi.URLParam(r, "id"), chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}
