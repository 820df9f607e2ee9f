package http

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/turtacn/CoverIQ-Intelligence/internal/application/contracts"
	"github.com/turtacn/CoverIQ-Intelligence/internal/domain/contract"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CoverIQ-Intelligence/pkg/errors"
)

type contractHandler struct {
	service        *contracts.Service
	maxUploadBytes int64
}

func (h *contractHandler) list(w http.ResponseWriter, r *http.Request) {
	offset, limit := pagination(r)
	opts := []contract.QueryOption{contract.WithPagination(offset, limit)}
	if keyword := r.URL.Query().Get("search"); keyword != "" {
		opts = append(opts, contract.WithSearch(keyword))
	}

	rows, total, err := h.service.List(r.Context(), opts...)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listBody{Items: rows, Total: total})
}

// upload accepts the contract document as multipart form field "file".
func (h *contractHandler) upload(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, r, errors.Wrap(err, errors.ErrCodeValidation, "invalid multipart request"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, errors.Wrap(err, errors.ErrCodeValidation, "form field \"file\" is required"))
		return
	}
	defer file.Close()

	c, err := h.service.Upload(r.Context(), contracts.UploadInput{
		Filename: header.Filename,
		Reader:   file,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *contractHandler) get(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *contractHandler) download(w http.ResponseWriter, r *http.Request) {
	rc, meta, err := h.service.Download(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+meta.OriginalFilename+`"`)
	if meta.FileSizeBytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(meta.FileSizeBytes, 10))
	}
	if _, err := io.Copy(w, rc); err != nil {
		requestLogger(r).Error("Contract download interrupted", logging.Err(err))
	}
}

func (h *contractHandler) downloadURL(w http.ResponseWriter, r *http.Request) {
	url, err := h.service.DownloadURL(r.Context(), chi.URLParam(r, "id"), 15*time.Minute)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (h *contractHandler) setText(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text      string `json:"text"`
		PageCount int    `json:"page_count"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.service.SetText(r.Context(), chi.URLParam(r, "id"), body.Text, body.PageCount); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *contractHandler) versions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.service.Versions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

func (h *contractHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
