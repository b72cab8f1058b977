package httpd

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/RubachokBoss/plagiarism-checker/internal/models"
	"github.com/go-chi/chi/v5"
)

// UploadContent accepts either a raw body or a multipart form with a "file"
// field.
func (h *Handler) UploadContent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadSize)

	content, err := readUpload(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File is too large")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.contentStore.Put(r.Context(), content)
	if err != nil {
		if !errors.Is(err, models.ErrInvalidInput) {
			err = errors.Join(models.ErrUpstreamUnavailable, err)
		}
		h.handleError(w, err)
		return
	}

	writeSuccess(w, models.UploadContentResponse{FileID: id, FileSize: int64(len(content))})
}

func (h *Handler) DownloadContent(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "file_id")

	content, err := h.contentStore.Get(r.Context(), fileID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			err = errors.Join(models.ErrUpstreamUnavailable, err)
		}
		h.handleError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	w.WriteHeader(http.StatusOK)
	w.Write(content)
}

func readUpload(r *http.Request) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return io.ReadAll(r.Body)
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, err
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, errors.New("file is required")
	}
	defer file.Close()

	return io.ReadAll(file)
}
