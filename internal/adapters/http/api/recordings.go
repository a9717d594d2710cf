// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/okian/callscore/internal/adapters/blob"
)

// RecordingsDependencies defines the interface for recording storage.
type RecordingsDependencies interface {
	SaveRecording(ctx context.Context, filename string, data []byte) (string, error)
	Recording(ctx context.Context, key string) ([]byte, error)
}

// RecordingsHandler handles call recording upload and download requests.
// Recordings are opaque bytes; nothing here inspects the audio.
type RecordingsHandler struct {
	deps           RecordingsDependencies
	maxUploadBytes int64
}

// NewRecordingsHandler creates a new recordings handler.
func NewRecordingsHandler(deps RecordingsDependencies, maxUploadBytes int64) *RecordingsHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &RecordingsHandler{deps: deps, maxUploadBytes: maxUploadBytes}
}

// HandleUpload handles POST /recordings requests. Expects a multipart form
// with the recording under the "file" field; responds with the storage key.
func (h *RecordingsHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_recording"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", NewKind(op, ErrBadRequest))
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", NewKind(op, ErrBadRequest))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}

	key, err := h.deps.SaveRecording(r.Context(), header.Filename, data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusCreated, uploadResponse{Key: key})
}

// HandleDownload handles GET /recordings/{key} requests.
func (h *RecordingsHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	key := strings.TrimPrefix(r.URL.Path, "/recordings/")
	if key == "" || strings.Contains(key, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	data, err := h.deps.Recording(r.Context(), key)
	if err != nil {
		switch {
		case errors.Is(err, blob.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", err)
		case errors.Is(err, blob.ErrInvalidKey):
			writeError(w, http.StatusBadRequest, "bad_request", err)
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", err)
		}
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
