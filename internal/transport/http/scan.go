package http

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/google/uuid"

	"github.com/kmorozova/mealscan/internal/auth"
	"github.com/kmorozova/mealscan/internal/models"
	"github.com/kmorozova/mealscan/internal/validation"
	"github.com/kmorozova/mealscan/internal/vision"
)

// scanHandler builds the one relay handler all three scan endpoints share;
// only the scan kind and the prompt text differ.
func (h *Handlers) scanHandler(kind models.ScanKind, prompt string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.handleScan(w, r, kind, prompt)
	}
}

func (h *Handlers) handleScan(w http.ResponseWriter, r *http.Request, kind models.ScanKind, prompt string) {
	if err := r.ParseMultipartForm(h.Config.MaxUploadBytes + 1<<20); err != nil {
		http.Error(w, "failed to parse form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "image file is required"})
		return
	}
	defer file.Close()

	// spool the upload to a temp file; it is gone when the handler returns
	tmp, err := os.CreateTemp("", "mealscan-*")
	if err != nil {
		slog.Error("failed to create temp file", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		slog.Error("failed to spool upload", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if err := tmp.Close(); err != nil {
		slog.Error("failed to close temp file", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	data, err := os.ReadFile(tmpName)
	if err != nil {
		slog.Error("failed to read temp file", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	contentType, errs := validation.ValidateImageUpload(header.Filename, data, h.Config.MaxUploadBytes)
	if len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "validation failed",
			"details": errs,
		})
		return
	}

	result, err := h.Vision.AnalyzeImage(r.Context(), prompt, data, contentType)
	if err != nil {
		slog.Error("scan failed", "kind", kind, "filename", header.Filename, "error", err)
		h.recordScan(r, kind, header.Filename, contentType, int64(len(data)), nil, nil)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "image analysis failed"})
		return
	}

	h.recordScan(r, kind, header.Filename, contentType, int64(len(data)), data, result)

	slog.Info("scan completed",
		"kind", kind,
		"filename", header.Filename,
		"model", result.Model,
		"tokens_used", result.TokensUsed,
		"processing_time_ms", result.ProcessingTimeMs)

	// relay the model's JSON document verbatim
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.JSON); err != nil {
		slog.Warn("write response", "err", err)
	}
}

// recordScan archives the image and writes the history row. Both are
// best-effort: history never fails a relay, and a nil Repo/Storage
// disables it (relay-only deployments).
func (h *Handlers) recordScan(r *http.Request, kind models.ScanKind, filename, contentType string, size int64, data []byte, result *vision.Result) {
	if h.Repo == nil {
		return
	}

	scan := &models.Scan{
		ID:               uuid.New(),
		Kind:             kind,
		OriginalFilename: filename,
		ContentType:      contentType,
		FileSize:         size,
		Status:           models.StatusFailed,
	}

	if claims, ok := auth.FromContext(r.Context()); ok {
		if userID, err := uuid.Parse(claims.UserID); err == nil {
			scan.UserID = &userID
		}
	}

	if result != nil {
		scan.Status = models.StatusCompleted
		scan.Result = result.JSON
		scan.Model = result.Model
		scan.TokensUsed = result.TokensUsed
		scan.ProcessingTimeMs = result.ProcessingTimeMs

		if h.Storage != nil && len(data) > 0 {
			uploaded, err := h.Storage.UploadFile(r.Context(), filename, bytes.NewReader(data), contentType)
			if err != nil {
				slog.Error("failed to archive upload", "filename", filename, "error", err)
			} else {
				scan.StorageKey = uploaded.Key
				scan.StorageURL = uploaded.URL
			}
		}
	}

	if err := h.Repo.CreateScan(r.Context(), scan); err != nil {
		slog.Error("failed to record scan", "kind", kind, "error", err)
	}
}
